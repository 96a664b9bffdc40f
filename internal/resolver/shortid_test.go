package resolver

import (
	"fmt"
	"testing"

	"github.com/dyluth/lanes/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBoard() *board.Board {
	b := board.NewBoard(board.GlobalScope)
	_ = b.AddCard(board.ColumnIdea, board.Card{ID: "c1", Title: "short id"})
	_ = b.AddCard(board.ColumnIdea, board.Card{ID: "abcdef12-0000-4000-8000-000000000001", Title: "one"})
	_ = b.AddCard(board.ColumnDone, board.Card{ID: "abcdef34-0000-4000-8000-000000000002", Title: "two"})
	return b
}

func TestResolveCard(t *testing.T) {
	b := testBoard()

	t.Run("exact id of any length", func(t *testing.T) {
		m, err := ResolveCard(b, "c1")
		require.NoError(t, err)
		assert.Equal(t, board.ColumnIdea, m.Column)
		assert.Equal(t, "short id", m.Card.Title)
	})

	t.Run("unique prefix", func(t *testing.T) {
		m, err := ResolveCard(b, "abcdef34")
		require.NoError(t, err)
		assert.Equal(t, board.ColumnDone, m.Column)
		assert.Equal(t, "two", m.Card.Title)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := ResolveCard(b, "abcdef")
		require.Error(t, err)
		assert.True(t, IsAmbiguousError(err))

		var ambiguous *AmbiguousError
		require.ErrorAs(t, err, &ambiguous)
		assert.Len(t, ambiguous.Matches, 2)
	})

	t.Run("short unknown prefix", func(t *testing.T) {
		_, err := ResolveCard(b, "abc")
		assert.ErrorIs(t, err, board.ErrCardNotFound)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveCard(b, "ffffffff")
		assert.ErrorIs(t, err, board.ErrCardNotFound)
		assert.Contains(t, err.Error(), "ffffffff")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ResolveCard(b, " ")
		assert.ErrorIs(t, err, board.ErrInvalidArgument)
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	matches := make([]string, 12)
	for i := range matches {
		matches[i] = fmt.Sprintf("abcdef%02d", i)
	}

	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abcdef", Matches: matches})
	assert.Contains(t, msg, "matches 12 cards")
	assert.Contains(t, msg, "abcdef09")
	assert.NotContains(t, msg, "abcdef10")
	assert.Contains(t, msg, "...and 2 more")
}
