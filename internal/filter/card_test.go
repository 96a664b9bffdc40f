package filter

import (
	"testing"

	"github.com/dyluth/lanes/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriteriaMatches(t *testing.T) {
	card := board.Card{ID: "c1", Title: "Dark Mode", Tags: []string{"ui"}, Assignees: []string{"Alice"}}

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{name: "no filters", criteria: Criteria{}, want: true},
		{name: "column match", criteria: Criteria{Column: board.ColumnIdea}, want: true},
		{name: "column mismatch", criteria: Criteria{Column: board.ColumnDone}, want: false},
		{name: "title glob is case-insensitive", criteria: Criteria{TitleGlob: "dark*"}, want: true},
		{name: "title glob mismatch", criteria: Criteria{TitleGlob: "*export*"}, want: false},
		{name: "tag", criteria: Criteria{Tag: "ui"}, want: true},
		{name: "missing tag", criteria: Criteria{Tag: "api"}, want: false},
		{name: "assignee", criteria: Criteria{Assignee: "Alice"}, want: true},
		{name: "all criteria ANDed", criteria: Criteria{Tag: "ui", Assignee: "Bob"}, want: false},
		{name: "malformed glob never matches", criteria: Criteria{TitleGlob: "["}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(board.ColumnIdea, card))
		})
	}
}

func TestCriteriaApply(t *testing.T) {
	b := board.NewBoard(board.GlobalScope)
	require.NoError(t, b.AddCard(board.ColumnIdea, board.Card{ID: "c1", Title: "A", Tags: []string{"ui"}}))
	require.NoError(t, b.AddCard(board.ColumnIdea, board.Card{ID: "c2", Title: "B"}))
	require.NoError(t, b.AddCard(board.ColumnDone, board.Card{ID: "c3", Title: "C", Tags: []string{"ui"}}))

	c := Criteria{Tag: "ui"}
	assert.True(t, c.HasFilters())

	out := c.Apply(b)
	require.Len(t, out.Columns, 4)
	assert.Equal(t, []string{"c1"}, out.Column(board.ColumnIdea).IDs())
	assert.Equal(t, []string{"c3"}, out.Column(board.ColumnDone).IDs())
	assert.Equal(t, 3, b.CardCount(), "input board is untouched")
}

func TestCriteriaValidate(t *testing.T) {
	assert.NoError(t, (&Criteria{Column: board.ColumnDone, TitleGlob: "x*"}).Validate())
	assert.ErrorIs(t, (&Criteria{Column: "archive"}).Validate(), board.ErrInvalidArgument)
	assert.ErrorIs(t, (&Criteria{TitleGlob: "["}).Validate(), board.ErrInvalidArgument)
	assert.False(t, (&Criteria{}).HasFilters())
}
