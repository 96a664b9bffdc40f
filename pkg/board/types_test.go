package board

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr bool
	}{
		{name: "global", scope: GlobalScope},
		{name: "community id", scope: "guild-42.alpha_beta"},
		{name: "empty", scope: "", wantErr: true},
		{name: "contains colon", scope: "a:b", wantErr: true},
		{name: "contains space", scope: "a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestColumnIDAdjacency(t *testing.T) {
	next, ok := ColumnIdea.Next()
	require.True(t, ok)
	assert.Equal(t, ColumnNext, next)

	next, ok = ColumnInProgress.Next()
	require.True(t, ok)
	assert.Equal(t, ColumnDone, next)

	_, ok = ColumnDone.Next()
	assert.False(t, ok)

	prev, ok := ColumnNext.Prev()
	require.True(t, ok)
	assert.Equal(t, ColumnIdea, prev)

	_, ok = ColumnIdea.Prev()
	assert.False(t, ok)

	assert.Equal(t, -1, ColumnID("archive").Index())
	assert.Equal(t, "In Progress", ColumnInProgress.Title())
}

func TestColumnIDValidate(t *testing.T) {
	for _, id := range Columns {
		assert.NoError(t, id.Validate())
	}
	err := ColumnID("archive").Validate()
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestCardNormalize(t *testing.T) {
	c := Card{
		ID:        "c1",
		Title:     "X",
		Tags:      []string{"ui", " backend ", "ui", ""},
		Assignees: nil,
	}

	n := c.Normalize()
	assert.Equal(t, []string{"backend", "ui"}, n.Tags)
	assert.NotNil(t, n.Assignees)
	assert.Empty(t, n.Assignees)

	// original is untouched
	assert.Len(t, c.Tags, 4)
}

func TestCardEqual(t *testing.T) {
	a := Card{ID: "c1", Title: "X", Assignees: []string{"Bob", "Alice"}}
	b := Card{ID: "c1", Title: "X", Assignees: []string{"Alice", "Bob", "Alice"}, Tags: []string{}}
	assert.True(t, a.Equal(b))

	c := Card{ID: "c1", Title: "X", Description: "changed", Assignees: []string{"Alice", "Bob"}}
	assert.False(t, a.Equal(c))
}

func TestCardWithAssignee(t *testing.T) {
	c := Card{ID: "c1", Title: "X"}

	c = c.WithAssignee("Alice", true)
	c = c.WithAssignee("Alice", true)
	assert.Equal(t, []string{"Alice"}, c.Assignees)

	c = c.WithAssignee("Bob", true)
	c = c.WithAssignee("Alice", false)
	assert.Equal(t, []string{"Bob"}, c.Assignees)

	// removing every occurrence, even from a non-normalized value
	dirty := Card{ID: "c2", Assignees: []string{"Bob", "Bob", "Carol"}}
	assert.Equal(t, []string{"Carol"}, dirty.WithAssignee("Bob", false).Assignees)
	assert.True(t, dirty.HasAssignee("Carol"))
}

func TestCardValidate(t *testing.T) {
	c := &Card{ID: "  "}
	assert.ErrorIs(t, c.Validate(), ErrInvalidArgument)

	c.ID = "c1"
	assert.NoError(t, c.Validate())
}

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, IsNotFound(ErrCardNotFound))
	assert.True(t, IsNotFound(ErrColumnNotFound))
	assert.True(t, IsTerminal(ErrOrderMismatch))
	assert.True(t, IsTerminal(ErrForbidden))
	assert.False(t, IsTerminal(ErrTransient))

	err := transient("add card", errors.New("i/o timeout"))
	assert.True(t, IsTransient(err))
	assert.False(t, IsTerminal(err))
	assert.Contains(t, err.Error(), "add card")
	assert.Contains(t, err.Error(), "i/o timeout")
}
