package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dyluth/lanes/pkg/board"
)

// Criteria defines filtering criteria for cards.
// All filters are ANDed together - a card must match ALL criteria to pass.
type Criteria struct {
	Column    board.ColumnID // Exact column, empty = no filter
	TitleGlob string         // Case-insensitive glob on the title, empty = no filter
	Tag       string         // Card must carry this tag, empty = no filter
	Assignee  string         // Card must be assigned to this name, empty = no filter
}

// Matches returns true if the card in column matches all filter criteria.
// Empty criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(column board.ColumnID, card board.Card) bool {
	if c.Column != "" && column != c.Column {
		return false
	}

	if c.TitleGlob != "" {
		matched, err := filepath.Match(strings.ToLower(c.TitleGlob), strings.ToLower(card.Title))
		if err != nil || !matched {
			return false
		}
	}

	if c.Tag != "" && !contains(card.Tags, c.Tag) {
		return false
	}

	if c.Assignee != "" && !card.HasAssignee(c.Assignee) {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.Column != "" || c.TitleGlob != "" || c.Tag != "" || c.Assignee != ""
}

// Validate rejects an unknown column or a malformed glob.
func (c *Criteria) Validate() error {
	if c.Column != "" {
		if err := c.Column.Validate(); err != nil {
			return err
		}
	}
	if c.TitleGlob != "" {
		if _, err := filepath.Match(c.TitleGlob, ""); err != nil {
			return fmt.Errorf("%w: bad title pattern %q: %v", board.ErrInvalidArgument, c.TitleGlob, err)
		}
	}
	return nil
}

// Apply returns a copy of b holding only matching cards. Every column is kept,
// so renderers still show empty stages.
func (c *Criteria) Apply(b *board.Board) *board.Board {
	out := &board.Board{Scope: b.Scope, Columns: make([]board.Column, 0, len(b.Columns))}
	for _, col := range b.Columns {
		kept := board.Column{ID: col.ID, Title: col.Title, Cards: make([]board.Card, 0, len(col.Cards))}
		for _, card := range col.Cards {
			if c.Matches(col.ID, card) {
				kept.Cards = append(kept.Cards, card.Clone())
			}
		}
		out.Columns = append(out.Columns, kept)
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
