package board

import "fmt"

// Board rules shared by the mutation service and optimistic clients.
// They operate on in-memory snapshots only and never touch the store.

// NewBoard returns an empty board for scope with every column in pipeline order.
func NewBoard(scope Scope) *Board {
	b := &Board{Scope: scope, Columns: make([]Column, 0, len(Columns))}
	for _, id := range Columns {
		b.Columns = append(b.Columns, Column{ID: id, Title: id.Title(), Cards: []Card{}})
	}
	return b
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	out := &Board{Scope: b.Scope, Columns: make([]Column, len(b.Columns))}
	for i, col := range b.Columns {
		out.Columns[i] = col.Clone()
	}
	return out
}

// Column returns the column with the given id, or nil if the board lacks it.
func (b *Board) Column(id ColumnID) *Column {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return &b.Columns[i]
		}
	}
	return nil
}

// Locate finds the column holding cardID.
func (b *Board) Locate(cardID string) (ColumnID, Card, bool) {
	for _, col := range b.Columns {
		if c, _, ok := col.Find(cardID); ok {
			return col.ID, c, true
		}
	}
	return "", Card{}, false
}

// CardCount returns the number of cards across all columns.
func (b *Board) CardCount() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Cards)
	}
	return n
}

// Validate checks that no card id occurs more than once on the board.
func (b *Board) Validate() error {
	seen := make(map[string]ColumnID)
	for _, col := range b.Columns {
		for _, c := range col.Cards {
			if prev, dup := seen[c.ID]; dup {
				return fmt.Errorf("card %s appears in both %s and %s", c.ID, prev, col.ID)
			}
			seen[c.ID] = col.ID
		}
	}
	return nil
}

// AddCard appends card to a column unless an equal value is already present.
func (b *Board) AddCard(column ColumnID, card Card) error {
	col := b.Column(column)
	if col == nil {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	card = card.Normalize()
	for _, c := range col.Cards {
		if c.Equal(card) {
			return nil
		}
	}
	col.Cards = append(col.Cards, card)
	return nil
}

// RemoveCard removes every card with cardID from a column and returns the first removed.
func (b *Board) RemoveCard(column ColumnID, cardID string) (Card, error) {
	col := b.Column(column)
	if col == nil {
		return Card{}, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	removed, _, ok := col.Find(cardID)
	if !ok {
		return Card{}, fmt.Errorf("%w: %s in %s", ErrCardNotFound, cardID, column)
	}
	kept := col.Cards[:0:0]
	for _, c := range col.Cards {
		if c.ID != cardID {
			kept = append(kept, c)
		}
	}
	col.Cards = kept
	return removed, nil
}

// MoveCard moves cardID from one column to the end of another.
// Moving to the same column leaves the board unchanged.
func (b *Board) MoveCard(cardID string, from, to ColumnID) (Card, error) {
	if err := from.Validate(); err != nil {
		return Card{}, err
	}
	if err := to.Validate(); err != nil {
		return Card{}, err
	}
	src := b.Column(from)
	if src == nil {
		return Card{}, fmt.Errorf("%w: %s", ErrColumnNotFound, from)
	}
	card, _, ok := src.Find(cardID)
	if !ok {
		return Card{}, fmt.Errorf("%w: %s in %s", ErrCardNotFound, cardID, from)
	}
	if from == to {
		return card, nil
	}
	if b.Column(to) == nil {
		return Card{}, fmt.Errorf("%w: %s", ErrColumnNotFound, to)
	}
	if _, err := b.RemoveCard(from, cardID); err != nil {
		return Card{}, err
	}
	if err := b.AddCard(to, card); err != nil {
		return Card{}, err
	}
	return card, nil
}

// ReplaceCards overwrites a column's card list.
func (b *Board) ReplaceCards(column ColumnID, cards []Card) error {
	col := b.Column(column)
	if col == nil {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	out := make([]Card, len(cards))
	for i := range cards {
		out[i] = cards[i].Normalize()
	}
	col.Cards = out
	return nil
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	cards := make([]Card, len(c.Cards))
	for i := range c.Cards {
		cards[i] = c.Cards[i].Clone()
	}
	c.Cards = cards
	return c
}

// Find returns the first card with the given id and its index.
func (c Column) Find(cardID string) (Card, int, bool) {
	for i, card := range c.Cards {
		if card.ID == cardID {
			return card, i, true
		}
	}
	return Card{}, -1, false
}

// IDs returns the card ids of the column in order.
func (c Column) IDs() []string {
	ids := make([]string, len(c.Cards))
	for i, card := range c.Cards {
		ids[i] = card.ID
	}
	return ids
}

// Reordered returns the column's cards arranged in orderedIDs order.
// Returns ErrOrderMismatch unless orderedIDs is exactly a permutation of the
// column's current id set.
func (c Column) Reordered(orderedIDs []string) ([]Card, error) {
	if len(orderedIDs) != len(c.Cards) {
		return nil, fmt.Errorf("%w: %s has %d cards, got %d ids", ErrOrderMismatch, c.ID, len(c.Cards), len(orderedIDs))
	}

	byID := make(map[string]Card, len(c.Cards))
	for _, card := range c.Cards {
		byID[card.ID] = card
	}
	if len(byID) != len(c.Cards) {
		return nil, fmt.Errorf("%w: %s holds duplicate card ids", ErrOrderMismatch, c.ID)
	}

	out := make([]Card, 0, len(orderedIDs))
	used := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		card, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: card %s is not in %s", ErrOrderMismatch, id, c.ID)
		}
		if _, dup := used[id]; dup {
			return nil, fmt.Errorf("%w: card %s listed twice", ErrOrderMismatch, id)
		}
		used[id] = struct{}{}
		out = append(out, card)
	}
	return out, nil
}

// WithCard returns a copy of the column's cards with cardID replaced by updated.
func (c Column) WithCard(cardID string, updated Card) ([]Card, error) {
	if _, _, ok := c.Find(cardID); !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrCardNotFound, cardID, c.ID)
	}
	out := make([]Card, len(c.Cards))
	for i, card := range c.Cards {
		if card.ID == cardID {
			out[i] = updated
		} else {
			out[i] = card
		}
	}
	return out, nil
}
