package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis values
//
// Cards are stored as list elements holding their canonical JSON encoding. Whole-value
// matching on the server (LREM, membership checks in Lua) relies on two equal cards
// always producing the same bytes, so every card is normalized before encoding and
// the struct field order fixes the key order.

// EncodeCard returns the canonical encoding of a card.
func EncodeCard(c Card) (string, error) {
	data, err := json.Marshal(c.Normalize())
	if err != nil {
		return "", fmt.Errorf("failed to marshal card: %w", err)
	}
	return string(data), nil
}

// DecodeCard parses a stored card. Missing sets decode as empty sets.
func DecodeCard(raw string) (Card, error) {
	var c Card
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Card{}, fmt.Errorf("failed to unmarshal card: %w", err)
	}
	return c.Normalize(), nil
}

// EncodeCards encodes a card list in order.
func EncodeCards(cards []Card) ([]string, error) {
	out := make([]string, 0, len(cards))
	for i := range cards {
		raw, err := EncodeCard(cards[i])
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// DecodeCards decodes a stored card list in order.
func DecodeCards(raw []string) ([]Card, error) {
	cards := make([]Card, 0, len(raw))
	for _, r := range raw {
		c, err := DecodeCard(r)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// ColumnToHash converts a column record to its Redis hash form. Cards are stored separately.
func ColumnToHash(c *Column, createdAtMs int64) map[string]interface{} {
	return map[string]interface{}{
		"id":            string(c.ID),
		"title":         c.Title,
		"created_at_ms": createdAtMs,
	}
}

// HashToColumn converts a Redis column record back to a Column without cards.
func HashToColumn(hash map[string]string) (*Column, error) {
	id := ColumnID(hash["id"])
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("invalid column record: %w", err)
	}
	if _, err := strconv.ParseInt(hash["created_at_ms"], 10, 64); err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	title := hash["title"]
	if title == "" {
		title = id.Title()
	}

	return &Column{ID: id, Title: title, Cards: []Card{}}, nil
}

// EncodeEvent marshals an event for publishing.
func EncodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}
