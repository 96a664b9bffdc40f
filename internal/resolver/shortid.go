package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/lanes/pkg/board"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// Match is a card located on a board.
type Match struct {
	Column board.ColumnID
	Card   board.Card
}

// ResolveCard finds the card a user referred to on a board snapshot.
//
// An exact id match always wins, whatever its length. Otherwise ref is treated as a
// prefix of at least MinShortIDLength characters and must match exactly one card.
func ResolveCard(b *board.Board, ref string) (Match, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Match{}, fmt.Errorf("%w: card reference is empty", board.ErrInvalidArgument)
	}

	if col, card, ok := b.Locate(ref); ok {
		return Match{Column: col, Card: card}, nil
	}

	if len(ref) < MinShortIDLength {
		return Match{}, &NotFoundError{ShortID: ref}
	}

	var matches []Match
	for _, col := range b.Columns {
		for _, card := range col.Cards {
			if strings.HasPrefix(card.ID, ref) {
				matches = append(matches, Match{Column: col.ID, Card: card})
			}
		}
	}

	switch len(matches) {
	case 0:
		return Match{}, &NotFoundError{ShortID: ref}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.Card.ID
		}
		sort.Strings(ids)
		return Match{}, &AmbiguousError{ShortID: ref, Matches: ids}
	}
}

// NotFoundError indicates no card matched the reference.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no card found matching '%s'", e.ShortID)
}

// Unwrap lets errors.Is(err, board.ErrCardNotFound) match.
func (e *NotFoundError) Unwrap() error {
	return board.ErrCardNotFound
}

// AmbiguousError indicates multiple cards matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d cards", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists all matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ambiguous short ID '%s' matches %d cards:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&sb, "  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&sb, "  ...and %d more\n", len(err.Matches)-10)
	}

	sb.WriteString("\nUse a longer prefix to uniquely identify the card.")
	return sb.String()
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var ambiguous *AmbiguousError
	return errors.As(err, &ambiguous)
}
