package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/lanes/pkg/board"
	"github.com/olekukonko/tablewriter"
)

// Format selects how board output is written.
type Format string

const (
	// FormatTable is the human-readable default
	FormatTable Format = "table"

	// FormatJSON writes the whole board as one pretty-printed document
	FormatJSON Format = "json"

	// FormatJSONL writes one card per line, tagged with its column
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a user-supplied output format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (must be 'table', 'json', or 'jsonl')", board.ErrInvalidArgument, s)
	}
}

// Board writes b in the requested format.
func Board(w io.Writer, b *board.Board, format Format) error {
	switch format {
	case FormatJSON:
		return BoardJSON(w, b)
	case FormatJSONL:
		return CardsJSONL(w, b)
	default:
		return BoardTable(w, b)
	}
}

// BoardTable writes one row per card, grouped by column in pipeline order.
// Empty columns get a single placeholder row so every stage stays visible.
func BoardTable(w io.Writer, b *board.Board) error {
	fmt.Fprintf(w, "Board '%s':\n\n", b.Scope)

	table := tablewriter.NewWriter(w)
	table.Header("Column", "ID", "Title", "Assignees", "Tags")

	for _, col := range b.Columns {
		title := formatColumn(col)
		if len(col.Cards) == 0 {
			if err := table.Append([]string{title, "-", "-", "-", "-"}); err != nil {
				return fmt.Errorf("failed to render board: %w", err)
			}
			continue
		}
		for _, card := range col.Cards {
			row := []string{title, formatID(card.ID), formatTitle(card.Title), formatSet(card.Assignees), formatSet(card.Tags)}
			if err := table.Append(row); err != nil {
				return fmt.Errorf("failed to render board: %w", err)
			}
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render board: %w", err)
	}

	count := b.CardCount()
	noun := "card"
	if count != 1 {
		noun = "cards"
	}
	fmt.Fprintf(w, "\n%d %s\n", count, noun)
	return nil
}

// cardLine is the JSONL record: a card plus the column it sits in.
type cardLine struct {
	Column board.ColumnID `json:"column"`
	board.Card
}

// CardsJSONL writes every card as a single-line JSON object.
// This format is ideal for streaming and processing with tools like jq.
func CardsJSONL(w io.Writer, b *board.Board) error {
	enc := json.NewEncoder(w)
	for _, col := range b.Columns {
		for _, card := range col.Cards {
			if err := enc.Encode(cardLine{Column: col.ID, Card: card.Normalize()}); err != nil {
				return fmt.Errorf("failed to write JSONL output: %w", err)
			}
		}
	}
	return nil
}

// BoardJSON writes the board as pretty-printed JSON.
func BoardJSON(w io.Writer, b *board.Board) error {
	return writeIndented(w, b)
}

// CardJSON writes a single card and its column as pretty-printed JSON.
func CardJSON(w io.Writer, column board.ColumnID, card board.Card) error {
	return writeIndented(w, cardLine{Column: column, Card: card.Normalize()})
}

// EventLine formats a board event for a terminal.
func EventLine(e board.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-17s", formatTimestamp(e.AtMs), e.Type)
	if e.Column != "" {
		fmt.Fprintf(&sb, " column=%s", e.Column)
	}
	if e.CardID != "" {
		fmt.Fprintf(&sb, " card=%s", formatID(e.CardID))
	}
	if e.Origin != "" {
		fmt.Fprintf(&sb, " by=%s", e.Origin)
	}
	return sb.String()
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func formatColumn(col board.Column) string {
	title := col.Title
	if title == "" {
		title = col.ID.Title()
	}
	return fmt.Sprintf("%s (%d)", title, len(col.Cards))
}

// formatID truncates UUIDs to the first 8 characters; the resolver accepts any unique prefix.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTitle keeps the first non-empty line, capped at 40 characters.
func formatTitle(title string) string {
	var first string
	for _, line := range strings.Split(title, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			first = trimmed
			break
		}
	}
	if first == "" {
		return "-"
	}
	if len(first) > 40 {
		return first[:37] + "..."
	}
	return first
}

func formatSet(values []string) string {
	values = board.Card{Tags: values}.Normalize().Tags
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

// formatTimestamp renders a Unix millisecond timestamp as wall-clock time.
func formatTimestamp(ms int64) string {
	if ms == 0 {
		return "--:--:--"
	}
	return time.UnixMilli(ms).Format("15:04:05")
}
