package board

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Scope identifies which board a request targets: "global" or a community identifier.
type Scope string

// GlobalScope is the board shared by every community.
const GlobalScope Scope = "global"

var scopePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Validate checks that the scope can be embedded in a Redis key.
func (s Scope) Validate() error {
	if !scopePattern.MatchString(string(s)) {
		return fmt.Errorf("%w: invalid scope %q (allowed: letters, digits, '_', '.', '-', max 64)", ErrInvalidArgument, string(s))
	}
	return nil
}

// ColumnID names one of the fixed pipeline stages.
type ColumnID string

const (
	// ColumnIdea is where every card is created and the only column cards can be deleted from
	ColumnIdea ColumnID = "idea"

	// ColumnNext holds cards queued for work
	ColumnNext ColumnID = "next"

	// ColumnInProgress holds cards being worked on
	ColumnInProgress ColumnID = "in-progress"

	// ColumnDone holds finished cards
	ColumnDone ColumnID = "done"
)

// Columns lists every column in pipeline order.
var Columns = []ColumnID{ColumnIdea, ColumnNext, ColumnInProgress, ColumnDone}

var columnTitles = map[ColumnID]string{
	ColumnIdea:       "Idea",
	ColumnNext:       "Next",
	ColumnInProgress: "In Progress",
	ColumnDone:       "Done",
}

// Validate checks that c is one of the fixed columns.
func (c ColumnID) Validate() error {
	if _, ok := columnTitles[c]; !ok {
		return fmt.Errorf("%w: invalid column %q (must be 'idea', 'next', 'in-progress', or 'done')", ErrInvalidArgument, string(c))
	}
	return nil
}

// Title returns the default display title of the column.
func (c ColumnID) Title() string {
	return columnTitles[c]
}

// Index returns the position of c in the pipeline, or -1 for an unknown column.
func (c ColumnID) Index() int {
	for i, id := range Columns {
		if id == c {
			return i
		}
	}
	return -1
}

// Next returns the column to the right of c.
func (c ColumnID) Next() (ColumnID, bool) {
	i := c.Index()
	if i < 0 || i == len(Columns)-1 {
		return "", false
	}
	return Columns[i+1], true
}

// Prev returns the column to the left of c.
func (c ColumnID) Prev() (ColumnID, bool) {
	i := c.Index()
	if i <= 0 {
		return "", false
	}
	return Columns[i-1], true
}

// Card is a work item on the board.
// Tags and Assignees have set semantics; use Normalize to obtain the canonical form.
type Card struct {
	ID          string   `json:"id"`          // Opaque, unique within a board (UUID when generated)
	Title       string   `json:"title"`       // Short summary shown on the board
	Description string   `json:"description"` // Free text, may be empty
	Tags        []string `json:"tags"`        // Set of labels
	Assignees   []string `json:"assignees"`   // Set of collaborator display names
}

// Validate performs basic validation on a card.
func (c *Card) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: card id is required", ErrInvalidArgument)
	}
	return nil
}

// Normalize returns a copy of the card with its sets deduplicated and sorted.
// Nil slices become empty slices so that encoded cards compare byte-for-byte.
func (c Card) Normalize() Card {
	c.Tags = normalizeSet(c.Tags)
	c.Assignees = normalizeSet(c.Assignees)
	return c
}

// Equal reports whether two cards are the same value once normalized.
func (c Card) Equal(other Card) bool {
	a, b := c.Normalize(), other.Normalize()
	if a.ID != b.ID || a.Title != b.Title || a.Description != b.Description {
		return false
	}
	return equalStrings(a.Tags, b.Tags) && equalStrings(a.Assignees, b.Assignees)
}

// HasAssignee reports whether name is in the assignee set.
func (c Card) HasAssignee(name string) bool {
	for _, a := range c.Assignees {
		if a == name {
			return true
		}
	}
	return false
}

// WithAssignee returns a normalized copy of the card with name added to
// (assign=true) or every occurrence removed from (assign=false) the assignee set.
func (c Card) WithAssignee(name string, assign bool) Card {
	out := make([]string, 0, len(c.Assignees)+1)
	for _, a := range c.Assignees {
		if a != name {
			out = append(out, a)
		}
	}
	if assign {
		out = append(out, name)
	}
	c.Assignees = out
	return c.Normalize()
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	c.Tags = append([]string{}, c.Tags...)
	c.Assignees = append([]string{}, c.Assignees...)
	return c
}

// Column is one pipeline stage and its ordered cards.
type Column struct {
	ID    ColumnID `json:"id"`
	Title string   `json:"title"`
	Cards []Card   `json:"cards"`
}

// Board is every column of one scope, in pipeline order.
type Board struct {
	Scope   Scope    `json:"scope"`
	Columns []Column `json:"columns"`
}

// Collaborator is an advisory roster entry.
type Collaborator struct {
	Name      string `json:"name" yaml:"name"`
	AvatarURL string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
}

// EventType identifies which store primitive produced an Event.
type EventType string

const (
	// EventCardAdded is published after AddCard inserted a card
	EventCardAdded EventType = "card_added"

	// EventCardRemoved is published after RemoveCard removed at least one card
	EventCardRemoved EventType = "card_removed"

	// EventColumnReplaced is published after ReplaceCards overwrote a column
	EventColumnReplaced EventType = "column_replaced"

	// EventBoardProvisioned is published after ProvisionBoard created missing columns
	EventBoardProvisioned EventType = "board_provisioned"
)

// Event announces a successful store mutation to subscribers.
type Event struct {
	Type   EventType `json:"type"`
	Scope  Scope     `json:"scope"`
	Column ColumnID  `json:"column,omitempty"`
	CardID string    `json:"card_id,omitempty"`
	Origin string    `json:"origin,omitempty"` // Name of the store client that made the change
	AtMs   int64     `json:"at_ms"`
}

func normalizeSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
