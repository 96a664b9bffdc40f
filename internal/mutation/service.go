// Package mutation implements the card operations of the board on top of the
// store's atomic primitives.
//
// The Service is stateless: every call reads what it needs from the store, applies
// the board rules and writes back through AddCard, RemoveCard or ReplaceCards.
// Transient store failures are retried with bounded exponential backoff; every
// retried step is idempotent.
package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/lanes/internal/ideas"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the subset of the board store the service needs.
// *board.Client implements it.
type Store interface {
	AddCard(ctx context.Context, scope board.Scope, column board.ColumnID, card board.Card) error
	RemoveCard(ctx context.Context, scope board.Scope, column board.ColumnID, card board.Card) error
	ReplaceCards(ctx context.Context, scope board.Scope, column board.ColumnID, cards []board.Card) error
	GetColumn(ctx context.Context, scope board.Scope, column board.ColumnID) (*board.Column, error)
	GetBoard(ctx context.Context, scope board.Scope) (*board.Board, error)
}

// RetryPolicy bounds how often a transient store failure is retried.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     time.Second,
}

// CardData is the caller-supplied content of a new card.
// ID is optional: a valid id not yet used on the board is kept, otherwise a fresh
// UUID is generated.
type CardData struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Service exposes move, reorder, assign, add and delete.
type Service struct {
	store     Store
	generator ideas.Generator
	policy    RetryPolicy
	log       logrus.FieldLogger
}

// NewService creates a mutation service.
// A nil generator disables GenerateCard; a zero policy uses DefaultRetryPolicy.
func NewService(store Store, generator ideas.Generator, policy RetryPolicy, log logrus.FieldLogger) *Service {
	if generator == nil {
		generator = ideas.Disabled
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:     store,
		generator: generator,
		policy:    policy,
		log:       log.WithField("component", "mutation"),
	}
}

// MoveCard moves a card from one column to another as two independent store calls:
// remove from the source, then add to the destination. It is not cross-column atomic.
// If the add fails after the remove succeeded, the card is absent from both columns
// until the next reconciliation; that condition is logged as partial_move.
func (s *Service) MoveCard(ctx context.Context, scope board.Scope, cardID string, from, to board.ColumnID) (board.Card, error) {
	if err := validate(scope, from, to); err != nil {
		return board.Card{}, err
	}

	col, err := s.getColumn(ctx, scope, from)
	if err != nil {
		return board.Card{}, err
	}
	card, _, ok := col.Find(cardID)
	if !ok {
		return board.Card{}, fmt.Errorf("%w: %s in %s", board.ErrCardNotFound, cardID, from)
	}
	if from == to {
		return card, nil
	}

	if err := s.retry(ctx, "remove_card", func() error {
		return s.store.RemoveCard(ctx, scope, from, card)
	}); err != nil {
		return board.Card{}, fmt.Errorf("failed to remove card from %s: %w", from, err)
	}

	if err := s.retry(ctx, "add_card", func() error {
		return s.store.AddCard(ctx, scope, to, card)
	}); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event_type": "partial_move",
			"scope":      string(scope),
			"card_id":    cardID,
			"from":       string(from),
			"to":         string(to),
		}).Error("card removed from source but not added to destination")
		return board.Card{}, fmt.Errorf("failed to add card to %s: %w", to, err)
	}

	s.log.WithFields(logrus.Fields{
		"event_type": "card_moved",
		"scope":      string(scope),
		"card_id":    cardID,
		"from":       string(from),
		"to":         string(to),
	}).Debug("card moved")
	return card, nil
}

// ReorderColumn replaces the column's list with its cards in orderedIDs order.
// Returns board.ErrOrderMismatch unless orderedIDs is exactly a permutation of the
// column's current ids; the column is left unchanged in that case.
func (s *Service) ReorderColumn(ctx context.Context, scope board.Scope, column board.ColumnID, orderedIDs []string) error {
	if err := validate(scope, column); err != nil {
		return err
	}

	col, err := s.getColumn(ctx, scope, column)
	if err != nil {
		return err
	}
	cards, err := col.Reordered(orderedIDs)
	if err != nil {
		return err
	}

	return s.retry(ctx, "replace_cards", func() error {
		return s.store.ReplaceCards(ctx, scope, column, cards)
	})
}

// SetAssignee adds name to (assign=true) or removes every occurrence of name from
// (assign=false) a card's assignee set, rewriting the whole column.
// The name is not checked against the roster.
func (s *Service) SetAssignee(ctx context.Context, scope board.Scope, column board.ColumnID, cardID, name string, assign bool) (board.Card, error) {
	if err := validate(scope, column); err != nil {
		return board.Card{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return board.Card{}, fmt.Errorf("%w: assignee name is required", board.ErrInvalidArgument)
	}

	col, err := s.getColumn(ctx, scope, column)
	if err != nil {
		return board.Card{}, err
	}
	card, _, ok := col.Find(cardID)
	if !ok {
		return board.Card{}, fmt.Errorf("%w: %s in %s", board.ErrCardNotFound, cardID, column)
	}

	updated := card.WithAssignee(name, assign)
	cards, err := col.WithCard(cardID, updated)
	if err != nil {
		return board.Card{}, err
	}

	if err := s.retry(ctx, "replace_cards", func() error {
		return s.store.ReplaceCards(ctx, scope, column, cards)
	}); err != nil {
		return board.Card{}, err
	}
	return updated, nil
}

// AddCard creates a card with empty assignees in column.
func (s *Service) AddCard(ctx context.Context, scope board.Scope, column board.ColumnID, data CardData) (board.Card, error) {
	if err := validate(scope, column); err != nil {
		return board.Card{}, err
	}
	title := strings.TrimSpace(data.Title)
	if title == "" {
		return board.Card{}, fmt.Errorf("%w: card title is required", board.ErrInvalidArgument)
	}

	id, err := s.cardID(ctx, scope, data.ID)
	if err != nil {
		return board.Card{}, err
	}

	card := board.Card{
		ID:          id,
		Title:       title,
		Description: strings.TrimSpace(data.Description),
		Tags:        data.Tags,
		Assignees:   []string{},
	}.Normalize()

	if err := s.retry(ctx, "add_card", func() error {
		return s.store.AddCard(ctx, scope, column, card)
	}); err != nil {
		return board.Card{}, err
	}

	s.log.WithFields(logrus.Fields{
		"event_type": "card_added",
		"scope":      string(scope),
		"column":     string(column),
		"card_id":    card.ID,
	}).Debug("card added")
	return card, nil
}

// DeleteCard removes a card. Only cards in idea can be deleted; any other column
// fails with board.ErrForbidden even when the card exists there.
func (s *Service) DeleteCard(ctx context.Context, scope board.Scope, column board.ColumnID, cardID string) (board.Card, error) {
	if err := validate(scope, column); err != nil {
		return board.Card{}, err
	}
	if column != board.ColumnIdea {
		return board.Card{}, fmt.Errorf("%w: cards can only be deleted from %s, not %s", board.ErrForbidden, board.ColumnIdea, column)
	}

	col, err := s.getColumn(ctx, scope, column)
	if err != nil {
		return board.Card{}, err
	}
	card, _, ok := col.Find(cardID)
	if !ok {
		return board.Card{}, fmt.Errorf("%w: %s in %s", board.ErrCardNotFound, cardID, column)
	}

	if err := s.retry(ctx, "remove_card", func() error {
		return s.store.RemoveCard(ctx, scope, column, card)
	}); err != nil {
		return board.Card{}, err
	}
	return card, nil
}

// GenerateCard asks the idea generator for content and adds it to idea.
// When generation fails no card is created and the error wraps ideas.ErrGeneration.
func (s *Service) GenerateCard(ctx context.Context, scope board.Scope, prompt string) (board.Card, error) {
	if err := scope.Validate(); err != nil {
		return board.Card{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return board.Card{}, fmt.Errorf("%w: prompt is required", board.ErrInvalidArgument)
	}

	idea, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.log.WithError(err).WithField("event_type", "generation_failed").Warn("idea generation failed")
		return board.Card{}, err
	}

	return s.AddCard(ctx, scope, board.ColumnIdea, CardData{
		Title:       idea.Title,
		Description: idea.Description,
		Tags:        idea.Tags,
	})
}

// cardID keeps a proposed id when it is usable and not already on the board.
func (s *Service) cardID(ctx context.Context, scope board.Scope, proposed string) (string, error) {
	proposed = strings.TrimSpace(proposed)
	if proposed == "" {
		return uuid.New().String(), nil
	}

	var b *board.Board
	err := s.retry(ctx, "get_board", func() error {
		var err error
		b, err = s.store.GetBoard(ctx, scope)
		return err
	})
	if err != nil {
		return "", err
	}
	if _, _, used := b.Locate(proposed); used {
		return uuid.New().String(), nil
	}
	return proposed, nil
}

func (s *Service) getColumn(ctx context.Context, scope board.Scope, column board.ColumnID) (*board.Column, error) {
	var col *board.Column
	err := s.retry(ctx, "get_column", func() error {
		var err error
		col, err = s.store.GetColumn(ctx, scope, column)
		return err
	})
	return col, err
}

// retry runs fn until it succeeds, fails with a non-transient error, or the policy
// is exhausted. Running out of ctx is reported as a transient failure of op.
func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.policy.InitialInterval
	exp.MaxInterval = s.policy.MaxInterval
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.policy.MaxAttempts-1)), ctx)

	err := backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !board.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event_type": "store_retry",
			"op":         op,
			"wait":       wait.String(),
		}).Warn("transient store failure, retrying")
	})
	if err != nil && ctx.Err() != nil && !board.IsTransient(err) && !board.IsTerminal(err) {
		return &board.TransientError{Op: op, Err: err}
	}
	return err
}

func validate(scope board.Scope, columns ...board.ColumnID) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	for _, c := range columns {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}
