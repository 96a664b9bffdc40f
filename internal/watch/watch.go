package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/lanes/pkg/board"
	"github.com/sirupsen/logrus"
)

// ColumnReader is the slice of the board store that polling needs.
type ColumnReader interface {
	GetColumn(ctx context.Context, scope board.Scope, column board.ColumnID) (*board.Column, error)
}

// PollInterval is how often WaitForCard re-reads the column.
var PollInterval = 200 * time.Millisecond

// WaitForCard polls until the card is in the column.
// Returns the stored card or an error if timeout occurs.
func WaitForCard(ctx context.Context, store ColumnReader, scope board.Scope, column board.ColumnID, cardID string, timeout time.Duration) (board.Card, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		col, err := store.GetColumn(ctx, scope, column)
		switch {
		case err == nil:
			if card, _, ok := col.Find(cardID); ok {
				return card, nil
			}
		case board.IsTransient(err):
			// Redis hiccup, keep polling
		default:
			return board.Card{}, fmt.Errorf("failed to read column %s: %w", column, err)
		}

		select {
		case <-ctx.Done():
			return board.Card{}, ctx.Err()
		case <-timeoutCh:
			return board.Card{}, fmt.Errorf("timeout waiting for card %s in %s after %v", cardID, column, timeout)
		case <-ticker.C:
		}
	}
}

// Filter narrows a stream to one column and/or one card. Zero values match everything.
type Filter struct {
	Column board.ColumnID
	CardID string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e board.Event) bool {
	if f.Column != "" && e.Column != f.Column {
		return false
	}
	if f.CardID != "" && e.CardID != f.CardID {
		return false
	}
	return true
}

// Handler receives each event that passes the filter. Returning an error stops the stream.
type Handler func(board.Event) error

// ErrSubscriptionClosed is returned when the event channel closes before ctx is done.
var ErrSubscriptionClosed = errors.New("event subscription closed")

// Stream delivers events from sub to handle until ctx is cancelled.
// Malformed messages reported on the error channel are logged and skipped.
func Stream(ctx context.Context, sub *board.Subscription, filter Filter, handle Handler, log logrus.FieldLogger) error {
	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.WithError(err).Warn("Skipping malformed board event")

		case e, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			if !filter.Match(e) {
				continue
			}
			if err := handle(e); err != nil {
				return err
			}
		}
	}
}
