package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Subscription represents an active Pub/Sub subscription to board events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to mutation events of one board.
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once, so subscribers must treat events as hints to refetch, never as a log.
func (c *Client) SubscribeEvents(ctx context.Context, scope Scope) (*Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	pubsub := c.rdb.Subscribe(ctx, BoardEventsChannel(scope))

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, transient("subscribe", err)
	}

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal board event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
