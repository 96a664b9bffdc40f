package board

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Client provides scope-namespaced Redis operations for boards.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb    *redis.Client
	origin string
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewClient creates a new board store client.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - origin: name of this client, stamped on every published event (must not be empty)
//
// Returns an error if origin is empty.
func NewClient(redisOpts *redis.Options, origin string) (*Client, error) {
	if origin == "" {
		return nil, fmt.Errorf("origin cannot be empty")
	}

	return &Client{
		rdb:    redis.NewClient(redisOpts),
		origin: origin,
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}, nil
}

// WithLogger sets the logger used for non-fatal failures such as dropped events.
func (c *Client) WithLogger(l logrus.FieldLogger) *Client {
	if l != nil {
		c.log = l
	}
	return c
}

// Origin returns the name stamped on events published by this client.
func (c *Client) Origin() string {
	return c.origin
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return transient("ping", err)
	}
	return nil
}

// ProvisionBoard creates the four column records of scope if they are missing and
// registers the scope. Existing columns and their cards are never touched.
// Returns true if at least one column was created.
func (c *Client) ProvisionBoard(ctx context.Context, scope Scope) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}

	createdAt := c.now().UnixMilli()
	created := make([]*redis.BoolCmd, 0, len(Columns))
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range Columns {
			key := ColumnKey(scope, id)
			for field, value := range ColumnToHash(&Column{ID: id, Title: id.Title()}, createdAt) {
				cmd := pipe.HSetNX(ctx, key, field, value)
				if field == "id" {
					created = append(created, cmd)
				}
			}
		}
		pipe.SAdd(ctx, ScopesKey(), string(scope))
		return nil
	})
	if err != nil {
		return false, transient("provision board", err)
	}

	provisioned := false
	for _, cmd := range created {
		if cmd.Val() {
			provisioned = true
		}
	}
	if provisioned {
		c.publish(ctx, Event{Type: EventBoardProvisioned, Scope: scope})
	}
	return provisioned, nil
}

// ListScopes returns every provisioned scope, sorted.
func (c *Client) ListScopes(ctx context.Context) ([]Scope, error) {
	members, err := c.rdb.SMembers(ctx, ScopesKey()).Result()
	if err != nil {
		return nil, transient("list scopes", err)
	}
	sort.Strings(members)
	scopes := make([]Scope, len(members))
	for i, m := range members {
		scopes[i] = Scope(m)
	}
	return scopes, nil
}

// AddCard adds card to the column's list if no equal value is already present.
// Concurrent adds of distinct cards always converge to contain both.
// Returns ErrColumnNotFound if the column has not been provisioned.
func (c *Client) AddCard(ctx context.Context, scope Scope, column ColumnID, card Card) error {
	if err := validateTarget(scope, column); err != nil {
		return err
	}
	if err := card.Validate(); err != nil {
		return err
	}
	raw, err := EncodeCard(card)
	if err != nil {
		return err
	}

	res, err := addCardScript.Run(ctx, c.rdb, []string{ColumnKey(scope, column), ColumnCardsKey(scope, column)}, raw).Int64()
	if err != nil {
		return transient("add card", err)
	}
	if res < 0 {
		return fmt.Errorf("%w: %s/%s", ErrColumnNotFound, scope, column)
	}
	if res > 0 {
		c.publish(ctx, Event{Type: EventCardAdded, Scope: scope, Column: column, CardID: card.ID})
	}
	return nil
}

// RemoveCard removes every element equal to card from the column's list.
// Idempotent: removing a value that is no longer present is a no-op, not an error.
// Because matching is by whole value, a card edited by someone else since it was read
// no longer matches and is left in place.
func (c *Client) RemoveCard(ctx context.Context, scope Scope, column ColumnID, card Card) error {
	if err := validateTarget(scope, column); err != nil {
		return err
	}
	raw, err := EncodeCard(card)
	if err != nil {
		return err
	}

	res, err := removeCardScript.Run(ctx, c.rdb, []string{ColumnKey(scope, column), ColumnCardsKey(scope, column)}, raw).Int64()
	if err != nil {
		return transient("remove card", err)
	}
	if res < 0 {
		return fmt.Errorf("%w: %s/%s", ErrColumnNotFound, scope, column)
	}
	if res > 0 {
		c.publish(ctx, Event{Type: EventCardRemoved, Scope: scope, Column: column, CardID: card.ID})
	}
	return nil
}

// ReplaceCards unconditionally overwrites the column's list.
//
// Note: this is the one primitive that is not conflict-free. Concurrent calls on the
// same column are last-write-wins, and an add or remove landing between a caller's read
// and its replace is silently lost.
func (c *Client) ReplaceCards(ctx context.Context, scope Scope, column ColumnID, cards []Card) error {
	if err := validateTarget(scope, column); err != nil {
		return err
	}
	for i := range cards {
		if err := cards[i].Validate(); err != nil {
			return err
		}
	}
	encoded, err := EncodeCards(cards)
	if err != nil {
		return err
	}
	args := make([]interface{}, len(encoded))
	for i, raw := range encoded {
		args[i] = raw
	}

	res, err := replaceCardsScript.Run(ctx, c.rdb, []string{ColumnKey(scope, column), ColumnCardsKey(scope, column)}, args...).Int64()
	if err != nil {
		return transient("replace cards", err)
	}
	if res < 0 {
		return fmt.Errorf("%w: %s/%s", ErrColumnNotFound, scope, column)
	}
	c.publish(ctx, Event{Type: EventColumnReplaced, Scope: scope, Column: column})
	return nil
}

// GetColumn reads one column record and its cards in a single MULTI/EXEC.
func (c *Client) GetColumn(ctx context.Context, scope Scope, column ColumnID) (*Column, error) {
	if err := validateTarget(scope, column); err != nil {
		return nil, err
	}

	var meta *redis.MapStringStringCmd
	var cards *redis.StringSliceCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		meta = pipe.HGetAll(ctx, ColumnKey(scope, column))
		cards = pipe.LRange(ctx, ColumnCardsKey(scope, column), 0, -1)
		return nil
	})
	if err != nil {
		return nil, transient("get column", err)
	}

	return buildColumn(scope, column, meta.Val(), cards.Val())
}

// GetBoard reads every column of scope as one consistent snapshot.
// Returns ErrColumnNotFound if the board has not been provisioned.
func (c *Client) GetBoard(ctx context.Context, scope Scope) (*Board, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	metas := make([]*redis.MapStringStringCmd, len(Columns))
	lists := make([]*redis.StringSliceCmd, len(Columns))
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range Columns {
			metas[i] = pipe.HGetAll(ctx, ColumnKey(scope, id))
			lists[i] = pipe.LRange(ctx, ColumnCardsKey(scope, id), 0, -1)
		}
		return nil
	})
	if err != nil {
		return nil, transient("get board", err)
	}

	b := &Board{Scope: scope, Columns: make([]Column, 0, len(Columns))}
	for i, id := range Columns {
		col, err := buildColumn(scope, id, metas[i].Val(), lists[i].Val())
		if err != nil {
			return nil, err
		}
		b.Columns = append(b.Columns, *col)
	}
	return b, nil
}

func buildColumn(scope Scope, id ColumnID, meta map[string]string, raw []string) (*Column, error) {
	// HGETALL returns an empty map for missing keys
	if len(meta) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrColumnNotFound, scope, id)
	}
	col, err := HashToColumn(meta)
	if err != nil {
		return nil, err
	}
	cards, err := DecodeCards(raw)
	if err != nil {
		return nil, fmt.Errorf("column %s/%s: %w", scope, id, err)
	}
	col.Cards = cards
	return col, nil
}

// publish announces a mutation. The mutation is already durable, so a failed
// publish is logged and not returned.
func (c *Client) publish(ctx context.Context, e Event) {
	e.Origin = c.origin
	e.AtMs = c.now().UnixMilli()

	data, err := EncodeEvent(e)
	if err != nil {
		c.log.WithError(err).Warn("failed to encode board event")
		return
	}
	if err := c.rdb.Publish(ctx, BoardEventsChannel(e.Scope), data).Err(); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"event_type": string(e.Type),
			"scope":      string(e.Scope),
			"column":     string(e.Column),
		}).Warn("failed to publish board event")
	}
}

func validateTarget(scope Scope, column ColumnID) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return column.Validate()
}
