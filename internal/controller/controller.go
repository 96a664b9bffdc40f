// Package controller keeps a client's optimistic view of one board.
//
// Every user action is applied to the displayed board synchronously using the same
// rules as the mutation service, then sent to the service in the background. When a
// call fails, or the board is known to be stale, the displayed board is discarded and
// replaced wholesale with a fresh read once the client's in-flight mutations settle.
// The displayed board is never patched incrementally after a failure.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/lanes/internal/mutation"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNotLoaded is returned by actions issued before Load succeeded.
var ErrNotLoaded = errors.New("board not loaded")

const (
	refetchInitialInterval = 100 * time.Millisecond
	refetchMaxInterval     = 5 * time.Second
)

// Service is the mutation API the controller drives. *mutation.Service implements it.
type Service interface {
	MoveCard(ctx context.Context, scope board.Scope, cardID string, from, to board.ColumnID) (board.Card, error)
	ReorderColumn(ctx context.Context, scope board.Scope, column board.ColumnID, orderedIDs []string) error
	SetAssignee(ctx context.Context, scope board.Scope, column board.ColumnID, cardID, name string, assign bool) (board.Card, error)
	AddCard(ctx context.Context, scope board.Scope, column board.ColumnID, data mutation.CardData) (board.Card, error)
	DeleteCard(ctx context.Context, scope board.Scope, column board.ColumnID, cardID string) (board.Card, error)
}

// Fetcher reads the authoritative board. *board.Client implements it.
type Fetcher interface {
	GetBoard(ctx context.Context, scope board.Scope) (*board.Board, error)
}

// Notice reports a mutation that failed after it was applied locally.
type Notice struct {
	Op     string
	CardID string
	Column board.ColumnID
	Err    error
}

func (n Notice) String() string {
	if n.CardID != "" {
		return fmt.Sprintf("%s %s failed: %v", n.Op, n.CardID, n.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", n.Op, n.Column, n.Err)
}

// Options configures a Controller.
type Options struct {
	// Origin is the store client name; events carrying it are this client's own.
	Origin string

	// MutationTimeout bounds each service call. Zero means 10s.
	MutationTimeout time.Duration

	// MaxInFlight bounds concurrent service calls. Zero means 8.
	MaxInFlight int

	Logger logrus.FieldLogger
}

// Controller is the optimistic cache of one board. Safe for concurrent use.
type Controller struct {
	scope   board.Scope
	svc     Service
	store   Fetcher
	origin  string
	timeout time.Duration
	log     logrus.FieldLogger

	group   *errgroup.Group
	notices chan Notice

	mu          sync.Mutex
	displayed   *board.Board
	inflight    int
	epoch       uint64
	dirty       bool
	reconciling bool
	lastErr     error
	chains      map[string]chan struct{}
	changed     chan struct{}
	stored      map[string]string
	refetch     *backoff.ExponentialBackOff
	retryTimer  *time.Timer
	closed      bool
}

// New creates a controller for scope. Call Load before issuing actions.
func New(scope board.Scope, svc Service, store Fetcher, opts Options) *Controller {
	if opts.MutationTimeout <= 0 {
		opts.MutationTimeout = 10 * time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 8
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	group := new(errgroup.Group)
	group.SetLimit(opts.MaxInFlight)

	refetch := backoff.NewExponentialBackOff()
	refetch.InitialInterval = refetchInitialInterval
	refetch.MaxInterval = refetchMaxInterval
	refetch.MaxElapsedTime = 0
	refetch.Reset()

	return &Controller{
		scope:   scope,
		svc:     svc,
		store:   store,
		origin:  opts.Origin,
		timeout: opts.MutationTimeout,
		log:     opts.Logger.WithFields(logrus.Fields{"component": "controller", "scope": string(scope)}),
		group:   group,
		notices: make(chan Notice, 32),
		chains:  make(map[string]chan struct{}),
		changed: make(chan struct{}),
		stored:  make(map[string]string),
		refetch: refetch,
	}
}

// Close stops scheduled refetches. Mutations already dispatched still run to completion.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// StoredID returns the id the service stored a locally added card under.
// It differs from the local id only when the service had to pick a new one.
func (c *Controller) StoredID(localID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.stored[localID]; ok {
		return id
	}
	return localID
}

// Notices delivers failed-mutation notices. Notices are dropped when nobody reads them.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

// Snapshot returns a deep copy of the displayed board, or nil before Load.
func (c *Controller) Snapshot() *board.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayed == nil {
		return nil
	}
	return c.displayed.Clone()
}

// Load fetches the board and installs it as the displayed board.
func (c *Controller) Load(ctx context.Context) error {
	b, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == 0 || c.displayed == nil {
		c.displayed = b
		c.dirty = false
		c.lastErr = nil
		c.notifyLocked()
		return nil
	}
	// local applies happened while loading, b may predate them
	c.markStaleLocked()
	return nil
}

// Move moves a card between columns.
func (c *Controller) Move(cardID string, from, to board.ColumnID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayed == nil {
		return ErrNotLoaded
	}

	if _, err := c.displayed.MoveCard(cardID, from, to); err != nil {
		return c.rejectLocked(err)
	}
	if from == to {
		return nil
	}

	c.dispatchLocked("move", cardID, from, keys(cardID, from, to), func(ctx context.Context) (bool, error) {
		_, err := c.svc.MoveCard(ctx, c.scope, cardID, from, to)
		return false, err
	})
	return nil
}

// Reorder arranges a column's cards in orderedIDs order.
func (c *Controller) Reorder(column board.ColumnID, orderedIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayed == nil {
		return ErrNotLoaded
	}
	if err := column.Validate(); err != nil {
		return err
	}

	cards, err := c.displayed.Column(column).Reordered(orderedIDs)
	if err != nil {
		return c.rejectLocked(err)
	}
	if err := c.displayed.ReplaceCards(column, cards); err != nil {
		return c.rejectLocked(err)
	}

	ids := append([]string(nil), orderedIDs...)
	c.dispatchLocked("reorder", "", column, keys("", column), func(ctx context.Context) (bool, error) {
		return false, c.svc.ReorderColumn(ctx, c.scope, column, ids)
	})
	return nil
}

// Assign adds name to (assign=true) or removes it from a card's assignees.
func (c *Controller) Assign(column board.ColumnID, cardID, name string, assign bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayed == nil {
		return ErrNotLoaded
	}
	if err := column.Validate(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: assignee name is required", board.ErrInvalidArgument)
	}

	col := c.displayed.Column(column)
	card, _, ok := col.Find(cardID)
	if !ok {
		return c.rejectLocked(fmt.Errorf("%w: %s in %s", board.ErrCardNotFound, cardID, column))
	}
	cards, err := col.WithCard(cardID, card.WithAssignee(name, assign))
	if err != nil {
		return c.rejectLocked(err)
	}
	if err := c.displayed.ReplaceCards(column, cards); err != nil {
		return c.rejectLocked(err)
	}

	c.dispatchLocked("assign", cardID, column, keys(cardID, column), func(ctx context.Context) (bool, error) {
		_, err := c.svc.SetAssignee(ctx, c.scope, column, cardID, name, assign)
		return false, err
	})
	return nil
}

// Add creates a card under a locally generated id and returns it.
func (c *Controller) Add(column board.ColumnID, data mutation.CardData) (board.Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayed == nil {
		return board.Card{}, ErrNotLoaded
	}
	if err := column.Validate(); err != nil {
		return board.Card{}, err
	}
	data.Title = strings.TrimSpace(data.Title)
	if data.Title == "" {
		return board.Card{}, fmt.Errorf("%w: card title is required", board.ErrInvalidArgument)
	}

	data.ID = uuid.New().String()
	card := board.Card{
		ID:          data.ID,
		Title:       data.Title,
		Description: strings.TrimSpace(data.Description),
		Tags:        data.Tags,
		Assignees:   []string{},
	}.Normalize()
	if err := c.displayed.AddCard(column, card); err != nil {
		return board.Card{}, c.rejectLocked(err)
	}

	c.dispatchLocked("add", card.ID, column, keys(card.ID, column), func(ctx context.Context) (bool, error) {
		stored, err := c.svc.AddCard(ctx, c.scope, column, data)
		if err != nil {
			return false, err
		}
		if stored.ID == data.ID {
			return false, nil
		}
		// the service picked another id, so the displayed card is wrong
		c.mu.Lock()
		c.stored[data.ID] = stored.ID
		c.mu.Unlock()
		return true, nil
	})
	return card, nil
}

// Delete removes a card. Only cards in idea can be deleted.
func (c *Controller) Delete(column board.ColumnID, cardID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayed == nil {
		return ErrNotLoaded
	}
	if err := column.Validate(); err != nil {
		return err
	}
	if column != board.ColumnIdea {
		return fmt.Errorf("%w: cards can only be deleted from %s, not %s", board.ErrForbidden, board.ColumnIdea, column)
	}

	if _, err := c.displayed.RemoveCard(column, cardID); err != nil {
		return c.rejectLocked(err)
	}

	c.dispatchLocked("delete", cardID, column, keys(cardID, column), func(ctx context.Context) (bool, error) {
		_, err := c.svc.DeleteCard(ctx, c.scope, column, cardID)
		return false, err
	})
	return nil
}

// Settle blocks until no mutation is in flight and no reconciliation is running.
// Returns the reconciliation error if the displayed board could not be refreshed.
func (c *Controller) Settle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.inflight == 0 && !c.reconciling {
			var err error
			if c.dirty {
				err = c.lastErr
			}
			c.mu.Unlock()
			return err
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Refresh reconciles the displayed board with the store and waits for it.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.markStaleLocked()
	c.mu.Unlock()
	return c.Settle(ctx)
}

// Follow reconciles whenever another client changes the board. It returns when ctx
// is done or events is closed. Events from this controller's own origin are ignored.
func (c *Controller) Follow(ctx context.Context, events <-chan board.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Scope != c.scope || (c.origin != "" && e.Origin == c.origin) {
				continue
			}
			c.log.WithFields(logrus.Fields{
				"event_type": "remote_change",
				"origin":     e.Origin,
				"type":       string(e.Type),
			}).Debug("board changed remotely")

			c.mu.Lock()
			c.markStaleLocked()
			c.mu.Unlock()
		}
	}
}

// rejectLocked returns a local rule failure to the caller. A missing card or a stale
// order means the displayed board is out of date, so a reconcile is scheduled too.
func (c *Controller) rejectLocked(err error) error {
	if board.IsNotFound(err) || errors.Is(err, board.ErrOrderMismatch) {
		c.markStaleLocked()
	}
	return err
}

// dispatchLocked sends a locally applied mutation to the service. Calls sharing a
// key run one after another in dispatch order.
func (c *Controller) dispatchLocked(op, cardID string, column board.ColumnID, keys []string, call func(ctx context.Context) (bool, error)) {
	c.inflight++
	c.epoch++

	done := make(chan struct{})
	var prev []chan struct{}
	for _, k := range keys {
		if p, ok := c.chains[k]; ok {
			prev = append(prev, p)
		}
		c.chains[k] = done
	}

	go func() {
		for _, p := range prev {
			<-p
		}
		c.group.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
			stale, err := call(ctx)
			cancel()
			c.complete(Notice{Op: op, CardID: cardID, Column: column, Err: err}, stale, keys, done)
			return nil
		})
	}()
}

func (c *Controller) complete(n Notice, stale bool, keys []string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if c.chains[k] == done {
			delete(c.chains, k)
		}
	}
	close(done)
	c.inflight--

	if n.Err != nil {
		c.log.WithError(n.Err).WithFields(logrus.Fields{
			"event_type": "mutation_failed",
			"op":         n.Op,
			"card_id":    n.CardID,
			"column":     string(n.Column),
		}).Warn("mutation failed, reconciling")
		c.dirty = true
		select {
		case c.notices <- n:
		default:
			c.log.WithField("op", n.Op).Debug("notice dropped")
		}
	} else if stale {
		c.dirty = true
	}

	if c.dirty && c.inflight == 0 {
		c.startReconcileLocked()
	}
	c.notifyLocked()
}

// markStaleLocked flags the displayed board for reconciliation. The fetch starts now
// if nothing is in flight, otherwise when the last in-flight mutation completes.
func (c *Controller) markStaleLocked() {
	c.dirty = true
	if c.inflight == 0 {
		c.startReconcileLocked()
	}
	c.notifyLocked()
}

func (c *Controller) startReconcileLocked() {
	if c.reconciling {
		return
	}
	c.reconciling = true
	go c.reconcile()
}

// reconcile replaces the displayed board with a fresh read. A fetch that overlapped a
// newer local apply is discarded; the mutation's completion restarts reconciliation.
// A fetch that fails with anything but a terminal error is retried with backoff
// until the board is fetched or the controller is closed.
func (c *Controller) reconcile() {
	for {
		c.mu.Lock()
		epoch := c.epoch
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		b, err := c.fetch(ctx)
		cancel()

		c.mu.Lock()
		if err != nil {
			c.lastErr = err
			c.reconciling = false
			entry := c.log.WithError(err).WithField("event_type", "reconcile_failed")
			if !board.IsTerminal(err) && !c.closed && c.retryTimer == nil {
				wait := c.refetch.NextBackOff()
				c.retryTimer = time.AfterFunc(wait, c.retryReconcile)
				entry = entry.WithField("retry_in", wait.String())
			}
			entry.Warn("failed to refetch board")
			c.notifyLocked()
			c.mu.Unlock()
			return
		}
		if c.inflight > 0 {
			c.reconciling = false
			c.notifyLocked()
			c.mu.Unlock()
			return
		}
		if c.epoch == epoch {
			c.displayed = b
			c.dirty = false
			c.lastErr = nil
			c.reconciling = false
			c.refetch.Reset()
			c.log.WithFields(logrus.Fields{
				"event_type": "reconciled",
				"cards":      b.CardCount(),
			}).Debug("displayed board replaced")
			c.notifyLocked()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// retryReconcile runs after a failed refetch. A completing mutation restarts
// reconciliation itself, so nothing happens while one is in flight.
func (c *Controller) retryReconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryTimer = nil
	if c.closed || !c.dirty || c.inflight > 0 {
		return
	}
	c.startReconcileLocked()
}

func (c *Controller) fetch(ctx context.Context) (*board.Board, error) {
	var b *board.Board
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 2), ctx)
	err := backoff.Retry(func() error {
		var err error
		b, err = c.store.GetBoard(ctx, c.scope)
		if err != nil && !board.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Controller) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func keys(cardID string, columns ...board.ColumnID) []string {
	out := make([]string, 0, len(columns)+1)
	if cardID != "" {
		out = append(out, "card:"+cardID)
	}
	for _, col := range columns {
		out = append(out, "column:"+string(col))
	}
	return out
}
