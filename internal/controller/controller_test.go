package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/lanes/internal/mutation"
	"github.com/dyluth/lanes/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = mutation.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

// recordingService wraps a real service, optionally holding calls until released
// and recording whether two calls for the same card overlapped.
type recordingService struct {
	Service

	mu      sync.Mutex
	hold    chan struct{}
	active  map[string]int
	overlap bool
	calls   int
}

func (r *recordingService) enter(cardID string) {
	r.mu.Lock()
	hold := r.hold
	r.calls++
	r.active[cardID]++
	if r.active[cardID] > 1 {
		r.overlap = true
	}
	r.mu.Unlock()

	if hold != nil {
		<-hold
	}
	time.Sleep(5 * time.Millisecond)
}

func (r *recordingService) leave(cardID string) {
	r.mu.Lock()
	r.active[cardID]--
	r.mu.Unlock()
}

func (r *recordingService) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *recordingService) MoveCard(ctx context.Context, scope board.Scope, cardID string, from, to board.ColumnID) (board.Card, error) {
	r.enter(cardID)
	defer r.leave(cardID)
	return r.Service.MoveCard(ctx, scope, cardID, from, to)
}

func (r *recordingService) DeleteCard(ctx context.Context, scope board.Scope, column board.ColumnID, cardID string) (board.Card, error) {
	r.enter(cardID)
	defer r.leave(cardID)
	return r.Service.DeleteCard(ctx, scope, column, cardID)
}

// brokenAddStore fails every AddCard with a transient error, so moves stop halfway.
type brokenAddStore struct {
	mutation.Store
}

func (brokenAddStore) AddCard(ctx context.Context, scope board.Scope, column board.ColumnID, card board.Card) error {
	return &board.TransientError{Op: "add card", Err: errors.New("connection reset")}
}

// gatedFetcher reads the board, then blocks the first gated call until released.
type gatedFetcher struct {
	Fetcher

	mu      sync.Mutex
	gate    chan struct{}
	fetched chan struct{}
}

func (g *gatedFetcher) GetBoard(ctx context.Context, scope board.Scope) (*board.Board, error) {
	b, err := g.Fetcher.GetBoard(ctx, scope)

	g.mu.Lock()
	gate, fetched := g.gate, g.fetched
	g.gate, g.fetched = nil, nil
	g.mu.Unlock()

	if gate != nil {
		close(fetched)
		<-gate
	}
	return b, err
}

// flakyFetcher fails the next failures reads with a transient error.
type flakyFetcher struct {
	Fetcher

	mu       sync.Mutex
	failures int
}

func (f *flakyFetcher) GetBoard(ctx context.Context, scope board.Scope) (*board.Board, error) {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return nil, &board.TransientError{Op: "get board", Err: errors.New("blip")}
	}
	return f.Fetcher.GetBoard(ctx, scope)
}

// renamingService stores every added card under a fixed id of its own choosing.
type renamingService struct {
	Service
	id string
}

func (r *renamingService) AddCard(ctx context.Context, scope board.Scope, column board.ColumnID, data mutation.CardData) (board.Card, error) {
	data.ID = r.id
	return r.Service.AddCard(ctx, scope, column, data)
}

type fixture struct {
	ctrl   *Controller
	svc    *recordingService
	client *board.Client
	other  *board.Client
}

func setup(t *testing.T, store func(*board.Client) mutation.Store) *fixture {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "me")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	other, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "other")
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	_, err = client.ProvisionBoard(context.Background(), board.GlobalScope)
	require.NoError(t, err)

	var s mutation.Store = client
	if store != nil {
		s = store(client)
	}
	logger, _ := test.NewNullLogger()
	svc := &recordingService{
		Service: mutation.NewService(s, nil, fastRetry, logger),
		active:  map[string]int{},
	}
	ctrl := New(board.GlobalScope, svc, client, Options{
		Origin:          "me",
		MutationTimeout: 2 * time.Second,
		MaxInFlight:     4,
		Logger:          logger,
	})
	t.Cleanup(ctrl.Close)
	return &fixture{ctrl: ctrl, svc: svc, client: client, other: other}
}

func (f *fixture) seed(t *testing.T, column board.ColumnID, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.client.AddCard(context.Background(), board.GlobalScope, column, board.Card{ID: id, Title: "title " + id}))
	}
}

func layout(b *board.Board) map[board.ColumnID][]string {
	out := make(map[board.ColumnID][]string, len(b.Columns))
	for _, col := range b.Columns {
		out[col.ID] = col.IDs()
	}
	return out
}

func (f *fixture) stored(t *testing.T) *board.Board {
	t.Helper()
	b, err := f.client.GetBoard(context.Background(), board.GlobalScope)
	require.NoError(t, err)
	return b
}

func settle(t *testing.T, c *Controller) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Settle(ctx)
}

func TestActionsBeforeLoad(t *testing.T) {
	f := setup(t, nil)
	assert.Nil(t, f.ctrl.Snapshot())
	assert.ErrorIs(t, f.ctrl.Move("c1", board.ColumnIdea, board.ColumnNext), ErrNotLoaded)
	_, err := f.ctrl.Add(board.ColumnIdea, mutation.CardData{Title: "X"})
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestOptimisticMoveIsVisibleBeforeConfirmation(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1")
	require.NoError(t, f.ctrl.Load(context.Background()))

	hold := make(chan struct{})
	f.svc.mu.Lock()
	f.svc.hold = hold
	f.svc.mu.Unlock()

	require.NoError(t, f.ctrl.Move("c1", board.ColumnIdea, board.ColumnNext))

	snap := f.ctrl.Snapshot()
	assert.Empty(t, snap.Column(board.ColumnIdea).Cards)
	assert.Equal(t, []string{"c1"}, snap.Column(board.ColumnNext).IDs())
	assert.Equal(t, []string{"c1"}, f.stored(t).Column(board.ColumnIdea).IDs())

	close(hold)
	require.NoError(t, settle(t, f.ctrl))

	assert.Equal(t, layout(f.stored(t)), layout(f.ctrl.Snapshot()))
	assert.Len(t, f.ctrl.Notices(), 0)
}

// TestPartialMoveIsResolvedByReconciliation moves a card whose add step keeps
// failing; the displayed board must end up matching the store, where the card
// is in neither column.
func TestPartialMoveIsResolvedByReconciliation(t *testing.T) {
	f := setup(t, func(c *board.Client) mutation.Store { return brokenAddStore{Store: c} })
	f.seed(t, board.ColumnIdea, "c1")
	require.NoError(t, f.ctrl.Load(context.Background()))

	require.NoError(t, f.ctrl.Move("c1", board.ColumnIdea, board.ColumnNext))
	require.NoError(t, settle(t, f.ctrl))

	snap := f.ctrl.Snapshot()
	assert.Equal(t, layout(f.stored(t)), layout(snap))
	assert.Empty(t, snap.Column(board.ColumnIdea).Cards)
	assert.Empty(t, snap.Column(board.ColumnNext).Cards)

	select {
	case n := <-f.ctrl.Notices():
		assert.Equal(t, "move", n.Op)
		assert.Equal(t, "c1", n.CardID)
		assert.True(t, board.IsTransient(n.Err))
	default:
		t.Fatal("expected a notice for the failed move")
	}
}

func TestRemoteDeleteIsReconciled(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1", "c2")
	require.NoError(t, f.ctrl.Load(context.Background()))

	// another client deletes c1 behind our back
	require.NoError(t, f.other.RemoveCard(context.Background(), board.GlobalScope, board.ColumnIdea, board.Card{ID: "c1", Title: "title c1"}))

	require.NoError(t, f.ctrl.Move("c1", board.ColumnIdea, board.ColumnNext))
	require.NoError(t, settle(t, f.ctrl))

	assert.Equal(t, layout(f.stored(t)), layout(f.ctrl.Snapshot()))
	_, _, found := f.ctrl.Snapshot().Locate("c1")
	assert.False(t, found)

	n := <-f.ctrl.Notices()
	assert.True(t, board.IsNotFound(n.Err))
}

func TestFailedRefetchIsRetried(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1")
	require.NoError(t, f.ctrl.Load(context.Background()))

	require.NoError(t, f.other.RemoveCard(context.Background(), board.GlobalScope, board.ColumnIdea, board.Card{ID: "c1", Title: "title c1"}))

	// enough failures to exhaust the first reconcile's fetch attempts
	f.ctrl.store = &flakyFetcher{Fetcher: f.client, failures: 3}

	require.NoError(t, f.ctrl.Move("c1", board.ColumnIdea, board.ColumnNext))
	err := settle(t, f.ctrl)
	require.Error(t, err)
	assert.True(t, board.IsTransient(err))
	assert.Equal(t, []string{"c1"}, f.ctrl.Snapshot().Column(board.ColumnNext).IDs())

	require.Eventually(t, func() bool {
		b := f.ctrl.Snapshot()
		return len(b.Column(board.ColumnNext).Cards) == 0 && len(b.Column(board.ColumnIdea).Cards) == 0
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, settle(t, f.ctrl))
	assert.Equal(t, layout(f.stored(t)), layout(f.ctrl.Snapshot()))
}

func TestRefetchStopsAfterClose(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1")
	require.NoError(t, f.ctrl.Load(context.Background()))

	fetcher := &flakyFetcher{Fetcher: f.client, failures: 3}
	f.ctrl.store = fetcher

	require.Error(t, f.ctrl.Refresh(context.Background()))
	f.ctrl.Close()

	time.Sleep(2 * refetchInitialInterval)
	f.ctrl.mu.Lock()
	defer f.ctrl.mu.Unlock()
	assert.False(t, f.ctrl.reconciling)
	assert.True(t, f.ctrl.dirty)
	assert.Nil(t, f.ctrl.retryTimer)
}

func TestLocalRuleFailures(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1")
	f.seed(t, board.ColumnNext, "c2")
	require.NoError(t, f.ctrl.Load(context.Background()))

	t.Run("delete outside idea is forbidden", func(t *testing.T) {
		err := f.ctrl.Delete(board.ColumnNext, "c2")
		assert.ErrorIs(t, err, board.ErrForbidden)
		assert.Equal(t, 0, f.svc.callCount())
	})

	t.Run("stale order", func(t *testing.T) {
		err := f.ctrl.Reorder(board.ColumnIdea, []string{"c1", "c9"})
		assert.ErrorIs(t, err, board.ErrOrderMismatch)
	})

	t.Run("blank assignee", func(t *testing.T) {
		err := f.ctrl.Assign(board.ColumnIdea, "c1", " ", true)
		assert.ErrorIs(t, err, board.ErrInvalidArgument)
	})

	t.Run("blank title", func(t *testing.T) {
		_, err := f.ctrl.Add(board.ColumnIdea, mutation.CardData{Title: ""})
		assert.ErrorIs(t, err, board.ErrInvalidArgument)
	})

	t.Run("unknown card triggers reconciliation", func(t *testing.T) {
		require.NoError(t, f.other.AddCard(context.Background(), board.GlobalScope, board.ColumnIdea, board.Card{ID: "c9", Title: "new"}))

		err := f.ctrl.Move("c9", board.ColumnIdea, board.ColumnNext)
		assert.ErrorIs(t, err, board.ErrCardNotFound)

		require.NoError(t, settle(t, f.ctrl))
		col, _, found := f.ctrl.Snapshot().Locate("c9")
		assert.True(t, found)
		assert.Equal(t, board.ColumnIdea, col)
	})
}

func TestSameCardMutationsAreSerialized(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1")
	require.NoError(t, f.ctrl.Load(context.Background()))

	require.NoError(t, f.ctrl.Move("c1", board.ColumnIdea, board.ColumnNext))
	require.NoError(t, f.ctrl.Move("c1", board.ColumnNext, board.ColumnInProgress))
	require.NoError(t, f.ctrl.Move("c1", board.ColumnInProgress, board.ColumnDone))
	require.NoError(t, settle(t, f.ctrl))

	f.svc.mu.Lock()
	overlap := f.svc.overlap
	f.svc.mu.Unlock()
	assert.False(t, overlap, "mutations of one card must not run concurrently")
	assert.Equal(t, 3, f.svc.callCount())
	assert.Equal(t, []string{"c1"}, f.stored(t).Column(board.ColumnDone).IDs())
	assert.Equal(t, layout(f.stored(t)), layout(f.ctrl.Snapshot()))
	assert.Len(t, f.ctrl.Notices(), 0)
}

func TestManyAddsConverge(t *testing.T) {
	f := setup(t, nil)
	require.NoError(t, f.ctrl.Load(context.Background()))

	var added []string
	for i := 0; i < 20; i++ {
		card, err := f.ctrl.Add(board.ColumnIdea, mutation.CardData{Title: "card"})
		require.NoError(t, err)
		added = append(added, card.ID)
	}
	require.NoError(t, settle(t, f.ctrl))

	stored := f.stored(t)
	assert.ElementsMatch(t, added, stored.Column(board.ColumnIdea).IDs())
	assert.Equal(t, layout(stored), layout(f.ctrl.Snapshot()))
	assert.NoError(t, stored.Validate())
}

func TestAssignAndReorder(t *testing.T) {
	f := setup(t, nil)
	require.NoError(t, f.ctrl.Load(context.Background()))

	x, err := f.ctrl.Add(board.ColumnIdea, mutation.CardData{Title: "X"})
	require.NoError(t, err)
	y, err := f.ctrl.Add(board.ColumnIdea, mutation.CardData{Title: "Y"})
	require.NoError(t, err)

	require.NoError(t, f.ctrl.Assign(board.ColumnIdea, x.ID, "Alice", true))
	require.NoError(t, f.ctrl.Assign(board.ColumnIdea, x.ID, "Bob", true))
	require.NoError(t, f.ctrl.Assign(board.ColumnIdea, x.ID, "Alice", false))
	require.NoError(t, f.ctrl.Reorder(board.ColumnIdea, []string{y.ID, x.ID}))

	local, _, _ := f.ctrl.Snapshot().Column(board.ColumnIdea).Find(x.ID)
	assert.Equal(t, []string{"Bob"}, local.Assignees)

	require.NoError(t, settle(t, f.ctrl))

	col := f.stored(t).Column(board.ColumnIdea)
	assert.Equal(t, []string{y.ID, x.ID}, col.IDs())
	stored, _, _ := col.Find(x.ID)
	assert.Equal(t, []string{"Bob"}, stored.Assignees)
	assert.Len(t, f.ctrl.Notices(), 0)
}

func TestDelete(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1", "c2")
	require.NoError(t, f.ctrl.Load(context.Background()))

	require.NoError(t, f.ctrl.Delete(board.ColumnIdea, "c1"))
	assert.Equal(t, []string{"c2"}, f.ctrl.Snapshot().Column(board.ColumnIdea).IDs())

	require.NoError(t, settle(t, f.ctrl))
	assert.Equal(t, []string{"c2"}, f.stored(t).Column(board.ColumnIdea).IDs())
}

func TestFollowReconcilesOnRemoteEvents(t *testing.T) {
	f := setup(t, nil)
	require.NoError(t, f.ctrl.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan board.Event)
	go f.ctrl.Follow(ctx, events)

	t.Run("own events are ignored", func(t *testing.T) {
		require.NoError(t, f.other.AddCard(ctx, board.GlobalScope, board.ColumnIdea, board.Card{ID: "c6", Title: "quiet"}))
		events <- board.Event{Type: board.EventCardAdded, Scope: board.GlobalScope, Origin: "me"}
		// the unbuffered send returns only once the previous event was handled
		events <- board.Event{Type: board.EventCardAdded, Scope: "elsewhere", Origin: "other"}

		require.NoError(t, settle(t, f.ctrl))
		_, _, found := f.ctrl.Snapshot().Locate("c6")
		assert.False(t, found)
	})

	t.Run("remote events trigger a refetch", func(t *testing.T) {
		events <- board.Event{Type: board.EventCardAdded, Scope: board.GlobalScope, Origin: "other"}

		assert.Eventually(t, func() bool {
			_, _, found := f.ctrl.Snapshot().Locate("c6")
			return found
		}, 2*time.Second, 10*time.Millisecond)
	})
}

// TestStaleFetchIsDiscarded checks that a refetch overlapping a newer local
// apply is not installed over it.
func TestStaleFetchIsDiscarded(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, board.ColumnIdea, "c1")

	fetcher := &gatedFetcher{Fetcher: f.client}
	f.ctrl.store = fetcher
	require.NoError(t, f.ctrl.Load(context.Background()))

	gate := make(chan struct{})
	fetched := make(chan struct{})
	fetcher.mu.Lock()
	fetcher.gate, fetcher.fetched = gate, fetched
	fetcher.mu.Unlock()

	refreshed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		refreshed <- f.ctrl.Refresh(ctx)
	}()

	// the refetch has read c1 in idea and is now parked
	<-fetched
	require.NoError(t, f.ctrl.Move("c1", board.ColumnIdea, board.ColumnNext))
	close(gate)

	require.NoError(t, <-refreshed)
	require.NoError(t, settle(t, f.ctrl))

	assert.Equal(t, []string{"c1"}, f.ctrl.Snapshot().Column(board.ColumnNext).IDs())
	assert.Equal(t, layout(f.stored(t)), layout(f.ctrl.Snapshot()))
}

func TestRefreshReportsStoreFailure(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "me")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	_, err = client.ProvisionBoard(context.Background(), board.GlobalScope)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	ctrl := New(board.GlobalScope, mutation.NewService(client, nil, fastRetry, logger), client, Options{
		Origin:          "me",
		MutationTimeout: 5 * time.Second,
		Logger:          logger,
	})
	require.NoError(t, ctrl.Load(context.Background()))
	t.Cleanup(ctrl.Close)

	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = ctrl.Refresh(ctx)
	assert.True(t, board.IsTransient(err))
}

func TestNoticeString(t *testing.T) {
	n := Notice{Op: "move", CardID: "c1", Err: board.ErrCardNotFound}
	assert.Equal(t, "move c1 failed: card not found", n.String())

	n = Notice{Op: "reorder", Column: board.ColumnIdea, Err: board.ErrOrderMismatch}
	assert.Equal(t, "reorder idea failed: order does not match column contents", n.String())
}

func TestStoredIDFollowsServiceChoice(t *testing.T) {
	f := setup(t, nil)

	logger, _ := test.NewNullLogger()
	ctrl := New(board.GlobalScope, &renamingService{Service: f.svc, id: "server-id"}, f.client, Options{
		Origin: "me",
		Logger: logger,
	})
	t.Cleanup(ctrl.Close)
	require.NoError(t, ctrl.Load(context.Background()))

	card, err := ctrl.Add(board.ColumnIdea, mutation.CardData{Title: "Dark mode"})
	require.NoError(t, err)
	assert.NotEqual(t, "server-id", card.ID)
	require.NoError(t, settle(t, ctrl))

	assert.Equal(t, "server-id", ctrl.StoredID(card.ID))
	assert.Equal(t, "other", ctrl.StoredID("other"))
	assert.Equal(t, []string{"server-id"}, ctrl.Snapshot().Column(board.ColumnIdea).IDs())
}
