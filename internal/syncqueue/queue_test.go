package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/storage"
	apperrors "pos-service/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConnectivity struct{ online atomic.Bool }

func (f *fakeConnectivity) IsOnline() bool { return f.online.Load() }

func newConnectivity(online bool) *fakeConnectivity {
	c := &fakeConnectivity{}
	c.online.Store(online)
	return c
}

// callLog records handler invocations in order
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type testQueue struct {
	*Queue
	conn   *fakeConnectivity
	rec    *events.Recorder
	store  *storage.MemoryStore
	delays *atomic.Int32
}

func newTestQueue(t *testing.T, store *storage.MemoryStore, handlers map[domain.ActionKind]Handler) *testQueue {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	conn := newConnectivity(false)
	rec := events.NewRecorder()
	q, err := New(context.Background(), store, handlers, conn, rec, Options{MaxAttempts: 3}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(q.Close)

	delays := &atomic.Int32{}
	q.wait = func(ctx context.Context, d time.Duration) error {
		delays.Add(1)
		return ctx.Err()
	}
	return &testQueue{Queue: q, conn: conn, rec: rec, store: store, delays: delays}
}

func payloadID(payload json.RawMessage) string {
	var body struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &body)
	return body.ID
}

func TestDrain_AlwaysFailingActionIsTriedExactlyMaxAttempts(t *testing.T) {
	attempts := 0
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionUploadSale: func(ctx context.Context, payload json.RawMessage) error {
			attempts++
			return apperrors.NewRetryableSync("uploadSale", errors.New("network down"))
		},
	})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionUploadSale, map[string]string{"id": "sale-1"})
	require.NoError(t, err)
	q.conn.online.Store(true)

	for pass := 1; pass <= 2; pass++ {
		result, err := q.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Failed)
		assert.Equal(t, 1, result.Remaining)
		pending := q.Pending()
		require.Len(t, pending, 1)
		assert.Equal(t, pass, pending[0].Attempts)
	}
	assert.Empty(t, q.rec.OfType("SyncCompleted"))
	assert.Nil(t, q.LastSyncTime())

	result, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Remaining)
	assert.Empty(t, q.Pending())

	completed := q.rec.OfType("SyncCompleted")
	require.Len(t, completed, 1)
	assert.Equal(t, events.SyncCompleted{Successful: 0, Failed: 1, OccurredAt: completed[0].(events.SyncCompleted).OccurredAt}, completed[0])

	result, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 3, attempts)
}

func TestDrain_SuccessRemovesActionAfterOnePass(t *testing.T) {
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionSyncCustomer: func(ctx context.Context, payload json.RawMessage) error { return nil },
	})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionSyncCustomer, map[string]string{"id": "c1"})
	require.NoError(t, err)
	q.conn.online.Store(true)

	result, err := q.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Empty(t, q.Pending())
	require.NotNil(t, q.LastSyncTime())

	completed := q.rec.OfType("SyncCompleted")
	require.Len(t, completed, 1)
	assert.Equal(t, 1, completed[0].(events.SyncCompleted).Successful)

	raw, err := q.store.Get(ctx, LastSyncTimeKey)
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, string(raw))
	assert.NoError(t, err)

	var stored []domain.PendingAction
	require.NoError(t, storage.GetJSON(ctx, q.store, PendingActionsKey, &stored))
	assert.Empty(t, stored)
}

func TestDrain_FIFOWithStableRetryOrder(t *testing.T) {
	log := &callLog{}
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionSyncProduct: func(ctx context.Context, payload json.RawMessage) error {
			id := payloadID(payload)
			log.add(id)
			if id == "b" {
				return nil
			}
			return errors.New("timeout")
		},
	})
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(ctx, domain.ActionSyncProduct, map[string]string{"id": id})
		require.NoError(t, err)
	}
	q.conn.online.Store(true)

	result, err := q.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, log.get())
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 2, result.Remaining)
	// one delay after "a"; none after the last action
	assert.Equal(t, int32(1), q.delays.Load())

	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "a", payloadID(pending[0].Payload))
	assert.Equal(t, "c", payloadID(pending[1].Payload))
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "timeout", pending[0].LastError)
}

func TestDrain_PermanentErrorDropsImmediately(t *testing.T) {
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionUploadReport: func(ctx context.Context, payload json.RawMessage) error {
			return apperrors.NewPermanentSync("uploadReport", errors.New("bad payload"))
		},
	})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionUploadReport, map[string]string{"date": "2024-03-01"})
	require.NoError(t, err)
	q.conn.online.Store(true)

	result, err := q.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, q.Pending())
}

func TestDrain_MissingHandlerCountsAsFailure(t *testing.T) {
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionSyncProduct, map[string]string{"id": "p1"})
	require.NoError(t, err)
	q.conn.online.Store(true)

	_, err = q.Drain(ctx)

	require.NoError(t, err)
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "no handler")
}

func TestDrain_EnqueueDuringDrainIsPreserved(t *testing.T) {
	var q *testQueue
	q = newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionUploadSale: func(ctx context.Context, payload json.RawMessage) error {
			_, err := q.Enqueue(ctx, domain.ActionSyncCustomer, map[string]string{"id": "late"})
			return err
		},
		domain.ActionSyncCustomer: func(ctx context.Context, payload json.RawMessage) error { return nil },
	})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionUploadSale, map[string]string{"id": "sale-1"})
	require.NoError(t, err)
	q.conn.online.Store(true)

	result, err := q.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ActionSyncCustomer, pending[0].Kind)
	assert.Equal(t, "late", payloadID(pending[0].Payload))
}

func TestDrain_OfflineIsNoop(t *testing.T) {
	called := false
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionUploadSale: func(ctx context.Context, payload json.RawMessage) error { called = true; return nil },
	})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionUploadSale, map[string]string{"id": "sale-1"})
	require.NoError(t, err)

	result, err := q.Drain(ctx)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.False(t, called)
	assert.Len(t, q.Pending(), 1)
}

func TestForceSync(t *testing.T) {
	calls := 0
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionUploadSale: func(ctx context.Context, payload json.RawMessage) error {
			calls++
			return errors.New("still failing")
		},
	})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionUploadSale, map[string]string{"id": "sale-1"})
	require.NoError(t, err)
	before := q.Pending()

	_, err = q.ForceSync(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOffline))
	assert.Equal(t, before, q.Pending())
	assert.Equal(t, 0, calls)

	q.conn.online.Store(true)
	result, err := q.ForceSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, calls)
}

func TestEnqueue_OnlineStartsBackgroundDrain(t *testing.T) {
	delivered := make(chan string, 1)
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionSyncProduct: func(ctx context.Context, payload json.RawMessage) error {
			delivered <- payloadID(payload)
			return nil
		},
	})
	q.conn.online.Store(true)

	_, err := q.Enqueue(context.Background(), domain.ActionSyncProduct, map[string]string{"id": "p1"})
	require.NoError(t, err)
	q.Wait()

	assert.Equal(t, "p1", <-delivered)
	assert.Empty(t, q.Pending())
}

func TestEnqueue_RejectsUnknownKind(t *testing.T) {
	q := newTestQueue(t, nil, nil)

	_, err := q.Enqueue(context.Background(), domain.ActionKind("printReceipt"), nil)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Empty(t, q.Pending())
}

func TestQueue_ReloadsPersistedActions(t *testing.T) {
	store := storage.NewMemoryStore()
	first := newTestQueue(t, store, nil)
	_, err := first.Enqueue(context.Background(), domain.ActionSyncCustomer, map[string]string{"id": "c1"})
	require.NoError(t, err)
	_, err = first.Enqueue(context.Background(), domain.ActionUploadSale, map[string]string{"id": "s1"})
	require.NoError(t, err)

	second := newTestQueue(t, store, nil)

	pending := second.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, domain.ActionSyncCustomer, pending[0].Kind)
	assert.Equal(t, domain.ActionUploadSale, pending[1].Kind)
}

func TestQueue_UnreadableStoredQueueStartsEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), PendingActionsKey, []byte("{not json")))

	q := newTestQueue(t, store, nil)

	assert.Empty(t, q.Pending())
}

func TestCleanupOldData(t *testing.T) {
	store := storage.NewMemoryStore()
	old := domain.NewPendingAction(domain.ActionUploadSale, json.RawMessage(`{"id":"old"}`), 3)
	old.EnqueuedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	old.Attempts = 1
	fresh := domain.NewPendingAction(domain.ActionUploadSale, json.RawMessage(`{"id":"fresh"}`), 3)
	require.NoError(t, storage.SetJSON(context.Background(), store, PendingActionsKey, []domain.PendingAction{old, fresh}))
	q := newTestQueue(t, store, nil)

	removed, err := q.CleanupOldData(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "fresh", payloadID(pending[0].Payload))

	var stored []domain.PendingAction
	require.NoError(t, storage.GetJSON(context.Background(), store, PendingActionsKey, &stored))
	assert.Len(t, stored, 1)
}

func TestOutcomeHooks(t *testing.T) {
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionUploadSale: func(ctx context.Context, payload json.RawMessage) error {
			if payloadID(payload) == "ok" {
				return nil
			}
			return apperrors.NewPermanentSync("uploadSale", errors.New("rejected"))
		},
	})
	outcomes := map[string]bool{}
	q.OnOutcome(func(ctx context.Context, action domain.PendingAction, delivered bool) {
		outcomes[payloadID(action.Payload)] = delivered
	})
	ctx := context.Background()
	_, err := q.Enqueue(ctx, domain.ActionUploadSale, map[string]string{"id": "ok"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, domain.ActionUploadSale, map[string]string{"id": "bad"})
	require.NoError(t, err)
	q.conn.online.Store(true)

	_, err = q.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"ok": true, "bad": false}, outcomes)
}

func TestStats(t *testing.T) {
	q := newTestQueue(t, nil, nil)
	ctx := context.Background()
	for _, kind := range []domain.ActionKind{domain.ActionUploadSale, domain.ActionUploadSale, domain.ActionSyncProduct} {
		_, err := q.Enqueue(ctx, kind, map[string]string{})
		require.NoError(t, err)
	}

	stats := q.Stats()

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByKind[domain.ActionUploadSale])
	assert.Equal(t, 1, stats.ByKind[domain.ActionSyncProduct])
	assert.Equal(t, 0, stats.ByKind[domain.ActionUploadReport])
}

func TestDrain_CancelledDuringDelayKeepsRemainingActions(t *testing.T) {
	calls := 0
	q := newTestQueue(t, nil, map[domain.ActionKind]Handler{
		domain.ActionSyncProduct: func(ctx context.Context, payload json.RawMessage) error {
			calls++
			return errors.New("timeout")
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	for _, id := range []string{"a", "b"} {
		_, err := q.Enqueue(context.Background(), domain.ActionSyncProduct, map[string]string{"id": id})
		require.NoError(t, err)
	}
	q.conn.online.Store(true)
	q.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	result, err := q.Drain(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, result.Remaining)
	pending := q.Pending()
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, 0, pending[1].Attempts)
}

// brokenStore fails every write once broken is set
type brokenStore struct {
	*storage.MemoryStore
	broken atomic.Bool
}

func (s *brokenStore) Set(ctx context.Context, key string, value []byte) error {
	if s.broken.Load() {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestDrain_ReportsPersistFailure(t *testing.T) {
	// Setup
	store := &brokenStore{MemoryStore: storage.NewMemoryStore()}
	conn := newConnectivity(false)
	q, err := New(context.Background(), store, map[domain.ActionKind]Handler{
		domain.ActionUploadSale: func(ctx context.Context, payload json.RawMessage) error { return nil },
	}, conn, events.NewRecorder(), Options{MaxAttempts: 3}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(q.Close)
	ctx := context.Background()
	_, err = q.Enqueue(ctx, domain.ActionUploadSale, map[string]string{"id": "sale-1"})
	require.NoError(t, err)
	store.broken.Store(true)
	conn.online.Store(true)

	// Execute
	result, err := q.Drain(ctx)

	// Assert
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDatabase))
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 0, result.Remaining)
	assert.Empty(t, q.Pending())
}
