package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/storage"
	apperrors "pos-service/pkg/errors"

	"go.uber.org/zap"
)

// Keys of the documents the queue keeps in the key-value store
const (
	PendingActionsKey = "pendingActions"
	LastSyncTimeKey   = "lastSyncTime"
)

// Defaults used when Options leave a field unset
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 1500 * time.Millisecond
	DefaultRetention   = 7 * 24 * time.Hour
)

// Handler delivers one action payload. Returning a PermanentSync error drops
// the action at once; any other error counts as one failed attempt.
type Handler func(ctx context.Context, payload json.RawMessage) error

// OutcomeHook is told when an action leaves the queue, delivered or given up on
type OutcomeHook func(ctx context.Context, action domain.PendingAction, delivered bool)

// OnlineChecker reports current connectivity
type OnlineChecker interface {
	IsOnline() bool
}

type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Retention   time.Duration
}

// DrainResult describes one drain pass
type DrainResult struct {
	Attempted  int  `json:"attempted"`
	Successful int  `json:"successful"`
	Failed     int  `json:"failed"`
	Remaining  int  `json:"remaining"`
	Skipped    bool `json:"skipped"`
}

// Stats counts pending actions per kind
type Stats struct {
	Total    int                       `json:"total"`
	ByKind   map[domain.ActionKind]int `json:"byKind"`
	Draining bool                      `json:"draining"`
}

// Queue is the durable FIFO of actions waiting for the backend. Only one
// drain runs at a time; background drains started by Enqueue or
// TriggerDrain are tracked and awaited by Close.
type Queue struct {
	mu       sync.Mutex
	actions  []domain.PendingAction
	draining bool
	lastSync *time.Time

	store     storage.KeyValueStore
	handlers  map[domain.ActionKind]Handler
	online    OnlineChecker
	publisher events.EventPublisher
	hooks     []OutcomeHook
	opts      Options
	logger    *zap.Logger

	wait    func(ctx context.Context, d time.Duration) error
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a queue and reloads any actions persisted by a previous run
func New(ctx context.Context, store storage.KeyValueStore, handlers map[domain.ActionKind]Handler, online OnlineChecker, publisher events.EventPublisher, opts Options, logger *zap.Logger) (*Queue, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:     store,
		handlers:  handlers,
		online:    online,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		wait:      sleep,
		baseCtx:   baseCtx,
		cancel:    cancel,
	}
	if err := q.load(ctx); err != nil {
		cancel()
		return nil, err
	}
	return q, nil
}

// OnOutcome registers a hook called for every delivered or dropped action
func (q *Queue) OnOutcome(hook OutcomeHook) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hooks = append(q.hooks, hook)
}

// Enqueue appends an action and starts a background drain when online and idle.
// A persistence failure is returned but the action stays queued in memory.
func (q *Queue) Enqueue(ctx context.Context, kind domain.ActionKind, payload interface{}) (domain.PendingAction, error) {
	if !validKind(kind) {
		return domain.PendingAction{}, apperrors.NewValidationError(fmt.Sprintf("unknown action kind %q", kind), "action")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.PendingAction{}, apperrors.NewValidationError("payload cannot be encoded: "+err.Error(), "data")
	}
	action := domain.NewPendingAction(kind, data, q.opts.MaxAttempts)

	q.mu.Lock()
	q.actions = append(q.actions, action)
	persistErr := q.persistLocked(ctx)
	q.mu.Unlock()

	q.logger.Info("Action queued for sync",
		zap.String("action_id", action.ID),
		zap.String("action", string(kind)),
	)
	if persistErr != nil {
		q.logger.Error("Failed to persist sync queue", zap.Error(persistErr))
		persistErr = apperrors.NewDatabaseError("persist sync queue", persistErr)
	}

	q.TriggerDrain()
	return action, persistErr
}

// TriggerDrain starts a background drain if online, idle and non-empty
func (q *Queue) TriggerDrain() {
	q.mu.Lock()
	start := q.online.IsOnline() && !q.draining && len(q.actions) > 0 && q.baseCtx.Err() == nil
	if start {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !start {
		return
	}
	go func() {
		defer q.wg.Done()
		if _, err := q.Drain(q.baseCtx); err != nil {
			q.logger.Warn("Background drain failed", zap.Error(err))
		}
	}()
}

// Drain makes one FIFO pass over the actions queued when it starts. It is a
// no-op when offline, already draining, or empty. The returned error reports a
// failure to persist the queue afterwards; the in-memory queue and result are
// still up to date.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	q.mu.Lock()
	if !q.online.IsOnline() || q.draining || len(q.actions) == 0 {
		result := DrainResult{Skipped: true, Remaining: len(q.actions)}
		q.mu.Unlock()
		return result, nil
	}
	q.draining = true
	pass := append([]domain.PendingAction(nil), q.actions...)
	hooks := append([]OutcomeHook(nil), q.hooks...)
	q.mu.Unlock()

	q.logger.Info("Starting sync drain", zap.Int("pending", len(pass)))

	delivered := make(map[string]bool)
	dropped := make(map[string]bool)
	retried := make(map[string]domain.PendingAction)
	result := DrainResult{}

	for i, action := range pass {
		if ctx.Err() != nil {
			q.logger.Warn("Sync drain interrupted", zap.Error(ctx.Err()))
			break
		}
		result.Attempted++
		err := q.dispatch(ctx, action)
		if err == nil {
			delivered[action.ID] = true
			result.Successful++
			q.notify(ctx, hooks, action, true)
			continue
		}

		action.Attempts++
		action.LastError = err.Error()
		if action.Exhausted() || apperrors.HasCode(err, apperrors.CodePermanentSync) {
			dropped[action.ID] = true
			result.Failed++
			q.logger.Error("Sync action failed permanently, dropping it",
				zap.String("action_id", action.ID),
				zap.String("action", string(action.Kind)),
				zap.Int("attempts", action.Attempts),
				zap.Error(err),
			)
			q.notify(ctx, hooks, action, false)
			continue
		}

		retried[action.ID] = action
		q.logger.Warn("Sync action failed, will retry",
			zap.String("action_id", action.ID),
			zap.String("action", string(action.Kind)),
			zap.Int("attempts", action.Attempts),
			zap.Int("max_attempts", action.MaxAttempts),
			zap.Error(err),
		)
		if i < len(pass)-1 {
			if err := q.wait(ctx, q.opts.RetryDelay); err != nil {
				q.logger.Warn("Sync drain interrupted", zap.Error(err))
				break
			}
		}
	}

	q.mu.Lock()
	remaining := make([]domain.PendingAction, 0, len(q.actions))
	for _, action := range q.actions {
		if delivered[action.ID] || dropped[action.ID] {
			continue
		}
		if updated, ok := retried[action.ID]; ok {
			action = updated
		}
		remaining = append(remaining, action)
	}
	q.actions = remaining
	result.Remaining = len(remaining)

	var completed *events.SyncCompleted
	if result.Successful > 0 || result.Failed > 0 {
		now := time.Now().UTC()
		q.lastSync = &now
		completed = &events.SyncCompleted{Successful: result.Successful, Failed: result.Failed, OccurredAt: now}
	}
	persistErr := q.persistLocked(context.WithoutCancel(ctx))
	if persistErr == nil && completed != nil {
		persistErr = q.store.Set(context.WithoutCancel(ctx), LastSyncTimeKey, []byte(completed.OccurredAt.Format(time.RFC3339)))
	}
	q.draining = false
	q.mu.Unlock()

	if persistErr != nil {
		q.logger.Error("Failed to persist sync queue after drain", zap.Error(persistErr))
	}
	if completed != nil {
		if err := q.publisher.Publish(ctx, *completed); err != nil {
			q.logger.Warn("Failed to publish sync event", zap.Error(err))
		}
	}

	q.logger.Info("Sync drain finished",
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Int("remaining", result.Remaining),
	)
	if persistErr != nil {
		return result, apperrors.NewDatabaseError("persist sync queue", persistErr)
	}
	return result, nil
}

// ForceSync drains now. Offline it fails without touching the queue.
func (q *Queue) ForceSync(ctx context.Context) (DrainResult, error) {
	if !q.online.IsOnline() {
		return DrainResult{}, apperrors.NewOffline()
	}
	return q.Drain(ctx)
}

// CleanupOldData drops actions older than the retention window whatever
// their attempt count. Dropped actions are lost.
func (q *Queue) CleanupOldData(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-q.opts.Retention)

	q.mu.Lock()
	kept := make([]domain.PendingAction, 0, len(q.actions))
	for _, action := range q.actions {
		if action.EnqueuedAt.After(cutoff) {
			kept = append(kept, action)
		}
	}
	removed := len(q.actions) - len(kept)
	if removed == 0 {
		q.mu.Unlock()
		return 0, nil
	}
	q.actions = kept
	err := q.persistLocked(ctx)
	q.mu.Unlock()

	q.logger.Warn("Dropped expired sync actions",
		zap.Int("removed", removed),
		zap.Time("cutoff", cutoff),
	)
	if err != nil {
		return removed, apperrors.NewDatabaseError("persist sync queue", err)
	}
	return removed, nil
}

// Stats counts the pending actions per kind
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{
		Total:    len(q.actions),
		ByKind:   make(map[domain.ActionKind]int, len(domain.ActionKinds)),
		Draining: q.draining,
	}
	for _, kind := range domain.ActionKinds {
		stats.ByKind[kind] = 0
	}
	for _, action := range q.actions {
		stats.ByKind[action.Kind]++
	}
	return stats
}

// Pending returns a copy of the queued actions in order
func (q *Queue) Pending() []domain.PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.PendingAction(nil), q.actions...)
}

// LastSyncTime is when a drain last delivered or dropped something
func (q *Queue) LastSyncTime() *time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lastSync == nil {
		return nil
	}
	t := *q.lastSync
	return &t
}

// Wait blocks until background drains have finished
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close stops background drains at their next suspension point and waits for them
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) dispatch(ctx context.Context, action domain.PendingAction) (err error) {
	handler, ok := q.handlers[action.Kind]
	if !ok {
		return fmt.Errorf("no handler registered for action %q", action.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %q panicked: %v", action.Kind, r)
		}
	}()
	return handler(ctx, action.Payload)
}

func (q *Queue) notify(ctx context.Context, hooks []OutcomeHook, action domain.PendingAction, delivered bool) {
	for _, hook := range hooks {
		hook(ctx, action, delivered)
	}
}

func (q *Queue) load(ctx context.Context) error {
	var actions []domain.PendingAction
	err := storage.GetJSON(ctx, q.store, PendingActionsKey, &actions)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			q.logger.Error("Stored sync queue is unreadable, starting empty", zap.Error(err))
			break
		}
		return fmt.Errorf("failed to load sync queue: %w", err)
	default:
		q.actions = actions
	}

	raw, err := q.store.Get(ctx, LastSyncTimeKey)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("failed to load last sync time: %w", err)
	default:
		if t, parseErr := time.Parse(time.RFC3339, string(raw)); parseErr == nil {
			q.lastSync = &t
		}
	}

	q.logger.Info("Sync queue loaded", zap.Int("pending", len(q.actions)))
	return nil
}

func (q *Queue) persistLocked(ctx context.Context) error {
	actions := q.actions
	if actions == nil {
		actions = []domain.PendingAction{}
	}
	return storage.SetJSON(ctx, q.store, PendingActionsKey, actions)
}

func validKind(kind domain.ActionKind) bool {
	for _, k := range domain.ActionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
