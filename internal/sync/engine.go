// Package sync drains the pending-operation queue against the remote store
// and merges remote deltas back into the local store.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperr "github.com/studyflow/backend/internal/errors"
	"github.com/studyflow/backend/internal/ids"
	"github.com/studyflow/backend/internal/logging"
	"github.com/studyflow/backend/internal/models"
	"github.com/studyflow/backend/internal/session"
	"github.com/studyflow/backend/internal/store"
)

// State is the engine's externally visible state.
type State string

const (
	// StateIdle means the queue is empty and the last pass succeeded.
	StateIdle State = "idle"
	// StateSyncing means a drain pass is in progress.
	StateSyncing State = "syncing"
	// StatePending means operations are queued but not yet attempted.
	StatePending State = "pending"
	// StateError means the last pass failed and will be retried.
	StateError State = "error"
)

// RemoteClient is the surface the engine needs from the cloud backend.
type RemoteClient interface {
	Create(ctx context.Context, userID string, kind models.Kind, payload json.RawMessage, idempotencyKey string) (string, error)
	Update(ctx context.Context, kind models.Kind, remoteID string, payload json.RawMessage) error
	Delete(ctx context.Context, kind models.Kind, remoteID string) error
	FetchAll(ctx context.Context, userID string, kind models.Kind) ([]models.Record, error)
}

// ConnectivityMonitor is the surface the engine needs from the network
// monitor.
type ConnectivityMonitor interface {
	IsOnline() bool
	AddListener(fn func(online bool)) func()
	ReportFailure()
}

// Status is the snapshot reported to listeners; it backs the non-blocking
// sync indicator ({synced, pending-N, syncing, offline, error}).
type Status struct {
	State        State  `json:"state"`
	Online       bool   `json:"online"`
	Pending      int    `json:"pending"`
	Dropped      int    `json:"dropped"`
	AuthRequired bool   `json:"auth_required"`
	LastError    string `json:"last_error,omitempty"`
	LastSyncedAt int64  `json:"last_synced_at,omitempty"`
}

// Listener receives a status snapshot after every state change.
type Listener func(Status)

// Config holds engine tuning knobs. Retry/backoff parameters are a
// configuration surface, not constants.
type Config struct {
	// BackoffBase is the delay after the first transient failure.
	// Zero defaults to 30s.
	BackoffBase time.Duration
	// BackoffCap bounds the exponential growth. Zero defaults to 15m.
	BackoffCap time.Duration
}

// Engine orchestrates queue draining, id remapping, and merge.
type Engine struct {
	store   *store.Store
	remote  RemoteClient
	monitor ConnectivityMonitor
	sess    session.Provider

	backoffBase time.Duration
	backoffCap  time.Duration
	now         func() time.Time

	mu           sync.Mutex
	state        State
	syncing      bool
	authPaused   bool
	lastErr      error
	dropped      []models.PendingOperation
	remapped     []remap
	nextRetryAt  map[string]time.Time
	listeners    map[int]Listener
	nextListener int

	unsubscribe func()
}

// New creates an Engine. Call Start to subscribe it to connectivity
// transitions.
func New(st *store.Store, remote RemoteClient, monitor ConnectivityMonitor, sess session.Provider, cfg Config) *Engine {
	base := cfg.BackoffBase
	if base == 0 {
		base = 30 * time.Second
	}
	ceiling := cfg.BackoffCap
	if ceiling == 0 {
		ceiling = 15 * time.Minute
	}
	return &Engine{
		store:       st,
		remote:      remote,
		monitor:     monitor,
		sess:        sess,
		backoffBase: base,
		backoffCap:  ceiling,
		now:         time.Now,
		state:       StateIdle,
		nextRetryAt: make(map[string]time.Time),
		listeners:   make(map[int]Listener),
	}
}

// Start subscribes the engine to connectivity transitions: coming back
// online triggers a drain.
func (e *Engine) Start(ctx context.Context) {
	e.unsubscribe = e.monitor.AddListener(func(online bool) {
		if online {
			e.Trigger(ctx)
		} else {
			e.notify()
		}
	})
}

// Stop unsubscribes from the monitor. In-flight passes finish on their own;
// the queue is durable and resumes on next load.
func (e *Engine) Stop() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

// AddListener registers a status listener and returns an unsubscribe
// function. The listener immediately receives the current status.
func (e *Engine) AddListener(fn Listener) func() {
	e.mu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	e.mu.Unlock()

	fn(e.Status())

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Status returns the current status snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	pending, _ := e.store.PendingCount()

	s := Status{
		State:        e.state,
		Online:       e.monitor.IsOnline(),
		Pending:      pending,
		Dropped:      len(e.dropped),
		AuthRequired: e.authPaused,
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	if uid, err := e.sess.UserID(); err == nil {
		if ts, err := e.store.LastSyncedAt(uid); err == nil {
			s.LastSyncedAt = ts
		}
	}
	return s
}

func (e *Engine) notify() {
	e.mu.Lock()
	status := e.statusLocked()
	fns := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}

// DroppedOperations returns operations discarded as permanently invalid
// since the engine was created.
func (e *Engine) DroppedOperations() []models.PendingOperation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.PendingOperation, len(e.dropped))
	copy(out, e.dropped)
	return out
}

// Resume clears the auth pause after the caller re-authenticated and
// triggers a drain. The queue was preserved throughout.
func (e *Engine) Resume(ctx context.Context) {
	e.mu.Lock()
	e.authPaused = false
	e.lastErr = nil
	e.mu.Unlock()
	e.Trigger(ctx)
}

// Trigger fires a background drain pass. It never blocks; a trigger while a
// pass is running is a no-op, not a queued retry.
func (e *Engine) Trigger(ctx context.Context) {
	go e.Sync(ctx)
}

// Sync runs one drain pass followed by a fetch-and-merge, synchronously.
// Only one pass runs at a time; concurrent callers return immediately.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil
	}
	if e.authPaused {
		e.mu.Unlock()
		return apperr.New(apperr.ErrAuth, "sync paused until re-authentication")
	}
	if !e.monitor.IsOnline() {
		// Nothing is sent while offline; queued work waits for reconnect.
		if pending, _ := e.store.PendingCount(); pending > 0 {
			e.state = StatePending
		} else {
			e.state = StateIdle
		}
		e.mu.Unlock()
		e.notify()
		return nil
	}
	e.syncing = true
	e.state = StateSyncing
	e.mu.Unlock()
	e.notify()

	err := e.run(ctx)

	e.mu.Lock()
	e.syncing = false
	e.lastErr = err
	if err != nil {
		e.state = StateError
	} else if pending, _ := e.store.PendingCount(); pending > 0 {
		// Ops remained deferred by backoff; a later trigger picks them up.
		e.state = StatePending
	} else {
		e.state = StateIdle
	}
	e.mu.Unlock()
	e.notify()
	return err
}

// run drains the queue and, if it fully empties, pulls remote deltas.
func (e *Engine) run(ctx context.Context) error {
	if err := e.drain(ctx); err != nil {
		return err
	}

	pending, err := e.store.PendingCount()
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}
	return e.pull(ctx)
}

// drain replays queued operations in enqueue order, per record: an
// operation is never attempted while an earlier one for the same record is
// unresolved.
func (e *Engine) drain(ctx context.Context) error {
	ops, err := e.store.ListOperations()
	if err != nil {
		return err
	}

	blocked := make(map[string]bool)
	key := func(op models.PendingOperation) string {
		return string(op.Kind) + "/" + op.RecordID
	}

	for i := 0; i < len(ops); i++ {
		op := ops[i]
		if err := ctx.Err(); err != nil {
			return apperr.Wrap(apperr.ErrNetwork, "sync cancelled", err)
		}
		if blocked[key(op)] {
			continue
		}

		e.mu.Lock()
		next, deferred := e.nextRetryAt[op.ID]
		e.mu.Unlock()
		if deferred && e.now().Before(next) {
			// Backoff defers this record's whole chain, not just this op.
			blocked[key(op)] = true
			continue
		}

		switch err := e.apply(ctx, op); {
		case err == nil:
			if op.Type == models.OpCreate {
				// apply remapped the id in the store; fix the in-memory
				// tail of the queue so ordering checks still line up.
				newID := e.remappedID(op)
				if newID != op.RecordID {
					for j := i + 1; j < len(ops); j++ {
						if ops[j].Kind == op.Kind && ops[j].RecordID == op.RecordID {
							ops[j].RecordID = newID
						}
					}
				}
				if err := e.settleCreate(op, newID); err != nil {
					return err
				}
			} else if err := e.store.DequeueOperation(op.ID); err != nil {
				return err
			}
			e.mu.Lock()
			delete(e.nextRetryAt, op.ID)
			e.mu.Unlock()

		case apperr.IsValidation(err):
			// Permanent for this operation: drop it, report it, keep going.
			e.drop(op, err)
			if op.Type == models.OpCreate {
				// Dependent ops reference a record the backend will never
				// know; they are equally doomed.
				if _, rmErr := e.store.RemoveOperationsForRecord(op.Kind, op.RecordID); rmErr != nil {
					return rmErr
				}
				blocked[key(op)] = true
			}

		case apperr.IsAuth(err):
			e.mu.Lock()
			e.authPaused = true
			e.mu.Unlock()
			logging.Warn("sync paused: re-authentication required", logging.Fields{"op_id": op.ID})
			return err

		case apperr.IsNetwork(err):
			count, rErr := e.store.IncrementRetry(op.ID)
			if rErr != nil {
				return rErr
			}
			e.mu.Lock()
			e.nextRetryAt[op.ID] = e.now().Add(e.backoff(count))
			e.mu.Unlock()
			e.monitor.ReportFailure()
			logging.Warn("transient sync failure, will retry", logging.Fields{
				"op_id": op.ID, "retry_count": count,
			})
			return err

		default:
			return err
		}
	}
	return nil
}

// apply sends one operation to the remote store. NotFound on update/delete
// is success: the desired end state is already achieved.
func (e *Engine) apply(ctx context.Context, op models.PendingOperation) error {
	switch op.Type {
	case models.OpCreate:
		remoteID, err := e.remote.Create(ctx, op.UserID, op.Kind, op.Payload, op.ID)
		if err != nil {
			return err
		}
		if remoteID != op.RecordID {
			if err := e.store.RemapID(op.Kind, op.RecordID, remoteID); err != nil {
				return err
			}
			e.mu.Lock()
			e.remapped = append(e.remapped, remap{op.ID, remoteID})
			e.mu.Unlock()
		}
		return nil

	case models.OpUpdate:
		if ids.IsTemp(op.RecordID) {
			// The create that would have resolved this id is gone; the
			// backend has never heard of the record.
			return apperr.New(apperr.ErrValidation,
				fmt.Sprintf("update references unresolved temporary id %s", op.RecordID))
		}
		err := e.remote.Update(ctx, op.Kind, op.RecordID, op.Payload)
		if apperr.IsNotFound(err) {
			return nil
		}
		return err

	case models.OpDelete:
		if ids.IsTemp(op.RecordID) {
			return apperr.New(apperr.ErrValidation,
				fmt.Sprintf("delete references unresolved temporary id %s", op.RecordID))
		}
		return e.remote.Delete(ctx, op.Kind, op.RecordID)

	default:
		return apperr.New(apperr.ErrInvalid, fmt.Sprintf("unknown operation type %q", op.Type))
	}
}

// settleCreate finalizes a create after remote success. The façade may have
// touched the queue while the request was in flight, so the dequeue is
// conditional on the payload being the one that was sent. A payload folded
// in mid-flight is stale remotely and replays as an update on the server
// id; a create cancelled mid-flight leaves a remote record the user already
// deleted locally, so a compensating delete is queued before the next pull
// can resurrect it.
func (e *Engine) settleCreate(op models.PendingOperation, newID string) error {
	removed, err := e.store.DequeueIfUnchanged(op.ID, op.Payload)
	if err != nil || removed {
		return err
	}

	_, exists, err := e.store.GetOperation(op.ID)
	if err != nil {
		return err
	}
	if exists {
		logging.Debug("create payload changed mid-flight, replaying as update", logging.Fields{
			"op_id": op.ID, "record_id": newID,
		})
		return e.store.ConvertToUpdate(op.ID)
	}

	_, recordExists, err := e.store.GetRecord(op.UserID, op.Kind, newID)
	if err != nil {
		return err
	}
	if !recordExists {
		logging.Debug("create cancelled mid-flight, queueing compensating delete", logging.Fields{
			"op_id": op.ID, "record_id": newID,
		})
		return e.store.EnqueueOperation(&models.PendingOperation{
			ID:       ids.New(),
			UserID:   op.UserID,
			Kind:     op.Kind,
			Type:     models.OpDelete,
			RecordID: newID,
		})
	}
	return nil
}

type remap struct {
	opID  string
	newID string
}

func (e *Engine) remappedID(op models.PendingOperation) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.remapped {
		if r.opID == op.ID {
			return r.newID
		}
	}
	return op.RecordID
}

func (e *Engine) drop(op models.PendingOperation, cause error) {
	if err := e.store.DequeueOperation(op.ID); err != nil {
		logging.Error("failed to discard invalid operation", err, logging.Fields{"op_id": op.ID})
		return
	}
	e.mu.Lock()
	e.dropped = append(e.dropped, op)
	delete(e.nextRetryAt, op.ID)
	e.mu.Unlock()
	logging.Warn("discarded permanently invalid operation", logging.Fields{
		"op_id": op.ID, "type": string(op.Type), "record_id": op.RecordID, "cause": cause.Error(),
	})
}

// pull absorbs server-side changes (e.g. edits from another device) after
// the queue has fully drained.
func (e *Engine) pull(ctx context.Context) error {
	userID, err := e.sess.UserID()
	if err != nil {
		e.mu.Lock()
		e.authPaused = true
		e.mu.Unlock()
		return err
	}

	for _, kind := range models.Kinds {
		remoteRecords, err := e.remote.FetchAll(ctx, userID, kind)
		if err != nil {
			if apperr.IsAuth(err) {
				e.mu.Lock()
				e.authPaused = true
				e.mu.Unlock()
			}
			if apperr.IsNetwork(err) {
				e.monitor.ReportFailure()
			}
			return err
		}
		applied, err := e.store.MergeCollection(userID, kind, remoteRecords)
		if err != nil {
			return err
		}
		if applied > 0 {
			logging.Debug("merged remote records", logging.Fields{
				"kind": string(kind), "applied": applied,
			})
		}
	}

	return e.store.SetLastSyncedAt(userID, e.now().Unix())
}

// backoff returns the delay before retry n (1-based): base doubled per
// failure, capped.
func (e *Engine) backoff(retryCount int) time.Duration {
	d := e.backoffBase
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= e.backoffCap {
			return e.backoffCap
		}
	}
	if d > e.backoffCap {
		return e.backoffCap
	}
	return d
}
