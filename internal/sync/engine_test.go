package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	apperr "github.com/studyflow/backend/internal/errors"
	"github.com/studyflow/backend/internal/models"
	"github.com/studyflow/backend/internal/session"
	"github.com/studyflow/backend/internal/store"
)

// remoteCall records one call the fake backend received.
type remoteCall struct {
	method   string
	kind     models.Kind
	recordID string
	idemKey  string
	payload  string
}

// fakeRemote is a scriptable RemoteClient.
type fakeRemote struct {
	mu        sync.Mutex
	calls     []remoteCall
	nextID    int
	failOn    map[string]error // keyed by method+"/"+recordID (or idemKey for create)
	fetch     map[models.Kind][]models.Record
	blockCh   chan struct{} // if set, Create blocks until closed
	enteredCh chan struct{} // if set, closed when a blocked Create is entered
	enterOnce sync.Once
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failOn: make(map[string]error), fetch: make(map[models.Kind][]models.Record)}
}

func (f *fakeRemote) record(c remoteCall) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeRemote) callList() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remoteCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRemote) Create(_ context.Context, _ string, kind models.Kind, payload json.RawMessage, idemKey string) (string, error) {
	if f.blockCh != nil {
		if f.enteredCh != nil {
			f.enterOnce.Do(func() { close(f.enteredCh) })
		}
		<-f.blockCh
	}
	f.record(remoteCall{"create", kind, "", idemKey, string(payload)})
	if err := f.failOn["create/"+idemKey]; err != nil {
		return "", err
	}
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("srv-%d", f.nextID)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeRemote) Update(_ context.Context, kind models.Kind, remoteID string, payload json.RawMessage) error {
	f.record(remoteCall{"update", kind, remoteID, "", string(payload)})
	return f.failOn["update/"+remoteID]
}

func (f *fakeRemote) Delete(_ context.Context, kind models.Kind, remoteID string) error {
	f.record(remoteCall{"delete", kind, remoteID, "", ""})
	return f.failOn["delete/"+remoteID]
}

func (f *fakeRemote) FetchAll(_ context.Context, _ string, kind models.Kind) ([]models.Record, error) {
	f.record(remoteCall{"fetch", kind, "", "", ""})
	if err := f.failOn["fetch/"+string(kind)]; err != nil {
		return nil, err
	}
	return f.fetch[kind], nil
}

// fakeMonitor is a scriptable ConnectivityMonitor.
type fakeMonitor struct {
	mu       sync.Mutex
	online   bool
	failures int
	listener func(bool)
}

func (m *fakeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMonitor) AddListener(fn func(bool)) func() {
	m.mu.Lock()
	m.listener = fn
	m.mu.Unlock()
	return func() {}
}

func (m *fakeMonitor) ReportFailure() {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

func (m *fakeMonitor) setOnline(online bool) {
	m.mu.Lock()
	m.online = online
	fn := m.listener
	m.mu.Unlock()
	if fn != nil {
		fn(online)
	}
}

func testEngine(t *testing.T) (*Engine, *store.Store, *fakeRemote, *fakeMonitor) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	remote := newFakeRemote()
	monitor := &fakeMonitor{online: true}
	e := New(st, remote, monitor, session.Static{User: "u1"}, Config{
		BackoffBase: 30 * time.Second,
		BackoffCap:  15 * time.Minute,
	})
	return e, st, remote, monitor
}

func enqueue(t *testing.T, st *store.Store, opID string, opType models.OpType, recordID, payload string) {
	t.Helper()
	op := &models.PendingOperation{
		ID: opID, UserID: "u1", Kind: models.KindAssignments,
		Type: opType, RecordID: recordID,
	}
	if payload != "" {
		op.Payload = json.RawMessage(payload)
	}
	if err := st.EnqueueOperation(op); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
}

func TestOfflineNothingIsSent(t *testing.T) {
	e, st, remote, monitor := testEngine(t)
	monitor.setOnline(false)

	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"x"}`)

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("offline sync should not error: %v", err)
	}
	if len(remote.callList()) != 0 {
		t.Errorf("no remote calls expected while offline, got %+v", remote.callList())
	}
	if e.Status().State != StatePending {
		t.Errorf("expected pending state, got %s", e.Status().State)
	}
	if e.Status().Pending != 1 {
		t.Errorf("expected 1 pending op, got %d", e.Status().Pending)
	}
}

func TestReconnectDrainsQueueInOrder(t *testing.T) {
	e, st, remote, monitor := testEngine(t)
	monitor.setOnline(false)

	// Offline: create record A with its final title already folded into the
	// create payload (the façade coalesces updates into a pending create).
	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"final"}`)

	e.Start(context.Background())
	defer e.Stop()

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("offline pass failed: %v", err)
	}

	monitor.setOnline(true) // transition fires a background trigger

	waitFor(t, func() bool {
		n, _ := st.PendingCount()
		return n == 0
	})

	calls := remote.callList()
	var creates, updates int
	for _, c := range calls {
		switch c.method {
		case "create":
			creates++
			if c.payload != `{"title":"final"}` {
				t.Errorf("create should carry final title, got %s", c.payload)
			}
		case "update":
			updates++
		}
	}
	if creates != 1 {
		t.Errorf("expected exactly one create, got %d", creates)
	}
	if updates != 0 {
		t.Errorf("expected zero updates, got %d", updates)
	}
}

func TestRemapAppliesToDependentOperations(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	st.PutRecord("u1", models.KindAssignments, models.Record{
		ID: "tmp_a", UserID: "u1", Payload: json.RawMessage(`{"title":"v1"}`), UpdatedAt: 1,
	})
	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"v1"}`)
	enqueue(t, st, "op2", models.OpUpdate, "tmp_a", `{"title":"v2"}`)
	enqueue(t, st, "op3", models.OpDelete, "tmp_a", "")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	for _, c := range remote.callList() {
		if c.recordID == "tmp_a" {
			t.Errorf("temporary id leaked to remote store in %s call", c.method)
		}
	}

	calls := remote.callList()
	if len(calls) < 3 {
		t.Fatalf("expected create+update+delete, got %+v", calls)
	}
	if calls[0].method != "create" {
		t.Errorf("expected create first, got %s", calls[0].method)
	}
	if calls[1].method != "update" || calls[1].recordID != "srv-1" {
		t.Errorf("expected update on srv-1, got %+v", calls[1])
	}
	if calls[2].method != "delete" || calls[2].recordID != "srv-1" {
		t.Errorf("expected delete on srv-1, got %+v", calls[2])
	}

	n, _ := st.PendingCount()
	if n != 0 {
		t.Errorf("expected drained queue, got %d pending", n)
	}
}

func TestValidationFailureIsolation(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"one"}`)
	enqueue(t, st, "op2", models.OpCreate, "tmp_b", `{"title":""}`)
	enqueue(t, st, "op3", models.OpCreate, "tmp_c", `{"title":"three"}`)
	remote.failOn["create/op2"] = apperr.New(apperr.ErrValidation, "title required")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("sync should continue past a validation failure: %v", err)
	}

	var created []string
	for _, c := range remote.callList() {
		if c.method == "create" {
			created = append(created, c.idemKey)
		}
	}
	if len(created) != 3 {
		t.Fatalf("all three creates should be attempted, got %v", created)
	}

	n, _ := st.PendingCount()
	if n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}

	dropped := e.DroppedOperations()
	if len(dropped) != 1 || dropped[0].ID != "op2" {
		t.Errorf("expected op2 reported dropped, got %+v", dropped)
	}
}

func TestDroppedCreateCancelsDependents(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":""}`)
	enqueue(t, st, "op2", models.OpUpdate, "tmp_a", `{"title":"later"}`)
	remote.failOn["create/op1"] = apperr.New(apperr.ErrValidation, "title required")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	for _, c := range remote.callList() {
		if c.method == "update" {
			t.Errorf("dependent update of a rejected create must not be sent: %+v", c)
		}
	}
	n, _ := st.PendingCount()
	if n != 0 {
		t.Errorf("doomed dependents should be removed, got %d pending", n)
	}
}

func TestNetworkFailureStopsPassAndPreservesOp(t *testing.T) {
	e, st, remote, monitor := testEngine(t)

	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"a"}`)
	enqueue(t, st, "op2", models.OpCreate, "tmp_b", `{"title":"b"}`)
	remote.failOn["create/op1"] = apperr.New(apperr.ErrNetwork, "connection reset")

	err := e.Sync(context.Background())
	if !apperr.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}

	if len(remote.callList()) != 1 {
		t.Errorf("pass should stop at first transient failure, got %+v", remote.callList())
	}

	ops, _ := st.ListOperations()
	if len(ops) != 2 {
		t.Fatalf("queue must be preserved, got %d ops", len(ops))
	}
	if ops[0].RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", ops[0].RetryCount)
	}
	if e.Status().State != StateError {
		t.Errorf("expected error state, got %s", e.Status().State)
	}
	monitor.mu.Lock()
	failures := monitor.failures
	monitor.mu.Unlock()
	if failures != 1 {
		t.Errorf("engine should report the failure to the monitor, got %d", failures)
	}
}

func TestBackoffDefersOnlyTheFailedRecord(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"a"}`)
	enqueue(t, st, "op2", models.OpCreate, "tmp_b", `{"title":"b"}`)
	remote.failOn["create/op1"] = apperr.New(apperr.ErrNetwork, "reset")

	if err := e.Sync(context.Background()); err == nil {
		t.Fatal("expected transient failure")
	}

	// Second pass inside the backoff window: op1 is deferred, op2 proceeds.
	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("second pass should succeed for op2: %v", err)
	}

	ops, _ := st.ListOperations()
	if len(ops) != 1 || ops[0].ID != "op1" {
		t.Fatalf("expected only op1 left deferred, got %+v", ops)
	}
	if e.Status().State != StatePending {
		t.Errorf("expected pending state while ops deferred, got %s", e.Status().State)
	}

	// After the backoff window, op1 is retried with the same idempotency key.
	e.now = func() time.Time { return time.Now().Add(time.Hour) }
	delete(remote.failOn, "create/op1")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("retry pass failed: %v", err)
	}

	var keys []string
	for _, c := range remote.callList() {
		if c.method == "create" && c.idemKey == "op1" {
			keys = append(keys, c.idemKey)
		}
	}
	if len(keys) != 2 {
		t.Errorf("expected create op1 attempted twice with the same key, got %d", len(keys))
	}
	n, _ := st.PendingCount()
	if n != 0 {
		t.Errorf("expected drained queue, got %d", n)
	}
}

func TestAuthFailurePausesUntilResume(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"a"}`)
	remote.failOn["create/op1"] = apperr.New(apperr.ErrAuth, "token expired")

	err := e.Sync(context.Background())
	if !apperr.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !e.Status().AuthRequired {
		t.Error("expected auth_required in status")
	}

	// While paused, sync refuses without touching the network.
	before := len(remote.callList())
	if err := e.Sync(context.Background()); !apperr.IsAuth(err) {
		t.Fatalf("expected paused engine to surface auth error, got %v", err)
	}
	if len(remote.callList()) != before {
		t.Error("paused engine must not call the remote store")
	}

	ops, _ := st.ListOperations()
	if len(ops) != 1 {
		t.Fatal("queue must survive an auth pause")
	}

	delete(remote.failOn, "create/op1")
	e.Resume(context.Background())

	waitFor(t, func() bool {
		n, _ := st.PendingCount()
		return n == 0
	})
}

func TestNotFoundOnUpdateIsSuccess(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	enqueue(t, st, "op1", models.OpUpdate, "srv-9", `{"title":"x"}`)
	remote.failOn["update/srv-9"] = apperr.New(apperr.ErrNotFound, "gone")

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("not-found update should be treated as success: %v", err)
	}
	n, _ := st.PendingCount()
	if n != 0 {
		t.Errorf("expected op dequeued, got %d pending", n)
	}
}

func TestPullMergesRemoteRecordsAfterDrain(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	remote.fetch[models.KindAssignments] = []models.Record{
		{ID: "srv-7", UserID: "u1", Payload: json.RawMessage(`{"title":"from-other-device"}`), UpdatedAt: 99},
	}

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	_, exists, _ := st.GetRecord("u1", models.KindAssignments, "srv-7")
	if !exists {
		t.Error("remote record should be merged into the local store")
	}

	ts, _ := st.LastSyncedAt("u1")
	if ts == 0 {
		t.Error("last synced timestamp should be recorded")
	}
	if e.Status().State != StateIdle {
		t.Errorf("expected idle after clean pass, got %s", e.Status().State)
	}
}

func TestSingleFlight(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	remote.blockCh = make(chan struct{})
	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"a"}`)

	done := make(chan error, 1)
	go func() { done <- e.Sync(context.Background()) }()

	waitFor(t, func() bool { return e.Status().State == StateSyncing })

	// Re-entrant trigger while syncing is a no-op.
	if err := e.Sync(context.Background()); err != nil {
		t.Errorf("concurrent sync should return immediately, got %v", err)
	}

	close(remote.blockCh)
	if err := <-done; err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	var creates int
	for _, c := range remote.callList() {
		if c.method == "create" {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("expected exactly one create despite concurrent trigger, got %d", creates)
	}
}

func TestStatusListener(t *testing.T) {
	e, st, _, _ := testEngine(t)

	var mu sync.Mutex
	var states []State
	unsub := e.AddListener(func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	defer unsub()

	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"a"}`)
	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 3 {
		t.Fatalf("expected initial+syncing+idle notifications, got %v", states)
	}
	if states[len(states)-1] != StateIdle {
		t.Errorf("expected final state idle, got %v", states)
	}
}

func TestBackoffGrowthIsCapped(t *testing.T) {
	e, _, _, _ := testEngine(t)

	if d := e.backoff(1); d != 30*time.Second {
		t.Errorf("retry 1: expected 30s, got %v", d)
	}
	if d := e.backoff(2); d != time.Minute {
		t.Errorf("retry 2: expected 1m, got %v", d)
	}
	if d := e.backoff(20); d != 15*time.Minute {
		t.Errorf("retry 20: expected cap 15m, got %v", d)
	}
}

func TestEditDuringInFlightCreateIsNotLost(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	st.PutRecord("u1", models.KindAssignments, models.Record{
		ID: "tmp_a", UserID: "u1", Payload: json.RawMessage(`{"title":"v1"}`), UpdatedAt: 1,
	})
	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"v1"}`)

	remote.blockCh = make(chan struct{})
	remote.enteredCh = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- e.Sync(context.Background()) }()
	<-remote.enteredCh

	// While the create is on the wire, the façade folds an edit into the
	// queued payload, the way put() coalesces edits into a pending create.
	if err := st.UpdateOperationPayload("op1", []byte(`{"title":"v2"}`)); err != nil {
		t.Fatalf("fold failed: %v", err)
	}

	close(remote.blockCh)
	if err := <-done; err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	// The stale payload went out as the create; the folded edit must
	// survive, replayed as an update on the server id.
	ops, _ := st.ListOperations()
	if len(ops) != 1 {
		t.Fatalf("folded edit must survive the create's dequeue, got %d ops", len(ops))
	}
	if ops[0].Type != models.OpUpdate || ops[0].RecordID != "srv-1" {
		t.Fatalf("expected update on srv-1, got type=%s record=%s", ops[0].Type, ops[0].RecordID)
	}

	remote.blockCh = nil
	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("follow-up pass failed: %v", err)
	}

	var sent remoteCall
	for _, c := range remote.callList() {
		if c.method == "update" {
			sent = c
		}
	}
	if sent.recordID != "srv-1" || sent.payload != `{"title":"v2"}` {
		t.Errorf("edited payload must reach the remote store as an update, got %+v", remote.callList())
	}
	n, _ := st.PendingCount()
	if n != 0 {
		t.Errorf("expected drained queue, got %d", n)
	}
}

func TestDeleteDuringInFlightCreateRemovesRemoteCopy(t *testing.T) {
	e, st, remote, _ := testEngine(t)

	st.PutRecord("u1", models.KindAssignments, models.Record{
		ID: "tmp_a", UserID: "u1", Payload: json.RawMessage(`{"title":"doomed"}`), UpdatedAt: 1,
	})
	enqueue(t, st, "op1", models.OpCreate, "tmp_a", `{"title":"doomed"}`)

	remote.blockCh = make(chan struct{})
	remote.enteredCh = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- e.Sync(context.Background()) }()
	<-remote.enteredCh

	// While the create is on the wire, the user deletes the record: the
	// façade removes it locally and cancels its queued operations.
	if err := st.DeleteRecord("u1", models.KindAssignments, "tmp_a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := st.RemoveOperationsForRecord(models.KindAssignments, "tmp_a"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	close(remote.blockCh)
	if err := <-done; err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	// The create succeeded remotely anyway; a compensating delete must be
	// queued for the server id, or the next pull resurrects the record.
	ops, _ := st.ListOperations()
	if len(ops) != 1 || ops[0].Type != models.OpDelete || ops[0].RecordID != "srv-1" {
		t.Fatalf("expected compensating delete on srv-1, got %+v", ops)
	}

	remote.blockCh = nil
	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("follow-up pass failed: %v", err)
	}

	var deleted bool
	for _, c := range remote.callList() {
		if c.method == "delete" && c.recordID == "srv-1" {
			deleted = true
		}
	}
	if !deleted {
		t.Error("remote copy of the cancelled create must be deleted")
	}
	if _, exists, _ := st.GetRecord("u1", models.KindAssignments, "srv-1"); exists {
		t.Error("deleted record must not reappear locally")
	}
	n, _ := st.PendingCount()
	if n != 0 {
		t.Errorf("expected drained queue, got %d", n)
	}
}

func TestOfflineWithEmptyQueueStaysIdle(t *testing.T) {
	e, _, remote, monitor := testEngine(t)
	monitor.setOnline(false)

	if err := e.Sync(context.Background()); err != nil {
		t.Fatalf("offline sync should not error: %v", err)
	}
	if got := e.Status().State; got != StateIdle {
		t.Errorf("nothing queued, expected idle, got %s", got)
	}
	if len(remote.callList()) != 0 {
		t.Errorf("no remote calls expected while offline, got %+v", remote.callList())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never satisfied")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
