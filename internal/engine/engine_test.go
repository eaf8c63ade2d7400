package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stridehq/stride/internal/remote"
	"github.com/stridehq/stride/internal/resilience"
	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
)

// fakeRemote is an in-memory stand-in for the remote system of record.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int
	records map[string]remote.Record
	// domains tags each created record with its domain so Query can scope
	// results the way the real remote does. Records inserted directly by
	// tests carry no tag and are returned for every domain.
	domains map[string]types.Domain

	createCalls int
	updateCalls int
	queryCalls  int

	// failWith, when set, makes every call fail.
	failWith error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records: make(map[string]remote.Record),
		domains: make(map[string]types.Domain),
	}
}

func (f *fakeRemote) Query(ctx context.Context, domain types.Domain, _ remote.Filter) ([]remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []remote.Record
	for id, r := range f.records {
		if d, ok := f.domains[id]; ok && d != domain {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRemote) Create(ctx context.Context, domain types.Domain, fields map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failWith != nil {
		return "", f.failWith
	}
	f.nextID++
	id := fmt.Sprintf("remote-%d", f.nextID)
	f.records[id] = remote.Record{ID: id, LastEditedAt: time.Now(), Fields: fields}
	f.domains[id] = domain
	return id, nil
}

func (f *fakeRemote) Update(ctx context.Context, remoteID string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.failWith != nil {
		return f.failWith
	}
	r, ok := f.records[remoteID]
	if !ok {
		return &remote.APIError{StatusCode: 404, Message: "not found"}
	}
	r.Fields = fields
	r.LastEditedAt = time.Now()
	f.records[remoteID] = r
	return nil
}

func (f *fakeRemote) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeRemote) counts() (create, update, query int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.updateCalls, f.queryCalls
}

func newTestEngine(t *testing.T, client remote.Client) (*Engine, *store.Store, *resilience.Registry) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	registry := resilience.NewRegistry(resilience.DefaultBreakerConfig())

	cfg := DefaultConfig()
	cfg.InterCallDelay = 0 // no pacing in tests
	cfg.RetryPolicy = resilience.Policy{MaxAttempts: 1}
	cfg.Logger = log.New(io.Discard, "", 0)

	return New(st, client, registry, cfg), st, registry
}

// A local create flows through: remote record minted, linkage bound,
// ledger entry terminal.
func TestPushCycleCreatesRemoteRecord(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	task, err := st.CreateTask(ctx, store.TaskParams{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	summary := eng.RunPushCycle(ctx)
	if summary.Processed != 1 || summary.Errors != 0 {
		t.Fatalf("expected processed=1 errors=0, got %+v", summary)
	}

	got, _ := st.GetTask(ctx, task.ID)
	if got.RemoteID == nil {
		t.Fatal("expected remote id bound after push")
	}
	if got.SyncedAt == nil {
		t.Error("expected synced_at stamped after push")
	}

	entries, _ := st.ListOutbox(ctx, store.OutboxFilter{Status: types.StatusSynced})
	if len(entries) != 1 {
		t.Errorf("expected 1 synced ledger entry, got %d", len(entries))
	}

	// Nothing pending remains; a second cycle is a no-op.
	summary = eng.RunPushCycle(ctx)
	if summary.Processed != 0 {
		t.Errorf("expected empty second cycle, got %+v", summary)
	}
	creates, updates, _ := fake.counts()
	if creates != 1 || updates != 0 {
		t.Errorf("expected 1 create and 0 updates, got %d/%d", creates, updates)
	}
}

func TestPushCycleUpdatesLinkedRecord(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	task, err := st.CreateTask(ctx, store.TaskParams{Title: "Draft"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	eng.RunPushCycle(ctx)

	title := "Final"
	if _, err := st.UpdateTask(ctx, task.ID, store.TaskUpdate{Title: &title}); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}

	summary := eng.RunPushCycle(ctx)
	if summary.Processed != 1 {
		t.Fatalf("expected processed=1, got %+v", summary)
	}
	creates, updates, _ := fake.counts()
	if creates != 1 || updates != 1 {
		t.Errorf("expected 1 create + 1 update, got %d/%d", creates, updates)
	}

	got, _ := st.GetTask(ctx, task.ID)
	rec := fake.records[*got.RemoteID]
	if rec.Fields["title"] != "Final" {
		t.Errorf("expected remote title Final, got %v", rec.Fields["title"])
	}
}

// A linkage persisted by an earlier attempt downgrades a retried create to
// an update, so the remote record is never minted twice.
func TestPushCreateIdempotentAfterPartialFailure(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	task, err := st.CreateTask(ctx, store.TaskParams{Title: "Once"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	// Simulate a crash after linkage but before the ledger was marked: the
	// entity carries a remote id while its create entry is still pending.
	if err := st.SetRemoteLinkage(ctx, types.DomainTask, task.ID, "remote-preexisting", time.Now()); err != nil {
		t.Fatalf("failed to set linkage: %v", err)
	}
	fake.mu.Lock()
	fake.records["remote-preexisting"] = remote.Record{ID: "remote-preexisting"}
	fake.mu.Unlock()

	summary := eng.RunPushCycle(ctx)
	if summary.Processed != 1 {
		t.Fatalf("expected processed=1, got %+v", summary)
	}
	creates, updates, _ := fake.counts()
	if creates != 0 {
		t.Errorf("retried create must not mint a second remote record, got %d creates", creates)
	}
	if updates != 1 {
		t.Errorf("expected the retry to become an update, got %d updates", updates)
	}
}

func TestPushFailureMarksEntryAndContinues(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	if _, err := st.CreateTask(ctx, store.TaskParams{Title: "a"}); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if _, err := st.CreateTask(ctx, store.TaskParams{Title: "b"}); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	fake.setFailure(&remote.APIError{StatusCode: 500, Message: "down"})
	summary := eng.RunPushCycle(ctx)
	if summary.Errors != 2 || summary.Processed != 0 {
		t.Fatalf("expected errors=2 processed=0, got %+v", summary)
	}

	failed, _ := st.ListOutbox(ctx, store.OutboxFilter{Status: types.StatusFailed})
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed entries, got %d", len(failed))
	}
	for _, e := range failed {
		if e.ErrorMessage == nil {
			t.Error("expected error message recorded on failed entry")
		}
	}

	// Failed entries are terminal: recovery does not resurrect them.
	fake.setFailure(nil)
	summary = eng.RunPushCycle(ctx)
	if summary.Processed != 0 {
		t.Errorf("failed entries must not be retried, got %+v", summary)
	}
}

// Habit entries are never drained: they stay pending and never reach the
// remote client.
func TestPushSkipsPushDisabledDomains(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	if _, err := st.CreateHabit(ctx, store.HabitParams{Name: "Run"}); err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	summary := eng.RunPushCycle(ctx)
	if summary.Processed != 0 || summary.Errors != 0 {
		t.Fatalf("expected empty cycle, got %+v", summary)
	}
	creates, updates, _ := fake.counts()
	if creates != 0 || updates != 0 {
		t.Error("push-disabled domain must not reach the remote client")
	}

	pending, _ := st.ListOutbox(ctx, store.OutboxFilter{Status: types.StatusPending})
	if len(pending) != 1 {
		t.Errorf("expected habit entry still pending, got %d", len(pending))
	}
}

// A full batch of older push-disabled entries must not crowd drainable
// entries out of the dequeue window.
func TestPushDisabledBacklogDoesNotStarveOtherDomains(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	// One entire default batch of habit entries, all older than the task.
	for i := 0; i < 10; i++ {
		if _, err := st.CreateHabit(ctx, store.HabitParams{Name: fmt.Sprintf("h%d", i)}); err != nil {
			t.Fatalf("failed to create habit: %v", err)
		}
	}
	task, err := st.CreateTask(ctx, store.TaskParams{Title: "Drain me"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	summary := eng.RunPushCycle(ctx)
	if summary.Processed != 1 || summary.Errors != 0 {
		t.Fatalf("expected the task drained in the first cycle, got %+v", summary)
	}

	got, _ := st.GetTask(ctx, task.ID)
	if got.RemoteID == nil {
		t.Fatal("expected task pushed despite older habit backlog")
	}
	creates, _, _ := fake.counts()
	if creates != 1 {
		t.Errorf("expected 1 remote create, got %d", creates)
	}

	// The habit entries are untouched, still pending.
	pending, _ := st.ListOutbox(ctx, store.OutboxFilter{Status: types.StatusPending, Domain: types.DomainHabit})
	if len(pending) != 10 {
		t.Errorf("expected 10 pending habit entries, got %d", len(pending))
	}
}

func TestPushBatchSizeBound(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := st.CreateTask(ctx, store.TaskParams{Title: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
	}

	summary := eng.RunPushCycle(ctx)
	if summary.Processed != 10 {
		t.Fatalf("expected default batch of 10, got %+v", summary)
	}

	eng.Tune(Tuning{BatchSize: 3})
	summary = eng.RunPushCycle(ctx)
	if summary.Processed != 3 {
		t.Errorf("expected tuned batch of 3, got %+v", summary)
	}
}

// Five consecutive remote failures trip the breaker; the sixth entry is
// rejected without the client ever being invoked.
func TestPushBreakerTripsAndRejects(t *testing.T) {
	fake := newFakeRemote()
	eng, st, registry := newTestEngine(t, fake)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := st.CreateTask(ctx, store.TaskParams{Title: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
	}
	fake.setFailure(&remote.APIError{StatusCode: 503, Message: "unavailable"})

	summary := eng.RunPushCycle(ctx)
	if summary.Errors != 6 {
		t.Fatalf("expected 6 errors, got %+v", summary)
	}

	creates, _, _ := fake.counts()
	if creates != 5 {
		t.Errorf("expected exactly 5 client calls before the breaker opened, got %d", creates)
	}
	if h := registry.Health()[DepRemoteAPI]; h.State != resilience.StateOpen {
		t.Errorf("expected breaker OPEN, got %s", h.State)
	}

	// The rejected entry is failed with the circuit-open error.
	failed, _ := st.ListOutbox(ctx, store.OutboxFilter{Status: types.StatusFailed})
	var sawOpen bool
	for _, e := range failed {
		if e.ErrorMessage != nil && strings.HasPrefix(*e.ErrorMessage, "circuit open") {
			sawOpen = true
		}
	}
	if !sawOpen {
		t.Error("expected a failed entry recording the open circuit")
	}
}

// Remote edits newer than the local sync point overwrite local fields.
func TestPullAppliesNewerRemoteEdit(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	task, err := st.CreateTask(ctx, store.TaskParams{Title: "Local title"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	eng.RunPushCycle(ctx)

	got, _ := st.GetTask(ctx, task.ID)
	remoteID := *got.RemoteID

	// Remote edit lands after the push.
	fake.mu.Lock()
	fake.records[remoteID] = remote.Record{
		ID:           remoteID,
		LastEditedAt: time.Now().Add(time.Minute),
		Fields:       map[string]interface{}{"title": "Remote title", "status": "done"},
	}
	fake.mu.Unlock()

	summary := eng.RunPullCycle(ctx)
	if summary.Applied != 1 {
		t.Fatalf("expected applied=1, got %+v", summary)
	}

	got, _ = st.GetTask(ctx, task.ID)
	if got.Title != "Remote title" {
		t.Errorf("expected remote overwrite, got %q", got.Title)
	}
	if got.Status != types.TaskStatusDone {
		t.Errorf("expected status done, got %s", got.Status)
	}

	// Audit entry recorded for the incoming overwrite.
	entries, _ := st.ListOutbox(ctx, store.OutboxFilter{})
	var sawAudit bool
	for _, e := range entries {
		if e.Direction == types.DirectionRemoteToLocal && e.Status == types.StatusSynced {
			sawAudit = true
		}
	}
	if !sawAudit {
		t.Error("expected a remote_to_local audit entry")
	}
}

func TestPullSkipsStaleRemoteEdit(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	task, err := st.CreateTask(ctx, store.TaskParams{Title: "Local title"})
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	eng.RunPushCycle(ctx)

	got, _ := st.GetTask(ctx, task.ID)
	remoteID := *got.RemoteID

	// Remote edit older than the sync point: last write was local.
	fake.mu.Lock()
	fake.records[remoteID] = remote.Record{
		ID:           remoteID,
		LastEditedAt: time.Now().Add(-time.Hour),
		Fields:       map[string]interface{}{"title": "Stale remote title"},
	}
	fake.mu.Unlock()

	summary := eng.RunPullCycle(ctx)
	if summary.Applied != 0 {
		t.Fatalf("expected applied=0 for stale edit, got %+v", summary)
	}
	if summary.Fetched != 1 {
		t.Errorf("expected the stale record counted as fetched, got %+v", summary)
	}
	got, _ = st.GetTask(ctx, task.ID)
	if got.Title != "Local title" {
		t.Errorf("stale remote edit must not overwrite, got %q", got.Title)
	}
}

func TestPullSkipsUntrackedRemoteRecords(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	fake.mu.Lock()
	fake.records["remote-unknown"] = remote.Record{
		ID:           "remote-unknown",
		LastEditedAt: time.Now(),
		Fields:       map[string]interface{}{"title": "Not ours"},
	}
	fake.mu.Unlock()

	summary := eng.RunPullCycle(ctx)
	if summary.Applied != 0 {
		t.Errorf("untracked remote records must be skipped, got %+v", summary)
	}
	tasks, _ := st.ListTasks(ctx, store.TaskFilter{})
	if len(tasks) != 0 {
		t.Errorf("pull must never create local rows, got %d", len(tasks))
	}
}

func TestPullFailureSkipsDomain(t *testing.T) {
	fake := newFakeRemote()
	eng, _, _ := newTestEngine(t, fake)
	ctx := context.Background()

	fake.setFailure(&remote.APIError{StatusCode: 500, Message: "down"})
	summary := eng.RunPullCycle(ctx)

	// One error per domain until the breaker opens; the cycle completes.
	if summary.Errors == 0 {
		t.Error("expected pull errors recorded")
	}
	if summary.Applied != 0 {
		t.Errorf("expected nothing applied, got %+v", summary)
	}
}

// Across N entries in one cycle, at least (N-1) * interCallDelay elapses.
func TestPushCyclePacing(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	const n = 4
	for i := 0; i < n; i++ {
		if _, err := st.CreateTask(ctx, store.TaskParams{Title: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
	}

	const delay = 20 * time.Millisecond
	eng.Tune(Tuning{InterCallDelay: delay})

	start := time.Now()
	summary := eng.RunPushCycle(ctx)
	elapsed := time.Since(start)

	if summary.Processed != n {
		t.Fatalf("expected processed=%d, got %+v", n, summary)
	}
	if min := (n - 1) * delay; elapsed < min {
		t.Errorf("expected at least %s between first and last call, cycle took %s", min, elapsed)
	}
}

// A tick that fires while the previous cycle is still running is skipped.
func TestPushOverlapGuard(t *testing.T) {
	fake := newFakeRemote()
	eng, _, _ := newTestEngine(t, fake)

	eng.pushBusy.Store(true)
	summary := eng.RunPushCycle(context.Background())
	if summary.Processed != 0 || summary.Errors != 0 {
		t.Errorf("expected skipped cycle, got %+v", summary)
	}
	eng.pushBusy.Store(false)
}

// Shortening the push interval at runtime re-arms the worker timer, so
// the next cycles run on the new cadence instead of waiting out the old.
func TestTuneReloadsPushInterval(t *testing.T) {
	fake := newFakeRemote()
	eng, _, _ := newTestEngine(t, fake)

	cycles := make(chan CycleSummary, 64)
	eng.config.OnCycle = func(s CycleSummary) {
		if s.Kind == "push" {
			cycles <- s
		}
	}
	eng.config.PushInterval = time.Hour
	eng.pushInterval.Store(int64(time.Hour))

	eng.Start()
	defer eng.Stop()

	// The immediate startup cycle.
	select {
	case <-cycles:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the startup push cycle")
	}

	// With the hour-long timer armed, only the reload can explain any
	// further cycles inside the test window.
	eng.Tune(Tuning{PushInterval: 10 * time.Millisecond})
	for i := 0; i < 2; i++ {
		select {
		case <-cycles:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tuned push cycle %d", i+1)
		}
	}
}

func TestStartStopIdempotent(t *testing.T) {
	fake := newFakeRemote()
	eng, _, _ := newTestEngine(t, fake)

	eng.Start()
	eng.Start() // no-op
	eng.Stop()
	eng.Stop() // no-op

	// Restart works.
	eng.Start()
	eng.Stop()
}

func TestOnCycleHook(t *testing.T) {
	fake := newFakeRemote()
	eng, st, _ := newTestEngine(t, fake)
	ctx := context.Background()

	var mu sync.Mutex
	var summaries []CycleSummary
	eng.config.OnCycle = func(s CycleSummary) {
		mu.Lock()
		summaries = append(summaries, s)
		mu.Unlock()
	}

	if _, err := st.CreateTask(ctx, store.TaskParams{Title: "x"}); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	eng.RunPushCycle(ctx)
	eng.RunPullCycle(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Kind != "push" || summaries[1].Kind != "pull" {
		t.Errorf("unexpected summary kinds: %s, %s", summaries[0].Kind, summaries[1].Kind)
	}
}
