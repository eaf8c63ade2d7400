// Package engine runs the two background reconciliation workers: the push
// worker drains the outbox toward the remote system of record, and the
// pull worker polls remote state and applies last-write-wins updates
// locally. Both are timer-driven, share the record store and the
// resilience registry, and are started and stopped together.
package engine

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stridehq/stride/internal/remote"
	"github.com/stridehq/stride/internal/resilience"
	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
)

// DepRemoteAPI is the resilience dependency name for the remote system.
const DepRemoteAPI = "remote_api"

// Config holds engine configuration.
type Config struct {
	// PushInterval is the push worker cadence.
	PushInterval time.Duration

	// PullInterval is the pull worker cadence.
	PullInterval time.Duration

	// BatchSize bounds the outbox entries drained per push cycle.
	BatchSize int

	// InterCallDelay is the fixed pause after each remote call, keeping
	// the workers under the remote system's ~3 req/s ceiling.
	InterCallDelay time.Duration

	// RetryPolicy applies to every remote call, inside the breaker.
	RetryPolicy resilience.Policy

	// Logger for worker activity.
	Logger *log.Logger

	// OnCycle, when set, receives each cycle summary (dashboard hook).
	OnCycle func(CycleSummary)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PushInterval:   30 * time.Second,
		PullInterval:   15 * time.Minute,
		BatchSize:      10,
		InterCallDelay: 350 * time.Millisecond,
		RetryPolicy:    resilience.DefaultPolicy(),
		Logger:         log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// CycleSummary reports one completed worker cycle. Push cycles count
// successfully drained entries in Processed; pull cycles report Fetched
// (remote records seen) and Applied (local overwrites) separately.
type CycleSummary struct {
	Kind      string        `json:"kind"` // push or pull
	Processed int           `json:"processed"`
	Errors    int           `json:"errors"`
	Fetched   int           `json:"fetched,omitempty"` // pull only
	Applied   int           `json:"applied,omitempty"` // pull only
	Duration  time.Duration `json:"duration"`
}

// pushDisabledDomains have no remote write endpoint. Their pending outbox
// entries are excluded at dequeue time so they never occupy batch slots;
// the domains stay pull-eligible.
var pushDisabledDomains = map[types.Domain]bool{
	types.DomainHabit: true,
}

func pushExcludedDomains() []types.Domain {
	out := make([]types.Domain, 0, len(pushDisabledDomains))
	for d := range pushDisabledDomains {
		out = append(out, d)
	}
	return out
}

// Engine owns the two workers and their shared lifecycle.
type Engine struct {
	store    *store.Store
	client   remote.Client
	registry *resilience.Registry
	config   *Config

	// Hot-reloadable knobs from the config watcher. Cycles read batch size
	// and delay at the top of each tick; the worker loops re-arm their
	// timers from the interval values when woken through the reload
	// channels.
	batchSize      atomic.Int64
	interCallDelay atomic.Int64
	pushInterval   atomic.Int64
	pullInterval   atomic.Int64

	pushReload chan struct{}
	pullReload chan struct{}

	// per-worker overlap guards: a tick that fires while the previous
	// cycle is still running is skipped, not queued.
	pushBusy atomic.Bool
	pullBusy atomic.Bool

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an engine. The registry is injected so the health endpoint
// and any other remote-calling component observe the same breakers.
func New(st *store.Store, client remote.Client, registry *resilience.Registry, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}

	e := &Engine{
		store:      st,
		client:     client,
		registry:   registry,
		config:     config,
		pushReload: make(chan struct{}, 1),
		pullReload: make(chan struct{}, 1),
	}
	e.batchSize.Store(int64(config.BatchSize))
	e.interCallDelay.Store(int64(config.InterCallDelay))
	e.pushInterval.Store(int64(config.PushInterval))
	e.pullInterval.Store(int64(config.PullInterval))
	return e
}

// Start begins both workers and performs one immediate push cycle.
// Idempotent: starting a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}
	e.running = true
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.config.Logger.Printf("Starting sync engine (push=%s, pull=%s)",
		time.Duration(e.pushInterval.Load()), time.Duration(e.pullInterval.Load()))

	e.wg.Add(2)
	go e.pushLoop()
	go e.pullLoop()
}

// Stop clears both timers and waits for in-flight cycles to finish.
// Cycles are allowed to complete, not forcibly aborted.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	e.config.Logger.Println("Sync engine stopped")
}

// Tuning holds the hot-reloadable engine knobs. Zero values leave the
// current setting unchanged.
type Tuning struct {
	BatchSize      int
	InterCallDelay time.Duration
	PushInterval   time.Duration
	PullInterval   time.Duration
}

// Tune adjusts the hot-reloadable knobs. Batch size and delay apply from
// the next cycle; interval changes re-arm the worker timers immediately.
func (e *Engine) Tune(t Tuning) {
	if t.BatchSize > 0 {
		e.batchSize.Store(int64(t.BatchSize))
	}
	if t.InterCallDelay > 0 {
		e.interCallDelay.Store(int64(t.InterCallDelay))
	}
	if t.PushInterval > 0 {
		e.pushInterval.Store(int64(t.PushInterval))
	}
	if t.PullInterval > 0 {
		e.pullInterval.Store(int64(t.PullInterval))
	}

	// Wake the loops so a shortened interval takes effect without waiting
	// out the old timer. Non-blocking: a pending wake already covers it.
	select {
	case e.pushReload <- struct{}{}:
	default:
	}
	select {
	case e.pullReload <- struct{}{}:
	default:
	}

	e.config.Logger.Printf("Tuned engine: batch=%d delay=%s push=%s pull=%s",
		e.batchSize.Load(), time.Duration(e.interCallDelay.Load()),
		time.Duration(e.pushInterval.Load()), time.Duration(e.pullInterval.Load()))
}

func (e *Engine) pushLoop() {
	defer e.wg.Done()

	// One immediate cycle at startup, then the timer cadence.
	e.RunPushCycle(e.ctx)

	timer := time.NewTimer(time.Duration(e.pushInterval.Load()))
	defer timer.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.pushReload:
			resetTimer(timer, time.Duration(e.pushInterval.Load()))
		case <-timer.C:
			e.RunPushCycle(e.ctx)
			timer.Reset(time.Duration(e.pushInterval.Load()))
		}
	}
}

func (e *Engine) pullLoop() {
	defer e.wg.Done()

	timer := time.NewTimer(time.Duration(e.pullInterval.Load()))
	defer timer.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.pullReload:
			resetTimer(timer, time.Duration(e.pullInterval.Load()))
		case <-timer.C:
			e.RunPullCycle(e.ctx)
			timer.Reset(time.Duration(e.pullInterval.Load()))
		}
	}
}

// resetTimer re-arms a timer that has not fired, draining a stale tick if
// one slipped in between Stop and the drain.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// sleep pauses for the inter-call delay, returning early on cancellation.
func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Engine) emit(summary CycleSummary) {
	if e.config.OnCycle != nil {
		e.config.OnCycle(summary)
	}
}
