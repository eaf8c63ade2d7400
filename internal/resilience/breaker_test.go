package resilience

import (
	"errors"
	"testing"
	"time"
)

// fakeClock drives the breaker's cooldown without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker(config BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker("test_dep", config)
	b.now = clock.now
	return b, clock
}

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())

	if h := b.GetHealth(); h.State != StateClosed {
		t.Errorf("expected CLOSED, got %s", h.State)
	}
	if !b.IsAvailable() {
		t.Error("new breaker should be available")
	}
}

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())
	failure := errors.New("boom")

	for i := 0; i < 4; i++ {
		_ = b.Execute(func() error { return failure })
		if h := b.GetHealth(); h.State != StateClosed {
			t.Fatalf("after %d failures expected CLOSED, got %s", i+1, h.State)
		}
	}

	// Fifth consecutive failure trips the breaker.
	_ = b.Execute(func() error { return failure })
	if h := b.GetHealth(); h.State != StateOpen {
		t.Fatalf("after 5 failures expected OPEN, got %s", h.State)
	}
	if b.IsAvailable() {
		t.Error("open breaker should not be available")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())
	failure := errors.New("boom")

	for i := 0; i < 4; i++ {
		_ = b.Execute(func() error { return failure })
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Four more failures after the reset must not trip it.
	for i := 0; i < 4; i++ {
		_ = b.Execute(func() error { return failure })
	}
	if h := b.GetHealth(); h.State != StateClosed {
		t.Errorf("expected CLOSED after reset, got %s", h.State)
	}
}

func TestBreakerRejectsWithoutInvokingOp(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())
	failure := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return failure })
	}

	invoked := false
	err := b.Execute(func() error {
		invoked = true
		return nil
	})
	if invoked {
		t.Error("open breaker must not invoke the operation")
	}

	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *CircuitOpenError, got %T: %v", err, err)
	}
	if openErr.Dependency != "test_dep" {
		t.Errorf("expected dependency test_dep, got %s", openErr.Dependency)
	}
	if openErr.LastError != "boom" {
		t.Errorf("expected last error boom, got %q", openErr.LastError)
	}
}

func TestBreakerCooldownBoundary(t *testing.T) {
	b, clock := newTestBreaker(DefaultBreakerConfig())
	failure := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return failure })
	}

	// One nanosecond short of the cooldown: still rejecting.
	clock.advance(30*time.Second - time.Nanosecond)
	err := b.Execute(func() error { return nil })
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected rejection just before cooldown, got %v", err)
	}

	// At the boundary the next call is admitted as a probe.
	clock.advance(time.Nanosecond)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to be admitted, got %v", err)
	}
	if h := b.GetHealth(); h.State != StateHalfOpen {
		t.Errorf("expected HALF_OPEN after probe, got %s", h.State)
	}
}

func TestBreakerHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b, clock := newTestBreaker(DefaultBreakerConfig())
	failure := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return failure })
	}
	clock.advance(31 * time.Second)

	// First success: still HALF_OPEN (threshold is 2).
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h := b.GetHealth(); h.State != StateHalfOpen {
		t.Fatalf("after 1 success expected HALF_OPEN, got %s", h.State)
	}

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h := b.GetHealth(); h.State != StateClosed {
		t.Errorf("after 2 successes expected CLOSED, got %s", h.State)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(DefaultBreakerConfig())
	failure := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = b.Execute(func() error { return failure })
	}
	clock.advance(31 * time.Second)

	// Probe fails: straight back to OPEN with a fresh cooldown.
	_ = b.Execute(func() error { return failure })
	if h := b.GetHealth(); h.State != StateOpen {
		t.Fatalf("expected OPEN after failed probe, got %s", h.State)
	}

	// The cooldown restarted from the probe failure, not the original trip.
	clock.advance(29 * time.Second)
	var openErr *CircuitOpenError
	if err := b.Execute(func() error { return nil }); !errors.As(err, &openErr) {
		t.Errorf("expected rejection during restarted cooldown, got %v", err)
	}
}

func TestBreakerDisabledPassesThrough(t *testing.T) {
	config := DefaultBreakerConfig()
	config.Disabled = true
	b, _ := newTestBreaker(config)
	failure := errors.New("boom")

	for i := 0; i < 20; i++ {
		if err := b.Execute(func() error { return failure }); !errors.Is(err, failure) {
			t.Fatalf("disabled breaker must return the op error, got %v", err)
		}
	}
	if !b.IsAvailable() {
		t.Error("disabled breaker is always available")
	}
}

func TestBreakerTruncatesLongErrors(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	_ = b.Execute(func() error { return errors.New(string(long)) })

	if h := b.GetHealth(); len(h.LastError) != maxErrorLen {
		t.Errorf("expected last error truncated to %d chars, got %d", maxErrorLen, len(h.LastError))
	}
}
