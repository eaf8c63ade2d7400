package resilience

import (
	"fmt"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// maxErrorLen bounds the stored last-error message.
const maxErrorLen = 200

// BreakerConfig tunes the circuit breaker state machine.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count in CLOSED that
	// trips the breaker to OPEN.
	FailureThreshold int

	// SuccessThreshold is the consecutive-success count in HALF_OPEN that
	// closes the breaker again.
	SuccessThreshold int

	// OpenDuration is how long OPEN rejects calls before the next call is
	// allowed through as a probe.
	OpenDuration time.Duration

	// Disabled passes every call straight through without tracking. Used
	// for diagnostic environments where fail-fast is undesirable.
	Disabled bool
}

// DefaultBreakerConfig returns the standard thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     30 * time.Second,
	}
}

// CircuitOpenError is returned when a call is rejected without invoking the
// wrapped operation. It carries the dependency name and the last recorded
// error so callers can log something useful without a network round trip.
type CircuitOpenError struct {
	Dependency string
	LastError  string
}

func (e *CircuitOpenError) Error() string {
	if e.LastError == "" {
		return fmt.Sprintf("circuit open for %s", e.Dependency)
	}
	return fmt.Sprintf("circuit open for %s (last error: %s)", e.Dependency, e.LastError)
}

// Health is an observability snapshot of one breaker.
type Health struct {
	State               State  `json:"state"`
	ConsecutiveFailures int    `json:"failures"`
	LastError           string `json:"last_error,omitempty"`
}

// Breaker is a circuit breaker for a single remote dependency.
//
// CLOSED counts consecutive failures; reaching FailureThreshold opens the
// circuit. OPEN rejects calls until OpenDuration has elapsed since the last
// failure, then admits the next call as a probe after moving to HALF_OPEN.
// HALF_OPEN closes after SuccessThreshold consecutive successes and reopens
// on any failure, resetting the cooldown clock.
type Breaker struct {
	name   string
	config BreakerConfig

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureAt        time.Time
	lastError            string

	// now is swapped out by tests to drive the cooldown clock.
	now func() time.Time
}

// NewBreaker creates a breaker for the named dependency.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs op through the breaker. An OPEN circuit rejects with
// *CircuitOpenError without invoking op.
func (b *Breaker) Execute(op func() error) error {
	if b.config.Disabled {
		return op()
	}

	if err := b.beforeCall(); err != nil {
		return err
	}

	err := op()
	b.afterCall(err)
	return err
}

// beforeCall decides admission and performs the OPEN -> HALF_OPEN
// transition once the cooldown has elapsed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureAt) < b.config.OpenDuration {
			return &CircuitOpenError{Dependency: b.name, LastError: b.lastError}
		}
		// Cooldown elapsed: this call becomes the probe.
		b.state = StateHalfOpen
		b.consecutiveSuccesses = 0
	}
	return nil
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.lastError = truncateError(err)
		b.lastFailureAt = b.now()

		switch b.state {
		case StateClosed:
			b.consecutiveFailures++
			if b.consecutiveFailures >= b.config.FailureThreshold {
				b.state = StateOpen
			}
		case StateHalfOpen:
			// Probe failed: back to OPEN, cooldown restarts from now.
			b.state = StateOpen
			b.consecutiveSuccesses = 0
		}
		return
	}

	switch b.state {
	case StateClosed:
		b.consecutiveFailures = 0
	case StateHalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}
	}
}

// IsAvailable reports whether a call would currently be admitted.
func (b *Breaker) IsAvailable() bool {
	if b.config.Disabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		return b.now().Sub(b.lastFailureAt) >= b.config.OpenDuration
	}
	return true
}

// GetHealth returns an observability snapshot.
func (b *Breaker) GetHealth() Health {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Health{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastError:           b.lastError,
	}
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}
