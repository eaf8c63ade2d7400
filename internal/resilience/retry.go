// Package resilience provides the failure-isolation primitives every remote
// call passes through: retry-with-backoff and a per-dependency circuit
// breaker. The two compose: the breaker wraps the retry, so an open circuit
// rejects before the first attempt, and one exhausted retry budget counts
// once against the breaker's failure threshold.
package resilience

import (
	"context"
	"fmt"
	"time"
)

// Policy configures retry-with-backoff. Delays double per attempt, capped
// at MaxDelay.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy returns the retry policy used for remote calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
	}
}

// Do runs op, retrying on failure with exponential backoff until the
// attempt budget is exhausted, then returns the last error wrapped with the
// dependency label. Stateless and safe for concurrent use. Context
// cancellation aborts the backoff wait.
func Do(ctx context.Context, label string, p Policy, op func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted: %w", label, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", label, p.MaxAttempts, lastErr)
}
