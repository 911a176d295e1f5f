// Package retry provides capped exponential backoff for outbound calls.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy retries an operation with exponential backoff.
type Policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewPolicy creates a policy. Delay grows 1.5x per attempt, capped at 30s.
func NewPolicy(maxAttempts int, initialDelay time.Duration) *Policy {
	return &Policy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     30 * time.Second,
	}
}

// Execute runs fn until it succeeds, attempts run out, or the context is
// cancelled while waiting between attempts.
func (p *Policy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := p.initialDelay

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// No sleep after the last attempt
		if attempt < p.maxAttempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = time.Duration(float64(delay) * 1.5)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.maxAttempts, lastErr)
}
