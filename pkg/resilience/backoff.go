package resilience

import (
	"context"
	"time"
)

// BackoffStrategy defines the delay between two consecutive attempts
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// FixedBackoff waits the same delay before every attempt
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay returns the fixed delay regardless of attempt number
func (fb *FixedBackoff) NextDelay(attempt int) time.Duration {
	return fb.Delay
}

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the wait was cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
