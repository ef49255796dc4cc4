package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFixedBackoff_NextDelay(t *testing.T) {
	backoff := &FixedBackoff{Delay: 4 * time.Second}

	for attempt := 0; attempt < 5; attempt++ {
		if delay := backoff.NextDelay(attempt); delay != 4*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 4s", attempt, delay)
		}
	}
}

func TestSleep_Completes(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected Sleep to return promptly on cancellation")
	}
}

func TestTimeoutConfig_Hierarchy(t *testing.T) {
	tc := NewTimeoutConfig(3*time.Minute, 30*time.Second)

	if tc.HTTPHandler <= tc.PollTimeout+tc.ExternalAPI {
		t.Errorf("Expected handler timeout %v to exceed poll %v + call %v", tc.HTTPHandler, tc.PollTimeout, tc.ExternalAPI)
	}
}
