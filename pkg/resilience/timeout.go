package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (poll timeout + external API + margin)
//	  ↓
//	Payment lifecycle poll deadline (default: 3m)
//	  ↓
//	Single provider call (default: 30s)
//
// Each layer must complete before its parent times out, otherwise a caller sees a
// cancelled request while the payment is still being resolved.
type TimeoutConfig struct {
	HTTPHandler time.Duration // Overall POST /payments deadline
	PollTimeout time.Duration // Longest polling of a created payment can run, see PollBudget
	ExternalAPI time.Duration // A single submit or status call
	Shutdown    time.Duration // Graceful shutdown budget
}

// NewTimeoutConfig derives the handler deadline from the poll budget (see PollBudget) and per-call timeouts
func NewTimeoutConfig(pollTimeout, externalAPI time.Duration) *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: pollTimeout + externalAPI + 5*time.Second,
		PollTimeout: pollTimeout,
		ExternalAPI: externalAPI,
		Shutdown:    pollTimeout + externalAPI,
	}
}

// PollBudget is the longest a poll can run: the deadline when one is set, otherwise
// maxAttempts status calls of up to externalAPI each with interval between them.
// With both bounds the smaller one ends polling first.
func PollBudget(timeout, interval time.Duration, maxAttempts int, externalAPI time.Duration) time.Duration {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	attempts := time.Duration(maxAttempts)*externalAPI + time.Duration(maxAttempts-1)*interval
	if timeout > 0 && timeout < attempts {
		return timeout
	}
	return attempts
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return NewTimeoutConfig(3*time.Minute, 30*time.Second)
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return NewTimeoutConfig(2*time.Second, 1*time.Second)
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}
