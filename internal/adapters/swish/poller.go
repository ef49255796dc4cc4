package swish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
	"github.com/kevin07696/swish-payment-service/internal/domain"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	"github.com/kevin07696/swish-payment-service/pkg/observability"
	"github.com/kevin07696/swish-payment-service/pkg/resilience"
)

// PollConfig bounds how long a created payment is waited on
type PollConfig struct {
	Interval    time.Duration // wait between two status requests
	MaxAttempts int           // status requests before giving up
	Timeout     time.Duration // overall deadline, zero disables it
}

// DefaultPollConfig returns values that cover the provider's own payer timeout
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    4 * time.Second,
		MaxAttempts: 45,
		Timeout:     3 * time.Minute,
	}
}

// Poller waits for a payment request to leave CREATED
type Poller struct {
	logger ports.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller
func NewPoller(logger ports.Logger) *Poller {
	return &Poller{
		logger: logger,
		wait:   resilience.Sleep,
	}
}

// Poll fetches the status of handle until it is terminal and returns the final payload.
// A failed status request ends polling immediately.
func (p *Poller) Poll(ctx context.Context, channel *Channel, handle domain.PaymentHandle, cfg PollConfig) (*domain.PaymentResult, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, pkgerrors.NewValidationError("maxAttempts", "must be positive")
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	backoff := &resilience.FixedBackoff{Delay: cfg.Interval}
	startTime := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx, backoff.NextDelay(attempt)); err != nil {
				return nil, p.contextError(handle, attempt-1, err)
			}
		}

		result, err := p.fetch(ctx, channel, handle)
		if err != nil {
			observability.RecordPollAttempt("failed")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, p.contextError(handle, attempt, ctxErr)
			}
			p.logger.Error("Swish status request failed",
				ports.String("handle", string(handle)),
				ports.Int("attempt", attempt),
				ports.Err(err),
			)
			return nil, err
		}
		observability.RecordPollAttempt(string(result.Status))

		if result.Status.IsTerminal() {
			p.logger.Info("Swish payment resolved",
				ports.String("handle", string(handle)),
				ports.String("status", string(result.Status)),
				ports.Int("attempts", attempt),
				ports.Duration("elapsed", time.Since(startTime)),
			)
			return result, nil
		}

		p.logger.Debug("Swish payment still pending",
			ports.String("handle", string(handle)),
			ports.Int("attempt", attempt),
		)
	}

	p.logger.Warn("Swish payment still pending after max attempts",
		ports.String("handle", string(handle)),
		ports.Int("attempts", cfg.MaxAttempts),
	)
	return nil, pkgerrors.NewPollTimeoutError(fmt.Sprintf("payment still CREATED after %d status requests", cfg.MaxAttempts), nil)
}

// fetch performs one status request
func (p *Poller) fetch(ctx context.Context, channel *Channel, handle domain.PaymentHandle) (*domain.PaymentResult, error) {
	resp, err := channel.Call(ctx, ports.MethodGet, string(handle), nil)
	if errors.Is(err, ErrResponseTooLarge) {
		return nil, pkgerrors.NewPollError("RESPONSE_TOO_LARGE", "status payload exceeds the size limit", err)
	}
	if err != nil {
		return nil, pkgerrors.NewPollError("POLL_TRANSPORT", "status request did not complete", err)
	}
	if resp.StatusCode != http.StatusOK {
		pollErr := pkgerrors.NewPollError("UNEXPECTED_STATUS", fmt.Sprintf("status request returned HTTP %d", resp.StatusCode), nil)
		pollErr.StatusCode = resp.StatusCode
		pollErr.ProviderErrors = parseProviderErrors(resp.Body)
		return nil, pollErr
	}

	result, err := domain.ParsePaymentResult(resp.Body)
	if err != nil {
		return nil, pkgerrors.NewPollError("MALFORMED_STATUS", "status payload could not be read", err)
	}
	return result, nil
}

// contextError classifies a poll cut short by its context: a deadline is a timeout, anything else a cancellation
func (p *Poller) contextError(handle domain.PaymentHandle, attempts int, err error) error {
	p.logger.Warn("Swish polling stopped",
		ports.String("handle", string(handle)),
		ports.Int("attempts", attempts),
		ports.Err(err),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewPollTimeoutError("payment still CREATED at the poll deadline", err)
	}
	return pkgerrors.NewPollError("POLL_CANCELLED", "polling was cancelled", err)
}
