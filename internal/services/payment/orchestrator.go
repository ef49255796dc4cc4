package payment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
	"github.com/kevin07696/swish-payment-service/internal/adapters/swish"
	"github.com/kevin07696/swish-payment-service/internal/domain"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	"github.com/kevin07696/swish-payment-service/pkg/observability"
	"github.com/kevin07696/swish-payment-service/pkg/resilience"
)

// ChannelSource hands out the mutual TLS channel for a set of credentials
type ChannelSource interface {
	Get(ctx context.Context, creds swish.Credentials) (*swish.Channel, error)
}

// PaymentSubmitter creates a payment request
type PaymentSubmitter interface {
	Submit(ctx context.Context, channel *swish.Channel, req domain.PaymentRequest) (domain.PaymentHandle, error)
}

// StatusPoller waits for a created payment request to resolve
type StatusPoller interface {
	Poll(ctx context.Context, channel *swish.Channel, handle domain.PaymentHandle, cfg swish.PollConfig) (*domain.PaymentResult, error)
}

// Config is everything a lifecycle needs besides the request itself
type Config struct {
	Credentials swish.Credentials
	BaseURL     string
	CallbackURL string // used when a request has none
	PayeeAlias  string // used when a request has none
	Currency    string // used when a request has none
	Poll        swish.PollConfig
	HTTPTimeout time.Duration // bound for a single provider call
}

// Orchestrator implements ports.PaymentService
type Orchestrator struct {
	cfg       Config
	channels  ChannelSource
	submitter PaymentSubmitter
	poller    StatusPoller
	logger    *zap.Logger
}

// NewOrchestrator creates a new payment orchestrator
func NewOrchestrator(
	cfg Config,
	channels ChannelSource,
	submitter PaymentSubmitter,
	poller StatusPoller,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		channels:  channels,
		submitter: submitter,
		poller:    poller,
		logger:    logger,
	}
}

// NewDefaultOrchestrator wires the provider adapters with their default settings:
// a process-wide channel cache, a breaker-guarded submitter and a poller
func NewDefaultOrchestrator(cfg Config, adapterLogger ports.Logger, logger *zap.Logger) (*Orchestrator, *swish.ChannelCache) {
	cache := swish.NewChannelCache(nil, cfg.HTTPTimeout, adapterLogger)
	submitter := swish.NewSubmitter(cfg.BaseURL, swish.NewSubmitterBreaker(resilience.DefaultCircuitBreakerConfig()), adapterLogger)
	poller := swish.NewPoller(adapterLogger)
	return NewOrchestrator(cfg, cache, submitter, poller, logger), cache
}

// DefaultPayee returns the configured payee alias and currency
func (o *Orchestrator) DefaultPayee() (string, string) {
	return o.cfg.PayeeAlias, o.cfg.Currency
}

// CreateAndAwaitPayment obtains the channel, submits req, then polls until the payment resolves.
// Errors from every stage are returned unchanged.
func (o *Orchestrator) CreateAndAwaitPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = o.cfg.CallbackURL
	}
	if req.PayeeAlias == "" {
		req.PayeeAlias = o.cfg.PayeeAlias
	}
	if req.Currency == "" {
		req.Currency = o.cfg.Currency
	}

	startTime := time.Now()

	channel, err := o.channels.Get(ctx, o.cfg.Credentials)
	if err != nil {
		o.finish(startTime, nil, err)
		return nil, err
	}

	handle, err := o.submitter.Submit(ctx, channel, req)
	if err != nil {
		o.finish(startTime, nil, err)
		return nil, err
	}

	o.logger.Info("Payment request created, awaiting payer",
		zap.String("handle", string(handle)),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("currency", req.Currency),
	)

	result, err := o.poller.Poll(ctx, channel, handle, o.cfg.Poll)
	o.finish(startTime, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finish records how the lifecycle ended
func (o *Orchestrator) finish(startTime time.Time, result *domain.PaymentResult, err error) {
	duration := time.Since(startTime)
	label := resultLabel(result, err)
	observability.RecordPaymentResult(label, duration)

	if err != nil {
		o.logger.Warn("Payment lifecycle failed",
			zap.String("stage", label),
			zap.Duration("elapsed", duration),
			zap.Error(err),
		)
		return
	}
	o.logger.Info("Payment lifecycle finished",
		zap.String("status", string(result.Status)),
		zap.String("payment_reference", result.PaymentReference),
		zap.Duration("elapsed", duration),
	)
}

// resultLabel is the terminal status on success, otherwise the failing stage
func resultLabel(result *domain.PaymentResult, err error) string {
	if err == nil {
		return string(result.Status)
	}
	var stageErr *pkgerrors.StageError
	if errors.As(err, &stageErr) {
		return string(stageErr.Kind)
	}
	var validationErr *pkgerrors.ValidationError
	if errors.As(err, &validationErr) {
		return "validation"
	}
	return "unknown"
}
