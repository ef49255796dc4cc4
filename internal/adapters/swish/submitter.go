package swish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/kevin07696/swish-payment-service/internal/adapters/ports"
	"github.com/kevin07696/swish-payment-service/internal/domain"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	"github.com/kevin07696/swish-payment-service/pkg/observability"
	"github.com/kevin07696/swish-payment-service/pkg/resilience"
)

const paymentRequestsPath = "/paymentrequests/"

// paymentRequestBody is the provider's create payment request payload
type paymentRequestBody struct {
	PayeePaymentReference string      `json:"payeePaymentReference,omitempty"`
	CallbackURL           string      `json:"callbackUrl"`
	PayerAlias            string      `json:"payerAlias,omitempty"`
	PayeeAlias            string      `json:"payeeAlias"`
	Amount                json.Number `json:"amount"`
	Currency              string      `json:"currency"`
	Message               string      `json:"message,omitempty"`
}

// providerStatusError marks a response that counts against the circuit breaker
type providerStatusError struct {
	statusCode int
}

func (e *providerStatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d", e.statusCode)
}

// Submitter creates payment requests. A request is sent at most once; it is never retried
// because the provider may already have created the payment.
type Submitter struct {
	baseURL      string
	logger       ports.Logger
	breaker      *resilience.CircuitBreaker
	newReference func() string
}

// NewSubmitter creates a submitter for the API rooted at baseURL. breaker may be nil.
func NewSubmitter(baseURL string, breaker *resilience.CircuitBreaker, logger ports.Logger) *Submitter {
	return &Submitter{
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger,
		breaker:      breaker,
		newReference: generateReference,
	}
}

// NewSubmitterBreaker returns a circuit breaker that only trips on transport failures and 5xx responses.
// Rejections (4xx) are answers about the request, not about provider health, and
// neither is a caller that cancelled its own request.
func NewSubmitterBreaker(cfg resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	cfg.IsFailure = func(err error) bool {
		if errors.Is(err, context.Canceled) {
			return false
		}
		var statusErr *providerStatusError
		if errors.As(err, &statusErr) {
			return statusErr.statusCode >= http.StatusInternalServerError
		}
		return true
	}
	return resilience.NewCircuitBreaker(cfg)
}

// generateReference derives a payee reference from a random UUID: 32 upper-case hex characters
func generateReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// Submit sends req over channel and returns the handle of the created payment request
func (s *Submitter) Submit(ctx context.Context, channel *Channel, req domain.PaymentRequest) (domain.PaymentHandle, error) {
	if req.PayeePaymentReference == "" {
		req.PayeePaymentReference = s.newReference()
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	endpoint := s.baseURL + paymentRequestsPath
	body := paymentRequestBody{
		PayeePaymentReference: req.PayeePaymentReference,
		CallbackURL:           req.CallbackURL,
		PayerAlias:            req.PayerAlias,
		PayeeAlias:            req.PayeeAlias,
		Amount:                json.Number(req.Amount.StringFixed(2)),
		Currency:              req.Currency,
		Message:               req.Message,
	}

	s.logger.Info("submitting Swish payment request",
		ports.String("payee_payment_reference", req.PayeePaymentReference),
		ports.String("amount", req.Amount.StringFixed(2)),
		ports.String("currency", req.Currency),
	)

	var resp *ports.HTTPResponse
	call := func() error {
		var err error
		resp, err = channel.Call(ctx, ports.MethodPost, endpoint, body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &providerStatusError{statusCode: resp.StatusCode}
		}
		return nil
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Call(call)
	} else {
		err = call()
	}

	handle, subErr := s.interpret(endpoint, resp, err)
	if subErr != nil {
		observability.RecordSubmission(string(subErr.Outcome))
		s.logger.Error("Swish payment request failed",
			ports.String("payee_payment_reference", req.PayeePaymentReference),
			ports.String("code", subErr.Code),
			ports.String("outcome", string(subErr.Outcome)),
			ports.Err(subErr),
		)
		return "", subErr
	}

	observability.RecordSubmission("created")
	s.logger.Info("Swish payment request created",
		ports.String("payee_payment_reference", req.PayeePaymentReference),
		ports.String("handle", string(handle)),
	)
	return handle, nil
}

// interpret maps the outcome of the single POST to a handle or a submission error
func (s *Submitter) interpret(endpoint string, resp *ports.HTTPResponse, err error) (domain.PaymentHandle, *pkgerrors.StageError) {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return "", pkgerrors.NewSubmissionError("CIRCUIT_OPEN", "payment provider is unavailable, request was not sent", pkgerrors.OutcomeNotCreated, err)
	}

	var statusErr *providerStatusError
	if err != nil && !errors.As(err, &statusErr) {
		return "", pkgerrors.NewSubmissionError("SUBMIT_TRANSPORT", "payment request did not complete", pkgerrors.OutcomeUnknown, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		location := resp.Headers.Get("Location")
		if location == "" {
			return "", s.statusError("MISSING_LOCATION", "provider accepted the request without a Location header", pkgerrors.OutcomeUnknown, resp)
		}
		resolved, err := resolveLocation(endpoint, location)
		if err != nil {
			return "", pkgerrors.NewSubmissionError("MISSING_LOCATION", "provider returned an invalid Location header", pkgerrors.OutcomeUnknown, err)
		}
		return domain.PaymentHandle(resolved), nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		subErr := s.statusError("PROVIDER_REJECTED", fmt.Sprintf("provider rejected the payment request with HTTP %d", resp.StatusCode), pkgerrors.OutcomeNotCreated, resp)
		subErr.ProviderErrors = parseProviderErrors(resp.Body)
		return "", subErr

	case resp.StatusCode >= 500:
		return "", s.statusError("PROVIDER_ERROR", fmt.Sprintf("provider failed with HTTP %d", resp.StatusCode), pkgerrors.OutcomeUnknown, resp)

	default:
		return "", s.statusError("UNEXPECTED_STATUS", fmt.Sprintf("unexpected HTTP %d from provider", resp.StatusCode), pkgerrors.OutcomeUnknown, resp)
	}
}

func (s *Submitter) statusError(code, message string, outcome pkgerrors.Outcome, resp *ports.HTTPResponse) *pkgerrors.StageError {
	subErr := pkgerrors.NewSubmissionError(code, message, outcome, nil)
	subErr.StatusCode = resp.StatusCode
	return subErr
}

// resolveLocation turns a relative Location into an absolute URL against the request URL
func resolveLocation(endpoint, location string) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// parseProviderErrors decodes the provider's error list, tolerating a single object or garbage
func parseProviderErrors(body []byte) []pkgerrors.ProviderError {
	var list []pkgerrors.ProviderError
	if err := json.Unmarshal(body, &list); err == nil {
		return list
	}
	var single pkgerrors.ProviderError
	if err := json.Unmarshal(body, &single); err == nil && single.Code != "" {
		return []pkgerrors.ProviderError{single}
	}
	return nil
}
