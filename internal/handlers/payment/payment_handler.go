package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevin07696/swish-payment-service/internal/domain"
	"github.com/kevin07696/swish-payment-service/internal/services/ports"
	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
	"github.com/kevin07696/swish-payment-service/pkg/resilience"
)

// maxRequestBytes caps the size of an inbound request body
const maxRequestBytes = 64 << 10

// Handler serves the payment endpoints
type Handler struct {
	service  ports.PaymentService
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

// NewHandler creates a new payment handler
func NewHandler(service ports.PaymentService, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{
		service:  service,
		timeouts: timeouts,
		logger:   logger,
	}
}

// CreatePaymentRequest is the body of POST /payments
type CreatePaymentRequest struct {
	PayeeAlias            string          `json:"payeeAlias"`
	PayerAlias            string          `json:"payerAlias"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Message               string          `json:"message"`
	PayeePaymentReference string          `json:"payeePaymentReference"`
	CallbackURL           string          `json:"callbackUrl"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error          string                    `json:"error"`
	Code           string                    `json:"code,omitempty"`
	Field          string                    `json:"field,omitempty"`
	Outcome        string                    `json:"outcome,omitempty"`
	ProviderErrors []pkgerrors.ProviderError `json:"providerErrors,omitempty"`
}

// CreatePayment handles POST /payments. It blocks until the payment is resolved
// and returns the provider's final payload unchanged.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "only POST method is allowed"})
		return
	}

	var body CreatePaymentRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		h.logger.Warn("Failed to parse payment request body", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "VALIDATION"})
		return
	}

	payee, currency := h.service.DefaultPayee()
	req := domain.PaymentRequest{
		CallbackURL:           body.CallbackURL,
		PayeeAlias:            firstNonEmpty(body.PayeeAlias, payee),
		PayerAlias:            body.PayerAlias,
		Amount:                body.Amount,
		Currency:              strings.ToUpper(firstNonEmpty(body.Currency, currency)),
		PayeePaymentReference: body.PayeePaymentReference,
		Message:               body.Message,
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	result, err := h.service.CreateAndAwaitPayment(ctx, req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.logger.Info("Payment resolved",
		zap.String("status", string(result.Status)),
		zap.String("payee_payment_reference", result.PayeePaymentReference),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Raw); err != nil {
		h.logger.Error("Failed to write payment response", zap.Error(err))
	}
}

// CallbackNotification is the subset of the provider's callback payload that is logged
type CallbackNotification struct {
	ID                    string `json:"id"`
	PayeePaymentReference string `json:"payeePaymentReference"`
	Status                string `json:"status"`
}

// HandleCallback handles POST /payments/callback.
// Outcomes are taken from polling, so the notification is only acknowledged.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "only POST method is allowed"})
		return
	}

	var notification CallbackNotification
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err == nil {
		err = json.Unmarshal(raw, &notification)
	}
	if err != nil {
		h.logger.Warn("Received undecodable Swish callback",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
	} else {
		h.logger.Info("Received Swish callback",
			zap.String("id", notification.ID),
			zap.String("payee_payment_reference", notification.PayeePaymentReference),
			zap.String("status", notification.Status),
		)
	}

	w.WriteHeader(http.StatusOK)
}

// handleError maps lifecycle errors to HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var validationErr *pkgerrors.ValidationError
	if errors.As(err, &validationErr) {
		h.respondError(w, http.StatusBadRequest, ErrorResponse{
			Error: validationErr.Message,
			Code:  "VALIDATION",
			Field: validationErr.Field,
		})
		return
	}

	var stageErr *pkgerrors.StageError
	if !errors.As(err, &stageErr) {
		h.logger.Error("Payment failed with unclassified error", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	resp := ErrorResponse{
		Error: stageErr.Message,
		Code:  stageErr.Code,
	}
	statusCode := http.StatusBadGateway

	switch stageErr.Kind {
	case pkgerrors.KindCredential, pkgerrors.KindChannel:
		// Local misconfiguration; details stay in the logs
		statusCode = http.StatusInternalServerError
		resp.Error = "payment provider is not configured correctly"
	case pkgerrors.KindSubmission:
		resp.Outcome = string(stageErr.Outcome)
		resp.ProviderErrors = stageErr.ProviderErrors
	case pkgerrors.KindPollTimeout:
		statusCode = http.StatusGatewayTimeout
	}

	h.logger.Error("Payment failed",
		zap.String("kind", string(stageErr.Kind)),
		zap.String("code", stageErr.Code),
		zap.Int("http_status", statusCode),
		zap.Error(err),
	)
	h.respondError(w, statusCode, resp)
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
