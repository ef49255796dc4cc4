package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
)

// PaymentStatus is the state of a payment request as reported by the provider
type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "CREATED"   // Waiting for the payer to act
	PaymentStatusPaid      PaymentStatus = "PAID"      // Payer approved, money transferred
	PaymentStatusDeclined  PaymentStatus = "DECLINED"  // Payer declined
	PaymentStatusError     PaymentStatus = "ERROR"     // Provider side failure, see errorCode
	PaymentStatusCancelled PaymentStatus = "CANCELLED" // Withdrawn by the payee
)

// IsTerminal reports whether no further state change is expected.
// Every status other than CREATED is terminal, including ones the client does not know.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusCreated
}

// PaymentHandle is the provider's locator for a created payment request (the Location header)
type PaymentHandle string

const (
	maxReferenceLength = 35
	maxMessageLength   = 50
)

var (
	aliasPattern     = regexp.MustCompile(`^[0-9]{8,15}$`)
	currencyPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
	referencePattern = regexp.MustCompile(`^[0-9A-Za-z]{1,35}$`)
	maxAmount        = decimal.RequireFromString("999999999999.99")
)

// PaymentRequest is a single payment request to send to the provider
type PaymentRequest struct {
	CallbackURL           string
	PayeeAlias            string
	PayerAlias            string // optional; when empty the payer enters their number in the app
	Amount                decimal.Decimal
	Currency              string
	PayeePaymentReference string // optional merchant reference
	Message               string // optional, shown to the payer
}

// Validate checks the request against the provider's field rules
func (r PaymentRequest) Validate() error {
	u, err := url.Parse(r.CallbackURL)
	if r.CallbackURL == "" || err != nil || u.Host == "" {
		return pkgerrors.NewValidationError("callbackUrl", "must be an absolute URL")
	}
	if u.Scheme != "https" {
		return pkgerrors.NewValidationError("callbackUrl", "must use https")
	}
	if !aliasPattern.MatchString(r.PayeeAlias) {
		return pkgerrors.NewValidationError("payeeAlias", "must be 8-15 digits")
	}
	if r.PayerAlias != "" && !aliasPattern.MatchString(r.PayerAlias) {
		return pkgerrors.NewValidationError("payerAlias", "must be 8-15 digits")
	}
	if !r.Amount.IsPositive() {
		return pkgerrors.NewValidationError("amount", "must be positive")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return pkgerrors.NewValidationError("amount", "must have at most two decimals")
	}
	if r.Amount.GreaterThan(maxAmount) {
		return pkgerrors.NewValidationError("amount", fmt.Sprintf("must not exceed %s", maxAmount.StringFixed(2)))
	}
	if !currencyPattern.MatchString(r.Currency) {
		return pkgerrors.NewValidationError("currency", "must be a three letter ISO 4217 code")
	}
	if r.PayeePaymentReference != "" && !referencePattern.MatchString(r.PayeePaymentReference) {
		return pkgerrors.NewValidationError("payeePaymentReference", fmt.Sprintf("must be 1-%d alphanumerics", maxReferenceLength))
	}
	if len([]rune(r.Message)) > maxMessageLength {
		return pkgerrors.NewValidationError("message", fmt.Sprintf("must be at most %d characters", maxMessageLength))
	}
	return nil
}

// PaymentResult is the provider's payload for a payment in a terminal state.
// Raw is the body exactly as received; the typed fields are decoded from it.
type PaymentResult struct {
	Raw json.RawMessage `json:"-"`

	ID                    string        `json:"id"`
	PayeePaymentReference string        `json:"payeePaymentReference"`
	PaymentReference      string        `json:"paymentReference"`
	CallbackURL           string        `json:"callbackUrl"`
	PayerAlias            string        `json:"payerAlias"`
	PayeeAlias            string        `json:"payeeAlias"`
	Amount                json.Number   `json:"amount"`
	Currency              string        `json:"currency"`
	Message               string        `json:"message"`
	Status                PaymentStatus `json:"status"`
	DateCreated           string        `json:"dateCreated"`
	DatePaid              string        `json:"datePaid"`
	ErrorCode             string        `json:"errorCode"`
	ErrorMessage          string        `json:"errorMessage"`
}

// ParsePaymentResult decodes a status payload. The body must be a JSON object with a status.
func ParsePaymentResult(body []byte) (*PaymentResult, error) {
	var result PaymentResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode status payload: %w", err)
	}
	if result.Status == "" {
		return nil, fmt.Errorf("status payload has no status field")
	}
	result.Raw = append(json.RawMessage(nil), body...)
	return &result, nil
}

// MarshalJSON returns the provider payload verbatim
func (r *PaymentResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}
