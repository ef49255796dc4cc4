// Package fixtures provides test data builders and helpers.
package fixtures

import (
	"github.com/shopspring/decimal"

	"github.com/kevin07696/swish-payment-service/internal/domain"
)

// Test merchant and payer aliases from the provider's simulator environment
const (
	TestPayeeAlias  = "1231181189"
	TestPayerAlias  = "46701234567"
	TestCallbackURL = "https://merchant.example.com/payments/callback"
)

// PaymentRequestBuilder provides fluent API for building test payment requests.
type PaymentRequestBuilder struct {
	request domain.PaymentRequest
}

// NewPaymentRequest creates a new payment request builder with sensible defaults.
func NewPaymentRequest() *PaymentRequestBuilder {
	return &PaymentRequestBuilder{
		request: domain.PaymentRequest{
			CallbackURL:           TestCallbackURL,
			PayeeAlias:            TestPayeeAlias,
			PayerAlias:            TestPayerAlias,
			Amount:                decimal.RequireFromString("100.00"),
			Currency:              "SEK",
			PayeePaymentReference: "0123456789",
			Message:               "Kingston USB Flash Drive 8 GB",
		},
	}
}

func (b *PaymentRequestBuilder) WithCallbackURL(callbackURL string) *PaymentRequestBuilder {
	b.request.CallbackURL = callbackURL
	return b
}

func (b *PaymentRequestBuilder) WithPayeeAlias(alias string) *PaymentRequestBuilder {
	b.request.PayeeAlias = alias
	return b
}

func (b *PaymentRequestBuilder) WithPayerAlias(alias string) *PaymentRequestBuilder {
	b.request.PayerAlias = alias
	return b
}

func (b *PaymentRequestBuilder) WithAmount(amount string) *PaymentRequestBuilder {
	b.request.Amount = decimal.RequireFromString(amount)
	return b
}

func (b *PaymentRequestBuilder) WithCurrency(currency string) *PaymentRequestBuilder {
	b.request.Currency = currency
	return b
}

func (b *PaymentRequestBuilder) WithReference(reference string) *PaymentRequestBuilder {
	b.request.PayeePaymentReference = reference
	return b
}

func (b *PaymentRequestBuilder) WithMessage(message string) *PaymentRequestBuilder {
	b.request.Message = message
	return b
}

func (b *PaymentRequestBuilder) Build() domain.PaymentRequest {
	return b.request
}

// StatusBody returns a provider status payload for status
func StatusBody(status domain.PaymentStatus) string {
	return `{"id":"AB23D7406ECE4542A80152D909EF9F6B","payeePaymentReference":"0123456789",` +
		`"paymentReference":"6D6CD7406ECE4542A80152D909EF9F6B","callbackUrl":"` + TestCallbackURL + `",` +
		`"payerAlias":"` + TestPayerAlias + `","payeeAlias":"` + TestPayeeAlias + `","amount":100.00,` +
		`"currency":"SEK","message":"Kingston USB Flash Drive 8 GB","status":"` + string(status) + `",` +
		`"dateCreated":"2026-10-16T08:01:42.527Z","datePaid":null,"errorCode":null,"errorMessage":null}`
}
