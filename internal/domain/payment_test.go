package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kevin07696/swish-payment-service/pkg/errors"
)

func validRequest() PaymentRequest {
	return PaymentRequest{
		CallbackURL:           "https://merchant.example.com/payments/callback",
		PayeeAlias:            "1231181189",
		PayerAlias:            "46701234567",
		Amount:                decimal.RequireFromString("100"),
		Currency:              "SEK",
		PayeePaymentReference: "0123456789",
		Message:               "Kingston USB Flash Drive 8 GB",
	}
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   PaymentStatus
		expected bool
	}{
		{PaymentStatusCreated, false},
		{PaymentStatusPaid, true},
		{PaymentStatusDeclined, true},
		{PaymentStatusError, true},
		{PaymentStatusCancelled, true},
		{PaymentStatus("SOMETHING_NEW"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsTerminal())
		})
	}
}

func TestPaymentRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *PaymentRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *PaymentRequest) {}},
		{name: "valid_without_optional_fields", mutate: func(r *PaymentRequest) {
			r.PayerAlias = ""
			r.PayeePaymentReference = ""
			r.Message = ""
		}},
		{name: "valid_two_decimals", mutate: func(r *PaymentRequest) { r.Amount = decimal.RequireFromString("0.01") }},
		{name: "missing_callback", mutate: func(r *PaymentRequest) { r.CallbackURL = "" }, wantField: "callbackUrl"},
		{name: "relative_callback", mutate: func(r *PaymentRequest) { r.CallbackURL = "/callback" }, wantField: "callbackUrl"},
		{name: "http_callback", mutate: func(r *PaymentRequest) { r.CallbackURL = "http://merchant.example.com/cb" }, wantField: "callbackUrl"},
		{name: "short_payee", mutate: func(r *PaymentRequest) { r.PayeeAlias = "123" }, wantField: "payeeAlias"},
		{name: "non_numeric_payer", mutate: func(r *PaymentRequest) { r.PayerAlias = "+46701234567" }, wantField: "payerAlias"},
		{name: "zero_amount", mutate: func(r *PaymentRequest) { r.Amount = decimal.Zero }, wantField: "amount"},
		{name: "negative_amount", mutate: func(r *PaymentRequest) { r.Amount = decimal.RequireFromString("-1") }, wantField: "amount"},
		{name: "three_decimals", mutate: func(r *PaymentRequest) { r.Amount = decimal.RequireFromString("1.005") }, wantField: "amount"},
		{name: "amount_too_large", mutate: func(r *PaymentRequest) { r.Amount = decimal.RequireFromString("1000000000000") }, wantField: "amount"},
		{name: "lowercase_currency", mutate: func(r *PaymentRequest) { r.Currency = "sek" }, wantField: "currency"},
		{name: "reference_with_dash", mutate: func(r *PaymentRequest) { r.PayeePaymentReference = "abc-123" }, wantField: "payeePaymentReference"},
		{name: "reference_too_long", mutate: func(r *PaymentRequest) { r.PayeePaymentReference = strings.Repeat("A", 36) }, wantField: "payeePaymentReference"},
		{name: "message_too_long", mutate: func(r *PaymentRequest) { r.Message = strings.Repeat("å", 51) }, wantField: "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate()

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var validationErr *pkgerrors.ValidationError
			require.True(t, errors.As(err, &validationErr), "expected validation error, got %v", err)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestParsePaymentResult(t *testing.T) {
	body := []byte(`{"id":"AB23D7406ECE4542A80152D909EF9F6B","payeePaymentReference":"0123456789",` +
		`"paymentReference":"6D6CD7406ECE4542A80152D909EF9F6B","callbackUrl":"https://example.com/api/swishcb/paymentrequests",` +
		`"payerAlias":"46701234567","payeeAlias":"1231181189","amount":100.00,"currency":"SEK",` +
		`"message":"Kingston USB Flash Drive 8 GB","status":"PAID","dateCreated":"2019-01-02T14:29:51.092Z",` +
		`"datePaid":"2019-01-02T14:29:55.093Z","errorCode":null,"errorMessage":null,"extra":{"kept":true}}`)

	result, err := ParsePaymentResult(body)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, result.Status)
	assert.Equal(t, "AB23D7406ECE4542A80152D909EF9F6B", result.ID)
	assert.Equal(t, "100.00", result.Amount.String())
	assert.Empty(t, result.ErrorCode)

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Equal(t, string(body), string(encoded), "payload is passed through unchanged")
}

func TestParsePaymentResult_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not_json", body: "<html>"},
		{name: "missing_status", body: `{"id":"1"}`},
		{name: "array", body: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParsePaymentResult([]byte(tt.body))
			assert.Error(t, err)
			assert.Nil(t, result)
		})
	}
}
