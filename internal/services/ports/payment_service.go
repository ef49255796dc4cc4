package ports

import (
	"context"

	"github.com/kevin07696/swish-payment-service/internal/domain"
)

// PaymentService runs a full payment lifecycle against the provider
type PaymentService interface {
	// CreateAndAwaitPayment submits req and blocks until the payment is terminal,
	// the poll bounds are reached, or ctx is done
	CreateAndAwaitPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error)

	// DefaultPayee returns the payee alias and currency used when a request omits them
	DefaultPayee() (alias, currency string)
}
