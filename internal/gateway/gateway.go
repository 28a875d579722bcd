package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"invoice-billing-backend/internal/models"
)

// PaymentProvider is the capability contract of the external payment gateway.
//
// Charge returns true when the funds were captured and false when the
// gateway declined the charge because the account balance was too low.
// Anything else is reported through one of the typed errors below.
type PaymentProvider interface {
	Charge(ctx context.Context, invoice models.Invoice) (bool, error)
}

type CustomerNotFoundError struct {
	CustomerID uuid.UUID
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("Customer '%s' was not found", e.CustomerID)
}

type CurrencyMismatchError struct {
	InvoiceID  uuid.UUID
	CustomerID uuid.UUID
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("Currency of invoice '%s' does not match currency of customer '%s'", e.InvoiceID, e.CustomerID)
}

// NetworkError is the only retryable gateway failure.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return "A network error happened please try again."
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}
