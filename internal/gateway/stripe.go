package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"invoice-billing-backend/internal/models"
)

// StripeProvider charges invoices through Stripe. Stripe failures are mapped
// onto the domain error taxonomy so the billing pipeline never sees a raw
// stripe error type.
type StripeProvider struct{}

func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{}
}

func (p *StripeProvider) Charge(ctx context.Context, invoice models.Invoice) (bool, error) {
	cust, err := customer.Get(invoice.CustomerID.String(), &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return false, p.classify(err, invoice)
	}
	if !strings.EqualFold(string(cust.Currency), invoice.Currency) {
		return false, &CurrencyMismatchError{InvoiceID: invoice.ID, CustomerID: invoice.CustomerID}
	}

	intent, err := paymentintent.New(&stripe.PaymentIntentParams{
		Params:     stripe.Params{Context: ctx},
		Amount:     stripe.Int64(minorUnits(invoice.Amount)),
		Currency:   stripe.String(strings.ToLower(invoice.Currency)),
		Customer:   stripe.String(invoice.CustomerID.String()),
		Confirm:    stripe.Bool(true),
		OffSession: stripe.Bool(true),
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeCardDeclined {
			// insufficient balance etc. is a decline, not a pipeline error
			return false, nil
		}
		return false, p.classify(err, invoice)
	}
	return intent.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func (p *StripeProvider) classify(err error, invoice models.Invoice) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &NetworkError{Cause: err}
	}
	switch {
	case stripeErr.Type == stripe.ErrorTypeAPI:
		return &NetworkError{Cause: err}
	case stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return &CustomerNotFoundError{CustomerID: invoice.CustomerID}
	default:
		return err
	}
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}
