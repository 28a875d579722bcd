package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"invoice-billing-backend/internal/models"
)

// Store is the narrow storage contract the billing pipeline runs against.
// Uniqueness of attempts per invoice is the store's responsibility: a second
// CreateBilling for the same invoice must return the existing attempt.
type Store interface {
	FetchEligibleInvoices(ctx context.Context) ([]models.Invoice, error)
	CreateBilling(ctx context.Context, invoiceID uuid.UUID) (*models.Billing, error)
	FinalizeBilling(ctx context.Context, id uuid.UUID, status models.BillingStatus, message *string, chargingDate time.Time) error
	SetInvoiceStatus(ctx context.Context, id uuid.UUID, status models.InvoiceStatus, message *string) error
	FetchBilling(ctx context.Context, id uuid.UUID) (*models.Billing, error)
	FetchInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FetchUnreconciled(ctx context.Context) ([]models.Billing, error)
	FetchBillingsForMonth(ctx context.Context, year int, month time.Month) ([]models.Billing, error)
	CreateRun(ctx context.Context, totalInvoices int) (*models.BillingRun, error)
	CompleteRun(ctx context.Context, id uuid.UUID, successful, failed, errored int) error
}
