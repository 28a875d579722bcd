package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-billing-backend/internal/models"
)

// GormStore is the storage collaborator handed to the billing pipeline.
// It narrows the repositories down to the operations the pipeline needs.
type GormStore struct {
	invoices *InvoiceRepository
	billings *BillingRepository
	runs     *BillingRunRepository
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{
		invoices: NewInvoiceRepository(db),
		billings: NewBillingRepository(db),
		runs:     NewBillingRunRepository(db),
	}
}

func (s *GormStore) FetchEligibleInvoices(ctx context.Context) ([]models.Invoice, error) {
	return s.invoices.FindPending(ctx)
}

func (s *GormStore) CreateBilling(ctx context.Context, invoiceID uuid.UUID) (*models.Billing, error) {
	return s.billings.CreateForInvoice(ctx, invoiceID)
}

func (s *GormStore) FinalizeBilling(ctx context.Context, id uuid.UUID, status models.BillingStatus, message *string, chargingDate time.Time) error {
	return s.billings.Finalize(ctx, id, status, message, chargingDate)
}

func (s *GormStore) SetInvoiceStatus(ctx context.Context, id uuid.UUID, status models.InvoiceStatus, message *string) error {
	return s.invoices.SetStatus(ctx, id, status, message)
}

func (s *GormStore) FetchBilling(ctx context.Context, id uuid.UUID) (*models.Billing, error) {
	return s.billings.GetByID(ctx, id)
}

func (s *GormStore) FetchInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *GormStore) FetchUnreconciled(ctx context.Context) ([]models.Billing, error) {
	return s.billings.FindUnreconciled(ctx)
}

func (s *GormStore) FetchBillingsForMonth(ctx context.Context, year int, month time.Month) ([]models.Billing, error) {
	return s.billings.FindByChargingMonth(ctx, year, month)
}

func (s *GormStore) CreateRun(ctx context.Context, totalInvoices int) (*models.BillingRun, error) {
	return s.runs.Create(ctx, totalInvoices)
}

func (s *GormStore) CompleteRun(ctx context.Context, id uuid.UUID, successful, failed, errored int) error {
	return s.runs.Complete(ctx, id, successful, failed, errored)
}
