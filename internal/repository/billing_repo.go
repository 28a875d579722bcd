package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoice-billing-backend/internal/models"
)

type BillingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// CreateForInvoice inserts an IN_PROGRESS billing for the invoice. The insert
// uses ON CONFLICT DO NOTHING against the unique invoice index, so a second
// call for the same invoice returns the existing row instead of failing.
func (r *BillingRepository) CreateForInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Billing, error) {
	billing := &models.Billing{
		ID:           uuid.New(),
		InvoiceID:    invoiceID,
		Status:       models.BillingInProgress,
		ChargingDate: datatypes.Date(time.Now()),
		CreatedAt:    time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "invoice_id"}}, DoNothing: true}).
		Create(billing).Error
	if err != nil {
		return nil, err
	}
	return r.GetByInvoiceID(ctx, invoiceID)
}

func (r *BillingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Billing, error) {
	var billing models.Billing
	if err := r.db.WithContext(ctx).First(&billing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &billing, nil
}

func (r *BillingRepository) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*models.Billing, error) {
	var billing models.Billing
	if err := r.db.WithContext(ctx).First(&billing, "invoice_id = ?", invoiceID).Error; err != nil {
		return nil, err
	}
	return &billing, nil
}

func (r *BillingRepository) GetAll(ctx context.Context) ([]models.Billing, error) {
	var billings []models.Billing
	err := r.db.WithContext(ctx).Find(&billings).Error
	return billings, err
}

// Finalize persists the terminal state of an attempt.
func (r *BillingRepository) Finalize(ctx context.Context, id uuid.UUID, status models.BillingStatus, message *string, chargingDate time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Billing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"status_message": message,
			"charging_date":  datatypes.Date(chargingDate),
		}).Error
}

// FindByChargingMonth returns attempts recorded in the given calendar month.
func (r *BillingRepository) FindByChargingMonth(ctx context.Context, year int, month time.Month) ([]models.Billing, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var billings []models.Billing
	err := r.db.WithContext(ctx).
		Where("charging_date >= ? AND charging_date < ?", start, end).
		Order("charging_date ASC").
		Find(&billings).Error
	return billings, err
}

// FindUnreconciled returns SUCCESSFUL attempts whose invoice is not PAID,
// i.e. runs where the second step of the two-step commit never landed.
func (r *BillingRepository) FindUnreconciled(ctx context.Context) ([]models.Billing, error) {
	var billings []models.Billing
	err := r.db.WithContext(ctx).
		Joins("JOIN invoices ON invoices.id = billings.invoice_id").
		Where("billings.status = ? AND invoices.status <> ?", models.BillingSuccessful, models.InvoicePaid).
		Find(&billings).Error
	return billings, err
}
