package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"invoice-billing-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Expose DB if needed
func (r *InvoiceRepository) DB() *gorm.DB {
	return r.db
}

func (r *InvoiceRepository) Create(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, currency string) (*models.Invoice, error) {
	invoice := &models.Invoice{
		ID:         uuid.New(),
		CustomerID: customerID,
		Amount:     amount,
		Currency:   currency,
		Status:     models.InvoicePending,
		CreatedAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) GetAll(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).Find(&invoices).Error
	return invoices, err
}

// FindPending returns the invoices eligible for the next billing run.
func (r *InvoiceRepository) FindPending(ctx context.Context) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ?", models.InvoicePending).
		Order("created_at ASC").
		Find(&invoices).Error
	return invoices, err
}

// SetStatus writes status and message together.
func (r *InvoiceRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.InvoiceStatus, message *string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"status_message": message,
		}).Error
}
