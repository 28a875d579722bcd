package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-billing-backend/internal/models"
)

type BillingRunRepository struct {
	db *gorm.DB
}

func NewBillingRunRepository(db *gorm.DB) *BillingRunRepository {
	return &BillingRunRepository{db: db}
}

func (r *BillingRunRepository) Create(ctx context.Context, totalInvoices int) (*models.BillingRun, error) {
	run := &models.BillingRun{
		ID:            uuid.New(),
		TotalInvoices: totalInvoices,
		Status:        "processing",
		StartedAt:     time.Now(),
		CreatedAt:     time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *BillingRunRepository) Complete(ctx context.Context, id uuid.UUID, successful, failed, errored int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.BillingRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"successful_count": successful,
			"failed_count":     failed,
			"errored_count":    errored,
			"status":           "completed",
			"completed_at":     &now,
		}).Error
}
