package models

import (
	"time"

	"github.com/google/uuid"
)

type BillingRun struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalInvoices   int
	SuccessfulCount int
	FailedCount     int
	ErroredCount    int
	Status          string `gorm:"index"`
	StartedAt       time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
}
