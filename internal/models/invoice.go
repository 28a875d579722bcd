package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePending    InvoiceStatus = "PENDING"
	InvoiceInProgress InvoiceStatus = "IN_PROGRESS"
	InvoicePaid       InvoiceStatus = "PAID"
	InvoiceFailure    InvoiceStatus = "FAILURE"
)

type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2)"`
	Currency      string          `gorm:"type:varchar(3)"`
	Status        InvoiceStatus   `gorm:"type:varchar(16);index"`
	StatusMessage *string
	CreatedAt     time.Time
}
