package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type BillingStatus string

const (
	BillingInProgress BillingStatus = "IN_PROGRESS"
	BillingSuccessful BillingStatus = "SUCCESSFUL"
	BillingFailure    BillingStatus = "FAILURE"
)

// Billing is the ledger entry for one charge attempt against an invoice.
// The unique index on InvoiceID enforces at most one attempt per invoice.
type Billing struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey"`
	InvoiceID     uuid.UUID     `gorm:"type:uuid;uniqueIndex"`
	Status        BillingStatus `gorm:"type:varchar(16);index"`
	StatusMessage *string
	ChargingDate  datatypes.Date
	CreatedAt     time.Time
}
