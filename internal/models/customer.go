package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Currency  string    `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}
