package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Establishment is the owning party of bookings, webhooks and scoped API
// keys. Only the fee configuration is authoritative here; profile data lives
// in the main platform.
type Establishment struct {
	ID             string           `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Slug           string           `json:"slug" gorm:"uniqueIndex;not null"`
	Name           string           `json:"name" gorm:"not null"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty" gorm:"type:numeric(5,2)"`
	FixedFee       *decimal.Decimal `json:"fixed_fee,omitempty" gorm:"type:numeric(12,2)"`
	DayUseRate     *decimal.Decimal `json:"day_use_rate,omitempty" gorm:"type:numeric(5,2)"`
	Currency       string           `json:"currency" gorm:"size:3;default:'CHF'"`
	IsActive       bool             `json:"is_active" gorm:"default:true"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

type UpdateEstablishmentFeesRequest struct {
	CommissionRate *decimal.Decimal `json:"commission_rate"`
	FixedFee       *decimal.Decimal `json:"fixed_fee"`
	DayUseRate     *decimal.Decimal `json:"day_use_rate"`
}
