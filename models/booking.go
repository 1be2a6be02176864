package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type BookingCategory string

const (
	BookingCategoryOvernight BookingCategory = "overnight"
	BookingCategoryDayUse    BookingCategory = "day_use"
)

// Booking carries the financial snapshot stamped when payment succeeds.
// Amount, PlatformCommission and OwnerAmount are major units; once
// FeesStampedAt is set the snapshot is write-once and the rate in effect at
// charge time stays authoritative.
type Booking struct {
	ID                 string           `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	EstablishmentSlug  string           `json:"establishment_slug" gorm:"index;not null"`
	GuestName          string           `json:"guest_name"`
	Category           BookingCategory  `json:"category" gorm:"not null;default:'overnight'"`
	Status             BookingStatus    `json:"status" gorm:"not null;default:'pending'"`
	Currency           string           `json:"currency" gorm:"size:3;default:'CHF'"`
	Amount             decimal.Decimal  `json:"amount" gorm:"type:numeric(12,2);not null"`
	PlatformCommission *decimal.Decimal `json:"platform_commission,omitempty" gorm:"type:numeric(12,2)"`
	OwnerAmount        *decimal.Decimal `json:"owner_amount,omitempty" gorm:"type:numeric(12,2)"`
	AppliedRate        *decimal.Decimal `json:"applied_rate,omitempty" gorm:"type:numeric(5,2)"`
	AppliedFixedFee    *decimal.Decimal `json:"applied_fixed_fee,omitempty" gorm:"type:numeric(12,2)"`
	PaidAt             *time.Time       `json:"paid_at,omitempty"`
	FeesStampedAt      *time.Time       `json:"fees_stamped_at,omitempty"`
	CheckedInAt        *time.Time       `json:"checked_in_at,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (b *Booking) Stamped() bool {
	return b.FeesStampedAt != nil
}

// Summary is the event payload shape pushed to webhook subscribers.
func (b *Booking) Summary() map[string]interface{} {
	summary := map[string]interface{}{
		"booking_id":         b.ID,
		"establishment_slug": b.EstablishmentSlug,
		"category":           string(b.Category),
		"status":             string(b.Status),
		"currency":           b.Currency,
		"amount":             b.Amount.StringFixed(2),
	}
	if b.PlatformCommission != nil {
		summary["platform_commission"] = b.PlatformCommission.StringFixed(2)
	}
	if b.OwnerAmount != nil {
		summary["owner_amount"] = b.OwnerAmount.StringFixed(2)
	}
	return summary
}
