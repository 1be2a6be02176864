package models

import (
	"time"
)

type WebhookFormat string

const (
	WebhookFormatJSON WebhookFormat = "json"
	WebhookFormatForm WebhookFormat = "form"
)

// WebhookSubscription is one outbound delivery target owned by an
// establishment. An inactive subscription is never dispatched to; it is
// reactivated only by explicit admin action.
type WebhookSubscription struct {
	ID                string        `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	EstablishmentSlug string        `json:"establishment_slug" gorm:"index;not null"`
	Name              string        `json:"name" gorm:"not null"`
	URL               string        `json:"url" gorm:"not null"`
	Events            StringList    `json:"events" gorm:"type:jsonb;not null;default:'[]'"`
	Format            WebhookFormat `json:"format" gorm:"not null;default:'json'"`
	Secret            string        `json:"-" gorm:"not null"`
	RetryCount        int           `json:"retry_count" gorm:"default:3"`
	RetryDelay        int           `json:"retry_delay" gorm:"default:5"`
	IsActive          bool          `json:"is_active" gorm:"default:true"`
	DisabledAt        *time.Time    `json:"disabled_at,omitempty"`
	DisableReason     string        `json:"disable_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *WebhookSubscription) SubscribedTo(eventType string) bool {
	return s.Events.Contains(eventType) || s.Events.Contains("*")
}

// WebhookDeliveryLog is one row per delivery attempt, append-only. Final
// marks the attempt that settled the delivery (a success, or the last
// exhausted retry); the auto-disable decision counts consecutive failed
// final rows.
type WebhookDeliveryLog struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	WebhookID     string    `json:"webhook_id" gorm:"index;not null"`
	EventID       string    `json:"event_id" gorm:"index"`
	EventType     string    `json:"event_type"`
	AttemptNumber int       `json:"attempt_number"`
	StatusCode    *int      `json:"status_code,omitempty"`
	Error         string    `json:"error,omitempty"`
	Success       bool      `json:"success"`
	Final         bool      `json:"final"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

type CreateWebhookRequest struct {
	EstablishmentSlug string        `json:"establishment_slug"`
	Name              string        `json:"name"`
	URL               string        `json:"url"`
	Events            StringList    `json:"events"`
	Format            WebhookFormat `json:"format"`
	RetryCount        int           `json:"retry_count"`
	RetryDelay        int           `json:"retry_delay"`
}

// CreateWebhookResponse is the only place the signing secret ever appears.
type CreateWebhookResponse struct {
	Webhook *WebhookSubscription `json:"webhook"`
	Secret  string               `json:"secret"`
}

type UpdateWebhookRequest struct {
	Name       *string       `json:"name"`
	URL        *string       `json:"url"`
	Events     StringList    `json:"events"`
	Format     WebhookFormat `json:"format"`
	RetryCount *int          `json:"retry_count"`
	RetryDelay *int          `json:"retry_delay"`
}

type DeliveryStats struct {
	Total        int64   `json:"total"`
	Failed       int64   `json:"failed"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
