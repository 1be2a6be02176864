package models

import (
	"time"
)

// APIRequestLog is one row per inbound API call, append-only. APIKeyID is
// null for unauthenticated or rejected calls.
type APIRequestLog struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	APIKeyID   *string   `json:"api_key_id,omitempty" gorm:"index"`
	Method     string    `json:"method" gorm:"not null"`
	Path       string    `json:"path" gorm:"not null"`
	StatusCode int       `json:"status_code"`
	DurationMs int64     `json:"duration_ms"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

type APIRequestLogFilter struct {
	APIKeyID  string
	Path      string
	Method    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type APIRequestStats struct {
	Total        int64   `json:"total"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
