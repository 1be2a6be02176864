package models

import (
	"time"
)

// APIKey authenticates third-party API consumers. Token is the opaque
// secret; it is returned in full exactly once at creation and redacted from
// every later read. A key with EstablishmentSlug set is hard-scoped to that
// establishment regardless of its permission map.
type APIKey struct {
	ID                string        `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name              string        `json:"name" gorm:"not null"`
	Token             string        `json:"-" gorm:"uniqueIndex;not null"`
	TokenPrefix       string        `json:"token_prefix"`
	EstablishmentSlug *string       `json:"establishment_slug,omitempty" gorm:"index"`
	Permissions       PermissionMap `json:"permissions" gorm:"type:jsonb;default:'{}'"`
	IsActive          bool          `json:"is_active" gorm:"default:true"`
	ExpiresAt         *time.Time    `json:"expires_at,omitempty"`
	LastUsedAt        *time.Time    `json:"last_used_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

type CreateAPIKeyRequest struct {
	Name              string        `json:"name"`
	EstablishmentSlug *string       `json:"establishment_slug"`
	Permissions       PermissionMap `json:"permissions"`
	ExpiresAt         *time.Time    `json:"expires_at"`
}

// CreateAPIKeyResponse is the only place the full token ever appears.
type CreateAPIKeyResponse struct {
	Key   *APIKey `json:"key"`
	Token string  `json:"token"`
}

type UpdateAPIKeyRequest struct {
	Name        *string       `json:"name"`
	Permissions PermissionMap `json:"permissions"`
	IsActive    *bool         `json:"is_active"`
	ExpiresAt   *time.Time    `json:"expires_at"`
}
