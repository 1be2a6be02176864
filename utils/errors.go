package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries an HTTP status and a stable machine-readable code.
type APIError struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code int, reason, message string) *APIError {
	return &APIError{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

// Authentication errors: rejected before any business logic runs.
var (
	ErrMissingAPIKey  = NewAPIError(http.StatusUnauthorized, "missing_api_key", "X-API-Key header required")
	ErrInvalidAPIKey  = NewAPIError(http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
	ErrInactiveAPIKey = NewAPIError(http.StatusUnauthorized, "inactive_api_key", "API key is inactive")
	ErrExpiredAPIKey  = NewAPIError(http.StatusUnauthorized, "expired_api_key", "API key has expired")
)

// Authorization errors: distinct from authentication.
var (
	ErrScopeMismatch     = NewAPIError(http.StatusForbidden, "scope_mismatch", "API key is not scoped to this establishment")
	ErrMissingPermission = NewAPIError(http.StatusForbidden, "missing_permission", "API key lacks the required permission")
)

var (
	ErrRateLimitExceeded = NewAPIError(http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded")
)

var (
	ErrInvalidRequest = NewAPIError(http.StatusBadRequest, "invalid_request", "Invalid request")
	ErrNotFound       = NewAPIError(http.StatusNotFound, "not_found", "Resource not found")
	ErrInternalServer = NewAPIError(http.StatusInternalServerError, "internal_error", "Internal server error")
)

var (
	ErrBookingNotFound       = NewAPIError(http.StatusNotFound, "booking_not_found", "Booking not found")
	ErrBookingNotPaid        = NewAPIError(http.StatusConflict, "booking_not_paid", "Booking has no successful payment")
	ErrBookingNotCancellable = NewAPIError(http.StatusConflict, "booking_not_cancellable", "Booking cannot be cancelled in its current state")
	ErrSnapshotImmutable     = NewAPIError(http.StatusConflict, "snapshot_immutable", "Booking financial snapshot is write-once")
	ErrWebhookNotFound       = NewAPIError(http.StatusNotFound, "webhook_not_found", "Webhook subscription not found")
	ErrKeyNotFound           = NewAPIError(http.StatusNotFound, "api_key_not_found", "API key not found")
	ErrInvalidFeeConfig      = NewAPIError(http.StatusBadRequest, "invalid_fee_config", "Commission rate must be between 0 and 100 and fixed fee non-negative")
	ErrInvalidPermissions    = NewAPIError(http.StatusBadRequest, "invalid_permissions", "Permission map failed validation")
	ErrInvalidWebhookEvent   = NewAPIError(http.StatusBadRequest, "invalid_webhook_event", "Unknown webhook event name")
)

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus resolves the response status for any error surfaced to a
// handler, unwrapping APIError values wrapped with %w.
func HTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return http.StatusInternalServerError
}

// AsAPIError normalizes any error into an APIError for response encoding.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternalServer
}
