package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/resvia/resvia/models"
)

type auditStore interface {
	Create(ctx context.Context, entry *models.APIRequestLog) error
	List(ctx context.Context, filter models.APIRequestLogFilter) ([]*models.APIRequestLog, int64, error)
	Stats(ctx context.Context, since time.Time) (*models.APIRequestStats, error)
}

type deliveryReadStore interface {
	ListByWebhook(ctx context.Context, webhookID string, limit, offset int) ([]*models.WebhookDeliveryLog, int64, error)
	Stats(ctx context.Context, since time.Time) (*models.DeliveryStats, error)
}

// AuditService is the append-only sink for API request records plus the read
// side over both audit tables. Recording failures are swallowed and logged;
// they never abort the caller's primary operation.
type AuditService struct {
	requests   auditStore
	deliveries deliveryReadStore
	log        zerolog.Logger
}

func CreateAuditService(requests auditStore, deliveries deliveryReadStore, log zerolog.Logger) *AuditService {
	return &AuditService{
		requests:   requests,
		deliveries: deliveries,
		log:        log.With().Str("component", "audit").Logger(),
	}
}

func (s *AuditService) RecordAPIRequest(ctx context.Context, entry *models.APIRequestLog) {
	if err := s.requests.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Str("method", entry.Method).
			Str("path", entry.Path).
			Msg("failed to record api request")
	}
}

func (s *AuditService) ListAPIRequests(ctx context.Context, filter models.APIRequestLogFilter) ([]*models.APIRequestLog, int64, error) {
	return s.requests.List(ctx, filter)
}

func (s *AuditService) APIRequestStats(ctx context.Context, window time.Duration) (*models.APIRequestStats, error) {
	return s.requests.Stats(ctx, time.Now().Add(-window))
}

func (s *AuditService) ListDeliveries(ctx context.Context, webhookID string, limit, offset int) ([]*models.WebhookDeliveryLog, int64, error) {
	return s.deliveries.ListByWebhook(ctx, webhookID, limit, offset)
}

func (s *AuditService) DeliveryStats(ctx context.Context, window time.Duration) (*models.DeliveryStats, error) {
	return s.deliveries.Stats(ctx, time.Now().Add(-window))
}
