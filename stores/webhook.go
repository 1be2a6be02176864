package stores

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
)

type WebhookStore struct {
	BaseStore
}

func CreateWebhookStore(db *gorm.DB) *WebhookStore {
	return &WebhookStore{BaseStore: BaseStore{db: db}}
}

func (s *WebhookStore) Create(ctx context.Context, sub *models.WebhookSubscription) error {
	return s.GetDB(ctx).Create(sub).Error
}

func (s *WebhookStore) GetByID(ctx context.Context, id string) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	if err := s.GetDB(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *WebhookStore) Update(ctx context.Context, sub *models.WebhookSubscription) error {
	return s.GetDB(ctx).Save(sub).Error
}

func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	result := s.GetDB(ctx).Delete(&models.WebhookSubscription{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *WebhookStore) ListByEstablishment(ctx context.Context, slug string) ([]*models.WebhookSubscription, error) {
	var subs []*models.WebhookSubscription
	if err := s.GetDB(ctx).
		Where("establishment_slug = ?", slug).
		Order("created_at ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListForEvent returns every subscription of the establishment, active or
// not; the dispatcher decides what to do with inactive ones so the skip
// itself stays observable.
func (s *WebhookStore) ListForEvent(ctx context.Context, slug string) ([]*models.WebhookSubscription, error) {
	return s.ListByEstablishment(ctx, slug)
}

// Disable flips the subscription off after sustained delivery failure. Only
// an explicit admin Activate turns it back on.
func (s *WebhookStore) Disable(ctx context.Context, id, reason string) error {
	now := time.Now()
	return s.GetDB(ctx).Model(&models.WebhookSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":      false,
			"disabled_at":    now,
			"disable_reason": reason,
		}).Error
}

func (s *WebhookStore) Activate(ctx context.Context, id string) error {
	return s.GetDB(ctx).Model(&models.WebhookSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":      true,
			"disabled_at":    nil,
			"disable_reason": "",
		}).Error
}

type DeliveryLogStore struct {
	BaseStore
}

func CreateDeliveryLogStore(db *gorm.DB) *DeliveryLogStore {
	return &DeliveryLogStore{BaseStore: BaseStore{db: db}}
}

func (s *DeliveryLogStore) Append(ctx context.Context, entry *models.WebhookDeliveryLog) error {
	return s.GetDB(ctx).Create(entry).Error
}

func (s *DeliveryLogStore) ListByWebhook(ctx context.Context, webhookID string, limit, offset int) ([]*models.WebhookDeliveryLog, int64, error) {
	var entries []*models.WebhookDeliveryLog
	var total int64

	query := s.GetDB(ctx).Model(&models.WebhookDeliveryLog{}).Where("webhook_id = ?", webhookID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Scopes(paginate(limit, offset)).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// RecentOutcomes returns the success flags of the most recent settled
// deliveries, newest first. Attempts that did not settle a delivery are
// excluded so the consecutive-failure count stays per delivery, not per
// attempt.
func (s *DeliveryLogStore) RecentOutcomes(ctx context.Context, webhookID string, limit int) ([]bool, error) {
	var entries []*models.WebhookDeliveryLog
	if err := s.GetDB(ctx).
		Select("success").
		Where("webhook_id = ? AND final = ?", webhookID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}

	outcomes := make([]bool, len(entries))
	for i, e := range entries {
		outcomes[i] = e.Success
	}
	return outcomes, nil
}

// Stats aggregates delivery outcomes over a recent window for operator
// dashboards.
func (s *DeliveryLogStore) Stats(ctx context.Context, since time.Time) (*models.DeliveryStats, error) {
	var stats models.DeliveryStats

	row := s.GetDB(ctx).Model(&models.WebhookDeliveryLog{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT success) AS failed, COALESCE(AVG(duration_ms), 0) AS avg_latency_ms").
		Where("created_at >= ?", since).
		Row()
	if err := row.Scan(&stats.Total, &stats.Failed, &stats.AvgLatencyMs); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.Failed) / float64(stats.Total)
	}
	return &stats, nil
}
