package stores

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
)

type AuditStore struct {
	BaseStore
}

func CreateAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{BaseStore: BaseStore{db: db}}
}

func (s *AuditStore) Create(ctx context.Context, entry *models.APIRequestLog) error {
	return s.GetDB(ctx).Create(entry).Error
}

func (s *AuditStore) List(ctx context.Context, filter models.APIRequestLogFilter) ([]*models.APIRequestLog, int64, error) {
	var entries []*models.APIRequestLog
	var total int64

	query := s.GetDB(ctx).Model(&models.APIRequestLog{})

	if filter.APIKeyID != "" {
		query = query.Where("api_key_id = ?", filter.APIKeyID)
	}
	if filter.Path != "" {
		query = query.Where("path = ?", filter.Path)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", filter.EndDate)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Scopes(paginate(filter.Limit, filter.Offset)).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *AuditStore) Stats(ctx context.Context, since time.Time) (*models.APIRequestStats, error) {
	var stats models.APIRequestStats

	row := s.GetDB(ctx).Model(&models.APIRequestLog{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE status_code >= 400) AS errors, COALESCE(AVG(duration_ms), 0) AS avg_latency_ms").
		Where("created_at >= ?", since).
		Row()
	if err := row.Scan(&stats.Total, &stats.Errors, &stats.AvgLatencyMs); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.Errors) / float64(stats.Total)
	}
	return &stats, nil
}

func (s *AuditStore) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := s.GetDB(ctx).Where("created_at < ?", cutoff).Delete(&models.APIRequestLog{})
	return result.RowsAffected, result.Error
}
