package stores

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
)

type APIKeyStore struct {
	BaseStore
}

func CreateAPIKeyStore(db *gorm.DB) *APIKeyStore {
	return &APIKeyStore{BaseStore: BaseStore{db: db}}
}

func (s *APIKeyStore) Create(ctx context.Context, key *models.APIKey) error {
	return s.GetDB(ctx).Create(key).Error
}

func (s *APIKeyStore) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	var key models.APIKey
	if err := s.GetDB(ctx).First(&key, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *APIKeyStore) GetByToken(ctx context.Context, token string) (*models.APIKey, error) {
	var key models.APIKey
	if err := s.GetDB(ctx).Where("token = ?", token).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *APIKeyStore) Update(ctx context.Context, key *models.APIKey) error {
	return s.GetDB(ctx).Save(key).Error
}

func (s *APIKeyStore) Delete(ctx context.Context, id string) error {
	result := s.GetDB(ctx).Delete(&models.APIKey{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *APIKeyStore) List(ctx context.Context, limit, offset int) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	query := s.GetDB(ctx).Order("created_at DESC").Scopes(paginate(limit, offset))
	if err := query.Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// TouchLastUsed updates only the usage timestamp. Callers treat this as
// fire-and-forget; an error must never fail the request it accompanies.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	return s.GetDB(ctx).Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", usedAt).Error
}
