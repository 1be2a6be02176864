package stores

import (
	"context"

	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
)

type EstablishmentStore struct {
	BaseStore
}

func CreateEstablishmentStore(db *gorm.DB) *EstablishmentStore {
	return &EstablishmentStore{BaseStore: BaseStore{db: db}}
}

func (s *EstablishmentStore) Create(ctx context.Context, establishment *models.Establishment) error {
	return s.GetDB(ctx).Create(establishment).Error
}

func (s *EstablishmentStore) GetBySlug(ctx context.Context, slug string) (*models.Establishment, error) {
	var establishment models.Establishment
	if err := s.GetDB(ctx).Where("slug = ?", slug).First(&establishment).Error; err != nil {
		return nil, err
	}
	return &establishment, nil
}

func (s *EstablishmentStore) Update(ctx context.Context, establishment *models.Establishment) error {
	return s.GetDB(ctx).Save(establishment).Error
}

func (s *EstablishmentStore) List(ctx context.Context, limit, offset int) ([]*models.Establishment, error) {
	var establishments []*models.Establishment
	query := s.GetDB(ctx).Order("slug ASC").Scopes(paginate(limit, offset))
	if err := query.Find(&establishments).Error; err != nil {
		return nil, err
	}
	return establishments, nil
}
