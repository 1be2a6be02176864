package stores

import (
	"context"

	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
)

type BookingStore struct {
	BaseStore
}

func CreateBookingStore(db *gorm.DB) *BookingStore {
	return &BookingStore{BaseStore: BaseStore{db: db}}
}

func (s *BookingStore) Create(ctx context.Context, booking *models.Booking) error {
	return s.GetDB(ctx).Create(booking).Error
}

func (s *BookingStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.GetDB(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *BookingStore) Update(ctx context.Context, booking *models.Booking) error {
	return s.GetDB(ctx).Save(booking).Error
}

func (s *BookingStore) ListByEstablishment(ctx context.Context, slug string, limit, offset int) ([]*models.Booking, int64, error) {
	var bookings []*models.Booking
	var total int64

	query := s.GetDB(ctx).Model(&models.Booking{}).Where("establishment_slug = ?", slug)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Scopes(paginate(limit, offset)).Order("created_at DESC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// ListStamped streams stamped bookings in batches for the commission
// verification pass.
func (s *BookingStore) ListStamped(ctx context.Context, batchSize int, fn func([]*models.Booking) error) error {
	var batch []*models.Booking
	return s.GetDB(ctx).
		Where("fees_stamped_at IS NOT NULL").
		Order("created_at ASC").
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}
