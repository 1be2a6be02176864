package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/money"
	"github.com/resvia/resvia/utils"
)

type bookingStore interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	Update(ctx context.Context, booking *models.Booking) error
	ListByEstablishment(ctx context.Context, slug string, limit, offset int) ([]*models.Booking, int64, error)
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

type establishmentStore interface {
	GetBySlug(ctx context.Context, slug string) (*models.Establishment, error)
}

// BookingService applies state transitions to bookings and emits the
// matching events. The payment capture itself happens upstream in the main
// platform; this service consumes its success to stamp the financial
// snapshot.
type BookingService struct {
	bookings       bookingStore
	establishments establishmentStore
	dispatcher     *Dispatcher
	log            zerolog.Logger
}

func CreateBookingService(
	bookings bookingStore,
	establishments establishmentStore,
	dispatcher *Dispatcher,
	log zerolog.Logger,
) *BookingService {
	return &BookingService{
		bookings:       bookings,
		establishments: establishments,
		dispatcher:     dispatcher,
		log:            log.With().Str("component", "booking").Logger(),
	}
}

// HandlePaymentSucceeded stamps the write-once financial snapshot using the
// establishment's fee configuration in effect now, confirms the booking and
// dispatches booking.confirmed. Webhook health never influences the outcome;
// a stamped booking is never recomputed.
func (s *BookingService) HandlePaymentSucceeded(ctx context.Context, establishmentSlug, bookingID string) (*models.Booking, error) {
	var booking *models.Booking

	// Read-check-stamp runs in one transaction so two concurrent payment
	// notifications cannot both pass the write-once check.
	err := s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := s.getBooking(txCtx, establishmentSlug, bookingID)
		if err != nil {
			return err
		}
		if loaded.Stamped() {
			return utils.ErrSnapshotImmutable
		}

		rate, fixedFee := s.feesFor(txCtx, loaded)
		breakdown := money.ComputeFees(money.ToMinor(loaded.Amount), rate, money.ToMinor(fixedFee))

		commission := money.ToMajor(breakdown.Commission + breakdown.FixedFee)
		ownerAmount := money.ToMajor(breakdown.NetAmount)
		now := time.Now()

		loaded.Status = models.BookingStatusConfirmed
		loaded.PlatformCommission = &commission
		loaded.OwnerAmount = &ownerAmount
		loaded.AppliedRate = &rate
		loaded.AppliedFixedFee = &fixedFee
		loaded.PaidAt = &now
		loaded.FeesStampedAt = &now

		if err := s.bookings.Update(txCtx, loaded); err != nil {
			return utils.WrapError(err, "failed to stamp booking snapshot")
		}
		booking = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, booking.EstablishmentSlug,
		NewEvent(EventBookingConfirmed, booking.Summary()))

	return booking, nil
}

func (s *BookingService) CheckIn(ctx context.Context, establishmentSlug, bookingID string) (*models.Booking, error) {
	var booking *models.Booking

	err := s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := s.getBooking(txCtx, establishmentSlug, bookingID)
		if err != nil {
			return err
		}
		if loaded.Status != models.BookingStatusConfirmed {
			return utils.ErrBookingNotPaid
		}

		now := time.Now()
		loaded.Status = models.BookingStatusCheckedIn
		loaded.CheckedInAt = &now

		if err := s.bookings.Update(txCtx, loaded); err != nil {
			return utils.WrapError(err, "failed to check in booking")
		}
		booking = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, booking.EstablishmentSlug,
		NewEvent(EventBookingCheckedIn, booking.Summary()))

	return booking, nil
}

func (s *BookingService) Cancel(ctx context.Context, establishmentSlug, bookingID string) (*models.Booking, error) {
	var booking *models.Booking

	err := s.bookings.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := s.getBooking(txCtx, establishmentSlug, bookingID)
		if err != nil {
			return err
		}
		// A checked-in or already-cancelled booking stays where it is;
		// repeating the transition would re-emit booking.cancelled.
		if loaded.Status == models.BookingStatusCheckedIn || loaded.Status == models.BookingStatusCancelled {
			return utils.ErrBookingNotCancellable
		}

		now := time.Now()
		loaded.Status = models.BookingStatusCancelled
		loaded.CancelledAt = &now

		if err := s.bookings.Update(txCtx, loaded); err != nil {
			return utils.WrapError(err, "failed to cancel booking")
		}
		booking = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, booking.EstablishmentSlug,
		NewEvent(EventBookingCancelled, booking.Summary()))

	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, establishmentSlug, id string) (*models.Booking, error) {
	return s.getBooking(ctx, establishmentSlug, id)
}

func (s *BookingService) ListBookings(ctx context.Context, slug string, limit, offset int) ([]*models.Booking, int64, error) {
	return s.bookings.ListByEstablishment(ctx, slug, limit, offset)
}

// getBooking loads a booking addressed under an establishment. A booking
// owned by a different establishment reads as absent, so ids never cross
// the tenant boundary.
func (s *BookingService) getBooking(ctx context.Context, establishmentSlug, id string) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrBookingNotFound
		}
		return nil, utils.WrapError(err, "failed to load booking")
	}
	if booking.EstablishmentSlug != establishmentSlug {
		return nil, utils.ErrBookingNotFound
	}
	return booking, nil
}

// feesFor resolves the rate and fixed fee for a booking: the secondary
// day-use rate when configured and applicable, otherwise the establishment
// rate, otherwise the platform defaults. A missing fee configuration never
// fails the booking.
func (s *BookingService) feesFor(ctx context.Context, booking *models.Booking) (decimal.Decimal, decimal.Decimal) {
	establishment, err := s.establishments.GetBySlug(ctx, booking.EstablishmentSlug)
	if err != nil {
		s.log.Warn().Err(err).
			Str("establishment", booking.EstablishmentSlug).
			Msg("fee configuration unavailable, using platform defaults")
		return money.DefaultCommissionRate, money.DefaultFixedFee
	}

	rate := money.DefaultCommissionRate
	if establishment.CommissionRate != nil {
		rate = *establishment.CommissionRate
	}
	if booking.Category == models.BookingCategoryDayUse && establishment.DayUseRate != nil {
		rate = *establishment.DayUseRate
	}

	fixedFee := money.DefaultFixedFee
	if establishment.FixedFee != nil {
		fixedFee = *establishment.FixedFee
	}

	return rate, fixedFee
}
