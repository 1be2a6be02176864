package cmd

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/money"
	testhelpers "github.com/resvia/resvia/testing"
)

func TestVerifyRates_StampedValuesAreAuthoritative(t *testing.T) {
	booking := testhelpers.MockStampedBooking()

	// The establishment's configuration changed after the booking was
	// stamped at 5% + 0.10.
	est := testhelpers.MockEstablishment()
	newRate := decimal.NewFromInt(8)
	newFee := decimal.NewFromFloat(0.50)
	est.CommissionRate = &newRate
	est.FixedFee = &newFee

	rate, fixedFee := verifyRates(booking, est)
	if !rate.Equal(decimal.NewFromInt(5)) {
		t.Errorf("rate = %s, want the stamped 5", rate)
	}
	if !fixedFee.Equal(decimal.NewFromFloat(0.10)) {
		t.Errorf("fixedFee = %s, want the stamped 0.10", fixedFee)
	}

	// Recomputing with the resolved values clears the snapshot; the fee
	// edit never flags a historical booking.
	if d := money.VerifyBooking(booking, rate, fixedFee); d != nil {
		t.Errorf("VerifyBooking() flagged %+v, want nil", d)
	}
}

func TestVerifyRates_FallbackForUnstampedFees(t *testing.T) {
	// Bookings stamped before the applied values were persisted fall back
	// to the establishment's current configuration.
	booking := testhelpers.MockStampedBooking()
	booking.AppliedRate = nil
	booking.AppliedFixedFee = nil

	est := testhelpers.MockEstablishment()
	rate, fixedFee := verifyRates(booking, est)
	if !rate.Equal(*est.CommissionRate) {
		t.Errorf("rate = %s, want establishment rate %s", rate, est.CommissionRate)
	}
	if !fixedFee.Equal(*est.FixedFee) {
		t.Errorf("fixedFee = %s, want establishment fee %s", fixedFee, est.FixedFee)
	}
}

func TestVerifyRates_PlatformDefaults(t *testing.T) {
	booking := testhelpers.MockBooking()
	booking.AppliedRate = nil
	booking.AppliedFixedFee = nil

	rate, fixedFee := verifyRates(booking, nil)
	if !rate.Equal(money.DefaultCommissionRate) {
		t.Errorf("rate = %s, want platform default %s", rate, money.DefaultCommissionRate)
	}
	if !fixedFee.Equal(money.DefaultFixedFee) {
		t.Errorf("fixedFee = %s, want platform default %s", fixedFee, money.DefaultFixedFee)
	}
}

func TestVerifyRates_DayUseRate(t *testing.T) {
	booking := testhelpers.MockBooking()
	booking.Category = models.BookingCategoryDayUse

	est := testhelpers.MockEstablishment()
	dayUse := decimal.NewFromInt(10)
	est.DayUseRate = &dayUse

	rate, _ := verifyRates(booking, est)
	if !rate.Equal(dayUse) {
		t.Errorf("rate = %s, want day-use rate %s", rate, dayUse)
	}
}
