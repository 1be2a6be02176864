package money

import (
	"github.com/shopspring/decimal"

	"github.com/resvia/resvia/models"
)

// ToleranceMinor is the permitted discrepancy between a persisted commission
// and its independent recomputation: one minor unit, absorbing rounding done
// at a different point in the original charge path.
const ToleranceMinor = 1

// Discrepancy reports one booking whose persisted snapshot disagrees with a
// recomputation beyond tolerance.
type Discrepancy struct {
	BookingID        string          `json:"booking_id"`
	StoredCommission decimal.Decimal `json:"stored_commission"`
	ExpectedMinor    int64           `json:"expected_minor"`
	StoredMinor      int64           `json:"stored_minor"`
	DeltaMinor       int64           `json:"delta_minor"`
}

// VerifyBooking independently recomputes the expected platform commission
// (rate component plus fixed fee) for a stamped booking against the given
// rate and fixed fee. It returns nil when the snapshot is within tolerance.
// Discrepancies flag for audit only; they never block or reverse a
// confirmation.
func VerifyBooking(b *models.Booking, ratePercent, fixedFee decimal.Decimal) *Discrepancy {
	if b.PlatformCommission == nil {
		return nil
	}

	breakdown := ComputeFees(ToMinor(b.Amount), ratePercent, ToMinor(fixedFee))
	storedMinor := ToMinor(*b.PlatformCommission)

	delta := storedMinor - breakdown.TotalFees
	if delta < 0 {
		delta = -delta
	}
	if delta <= ToleranceMinor {
		return nil
	}

	return &Discrepancy{
		BookingID:        b.ID,
		StoredCommission: *b.PlatformCommission,
		ExpectedMinor:    breakdown.TotalFees,
		StoredMinor:      storedMinor,
		DeltaMinor:       delta,
	}
}
