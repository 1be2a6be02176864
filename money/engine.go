// Package money computes the platform/establishment split on paid bookings.
// All arithmetic runs in integer minor units; decimals appear only at the
// conversion boundary.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnitsExponent covers the 2-decimal currencies the platform operates
// in (CHF, EUR).
const minorUnitsExponent = 2

var minorFactor = decimal.New(1, minorUnitsExponent)

// Platform defaults applied when an establishment has no fee configuration.
var (
	DefaultCommissionRate = decimal.NewFromInt(5)
	DefaultFixedFee       = decimal.Zero
)

// Breakdown is the fee split for one booking, in minor units.
type Breakdown struct {
	Commission    int64           `json:"commission"`
	FixedFee      int64           `json:"fixed_fee"`
	TotalFees     int64           `json:"total_fees"`
	NetAmount     int64           `json:"net_amount"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
}

// ComputeFees splits amountMinor between platform and establishment.
// Commission is round(amount * rate / 100) with half rounded up, net amount
// is floored at zero, and the effective fee percentage is 0 for a zero
// amount. The function is pure and deterministic.
func ComputeFees(amountMinor int64, ratePercent decimal.Decimal, fixedFeeMinor int64) Breakdown {
	amount := decimal.NewFromInt(amountMinor)

	commission := amount.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(0).IntPart()
	totalFees := commission + fixedFeeMinor

	netAmount := amountMinor - totalFees
	if netAmount < 0 {
		netAmount = 0
	}

	feePercentage := decimal.Zero
	if amountMinor != 0 {
		feePercentage = decimal.NewFromInt(totalFees).
			Div(amount).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return Breakdown{
		Commission:    commission,
		FixedFee:      fixedFeeMinor,
		TotalFees:     totalFees,
		NetAmount:     netAmount,
		FeePercentage: feePercentage,
	}
}

// ValidateRate enforces the fee-configuration invariants: a percentage in
// [0, 100] and a non-negative fixed fee.
func ValidateRate(ratePercent, fixedFee decimal.Decimal) error {
	if ratePercent.IsNegative() || ratePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("commission rate %s out of range [0, 100]", ratePercent)
	}
	if fixedFee.IsNegative() {
		return fmt.Errorf("fixed fee %s is negative", fixedFee)
	}
	return nil
}

// ToMinor converts a major-unit decimal to minor units, rounding half up.
func ToMinor(major decimal.Decimal) int64 {
	return major.Mul(minorFactor).Round(0).IntPart()
}

// ToMajor converts minor units back to a major-unit decimal.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorFactor)
}
