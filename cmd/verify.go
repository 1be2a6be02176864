package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/resvia/resvia/config"
	"github.com/resvia/resvia/models"
	"github.com/resvia/resvia/money"
	"github.com/resvia/resvia/stores"
)

var verifyBatchSize int

var verifyCmd = &cobra.Command{
	Use:   "verify-commissions",
	Short: "Recompute stamped commission snapshots and report discrepancies",
	Long: `Walks every stamped booking, independently recomputes the expected
platform commission and prints one JSON line per discrepancy beyond
tolerance. Discrepancies are reported for audit only; stored snapshots
are never rewritten. Exits non-zero when any discrepancy is found.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().IntVar(&verifyBatchSize, "batch-size", 500, "bookings per read batch")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	db, err := stores.Open(stores.DBConfig{
		DSN:          cfg.Database.DSN(),
		ReplicaDSNs:  cfg.Database.ReplicaDSNs,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	bookingStore := stores.CreateBookingStore(db)
	establishmentStore := stores.CreateEstablishmentStore(db)

	ctx := context.Background()
	establishments := map[string]*models.Establishment{}
	enc := json.NewEncoder(os.Stdout)

	var checked, flagged int
	err = bookingStore.ListStamped(ctx, verifyBatchSize, func(batch []*models.Booking) error {
		for _, b := range batch {
			est, ok := establishments[b.EstablishmentSlug]
			if !ok {
				est, err = establishmentStore.GetBySlug(ctx, b.EstablishmentSlug)
				if err != nil {
					log.Warn().Err(err).Str("establishment", b.EstablishmentSlug).Msg("establishment lookup failed, using defaults")
					est = nil
				}
				establishments[b.EstablishmentSlug] = est
			}

			rate, fixedFee := verifyRates(b, est)
			checked++
			if d := money.VerifyBooking(b, rate, fixedFee); d != nil {
				flagged++
				if err := enc.Encode(d); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("checked", checked).Int("flagged", flagged).Msg("verification complete")
	if flagged > 0 {
		return fmt.Errorf("%d of %d stamped bookings outside tolerance", flagged, checked)
	}
	return nil
}

// verifyRates resolves the rate and fixed fee to recompute against. The
// values stamped at charge time are authoritative when present; otherwise
// the establishment's current configuration, then platform defaults. Fee
// edits made after a booking was stamped never flag it.
func verifyRates(b *models.Booking, est *models.Establishment) (decimal.Decimal, decimal.Decimal) {
	rate := money.DefaultCommissionRate
	fixedFee := money.DefaultFixedFee

	if est != nil {
		if est.CommissionRate != nil {
			rate = *est.CommissionRate
		}
		if b.Category == models.BookingCategoryDayUse && est.DayUseRate != nil {
			rate = *est.DayUseRate
		}
		if est.FixedFee != nil {
			fixedFee = *est.FixedFee
		}
	}
	if b.AppliedRate != nil {
		rate = *b.AppliedRate
	}
	if b.AppliedFixedFee != nil {
		fixedFee = *b.AppliedFixedFee
	}
	return rate, fixedFee
}
