package parklot_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/store/memory"
	"github.com/xraph/parklot/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		clock := newFakeClock(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
		e := parklot.New(store,
			parklot.WithLogger(slog.Default()),
			parklot.WithClock(clock.Now),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		daily := types.USD(5000)
		if err := e.SetRateCard(ctx, &ratecard.RateCard{
			VehicleType:        parklot.Car,
			HourlyRate:         parklot.USD(800),
			DailyMaxRate:       &daily,
			Rounding:           ratecard.RoundingCeiling,
			GracePeriodMinutes: 15,
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := e.AddSpot(ctx, 1, 1, parklot.Car); err != nil {
			t.Fatal(err)
		}

		in, err := e.Entry(ctx, "KA-01 AB 1234", parklot.Car)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("parked at floor %d spot %d\n", in.Spot.Floor, in.Spot.Number)

		clock.Advance(155 * time.Minute)

		out, err := e.Exit(ctx, "KA01AB1234")
		if err != nil {
			t.Fatal(err)
		}
		if got := out.ParkingFee.String(); got != "$24.00" {
			t.Errorf("fee = %s, want $24.00", got)
		}
	})

	t.Run("ErrorClassification", func(t *testing.T) {
		e := parklot.New(memory.New())
		ctx := context.Background()

		_, err := e.Entry(ctx, "AB123", "TRUCK")
		if parklot.KindOf(err) != parklot.KindInvalidInput {
			t.Errorf("kind = %s, want invalid_input", parklot.KindOf(err))
		}
		if parklot.Code(err) != "INVALID_VEHICLE_TYPE" {
			t.Errorf("code = %s", parklot.Code(err))
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		m, err := parklot.ParseMoney("8.00", "usd")
		if err != nil {
			t.Fatal(err)
		}
		if !m.Equal(parklot.USD(800)) {
			t.Errorf("ParseMoney = %s", m)
		}
		if fee, err := m.Multiply(3); err != nil || fee.FormatMajor() != "24.00" {
			t.Errorf("Multiply(3) = %s, %v", fee, err)
		}
	})
}
