// Package fee computes parking charges from a rate card and an occupancy
// interval. Compute is pure: it reads nothing but its arguments, so it is
// safe for estimates as well as for closing a transaction.
package fee

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// ErrInvalidInterval is returned when exit is not strictly after entry.
var ErrInvalidInterval = errors.New("fee: exit time must be after entry time")

// Breakdown is the result of a fee computation with every intermediate
// value kept for auditing.
type Breakdown struct {
	VehicleType        vehicle.Type      `json:"vehicle_type"`
	EntryTime          time.Time         `json:"entry_time"`
	ExitTime           time.Time         `json:"exit_time"`
	DurationMinutes    int64             `json:"duration_minutes"`
	GracePeriodMinutes int64             `json:"grace_period_minutes"`
	GraceApplied       bool              `json:"grace_applied"`
	AdjustedMinutes    int64             `json:"adjusted_minutes"`
	HourlyUnits        int64             `json:"hourly_units"`
	Rounding           ratecard.Rounding `json:"rounding_strategy"`
	HourlyRate         types.Money       `json:"hourly_rate"`
	BaseFee            types.Money       `json:"base_fee"`
	DailyMaxRate       *types.Money      `json:"daily_max_rate,omitempty"`
	DailyCapApplied    bool              `json:"daily_cap_applied"`
	FinalFee           types.Money       `json:"final_fee"`
}

// Compute prices the stay [entry, exit) for vehicle type vt under card.
//
// Durations are truncated to whole minutes. A stay no longer than the grace
// period is free. Otherwise the minutes beyond grace are rounded to hourly
// units per the card's strategy and multiplied by the hourly rate, capped at
// the daily maximum when one is set.
func Compute(vt vehicle.Type, entry, exit time.Time, card *ratecard.RateCard) (*Breakdown, error) {
	if !vt.Valid() {
		return nil, fmt.Errorf("%w: %q", vehicle.ErrInvalidType, vt)
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	if card.VehicleType != vt {
		return nil, fmt.Errorf("%w: card is for %s, not %s", ratecard.ErrInvalid, card.VehicleType, vt)
	}
	if !exit.After(entry) {
		return nil, fmt.Errorf("%w: entry %s, exit %s", ErrInvalidInterval,
			entry.Format(time.RFC3339), exit.Format(time.RFC3339))
	}

	currency := card.HourlyRate.Currency
	b := &Breakdown{
		VehicleType:        vt,
		EntryTime:          entry,
		ExitTime:           exit,
		DurationMinutes:    int64(exit.Sub(entry) / time.Minute),
		GracePeriodMinutes: card.GracePeriodMinutes,
		Rounding:           card.Rounding,
		HourlyRate:         card.HourlyRate,
		BaseFee:            types.Zero(currency),
		FinalFee:           types.Zero(currency),
	}
	if card.DailyMaxRate != nil {
		m := *card.DailyMaxRate
		b.DailyMaxRate = &m
	}

	if b.DurationMinutes <= card.GracePeriodMinutes {
		b.GraceApplied = true
		return b, nil
	}

	b.AdjustedMinutes = b.DurationMinutes - card.GracePeriodMinutes
	b.HourlyUnits = card.Rounding.Units(b.AdjustedMinutes)
	base, err := card.HourlyRate.Multiply(b.HourlyUnits)
	if err != nil {
		return nil, fmt.Errorf("fee: %d hourly units: %w", b.HourlyUnits, err)
	}
	b.BaseFee = base
	b.FinalFee = b.BaseFee

	if b.DailyMaxRate != nil && b.BaseFee.Cmp(*b.DailyMaxRate) > 0 {
		b.FinalFee = *b.DailyMaxRate
		b.DailyCapApplied = true
	}

	return b, nil
}
