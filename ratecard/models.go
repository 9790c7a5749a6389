// Package ratecard holds the per-vehicle-type billing policy consumed by
// fee computation.
package ratecard

import (
	"errors"
	"fmt"
	"math"

	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// ErrInvalid is returned when a rate card fails validation.
var ErrInvalid = errors.New("ratecard: invalid rate card")

// MaxHourlyRate is the largest hourly rate, in minor units, whose fee for a
// century of hourly units still fits in int64.
const MaxHourlyRate = math.MaxInt64 / (100 * 366 * 24)

// Rounding decides how billable minutes become whole hourly units.
type Rounding string

const (
	RoundingCeiling Rounding = "CEILING"
	RoundingFloor   Rounding = "FLOOR"
	RoundingRound   Rounding = "ROUND"
)

// Valid reports whether r is a known strategy.
func (r Rounding) Valid() bool {
	switch r {
	case RoundingCeiling, RoundingFloor, RoundingRound:
		return true
	}
	return false
}

// Units converts minutes to hourly units with integer arithmetic.
// ROUND rounds .5 up.
func (r Rounding) Units(minutes int64) int64 {
	switch r {
	case RoundingFloor:
		return minutes / 60
	case RoundingRound:
		return (minutes + 30) / 60
	default:
		return (minutes + 59) / 60
	}
}

type RateCard struct {
	types.Stamp
	ID                 id.RateCardID `json:"id"`
	VehicleType        vehicle.Type  `json:"vehicle_type"`
	HourlyRate         types.Money   `json:"hourly_rate"`
	DailyMaxRate       *types.Money  `json:"daily_max_rate,omitempty"`
	Rounding           Rounding      `json:"rounding_strategy"`
	GracePeriodMinutes int64         `json:"grace_period_minutes"`
}

// Validate checks the card's invariants.
func (c *RateCard) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil", ErrInvalid)
	case !c.VehicleType.Valid():
		return fmt.Errorf("%w: vehicle type %q", ErrInvalid, c.VehicleType)
	case c.HourlyRate.Currency == "":
		return fmt.Errorf("%w: hourly rate has no currency", ErrInvalid)
	case c.HourlyRate.IsNegative():
		return fmt.Errorf("%w: hourly rate must be >= 0", ErrInvalid)
	case c.HourlyRate.Amount > MaxHourlyRate:
		return fmt.Errorf("%w: hourly rate %s exceeds %d minor units", ErrInvalid, c.HourlyRate, int64(MaxHourlyRate))
	case !c.Rounding.Valid():
		return fmt.Errorf("%w: rounding strategy %q", ErrInvalid, c.Rounding)
	case c.GracePeriodMinutes < 0:
		return fmt.Errorf("%w: grace period must be >= 0", ErrInvalid)
	}
	if c.DailyMaxRate != nil {
		if !c.DailyMaxRate.SameCurrency(c.HourlyRate) {
			return fmt.Errorf("%w: daily max currency %q differs from hourly %q",
				ErrInvalid, c.DailyMaxRate.Currency, c.HourlyRate.Currency)
		}
		if c.DailyMaxRate.Cmp(c.HourlyRate) < 0 {
			return fmt.Errorf("%w: daily max must be >= hourly rate", ErrInvalid)
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share a card with the store.
func (c *RateCard) Clone() *RateCard {
	if c == nil {
		return nil
	}
	out := *c
	if c.DailyMaxRate != nil {
		m := *c.DailyMaxRate
		out.DailyMaxRate = &m
	}
	return &out
}
