package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// EntryRequest is the body of POST /entry.
type EntryRequest struct {
	LicensePlate string `json:"license_plate" binding:"required,max=32"`
	VehicleType  string `json:"vehicle_type" binding:"required"`
}

// ExitRequest is the body of POST /exit.
type ExitRequest struct {
	LicensePlate string `json:"license_plate" binding:"required,max=32"`
}

// EstimateRequest is the body of POST /estimate. A missing exit time means now.
type EstimateRequest struct {
	VehicleType string     `json:"vehicle_type" binding:"required"`
	EntryTime   time.Time  `json:"entry_time" binding:"required"`
	ExitTime    *time.Time `json:"exit_time"`
}

// RateCardRequest is the body of PUT /rate-cards/:type. Amounts are decimal
// strings in major units of the lot currency, such as "5.00".
type RateCardRequest struct {
	HourlyRate         string  `json:"hourly_rate" binding:"required"`
	DailyMaxRate       *string `json:"daily_max_rate"`
	Rounding           string  `json:"rounding_strategy" binding:"required"`
	GracePeriodMinutes int64   `json:"grace_period_minutes" binding:"min=0"`
}

// toRateCard builds the card for vt in currency.
func (r RateCardRequest) toRateCard(vt vehicle.Type, currency string) (*ratecard.RateCard, error) {
	hourly, err := types.ParseMoney(r.HourlyRate, currency)
	if err != nil {
		return nil, fmt.Errorf("hourly_rate: %w", err)
	}
	card := &ratecard.RateCard{
		VehicleType:        vt,
		HourlyRate:         hourly,
		Rounding:           ratecard.Rounding(strings.ToUpper(strings.TrimSpace(r.Rounding))),
		GracePeriodMinutes: r.GracePeriodMinutes,
	}
	if r.DailyMaxRate != nil && strings.TrimSpace(*r.DailyMaxRate) != "" {
		daily, err := types.ParseMoney(*r.DailyMaxRate, currency)
		if err != nil {
			return nil, fmt.Errorf("daily_max_rate: %w", err)
		}
		card.DailyMaxRate = &daily
	}
	return card, nil
}

// SpotRequest is the body of POST /spots.
type SpotRequest struct {
	Floor    int    `json:"floor" binding:"required,min=1"`
	Number   int    `json:"spot_number" binding:"required,min=1"`
	SpotType string `json:"spot_type" binding:"required"`
}

// spotQuery filters GET /spots and GET /availability.
type spotQuery struct {
	SpotType    string `form:"spot_type"`
	VehicleType string `form:"vehicle_type"`
	Floor       *int   `form:"floor" binding:"omitempty,min=1"`
	Status      string `form:"status"`
	Limit       int    `form:"limit" binding:"omitempty,min=0,max=1000"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

func (q spotQuery) filter() (spot.Filter, error) {
	f := spot.Filter{Floor: q.Floor}
	if q.SpotType != "" {
		t, err := vehicle.ParseType(q.SpotType)
		if err != nil {
			return f, err
		}
		f.Type = &t
	}
	if q.Status != "" {
		st := spot.Status(strings.ToUpper(q.Status))
		if !st.Valid() {
			return f, fmt.Errorf("%w: status %q", parklot.ErrInvalidInput, q.Status)
		}
		f.Status = &st
	}
	return f, nil
}

// historyQuery pages GET /vehicles/:plate/history.
type historyQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=0,max=500"`
}
