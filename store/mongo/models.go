package mongo

import (
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/xraph/parklot/fee"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// ==================== Spot models ====================

type spotModel struct {
	ID        string    `bson:"_id"`
	Floor     int       `bson:"floor"`
	Number    int       `bson:"spot_number"`
	Type      string    `bson:"spot_type"`
	Status    string    `bson:"status"`
	Occupant  string    `bson:"occupant"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toSpotModel(s *spot.Spot) *spotModel {
	return &spotModel{
		ID:        s.ID.String(),
		Floor:     s.Floor,
		Number:    s.Number,
		Type:      string(s.Type),
		Status:    string(s.Status),
		Occupant:  s.Occupant,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func fromSpotModel(m *spotModel) (*spot.Spot, error) {
	spotID, err := id.ParseSpotID(m.ID)
	if err != nil {
		return nil, err
	}
	return &spot.Spot{
		Stamp:    types.Stamp{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:       spotID,
		Floor:    m.Floor,
		Number:   m.Number,
		Type:     vehicle.Type(m.Type),
		Status:   spot.Status(m.Status),
		Occupant: m.Occupant,
	}, nil
}

// ==================== Transaction models ====================

type moneyModel struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoneyModel(m *types.Money) *moneyModel {
	if m == nil {
		return nil
	}
	return &moneyModel{Amount: m.Amount, Currency: m.Currency}
}

func (m *moneyModel) money() *types.Money {
	if m == nil {
		return nil
	}
	return &types.Money{Amount: m.Amount, Currency: m.Currency}
}

type breakdownModel struct {
	VehicleType        string      `bson:"vehicle_type"`
	EntryTime          time.Time   `bson:"entry_time"`
	ExitTime           time.Time   `bson:"exit_time"`
	DurationMinutes    int64       `bson:"duration_minutes"`
	GracePeriodMinutes int64       `bson:"grace_period_minutes"`
	GraceApplied       bool        `bson:"grace_applied"`
	AdjustedMinutes    int64       `bson:"adjusted_minutes"`
	HourlyUnits        int64       `bson:"hourly_units"`
	Rounding           string      `bson:"rounding_strategy"`
	HourlyRate         moneyModel  `bson:"hourly_rate"`
	BaseFee            moneyModel  `bson:"base_fee"`
	DailyMaxRate       *moneyModel `bson:"daily_max_rate,omitempty"`
	DailyCapApplied    bool        `bson:"daily_cap_applied"`
	FinalFee           moneyModel  `bson:"final_fee"`
}

func toBreakdownModel(b *fee.Breakdown) *breakdownModel {
	if b == nil {
		return nil
	}
	return &breakdownModel{
		VehicleType:        string(b.VehicleType),
		EntryTime:          b.EntryTime.UTC(),
		ExitTime:           b.ExitTime.UTC(),
		DurationMinutes:    b.DurationMinutes,
		GracePeriodMinutes: b.GracePeriodMinutes,
		GraceApplied:       b.GraceApplied,
		AdjustedMinutes:    b.AdjustedMinutes,
		HourlyUnits:        b.HourlyUnits,
		Rounding:           string(b.Rounding),
		HourlyRate:         *toMoneyModel(&b.HourlyRate),
		BaseFee:            *toMoneyModel(&b.BaseFee),
		DailyMaxRate:       toMoneyModel(b.DailyMaxRate),
		DailyCapApplied:    b.DailyCapApplied,
		FinalFee:           *toMoneyModel(&b.FinalFee),
	}
}

func (m *breakdownModel) breakdown() *fee.Breakdown {
	if m == nil {
		return nil
	}
	return &fee.Breakdown{
		VehicleType:        vehicle.Type(m.VehicleType),
		EntryTime:          m.EntryTime.UTC(),
		ExitTime:           m.ExitTime.UTC(),
		DurationMinutes:    m.DurationMinutes,
		GracePeriodMinutes: m.GracePeriodMinutes,
		GraceApplied:       m.GraceApplied,
		AdjustedMinutes:    m.AdjustedMinutes,
		HourlyUnits:        m.HourlyUnits,
		Rounding:           ratecard.Rounding(m.Rounding),
		HourlyRate:         *m.HourlyRate.money(),
		BaseFee:            *m.BaseFee.money(),
		DailyMaxRate:       m.DailyMaxRate.money(),
		DailyCapApplied:    m.DailyCapApplied,
		FinalFee:           *m.FinalFee.money(),
	}
}

// transactionModel carries an explicit open flag so partial unique indexes
// can enforce one OPEN transaction per plate and per spot.
type transactionModel struct {
	ID              string          `bson:"_id"`
	LicensePlate    string          `bson:"license_plate"`
	VehicleType     string          `bson:"vehicle_type"`
	SpotID          string          `bson:"spot_id"`
	Floor           int             `bson:"floor"`
	SpotNumber      int             `bson:"spot_number"`
	SpotType        string          `bson:"spot_type"`
	EntryTime       time.Time       `bson:"entry_time"`
	ExitTime        *time.Time      `bson:"exit_time,omitempty"`
	DurationMinutes *int64          `bson:"duration_minutes,omitempty"`
	ParkingFee      *moneyModel     `bson:"parking_fee,omitempty"`
	Fee             *breakdownModel `bson:"fee_breakdown,omitempty"`
	PaymentStatus   string          `bson:"payment_status,omitempty"`
	Open            bool            `bson:"open"`
	CreatedAt       time.Time       `bson:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	m := &transactionModel{
		ID:            t.ID.String(),
		LicensePlate:  t.LicensePlate,
		VehicleType:   string(t.VehicleType),
		SpotID:        t.SpotID.String(),
		Floor:         t.Floor,
		SpotNumber:    t.SpotNumber,
		SpotType:      string(t.SpotType),
		EntryTime:     t.EntryTime.UTC(),
		ParkingFee:    toMoneyModel(t.ParkingFee),
		Fee:           toBreakdownModel(t.Fee),
		PaymentStatus: string(t.PaymentStatus),
		Open:          t.IsOpen(),
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
	}
	if t.ExitTime.Valid {
		exit := t.ExitTime.Time.UTC()
		m.ExitTime = &exit
	}
	if t.DurationMinutes.Valid {
		d := t.DurationMinutes.Int64
		m.DurationMinutes = &d
	}
	return m
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	spotID, err := id.ParseSpotID(m.SpotID)
	if err != nil {
		return nil, err
	}
	t := &transaction.Transaction{
		Stamp:         types.Stamp{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:            txnID,
		LicensePlate:  m.LicensePlate,
		VehicleType:   vehicle.Type(m.VehicleType),
		SpotID:        spotID,
		Floor:         m.Floor,
		SpotNumber:    m.SpotNumber,
		SpotType:      vehicle.Type(m.SpotType),
		EntryTime:     m.EntryTime.UTC(),
		ParkingFee:    m.ParkingFee.money(),
		Fee:           m.Fee.breakdown(),
		PaymentStatus: transaction.PaymentStatus(m.PaymentStatus),
	}
	if m.ExitTime != nil {
		t.ExitTime = null.TimeFrom(m.ExitTime.UTC())
	}
	if m.DurationMinutes != nil {
		t.DurationMinutes = null.IntFrom(*m.DurationMinutes)
	}
	return t, nil
}

// ==================== Rate card models ====================

type rateCardModel struct {
	VehicleType        string      `bson:"_id"`
	ID                 string      `bson:"card_id"`
	HourlyRate         moneyModel  `bson:"hourly_rate"`
	DailyMaxRate       *moneyModel `bson:"daily_max_rate,omitempty"`
	Rounding           string      `bson:"rounding_strategy"`
	GracePeriodMinutes int64       `bson:"grace_period_minutes"`
	CreatedAt          time.Time   `bson:"created_at"`
	UpdatedAt          time.Time   `bson:"updated_at"`
}

func toRateCardModel(c *ratecard.RateCard) *rateCardModel {
	return &rateCardModel{
		VehicleType:        string(c.VehicleType),
		ID:                 c.ID.String(),
		HourlyRate:         *toMoneyModel(&c.HourlyRate),
		DailyMaxRate:       toMoneyModel(c.DailyMaxRate),
		Rounding:           string(c.Rounding),
		GracePeriodMinutes: c.GracePeriodMinutes,
		CreatedAt:          c.CreatedAt.UTC(),
		UpdatedAt:          c.UpdatedAt.UTC(),
	}
}

func fromRateCardModel(m *rateCardModel) (*ratecard.RateCard, error) {
	c := &ratecard.RateCard{
		Stamp:              types.Stamp{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		VehicleType:        vehicle.Type(m.VehicleType),
		HourlyRate:         *m.HourlyRate.money(),
		DailyMaxRate:       m.DailyMaxRate.money(),
		Rounding:           ratecard.Rounding(m.Rounding),
		GracePeriodMinutes: m.GracePeriodMinutes,
	}
	if m.ID != "" {
		cardID, err := id.ParseRateCardID(m.ID)
		if err != nil {
			return nil, err
		}
		c.ID = cardID
	}
	return c, nil
}
