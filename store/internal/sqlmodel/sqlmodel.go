// Package sqlmodel holds the row shapes shared by the SQL backends and the
// conversions between rows and domain records.
package sqlmodel

import (
	"encoding/json"
	"fmt"
	"strings"
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

// Table names.
const (
	SpotsTable        = "parklot_spots"
	TransactionsTable = "parklot_transactions"
	RateCardsTable    = "parklot_rate_cards"
	MigrationsTable   = "parklot_migrations"
)

// Constraint names the backends translate into domain conflicts.
const (
	SpotPositionIndex  = "idx_parklot_spots_position"
	OpenPlateIndex     = "idx_parklot_txn_open_plate"
	OpenSpotIndex      = "idx_parklot_txn_open_spot"
	TransactionPKIndex = "parklot_transactions_pkey"
)

// ==================== Spots ====================

// SpotColumns lists the spot columns in SpotRow.Dest order.
var SpotColumns = []string{
	"id", "floor", "spot_number", "spot_type", "status", "occupant", "created_at", "updated_at",
}

// SpotSelect is SpotColumns joined for a SELECT list.
var SpotSelect = strings.Join(SpotColumns, ", ")

type SpotRow struct {
	ID        string
	Floor     int
	Number    int
	Type      string
	Status    string
	Occupant  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dest returns scan destinations in SpotColumns order.
func (r *SpotRow) Dest() []any {
	return []any{&r.ID, &r.Floor, &r.Number, &r.Type, &r.Status, &r.Occupant, &r.CreatedAt, &r.UpdatedAt}
}

// Args returns insert arguments in SpotColumns order.
func (r *SpotRow) Args() []any {
	return []any{r.ID, r.Floor, r.Number, r.Type, r.Status, r.Occupant, r.CreatedAt, r.UpdatedAt}
}

func ToSpotRow(s *spot.Spot) *SpotRow {
	return &SpotRow{
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

func FromSpotRow(r *SpotRow) (*spot.Spot, error) {
	spotID, err := id.ParseSpotID(r.ID)
	if err != nil {
		return nil, err
	}
	return &spot.Spot{
		Stamp:    types.Stamp{CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()},
		ID:       spotID,
		Floor:    r.Floor,
		Number:   r.Number,
		Type:     vehicle.Type(r.Type),
		Status:   spot.Status(r.Status),
		Occupant: r.Occupant,
	}, nil
}

// ==================== Transactions ====================

// TransactionColumns lists the transaction columns in TransactionRow.Dest order.
var TransactionColumns = []string{
	"id", "license_plate", "vehicle_type", "spot_id", "floor", "spot_number", "spot_type",
	"entry_time", "exit_time", "duration_minutes", "fee_amount", "fee_currency", "fee_breakdown",
	"payment_status", "created_at", "updated_at",
}

// TransactionSelect is TransactionColumns joined for a SELECT list.
var TransactionSelect = strings.Join(TransactionColumns, ", ")

type TransactionRow struct {
	ID              string
	LicensePlate    string
	VehicleType     string
	SpotID          string
	Floor           int
	SpotNumber      int
	SpotType        string
	EntryTime       time.Time
	ExitTime        null.Time
	DurationMinutes null.Int
	FeeAmount       null.Int
	FeeCurrency     null.String
	FeeBreakdown    null.String
	PaymentStatus   null.String
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Dest returns scan destinations in TransactionColumns order.
func (r *TransactionRow) Dest() []any {
	return []any{
		&r.ID, &r.LicensePlate, &r.VehicleType, &r.SpotID, &r.Floor, &r.SpotNumber, &r.SpotType,
		&r.EntryTime, &r.ExitTime, &r.DurationMinutes, &r.FeeAmount, &r.FeeCurrency, &r.FeeBreakdown,
		&r.PaymentStatus, &r.CreatedAt, &r.UpdatedAt,
	}
}

// Args returns insert arguments in TransactionColumns order.
func (r *TransactionRow) Args() []any {
	return []any{
		r.ID, r.LicensePlate, r.VehicleType, r.SpotID, r.Floor, r.SpotNumber, r.SpotType,
		r.EntryTime, r.ExitTime, r.DurationMinutes, r.FeeAmount, r.FeeCurrency, r.FeeBreakdown,
		r.PaymentStatus, r.CreatedAt, r.UpdatedAt,
	}
}

func ToTransactionRow(t *transaction.Transaction) (*TransactionRow, error) {
	r := &TransactionRow{
		ID:              t.ID.String(),
		LicensePlate:    t.LicensePlate,
		VehicleType:     string(t.VehicleType),
		SpotID:          t.SpotID.String(),
		Floor:           t.Floor,
		SpotNumber:      t.SpotNumber,
		SpotType:        string(t.SpotType),
		EntryTime:       t.EntryTime.UTC(),
		ExitTime:        t.ExitTime,
		DurationMinutes: t.DurationMinutes,
		CreatedAt:       t.CreatedAt.UTC(),
		UpdatedAt:       t.UpdatedAt.UTC(),
	}
	if r.ExitTime.Valid {
		r.ExitTime = null.TimeFrom(r.ExitTime.Time.UTC())
	}
	if t.ParkingFee != nil {
		r.FeeAmount = null.IntFrom(t.ParkingFee.Amount)
		r.FeeCurrency = null.StringFrom(t.ParkingFee.Currency)
	}
	if t.Fee != nil {
		raw, err := json.Marshal(t.Fee)
		if err != nil {
			return nil, fmt.Errorf("encode fee breakdown: %w", err)
		}
		r.FeeBreakdown = null.StringFrom(string(raw))
	}
	if t.PaymentStatus != "" {
		r.PaymentStatus = null.StringFrom(string(t.PaymentStatus))
	}
	return r, nil
}

func FromTransactionRow(r *TransactionRow) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(r.ID)
	if err != nil {
		return nil, err
	}
	spotID, err := id.ParseSpotID(r.SpotID)
	if err != nil {
		return nil, err
	}
	t := &transaction.Transaction{
		Stamp:           types.Stamp{CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()},
		ID:              txnID,
		LicensePlate:    r.LicensePlate,
		VehicleType:     vehicle.Type(r.VehicleType),
		SpotID:          spotID,
		Floor:           r.Floor,
		SpotNumber:      r.SpotNumber,
		SpotType:        vehicle.Type(r.SpotType),
		EntryTime:       r.EntryTime.UTC(),
		DurationMinutes: r.DurationMinutes,
		PaymentStatus:   transaction.PaymentStatus(r.PaymentStatus.String),
	}
	if r.ExitTime.Valid {
		t.ExitTime = null.TimeFrom(r.ExitTime.Time.UTC())
	}
	if r.FeeAmount.Valid {
		t.ParkingFee = &types.Money{Amount: r.FeeAmount.Int64, Currency: r.FeeCurrency.String}
	}
	if r.FeeBreakdown.Valid && r.FeeBreakdown.String != "" {
		b := new(fee.Breakdown)
		if err := json.Unmarshal([]byte(r.FeeBreakdown.String), b); err != nil {
			return nil, fmt.Errorf("decode fee breakdown of %s: %w", r.ID, err)
		}
		t.Fee = b
	}
	return t, nil
}

// ==================== Rate cards ====================

// RateCardColumns lists the rate card columns in RateCardRow.Dest order.
var RateCardColumns = []string{
	"vehicle_type", "id", "currency", "hourly_rate", "daily_max_rate", "rounding",
	"grace_period_minutes", "created_at", "updated_at",
}

// RateCardSelect is RateCardColumns joined for a SELECT list.
var RateCardSelect = strings.Join(RateCardColumns, ", ")

type RateCardRow struct {
	VehicleType        string
	ID                 string
	Currency           string
	HourlyRate         int64
	DailyMaxRate       null.Int
	Rounding           string
	GracePeriodMinutes int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Dest returns scan destinations in RateCardColumns order.
func (r *RateCardRow) Dest() []any {
	return []any{
		&r.VehicleType, &r.ID, &r.Currency, &r.HourlyRate, &r.DailyMaxRate, &r.Rounding,
		&r.GracePeriodMinutes, &r.CreatedAt, &r.UpdatedAt,
	}
}

// Args returns insert arguments in RateCardColumns order.
func (r *RateCardRow) Args() []any {
	return []any{
		r.VehicleType, r.ID, r.Currency, r.HourlyRate, r.DailyMaxRate, r.Rounding,
		r.GracePeriodMinutes, r.CreatedAt, r.UpdatedAt,
	}
}

func ToRateCardRow(c *ratecard.RateCard) *RateCardRow {
	r := &RateCardRow{
		VehicleType:        string(c.VehicleType),
		ID:                 c.ID.String(),
		Currency:           c.HourlyRate.Currency,
		HourlyRate:         c.HourlyRate.Amount,
		Rounding:           string(c.Rounding),
		GracePeriodMinutes: c.GracePeriodMinutes,
		CreatedAt:          c.CreatedAt.UTC(),
		UpdatedAt:          c.UpdatedAt.UTC(),
	}
	if c.DailyMaxRate != nil {
		r.DailyMaxRate = null.IntFrom(c.DailyMaxRate.Amount)
	}
	return r
}

func FromRateCardRow(r *RateCardRow) (*ratecard.RateCard, error) {
	c := &ratecard.RateCard{
		Stamp:              types.Stamp{CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()},
		VehicleType:        vehicle.Type(r.VehicleType),
		HourlyRate:         types.Money{Amount: r.HourlyRate, Currency: r.Currency},
		Rounding:           ratecard.Rounding(r.Rounding),
		GracePeriodMinutes: r.GracePeriodMinutes,
	}
	if r.ID != "" {
		cardID, err := id.ParseRateCardID(r.ID)
		if err != nil {
			return nil, err
		}
		c.ID = cardID
	}
	if r.DailyMaxRate.Valid {
		c.DailyMaxRate = &types.Money{Amount: r.DailyMaxRate.Int64, Currency: r.Currency}
	}
	return c, nil
}

// ==================== Queries ====================

// EligibleTypes returns the spot types vt may occupy as strings, for use as
// query arguments.
func EligibleTypes(vt vehicle.Type) []string {
	ts := vt.EligibleSpotTypes()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

// Where accumulates AND-ed conditions and their arguments. Placeholders are
// produced by the backend's mark function.
type Where struct {
	mark  func(i int) string
	conds []string
	args  []any
}

// NewWhere starts an empty condition list.
func NewWhere(mark func(i int) string) *Where {
	return &Where{mark: mark}
}

// Add appends a condition in which every "?" is replaced by the next
// placeholder.
func (w *Where) Add(cond string, args ...any) *Where {
	var b strings.Builder
	n := 0
	for _, r := range cond {
		if r == '?' {
			b.WriteString(w.mark(len(w.args) + n + 1))
			n++
			continue
		}
		b.WriteRune(r)
	}
	w.conds = append(w.conds, b.String())
	w.args = append(w.args, args...)
	return w
}

// Spots adds the conditions for a spot filter.
func (w *Where) Spots(f spot.Filter) *Where {
	if f.Type != nil {
		w.Add("spot_type = ?", string(*f.Type))
	}
	if f.Floor != nil {
		w.Add("floor = ?", *f.Floor)
	}
	if f.Status != nil {
		w.Add("status = ?", string(*f.Status))
	}
	return w
}

// Transactions adds the conditions for a history query.
func (w *Where) Transactions(opts transaction.ListOpts) *Where {
	if opts.LicensePlate != "" {
		w.Add("license_plate = ?", opts.LicensePlate)
	}
	switch opts.State {
	case transaction.StateOpen:
		w.Add("exit_time IS NULL")
	case transaction.StateClosed:
		w.Add("exit_time IS NOT NULL")
	}
	return w
}

// SQL returns the clause including the WHERE keyword, or "" when empty.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Args returns the accumulated arguments.
func (w *Where) Args() []any { return w.args }

// Next returns the index the next placeholder would receive.
func (w *Where) Next() int { return len(w.args) + 1 }

// Paging renders LIMIT and OFFSET. A zero limit with an offset uses limit -1
// or ALL depending on the dialect's unbounded keyword.
func Paging(limit, offset int, unbounded string) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT %s OFFSET %d", unbounded, offset)
	}
	return ""
}

// Tally folds grouped counts into occupancy counters.
type Tally struct{ *spot.Tally }

// NewTally returns an empty Tally.
func NewTally() Tally { return Tally{spot.NewTally()} }

// Add records n spots at (floor, typ, status).
func (t Tally) Add(floor int, typ, status string, n int) {
	t.Count(floor, vehicle.Type(typ), spot.Status(status), n)
}
