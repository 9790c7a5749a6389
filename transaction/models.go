// Package transaction models parking sessions: one OPEN record per vehicle
// while it is parked, closed exactly once on exit.
package transaction

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/xraph/parklot/fee"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// ErrAlreadyClosed is returned when closing a CLOSED transaction.
var ErrAlreadyClosed = errors.New("transaction: already closed")

type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Transaction is a parking session. The spot reference is fixed at open
// time. ExitTime, DurationMinutes and ParkingFee are null while OPEN and are
// set together by Close.
type Transaction struct {
	types.Stamp
	ID              id.TransactionID `json:"id"`
	LicensePlate    string           `json:"license_plate"`
	VehicleType     vehicle.Type     `json:"vehicle_type"`
	SpotID          id.SpotID        `json:"spot_id"`
	Floor           int              `json:"floor"`
	SpotNumber      int              `json:"spot_number"`
	SpotType        vehicle.Type     `json:"spot_type"`
	EntryTime       time.Time        `json:"entry_time"`
	ExitTime        null.Time        `json:"exit_time"`
	DurationMinutes null.Int         `json:"duration_minutes"`
	ParkingFee      *types.Money     `json:"parking_fee"`
	Fee             *fee.Breakdown   `json:"fee_breakdown,omitempty"`
	PaymentStatus   PaymentStatus    `json:"payment_status,omitempty"`
}

// State derives the lifecycle state from ExitTime.
func (t *Transaction) State() State {
	if t.ExitTime.Valid {
		return StateClosed
	}
	return StateOpen
}

// IsOpen reports whether the transaction has not been closed.
func (t *Transaction) IsOpen() bool { return !t.ExitTime.Valid }

// Close records the exit and its fee. It may succeed only once.
func (t *Transaction) Close(b *fee.Breakdown) error {
	if !t.IsOpen() {
		return fmt.Errorf("%w: %s", ErrAlreadyClosed, t.ID)
	}
	if b == nil || !b.ExitTime.After(t.EntryTime) {
		return fee.ErrInvalidInterval
	}
	final := b.FinalFee
	t.ExitTime = null.TimeFrom(b.ExitTime.UTC())
	t.DurationMinutes = null.IntFrom(b.DurationMinutes)
	t.ParkingFee = &final
	t.Fee = b
	t.PaymentStatus = PaymentPending
	t.Touch(b.ExitTime)
	return nil
}

// Clone returns a copy that shares no mutable state with t.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	out := *t
	if t.ParkingFee != nil {
		m := *t.ParkingFee
		out.ParkingFee = &m
	}
	if t.Fee != nil {
		b := *t.Fee
		if t.Fee.DailyMaxRate != nil {
			m := *t.Fee.DailyMaxRate
			b.DailyMaxRate = &m
		}
		out.Fee = &b
	}
	return &out
}
