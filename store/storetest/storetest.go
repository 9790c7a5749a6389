// Package storetest is a conformance suite every store.Store backend must
// pass. Backends call Run from their own tests with a factory that returns
// an empty, migrated store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/allocation"
	"github.com/xraph/parklot/fee"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// Factory returns a fresh, migrated store. Run closes it.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Spots", testSpots},
		{"ClaimAndRelease", testClaimAndRelease},
		{"ClaimEligibility", testClaimEligibility},
		{"TransactionLifecycle", testTransactionLifecycle},
		{"RollbackOnError", testRollbackOnError},
		{"RollbackOnCancel", testRollbackOnCancel},
		{"MaintenanceTransitions", testMaintenanceTransitions},
		{"RateCards", testRateCards},
		{"ConcurrentClaims", testConcurrentClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var epoch = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func newSpot(floor, number int, typ vehicle.Type) *spot.Spot {
	return &spot.Spot{
		Stamp:  types.StampAt(epoch),
		ID:     id.NewSpotID(),
		Floor:  floor,
		Number: number,
		Type:   typ,
		Status: spot.StatusAvailable,
	}
}

func mustCreate(t *testing.T, s store.Store, spots ...*spot.Spot) {
	t.Helper()
	for _, sp := range spots {
		if err := s.CreateSpot(context.Background(), sp); err != nil {
			t.Fatalf("CreateSpot %s: %v", sp.Label(), err)
		}
	}
}

func car(plate string) vehicle.Vehicle { return vehicle.Vehicle{LicensePlate: plate, Type: vehicle.Car} }

func openTxn(v vehicle.Vehicle, sp *spot.Spot, at time.Time) *transaction.Transaction {
	return &transaction.Transaction{
		Stamp:        types.StampAt(at),
		ID:           id.NewTransactionID(),
		LicensePlate: v.LicensePlate,
		VehicleType:  v.Type,
		SpotID:       sp.ID,
		Floor:        sp.Floor,
		SpotNumber:   sp.Number,
		SpotType:     sp.Type,
		EntryTime:    at,
	}
}

// enter claims a spot and opens a transaction in one section.
func enter(ctx context.Context, s store.Store, v vehicle.Vehicle, at time.Time) (*transaction.Transaction, error) {
	var txn *transaction.Transaction
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockVehicle(ctx, v.LicensePlate); err != nil {
			return err
		}
		sp, err := tx.ClaimSpot(ctx, v, allocation.BestFit{}, at)
		if err != nil {
			return err
		}
		txn = openTxn(v, sp, at)
		return tx.OpenTransaction(ctx, txn)
	})
	return txn, err
}

func counts(t *testing.T, s store.Store) spot.Counts {
	t.Helper()
	a, err := s.Availability(context.Background(), spot.Filter{})
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	return a.Counts
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func testSpots(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b, c := newSpot(1, 2, vehicle.Car), newSpot(1, 1, vehicle.Motorcycle), newSpot(2, 1, vehicle.Bus)
	mustCreate(t, s, a, b, c)

	if err := s.CreateSpot(ctx, newSpot(1, 2, vehicle.Bus)); !errors.Is(err, parklot.ErrDuplicateSpot) {
		t.Errorf("duplicate position: expected ErrDuplicateSpot, got %v", err)
	}

	got, err := s.GetSpot(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Floor != 1 || got.Number != 2 || got.Type != vehicle.Car || got.Status != spot.StatusAvailable {
		t.Errorf("GetSpot = %+v", got)
	}
	if _, err := s.GetSpot(ctx, id.NewSpotID()); !errors.Is(err, parklot.ErrSpotNotFound) {
		t.Errorf("missing spot: expected ErrSpotNotFound, got %v", err)
	}

	all, err := s.ListSpots(ctx, spot.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Number != 1 || all[0].Floor != 1 || all[2].Floor != 2 {
		t.Errorf("ListSpots order: %v", labels(all))
	}

	floor := 1
	onFirst, err := s.ListSpots(ctx, spot.ListOpts{Filter: spot.Filter{Floor: &floor}, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(onFirst) != 1 || onFirst[0].ID.String() != a.ID.String() {
		t.Errorf("filtered page: %v", labels(onFirst))
	}

	want := spot.Counts{Available: 3, Total: 3}
	if got := counts(t, s); got != want {
		t.Errorf("counts = %+v, want %+v", got, want)
	}
}

func testClaimAndRelease(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := newSpot(1, 1, vehicle.Car), newSpot(1, 2, vehicle.Car)
	mustCreate(t, s, b, a)

	var claimed *spot.Spot
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		claimed, err = tx.ClaimSpot(ctx, car("AB1"), allocation.BestFit{}, epoch.Add(time.Hour))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if claimed.ID.String() != a.ID.String() || claimed.Status != spot.StatusOccupied || claimed.Occupant != "AB1" {
		t.Fatalf("claimed %+v", claimed)
	}
	if !claimed.UpdatedAt.Equal(epoch.Add(time.Hour)) {
		t.Errorf("claim stamped %v, want %v", claimed.UpdatedAt, epoch.Add(time.Hour))
	}
	if got := counts(t, s); got.Occupied != 1 || got.Available != 1 {
		t.Errorf("counts after claim = %+v", got)
	}

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		released, err := tx.ReleaseSpot(ctx, a.ID, epoch.Add(2*time.Hour))
		if err != nil {
			return err
		}
		if released.Status != spot.StatusAvailable || released.Occupant != "" {
			return fmt.Errorf("released %+v", released)
		}
		if !released.UpdatedAt.Equal(epoch.Add(2 * time.Hour)) {
			return fmt.Errorf("release stamped %v", released.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.ReleaseSpot(ctx, a.ID, epoch.Add(2*time.Hour))
		return err
	})
	if !errors.Is(err, parklot.ErrSpotNotOccupied) {
		t.Errorf("double release: expected ErrSpotNotOccupied, got %v", err)
	}

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		claimed, err = tx.ClaimSpot(ctx, car("AB2"), allocation.BestFit{}, epoch.Add(3*time.Hour))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if claimed.ID.String() != a.ID.String() {
		t.Errorf("released spot not re-selected: got %s", claimed.Label())
	}
}

func testClaimEligibility(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s,
		newSpot(1, 1, vehicle.Motorcycle),
		newSpot(1, 2, vehicle.Car),
	)

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.ClaimSpot(ctx, vehicle.Vehicle{LicensePlate: "BUS1", Type: vehicle.Bus}, allocation.BestFit{}, epoch)
		return err
	})
	if !errors.Is(err, parklot.ErrNoSpotAvailable) {
		t.Fatalf("bus with no bus spot: expected ErrNoSpotAvailable, got %v", err)
	}

	var got *spot.Spot
	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		got, err = tx.ClaimSpot(ctx, vehicle.Vehicle{LicensePlate: "MOTO1", Type: vehicle.Motorcycle}, allocation.BestFit{}, epoch)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != vehicle.Motorcycle {
		t.Errorf("motorcycle got %s spot, want the smallest fit", got.Type)
	}
}

func testTransactionLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, newSpot(1, 1, vehicle.Car), newSpot(1, 2, vehicle.Car))

	if txn, err := s.FindActiveTransaction(ctx, "AB1"); err != nil || txn != nil {
		t.Fatalf("FindActive before entry = %v, %v", txn, err)
	}
	if txn, err := s.LatestTransaction(ctx, "AB1"); err != nil || txn != nil {
		t.Fatalf("Latest before entry = %v, %v", txn, err)
	}

	opened, err := enter(ctx, s, car("AB1"), epoch)
	if err != nil {
		t.Fatal(err)
	}

	_, err = enter(ctx, s, car("AB1"), epoch.Add(time.Minute))
	if !errors.Is(err, parklot.ErrVehicleAlreadyParked) {
		t.Fatalf("second open: expected ErrVehicleAlreadyParked, got %v", err)
	}
	if got := counts(t, s); got.Occupied != 1 {
		t.Errorf("rejected open left %d spots occupied", got.Occupied)
	}

	active, err := s.FindActiveTransaction(ctx, "AB1")
	if err != nil || active == nil {
		t.Fatalf("FindActive = %v, %v", active, err)
	}
	if active.ID.String() != opened.ID.String() || !active.EntryTime.Equal(epoch) {
		t.Errorf("active = %+v", active)
	}

	stale, err := s.ListOpenTransactions(ctx, epoch.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 {
		t.Errorf("ListOpenTransactions = %d, want 1", len(stale))
	}

	card := &ratecard.RateCard{VehicleType: vehicle.Car, HourlyRate: types.USD(800), Rounding: ratecard.RoundingCeiling}
	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.ActiveTransaction(ctx, "AB1")
		if err != nil {
			return err
		}
		bySpot, err := tx.OpenTransactionForSpot(ctx, cur.SpotID)
		if err != nil {
			return err
		}
		if bySpot == nil || bySpot.ID.String() != cur.ID.String() {
			return fmt.Errorf("OpenTransactionForSpot = %v", bySpot)
		}
		b, err := fee.Compute(cur.VehicleType, cur.EntryTime, epoch.Add(95*time.Minute), card)
		if err != nil {
			return err
		}
		if err := cur.Close(b); err != nil {
			return err
		}
		if err := tx.CloseTransaction(ctx, cur); err != nil {
			return err
		}
		_, err = tx.ReleaseSpot(ctx, cur.SpotID, epoch.Add(95*time.Minute))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if txn, err := s.FindActiveTransaction(ctx, "AB1"); err != nil || txn != nil {
		t.Errorf("FindActive after exit = %v, %v", txn, err)
	}
	closed, err := s.GetTransaction(ctx, opened.ID)
	if err != nil {
		t.Fatal(err)
	}
	if closed.State() != transaction.StateClosed || closed.DurationMinutes.Int64 != 95 {
		t.Errorf("closed = %+v", closed)
	}
	if closed.ParkingFee == nil || !closed.ParkingFee.Equal(types.USD(1600)) {
		t.Errorf("fee = %v, want $16.00", closed.ParkingFee)
	}
	if closed.PaymentStatus != transaction.PaymentPending {
		t.Errorf("payment status = %s", closed.PaymentStatus)
	}
	if closed.Fee == nil || closed.Fee.HourlyUnits != 2 {
		t.Errorf("breakdown not persisted: %+v", closed.Fee)
	}

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CloseTransaction(ctx, closed)
	})
	if !errors.Is(err, parklot.ErrAlreadyExited) {
		t.Errorf("closing twice: expected ErrAlreadyExited, got %v", err)
	}

	latest, err := s.LatestTransaction(ctx, "AB1")
	if err != nil || latest == nil || latest.ID.String() != opened.ID.String() {
		t.Errorf("Latest = %v, %v", latest, err)
	}

	if _, err := enter(ctx, s, car("AB1"), epoch.Add(3*time.Hour)); err != nil {
		t.Fatalf("re-entry after exit: %v", err)
	}
	hist, err := s.ListTransactions(ctx, transaction.ListOpts{LicensePlate: "AB1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].State() != transaction.StateOpen || hist[1].State() != transaction.StateClosed {
		t.Errorf("history newest first: %+v", hist)
	}
	open, err := s.ListTransactions(ctx, transaction.ListOpts{State: transaction.StateOpen})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Errorf("open transactions = %d, want 1", len(open))
	}

	if _, err := s.GetTransaction(ctx, id.NewTransactionID()); !errors.Is(err, parklot.ErrTransactionNotFound) {
		t.Errorf("missing transaction: expected ErrTransactionNotFound, got %v", err)
	}
}

func testRollbackOnError(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, newSpot(1, 1, vehicle.Car))
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		sp, err := tx.ClaimSpot(ctx, car("AB1"), allocation.BestFit{}, epoch)
		if err != nil {
			return err
		}
		if err := tx.OpenTransaction(ctx, openTxn(car("AB1"), sp, epoch)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the section's own error, got %v", err)
	}

	assertUntouched(t, s, "AB1")
}

func testRollbackOnCancel(t *testing.T, s store.Store) {
	mustCreate(t, s, newSpot(1, 1, vehicle.Car))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		sp, err := tx.ClaimSpot(ctx, car("AB1"), allocation.BestFit{}, epoch)
		if err != nil {
			return err
		}
		if err := tx.OpenTransaction(ctx, openTxn(car("AB1"), sp, epoch)); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if err == nil {
		t.Fatal("section abandoned before commit reported success")
	}

	assertUntouched(t, s, "AB1")
}

func assertUntouched(t *testing.T, s store.Store, plate string) {
	t.Helper()
	ctx := context.Background()
	if got := counts(t, s); got.Occupied != 0 || got.Available != 1 {
		t.Errorf("counts after rollback = %+v", got)
	}
	spots, err := s.ListSpots(ctx, spot.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if spots[0].Status != spot.StatusAvailable || spots[0].Occupant != "" {
		t.Errorf("spot after rollback = %s occupant %q", spots[0].Status, spots[0].Occupant)
	}
	if txn, err := s.FindActiveTransaction(ctx, plate); err != nil || txn != nil {
		t.Errorf("transaction after rollback = %v, %v", txn, err)
	}
}

func testMaintenanceTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	sp := newSpot(1, 1, vehicle.Car)
	mustCreate(t, s, sp)

	set := func(from, to spot.Status) error {
		return s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := tx.SetSpotStatus(ctx, sp.ID, from, to, epoch.Add(time.Hour))
			return err
		})
	}

	if err := set(spot.StatusMaintenance, spot.StatusAvailable); !errors.Is(err, parklot.ErrSpotNotInMaintenance) {
		t.Errorf("clear on available: got %v", err)
	}
	if err := set(spot.StatusAvailable, spot.StatusOccupied); !errors.Is(err, parklot.ErrInvalidSpot) {
		t.Errorf("non-administrative transition: got %v", err)
	}
	if err := set(spot.StatusAvailable, spot.StatusMaintenance); err != nil {
		t.Fatal(err)
	}
	if got := counts(t, s); got.Maintenance != 1 || got.Available != 0 {
		t.Errorf("counts = %+v", got)
	}

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.ClaimSpot(ctx, car("AB1"), allocation.BestFit{}, epoch.Add(time.Hour))
		return err
	})
	if !errors.Is(err, parklot.ErrNoSpotAvailable) {
		t.Errorf("claimed a spot under maintenance: %v", err)
	}

	if err := set(spot.StatusAvailable, spot.StatusMaintenance); !errors.Is(err, parklot.ErrSpotNotAvailable) {
		t.Errorf("mark twice: got %v", err)
	}
	if err := set(spot.StatusMaintenance, spot.StatusAvailable); err != nil {
		t.Fatal(err)
	}

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.SetSpotStatus(ctx, id.NewSpotID(), spot.StatusAvailable, spot.StatusMaintenance, epoch)
		return err
	})
	if !errors.Is(err, parklot.ErrSpotNotFound) {
		t.Errorf("missing spot: got %v", err)
	}
}

func testRateCards(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetRateCard(ctx, vehicle.Car); !errors.Is(err, parklot.ErrRateCardNotFound) {
		t.Fatalf("empty store: expected ErrRateCardNotFound, got %v", err)
	}

	daily := types.USD(5000)
	card := &ratecard.RateCard{
		Stamp:              types.StampAt(epoch),
		ID:                 id.NewRateCardID(),
		VehicleType:        vehicle.Car,
		HourlyRate:         types.USD(800),
		DailyMaxRate:       &daily,
		Rounding:           ratecard.RoundingRound,
		GracePeriodMinutes: 15,
	}
	if err := s.PutRateCard(ctx, card); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRateCard(ctx, vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HourlyRate.Equal(card.HourlyRate) || got.DailyMaxRate == nil || !got.DailyMaxRate.Equal(daily) ||
		got.Rounding != ratecard.RoundingRound || got.GracePeriodMinutes != 15 {
		t.Errorf("GetRateCard = %+v", got)
	}

	got.HourlyRate = types.USD(1)
	again, err := s.GetRateCard(ctx, vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}
	if !again.HourlyRate.Equal(types.USD(800)) {
		t.Error("mutating a returned card changed the stored card")
	}

	replacement := card.Clone()
	replacement.HourlyRate = types.USD(900)
	replacement.DailyMaxRate = nil
	if err := s.PutRateCard(ctx, replacement); err != nil {
		t.Fatal(err)
	}
	bus := &ratecard.RateCard{ID: id.NewRateCardID(), VehicleType: vehicle.Bus, HourlyRate: types.USD(2000), Rounding: ratecard.RoundingCeiling}
	if err := s.PutRateCard(ctx, bus); err != nil {
		t.Fatal(err)
	}

	cards, err := s.ListRateCards(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 || cards[0].VehicleType != vehicle.Car || cards[1].VehicleType != vehicle.Bus {
		t.Fatalf("ListRateCards = %+v", cards)
	}
	if !cards[0].HourlyRate.Equal(types.USD(900)) || cards[0].DailyMaxRate != nil {
		t.Errorf("replacement not stored: %+v", cards[0])
	}

	if err := s.DeleteRateCard(ctx, vehicle.Bus); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRateCard(ctx, vehicle.Bus); !errors.Is(err, parklot.ErrRateCardNotFound) {
		t.Errorf("delete twice: got %v", err)
	}
}

func testConcurrentClaims(t *testing.T, s store.Store) {
	const (
		m = 4
		n = 24
	)
	ctx := context.Background()
	for i := range m {
		mustCreate(t, s, newSpot(1, i+1, vehicle.Car))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		owners   = make(map[string]string)
		exhausts int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plate := fmt.Sprintf("C%02d", i)
			txn, err := enter(ctx, s, car(plate), epoch)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if prev, dup := owners[txn.SpotID.String()]; dup {
					t.Errorf("spot %s claimed by %s and %s", txn.SpotID, prev, plate)
				}
				owners[txn.SpotID.String()] = plate
			case errors.Is(err, parklot.ErrNoSpotAvailable):
				exhausts++
			case parklot.IsRetryable(err):
				// Contention on a busy backend is a legal outcome.
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(owners) != m {
		t.Errorf("%d spots claimed, want %d", len(owners), m)
	}
	if len(owners)+exhausts > n {
		t.Errorf("outcomes exceed callers: %d + %d", len(owners), exhausts)
	}
	if got := counts(t, s); got.Occupied != m || got.Available != 0 {
		t.Errorf("counts = %+v", got)
	}
}

func labels(spots []*spot.Spot) []string {
	out := make([]string, len(spots))
	for i, sp := range spots {
		out[i] = sp.Label()
	}
	return out
}
