package parklot_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store/memory"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// ──────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────

// fakeClock returns t and then moves it forward by step on every call.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type layout struct {
	floor, number int
	typ           vehicle.Type
}

var start = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newLot(t *testing.T, clock *fakeClock, spots []layout, opts ...parklot.Option) *parklot.Engine {
	t.Helper()
	base := []parklot.Option{
		parklot.WithClock(clock.Now),
		parklot.WithLogger(slog.New(slog.DiscardHandler)),
	}
	e := parklot.New(memory.New(), append(base, opts...)...)

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	daily := types.USD(5000)
	cards := []*ratecard.RateCard{
		{VehicleType: vehicle.Motorcycle, HourlyRate: types.USD(200), Rounding: ratecard.RoundingCeiling},
		{VehicleType: vehicle.Car, HourlyRate: types.USD(800), DailyMaxRate: &daily, Rounding: ratecard.RoundingCeiling, GracePeriodMinutes: 15},
		{VehicleType: vehicle.Bus, HourlyRate: types.USD(2000), Rounding: ratecard.RoundingCeiling},
	}
	for _, c := range cards {
		if err := e.SetRateCard(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	for _, l := range spots {
		if _, err := e.AddSpot(ctx, l.floor, l.number, l.typ); err != nil {
			t.Fatal(err)
		}
	}
	return e
}

func carSpots(n int) []layout {
	out := make([]layout, n)
	for i := range out {
		out[i] = layout{1, i + 1, vehicle.Car}
	}
	return out
}

// mixedLot has every spot type on two floors.
var mixedLot = []layout{
	{2, 1, vehicle.Motorcycle},
	{2, 2, vehicle.Car},
	{1, 7, vehicle.Bus},
	{1, 3, vehicle.Car},
	{1, 2, vehicle.Car},
	{1, 9, vehicle.Motorcycle},
}

// ──────────────────────────────────────────────────
// Entry and exit
// ──────────────────────────────────────────────────

func TestEntryExitFlow(t *testing.T) {
	clock := newFakeClock(start)
	e := newLot(t, clock, carSpots(2))
	ctx := context.Background()

	in, err := e.Entry(ctx, "ka-01 ab-1234", vehicle.Car)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if in.LicensePlate != "KA01AB1234" {
		t.Errorf("plate = %q, want normalised KA01AB1234", in.LicensePlate)
	}
	if in.Spot.Floor != 1 || in.Spot.Number != 1 {
		t.Errorf("spot = F%d-%d, want F1-1", in.Spot.Floor, in.Spot.Number)
	}
	if !in.EntryTime.Equal(start) {
		t.Errorf("entry time = %v, want %v", in.EntryTime, start)
	}

	active, err := e.FindActive(ctx, "KA01AB1234")
	if err != nil || active == nil {
		t.Fatalf("FindActive = %v, %v", active, err)
	}
	if active.ID.String() != in.TransactionID.String() {
		t.Errorf("active transaction = %s, want %s", active.ID, in.TransactionID)
	}

	clock.Advance(155 * time.Minute)
	out, err := e.Exit(ctx, "KA01AB1234")
	if err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if out.DurationMinutes != 155 {
		t.Errorf("duration = %d, want 155", out.DurationMinutes)
	}
	if !out.ParkingFee.Equal(types.USD(2400)) {
		t.Errorf("fee = %s, want $24.00", out.ParkingFee)
	}
	if out.PaymentStatus != transaction.PaymentPending {
		t.Errorf("payment status = %s, want PENDING", out.PaymentStatus)
	}
	if out.Fee.HourlyUnits != 3 || out.Fee.DailyCapApplied {
		t.Errorf("breakdown units = %d cap = %v", out.Fee.HourlyUnits, out.Fee.DailyCapApplied)
	}

	s, err := e.GetSpot(ctx, in.Spot.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != spot.StatusAvailable || s.Occupant != "" {
		t.Errorf("spot after exit = %s occupant %q", s.Status, s.Occupant)
	}

	hist, err := e.History(ctx, "KA01AB1234", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].State() != transaction.StateClosed {
		t.Fatalf("history = %+v", hist)
	}
}

func TestSpotStampsFollowEngineClock(t *testing.T) {
	clock := newFakeClock(start)
	e := newLot(t, clock, carSpots(1))
	ctx := context.Background()

	stamped := func(spotID id.SpotID, want time.Time) {
		t.Helper()
		s, err := e.GetSpot(ctx, spotID)
		if err != nil {
			t.Fatal(err)
		}
		if !s.UpdatedAt.Equal(want) {
			t.Errorf("spot %s updated_at = %v, want %v", s.Label(), s.UpdatedAt, want)
		}
	}

	clock.Advance(time.Hour)
	in, err := e.Entry(ctx, "AB123", vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}
	stamped(in.Spot.ID, start.Add(time.Hour))

	clock.Advance(time.Hour)
	if _, err := e.Exit(ctx, "AB123"); err != nil {
		t.Fatal(err)
	}
	stamped(in.Spot.ID, start.Add(2*time.Hour))

	clock.Advance(time.Hour)
	if _, err := e.MarkMaintenance(ctx, in.Spot.ID); err != nil {
		t.Fatal(err)
	}
	stamped(in.Spot.ID, start.Add(3*time.Hour))
}

func TestEntryRejectsInvalidInput(t *testing.T) {
	e := newLot(t, newFakeClock(start), carSpots(1))
	ctx := context.Background()

	tests := []struct {
		name  string
		plate string
		vt    vehicle.Type
		want  error
	}{
		{"unknown type", "AB123", "TRUCK", parklot.ErrInvalidVehicleType},
		{"lowercase type is not coerced", "AB123", "car", parklot.ErrInvalidVehicleType},
		{"empty plate", "  ", vehicle.Car, parklot.ErrInvalidPlate},
		{"punctuation", "AB#123", vehicle.Car, parklot.ErrInvalidPlate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Entry(ctx, tt.plate, tt.vt)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	a, err := e.Availability(ctx, spot.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Occupied != 0 {
		t.Errorf("rejected entries occupied %d spots", a.Occupied)
	}
}

func TestDoubleEntry(t *testing.T) {
	e := newLot(t, newFakeClock(start), carSpots(3))
	ctx := context.Background()

	first, err := e.Entry(ctx, "AB123", vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Entry(ctx, "ab-123", vehicle.Car)
	if !errors.Is(err, parklot.ErrVehicleAlreadyParked) {
		t.Fatalf("expected ErrVehicleAlreadyParked, got %v", err)
	}
	if parklot.Code(err) != "VEHICLE_ALREADY_PARKED" {
		t.Errorf("code = %s", parklot.Code(err))
	}

	active, err := e.FindActive(ctx, "AB123")
	if err != nil {
		t.Fatal(err)
	}
	if active.ID.String() != first.TransactionID.String() || active.SpotID.String() != first.Spot.ID.String() {
		t.Error("rejected entry disturbed the original transaction")
	}

	a, err := e.Availability(ctx, spot.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Occupied != 1 {
		t.Errorf("occupied = %d, want 1", a.Occupied)
	}
}

func TestConcurrentEntrySamePlate(t *testing.T) {
	e := newLot(t, newFakeClock(start), carSpots(10))
	ctx := context.Background()

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Entry(ctx, "SAME1", vehicle.Car)
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case !errors.Is(err, parklot.ErrVehicleAlreadyParked):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d concurrent entries for one plate succeeded, want 1", wins)
	}
}

func TestExitWithoutOpenTransaction(t *testing.T) {
	clock := newFakeClock(start)
	e := newLot(t, clock, carSpots(1))
	ctx := context.Background()

	_, err := e.Exit(ctx, "NEVER1")
	if !errors.Is(err, parklot.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound family, got %v", err)
	}
	if !errors.Is(err, parklot.ErrVehicleNotFound) {
		t.Errorf("unknown plate should be ErrVehicleNotFound, got %v", err)
	}
	if parklot.KindOf(err) != parklot.KindNotFound {
		t.Errorf("kind = %s, want not_found", parklot.KindOf(err))
	}

	if _, err := e.Entry(ctx, "GONE1", vehicle.Car); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	if _, err := e.Exit(ctx, "GONE1"); err != nil {
		t.Fatal(err)
	}

	_, err = e.Exit(ctx, "GONE1")
	if !errors.Is(err, parklot.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound family, got %v", err)
	}
	if !errors.Is(err, parklot.ErrAlreadyExited) {
		t.Errorf("second exit should be ErrAlreadyExited, got %v", err)
	}
	if parklot.Code(err) != "ALREADY_EXITED" || !parklot.IsConflict(err) {
		t.Errorf("code = %s kind = %s", parklot.Code(err), parklot.KindOf(err))
	}
}

func TestConcurrentExitSamePlate(t *testing.T) {
	clock := newFakeClock(start)
	e := newLot(t, clock, carSpots(1))
	ctx := context.Background()

	if _, err := e.Entry(ctx, "RACE1", vehicle.Car); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Hour)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Exit(ctx, "RACE1")
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case !errors.Is(err, parklot.ErrAlreadyExited):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d exits succeeded, want 1", wins)
	}
	hist, err := e.History(ctx, "RACE1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 {
		t.Fatalf("history has %d transactions, want 1", len(hist))
	}
}

func TestEntryRequiresRateCard(t *testing.T) {
	clock := newFakeClock(start)
	e := parklot.New(memory.New(),
		parklot.WithClock(clock.Now),
		parklot.WithLogger(slog.New(slog.DiscardHandler)),
	)
	ctx := context.Background()
	if _, err := e.AddSpot(ctx, 1, 1, vehicle.Car); err != nil {
		t.Fatal(err)
	}

	_, err := e.Entry(ctx, "AB123", vehicle.Car)
	if !errors.Is(err, parklot.ErrRateCardNotFound) {
		t.Fatalf("expected ErrRateCardNotFound, got %v", err)
	}
	if parklot.KindOf(err) != parklot.KindConfiguration {
		t.Errorf("kind = %s, want configuration", parklot.KindOf(err))
	}
	if errors.Is(err, parklot.ErrNoSpotAvailable) {
		t.Error("configuration gap reported as exhaustion")
	}

	a, err := e.Availability(ctx, spot.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Available != 1 {
		t.Errorf("available = %d, want 1", a.Available)
	}
}

func TestEntryCanceledLeavesNoTrace(t *testing.T) {
	e := newLot(t, newFakeClock(start), carSpots(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Entry(ctx, "AB123", vehicle.Car)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if parklot.KindOf(err) != parklot.KindCanceled {
		t.Errorf("kind = %s, want canceled", parklot.KindOf(err))
	}

	bg := context.Background()
	a, err := e.Availability(bg, spot.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Occupied != 0 {
		t.Errorf("occupied = %d after canceled entry", a.Occupied)
	}
	if active, _ := e.FindActive(bg, "AB123"); active != nil {
		t.Error("canceled entry left an open transaction")
	}
}

// ──────────────────────────────────────────────────
// Allocation
// ──────────────────────────────────────────────────

func TestConcurrentAllocationExhaustion(t *testing.T) {
	const (
		m = 5
		n = 40
	)
	clock := newFakeClock(start)
	e := newLot(t, clock, carSpots(m))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      = make(map[string]string)
		exhausts int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plate := fmt.Sprintf("CAR%03d", i)
			res, err := e.Entry(ctx, plate, vehicle.Car)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if prev, dup := won[res.Spot.ID.String()]; dup {
					t.Errorf("spot %s handed to %s and %s", res.Spot.ID, prev, plate)
				}
				won[res.Spot.ID.String()] = plate
			case errors.Is(err, parklot.ErrNoSpotAvailable):
				exhausts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(won) != m || exhausts != n-m {
		t.Fatalf("%d succeeded and %d exhausted, want %d and %d", len(won), exhausts, m, n-m)
	}
}

func TestAllocateEligibility(t *testing.T) {
	tests := []struct {
		vt        vehicle.Type
		wantFloor int
		wantNum   int
		wantType  vehicle.Type
	}{
		{vehicle.Motorcycle, 1, 9, vehicle.Motorcycle},
		{vehicle.Car, 1, 2, vehicle.Car},
		{vehicle.Bus, 1, 7, vehicle.Bus},
	}
	for _, tt := range tests {
		t.Run(string(tt.vt), func(t *testing.T) {
			e := newLot(t, newFakeClock(start), mixedLot)
			s, err := e.Allocate(context.Background(), vehicle.Vehicle{LicensePlate: "X1", Type: tt.vt})
			if err != nil {
				t.Fatal(err)
			}
			if s.Floor != tt.wantFloor || s.Number != tt.wantNum || s.Type != tt.wantType {
				t.Errorf("got %s (%s), want F%d-%03d (%s)", s.Label(), s.Type, tt.wantFloor, tt.wantNum, tt.wantType)
			}
			if !tt.vt.Fits(s.Type) {
				t.Errorf("%s allocated ineligible %s spot", tt.vt, s.Type)
			}
		})
	}
}

func TestAllocateNeverReturnsIneligible(t *testing.T) {
	e := newLot(t, newFakeClock(start), mixedLot)
	ctx := context.Background()

	// Exhaust the lot with buses: only the single BUS spot qualifies.
	s, err := e.Allocate(ctx, vehicle.Vehicle{LicensePlate: "BUS1", Type: vehicle.Bus})
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != vehicle.Bus {
		t.Fatalf("bus got %s spot", s.Type)
	}
	_, err = e.Allocate(ctx, vehicle.Vehicle{LicensePlate: "BUS2", Type: vehicle.Bus})
	if !errors.Is(err, parklot.ErrNoSpotAvailable) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	// Cars take CAR spots then nothing else: MOTORCYCLE spots never qualify.
	for i := range 3 {
		s, err := e.Allocate(ctx, vehicle.Vehicle{LicensePlate: fmt.Sprintf("CAR%d", i), Type: vehicle.Car})
		if err != nil {
			t.Fatal(err)
		}
		if s.Type != vehicle.Car {
			t.Errorf("car got %s spot", s.Type)
		}
	}
	if _, err := e.Allocate(ctx, vehicle.Vehicle{LicensePlate: "CAR9", Type: vehicle.Car}); !errors.Is(err, parklot.ErrNoSpotAvailable) {
		t.Fatalf("expected exhaustion with only motorcycle spots left, got %v", err)
	}
}

func TestAllocateDeterministicWithRelease(t *testing.T) {
	e := newLot(t, newFakeClock(start), mixedLot)
	ctx := context.Background()

	var first string
	for i := range 10 {
		s, err := e.Allocate(ctx, vehicle.Vehicle{LicensePlate: "CAR1", Type: vehicle.Car})
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = s.ID.String()
		} else if s.ID.String() != first {
			t.Fatalf("iteration %d chose %s, want %s", i, s.ID, first)
		}

		released, err := e.Release(ctx, s.ID)
		if err != nil {
			t.Fatal(err)
		}
		if released.Status != spot.StatusAvailable || released.Occupant != "" {
			t.Fatalf("release left %s occupant %q", released.Status, released.Occupant)
		}
	}
}

func TestReleaseErrors(t *testing.T) {
	e := newLot(t, newFakeClock(start), carSpots(2))
	ctx := context.Background()

	in, err := e.Entry(ctx, "AB123", vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Release(ctx, in.Spot.ID); !errors.Is(err, parklot.ErrSpotInUse) {
		t.Errorf("release of a spot with an open transaction: got %v", err)
	}

	spots, err := e.ListSpots(ctx, spot.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	free := spots[1]
	if _, err := e.Release(ctx, free.ID); !errors.Is(err, parklot.ErrSpotNotOccupied) {
		t.Errorf("double release: expected ErrSpotNotOccupied, got %v", err)
	}
}

func TestMaintenance(t *testing.T) {
	e := newLot(t, newFakeClock(start), carSpots(2))
	ctx := context.Background()

	spots, err := e.ListSpots(ctx, spot.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	first, second := spots[0], spots[1]

	s, err := e.MarkMaintenance(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != spot.StatusMaintenance {
		t.Fatalf("status = %s", s.Status)
	}
	if _, err := e.MarkMaintenance(ctx, first.ID); !errors.Is(err, parklot.ErrSpotNotAvailable) {
		t.Errorf("second mark: got %v", err)
	}
	if _, err := e.ClearMaintenance(ctx, second.ID); !errors.Is(err, parklot.ErrSpotNotInMaintenance) {
		t.Errorf("clear on available spot: got %v", err)
	}

	in, err := e.Entry(ctx, "AB123", vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}
	if in.Spot.ID.String() != second.ID.String() {
		t.Errorf("entry took spot %d under maintenance", in.Spot.Number)
	}
	if _, err := e.MarkMaintenance(ctx, second.ID); !errors.Is(err, parklot.ErrSpotNotAvailable) {
		t.Errorf("mark on occupied spot: got %v", err)
	}

	a, err := e.Availability(ctx, spot.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Maintenance != 1 || a.Occupied != 1 || a.Available != 0 || a.Total != 2 {
		t.Errorf("counts = %+v", a.Counts)
	}

	if _, err := e.ClearMaintenance(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Entry(ctx, "CD456", vehicle.Car); err != nil {
		t.Errorf("cleared spot not allocatable: %v", err)
	}
}

func TestAddSpotRejectsDuplicatePosition(t *testing.T) {
	e := newLot(t, newFakeClock(start), carSpots(1))
	_, err := e.AddSpot(context.Background(), 1, 1, vehicle.Bus)
	if !errors.Is(err, parklot.ErrDuplicateSpot) {
		t.Fatalf("expected ErrDuplicateSpot, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Counters
// ──────────────────────────────────────────────────

func TestCountersStayConsistentUnderLoad(t *testing.T) {
	clock := newFakeClock(start)
	clock.step = time.Second
	e := newLot(t, clock, mixedLot)
	ctx := context.Background()

	kinds := []vehicle.Type{vehicle.Motorcycle, vehicle.Car, vehicle.Bus}
	var wg sync.WaitGroup
	for w := range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plate := fmt.Sprintf("W%02d", w)
			vt := kinds[w%len(kinds)]
			for range 25 {
				if _, err := e.Entry(ctx, plate, vt); err != nil {
					if !errors.Is(err, parklot.ErrNoSpotAvailable) {
						t.Errorf("entry: %v", err)
					}
					continue
				}
				if _, err := e.Exit(ctx, plate); err != nil {
					t.Errorf("exit: %v", err)
				}
			}
		}()
	}

	stop := make(chan struct{})
	var checker sync.WaitGroup
	checker.Add(1)
	go func() {
		defer checker.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			a, err := e.Availability(ctx, spot.Filter{})
			if err != nil {
				t.Errorf("availability: %v", err)
				return
			}
			if a.Available+a.Occupied+a.Maintenance != a.Total || a.Total != len(mixedLot) {
				t.Errorf("torn counters: %+v", a.Counts)
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	checker.Wait()

	spots, err := e.ListSpots(ctx, spot.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	want := spot.Summarize(spots, spot.Filter{})
	got, err := e.Availability(ctx, spot.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Counts != want.Counts {
		t.Errorf("counters %+v disagree with records %+v", got.Counts, want.Counts)
	}
	if got.Occupied != 0 {
		t.Errorf("occupied = %d after every vehicle left", got.Occupied)
	}
}

func TestAvailabilityFilters(t *testing.T) {
	e := newLot(t, newFakeClock(start), mixedLot)
	ctx := context.Background()

	if _, err := e.Entry(ctx, "AB123", vehicle.Car); err != nil {
		t.Fatal(err)
	}

	car := vehicle.Car
	a, err := e.Availability(ctx, spot.Filter{Type: &car})
	if err != nil {
		t.Fatal(err)
	}
	if a.Total != 3 || a.Occupied != 1 || a.Available != 2 {
		t.Errorf("CAR counts = %+v", a.Counts)
	}

	floor := 2
	a, err = e.Availability(ctx, spot.Filter{Floor: &floor})
	if err != nil {
		t.Fatal(err)
	}
	if a.Total != 2 || a.Available != 2 {
		t.Errorf("floor 2 counts = %+v", a.Counts)
	}

	all, err := e.Availability(ctx, spot.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if got := all.AvailableFor(vehicle.Motorcycle); got != 5 {
		t.Errorf("motorcycle-eligible available = %d, want 5", got)
	}

	bogus := vehicle.Type("TRUCK")
	if _, err := e.Availability(ctx, spot.Filter{Type: &bogus}); !errors.Is(err, parklot.ErrInvalidVehicleType) {
		t.Errorf("expected ErrInvalidVehicleType, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Fees and rate cards
// ──────────────────────────────────────────────────

func TestEstimateFeeIsReadOnly(t *testing.T) {
	clock := newFakeClock(start)
	e := newLot(t, clock, carSpots(1))
	ctx := context.Background()

	if _, err := e.Entry(ctx, "AB123", vehicle.Car); err != nil {
		t.Fatal(err)
	}
	exit := start.Add(155 * time.Minute)
	for range 3 {
		b, err := e.EstimateFee(ctx, vehicle.Car, start, &exit)
		if err != nil {
			t.Fatal(err)
		}
		if !b.FinalFee.Equal(types.USD(2400)) {
			t.Fatalf("estimate = %s, want $24.00", b.FinalFee)
		}
	}

	active, err := e.FindActive(ctx, "AB123")
	if err != nil || active == nil || !active.IsOpen() {
		t.Fatalf("estimate disturbed the open transaction: %v %v", active, err)
	}

	before := start.Add(-time.Minute)
	if _, err := e.EstimateFee(ctx, vehicle.Car, start, &before); !errors.Is(err, parklot.ErrInvalidInterval) {
		t.Errorf("exit before entry: got %v", err)
	}
}

func TestExitAppliesDailyCap(t *testing.T) {
	clock := newFakeClock(start)
	e := newLot(t, clock, carSpots(1))
	ctx := context.Background()

	if _, err := e.Entry(ctx, "AB123", vehicle.Car); err != nil {
		t.Fatal(err)
	}
	clock.Advance(9 * time.Hour)

	out, err := e.Exit(ctx, "AB123")
	if err != nil {
		t.Fatal(err)
	}
	if !out.ParkingFee.Equal(types.USD(5000)) || !out.Fee.DailyCapApplied {
		t.Errorf("fee = %s cap = %v, want $50.00 capped", out.ParkingFee, out.Fee.DailyCapApplied)
	}
}

func TestSetRateCard(t *testing.T) {
	e := newLot(t, newFakeClock(start), nil)
	ctx := context.Background()

	before, err := e.GetRateCard(ctx, vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}

	updated := &ratecard.RateCard{VehicleType: vehicle.Car, HourlyRate: types.USD(1000), Rounding: ratecard.RoundingFloor}
	if err := e.SetRateCard(ctx, updated); err != nil {
		t.Fatal(err)
	}
	after, err := e.GetRateCard(ctx, vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}
	if after.ID.String() != before.ID.String() {
		t.Error("replacing a card changed its id")
	}
	if !after.HourlyRate.Equal(types.USD(1000)) || after.Rounding != ratecard.RoundingFloor {
		t.Errorf("card not replaced: %+v", after)
	}

	euro := &ratecard.RateCard{VehicleType: vehicle.Bus, HourlyRate: types.New(1000, "eur"), Rounding: ratecard.RoundingCeiling}
	if err := e.SetRateCard(ctx, euro); !errors.Is(err, parklot.ErrInvalidRateCard) {
		t.Errorf("foreign currency: got %v", err)
	}

	cards, err := e.ListRateCards(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 3 {
		t.Errorf("cards = %d, want 3", len(cards))
	}
}

// ──────────────────────────────────────────────────
// Plugins and overstay
// ──────────────────────────────────────────────────

type recorder struct {
	mu        sync.Mutex
	entered   []string
	exited    []string
	exhausted int
	failed    []string
	overstays []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnVehicleEntered(_ context.Context, txn *transaction.Transaction, _ *spot.Spot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entered = append(r.entered, txn.LicensePlate)
	return nil
}

func (r *recorder) OnVehicleExited(_ context.Context, txn *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exited = append(r.exited, txn.LicensePlate)
	return nil
}

func (r *recorder) OnAllocationExhausted(context.Context, vehicle.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exhausted++
	return nil
}

func (r *recorder) OnOperationFailed(_ context.Context, op string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, op)
	return nil
}

func (r *recorder) OnOverstayDetected(_ context.Context, txn *transaction.Transaction, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overstays = append(r.overstays, txn.LicensePlate)
	return nil
}

func TestPluginHooks(t *testing.T) {
	clock := newFakeClock(start)
	rec := &recorder{}
	e := newLot(t, clock, carSpots(1), parklot.WithPlugin(rec))
	ctx := context.Background()

	if _, err := e.Entry(ctx, "AB123", vehicle.Car); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Entry(ctx, "CD456", vehicle.Car); !errors.Is(err, parklot.ErrNoSpotAvailable) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := e.Exit(ctx, "AB123"); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.entered) != 1 || rec.entered[0] != "AB123" {
		t.Errorf("entered = %v", rec.entered)
	}
	if len(rec.exited) != 1 || rec.exited[0] != "AB123" {
		t.Errorf("exited = %v", rec.exited)
	}
	if rec.exhausted != 1 {
		t.Errorf("exhausted = %d, want 1", rec.exhausted)
	}
	if len(rec.failed) != 1 || rec.failed[0] != "entry" {
		t.Errorf("failed = %v", rec.failed)
	}
}

func TestCheckOverstaysReportsOnce(t *testing.T) {
	clock := newFakeClock(start)
	rec := &recorder{}
	e := newLot(t, clock, carSpots(2),
		parklot.WithPlugin(rec),
		parklot.WithOverstayMonitor(4*time.Hour, time.Hour),
	)
	ctx := context.Background()

	if _, err := e.Entry(ctx, "OLD1", vehicle.Car); err != nil {
		t.Fatal(err)
	}
	clock.Advance(3 * time.Hour)
	if _, err := e.Entry(ctx, "NEW1", vehicle.Car); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Hour)

	n, err := e.CheckOverstays(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reported %d, want 1", n)
	}
	if n, _ := e.CheckOverstays(ctx); n != 0 {
		t.Errorf("second check reported %d again", n)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.overstays) != 1 || rec.overstays[0] != "OLD1" {
		t.Errorf("overstays = %v", rec.overstays)
	}
}
