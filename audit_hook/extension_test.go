package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/parklot"
	audithook "github.com/xraph/parklot/audit_hook"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store/memory"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

type trail struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (tr *trail) Record(_ context.Context, evt *audithook.AuditEvent) error {
	tr.mu.Lock()
	tr.events = append(tr.events, evt)
	tr.mu.Unlock()
	return nil
}

func (tr *trail) actions() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.events))
	for i, e := range tr.events {
		out[i] = e.Action
	}
	return out
}

func (tr *trail) find(action string) *audithook.AuditEvent {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, e := range tr.events {
		if e.Action == action {
			return e
		}
	}
	return nil
}

func newEngine(t *testing.T, ext *audithook.Extension, now func() time.Time) *parklot.Engine {
	t.Helper()
	e := parklot.New(memory.New(),
		parklot.WithClock(now),
		parklot.WithLogger(slog.New(slog.DiscardHandler)),
		parklot.WithPlugin(ext),
	)
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	card := &ratecard.RateCard{VehicleType: vehicle.Car, HourlyRate: types.USD(500), Rounding: ratecard.RoundingCeiling}
	if err := e.SetRateCard(ctx, card); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddSpot(ctx, 1, 1, vehicle.Car); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestGateEventsAreRecorded(t *testing.T) {
	tr := &trail{}
	clock := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	e := newEngine(t, audithook.New(tr), now)
	ctx := context.Background()

	entry, err := e.Entry(ctx, "ab-123", vehicle.Car)
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(90 * time.Minute)
	if _, err := e.Exit(ctx, "AB123"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Entry(ctx, "XY9", vehicle.Bus); err == nil {
		t.Fatal("bus entry without a rate card succeeded")
	}

	entered := tr.find(audithook.ActionVehicleEntered)
	if entered == nil {
		t.Fatalf("no entry event in %v", tr.actions())
	}
	if entered.ResourceID != entry.TransactionID.String() {
		t.Errorf("entry resource id = %q, want %q", entered.ResourceID, entry.TransactionID)
	}
	if entered.Metadata["plate"] != "AB123" || entered.Metadata["spot"] != "F1-001" {
		t.Errorf("entry metadata = %v", entered.Metadata)
	}

	exited := tr.find(audithook.ActionVehicleExited)
	if exited == nil {
		t.Fatalf("no exit event in %v", tr.actions())
	}
	if exited.Category != audithook.CategoryBilling || exited.Outcome != audithook.OutcomeSuccess {
		t.Errorf("exit event = %+v", exited)
	}
	if exited.Metadata["fee"] != "10.00" || exited.Metadata["hourly_units"] != int64(2) {
		t.Errorf("exit metadata = %v", exited.Metadata)
	}

	failed := tr.find(audithook.ActionOperationFailed)
	if failed == nil {
		t.Fatalf("no failure event in %v", tr.actions())
	}
	if failed.Outcome != audithook.OutcomeFailure || failed.Metadata["code"] != "RATE_CARD_NOT_FOUND" {
		t.Errorf("failure event = %+v", failed)
	}
}

func TestActionAllowList(t *testing.T) {
	tr := &trail{}
	ext := audithook.New(tr, audithook.WithActions(audithook.ActionSpotReleased))
	ctx := context.Background()
	s := &spot.Spot{Floor: 2, Number: 7, Type: vehicle.Car, Status: spot.StatusAvailable}

	if err := ext.OnMaintenanceChanged(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnSpotReleased(ctx, s); err != nil {
		t.Fatal(err)
	}

	got := tr.actions()
	if len(got) != 1 || got[0] != audithook.ActionSpotReleased {
		t.Errorf("recorded %v", got)
	}
}

func TestActionDenyList(t *testing.T) {
	tr := &trail{}
	ext := audithook.New(tr, audithook.WithoutActions(audithook.ActionMaintenanceCleared))
	ctx := context.Background()

	s := &spot.Spot{Floor: 1, Number: 3, Type: vehicle.Bus, Status: spot.StatusMaintenance}
	_ = ext.OnMaintenanceChanged(ctx, s)
	s.Status = spot.StatusAvailable
	_ = ext.OnMaintenanceChanged(ctx, s)

	got := tr.actions()
	if len(got) != 1 || got[0] != audithook.ActionMaintenanceStarted {
		t.Errorf("recorded %v", got)
	}
}

func TestMinSeverityFilter(t *testing.T) {
	tr := &trail{}
	ext := audithook.New(tr,
		audithook.WithMinSeverity(audithook.SeverityWarning),
		audithook.WithoutActions(audithook.ActionOverstayDetected),
	)
	ctx := context.Background()

	_ = ext.OnSpotReleased(ctx, &spot.Spot{Floor: 1, Number: 1, Type: vehicle.Car})
	_ = ext.OnAllocationExhausted(ctx, vehicle.Vehicle{LicensePlate: "AB1", Type: vehicle.Bus})

	got := tr.actions()
	if len(got) != 1 || got[0] != audithook.ActionAllocationExhausted {
		t.Errorf("recorded %v", got)
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	calls := 0
	rec := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		calls++
		return errors.New("trail offline")
	})
	ext := audithook.New(rec, audithook.WithLogger(slog.New(slog.DiscardHandler)))

	err := ext.OnAllocationExhausted(context.Background(), vehicle.Vehicle{LicensePlate: "AB1", Type: vehicle.Car})
	if err != nil {
		t.Errorf("hook returned %v", err)
	}
	if calls != 1 {
		t.Errorf("recorder called %d times", calls)
	}
}
