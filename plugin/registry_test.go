package plugin_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/parklot/plugin"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/vehicle"
)

type named string

func (n named) Name() string { return string(n) }

type exhaustCounter struct {
	named
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (c *exhaustCounter) OnAllocationExhausted(context.Context, vehicle.Vehicle) error {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return c.err
}

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.DiscardHandler))
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := newRegistry()
	if err := r.Register(named("metrics")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(named("metrics")); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 || r.Get("metrics") == nil {
		t.Fatalf("count = %d", r.Count())
	}
}

func TestEmitReachesOnlyImplementers(t *testing.T) {
	r := newRegistry()
	a := &exhaustCounter{named: "a"}
	b := &exhaustCounter{named: "b", err: errors.New("boom")}
	for _, p := range []plugin.Plugin{a, b, named("silent")} {
		if err := r.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	r.EmitAllocationExhausted(context.Background(), vehicle.Vehicle{LicensePlate: "X", Type: vehicle.Bus})
	r.EmitSpotReleased(context.Background(), &spot.Spot{})

	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", a.calls.Load(), b.calls.Load())
	}
}

func TestSlowHookIsAbandoned(t *testing.T) {
	r := newRegistry().WithTimeout(20 * time.Millisecond)
	slow := &exhaustCounter{named: "slow", delay: time.Second}
	if err := r.Register(slow); err != nil {
		t.Fatal(err)
	}

	begin := time.Now()
	r.EmitAllocationExhausted(context.Background(), vehicle.Vehicle{})
	if elapsed := time.Since(begin); elapsed > 500*time.Millisecond {
		t.Fatalf("emit blocked for %s", elapsed)
	}
}
