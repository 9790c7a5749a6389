// Package parklot provides the spot allocation and fee engine for a
// multi-floor parking lot.
//
// Parklot is designed as a library, not a service. Import it directly into
// your Go application, or run it behind the bundled HTTP adapter. It provides:
//
//   - Best-fit spot allocation that never hands one spot to two vehicles
//   - One open parking transaction per vehicle, enforced atomically
//   - Deterministic fee computation with grace periods, rounding and daily caps
//   - Availability counters that never disagree with the spot records
//   - Pluggable persistence (memory, PostgreSQL, SQLite, MongoDB)
//   - Lifecycle hooks for metrics and audit trails
//
// # Quick Start
//
// Create an engine over a store, configure rate cards and spots, then admit
// vehicles:
//
//	import (
//	    "github.com/xraph/parklot"
//	    "github.com/xraph/parklot/store/memory"
//	)
//
//	e := parklot.New(memory.New())
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
//	_ = e.SetRateCard(ctx, &ratecard.RateCard{
//	    VehicleType:        parklot.Car,
//	    HourlyRate:         parklot.USD(800),
//	    Rounding:           ratecard.RoundingCeiling,
//	    GracePeriodMinutes: 15,
//	})
//	_, _ = e.AddSpot(ctx, 1, 1, parklot.Car)
//
//	in, err := e.Entry(ctx, "KA-01 AB 1234", parklot.Car)
//	out, err := e.Exit(ctx, "KA01AB1234")
//
// # Allocation
//
// A vehicle may park in any spot whose type is at least its own size: a
// motorcycle fits MOTORCYCLE, CAR and BUS spots, a car fits CAR and BUS, and a
// bus fits only BUS. Among eligible AVAILABLE spots the default policy picks
// the lowest floor, then the smallest spot type, then the lowest spot number.
// Exhaustion is reported immediately; the engine never queues a request.
//
// # Atomicity
//
// Entry and exit each run inside a single store.Store.Atomic section. Either
// the spot and the transaction change together or neither changes, including
// when the caller cancels mid-request. Waiting to enter a section is bounded;
// a timeout surfaces as ErrSystemBusy, which IsRetryable reports as retryable.
//
// # Fees
//
// Fees are computed by the pure fee.Compute function from a vehicle type's
// rate card. All monetary values are integer minor units (cents for USD), so
// no floating-point rounding ever reaches a bill.
//
// # Errors
//
// Every error returned by the engine can be classified with KindOf and mapped
// to a stable wire code with Code:
//
//	if _, err := e.Entry(ctx, plate, vt); err != nil {
//	    switch parklot.KindOf(err) {
//	    case parklot.KindExhaustion: // lot full for this vehicle type
//	    case parklot.KindContention: // retry later
//	    }
//	}
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	spot_01h2xcejqtf2nbrexx3vqjhp41  // Spot ID
//	txn_01h2xcejqtf2nbrexx3vqjhp41   // Transaction ID
//	rate_01h455vb4pex5vsknk084sn02q  // Rate card ID
package parklot
