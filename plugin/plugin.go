// Package plugin lets extensions observe the parking engine. A plugin
// implements Plugin plus any subset of the hook interfaces below; the
// Registry discovers which ones at registration time.
//
// Hooks run after the outcome of an operation is committed. They can never
// veto or roll back an entry or exit.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called from Engine.Start. The engine is passed untyped to keep
// this package free of an import cycle.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called from Engine.Stop.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Gate hooks
// ──────────────────────────────────────────────────

// OnVehicleEntered is called after a spot is claimed and the transaction opened.
type OnVehicleEntered interface {
	Plugin
	OnVehicleEntered(ctx context.Context, txn *transaction.Transaction, s *spot.Spot) error
}

// OnVehicleExited is called after a transaction is closed and its spot
// released. txn.Fee carries the full breakdown.
type OnVehicleExited interface {
	Plugin
	OnVehicleExited(ctx context.Context, txn *transaction.Transaction) error
}

// OnAllocationExhausted is called when no eligible spot exists for a vehicle.
type OnAllocationExhausted interface {
	Plugin
	OnAllocationExhausted(ctx context.Context, v vehicle.Vehicle) error
}

// OnOperationFailed is called when an engine operation returns an error.
// op is the operation name, e.g. "entry" or "exit".
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op string, err error) error
}

// ──────────────────────────────────────────────────
// Inventory hooks
// ──────────────────────────────────────────────────

// OnSpotReleased is called when a spot returns to AVAILABLE after occupancy.
type OnSpotReleased interface {
	Plugin
	OnSpotReleased(ctx context.Context, s *spot.Spot) error
}

// OnMaintenanceChanged is called when a spot enters or leaves MAINTENANCE.
// s.Status is the new status.
type OnMaintenanceChanged interface {
	Plugin
	OnMaintenanceChanged(ctx context.Context, s *spot.Spot) error
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnRateCardUpdated is called after a rate card is stored.
type OnRateCardUpdated interface {
	Plugin
	OnRateCardUpdated(ctx context.Context, card *ratecard.RateCard) error
}

// OnOverstayDetected is called once per open transaction that has been
// parked longer than the configured threshold.
type OnOverstayDetected interface {
	Plugin
	OnOverstayDetected(ctx context.Context, txn *transaction.Transaction, parked time.Duration) error
}
