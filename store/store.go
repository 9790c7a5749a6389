// Package store defines the persistence contract for parklot. Backends live
// in the memory, postgres, sqlite and mongo subpackages and must all pass the
// storetest conformance suite.
package store

import (
	"context"
	"time"

	"github.com/xraph/parklot/allocation"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// DefaultLockTimeout bounds how long Atomic waits to enter its critical
// section when the caller's context carries no earlier deadline.
const DefaultLockTimeout = 2 * time.Second

// Store is the unified storage interface for spots, transactions and rate
// cards. All returned records are copies owned by the caller.
type Store interface {
	ratecard.Store

	// Inventory
	CreateSpot(ctx context.Context, s *spot.Spot) error
	GetSpot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error)
	ListSpots(ctx context.Context, opts spot.ListOpts) ([]*spot.Spot, error)
	Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error)

	// Ledger. FindActiveTransaction and LatestTransaction return nil, nil
	// when the plate has no matching record.
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error)
	FindActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error)
	LatestTransaction(ctx context.Context, plate string) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error)
	// ListOpenTransactions returns OPEN transactions that entered before
	// openedBefore, oldest first.
	ListOpenTransactions(ctx context.Context, openedBefore time.Time) ([]*transaction.Transaction, error)

	// Atomic runs fn as one all-or-nothing unit against inventory and ledger.
	//
	// Entering the critical section is bounded by the earlier of the context
	// deadline and the backend's lock timeout; exceeding it returns an error
	// wrapping parklot.ErrSystemBusy. If fn returns an error, or ctx is done
	// before commit, every change made through tx is discarded and the error
	// is returned unchanged.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the view of the store inside an Atomic section. Its methods see and
// mutate state that no concurrent Atomic section can observe until commit.
type Tx interface {
	// LockVehicle serializes sections for the same plate until commit.
	LockVehicle(ctx context.Context, plate string) error

	// ActiveTransaction returns the plate's OPEN transaction, or nil.
	ActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error)

	// OpenTransactionForSpot returns the OPEN transaction occupying spotID, or nil.
	OpenTransactionForSpot(ctx context.Context, spotID id.SpotID) (*transaction.Transaction, error)

	// The spot mutations below stamp the spot's UpdatedAt with at, the
	// caller's clock reading for the operation.

	// ClaimSpot lets policy choose among AVAILABLE spots eligible for v.Type
	// and commits the winner as OCCUPIED by v. It returns an error wrapping
	// parklot.ErrNoSpotAvailable when nothing fits.
	ClaimSpot(ctx context.Context, v vehicle.Vehicle, policy allocation.Policy, at time.Time) (*spot.Spot, error)

	// ReleaseSpot moves an OCCUPIED spot back to AVAILABLE and clears its occupant.
	ReleaseSpot(ctx context.Context, spotID id.SpotID, at time.Time) (*spot.Spot, error)

	// SetSpotStatus performs an administrative from -> to transition between
	// AVAILABLE and MAINTENANCE.
	SetSpotStatus(ctx context.Context, spotID id.SpotID, from, to spot.Status, at time.Time) (*spot.Spot, error)

	// OpenTransaction inserts a new OPEN transaction.
	OpenTransaction(ctx context.Context, t *transaction.Transaction) error

	// CloseTransaction persists the close fields of a transaction that was OPEN.
	CloseTransaction(ctx context.Context, t *transaction.Transaction) error
}
