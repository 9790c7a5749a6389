// Package memory is the in-process parklot store. A single weighted
// semaphore guards inventory and ledger together; acquiring it is bounded by
// the caller's context and the store's lock timeout. Mutations made inside
// Atomic are journaled and undone if the section fails or is canceled.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/allocation"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

var _ store.Store = (*Store)(nil)

type position struct{ floor, number int }

type Store struct {
	sem         *semaphore.Weighted
	lockTimeout time.Duration
	closed      atomic.Bool

	// Guarded by sem.
	spots     map[string]*spot.Spot
	positions map[position]string
	tally     *spot.Tally
	txns      map[string]*transaction.Transaction
	order     []string          // transaction ids, oldest first
	active    map[string]string // plate -> open transaction id
	bySpot    map[string]string // spot id -> open transaction id

	cardsMu sync.RWMutex
	cards   map[vehicle.Type]*ratecard.RateCard
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long operations wait for the inventory lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		sem:         semaphore.NewWeighted(1),
		lockTimeout: store.DefaultLockTimeout,
		spots:       make(map[string]*spot.Spot),
		positions:   make(map[position]string),
		tally:       spot.NewTally(),
		txns:        make(map[string]*transaction.Transaction),
		active:      make(map[string]string),
		bySpot:      make(map[string]string),
		cards:       make(map[vehicle.Type]*ratecard.RateCard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// acquire takes the inventory lock or reports why it could not.
func (s *Store) acquire(ctx context.Context) error {
	if s.closed.Load() {
		return parklot.ErrStoreClosed
	}
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	if err := s.sem.Acquire(lctx, 1); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			return ctx.Err()
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %w", parklot.ErrSystemBusy, ctx.Err())
		default:
			return fmt.Errorf("%w: inventory lock not acquired within %s", parklot.ErrSystemBusy, s.lockTimeout)
		}
	}
	return nil
}

func (s *Store) release() { s.sem.Release(1) }

// ==================== Atomic ====================

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	tx := &memTx{s: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	err = fn(ctx, tx)
	if err == nil {
		// Abandoned by the caller before commit.
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type memTx struct {
	s    *Store
	undo []func()
}

func (tx *memTx) journal(f func()) { tx.undo = append(tx.undo, f) }

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) LockVehicle(context.Context, string) error {
	// The inventory lock already serializes every section.
	return nil
}

func (tx *memTx) ActiveTransaction(_ context.Context, plate string) (*transaction.Transaction, error) {
	if txnID, ok := tx.s.active[plate]; ok {
		return tx.s.txns[txnID].Clone(), nil
	}
	return nil, nil
}

func (tx *memTx) OpenTransactionForSpot(_ context.Context, spotID id.SpotID) (*transaction.Transaction, error) {
	if txnID, ok := tx.s.bySpot[spotID.String()]; ok {
		return tx.s.txns[txnID].Clone(), nil
	}
	return nil, nil
}

func (tx *memTx) ClaimSpot(_ context.Context, v vehicle.Vehicle, policy allocation.Policy, at time.Time) (*spot.Spot, error) {
	candidates := make([]*spot.Spot, 0, len(tx.s.spots))
	for _, sp := range tx.s.spots {
		if allocation.Eligible(v.Type, sp) {
			candidates = append(candidates, sp)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %s", parklot.ErrNoSpotAvailable, v.Type)
	}

	chosen := policy.Select(v.Type, candidates)
	if chosen == nil {
		return nil, fmt.Errorf("%w for %s", parklot.ErrNoSpotAvailable, v.Type)
	}
	sp, ok := tx.s.spots[chosen.ID.String()]
	if !ok || !allocation.Eligible(v.Type, sp) {
		return nil, fmt.Errorf("%w: policy %s chose ineligible spot %s", parklot.ErrInconsistency, policy.Name(), chosen.ID)
	}

	tx.transition(sp, spot.StatusOccupied, v.LicensePlate, at)
	return cloneSpot(sp), nil
}

func (tx *memTx) ReleaseSpot(_ context.Context, spotID id.SpotID, at time.Time) (*spot.Spot, error) {
	sp, ok := tx.s.spots[spotID.String()]
	if !ok {
		return nil, parklot.ErrSpotNotFound
	}
	if sp.Status != spot.StatusOccupied {
		return nil, fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotOccupied, sp.Label(), sp.Status)
	}
	tx.transition(sp, spot.StatusAvailable, "", at)
	return cloneSpot(sp), nil
}

func (tx *memTx) SetSpotStatus(_ context.Context, spotID id.SpotID, from, to spot.Status, at time.Time) (*spot.Spot, error) {
	if err := spot.CheckAdminTransition(from, to); err != nil {
		return nil, err
	}
	sp, ok := tx.s.spots[spotID.String()]
	if !ok {
		return nil, parklot.ErrSpotNotFound
	}
	if sp.Status != from {
		return nil, transitionConflict(from, sp)
	}
	tx.transition(sp, to, "", at)
	return cloneSpot(sp), nil
}

// transition mutates sp and the tally together and journals the inverse.
func (tx *memTx) transition(sp *spot.Spot, to spot.Status, occupant string, at time.Time) {
	prev := *sp
	tx.s.tally.Transition(sp, prev.Status, to)
	sp.Status = to
	sp.Occupant = occupant
	sp.Touch(at)

	tx.journal(func() {
		tx.s.tally.Transition(sp, to, prev.Status)
		*sp = prev
	})
}

func (tx *memTx) OpenTransaction(_ context.Context, t *transaction.Transaction) error {
	if !t.IsOpen() {
		return fmt.Errorf("%w: transaction %s is already closed", parklot.ErrInvalidInput, t.ID)
	}
	if _, exists := tx.s.active[t.LicensePlate]; exists {
		return parklot.ErrVehicleAlreadyParked
	}
	key := t.ID.String()
	if _, exists := tx.s.txns[key]; exists {
		return fmt.Errorf("%w: duplicate transaction id %s", parklot.ErrInvalidInput, key)
	}

	tx.s.txns[key] = t.Clone()
	tx.s.order = append(tx.s.order, key)
	tx.s.active[t.LicensePlate] = key
	tx.s.bySpot[t.SpotID.String()] = key

	tx.journal(func() {
		delete(tx.s.txns, key)
		tx.s.order = tx.s.order[:len(tx.s.order)-1]
		delete(tx.s.active, t.LicensePlate)
		delete(tx.s.bySpot, t.SpotID.String())
	})
	return nil
}

func (tx *memTx) CloseTransaction(_ context.Context, t *transaction.Transaction) error {
	if t.IsOpen() {
		return fmt.Errorf("%w: transaction %s has no exit recorded", parklot.ErrInvalidInput, t.ID)
	}
	key := t.ID.String()
	prev, ok := tx.s.txns[key]
	if !ok {
		return parklot.ErrTransactionNotFound
	}
	if !prev.IsOpen() {
		return parklot.ErrAlreadyExited
	}

	tx.s.txns[key] = t.Clone()
	delete(tx.s.active, prev.LicensePlate)
	delete(tx.s.bySpot, prev.SpotID.String())

	tx.journal(func() {
		tx.s.txns[key] = prev
		tx.s.active[prev.LicensePlate] = key
		tx.s.bySpot[prev.SpotID.String()] = key
	})
	return nil
}

// ==================== Inventory ====================

func (s *Store) CreateSpot(ctx context.Context, sp *spot.Spot) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	if sp.ID.IsNil() {
		return fmt.Errorf("%w: spot has no id", parklot.ErrInvalidInput)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	pos := position{sp.Floor, sp.Number}
	if _, exists := s.positions[pos]; exists {
		return fmt.Errorf("%w: %s", parklot.ErrDuplicateSpot, sp.Label())
	}
	if _, exists := s.spots[sp.ID.String()]; exists {
		return fmt.Errorf("%w: id %s", parklot.ErrDuplicateSpot, sp.ID)
	}

	cp := cloneSpot(sp)
	s.spots[sp.ID.String()] = cp
	s.positions[pos] = sp.ID.String()
	s.tally.Track(cp)
	return nil
}

func (s *Store) GetSpot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	if sp, ok := s.spots[spotID.String()]; ok {
		return cloneSpot(sp), nil
	}
	return nil, parklot.ErrSpotNotFound
}

func (s *Store) ListSpots(ctx context.Context, opts spot.ListOpts) ([]*spot.Spot, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	result := make([]*spot.Spot, 0, len(s.spots))
	for _, sp := range s.spots {
		if opts.Match(sp) {
			result = append(result, cloneSpot(sp))
		}
	}
	slices.SortFunc(result, func(a, b *spot.Spot) int {
		if c := cmp.Compare(a.Floor, b.Floor); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})
	return transaction.Page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	return s.tally.Snapshot(f), nil
}

// ==================== Ledger ====================

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	if t, ok := s.txns[txnID.String()]; ok {
		return t.Clone(), nil
	}
	return nil, parklot.ErrTransactionNotFound
}

func (s *Store) FindActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	if txnID, ok := s.active[plate]; ok {
		return s.txns[txnID].Clone(), nil
	}
	return nil, nil
}

func (s *Store) LatestTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	for i := len(s.order) - 1; i >= 0; i-- {
		if t := s.txns[s.order[i]]; t.LicensePlate == plate {
			return t.Clone(), nil
		}
	}
	return nil, nil
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	result := make([]*transaction.Transaction, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.txns[s.order[i]]
		if opts.LicensePlate != "" && t.LicensePlate != opts.LicensePlate {
			continue
		}
		if opts.State != "" && t.State() != opts.State {
			continue
		}
		result = append(result, t.Clone())
	}
	return transaction.Page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListOpenTransactions(ctx context.Context, openedBefore time.Time) ([]*transaction.Transaction, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	result := make([]*transaction.Transaction, 0, len(s.active))
	for _, txnID := range s.active {
		if t := s.txns[txnID]; t.EntryTime.Before(openedBefore) {
			result = append(result, t.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *transaction.Transaction) int {
		if c := a.EntryTime.Compare(b.EntryTime); c != 0 {
			return c
		}
		return id.Compare(a.ID, b.ID)
	})
	return result, nil
}

// ==================== Rate cards ====================

func (s *Store) PutRateCard(_ context.Context, c *ratecard.RateCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.cardsMu.Lock()
	defer s.cardsMu.Unlock()

	s.cards[c.VehicleType] = c.Clone()
	return nil
}

func (s *Store) GetRateCard(_ context.Context, vt vehicle.Type) (*ratecard.RateCard, error) {
	s.cardsMu.RLock()
	defer s.cardsMu.RUnlock()

	if c, ok := s.cards[vt]; ok {
		return c.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
}

func (s *Store) ListRateCards(_ context.Context) ([]*ratecard.RateCard, error) {
	s.cardsMu.RLock()
	defer s.cardsMu.RUnlock()

	result := make([]*ratecard.RateCard, 0, len(s.cards))
	for _, vt := range vehicle.Types {
		if c, ok := s.cards[vt]; ok {
			result = append(result, c.Clone())
		}
	}
	return result, nil
}

func (s *Store) DeleteRateCard(_ context.Context, vt vehicle.Type) error {
	s.cardsMu.Lock()
	defer s.cardsMu.Unlock()

	if _, ok := s.cards[vt]; !ok {
		return fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
	}
	delete(s.cards, vt)
	return nil
}

// ==================== Core ====================

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error {
	if s.closed.Load() {
		return parklot.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// ==================== Helpers ====================

func cloneSpot(sp *spot.Spot) *spot.Spot {
	cp := *sp
	return &cp
}

func transitionConflict(from spot.Status, sp *spot.Spot) error {
	if from == spot.StatusAvailable {
		return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotAvailable, sp.Label(), sp.Status)
	}
	return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotInMaintenance, sp.Label(), sp.Status)
}
