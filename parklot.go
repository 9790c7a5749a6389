package parklot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/parklot/allocation"
	"github.com/xraph/parklot/fee"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/plugin"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/types"
	"github.com/xraph/parklot/vehicle"
)

// Engine is the spot allocation and fee engine for a single lot.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	policy  allocation.Policy
	clock   func() time.Time

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	currency          string
	lockTimeout       time.Duration
	overstayThreshold time.Duration
	overstayInterval  time.Duration
	skipMigrate       bool

	overstayMu       sync.Mutex
	overstayReported map[string]struct{}
}

// New creates a new Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		policy:           allocation.BestFit{},
		clock:            time.Now,
		stopChan:         make(chan struct{}),
		currency:         "usd",
		overstayInterval: time.Minute,
		overstayReported: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPolicy replaces the default best-fit allocation policy.
func WithPolicy(p allocation.Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithClock overrides the time source used for entry and exit stamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLockTimeout caps every atomic section, including the wait to enter
// it. Backends apply their own lock timeout as well; the earlier one wins.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTimeout = d
	}
}

// WithOverstayMonitor reports open transactions older than threshold,
// checking every interval. A zero threshold disables the monitor.
func WithOverstayMonitor(threshold, interval time.Duration) Option {
	return func(e *Engine) {
		e.overstayThreshold = threshold
		if interval > 0 {
			e.overstayInterval = interval
		}
	}
}

// WithCurrency sets the lot's billing currency. Rate cards in any other
// currency are rejected.
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		if currency != "" {
			e.currency = strings.ToLower(currency)
		}
	}
}

// WithoutMigrate makes Start leave the schema alone.
func WithoutMigrate() Option {
	return func(e *Engine) { e.skipMigrate = true }
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Currency returns the lot's billing currency.
func (e *Engine) Currency() string { return e.currency }

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	if e.overstayThreshold > 0 {
		e.wg.Add(1)
		go e.overstayWorker(context.WithoutCancel(ctx))
	}

	e.logger.Info("parklot started",
		"policy", e.policy.Name(),
		"currency", e.currency,
		"lock_timeout", e.lockTimeout,
		"overstay_threshold", e.overstayThreshold,
	)

	return nil
}

// Stop shuts down the Engine and closes its store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Gate operations
// ──────────────────────────────────────────────────

// SpotRef is the position handed to a driver at entry.
type SpotRef struct {
	ID     id.SpotID    `json:"spot_id"`
	Floor  int          `json:"floor"`
	Number int          `json:"spot_number"`
	Type   vehicle.Type `json:"spot_type"`
}

// EntryResult is the outcome of a successful Entry.
type EntryResult struct {
	TransactionID id.TransactionID `json:"transaction_id"`
	LicensePlate  string           `json:"license_plate"`
	VehicleType   vehicle.Type     `json:"vehicle_type"`
	Spot          SpotRef          `json:"spot"`
	EntryTime     time.Time        `json:"entry_time"`
}

// ExitResult is the outcome of a successful Exit.
type ExitResult struct {
	TransactionID   id.TransactionID          `json:"transaction_id"`
	LicensePlate    string                    `json:"license_plate"`
	Spot            SpotRef                   `json:"spot"`
	EntryTime       time.Time                 `json:"entry_time"`
	ExitTime        time.Time                 `json:"exit_time"`
	DurationMinutes int64                     `json:"duration_minutes"`
	ParkingFee      types.Money               `json:"parking_fee"`
	PaymentStatus   transaction.PaymentStatus `json:"payment_status"`
	Fee             *fee.Breakdown            `json:"fee_breakdown"`
}

// Entry admits a vehicle: it claims a spot and opens a transaction for the
// plate in one atomic section.
func (e *Engine) Entry(ctx context.Context, plate string, vt vehicle.Type) (*EntryResult, error) {
	v, err := vehicle.New(plate, vt)
	if err != nil {
		return nil, e.fail(ctx, "entry", err, "plate", plate, "vehicle_type", vt)
	}

	// A missing rate card would make the exit unbillable.
	if _, err := e.store.GetRateCard(ctx, v.Type); err != nil {
		return nil, e.fail(ctx, "entry", err, "plate", v.LicensePlate, "vehicle_type", v.Type)
	}

	var (
		txn     *transaction.Transaction
		claimed *spot.Spot
	)
	err = e.atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockVehicle(ctx, v.LicensePlate); err != nil {
			return err
		}
		active, err := tx.ActiveTransaction(ctx, v.LicensePlate)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("%w: %s holds %s", ErrVehicleAlreadyParked, v.LicensePlate, active.ID)
		}

		now := e.now()
		s, err := tx.ClaimSpot(ctx, v, e.policy, now)
		if err != nil {
			return err
		}

		t := &transaction.Transaction{
			Stamp:        types.StampAt(now),
			ID:           id.NewTransactionID(),
			LicensePlate: v.LicensePlate,
			VehicleType:  v.Type,
			SpotID:       s.ID,
			Floor:        s.Floor,
			SpotNumber:   s.Number,
			SpotType:     s.Type,
			EntryTime:    now,
		}
		if err := tx.OpenTransaction(ctx, t); err != nil {
			return err
		}

		txn, claimed = t, s
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoSpotAvailable) {
			e.plugins.EmitAllocationExhausted(ctx, v)
		}
		return nil, e.fail(ctx, "entry", err, "plate", v.LicensePlate, "vehicle_type", v.Type)
	}

	e.logger.Info("vehicle entered",
		"plate", txn.LicensePlate,
		"vehicle_type", txn.VehicleType,
		"spot", claimed.Label(),
		"transaction_id", txn.ID.String(),
	)
	e.plugins.EmitVehicleEntered(ctx, txn, claimed)

	return &EntryResult{
		TransactionID: txn.ID,
		LicensePlate:  txn.LicensePlate,
		VehicleType:   txn.VehicleType,
		Spot:          refOf(claimed),
		EntryTime:     txn.EntryTime,
	}, nil
}

// Exit closes the plate's open transaction, bills it and frees its spot in
// one atomic section.
func (e *Engine) Exit(ctx context.Context, plate string) (*ExitResult, error) {
	p, err := vehicle.NormalizePlate(plate)
	if err != nil {
		return nil, e.fail(ctx, "exit", err, "plate", plate)
	}

	active, err := e.store.FindActiveTransaction(ctx, p)
	if err != nil {
		return nil, e.fail(ctx, "exit", err, "plate", p)
	}
	if active == nil {
		return nil, e.fail(ctx, "exit", e.noActive(ctx, p), "plate", p)
	}

	// Load the card before mutating anything so a configuration gap leaves
	// the vehicle parked.
	card, err := e.store.GetRateCard(ctx, active.VehicleType)
	if err != nil {
		return nil, e.fail(ctx, "exit", err, "plate", p, "vehicle_type", active.VehicleType)
	}

	var (
		closed   *transaction.Transaction
		released *spot.Spot
	)
	err = e.atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockVehicle(ctx, p); err != nil {
			return err
		}
		cur, err := tx.ActiveTransaction(ctx, p)
		if err != nil {
			return err
		}
		if cur == nil || cur.ID.String() != active.ID.String() {
			return fmt.Errorf("%w: %s closed concurrently", ErrAlreadyExited, active.ID)
		}

		now := e.now()
		b, err := fee.Compute(cur.VehicleType, cur.EntryTime, now, card)
		if err != nil {
			return err
		}
		if err := cur.Close(b); err != nil {
			return err
		}
		if err := tx.CloseTransaction(ctx, cur); err != nil {
			return err
		}

		s, err := tx.ReleaseSpot(ctx, cur.SpotID, now)
		if err != nil {
			return fmt.Errorf("%w: release %s for %s: %w", ErrInconsistency, cur.SpotID, cur.ID, err)
		}

		closed, released = cur, s
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "exit", err, "plate", p)
	}

	e.forgetOverstay(closed.ID)

	e.logger.Info("vehicle exited",
		"plate", closed.LicensePlate,
		"spot", released.Label(),
		"transaction_id", closed.ID.String(),
		"duration_minutes", closed.DurationMinutes.Int64,
		"fee", closed.ParkingFee.String(),
	)
	e.plugins.EmitVehicleExited(ctx, closed)
	e.plugins.EmitSpotReleased(ctx, released)

	return &ExitResult{
		TransactionID:   closed.ID,
		LicensePlate:    closed.LicensePlate,
		Spot:            refOf(released),
		EntryTime:       closed.EntryTime,
		ExitTime:        closed.ExitTime.Time,
		DurationMinutes: closed.DurationMinutes.Int64,
		ParkingFee:      *closed.ParkingFee,
		PaymentStatus:   closed.PaymentStatus,
		Fee:             closed.Fee,
	}, nil
}

// noActive explains why a plate has no open transaction.
func (e *Engine) noActive(ctx context.Context, plate string) error {
	latest, err := e.store.LatestTransaction(ctx, plate)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, plate)
	}
	return fmt.Errorf("%w: %s left at %s", ErrAlreadyExited, plate, latest.ExitTime.Time.Format(time.RFC3339))
}

// EstimateFee prices a stay without touching the ledger. A nil exit means now.
func (e *Engine) EstimateFee(ctx context.Context, vt vehicle.Type, entry time.Time, exit *time.Time) (*fee.Breakdown, error) {
	if !vt.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVehicleType, string(vt))
	}
	card, err := e.store.GetRateCard(ctx, vt)
	if err != nil {
		return nil, err
	}
	end := e.now()
	if exit != nil {
		end = *exit
	}
	return fee.Compute(vt, entry, end, card)
}

// Availability returns occupancy counts narrowed by f.
func (e *Engine) Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error) {
	if f.Type != nil && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVehicleType, string(*f.Type))
	}
	return e.store.Availability(ctx, f)
}

// ──────────────────────────────────────────────────
// Inventory
// ──────────────────────────────────────────────────

// Allocate claims a spot for v without opening a transaction.
func (e *Engine) Allocate(ctx context.Context, v vehicle.Vehicle) (*spot.Spot, error) {
	v, err := vehicle.New(v.LicensePlate, v.Type)
	if err != nil {
		return nil, e.fail(ctx, "allocate", err, "vehicle_type", v.Type)
	}

	var claimed *spot.Spot
	err = e.atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		s, err := tx.ClaimSpot(ctx, v, e.policy, e.now())
		claimed = s
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNoSpotAvailable) {
			e.plugins.EmitAllocationExhausted(ctx, v)
		}
		return nil, e.fail(ctx, "allocate", err, "plate", v.LicensePlate, "vehicle_type", v.Type)
	}

	e.logger.Debug("spot allocated", "spot", claimed.Label(), "plate", v.LicensePlate)
	return claimed, nil
}

// Release frees an OCCUPIED spot that no open transaction references.
func (e *Engine) Release(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	var released *spot.Spot
	err := e.atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.OpenTransactionForSpot(ctx, spotID)
		if err != nil {
			return err
		}
		if t != nil {
			return fmt.Errorf("%w: %s", ErrSpotInUse, t.ID)
		}
		released, err = tx.ReleaseSpot(ctx, spotID, e.now())
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, "release", err, "spot_id", spotID.String())
	}

	e.plugins.EmitSpotReleased(ctx, released)
	return released, nil
}

// MarkMaintenance takes an AVAILABLE spot out of service.
func (e *Engine) MarkMaintenance(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	return e.setMaintenance(ctx, "mark_maintenance", spotID, spot.StatusAvailable, spot.StatusMaintenance)
}

// ClearMaintenance returns a spot in MAINTENANCE to service.
func (e *Engine) ClearMaintenance(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	return e.setMaintenance(ctx, "clear_maintenance", spotID, spot.StatusMaintenance, spot.StatusAvailable)
}

func (e *Engine) setMaintenance(ctx context.Context, op string, spotID id.SpotID, from, to spot.Status) (*spot.Spot, error) {
	var changed *spot.Spot
	err := e.atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		s, err := tx.SetSpotStatus(ctx, spotID, from, to, e.now())
		changed = s
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, op, err, "spot_id", spotID.String())
	}

	e.logger.Info("spot status changed", "spot", changed.Label(), "from", from, "to", to)
	e.plugins.EmitMaintenanceChanged(ctx, changed)
	return changed, nil
}

// AddSpot provisions a new AVAILABLE spot.
func (e *Engine) AddSpot(ctx context.Context, floor, number int, typ vehicle.Type) (*spot.Spot, error) {
	s := &spot.Spot{
		Stamp:  types.StampAt(e.now()),
		ID:     id.NewSpotID(),
		Floor:  floor,
		Number: number,
		Type:   typ,
		Status: spot.StatusAvailable,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.CreateSpot(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSpot retrieves a spot by ID.
func (e *Engine) GetSpot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	return e.store.GetSpot(ctx, spotID)
}

// ListSpots lists spots ordered by floor and number.
func (e *Engine) ListSpots(ctx context.Context, opts spot.ListOpts) ([]*spot.Spot, error) {
	return e.store.ListSpots(ctx, opts)
}

// ──────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────

// FindActive returns the plate's open transaction, or nil if it is not parked.
func (e *Engine) FindActive(ctx context.Context, plate string) (*transaction.Transaction, error) {
	p, err := vehicle.NormalizePlate(plate)
	if err != nil {
		return nil, err
	}
	return e.store.FindActiveTransaction(ctx, p)
}

// GetTransaction retrieves a transaction by ID.
func (e *Engine) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	return e.store.GetTransaction(ctx, txnID)
}

// History lists a plate's transactions, newest first.
func (e *Engine) History(ctx context.Context, plate string, limit int) ([]*transaction.Transaction, error) {
	p, err := vehicle.NormalizePlate(plate)
	if err != nil {
		return nil, err
	}
	return e.store.ListTransactions(ctx, transaction.ListOpts{LicensePlate: p, Limit: limit})
}

// ──────────────────────────────────────────────────
// Rate cards
// ──────────────────────────────────────────────────

// SetRateCard validates and stores the card for its vehicle type, replacing
// any previous one.
func (e *Engine) SetRateCard(ctx context.Context, c *ratecard.RateCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !strings.EqualFold(c.HourlyRate.Currency, e.currency) {
		return fmt.Errorf("%w: currency %q, lot bills in %q", ErrInvalidRateCard, c.HourlyRate.Currency, e.currency)
	}

	now := e.now()
	prev, err := e.store.GetRateCard(ctx, c.VehicleType)
	switch {
	case err == nil:
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
		c.Touch(now)
	case errors.Is(err, ErrRateCardNotFound):
		if c.ID.IsNil() {
			c.ID = id.NewRateCardID()
		}
		c.Stamp = types.StampAt(now)
	default:
		return err
	}

	if err := e.store.PutRateCard(ctx, c); err != nil {
		return err
	}

	e.logger.Info("rate card updated",
		"vehicle_type", c.VehicleType,
		"hourly_rate", c.HourlyRate.String(),
		"rounding", c.Rounding,
	)
	e.plugins.EmitRateCardUpdated(ctx, c.Clone())
	return nil
}

// GetRateCard retrieves the card for a vehicle type.
func (e *Engine) GetRateCard(ctx context.Context, vt vehicle.Type) (*ratecard.RateCard, error) {
	if !vt.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVehicleType, string(vt))
	}
	return e.store.GetRateCard(ctx, vt)
}

// ListRateCards lists all configured cards.
func (e *Engine) ListRateCards(ctx context.Context) ([]*ratecard.RateCard, error) {
	return e.store.ListRateCards(ctx)
}

// ──────────────────────────────────────────────────
// Overstay monitor
// ──────────────────────────────────────────────────

func (e *Engine) overstayWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.overstayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if _, err := e.CheckOverstays(ctx); err != nil {
				e.logger.Error("overstay check failed", "error", err)
			}
		}
	}
}

// CheckOverstays reports open transactions parked longer than the overstay
// threshold. Each transaction is reported once; it returns how many were
// newly reported.
func (e *Engine) CheckOverstays(ctx context.Context) (int, error) {
	if e.overstayThreshold <= 0 {
		return 0, nil
	}
	now := e.now()
	open, err := e.store.ListOpenTransactions(ctx, now.Add(-e.overstayThreshold))
	if err != nil {
		return 0, err
	}

	e.overstayMu.Lock()
	fresh := make([]*transaction.Transaction, 0, len(open))
	for _, t := range open {
		key := t.ID.String()
		if _, seen := e.overstayReported[key]; !seen {
			e.overstayReported[key] = struct{}{}
			fresh = append(fresh, t)
		}
	}
	e.overstayMu.Unlock()

	for _, t := range fresh {
		parked := now.Sub(t.EntryTime)
		e.logger.Warn("vehicle overstayed",
			"plate", t.LicensePlate,
			"transaction_id", t.ID.String(),
			"parked", parked.Round(time.Minute),
		)
		e.plugins.EmitOverstayDetected(ctx, t, parked)
	}
	return len(fresh), nil
}

func (e *Engine) forgetOverstay(txnID id.TransactionID) {
	e.overstayMu.Lock()
	delete(e.overstayReported, txnID.String())
	e.overstayMu.Unlock()
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// now returns the clock in UTC at the precision every backend preserves.
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}

func (e *Engine) atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if e.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.lockTimeout)
		defer cancel()
	}
	return e.store.Atomic(ctx, fn)
}

// fail logs a rejected operation at a level matching its kind, notifies
// plugins and returns err unchanged.
func (e *Engine) fail(ctx context.Context, op string, err error, kv ...any) error {
	kind := KindOf(err)
	attrs := append([]any{"op", op, "kind", kind.String(), "code", Code(err), "error", err}, kv...)
	switch kind {
	case KindInternal:
		e.logger.Error("operation failed", attrs...)
	case KindContention, KindConfiguration:
		e.logger.Warn("operation failed", attrs...)
	default:
		e.logger.Debug("operation rejected", attrs...)
	}
	e.plugins.EmitOperationFailed(ctx, op, err)
	return err
}

func refOf(s *spot.Spot) SpotRef {
	return SpotRef{ID: s.ID, Floor: s.Floor, Number: s.Number, Type: s.Type}
}
