// Package postgres is the PostgreSQL parklot store built on pgx.
//
// Atomic sections run in a READ COMMITTED transaction with lock_timeout set
// to the store's lock timeout. Spots are claimed with a status-guarded
// UPDATE, so two sections can never both move the same spot out of
// AVAILABLE. Partial unique indexes keep at most one OPEN transaction per
// plate and per spot.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/parklot"
	"github.com/xraph/parklot/allocation"
	"github.com/xraph/parklot/id"
	"github.com/xraph/parklot/ratecard"
	"github.com/xraph/parklot/spot"
	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/store/internal/sqlmodel"
	"github.com/xraph/parklot/transaction"
	"github.com/xraph/parklot/vehicle"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a section waits for a connection, a row
// lock or a plate lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New wraps an existing pool. The store takes ownership and closes it on Close.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, lockTimeout: store.DefaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to dsn and returns a Store.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("parklot/postgres: connect: %w", err)
	}
	return New(pool, opts...), nil
}

// Pool returns the underlying connection pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate applies every migration not yet recorded, in order, inside one
// transaction.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("parklot/postgres: begin migration: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // no-op after commit

	// Serialize concurrent migrators.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('parklot_migrations'))`); err != nil {
		return fmt.Errorf("parklot/postgres: lock migrations: %w", err)
	}
	if _, err := tx.Exec(ctx, `
CREATE TABLE IF NOT EXISTS parklot_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("parklot/postgres: create migrations table: %w", err)
	}

	for _, m := range Migrations {
		var applied bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM parklot_migrations WHERE version = $1)`, m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("parklot/postgres: check migration %s: %w", m.Name, err)
		}
		if applied {
			continue
		}
		if _, err := tx.Exec(ctx, m.Up); err != nil {
			return fmt.Errorf("parklot/postgres: migration %s failed: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO parklot_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name,
		); err != nil {
			return fmt.Errorf("parklot/postgres: record migration %s: %w", m.Name, err)
		}
	}
	return tx.Commit(ctx)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Atomic ====================

// Atomic runs fn in a database transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	pgtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	rollback := func() {
		_ = pgtx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // the section's error wins
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	err = fn(ctx, &pgTx{tx: pgtx})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		rollback()
		return mapError(err)
	}
	if err := pgtx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// begin opens a transaction whose lock waits are bounded by the lock timeout.
func (s *Store) begin(ctx context.Context) (pgx.Tx, error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(lctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		if lctx.Err() != nil {
			return nil, busy(ctx, s.lockTimeout)
		}
		return nil, fmt.Errorf("parklot/postgres: begin: %w", err)
	}
	ms := s.lockTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // best-effort
		return nil, fmt.Errorf("parklot/postgres: set lock_timeout: %w", err)
	}
	return tx, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockVehicle(ctx context.Context, plate string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('parklot:' || $1))`, plate)
	return mapError(err)
}

func (t *pgTx) ActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return scanTransaction(t.tx.QueryRow(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE license_plate = $1 AND exit_time IS NULL`, plate))
}

func (t *pgTx) OpenTransactionForSpot(ctx context.Context, spotID id.SpotID) (*transaction.Transaction, error) {
	return scanTransaction(t.tx.QueryRow(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE spot_id = $1 AND exit_time IS NULL`, spotID.String()))
}

// ClaimSpot reads the eligible AVAILABLE spots, lets policy choose, and
// claims the choice with a guarded UPDATE. If a concurrent section took the
// spot first the candidates are re-read and the policy asked again.
func (t *pgTx) ClaimSpot(ctx context.Context, v vehicle.Vehicle, policy allocation.Policy, at time.Time) (*spot.Spot, error) {
	for {
		candidates, err := t.candidates(ctx, v.Type)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w for %s", parklot.ErrNoSpotAvailable, v.Type)
		}
		chosen := policy.Select(v.Type, candidates)
		if chosen == nil {
			return nil, fmt.Errorf("%w for %s", parklot.ErrNoSpotAvailable, v.Type)
		}
		if !contains(candidates, chosen) {
			return nil, fmt.Errorf("%w: policy %s chose ineligible spot %s", parklot.ErrInconsistency, policy.Name(), chosen.ID)
		}

		claimed, err := scanSpot(t.tx.QueryRow(ctx, `
UPDATE parklot_spots SET status = 'OCCUPIED', occupant = $2, updated_at = $3
WHERE id = $1 AND status = 'AVAILABLE'
RETURNING `+sqlmodel.SpotSelect, chosen.ID.String(), v.LicensePlate, at.UTC()))
		if errors.Is(err, parklot.ErrSpotNotFound) {
			// Lost the race for this spot.
			continue
		}
		return claimed, err
	}
}

func (t *pgTx) candidates(ctx context.Context, vt vehicle.Type) ([]*spot.Spot, error) {
	rows, err := t.tx.Query(ctx, `
SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots
WHERE status = 'AVAILABLE' AND spot_type = ANY($1)
ORDER BY floor, spot_number`, sqlmodel.EligibleTypes(vt))
	if err != nil {
		return nil, mapError(err)
	}
	return collectSpots(rows)
}

func (t *pgTx) ReleaseSpot(ctx context.Context, spotID id.SpotID, at time.Time) (*spot.Spot, error) {
	released, err := scanSpot(t.tx.QueryRow(ctx, `
UPDATE parklot_spots SET status = 'AVAILABLE', occupant = '', updated_at = $2
WHERE id = $1 AND status = 'OCCUPIED'
RETURNING `+sqlmodel.SpotSelect, spotID.String(), at.UTC()))
	if !errors.Is(err, parklot.ErrSpotNotFound) {
		return released, err
	}
	current, err := t.lockSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotOccupied, current.Label(), current.Status)
}

func (t *pgTx) SetSpotStatus(ctx context.Context, spotID id.SpotID, from, to spot.Status, at time.Time) (*spot.Spot, error) {
	if err := spot.CheckAdminTransition(from, to); err != nil {
		return nil, err
	}
	updated, err := scanSpot(t.tx.QueryRow(ctx, `
UPDATE parklot_spots SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
RETURNING `+sqlmodel.SpotSelect, spotID.String(), string(from), string(to), at.UTC()))
	if !errors.Is(err, parklot.ErrSpotNotFound) {
		return updated, err
	}
	current, err := t.lockSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	return nil, transitionConflict(from, current)
}

func (t *pgTx) lockSpot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	return scanSpot(t.tx.QueryRow(ctx,
		`SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots WHERE id = $1 FOR UPDATE`, spotID.String()))
}

func (t *pgTx) OpenTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if !txn.IsOpen() {
		return fmt.Errorf("%w: transaction %s is already closed", parklot.ErrInvalidInput, txn.ID)
	}
	row, err := sqlmodel.ToTransactionRow(txn)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO parklot_transactions (`+sqlmodel.TransactionSelect+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, row.Args()...)
	return mapError(err)
}

func (t *pgTx) CloseTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if txn.IsOpen() {
		return fmt.Errorf("%w: transaction %s has no exit recorded", parklot.ErrInvalidInput, txn.ID)
	}
	row, err := sqlmodel.ToTransactionRow(txn)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
UPDATE parklot_transactions
SET exit_time = $2, duration_minutes = $3, fee_amount = $4, fee_currency = $5,
    fee_breakdown = $6, payment_status = $7, updated_at = $8
WHERE id = $1 AND exit_time IS NULL`,
		row.ID, row.ExitTime, row.DurationMinutes, row.FeeAmount, row.FeeCurrency,
		row.FeeBreakdown, row.PaymentStatus, row.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM parklot_transactions WHERE id = $1)`, row.ID,
	).Scan(&exists); err != nil {
		return mapError(err)
	}
	if !exists {
		return parklot.ErrTransactionNotFound
	}
	return parklot.ErrAlreadyExited
}

// ==================== Inventory ====================

func (s *Store) CreateSpot(ctx context.Context, sp *spot.Spot) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	if sp.ID.IsNil() {
		return fmt.Errorf("%w: spot has no id", parklot.ErrInvalidInput)
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO parklot_spots (`+sqlmodel.SpotSelect+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, sqlmodel.ToSpotRow(sp).Args()...)
	if err = mapError(err); errors.Is(err, parklot.ErrDuplicateSpot) {
		return fmt.Errorf("%w: %s", parklot.ErrDuplicateSpot, sp.Label())
	}
	return err
}

func (s *Store) GetSpot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	return scanSpot(s.pool.QueryRow(ctx,
		`SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots WHERE id = $1`, spotID.String()))
}

func (s *Store) ListSpots(ctx context.Context, opts spot.ListOpts) ([]*spot.Spot, error) {
	w := sqlmodel.NewWhere(mark).Spots(opts.Filter)
	rows, err := s.pool.Query(ctx,
		`SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots`+w.SQL()+
			` ORDER BY floor, spot_number`+sqlmodel.Paging(opts.Limit, opts.Offset, "ALL"),
		w.Args()...)
	if err != nil {
		return nil, mapError(err)
	}
	return collectSpots(rows)
}

// Availability counts spots per floor, type and status in one statement, so
// the snapshot reflects a single committed state.
func (s *Store) Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT floor, spot_type, status, COUNT(*) FROM parklot_spots GROUP BY floor, spot_type, status`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	tally := sqlmodel.NewTally()
	for rows.Next() {
		var (
			floor, n     int
			typ, status string
		)
		if err := rows.Scan(&floor, &typ, &status, &n); err != nil {
			return nil, err
		}
		tally.Add(floor, typ, status, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return tally.Snapshot(f), nil
}

// ==================== Ledger ====================

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions WHERE id = $1`, txnID.String()))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, parklot.ErrTransactionNotFound
	}
	return t, nil
}

func (s *Store) FindActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE license_plate = $1 AND exit_time IS NULL`, plate))
}

func (s *Store) LatestTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE license_plate = $1 ORDER BY seq DESC LIMIT 1`, plate))
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	w := sqlmodel.NewWhere(mark).Transactions(opts)
	rows, err := s.pool.Query(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions`+w.SQL()+
			` ORDER BY seq DESC`+sqlmodel.Paging(opts.Limit, opts.Offset, "ALL"),
		w.Args()...)
	if err != nil {
		return nil, mapError(err)
	}
	return collectTransactions(rows)
}

func (s *Store) ListOpenTransactions(ctx context.Context, openedBefore time.Time) ([]*transaction.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE exit_time IS NULL AND entry_time < $1 ORDER BY entry_time, seq`, openedBefore.UTC())
	if err != nil {
		return nil, mapError(err)
	}
	return collectTransactions(rows)
}

// ==================== Rate cards ====================

func (s *Store) PutRateCard(ctx context.Context, c *ratecard.RateCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO parklot_rate_cards (`+sqlmodel.RateCardSelect+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (vehicle_type) DO UPDATE SET
    id = EXCLUDED.id,
    currency = EXCLUDED.currency,
    hourly_rate = EXCLUDED.hourly_rate,
    daily_max_rate = EXCLUDED.daily_max_rate,
    rounding = EXCLUDED.rounding,
    grace_period_minutes = EXCLUDED.grace_period_minutes,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at`, sqlmodel.ToRateCardRow(c).Args()...)
	return mapError(err)
}

func (s *Store) GetRateCard(ctx context.Context, vt vehicle.Type) (*ratecard.RateCard, error) {
	r := new(sqlmodel.RateCardRow)
	err := s.pool.QueryRow(ctx,
		`SELECT `+sqlmodel.RateCardSelect+` FROM parklot_rate_cards WHERE vehicle_type = $1`, string(vt),
	).Scan(r.Dest()...)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
		}
		return nil, mapError(err)
	}
	return sqlmodel.FromRateCardRow(r)
}

func (s *Store) ListRateCards(ctx context.Context) ([]*ratecard.RateCard, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sqlmodel.RateCardSelect+` FROM parklot_rate_cards`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	byType := make(map[vehicle.Type]*ratecard.RateCard)
	for rows.Next() {
		r := new(sqlmodel.RateCardRow)
		if err := rows.Scan(r.Dest()...); err != nil {
			return nil, err
		}
		c, err := sqlmodel.FromRateCardRow(r)
		if err != nil {
			return nil, err
		}
		byType[c.VehicleType] = c
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	result := make([]*ratecard.RateCard, 0, len(byType))
	for _, vt := range vehicle.Types {
		if c, ok := byType[vt]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *Store) DeleteRateCard(ctx context.Context, vt vehicle.Type) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM parklot_rate_cards WHERE vehicle_type = $1`, string(vt))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
	}
	return nil
}

// ==================== Helpers ====================

func mark(i int) string { return fmt.Sprintf("$%d", i) }

func scanSpot(row pgx.Row) (*spot.Spot, error) {
	r := new(sqlmodel.SpotRow)
	if err := row.Scan(r.Dest()...); err != nil {
		if isNoRows(err) {
			return nil, parklot.ErrSpotNotFound
		}
		return nil, mapError(err)
	}
	return sqlmodel.FromSpotRow(r)
}

func collectSpots(rows pgx.Rows) ([]*spot.Spot, error) {
	defer rows.Close()
	result := make([]*spot.Spot, 0)
	for rows.Next() {
		r := new(sqlmodel.SpotRow)
		if err := rows.Scan(r.Dest()...); err != nil {
			return nil, err
		}
		sp, err := sqlmodel.FromSpotRow(r)
		if err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	return result, mapError(rows.Err())
}

// scanTransaction returns nil, nil when the row does not exist.
func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	r := new(sqlmodel.TransactionRow)
	if err := row.Scan(r.Dest()...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return sqlmodel.FromTransactionRow(r)
}

func collectTransactions(rows pgx.Rows) ([]*transaction.Transaction, error) {
	defer rows.Close()
	result := make([]*transaction.Transaction, 0)
	for rows.Next() {
		r := new(sqlmodel.TransactionRow)
		if err := rows.Scan(r.Dest()...); err != nil {
			return nil, err
		}
		t, err := sqlmodel.FromTransactionRow(r)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, mapError(rows.Err())
}

func contains(candidates []*spot.Spot, chosen *spot.Spot) bool {
	for _, c := range candidates {
		if c.ID.String() == chosen.ID.String() {
			return true
		}
	}
	return false
}

func transitionConflict(from spot.Status, sp *spot.Spot) error {
	if from == spot.StatusAvailable {
		return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotAvailable, sp.Label(), sp.Status)
	}
	return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotInMaintenance, sp.Label(), sp.Status)
}

// busy reports a lock wait that ran out of time.
func busy(ctx context.Context, timeout time.Duration) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", parklot.ErrSystemBusy, ctx.Err())
	default:
		return fmt.Errorf("%w: no connection within %s", parklot.ErrSystemBusy, timeout)
	}
}

// PostgreSQL error codes translated into domain errors.
const (
	codeUniqueViolation      = "23505"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapError translates driver errors into parklot sentinels. Errors that are
// already domain errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case sqlmodel.OpenPlateIndex:
			return fmt.Errorf("%w: %w", parklot.ErrVehicleAlreadyParked, err)
		case sqlmodel.SpotPositionIndex, "parklot_spots_pkey":
			return fmt.Errorf("%w: %w", parklot.ErrDuplicateSpot, err)
		case sqlmodel.OpenSpotIndex:
			return fmt.Errorf("%w: spot already has an open transaction: %w", parklot.ErrInconsistency, err)
		case sqlmodel.TransactionPKIndex:
			return fmt.Errorf("%w: duplicate transaction id: %w", parklot.ErrInvalidInput, err)
		}
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", parklot.ErrSystemBusy, err)
	}
	return err
}

// isNoRows checks for the pgx no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
