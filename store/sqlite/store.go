// Package sqlite is the embedded SQLite parklot store built on
// modernc.org/sqlite through database/sql.
//
// The pool is limited to one connection, so holding it is the inventory
// lock: every Atomic section and every read is serialized, and waiting for
// the connection is bounded by the store's lock timeout.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

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

// Store implements store.Store on a single SQLite connection.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long operations wait for the connection.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New wraps an open database. The pool is reduced to one connection.
func New(db *sql.DB, opts ...Option) *Store {
	db.SetMaxOpenConns(1)
	s := &Store{db: db, lockTimeout: store.DefaultLockTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the database file at path, creating it if needed.
func Open(path string, opts ...Option) (*Store, error) {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_time_format", "sqlite")

	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("parklot/sqlite: open %s: %w", path, err)
	}
	return New(db, opts...), nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies every migration not yet recorded, in order, inside one
// transaction.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("parklot/sqlite: begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS parklot_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at DATETIME NOT NULL
)`); err != nil {
		return fmt.Errorf("parklot/sqlite: create migrations table: %w", err)
	}

	for _, m := range Migrations {
		var applied bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM parklot_migrations WHERE version = ?)`, m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("parklot/sqlite: check migration %s: %w", m.Name, err)
		}
		if applied {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("parklot/sqlite: migration %s failed: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO parklot_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("parklot/sqlite: record migration %s: %w", m.Name, err)
		}
	}
	return tx.Commit()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil && strings.Contains(err.Error(), "database is closed") {
		return parklot.ErrStoreClosed
	}
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// conn takes the single connection, bounded by the lock timeout.
func (s *Store) conn(ctx context.Context) (*sql.Conn, error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	c, err := s.db.Conn(lctx)
	if err == nil {
		return c, nil
	}
	switch {
	case errors.Is(err, sql.ErrConnDone), strings.Contains(err.Error(), "database is closed"):
		return nil, parklot.ErrStoreClosed
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, ctx.Err()
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", parklot.ErrSystemBusy, ctx.Err())
	case lctx.Err() != nil:
		return nil, fmt.Errorf("%w: connection not acquired within %s", parklot.ErrSystemBusy, s.lockTimeout)
	}
	return nil, mapError(err)
}

// read runs fn on the connection outside a transaction.
func (s *Store) read(ctx context.Context, fn func(c *sql.Conn) error) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// ==================== Atomic ====================

// Atomic runs fn in a transaction on the store's only connection.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	sqlTx, err := c.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback() //nolint:errcheck // re-panicking
			panic(r)
		}
	}()

	err = fn(ctx, &liteTx{tx: sqlTx})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = sqlTx.Rollback() //nolint:errcheck // the section's error wins
		return mapError(err)
	}
	return mapError(sqlTx.Commit())
}

type liteTx struct {
	tx *sql.Tx
}

func (t *liteTx) LockVehicle(context.Context, string) error {
	// The single connection already serializes every section.
	return nil
}

func (t *liteTx) ActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return scanTransaction(t.tx.QueryRowContext(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE license_plate = ? AND exit_time IS NULL`, plate))
}

func (t *liteTx) OpenTransactionForSpot(ctx context.Context, spotID id.SpotID) (*transaction.Transaction, error) {
	return scanTransaction(t.tx.QueryRowContext(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE spot_id = ? AND exit_time IS NULL`, spotID.String()))
}

func (t *liteTx) ClaimSpot(ctx context.Context, v vehicle.Vehicle, policy allocation.Policy, at time.Time) (*spot.Spot, error) {
	w := sqlmodel.NewWhere(mark).Add("status = ?", string(spot.StatusAvailable))
	eligible := sqlmodel.EligibleTypes(v.Type)
	in := make([]any, len(eligible))
	for i, typ := range eligible {
		in[i] = typ
	}
	w.Add("spot_type IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(in)), ", ")+")", in...)

	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots`+w.SQL()+` ORDER BY floor, spot_number`,
		w.Args()...)
	if err != nil {
		return nil, mapError(err)
	}
	candidates, err := collectSpots(rows)
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

	claimed, err := scanSpot(t.tx.QueryRowContext(ctx, `
UPDATE parklot_spots SET status = 'OCCUPIED', occupant = ?, updated_at = ?
WHERE id = ? AND status = 'AVAILABLE' AND spot_type IN (`+strings.TrimSuffix(strings.Repeat("?, ", len(in)), ", ")+`)
RETURNING `+sqlmodel.SpotSelect,
		append([]any{v.LicensePlate, at.UTC(), chosen.ID.String()}, in...)...))
	if errors.Is(err, parklot.ErrSpotNotFound) {
		return nil, fmt.Errorf("%w: policy %s chose ineligible spot %s", parklot.ErrInconsistency, policy.Name(), chosen.ID)
	}
	return claimed, err
}

func (t *liteTx) ReleaseSpot(ctx context.Context, spotID id.SpotID, at time.Time) (*spot.Spot, error) {
	released, err := scanSpot(t.tx.QueryRowContext(ctx, `
UPDATE parklot_spots SET status = 'AVAILABLE', occupant = '', updated_at = ?
WHERE id = ? AND status = 'OCCUPIED'
RETURNING `+sqlmodel.SpotSelect, at.UTC(), spotID.String()))
	if !errors.Is(err, parklot.ErrSpotNotFound) {
		return released, err
	}
	current, err := t.spot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotOccupied, current.Label(), current.Status)
}

func (t *liteTx) SetSpotStatus(ctx context.Context, spotID id.SpotID, from, to spot.Status, at time.Time) (*spot.Spot, error) {
	if err := spot.CheckAdminTransition(from, to); err != nil {
		return nil, err
	}
	updated, err := scanSpot(t.tx.QueryRowContext(ctx, `
UPDATE parklot_spots SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
RETURNING `+sqlmodel.SpotSelect, string(to), at.UTC(), spotID.String(), string(from)))
	if !errors.Is(err, parklot.ErrSpotNotFound) {
		return updated, err
	}
	current, err := t.spot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	return nil, transitionConflict(from, current)
}

func (t *liteTx) spot(ctx context.Context, spotID id.SpotID) (*spot.Spot, error) {
	return scanSpot(t.tx.QueryRowContext(ctx,
		`SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots WHERE id = ?`, spotID.String()))
}

func (t *liteTx) OpenTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if !txn.IsOpen() {
		return fmt.Errorf("%w: transaction %s is already closed", parklot.ErrInvalidInput, txn.ID)
	}
	row, err := sqlmodel.ToTransactionRow(txn)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO parklot_transactions (`+sqlmodel.TransactionSelect+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, row.Args()...)
	return mapError(err)
}

func (t *liteTx) CloseTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if txn.IsOpen() {
		return fmt.Errorf("%w: transaction %s has no exit recorded", parklot.ErrInvalidInput, txn.ID)
	}
	row, err := sqlmodel.ToTransactionRow(txn)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
UPDATE parklot_transactions
SET exit_time = ?, duration_minutes = ?, fee_amount = ?, fee_currency = ?,
    fee_breakdown = ?, payment_status = ?, updated_at = ?
WHERE id = ? AND exit_time IS NULL`,
		row.ExitTime, row.DurationMinutes, row.FeeAmount, row.FeeCurrency,
		row.FeeBreakdown, row.PaymentStatus, row.UpdatedAt, row.ID)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM parklot_transactions WHERE id = ?)`, row.ID,
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
	return s.read(ctx, func(c *sql.Conn) error {
		_, err := c.ExecContext(ctx, `INSERT INTO parklot_spots (`+sqlmodel.SpotSelect+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, sqlmodel.ToSpotRow(sp).Args()...)
		if err = mapError(err); errors.Is(err, parklot.ErrDuplicateSpot) {
			return fmt.Errorf("%w: %s", parklot.ErrDuplicateSpot, sp.Label())
		}
		return err
	})
}

func (s *Store) GetSpot(ctx context.Context, spotID id.SpotID) (sp *spot.Spot, err error) {
	err = s.read(ctx, func(c *sql.Conn) error {
		sp, err = scanSpot(c.QueryRowContext(ctx,
			`SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots WHERE id = ?`, spotID.String()))
		return err
	})
	return sp, err
}

func (s *Store) ListSpots(ctx context.Context, opts spot.ListOpts) (result []*spot.Spot, err error) {
	w := sqlmodel.NewWhere(mark).Spots(opts.Filter)
	err = s.read(ctx, func(c *sql.Conn) error {
		rows, err := c.QueryContext(ctx,
			`SELECT `+sqlmodel.SpotSelect+` FROM parklot_spots`+w.SQL()+
				` ORDER BY floor, spot_number`+sqlmodel.Paging(opts.Limit, opts.Offset, "-1"),
			w.Args()...)
		if err != nil {
			return mapError(err)
		}
		result, err = collectSpots(rows)
		return err
	})
	return result, err
}

func (s *Store) Availability(ctx context.Context, f spot.Filter) (*spot.Availability, error) {
	tally := sqlmodel.NewTally()
	err := s.read(ctx, func(c *sql.Conn) error {
		rows, err := c.QueryContext(ctx,
			`SELECT floor, spot_type, status, COUNT(*) FROM parklot_spots GROUP BY floor, spot_type, status`)
		if err != nil {
			return mapError(err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				floor, n     int
				typ, status string
			)
			if err := rows.Scan(&floor, &typ, &status, &n); err != nil {
				return err
			}
			tally.Add(floor, typ, status, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tally.Snapshot(f), nil
}

// ==================== Ledger ====================

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	t, err := s.queryTransaction(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions WHERE id = ?`, txnID.String())
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, parklot.ErrTransactionNotFound
	}
	return t, nil
}

func (s *Store) FindActiveTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return s.queryTransaction(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE license_plate = ? AND exit_time IS NULL`, plate)
}

func (s *Store) LatestTransaction(ctx context.Context, plate string) (*transaction.Transaction, error) {
	return s.queryTransaction(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE license_plate = ? ORDER BY seq DESC LIMIT 1`, plate)
}

func (s *Store) queryTransaction(ctx context.Context, query string, args ...any) (t *transaction.Transaction, err error) {
	err = s.read(ctx, func(c *sql.Conn) error {
		t, err = scanTransaction(c.QueryRowContext(ctx, query, args...))
		return err
	})
	return t, err
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	w := sqlmodel.NewWhere(mark).Transactions(opts)
	return s.queryTransactions(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions`+w.SQL()+
			` ORDER BY seq DESC`+sqlmodel.Paging(opts.Limit, opts.Offset, "-1"),
		w.Args()...)
}

func (s *Store) ListOpenTransactions(ctx context.Context, openedBefore time.Time) ([]*transaction.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+sqlmodel.TransactionSelect+` FROM parklot_transactions
		 WHERE exit_time IS NULL AND entry_time < ? ORDER BY entry_time, seq`, openedBefore.UTC())
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) (result []*transaction.Transaction, err error) {
	err = s.read(ctx, func(c *sql.Conn) error {
		rows, err := c.QueryContext(ctx, query, args...)
		if err != nil {
			return mapError(err)
		}
		result, err = collectTransactions(rows)
		return err
	})
	return result, err
}

// ==================== Rate cards ====================

func (s *Store) PutRateCard(ctx context.Context, c *ratecard.RateCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.read(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
INSERT INTO parklot_rate_cards (`+sqlmodel.RateCardSelect+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (vehicle_type) DO UPDATE SET
    id = excluded.id,
    currency = excluded.currency,
    hourly_rate = excluded.hourly_rate,
    daily_max_rate = excluded.daily_max_rate,
    rounding = excluded.rounding,
    grace_period_minutes = excluded.grace_period_minutes,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at`, sqlmodel.ToRateCardRow(c).Args()...)
		return mapError(err)
	})
}

func (s *Store) GetRateCard(ctx context.Context, vt vehicle.Type) (card *ratecard.RateCard, err error) {
	err = s.read(ctx, func(c *sql.Conn) error {
		r := new(sqlmodel.RateCardRow)
		err := c.QueryRowContext(ctx,
			`SELECT `+sqlmodel.RateCardSelect+` FROM parklot_rate_cards WHERE vehicle_type = ?`, string(vt),
		).Scan(r.Dest()...)
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
			}
			return mapError(err)
		}
		card, err = sqlmodel.FromRateCardRow(r)
		return err
	})
	return card, err
}

func (s *Store) ListRateCards(ctx context.Context) ([]*ratecard.RateCard, error) {
	byType := make(map[vehicle.Type]*ratecard.RateCard)
	err := s.read(ctx, func(c *sql.Conn) error {
		rows, err := c.QueryContext(ctx, `SELECT `+sqlmodel.RateCardSelect+` FROM parklot_rate_cards`)
		if err != nil {
			return mapError(err)
		}
		defer rows.Close()
		for rows.Next() {
			r := new(sqlmodel.RateCardRow)
			if err := rows.Scan(r.Dest()...); err != nil {
				return err
			}
			card, err := sqlmodel.FromRateCardRow(r)
			if err != nil {
				return err
			}
			byType[card.VehicleType] = card
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
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
	return s.read(ctx, func(c *sql.Conn) error {
		res, err := c.ExecContext(ctx, `DELETE FROM parklot_rate_cards WHERE vehicle_type = ?`, string(vt))
		if err != nil {
			return mapError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", parklot.ErrRateCardNotFound, vt)
		}
		return nil
	})
}

// ==================== Helpers ====================

func mark(int) string { return "?" }

func scanSpot(row *sql.Row) (*spot.Spot, error) {
	r := new(sqlmodel.SpotRow)
	if err := row.Scan(r.Dest()...); err != nil {
		if isNoRows(err) {
			return nil, parklot.ErrSpotNotFound
		}
		return nil, mapError(err)
	}
	return sqlmodel.FromSpotRow(r)
}

func collectSpots(rows *sql.Rows) ([]*spot.Spot, error) {
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
func scanTransaction(row *sql.Row) (*transaction.Transaction, error) {
	r := new(sqlmodel.TransactionRow)
	if err := row.Scan(r.Dest()...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return sqlmodel.FromTransactionRow(r)
}

func collectTransactions(rows *sql.Rows) ([]*transaction.Transaction, error) {
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

func transitionConflict(from spot.Status, sp *spot.Spot) error {
	if from == spot.StatusAvailable {
		return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotAvailable, sp.Label(), sp.Status)
	}
	return fmt.Errorf("%w: %s is %s", parklot.ErrSpotNotInMaintenance, sp.Label(), sp.Status)
}

// mapError translates driver errors into parklot sentinels. SQLite names
// the offending columns rather than the index in constraint messages.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		msg := se.Error()
		switch {
		case strings.Contains(msg, "parklot_transactions.license_plate"):
			return fmt.Errorf("%w: %w", parklot.ErrVehicleAlreadyParked, err)
		case strings.Contains(msg, "parklot_transactions.spot_id"):
			return fmt.Errorf("%w: spot already has an open transaction: %w", parklot.ErrInconsistency, err)
		case strings.Contains(msg, "parklot_transactions.id"):
			return fmt.Errorf("%w: duplicate transaction id: %w", parklot.ErrInvalidInput, err)
		case strings.Contains(msg, "parklot_spots."):
			return fmt.Errorf("%w: %w", parklot.ErrDuplicateSpot, err)
		}
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", parklot.ErrSystemBusy, err)
	}
	return err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
