package sqlite

// Migration is one forward schema step. Applied versions are recorded in
// parklot_migrations and never re-run.
type Migration struct {
	Name    string
	Version string
	Up      string
}

// Migrations is the ordered schema history for the SQLite store.
var Migrations = []Migration{
	{
		Name:    "create_parklot_spots",
		Version: "20260301000001",
		Up: `
CREATE TABLE IF NOT EXISTS parklot_spots (
    id          TEXT PRIMARY KEY,
    floor       INTEGER NOT NULL CHECK (floor >= 1),
    spot_number INTEGER NOT NULL CHECK (spot_number >= 1),
    spot_type   TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'AVAILABLE',
    occupant    TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL,
    CHECK ((status = 'OCCUPIED') = (occupant <> ''))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_parklot_spots_position ON parklot_spots (floor, spot_number);
CREATE INDEX IF NOT EXISTS idx_parklot_spots_status_type ON parklot_spots (status, spot_type);
`,
	},
	{
		Name:    "create_parklot_transactions",
		Version: "20260301000002",
		Up: `
CREATE TABLE IF NOT EXISTS parklot_transactions (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    id               TEXT NOT NULL UNIQUE,
    license_plate    TEXT NOT NULL,
    vehicle_type     TEXT NOT NULL,
    spot_id          TEXT NOT NULL REFERENCES parklot_spots (id),
    floor            INTEGER NOT NULL,
    spot_number      INTEGER NOT NULL,
    spot_type        TEXT NOT NULL,
    entry_time       DATETIME NOT NULL,
    exit_time        DATETIME,
    duration_minutes INTEGER,
    fee_amount       INTEGER,
    fee_currency     TEXT,
    fee_breakdown    TEXT,
    payment_status   TEXT,
    created_at       DATETIME NOT NULL,
    updated_at       DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_parklot_txn_open_plate ON parklot_transactions (license_plate) WHERE exit_time IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_parklot_txn_open_spot ON parklot_transactions (spot_id) WHERE exit_time IS NULL;
CREATE INDEX IF NOT EXISTS idx_parklot_txn_plate_seq ON parklot_transactions (license_plate, seq DESC);
CREATE INDEX IF NOT EXISTS idx_parklot_txn_open_entry ON parklot_transactions (entry_time) WHERE exit_time IS NULL;
`,
	},
	{
		Name:    "create_parklot_rate_cards",
		Version: "20260301000003",
		Up: `
CREATE TABLE IF NOT EXISTS parklot_rate_cards (
    vehicle_type         TEXT PRIMARY KEY,
    id                   TEXT NOT NULL DEFAULT '',
    currency             TEXT NOT NULL,
    hourly_rate          INTEGER NOT NULL CHECK (hourly_rate >= 0),
    daily_max_rate       INTEGER CHECK (daily_max_rate >= 0),
    rounding             TEXT NOT NULL,
    grace_period_minutes INTEGER NOT NULL DEFAULT 0 CHECK (grace_period_minutes >= 0),
    created_at           DATETIME NOT NULL,
    updated_at           DATETIME NOT NULL
);
`,
	},
}
