package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"armada/internal/models"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type DB struct {
	*sql.DB
	driver string
	logger *zerolog.Logger

	mu           sync.RWMutex
	vehicleCache map[int64]models.Vehicle
}

// Options selects the store backend.
type Options struct {
	Driver       string
	Path         string // sqlite file
	DSN          string // postgres connection string
	MaxOpenConns int
}

// NewDB opens (and migrates) a sqlite database at path.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(context.Background(), Options{Driver: DriverSQLite, Path: path}, logger)
}

func Open(ctx context.Context, opts Options, logger *zerolog.Logger) (*DB, error) {
	driver := opts.Driver
	if driver == "" || driver == "sqlite" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		if opts.Path != ":memory:" {
			// Создаем директорию для БД, если её нет
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = opts.Path
	case DriverPostgres:
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite допускает одного писателя; :memory: живёт в одном соединении
		conn.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := NewWithConn(conn, driver, logger)
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.logger.Info().Str("driver", driver).Msg("database initialized")
	return db, nil
}

// NewWithConn wraps an existing connection without running migrations.
func NewWithConn(conn *sql.DB, driver string, logger *zerolog.Logger) *DB {
	l := logger.With().Str("component", "database").Logger()
	return &DB{
		DB:           conn,
		driver:       driver,
		logger:       &l,
		vehicleCache: make(map[int64]models.Vehicle),
	}
}

func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders into $n for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) Migrate(ctx context.Context) error {
	queries := sqliteSchema
	if db.driver == DriverPostgres {
		queries = postgresSchema
	}
	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	if db.driver == DriverSQLite {
		return db.ensureBookingColumns(ctx)
	}
	return nil
}

// ensureBookingColumns adds columns introduced after the first release to
// existing sqlite files.
func (db *DB) ensureBookingColumns(ctx context.Context) error {
	columns := map[string]string{
		"backdate_note":            "TEXT NOT NULL DEFAULT ''",
		"backdate_previous_return": "DATETIME",
		"backdate_edited_by":       "TEXT NOT NULL DEFAULT ''",
		"version":                  "INTEGER NOT NULL DEFAULT 1",
	}
	for column, ddl := range columns {
		query := fmt.Sprintf("ALTER TABLE bookings ADD COLUMN %s %s", column, ddl)
		if _, err := db.ExecContext(ctx, query); err != nil {
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("failed to add bookings.%s: %w", column, err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plate TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		daily_rate INTEGER NOT NULL,
		availability TEXT NOT NULL DEFAULT 'available',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT UNIQUE NOT NULL,
		driver_id INTEGER NOT NULL REFERENCES accounts(id),
		vehicle_id INTEGER NOT NULL REFERENCES vehicles(id),
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		actual_return_date DATETIME,
		status TEXT NOT NULL DEFAULT 'pending',
		is_backdated BOOLEAN NOT NULL DEFAULT 0,
		finish_enabled BOOLEAN NOT NULL DEFAULT 0,
		total_amount INTEGER NOT NULL DEFAULT 0,
		amount_paid INTEGER NOT NULL DEFAULT 0,
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		late_days INTEGER NOT NULL DEFAULT 0,
		late_fee INTEGER NOT NULL DEFAULT 0,
		admin_note TEXT NOT NULL DEFAULT '',
		cancel_reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		booking_id INTEGER,
		actor_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		balance_after INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		actor_id INTEGER NOT NULL,
		actor_name TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		previous_value TEXT NOT NULL DEFAULT '',
		failed_steps TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		booking_id INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		processed_at DATETIME,
		next_retry_at DATETIME
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_vehicle_id ON bookings(vehicle_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_booking_reason ON ledger_entries(booking_id, reason)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_booking ON booking_audit(booking_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_status ON notification_queue(status, next_retry_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS vehicles (
		id BIGSERIAL PRIMARY KEY,
		plate TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		daily_rate BIGINT NOT NULL,
		availability TEXT NOT NULL DEFAULT 'available',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		driver_id BIGINT NOT NULL REFERENCES accounts(id),
		vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		actual_return_date TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'pending',
		is_backdated BOOLEAN NOT NULL DEFAULT FALSE,
		finish_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		total_amount BIGINT NOT NULL DEFAULT 0,
		amount_paid BIGINT NOT NULL DEFAULT 0,
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		late_days INTEGER NOT NULL DEFAULT 0,
		late_fee BIGINT NOT NULL DEFAULT 0,
		admin_note TEXT NOT NULL DEFAULT '',
		cancel_reason TEXT NOT NULL DEFAULT '',
		backdate_note TEXT NOT NULL DEFAULT '',
		backdate_previous_return TIMESTAMPTZ,
		backdate_edited_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		booking_id BIGINT,
		actor_id BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		reason TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		balance_after BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_audit (
		id BIGSERIAL PRIMARY KEY,
		booking_id BIGINT NOT NULL,
		action TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		amount BIGINT NOT NULL DEFAULT 0,
		actor_id BIGINT NOT NULL,
		actor_name TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		previous_value TEXT NOT NULL DEFAULT '',
		failed_steps TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_queue (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		booking_id BIGINT NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ,
		next_retry_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_vehicle_id ON bookings(vehicle_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_booking_reason ON ledger_entries(booking_id, reason)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_booking ON booking_audit(booking_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_status ON notification_queue(status, next_retry_at)`,
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
