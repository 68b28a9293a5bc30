// Package postgres implements the repository contracts on PostgreSQL using
// sqlx. Every query runs under its own timeout; lookups that find nothing
// return nil without error.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/kilianp07/energyiot/core/store"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	QueryTimeout    time.Duration `json:"query_timeout"`
	Migrate         bool          `json:"migrate"`
}

// SetDefaults applies pool defaults.
func (c *Config) SetDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.DSN == "" {
		return errors.New("postgres: dsn is required")
	}
	return nil
}

// Store implements store.Store.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// New wraps an open connection.
func New(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

// Open connects, configures the pool and pings the server.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := New(db, cfg.QueryTimeout)
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Schema creates every table used by the store.
const Schema = `
CREATE TABLE IF NOT EXISTS prices (
	slot_start TIMESTAMPTZ PRIMARY KEY,
	value NUMERIC NOT NULL
);
CREATE TABLE IF NOT EXISTS triggers (
	id TEXT PRIMARY KEY,
	cycle TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	definition JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS overrides (
	start_utc TIMESTAMPTZ PRIMARY KEY,
	end_utc TIMESTAMPTZ NOT NULL,
	interval_count INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS lowest_sections (
	reference_slot_start TIMESTAMPTZ PRIMARY KEY,
	average_value NUMERIC NOT NULL,
	interval_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS action_groups (
	id TEXT PRIMARY KEY,
	token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	auth_url TEXT NOT NULL DEFAULT '',
	device_url TEXT NOT NULL DEFAULT '',
	terminal_uuid TEXT NOT NULL DEFAULT '',
	last_updated TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
