/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time checks: *Service must satisfy store.RentalStore and *Queries store.Queries.
var (
	_ store.RentalStore         = (*Service)(nil)
	_ store.Queries             = (*Queries)(nil)
	_ store.PrerequisiteChecker = (*Service)(nil)
	_ store.PointsAwarder       = (*Service)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs every statement against either the pool or one transaction.
type Queries struct {
	db querier
}

type Service struct {
	*Queries
	db *sql.DB
}

// dsn builds the SQLite connection string. Write transactions take the
// database lock at BEGIN so concurrent writers queue on busy_timeout instead
// of failing on lock upgrade.
func dsn(cfg models.DatabaseConfig) string {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	return fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		cfg.Path, busy.Milliseconds())
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{Queries: &Queries{db: db}, db: db}
	if err := service.initSchema(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if err := initLedgerSchema(ctx, db); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("unable to initialize ledger schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// RunInTx runs fn inside one write transaction and commits only if fn succeeds.
func (s *Service) RunInTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'USER',
		active BOOLEAN NOT NULL DEFAULT 1,
		profile_complete BOOLEAN NOT NULL DEFAULT 0,
		kyc_verified BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	CREATE TABLE IF NOT EXISTS stations (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ONLINE',
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		last_heartbeat_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		station_id TEXT NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
		slot_number INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'AVAILABLE',
		battery_level INTEGER NOT NULL DEFAULT 0,
		current_rental_id TEXT,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(station_id, slot_number)
	);

	CREATE TABLE IF NOT EXISTS power_banks (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'AVAILABLE',
		battery_level INTEGER NOT NULL DEFAULT 0,
		current_station_id TEXT REFERENCES stations(id),
		current_slot_id TEXT REFERENCES slots(id),
		updated_at TIMESTAMP NOT NULL
	);
	-- One power bank per slot
	CREATE UNIQUE INDEX IF NOT EXISTS idx_power_banks_slot ON power_banks(current_slot_id) WHERE current_slot_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS rental_packages (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		price TEXT NOT NULL,
		payment_model TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rentals (
		id TEXT PRIMARY KEY,
		rental_code TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		station_id TEXT NOT NULL REFERENCES stations(id),
		slot_id TEXT NOT NULL REFERENCES slots(id),
		package_id TEXT NOT NULL REFERENCES rental_packages(id),
		power_bank_id TEXT NOT NULL REFERENCES power_banks(id),
		return_station_id TEXT REFERENCES stations(id),
		return_slot_id TEXT REFERENCES slots(id),
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		due_at TIMESTAMP NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		overdue_amount TEXT NOT NULL DEFAULT '0',
		amount_due TEXT NOT NULL DEFAULT '0',
		is_returned_on_time BOOLEAN,
		reminder_at TIMESTAMP NOT NULL,
		reminder_sent BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	-- One pending or active rental per user, one open rental per power bank
	DROP INDEX IF EXISTS idx_rentals_open_user;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rentals_current_user ON rentals(user_id) WHERE status IN ('PENDING', 'ACTIVE');
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rentals_open_power_bank ON rentals(power_bank_id) WHERE status IN ('PENDING', 'ACTIVE', 'OVERDUE');
	CREATE INDEX IF NOT EXISTS idx_rentals_user_created ON rentals(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_rentals_status_due ON rentals(status, due_at);
	CREATE INDEX IF NOT EXISTS idx_rentals_package ON rentals(package_id);

	CREATE TABLE IF NOT EXISTS rental_extensions (
		id TEXT PRIMARY KEY,
		rental_id TEXT NOT NULL REFERENCES rentals(id),
		package_id TEXT NOT NULL REFERENCES rental_packages(id),
		extension_minutes INTEGER NOT NULL,
		price TEXT NOT NULL,
		points_used INTEGER NOT NULL DEFAULT 0,
		wallet_amount TEXT NOT NULL DEFAULT '0',
		previous_due_at TIMESTAMP NOT NULL,
		new_due_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rental_extensions_rental ON rental_extensions(rental_id);

	CREATE TABLE IF NOT EXISTS rental_issues (
		id TEXT PRIMARY KEY,
		rental_id TEXT NOT NULL REFERENCES rentals(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		issue_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'OPEN',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rental_locations (
		id TEXT PRIMARY KEY,
		rental_id TEXT NOT NULL REFERENCES rentals(id),
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		accuracy REAL NOT NULL DEFAULT 0,
		recorded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rental_locations_rental ON rental_locations(rental_id, recorded_at);

	CREATE TABLE IF NOT EXISTS late_fee_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fee_type TEXT NOT NULL,
		multiplier TEXT NOT NULL DEFAULT '0',
		flat_rate_per_hour TEXT NOT NULL DEFAULT '0',
		grace_period_minutes INTEGER NOT NULL DEFAULT 0,
		max_daily_rate TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	-- At most one active configuration
	CREATE UNIQUE INDEX IF NOT EXISTS idx_late_fee_configs_active ON late_fee_configs(is_active) WHERE is_active = 1;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
