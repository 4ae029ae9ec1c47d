// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/logging"
)

// defaultOpTimeout bounds store operations when the caller passes a
// context without a deadline.
const defaultOpTimeout = 30 * time.Second

// Store wraps the DuckDB connection and provides data access methods.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database, creates the schema if missing, and returns a
// ready Store.
func New(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	// 0750 per gosec G301.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}

	if err := s.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Record store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.cfg.Path
}

// SizeBytes returns the on-disk size of the database file. Used by the
// backup scheduler's high-water-mark trigger.
func (s *Store) SizeBytes() (int64, error) {
	info, err := os.Stat(s.cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("stat database file: %w", err)
	}
	return info.Size(), nil
}

// ensureContext returns ctx with a default timeout applied when the
// caller did not set a deadline.
func (s *Store) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultOpTimeout)
}

// WithTx runs fn inside a transaction. Any error from fn rolls back every
// statement in the batch and surfaces as ErrTransaction; on success the
// transaction is committed.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransaction, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn().Err(rbErr).Msg("Rollback failed after transaction error")
		}
		return fmt.Errorf("%w: %w", ErrTransaction, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransaction, err)
	}
	return nil
}

// createSchema creates the core tables and indexes.
func (s *Store) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			gradient TEXT,
			created_at TIMESTAMP NOT NULL,
			total_investment DOUBLE NOT NULL DEFAULT 0,
			investment_history TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			profile_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			address TEXT,
			document_type TEXT,
			document_number TEXT,
			total_amount DOUBLE NOT NULL DEFAULT 0,
			installment_amount DOUBLE NOT NULL DEFAULT 0,
			frequency TEXT,
			paid_amount DOUBLE NOT NULL DEFAULT 0,
			last_payment_date TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			start_date TEXT,
			end_date TEXT,
			notes TEXT,
			category TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			amount DOUBLE NOT NULL,
			date TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			source TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_profile_status ON customers(profile_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_customer_date ON payments(customer_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(date)`,
	}

	for _, query := range queries {
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// GetRecordCounts returns the row counts of the three main tables.
func (s *Store) GetRecordCounts(ctx context.Context) (profiles, customers, payments int64, err error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	row := s.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM profiles),
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM payments)`)
	if err = row.Scan(&profiles, &customers, &payments); err != nil {
		return 0, 0, 0, fmt.Errorf("count records: %w", err)
	}
	return profiles, customers, payments, nil
}

// ClearAll removes every record from every table in one transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"payments", "customers", "profiles", "metadata"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
