// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maledger/maledger/internal/models"
)

// ExportAll reads the complete store contents. It is a pure read with no
// side effects; the result feeds the snapshot engine.
func (s *Store) ExportAll(ctx context.Context) ([]models.Profile, []models.Customer, []models.Payment, map[string]string, error) {
	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	customers, err := s.queryCustomers(ctx, "SELECT "+customerColumns+" FROM customers ORDER BY created_at")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	payments, err := s.queryPayments(ctx, "SELECT "+paymentColumns+" FROM payments ORDER BY created_at")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	meta, err := s.AllMeta(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return profiles, customers, payments, meta, nil
}

// validateImport checks the minimal required-field shape of every record
// before any mutation happens. A single malformed record rejects the
// whole import.
func validateImport(profiles []models.Profile, customers []models.Customer, payments []models.Payment) error {
	for i := range profiles {
		if err := validateProfile(&profiles[i]); err != nil {
			return err
		}
	}
	for i := range customers {
		if err := validateCustomer(&customers[i]); err != nil {
			return err
		}
	}
	for i := range payments {
		if err := validatePayment(&payments[i]); err != nil {
			return err
		}
	}
	return nil
}

// bulkInsertTx inserts all records inside an existing transaction,
// stamping missing creation timestamps.
func bulkInsertTx(ctx context.Context, tx *sql.Tx, profiles []models.Profile, customers []models.Customer, payments []models.Payment) error {
	now := time.Now()
	for i := range profiles {
		p := &profiles[i]
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.InvestmentHistory == nil {
			p.InvestmentHistory = []models.InvestmentEntry{}
		}
		if err := insertProfileTx(ctx, tx, p); err != nil {
			return err
		}
	}
	for i := range customers {
		c := &customers[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.SettleStatus()
		if err := insertCustomerTx(ctx, tx, c); err != nil {
			return err
		}
	}
	for i := range payments {
		p := &payments[i]
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if err := insertPaymentTx(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

// BulkInsert validates and inserts a batch of records in one transaction
// without clearing existing data. Used by the migration engine.
func (s *Store) BulkInsert(ctx context.Context, profiles []models.Profile, customers []models.Customer, payments []models.Payment) error {
	if err := validateImport(profiles, customers, payments); err != nil {
		return err
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return bulkInsertTx(ctx, tx, profiles, customers, payments)
	})
}

// ImportAll replaces the entire store contents with the given records.
// Shape validation happens before any mutation; the wipe and the bulk
// insert share one transaction, so a failed import leaves the store in
// its prior state.
func (s *Store) ImportAll(ctx context.Context, profiles []models.Profile, customers []models.Customer, payments []models.Payment, meta map[string]string) error {
	if err := validateImport(profiles, customers, payments); err != nil {
		return err
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"payments", "customers", "profiles", "metadata"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if err := bulkInsertTx(ctx, tx, profiles, customers, payments); err != nil {
			return err
		}
		now := time.Now()
		for k, v := range meta {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)", k, v, now); err != nil {
				return fmt.Errorf("insert metadata %s: %w", k, err)
			}
		}
		return nil
	})
}
