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

const paymentColumns = "id, customer_id, amount, date, created_at, COALESCE(source, '')"

// validatePayment checks the minimal required shape for a payment write.
func validatePayment(p *models.Payment) error {
	if p == nil {
		return fmt.Errorf("%w: payment is nil", ErrValidation)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: payment id is required", ErrValidation)
	}
	if p.CustomerID == "" {
		return fmt.Errorf("%w: payment customer id is required", ErrValidation)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if p.Date == "" {
		return fmt.Errorf("%w: payment date is required", ErrValidation)
	}
	return nil
}

func scanPayment(scan func(dest ...any) error) (*models.Payment, error) {
	var p models.Payment
	if err := scan(&p.ID, &p.CustomerID, &p.Amount, &p.Date, &p.CreatedAt, &p.Source); err != nil {
		return nil, err
	}
	return &p, nil
}

// insertPaymentTx inserts one payment inside an existing transaction.
func insertPaymentTx(ctx context.Context, tx *sql.Tx, p *models.Payment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, customer_id, amount, date, created_at, source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CustomerID, p.Amount, p.Date, p.CreatedAt, string(p.Source))
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", p.ID, err)
	}
	return nil
}

// settleCustomerTx re-derives a customer's paidAmount, lastPaymentDate,
// and status from the payment set, inside the transaction that mutated
// the payments. This keeps the duplicated state from ever diverging.
func settleCustomerTx(ctx context.Context, tx *sql.Tx, customerID string) error {
	var paid float64
	var lastDate sql.NullString
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0), MAX(date) FROM payments WHERE customer_id = ?", customerID)
	if err := row.Scan(&paid, &lastDate); err != nil {
		return fmt.Errorf("sum payments for customer %s: %w", customerID, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET paid_amount = ?,
			last_payment_date = ?,
			status = CASE WHEN total_amount > 0 AND ? >= total_amount THEN 'completed' ELSE 'active' END
		WHERE id = ?`,
		paid, lastDate.String, paid, customerID)
	if err != nil {
		return fmt.Errorf("settle customer %s: %w", customerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return nil
}

// AddPayment records a payment and settles the owning customer's derived
// fields in the same transaction.
func (s *Store) AddPayment(ctx context.Context, p *models.Payment) error {
	if err := validatePayment(p); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Source == "" {
		p.Source = models.SourceOffline
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertPaymentTx(ctx, tx, p); err != nil {
			return err
		}
		return settleCustomerTx(ctx, tx, p.CustomerID)
	})
}

// DeletePayment removes a payment and reverses its effect on the owning
// customer within one transaction.
func (s *Store) DeletePayment(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var customerID string
		row := tx.QueryRowContext(ctx, "SELECT customer_id FROM payments WHERE id = ?", id)
		if err := row.Scan(&customerID); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: payment %s", ErrNotFound, id)
			}
			return fmt.Errorf("lookup payment %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete payment %s: %w", id, err)
		}
		return settleCustomerTx(ctx, tx, customerID)
	})
}

// queryPayments runs a payment query and scans all rows.
func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]models.Payment, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer closeQuietly(rows)

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// GetPaymentsByCustomer returns a customer's payments sorted by date
// descending (newest first).
func (s *Store) GetPaymentsByCustomer(ctx context.Context, customerID string) ([]models.Payment, error) {
	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE customer_id = ? ORDER BY date DESC, created_at DESC",
		customerID)
}

// GetPaymentsByDateRange returns payments within [from, to], bounds
// inclusive. Dates are calendar-day strings (YYYY-MM-DD).
func (s *Store) GetPaymentsByDateRange(ctx context.Context, from, to string) ([]models.Payment, error) {
	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE date >= ? AND date <= ? ORDER BY date DESC",
		from, to)
}
