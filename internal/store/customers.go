// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maledger/maledger/internal/models"
)

const customerColumns = `id, profile_id, name, COALESCE(phone, ''), COALESCE(address, ''),
	COALESCE(document_type, ''), COALESCE(document_number, ''), total_amount, installment_amount,
	COALESCE(frequency, ''), paid_amount, COALESCE(last_payment_date, ''), status,
	COALESCE(start_date, ''), COALESCE(end_date, ''), COALESCE(notes, ''), COALESCE(category, ''), created_at`

// validateCustomer checks the minimal required shape for a customer write.
func validateCustomer(c *models.Customer) error {
	if c == nil {
		return fmt.Errorf("%w: customer is nil", ErrValidation)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if c.ProfileID == 0 {
		return fmt.Errorf("%w: customer profile id is required", ErrValidation)
	}
	if c.Frequency != "" && !c.Frequency.Valid() {
		return fmt.Errorf("%w: customer frequency %q", ErrValidation, c.Frequency)
	}
	return nil
}

func scanCustomer(scan func(dest ...any) error) (*models.Customer, error) {
	var c models.Customer
	err := scan(&c.ID, &c.ProfileID, &c.Name, &c.Phone, &c.Address,
		&c.DocumentType, &c.DocumentNumber, &c.TotalAmount, &c.InstallmentAmount,
		&c.Frequency, &c.PaidAmount, &c.LastPaymentDate, &c.Status,
		&c.StartDate, &c.EndDate, &c.Notes, &c.Category, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a new customer. Status is derived from the paid
// and total amounts, never trusted from the caller.
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if err := validateCustomer(c); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.SettleStatus()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return insertCustomerTx(ctx, tx, c)
	})
}

// insertCustomerTx inserts one customer inside an existing transaction.
func insertCustomerTx(ctx context.Context, tx *sql.Tx, c *models.Customer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO customers (id, profile_id, name, phone, address, document_type, document_number,
			total_amount, installment_amount, frequency, paid_amount, last_payment_date, status,
			start_date, end_date, notes, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProfileID, c.Name, c.Phone, c.Address, c.DocumentType, c.DocumentNumber,
		c.TotalAmount, c.InstallmentAmount, string(c.Frequency), c.PaidAmount, c.LastPaymentDate,
		string(c.Status), c.StartDate, c.EndDate, c.Notes, c.Category, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	return nil
}

// GetCustomer returns one customer by id, or ErrNotFound.
func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	row := s.conn.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	c, err := scanCustomer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return c, nil
}

// UpdateCustomer rewrites a customer's descriptive fields and plan. Paid
// amount and status remain derived from the payment set in the same write.
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	if err := validateCustomer(c); err != nil {
		return err
	}
	c.SettleStatus()

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	res, err := s.conn.ExecContext(ctx, `
		UPDATE customers
		SET profile_id = ?, name = ?, phone = ?, address = ?, document_type = ?, document_number = ?,
			total_amount = ?, installment_amount = ?, frequency = ?, paid_amount = ?,
			last_payment_date = ?, status = ?, start_date = ?, end_date = ?, notes = ?, category = ?
		WHERE id = ?`,
		c.ProfileID, c.Name, c.Phone, c.Address, c.DocumentType, c.DocumentNumber,
		c.TotalAmount, c.InstallmentAmount, string(c.Frequency), c.PaidAmount,
		c.LastPaymentDate, string(c.Status), c.StartDate, c.EndDate, c.Notes, c.Category, c.ID)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: customer %s", ErrNotFound, c.ID)
	}
	return nil
}

// DeleteCustomer removes a customer and all of its payments in one
// transaction.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE customer_id = ?", id); err != nil {
			return fmt.Errorf("delete payments for customer %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete customer %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: customer %s", ErrNotFound, id)
		}
		return nil
	})
}

// queryCustomers runs a customer query and scans all rows.
func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]models.Customer, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer closeQuietly(rows)

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// GetCustomersByProfile returns every customer belonging to a profile.
func (s *Store) GetCustomersByProfile(ctx context.Context, profileID int64) ([]models.Customer, error) {
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE profile_id = ? ORDER BY created_at", profileID)
}

// GetActiveCustomersByProfile returns a profile's customers with active
// status, using the compound (profile_id, status) index.
func (s *Store) GetActiveCustomersByProfile(ctx context.Context, profileID int64) ([]models.Customer, error) {
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE profile_id = ? AND status = ? ORDER BY created_at",
		profileID, string(models.StatusActive))
}

// SearchCustomers performs a case-insensitive substring search over
// customer name and phone within one profile.
func (s *Store) SearchCustomers(ctx context.Context, profileID int64, term string) ([]models.Customer, error) {
	pattern := "%" + escapeLike(term) + "%"
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+` FROM customers
		WHERE profile_id = ? AND (name ILIKE ? ESCAPE '\' OR phone ILIKE ? ESCAPE '\')
		ORDER BY name`,
		profileID, pattern, pattern)
}

// escapeLike escapes LIKE wildcards in user-supplied search terms.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// GetOverdueCustomers returns active customers whose days since last
// payment exceed their frequency's grace period plus thresholdDays.
// Customers with no payment yet are measured from their start date.
func (s *Store) GetOverdueCustomers(ctx context.Context, profileID int64, thresholdDays int) ([]models.Customer, error) {
	active, err := s.GetActiveCustomersByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var overdue []models.Customer
	for _, c := range active {
		ref := c.LastPaymentDate
		if ref == "" {
			ref = c.StartDate
		}
		if ref == "" {
			continue
		}
		refDate, err := time.Parse("2006-01-02", ref)
		if err != nil {
			continue
		}
		allowed := c.Frequency.GraceDays() + thresholdDays
		if int(now.Sub(refDate).Hours()/24) > allowed {
			overdue = append(overdue, c)
		}
	}
	return overdue, nil
}

// Cleanup bounds the number of completed customers kept per profile.
// The most recently created keepCompleted customers survive; older ones
// are removed along with their payments, all in one transaction.
func (s *Store) Cleanup(ctx context.Context, profileID int64, keepCompleted int) (removed int, err error) {
	if keepCompleted < 0 {
		return 0, fmt.Errorf("%w: keepCompleted must be >= 0", ErrValidation)
	}

	completed, err := s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE profile_id = ? AND status = ? ORDER BY created_at DESC",
		profileID, string(models.StatusCompleted))
	if err != nil {
		return 0, err
	}
	if len(completed) <= keepCompleted {
		return 0, nil
	}

	stale := completed[keepCompleted:]
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, c := range stale {
			if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE customer_id = ?", c.ID); err != nil {
				return fmt.Errorf("delete payments for customer %s: %w", c.ID, err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", c.ID); err != nil {
				return fmt.Errorf("delete customer %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}
