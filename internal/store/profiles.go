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
	"time"

	"github.com/goccy/go-json"

	"github.com/maledger/maledger/internal/models"
)

// validateProfile checks the minimal required shape for a profile write.
func validateProfile(p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrValidation)
	}
	if p.ID == 0 {
		return fmt.Errorf("%w: profile id is required", ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: profile name is required", ErrValidation)
	}
	return nil
}

// CreateProfile inserts a new profile. The creation timestamp is stamped
// when absent and the investment total is recomputed from history.
func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.InvestmentHistory == nil {
		p.InvestmentHistory = []models.InvestmentEntry{}
	}
	p.RecomputeInvestment()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return insertProfileTx(ctx, tx, p)
	})
}

// insertProfileTx inserts one profile inside an existing transaction.
// Shared by CreateProfile and the bulk-import path.
func insertProfileTx(ctx context.Context, tx *sql.Tx, p *models.Profile) error {
	history, err := json.Marshal(p.InvestmentHistory)
	if err != nil {
		return fmt.Errorf("marshal investment history: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (id, name, description, gradient, created_at, total_investment, investment_history)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Gradient, p.CreatedAt, p.TotalInvestment, string(history))
	if err != nil {
		return fmt.Errorf("insert profile %d: %w", p.ID, err)
	}
	return nil
}

// scanProfile reads one profile row, unmarshaling the embedded history.
func scanProfile(scan func(dest ...any) error) (*models.Profile, error) {
	var p models.Profile
	var history string
	if err := scan(&p.ID, &p.Name, &p.Description, &p.Gradient, &p.CreatedAt, &p.TotalInvestment, &history); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(history), &p.InvestmentHistory); err != nil {
		return nil, fmt.Errorf("unmarshal investment history for profile %d: %w", p.ID, err)
	}
	if p.InvestmentHistory == nil {
		p.InvestmentHistory = []models.InvestmentEntry{}
	}
	return &p, nil
}

const profileColumns = "id, name, COALESCE(description, ''), COALESCE(gradient, ''), created_at, total_investment, investment_history"

// GetProfile returns one profile by id, or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	row := s.conn.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	p, err := scanProfile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %d: %w", id, err)
	}
	return p, nil
}

// ListProfiles returns all profiles ordered by creation time.
func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer closeQuietly(rows)

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpdateProfile rewrites a profile. The investment total is always
// recomputed from the embedded history so it can never drift.
func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	p.RecomputeInvestment()

	history, err := json.Marshal(p.InvestmentHistory)
	if err != nil {
		return fmt.Errorf("marshal investment history: %w", err)
	}

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	res, err := s.conn.ExecContext(ctx, `
		UPDATE profiles
		SET name = ?, description = ?, gradient = ?, total_investment = ?, investment_history = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Gradient, p.TotalInvestment, string(history), p.ID)
	if err != nil {
		return fmt.Errorf("update profile %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: profile %d", ErrNotFound, p.ID)
	}
	return nil
}

// DeleteProfile removes a profile. Customers are intentionally not
// cascaded; orphaned customers keep their profile foreign key.
func (s *Store) DeleteProfile(ctx context.Context, id int64) error {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	res, err := s.conn.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: profile %d", ErrNotFound, id)
	}
	return nil
}

// AddInvestmentEntry appends an entry to a profile's history and
// recomputes the total in the same write.
func (s *Store) AddInvestmentEntry(ctx context.Context, profileID int64, entry models.InvestmentEntry) error {
	if entry.ID == "" || entry.Amount <= 0 {
		return fmt.Errorf("%w: investment entry requires id and positive amount", ErrValidation)
	}
	if entry.Type != models.InvestmentInvested && entry.Type != models.InvestmentWithdrawn {
		return fmt.Errorf("%w: investment entry type %q", ErrValidation, entry.Type)
	}

	p, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	p.InvestmentHistory = append(p.InvestmentHistory, entry)
	return s.UpdateProfile(ctx, p)
}

// DeleteInvestmentEntry removes an entry from a profile's history and
// recomputes the total.
func (s *Store) DeleteInvestmentEntry(ctx context.Context, profileID int64, entryID string) error {
	p, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}

	kept := p.InvestmentHistory[:0]
	found := false
	for _, e := range p.InvestmentHistory {
		if e.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fmt.Errorf("%w: investment entry %s", ErrNotFound, entryID)
	}
	p.InvestmentHistory = kept
	return s.UpdateProfile(ctx, p)
}
