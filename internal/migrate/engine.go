// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maledger/maledger/internal/legacy"
	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/metrics"
	"github.com/maledger/maledger/internal/models"
	"github.com/maledger/maledger/internal/store"
)

// State is the migration engine's lifecycle state.
type State string

const (
	StateNotNeeded State = "not_needed"
	StateRunning   State = "running"
	StateDone      State = "done"

	// StateFailed is terminal; the engine never retries automatically
	// and the failure must be surfaced to the user.
	StateFailed State = "failed"
)

// legacyPurgeGrace is how long the legacy flat keys are kept after a
// successful migration before they may be purged.
const legacyPurgeGrace = 7 * 24 * time.Hour

// ErrMigrationFailed wraps any error that aborted a migration run.
var ErrMigrationFailed = errors.New("migration failed")

// Report summarizes one migration run.
type Report struct {
	State             State     `json:"state"`
	ProfilesImported  int       `json:"profilesImported"`
	CustomersImported int       `json:"customersImported"`
	PaymentsImported  int       `json:"paymentsImported"`
	Skipped           int       `json:"skipped"`
	Warnings          []string  `json:"warnings,omitempty"`
	CompletedAt       time.Time `json:"completedAt"`
}

// Engine performs the one-time legacy migration.
type Engine struct {
	legacy *legacy.Store
	store  *store.Store

	mu    sync.Mutex
	state State
}

// NewEngine creates a migration engine over the legacy source and the
// structured destination.
func NewEngine(legacyStore *legacy.Store, recordStore *store.Store) *Engine {
	return &Engine{legacy: legacyStore, store: recordStore, state: StateNotNeeded}
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Needed reports whether a migration must run: the migrated flag is
// absent AND at least one legacy collection key exists. The check is a
// pure function of persisted flags and is idempotent; after a completed
// migration it always returns false.
func (e *Engine) Needed(ctx context.Context) (bool, error) {
	done, err := e.store.GetMeta(ctx, models.MetaMigrationDone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if done == "true" {
		return false, nil
	}
	if e.legacy == nil {
		return false, nil
	}
	return e.legacy.HasAnyCollection()
}

// Run executes the migration. Any failure before the completion flag is
// written aborts the whole run: nothing is flagged, the legacy source is
// untouched, and the returned report carries human-readable warnings.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: already in progress", ErrMigrationFailed)
	}
	e.state = StateRunning
	e.mu.Unlock()

	report, err := e.run(ctx)
	e.mu.Lock()
	if err != nil {
		e.state = StateFailed
	} else {
		// A run that found nothing to migrate stays NOT_NEEDED.
		e.state = report.State
	}
	e.mu.Unlock()
	return report, err
}

func (e *Engine) run(ctx context.Context) (*Report, error) {
	report := &Report{State: StateRunning}

	needed, err := e.Needed(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	if !needed {
		report.State = StateNotNeeded
		return report, nil
	}

	logging.Info().Msg("Legacy migration started")

	// Read and validate the legacy collections. Invalid records are
	// dropped and counted, never coerced into the store.
	profiles, customers, payments, warnings, err := e.readLegacy()
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	report.Warnings = warnings
	report.Skipped = len(warnings)

	// Bulk insert in one transaction.
	if err := e.store.BulkInsert(ctx, profiles, customers, payments); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	// Copy the legacy singleton settings into metadata.
	if err := e.copySettings(ctx); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	// Mark complete with a timestamp and a future purge date for the
	// legacy flat keys.
	now := time.Now()
	if err := e.store.SetMeta(ctx, models.MetaMigrationDone, "true"); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	if err := e.store.SetMeta(ctx, models.MetaMigrationCompletedAt, now.Format(time.RFC3339)); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	if err := e.store.SetMeta(ctx, models.MetaLegacyPurgeAfter, now.Add(legacyPurgeGrace).Format(time.RFC3339)); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	// Make sure at least one profile exists and is current.
	if err := e.EnsureDefaultProfile(ctx); err != nil {
		return report, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	report.State = StateDone
	report.ProfilesImported = len(profiles)
	report.CustomersImported = len(customers)
	report.PaymentsImported = len(payments)
	report.CompletedAt = now

	imported := report.ProfilesImported + report.CustomersImported + report.PaymentsImported
	metrics.MigrationRecords.WithLabelValues("imported").Add(float64(imported))
	metrics.MigrationRecords.WithLabelValues("skipped").Add(float64(report.Skipped))

	logging.Info().
		Int("profiles", report.ProfilesImported).
		Int("customers", report.CustomersImported).
		Int("payments", report.PaymentsImported).
		Int("skipped", report.Skipped).
		Msg("Legacy migration completed")

	return report, nil
}

// readLegacy loads and shape-checks all three legacy collections.
func (e *Engine) readLegacy() ([]models.Profile, []models.Customer, []models.Payment, []string, error) {
	var warnings []string

	readRaw := func(key string) ([]map[string]any, error) {
		data, err := e.legacy.Get(key)
		if errors.Is(err, legacy.ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return decodeCollection(data)
	}

	rawProfiles, err := readRaw(legacy.KeyProfiles)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rawCustomers, err := readRaw(legacy.KeyCustomers)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rawPayments, err := readRaw(legacy.KeyPayments)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	profiles, w := parseProfiles(rawProfiles)
	warnings = append(warnings, w...)
	customers, w := parseCustomers(rawCustomers)
	warnings = append(warnings, w...)
	payments, w := parsePayments(rawPayments)
	warnings = append(warnings, w...)

	customers, w = backfillCustomerProfiles(customers, profiles, e.currentProfilePointer())
	warnings = append(warnings, w...)

	return profiles, customers, payments, warnings, nil
}

// currentProfilePointer reads the legacy current-profile singleton,
// tolerating both bare and quoted numeric blobs. Zero means unknown.
func (e *Engine) currentProfilePointer() int64 {
	data, err := e.legacy.Get(legacy.KeyCurrentProfile)
	if err != nil {
		return 0
	}
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// copySettings moves the legacy singleton blobs into the metadata table.
func (e *Engine) copySettings(ctx context.Context) error {
	pairs := map[string]string{
		legacy.KeyAppSettings:          models.MetaAppSettings,
		legacy.KeyCurrentProfile:       models.MetaCurrentProfile,
		legacy.KeyNotificationSettings: models.MetaNotificationSettings,
	}
	for legacyKey, metaKey := range pairs {
		data, err := e.legacy.Get(legacyKey)
		if errors.Is(err, legacy.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := e.store.SetMeta(ctx, metaKey, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultProfile creates a default profile and points the current
// profile at it if the store has no profiles at all.
func (e *Engine) EnsureDefaultProfile(ctx context.Context) error {
	profiles, err := e.store.ListProfiles(ctx)
	if err != nil {
		return err
	}
	if len(profiles) > 0 {
		return nil
	}

	p := &models.Profile{
		ID:                time.Now().UnixMilli(),
		Name:              "My Business",
		InvestmentHistory: []models.InvestmentEntry{},
	}
	if err := e.store.CreateProfile(ctx, p); err != nil {
		return err
	}
	return e.store.SetMeta(ctx, models.MetaCurrentProfile, fmt.Sprintf("%d", p.ID))
}

// ForceRemigrate explicitly clears the migration flag and empties the
// store, then runs the migration again. This is the only supported way
// to migrate twice.
func (e *Engine) ForceRemigrate(ctx context.Context) (*Report, error) {
	if err := e.store.ClearAll(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	e.mu.Lock()
	e.state = StateNotNeeded
	e.mu.Unlock()
	return e.Run(ctx)
}

// PurgeLegacyIfDue deletes the legacy flat keys once the recorded purge
// date has passed. Safe to call on every startup.
func (e *Engine) PurgeLegacyIfDue(ctx context.Context) error {
	after, err := e.store.GetMeta(ctx, models.MetaLegacyPurgeAfter)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	purgeAt, err := time.Parse(time.RFC3339, after)
	if err != nil {
		return fmt.Errorf("parse purge date: %w", err)
	}
	if time.Now().Before(purgeAt) {
		return nil
	}
	if e.legacy == nil {
		return nil
	}

	if err := e.legacy.PurgeCollections(); err != nil {
		return err
	}
	logging.Info().Msg("Legacy flat keys purged")
	return e.store.DeleteMeta(ctx, models.MetaLegacyPurgeAfter)
}

// NormalizeInvestmentTypes rewrites any legacy RECEIVED investment type
// to WITHDRAWN across all stored profiles. It is deliberately runnable
// outside the migration gate and is idempotent: after the first pass
// there is nothing left to change.
func NormalizeInvestmentTypes(ctx context.Context, s *store.Store) (int, error) {
	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range profiles {
		p := &profiles[i]
		if changed := p.NormalizeInvestmentTypes(); changed > 0 {
			if err := s.UpdateProfile(ctx, p); err != nil {
				return total, err
			}
			total += changed
		}
	}
	if total > 0 {
		logging.Info().Int("entries", total).Msg("Normalized legacy investment types")
	}
	if err := s.SetMeta(ctx, models.MetaInvestmentNormalized, "true"); err != nil {
		return total, err
	}
	return total, nil
}
