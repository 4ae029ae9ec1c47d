// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/legacy"
	"github.com/maledger/maledger/internal/models"
	"github.com/maledger/maledger/internal/store"
)

func newTestStores(t *testing.T) (*legacy.Store, *store.Store) {
	t.Helper()

	ls, err := legacy.Open(filepath.Join(t.TempDir(), "legacy"))
	if err != nil {
		t.Fatalf("open legacy store: %v", err)
	}
	t.Cleanup(func() { _ = ls.Close() })

	rs, err := store.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "records.duckdb"),
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("open record store: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })

	return ls, rs
}

func seedLegacy(t *testing.T, ls *legacy.Store, key, payload string) {
	t.Helper()
	if err := ls.Set(key, []byte(payload)); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func TestMigrationHappyPath(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	seedLegacy(t, ls, legacy.KeyProfiles,
		`[{"id": 10, "name": "Shop", "investmentHistory": []}]`)
	seedLegacy(t, ls, legacy.KeyCustomers,
		`[{"id": "c1", "profileId": 10, "name": "Ana", "totalAmount": 500, "paidAmount": 100}]`)
	seedLegacy(t, ls, legacy.KeyPayments,
		`[{"id": "p1", "customerId": "c1", "amount": 100, "date": "2026-01-15"}]`)
	seedLegacy(t, ls, legacy.KeyCurrentProfile, `10`)

	e := NewEngine(ls, rs)

	needed, err := e.Needed(ctx)
	if err != nil {
		t.Fatalf("needed: %v", err)
	}
	if !needed {
		t.Fatal("migration should be needed with legacy collections present")
	}

	report, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ProfilesImported != 1 || report.CustomersImported != 1 || report.PaymentsImported != 1 {
		t.Errorf("imported %d/%d/%d, want 1/1/1",
			report.ProfilesImported, report.CustomersImported, report.PaymentsImported)
	}
	if report.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", report.Skipped)
	}

	// The migrated profile is the only profile; no extra default profile
	// is created when data came over.
	profiles, err := rs.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != 10 {
		t.Errorf("profiles = %+v, want exactly the migrated one", profiles)
	}

	// Settings copied into metadata.
	if v, err := rs.GetMeta(ctx, models.MetaCurrentProfile); err != nil || v != "10" {
		t.Errorf("currentProfile meta = %q/%v, want 10", v, err)
	}

	// Completion flag written; a second check reports not needed even
	// though the legacy keys still exist.
	needed, err = e.Needed(ctx)
	if err != nil {
		t.Fatalf("needed after run: %v", err)
	}
	if needed {
		t.Error("migration should not be needed after completion")
	}
	if has, _ := ls.HasAnyCollection(); !has {
		t.Error("legacy keys should survive until the purge window passes")
	}
}

func TestMigrationMinimalLegacySet(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	// A bare legacy export: numeric ids, a customer with no profileId,
	// no settings blobs. Everything repairable must come over.
	seedLegacy(t, ls, legacy.KeyProfiles, `[{"id": 1, "name": "X"}]`)
	seedLegacy(t, ls, legacy.KeyCustomers, `[{"id": 10, "name": "A", "phone": "1"}]`)
	seedLegacy(t, ls, legacy.KeyPayments, `[{"id": 100, "customerId": 10, "amount": 50}]`)

	e := NewEngine(ls, rs)
	report, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ProfilesImported != 1 || report.CustomersImported != 1 || report.PaymentsImported != 1 {
		t.Errorf("imported %d/%d/%d, want 1/1/1",
			report.ProfilesImported, report.CustomersImported, report.PaymentsImported)
	}
	if report.Skipped != 0 {
		t.Errorf("skipped = %d, want 0: %v", report.Skipped, report.Warnings)
	}
	if done, err := rs.GetMeta(ctx, models.MetaMigrationDone); err != nil || done != "true" {
		t.Errorf("migration flag = %q/%v, want true", done, err)
	}

	// The orphan customer was attached to the sole migrated profile, and
	// no extra default profile appeared.
	profiles, err := rs.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != 1 {
		t.Errorf("profiles = %+v, want exactly the migrated one", profiles)
	}
	c, err := rs.GetCustomer(ctx, "10")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if c.ProfileID != 1 {
		t.Errorf("customer ProfileID = %d, want 1", c.ProfileID)
	}
}

func TestMigrationAttachesOrphansToCurrentProfile(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	seedLegacy(t, ls, legacy.KeyProfiles,
		`[{"id": 1, "name": "First"}, {"id": 2, "name": "Second"}]`)
	seedLegacy(t, ls, legacy.KeyCustomers, `[{"id": "c1", "name": "Ana"}]`)
	seedLegacy(t, ls, legacy.KeyCurrentProfile, `"2"`)

	e := NewEngine(ls, rs)
	report, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.CustomersImported != 1 || report.Skipped != 0 {
		t.Fatalf("imported %d skipped %d: %v", report.CustomersImported, report.Skipped, report.Warnings)
	}

	c, err := rs.GetCustomer(ctx, "c1")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if c.ProfileID != 2 {
		t.Errorf("customer ProfileID = %d, want the current profile 2", c.ProfileID)
	}
}

func TestMigrationDropsUnplaceableOrphan(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	// Two profiles and no current-profile pointer: there is no safe
	// default, so the orphan is dropped and counted, not aborted on.
	seedLegacy(t, ls, legacy.KeyProfiles,
		`[{"id": 1, "name": "First"}, {"id": 2, "name": "Second"}]`)
	seedLegacy(t, ls, legacy.KeyCustomers,
		`[{"id": "c1", "name": "Ana"}, {"id": "c2", "profileId": 1, "name": "Bo"}]`)

	e := NewEngine(ls, rs)
	report, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.CustomersImported != 1 {
		t.Errorf("customers imported = %d, want 1", report.CustomersImported)
	}
	if report.Skipped != 1 || len(report.Warnings) != 1 {
		t.Errorf("skipped = %d warnings = %v, want the orphan counted", report.Skipped, report.Warnings)
	}
}

func TestRunWhenNotNeededKeepsState(t *testing.T) {
	_, rs := newTestStores(t)
	ctx := context.Background()

	e := NewEngine(nil, rs)
	report, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.State != StateNotNeeded {
		t.Errorf("report state = %q, want %q", report.State, StateNotNeeded)
	}
	if got := e.State(); got != StateNotNeeded {
		t.Errorf("engine state = %q, want %q", got, StateNotNeeded)
	}
}

func TestMigrationDropsInvalidRecords(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	seedLegacy(t, ls, legacy.KeyProfiles,
		`[{"id": 1, "name": "Shop"}, {"name": "no id"}]`)
	seedLegacy(t, ls, legacy.KeyCustomers,
		`[{"id": "c1", "profileId": 1, "name": "Ana"},
		  {"id": "c2", "profileId": 1},
		  {"profileId": 1, "name": "no id"}]`)
	seedLegacy(t, ls, legacy.KeyPayments,
		`[{"id": "p1", "customerId": "c1", "amount": 50, "date": "2026-02-01"},
		  {"id": "p2", "customerId": "c1", "amount": -5, "date": "2026-02-02"}]`)

	e := NewEngine(ls, rs)
	report, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.ProfilesImported != 1 || report.CustomersImported != 1 || report.PaymentsImported != 1 {
		t.Errorf("imported %d/%d/%d, want 1/1/1",
			report.ProfilesImported, report.CustomersImported, report.PaymentsImported)
	}
	if report.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", report.Skipped)
	}
	if len(report.Warnings) != 3 {
		t.Errorf("warnings = %d, want 3", len(report.Warnings))
	}
}

func TestMigrationNormalizesInvestmentTypes(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	seedLegacy(t, ls, legacy.KeyProfiles,
		`[{"id": 1, "name": "Shop", "investmentHistory": [
			{"id": "e1", "amount": 1000, "date": "2026-01-01", "type": "INVESTED"},
			{"id": "e2", "amount": 400, "date": "2026-01-10", "type": "RECEIVED"}
		]}]`)

	e := NewEngine(ls, rs)
	if _, err := e.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	p, err := rs.GetProfile(ctx, 1)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	for _, entry := range p.InvestmentHistory {
		if entry.Type == models.LegacyInvestmentReceived {
			t.Errorf("entry %s kept legacy RECEIVED type", entry.ID)
		}
	}
	if p.TotalInvestment != 600 {
		t.Errorf("TotalInvestment = %v, want 600", p.TotalInvestment)
	}

	// The standalone pass finds nothing left to change.
	changed, err := NormalizeInvestmentTypes(ctx, rs)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if changed != 0 {
		t.Errorf("normalize changed %d entries after migration, want 0", changed)
	}
}

func TestMigrationEmptyLegacyCreatesDefaultProfile(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	e := NewEngine(ls, rs)

	needed, err := e.Needed(ctx)
	if err != nil {
		t.Fatalf("needed: %v", err)
	}
	if needed {
		t.Fatal("empty legacy store should not need migration")
	}

	if err := e.EnsureDefaultProfile(ctx); err != nil {
		t.Fatalf("ensure default: %v", err)
	}
	profiles, err := rs.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "My Business" {
		t.Errorf("profiles = %+v, want one default", profiles)
	}
	if v, err := rs.GetMeta(ctx, models.MetaCurrentProfile); err != nil || v == "" {
		t.Errorf("currentProfile meta = %q/%v, want the default profile id", v, err)
	}

	// A second call must not create a second profile.
	if err := e.EnsureDefaultProfile(ctx); err != nil {
		t.Fatalf("ensure default again: %v", err)
	}
	profiles, _ = rs.ListProfiles(ctx)
	if len(profiles) != 1 {
		t.Errorf("profiles after second ensure = %d, want 1", len(profiles))
	}
}

func TestForceRemigrate(t *testing.T) {
	ls, rs := newTestStores(t)
	ctx := context.Background()

	seedLegacy(t, ls, legacy.KeyProfiles, `[{"id": 1, "name": "Shop"}]`)

	e := NewEngine(ls, rs)
	if _, err := e.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Mutate the store, then force: the mutation must be gone.
	if err := rs.CreateProfile(ctx, &models.Profile{ID: 99, Name: "Stray"}); err != nil {
		t.Fatalf("create stray: %v", err)
	}

	report, err := e.ForceRemigrate(ctx)
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if report.ProfilesImported != 1 {
		t.Errorf("profiles imported = %d, want 1", report.ProfilesImported)
	}
	profiles, err := rs.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != 1 {
		t.Errorf("profiles after force = %+v, want only the migrated one", profiles)
	}
}
