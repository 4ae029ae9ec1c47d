// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/models"
	"github.com/maledger/maledger/internal/snapshot"
	"github.com/maledger/maledger/internal/store"
)

// mockProvider is an in-memory Provider keyed by access token.
type mockProvider struct {
	mu sync.Mutex

	infos    map[string]*AccountInfo
	aboutErr map[string]error

	files     []models.RemoteFile
	contents  map[string][]byte
	deleted   []string
	uploads   int
	downloads int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		infos:    make(map[string]*AccountInfo),
		aboutErr: make(map[string]error),
		contents: make(map[string][]byte),
	}
}

func (m *mockProvider) About(_ context.Context, token string) (*AccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.aboutErr[token]; err != nil {
		return nil, err
	}
	info, ok := m.infos[token]
	if !ok {
		return nil, ErrAuth
	}
	return info, nil
}

func (m *mockProvider) Upload(_ context.Context, _, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	id := fmt.Sprintf("file-%d", m.uploads)
	m.files = append(m.files, models.RemoteFile{
		ID: id, Name: name, Size: int64(len(data)), CreatedAt: time.Now(),
	})
	m.contents[id] = data
	return id, nil
}

func (m *mockProvider) List(_ context.Context, _, prefix string) ([]models.RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RemoteFile
	for _, f := range m.files {
		if strings.HasPrefix(f.Name, prefix) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockProvider) Download(_ context.Context, _, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	data, ok := m.contents[fileID]
	if !ok {
		return nil, ErrNetwork
	}
	return data, nil
}

func (m *mockProvider) Delete(_ context.Context, _, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.files[:0]
	for _, f := range m.files {
		if f.ID == fileID {
			m.deleted = append(m.deleted, fileID)
			continue
		}
		kept = append(kept, f)
	}
	m.files = kept
	delete(m.contents, fileID)
	return nil
}

func newTestManager(t *testing.T, provider Provider) (*Manager, *store.Store) {
	t.Helper()

	s, err := store.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "remote.duckdb"),
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	registry, err := NewRegistry(filepath.Join(t.TempDir(), "accounts.json"))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	cfg := &config.BackupConfig{RetainCount: 10}
	tokens := NewTokenManager(&config.OAuthConfig{})
	return NewManager(cfg, registry, provider, tokens, snapshot.NewEngine(s)), s
}

// freshAccount has a token far from expiry so no refresh traffic happens.
func freshAccount(id, email, token string) models.RemoteAccount {
	return models.RemoteAccount{
		ID:          id,
		Email:       email,
		AccessToken: token,
		TokenExpiry: time.Now().Add(time.Hour),
		AddedAt:     time.Now(),
	}
}

func TestSelectAccountPicksMostFree(t *testing.T) {
	provider := newMockProvider()
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	quotas := map[string]int64{"t1": 5, "t2": 100, "t3": 50}
	for token, free := range quotas {
		provider.infos[token] = &AccountInfo{
			Email: token + "@example.com", TotalQuota: 1000, UsedQuota: 1000 - free,
		}
		if err := m.Registry().Add(freshAccount("id-"+token, token+"@example.com", token)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	best, err := m.SelectAccount(ctx)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if best.Email != "t2@example.com" {
		t.Errorf("selected %s, want t2@example.com (most free space)", best.Email)
	}
	// Quota numbers are refreshed from the provider during selection.
	if best.AvailableQuota() != 100 {
		t.Errorf("available = %d, want 100", best.AvailableQuota())
	}
}

func TestSelectAccountSkipsUnusable(t *testing.T) {
	provider := newMockProvider()
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	// No accounts at all.
	if _, err := m.SelectAccount(ctx); !errors.Is(err, ErrNoAccount) {
		t.Errorf("empty registry = %v, want ErrNoAccount", err)
	}

	// One account needing reauth, one full: nothing usable.
	bad := freshAccount("a1", "reauth@example.com", "t1")
	bad.NeedsReauth = true
	if err := m.Registry().Add(bad); err != nil {
		t.Fatalf("add: %v", err)
	}
	provider.infos["t2"] = &AccountInfo{Email: "full@example.com", TotalQuota: 100, UsedQuota: 100}
	if err := m.Registry().Add(freshAccount("a2", "full@example.com", "t2")); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := m.SelectAccount(ctx); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("all unusable = %v, want ErrQuotaExceeded", err)
	}
}

func seedLedger(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateProfile(ctx, &models.Profile{ID: 1, Name: "Shop"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	active := &models.Customer{ID: "open", ProfileID: 1, Name: "Open Debt", TotalAmount: 500}
	done := &models.Customer{ID: "done", ProfileID: 1, Name: "Paid Off", TotalAmount: 100}
	for _, c := range []*models.Customer{active, done} {
		if err := s.CreateCustomer(ctx, c); err != nil {
			t.Fatalf("seed customer: %v", err)
		}
	}
	if err := s.AddPayment(ctx, &models.Payment{ID: "p-open", CustomerID: "open", Amount: 50, Date: "2026-03-01"}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	if err := s.AddPayment(ctx, &models.Payment{ID: "p-done", CustomerID: "done", Amount: 100, Date: "2026-03-02"}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func TestBackupExcludesCompletedCustomers(t *testing.T) {
	provider := newMockProvider()
	m, s := newTestManager(t, provider)
	ctx := context.Background()
	seedLedger(t, s)

	provider.infos["tok"] = &AccountInfo{Email: "dest@example.com", TotalQuota: 1000}
	if err := m.Registry().Add(freshAccount("a1", "dest@example.com", "tok")); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := m.Backup(ctx, "")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.HasPrefix(result.Name, BackupPrefix) {
		t.Errorf("object name %q missing prefix %q", result.Name, BackupPrefix)
	}

	snap, err := snapshot.Parse(provider.contents[result.FileID])
	if err != nil {
		t.Fatalf("parse upload: %v", err)
	}
	if len(snap.Customers) != 1 || snap.Customers[0].ID != "open" {
		t.Errorf("uploaded customers = %+v, want only the active one", snap.Customers)
	}
	for _, p := range snap.Payments {
		if p.CustomerID == "done" {
			t.Error("payments of completed customers must not be uploaded")
		}
	}

	// The local store keeps the completed customer.
	if _, err := s.GetCustomer(ctx, "done"); err != nil {
		t.Errorf("completed customer must survive locally: %v", err)
	}

	acct, _ := m.Registry().Get("a1")
	if acct.LastBackup == nil {
		t.Error("lastBackup not stamped after upload")
	}
}

func TestRetentionKeepsNewestTen(t *testing.T) {
	provider := newMockProvider()
	m, s := newTestManager(t, provider)
	ctx := context.Background()
	seedLedger(t, s)

	provider.infos["tok"] = &AccountInfo{Email: "dest@example.com", TotalQuota: 1000}
	if err := m.Registry().Add(freshAccount("a1", "dest@example.com", "tok")); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Ten prior backups, oldest first.
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("old-%d", i)
		provider.files = append(provider.files, models.RemoteFile{
			ID:        id,
			Name:      fmt.Sprintf("%sprior-%02d.json", BackupPrefix, i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		provider.contents[id] = []byte("{}")
	}

	if _, err := m.Backup(ctx, "a1"); err != nil {
		t.Fatalf("backup: %v", err)
	}

	files, err := m.ListBackups(ctx, "a1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 10 {
		t.Errorf("backups after retention = %d, want 10", len(files))
	}
	if len(provider.deleted) != 1 || provider.deleted[0] != "old-0" {
		t.Errorf("deleted = %v, want exactly the oldest (old-0)", provider.deleted)
	}
	// Newest first ordering from ListBackups.
	for _, f := range files {
		if f.ID == "old-0" {
			t.Error("oldest backup should be gone")
		}
	}
}

func TestRestoreConfirmGate(t *testing.T) {
	provider := newMockProvider()
	m, _ := newTestManager(t, provider)
	ctx := context.Background()

	provider.infos["tok"] = &AccountInfo{Email: "dest@example.com", TotalQuota: 1000}
	if err := m.Registry().Add(freshAccount("a1", "dest@example.com", "tok")); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := m.Restore(ctx, "a1", "whatever", RestoreOptions{})
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Errorf("unconfirmed restore = %v, want ErrConfirmationRequired", err)
	}
	if provider.downloads != 0 {
		t.Error("nothing may be downloaded before confirmation")
	}
}

func TestRestoreReplacesLocalState(t *testing.T) {
	provider := newMockProvider()
	m, s := newTestManager(t, provider)
	ctx := context.Background()
	seedLedger(t, s)

	provider.infos["tok"] = &AccountInfo{Email: "dest@example.com", TotalQuota: 1000}
	if err := m.Registry().Add(freshAccount("a1", "dest@example.com", "tok")); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Upload a backup of the current state, wipe a record locally, then
	// restore: the record comes back.
	result, err := m.Backup(ctx, "a1")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := s.DeleteCustomer(ctx, "open"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := m.Restore(ctx, "a1", result.FileID, RestoreOptions{Confirm: true}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := s.GetCustomer(ctx, "open"); err != nil {
		t.Errorf("customer should be restored: %v", err)
	}
}

func TestBackupNameFormat(t *testing.T) {
	ts := time.Date(2026, 8, 30, 13, 45, 5, 0, time.UTC)
	name := backupName(ts)
	if !strings.HasPrefix(name, "ma-backup-20260830T134505Z-") {
		t.Errorf("backupName = %q", name)
	}
	if !strings.HasSuffix(name, ".json") {
		t.Errorf("backupName = %q, want .json suffix", name)
	}
}
