// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/metrics"
	"github.com/maledger/maledger/internal/models"
	"github.com/maledger/maledger/internal/snapshot"
)

// BackupPrefix tags every backup object so listings can tell backups
// apart from unrelated files in the same account.
const BackupPrefix = "ma-backup-"

// RestoreOptions guards the destructive restore path.
type RestoreOptions struct {
	// Confirm must be set by the caller; restoring replaces the entire
	// local store.
	Confirm bool
}

// BackupResult describes one completed upload.
type BackupResult struct {
	AccountID string    `json:"accountId"`
	FileID    string    `json:"fileId"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager owns the account registry and orchestrates snapshot uploads,
// listings, restores, and retention across remote accounts.
type Manager struct {
	cfg      *config.BackupConfig
	registry *Registry
	provider Provider
	tokens   *TokenManager
	engine   *snapshot.Engine

	// backupMu serializes uploads; concurrent backups of the same store
	// would waste quota and race on retention.
	backupMu sync.Mutex
}

// NewManager wires the backup manager.
func NewManager(cfg *config.BackupConfig, registry *Registry, provider Provider, tokens *TokenManager, engine *snapshot.Engine) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: registry,
		provider: provider,
		tokens:   tokens,
		engine:   engine,
	}
}

// Registry exposes the account registry for read paths.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// AddAccountFromCode completes an authorization hand-off: exchanges the
// code, asks the provider who the account is, and registers it.
func (m *Manager) AddAccountFromCode(ctx context.Context, code string) (*models.RemoteAccount, error) {
	tok, err := m.tokens.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := m.provider.About(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	acct := models.RemoteAccount{
		ID:           uuid.NewString(),
		Email:        info.Email,
		DisplayName:  info.DisplayName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry,
		UsedQuota:    info.UsedQuota,
		TotalQuota:   info.TotalQuota,
		AddedAt:      time.Now(),
	}
	if err := m.registry.Add(acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// authorize refreshes the account's token when needed and persists any
// change, including the needs-reauth mark on failure.
func (m *Manager) authorize(ctx context.Context, acct *models.RemoteAccount) error {
	changed, err := m.tokens.EnsureFresh(ctx, acct)
	if changed {
		if saveErr := m.registry.Update(acct); saveErr != nil {
			logging.Warn().Err(saveErr).Str("email", acct.Email).Msg("Failed to persist refreshed token")
		}
	}
	return err
}

// SelectAccount picks the destination with the greatest available quota
// (total minus used), recomputed fresh from the provider on every call.
// Accounts needing re-authorization or without usable space are skipped.
func (m *Manager) SelectAccount(ctx context.Context) (*models.RemoteAccount, error) {
	accounts := m.registry.List()
	if len(accounts) == 0 {
		return nil, ErrNoAccount
	}

	var best *models.RemoteAccount
	var bestFree int64 = -1
	usable := 0

	for i := range accounts {
		acct := &accounts[i]
		if acct.NeedsReauth {
			continue
		}
		if err := m.authorize(ctx, acct); err != nil {
			continue
		}
		info, err := m.provider.About(ctx, acct.AccessToken)
		if err != nil {
			logging.Warn().Str("email", acct.Email).Err(err).Msg("Quota check failed, skipping account")
			continue
		}
		acct.UsedQuota = info.UsedQuota
		acct.TotalQuota = info.TotalQuota
		if err := m.registry.Update(acct); err != nil {
			logging.Warn().Err(err).Str("email", acct.Email).Msg("Failed to persist quota update")
		}

		free := acct.AvailableQuota()
		if free <= 0 {
			continue
		}
		usable++
		if free > bestFree {
			bestFree = free
			chosen := *acct
			best = &chosen
		}
	}

	if best == nil {
		if usable == 0 && len(accounts) > 0 {
			return nil, fmt.Errorf("%w: no account has available space", ErrQuotaExceeded)
		}
		return nil, ErrNoAccount
	}
	return best, nil
}

// backupName builds a unique remote object name carrying the backup
// prefix and export time.
func backupName(t time.Time) string {
	return fmt.Sprintf("%s%s-%s.json", BackupPrefix, t.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

// Backup exports a snapshot, uploads it to the given account (or the
// best available one when accountID is empty), stamps lastBackup, and
// enforces retention. Completed customers and their payments are left
// out of the upload; finished history is backup-optional and the space
// savings are significant on free-tier accounts.
func (m *Manager) Backup(ctx context.Context, accountID string) (*BackupResult, error) {
	m.backupMu.Lock()
	defer m.backupMu.Unlock()

	result, err := m.backup(ctx, accountID)
	if err != nil {
		metrics.BackupAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.BackupAttempts.WithLabelValues("success").Inc()
	return result, nil
}

func (m *Manager) backup(ctx context.Context, accountID string) (*BackupResult, error) {
	var acct *models.RemoteAccount
	var err error
	if accountID == "" {
		acct, err = m.SelectAccount(ctx)
	} else {
		acct, err = m.registry.Get(accountID)
	}
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, acct); err != nil {
		return nil, err
	}

	snap, err := m.engine.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	filterCompleted(snap)

	data, err := snapshot.Marshal(snap)
	if err != nil {
		return nil, err
	}

	name := backupName(time.Now())
	fileID, err := m.provider.Upload(ctx, acct.AccessToken, name, data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	acct.LastBackup = &now
	if err := m.registry.Update(acct); err != nil {
		logging.Warn().Err(err).Str("email", acct.Email).Msg("Failed to persist lastBackup")
	}
	metrics.BackupBytes.Observe(float64(len(data)))

	logging.Info().
		Str("account", acct.Email).
		Str("object", name).
		Int("bytes", len(data)).
		Msg("Backup uploaded")

	// Retention is intentionally after the upload; a crash in between
	// leaves a stray object that the next successful run cleans up.
	if err := m.enforceRetention(ctx, acct); err != nil {
		logging.Warn().Err(err).Str("email", acct.Email).Msg("Retention enforcement failed")
	}

	return &BackupResult{
		AccountID: acct.ID,
		FileID:    fileID,
		Name:      name,
		Size:      int64(len(data)),
		CreatedAt: now,
	}, nil
}

// filterCompleted drops completed customers and their payments from a
// snapshot bound for upload.
func filterCompleted(snap *models.Snapshot) {
	completed := make(map[string]bool)
	kept := snap.Customers[:0]
	for _, c := range snap.Customers {
		if c.Status == models.StatusCompleted {
			completed[c.ID] = true
			continue
		}
		kept = append(kept, c)
	}
	snap.Customers = kept

	keptPayments := snap.Payments[:0]
	for _, p := range snap.Payments {
		if completed[p.CustomerID] {
			continue
		}
		keptPayments = append(keptPayments, p)
	}
	snap.Payments = keptPayments
}

// ListBackups enumerates one account's backup objects, newest first.
func (m *Manager) ListBackups(ctx context.Context, accountID string) ([]models.RemoteFile, error) {
	acct, err := m.registry.Get(accountID)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, acct); err != nil {
		return nil, err
	}

	files, err := m.provider.List(ctx, acct.AccessToken, BackupPrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// Restore downloads one backup object and installs it as the new local
// state. This replaces everything; the caller must confirm explicitly.
func (m *Manager) Restore(ctx context.Context, accountID, fileID string, opts RestoreOptions) error {
	if !opts.Confirm {
		return ErrConfirmationRequired
	}

	err := m.restore(ctx, accountID, fileID)
	if err != nil {
		metrics.RestoreAttempts.WithLabelValues("failure").Inc()
		return err
	}
	metrics.RestoreAttempts.WithLabelValues("success").Inc()
	return nil
}

func (m *Manager) restore(ctx context.Context, accountID, fileID string) error {
	acct, err := m.registry.Get(accountID)
	if err != nil {
		return err
	}
	if err := m.authorize(ctx, acct); err != nil {
		return err
	}

	data, err := m.provider.Download(ctx, acct.AccessToken, fileID)
	if err != nil {
		return err
	}

	snap, err := snapshot.Parse(data)
	if err != nil {
		return err
	}
	if err := m.engine.Import(ctx, snap); err != nil {
		return err
	}

	logging.Info().Str("account", acct.Email).Str("file", fileID).Msg("Restore completed")
	return nil
}

// enforceRetention deletes backups beyond the configured count for one
// account, oldest first.
func (m *Manager) enforceRetention(ctx context.Context, acct *models.RemoteAccount) error {
	files, err := m.provider.List(ctx, acct.AccessToken, BackupPrefix)
	if err != nil {
		return err
	}
	if len(files) <= m.cfg.RetainCount {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})

	for _, stale := range files[m.cfg.RetainCount:] {
		if err := m.provider.Delete(ctx, acct.AccessToken, stale.ID); err != nil {
			return fmt.Errorf("delete stale backup %s: %w", stale.Name, err)
		}
		metrics.RetentionDeletes.Inc()
		logging.Info().Str("object", stale.Name).Msg("Stale backup removed by retention")
	}
	return nil
}
