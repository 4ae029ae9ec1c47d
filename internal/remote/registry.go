// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/models"
)

// Registry is the persistent list of authorized remote accounts. All
// account state is mutated through the registry; the file on disk is
// rewritten on every change.
type Registry struct {
	path string

	mu       sync.RWMutex
	accounts []models.RemoteAccount
}

// registryFile is the on-disk shape of the registry.
type registryFile struct {
	Accounts []models.RemoteAccount `json:"accounts"`
}

// NewRegistry loads the registry from path, starting empty when the file
// does not exist yet.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}

	data, err := os.ReadFile(path) //nolint:gosec // Path comes from config
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read account registry: %w", err)
	}

	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse account registry: %w", err)
	}
	r.accounts = f.Accounts
	return r, nil
}

// saveLocked writes the registry to disk. Must be called with mu held.
func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(registryFile{Accounts: r.accounts}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal account registry: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create registry directory: %w", err)
		}
	}
	// Tokens are stored in this file; keep it owner-only.
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write account registry: %w", err)
	}
	return nil
}

// Add registers a new account. Accounts are unique by email
// (case-insensitive); duplicates are rejected.
func (r *Registry) Add(acct models.RemoteAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, acct.Email) {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, acct.Email)
		}
	}
	r.accounts = append(r.accounts, acct)
	if err := r.saveLocked(); err != nil {
		r.accounts = r.accounts[:len(r.accounts)-1]
		return err
	}
	logging.Info().Str("email", acct.Email).Msg("Remote account registered")
	return nil
}

// Remove drops an account from the registry. This is a pure filter of
// local state; remote backup files are never deleted.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.accounts[:0]
	found := false
	for _, a := range r.accounts {
		if a.ID == id {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	r.accounts = kept
	return r.saveLocked()
}

// Get returns a copy of one account by id.
func (r *Registry) Get(id string) (*models.RemoteAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if a.ID == id {
			acct := a
			return &acct, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}

// List returns a copy of all registered accounts.
func (r *Registry) List() []models.RemoteAccount {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RemoteAccount, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Update rewrites a stored account (token state, quota, last backup).
func (r *Registry) Update(acct *models.RemoteAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range r.accounts {
		if a.ID == acct.ID {
			r.accounts[i] = *acct
			return r.saveLocked()
		}
	}
	return fmt.Errorf("%w: %s", ErrAccountNotFound, acct.ID)
}
