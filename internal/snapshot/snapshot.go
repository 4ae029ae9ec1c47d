// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package snapshot serializes the entire record store to and from a
// single versioned document.
//
// Export is a pure read. Import validates the document's top-level shape
// (all four sections present) before mutating anything, then replaces the
// store contents in one transaction, so a failed import leaves the store
// in its prior state. The round-trip law Import(Export()) == identity is
// the package's core correctness property.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/maledger/maledger/internal/models"
	"github.com/maledger/maledger/internal/store"
	"github.com/maledger/maledger/internal/validation"
)

// FilePrefix is the local snapshot filename prefix.
const FilePrefix = "maledger-backup"

// ErrBadShape indicates a document failed the top-level shape check and
// the store was not touched.
var ErrBadShape = errors.New("snapshot has invalid shape")

// Engine produces and installs snapshots of one record store.
type Engine struct {
	store *store.Store
}

// NewEngine creates a snapshot engine over the given store.
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Export serializes the complete store state into a snapshot document.
// It performs no writes.
func (e *Engine) Export(ctx context.Context) (*models.Snapshot, error) {
	profiles, customers, payments, meta, err := e.store.ExportAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export store: %w", err)
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return &models.Snapshot{
		Version:    models.SnapshotVersion,
		ExportDate: time.Now().Format(time.RFC3339),
		Profiles:   profiles,
		Customers:  customers,
		Payments:   payments,
		Metadata:   meta,
	}, nil
}

// Import validates the document shape, then replaces the entire store
// contents with the snapshot's records in one transaction.
func (e *Engine) Import(ctx context.Context, snap *models.Snapshot) error {
	if err := ValidateShape(snap); err != nil {
		return err
	}
	if err := e.store.ImportAll(ctx, snap.Profiles, snap.Customers, snap.Payments, snap.Metadata); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

// ValidateShape checks that all four expected sections are present and
// the version tag is set. Nothing is mutated.
func ValidateShape(snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: document is nil", ErrBadShape)
	}
	if err := validation.ValidateStruct(snap); err != nil {
		return fmt.Errorf("%w: %s", ErrBadShape, err.Error())
	}
	if snap.Profiles == nil || snap.Customers == nil || snap.Payments == nil || snap.Metadata == nil {
		return fmt.Errorf("%w: missing section", ErrBadShape)
	}
	return nil
}

// Marshal encodes a snapshot as UTF-8 JSON.
func Marshal(snap *models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Parse decodes and shape-checks a snapshot document.
func Parse(data []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	if err := ValidateShape(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// FileName returns the conventional local snapshot filename for a given
// export date: <prefix>-<ISO date>.json
func FileName(t time.Time) string {
	return fmt.Sprintf("%s-%s.json", FilePrefix, t.Format("2006-01-02"))
}

// WriteFile writes a snapshot to dir using the filename convention and
// returns the full path.
func WriteFile(dir string, snap *models.Snapshot) (string, error) {
	data, err := Marshal(snap)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}
	path := filepath.Join(dir, FileName(time.Now()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot file: %w", err)
	}
	return path, nil
}

// ReadFile loads and shape-checks a snapshot from disk.
func ReadFile(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return Parse(data)
}
