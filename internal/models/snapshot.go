// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package models

// SnapshotVersion is the current snapshot schema version. Bump when the
// document shape changes in a way importers must distinguish.
const SnapshotVersion = "2"

// Snapshot is a self-describing, versioned serialization of the entire
// local store. It is the payload for both local file backups and remote
// uploads, and the input to a full restore.
type Snapshot struct {
	Version    string            `json:"version" validate:"required"`
	ExportDate string            `json:"exportDate" validate:"required"`
	Profiles   []Profile         `json:"profiles" validate:"required"`
	Customers  []Customer        `json:"customers" validate:"required"`
	Payments   []Payment         `json:"payments" validate:"required"`
	Metadata   map[string]string `json:"metadata" validate:"required"`
}
