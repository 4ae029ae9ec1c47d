// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package migrate upgrades the legacy flat key-value store into the
// structured record store, exactly once.
//
// The engine is a small state machine (NotNeeded, Running, Done, Failed).
// Migration is needed iff the "migrated" flag is absent AND at least one
// legacy collection key exists; the check is a pure function of persisted
// flags and stays false forever after a completed migration.
//
// Legacy records are duck-typed JSON. Each entity passes an explicit
// shape check before any field is trusted: records missing identity
// fields (profile id/name, customer id/name, payment id/customerId/
// amount) are dropped and counted in the warning report; records with
// identity intact but optional fields missing are repaired with safe
// defaults. Validated records are bulk-inserted in one transaction, so a
// failure anywhere aborts the whole migration with no flag set and the
// legacy source untouched.
package migrate
