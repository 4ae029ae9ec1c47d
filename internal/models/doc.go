// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package models defines the core domain entities shared across the
// application: profiles, customers, payments, metadata entries, remote
// backup accounts, and the portable snapshot document.
//
// Entities carry both json tags (wire/snapshot format) and validate tags
// (go-playground/validator, applied at API and import boundaries). The
// invariant helpers (Profile.RecomputeInvestment, Customer.SettleStatus)
// are the single source of truth for derived fields; callers must never
// hand-compute totalInvestment or status.
package models
