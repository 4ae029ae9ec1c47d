// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package store implements the persistent record store on DuckDB.
//
// The store owns the schema for profiles, customers, payments, and the
// generic metadata table, exposes per-entity CRUD and compound-key
// lookups, and provides a transaction primitive (WithTx) guaranteeing
// that multi-table writes apply atomically or not at all.
//
// Consistency responsibilities:
//   - The payment write path (AddPayment/DeletePayment) derives the owning
//     customer's paidAmount, lastPaymentDate, and status from the payment
//     set inside the same transaction that writes the payment. Callers
//     never duplicate that bookkeeping.
//   - Deleting a customer cascades to its payments in one transaction.
//   - Profile investment totals are recomputed from the embedded history
//     on every investment mutation.
//
// Failure semantics: malformed writes reject with ErrValidation before
// any statement runs; transactional failures roll back the whole batch
// and surface as ErrTransaction. The store never silently drops records.
package store
