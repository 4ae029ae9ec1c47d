// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package remote distributes snapshot backups across multiple
// user-authorized cloud storage accounts and restores from any of them.
//
// Responsibilities:
//   - Account registry: a JSON-file-backed list of authorized accounts,
//     unique by email. Removing an account never deletes its remote files.
//   - Destination selection: the account with the greatest available
//     quota (total minus used), recomputed fresh on every call.
//   - Upload: a snapshot with completed customers filtered out, named
//     with the ma-backup- prefix so backups are distinguishable from
//     unrelated files in the same account.
//   - Retention: after each successful upload, backups beyond the
//     configured count per account are deleted, oldest first.
//   - Token lifecycle: access tokens are refreshed when within five
//     minutes of expiry; a refresh failure marks the account as needing
//     re-authorization and is never retried silently.
//   - Scheduling: a best-effort interval trigger plus an opportunistic
//     trigger when local store usage crosses the high-water mark.
//
// Every public operation catches network and API errors and converts
// them to typed results; nothing panics or throws across this boundary.
package remote
