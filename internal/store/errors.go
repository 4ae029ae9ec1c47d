// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package store

import (
	"errors"
	"io"
)

var (
	// ErrValidation indicates a record failed shape validation and was
	// rejected. The record is never coerced or partially written.
	ErrValidation = errors.New("validation failed")

	// ErrTransaction indicates a transactional batch failed and was
	// rolled back; no statement from the batch was applied.
	ErrTransaction = errors.New("transaction failed")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// closeQuietly closes a resource and explicitly ignores any error.
// Use in cleanup paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
