// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"errors"
)

var (
	// ErrNoAccount indicates the registry holds no usable account for
	// the requested operation.
	ErrNoAccount = errors.New("no remote account available")

	// ErrDuplicateAccount indicates an account with the same email is
	// already registered.
	ErrDuplicateAccount = errors.New("account already registered")

	// ErrAccountNotFound indicates the account id is not in the registry.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAuth indicates expired or revoked credentials; the account
	// requires re-authorization by the user.
	ErrAuth = errors.New("authorization failed")

	// ErrNetwork indicates a transient network or API failure, safe to
	// retry on the next scheduled attempt.
	ErrNetwork = errors.New("network error")

	// ErrQuotaExceeded indicates the remote account has no usable space;
	// destination selection must skip it.
	ErrQuotaExceeded = errors.New("remote quota exceeded")

	// ErrConfirmationRequired guards the destructive restore path: the
	// caller must explicitly confirm replacing local state.
	ErrConfirmationRequired = errors.New("restore requires explicit confirmation")
)
