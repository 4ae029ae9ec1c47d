// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package models

import (
	"math"
	"time"
)

// UnlimitedQuota is the TotalQuota recorded for accounts whose plan
// reports no storage limit.
const UnlimitedQuota = int64(math.MaxInt64)

// RemoteAccount is one user-authorized cloud storage identity used as a
// backup destination. Accounts are unique by email within the registry.
type RemoteAccount struct {
	ID           string     `json:"id" validate:"required"`
	Email        string     `json:"email" validate:"required,email"`
	DisplayName  string     `json:"displayName,omitempty"`
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	TokenExpiry  time.Time  `json:"tokenExpiry"`
	UsedQuota    int64      `json:"usedQuota"`
	TotalQuota   int64      `json:"totalQuota"`
	AddedAt      time.Time  `json:"addedAt"`
	LastBackup   *time.Time `json:"lastBackup,omitempty"`

	// NeedsReauth is set when a token refresh fails; the account is
	// unusable until the user re-authorizes it.
	NeedsReauth bool `json:"needsReauth,omitempty"`
}

// AvailableQuota returns the free space on the account in bytes.
func (a *RemoteAccount) AvailableQuota() int64 {
	free := a.TotalQuota - a.UsedQuota
	if free < 0 {
		return 0
	}
	return free
}

// RemoteFile describes one backup object stored on a remote account.
type RemoteFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdTime"`
	ModifiedAt time.Time `json:"modifiedTime"`
}
