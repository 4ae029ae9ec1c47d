// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"context"

	"github.com/maledger/maledger/internal/models"
)

// AccountInfo is the identity and quota of the authorized account, as
// reported by the provider.
type AccountInfo struct {
	Email       string
	DisplayName string
	UsedQuota   int64
	TotalQuota  int64
}

// Provider abstracts one cloud storage backend. Implementations receive
// a valid access token per call; token lifecycle is the manager's job.
type Provider interface {
	// About returns the account identity and quota in bytes.
	About(ctx context.Context, accessToken string) (*AccountInfo, error)

	// Upload stores data as a new remote object and returns its id.
	Upload(ctx context.Context, accessToken, name string, data []byte) (string, error)

	// List enumerates remote objects whose names start with prefix.
	List(ctx context.Context, accessToken, prefix string) ([]models.RemoteFile, error)

	// Download fetches one remote object's content by id.
	Download(ctx context.Context, accessToken, fileID string) ([]byte, error)

	// Delete removes one remote object by id.
	Delete(ctx context.Context, accessToken, fileID string) error
}
