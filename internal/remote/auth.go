// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/metrics"
	"github.com/maledger/maledger/internal/models"
)

// refreshSkew is how far before the recorded expiry a token is treated
// as stale. Any authenticated call refreshes first when inside the skew.
const refreshSkew = 5 * time.Minute

// TokenManager exchanges authorization codes and refreshes access
// tokens. The consent screen happens outside this process; only the
// completed code is handed in.
type TokenManager struct {
	oauth *oauth2.Config
}

// NewTokenManager builds a token manager from the OAuth client config.
func NewTokenManager(cfg *config.OAuthConfig) *TokenManager {
	return &TokenManager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: []string{
				"https://www.googleapis.com/auth/drive.file",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
	}
}

// ExchangeCode trades a completed authorization code for access and
// refresh tokens.
func (tm *TokenManager) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := tm.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", ErrAuth, err)
	}
	return tok, nil
}

// EnsureFresh refreshes the account's access token when it is within
// refreshSkew of expiry. Returns true when the account was changed and
// must be persisted. A refresh failure marks the account as needing
// re-authorization and surfaces as ErrAuth; it is never retried here.
func (tm *TokenManager) EnsureFresh(ctx context.Context, acct *models.RemoteAccount) (bool, error) {
	if time.Now().Before(acct.TokenExpiry.Add(-refreshSkew)) {
		return false, nil
	}

	src := tm.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: acct.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		acct.NeedsReauth = true
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		logging.Warn().Str("email", acct.Email).Err(err).Msg("Token refresh failed, account needs re-authorization")
		return true, fmt.Errorf("%w: token refresh for %s: %v", ErrAuth, acct.Email, err)
	}

	acct.AccessToken = tok.AccessToken
	acct.TokenExpiry = tok.Expiry
	if tok.RefreshToken != "" {
		acct.RefreshToken = tok.RefreshToken
	}
	acct.NeedsReauth = false
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	return true, nil
}
