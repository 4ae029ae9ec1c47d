// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/models"
)

// newTokenServer serves the OAuth token endpoint. status controls the
// response; calls counts refresh requests.
func newTokenServer(t *testing.T, status int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			http.Error(w, `{"error": "invalid_grant"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "fresh-token",
			"token_type": "Bearer",
			"expires_in": 3600
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestTokenManager(tokenURL string) *TokenManager {
	return NewTokenManager(&config.OAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     tokenURL,
	})
}

func TestEnsureFreshSkipsValidToken(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusOK, &calls)
	tm := newTestTokenManager(srv.URL)

	acct := &models.RemoteAccount{
		Email:       "owner@example.com",
		AccessToken: "still-good",
		TokenExpiry: time.Now().Add(time.Hour),
	}
	changed, err := tm.EnsureFresh(context.Background(), acct)
	if err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if changed {
		t.Error("a token an hour from expiry must not be refreshed")
	}
	if calls.Load() != 0 {
		t.Errorf("token endpoint hit %d times, want 0", calls.Load())
	}
}

func TestEnsureFreshRefreshesNearExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusOK, &calls)
	tm := newTestTokenManager(srv.URL)

	// Inside the five-minute skew window.
	acct := &models.RemoteAccount{
		Email:        "owner@example.com",
		AccessToken:  "stale",
		RefreshToken: "refresh-secret",
		TokenExpiry:  time.Now().Add(2 * time.Minute),
	}
	changed, err := tm.EnsureFresh(context.Background(), acct)
	if err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if !changed {
		t.Fatal("refresh inside the skew window must report a change")
	}
	if acct.AccessToken != "fresh-token" {
		t.Errorf("access token = %q, want fresh-token", acct.AccessToken)
	}
	if acct.NeedsReauth {
		t.Error("successful refresh must clear the reauth mark")
	}
	if calls.Load() != 1 {
		t.Errorf("token endpoint hit %d times, want exactly 1", calls.Load())
	}

	// The refreshed expiry is in the future, so a second call is a no-op.
	changed, err = tm.EnsureFresh(context.Background(), acct)
	if err != nil || changed {
		t.Errorf("second call = changed=%v err=%v, want no-op", changed, err)
	}
	if calls.Load() != 1 {
		t.Errorf("token endpoint hit %d times after no-op, want 1", calls.Load())
	}
}

func TestEnsureFreshFailureMarksReauth(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusBadRequest, &calls)
	tm := newTestTokenManager(srv.URL)

	acct := &models.RemoteAccount{
		Email:        "owner@example.com",
		RefreshToken: "revoked",
		TokenExpiry:  time.Now().Add(-time.Minute),
	}
	changed, err := tm.EnsureFresh(context.Background(), acct)
	if !errors.Is(err, ErrAuth) {
		t.Errorf("failed refresh = %v, want ErrAuth", err)
	}
	if !changed {
		t.Error("the reauth mark is a state change and must be persisted")
	}
	if !acct.NeedsReauth {
		t.Error("failed refresh must set NeedsReauth")
	}
}

func TestExchangeCodeFailure(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusBadRequest, &calls)
	tm := newTestTokenManager(srv.URL)

	if _, err := tm.ExchangeCode(context.Background(), "bad-code"); !errors.Is(err, ErrAuth) {
		t.Errorf("exchange with bad code = %v, want ErrAuth", err)
	}
}
