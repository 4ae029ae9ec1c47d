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
	"strings"
	"testing"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/models"
)

func newDriveServer(t *testing.T, handler http.HandlerFunc) *DriveProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDriveProvider(&config.OAuthConfig{
		APIBaseURL:    srv.URL,
		UploadBaseURL: srv.URL + "/upload",
	})
}

func TestAboutParsesStringQuotas(t *testing.T) {
	p := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"user": {"emailAddress": "owner@example.com", "displayName": "Owner"},
			"storageQuota": {"limit": "16106127360", "usage": "1073741824"}
		}`))
	})

	info, err := p.About(context.Background(), "tok")
	if err != nil {
		t.Fatalf("about: %v", err)
	}
	if info.Email != "owner@example.com" {
		t.Errorf("email = %q", info.Email)
	}
	if info.TotalQuota != 16106127360 || info.UsedQuota != 1073741824 {
		t.Errorf("quota = %d/%d", info.UsedQuota, info.TotalQuota)
	}
}

func TestAboutUnlimitedPlanOmitsLimit(t *testing.T) {
	p := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"user": {"emailAddress": "owner@example.com"},
			"storageQuota": {"usage": "1073741824"}
		}`))
	})

	info, err := p.About(context.Background(), "tok")
	if err != nil {
		t.Fatalf("about: %v", err)
	}
	if info.TotalQuota != models.UnlimitedQuota {
		t.Errorf("TotalQuota = %d, want the unlimited marker", info.TotalQuota)
	}
	acct := models.RemoteAccount{UsedQuota: info.UsedQuota, TotalQuota: info.TotalQuota}
	if acct.AvailableQuota() <= 0 {
		t.Error("unlimited plan must report free space, not zero")
	}
}

func TestAboutRejectsGarbageQuota(t *testing.T) {
	p := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"user": {"emailAddress": "owner@example.com"},
			"storageQuota": {"limit": "plenty", "usage": "0"}
		}`))
	})

	if _, err := p.About(context.Background(), "tok"); !errors.Is(err, ErrNetwork) {
		t.Errorf("about with unparsable limit = %v, want ErrNetwork", err)
	}
}

func TestUploadSendsMultipartAndReturnsID(t *testing.T) {
	p := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/upload/files") {
			t.Errorf("upload path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/related") {
			t.Errorf("Content-Type = %q, want multipart/related", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "new-file"}`))
	})

	id, err := p.Upload(context.Background(), "tok", "ma-backup-x.json", []byte(`{}`))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "new-file" {
		t.Errorf("id = %q", id)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	p := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files": [
			{"id": "f1", "name": "ma-backup-a.json", "size": "128"},
			{"id": "f2", "name": "unrelated-ma-backup.json", "size": "64"}
		]}`))
	})

	files, err := p.List(context.Background(), "tok", BackupPrefix)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0].ID != "f1" {
		t.Errorf("files = %+v, want only f1 (prefix at name start)", files)
	}
	if files[0].Size != 128 {
		t.Errorf("size = %d, want 128 parsed from string", files[0].Size)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, "", ErrAuth},
		{"forbidden quota", http.StatusForbidden, `{"error": {"errors": [{"reason": "storageQuotaExceeded"}]}}`, ErrQuotaExceeded},
		{"forbidden other", http.StatusForbidden, `{"error": "insufficientPermissions"}`, ErrAuth},
		{"server error", http.StatusBadGateway, "upstream", ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newDriveServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tt.body, tt.status)
			})
			_, err := p.Download(context.Background(), "tok", "f1")
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d = %v, want %v", tt.status, err, tt.want)
			}
		})
	}
}
