// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/models"
)

// maxDownloadBytes bounds snapshot downloads to protect against a
// corrupted or hostile remote object.
const maxDownloadBytes = 256 << 20

// DriveProvider talks to a Google-Drive-style REST storage API. All
// calls go through a circuit breaker so a flapping provider cannot
// hammer the network from the scheduler loop.
type DriveProvider struct {
	apiBase    string
	uploadBase string
	client     *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
}

// NewDriveProvider creates a provider against the configured endpoints.
func NewDriveProvider(cfg *config.OAuthConfig) *DriveProvider {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "remote-storage",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Auth and quota failures are the account's problem, not
			// the provider's health; don't trip the breaker on them.
			return err == nil || errors.Is(err, ErrAuth) || errors.Is(err, ErrQuotaExceeded)
		},
	})

	return &DriveProvider{
		apiBase:    strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadBase: strings.TrimRight(cfg.UploadBaseURL, "/"),
		client:     &http.Client{Timeout: 2 * time.Minute},
		cb:         cb,
	}
}

// do executes one authenticated request through the circuit breaker and
// returns the response body.
func (p *DriveProvider) do(ctx context.Context, method, rawURL, contentType string, body []byte, accessToken string) ([]byte, error) {
	return p.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: read response: %v", ErrNetwork, err)
		}

		if resp.StatusCode >= 400 {
			return nil, classifyStatus(resp.StatusCode, data)
		}
		return data, nil
	})
}

// classifyStatus maps an HTTP error status to the package taxonomy.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP 401", ErrAuth)
	case status == http.StatusForbidden:
		if bytes.Contains(body, []byte("storageQuotaExceeded")) || bytes.Contains(body, []byte("quotaExceeded")) {
			return fmt.Errorf("%w: HTTP 403", ErrQuotaExceeded)
		}
		return fmt.Errorf("%w: HTTP 403", ErrAuth)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", ErrNetwork, status, truncate(body, 200))
	}
}

// parseQuota converts one decimal quota string, using absent for a
// missing field. A present but unparsable value is a malformed response.
func parseQuota(s string, absent int64) (int64, error) {
	if s == "" {
		return absent, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse quota %q: %v", ErrNetwork, s, err)
	}
	return n, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// driveAbout is the wire shape of the provider's about endpoint. Quota
// values arrive as decimal strings.
type driveAbout struct {
	User struct {
		EmailAddress string `json:"emailAddress"`
		DisplayName  string `json:"displayName"`
	} `json:"user"`
	StorageQuota struct {
		Limit string `json:"limit"`
		Usage string `json:"usage"`
	} `json:"storageQuota"`
}

// About returns the account identity and quota in bytes.
func (p *DriveProvider) About(ctx context.Context, accessToken string) (*AccountInfo, error) {
	u := p.apiBase + "/about?fields=" + url.QueryEscape("user(emailAddress,displayName),storageQuota(limit,usage)")
	data, err := p.do(ctx, http.MethodGet, u, "", nil, accessToken)
	if err != nil {
		return nil, err
	}

	var about driveAbout
	if err := json.Unmarshal(data, &about); err != nil {
		return nil, fmt.Errorf("%w: parse about: %v", ErrNetwork, err)
	}

	used, err := parseQuota(about.StorageQuota.Usage, 0)
	if err != nil {
		return nil, err
	}
	// Unlimited plans omit the limit field entirely; that is free space,
	// not zero space.
	total, err := parseQuota(about.StorageQuota.Limit, models.UnlimitedQuota)
	if err != nil {
		return nil, err
	}
	return &AccountInfo{
		Email:       about.User.EmailAddress,
		DisplayName: about.User.DisplayName,
		UsedQuota:   used,
		TotalQuota:  total,
	}, nil
}

// Upload stores data as a new remote object via a multipart/related
// request (metadata part + media part) and returns the new object id.
func (p *DriveProvider) Upload(ctx context.Context, accessToken, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("%w: build upload: %v", ErrNetwork, err)
	}
	meta, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("%w: marshal metadata: %v", ErrNetwork, err)
	}
	if _, err := metaPart.Write(meta); err != nil {
		return "", fmt.Errorf("%w: build upload: %v", ErrNetwork, err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", "application/json")
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return "", fmt.Errorf("%w: build upload: %v", ErrNetwork, err)
	}
	if _, err := mediaPart.Write(data); err != nil {
		return "", fmt.Errorf("%w: build upload: %v", ErrNetwork, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: build upload: %v", ErrNetwork, err)
	}

	u := p.uploadBase + "/files?uploadType=multipart&fields=id"
	contentType := "multipart/related; boundary=" + w.Boundary()
	respBody, err := p.do(ctx, http.MethodPost, u, contentType, buf.Bytes(), accessToken)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("%w: parse upload response: %v", ErrNetwork, err)
	}
	return created.ID, nil
}

// driveFileList is the wire shape of the provider's file listing. Sizes
// arrive as decimal strings.
type driveFileList struct {
	Files []struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Size         string    `json:"size"`
		CreatedTime  time.Time `json:"createdTime"`
		ModifiedTime time.Time `json:"modifiedTime"`
	} `json:"files"`
}

// List enumerates remote objects whose names start with prefix, newest
// first.
func (p *DriveProvider) List(ctx context.Context, accessToken, prefix string) ([]models.RemoteFile, error) {
	query := fmt.Sprintf("name contains '%s' and trashed = false", strings.ReplaceAll(prefix, "'", `\'`))
	u := p.apiBase + "/files?q=" + url.QueryEscape(query) +
		"&orderBy=" + url.QueryEscape("createdTime desc") +
		"&fields=" + url.QueryEscape("files(id,name,size,createdTime,modifiedTime)")

	data, err := p.do(ctx, http.MethodGet, u, "", nil, accessToken)
	if err != nil {
		return nil, err
	}

	var list driveFileList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: parse file list: %v", ErrNetwork, err)
	}

	files := make([]models.RemoteFile, 0, len(list.Files))
	for _, f := range list.Files {
		// The contains query can match unrelated names; a backup object
		// must carry the prefix at the start.
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		size, _ := strconv.ParseInt(f.Size, 10, 64)
		files = append(files, models.RemoteFile{
			ID:         f.ID,
			Name:       f.Name,
			Size:       size,
			CreatedAt:  f.CreatedTime,
			ModifiedAt: f.ModifiedTime,
		})
	}
	return files, nil
}

// Download fetches one remote object's content by id.
func (p *DriveProvider) Download(ctx context.Context, accessToken, fileID string) ([]byte, error) {
	u := p.apiBase + "/files/" + url.PathEscape(fileID) + "?alt=media"
	return p.do(ctx, http.MethodGet, u, "", nil, accessToken)
}

// Delete removes one remote object by id.
func (p *DriveProvider) Delete(ctx context.Context, accessToken, fileID string) error {
	u := p.apiBase + "/files/" + url.PathEscape(fileID)
	_, err := p.do(ctx, http.MethodDelete, u, "", nil, accessToken)
	return err
}
