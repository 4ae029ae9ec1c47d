// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/remote"
	"github.com/maledger/maledger/internal/store"
)

// errorResponse is the JSON error envelope returned by every handler.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Err(err).Str("code", code).Int("status", status).Msg(message)
	}
	respondJSON(w, status, errorResponse{Error: code, Message: message})
}

// respondStoreError maps record-store sentinel errors onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "record not found", err)
	case errors.Is(err, store.ErrValidation):
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), err)
	default:
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "record store operation failed", err)
	}
}

// respondRemoteError maps backup-manager sentinel errors onto HTTP statuses.
func respondRemoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, remote.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "remote account not found", err)
	case errors.Is(err, remote.ErrDuplicateAccount):
		respondError(w, http.StatusConflict, "DUPLICATE_ACCOUNT", "an account with this email is already registered", err)
	case errors.Is(err, remote.ErrNoAccount):
		respondError(w, http.StatusPreconditionFailed, "NO_ACCOUNT", "no remote account is registered", err)
	case errors.Is(err, remote.ErrConfirmationRequired):
		respondError(w, http.StatusPreconditionFailed, "CONFIRMATION_REQUIRED", "restore replaces all local data; pass confirm=true", err)
	case errors.Is(err, remote.ErrQuotaExceeded):
		respondError(w, http.StatusInsufficientStorage, "QUOTA_EXCEEDED", "no remote account has free space", err)
	case errors.Is(err, remote.ErrAuth):
		respondError(w, http.StatusBadGateway, "REMOTE_AUTH", "remote account needs re-authorization", err)
	default:
		respondError(w, http.StatusBadGateway, "REMOTE_ERROR", "remote operation failed", err)
	}
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// getInt64Param parses a chi URL parameter as int64.
func getInt64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	return strconv.ParseInt(raw, 10, 64)
}
