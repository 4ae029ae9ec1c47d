// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maledger/maledger/internal/models"
	"github.com/maledger/maledger/internal/remote"
	"github.com/maledger/maledger/internal/snapshot"
)

// handleExportSnapshot streams the full ledger as a versioned snapshot
// document.
func (rt *Router) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := rt.engine.Export(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+snapshot.FileName(time.Now()))
	respondJSON(w, http.StatusOK, snap)
}

// handleImportSnapshot replaces all local data with the posted snapshot.
// Requires ?confirm=true because the import wipes existing records.
func (rt *Router) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusPreconditionFailed, "CONFIRMATION_REQUIRED",
			"import replaces all local data; pass confirm=true", nil)
		return
	}
	var snap models.Snapshot
	if err := decodeJSON(r, &snap); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid snapshot document", err)
		return
	}
	if err := rt.engine.Import(r.Context(), &snap); err != nil {
		if errors.Is(err, snapshot.ErrBadShape) {
			respondError(w, http.StatusBadRequest, "BAD_SNAPSHOT", err.Error(), err)
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"imported": map[string]int{
			"profiles":  len(snap.Profiles),
			"customers": len(snap.Customers),
			"payments":  len(snap.Payments),
		},
	})
}

func (rt *Router) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rt.manager.Registry().List())
}

// handleAddAccount registers a remote account from a completed OAuth
// authorization code.
func (rt *Router) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Code == "" {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "authorization code is required", err)
		return
	}
	acct, err := rt.manager.AddAccountFromCode(r.Context(), body.Code)
	if err != nil {
		respondRemoteError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, acct)
}

// handleRemoveAccount forgets an account locally. Backups already
// uploaded under it are left untouched.
func (rt *Router) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	if err := rt.manager.Registry().Remove(chi.URLParam(r, "id")); err != nil {
		respondRemoteError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (rt *Router) handleListBackups(w http.ResponseWriter, r *http.Request) {
	files, err := rt.manager.ListBackups(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondRemoteError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// handleBackup triggers an immediate backup. An empty account id lets
// the manager pick the destination by free quota.
func (rt *Router) handleBackup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccountID string `json:"accountId"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
			return
		}
	}
	result, err := rt.manager.Backup(r.Context(), body.AccountID)
	if err != nil {
		respondRemoteError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (rt *Router) handleRestore(w http.ResponseWriter, r *http.Request) {
	opts := remote.RestoreOptions{Confirm: r.URL.Query().Get("confirm") == "true"}
	err := rt.manager.Restore(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "fileID"), opts)
	if err != nil {
		respondRemoteError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (rt *Router) handleMigrationState(w http.ResponseWriter, r *http.Request) {
	needed, err := rt.migrator.Needed(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"state":  rt.migrator.State(),
		"needed": needed,
	})
}

// handleForceRemigrate wipes the record store and re-runs the legacy
// migration. Requires ?confirm=true.
func (rt *Router) handleForceRemigrate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusPreconditionFailed, "CONFIRMATION_REQUIRED",
			"re-migration replaces all local data; pass confirm=true", nil)
		return
	}
	report, err := rt.migrator.ForceRemigrate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "MIGRATION_FAILED", "migration failed", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
