// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maledger/maledger/internal/models"
)

func (rt *Router) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := rt.store.ListProfiles(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profiles)
}

func (rt *Router) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var p models.Profile
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
		return
	}
	if err := rt.store.CreateProfile(r.Context(), &p); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (rt *Router) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "profile id must be an integer", err)
		return
	}
	p, err := rt.store.GetProfile(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (rt *Router) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "profile id must be an integer", err)
		return
	}
	var p models.Profile
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
		return
	}
	p.ID = id
	if err := rt.store.UpdateProfile(r.Context(), &p); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (rt *Router) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "profile id must be an integer", err)
		return
	}
	if err := rt.store.DeleteProfile(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (rt *Router) handleAddInvestment(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "profile id must be an integer", err)
		return
	}
	var entry models.InvestmentEntry
	if err := decodeJSON(r, &entry); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
		return
	}
	if err := rt.store.AddInvestmentEntry(r.Context(), id, entry); err != nil {
		respondStoreError(w, err)
		return
	}
	p, err := rt.store.GetProfile(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (rt *Router) handleDeleteInvestment(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "profile id must be an integer", err)
		return
	}
	entryID := chi.URLParam(r, "entryID")
	if err := rt.store.DeleteInvestmentEntry(r.Context(), id, entryID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleProfileCustomers lists a profile's customers. Query parameters
// select the view: ?active=true, ?search=<term>, or ?overdue=<days>.
func (rt *Router) handleProfileCustomers(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "profile id must be an integer", err)
		return
	}

	var customers []models.Customer
	q := r.URL.Query()
	switch {
	case q.Get("search") != "":
		customers, err = rt.store.SearchCustomers(r.Context(), id, q.Get("search"))
	case q.Get("overdue") != "":
		var days int
		days, err = strconv.Atoi(q.Get("overdue"))
		if err != nil || days < 0 {
			respondError(w, http.StatusBadRequest, "BAD_PARAM", "overdue must be a non-negative integer", err)
			return
		}
		customers, err = rt.store.GetOverdueCustomers(r.Context(), id, days)
	case q.Get("active") == "true":
		customers, err = rt.store.GetActiveCustomersByProfile(r.Context(), id)
	default:
		customers, err = rt.store.GetCustomersByProfile(r.Context(), id)
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, customers)
}

func (rt *Router) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id, err := getInt64Param(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "profile id must be an integer", err)
		return
	}
	removed, err := rt.store.Cleanup(r.Context(), id, rt.cfg.Database.CleanupKeepCompleted)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (rt *Router) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if err := decodeJSON(r, &c); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
		return
	}
	if err := rt.store.CreateCustomer(r.Context(), &c); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (rt *Router) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := rt.store.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (rt *Router) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if err := decodeJSON(r, &c); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := rt.store.UpdateCustomer(r.Context(), &c); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (rt *Router) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := rt.store.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (rt *Router) handleCustomerPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := rt.store.GetPaymentsByCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

func (rt *Router) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	var p models.Payment
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
		return
	}
	if err := rt.store.AddPayment(r.Context(), &p); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (rt *Router) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := rt.store.DeletePayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handlePaymentsByRange lists payments between ?from= and ?to= inclusive
// (YYYY-MM-DD).
func (rt *Router) handlePaymentsByRange(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "BAD_PARAM", "from and to query parameters are required", nil)
		return
	}
	payments, err := rt.store.GetPaymentsByDateRange(r.Context(), from, to)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

func (rt *Router) handleGetMeta(w http.ResponseWriter, r *http.Request) {
	value, err := rt.store.GetMeta(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"key": chi.URLParam(r, "key"), "value": value})
}

func (rt *Router) handleSetMeta(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body", err)
		return
	}
	if err := rt.store.SetMeta(r.Context(), chi.URLParam(r, "key"), body.Value); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"key": chi.URLParam(r, "key"), "value": body.Value})
}
