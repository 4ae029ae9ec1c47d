// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package api provides the HTTP surface of the MaLedger daemon: thin
// JSON handlers over the record store, snapshot engine, migration
// engine, and remote backup manager. Presentation beyond JSON (pages,
// charts, notification rendering) lives outside this process.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/migrate"
	"github.com/maledger/maledger/internal/remote"
	"github.com/maledger/maledger/internal/snapshot"
	"github.com/maledger/maledger/internal/store"
)

// Router holds the handler dependencies.
type Router struct {
	cfg      *config.Config
	store    *store.Store
	engine   *snapshot.Engine
	manager  *remote.Manager
	migrator *migrate.Engine
}

// NewRouter wires the API router.
func NewRouter(cfg *config.Config, s *store.Store, engine *snapshot.Engine, manager *remote.Manager, migrator *migrate.Engine) *Router {
	return &Router{cfg: cfg, store: s, engine: engine, manager: manager, migrator: migrator}
}

// Handler builds the chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(rt.cfg.Server.Timeout))

	r.Get("/healthz", rt.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.Server.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.Server.RateLimitReqs, rt.cfg.Server.RateLimitWindow))
		}

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", rt.handleListProfiles)
			r.Post("/", rt.handleCreateProfile)
			r.Get("/{id}", rt.handleGetProfile)
			r.Put("/{id}", rt.handleUpdateProfile)
			r.Delete("/{id}", rt.handleDeleteProfile)
			r.Post("/{id}/investments", rt.handleAddInvestment)
			r.Delete("/{id}/investments/{entryID}", rt.handleDeleteInvestment)
			r.Get("/{id}/customers", rt.handleProfileCustomers)
			r.Post("/{id}/cleanup", rt.handleCleanup)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", rt.handleCreateCustomer)
			r.Get("/{id}", rt.handleGetCustomer)
			r.Put("/{id}", rt.handleUpdateCustomer)
			r.Delete("/{id}", rt.handleDeleteCustomer)
			r.Get("/{id}/payments", rt.handleCustomerPayments)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", rt.handleAddPayment)
			r.Get("/", rt.handlePaymentsByRange)
			r.Delete("/{id}", rt.handleDeletePayment)
		})

		r.Route("/meta", func(r chi.Router) {
			r.Get("/{key}", rt.handleGetMeta)
			r.Put("/{key}", rt.handleSetMeta)
		})

		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", rt.handleExportSnapshot)
			r.Post("/", rt.handleImportSnapshot)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", rt.handleListAccounts)
			r.Post("/", rt.handleAddAccount)
			r.Delete("/{id}", rt.handleRemoveAccount)
			r.Get("/{id}/backups", rt.handleListBackups)
			r.Post("/{id}/backups/{fileID}/restore", rt.handleRestore)
		})

		r.Post("/backups", rt.handleBackup)

		r.Route("/migration", func(r chi.Router) {
			r.Get("/", rt.handleMigrationState)
			r.Post("/force", rt.handleForceRemigrate)
		})
	})

	return r
}

// handleHealth reports liveness and record counts.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	profiles, customers, payments, err := rt.store.GetRecordCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "record store unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"profiles":  profiles,
		"customers": customers,
		"payments":  payments,
	})
}

// Server runs the HTTP listener as a suture.Service.
type Server struct {
	cfg     *config.ServerConfig
	handler http.Handler
}

// NewServer wraps a handler as a supervised service.
func NewServer(cfg *config.ServerConfig, handler http.Handler) *Server {
	return &Server{cfg: cfg, handler: handler}
}

// String names the service in supervisor logs.
func (s *Server) String() string {
	return "http-server"
}

// Serve runs the listener until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown error")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
