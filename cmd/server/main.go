// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// MaLedger keeps installment ledgers for small businesses that sell on
// credit: business profiles, customers, their payment schedules, and
// the payments against them. The daemon owns a local DuckDB record
// store, migrates data out of the legacy flat key-value store on first
// start, and pushes snapshot backups to registered cloud storage
// accounts on a schedule.
//
// Configuration comes from config.yaml and environment variables; see
// internal/config for the full key list.
//
// # Quick start
//
//	DUCKDB_PATH=/data/maledger.duckdb \
//	HTTP_PORT=8480 \
//	./maledger-server
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maledger/maledger/internal/api"
	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/legacy"
	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/migrate"
	"github.com/maledger/maledger/internal/remote"
	"github.com/maledger/maledger/internal/snapshot"
	"github.com/maledger/maledger/internal/store"
	"github.com/maledger/maledger/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("backup_enabled", cfg.Backup.Enabled).
		Msg("Starting MaLedger")

	recordStore, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer func() {
		if err := recordStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing record store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := runMigration(ctx, cfg, recordStore)

	engine := snapshot.NewEngine(recordStore)

	manager, scheduler := initBackup(cfg, recordStore, engine)

	router := api.NewRouter(cfg, recordStore, engine, manager, migrator)
	httpServer := api.NewServer(&cfg.Server, router.Handler())

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	tree.AddAPIService(httpServer)
	if scheduler != nil {
		tree.AddBackupService(scheduler)
		logging.Info().Dur("interval", cfg.Backup.Interval).Msg("Backup scheduler added")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("MaLedger stopped")
}

// runMigration opens the legacy store, performs the one-time migration
// if it has not completed yet, and purges the legacy data once the
// retention window has passed. Migration failure is fatal: starting
// with a partial ledger would be worse than not starting.
func runMigration(ctx context.Context, cfg *config.Config, recordStore *store.Store) *migrate.Engine {
	legacyStore, err := legacy.Open(cfg.Legacy.Path)
	if err != nil {
		logging.Warn().Err(err).Str("path", cfg.Legacy.Path).Msg("Legacy store unavailable, skipping migration")
		return migrate.NewEngine(nil, recordStore)
	}

	migrator := migrate.NewEngine(legacyStore, recordStore)

	needed, err := migrator.Needed(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to determine migration state")
	}
	if needed {
		report, err := migrator.Run(ctx)
		if err != nil {
			logging.Fatal().Err(err).Msg("Legacy migration failed")
		}
		logging.Info().
			Int("profiles", report.ProfilesImported).
			Int("customers", report.CustomersImported).
			Int("payments", report.PaymentsImported).
			Int("skipped", report.Skipped).
			Msg("Legacy migration complete")
	}

	if err := migrator.EnsureDefaultProfile(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to ensure default profile")
	}

	if n, err := migrate.NormalizeInvestmentTypes(ctx, recordStore); err != nil {
		logging.Warn().Err(err).Msg("Investment type normalization failed")
	} else if n > 0 {
		logging.Info().Int("profiles", n).Msg("Normalized legacy investment entries")
	}

	if err := migrator.PurgeLegacyIfDue(ctx); err != nil {
		logging.Warn().Err(err).Msg("Legacy purge failed")
	}

	return migrator
}

// initBackup wires the remote backup stack. A registry that fails to
// load is fatal; a disabled backup config returns a manager without a
// scheduler so manual backups through the API still work.
func initBackup(cfg *config.Config, recordStore *store.Store, engine *snapshot.Engine) (*remote.Manager, *remote.Scheduler) {
	registry, err := remote.NewRegistry(cfg.Backup.RegistryPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Backup.RegistryPath).Msg("Failed to load account registry")
	}

	tokens := remote.NewTokenManager(&cfg.OAuth)
	provider := remote.NewDriveProvider(&cfg.OAuth)
	manager := remote.NewManager(&cfg.Backup, registry, provider, tokens, engine)

	if !cfg.Backup.Enabled {
		logging.Info().Msg("Automatic backups disabled")
		return manager, nil
	}
	return manager, remote.NewScheduler(&cfg.Backup, manager, recordStore)
}
