// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package metrics provides Prometheus instrumentation for the backup and
// migration subsystems, exposed at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackupAttempts counts remote backup attempts by outcome.
	BackupAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_attempts_total",
			Help: "Total remote backup attempts by outcome (success, failure)",
		},
		[]string{"outcome"},
	)

	// BackupBytes observes the size of uploaded snapshot documents.
	BackupBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_snapshot_bytes",
			Help:    "Size of uploaded snapshot documents in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// RestoreAttempts counts restore attempts by outcome.
	RestoreAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restore_attempts_total",
			Help: "Total restore attempts by outcome (success, failure)",
		},
		[]string{"outcome"},
	)

	// TokenRefreshes counts OAuth token refreshes by outcome.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refreshes_total",
			Help: "Total OAuth token refreshes by outcome (success, failure)",
		},
		[]string{"outcome"},
	)

	// MigrationRecords counts records imported or skipped by the
	// migration engine.
	MigrationRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_records_total",
			Help: "Records processed by the legacy migration (imported, skipped)",
		},
		[]string{"result"},
	)

	// RetentionDeletes counts remote backup objects removed by the
	// retention policy.
	RetentionDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deletes_total",
			Help: "Remote backup objects deleted by retention enforcement",
		},
	)
)
