// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package remote

import (
	"context"
	"time"

	"github.com/maledger/maledger/internal/config"
	"github.com/maledger/maledger/internal/logging"
	"github.com/maledger/maledger/internal/store"
)

// usageCheckInterval is how often the high-water-mark check runs between
// regular interval ticks.
const usageCheckInterval = time.Hour

// Scheduler triggers automatic backups: on a fixed interval, and
// opportunistically when local store usage crosses the high-water mark.
// Both triggers are best effort; a failed attempt logs a warning and is
// retried on the next tick, never escalated.
//
// Scheduler implements suture.Service and runs under the application's
// supervision tree.
type Scheduler struct {
	cfg     *config.BackupConfig
	manager *Manager
	store   *store.Store

	lastAttempt time.Time
}

// NewScheduler wires the backup scheduler.
func NewScheduler(cfg *config.BackupConfig, manager *Manager, s *store.Store) *Scheduler {
	return &Scheduler{cfg: cfg, manager: manager, store: s}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "backup-scheduler"
}

// Serve runs the scheduling loop until the context is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	interval := time.NewTicker(s.cfg.Interval)
	defer interval.Stop()
	usage := time.NewTicker(usageCheckInterval)
	defer usage.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-interval.C:
			s.attempt(ctx, "interval")
		case <-usage.C:
			if s.highWater() {
				s.attempt(ctx, "high-water")
			}
		}
	}
}

// highWater reports whether local store usage crossed the configured
// percentage of the assumed capacity. A recent attempt suppresses the
// trigger so a full store does not back up every hour.
func (s *Scheduler) highWater() bool {
	if s.cfg.HighWaterPct <= 0 || s.cfg.AssumedCapacity <= 0 {
		return false
	}
	if time.Since(s.lastAttempt) < s.cfg.Interval/2 {
		return false
	}
	size, err := s.store.SizeBytes()
	if err != nil {
		logging.Warn().Err(err).Msg("Store size check failed")
		return false
	}
	pct := float64(size) / float64(s.cfg.AssumedCapacity) * 100
	return pct >= s.cfg.HighWaterPct
}

// attempt runs one best-effort automatic backup.
func (s *Scheduler) attempt(ctx context.Context, trigger string) {
	s.lastAttempt = time.Now()
	result, err := s.manager.Backup(ctx, "")
	if err != nil {
		logging.Warn().Str("trigger", trigger).Err(err).Msg("Automatic backup failed, will retry next tick")
		return
	}
	logging.Info().
		Str("trigger", trigger).
		Str("object", result.Name).
		Msg("Automatic backup completed")
}
