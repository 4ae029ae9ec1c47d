// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Point CONFIG_PATH at nothing so a developer's config.yaml cannot
	// leak into the test.
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8480 {
		t.Errorf("port = %d, want 8480", cfg.Server.Port)
	}
	if cfg.Backup.RetainCount != 10 {
		t.Errorf("retain_count = %d, want 10", cfg.Backup.RetainCount)
	}
	if cfg.Backup.Interval != 24*time.Hour {
		t.Errorf("interval = %s, want 24h", cfg.Backup.Interval)
	}
	if cfg.Backup.HighWaterPct != 80 {
		t.Errorf("high_water_pct = %v, want 80", cfg.Backup.HighWaterPct)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DUCKDB_PATH", "/tmp/other.duckdb")
	t.Setenv("BACKUP_RETAIN_COUNT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/other.duckdb" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Backup.RetainCount != 5 {
		t.Errorf("retain_count = %d, want 5", cfg.Backup.RetainCount)
	}
}

func TestUnmappedEnvIgnored(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PATH_INFO", "should-not-touch-config")

	if _, err := Load(); err != nil {
		t.Fatalf("load with stray env: %v", err)
	}
}

func TestConfigFileLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server:\n  port: 8123\nbackup:\n  retain_count: 3\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123 from file", cfg.Server.Port)
	}
	if cfg.Backup.RetainCount != 3 {
		t.Errorf("retain_count = %d, want 3 from file", cfg.Backup.RetainCount)
	}
	// Untouched keys keep their defaults.
	if cfg.Database.MaxMemory != "512MB" {
		t.Errorf("max_memory = %q, want default", cfg.Database.MaxMemory)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero retain", func(c *Config) { c.Backup.RetainCount = 0 }},
		{"high water over 100", func(c *Config) { c.Backup.HighWaterPct = 150 }},
		{"interval too short", func(c *Config) { c.Backup.Interval = time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("validate should reject the mutated config")
			}
		})
	}
}
