// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

// Package config loads MaLedger configuration with Koanf v2 using layered
// sources (highest priority wins): environment variables, config file
// (config.yaml), built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the MaLedger server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Legacy   LegacyConfig   `koanf:"legacy"`
	Backup   BackupConfig   `koanf:"backup"`
	OAuth    OAuthConfig    `koanf:"oauth"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP on
	// mutating routes. 0 disables rate limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig configures the DuckDB record store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	// CleanupKeepCompleted bounds how many completed customers Cleanup
	// retains per profile.
	CleanupKeepCompleted int `koanf:"cleanup_keep_completed"`
}

// LegacyConfig configures the legacy BadgerDB flat store that the
// migration engine reads from.
type LegacyConfig struct {
	Path string `koanf:"path"`
}

// BackupConfig configures the remote backup manager.
type BackupConfig struct {
	Enabled bool `koanf:"enabled"`

	// RegistryPath is the JSON file holding the remote account registry.
	RegistryPath string `koanf:"registry_path"`

	// Interval between automatic backups.
	Interval time.Duration `koanf:"interval"`

	// RetainCount is the number of backup objects kept per account.
	RetainCount int `koanf:"retain_count"`

	// HighWaterPct triggers an opportunistic backup when local store
	// usage crosses this percentage of AssumedCapacity.
	HighWaterPct    float64 `koanf:"high_water_pct"`
	AssumedCapacity int64   `koanf:"assumed_capacity"`
}

// OAuthConfig holds the client credentials used to exchange authorization
// codes and refresh tokens. The consent flow itself happens outside this
// process; only the completed code is handed in.
type OAuthConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri"`
	AuthURL      string `koanf:"auth_url"`
	TokenURL     string `koanf:"token_url"`

	// APIBaseURL is the storage provider's REST endpoint.
	APIBaseURL string `koanf:"api_base_url"`
	// UploadBaseURL is the storage provider's upload endpoint.
	UploadBaseURL string `koanf:"upload_base_url"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Backup.RetainCount < 1 {
		return fmt.Errorf("backup.retain_count must be >= 1, got %d", c.Backup.RetainCount)
	}
	if c.Backup.HighWaterPct < 0 || c.Backup.HighWaterPct > 100 {
		return fmt.Errorf("backup.high_water_pct must be 0-100, got %v", c.Backup.HighWaterPct)
	}
	if c.Backup.Interval < time.Minute {
		return fmt.Errorf("backup.interval must be >= 1m, got %s", c.Backup.Interval)
	}
	return nil
}
