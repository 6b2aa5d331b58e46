// Package config loads and validates the ranking daemon's configuration,
// following services/governd/config's yaml-tagged struct + Load(path)
// pattern.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the recognized options of spec.md §6.
type Config struct {
	StartDelay     time.Duration `yaml:"start_delay"`
	PollingTime    time.Duration `yaml:"polling_time"`
	HistorySize    int           `yaml:"history_size"`
	ErasPerDay     int           `yaml:"eras_per_day"`
	TokenDecimals  int           `yaml:"token_decimals"`
	WSProviderURL  string        `yaml:"ws_provider_url"`

	MaxNominatorRewardedPerValidator int `yaml:"max_nominator_rewarded_per_validator"`

	Database DatabaseConfig `yaml:"database"`

	ThousandValidators ThousandValidatorsConfig `yaml:"thousand_validators"`

	IdentityPoolSize int `yaml:"identity_pool_size"`

	Telemetry TelemetryConfig `yaml:"telemetry"`

	LogFile string `yaml:"log_file"`
}

// DatabaseConfig describes the SQL store connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ThousandValidatorsConfig describes the third-party candidate endpoint.
type ThousandValidatorsConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// TelemetryConfig describes OTLP export settings.
type TelemetryConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Insecure bool              `yaml:"insecure"`
	Headers  map[string]string `yaml:"headers"`
	Metrics  bool              `yaml:"metrics"`
	Traces   bool              `yaml:"traces"`
}

// defaults mirrors spec.md §6's stated defaults.
func defaults() Config {
	return Config{
		StartDelay:                       0,
		PollingTime:                      15 * time.Minute,
		HistorySize:                      84,
		ErasPerDay:                       4,
		TokenDecimals:                    12,
		MaxNominatorRewardedPerValidator: 256,
		IdentityPoolSize:                 8,
		Telemetry:                        TelemetryConfig{Metrics: true, Traces: true},
	}
}

// Load reads and validates the YAML configuration file at path, filling
// unset fields with the defaults above. A malformed file or a violated
// invariant is a fatal startup error per spec.md §7 kind 6.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be > 0")
	}
	if c.ErasPerDay <= 0 {
		return fmt.Errorf("eras_per_day must be > 0")
	}
	if c.PollingTime <= 0 {
		return fmt.Errorf("polling_time must be > 0")
	}
	if c.TokenDecimals < 0 {
		return fmt.Errorf("token_decimals must be >= 0")
	}
	if strings.TrimSpace(c.WSProviderURL) == "" {
		return fmt.Errorf("ws_provider_url is required")
	}
	u, err := url.Parse(c.WSProviderURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("ws_provider_url must be a ws:// or wss:// url")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.MaxNominatorRewardedPerValidator <= 0 {
		return fmt.Errorf("max_nominator_rewarded_per_validator must be > 0")
	}
	return nil
}
