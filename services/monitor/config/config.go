// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the monitoring engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full engine configuration.
type Config struct {
	// CycleInterval is the period of the monitoring loop.
	CycleInterval Duration `yaml:"cycle_interval" validate:"gt=0"`

	// MiningEveryNCycles runs the mining and learning passes on every
	// Nth cycle. 1 mines every cycle.
	MiningEveryNCycles int `yaml:"mining_every_n_cycles" validate:"gte=1"`

	// RecentWindow is how far back the mining window reaches.
	RecentWindow Duration `yaml:"recent_window" validate:"gt=0"`

	// HistorySize is how many cycle outputs are kept in memory for the
	// status API.
	HistorySize int `yaml:"history_size" validate:"gte=1"`

	// DailyBudget seeds the graduated cost-tier default rules.
	DailyBudget float64 `yaml:"daily_budget" validate:"gt=0"`

	// RulesFile is the optional YAML rules file. Empty disables file
	// loading and hot reload.
	RulesFile string `yaml:"rules_file"`

	// WatchRules hot-reloads RulesFile on change.
	WatchRules bool `yaml:"watch_rules"`

	// DataDir is where the record store lives. Empty selects an
	// in-memory store.
	DataDir string `yaml:"data_dir"`

	// Retention bounds stored history.
	Retention Retention `yaml:"retention"`

	// HTTP configures the API server.
	HTTP HTTP `yaml:"http"`

	// Telemetry configures metric export.
	Telemetry Telemetry `yaml:"telemetry"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Retention bounds how much record history is kept.
type Retention struct {
	// MaxAge prunes records older than this. Zero disables age pruning.
	MaxAge Duration `yaml:"max_age" validate:"gte=0"`

	// MaxPerDomain caps records per domain. Zero disables the cap.
	MaxPerDomain int `yaml:"max_per_domain" validate:"gte=0"`
}

// HTTP configures the API server.
type HTTP struct {
	// Addr is the listen address, host:port.
	Addr string `yaml:"addr" validate:"required"`

	// ReadTimeout bounds request reads.
	ReadTimeout Duration `yaml:"read_timeout" validate:"gt=0"`

	// WriteTimeout bounds response writes.
	WriteTimeout Duration `yaml:"write_timeout" validate:"gt=0"`
}

// Telemetry configures metric export.
type Telemetry struct {
	// Enabled turns the meter provider on.
	Enabled bool `yaml:"enabled"`

	// Exporter is prometheus or stdout.
	Exporter string `yaml:"exporter" validate:"oneof=prometheus stdout"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		CycleInterval:      Duration(5 * time.Minute),
		MiningEveryNCycles: 6,
		RecentWindow:       Duration(24 * time.Hour),
		HistorySize:        64,
		DailyBudget:        10.0,
		WatchRules:         true,
		Retention: Retention{
			MaxAge:       Duration(30 * 24 * time.Hour),
			MaxPerDomain: 10000,
		},
		HTTP: HTTP{
			Addr:         ":8130",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Telemetry: Telemetry{
			Enabled:  true,
			Exporter: "prometheus",
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads a YAML config file over the defaults, then validates. The
// file only needs to set the fields it changes.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
