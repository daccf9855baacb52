// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfigIsValid verifies the defaults pass validation.
func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

// TestLoadOverridesDefaults verifies a partial file only changes the
// fields it names.
func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yml")
	body := "cycle_interval: 1m\ndaily_budget: 25\nhttp:\n  addr: \":9000\"\n  read_timeout: 5s\n  write_timeout: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0640))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.CycleInterval.Std())
	assert.Equal(t, 25.0, cfg.DailyBudget)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 6, cfg.MiningEveryNCycles, "unset fields keep defaults")
	assert.Equal(t, "info", cfg.LogLevel)
}

// TestLoadRejectsInvalid verifies validation failures surface.
func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sentinel.yml")
		require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0640))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad exporter", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sentinel.yml")
		require.NoError(t, os.WriteFile(path, []byte("telemetry:\n  enabled: true\n  exporter: carrier-pigeon\n"), 0640))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})
}
