// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLevelString verifies level names.
func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

// TestParseLevel verifies string-to-level conversion including the
// info default for unknown input.
func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

// TestLoggerFiltersBelowLevel verifies that entries below the minimum
// level are dropped.
func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Writer: &buf})

	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

// TestLoggerAttrs verifies key-value attributes reach the output.
func TestLoggerAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Writer: &buf})

	logger.Info("cycle complete", "domain", "cost", "alerts", 3)

	out := buf.String()
	assert.Contains(t, out, "domain=cost")
	assert.Contains(t, out, "alerts=3")
	assert.Contains(t, out, "service=sentinel")
}

// TestLoggerWith verifies persistent attributes from With.
func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Writer: &buf}).With("component", "miner")

	logger.Info("pass done")

	assert.Contains(t, buf.String(), "component=miner")
}

// TestLoggerFileOutput verifies JSON file logging alongside the writer.
func TestLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger := New(Config{
		Level:   LevelInfo,
		Service: "testsvc",
		LogDir:  dir,
		Writer:  &buf,
	})

	logger.Info("persisted message")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "testsvc_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"persisted message"`)
}

// TestLoggerExporter verifies entries are forwarded to the exporter
// with normalized attrs.
func TestLoggerExporter(t *testing.T) {
	exporter := NewBufferedExporter()
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Writer: &buf, Exporter: exporter})

	logger.Warn("degraded mode", "buffered", 12)
	logger.Debug("filtered out")

	entries := exporter.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "degraded mode", entries[0].Message)
	assert.Equal(t, 12, entries[0].Attrs["buffered"])
}

// TestCloseIsIdempotent verifies Close can be called twice.
func TestCloseIsIdempotent(t *testing.T) {
	logger := New(Config{Level: LevelInfo, Writer: &bytes.Buffer{}, LogDir: t.TempDir()})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}
