// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// TestFileCollector verifies parsing, domain listing, and the missing
// domain case.
func TestFileCollector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	content := `cost:
  daily_cost: 7.2
security:
  unauthorized_attempts: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	f := NewFile(path)

	assert.Equal(t, []rules.Domain{rules.DomainCost, rules.DomainSecurity}, f.Domains())

	snap, err := f.Collect(context.Background(), rules.DomainCost)
	require.NoError(t, err)
	assert.Equal(t, 7.2, snap.Metrics["daily_cost"])
	assert.False(t, snap.Timestamp.IsZero())

	snap, err = f.Collect(context.Background(), rules.DomainResource)
	require.NoError(t, err)
	assert.Empty(t, snap.Metrics)
}

// TestFileCollectorCustomDomain verifies domains outside the built-in
// set are listed and served.
func TestFileCollectorCustomDomain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	content := `network:
  packet_loss: 0.3
cost:
  daily_cost: 1.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	f := NewFile(path)

	assert.Equal(t, []rules.Domain{rules.DomainCost, rules.Domain("network")}, f.Domains())

	snap, err := f.Collect(context.Background(), rules.Domain("network"))
	require.NoError(t, err)
	assert.Equal(t, 0.3, snap.Metrics["packet_loss"])
}

// TestFileCollectorReloadsOnCollect verifies each collect re-reads the
// file.
func TestFileCollectorReloadsOnCollect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cost:\n  daily_cost: 1.0\n"), 0640))
	f := NewFile(path)

	snap, err := f.Collect(context.Background(), rules.DomainCost)
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Metrics["daily_cost"])

	require.NoError(t, os.WriteFile(path, []byte("cost:\n  daily_cost: 9.5\n"), 0640))
	snap, err = f.Collect(context.Background(), rules.DomainCost)
	require.NoError(t, err)
	assert.Equal(t, 9.5, snap.Metrics["daily_cost"])
}

// TestFileCollectorErrors verifies missing and malformed files.
func TestFileCollectorErrors(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := f.Collect(context.Background(), rules.DomainCost)
	assert.Error(t, err)
	assert.Nil(t, f.Domains())

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cost: [not, a, map]"), 0640))
	bad := NewFile(path)
	_, err = bad.Collect(context.Background(), rules.DomainCost)
	assert.Error(t, err)
}

// TestRuntimeCollector verifies the self-collector reports sane
// process metrics.
func TestRuntimeCollector(t *testing.T) {
	r := NewRuntime()
	assert.Equal(t, []rules.Domain{rules.DomainResource, rules.DomainPerformance}, r.Domains())

	snap, err := r.Collect(context.Background(), rules.DomainResource)
	require.NoError(t, err)
	assert.Greater(t, snap.Metrics["goroutines"], 0.0)
	assert.Greater(t, snap.Metrics["heap_alloc_mb"], 0.0)

	snap, err = r.Collect(context.Background(), rules.DomainPerformance)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snap.Metrics["gc_cpu_percent"], 0.0)

	// Unrelated domains yield empty snapshots, not errors.
	snap, err = r.Collect(context.Background(), rules.DomainCost)
	require.NoError(t, err)
	assert.Empty(t, snap.Metrics)
}
