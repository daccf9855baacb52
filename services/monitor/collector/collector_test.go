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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// TestStaticCollector verifies stored metrics round-trip and callers
// cannot mutate internal state.
func TestStaticCollector(t *testing.T) {
	c := NewStatic()
	c.Set(rules.DomainCost, map[string]float64{"daily_cost": 7.2})

	snap, err := c.Collect(context.Background(), rules.DomainCost)
	require.NoError(t, err)
	assert.Equal(t, rules.DomainCost, snap.Domain)
	assert.Equal(t, 7.2, snap.Metrics["daily_cost"])
	assert.False(t, snap.Timestamp.IsZero())

	snap.Metrics["daily_cost"] = 999
	again, err := c.Collect(context.Background(), rules.DomainCost)
	require.NoError(t, err)
	assert.Equal(t, 7.2, again.Metrics["daily_cost"])
}

// TestStaticCollectorUnknownDomain verifies an unknown domain yields an
// empty snapshot rather than an error.
func TestStaticCollectorUnknownDomain(t *testing.T) {
	c := NewStatic()
	snap, err := c.Collect(context.Background(), rules.DomainSecurity)
	require.NoError(t, err)
	assert.Empty(t, snap.Metrics)
}

// TestStaticCollectorDomains verifies only populated domains are
// listed, with custom domains after the built-in ones.
func TestStaticCollectorDomains(t *testing.T) {
	c := NewStatic()
	assert.Empty(t, c.Domains())

	c.Set(rules.DomainSecurity, map[string]float64{"failed_logins": 3})
	c.Set(rules.DomainCost, map[string]float64{"daily_cost": 1})
	assert.Equal(t, []rules.Domain{rules.DomainCost, rules.DomainSecurity}, c.Domains())

	// Domain is an open enumeration; a custom domain must survive the
	// listing or its rules would never be evaluated.
	c.Set(rules.Domain("network"), map[string]float64{"packet_loss": 0.3})
	c.Set(rules.Domain("capacity"), map[string]float64{"headroom": 0.4})
	assert.Equal(t, []rules.Domain{
		rules.DomainCost, rules.DomainSecurity,
		rules.Domain("capacity"), rules.Domain("network"),
	}, c.Domains())
}

// TestFuncCollector verifies the function adapter and its nil-context
// guard.
func TestFuncCollector(t *testing.T) {
	f := Func{
		Fn: func(ctx context.Context, domain rules.Domain) (rules.Snapshot, error) {
			return rules.Snapshot{Domain: domain, Metrics: map[string]float64{"m": 1}}, nil
		},
		Covered: []rules.Domain{rules.DomainResource},
	}

	snap, err := f.Collect(context.Background(), rules.DomainResource)
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Metrics["m"])
	assert.Equal(t, []rules.Domain{rules.DomainResource}, f.Domains())

	_, err = f.Collect(nil, rules.DomainResource) //nolint:staticcheck
	assert.Error(t, err)
}
