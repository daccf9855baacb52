// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(name string, domain Domain, key string, op Operator, threshold float64) MonitoringRule {
	return MonitoringRule{
		Name:      name,
		Domain:    domain,
		MetricKey: key,
		Operator:  op,
		Threshold: threshold,
		Severity:  SeverityHigh,
		Action:    ActionAlert,
	}
}

// TestOperatorBoundaries verifies strict/non-strict semantics at exactly
// the threshold for every operator.
func TestOperatorBoundaries(t *testing.T) {
	cases := []struct {
		op        Operator
		value     float64
		threshold float64
		want      bool
	}{
		{OpGT, 5, 5, false},
		{OpGT, 5.1, 5, true},
		{OpLT, 5, 5, false},
		{OpLT, 4.9, 5, true},
		{OpGTE, 5, 5, true},
		{OpGTE, 4.9, 5, false},
		{OpLTE, 5, 5, true},
		{OpLTE, 5.1, 5, false},
		{OpEQ, 5, 5, true},
		{OpEQ, 5.1, 5, false},
		{OpNEQ, 5, 5, false},
		{OpNEQ, 5.1, 5, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			got, err := tc.op.Compare(tc.value, tc.threshold)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "%v %s %v", tc.value, tc.op, tc.threshold)
		})
	}
}

// TestOperatorUnknown verifies an unknown operator errors.
func TestOperatorUnknown(t *testing.T) {
	_, err := Operator("~").Compare(1, 2)
	assert.Error(t, err)
}

// TestEvaluateIsDeterministic verifies the same (rule, snapshot) pair
// always yields the same triggered value.
func TestEvaluateIsDeterministic(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Append(testRule("cost-gt", DomainCost, "daily_cost", OpGT, 5.0)))
	engine := NewEngine(store)

	snapshot := Snapshot{
		Domain:    DomainCost,
		Metrics:   map[string]float64{"daily_cost": 7.2},
		Timestamp: time.Now(),
	}

	for i := 0; i < 3; i++ {
		ev, err := engine.Evaluate(context.Background(), snapshot)
		require.NoError(t, err)
		require.Len(t, ev.Results, 1)
		assert.True(t, ev.Results[0].Triggered)
		assert.Equal(t, 7.2, ev.Results[0].ActualValue)
		assert.Equal(t, SeverityHigh, ev.Results[0].Severity)
		assert.True(t, ev.Success)
	}
}

// TestEvaluateMissingKeyReadsZero verifies a missing metric evaluates
// as 0 without failing the pass.
func TestEvaluateMissingKeyReadsZero(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Append(
		testRule("missing-gt", DomainResource, "absent_metric", OpGT, 10),
		testRule("missing-lt", DomainResource, "absent_metric", OpLT, 10),
	))
	engine := NewEngine(store)

	ev, err := engine.Evaluate(context.Background(), Snapshot{
		Domain:  DomainResource,
		Metrics: map[string]float64{},
	})
	require.NoError(t, err)
	require.Len(t, ev.Results, 2)
	assert.Empty(t, ev.Errors)

	assert.False(t, ev.Results[0].Triggered, "0 > 10 must not trigger")
	assert.True(t, ev.Results[1].Triggered, "0 < 10 must trigger")
	assert.Equal(t, float64(0), ev.Results[0].ActualValue)
}

// TestEvaluateIsolatesBadRules verifies a single bad rule records an
// error while the remaining rules still evaluate.
func TestEvaluateIsolatesBadRules(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Append(
		testRule("ok-rule", DomainPerformance, "latency_p99_ms", OpGT, 100),
		testRule("nan-rule", DomainPerformance, "broken_metric", OpGT, 1),
	))
	engine := NewEngine(store)

	ev, err := engine.Evaluate(context.Background(), Snapshot{
		Domain: DomainPerformance,
		Metrics: map[string]float64{
			"latency_p99_ms": 250,
			"broken_metric":  math.NaN(),
		},
	})
	require.NoError(t, err)

	require.Len(t, ev.Results, 1)
	assert.Equal(t, "ok-rule", ev.Results[0].RuleName)
	assert.True(t, ev.Results[0].Triggered)
	require.Len(t, ev.Errors, 1)
	assert.Contains(t, ev.Errors[0], "nan-rule")
	assert.True(t, ev.Success, "one valid result keeps the pass successful")
}

// TestEvaluateAllRulesFailing verifies success flips false only when no
// rule produced a valid result.
func TestEvaluateAllRulesFailing(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Append(testRule("only-rule", DomainCost, "m", OpGT, 1)))
	engine := NewEngine(store)

	ev, err := engine.Evaluate(context.Background(), Snapshot{
		Domain:  DomainCost,
		Metrics: map[string]float64{"m": math.Inf(1)},
	})
	require.NoError(t, err)
	assert.Empty(t, ev.Results)
	assert.False(t, ev.Success)
	assert.Equal(t, float64(0), ev.SuccessRate())
}

// TestEvaluateEmptyDomain verifies a domain with no rules is a
// successful no-op.
func TestEvaluateEmptyDomain(t *testing.T) {
	engine := NewEngine(NewStore(nil))

	ev, err := engine.Evaluate(context.Background(), Snapshot{Domain: Domain("unknown")})
	require.NoError(t, err)
	assert.Empty(t, ev.Results)
	assert.True(t, ev.Success)
	assert.Equal(t, float64(1), ev.SuccessRate())
}

// TestEvaluateRequiresContext verifies the nil-context guard.
func TestEvaluateRequiresContext(t *testing.T) {
	engine := NewEngine(NewStore(nil))
	//nolint:staticcheck // passing nil context is the point of the test
	_, err := engine.Evaluate(nil, Snapshot{Domain: DomainCost})
	assert.Error(t, err)
}

// TestGraduatedTiers verifies the 50/80/100 budget tiers fire
// independently as plain rules.
func TestGraduatedTiers(t *testing.T) {
	store := NewStoreWithDefaults(10.0, nil)
	engine := NewEngine(store)

	t.Run("under 50 percent fires nothing", func(t *testing.T) {
		ev, err := engine.Evaluate(context.Background(), Snapshot{
			Domain:  DomainCost,
			Metrics: map[string]float64{"daily_cost": 4.0},
		})
		require.NoError(t, err)
		assert.Empty(t, ev.Triggered())
	})

	t.Run("at 80 percent fires two tiers", func(t *testing.T) {
		ev, err := engine.Evaluate(context.Background(), Snapshot{
			Domain:  DomainCost,
			Metrics: map[string]float64{"daily_cost": 8.0},
		})
		require.NoError(t, err)
		assert.Len(t, ev.Triggered(), 2)
	})

	t.Run("over budget fires all three", func(t *testing.T) {
		ev, err := engine.Evaluate(context.Background(), Snapshot{
			Domain:  DomainCost,
			Metrics: map[string]float64{"daily_cost": 11.5},
		})
		require.NoError(t, err)
		assert.Len(t, ev.Triggered(), 3)
	})
}
