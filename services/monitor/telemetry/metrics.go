// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the monitoring engine.
//
// Description:
//
//	Provides counters, histograms, and gauges for monitoring cycles,
//	rule evaluation, record storage, and the mining/learning passes.
//	All metrics use the "sentinel_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// CyclesTotal counts monitoring cycles by status.
	CyclesTotal metric.Int64Counter

	// CycleDuration records full-cycle duration in seconds.
	CycleDuration metric.Float64Histogram

	// EvaluationsTotal counts rule evaluations by domain and outcome.
	EvaluationsTotal metric.Int64Counter

	// AlertsTotal counts emitted alerts by domain and severity.
	AlertsTotal metric.Int64Counter

	// RecordsAppended counts execution records persisted by domain.
	RecordsAppended metric.Int64Counter

	// StoreDegraded tracks the record store's degraded state
	// (0=healthy, 1=degraded). Registered via RegisterStoreDegraded.
	StoreDegraded metric.Int64ObservableGauge

	// MiningDuration records mining-pass duration in seconds.
	MiningDuration metric.Float64Histogram

	// PatternsTotal counts mined patterns by type.
	PatternsTotal metric.Int64Counter

	// ProposalsTotal counts adaptation proposals by type and outcome.
	ProposalsTotal metric.Int64Counter
}

// NewMetrics registers all engine metrics with the provided meter.
//
// Inputs:
//
//	meter - The OTel meter to register against.
//
// Outputs:
//
//	*Metrics - The metrics instance, fully initialized.
//	error - Non-nil if any registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CyclesTotal, err = meter.Int64Counter(
		"sentinel_cycles_total",
		metric.WithDescription("Total monitoring cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cycles_total: %w", err)
	}

	m.CycleDuration, err = meter.Float64Histogram(
		"sentinel_cycle_duration_seconds",
		metric.WithDescription("Monitoring cycle duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create cycle_duration: %w", err)
	}

	m.EvaluationsTotal, err = meter.Int64Counter(
		"sentinel_rule_evaluations_total",
		metric.WithDescription("Total rule evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule_evaluations_total: %w", err)
	}

	m.AlertsTotal, err = meter.Int64Counter(
		"sentinel_alerts_total",
		metric.WithDescription("Total alerts emitted"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create alerts_total: %w", err)
	}

	m.RecordsAppended, err = meter.Int64Counter(
		"sentinel_records_appended_total",
		metric.WithDescription("Total execution records persisted"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create records_appended_total: %w", err)
	}

	m.MiningDuration, err = meter.Float64Histogram(
		"sentinel_mining_duration_seconds",
		metric.WithDescription("Mining pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create mining_duration: %w", err)
	}

	m.PatternsTotal, err = meter.Int64Counter(
		"sentinel_patterns_total",
		metric.WithDescription("Total patterns mined"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create patterns_total: %w", err)
	}

	m.ProposalsTotal, err = meter.Int64Counter(
		"sentinel_proposals_total",
		metric.WithDescription("Total adaptation proposals by outcome"),
		metric.WithUnit("{proposal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create proposals_total: %w", err)
	}

	return m, nil
}

// RegisterStoreDegraded registers a callback gauge reporting the record
// store's degraded state. The callback runs on each scrape.
//
// Outputs:
//
//	metric.Registration - Handle for cleanup.
//	error - Non-nil if registration fails.
func (m *Metrics) RegisterStoreDegraded(meter metric.Meter, stateFunc func() int64) (metric.Registration, error) {
	var err error
	m.StoreDegraded, err = meter.Int64ObservableGauge(
		"sentinel_store_degraded",
		metric.WithDescription("Record store degraded state (0=healthy, 1=degraded)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create store_degraded: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.StoreDegraded, stateFunc())
		return nil
	}, m.StoreDegraded)
}
