// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package monitor wires the rule engine, record store, pattern mining,
// and adaptation layers into a periodic monitoring service.
//
// # Description
//
// One cycle runs snapshot collection, rule evaluation, and record
// persistence per domain, then on a coarser cadence mines the recent
// window for patterns and insights and lets the adaptation engine
// propose rule changes. Control flow is one-directional per cycle;
// learned output is advisory, and the only path that can change the
// rule set is the explicit ApplyProposal approval gate.
package monitor

import (
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/adaptation"
	"github.com/AleutianAI/sentinel/services/monitor/mining"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// Alert is one reportable rule breach. When several graduated tiers
// trigger on the same metric in one pass, only the highest-severity
// tier becomes an Alert; the full results stay in the execution record.
type Alert struct {
	// Rule is the name of the triggering rule.
	Rule string `json:"rule"`

	// Domain is the rule's domain.
	Domain rules.Domain `json:"domain"`

	// Severity is the rule's severity.
	Severity rules.Severity `json:"severity"`

	// Action is the rule's configured action.
	Action rules.Action `json:"action"`

	// MetricKey is the breached metric.
	MetricKey string `json:"metric_key"`

	// Value is the observed metric value.
	Value float64 `json:"value"`

	// Threshold is the rule threshold.
	Threshold float64 `json:"threshold"`

	// Description summarizes the breach.
	Description string `json:"description"`

	// Timestamp is when the breach was evaluated.
	Timestamp time.Time `json:"timestamp"`
}

// Recommendation is one advisory follow-up surfaced in a cycle output.
type Recommendation struct {
	// Type names the recommendation's origin (pattern or adaptation
	// type).
	Type string `json:"type"`

	// Description is the follow-up text.
	Description string `json:"description"`

	// Confidence is the originating finding's confidence.
	Confidence float64 `json:"confidence"`
}

// CycleOutput is what one monitoring cycle hands to the caller.
type CycleOutput struct {
	// Cycle is the 1-based cycle counter.
	Cycle int `json:"cycle"`

	// StartedAt is when the cycle began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the full cycle took.
	Duration time.Duration `json:"duration"`

	// Alerts are the tier-suppressed rule breaches of this cycle.
	Alerts []Alert `json:"alerts"`

	// Recommendations merge pattern follow-ups and proposal summaries.
	Recommendations []Recommendation `json:"recommendations"`

	// Proposals are the adaptation proposals touched by this cycle's
	// learning pass. Always pending; nothing here is applied.
	Proposals []adaptation.Proposal `json:"proposals"`

	// Patterns are the mining results, present only on mining cycles.
	Patterns []mining.Pattern `json:"patterns,omitempty"`

	// Insights are the insight results, present only on mining cycles.
	Insights []mining.Insight `json:"insights,omitempty"`

	// Mined reports whether this cycle ran the mining pass.
	Mined bool `json:"mined"`

	// Degraded reports whether the record store is buffering in memory.
	Degraded bool `json:"degraded"`

	// Errors lists per-domain collection or evaluation failures. A
	// domain failing never aborts the cycle.
	Errors []string `json:"errors,omitempty"`
}

// Status is the engine status surface for the API.
type Status struct {
	// Running reports whether the periodic loop is active.
	Running bool `json:"running"`

	// Cycles is how many cycles have completed.
	Cycles int `json:"cycles"`

	// LastCycleAt is when the most recent cycle finished.
	LastCycleAt time.Time `json:"last_cycle_at"`

	// Degraded reports the record store's degraded flag.
	Degraded bool `json:"degraded"`

	// BufferedRecords counts records waiting in the degraded buffer.
	BufferedRecords int `json:"buffered_records"`

	// Domains lists the monitored domains.
	Domains []rules.Domain `json:"domains"`

	// RuleCount is the total rule count across domains.
	RuleCount int `json:"rule_count"`

	// PendingProposals counts unresolved adaptation proposals.
	PendingProposals int `json:"pending_proposals"`

	// Models describes the predictive model families.
	Models []adaptation.ModelInfo `json:"models"`
}
