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
	"fmt"
	"math"
	"time"
)

// Engine evaluates metric snapshots against the current rules for a
// domain.
//
// # Description
//
// Evaluation is a pure read: the engine produces results and never
// persists anything. One rule failing to evaluate (unknown operator,
// non-finite value) is recorded as an evaluation error and does not
// abort the rest of the domain pass.
//
// # Thread Safety
//
// Safe for concurrent use; independent domains may be evaluated
// concurrently.
type Engine struct {
	store *Store
}

// Evaluation is the outcome of one domain pass.
type Evaluation struct {
	// Domain is the evaluated domain.
	Domain Domain `json:"domain"`

	// Snapshot is the input snapshot, frozen into the outcome.
	Snapshot Snapshot `json:"snapshot"`

	// Results holds one entry per rule that evaluated cleanly.
	Results []EvaluationResult `json:"results"`

	// Errors lists per-rule evaluation failures.
	Errors []string `json:"errors,omitempty"`

	// RuleCount is the number of rules attempted.
	RuleCount int `json:"rule_count"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"duration"`

	// Success is false only when no rule produced a valid result.
	Success bool `json:"success"`
}

// SuccessRate is the fraction of attempted rules that evaluated cleanly.
// Returns 1 for an empty rule set.
func (e *Evaluation) SuccessRate() float64 {
	if e.RuleCount == 0 {
		return 1
	}
	return float64(len(e.Results)) / float64(e.RuleCount)
}

// Triggered returns the results whose comparison fired.
func (e *Evaluation) Triggered() []EvaluationResult {
	var out []EvaluationResult
	for _, r := range e.Results {
		if r.Triggered {
			out = append(out, r)
		}
	}
	return out
}

// NewEngine creates an engine reading rules from the given store.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store}
}

// Evaluate runs every rule of the snapshot's domain against the snapshot.
//
// # Description
//
// A metric key missing from the snapshot evaluates as 0 rather than
// failing the rule; cloud collectors routinely omit idle metrics and a
// hole in one snapshot must not mask the remaining rules. Non-finite
// values (NaN, ±Inf) are evaluation errors for that rule only.
//
// # Inputs
//
//   - ctx: Context for cancellation, checked between rules.
//   - snapshot: The metric snapshot to evaluate.
//
// # Outputs
//
//   - *Evaluation: Per-rule results plus pass statistics.
//   - error: Non-nil only for nil context or cancellation, never for
//     per-rule failures.
func (e *Engine) Evaluate(ctx context.Context, snapshot Snapshot) (*Evaluation, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	start := time.Now()
	ruleSet := e.store.Rules(snapshot.Domain)

	ev := &Evaluation{
		Domain:    snapshot.Domain,
		Snapshot:  snapshot,
		Results:   make([]EvaluationResult, 0, len(ruleSet)),
		RuleCount: len(ruleSet),
	}

	now := time.Now()
	for _, rule := range ruleSet {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		value := snapshot.Metrics[rule.MetricKey] // missing key reads as 0

		if math.IsNaN(value) || math.IsInf(value, 0) {
			ev.Errors = append(ev.Errors,
				fmt.Sprintf("rule %q: metric %q has non-finite value", rule.Name, rule.MetricKey))
			continue
		}

		triggered, err := rule.Operator.Compare(value, rule.Threshold)
		if err != nil {
			ev.Errors = append(ev.Errors, fmt.Sprintf("rule %q: %v", rule.Name, err))
			continue
		}

		ev.Results = append(ev.Results, EvaluationResult{
			RuleName:    rule.Name,
			Domain:      rule.Domain,
			MetricKey:   rule.MetricKey,
			Threshold:   rule.Threshold,
			ActualValue: value,
			Operator:    rule.Operator,
			Triggered:   triggered,
			Severity:    rule.Severity,
			Action:      rule.Action,
			Timestamp:   now,
		})
	}

	ev.Duration = time.Since(start)
	// Success only fails when every rule failed; an empty rule set is a
	// successful no-op pass.
	ev.Success = len(ev.Results) > 0 || ev.RuleCount == 0

	return ev, nil
}
