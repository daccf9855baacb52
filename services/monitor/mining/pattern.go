// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mining detects behavioral patterns and generates insights
// from windows of execution records.
//
// # Description
//
// Patterns are statistically derived and recomputed per mining pass;
// they are observations, not ground truth. A small recency cache merges
// recurring patterns by averaging confidence. Insights are one-shot,
// severity-scored interpretations consumed immediately by the
// adaptation engine and the caller.
//
// # Thread Safety
//
// Miner and InsightGenerator are safe for concurrent use.
package mining

import "time"

// PatternType identifies a detected behavioral pattern.
type PatternType string

const (
	// PatternPerformanceDegradation marks evaluation passes running far
	// slower than the window mean.
	PatternPerformanceDegradation PatternType = "performance_degradation"

	// PatternElevatedErrorRate marks a window with more than 10%
	// failing records.
	PatternElevatedErrorRate PatternType = "elevated_error_rate"

	// PatternRecurringError marks an identical error string appearing
	// across multiple records.
	PatternRecurringError PatternType = "recurring_error"

	// PatternHighSuccessRate is the affirmative pattern for a healthy
	// window; it keeps the learner from tightening thresholds on a
	// system that is doing fine.
	PatternHighSuccessRate PatternType = "high_success_rate"

	// PatternCostIncrease marks an upward trend in a monotone metric.
	PatternCostIncrease PatternType = "cost_increase"

	// PatternCostOptimization marks a downward trend in a monotone
	// metric.
	PatternCostOptimization PatternType = "cost_optimization"
)

// Pattern is a statistically-derived, recurring behavior detected
// across a window of execution records.
type Pattern struct {
	// Type identifies the detector that produced this pattern.
	Type PatternType `json:"type"`

	// Frequency counts the occurrences backing the pattern (records,
	// error repetitions, trend samples - detector-specific).
	Frequency int `json:"frequency"`

	// Confidence is the detector's certainty in [0,1]. Merging a
	// recurring pattern averages the prior and current confidence.
	Confidence float64 `json:"confidence"`

	// Description summarizes the finding.
	Description string `json:"description"`

	// Examples carries detector-specific evidence (record IDs, error
	// strings, metric keys).
	Examples []string `json:"examples,omitempty"`

	// Change is the relative change for trend patterns, signed. Zero
	// for non-trend patterns.
	Change float64 `json:"change,omitempty"`

	// Recommendations are the fixed follow-ups for this pattern type.
	Recommendations []string `json:"recommendations"`

	// DetectedAt is when the mining pass ran.
	DetectedAt time.Time `json:"detected_at"`
}

// detectorConfidence fixes the per-detector confidence. Values are
// empirical: trend math is noisier than counting failures.
var detectorConfidence = map[PatternType]float64{
	PatternPerformanceDegradation: 0.8,
	PatternElevatedErrorRate:      0.9,
	PatternRecurringError:         0.85,
	PatternHighSuccessRate:        0.9,
	PatternCostIncrease:           0.7,
	PatternCostOptimization:       0.7,
}

// patternRecommendations is the fixed recommendation table per pattern
// type. Recommendations are data, not generated prose.
var patternRecommendations = map[PatternType][]string{
	PatternPerformanceDegradation: {
		"Profile the slowest evaluation passes",
		"Check for rule-set growth in the affected domain",
		"Consider relaxing per-cycle rule budgets",
	},
	PatternElevatedErrorRate: {
		"Inspect collector output for missing or malformed metrics",
		"Review recently changed rules in the affected domains",
	},
	PatternRecurringError: {
		"Fix the root cause of the repeated error",
		"Add a rule guarding the failing metric",
	},
	PatternHighSuccessRate: {
		"No action needed; avoid tightening thresholds on a healthy system",
	},
	PatternCostIncrease: {
		"Review recent resource provisioning",
		"Lower cost alert thresholds to catch the trend earlier",
	},
	PatternCostOptimization: {
		"Capture the optimization in a baseline",
		"Consider raising stale cost thresholds to reduce alert noise",
	},
}

// recommendationsFor returns the fixed follow-ups for a pattern type.
func recommendationsFor(t PatternType) []string {
	recs := patternRecommendations[t]
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}
