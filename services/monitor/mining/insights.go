// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mining

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/logstore"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// InsightType identifies an actionable interpretation of mined data.
type InsightType string

const (
	// InsightPerformanceAnomaly marks a pass far slower than the window
	// mean.
	InsightPerformanceAnomaly InsightType = "performance_anomaly"

	// InsightMetricSpike marks a steep half-over-half change in a
	// monitored metric.
	InsightMetricSpike InsightType = "metric_spike"

	// InsightSecurityAlert marks triggered rules in the security or
	// compliance domains.
	InsightSecurityAlert InsightType = "security_alert"

	// InsightPerformanceOptimization suggests performance thresholds
	// need attention.
	InsightPerformanceOptimization InsightType = "performance_optimization"

	// InsightCostOptimization marks a sustained downward cost trend
	// worth capturing in rules.
	InsightCostOptimization InsightType = "cost_optimization"

	// InsightErrorReduction suggests error handling needs attention.
	InsightErrorReduction InsightType = "error_reduction"
)

// anomalyFactor flags a pass whose duration exceeds this multiple of
// the window mean.
const anomalyFactor = 3.0

// spikeThreshold is the relative trend change that upgrades a trend
// pattern into a high-severity spike insight.
const spikeThreshold = 0.20

// Insight is a severity-scored, actionable interpretation derived from
// patterns and window statistics. Insights are ephemeral; they are
// regenerated per mining pass and never persisted as authoritative
// state.
type Insight struct {
	Type            InsightType        `json:"type"`
	Severity        rules.Severity     `json:"severity"`
	Description     string             `json:"description"`
	Domain          rules.Domain       `json:"domain,omitempty"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	Confidence      float64            `json:"confidence"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// InsightGenerator turns records plus mined patterns into insights.
type InsightGenerator struct {
	logger *slog.Logger
}

// NewInsightGenerator creates a generator. A nil logger falls back to
// slog.Default().
func NewInsightGenerator(logger *slog.Logger) *InsightGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightGenerator{logger: logger}
}

// Generate runs every insight detector and returns the concatenation.
// An empty record window yields no insights.
func (g *InsightGenerator) Generate(records []*logstore.ExecutionRecord, patterns []Pattern) []Insight {
	if len(records) == 0 && len(patterns) == 0 {
		return nil
	}
	now := time.Now()

	var out []Insight
	out = append(out, g.durationAnomaly(records, now)...)
	out = append(out, g.metricSpikes(patterns, now)...)
	out = append(out, g.securityFindings(records, now)...)
	out = append(out, g.patternFollowUps(patterns, now)...)

	if len(out) > 0 {
		g.logger.Debug("insight pass complete", slog.Int("insights", len(out)))
	}
	return out
}

// durationAnomaly flags a pass running far beyond the window mean.
func (g *InsightGenerator) durationAnomaly(records []*logstore.ExecutionRecord, now time.Time) []Insight {
	var sum, max float64
	count := 0
	for _, r := range records {
		d := r.Performance.Duration.Seconds()
		if d < 0 {
			continue
		}
		sum += d
		if d > max {
			max = d
		}
		count++
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	if mean == 0 || max <= anomalyFactor*mean {
		return nil
	}
	return []Insight{{
		Type:     InsightPerformanceAnomaly,
		Severity: rules.SeverityHigh,
		Description: fmt.Sprintf("max evaluation duration %.0fms is more than %.0fx the window mean %.0fms",
			max*1000, anomalyFactor, mean*1000),
		Metrics:     map[string]float64{"max_duration_s": max, "mean_duration_s": mean},
		Confidence:  0.8,
		GeneratedAt: now,
	}}
}

// metricSpikes upgrades steep trend patterns into spike insights.
func (g *InsightGenerator) metricSpikes(patterns []Pattern, now time.Time) []Insight {
	var out []Insight
	for _, p := range patterns {
		if p.Type != PatternCostIncrease && p.Type != PatternCostOptimization {
			continue
		}
		if math.Abs(p.Change) <= spikeThreshold {
			continue
		}
		metric := ""
		if len(p.Examples) > 0 {
			metric = p.Examples[0]
		}
		out = append(out, Insight{
			Type:     InsightMetricSpike,
			Severity: rules.SeverityHigh,
			Description: fmt.Sprintf("metric %q moved %.0f%% half over half",
				metric, math.Abs(p.Change)*100),
			Metrics:     map[string]float64{"relative_change": p.Change},
			Confidence:  0.9,
			GeneratedAt: now,
		})
	}
	return out
}

// securityFindings counts triggered rules in the security and
// compliance domains. Any non-zero count is high severity.
func (g *InsightGenerator) securityFindings(records []*logstore.ExecutionRecord, now time.Time) []Insight {
	counts := map[rules.Domain]int{}
	for _, r := range records {
		if r.Domain != rules.DomainSecurity && r.Domain != rules.DomainCompliance {
			continue
		}
		for _, res := range r.Results {
			if res.Triggered {
				counts[r.Domain]++
			}
		}
	}

	var out []Insight
	for _, domain := range []rules.Domain{rules.DomainSecurity, rules.DomainCompliance} {
		n := counts[domain]
		if n == 0 {
			continue
		}
		out = append(out, Insight{
			Type:        InsightSecurityAlert,
			Severity:    rules.SeverityHigh,
			Domain:      domain,
			Description: fmt.Sprintf("%d triggered %s rules in the window", n, domain),
			Metrics:     map[string]float64{"triggered_count": float64(n)},
			Confidence:  0.9,
			GeneratedAt: now,
		})
	}
	return out
}

// patternFollowUps translates operational patterns into the insight
// types the adaptation engine keys its lookup table on.
func (g *InsightGenerator) patternFollowUps(patterns []Pattern, now time.Time) []Insight {
	var out []Insight
	for _, p := range patterns {
		switch p.Type {
		case PatternPerformanceDegradation:
			out = append(out, Insight{
				Type:            InsightPerformanceOptimization,
				Severity:        rules.SeverityMedium,
				Domain:          rules.DomainPerformance,
				Description:     p.Description,
				Recommendations: p.Recommendations,
				Confidence:      p.Confidence,
				GeneratedAt:     now,
			})
		case PatternCostOptimization:
			out = append(out, Insight{
				Type:            InsightCostOptimization,
				Severity:        rules.SeverityLow,
				Domain:          rules.DomainCost,
				Description:     p.Description,
				Recommendations: p.Recommendations,
				Confidence:      p.Confidence,
				GeneratedAt:     now,
			})
		case PatternElevatedErrorRate, PatternRecurringError:
			out = append(out, Insight{
				Type:            InsightErrorReduction,
				Severity:        rules.SeverityMedium,
				Description:     p.Description,
				Recommendations: p.Recommendations,
				Confidence:      p.Confidence,
				GeneratedAt:     now,
			})
		}
	}
	return out
}
