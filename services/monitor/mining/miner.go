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
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/logstore"
)

const (
	// degradationFactor flags passes whose duration exceeds this
	// multiple of the window mean.
	degradationFactor = 1.5

	// errorRateThreshold is the failing-record fraction above which the
	// elevated-error-rate pattern fires.
	errorRateThreshold = 0.10

	// successRateThreshold is the healthy-window fraction above which
	// the affirmative pattern fires.
	successRateThreshold = 0.90

	// trendThreshold is the relative half-over-half change that counts
	// as a trend.
	trendThreshold = 0.10

	// maxRecurringErrors caps how many distinct repeated errors are
	// reported per pass.
	maxRecurringErrors = 3

	// defaultCacheSize bounds the recurring-pattern merge cache.
	defaultCacheSize = 64
)

// Miner detects behavioral patterns in a window of execution records.
//
// # Description
//
// Mine is a pure function of its input except for a bounded recency
// cache: a pattern seen in an earlier pass is merged with the current
// occurrence by averaging the two confidences. Each detector runs
// independently; a record that one detector cannot use is skipped from
// that detector's statistics without affecting the others.
//
// # Thread Safety
//
// Safe for concurrent use.
type Miner struct {
	logger *slog.Logger

	mu       sync.Mutex
	cache    map[string]Pattern
	cacheCap int
}

// NewMiner creates a pattern miner. A nil logger falls back to
// slog.Default().
func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{
		logger:   logger,
		cache:    make(map[string]Pattern),
		cacheCap: defaultCacheSize,
	}
}

// Mine runs every detector over the record window and returns the
// concatenated patterns.
//
// # Inputs
//
//   - records: The record window, any order. An empty window yields an
//     empty pattern list.
//
// # Outputs
//
//   - []Pattern: Detected patterns, merged against the recency cache.
func (m *Miner) Mine(records []*logstore.ExecutionRecord) []Pattern {
	if len(records) == 0 {
		return nil
	}
	now := time.Now()

	var found []Pattern
	found = append(found, m.detectDegradation(records, now)...)
	found = append(found, m.detectErrorRate(records, now)...)
	found = append(found, m.detectRecurringErrors(records, now)...)
	found = append(found, m.detectHighSuccess(records, now)...)
	found = append(found, m.detectTrends(records, now)...)

	merged := make([]Pattern, 0, len(found))
	for _, p := range found {
		merged = append(merged, m.merge(p))
	}
	if len(merged) > 0 {
		m.logger.Debug("mining pass complete",
			slog.Int("records", len(records)),
			slog.Int("patterns", len(merged)))
	}
	return merged
}

// merge folds a pattern into the recency cache. A recurring pattern's
// confidence becomes the average of the prior and current confidence.
func (m *Miner) merge(p Pattern) Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.mergeKey()
	if prev, ok := m.cache[key]; ok {
		p.Confidence = (prev.Confidence + p.Confidence) / 2
	} else if len(m.cache) >= m.cacheCap {
		m.evictLowestLocked()
	}
	m.cache[key] = p
	return p
}

// evictLowestLocked drops the lowest-confidence cached pattern. Caller
// holds the lock.
func (m *Miner) evictLowestLocked() {
	var victim string
	lowest := math.Inf(1)
	for k, v := range m.cache {
		if v.Confidence < lowest {
			lowest = v.Confidence
			victim = k
		}
	}
	if victim != "" {
		delete(m.cache, victim)
	}
}

// mergeKey identifies a pattern for cache merging. Recurring errors and
// trends are distinguished by their evidence so unrelated findings do
// not share a confidence history.
func (p Pattern) mergeKey() string {
	key := string(p.Type)
	if len(p.Examples) > 0 {
		key += "|" + p.Examples[0]
	}
	return key
}

// detectDegradation flags windows where the slowest pass is well beyond
// the mean.
func (m *Miner) detectDegradation(records []*logstore.ExecutionRecord, now time.Time) []Pattern {
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
	if mean == 0 || max <= degradationFactor*mean {
		return nil
	}

	slow := 0
	for _, r := range records {
		if r.Performance.Duration.Seconds() > degradationFactor*mean {
			slow++
		}
	}
	return []Pattern{{
		Type:       PatternPerformanceDegradation,
		Frequency:  slow,
		Confidence: detectorConfidence[PatternPerformanceDegradation],
		Description: fmt.Sprintf("max evaluation duration %.0fms exceeds %.1fx the window mean %.0fms",
			max*1000, degradationFactor, mean*1000),
		Recommendations: recommendationsFor(PatternPerformanceDegradation),
		DetectedAt:      now,
	}}
}

// detectErrorRate flags windows with too many failing records.
func (m *Miner) detectErrorRate(records []*logstore.ExecutionRecord, now time.Time) []Pattern {
	failing := 0
	for _, r := range records {
		if r.Failed() {
			failing++
		}
	}
	rate := float64(failing) / float64(len(records))
	if rate <= errorRateThreshold {
		return nil
	}
	return []Pattern{{
		Type:            PatternElevatedErrorRate,
		Frequency:       failing,
		Confidence:      detectorConfidence[PatternElevatedErrorRate],
		Description:     fmt.Sprintf("%.0f%% of records in the window are failing", rate*100),
		Recommendations: recommendationsFor(PatternElevatedErrorRate),
		DetectedAt:      now,
	}}
}

// detectRecurringErrors reports identical error strings seen more than
// once, capped to the most frequent few.
func (m *Miner) detectRecurringErrors(records []*logstore.ExecutionRecord, now time.Time) []Pattern {
	counts := make(map[string]int)
	for _, r := range records {
		if !r.Failed() {
			continue
		}
		for _, e := range r.Errors {
			counts[e]++
		}
	}

	type repeat struct {
		msg   string
		count int
	}
	var repeats []repeat
	for msg, c := range counts {
		if c > 1 {
			repeats = append(repeats, repeat{msg, c})
		}
	}
	// Sort by count descending, then lexicographically for a stable
	// top-N under ties.
	sort.Slice(repeats, func(i, j int) bool {
		if repeats[i].count != repeats[j].count {
			return repeats[i].count > repeats[j].count
		}
		return repeats[i].msg < repeats[j].msg
	})
	if len(repeats) > maxRecurringErrors {
		repeats = repeats[:maxRecurringErrors]
	}

	out := make([]Pattern, 0, len(repeats))
	for _, rp := range repeats {
		out = append(out, Pattern{
			Type:            PatternRecurringError,
			Frequency:       rp.count,
			Confidence:      detectorConfidence[PatternRecurringError],
			Description:     fmt.Sprintf("error repeated %d times in the window", rp.count),
			Examples:        []string{rp.msg},
			Recommendations: recommendationsFor(PatternRecurringError),
			DetectedAt:      now,
		})
	}
	return out
}

// detectHighSuccess emits the affirmative healthy-window pattern.
func (m *Miner) detectHighSuccess(records []*logstore.ExecutionRecord, now time.Time) []Pattern {
	healthy := 0
	for _, r := range records {
		if !r.Failed() {
			healthy++
		}
	}
	rate := float64(healthy) / float64(len(records))
	if rate <= successRateThreshold {
		return nil
	}
	return []Pattern{{
		Type:            PatternHighSuccessRate,
		Frequency:       healthy,
		Confidence:      detectorConfidence[PatternHighSuccessRate],
		Description:     fmt.Sprintf("%.0f%% of records in the window succeeded", rate*100),
		Recommendations: recommendationsFor(PatternHighSuccessRate),
		DetectedAt:      now,
	}}
}

// detectTrends compares first-half and second-half means per metric key
// across the time-ordered window.
func (m *Miner) detectTrends(records []*logstore.ExecutionRecord, now time.Time) []Pattern {
	ordered := make([]*logstore.ExecutionRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	// Collect time-ordered samples per metric key.
	series := make(map[string][]float64)
	for _, r := range ordered {
		for key, v := range r.Snapshot.Metrics {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			series[key] = append(series[key], v)
		}
	}

	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Pattern
	for _, key := range keys {
		values := series[key]
		if len(values) < 4 {
			continue
		}
		half := len(values) / 2
		first := mean(values[:half])
		second := mean(values[half:])
		if first == 0 {
			continue
		}
		change := (second - first) / first
		if math.Abs(change) <= trendThreshold {
			continue
		}

		ptype := PatternCostIncrease
		direction := "up"
		if change < 0 {
			ptype = PatternCostOptimization
			direction = "down"
		}
		out = append(out, Pattern{
			Type:       ptype,
			Frequency:  len(values),
			Confidence: detectorConfidence[ptype],
			Description: fmt.Sprintf("metric %q trending %s %.0f%% half over half",
				key, direction, math.Abs(change)*100),
			Examples:        []string{key},
			Change:          change,
			Recommendations: recommendationsFor(ptype),
			DetectedAt:      now,
		})
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
