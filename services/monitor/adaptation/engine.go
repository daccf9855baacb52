// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adaptation

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/sentinel/services/monitor/logstore"
	"github.com/AleutianAI/sentinel/services/monitor/mining"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

const (
	// defaultProposalCacheSize bounds the recurring-proposal cache.
	defaultProposalCacheSize = 32

	// minProposalConfidence is the floor below which findings emit no
	// proposal.
	minProposalConfidence = 0.5

	// maxProposalExamples bounds the evidence kept on a recurring
	// proposal. Merges keep the most recent entries.
	maxProposalExamples = 8
)

// Options configures an Engine.
type Options struct {
	// Logger receives engine events. Default: slog.Default().
	Logger *slog.Logger

	// ProposalCacheSize bounds the recurring-proposal cache.
	// Default: 32.
	ProposalCacheSize int

	// NewModel builds the regression backing each family. Default: the
	// built-in linear model.
	NewModel func() Model
}

// Engine consumes insights and patterns, emits proposals, and keeps
// one predictive model per forecastable family.
type Engine struct {
	logger *slog.Logger
	slots  map[Family]*modelSlot

	mu       sync.Mutex
	cache    map[string]*Proposal
	cacheCap int
}

// NewEngine creates an adaptation engine.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ProposalCacheSize <= 0 {
		opts.ProposalCacheSize = defaultProposalCacheSize
	}
	if opts.NewModel == nil {
		opts.NewModel = newLinearModel
	}
	return &Engine{
		logger:   opts.Logger,
		slots:    newModelSlots(opts.NewModel),
		cache:    make(map[string]*Proposal),
		cacheCap: opts.ProposalCacheSize,
	}
}

// finding is the common shape of an insight or pattern entering the
// lookup table.
type finding struct {
	typ         string
	domain      rules.Domain
	description string
	confidence  float64
}

// Learn maps findings to proposals and refits every predictive model
// against the record batch.
//
// # Description
//
// Unmapped finding types and findings below the confidence floor emit
// nothing. A recurring proposal (same type and domain) is merged with
// its cached predecessor by averaging confidence and appending the new
// evidence; only the most recent evidence entries are kept. A single model's refit failure is reported in its
// ModelUpdate and never blocks the other models or the pass. Nothing
// here mutates any rule store.
//
// # Inputs
//
//   - insights: Insights from the current mining pass.
//   - patterns: Patterns from the current mining pass.
//   - records: The record batch the models refit against.
//
// # Outputs
//
//   - []Proposal: The proposals touched by this pass, merged state.
//   - []ModelUpdate: Per-family refit outcomes, in family order.
func (e *Engine) Learn(insights []mining.Insight, patterns []mining.Pattern, records []*logstore.ExecutionRecord) ([]Proposal, []ModelUpdate) {
	now := time.Now()

	var findings []finding
	for _, in := range insights {
		findings = append(findings, finding{
			typ:         string(in.Type),
			domain:      in.Domain,
			description: in.Description,
			confidence:  in.Confidence,
		})
	}
	for _, p := range patterns {
		findings = append(findings, finding{
			typ:         string(p.Type),
			domain:      patternDomain(p.Type),
			description: p.Description,
			confidence:  p.Confidence,
		})
	}

	touched := make(map[string]*Proposal)
	e.mu.Lock()
	for _, f := range findings {
		atype, mapped := adaptationLookup[f.typ]
		if !mapped || f.confidence < minProposalConfidence {
			continue
		}
		p := e.upsertLocked(atype, f, now)
		touched[p.cacheKey()] = p
	}
	proposals := make([]Proposal, 0, len(touched))
	for _, p := range touched {
		proposals = append(proposals, *p)
	}
	e.mu.Unlock()

	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].Confidence > proposals[j].Confidence
	})

	updates := e.refitModels(records, now)

	if len(proposals) > 0 {
		e.logger.Debug("learning pass complete",
			slog.Int("findings", len(findings)),
			slog.Int("proposals", len(proposals)))
	}
	return proposals, updates
}

// upsertLocked merges a finding into the proposal cache. Caller holds
// the lock.
func (e *Engine) upsertLocked(atype Type, f finding, now time.Time) *Proposal {
	key := string(atype) + "|" + string(f.domain)
	if prev, ok := e.cache[key]; ok {
		prev.Confidence = (prev.Confidence + f.confidence) / 2
		prev.Examples = append(prev.Examples, f.description)
		if len(prev.Examples) > maxProposalExamples {
			prev.Examples = prev.Examples[len(prev.Examples)-maxProposalExamples:]
		}
		prev.UpdatedAt = now
		return prev
	}

	if len(e.cache) >= e.cacheCap {
		e.evictLowestLocked()
	}
	p := &Proposal{
		ID:                 uuid.NewString(),
		Type:               atype,
		Domain:             f.domain,
		CurrentLogic:       f.description,
		SuggestedLogic:     suggestedLogic[atype],
		Reasoning:          "recurring " + f.typ + " finding in the recent record window",
		Confidence:         f.confidence,
		RequiresValidation: true,
		Examples:           []string{f.description},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	e.cache[key] = p
	return p
}

// evictLowestLocked drops the lowest-confidence cached proposal.
// Caller holds the lock.
func (e *Engine) evictLowestLocked() {
	var victim string
	lowest := math.Inf(1)
	for k, p := range e.cache {
		if p.Confidence < lowest {
			lowest = p.Confidence
			victim = k
		}
	}
	if victim != "" {
		delete(e.cache, victim)
	}
}

// patternDomain maps pattern types to the domain a proposal should
// name.
func patternDomain(t mining.PatternType) rules.Domain {
	switch t {
	case mining.PatternPerformanceDegradation:
		return rules.DomainPerformance
	case mining.PatternCostIncrease, mining.PatternCostOptimization:
		return rules.DomainCost
	default:
		return ""
	}
}

// refitModels refits every family independently. One family's failure
// never blocks the others.
func (e *Engine) refitModels(records []*logstore.ExecutionRecord, now time.Time) []ModelUpdate {
	updates := make([]ModelUpdate, 0, len(e.slots))
	for _, family := range Families() {
		update := e.slots[family].refit(records, now)
		if update.Error != "" {
			e.logger.Warn("model refit skipped",
				slog.String("family", string(family)),
				slog.String("error", update.Error))
		}
		updates = append(updates, update)
	}
	return updates
}

// Predict scores a feature vector against a family's committed model.
//
// # Description
//
// Pure read. An untrained family returns the defined unavailable
// result rather than an error, so callers never have to special-case
// cold starts.
func (e *Engine) Predict(family Family, features []float64) Prediction {
	slot, ok := e.slots[family]
	if !ok {
		return unavailablePrediction()
	}
	committed := slot.current.Load()
	if committed == nil {
		return unavailablePrediction()
	}

	score, err := committed.model.Score(features)
	if err != nil {
		e.logger.Warn("prediction failed",
			slog.String("family", string(family)),
			slog.String("error", err.Error()))
		return unavailablePrediction()
	}
	return Prediction{
		Available:       true,
		Score:           score,
		Confidence:      committed.accuracy,
		Recommendations: predictionRecommendations(family, score),
	}
}

func unavailablePrediction() Prediction {
	return Prediction{
		Available:       false,
		Recommendations: []string{"Model has no committed training yet; collect more records"},
	}
}

// predictionRecommendations interprets a score for the caller. Fixed
// text per family and score band.
func predictionRecommendations(family Family, score float64) []string {
	switch family {
	case FamilyPerformance:
		if score < 0.5 {
			return []string{"Evaluation performance is at risk; review performance thresholds"}
		}
		return []string{"Evaluation performance is expected to stay healthy"}
	case FamilyCostOptimization:
		if score >= 0.5 {
			return []string{"Cost optimization potential detected; consider tightening budget rules"}
		}
		return []string{"Little cost optimization headroom in the current window"}
	case FamilyErrorProbability:
		if score >= 0.5 {
			return []string{"Elevated failure probability; inspect collector output and failing rules"}
		}
		return []string{"Failure probability is low for the current window"}
	default:
		return nil
	}
}

// ModelInfos returns the committed state of every family, trained or
// not. Untrained families report a zero LastTrained.
func (e *Engine) ModelInfos() []ModelInfo {
	infos := make([]ModelInfo, 0, len(e.slots))
	for _, family := range Families() {
		slot := e.slots[family]
		if committed := slot.current.Load(); committed != nil {
			infos = append(infos, committed.info)
			continue
		}
		infos = append(infos, ModelInfo{
			Family:       family,
			FeatureNames: slot.features,
		})
	}
	return infos
}

// Proposals returns a copy of every cached proposal, highest
// confidence first.
func (e *Engine) Proposals() []Proposal {
	e.mu.Lock()
	out := make([]Proposal, 0, len(e.cache))
	for _, p := range e.cache {
		out = append(out, *p)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Proposal looks up a cached proposal by ID.
func (e *Engine) Proposal(id string) (Proposal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.cache {
		if p.ID == id {
			return *p, true
		}
	}
	return Proposal{}, false
}

// Remove drops a proposal from the cache after the approval gate has
// resolved it.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, p := range e.cache {
		if p.ID == id {
			delete(e.cache, key)
			return true
		}
	}
	return false
}
