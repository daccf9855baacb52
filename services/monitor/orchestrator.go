// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/sentinel/services/monitor/adaptation"
	"github.com/AleutianAI/sentinel/services/monitor/collector"
	"github.com/AleutianAI/sentinel/services/monitor/logstore"
	"github.com/AleutianAI/sentinel/services/monitor/mining"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
	"github.com/AleutianAI/sentinel/services/monitor/telemetry"
)

// ErrUnknownProposal is returned when the approval gate is invoked with
// an ID the adaptation engine does not hold.
var ErrUnknownProposal = errors.New("unknown proposal")

// OrchestratorOptions wires an Orchestrator.
type OrchestratorOptions struct {
	Rules     *rules.Store
	Records   *logstore.Store
	Collector collector.Collector

	// MiningEveryNCycles runs mining on every Nth cycle. Default: 1.
	MiningEveryNCycles int

	// RecentWindow bounds the mining window. Default: 24h.
	RecentWindow time.Duration

	// Retention is applied after each mining pass.
	Retention logstore.RetentionPolicy

	// Metrics is optional; nil disables instrument recording.
	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator runs monitoring cycles and owns the proposal approval
// gate.
//
// # Thread Safety
//
// Safe for concurrent use, though cycles are expected to run from a
// single periodic loop. Read surfaces (Status, Patterns, Insights)
// never block a running cycle's domain evaluation.
type Orchestrator struct {
	rules    *rules.Store
	engine   *rules.Engine
	records  *logstore.Store
	miner    *mining.Miner
	insights *mining.InsightGenerator
	adapter  *adaptation.Engine
	source   collector.Collector
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	miningEvery  int
	recentWindow time.Duration
	retention    logstore.RetentionPolicy

	mu           sync.Mutex
	cycles       int
	lastCycleAt  time.Time
	lastPatterns []mining.Pattern
	lastInsights []mining.Insight
}

// NewOrchestrator assembles the cycle pipeline.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Rules == nil || opts.Records == nil || opts.Collector == nil {
		return nil, fmt.Errorf("rules, records, and collector are required")
	}
	if opts.MiningEveryNCycles <= 0 {
		opts.MiningEveryNCycles = 1
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		rules:        opts.Rules,
		engine:       rules.NewEngine(opts.Rules),
		records:      opts.Records,
		miner:        mining.NewMiner(opts.Logger),
		insights:     mining.NewInsightGenerator(opts.Logger),
		adapter:      adaptation.NewEngine(adaptation.Options{Logger: opts.Logger}),
		source:       opts.Collector,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		miningEvery:  opts.MiningEveryNCycles,
		recentWindow: opts.RecentWindow,
		retention:    opts.Retention,
	}, nil
}

// domainOutcome is one domain's result within a cycle.
type domainOutcome struct {
	evaluation *rules.Evaluation
	err        error
}

// RunCycle executes one full monitoring cycle.
//
// # Description
//
// Collects a snapshot and evaluates rules for every domain
// concurrently, persists one execution record per domain, aggregates
// tier-suppressed alerts, and on the mining cadence runs the pattern,
// insight, and learning passes over the recent window. A single
// domain's collector or evaluation failure is reported in the output's
// Errors and never aborts the cycle; only context cancellation returns
// an error.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//
// # Outputs
//
//   - *CycleOutput: The aggregated cycle result.
//   - error: Non-nil only for context errors.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleOutput, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	started := time.Now()

	domains := o.source.Domains()
	if len(domains) == 0 {
		domains = o.rules.Domains()
	}

	outcomes := make([]domainOutcome, len(domains))
	g, gctx := errgroup.WithContext(ctx)
	for i, domain := range domains {
		g.Go(func() error {
			outcomes[i] = o.evaluateDomain(gctx, domain)
			if outcomes[i].err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.cycles++
	cycle := o.cycles
	o.lastCycleAt = started
	o.mu.Unlock()

	out := &CycleOutput{
		Cycle:     cycle,
		StartedAt: started,
	}
	for i, outcome := range outcomes {
		if outcome.err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("domain %s: %v", domains[i], outcome.err))
			continue
		}
		out.Alerts = append(out.Alerts, suppressTiers(outcome.evaluation)...)
	}

	if cycle%o.miningEvery == 0 {
		o.runMiningPass(ctx, out)
	}

	// Give buffered records a chance to land between cycles.
	o.records.RetryFlush(ctx)
	out.Degraded = o.records.Degraded()
	out.Duration = time.Since(started)

	o.recordCycleMetrics(ctx, out)
	o.logger.Info("monitoring cycle complete",
		slog.Int("cycle", out.Cycle),
		slog.Int("alerts", len(out.Alerts)),
		slog.Int("errors", len(out.Errors)),
		slog.Bool("mined", out.Mined),
		slog.Duration("duration", out.Duration))
	return out, nil
}

// evaluateDomain collects one domain's snapshot, evaluates its rules,
// and persists the execution record.
func (o *Orchestrator) evaluateDomain(ctx context.Context, domain rules.Domain) domainOutcome {
	snapshot, err := o.source.Collect(ctx, domain)
	if err != nil {
		return domainOutcome{err: fmt.Errorf("collect snapshot: %w", err)}
	}
	snapshot.Domain = domain

	evaluation, err := o.engine.Evaluate(ctx, snapshot)
	if err != nil {
		return domainOutcome{err: fmt.Errorf("evaluate rules: %w", err)}
	}

	record := &logstore.ExecutionRecord{
		Timestamp: snapshot.Timestamp,
		Domain:    domain,
		Snapshot:  snapshot,
		Results:   evaluation.Results,
		Performance: logstore.Performance{
			Duration:    evaluation.Duration,
			RuleCount:   evaluation.RuleCount,
			SuccessRate: evaluation.SuccessRate(),
		},
		Errors:  evaluation.Errors,
		Success: evaluation.Success,
	}
	if _, err := o.records.Append(ctx, record); err != nil {
		return domainOutcome{err: fmt.Errorf("append record: %w", err)}
	}

	if o.metrics != nil {
		o.metrics.EvaluationsTotal.Add(ctx, int64(evaluation.RuleCount),
			metric.WithAttributes(attribute.String("domain", string(domain))))
		o.metrics.RecordsAppended.Add(ctx, 1,
			metric.WithAttributes(attribute.String("domain", string(domain))))
	}
	return domainOutcome{evaluation: evaluation}
}

// suppressTiers converts triggered results into alerts, reporting only
// the highest-severity breach per metric. Graduated tiers on one metric
// collapse to the top tier; the execution record keeps every result.
func suppressTiers(evaluation *rules.Evaluation) []Alert {
	best := make(map[string]rules.EvaluationResult)
	var order []string
	for _, res := range evaluation.Results {
		if !res.Triggered {
			continue
		}
		prev, seen := best[res.MetricKey]
		if !seen {
			order = append(order, res.MetricKey)
			best[res.MetricKey] = res
			continue
		}
		if res.Severity.Rank() > prev.Severity.Rank() ||
			(res.Severity.Rank() == prev.Severity.Rank() && res.Threshold > prev.Threshold) {
			best[res.MetricKey] = res
		}
	}

	alerts := make([]Alert, 0, len(order))
	for _, key := range order {
		res := best[key]
		alerts = append(alerts, Alert{
			Rule:      res.RuleName,
			Domain:    res.Domain,
			Severity:  res.Severity,
			Action:    res.Action,
			MetricKey: res.MetricKey,
			Value:     res.ActualValue,
			Threshold: res.Threshold,
			Description: fmt.Sprintf("rule %q: %s %s %g (observed %g)",
				res.RuleName, res.MetricKey, res.Operator, res.Threshold, res.ActualValue),
			Timestamp: res.Timestamp,
		})
	}
	return alerts
}

// runMiningPass mines the recent window, generates insights, runs the
// learning pass, and applies retention.
func (o *Orchestrator) runMiningPass(ctx context.Context, out *CycleOutput) {
	miningStart := time.Now()

	window, err := o.records.Records(ctx, logstore.Query{
		From: time.Now().Add(-o.recentWindow),
	})
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("mining window query: %v", err))
		return
	}

	patterns := o.miner.Mine(window)
	insights := o.insights.Generate(window, patterns)
	proposals, updates := o.adapter.Learn(insights, patterns, window)

	out.Mined = true
	out.Patterns = patterns
	out.Insights = insights
	out.Proposals = proposals
	out.Recommendations = buildRecommendations(patterns, proposals)

	o.mu.Lock()
	o.lastPatterns = patterns
	o.lastInsights = insights
	o.mu.Unlock()

	for _, u := range updates {
		if u.Error != "" {
			o.logger.Debug("model update skipped",
				slog.String("family", string(u.Family)),
				slog.String("reason", u.Error))
		}
	}

	if removed, err := o.records.Prune(ctx, o.retention); err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("retention prune: %v", err))
	} else if removed > 0 {
		o.logger.Info("retention pruned records", slog.Int("removed", removed))
	}

	if o.metrics != nil {
		o.metrics.MiningDuration.Record(ctx, time.Since(miningStart).Seconds())
		for _, p := range patterns {
			o.metrics.PatternsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("type", string(p.Type))))
		}
		for _, p := range proposals {
			o.metrics.ProposalsTotal.Add(ctx, 1,
				metric.WithAttributes(
					attribute.String("type", string(p.Type)),
					attribute.String("outcome", "proposed")))
		}
	}
}

// buildRecommendations merges pattern follow-ups and proposal
// summaries, deduplicated by text.
func buildRecommendations(patterns []mining.Pattern, proposals []adaptation.Proposal) []Recommendation {
	seen := make(map[string]bool)
	var out []Recommendation
	for _, p := range patterns {
		for _, rec := range p.Recommendations {
			if seen[rec] {
				continue
			}
			seen[rec] = true
			out = append(out, Recommendation{
				Type:        string(p.Type),
				Description: rec,
				Confidence:  p.Confidence,
			})
		}
	}
	for _, p := range proposals {
		if seen[p.SuggestedLogic] {
			continue
		}
		seen[p.SuggestedLogic] = true
		out = append(out, Recommendation{
			Type:        string(p.Type),
			Description: p.SuggestedLogic,
			Confidence:  p.Confidence,
		})
	}
	return out
}

// recordCycleMetrics updates the cycle-level instruments.
func (o *Orchestrator) recordCycleMetrics(ctx context.Context, out *CycleOutput) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if len(out.Errors) > 0 {
		status = "partial"
	}
	o.metrics.CyclesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
	o.metrics.CycleDuration.Record(ctx, out.Duration.Seconds())
	for _, a := range out.Alerts {
		o.metrics.AlertsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("domain", string(a.Domain)),
				attribute.String("severity", string(a.Severity))))
	}
}

// ApplyProposal applies a pending adaptation proposal to the rule
// store.
//
// # Description
//
// This is the approval gate: the single path through which learned
// output can change rules, and it only runs on an explicit external
// call. The proposal is removed from the pending set whether or not
// its rule mutation succeeds, so a broken proposal cannot be retried
// into the store.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - id: The proposal ID from a cycle output or the proposals API.
//
// # Outputs
//
//   - bool: True when the rule store was changed.
//   - error: ErrUnknownProposal for a stale ID, or the mutation error.
func (o *Orchestrator) ApplyProposal(ctx context.Context, id string) (bool, error) {
	if ctx == nil {
		return false, fmt.Errorf("context is required")
	}
	proposal, ok := o.adapter.Proposal(id)
	if !ok {
		return false, ErrUnknownProposal
	}
	o.adapter.Remove(id)

	applied, err := o.applyProposal(proposal)
	outcome := "applied"
	if err != nil || !applied {
		outcome = "failed"
	}
	if o.metrics != nil {
		o.metrics.ProposalsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("type", string(proposal.Type)),
				attribute.String("outcome", outcome)))
	}
	if err != nil {
		return false, err
	}

	o.logger.Info("proposal applied",
		slog.String("id", proposal.ID),
		slog.String("type", string(proposal.Type)),
		slog.String("domain", string(proposal.Domain)),
		slog.Bool("rules_changed", applied))
	return applied, nil
}

// RejectProposal discards a pending proposal without touching the rule
// store.
func (o *Orchestrator) RejectProposal(ctx context.Context, id string) error {
	if !o.adapter.Remove(id) {
		return ErrUnknownProposal
	}
	if o.metrics != nil && ctx != nil {
		o.metrics.ProposalsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", "rejected")))
	}
	o.logger.Info("proposal rejected", slog.String("id", id))
	return nil
}

// applyProposal performs the rule mutation for an approved proposal.
func (o *Orchestrator) applyProposal(p adaptation.Proposal) (bool, error) {
	switch p.Type {
	case adaptation.TypeThresholdAdjustment:
		return o.relaxThresholds(p.Domain)
	case adaptation.TypeCostRuleAddition:
		return o.addCostBaseline(p.Domain)
	case adaptation.TypeErrorHandlingImprovement:
		// Operational follow-up only; there is no rule to change.
		return false, nil
	default:
		return false, fmt.Errorf("unsupported adaptation type %q", p.Type)
	}
}

// relaxThresholds moves each threshold in the domain 10% away from its
// trigger direction, reducing alert pressure after a noisy window.
// Equality operators are left alone.
func (o *Orchestrator) relaxThresholds(domain rules.Domain) (bool, error) {
	changed := false
	for _, rule := range o.rules.Rules(domain) {
		switch rule.Operator {
		case rules.OpGT, rules.OpGTE:
			rule.Threshold *= 1.1
		case rules.OpLT, rules.OpLTE:
			rule.Threshold *= 0.9
		default:
			continue
		}
		if err := o.rules.Replace(rule); err != nil {
			return changed, fmt.Errorf("replace rule %q: %w", rule.Name, err)
		}
		changed = true
	}
	return changed, nil
}

// addCostBaseline locks in an observed spend drop: a low-severity rule
// at 90% of the domain's lowest upper-bound threshold, so regressions
// back toward old spend get logged early.
func (o *Orchestrator) addCostBaseline(domain rules.Domain) (bool, error) {
	if domain == "" {
		domain = rules.DomainCost
	}

	var base *rules.MonitoringRule
	for _, rule := range o.rules.Rules(domain) {
		if rule.Operator != rules.OpGT && rule.Operator != rules.OpGTE {
			continue
		}
		if base == nil || rule.Threshold < base.Threshold {
			r := rule
			base = &r
		}
	}
	if base == nil {
		return false, fmt.Errorf("no upper-bound rule in domain %q to derive a baseline from", domain)
	}

	baseline := rules.MonitoringRule{
		Name:        base.MetricKey + "-baseline",
		Domain:      domain,
		MetricKey:   base.MetricKey,
		Operator:    rules.OpGTE,
		Threshold:   base.Threshold * 0.9,
		Severity:    rules.SeverityLow,
		Action:      rules.ActionLog,
		Description: "Observed-spend baseline added from an approved adaptation proposal",
	}

	for _, existing := range o.rules.Rules(domain) {
		if existing.Name == baseline.Name {
			if err := o.rules.Replace(baseline); err != nil {
				return false, fmt.Errorf("replace baseline rule: %w", err)
			}
			return true, nil
		}
	}
	if err := o.rules.Append(baseline); err != nil {
		return false, fmt.Errorf("append baseline rule: %w", err)
	}
	return true, nil
}

// Proposals exposes the pending proposal set.
func (o *Orchestrator) Proposals() []adaptation.Proposal {
	return o.adapter.Proposals()
}

// Predict exposes the committed predictive models.
func (o *Orchestrator) Predict(family adaptation.Family, features []float64) adaptation.Prediction {
	return o.adapter.Predict(family, features)
}

// Patterns returns the most recent mining pass's patterns.
func (o *Orchestrator) Patterns() []mining.Pattern {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]mining.Pattern, len(o.lastPatterns))
	copy(out, o.lastPatterns)
	return out
}

// Insights returns the most recent mining pass's insights.
func (o *Orchestrator) Insights() []mining.Insight {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]mining.Insight, len(o.lastInsights))
	copy(out, o.lastInsights)
	return out
}

// Status snapshots the engine state for the API.
func (o *Orchestrator) Status(running bool) Status {
	o.mu.Lock()
	cycles := o.cycles
	last := o.lastCycleAt
	o.mu.Unlock()

	domains := o.rules.Domains()
	ruleCount := 0
	for _, d := range domains {
		ruleCount += len(o.rules.Rules(d))
	}

	return Status{
		Running:          running,
		Cycles:           cycles,
		LastCycleAt:      last,
		Degraded:         o.records.Degraded(),
		BufferedRecords:  o.records.BufferedCount(),
		Domains:          domains,
		RuleCount:        ruleCount,
		PendingProposals: len(o.adapter.Proposals()),
		Models:           o.adapter.ModelInfos(),
	}
}

// Records proxies record queries for the API layer.
func (o *Orchestrator) Records(ctx context.Context, q logstore.Query) ([]*logstore.ExecutionRecord, error) {
	return o.records.Records(ctx, q)
}
