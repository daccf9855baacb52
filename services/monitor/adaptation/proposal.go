// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package adaptation turns mined insights into rule-change proposals
// and maintains lightweight predictive models.
//
// # Description
//
// The engine is advisory only. Proposals describe suggested rule or
// threshold changes; they are never applied here. RequiresValidation is
// always true, and the only path that can turn a proposal into a rule
// change is the orchestrator's explicit approval gate.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Predict always reads the most
// recently committed model, never a partially refit one.
package adaptation

import (
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/mining"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// Type identifies the kind of change a proposal suggests.
type Type string

const (
	// TypeThresholdAdjustment suggests retuning a rule threshold.
	TypeThresholdAdjustment Type = "threshold_adjustment"

	// TypeCostRuleAddition suggests adding a cost rule to capture an
	// observed optimization.
	TypeCostRuleAddition Type = "cost_rule_addition"

	// TypeErrorHandlingImprovement suggests hardening the rules or
	// collectors behind repeated failures.
	TypeErrorHandlingImprovement Type = "error_handling_improvement"
)

// adaptationLookup is the fixed mapping from insight and pattern types
// to adaptation types. Unmapped types produce no proposal.
var adaptationLookup = map[string]Type{
	string(mining.InsightPerformanceOptimization): TypeThresholdAdjustment,
	string(mining.InsightPerformanceAnomaly):      TypeThresholdAdjustment,
	string(mining.InsightCostOptimization):        TypeCostRuleAddition,
	string(mining.InsightErrorReduction):          TypeErrorHandlingImprovement,

	// mining.PatternCostOptimization shares the "cost_optimization"
	// string with mining.InsightCostOptimization above, so it is covered
	// by that entry.
	string(mining.PatternPerformanceDegradation): TypeThresholdAdjustment,
	string(mining.PatternElevatedErrorRate):      TypeErrorHandlingImprovement,
	string(mining.PatternRecurringError):         TypeErrorHandlingImprovement,
}

// suggestedLogic is the fixed suggested-change text per adaptation
// type. Suggestions are data, the same way pattern recommendations are.
var suggestedLogic = map[Type]string{
	TypeThresholdAdjustment:      "Retune the affected thresholds against the last window's observed values",
	TypeCostRuleAddition:         "Add a graduated cost rule locking in the observed lower spend",
	TypeErrorHandlingImprovement: "Guard the failing metric reads and review collector output",
}

// Proposal is a suggested change to rules or thresholds. It never
// self-applies.
type Proposal struct {
	// ID uniquely identifies the proposal for the approval gate.
	ID string `json:"id"`

	// Type is the kind of change suggested.
	Type Type `json:"adaptation_type"`

	// Domain is the domain the change concerns.
	Domain rules.Domain `json:"domain"`

	// CurrentLogic describes the behavior observed today.
	CurrentLogic string `json:"current_logic"`

	// SuggestedLogic describes the suggested change.
	SuggestedLogic string `json:"suggested_logic"`

	// Reasoning carries the triggering finding's description.
	Reasoning string `json:"reasoning"`

	// Confidence equals the triggering finding's confidence. Recurring
	// proposals average confidence across sightings.
	Confidence float64 `json:"confidence"`

	// RequiresValidation is always true. The engine never sets it
	// false.
	RequiresValidation bool `json:"requires_validation"`

	// Examples accumulates the findings that produced this proposal.
	Examples []string `json:"examples,omitempty"`

	// CreatedAt is when the proposal was first generated.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the proposal last recurred.
	UpdatedAt time.Time `json:"updated_at"`
}

// cacheKey groups recurring proposals.
func (p *Proposal) cacheKey() string {
	return string(p.Type) + "|" + string(p.Domain)
}
