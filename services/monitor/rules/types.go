// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules defines monitoring rules and evaluates metric snapshots
// against them.
//
// # Description
//
// A MonitoringRule compares one named metric against a threshold with a
// comparison operator. Rules are grouped by domain (cost, resource,
// security, performance, compliance) and versioned in a RuleStore.
// Graduated alerting (50%/80%/100% of a budget) is modeled as multiple
// ordinary rules on the same metric at increasing thresholds and
// severities, not as a special rule shape.
//
// # Thread Safety
//
// RuleStore and Engine are safe for concurrent use. Rule values are
// treated as immutable once stored.
package rules

import (
	"fmt"
	"time"
)

// Domain is a named category of monitored concern.
//
// The set below is closed for Sentinel's own rule sets, but Domain is a
// string so collectors can introduce new domains without a code change.
type Domain string

const (
	DomainCost        Domain = "cost"
	DomainResource    Domain = "resource"
	DomainSecurity    Domain = "security"
	DomainPerformance Domain = "performance"
	DomainCompliance  Domain = "compliance"
)

// KnownDomains lists the domains Sentinel ships rules for.
func KnownDomains() []Domain {
	return []Domain{DomainCost, DomainResource, DomainSecurity, DomainPerformance, DomainCompliance}
}

// Known reports whether the domain is one of the built-in categories.
func (d Domain) Known() bool {
	switch d {
	case DomainCost, DomainResource, DomainSecurity, DomainPerformance, DomainCompliance:
		return true
	}
	return false
}

// Severity is the alert severity of a triggered rule.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for comparison; higher is more severe.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Action is what happens when a rule triggers.
type Action string

const (
	ActionAlert    Action = "alert"
	ActionAutoFix  Action = "auto_fix"
	ActionEscalate Action = "escalate"
	ActionLog      Action = "log"
)

// Operator is the comparison applied between the observed metric value
// and the rule threshold.
type Operator string

const (
	OpGT  Operator = ">"
	OpLT  Operator = "<"
	OpGTE Operator = ">="
	OpLTE Operator = "<="
	OpEQ  Operator = "=="
	OpNEQ Operator = "!="
)

// Compare applies the operator to (value, threshold).
//
// # Outputs
//
//   - bool: The comparison result.
//   - error: Non-nil for an unknown operator.
func (op Operator) Compare(value, threshold float64) (bool, error) {
	switch op {
	case OpGT:
		return value > threshold, nil
	case OpLT:
		return value < threshold, nil
	case OpGTE:
		return value >= threshold, nil
	case OpLTE:
		return value <= threshold, nil
	case OpEQ:
		return value == threshold, nil
	case OpNEQ:
		return value != threshold, nil
	default:
		return false, fmt.Errorf("unknown operator %q", string(op))
	}
}

// MonitoringRule defines one threshold check on one metric.
//
// Rules are immutable once created; a changed threshold is a replacement
// rule applied through the store, normally via an accepted adaptation
// proposal.
type MonitoringRule struct {
	// Name is the rule identifier, unique within its domain.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Domain groups the rule with the snapshot stream it evaluates.
	Domain Domain `yaml:"domain" json:"domain" validate:"required"`

	// MetricKey is the snapshot key this rule reads. Explicit by design:
	// the metric a rule watches is never inferred from its name.
	MetricKey string `yaml:"metric_key" json:"metric_key" validate:"required"`

	// Operator compares the observed value against Threshold.
	Operator Operator `yaml:"operator" json:"operator" validate:"required,oneof=> < >= <= == !="`

	// Threshold is the comparison bound.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// Severity is attached to results when the rule triggers.
	Severity Severity `yaml:"severity" json:"severity" validate:"required,oneof=low medium high critical"`

	// Action is what the orchestrator should do on trigger.
	Action Action `yaml:"action" json:"action" validate:"required,oneof=alert auto_fix escalate log"`

	// Description explains what the rule checks.
	Description string `yaml:"description" json:"description,omitempty"`
}

// Snapshot is a point-in-time set of named metric values for a domain,
// produced by an external collector. The engine validates presence and
// type only, never provenance.
type Snapshot struct {
	// Domain tags which rule set evaluates this snapshot.
	Domain Domain `json:"domain"`

	// Metrics maps metric key to observed value.
	Metrics map[string]float64 `json:"metrics"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// EvaluationResult is the outcome of evaluating one rule against one
// snapshot. Never mutated after creation.
type EvaluationResult struct {
	// RuleName references the rule that produced this result. The
	// threshold/operator/severity fields below freeze the rule version
	// at evaluation time.
	RuleName string `json:"rule_name"`

	// Domain is the rule's domain.
	Domain Domain `json:"domain"`

	// MetricKey is the snapshot key that was read.
	MetricKey string `json:"metric_key"`

	// Threshold is the rule threshold at evaluation time.
	Threshold float64 `json:"threshold"`

	// ActualValue is the observed metric value (0 when the key was
	// missing from the snapshot).
	ActualValue float64 `json:"actual_value"`

	// Operator is the comparison that was applied.
	Operator Operator `json:"operator"`

	// Triggered is the comparison result.
	Triggered bool `json:"triggered"`

	// Severity is the rule severity at evaluation time.
	Severity Severity `json:"severity"`

	// Action is the rule action at evaluation time.
	Action Action `json:"action"`

	// Timestamp is when the evaluation ran.
	Timestamp time.Time `json:"timestamp"`
}

// DefaultRules returns Sentinel's built-in rule set.
//
// # Description
//
// The cost rules model a graduated daily budget: three independent rules
// on the same metric at 50%, 80%, and 100% of the budget with escalating
// severities. Tier linkage is a data convention; evaluation treats each
// tier as an ordinary rule.
//
// # Inputs
//
//   - dailyBudget: Daily spend budget the cost tiers are derived from.
func DefaultRules(dailyBudget float64) []MonitoringRule {
	return []MonitoringRule{
		{
			Name:        "daily-budget-50",
			Domain:      DomainCost,
			MetricKey:   "daily_cost",
			Operator:    OpGTE,
			Threshold:   dailyBudget * 0.5,
			Severity:    SeverityLow,
			Action:      ActionLog,
			Description: "Daily spend reached 50% of budget",
		},
		{
			Name:        "daily-budget-80",
			Domain:      DomainCost,
			MetricKey:   "daily_cost",
			Operator:    OpGTE,
			Threshold:   dailyBudget * 0.8,
			Severity:    SeverityMedium,
			Action:      ActionAlert,
			Description: "Daily spend reached 80% of budget",
		},
		{
			Name:        "daily-budget-100",
			Domain:      DomainCost,
			MetricKey:   "daily_cost",
			Operator:    OpGTE,
			Threshold:   dailyBudget,
			Severity:    SeverityCritical,
			Action:      ActionEscalate,
			Description: "Daily spend exceeded budget",
		},
		{
			Name:        "cpu-utilization-high",
			Domain:      DomainResource,
			MetricKey:   "cpu_utilization",
			Operator:    OpGT,
			Threshold:   85,
			Severity:    SeverityHigh,
			Action:      ActionAlert,
			Description: "CPU utilization above 85%",
		},
		{
			Name:        "memory-utilization-high",
			Domain:      DomainResource,
			MetricKey:   "memory_utilization",
			Operator:    OpGT,
			Threshold:   90,
			Severity:    SeverityHigh,
			Action:      ActionAlert,
			Description: "Memory utilization above 90%",
		},
		{
			Name:        "disk-utilization-high",
			Domain:      DomainResource,
			MetricKey:   "disk_utilization",
			Operator:    OpGT,
			Threshold:   80,
			Severity:    SeverityMedium,
			Action:      ActionAlert,
			Description: "Disk utilization above 80%",
		},
		{
			Name:        "unauthorized-access-attempts",
			Domain:      DomainSecurity,
			MetricKey:   "unauthorized_attempts",
			Operator:    OpGT,
			Threshold:   0,
			Severity:    SeverityCritical,
			Action:      ActionEscalate,
			Description: "Any unauthorized access attempt",
		},
		{
			Name:        "open-security-findings",
			Domain:      DomainSecurity,
			MetricKey:   "open_findings",
			Operator:    OpGT,
			Threshold:   5,
			Severity:    SeverityHigh,
			Action:      ActionAlert,
			Description: "More than five open security findings",
		},
		{
			Name:        "request-latency-p99",
			Domain:      DomainPerformance,
			MetricKey:   "latency_p99_ms",
			Operator:    OpGT,
			Threshold:   500,
			Severity:    SeverityHigh,
			Action:      ActionAlert,
			Description: "p99 request latency above 500ms",
		},
		{
			Name:        "error-rate-elevated",
			Domain:      DomainPerformance,
			MetricKey:   "error_rate",
			Operator:    OpGT,
			Threshold:   0.05,
			Severity:    SeverityHigh,
			Action:      ActionAlert,
			Description: "Request error rate above 5%",
		},
		{
			Name:        "untagged-resources",
			Domain:      DomainCompliance,
			MetricKey:   "untagged_resources",
			Operator:    OpGT,
			Threshold:   0,
			Severity:    SeverityMedium,
			Action:      ActionLog,
			Description: "Resources missing mandatory tags",
		},
	}
}
