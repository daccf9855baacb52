// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logstore provides the durable, append-only store of execution
// records.
//
// # Description
//
// Every rule-evaluation pass produces one ExecutionRecord. Records are
// immutable once persisted and are only removed by retention pruning.
// The backing store is BadgerDB, keyed by (domain, timestamp, id) so
// queries can range-scan by domain and time window.
//
// # Thread Safety
//
// Store is safe for concurrent use; multiple domains may append
// concurrently while miners read.
package logstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// keyPrefix namespaces execution records within the shared database.
const keyPrefix = "rec/"

// Performance captures pass-level statistics for one record.
type Performance struct {
	// Duration is how long the evaluation pass took.
	Duration time.Duration `json:"duration"`

	// RuleCount is the number of rules attempted.
	RuleCount int `json:"rule_count"`

	// SuccessRate is the fraction of rules that evaluated cleanly.
	SuccessRate float64 `json:"success_rate"`
}

// ExecutionRecord is the durable, immutable result of one
// rule-evaluation pass.
//
// Results freeze the rule fields (threshold, operator, severity) at
// evaluation time, so a record stays meaningful after later rule
// changes.
type ExecutionRecord struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// Timestamp is when the pass ran.
	Timestamp time.Time `json:"timestamp"`

	// Domain is the evaluated domain.
	Domain rules.Domain `json:"domain"`

	// Snapshot is the metric snapshot that was evaluated.
	Snapshot rules.Snapshot `json:"snapshot"`

	// Results holds the per-rule evaluation results, in rule order.
	Results []rules.EvaluationResult `json:"results"`

	// Performance holds pass-level statistics.
	Performance Performance `json:"performance"`

	// Errors lists per-rule evaluation failures.
	Errors []string `json:"errors,omitempty"`

	// Success is false only when no rule produced a valid result.
	Success bool `json:"success"`
}

// Failed reports whether the record represents a failing pass: either
// the pass itself failed or individual rules recorded errors.
func (r *ExecutionRecord) Failed() bool {
	return !r.Success || len(r.Errors) > 0
}

// key builds the badger key for a record: rec/{domain}/{unix-nanos}/{id}.
// Nanos are zero-padded so lexicographic order is chronological within a
// domain.
func (r *ExecutionRecord) key() []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", keyPrefix, r.Domain, r.Timestamp.UnixNano(), r.ID))
}

// domainPrefix returns the scan prefix for one domain, or the global
// prefix when domain is empty.
func domainPrefix(domain rules.Domain) []byte {
	if domain == "" {
		return []byte(keyPrefix)
	}
	return []byte(keyPrefix + string(domain) + "/")
}

// encodeRecord serializes a record for storage.
func encodeRecord(r *ExecutionRecord) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", r.ID, err)
	}
	return data, nil
}

// decodeRecord deserializes a stored record. A record that fails to
// decode is surfaced as an error so the caller can skip it without
// aborting a scan.
func decodeRecord(data []byte) (*ExecutionRecord, error) {
	var r ExecutionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &r, nil
}

// keyDomain extracts the domain segment from a record key. Returns an
// empty domain for malformed keys.
func keyDomain(key []byte) rules.Domain {
	rest := strings.TrimPrefix(string(key), keyPrefix)
	if i := strings.IndexByte(rest, '/'); i > 0 {
		return rules.Domain(rest[:i])
	}
	return ""
}
