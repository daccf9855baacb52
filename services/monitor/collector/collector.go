// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collector defines the snapshot ingestion boundary.
//
// The engine only requires the Snapshot shape; how metrics are gathered
// (cloud SDK calls, CLI wrapping, files) lives behind this interface
// and is owned by the caller.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// orderDomains returns the present domains in stable order: built-in
// domains first in their declared order, then custom domains
// lexicographically. Custom domains must survive this ordering; the
// orchestrator only evaluates what Domains reports.
func orderDomains(present map[rules.Domain]bool) []rules.Domain {
	var out []rules.Domain
	for _, d := range rules.KnownDomains() {
		if present[d] {
			out = append(out, d)
		}
	}
	var custom []rules.Domain
	for d := range present {
		if !d.Known() {
			custom = append(custom, d)
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i] < custom[j] })
	return append(out, custom...)
}

// Collector produces a point-in-time metric snapshot for one domain.
type Collector interface {
	// Collect gathers the current metrics for a domain. Implementations
	// should honor ctx cancellation when gathering is slow.
	Collect(ctx context.Context, domain rules.Domain) (rules.Snapshot, error)

	// Domains lists the domains this collector can snapshot.
	Domains() []rules.Domain
}

// Func adapts a function to the Collector interface for a fixed domain
// set.
type Func struct {
	// Fn gathers the snapshot.
	Fn func(ctx context.Context, domain rules.Domain) (rules.Snapshot, error)

	// Covered lists the supported domains.
	Covered []rules.Domain
}

func (f Func) Collect(ctx context.Context, domain rules.Domain) (rules.Snapshot, error) {
	if ctx == nil {
		return rules.Snapshot{}, fmt.Errorf("context is required")
	}
	return f.Fn(ctx, domain)
}

func (f Func) Domains() []rules.Domain {
	out := make([]rules.Domain, len(f.Covered))
	copy(out, f.Covered)
	return out
}

// Static serves fixed metric maps per domain. Useful for tests and for
// the one-shot CLI cycle with operator-supplied values.
//
// Safe for concurrent use; Set may be called while cycles run.
type Static struct {
	mu      sync.RWMutex
	metrics map[rules.Domain]map[string]float64
}

// NewStatic creates an empty static collector.
func NewStatic() *Static {
	return &Static{metrics: make(map[rules.Domain]map[string]float64)}
}

// Set replaces the metric map for a domain.
func (s *Static) Set(domain rules.Domain, metrics map[string]float64) {
	copied := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		copied[k] = v
	}
	s.mu.Lock()
	s.metrics[domain] = copied
	s.mu.Unlock()
}

// Collect returns the stored metrics for the domain, stamped now. An
// unknown domain yields an empty snapshot, not an error: the engine
// treats missing metrics as zeros.
func (s *Static) Collect(ctx context.Context, domain rules.Domain) (rules.Snapshot, error) {
	if ctx == nil {
		return rules.Snapshot{}, fmt.Errorf("context is required")
	}
	s.mu.RLock()
	stored := s.metrics[domain]
	s.mu.RUnlock()

	metrics := make(map[string]float64, len(stored))
	for k, v := range stored {
		metrics[k] = v
	}
	return rules.Snapshot{
		Domain:    domain,
		Metrics:   metrics,
		Timestamp: time.Now(),
	}, nil
}

// Domains lists the domains with stored metrics, in stable order.
// Custom domains are listed after the built-in ones.
func (s *Static) Domains() []rules.Domain {
	s.mu.RLock()
	present := make(map[rules.Domain]bool, len(s.metrics))
	for d := range s.metrics {
		present[d] = true
	}
	s.mu.RUnlock()

	return orderDomains(present)
}
