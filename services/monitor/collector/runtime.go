// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collector

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// Runtime snapshots the hosting process itself. It is the default
// source for the server command when no external metrics feed is
// configured, so a fresh deployment monitors something real from the
// first cycle.
type Runtime struct{}

// NewRuntime creates a process self-collector.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Collect gathers process metrics for the resource and performance
// domains.
//
// # Outputs
//
// Resource metrics:
//
//   - memory_utilization: Heap in use as a percentage of heap obtained
//     from the OS.
//   - heap_alloc_mb: Live heap bytes in megabytes.
//   - goroutines: Current goroutine count.
//
// Performance metrics:
//
//   - gc_pause_ms: Most recent GC pause.
//   - gc_cpu_percent: Fraction of CPU spent in GC since start.
func (r *Runtime) Collect(ctx context.Context, domain rules.Domain) (rules.Snapshot, error) {
	if ctx == nil {
		return rules.Snapshot{}, fmt.Errorf("context is required")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	metrics := make(map[string]float64)
	switch domain {
	case rules.DomainResource:
		if ms.HeapSys > 0 {
			metrics["memory_utilization"] = float64(ms.HeapInuse) / float64(ms.HeapSys) * 100
		}
		metrics["heap_alloc_mb"] = float64(ms.HeapAlloc) / (1024 * 1024)
		metrics["goroutines"] = float64(runtime.NumGoroutine())
	case rules.DomainPerformance:
		if ms.NumGC > 0 {
			metrics["gc_pause_ms"] = float64(ms.PauseNs[(ms.NumGC+255)%256]) / 1e6
		}
		metrics["gc_cpu_percent"] = ms.GCCPUFraction * 100
	}

	return rules.Snapshot{
		Domain:    domain,
		Metrics:   metrics,
		Timestamp: time.Now(),
	}, nil
}

// Domains lists the domains the process can report on.
func (r *Runtime) Domains() []rules.Domain {
	return []rules.Domain{rules.DomainResource, rules.DomainPerformance}
}
