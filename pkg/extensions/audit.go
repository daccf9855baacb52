// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for enterprise functionality.
//
// Sentinel's rule set only changes through the proposal approval gate,
// which makes that gate the natural place for a compliance audit trail.
// This package provides the extension point: local deployments keep the
// bounded in-memory logger, enterprise deployments inject an
// implementation that ships events to their SIEM or compliance store.
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

import (
	"context"
	"sync"
	"time"
)

// AuditEvent records one governance action on the rule set.
//
// Event types use a "category.action" format:
//
//   - "proposal.approved", "proposal.rejected"
//   - "rules.reloaded"
//   - "cycle.triggered"
type AuditEvent struct {
	// EventType categorizes the event for filtering and alerting.
	EventType string `json:"event_type"`

	// Timestamp is when the event occurred, in UTC. Implementations
	// set it to time.Now().UTC() when zero.
	Timestamp time.Time `json:"timestamp"`

	// Actor identifies who performed the action. "system" for
	// automated actions, "anonymous" if unknown.
	Actor string `json:"actor"`

	// ResourceID is the specific resource involved, typically a
	// proposal ID or rules file path.
	ResourceID string `json:"resource_id,omitempty"`

	// Outcome is "success", "failure", or "blocked".
	Outcome string `json:"outcome"`

	// Metadata holds event-specific details, such as the error text
	// for a failed application or the rule a proposal changed.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuditFilter selects audit events. Zero fields are ignored; set
// fields combine with AND.
type AuditFilter struct {
	// EventType limits results to one event type.
	EventType string

	// Actor limits results to one actor.
	Actor string

	// From is the earliest timestamp to include, inclusive.
	From time.Time

	// To is the latest timestamp to include, exclusive.
	To time.Time

	// Limit caps the result count. Zero means no cap.
	Limit int
}

// AuditLogger records governance events for compliance and analysis.
//
// Log sits on the request path of the approval endpoints, so
// implementations must return quickly; buffer and flush rather than
// blocking on a remote sink.
type AuditLogger interface {
	// Log records one event. Implementations set Timestamp if zero.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush forces buffered events out. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events. Appropriate where no audit trail
// is required.
type NopAuditLogger struct{}

func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)

// MemoryAuditLogger keeps the most recent events in a bounded buffer.
// The default for local deployments: the audit API works out of the
// box, and an engine left running for months cannot grow without
// bound.
type MemoryAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
	cap    int
}

// NewMemoryAuditLogger creates a logger retaining at most capacity
// events. Non-positive capacity defaults to 256.
func NewMemoryAuditLogger(capacity int) *MemoryAuditLogger {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryAuditLogger{cap: capacity}
}

// Log appends the event, evicting the oldest once at capacity.
func (l *MemoryAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == l.cap {
		copy(l.events, l.events[1:])
		l.events = l.events[:l.cap-1]
	}
	l.events = append(l.events, event)
	return nil
}

// Query returns matching events, newest first.
func (l *MemoryAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []AuditEvent
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.Timestamp.Before(filter.To) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Flush is a no-op; events are already in memory.
func (l *MemoryAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*MemoryAuditLogger)(nil)
