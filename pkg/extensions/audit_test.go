// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNopAuditLogger verifies the discard implementation satisfies the
// contract.
func TestNopAuditLogger(t *testing.T) {
	l := &NopAuditLogger{}
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, AuditEvent{EventType: "proposal.approved", Actor: "local"}))
	events, err := l.Query(ctx, AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, l.Flush(ctx))
}

// TestMemoryAuditLoggerStampsAndOrders verifies zero timestamps are
// stamped and queries return newest first.
func TestMemoryAuditLoggerStampsAndOrders(t *testing.T) {
	l := NewMemoryAuditLogger(8)
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, AuditEvent{EventType: "proposal.approved", Actor: "a"}))
	require.NoError(t, l.Log(ctx, AuditEvent{EventType: "proposal.rejected", Actor: "b"}))

	events, err := l.Query(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "proposal.rejected", events[0].EventType)
	assert.False(t, events[0].Timestamp.IsZero())
}

// TestMemoryAuditLoggerFilters verifies each filter field.
func TestMemoryAuditLoggerFilters(t *testing.T) {
	l := NewMemoryAuditLogger(16)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		event := AuditEvent{
			EventType: "proposal.approved",
			Actor:     "approver",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 1 {
			event.EventType = "proposal.rejected"
			event.Actor = "reviewer"
		}
		require.NoError(t, l.Log(ctx, event))
	}

	events, err := l.Query(ctx, AuditFilter{EventType: "proposal.approved"})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = l.Query(ctx, AuditFilter{Actor: "reviewer"})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = l.Query(ctx, AuditFilter{From: base.Add(time.Minute), To: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = l.Query(ctx, AuditFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, base.Add(3*time.Minute), events[0].Timestamp)
}

// TestMemoryAuditLoggerEvicts verifies the oldest event is dropped at
// capacity.
func TestMemoryAuditLoggerEvicts(t *testing.T) {
	l := NewMemoryAuditLogger(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Log(ctx, AuditEvent{
			EventType:  "cycle.triggered",
			Actor:      "system",
			ResourceID: fmt.Sprintf("cycle-%d", i),
		}))
	}

	events, err := l.Query(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "cycle-4", events[0].ResourceID)
	assert.Equal(t, "cycle-2", events[2].ResourceID)
}
