// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPushAndSlice verifies chronological ordering before wrap.
func TestPushAndSlice(t *testing.T) {
	rb := NewRingBuffer[int](5)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	assert.Equal(t, []int{1, 2, 3}, rb.Slice())
	assert.Equal(t, 3, rb.Len())
	assert.False(t, rb.IsFull())
}

// TestWrapAround verifies the oldest items are overwritten when full.
func TestWrapAround(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	assert.Equal(t, []int{3, 4, 5}, rb.Slice())
	assert.True(t, rb.IsFull())
	assert.Equal(t, 3, rb.Len())
}

// TestPop verifies FIFO removal.
func TestPop(t *testing.T) {
	rb := NewRingBuffer[string](3)
	rb.Push("a")
	rb.Push("b")

	v, ok := rb.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, rb.Len())

	rb.Pop()
	_, ok = rb.Pop()
	assert.False(t, ok)
}

// TestDrain verifies Drain empties the buffer and preserves order,
// including after a wrap.
func TestDrain(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 4; i++ {
		rb.Push(i)
	}

	out := rb.Drain()
	assert.Equal(t, []int{2, 3, 4}, out)
	assert.True(t, rb.IsEmpty())
	assert.Nil(t, rb.Drain())
}

// TestLast verifies newest-first retrieval.
func TestLast(t *testing.T) {
	rb := NewRingBuffer[int](4)
	for i := 1; i <= 6; i++ {
		rb.Push(i)
	}

	assert.Equal(t, []int{6, 5}, rb.Last(2))
	assert.Equal(t, []int{6, 5, 4, 3}, rb.Last(10))
	assert.Nil(t, rb.Last(0))
}

// TestForEachStops verifies early termination.
func TestForEachStops(t *testing.T) {
	rb := NewRingBuffer[int](5)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	var seen []int
	rb.ForEach(func(item int) bool {
		seen = append(seen, item)
		return len(seen) < 2
	})
	assert.Equal(t, []int{1, 2}, seen)
}

// TestDefaultCapacity verifies non-positive capacities fall back.
func TestDefaultCapacity(t *testing.T) {
	rb := NewRingBuffer[int](0)
	assert.Equal(t, 100, rb.Cap())
}
