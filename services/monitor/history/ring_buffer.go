// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history provides bounded in-memory buffers for recent
// monitoring state: the degraded-mode append buffer in the log store
// and the rolling window of cycle outputs kept by the service.
package history

// RingBuffer is a fixed-size circular buffer.
//
// # Description
//
// Provides O(1) push and bounded memory usage. When full, the oldest item
// is overwritten. Used for keeping the last N cycle outputs and for
// buffering execution records while the durable backend is unavailable.
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type RingBuffer[T any] struct {
	data  []T
	head  int  // Next write position
	tail  int  // First element position
	count int  // Current number of elements
	cap   int  // Maximum capacity
	full  bool // Whether buffer has wrapped
}

// NewRingBuffer creates a new ring buffer with the given capacity.
// Non-positive capacities fall back to 100.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &RingBuffer[T]{
		data: make([]T, capacity),
		cap:  capacity,
	}
}

// Push adds an item to the buffer. If the buffer is full, the oldest
// item is overwritten.
func (r *RingBuffer[T]) Push(item T) {
	r.data[r.head] = item
	r.head = (r.head + 1) % r.cap

	if r.full {
		r.tail = (r.tail + 1) % r.cap
	} else {
		r.count++
		if r.count == r.cap {
			r.full = true
		}
	}
}

// Pop removes and returns the oldest item. The second return is false
// if the buffer is empty.
func (r *RingBuffer[T]) Pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}

	item := r.data[r.tail]
	r.data[r.tail] = zero // Clear reference
	r.tail = (r.tail + 1) % r.cap
	r.count--
	r.full = false

	return item, true
}

// Drain removes and returns all items from oldest to newest, leaving
// the buffer empty. Used to flush buffered records once the backend
// recovers.
func (r *RingBuffer[T]) Drain() []T {
	if r.count == 0 {
		return nil
	}
	out := r.Slice()
	r.Clear()
	return out
}

// Slice returns a copy of all items in order from oldest to newest.
// Modifications to the returned slice don't affect the buffer.
func (r *RingBuffer[T]) Slice() []T {
	if r.count == 0 {
		return nil
	}

	result := make([]T, r.count)

	if r.full {
		// Buffer has wrapped: tail..end then start..head.
		n := copy(result, r.data[r.tail:])
		copy(result[n:], r.data[:r.head])
	} else {
		copy(result, r.data[r.tail:r.tail+r.count])
	}

	return result
}

// Last returns up to n items, newest first.
func (r *RingBuffer[T]) Last(n int) []T {
	if n <= 0 || r.count == 0 {
		return nil
	}

	if n > r.count {
		n = r.count
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		idx := r.head - 1 - i
		if idx < 0 {
			idx += r.cap
		}
		result[i] = r.data[idx]
	}

	return result
}

// ForEach calls fn for each item from oldest to newest. Return false
// from fn to stop iteration.
func (r *RingBuffer[T]) ForEach(fn func(item T) bool) {
	for i := 0; i < r.count; i++ {
		idx := (r.tail + i) % r.cap
		if !fn(r.data[idx]) {
			return
		}
	}
}

// Len returns the current number of elements.
func (r *RingBuffer[T]) Len() int {
	return r.count
}

// Cap returns the maximum capacity.
func (r *RingBuffer[T]) Cap() int {
	return r.cap
}

// IsFull returns true if the buffer is at capacity.
func (r *RingBuffer[T]) IsFull() bool {
	return r.full
}

// IsEmpty returns true if the buffer has no elements.
func (r *RingBuffer[T]) IsEmpty() bool {
	return r.count == 0
}

// Clear removes all elements from the buffer.
func (r *RingBuffer[T]) Clear() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.count = 0
	r.full = false
}
