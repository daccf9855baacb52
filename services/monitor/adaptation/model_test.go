// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adaptation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLinearModelFitsSeparableData verifies the least-squares fit on a
// trivially separable single-feature set.
func TestLinearModelFitsSeparableData(t *testing.T) {
	m := newLinearModel()
	features := [][]float64{{0}, {1}, {0}, {1}}
	labels := []float64{0, 1, 0, 1}
	require.NoError(t, m.Fit(features, labels))

	zero, err := m.Score([]float64{0})
	require.NoError(t, err)
	one, err := m.Score([]float64{1})
	require.NoError(t, err)

	assert.InDelta(t, 0, zero, 1e-3)
	assert.InDelta(t, 1, one, 1e-3)
}

// TestLinearModelScoreIsClamped verifies extrapolated scores stay in
// [0,1].
func TestLinearModelScoreIsClamped(t *testing.T) {
	m := newLinearModel()
	require.NoError(t, m.Fit([][]float64{{0}, {1}}, []float64{0, 1}))

	high, err := m.Score([]float64{10})
	require.NoError(t, err)
	assert.Equal(t, 1.0, high)

	low, err := m.Score([]float64{-10})
	require.NoError(t, err)
	assert.Equal(t, 0.0, low)
}

// TestLinearModelUnfitted verifies scoring before fitting fails
// cleanly.
func TestLinearModelUnfitted(t *testing.T) {
	m := newLinearModel()
	_, err := m.Score([]float64{1})
	assert.Error(t, err)
}

// TestLinearModelRejectsBadShapes verifies ragged rows and mismatched
// label counts are rejected.
func TestLinearModelRejectsBadShapes(t *testing.T) {
	m := newLinearModel()
	assert.Error(t, m.Fit([][]float64{{1}, {1, 2}}, []float64{0, 1}))
	assert.Error(t, m.Fit([][]float64{{1}}, []float64{0, 1}))
	assert.Error(t, m.Fit(nil, nil))

	require.NoError(t, m.Fit([][]float64{{0}, {1}}, []float64{0, 1}))
	_, err := m.Score([]float64{1, 2})
	assert.Error(t, err, "feature width must match training width")
}

// TestLinearModelConstantColumn verifies a constant feature column
// still fits thanks to regularization.
func TestLinearModelConstantColumn(t *testing.T) {
	m := newLinearModel()
	features := [][]float64{{5, 0}, {5, 1}, {5, 0}, {5, 1}}
	labels := []float64{0, 1, 0, 1}
	require.NoError(t, m.Fit(features, labels))

	score, err := m.Score([]float64{5, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-3)
}
