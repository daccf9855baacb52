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
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/sentinel/services/monitor/logstore"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
)

// Family identifies a forecastable metric family, one model each.
type Family string

const (
	// FamilyPerformance forecasts whether evaluation performance stays
	// healthy.
	FamilyPerformance Family = "performance"

	// FamilyCostOptimization forecasts cost-optimization potential.
	FamilyCostOptimization Family = "cost_optimization_potential"

	// FamilyErrorProbability forecasts the chance of a failing pass.
	FamilyErrorProbability Family = "error_probability"
)

// Families lists every model family in a stable order.
func Families() []Family {
	return []Family{FamilyPerformance, FamilyCostOptimization, FamilyErrorProbability}
}

// perfHealthyBound is the duration below which a pass counts as
// healthy for the performance label.
const perfHealthyBound = 1.0 // seconds

// Model is a pluggable regression. Implementations must be
// deterministic: fitting the same samples twice yields the same
// parameters.
type Model interface {
	// Fit trains on feature rows and binary labels of equal length.
	Fit(features [][]float64, labels []float64) error

	// Score evaluates one feature row against the fitted parameters.
	Score(features []float64) (float64, error)
}

// Prediction is the read-side output of a model.
type Prediction struct {
	// Available is false when the family's model has never been
	// trained. The zero-score result is defined, not an error.
	Available bool `json:"available"`

	// Score is the model output clamped to [0,1].
	Score float64 `json:"score"`

	// Confidence is the model's training accuracy.
	Confidence float64 `json:"confidence"`

	// Recommendations interpret the score for the caller.
	Recommendations []string `json:"recommendations,omitempty"`
}

// ModelInfo describes a committed model's state.
type ModelInfo struct {
	Family       Family    `json:"family"`
	FeatureNames []string  `json:"feature_names"`
	Accuracy     float64   `json:"accuracy"`
	SampleCount  int       `json:"sample_count"`
	LastTrained  time.Time `json:"last_trained"`
}

// ModelUpdate reports one family's refit outcome for a learning pass.
type ModelUpdate struct {
	Family   Family  `json:"family"`
	Trained  bool    `json:"trained"`
	Samples  int     `json:"samples"`
	Accuracy float64 `json:"accuracy"`
	Error    string  `json:"error,omitempty"`
}

// trainedModel is one committed, immutable model state. Slots swap the
// whole struct so Predict never observes a half-updated model.
type trainedModel struct {
	model    Model
	info     ModelInfo
	accuracy float64
}

// modelSlot holds the committed model for one family.
type modelSlot struct {
	family   Family
	features []string
	current  atomic.Pointer[trainedModel]
	build    func() Model
	extract  func([]*logstore.ExecutionRecord) ([][]float64, []float64)
}

// refit extracts features from the batch, fits a fresh model, and
// atomically commits it. A malformed batch leaves the previous model
// in place and returns the failure for reporting.
func (s *modelSlot) refit(records []*logstore.ExecutionRecord, now time.Time) ModelUpdate {
	update := ModelUpdate{Family: s.family}

	features, labels := s.extract(records)
	if len(features) == 0 {
		update.Error = "no usable samples in batch"
		return update
	}
	for _, row := range features {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				update.Error = "non-finite feature value"
				return update
			}
		}
	}

	candidate := s.build()
	if err := candidate.Fit(features, labels); err != nil {
		update.Error = err.Error()
		return update
	}

	accuracy := trainingAccuracy(candidate, features, labels)
	s.current.Store(&trainedModel{
		model: candidate,
		info: ModelInfo{
			Family:       s.family,
			FeatureNames: s.features,
			Accuracy:     accuracy,
			SampleCount:  len(features),
			LastTrained:  now,
		},
		accuracy: accuracy,
	})

	update.Trained = true
	update.Samples = len(features)
	update.Accuracy = accuracy
	return update
}

// trainingAccuracy scores the fitted model against its own training
// labels at a 0.5 decision boundary.
func trainingAccuracy(m Model, features [][]float64, labels []float64) float64 {
	correct := 0
	for i, row := range features {
		score, err := m.Score(row)
		if err != nil {
			continue
		}
		predicted := 0.0
		if score >= 0.5 {
			predicted = 1.0
		}
		if predicted == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features))
}

// newModelSlots builds the three family slots with their feature
// extractors.
func newModelSlots(build func() Model) map[Family]*modelSlot {
	return map[Family]*modelSlot{
		FamilyPerformance: {
			family:   FamilyPerformance,
			features: []string{"duration_s", "rule_count", "success_rate"},
			build:    build,
			extract:  performanceSamples,
		},
		FamilyCostOptimization: {
			family:   FamilyCostOptimization,
			features: []string{"mean_metric", "triggered_fraction", "success_rate"},
			build:    build,
			extract:  costSamples,
		},
		FamilyErrorProbability: {
			family:   FamilyErrorProbability,
			features: []string{"rule_count", "success_rate", "error_count"},
			build:    build,
			extract:  errorSamples,
		},
	}
}

// performanceSamples labels a pass healthy when it completes under the
// fixed bound.
func performanceSamples(records []*logstore.ExecutionRecord) ([][]float64, []float64) {
	var features [][]float64
	var labels []float64
	for _, r := range records {
		d := r.Performance.Duration.Seconds()
		if d < 0 {
			continue
		}
		features = append(features, []float64{
			d,
			float64(r.Performance.RuleCount),
			r.Performance.SuccessRate,
		})
		label := 0.0
		if d < perfHealthyBound {
			label = 1.0
		}
		labels = append(labels, label)
	}
	return features, labels
}

// costSamples labels a cost-domain pass as having optimization
// potential when no cost rule triggered.
func costSamples(records []*logstore.ExecutionRecord) ([][]float64, []float64) {
	var features [][]float64
	var labels []float64
	for _, r := range records {
		if r.Domain != rules.DomainCost {
			continue
		}
		var sum float64
		for _, v := range r.Snapshot.Metrics {
			sum += v
		}
		meanMetric := 0.0
		if len(r.Snapshot.Metrics) > 0 {
			meanMetric = sum / float64(len(r.Snapshot.Metrics))
		}

		triggered := 0
		for _, res := range r.Results {
			if res.Triggered {
				triggered++
			}
		}
		fraction := 0.0
		if len(r.Results) > 0 {
			fraction = float64(triggered) / float64(len(r.Results))
		}

		features = append(features, []float64{meanMetric, fraction, r.Performance.SuccessRate})
		label := 0.0
		if triggered == 0 {
			label = 1.0
		}
		labels = append(labels, label)
	}
	return features, labels
}

// errorSamples labels each pass by whether it failed.
func errorSamples(records []*logstore.ExecutionRecord) ([][]float64, []float64) {
	var features [][]float64
	var labels []float64
	for _, r := range records {
		features = append(features, []float64{
			float64(r.Performance.RuleCount),
			r.Performance.SuccessRate,
			float64(len(r.Errors)),
		})
		label := 0.0
		if r.Failed() {
			label = 1.0
		}
		labels = append(labels, label)
	}
	return features, labels
}

// linearModel is the default Model: ordinary least squares with an
// intercept, solved by Gaussian elimination on the normal equations.
// Small feature counts keep this exact and cheap.
type linearModel struct {
	weights []float64 // weights[0] is the intercept
}

func newLinearModel() Model {
	return &linearModel{}
}

// Fit solves the normal equations for the given samples. Deterministic
// for a fixed input batch.
func (m *linearModel) Fit(features [][]float64, labels []float64) error {
	if len(features) == 0 || len(features) != len(labels) {
		return fmt.Errorf("mismatched training set: %d rows, %d labels", len(features), len(labels))
	}
	dim := len(features[0]) + 1
	for _, row := range features {
		if len(row)+1 != dim {
			return fmt.Errorf("ragged feature rows")
		}
	}

	// Build X^T X and X^T y with a leading 1 per row for the intercept.
	xtx := make([][]float64, dim)
	for i := range xtx {
		xtx[i] = make([]float64, dim)
	}
	xty := make([]float64, dim)
	for n, row := range features {
		aug := append([]float64{1}, row...)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				xtx[i][j] += aug[i] * aug[j]
			}
			xty[i] += aug[i] * labels[n]
		}
	}

	// Tiny ridge term keeps degenerate batches solvable.
	for i := 1; i < dim; i++ {
		xtx[i][i] += 1e-6
	}

	weights, err := solve(xtx, xty)
	if err != nil {
		return err
	}
	m.weights = weights
	return nil
}

// Score applies the fitted weights, clamped to [0,1].
func (m *linearModel) Score(features []float64) (float64, error) {
	if m.weights == nil {
		return 0, fmt.Errorf("model is not fitted")
	}
	if len(features)+1 != len(m.weights) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.weights)-1, len(features))
	}
	score := m.weights[0]
	for i, v := range features {
		score += m.weights[i+1] * v
	}
	return math.Max(0, math.Min(1, score)), nil
}

// solve performs Gaussian elimination with partial pivoting on a
// square system.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	// Work on copies so Fit stays idempotent on its inputs.
	m := make([][]float64, n)
	for i := range a {
		m[i] = append(append([]float64{}, a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular training matrix")
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < n; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := m[row][n]
		for k := row + 1; k < n; k++ {
			sum -= m[row][k] * x[k]
		}
		x[row] = sum / m[row][row]
	}
	return x, nil
}
