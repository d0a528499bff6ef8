// Package ml implements the points-over classifier, its calibration and training.
package ml

import (
	"fmt"
	"math"
)

// LogisticModel is a logistic regression over standardized inputs
type LogisticModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
}

// FitOptions controls gradient descent
type FitOptions struct {
	LearningRate float64
	Epochs       int
	L2           float64
}

// DefaultFitOptions returns the training defaults
func DefaultFitOptions() FitOptions {
	return FitOptions{
		LearningRate: 0.1,
		Epochs:       500,
		L2:           0.001,
	}
}

// Score returns the raw classifier output in [0,1]
func (m *LogisticModel) Score(x []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		z += w * (x[i] - m.Means[i]) / m.Scales[i]
	}
	return sigmoid(z)
}

// Validate checks that the parameter slices agree on dimension
func (m *LogisticModel) Validate(dim int) error {
	if len(m.Weights) != dim || len(m.Means) != dim || len(m.Scales) != dim {
		return fmt.Errorf("model has %d weights, %d means, %d scales, want %d", len(m.Weights), len(m.Means), len(m.Scales), dim)
	}
	for i, s := range m.Scales {
		if s <= 0 || math.IsNaN(s) {
			return fmt.Errorf("scale %d is not positive", i)
		}
	}
	return nil
}

// FitLogistic trains a model with full-batch gradient descent.
// Given the same inputs it always produces the same parameters.
func FitLogistic(X [][]float64, y []float64, opts FitOptions) (*LogisticModel, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%d rows but %d labels", len(X), len(y))
	}
	dim := len(X[0])
	for i, row := range X {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), dim)
		}
	}

	means, scales := standardization(X, dim)
	Z := make([][]float64, len(X))
	for i, row := range X {
		z := make([]float64, dim)
		for j := range row {
			z[j] = (row[j] - means[j]) / scales[j]
		}
		Z[i] = z
	}

	weights := make([]float64, dim)
	bias := 0.0
	n := float64(len(Z))
	grad := make([]float64, dim)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, z := range Z {
			p := bias
			for j, w := range weights {
				p += w * z[j]
			}
			diff := sigmoid(p) - y[i]
			for j := range z {
				grad[j] += diff * z[j]
			}
			gradBias += diff
		}
		for j := range weights {
			weights[j] -= opts.LearningRate * (grad[j]/n + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * gradBias / n
	}

	return &LogisticModel{
		Weights: weights,
		Bias:    bias,
		Means:   means,
		Scales:  scales,
	}, nil
}

// standardization returns per-column mean and population std; constant columns get scale 1
func standardization(X [][]float64, dim int) ([]float64, []float64) {
	means := make([]float64, dim)
	scales := make([]float64, dim)
	n := float64(len(X))
	for _, row := range X {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - means[j]
			scales[j] += d * d
		}
	}
	for j := range scales {
		scales[j] = math.Sqrt(scales[j] / n)
		if scales[j] < 1e-12 {
			scales[j] = 1
		}
	}
	return means, scales
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
