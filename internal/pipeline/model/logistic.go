package model

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const KindLogistic = "logistic"

// Logistic is L2-regularised logistic regression fitted by full-batch
// gradient descent.
type Logistic struct {
	params  Params
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func NewLogistic(p Params) *Logistic {
	return &Logistic{params: p.withDefaults()}
}

func (m *Logistic) Kind() string { return KindLogistic }

func (m *Logistic) Fit(ctx context.Context, X [][]float64, y []float64) error {
	width, err := checkShape(X, y)
	if err != nil {
		return err
	}

	w := make([]float64, width)
	var b float64
	grad := make([]float64, width)
	n := float64(len(X))

	for epoch := 0; epoch < m.params.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j := range grad {
			grad[j] = 0
		}
		var gradB float64
		for i, row := range X {
			diff := sigmoid(dot(w, row)+b) - y[i]
			for j, x := range row {
				grad[j] += diff * x
			}
			gradB += diff
		}
		for j := range w {
			w[j] -= m.params.LearningRate * (grad[j]/n + m.params.L2*w[j])
		}
		b -= m.params.LearningRate * gradB / n
	}

	m.Weights, m.Bias = w, b
	return nil
}

func (m *Logistic) Predict(X [][]float64) ([]float64, error) {
	if m.Weights == nil {
		return nil, errors.New("logistic model is not fitted")
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), len(m.Weights))
		}
		out[i] = sigmoid(dot(m.Weights, row) + m.Bias)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
