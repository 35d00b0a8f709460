package model

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

const KindMLP = "mlp"

// MLP is a one-hidden-layer network with sigmoid units trained by
// full-batch backpropagation on log-loss.
type MLP struct {
	params  Params
	Hidden  [][]float64 `json:"hidden"` // hidden x input
	HBias   []float64   `json:"hiddenBias"`
	Output  []float64   `json:"output"`
	OutBias float64     `json:"outputBias"`
}

func NewMLP(p Params) *MLP {
	return &MLP{params: p.withDefaults()}
}

func (m *MLP) Kind() string { return KindMLP }

func (m *MLP) Fit(ctx context.Context, X [][]float64, y []float64) error {
	width, err := checkShape(X, y)
	if err != nil {
		return err
	}

	h := m.params.Hidden
	rng := rand.New(rand.NewSource(m.params.Seed))
	hidden := make([][]float64, h)
	for k := range hidden {
		hidden[k] = make([]float64, width)
		for j := range hidden[k] {
			hidden[k][j] = rng.Float64() - 0.5
		}
	}
	hBias := make([]float64, h)
	output := make([]float64, h)
	for k := range output {
		output[k] = rng.Float64() - 0.5
	}
	var outBias float64

	n := float64(len(X))
	act := make([]float64, h)
	gHidden := make([][]float64, h)
	for k := range gHidden {
		gHidden[k] = make([]float64, width)
	}
	gHBias := make([]float64, h)
	gOut := make([]float64, h)

	for epoch := 0; epoch < m.params.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for k := 0; k < h; k++ {
			for j := range gHidden[k] {
				gHidden[k][j] = 0
			}
			gHBias[k], gOut[k] = 0, 0
		}
		var gOutBias float64

		for i, row := range X {
			for k := 0; k < h; k++ {
				act[k] = sigmoid(dot(hidden[k], row) + hBias[k])
			}
			delta := sigmoid(dot(output, act)+outBias) - y[i]
			gOutBias += delta
			for k := 0; k < h; k++ {
				gOut[k] += delta * act[k]
				dk := delta * output[k] * act[k] * (1 - act[k])
				gHBias[k] += dk
				for j, x := range row {
					gHidden[k][j] += dk * x
				}
			}
		}

		lr := m.params.LearningRate
		for k := 0; k < h; k++ {
			for j := range hidden[k] {
				hidden[k][j] -= lr * (gHidden[k][j]/n + m.params.L2*hidden[k][j])
			}
			hBias[k] -= lr * gHBias[k] / n
			output[k] -= lr * (gOut[k]/n + m.params.L2*output[k])
		}
		outBias -= lr * gOutBias / n
	}

	m.Hidden, m.HBias, m.Output, m.OutBias = hidden, hBias, output, outBias
	return nil
}

func (m *MLP) Predict(X [][]float64) ([]float64, error) {
	if m.Output == nil {
		return nil, errors.New("mlp model is not fitted")
	}
	act := make([]float64, len(m.Hidden))
	out := make([]float64, len(X))
	for i, row := range X {
		if len(m.Hidden) > 0 && len(row) != len(m.Hidden[0]) {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), len(m.Hidden[0]))
		}
		for k := range m.Hidden {
			act[k] = sigmoid(dot(m.Hidden[k], row) + m.HBias[k])
		}
		out[i] = sigmoid(dot(m.Output, act) + m.OutBias)
	}
	return out, nil
}
