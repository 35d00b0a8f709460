// Package predictor serves predictions from the current artifact bundle.
package predictor

import (
	"context"
	"fmt"
	"sync"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/metrics"
	"employability-workers/internal/pipeline/artifacts"
	"employability-workers/internal/pipeline/features"
	"employability-workers/internal/pipeline/model"
	"employability-workers/internal/pipeline/trainer"
)

// Prediction is the thresholded label with its score.
type Prediction struct {
	Label       int     `json:"prediction"`
	Probability float64 `json:"probability"`
	Version     string  `json:"version"`
}

type loaded struct {
	schema *features.FeatureSchema
	clf    model.Classifier
}

// Predictor holds one schema and model pair loaded from the same bundle.
type Predictor struct {
	store  *artifacts.Store
	logger logger.Logger

	mu      sync.RWMutex
	current *loaded
}

func New(store *artifacts.Store, log logger.Logger) *Predictor {
	return &Predictor{store: store, logger: logger.Component(log, "predictor")}
}

// Reload loads the bundle CURRENT points at.
func (p *Predictor) Reload() error {
	b, err := p.store.LoadCurrent()
	if err != nil {
		return err
	}
	return p.Use(b)
}

// Use switches to bundle b after checking its model carries the schema's
// version.
func (p *Predictor) Use(b *artifacts.Bundle) error {
	clf, modelVersion, err := model.Decode(b.Model)
	if err != nil {
		return err
	}
	if modelVersion != b.Schema.Version {
		return errors.NewSchemaVersionMismatchError(b.Schema.Version, modelVersion)
	}

	p.mu.Lock()
	p.current = &loaded{schema: b.Schema, clf: clf}
	p.mu.Unlock()

	p.logger.Info("model loaded", map[string]interface{}{
		"version": b.Schema.Version,
		"columns": b.Schema.Width(),
	})
	return nil
}

// Version returns the loaded bundle version, or "".
func (p *Predictor) Version() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return ""
	}
	return p.current.schema.Version
}

func (p *Predictor) Ready() bool {
	return p.Version() != ""
}

// Predict returns 1 when the model scores input at or above 0.5.
func (p *Predictor) Predict(ctx context.Context, input map[string]interface{}) (int, error) {
	res, err := p.PredictDetailed(ctx, input)
	if err != nil {
		return 0, err
	}
	return res.Label, nil
}

// PredictDetailed encodes input with the frozen schema and scores it.
func (p *Predictor) PredictDetailed(ctx context.Context, input map[string]interface{}) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil, errors.NewModelNotLoadedError()
	}

	row, err := features.TransformRow(input, cur.schema)
	if err != nil {
		return nil, err
	}

	scores, err := cur.clf.Predict([][]float64{row})
	if err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	label := 0
	if scores[0] >= trainer.Threshold {
		label = 1
	}
	metrics.Predictions.WithLabelValues(fmt.Sprint(label)).Inc()

	return &Prediction{Label: label, Probability: scores[0], Version: cur.schema.Version}, nil
}
