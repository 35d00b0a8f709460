// Package trainer runs one training pass end to end: extraction, schema
// fitting, stratified split, model fit, evaluation and persistence.
package trainer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/metrics"
	"employability-workers/internal/common/observability"
	"employability-workers/internal/models"
	"employability-workers/internal/pipeline/artifacts"
	"employability-workers/internal/pipeline/features"
	"employability-workers/internal/pipeline/model"
	"employability-workers/internal/pipeline/split"

	"github.com/google/uuid"
)

// Stage is a state of a training run.
type Stage string

const (
	StageIdle          Stage = "Idle"
	StageExtracting    Stage = "Extracting"
	StageSchemaFitting Stage = "SchemaFitting"
	StageSplitting     Stage = "Splitting"
	StageFitting       Stage = "Fitting"
	StageEvaluating    Stage = "Evaluating"
	// StagePersisting covers writing the bundle; a run only reports
	// StagePersisted once the bundle is durable and current.
	StagePersisting Stage = "Persisting"
	StagePersisted  Stage = "Persisted"
)

// Source supplies every stored canonical record.
type Source interface {
	All(ctx context.Context) ([]models.CanonicalRecord, error)
}

type Config struct {
	TestFraction float64
	Seed         int64
	Model        string
	Params       model.Params
}

// Result summarizes a persisted run.
type Result struct {
	Version    string        `json:"version"`
	Model      string        `json:"model"`
	TrainSize  int           `json:"trainSize"`
	TestSize   int           `json:"testSize"`
	Columns    int           `json:"columns"`
	Evaluation Evaluation    `json:"evaluation"`
	Duration   time.Duration `json:"duration"`
}

type Orchestrator struct {
	source     Source
	artifacts  *artifacts.Store
	cfg        Config
	obs        *observability.Observability
	notifier   Notifier
	logger     logger.Logger
	newVersion func() string

	running sync.Mutex
	mu      sync.RWMutex
	state   Stage
}

type Option func(*Orchestrator)

// WithNotifier announces persisted runs. Notification failures are logged
// and never abort a run.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// WithVersionFunc overrides bundle version generation.
func WithVersionFunc(f func() string) Option {
	return func(o *Orchestrator) { o.newVersion = f }
}

func New(source Source, store *artifacts.Store, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.TestFraction == 0 {
		cfg.TestFraction = 0.2
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Model == "" {
		cfg.Model = model.KindLogistic
	}
	if cfg.Params.Seed == 0 {
		cfg.Params.Seed = cfg.Seed
	}

	o := &Orchestrator{
		source:     source,
		artifacts:  store,
		cfg:        cfg,
		obs:        observability.NewNoop(),
		logger:     logger.Component(log, "trainer"),
		newVersion: newVersion,
		state:      StageIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// newVersion returns a time-ordered id so bundle directories sort by age.
func newVersion() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// State returns the current stage.
func (o *Orchestrator) State() Stage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s Stage) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one training run with the configured model. Any stage
// failure aborts the run with TrainingAborted and commits nothing.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	return o.RunModel(ctx, o.cfg.Model)
}

// RunModel is Run with an explicit model name.
func (o *Orchestrator) RunModel(ctx context.Context, modelName string) (*Result, error) {
	if !o.running.TryLock() {
		return nil, errors.NewTrainingAbortedError(string(StageIdle), fmt.Errorf("a training run is already in progress"))
	}
	defer o.running.Unlock()

	start := time.Now()
	version := o.newVersion()
	log := o.logger.WithFields(map[string]interface{}{"version": version, "model": modelName})
	log.Info("training run started", nil)

	result, err := o.run(ctx, version, modelName, log)
	if err != nil {
		o.setState(StageIdle)
		metrics.TrainingRuns.WithLabelValues("aborted").Inc()
		log.Error("training run aborted", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	result.Duration = time.Since(start)
	metrics.TrainingRuns.WithLabelValues("persisted").Inc()
	log.Info("training run persisted", map[string]interface{}{
		"trainSize": result.TrainSize,
		"testSize":  result.TestSize,
		"accuracy":  result.Evaluation.Accuracy,
		"f1":        result.Evaluation.F1,
	})

	if o.notifier != nil {
		if err := o.notifier.NotifyTrainingRun(ctx, result); err != nil {
			log.Warn("training notification failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, version, modelName string, log logger.Logger) (*Result, error) {
	var (
		records     []models.CanonicalRecord
		schema      *features.FeatureSchema
		train, test []models.CanonicalRecord
		clf         model.Classifier
		eval        Evaluation
	)

	err := o.stage(ctx, StageExtracting, func() error {
		var err error
		records, err = o.source.All(ctx)
		if err != nil {
			return err
		}
		log.Debug("records extracted", map[string]interface{}{"records": len(records)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, StageSchemaFitting, func() error {
		var err error
		schema, err = features.BuildVocabulary(records)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, StageSplitting, func() error {
		labels := make([]int, len(records))
		for i, r := range records {
			labels[i] = r.Label()
		}
		trainIdx, testIdx, err := split.Stratified(labels, o.cfg.TestFraction, o.cfg.Seed)
		if err != nil {
			return err
		}
		train, test = split.Pick(records, trainIdx), split.Pick(records, testIdx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, StageFitting, func() error {
		fitted, err := features.FitScaling(schema, train)
		if err != nil {
			return err
		}
		schema = fitted.WithVersion(version)

		table, err := features.Transform(train, schema)
		if err != nil {
			return err
		}
		clf, err = model.New(modelName, o.cfg.Params)
		if err != nil {
			return err
		}
		return clf.Fit(ctx, table.Rows, table.Labels)
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, StageEvaluating, func() error {
		table, err := features.Transform(test, schema)
		if err != nil {
			return err
		}
		probs, err := clf.Predict(table.Rows)
		if err != nil {
			return err
		}
		eval = Evaluate(probs, table.Labels)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = o.stage(ctx, StagePersisting, func() error {
		blob, err := model.Encode(clf, version)
		if err != nil {
			return err
		}
		return o.artifacts.Save(ctx, artifacts.Bundle{
			Manifest: artifacts.Manifest{
				Version:   version,
				ModelKind: modelName,
				CreatedAt: time.Now().UTC(),
				TrainSize: len(train),
				TestSize:  len(test),
				Metrics:   eval.asMap(),
			},
			Schema: schema,
			Model:  blob,
		})
	})
	if err != nil {
		return nil, err
	}
	o.setState(StagePersisted)

	return &Result{
		Version:    version,
		Model:      modelName,
		TrainSize:  len(train),
		TestSize:   len(test),
		Columns:    schema.Width(),
		Evaluation: eval,
	}, nil
}

func (o *Orchestrator) stage(ctx context.Context, s Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTrainingAbortedError(string(s), err)
	}
	o.setState(s)

	spanCtx, span := o.obs.StartStage(ctx, string(s))
	start := time.Now()
	err := fn()
	o.obs.EndStage(spanCtx, span, string(s), time.Since(start), err)

	if err != nil {
		return errors.NewTrainingAbortedError(string(s), err)
	}
	return nil
}
