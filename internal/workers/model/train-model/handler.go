package trainmodel

import (
	"context"
	"encoding/json"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/pipeline/trainer"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "train-model"
)

// Trainer is satisfied by *trainer.Orchestrator.
type Trainer interface {
	Run(ctx context.Context) (*trainer.Result, error)
	RunModel(ctx context.Context, modelName string) (*trainer.Result, error)
}

// Reloader is satisfied by *predictor.Predictor.
type Reloader interface {
	Reload() error
}

type Handler struct {
	config       *Config
	trainer      Trainer
	reloader     Reloader
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. reloader may be nil when no predictor runs
// in this process.
func NewHandler(config *Config, t Trainer, reloader Reloader, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		trainer:      t,
		reloader:     reloader,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

// Handle returns the job error after it has been reported to the broker.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		stdErr := errors.NewInvalidInputError("variables", err.Error())
		h.errorHandler.HandleJobError(ctx, client, job, stdErr)
		return stdErr
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	h.completeJob(client, job, output)
	return nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		result *trainer.Result
		err    error
	)
	if input.Model == "" {
		result, err = h.trainer.Run(ctx)
	} else {
		result, err = h.trainer.RunModel(ctx, input.Model)
	}
	if err != nil {
		return nil, err
	}

	output := &Output{
		Version:   result.Version,
		Model:     result.Model,
		Accuracy:  result.Evaluation.Accuracy,
		Precision: result.Evaluation.Precision,
		Recall:    result.Evaluation.Recall,
		F1:        result.Evaluation.F1,
		LogLoss:   result.Evaluation.LogLoss,
		TrainSize: result.TrainSize,
		TestSize:  result.TestSize,
	}

	if h.reloader != nil {
		if err := h.reloader.Reload(); err != nil {
			h.logger.Warn("predictor reload failed", map[string]interface{}{
				"version": result.Version,
				"error":   err.Error(),
			})
		} else {
			output.Reloaded = true
		}
	}

	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
