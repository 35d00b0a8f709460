package predictemployability

import (
	"context"
	"encoding/json"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/validation"
	"employability-workers/internal/pipeline/predictor"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "predict-employability"
)

// Predictor is satisfied by *predictor.Predictor.
type Predictor interface {
	PredictDetailed(ctx context.Context, input map[string]interface{}) (*predictor.Prediction, error)
}

type Handler struct {
	config       *Config
	predictor    Predictor
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, p Predictor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		predictor:    p,
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
		stdErr := errors.NewInvalidInputError("features", err.Error())
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
	if input.Features == nil {
		return nil, errors.NewInvalidInputError("features", "features are required")
	}

	result, err := validation.PredictionRequest.Validate(input.Features)
	if err != nil {
		return nil, errors.NewInvalidInputError("features", err.Error())
	}
	if !result.Valid {
		first := result.FirstError()
		return nil, errors.NewInvalidFeatureValueError(first.Field, input.Features[first.Field])
	}

	pred, err := h.predictor.PredictDetailed(ctx, input.Features)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("prediction served", map[string]interface{}{
		"prediction":  pred.Label,
		"probability": pred.Probability,
		"version":     pred.Version,
	})

	return &Output{
		Prediction:   pred.Label,
		Probability:  pred.Probability,
		ModelVersion: pred.Version,
	}, nil
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
