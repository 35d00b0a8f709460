package registercrawlurl

import (
	"context"
	"encoding/json"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "register-crawl-url"
)

// URLRepository persists listing pages to crawl.
type URLRepository interface {
	Add(ctx context.Context, url string) (bool, error)
}

type Handler struct {
	config       *Config
	repo         URLRepository
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, repo URLRepository, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		repo:         repo,
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

	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
		stdErr := errors.NewInvalidInputError("variables", err.Error())
		h.errorHandler.HandleJobError(ctx, client, job, stdErr)
		return stdErr
	}

	output, err := h.execute(ctx, vars)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	h.completeJob(client, job, output)
	return nil
}

func (h *Handler) execute(ctx context.Context, vars map[string]interface{}) (*Output, error) {
	result, err := validation.CrawlURLRequest.Validate(vars)
	if err != nil {
		return nil, errors.NewInvalidInputError("url", err.Error())
	}
	if !result.Valid {
		first := result.FirstError()
		return nil, errors.NewInvalidInputError(first.Field, first.Message)
	}

	url, _ := vars["url"].(string)
	added, err := h.repo.Add(ctx, url)
	if err != nil {
		return nil, err
	}

	h.logger.Info("crawl url registered", map[string]interface{}{
		"url":   url,
		"added": added,
	})
	return &Output{URL: url, Added: added}, nil
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

// Execute validates input the same way Handle does.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, map[string]interface{}{"url": input.URL})
}
