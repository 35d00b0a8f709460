package ingestpostings

import (
	"context"
	"encoding/json"
	"strings"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/crawler"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "ingest-postings"
)

type Handler struct {
	config       *Config
	crawler      *crawler.Crawler
	fetcher      crawler.PageFetcher
	urls         crawler.URLSource
	ingester     crawler.Ingester
	extractor    crawler.Extractor
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, c *crawler.Crawler, fetcher crawler.PageFetcher, urls crawler.URLSource, ingester crawler.Ingester, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		crawler:      c,
		fetcher:      fetcher,
		urls:         urls,
		ingester:     ingester,
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
	url := strings.TrimSpace(input.URL)

	var stats crawler.Stats
	switch {
	case input.HTML != "":
		if url == "" {
			return nil, errors.NewInvalidInputError("url", "url is required to resolve links in html")
		}
		postings, err := h.extractor.Extract(url, strings.NewReader(input.HTML))
		if err != nil {
			return nil, errors.NewInvalidInputError("html", err.Error())
		}
		if stats, err = h.crawler.Ingest(ctx, postings, h.ingester); err != nil {
			return nil, err
		}
		stats.Pages = 1

	case url != "":
		postings, err := h.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if stats, err = h.crawler.Ingest(ctx, postings, h.ingester); err != nil {
			return nil, err
		}
		stats.Pages = 1

	default:
		var err error
		stats, err = h.crawler.RunRegistered(ctx, h.urls, h.ingester)
		if err != nil {
			return nil, err
		}
	}

	h.logger.Info("postings ingested", map[string]interface{}{
		"url":        url,
		"accepted":   stats.Accepted,
		"duplicates": stats.Duplicates,
		"rejected":   stats.Rejected,
	})

	return &Output{
		Pages:          stats.Pages,
		FailedPages:    stats.FailedPages,
		Postings:       stats.Postings,
		Accepted:       stats.Accepted,
		Duplicates:     stats.Duplicates,
		Rejected:       stats.Rejected,
		RecordsWritten: stats.RecordsWritten,
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
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
