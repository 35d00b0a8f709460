// Package collector deduplicates raw postings and pairs every new positive
// record with one synthesized negative.
package collector

import (
	"context"
	"fmt"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/metrics"
	"employability-workers/internal/models"
	"employability-workers/internal/pipeline/normalize"
)

// Store persists canonical records keyed by detail url.
type Store interface {
	Exists(ctx context.Context, detailURL string) (bool, error)
	// InsertPair atomically stores both records unless the key already
	// exists. It reports whether the pair was written.
	InsertPair(ctx context.Context, positive, negative models.CanonicalRecord) (bool, error)
	All(ctx context.Context) ([]models.CanonicalRecord, error)
}

type Collector struct {
	store      Store
	normalizer *normalize.Normalizer
	degrader   *Degrader
	logger     logger.Logger
}

func New(store Store, degrader *Degrader, log logger.Logger) *Collector {
	return &Collector{
		store:      store,
		normalizer: normalize.New(log),
		degrader:   degrader,
		logger:     logger.Component(log, "collector"),
	}
}

// Accept ingests one raw posting. It returns the positive and negative
// records written, or nothing when the detail url was already ingested.
func (c *Collector) Accept(ctx context.Context, raw models.RawPosting) ([]models.CanonicalRecord, error) {
	positive := c.normalizer.Normalize(raw, true)
	if positive.DetailURL == "" {
		return nil, errors.NewInvalidInputError("detail_url", "posting has no detail url")
	}

	exists, err := c.store.Exists(ctx, positive.DetailURL)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", positive.DetailURL, err)
	}
	if exists {
		c.duplicate(positive.DetailURL)
		return nil, nil
	}

	negative := c.degrader.Degrade(positive)

	inserted, err := c.store.InsertPair(ctx, positive, negative)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", positive.DetailURL, err)
	}
	if !inserted {
		c.duplicate(positive.DetailURL)
		return nil, nil
	}

	metrics.PostingsAccepted.Inc()
	metrics.RecordsWritten.WithLabelValues("true").Inc()
	metrics.RecordsWritten.WithLabelValues("false").Inc()

	c.logger.Debug("posting accepted", map[string]interface{}{
		"detailUrl":          positive.DetailURL,
		"experienceRequired": positive.ExperienceRequired,
		"negativeExperience": negative.ExperienceRequired,
	})

	return []models.CanonicalRecord{positive, negative}, nil
}

// Records returns every stored record.
func (c *Collector) Records(ctx context.Context) ([]models.CanonicalRecord, error) {
	return c.store.All(ctx)
}

func (c *Collector) duplicate(detailURL string) {
	metrics.PostingsDuplicate.Inc()
	c.logger.Debug("duplicate posting skipped", map[string]interface{}{
		"detailUrl": detailURL,
		"code":      string(errors.NewDuplicateIngestionError(detailURL).Code),
	})
}
