package crawler

import (
	"bytes"
	"context"
	"sync"
	"time"

	"employability-workers/internal/common/errors"
	commonhttp "employability-workers/internal/common/http"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/models"

	"golang.org/x/sync/errgroup"
)

// Fetcher downloads a listing page and extracts its postings.
type Fetcher struct {
	client    *commonhttp.Client
	extractor Extractor
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{client: commonhttp.NewClient(timeout, userAgent)}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]models.RawPosting, error) {
	body, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, errors.NewCrawlFetchFailedError(url, err)
	}
	postings, err := f.extractor.Extract(url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewCrawlFetchFailedError(url, err)
	}
	return postings, nil
}

// PageFetcher is satisfied by *Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]models.RawPosting, error)
}

// Ingester is satisfied by *collector.Collector.
type Ingester interface {
	Accept(ctx context.Context, raw models.RawPosting) ([]models.CanonicalRecord, error)
}

// URLSource lists the registered listing pages.
type URLSource interface {
	List(ctx context.Context) ([]models.CrawlURL, error)
}

// Stats summarises one crawl.
type Stats struct {
	Pages          int `json:"pages"`
	FailedPages    int `json:"failedPages"`
	Postings       int `json:"postings"`
	Accepted       int `json:"accepted"`
	Duplicates     int `json:"duplicates"`
	Rejected       int `json:"rejected"`
	RecordsWritten int `json:"recordsWritten"`
}

func (s *Stats) add(o Stats) {
	s.Pages += o.Pages
	s.FailedPages += o.FailedPages
	s.Postings += o.Postings
	s.Accepted += o.Accepted
	s.Duplicates += o.Duplicates
	s.Rejected += o.Rejected
	s.RecordsWritten += o.RecordsWritten
}

type Crawler struct {
	fetcher     PageFetcher
	concurrency int
	logger      logger.Logger
}

func New(fetcher PageFetcher, concurrency int, log logger.Logger) *Crawler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Crawler{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger.Component(log, "crawler"),
	}
}

// Run crawls urls with bounded concurrency. A page that fails to fetch is
// logged and counted; it does not stop its siblings. A store failure while
// ingesting, or cancellation of ctx, stops the crawl and is returned.
func (c *Crawler) Run(ctx context.Context, urls []string, ing Ingester) (Stats, error) {
	var (
		mu    sync.Mutex
		total Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, u := range urls {
		u := u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			postings, err := c.fetcher.Fetch(gctx, u)
			if err != nil {
				c.logger.Warn("listing page fetch failed", map[string]interface{}{
					"url":   u,
					"error": err.Error(),
				})
				mu.Lock()
				total.Pages++
				total.FailedPages++
				mu.Unlock()
				return nil
			}

			stats, err := c.Ingest(gctx, postings, ing)
			stats.Pages = 1

			mu.Lock()
			total.add(stats)
			mu.Unlock()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return total, err
	}

	c.logger.Info("crawl finished", map[string]interface{}{
		"pages":    total.Pages,
		"failed":   total.FailedPages,
		"accepted": total.Accepted,
		"dupes":    total.Duplicates,
	})
	return total, ctx.Err()
}

// RunRegistered crawls every url in src.
func (c *Crawler) RunRegistered(ctx context.Context, src URLSource, ing Ingester) (Stats, error) {
	registered, err := src.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	urls := make([]string, 0, len(registered))
	for _, u := range registered {
		urls = append(urls, u.URL)
	}
	if len(urls) == 0 {
		c.logger.Info("no urls registered for crawling", nil)
	}
	return c.Run(ctx, urls, ing)
}

// Ingest feeds already extracted postings to ing. A posting the collector
// refuses as malformed is counted as rejected and skipped; any other error
// from ing (store I/O, cancellation) stops the loop and is returned along
// with the stats so far.
func (c *Crawler) Ingest(ctx context.Context, postings []models.RawPosting, ing Ingester) (Stats, error) {
	var stats Stats
	for _, p := range postings {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Postings++
		records, err := ing.Accept(ctx, p)
		switch {
		case err != nil && isRejection(err):
			stats.Rejected++
			c.logger.Warn("posting rejected", map[string]interface{}{
				"detailUrl": p.DetailURL,
				"error":     err.Error(),
			})
		case err != nil:
			c.logger.Error("posting ingestion failed", map[string]interface{}{
				"detailUrl": p.DetailURL,
				"error":     err.Error(),
			})
			return stats, err
		case len(records) == 0:
			stats.Duplicates++
		default:
			stats.Accepted++
			stats.RecordsWritten += len(records)
		}
	}
	return stats, nil
}

func isRejection(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFeatureValue, errors.ErrCodeMalformedRawField:
		return true
	}
	return false
}
