package redisstore

import (
	"context"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// URLRepository keeps crawl urls in a sorted set scored by registration time.
type URLRepository struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewURLRepository(client *redis.Client, prefix string) *URLRepository {
	if prefix == "" {
		prefix = "postings"
	}
	return &URLRepository{client: client, key: prefix + ":crawl_urls", now: time.Now}
}

func (r *URLRepository) Add(ctx context.Context, url string) (bool, error) {
	n, err := r.client.ZAddNX(ctx, r.key, redis.Z{
		Score:  float64(r.now().UnixMilli()),
		Member: url,
	}).Result()
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	return n > 0, nil
}

func (r *URLRepository) List(ctx context.Context) ([]models.CrawlURL, error) {
	entries, err := r.client.ZRangeWithScores(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_urls", err)
	}

	urls := make([]models.CrawlURL, 0, len(entries))
	for i, e := range entries {
		member, _ := e.Member.(string)
		urls = append(urls, models.CrawlURL{
			ID:        int64(i + 1),
			URL:       member,
			CreatedAt: time.UnixMilli(int64(e.Score)).UTC().Format(time.RFC3339),
		})
	}
	return urls, nil
}
