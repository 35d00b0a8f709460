package memory

import (
	"context"
	"sync"
	"time"

	"employability-workers/internal/models"
)

// URLRepository is the in-process crawl url list.
type URLRepository struct {
	mu   sync.Mutex
	urls []models.CrawlURL
	now  func() time.Time
}

func NewURLRepository() *URLRepository {
	return &URLRepository{now: time.Now}
}

func (r *URLRepository) Add(_ context.Context, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.urls {
		if u.URL == url {
			return false, nil
		}
	}
	r.urls = append(r.urls, models.CrawlURL{
		ID:        int64(len(r.urls) + 1),
		URL:       url,
		CreatedAt: r.now().UTC().Format(time.RFC3339),
	})
	return true, nil
}

func (r *URLRepository) List(context.Context) ([]models.CrawlURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.CrawlURL(nil), r.urls...), nil
}
