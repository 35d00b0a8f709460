package postgres

import (
	"context"
	"database/sql"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/models"
)

const (
	addURLQuery = `INSERT INTO crawl_urls (url) VALUES ($1)
ON CONFLICT (url) DO NOTHING`
	listURLsQuery = `SELECT id, url, created_at FROM crawl_urls ORDER BY id`
)

// URLRepository keeps the list of listing pages to crawl.
type URLRepository struct {
	db *sql.DB
}

func NewURLRepository(db *sql.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Add registers url and reports whether it was new.
func (r *URLRepository) Add(ctx context.Context, url string) (bool, error) {
	res, err := r.db.ExecContext(ctx, addURLQuery, url)
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	return n > 0, nil
}

func (r *URLRepository) List(ctx context.Context) ([]models.CrawlURL, error) {
	rows, err := r.db.QueryContext(ctx, listURLsQuery)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_urls", err)
	}
	defer rows.Close()

	var urls []models.CrawlURL
	for rows.Next() {
		var u models.CrawlURL
		var created time.Time
		if err := rows.Scan(&u.ID, &u.URL, &created); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_urls", err)
		}
		u.CreatedAt = created.UTC().Format(time.RFC3339)
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_urls", err)
	}
	return urls, nil
}
