// Package postgres stores canonical records and crawl urls in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS job_postings (
    detail_url  TEXT        NOT NULL,
    employable  BOOLEAN     NOT NULL,
    document    JSONB       NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (detail_url, employable)
);
CREATE TABLE IF NOT EXISTS crawl_urls (
    id          BIGSERIAL   PRIMARY KEY,
    url         TEXT        NOT NULL UNIQUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const (
	existsQuery = `SELECT EXISTS(SELECT 1 FROM job_postings WHERE detail_url = $1)`
	insertQuery = `INSERT INTO job_postings (detail_url, employable, document)
VALUES ($1, $2, $3)
ON CONFLICT (detail_url, employable) DO NOTHING`
	allQuery = `SELECT document FROM job_postings ORDER BY detail_url, employable DESC`
)

// Store persists each record as a JSONB document keyed by
// (detail_url, employable).
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.NewQueryExecutionFailedError("migrate", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, detailURL string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, existsQuery, detailURL).Scan(&exists); err != nil {
		return false, errors.NewQueryExecutionFailedError("exists", err)
	}
	return exists, nil
}

// InsertPair writes both records in one transaction. The positive insert
// claims the detail url; when it conflicts nothing is written.
func (s *Store) InsertPair(ctx context.Context, positive, negative models.CanonicalRecord) (bool, error) {
	posDoc, err := json.Marshal(positive)
	if err != nil {
		return false, fmt.Errorf("marshal positive: %w", err)
	}
	negDoc, err := json.Marshal(negative)
	if err != nil {
		return false, fmt.Errorf("marshal negative: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.NewDatabaseConnectionFailedError(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertQuery, positive.DetailURL, true, posDoc)
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, insertQuery, negative.DetailURL, false, negDoc); err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	if err := tx.Commit(); err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	return true, nil
}

func (s *Store) All(ctx context.Context) ([]models.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, allQuery)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("all", err)
	}
	defer rows.Close()

	records := []models.CanonicalRecord{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.NewQueryExecutionFailedError("all", err)
		}
		var r models.CanonicalRecord
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, fmt.Errorf("decode posting document: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("all", err)
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
