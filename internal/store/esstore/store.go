// Package esstore keeps canonical records as Elasticsearch documents. Each
// posting maps to two documents whose ids derive from the detail url, and
// op_type=create on the positive one arbitrates duplicates. A positive whose
// negative could not be written is deleted again so the pair stays whole.
package esstore

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"employability-workers/internal/common/database"
	"employability-workers/internal/common/errors"
	"employability-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultPageSize = 1000
	scrollKeepAlive = time.Minute
)

type Store struct {
	es       *database.ElasticsearchClient
	pageSize int
}

func NewStore(es *database.ElasticsearchClient) *Store {
	return &Store{es: es, pageSize: defaultPageSize}
}

func documentID(detailURL string, employable bool) string {
	sum := sha1.Sum([]byte(detailURL))
	suffix := "neg"
	if employable {
		suffix = "pos"
	}
	return hex.EncodeToString(sum[:]) + "-" + suffix
}

func (s *Store) Exists(ctx context.Context, detailURL string) (bool, error) {
	req := esapi.ExistsRequest{
		Index:      s.es.Index,
		DocumentID: documentID(detailURL, true),
	}
	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		return false, errors.NewIndexRequestFailedError("exists", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, errors.NewIndexRequestFailedError("exists", fmt.Errorf("status %s", res.Status()))
	}
}

func (s *Store) InsertPair(ctx context.Context, positive, negative models.CanonicalRecord) (bool, error) {
	created, err := s.create(ctx, positive)
	if err != nil || !created {
		return false, err
	}
	// A conflict on the negative document means an earlier writer got this far.
	if _, err := s.create(ctx, negative); err != nil {
		if derr := s.delete(context.WithoutCancel(ctx), positive); derr != nil {
			return false, errors.NewIndexRequestFailedError("create", fmt.Errorf("%v; rollback of positive failed: %v", err, derr))
		}
		return false, err
	}
	return true, nil
}

func (s *Store) delete(ctx context.Context, record models.CanonicalRecord) error {
	req := esapi.DeleteRequest{
		Index:      s.es.Index,
		DocumentID: documentID(record.DetailURL, record.Employable),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("status %s", res.Status())
	}
	return nil
}

func (s *Store) create(ctx context.Context, record models.CanonicalRecord) (bool, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	req := esapi.CreateRequest{
		Index:      s.es.Index,
		DocumentID: documentID(record.DetailURL, record.Employable),
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		return false, errors.NewIndexRequestFailedError("create", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return false, nil
	}
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return false, errors.NewIndexRequestFailedError("create", fmt.Errorf("%s: %s", res.Status(), strings.TrimSpace(string(msg))))
	}
	return true, nil
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source models.CanonicalRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// All scrolls through the whole index and returns records ordered by detail
// url, positive first. A short read against the reported total is an error.
func (s *Store) All(ctx context.Context) ([]models.CanonicalRecord, error) {
	query := map[string]interface{}{
		"query":            map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":             []string{"_doc"},
		"track_total_hits": true,
	}
	body, _ := json.Marshal(query)

	size := s.pageSize
	req := esapi.SearchRequest{
		Index:  []string{s.es.Index},
		Body:   bytes.NewReader(body),
		Size:   &size,
		Scroll: scrollKeepAlive,
	}
	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		return nil, errors.NewIndexRequestFailedError("search", err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil, nil
	}
	page, err := decodePage(res, "search")
	if err != nil {
		return nil, err
	}

	scrollID := page.ScrollID
	defer func() {
		if scrollID != "" {
			s.clearScroll(context.WithoutCancel(ctx), scrollID)
		}
	}()

	total := page.Hits.Total.Value
	records := make([]models.CanonicalRecord, 0, total)
	for len(page.Hits.Hits) > 0 {
		for _, hit := range page.Hits.Hits {
			records = append(records, hit.Source)
		}
		if scrollID == "" || len(records) >= total {
			break
		}

		next, _ := json.Marshal(map[string]string{
			"scroll":    fmt.Sprintf("%ds", int(scrollKeepAlive.Seconds())),
			"scroll_id": scrollID,
		})
		res, err := esapi.ScrollRequest{Body: bytes.NewReader(next)}.Do(ctx, s.es.Client)
		if err != nil {
			return nil, errors.NewIndexRequestFailedError("scroll", err)
		}
		if page, err = decodePage(res, "scroll"); err != nil {
			return nil, err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}

	if len(records) != total {
		return nil, errors.NewIndexRequestFailedError("scroll",
			fmt.Errorf("read %d of %d documents", len(records), total))
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].DetailURL != records[j].DetailURL {
			return records[i].DetailURL < records[j].DetailURL
		}
		return records[i].Employable && !records[j].Employable
	})
	return records, nil
}

func decodePage(res *esapi.Response, op string) (*searchResponse, error) {
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewIndexRequestFailedError(op, fmt.Errorf("status %s", res.Status()))
	}
	var page searchResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	return &page, nil
}

func (s *Store) clearScroll(ctx context.Context, scrollID string) {
	res, err := esapi.ClearScrollRequest{ScrollID: []string{scrollID}}.Do(ctx, s.es.Client)
	if err != nil {
		return
	}
	res.Body.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.es.Ping(ctx); err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	return nil
}
