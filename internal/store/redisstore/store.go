// Package redisstore stores canonical records in Redis. A SETNX claim on the
// detail url makes InsertPair at-most-once across processes. The claim is
// taken with a TTL and made permanent in the same MULTI/EXEC that writes the
// documents, so a writer that dies in between frees the url once it expires.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPositive = "positive"
	fieldNegative = "negative"

	claimTTL = 30 * time.Second
)

type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "postings"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) claimKey(url string) string { return s.prefix + ":claim:" + url }
func (s *Store) docKey(url string) string   { return s.prefix + ":doc:" + url }
func (s *Store) indexKey() string           { return s.prefix + ":urls" }

func (s *Store) Exists(ctx context.Context, detailURL string) (bool, error) {
	n, err := s.client.Exists(ctx, s.claimKey(detailURL)).Result()
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("exists", err)
	}
	return n > 0, nil
}

// InsertPair claims the detail url with SETNX, then writes both documents,
// the index entry and the claim's PERSIST in one MULTI/EXEC. A failed write
// releases the claim.
func (s *Store) InsertPair(ctx context.Context, positive, negative models.CanonicalRecord) (bool, error) {
	posDoc, err := json.Marshal(positive)
	if err != nil {
		return false, fmt.Errorf("marshal positive: %w", err)
	}
	negDoc, err := json.Marshal(negative)
	if err != nil {
		return false, fmt.Errorf("marshal negative: %w", err)
	}

	url := positive.DetailURL
	claimed, err := s.client.SetNX(ctx, s.claimKey(url), "1", claimTTL).Result()
	if err != nil {
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	if !claimed {
		return false, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey(url), fieldPositive, posDoc, fieldNegative, negDoc)
		pipe.SAdd(ctx, s.indexKey(), url)
		pipe.Persist(ctx, s.claimKey(url))
		return nil
	})
	if err != nil {
		s.client.Del(context.WithoutCancel(ctx), s.claimKey(url))
		return false, errors.NewDatabaseInsertFailedError(err)
	}
	return true, nil
}

// All returns records ordered by detail url, positive first.
func (s *Store) All(ctx context.Context) ([]models.CanonicalRecord, error) {
	urls, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("all", err)
	}
	sort.Strings(urls)

	cmds := make([]*redis.SliceCmd, len(urls))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, url := range urls {
			cmds[i] = pipe.HMGet(ctx, s.docKey(url), fieldPositive, fieldNegative)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("all", err)
	}

	records := make([]models.CanonicalRecord, 0, 2*len(urls))
	for i, cmd := range cmds {
		for _, v := range cmd.Val() {
			doc, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("posting %s is missing a document", urls[i])
			}
			var r models.CanonicalRecord
			if err := json.Unmarshal([]byte(doc), &r); err != nil {
				return nil, fmt.Errorf("decode posting document: %w", err)
			}
			records = append(records, r)
		}
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
