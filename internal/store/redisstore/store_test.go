package redisstore

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, "test"), mr
}

func createTestPair(url string) (models.CanonicalRecord, models.CanonicalRecord) {
	pos := models.CanonicalRecord{
		DetailURL:          url,
		ExperienceRequired: 2.5,
		Education:          models.EducationUpTo(3),
		Function:           []string{"Data"},
		Employable:         true,
	}
	neg := pos.Clone()
	neg.Education = neg.Education.Downgrade()
	neg.Employable = false
	return pos, neg
}

// ==========================
// Store
// ==========================

func TestStore_InsertPairAndAll(t *testing.T) {
	s, mr := createTestStore(t)
	ctx := context.Background()

	posB, negB := createTestPair("https://jobs/b")
	posA, negA := createTestPair("https://jobs/a")

	for _, pair := range [][2]models.CanonicalRecord{{posB, negB}, {posA, negA}} {
		inserted, err := s.InsertPair(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	assert.True(t, mr.Exists("test:claim:https://jobs/a"))

	exists, err := s.Exists(ctx, "https://jobs/a")
	require.NoError(t, err)
	assert.True(t, exists)

	records, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CanonicalRecord{posA, negA, posB, negB}, records)
}

func TestStore_InsertPair_Duplicate(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	pos, neg := createTestPair("https://jobs/1")

	inserted, err := s.InsertPair(ctx, pos, neg)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertPair(ctx, pos, neg)
	require.NoError(t, err)
	assert.False(t, inserted)

	records, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStore_InsertPair_Concurrent(t *testing.T) {
	s, _ := createTestStore(t)
	pos, neg := createTestPair("https://jobs/race")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.InsertPair(context.Background(), pos, neg)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStore_InsertPair_ClaimIsPersisted(t *testing.T) {
	s, mr := createTestStore(t)
	pos, neg := createTestPair("https://jobs/1")

	inserted, err := s.InsertPair(context.Background(), pos, neg)
	require.NoError(t, err)
	require.True(t, inserted)

	assert.Equal(t, time.Duration(0), mr.TTL("test:claim:https://jobs/1"))
	mr.FastForward(2 * claimTTL)

	exists, err := s.Exists(context.Background(), pos.DetailURL)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_InsertPair_OrphanedClaimExpires(t *testing.T) {
	s, mr := createTestStore(t)
	ctx := context.Background()
	pos, neg := createTestPair("https://jobs/1")

	// a writer that claimed the url and died before its MULTI/EXEC
	require.NoError(t, mr.Set("test:claim:https://jobs/1", "1"))
	mr.SetTTL("test:claim:https://jobs/1", claimTTL)

	inserted, err := s.InsertPair(ctx, pos, neg)
	require.NoError(t, err)
	assert.False(t, inserted)

	mr.FastForward(claimTTL + time.Second)

	exists, err := s.Exists(ctx, pos.DetailURL)
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err = s.InsertPair(ctx, pos, neg)
	require.NoError(t, err)
	assert.True(t, inserted)

	records, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CanonicalRecord{pos, neg}, records)
}

func TestStore_Exists_Unknown(t *testing.T) {
	s, _ := createTestStore(t)
	exists, err := s.Exists(context.Background(), "https://nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_InsertPair_RedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewStore(client, "test")
	pos, neg := createTestPair("https://jobs/1")

	mock.ExpectSetNX("test:claim:https://jobs/1", "1", claimTTL).SetErr(stderrors.New("connection refused"))

	_, err := s.InsertPair(context.Background(), pos, neg)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatabaseInsertFailed, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Exists_RedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewStore(client, "test")

	mock.ExpectExists("test:claim:https://jobs/1").SetErr(stderrors.New("timeout"))

	_, err := s.Exists(context.Background(), "https://jobs/1")
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, errors.CodeOf(err))
}

// ==========================
// URLRepository
// ==========================

func TestURLRepository_AddAndList(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewURLRepository(client, "test")
	ctx := context.Background()

	added, err := repo.Add(ctx, "https://jobs/list?p=1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, "https://jobs/list?p=1")
	require.NoError(t, err)
	assert.False(t, added)

	urls, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://jobs/list?p=1", urls[0].URL)
}
