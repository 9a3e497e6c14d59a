package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	pkgerrors "github.com/turtacn/substance-resolver/pkg/errors"
)

type cachedMatch struct {
	ReferenceID string `json:"reference_id"`
	Score       int    `json:"score"`
}

// CacheTestSuite drives the cache against redismock for exact command checks.
type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.cache = NewRedisCache(NewClientFromUniversal(db, nil), nil, WithPrefix("test:"), WithTTLJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGet_Hit() {
	val := cachedMatch{ReferenceID: "R1", Score: 100}
	raw, _ := json.Marshal(val)
	s.mock.ExpectGet("test:k1").SetVal(string(raw))

	var dest cachedMatch
	s.Require().NoError(s.cache.Get(context.Background(), "k1", &dest))
	s.Equal(val, dest)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:k1").RedisNil()

	var dest cachedMatch
	err := s.cache.Get(context.Background(), "k1", &dest)
	s.Equal(ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:k1").SetErr(errors.New("connection reset"))

	var dest cachedMatch
	err := s.cache.Get(context.Background(), "k1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptEntry() {
	s.mock.ExpectGet("test:k1").SetVal("{oops")

	var dest cachedMatch
	err := s.cache.Get(context.Background(), "k1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "k1", "k2"))
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestGetOrSet_BackendErrorSkipsLoader() {
	s.mock.ExpectGet("test:k1").SetErr(errors.New("connection reset"))

	called := false
	var dest cachedMatch
	err := s.cache.GetOrSet(context.Background(), "k1", &dest, time.Minute, func(context.Context) (interface{}, error) {
		called = true
		return cachedMatch{}, nil
	})
	s.Error(err)
	s.False(called)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func newMiniCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(NewClientFromUniversal(rdb, nil), nil, WithPrefix("subres:"), WithTTLJitter(0)), mr
}

func TestGetOrSet_MissThenHit(t *testing.T) {
	cache, mr := newMiniCache(t)
	ctx := context.Background()

	var loads int32
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&loads, 1)
		return cachedMatch{ReferenceID: "R3", Score: 92}, nil
	}

	var first, second cachedMatch
	require.NoError(t, cache.GetOrSet(ctx, "resolve:abc", &first, time.Minute, loader))
	require.NoError(t, cache.GetOrSet(ctx, "resolve:abc", &second, time.Minute, loader))

	assert.Equal(t, cachedMatch{ReferenceID: "R3", Score: 92}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.True(t, mr.Exists("subres:resolve:abc"))
	assert.Equal(t, time.Minute, mr.TTL("subres:resolve:abc"))
}

func TestGetOrSet_LoaderErrorNotCached(t *testing.T) {
	cache, mr := newMiniCache(t)
	boom := pkgerrors.New(pkgerrors.ErrCodeStoreUnavailable, "no store")

	var dest cachedMatch
	err := cache.GetOrSet(context.Background(), "k", &dest, time.Minute, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
	assert.False(t, mr.Exists("subres:k"))
}

func TestGetOrSet_ConcurrentMissesShareLoader(t *testing.T) {
	cache, _ := newMiniCache(t)
	release := make(chan struct{})
	var loads int32
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return cachedMatch{ReferenceID: "R1", Score: 100}, nil
	}

	var wg sync.WaitGroup
	results := make([]cachedMatch, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cache.GetOrSet(context.Background(), "hot", &results[i], time.Minute, loader)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&loads), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&loads), int32(1))
	for _, r := range results {
		assert.Equal(t, "R1", r.ReferenceID)
	}
}

func TestDeleteByPrefix(t *testing.T) {
	cache, mr := newMiniCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "resolve:a", cachedMatch{ReferenceID: "R1"}, time.Minute))
	require.NoError(t, cache.Set(ctx, "resolve:b", cachedMatch{ReferenceID: "R2"}, time.Minute))
	require.NoError(t, cache.Set(ctx, "synonyms:a", cachedMatch{ReferenceID: "R3"}, time.Minute))
	require.NoError(t, mr.Set("other:resolve:c", "x"))

	n, err := cache.DeleteByPrefix(ctx, "resolve:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, mr.Exists("subres:resolve:a"))
	assert.True(t, mr.Exists("subres:synonyms:a"))
	assert.True(t, mr.Exists("other:resolve:c"))
}

func TestSet_AppliesDefaultTTLAndJitter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	cache := NewRedisCache(NewClientFromUniversal(rdb, nil), nil, WithDefaultTTL(time.Hour))

	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	ttl := mr.TTL("subres:k")
	assert.GreaterOrEqual(t, ttl, 54*time.Minute)
	assert.LessOrEqual(t, ttl, 66*time.Minute)
}
