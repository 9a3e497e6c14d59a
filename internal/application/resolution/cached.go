package resolution

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
)

// ResultCache is the subset of the Redis cache used to memoize results.
type ResultCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration,
		loader func(ctx context.Context) (interface{}, error)) error
}

// CacheObserver is notified of cache hits and misses.
type CacheObserver interface {
	ObserveCache(operation string, hit bool)
}

// CachedService memoizes a Service. Keys embed the fingerprint of the current
// store, so a reload never serves results computed from older tables.
type CachedService struct {
	next     Service
	provider substance.Provider
	cache    ResultCache
	ttl      time.Duration
	logger   logging.Logger
	observer CacheObserver
	flight   singleflight.Group
}

// NewCachedService wraps next. logger and observer may be nil.
func NewCachedService(next Service, provider substance.Provider, cache ResultCache, ttl time.Duration,
	logger logging.Logger, observer CacheObserver) *CachedService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedService{
		next:     next,
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		logger:   logger.Named("resolution.cache"),
		observer: observer,
	}
}

// CacheKey returns "<op>:<store fingerprint>:<xxhash(input)>" in hex, or ""
// when no store is loaded.
func (c *CachedService) CacheKey(op, input string) string {
	store := c.provider.Current()
	if store == nil {
		return ""
	}
	return op + ":" +
		strconv.FormatUint(store.Fingerprint(), 16) + ":" +
		strconv.FormatUint(xxhash.Sum64String(input), 16)
}

type memoResult struct {
	value    interface{}
	loaded   bool
	bypassed bool
}

// memo runs load through the cache under key and returns either the loaded
// value or dest. Concurrent calls for one key share a single cache round trip,
// so at most one of them runs load, and every caller of a load that ran is
// counted as a miss. A cache failure falls back to calling load directly; an
// error from load itself is returned as is.
func (c *CachedService) memo(ctx context.Context, op, key string, dest interface{},
	load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		var (
			fresh   interface{}
			called  bool
			loadErr error
		)
		err := c.cache.GetOrSet(ctx, key, dest, c.ttl, func(ctx context.Context) (interface{}, error) {
			called = true
			fresh, loadErr = load(ctx)
			return fresh, loadErr
		})
		switch {
		case loadErr != nil:
			return nil, loadErr
		case err == nil && !called:
			return memoResult{value: dest}, nil
		case called && fresh != nil:
			return memoResult{value: fresh, loaded: true}, nil
		}
		c.logger.Warn("result cache unavailable, bypassing",
			logging.String("operation", op), logging.Err(err))
		fresh, err = load(ctx)
		if err != nil {
			return nil, err
		}
		return memoResult{value: fresh, loaded: true, bypassed: true}, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(memoResult)
	if c.observer != nil && !res.bypassed {
		c.observer.ObserveCache(op, !res.loaded)
	}
	return res.value, nil
}

// Resolve implements Service.
func (c *CachedService) Resolve(ctx context.Context, query string) (*Resolution, error) {
	key := c.CacheKey("resolve", substance.NormalizeText(query))
	if key == "" {
		return c.next.Resolve(ctx, query)
	}

	v, err := c.memo(ctx, "resolve", key, &Resolution{}, func(ctx context.Context) (interface{}, error) {
		return c.next.Resolve(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resolution), nil
}

// GroupSynonyms implements Service.
func (c *CachedService) GroupSynonyms(ctx context.Context, term string) (*SynonymGroups, error) {
	key := c.CacheKey("synonyms", substance.Fold(term))
	if key == "" {
		return c.next.GroupSynonyms(ctx, term)
	}

	v, err := c.memo(ctx, "synonyms", key, &SynonymGroups{}, func(ctx context.Context) (interface{}, error) {
		return c.next.GroupSynonyms(ctx, term)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SynonymGroups), nil
}
