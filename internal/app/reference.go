package app

import (
	"context"
	"time"

	"github.com/turtacn/substance-resolver/internal/application/reporting"
	"github.com/turtacn/substance-resolver/internal/application/resolution"
	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/substance-resolver/internal/infrastructure/database/redis"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/substance-resolver/internal/infrastructure/snapshot"
	"github.com/turtacn/substance-resolver/internal/infrastructure/storage/minio"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// NewSource returns the reference source selected by cfg.Reference.Source.
// The postgres and minio sources need the matching client in infra.
func NewSource(cfg *config.Config, infra *Infrastructure) (substance.Source, error) {
	switch cfg.Reference.Source {
	case config.SourceFile, "":
		return snapshot.FileSource{Path: cfg.Reference.File.Path}, nil
	case config.SourcePostgres:
		if infra == nil || infra.Postgres == nil {
			return nil, errors.New(errors.ErrCodeValidation, "postgres source requires a database connection")
		}
		return postgres.NewSource(infra.Postgres.DB()), nil
	case config.SourceMinIO:
		if infra == nil || infra.MinIO == nil {
			return nil, errors.New(errors.ErrCodeValidation, "minio source requires an object storage client")
		}
		return &minio.SnapshotSource{
			Store:  infra.MinIO,
			Bucket: cfg.Reference.MinIO.Bucket,
			Object: cfg.Reference.MinIO.Object,
		}, nil
	default:
		return nil, errors.New(errors.ErrCodeValidation, "unknown reference source").
			WithDetail("source=" + cfg.Reference.Source)
	}
}

// ReloadObserver receives the outcome of every load attempt.
type ReloadObserver interface {
	ObserveReload(source string, store *substance.Store, err error)
}

// Reloader loads src into a Holder, bounded by a per-load timeout.
type Reloader struct {
	Source   substance.Source
	Holder   *substance.Holder
	Timeout  time.Duration
	Logger   logging.Logger
	Observer ReloadObserver

	// OnSwap runs after a new store is installed.
	OnSwap func(*substance.Store)
}

// Reload loads a new store and installs it. On failure the current store is
// kept and the error returned.
func (r *Reloader) Reload(ctx context.Context) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	store, err := substance.Reload(ctx, r.Source, r.Holder, r.Logger)
	if r.Observer != nil {
		r.Observer.ObserveReload(r.Source.Name(), store, err)
	}
	if err != nil {
		return err
	}
	if r.OnSwap != nil {
		r.OnSwap(store)
	}
	return nil
}

// LoadStore builds a store once from src within cfg.Reference.LoadTimeout.
func LoadStore(ctx context.Context, cfg *config.Config, src substance.Source, log logging.Logger) (*substance.Store, error) {
	if cfg.Reference.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Reference.LoadTimeout)
		defer cancel()
	}
	return substance.Load(ctx, src, log)
}

// Services are the read-side services over one store provider.
type Services struct {
	Resolution resolution.Service
	Reporting  reporting.Service
}

// NewServices builds the resolution and reporting services. When infra has a
// redis client and the cache is enabled, resolution is memoized in redis.
// metrics may be nil.
func NewServices(cfg *config.Config, provider substance.Provider, infra *Infrastructure,
	metrics *prometheus.AppMetrics, log logging.Logger) (*Services, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	scfg, err := resolution.ServiceConfigFrom(cfg.Resolution)
	if err != nil {
		return nil, err
	}

	var observer resolution.Observer
	var cacheObserver resolution.CacheObserver
	if metrics != nil {
		observer = metrics
		cacheObserver = metrics
	}

	svc := resolution.NewService(provider, scfg, log, observer)
	if cfg.Cache.Enabled && infra != nil && infra.Redis != nil {
		cache := redis.NewRedisCache(infra.Redis, log.Named("cache"),
			redis.WithPrefix(cfg.Cache.KeyPrefix),
			redis.WithDefaultTTL(cfg.Cache.TTL),
			redis.WithTTLJitter(0.1),
		)
		svc = resolution.NewCachedService(svc, provider, cache, cfg.Cache.TTL, log, cacheObserver)
		log.Info("result cache enabled", logging.Duration("ttl", cfg.Cache.TTL))
	}
	return &Services{
		Resolution: svc,
		Reporting:  reporting.NewService(provider, log),
	}, nil
}
