// Package app assembles the resolver processes from configuration: the
// shared infrastructure clients, the reference source and the services built
// on top of them.
package app

import (
	"context"
	"fmt"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/substance-resolver/internal/infrastructure/database/redis"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/internal/infrastructure/storage/minio"
	"github.com/turtacn/substance-resolver/internal/interfaces/http/handlers"
)

// Needs selects the clients InitInfrastructure connects.
type Needs struct {
	Postgres bool
	Redis    bool
	MinIO    bool
}

// NeedsFor returns what the API server needs under cfg: the client behind
// the reference source, plus redis when the result cache is on.
func NeedsFor(cfg *config.Config) Needs {
	return Needs{
		Postgres: cfg.Reference.Source == config.SourcePostgres,
		Redis:    cfg.Cache.Enabled,
		MinIO:    cfg.Reference.Source == config.SourceMinIO,
	}
}

// Infrastructure holds the connected clients. Unneeded ones stay nil.
type Infrastructure struct {
	Postgres *postgres.Connection
	Redis    *redis.Client
	MinIO    *minio.Client

	logger logging.Logger
}

// InitInfrastructure connects the clients selected by needs. When one fails,
// those already connected are closed.
func InitInfrastructure(ctx context.Context, cfg *config.Config, needs Needs, log logging.Logger) (*Infrastructure, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	infra := &Infrastructure{logger: log}

	if needs.Postgres {
		if cfg.Database.MigrateOnStart {
			if err := migrateUp(cfg.Database, log); err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		conn, err := postgres.NewConnection(ctx, cfg.Database, log.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		infra.Postgres = conn
	}
	if needs.Redis {
		rc, err := redis.NewClient(ctx, cfg.Redis, log.Named("redis"))
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		infra.Redis = rc
	}
	if needs.MinIO {
		mc, err := minio.NewClient(ctx, cfg.MinIO, log.Named("minio"))
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
		infra.MinIO = mc
	}
	return infra, nil
}

func migrateUp(cfg config.DatabaseConfig, log logging.Logger) error {
	mg, err := postgres.NewMigrator(cfg, log.Named("migrate"))
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}

// Close closes every connected client.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.logger.Warn("failed to close redis client", logging.Err(err))
		}
	}
	if i.Postgres != nil {
		if err := i.Postgres.Close(); err != nil {
			i.logger.Warn("failed to close postgres connection", logging.Err(err))
		}
	}
}

// HealthCheckers returns a readiness check per connected client.
func (i *Infrastructure) HealthCheckers() []handlers.HealthChecker {
	var out []handlers.HealthChecker
	if i == nil {
		return out
	}
	if i.Postgres != nil {
		out = append(out, handlers.CheckFunc{Component: "postgres", Fn: i.Postgres.HealthCheck})
	}
	if i.Redis != nil {
		out = append(out, handlers.CheckFunc{Component: "redis", Fn: i.Redis.Ping})
	}
	if i.MinIO != nil {
		out = append(out, handlers.CheckFunc{Component: "minio", Fn: i.MinIO.HealthCheck})
	}
	return out
}
