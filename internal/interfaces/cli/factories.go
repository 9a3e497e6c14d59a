package cli

import (
	"context"
	"io"

	"github.com/turtacn/substance-resolver/internal/app"
	"github.com/turtacn/substance-resolver/internal/application/acquisition"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/substance-resolver/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/substance-resolver/internal/infrastructure/pubchem"
	"github.com/turtacn/substance-resolver/internal/infrastructure/storage/minio"
	"github.com/turtacn/substance-resolver/pkg/client"
	wire "github.com/turtacn/substance-resolver/pkg/types/substance"
)

// Backend answers the read-only queries.
type Backend interface {
	Match(ctx context.Context, query string) ([]wire.MatchRecord, error)
	LookupSynonyms(ctx context.Context, term string) (*wire.SynonymLookupResponse, error)
	SynonymInsights(ctx context.Context) (*wire.InsightsReport, error)
}

// Migrator manages the reference schema.
type Migrator interface {
	Up() error
	Down(steps int) error
	Status() (postgres.MigrationStatus, error)
	Force(version int) error
	Close() error
}

// SnapshotStore publishes and imports reference snapshots.
type SnapshotStore interface {
	Publish(ctx context.Context, bucket, object string, t *substance.Tables) error
	Import(ctx context.Context, t *substance.Tables) error
}

// Factories build the collaborators of the commands. Each returned closer
// releases what the factory connected.
type Factories struct {
	Backend   func(ctx context.Context, cc *CLIContext) (Backend, io.Closer, error)
	Source    func(ctx context.Context, cc *CLIContext) (substance.Source, io.Closer, error)
	Acquirer  func(ctx context.Context, cc *CLIContext, archive bool) (acquisition.Service, io.Closer, error)
	Publisher func(ctx context.Context, cc *CLIContext) (kafka.Publisher, io.Closer, error)
	Migrator  func(cc *CLIContext) (Migrator, error)
	Snapshots func(ctx context.Context, cc *CLIContext, needs app.Needs) (SnapshotStore, io.Closer, error)
}

func (f Factories) withDefaults() Factories {
	if f.Source == nil {
		f.Source = defaultSource
	}
	if f.Backend == nil {
		source := f.Source
		f.Backend = func(ctx context.Context, cc *CLIContext) (Backend, io.Closer, error) {
			return defaultBackend(ctx, cc, source)
		}
	}
	if f.Acquirer == nil {
		f.Acquirer = defaultAcquirer
	}
	if f.Publisher == nil {
		f.Publisher = defaultPublisher
	}
	if f.Migrator == nil {
		f.Migrator = func(cc *CLIContext) (Migrator, error) {
			return postgres.NewMigrator(cc.Config.Database, cc.Logger)
		}
	}
	if f.Snapshots == nil {
		f.Snapshots = defaultSnapshots
	}
	return f
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

func infraCloser(infra *app.Infrastructure) io.Closer {
	return closerFunc(func() error {
		infra.Close()
		return nil
	})
}

// localBackend answers queries from a store loaded in process.
type localBackend struct {
	svcs *app.Services
}

func (b localBackend) Match(ctx context.Context, query string) ([]wire.MatchRecord, error) {
	res, err := b.svcs.Resolution.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	return res.Records(), nil
}

func (b localBackend) LookupSynonyms(ctx context.Context, term string) (*wire.SynonymLookupResponse, error) {
	groups, err := b.svcs.Resolution.GroupSynonyms(ctx, term)
	if err != nil {
		return nil, err
	}
	resp := groups.Response()
	return &resp, nil
}

func (b localBackend) SynonymInsights(ctx context.Context) (*wire.InsightsReport, error) {
	return b.svcs.Reporting.SynonymInsights(ctx)
}

// defaultBackend returns an API client when --server is set, otherwise the
// services over a store loaded from source.
func defaultBackend(ctx context.Context, cc *CLIContext,
	source func(context.Context, *CLIContext) (substance.Source, io.Closer, error)) (Backend, io.Closer, error) {
	if cc.ServerAddr != "" {
		c, err := client.NewClient(cc.ServerAddr, client.WithTimeout(cc.Timeout))
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser, nil
	}

	src, closer, err := source(ctx, cc)
	if err != nil {
		return nil, nil, err
	}
	store, err := app.LoadStore(ctx, cc.Config, src, cc.Logger)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	svcs, err := app.NewServices(cc.Config, substance.Static{S: store}, nil, nil, cc.Logger)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return localBackend{svcs: svcs}, closer, nil
}

func defaultSource(ctx context.Context, cc *CLIContext) (substance.Source, io.Closer, error) {
	needs := app.NeedsFor(cc.Config)
	needs.Redis = false
	infra, err := app.InitInfrastructure(ctx, cc.Config, needs, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	src, err := app.NewSource(cc.Config, infra)
	if err != nil {
		infra.Close()
		return nil, nil, err
	}
	return src, infraCloser(infra), nil
}

func defaultAcquirer(ctx context.Context, cc *CLIContext, archive bool) (acquisition.Service, io.Closer, error) {
	pc := cc.Config.PubChem
	lookup, err := pubchem.NewClient(pc.BaseURL, pc.Timeout,
		pubchem.WithUserAgent(pc.UserAgent),
		pubchem.WithLogger(cc.Logger.Named("pubchem")),
	)
	if err != nil {
		return nil, nil, err
	}

	var arch acquisition.Archive
	closer := io.Closer(nopCloser)
	if archive {
		infra, err := app.InitInfrastructure(ctx, cc.Config, app.Needs{MinIO: true}, cc.Logger)
		if err != nil {
			return nil, nil, err
		}
		arch = minio.NewArchive(infra.MinIO, cc.Config.MinIO.ArchiveBucket)
		closer = infraCloser(infra)
	}
	svc := acquisition.NewService(lookup, arch, nil, nil,
		acquisition.ServiceConfig{Concurrency: pc.Concurrency}, cc.Logger)
	return svc, closer, nil
}

func defaultPublisher(_ context.Context, cc *CLIContext) (kafka.Publisher, io.Closer, error) {
	p, err := kafka.NewProducer(cc.Config.Kafka, cc.Logger.Named("kafka"))
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}

// infraSnapshots publishes to MinIO and imports into PostgreSQL.
type infraSnapshots struct {
	infra *app.Infrastructure
}

func (s infraSnapshots) Publish(ctx context.Context, bucket, object string, t *substance.Tables) error {
	return minio.PublishSnapshot(ctx, s.infra.MinIO, bucket, object, t)
}

func (s infraSnapshots) Import(ctx context.Context, t *substance.Tables) error {
	return postgres.ImportTables(ctx, s.infra.Postgres.DB(), t)
}

func defaultSnapshots(ctx context.Context, cc *CLIContext, needs app.Needs) (SnapshotStore, io.Closer, error) {
	infra, err := app.InitInfrastructure(ctx, cc.Config, needs, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	return infraSnapshots{infra: infra}, infraCloser(infra), nil
}
