//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/substance-resolver/internal/application/acquisition"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/storage/minio"
	"github.com/turtacn/substance-resolver/internal/testutil"
)

func TestSnapshot_PublishAndLoad(t *testing.T) {
	cfg := startMinIO(t)
	ctx := context.Background()

	client, err := minio.NewClient(ctx, cfg, testutil.NewMockLogger())
	require.NoError(t, err)
	require.NoError(t, client.HealthCheck(ctx))

	tables := testutil.SampleTables()
	require.NoError(t, minio.PublishSnapshot(ctx, client, "reference", "current.yaml", &tables))

	src := &minio.SnapshotSource{Store: client, Bucket: "reference", Object: "current.yaml"}
	holder := substance.NewHolder(nil)
	store, err := substance.Reload(ctx, src, holder, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleStore(t).Fingerprint(), store.Fingerprint())
	assert.Same(t, store, holder.Current())

	missing := &minio.SnapshotSource{Store: client, Bucket: "reference", Object: "missing.yaml"}
	_, err = substance.Reload(ctx, missing, holder, nil)
	require.Error(t, err)
	assert.Same(t, store, holder.Current(), "failed reload keeps the installed store")
}

type staticLookup map[string]*acquisition.Compound

func (s staticLookup) Lookup(_ context.Context, name string) (*acquisition.Compound, error) {
	if c, ok := s[name]; ok {
		return c, nil
	}
	return nil, nil
}

func TestAcquisition_ArchivesCSV(t *testing.T) {
	cfg := startMinIO(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := minio.NewClient(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx, cfg.ArchiveBucket))

	lookup := staticLookup{"acetone": {CID: 180, Synonyms: []string{"acetone", "67-64-1", "Propanone"}}}
	svc := acquisition.NewService(lookup, minio.NewArchive(client, cfg.ArchiveBucket), nil, nil,
		acquisition.ServiceConfig{Concurrency: 2}, nil)

	batch, err := svc.Acquire(ctx, []string{"acetone"})
	require.NoError(t, err)
	require.NotEmpty(t, batch.ArchiveKey)

	data, err := client.GetObject(ctx, cfg.ArchiveBucket, batch.ArchiveKey)
	require.NoError(t, err)
	assert.Contains(t, string(data), "acetone,67-64-1")
}
