package minio

import (
	"bytes"
	"context"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/snapshot"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// SnapshotSource loads reference tables from a snapshot object.
type SnapshotSource struct {
	Store  ObjectStore
	Bucket string
	Object string
}

var _ substance.Source = (*SnapshotSource)(nil)

func (s *SnapshotSource) Name() string { return "minio" }

func (s *SnapshotSource) Load(ctx context.Context) (*substance.Tables, error) {
	data, err := s.Store.GetObject(ctx, s.Bucket, s.Object)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceLoadFailed, "failed to fetch snapshot object").
			WithDetail("object=" + s.Bucket + "/" + s.Object)
	}
	return snapshot.DecodeBytes(data)
}

// PublishSnapshot encodes tables as YAML and uploads them, creating the
// bucket when needed.
func PublishSnapshot(ctx context.Context, store ObjectStore, bucket, object string, tables *substance.Tables) error {
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, tables); err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	return store.PutObject(ctx, bucket, object, buf.Bytes(), "application/yaml")
}
