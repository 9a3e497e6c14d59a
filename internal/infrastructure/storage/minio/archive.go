package minio

import (
	"context"

	"github.com/turtacn/substance-resolver/internal/application/acquisition"
)

// Archive stores acquisition CSV batches in one bucket.
type Archive struct {
	store  ObjectStore
	bucket string
}

var _ acquisition.Archive = (*Archive)(nil)

func NewArchive(store ObjectStore, bucket string) *Archive {
	return &Archive{store: store, bucket: bucket}
}

func (a *Archive) ArchiveCSV(ctx context.Context, key string, data []byte) error {
	if err := a.store.EnsureBucket(ctx, a.bucket); err != nil {
		return err
	}
	return a.store.PutObject(ctx, a.bucket, key, data, "text/csv")
}
