package minio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/snapshot"
	"github.com/turtacn/substance-resolver/internal/testutil"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockObjectStore) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	args := m.Called(ctx, bucket, key, data, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) EnsureBucket(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

func TestSnapshotSource_Load(t *testing.T) {
	store := new(MockObjectStore)
	doc := []byte("references:\n  - reference_id: R1\n    substance_code: 64-17-5\n    name: Ethanol\n")
	store.On("GetObject", mock.Anything, "reference", "snapshots/current.yaml").Return(doc, nil)

	src := &SnapshotSource{Store: store, Bucket: "reference", Object: "snapshots/current.yaml"}
	assert.Equal(t, "minio", src.Name())

	tables, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tables.References, 1)
	assert.Equal(t, "Ethanol", tables.References[0].Name)
	store.AssertExpectations(t)
}

func TestSnapshotSource_MissingObject(t *testing.T) {
	store := new(MockObjectStore)
	store.On("GetObject", mock.Anything, "reference", "missing.yaml").
		Return(nil, errors.New(errors.ErrCodeNotFound, "object not found"))

	src := &SnapshotSource{Store: store, Bucket: "reference", Object: "missing.yaml"}
	_, err := substance.Load(context.Background(), src, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceLoadFailed))
}

func TestSnapshotSource_BadDocument(t *testing.T) {
	store := new(MockObjectStore)
	store.On("GetObject", mock.Anything, "reference", "bad.yaml").Return([]byte("references: 7\n"), nil)

	src := &SnapshotSource{Store: store, Bucket: "reference", Object: "bad.yaml"}
	_, err := src.Load(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeSnapshotDecode))
}

func TestPublishSnapshot_RoundTrip(t *testing.T) {
	store := new(MockObjectStore)
	var uploaded []byte
	store.On("EnsureBucket", mock.Anything, "reference").Return(nil)
	store.On("PutObject", mock.Anything, "reference", "current.yaml", mock.Anything, "application/yaml").
		Run(func(args mock.Arguments) { uploaded = args.Get(3).([]byte) }).
		Return(nil)

	tables := testutil.SampleTables()
	require.NoError(t, PublishSnapshot(context.Background(), store, "reference", "current.yaml", &tables))

	decoded, err := snapshot.DecodeBytes(uploaded)
	require.NoError(t, err)
	assert.Len(t, decoded.References, len(tables.References))
	store.AssertExpectations(t)
}

func TestArchive_ArchiveCSV(t *testing.T) {
	store := new(MockObjectStore)
	data := []byte("Substance,CAS Number,Synonyms,PubChem CID\n")
	store.On("EnsureBucket", mock.Anything, "acq").Return(nil)
	store.On("PutObject", mock.Anything, "acq", "acquisition/20240101T000000Z.csv", data, "text/csv").Return(nil)

	err := NewArchive(store, "acq").ArchiveCSV(context.Background(), "acquisition/20240101T000000Z.csv", data)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestArchive_BucketFailure(t *testing.T) {
	store := new(MockObjectStore)
	store.On("EnsureBucket", mock.Anything, "acq").Return(errors.New(errors.ErrCodeStorageError, "denied"))

	err := NewArchive(store, "acq").ArchiveCSV(context.Background(), "k", nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
	store.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
