package snapshot

import (
	"context"
	"os"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// FileSource loads a snapshot from local disk on every call.
type FileSource struct {
	Path string
}

var _ substance.Source = FileSource{}

func (FileSource) Name() string { return "file" }

func (s FileSource) Load(ctx context.Context) (*substance.Tables, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceLoadFailed, "failed to open snapshot").
			WithDetail("path=" + s.Path)
	}
	defer f.Close()

	tables, err := Decode(f)
	if err != nil {
		var ae *errors.AppError
		if errors.As(err, &ae) {
			return nil, ae.WithDetail("path=" + s.Path)
		}
		return nil, err
	}
	return tables, nil
}
