package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/substance-resolver/internal/app"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/snapshot"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

func newSnapshotCmd(f Factories) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Publish, import and export reference snapshots",
	}
	cmd.AddCommand(newSnapshotPublishCmd(f), newSnapshotImportCmd(f), newSnapshotExportCmd(f))
	return cmd
}

// readSnapshot decodes path and checks that it builds a valid store.
func readSnapshot(path string) (*substance.Tables, *substance.Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeValidation, "cannot open snapshot").
			WithDetail("path=" + path)
	}
	defer file.Close()

	tables, err := snapshot.Decode(file)
	if err != nil {
		return nil, nil, err
	}
	store, err := substance.NewStore(*tables)
	if err != nil {
		return nil, nil, err
	}
	return tables, store, nil
}

func newSnapshotPublishCmd(f Factories) *cobra.Command {
	var bucket, object string
	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Validate a snapshot file and upload it to object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ctx, cancel, err := contextFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			tables, store, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cc.Config.Reference.MinIO.Bucket
			}
			if object == "" {
				object = cc.Config.Reference.MinIO.Object
			}

			snaps, closer, err := f.Snapshots(ctx, cc, app.Needs{MinIO: true})
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := snaps.Publish(ctx, bucket, object, tables); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("published %s/%s (%d references, fingerprint %016x)",
				bucket, object, store.Stats().References, store.Fingerprint()))
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "target bucket (default: reference.minio.bucket)")
	cmd.Flags().StringVar(&object, "object", "", "target object key (default: reference.minio.object)")
	return cmd
}

func newSnapshotImportCmd(f Factories) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the reference tables in PostgreSQL with a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ctx, cancel, err := contextFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			tables, store, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			snaps, closer, err := f.Snapshots(ctx, cc, app.Needs{Postgres: true})
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := snaps.Import(ctx, tables); err != nil {
				return err
			}
			st := store.Stats()
			PrintSuccess(cmd, fmt.Sprintf("imported %d references and %d synonyms", st.References, st.Synonyms))
			return nil
		},
	}
}

func newSnapshotExportCmd(f Factories) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the configured reference source as a snapshot to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ctx, cancel, err := contextFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			src, closer, err := f.Source(ctx, cc)
			if err != nil {
				return err
			}
			defer closer.Close()

			tables, err := src.Load(ctx)
			if err != nil {
				return err
			}
			return snapshot.Encode(cmd.OutOrStdout(), tables)
		},
	}
}
