package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/substance-resolver/internal/application/acquisition"
	"github.com/turtacn/substance-resolver/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

type acquireOptions struct {
	file    string
	archive bool
	publish bool
}

func newAcquireCmd(f Factories) *cobra.Command {
	opts := &acquireOptions{}
	cmd := &cobra.Command{
		Use:   "acquire [name...]",
		Short: "Look up CAS numbers and synonyms for substance names in PubChem",
		Long: "acquire queries PubChem for each name and writes a CSV with the CAS\n" +
			"number and synonyms found. With --publish the names are queued for the\n" +
			"worker instead.",
		Example: `  substancectl acquire acetone ethanol > ids.csv
  substancectl acquire --file names.txt --archive
  substancectl acquire --publish acetone`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAcquire(cmd, f, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read names from a file, one per line (- for stdin)")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "also store the CSV in the archive bucket")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "queue the names for the acquisition worker")
	return cmd
}

func runAcquire(cmd *cobra.Command, f Factories, opts *acquireOptions, args []string) error {
	cc, ctx, cancel, err := contextFor(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	names := append([]string(nil), args...)
	if opts.file != "" {
		fromFile, err := readNames(cmd, opts.file)
		if err != nil {
			return err
		}
		names = append(names, fromFile...)
	}
	if len(names) == 0 {
		return errors.New(errors.ErrCodeValidation, "no substance names given")
	}

	if opts.publish {
		pub, closer, err := f.Publisher(ctx, cc)
		if err != nil {
			return err
		}
		defer closer.Close()

		eventID, err := kafka.PublishRequest(ctx, pub, cc.Config.Kafka.RequestTopic, names)
		if err != nil {
			return err
		}
		PrintSuccess(cmd, fmt.Sprintf("queued %d names (event %s)", len(names), eventID))
		return nil
	}

	svc, closer, err := f.Acquirer(ctx, cc, opts.archive)
	if err != nil {
		return err
	}
	defer closer.Close()

	batch, err := svc.Acquire(ctx, names)
	if err != nil {
		return err
	}
	if cc.OutputFormat == FormatJSON {
		if err := writeJSON(cmd.OutOrStdout(), batch); err != nil {
			return err
		}
	} else if err := acquisition.WriteCSV(cmd.OutOrStdout(), batch.Identifiers); err != nil {
		return err
	}

	cc.Logger.Info("acquisition finished",
		logging.String("batch_id", batch.ID),
		logging.Int("names", len(batch.Identifiers)),
		logging.Int("found", batch.Found()))
	summary := fmt.Sprintf("%d of %d names resolved", batch.Found(), len(batch.Identifiers))
	if batch.ArchiveKey != "" {
		summary += ", archived as " + batch.ArchiveKey
	}
	fmt.Fprintln(cmd.ErrOrStderr(), summary)
	return nil
}

func readNames(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "cannot open names file").
				WithDetail("path=" + path)
		}
		defer file.Close()
		r = file
	}

	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" && !strings.HasPrefix(name, "#") {
			names = append(names, name)
		}
	}
	return names, sc.Err()
}
