package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newResolveCmd(f Factories) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <query>",
		Short: "Resolve a substance name, code or synonym to reference records",
		Example: `  substancectl resolve "acetone"
  substancectl resolve 67-64-1 -o json
  substancectl --server http://localhost:8080 resolve "acetn"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ctx, cancel, err := contextFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			backend, closer, err := f.Backend(ctx, cc)
			if err != nil {
				return err
			}
			defer closer.Close()

			records, err := backend.Match(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), cc.OutputFormat, records)
		},
	}
}

func newSynonymsCmd(f Factories) *cobra.Command {
	return &cobra.Command{
		Use:   "synonyms <term>",
		Short: "List the synonyms of the references named term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ctx, cancel, err := contextFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			backend, closer, err := f.Backend(ctx, cc)
			if err != nil {
				return err
			}
			defer closer.Close()

			resp, err := backend.LookupSynonyms(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printLookup(cmd.OutOrStdout(), cc.OutputFormat, resp)
		},
	}
}

func newInsightsCmd(f Factories) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Report synonym statistics over the reference tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, ctx, cancel, err := contextFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			backend, closer, err := f.Backend(ctx, cc)
			if err != nil {
				return err
			}
			defer closer.Close()

			report, err := backend.SynonymInsights(ctx)
			if err != nil {
				return err
			}
			return printInsights(cmd.OutOrStdout(), cc.OutputFormat, report)
		},
	}
}
