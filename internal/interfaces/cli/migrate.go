package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/substance-resolver/pkg/errors"
)

func newMigrateCmd(f Factories) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the reference database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(f, func(cmd *cobra.Command, m Migrator, _ []string) error {
				if err := m.Up(); err != nil {
					return err
				}
				PrintSuccess(cmd, "migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default one step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: withMigrator(f, func(cmd *cobra.Command, m Migrator, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return errors.New(errors.ErrCodeValidation, "steps must be a positive integer").
							WithDetail("steps=" + args[0])
					}
					steps = n
				}
				if err := m.Down(steps); err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(f, func(cmd *cobra.Command, m Migrator, _ []string) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				cc, err := GetCLIContext(cmd)
				if err != nil {
					return err
				}
				if cc.OutputFormat == FormatJSON {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
						"version": st.Version,
						"dirty":   st.Dirty,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d\ndirty:   %t\n", st.Version, st.Dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(f, func(cmd *cobra.Command, m Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return errors.New(errors.ErrCodeValidation, "version must be an integer").
						WithDetail("version=" + args[0])
				}
				if err := m.Force(v); err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("schema version forced to %d", v))
				return nil
			}),
		},
	)
	return cmd
}

func withMigrator(f Factories, run func(*cobra.Command, Migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cc, err := GetCLIContext(cmd)
		if err != nil {
			return err
		}
		m, err := f.Migrator(cc)
		if err != nil {
			return err
		}
		defer m.Close()
		return run(cmd, m, args)
	}
}
