// Package cli implements substancectl, the command line front end of the
// resolver. Queries run against a local reference store or, with --server,
// against a running API server.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
}

// CLIContext carries the loaded configuration through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	ServerAddr   string
	Timeout      time.Duration
}

// NewRootCommand builds the command tree. Nil fields of f select the
// defaults that connect to the configured infrastructure.
func NewRootCommand(f Factories) *cobra.Command {
	f = f.withDefaults()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "substancectl",
		Short: "Resolve substance names and codes against the reference tables",
		Long: "substancectl resolves free-text substance queries to canonical reference\n" +
			"records, looks up synonyms, reports synonym statistics, acquires\n" +
			"identifiers from PubChem and manages the reference database.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: SUBRES_* environment only)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", FormatTable, "output format (table, json, text)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 60*time.Second, "overall operation timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "query a resolver API server at this URL instead of a local store")

	cmd.AddCommand(
		newResolveCmd(f),
		newSynonymsCmd(f),
		newInsightsCmd(f),
		newAcquireCmd(f),
		newMigrateCmd(f),
		newSnapshotCmd(f),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	format := strings.ToLower(opts.OutputFormat)
	switch format {
	case FormatTable, FormatJSON, FormatText:
	default:
		return errors.New(errors.ErrCodeValidation, "invalid output format").
			WithDetail("output=" + opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            opts.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cc := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: format,
		ServerAddr:   opts.ServerAddr,
		Timeout:      opts.Timeout,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
	return nil
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return cc, nil
}

// contextFor returns the CLIContext and a context bounded by --timeout.
func contextFor(cmd *cobra.Command) (*CLIContext, context.Context, context.CancelFunc, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if cc.Timeout <= 0 {
		ctx, cancel := context.WithCancel(cmd.Context())
		return cc, ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cc.Timeout)
	return cc, ctx, cancel, nil
}

// Execute runs the CLI with the default factories.
func Execute(ctx context.Context) error {
	root := NewRootCommand(Factories{})
	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}
