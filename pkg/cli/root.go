// Package cli provides the ekaya-discovery command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/report"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	ConfigPath string
	LogLevel   string
	Output     string
	Snapshot   string
}

// NewRootCmd creates the root command.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "ekaya-discovery",
		Short: "Discover relationships, sensitive columns and lineage in SQL databases",
		Long: `ekaya-discovery reads database catalogs and infers what the schema does not declare:
foreign-key-like relationships between tables, columns that hold personal data,
and the table and column lineage of SQL statements.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return setup(cmd, opts, version)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app := appFrom(cmd.Context()); app != nil {
				app.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default: ./config.yaml when present)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	flags.StringVarP(&opts.Output, "output", "o", "table", "output format ("+strings.Join(report.Formats, "|")+")")
	flags.StringVar(&opts.Snapshot, "snapshot", "", "read metadata from a YAML catalog snapshot instead of a live database")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return report.Formats, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(NewSuggestCommand())
	rootCmd.AddCommand(NewClassifyCommand())
	rootCmd.AddCommand(NewLineageCommand())
	rootCmd.AddCommand(NewMCPCommand())
	rootCmd.AddCommand(NewSealSecretCommand())

	return rootCmd
}

func setup(cmd *cobra.Command, opts *globalOptions, version string) error {
	format, err := report.ParseFormat(opts.Output)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath, version)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	if opts.Snapshot != "" {
		if err := app.UseSnapshot(opts.Snapshot); err != nil {
			app.Close()
			return err
		}
	}

	ctx := withApp(cmd.Context(), app)
	ctx = withRenderer(ctx, report.NewRenderer(cmd.OutOrStdout(), format))
	cmd.SetContext(ctx)
	return nil
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd := NewRootCmd(version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", logging.SanitizeError(err))
		return err
	}
	return nil
}
