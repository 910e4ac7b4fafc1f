package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Dialect string
	File    string
	Script  bool
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage [sql]",
		Short: "Show table and column lineage of a SQL statement",
		Long: `Parse SQL text and report the tables it reads and writes, its joins,
the transformation applied to each selected column, and column-level lineage
for statements that write to a table. Nothing is executed.

The SQL is taken from the argument, from --file, or from stdin.`,
		Example: `  # Lineage of a query
  ekaya-discovery lineage "SELECT o.id, SUM(o.total) FROM orders o GROUP BY o.id"

  # A script of statements, merged
  ekaya-discovery lineage --script --file etl/daily.sql --dialect postgres

  # From stdin
  cat view.sql | ekaya-discovery lineage -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "generic", "SQL dialect (generic|postgres|mssql|mysql)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Read SQL from a file")
	cmd.Flags().BoolVar(&opts.Script, "script", false, "Treat the input as ';'-separated statements")

	_ = cmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"generic", "postgres", "mssql", "mysql"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runLineage(cmd *cobra.Command, args []string, opts *LineageOptions) error {
	text, err := readSQL(cmd.InOrStdin(), args, opts.File)
	if err != nil {
		return err
	}

	app := appFrom(cmd.Context())
	var lineage *models.ParsedLineage
	if opts.Script {
		lineage, err = app.Lineage.ParseScript(text, opts.Dialect)
	} else {
		lineage, err = app.Lineage.ParseSQL(text, opts.Dialect)
	}
	if err != nil {
		return err
	}
	return rendererFrom(cmd.Context()).Lineage(lineage)
}

func readSQL(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass SQL either as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no SQL given; pass it as an argument, with --file, or on stdin")
	}
	return string(data), nil
}
