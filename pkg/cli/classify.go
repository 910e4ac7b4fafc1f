package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/report"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services"
)

// ClassifyOptions holds options for the classify command.
type ClassifyOptions struct {
	Datasource string
	Database   string
	Schema     string
	DataType   string
	Samples    []string
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	opts := &ClassifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify <table> [column]",
		Short: "Classify columns that hold personal data",
		Long: `Classify whether columns hold sensitive personal data such as email addresses,
phone numbers, card numbers or credentials.

With a column, that one column is classified, using --sample values when given
and values sampled from the datasource otherwise. Without a column, every
column of every table matching the <table> glob is classified.`,
		Example: `  # Classify every column of a table
  ekaya-discovery classify customers

  # Classify all tables whose name starts with user
  ekaya-discovery classify 'user*' --schema public

  # Classify one column from given values, no database needed
  ekaya-discovery classify contacts email --sample a@example.com --sample b@example.org`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return runClassifyColumn(cmd, args[0], args[1], opts)
			}
			return runClassifyTables(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Datasource, "datasource", "", "Datasource ID (default: the configured datasource)")
	cmd.Flags().StringVar(&opts.Database, "database", "", "Database of the table")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Schema of the table")
	cmd.Flags().StringVar(&opts.DataType, "data-type", "", "Declared type of the column")
	cmd.Flags().StringArrayVar(&opts.Samples, "sample", nil, "Sample value (repeatable); skips sampling the datasource")

	return cmd
}

func runClassifyColumn(cmd *cobra.Command, table, column string, opts *ClassifyOptions) error {
	app := appFrom(cmd.Context())

	// Given samples make the datasource optional.
	dsID := opts.Datasource
	if len(opts.Samples) == 0 {
		var err error
		if dsID, err = app.Datasource(dsID); err != nil {
			return err
		}
	}

	result, err := app.Classification.ClassifyColumn(cmd.Context(), services.ClassifyContext{
		DataSourceID: dsID,
		Database:     opts.Database,
		Schema:       opts.Schema,
		Table:        table,
		ColumnName:   column,
		DataType:     opts.DataType,
		SampleValues: opts.Samples,
	})
	if err != nil {
		return fmt.Errorf("classify column: %w", err)
	}
	return rendererFrom(cmd.Context()).Classifications([]models.ContentClassification{*result})
}

func runClassifyTables(cmd *cobra.Command, pattern string, opts *ClassifyOptions) error {
	ctx := cmd.Context()
	app := appFrom(ctx)

	dsID, err := app.Datasource(opts.Datasource)
	if err != nil {
		return err
	}
	provider, err := app.Catalog.Get(ctx, dsID)
	if err != nil {
		return err
	}

	scope := services.ScopeFilters{
		Database: opts.Database,
		Tables:   []string{pattern},
	}
	if opts.Schema != "" {
		scope.Schemas = []string{opts.Schema}
	}
	// Samples are fetched per column by the classifier.
	loaded, err := app.Loader.Load(ctx, provider, scope, false)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	out := make([]report.TableClassification, 0, len(loaded.Tables))
	for _, table := range loaded.Tables {
		results, err := app.Classification.ClassifyTable(ctx, dsID, table)
		if err != nil {
			return fmt.Errorf("classify %s: %w", table.QualifiedName, err)
		}
		out = append(out, report.TableClassification{Table: table.QualifiedName, Columns: results})
	}
	return rendererFrom(ctx).TableClassifications(out)
}
