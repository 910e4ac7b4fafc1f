package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-discovery/pkg/services"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/fusion"
)

// SuggestOptions holds options for the suggest command.
type SuggestOptions struct {
	Datasource     string
	Database       string
	Schemas        []string
	Tables         []string
	ExcludeTables  []string
	MinConfidence  float64
	MaxSuggestions int
	Samples        bool
}

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand() *cobra.Command {
	opts := &SuggestOptions{}

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest undeclared relationships between tables",
		Long: `Scan the tables of a datasource and suggest foreign-key-like relationships.

Column names, declared types, row and distinct counts and (with --samples)
sampled values are scored independently and fused into one confidence per
column pair. Only suggestions at or above --min-confidence are shown.`,
		Example: `  # Scan the configured datasource
  ekaya-discovery suggest

  # Scan one schema, skipping log tables
  ekaya-discovery suggest --schema sales --exclude '*_log'

  # Compare sampled values too, and lower the bar
  ekaya-discovery suggest --samples --min-confidence 0.5

  # Scan an offline catalog snapshot
  ekaya-discovery suggest --snapshot catalog.yaml -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuggest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Datasource, "datasource", "", "Datasource ID (default: the configured datasource)")
	cmd.Flags().StringVar(&opts.Database, "database", "", "Database to scan")
	cmd.Flags().StringSliceVar(&opts.Schemas, "schema", nil, "Schemas to include (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Tables, "table", nil, "Table glob patterns to include (repeatable)")
	cmd.Flags().StringSliceVar(&opts.ExcludeTables, "exclude", nil, "Table glob patterns to exclude (repeatable)")
	cmd.Flags().Float64Var(&opts.MinConfidence, "min-confidence", fusion.DefaultMinConfidence, "Minimum confidence in [0, 1]")
	cmd.Flags().IntVar(&opts.MaxSuggestions, "max", fusion.DefaultMaxSuggestions, fmt.Sprintf("Maximum suggestions [1, %d]", fusion.MaxSuggestionsCap))
	cmd.Flags().BoolVar(&opts.Samples, "samples", false, "Fetch and compare sampled column values")

	return cmd
}

func runSuggest(cmd *cobra.Command, opts *SuggestOptions) error {
	app := appFrom(cmd.Context())
	dsID, err := app.Datasource(opts.Datasource)
	if err != nil {
		return err
	}

	req := services.SuggestionRequest{
		DataSourceID: dsID,
		ScopeFilters: services.ScopeFilters{
			Database:      opts.Database,
			Schemas:       opts.Schemas,
			Tables:        opts.Tables,
			ExcludeTables: opts.ExcludeTables,
		},
		MaxSuggestions:        opts.MaxSuggestions,
		IncludeSampleAnalysis: opts.Samples,
	}
	// Unset flags defer to the configured inference defaults.
	if cmd.Flags().Changed("min-confidence") {
		req.MinConfidence = &opts.MinConfidence
	}
	if !cmd.Flags().Changed("max") {
		req.MaxSuggestions = 0
	}

	result, err := app.Suggestions.GenerateSuggestions(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("suggest relationships: %w", err)
	}
	return rendererFrom(cmd.Context()).Suggestions(result)
}
