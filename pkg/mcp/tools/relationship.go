package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/services"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/fusion"
)

// RelationshipToolDeps contains dependencies for the relationship tools.
type RelationshipToolDeps struct {
	Suggestions services.RelationshipSuggestionService
	// DefaultDatasourceID is used when the caller names no datasource.
	DefaultDatasourceID string
	Logger              *zap.Logger
}

// RegisterRelationshipTools registers generate_relationship_suggestions.
func RegisterRelationshipTools(s *server.MCPServer, deps *RelationshipToolDeps) {
	tool := mcp.NewTool(
		"generate_relationship_suggestions",
		mcp.WithDescription(
			"Infer undeclared foreign-key-like relationships between the tables of a datasource. "+
				"Name patterns, type compatibility, cardinality and (optionally) sampled value overlap "+
				"are fused into ranked, confidence-scored suggestions.",
		),
		mcp.WithString(
			"datasource_id",
			mcp.Description("Optional - datasource to scan; defaults to the configured datasource"),
		),
		mcp.WithString(
			"database",
			mcp.Description("Optional - database to scan when the datasource hosts several"),
		),
		mcp.WithArray(
			"schemas",
			mcp.Description("Optional - schemas to include (e.g., ['public', 'sales'])"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray(
			"tables",
			mcp.Description("Optional - table glob patterns to include (e.g., ['order*', 'public.customers'])"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray(
			"exclude_tables",
			mcp.Description("Optional - table glob patterns to exclude (e.g., ['*_log', 'tmp_*'])"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber(
			"min_confidence",
			mcp.Description(fmt.Sprintf("Optional - minimum confidence in [0, 1] (default %.1f)", fusion.DefaultMinConfidence)),
			mcp.Min(0),
			mcp.Max(1),
		),
		mcp.WithNumber(
			"max_suggestions",
			mcp.Description(fmt.Sprintf("Optional - result cap in [1, %d] (default %d)", fusion.MaxSuggestionsCap, fusion.DefaultMaxSuggestions)),
			mcp.Min(1),
			mcp.Max(fusion.MaxSuggestionsCap),
		),
		mcp.WithBoolean(
			"include_sample_analysis",
			mcp.Description("Optional - fetch sample values and compare them across columns (slower)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		request, errResult := suggestionRequest(req, deps.DefaultDatasourceID)
		if errResult != nil {
			return errResult, nil
		}

		result, err := deps.Suggestions.GenerateSuggestions(ctx, request)
		if err != nil {
			if r := NewInputErrorResult(err); r != nil {
				deps.Logger.Debug("Rejected relationship scan", zap.Error(err))
				return r, nil
			}
			return nil, fmt.Errorf("generate suggestions: %w", err)
		}
		return jsonResult(result)
	})
}

func suggestionRequest(req mcp.CallToolRequest, defaultDatasourceID string) (services.SuggestionRequest, *mcp.CallToolResult) {
	dsID := trimString(req.GetString("datasource_id", ""))
	if dsID == "" {
		dsID = defaultDatasourceID
	}
	if dsID == "" {
		return services.SuggestionRequest{}, NewErrorResult(CodeInvalidParameters,
			"parameter 'datasource_id' is required when no default datasource is configured")
	}

	minConf, err := optionalFloat(req, "min_confidence")
	if err != nil {
		return services.SuggestionRequest{}, NewErrorResult(CodeInvalidParameters, err.Error())
	}
	maxN, err := optionalInt(req, "max_suggestions")
	if err != nil {
		return services.SuggestionRequest{}, NewErrorResult(CodeInvalidParameters, err.Error())
	}

	return services.SuggestionRequest{
		DataSourceID: dsID,
		ScopeFilters: services.ScopeFilters{
			Database:      trimString(req.GetString("database", "")),
			Schemas:       stringList(req, "schemas"),
			Tables:        stringList(req, "tables"),
			ExcludeTables: stringList(req, "exclude_tables"),
		},
		MinConfidence:         minConf,
		MaxSuggestions:        maxN,
		IncludeSampleAnalysis: req.GetBool("include_sample_analysis", false),
	}, nil
}
