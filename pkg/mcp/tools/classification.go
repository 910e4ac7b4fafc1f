package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/services"
)

// ClassificationToolDeps contains dependencies for the classification tool.
type ClassificationToolDeps struct {
	Classification      services.ColumnClassificationService
	DefaultDatasourceID string
	Logger              *zap.Logger
}

// RegisterClassificationTools registers classify_column.
func RegisterClassificationTools(s *server.MCPServer, deps *ClassificationToolDeps) {
	tool := mcp.NewTool(
		"classify_column",
		mcp.WithDescription(
			"Classify whether a column holds sensitive personal data (email, phone, SSN, card number, "+
				"IP address, date of birth, person name, credentials). Uses the given sample values, or "+
				"samples fetched from the datasource when none are given.",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table containing the column (e.g., 'customers')"),
		),
		mcp.WithString(
			"column",
			mcp.Required(),
			mcp.Description("Column to classify (e.g., 'email_address')"),
		),
		mcp.WithString(
			"schema",
			mcp.Description("Optional - schema of the table"),
		),
		mcp.WithString(
			"database",
			mcp.Description("Optional - database of the table"),
		),
		mcp.WithString(
			"data_type",
			mcp.Description("Optional - declared type of the column (e.g., 'varchar(255)')"),
		),
		mcp.WithArray(
			"sample_values",
			mcp.Description("Optional - sample values; when omitted they are read from the datasource"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString(
			"datasource_id",
			mcp.Description("Optional - datasource to sample from; defaults to the configured datasource"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		table = trimString(table)
		if table == "" {
			return NewErrorResult(CodeInvalidParameters, "parameter 'table' cannot be empty"), nil
		}

		column, err := req.RequireString("column")
		if err != nil {
			return nil, err
		}
		column = trimString(column)
		if column == "" {
			return NewErrorResult(CodeInvalidParameters, "parameter 'column' cannot be empty"), nil
		}

		dsID := trimString(req.GetString("datasource_id", ""))
		if dsID == "" {
			dsID = deps.DefaultDatasourceID
		}

		result, err := deps.Classification.ClassifyColumn(ctx, services.ClassifyContext{
			DataSourceID: dsID,
			Database:     trimString(req.GetString("database", "")),
			Schema:       trimString(req.GetString("schema", "")),
			Table:        table,
			ColumnName:   column,
			DataType:     trimString(req.GetString("data_type", "")),
			SampleValues: req.GetStringSlice("sample_values", nil),
		})
		if err != nil {
			if r := NewInputErrorResult(err); r != nil {
				deps.Logger.Debug("Rejected column classification", zap.Error(err))
				return r, nil
			}
			return nil, fmt.Errorf("classify column: %w", err)
		}
		return jsonResult(result)
	})
}
