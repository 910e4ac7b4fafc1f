package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services"
)

// LineageToolDeps contains dependencies for the lineage tool.
type LineageToolDeps struct {
	Lineage services.LineageService
	Logger  *zap.Logger
}

// RegisterLineageTools registers parse_sql_lineage.
func RegisterLineageTools(s *server.MCPServer, deps *LineageToolDeps) {
	tool := mcp.NewTool(
		"parse_sql_lineage",
		mcp.WithDescription(
			"Extract table and column lineage from SQL text: source and target tables, joins, "+
				"selected expressions with their transformation type, and column-level lineage "+
				"when the statement writes to a table. Best effort; nothing is executed.",
		),
		mcp.WithString(
			"sql",
			mcp.Required(),
			mcp.Description("SQL text to analyze"),
		),
		mcp.WithString(
			"dialect",
			mcp.Description("Optional - SQL dialect (default 'generic')"),
			mcp.Enum("generic", "postgres", "mssql", "mysql"),
		),
		mcp.WithBoolean(
			"script",
			mcp.Description("Optional - treat the text as a script of ';'-separated statements and merge their lineage"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("sql")
		if err != nil {
			return nil, err
		}
		if trimString(text) == "" {
			return NewErrorResult(CodeInvalidParameters, "parameter 'sql' cannot be empty"), nil
		}
		dialect := req.GetString("dialect", "")

		var lineage *models.ParsedLineage
		if req.GetBool("script", false) {
			lineage, err = deps.Lineage.ParseScript(text, dialect)
		} else {
			lineage, err = deps.Lineage.ParseSQL(text, dialect)
		}
		if err != nil {
			if r := NewInputErrorResult(err); r != nil {
				return r, nil
			}
			return nil, fmt.Errorf("parse sql lineage: %w", err)
		}
		return jsonResult(lineage)
	})
}
