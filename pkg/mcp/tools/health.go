package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
)

type healthResult struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	Datasources []string `json:"datasources"`
	Providers   []string `json:"providers"`
}

// DatasourceLister lists configured datasource IDs. *datasource.Catalog
// implements it.
type DatasourceLister interface {
	IDs() []string
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and configured datasources.
func RegisterHealthTool(s *server.MCPServer, version string, datasources DatasourceLister) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and configured datasources"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{
			Status:      "ok",
			Version:     version,
			Datasources: []string{},
		}
		if datasources != nil {
			res.Datasources = datasources.IDs()
		}
		for _, p := range datasource.RegisteredProviders() {
			res.Providers = append(res.Providers, p.Type)
		}
		return jsonResult(res)
	})
}
