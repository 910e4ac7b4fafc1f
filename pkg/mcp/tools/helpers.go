package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// jsonResult marshals v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// optionalFloat returns the named number argument when present.
func optionalFloat(req mcp.CallToolRequest, name string) (*float64, error) {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := raw.(float64)
	if !ok {
		return nil, fmt.Errorf("parameter '%s' must be a number", name)
	}
	return &v, nil
}

// optionalInt returns the named integer argument, or 0 when absent.
func optionalInt(req mcp.CallToolRequest, name string) (int, error) {
	v, err := optionalFloat(req, name)
	if err != nil || v == nil {
		return 0, err
	}
	if *v != float64(int(*v)) {
		return 0, fmt.Errorf("parameter '%s' must be an integer", name)
	}
	return int(*v), nil
}

// stringList returns the named string array argument, trimmed, without
// empty entries.
func stringList(req mcp.CallToolRequest, name string) []string {
	var out []string
	for _, s := range req.GetStringSlice(name, nil) {
		if s = trimString(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
