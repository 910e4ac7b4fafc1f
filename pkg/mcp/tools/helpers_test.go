package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWith(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestTrimString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
		{"leading whitespace", "  test", "test"},
		{"trailing whitespace", "test  ", "test"},
		{"tabs", "\ttest\t", "test"},
		{"mixed whitespace", " \t\ntest\n\t ", "test"},
		{"no whitespace", "test", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, trimString(tt.input))
		})
	}
}

func TestOptionalFloat(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		v, err := optionalFloat(requestWith(map[string]any{}), "min_confidence")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("null", func(t *testing.T) {
		v, err := optionalFloat(requestWith(map[string]any{"min_confidence": nil}), "min_confidence")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("number", func(t *testing.T) {
		v, err := optionalFloat(requestWith(map[string]any{"min_confidence": 0.85}), "min_confidence")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.InDelta(t, 0.85, *v, 1e-9)
	})

	t.Run("zero is kept", func(t *testing.T) {
		v, err := optionalFloat(requestWith(map[string]any{"min_confidence": 0.0}), "min_confidence")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Zero(t, *v)
	})

	t.Run("string rejected", func(t *testing.T) {
		_, err := optionalFloat(requestWith(map[string]any{"min_confidence": "high"}), "min_confidence")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_confidence")
	})
}

func TestOptionalInt(t *testing.T) {
	v, err := optionalInt(requestWith(map[string]any{"max_suggestions": 10.0}), "max_suggestions")
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = optionalInt(requestWith(map[string]any{}), "max_suggestions")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = optionalInt(requestWith(map[string]any{"max_suggestions": 2.5}), "max_suggestions")
	assert.ErrorContains(t, err, "must be an integer")
}

func TestStringList(t *testing.T) {
	req := requestWith(map[string]any{
		"schemas": []any{" public ", "", "  ", "sales"},
	})

	assert.Equal(t, []string{"public", "sales"}, stringList(req, "schemas"))
	assert.Nil(t, stringList(req, "tables"))
}

func TestJSONResult(t *testing.T) {
	result, err := jsonResult(map[string]any{"status": "ok"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"status":"ok"}`, getTextContent(result))

	_, err = jsonResult(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
