package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
)

// ErrorResponse represents a structured error in tool results.
// It is returned as a successful tool result so the calling agent sees
// the details instead of a bare protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (invalid parameters, unknown
// datasource). System failures should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// Error codes returned to agents.
const (
	CodeInvalidParameters     = "invalid_parameters"
	CodeNotFound              = "not_found"
	CodeUnsupportedQuery      = "unsupported_query"
	CodeUnsupportedDatasource = "unsupported_datasource"
)

// NewInputErrorResult maps an input error to a structured result. It
// returns nil when err is not caused by the caller's input; the caller
// should then return err as a Go error.
func NewInputErrorResult(err error) *mcp.CallToolResult {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		return NewErrorResultWithDetails(CodeInvalidParameters, verr.Error(), map[string]string{"field": verr.Field})
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return NewErrorResult(CodeInvalidParameters, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult(CodeNotFound, logging.SanitizeError(err))
	case errors.Is(err, apperrors.ErrUnsupportedQuery):
		return NewErrorResult(CodeUnsupportedQuery, err.Error())
	case errors.Is(err, apperrors.ErrUnsupportedDatasource):
		return NewErrorResult(CodeUnsupportedDatasource, err.Error())
	}
	return nil
}

// IsInputError reports whether err was caused by the caller's input rather
// than a server failure. Input errors are logged at Debug, not Error.
func IsInputError(err error) bool {
	return err != nil && NewInputErrorResult(err) != nil
}
