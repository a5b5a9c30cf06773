package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Returning it as a tool result keeps the error visible to the MCP client
// instead of surfacing as a protocol failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (unknown tenant, empty
// question). System failures still return Go errors.
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

// requestErrorResult converts caller errors into tool error results.
// ok is false for errors that are not the caller's fault.
func requestErrorResult(err error) (result *mcp.CallToolResult, ok bool) {
	switch {
	case errors.Is(err, apperrors.ErrUnknownTenant):
		return NewErrorResult("tenant_not_found", err.Error()), true
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return NewErrorResult("invalid_request", err.Error()), true
	}
	return nil, false
}
