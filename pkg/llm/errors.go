package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType indicates which part of the backend configuration failed.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeEmpty     ErrorType = "empty_response"
	ErrorTypeCircuit   ErrorType = "circuit_open"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a structured generation error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
	Model      string
	Provider   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable lets the retry package decide without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured generation error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes a provider error. Provider SDK error types are
// consulted for the HTTP status first; message patterns cover the rest.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeEndpoint, "request cancelled", false, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	}

	statusCode := statusCodeOf(err)
	lower := strings.ToLower(err.Error())

	classified := classify(statusCode, lower, err)
	classified.StatusCode = statusCode
	return classified
}

func classify(statusCode int, lower string, err error) *Error {
	switch {
	case statusCode == 401 || statusCode == 403 || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "invalid x-api-key"):
		return NewError(ErrorTypeAuth, "authentication failed", false, err)

	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")):
		return NewError(ErrorTypeModel, "model not found", false, err)

	case statusCode == 404:
		return NewError(ErrorTypeEndpoint, "endpoint not found", false, err)

	case statusCode == 429 || strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit"):
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)

	case statusCode == 529 || strings.Contains(lower, "overloaded"):
		return NewError(ErrorTypeEndpoint, "provider overloaded", true, err)

	case statusCode >= 500:
		return NewError(ErrorTypeEndpoint, "server error", true, err)

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset"):
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)

	case statusCode == 400:
		return NewError(ErrorTypeUnknown, "bad request", false, err)
	}

	return NewError(ErrorTypeUnknown, "generation error", false, err)
}

// statusCodeOf extracts an HTTP status from provider SDK errors, or from a
// bare "HTTP nnn"/"status code: nnn" message.
func statusCodeOf(err error) int {
	var oaAPI *openai.APIError
	if errors.As(err, &oaAPI) && oaAPI.HTTPStatusCode > 0 {
		return oaAPI.HTTPStatusCode
	}
	var oaReq *openai.RequestError
	if errors.As(err, &oaReq) && oaReq.HTTPStatusCode > 0 {
		return oaReq.HTTPStatusCode
	}
	var anReq *anthropic.RequestError
	if errors.As(err, &anReq) && anReq.StatusCode > 0 {
		return anReq.StatusCode
	}

	msg := err.Error()
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
		s := fmt.Sprintf("%d", code)
		if strings.Contains(msg, "HTTP "+s) || strings.Contains(msg, "status code: "+s) ||
			strings.Contains(msg, "status "+s) {
			return code
		}
	}
	return 0
}

// IsRetryable returns true if err is a retryable generation error.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}
