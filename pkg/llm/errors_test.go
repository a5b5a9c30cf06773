package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"cancelled", context.Canceled, ErrorTypeEndpoint, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorTypeEndpoint, true},
		{"openai 401", &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}, ErrorTypeAuth, false},
		{"openai 429", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, ErrorTypeRateLimit, true},
		{"openai 503", &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")}, ErrorTypeEndpoint, true},
		{"model missing", errors.New("the model `gpt-x` does not exist"), ErrorTypeModel, false},
		{"bare 404", errors.New("HTTP 404 page"), ErrorTypeEndpoint, false},
		{"overloaded", errors.New("anthropic: overloaded_error"), ErrorTypeEndpoint, true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), ErrorTypeEndpoint, true},
		{"bad request", errors.New("status code: 400, bad input"), ErrorTypeUnknown, false},
		{"unknown", errors.New("something odd"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(got))
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	orig := NewError(ErrorTypeCircuit, "open", false, nil)
	wrapped := fmt.Errorf("generate: %w", orig)

	assert.Same(t, orig, ClassifyError(wrapped))
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrorTypeEndpoint, "server error", true, cause)
	err.StatusCode = 502
	err.Model = "gpt-4o-mini"

	assert.Equal(t, "endpoint HTTP 502 model=gpt-4o-mini server error: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsRetryable())
}

func TestIsRetryable_PlainError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
}
