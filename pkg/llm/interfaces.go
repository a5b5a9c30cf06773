// Package llm provides text-generation backends for OpenAI-compatible and
// Anthropic endpoints.
package llm

import (
	"context"
)

// TextGenerator produces a single completion for a prompt. Output is free
// text with no structural guarantee.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Model returns the configured model name.
	Model() string
}

// StreamingGenerator can also deliver a completion incrementally.
// Stream sends StreamEventText events followed by exactly one
// StreamEventDone or StreamEventError event, and returns when the stream
// ends or ctx is cancelled. It never closes events.
type StreamingGenerator interface {
	TextGenerator
	Stream(ctx context.Context, prompt string, systemMessage string, temperature float64, events chan<- StreamEvent) error
}

// Ensure clients implement StreamingGenerator at compile time.
var (
	_ StreamingGenerator = (*Client)(nil)
	_ StreamingGenerator = (*AnthropicClient)(nil)
	_ StreamingGenerator = (*MockGenerator)(nil)
)
