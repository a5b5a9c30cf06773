package llm

import (
	"context"
	"sync/atomic"
)

// MockGenerator is a configurable generator for tests.
// Set the function fields to control behavior.
type MockGenerator struct {
	// GenerateFunc is called by Generate. If nil, returns "" and nil.
	GenerateFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// StreamFunc is called by Stream. If nil, Stream sends the Generate
	// result as a single text event followed by a done event.
	StreamFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64, events chan<- StreamEvent) error

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	generateCalls atomic.Int32
	streamCalls   atomic.Int32
}

// NewMockGenerator creates a mock that always returns response.
func NewMockGenerator(response string) *MockGenerator {
	return &MockGenerator{
		ModelName: "mock-model",
		GenerateFunc: func(context.Context, string, string, float64) (string, error) {
			return response, nil
		},
	}
}

// Generate implements TextGenerator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	m.generateCalls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

// Stream implements StreamingGenerator.
func (m *MockGenerator) Stream(ctx context.Context, prompt string, systemMessage string, temperature float64, events chan<- StreamEvent) error {
	m.streamCalls.Add(1)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, prompt, systemMessage, temperature, events)
	}
	text, err := m.Generate(ctx, prompt, systemMessage, temperature)
	if err != nil {
		SendEvent(ctx, events, StreamEvent{Type: StreamEventError, Content: err.Error()})
		return err
	}
	if !SendEvent(ctx, events, StreamEvent{Type: StreamEventText, Content: text}) {
		return ctx.Err()
	}
	SendEvent(ctx, events, StreamEvent{Type: StreamEventDone})
	return nil
}

// Model implements TextGenerator.
func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// GenerateCalls returns how many times Generate was called.
func (m *MockGenerator) GenerateCalls() int {
	return int(m.generateCalls.Load())
}

// StreamCalls returns how many times Stream was called.
func (m *MockGenerator) StreamCalls() int {
	return int(m.streamCalls.Load())
}

// MockFactory returns the same generator for every model.
type MockFactory struct {
	Generator StreamingGenerator
	Err       error
}

// ForModel implements GeneratorFactory.
func (f *MockFactory) ForModel(string) (StreamingGenerator, error) {
	return f.Generator, f.Err
}
