package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicClient creates a Messages API client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for anthropic")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("llm-anthropic"),
	}, nil
}

func (c *AnthropicClient) request(prompt, systemMessage string, temperature float64) anthropic.MessagesRequest {
	temp := float32(temperature)
	return anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      systemMessage,
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
		MaxTokens:   c.maxTokens,
		Temperature: &temp,
	}
}

// Generate returns a single completion.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	c.logger.Debug("Generation request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, c.request(prompt, systemMessage, temperature))
	if err != nil {
		classified := c.classify(err)
		c.logger.Warn("Generation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("type", string(classified.Type)),
			zap.Bool("retryable", classified.Retryable),
			zap.Error(err))
		return "", classified
	}

	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.GetText())
	}
	if text.Len() == 0 {
		return "", NewError(ErrorTypeEmpty, "no text content in response", true, nil)
	}

	c.logger.Info("Generation request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text.String(), nil
}

// Stream delivers a completion incrementally. Deltas are forwarded from the
// SDK callback; a blocked consumer applies backpressure to the stream.
func (c *AnthropicClient) Stream(ctx context.Context, prompt string, systemMessage string, temperature float64, events chan<- StreamEvent) error {
	received := 0

	_, err := c.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
		MessagesRequest: c.request(prompt, systemMessage, temperature),
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			delta := data.Delta.GetText()
			if delta == "" {
				return
			}
			received += len(delta)
			SendEvent(ctx, events, StreamEvent{Type: StreamEventText, Content: delta})
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		classified := c.classify(err)
		c.logger.Warn("Stream interrupted",
			zap.Int("received_len", received),
			zap.Error(err))
		SendEvent(ctx, events, StreamEvent{Type: StreamEventError, Content: classified.Message})
		return classified
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	SendEvent(ctx, events, StreamEvent{Type: StreamEventDone})
	return nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

func (c *AnthropicClient) classify(err error) *Error {
	classified := ClassifyError(err)
	classified.Model = c.model
	classified.Provider = ProviderAnthropic
	return classified
}
