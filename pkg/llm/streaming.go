package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StreamEvent is one incremental piece of a streamed completion.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    any             `json:"data,omitempty"`
}

// StreamEventType defines types of streaming events.
type StreamEventType string

const (
	StreamEventText  StreamEventType = "text"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// SendEvent delivers ev unless ctx is done first. It reports whether the
// event was delivered.
func SendEvent(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stream delivers a chat completion incrementally.
func (c *Client) Stream(ctx context.Context, prompt string, systemMessage string, temperature float64, events chan<- StreamEvent) error {
	start := time.Now()

	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(prompt, systemMessage, temperature, true))
	if err != nil {
		classified := c.classify(err)
		SendEvent(ctx, events, StreamEvent{Type: StreamEventError, Content: classified.Message})
		return classified
	}
	defer stream.Close()

	var total strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			classified := c.classify(err)
			c.logger.Warn("Stream interrupted",
				zap.Int("received_len", total.Len()),
				zap.Error(err))
			SendEvent(ctx, events, StreamEvent{Type: StreamEventError, Content: classified.Message})
			return classified
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		total.WriteString(delta)
		if !SendEvent(ctx, events, StreamEvent{Type: StreamEventText, Content: delta}) {
			return ctx.Err()
		}
	}

	c.logger.Debug("Stream completed",
		zap.Int("content_len", total.Len()),
		zap.Duration("elapsed", time.Since(start)))

	SendEvent(ctx, events, StreamEvent{Type: StreamEventDone})
	return nil
}
