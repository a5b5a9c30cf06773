package llm

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// GeneratorFactory resolves the generator for a model name.
// Use this interface for dependency injection and testing.
type GeneratorFactory interface {
	ForModel(model string) (StreamingGenerator, error)
}

// ClientFactory creates generators from a base configuration and caches one
// per model, so tenants pinned to different models share clients.
type ClientFactory struct {
	base   Config
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]StreamingGenerator
}

var _ GeneratorFactory = (*ClientFactory)(nil)

// NewClientFactory creates a new factory. base.Model is the default model.
func NewClientFactory(base Config, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{
		base:    base,
		logger:  logger,
		clients: make(map[string]StreamingGenerator),
	}
}

// ForModel returns the generator for model, or for the default model when
// model is empty.
func (f *ClientFactory) ForModel(model string) (StreamingGenerator, error) {
	if model == "" {
		model = f.base.Model
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.clients[model]; ok {
		return g, nil
	}

	cfg := f.base
	cfg.Model = model
	g, err := NewGenerator(&cfg, f.logger)
	if err != nil {
		return nil, err
	}
	f.clients[model] = g
	return g, nil
}

// NewGenerator creates the generator for cfg.Provider.
func NewGenerator(cfg *Config, logger *zap.Logger) (StreamingGenerator, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		c, err := NewClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderAnthropic:
		c, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
