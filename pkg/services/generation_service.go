package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/cache"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
)

// GenerationService calls the text-generation backend with caching,
// timeouts, retries and a circuit breaker.
type GenerationService interface {
	// Generate returns the completion for req. cached reports a cache hit.
	// Failures after the retry budget wrap apperrors.ErrGenerationUnavailable.
	Generate(ctx context.Context, req *models.GenerationRequest) (text string, cached bool, err error)

	// Stream delivers a completion incrementally. Stream results are not cached.
	Stream(ctx context.Context, model, prompt, systemMessage string, temperature float64, events chan<- llm.StreamEvent) error
}

// GenerationServiceConfig bounds generation calls.
type GenerationServiceConfig struct {
	Timeout time.Duration
	Retry   *retry.Config
}

type generationService struct {
	factory llm.GeneratorFactory
	cache   *cache.ResponseCache
	breaker *llm.CircuitBreaker
	config  GenerationServiceConfig
	logger  *zap.Logger
}

var _ GenerationService = (*generationService)(nil)

// NewGenerationService wraps the generator factory. responseCache may be nil.
func NewGenerationService(
	factory llm.GeneratorFactory,
	responseCache *cache.ResponseCache,
	breaker *llm.CircuitBreaker,
	config GenerationServiceConfig,
	logger *zap.Logger,
) GenerationService {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retry == nil {
		config.Retry = retry.DefaultConfig()
	}
	if breaker == nil {
		breaker = llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())
	}
	return &generationService{
		factory: factory,
		cache:   responseCache,
		breaker: breaker,
		config:  config,
		logger:  logger.Named("generation"),
	}
}

func (s *generationService) Generate(ctx context.Context, req *models.GenerationRequest) (string, bool, error) {
	gen, err := s.factory.ForModel(req.Model)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", apperrors.ErrGenerationUnavailable, err)
	}

	load := func(ctx context.Context) (string, error) {
		return s.callWithRetry(ctx, gen, req)
	}

	if s.cache == nil {
		text, err := load(ctx)
		return text, false, err
	}

	key := cache.Key(gen.Model(), fmt.Sprintf("%.2f\x00%s\x00%s", req.Temperature, req.SystemMessage, req.Prompt))
	return s.cache.GetOrLoad(ctx, key, load)
}

func (s *generationService) callWithRetry(ctx context.Context, gen llm.TextGenerator, req *models.GenerationRequest) (string, error) {
	cfg := *s.config.Retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Warn("Generation attempt failed; retrying",
			zap.String("tenant_id", req.TenantID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", logging.SanitizeError(err)))
	}

	text, err := retry.DoWithResult(ctx, &cfg, func(ctx context.Context) (string, error) {
		if err := s.breaker.Allow(); err != nil {
			return "", err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()

		text, err := gen.Generate(attemptCtx, req.Prompt, req.SystemMessage, req.Temperature)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.breaker.RecordFailure()
			}
			return "", llm.ClassifyError(err)
		}
		s.breaker.RecordSuccess()
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrGenerationUnavailable, err)
	}
	return text, nil
}

func (s *generationService) Stream(ctx context.Context, model, prompt, systemMessage string, temperature float64, events chan<- llm.StreamEvent) error {
	gen, err := s.factory.ForModel(model)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrGenerationUnavailable, err)
	}
	if err := s.breaker.Allow(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrGenerationUnavailable, err)
	}

	if err := gen.Stream(ctx, prompt, systemMessage, temperature, events); err != nil {
		if ctx.Err() == nil {
			s.breaker.RecordFailure()
		}
		return fmt.Errorf("%w: %v", apperrors.ErrGenerationUnavailable, llm.ClassifyError(err))
	}
	s.breaker.RecordSuccess()
	return nil
}
