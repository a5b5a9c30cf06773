package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-ask/pkg/cache"
	"github.com/ekaya-inc/ekaya-ask/pkg/config"
	"github.com/ekaya-inc/ekaya-ask/pkg/handlers"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/mcp"
	"github.com/ekaya-inc/ekaya-ask/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-ask/pkg/middleware"
	"github.com/ekaya-inc/ekaya-ask/pkg/prompts"
	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
	"github.com/ekaya-inc/ekaya-ask/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("tenants_file", cfg.TenantsFile),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("redis_cache", cfg.Cache.RedisHost != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tenants, err := services.LoadTenantRegistry(cfg.TenantsFile, logger)
	if err != nil {
		logger.Fatal("Failed to load tenants", zap.Error(err))
	}

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTL:          cfg.Datasource.ConnectionTTL,
		PoolMaxConns: cfg.Datasource.PoolMaxConns,
		PoolMinConns: cfg.Datasource.PoolMinConns,
	}, logger)
	adapters := datasource.NewAdapterFactory(connMgr)

	responseCache := newResponseCache(ctx, cfg, logger)

	breaker := llm.NewCircuitBreaker(llm.CircuitBreakerConfig{
		Threshold:  cfg.LLM.BreakerThreshold,
		ResetAfter: cfg.LLM.BreakerCooldown,
	})
	generators := llm.NewClientFactory(llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	generation := services.NewGenerationService(generators, responseCache, breaker, services.GenerationServiceConfig{
		Timeout: cfg.LLM.Timeout,
		Retry:   retry.New(cfg.LLM.MaxRetries, cfg.LLM.InitialBackoff, cfg.LLM.MaxBackoff),
	}, logger)

	schemas := services.NewSchemaRegistry(adapters, services.SchemaRegistryConfig{
		TTL:              cfg.Schema.TTL,
		FallbackTTL:      cfg.Schema.FallbackTTL,
		DiscoveryTimeout: cfg.Schema.DiscoveryTimeout,
		Workers:          cfg.Schema.DiscoveryWorkers,
	}, logger)

	answers := services.NewAnswerService(services.AnswerServiceDeps{
		Tenants: tenants,
		Schemas: schemas,
		Classifier: services.NewIntentClassifier(services.IntentClassifierConfig{
			HighThreshold:     cfg.Classifier.HighThreshold,
			ModerateThreshold: cfg.Classifier.ModerateThreshold,
			Weights:           cfg.Classifier.Weights,
		}),
		Composer:    prompts.NewComposer(cfg.Pipeline.RowCap, cfg.LLM.SQLTemperature),
		Generation:  generation,
		Extractor:   services.NewSQLExtractor(services.NewFallbackSynthesizer(cfg.Pipeline.RowCap), logger),
		Interpreter: services.NewResultInterpreter(cfg.Pipeline.DisplayCap),
		Adapters:    adapters,
	}, services.AnswerServiceConfig{
		RowCap:            cfg.Pipeline.RowCap,
		ExecutionTimeout:  cfg.Pipeline.ExecutionTimeout,
		ExecutionRetries:  cfg.Pipeline.ExecutionRetries,
		AnswerTemperature: cfg.LLM.AnswerTemperature,
	}, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, connMgr, breaker, logger).RegisterRoutes(mux)
	handlers.NewAskHandler(answers, tenants, schemas, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	mcpServer := mcp.NewServer(handlers.ServiceName, cfg.Version, logger)
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, breaker)
	tools.RegisterAskTools(mcpServer.MCP(), &tools.AskToolDeps{
		Answers: answers,
		Tenants: tenants,
		Logger:  logger,
	})
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-ask",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Int("tenants", len(tenants.List())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	if err := responseCache.Close(); err != nil {
		logger.Warn("Failed to close response cache", zap.Error(err))
	}
	if err := connMgr.Close(); err != nil {
		logger.Warn("Failed to close datasource connections", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// newResponseCache builds the in-memory cache, tiered over Redis when one
// is configured and reachable.
func newResponseCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) *cache.ResponseCache {
	var store cache.Store = cache.NewMemoryStore(cfg.Cache.Capacity)

	if cfg.Cache.RedisHost != "" {
		shared, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.RedisPrefix,
		})
		if err != nil {
			logger.Warn("Redis cache unavailable; using in-memory cache only",
				zap.String("addr", cfg.Cache.RedisAddr()),
				zap.Error(err))
		} else {
			store = cache.NewTieredStore(store, shared, logger)
		}
	}

	return cache.NewResponseCache(store, cfg.Cache.TTL, logger)
}
