package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is the file Load reads when it exists.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-ask.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ShutdownTimeout bounds how long in-flight requests may run after SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// TenantsFile is the YAML file holding tenant profiles and their datasources.
	TenantsFile string `yaml:"tenants_file" env:"TENANTS_FILE" env-default:"tenants.yaml"`

	LLM        LLMConfig        `yaml:"llm"`
	Cache      CacheConfig      `yaml:"cache"`
	Schema     SchemaConfig     `yaml:"schema"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Datasource DatasourceConfig `yaml:"datasource"`
}

// LLMConfig selects and tunes the text-generation backend.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	Timeout        time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"30s"`
	MaxRetries     int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"2"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"LLM_INITIAL_BACKOFF" env-default:"500ms"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env:"LLM_MAX_BACKOFF" env-default:"5s"`

	SQLTemperature    float64 `yaml:"sql_temperature" env:"LLM_SQL_TEMPERATURE" env-default:"0.1"`
	AnswerTemperature float64 `yaml:"answer_temperature" env:"LLM_ANSWER_TEMPERATURE" env-default:"0.3"`
	MaxTokens         int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`

	// Circuit breaker around the generation backend.
	BreakerThreshold int           `yaml:"breaker_threshold" env:"LLM_BREAKER_THRESHOLD" env-default:"5"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" env:"LLM_BREAKER_COOLDOWN" env-default:"30s"`
}

// CacheConfig configures the generation response cache.
type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1h"`
	Capacity int           `yaml:"capacity" env:"CACHE_CAPACITY" env-default:"1000"`

	// Redis is optional. When RedisHost is empty only the in-memory tier is used.
	RedisHost     string `yaml:"redis_host" env:"REDIS_HOST" env-default:""`
	RedisPort     int    `yaml:"redis_port" env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	RedisPrefix   string `yaml:"redis_prefix" env:"REDIS_PREFIX" env-default:"ekaya-ask:gen:"`
}

// SchemaConfig configures the per-tenant schema registry.
type SchemaConfig struct {
	TTL              time.Duration `yaml:"ttl" env:"SCHEMA_TTL" env-default:"45m"`
	FallbackTTL      time.Duration `yaml:"fallback_ttl" env:"SCHEMA_FALLBACK_TTL" env-default:"1m"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" env:"SCHEMA_DISCOVERY_TIMEOUT" env-default:"15s"`
	DiscoveryWorkers int           `yaml:"discovery_workers" env:"SCHEMA_DISCOVERY_WORKERS" env-default:"4"`
}

// PipelineConfig bounds query execution and answer rendering.
type PipelineConfig struct {
	RowCap           int           `yaml:"row_cap" env:"PIPELINE_ROW_CAP" env-default:"100"`
	DisplayCap       int           `yaml:"display_cap" env:"PIPELINE_DISPLAY_CAP" env-default:"10"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout" env:"PIPELINE_EXECUTION_TIMEOUT" env-default:"30s"`
	ExecutionRetries int           `yaml:"execution_retries" env:"PIPELINE_EXECUTION_RETRIES" env-default:"2"`
}

// ClassifierConfig holds the intent decision thresholds.
// The defaults are starting points; tune them against a labeled question set.
type ClassifierConfig struct {
	HighThreshold     float64 `yaml:"high_threshold" env:"CLASSIFIER_HIGH_THRESHOLD" env-default:"0.6"`
	ModerateThreshold float64 `yaml:"moderate_threshold" env:"CLASSIFIER_MODERATE_THRESHOLD" env-default:"0.3"`

	// Weights overrides individual signal weights by name (YAML only).
	Weights map[string]float64 `yaml:"weights"`
}

// DatasourceConfig holds datasource connection management settings.
type DatasourceConfig struct {
	// ConnectionTTL is how long idle tenant pools are kept alive.
	ConnectionTTL time.Duration `yaml:"connection_ttl" env:"DATASOURCE_CONNECTION_TTL" env-default:"10m"`
	PoolMaxConns  int32         `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	PoolMinConns  int32         `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom is Load with an explicit config file path. A missing file is not
// an error; defaults and environment variables are used instead.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}

	if c.Classifier.ModerateThreshold < 0 || c.Classifier.HighThreshold > 1 ||
		c.Classifier.ModerateThreshold >= c.Classifier.HighThreshold {
		return fmt.Errorf("classifier thresholds must satisfy 0 <= moderate < high <= 1 (got %.2f, %.2f)",
			c.Classifier.ModerateThreshold, c.Classifier.HighThreshold)
	}

	if c.Schema.TTL < 30*time.Minute || c.Schema.TTL > 60*time.Minute {
		return fmt.Errorf("schema ttl must be between 30m and 60m, got %s", c.Schema.TTL)
	}

	if c.Pipeline.RowCap < 1 || c.Pipeline.RowCap > 1000 {
		return fmt.Errorf("pipeline row_cap must be between 1 and 1000, got %d", c.Pipeline.RowCap)
	}
	if c.Pipeline.DisplayCap < 1 {
		return fmt.Errorf("pipeline display_cap must be positive, got %d", c.Pipeline.DisplayCap)
	}

	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}

	return nil
}

// RedisAddr returns host:port for the optional Redis cache tier.
func (c *CacheConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.RedisHost), c.RedisPort)
}

// IsDevelopment reports whether the service runs with development logging.
func (c *Config) IsDevelopment() bool {
	return c.Env == "local" || c.Env == "dev" || c.Env == "development"
}
