package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"

	// StatementTimeoutMs bounds each statement server-side. Zero leaves the
	// server default.
	StatementTimeoutMs int
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromMap creates a Config from a tenant datasource config map.
// The password may be given inline or through password_env.
func FromMap(cfgMap map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		SSLMode: DefaultSSLMode(),
	}

	var ok bool
	if cfg.Host, ok = datasource.StringValue(cfgMap, "host"); !ok || cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if port, ok := datasource.IntValue(cfgMap, "port"); ok {
		cfg.Port = port
	}
	if cfg.User, ok = datasource.StringValue(cfgMap, "user"); !ok || cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}

	password, err := datasource.SecretValue(cfgMap, "password")
	if err != nil {
		return nil, err
	}
	cfg.Password = password

	if cfg.Database, ok = datasource.StringValue(cfgMap, "database"); !ok || cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if sslMode, ok := datasource.StringValue(cfgMap, "ssl_mode"); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}
	if ms, ok := datasource.IntValue(cfgMap, "statement_timeout_ms"); ok {
		cfg.StatementTimeoutMs = ms
	}

	return cfg, nil
}

// ConnectionString builds a PostgreSQL URL. User-provided fields are
// URL-escaped so passwords containing @, / or # survive parsing. When
// running in Docker, localhost resolves to host.docker.internal.
func (c *Config) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("application_name", "ekaya-ask")
	if c.StatementTimeoutMs > 0 {
		query.Set("options", fmt.Sprintf("-c statement_timeout=%d", c.StatementTimeoutMs))
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		config.ResolveHostForDocker(c.Host),
		c.Port,
		url.PathEscape(c.Database),
		query.Encode(),
	)
}
