package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/config"
)

// Config contains SQL Server connection options. Only SQL authentication is
// supported.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a tenant datasource config map. "username"
// and "user" are both accepted; the password may come from password_env.
func FromMap(cfgMap map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	var ok bool
	if cfg.Host, ok = datasource.StringValue(cfgMap, "host"); !ok || cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if port, ok := datasource.IntValue(cfgMap, "port"); ok {
		cfg.Port = port
	}
	if cfg.Database, ok = datasource.StringValue(cfgMap, "database"); !ok || cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	if u, ok := datasource.StringValue(cfgMap, "username"); ok && u != "" {
		cfg.Username = u
	} else if u, ok := datasource.StringValue(cfgMap, "user"); ok && u != "" {
		cfg.Username = u
	} else {
		return nil, fmt.Errorf("username is required for SQL authentication")
	}

	password, err := datasource.SecretValue(cfgMap, "password")
	if err != nil {
		return nil, err
	}
	cfg.Password = password

	if encrypt, ok := datasource.BoolValue(cfgMap, "encrypt"); ok {
		cfg.Encrypt = encrypt
	}
	if trust, ok := datasource.BoolValue(cfgMap, "trust_server_certificate"); ok {
		cfg.TrustServerCertificate = trust
	}
	if timeout, ok := datasource.IntValue(cfgMap, "connection_timeout"); ok {
		cfg.ConnectionTimeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Username == "" {
		return fmt.Errorf("username is required for SQL authentication")
	}
	return nil
}

// ConnectionString builds a sqlserver:// URL for go-mssqldb.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)
	query.Add("encrypt", strconv.FormatBool(c.Encrypt))
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}
	query.Add("app name", "ekaya-ask")

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		config.ResolveHostForDocker(c.Host),
		c.Port,
		query.Encode(),
	)
}
