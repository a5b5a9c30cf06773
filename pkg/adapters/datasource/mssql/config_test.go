package mssql

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	t.Setenv("GLOBEX_SQL_PASSWORD", "Str0ng;Pass")

	cfg, err := FromMap(map[string]any{
		"host":                     "sql.globex.internal",
		"database":                 "hr",
		"user":                     "reader",
		"password_env":             "GLOBEX_SQL_PASSWORD",
		"encrypt":                  "false",
		"trust_server_certificate": true,
		"connection_timeout":       float64(10),
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, "reader", cfg.Username)
	assert.Equal(t, "Str0ng;Pass", cfg.Password)
	assert.False(t, cfg.Encrypt)
	assert.True(t, cfg.TrustServerCertificate)
	assert.Equal(t, 10, cfg.ConnectionTimeout)
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{"no host", map[string]any{"database": "d", "user": "u"}},
		{"no database", map[string]any{"host": "h", "user": "u"}},
		{"no user", map[string]any{"host": "h", "database": "d"}},
		{"bad port", map[string]any{"host": "h", "database": "d", "user": "u", "port": 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg := &Config{Host: "sql", Port: 1433, Database: "hr", Username: "re@der", Password: "p@ss", Encrypt: true, ConnectionTimeout: 30}

	u, err := url.Parse(cfg.ConnectionString())
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "sql:1433", u.Host)
	assert.Equal(t, "re@der", u.User.Username())
	assert.Equal(t, "hr", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "30", u.Query().Get("connection timeout"))
}
