package postgres

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	t.Setenv("ACME_PG_PASSWORD", "p@ss/word#1")

	cfg, err := FromMap(map[string]any{
		"host":                 "db.acme.internal",
		"port":                 6432,
		"user":                 "reader",
		"password_env":         "ACME_PG_PASSWORD",
		"database":             "hr",
		"ssl_mode":             "disable",
		"statement_timeout_ms": 15000,
	})
	require.NoError(t, err)

	assert.Equal(t, "db.acme.internal", cfg.Host)
	assert.Equal(t, 6432, cfg.Port)
	assert.Equal(t, "p@ss/word#1", cfg.Password)
	assert.Equal(t, 15000, cfg.StatementTimeoutMs)
}

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{"host": "h", "user": "u", "database": "d"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, DefaultSSLMode(), cfg.SSLMode)
}

func TestFromMap_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{"no host", map[string]any{"user": "u", "database": "d"}},
		{"no user", map[string]any{"host": "h", "database": "d"}},
		{"no database", map[string]any{"host": "h", "user": "u"}},
		{"unset password env", map[string]any{"host": "h", "user": "u", "database": "d", "password_env": "ASK_TEST_UNSET_PG"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestConnectionString_EscapesCredentials(t *testing.T) {
	cfg := &Config{Host: "db", Port: 5432, User: "re@der", Password: "p@ss/word#1", Database: "hr", SSLMode: "disable", StatementTimeoutMs: 5000}

	u, err := url.Parse(cfg.ConnectionString())
	require.NoError(t, err)

	assert.Equal(t, "postgresql", u.Scheme)
	assert.Equal(t, "re@der", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/word#1", pw)
	assert.Equal(t, "/hr", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "-c statement_timeout=5000", u.Query().Get("options"))
}
