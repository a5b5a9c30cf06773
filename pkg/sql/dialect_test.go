package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectSQLServer, DialectFor("mssql"))
	assert.Equal(t, DialectPostgres, DialectFor("postgres"))
	assert.Equal(t, DialectPostgres, DialectFor(""))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "employees", DialectPostgres.QuoteIdent("employees"))
	assert.Equal(t, `"Order Items"`, DialectPostgres.QuoteIdent("Order Items"))
	assert.Equal(t, `"order"`, DialectPostgres.QuoteIdent("order"))
	assert.Equal(t, "[Order Items]", DialectSQLServer.QuoteIdent("Order Items"))
}

func TestContainsMatch(t *testing.T) {
	assert.Equal(t, "position ILIKE '%frontend%'", DialectPostgres.ContainsMatch("position", "frontend"))
	assert.Equal(t, "LOWER(position) LIKE LOWER('%o''brien%')", DialectSQLServer.ContainsMatch("position", "o'brien"))
}

func TestApplyLimit(t *testing.T) {
	assert.Equal(t, "SELECT name FROM t LIMIT 5", DialectPostgres.ApplyLimit("SELECT name FROM t", 5))
	assert.Equal(t, "SELECT TOP 5 name FROM t", DialectSQLServer.ApplyLimit("SELECT name FROM t", 5))
	assert.Equal(t, "SELECT DISTINCT TOP 5 name FROM t", DialectSQLServer.ApplyLimit("SELECT DISTINCT name FROM t", 5))
}

func TestWrapLimit(t *testing.T) {
	assert.Equal(t, "SELECT * FROM (SELECT 1 FROM t) AS _limited LIMIT 10", DialectPostgres.WrapLimit("SELECT 1 FROM t", 10))
	assert.Equal(t, "SELECT TOP 10 * FROM (SELECT 1 FROM t) AS _limited", DialectSQLServer.WrapLimit("SELECT 1 FROM t", 10))
}
