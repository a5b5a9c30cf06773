package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Dialect selects dialect-specific spelling for generated SQL.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectSQLServer Dialect = "mssql"
)

// DialectFor maps a datasource type to its dialect. Unknown types use PostgreSQL.
func DialectFor(datasourceType string) Dialect {
	if strings.EqualFold(datasourceType, string(DialectSQLServer)) {
		return DialectSQLServer
	}
	return DialectPostgres
}

var simpleIdentPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// QuoteIdent quotes an identifier only when it is not a plain lower-case name.
func (d Dialect) QuoteIdent(name string) string {
	if simpleIdentPattern.MatchString(name) && !reservedAliases[name] {
		return name
	}
	if d == DialectSQLServer {
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	}
	return pgx.Identifier{name}.Sanitize()
}

// QuoteLiteral returns s as a single-quoted string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ContainsMatch returns a case-insensitive substring predicate for column.
func (d Dialect) ContainsMatch(column, term string) string {
	pattern := QuoteLiteral("%" + term + "%")
	if d == DialectSQLServer {
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", column, pattern)
	}
	return fmt.Sprintf("%s ILIKE %s", column, pattern)
}

// ApplyLimit bounds a SELECT to n rows using the dialect's syntax.
func (d Dialect) ApplyLimit(selectSQL string, n int) string {
	if d == DialectSQLServer {
		upper := strings.ToUpper(selectSQL)
		switch {
		case strings.HasPrefix(upper, "SELECT DISTINCT "):
			return fmt.Sprintf("SELECT DISTINCT TOP %d %s", n, selectSQL[len("SELECT DISTINCT "):])
		case strings.HasPrefix(upper, "SELECT "):
			return fmt.Sprintf("SELECT TOP %d %s", n, selectSQL[len("SELECT "):])
		}
		return selectSQL
	}
	return fmt.Sprintf("%s LIMIT %d", selectSQL, n)
}

// WrapLimit bounds an arbitrary read-only query to n rows by wrapping it.
func (d Dialect) WrapLimit(query string, n int) string {
	if d == DialectSQLServer {
		return fmt.Sprintf("SELECT TOP %d * FROM (%s) AS _limited", n, query)
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", query, n)
}

// Name returns the dialect's display name for prompts.
func (d Dialect) Name() string {
	if d == DialectSQLServer {
		return "Microsoft SQL Server (T-SQL)"
	}
	return "PostgreSQL"
}

// MatchRule describes the case-insensitive matching convention.
func (d Dialect) MatchRule() string {
	if d == DialectSQLServer {
		return "For text matching use LOWER(column) LIKE LOWER('%term%') so matches are case-insensitive."
	}
	return "For text matching use column ILIKE '%term%' so matches are case-insensitive."
}

// LimitRule describes the mandatory row cap.
func (d Dialect) LimitRule(n int) string {
	if d == DialectSQLServer {
		return fmt.Sprintf("Always cap the result with SELECT TOP %d (or fewer).", n)
	}
	return fmt.Sprintf("Always end the query with LIMIT %d (or fewer).", n)
}
