// Package datasource defines the tenant database contracts used by the
// answer pipeline and the registry that adapter packages add themselves to.
package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// MaxQueryLimit is the hard cap on rows returned by Query.
const MaxQueryLimit = 1000

// SchemaDiscoverer reads a tenant database catalog.
// Each implementation owns its connection and must be closed when done.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all single-column foreign key edges.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// Close releases the database connection.
	Close() error
}

// QueryExecutor runs read-only queries against a tenant database.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a read-only statement and returns bounded results.
	// The query is always wrapped with a dialect-specific row limit:
	//   - limit <= 0 or limit > MaxQueryLimit: MaxQueryLimit
	//   - otherwise: limit
	// Statements run inside a transaction that is never committed.
	// Failures are returned as *ExecutionError.
	Query(ctx context.Context, sqlQuery string, limit int) (*models.ExecutionResult, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the executor.
	Close() error
}

// EffectiveLimit clamps a requested row limit to (0, MaxQueryLimit].
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
