package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
)

// SchemaDiscoverer reads the PostgreSQL catalog.
type SchemaDiscoverer struct {
	pool      *pgxpool.Pool
	ownedPool bool
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)

// NewSchemaDiscoverer creates a discoverer using the connection manager.
// If connMgr is nil, the discoverer owns an unmanaged pool.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, tenantID string) (*SchemaDiscoverer, error) {
	pool, owned, err := acquirePool(ctx, cfg, connMgr, tenantID)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{pool: pool, ownedPool: owned}, nil
}

// NewSchemaDiscovererFromPool wraps an existing pool the caller keeps owning.
func NewSchemaDiscovererFromPool(pool *pgxpool.Pool) *SchemaDiscoverer {
	return &SchemaDiscoverer{pool: pool}
}

// Close closes the pool only if the discoverer created it.
func (d *SchemaDiscoverer) Close() error {
	if d.ownedPool && d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// DiscoverTables returns all base tables outside the system schemas.
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT
			t.table_schema,
			t.table_name,
			COALESCE(c.reltuples::bigint, 0) AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY t.table_schema, t.table_name
	`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (datasource.TableMetadata, error) {
		var t datasource.TableMetadata
		err := row.Scan(&t.SchemaName, &t.TableName, &t.RowCount)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect tables: %w", err)
	}
	return tables, nil
}

// DiscoverColumns returns columns for a table in ordinal order. Primary keys
// come from pg_index so ORM-created unique indexes flagged primary are found.
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary_key,
			c.ordinal_position
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary
			  AND n.nspname = $1
			  AND t.relname = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := d.pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", schemaName, tableName, err)
	}
	columns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (datasource.ColumnMetadata, error) {
		var c datasource.ColumnMetadata
		err := row.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.OrdinalPosition)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect columns for %s.%s: %w", schemaName, tableName, err)
	}
	return columns, nil
}

// DiscoverForeignKeys returns every foreign key column pair.
func (d *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
		SELECT
			tc.constraint_name,
			kcu.table_schema,
			kcu.table_name,
			kcu.column_name,
			ccu.table_schema,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY kcu.table_name, tc.constraint_name
	`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (datasource.ForeignKeyMetadata, error) {
		var fk datasource.ForeignKeyMetadata
		err := row.Scan(&fk.ConstraintName,
			&fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn)
		return fk, err
	})
}
