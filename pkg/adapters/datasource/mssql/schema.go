package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
)

// SchemaDiscoverer reads the SQL Server catalog views.
type SchemaDiscoverer struct {
	db      *sql.DB
	ownedDB bool
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)

// NewSchemaDiscoverer creates a discoverer using the connection manager.
// If connMgr is nil, the discoverer owns its connection.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, tenantID string) (*SchemaDiscoverer, error) {
	db, owned, err := acquireDB(ctx, cfg, connMgr, tenantID)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{db: db, ownedDB: owned}, nil
}

// NewSchemaDiscovererFromDB wraps an existing *sql.DB the caller keeps owning.
func NewSchemaDiscovererFromDB(db *sql.DB) *SchemaDiscoverer {
	return &SchemaDiscoverer{db: db}
}

// DiscoverTables returns all user tables.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name,
	    SUM(p.rows) AS row_count
	FROM sys.tables t
	INNER JOIN sys.partitions p ON t.object_id = p.object_id
	WHERE p.index_id IN (0, 1)
	  AND t.is_ms_shipped = 0
	GROUP BY t.schema_id, t.name
	ORDER BY table_schema, table_name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	return scanAll(rows, func(r *sql.Rows) (datasource.TableMetadata, error) {
		var t datasource.TableMetadata
		err := r.Scan(&t.SchemaName, &t.TableName, &t.RowCount)
		return t, err
	})
}

// DiscoverColumns returns columns for a table in ordinal order.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
	    c.column_id AS ordinal_position
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", schemaName, tableName, err)
	}
	return scanAll(rows, func(r *sql.Rows) (datasource.ColumnMetadata, error) {
		var col datasource.ColumnMetadata
		var isNullable, isPrimary int
		if err := r.Scan(&col.ColumnName, &col.DataType, &isNullable, &isPrimary, &col.OrdinalPosition); err != nil {
			return col, err
		}
		col.IsNullable = isNullable == 1
		col.IsPrimaryKey = isPrimary == 1
		col.DataType = mapSQLServerType(col.DataType)
		return col, nil
	})
}

// DiscoverForeignKeys returns every foreign key column pair.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
	SELECT
	    fk.name AS constraint_name,
	    SCHEMA_NAME(fk.schema_id) AS source_schema,
	    OBJECT_NAME(fk.parent_object_id) AS source_table,
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
	    SCHEMA_NAME(rt.schema_id) AS target_schema,
	    OBJECT_NAME(fk.referenced_object_id) AS target_table,
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
	WHERE fk.is_ms_shipped = 0
	ORDER BY source_schema, source_table, fk.name, fkc.constraint_column_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	return scanAll(rows, func(r *sql.Rows) (datasource.ForeignKeyMetadata, error) {
		var fk datasource.ForeignKeyMetadata
		err := r.Scan(&fk.ConstraintName,
			&fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn)
		return fk, err
	})
}

// Close closes the connection only if the discoverer opened it.
func (s *SchemaDiscoverer) Close() error {
	if s.ownedDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}
