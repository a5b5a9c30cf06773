package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// QueryExecutor runs read-only queries on SQL Server.
type QueryExecutor struct {
	db      *sql.DB
	ownedDB bool
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)

// NewQueryExecutor creates an executor using the connection manager.
// If connMgr is nil, the executor owns its connection.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, tenantID string) (*QueryExecutor, error) {
	db, owned, err := acquireDB(ctx, cfg, connMgr, tenantID)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{db: db, ownedDB: owned}, nil
}

// NewQueryExecutorFromDB wraps an existing *sql.DB the caller keeps owning.
func NewQueryExecutorFromDB(db *sql.DB) *QueryExecutor {
	return &QueryExecutor{db: db}
}

// Query runs sqlQuery inside a transaction that is always rolled back.
// SQL Server has no read-only transaction mode, so the rollback is what
// keeps a statement from persisting anything.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*models.ExecutionResult, error) {
	start := time.Now()
	queryToRun := sqlutil.DialectSQLServer.WrapLimit(sqlQuery, datasource.EffectiveLimit(limit))

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, datasource.NewExecutionError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, queryToRun)
	if err != nil {
		return nil, datasource.NewExecutionError(err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, datasource.NewExecutionError(fmt.Errorf("get columns: %w", err))
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, datasource.NewExecutionError(fmt.Errorf("get column types: %w", err))
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, datasource.NewExecutionError(fmt.Errorf("scan row: %w", err))
		}

		row := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			row[col] = normalizeValue(values[i], columnTypes[i].DatabaseTypeName())
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, datasource.NewExecutionError(err)
	}

	return &models.ExecutionResult{
		Columns:  columnNames,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

// Ping verifies the database is reachable.
func (e *QueryExecutor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close closes the connection only if the executor opened it.
func (e *QueryExecutor) Close() error {
	if e.ownedDB && e.db != nil {
		return e.db.Close()
	}
	return nil
}
