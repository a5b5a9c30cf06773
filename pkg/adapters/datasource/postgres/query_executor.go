package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// QueryExecutor runs read-only queries on PostgreSQL.
type QueryExecutor struct {
	pool      *pgxpool.Pool
	ownedPool bool
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)

// NewQueryExecutor creates an executor using the connection manager.
// If connMgr is nil, the executor owns an unmanaged pool.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, tenantID string) (*QueryExecutor, error) {
	pool, owned, err := acquirePool(ctx, cfg, connMgr, tenantID)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{pool: pool, ownedPool: owned}, nil
}

// NewQueryExecutorFromPool wraps an existing pool the caller keeps owning.
func NewQueryExecutorFromPool(pool *pgxpool.Pool) *QueryExecutor {
	return &QueryExecutor{pool: pool}
}

// Query runs sqlQuery in a READ ONLY transaction that is always rolled back.
// See datasource.QueryExecutor.Query for limit behavior.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*models.ExecutionResult, error) {
	start := time.Now()
	queryToRun := sqlutil.DialectPostgres.WrapLimit(sqlQuery, datasource.EffectiveLimit(limit))

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, datasource.NewExecutionError(fmt.Errorf("begin read-only transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	rows, err := tx.Query(ctx, queryToRun)
	if err != nil {
		return nil, datasource.NewExecutionError(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, datasource.NewExecutionError(fmt.Errorf("read row values: %w", err))
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, datasource.NewExecutionError(err)
	}

	return &models.ExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

// Ping verifies the database is reachable.
func (e *QueryExecutor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close closes the pool only if the executor created it.
func (e *QueryExecutor) Close() error {
	if e.ownedPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// normalizeValue converts pgx wire types into plain Go values the result
// interpreter can format.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case []byte:
		return string(val)
	}
	return v
}
