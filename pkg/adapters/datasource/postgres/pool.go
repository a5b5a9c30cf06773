package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
)

// acquirePool returns the tenant's managed pool, or an unmanaged pool owned
// by the caller when connMgr is nil (tests, one-off tools).
func acquirePool(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, tenantID string) (pool *pgxpool.Pool, owned bool, err error) {
	connStr := cfg.ConnectionString()

	if connMgr == nil {
		pool, err = pgxpool.New(ctx, connStr)
		if err != nil {
			return nil, false, fmt.Errorf("connect to postgres: %w", err)
		}
		return pool, true, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, tenantID, "postgres", func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.CreatePostgresPool(ctx, connStr, connMgr.Config())
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	pool, err = datasource.GetPostgresPool(connector)
	if err != nil {
		return nil, false, err
	}
	return pool, false, nil
}
