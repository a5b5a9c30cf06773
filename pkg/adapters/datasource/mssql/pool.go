package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
)

// openDB opens a *sql.DB sized by the manager config.
func openDB(ctx context.Context, cfg *Config, mc datasource.ConnectionManagerConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open SQL Server connection: %w", err)
	}
	db.SetMaxOpenConns(int(mc.PoolMaxConns))
	db.SetMaxIdleConns(int(mc.PoolMinConns))
	db.SetConnMaxIdleTime(mc.TTL)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	return db, nil
}

// acquireDB returns the tenant's managed *sql.DB, or an unmanaged one owned
// by the caller when connMgr is nil.
func acquireDB(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, tenantID string) (db *sql.DB, owned bool, err error) {
	if connMgr == nil {
		db, err = openDB(ctx, cfg, datasource.ConnectionManagerConfig{
			PoolMaxConns: datasource.DefaultPoolMaxConns,
			PoolMinConns: datasource.DefaultPoolMinConns,
			TTL:          datasource.DefaultConnectionTTL,
		})
		if err != nil {
			return nil, false, err
		}
		return db, true, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, tenantID, "mssql", func(ctx context.Context) (datasource.PoolConnector, error) {
		db, err := openDB(ctx, cfg, connMgr.Config())
		if err != nil {
			return nil, err
		}
		return datasource.NewMSSQLPoolWrapper(db), nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err = datasource.GetMSSQLDB(connector)
	if err != nil {
		return nil, false, err
	}
	return db, false, nil
}
