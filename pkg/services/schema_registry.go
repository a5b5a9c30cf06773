package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/workpool"
)

// SchemaRegistry discovers and caches per-tenant schema snapshots.
type SchemaRegistry interface {
	// GetSchema returns the cached snapshot if fresh, otherwise rediscovers it.
	// It never fails: discovery faults yield the built-in fallback schema.
	GetSchema(ctx context.Context, tenant *models.TenantProfile) *models.SchemaSnapshot

	// Discover reads the tenant catalog, restricted to the tenant's business tables.
	Discover(ctx context.Context, tenant *models.TenantProfile) (*models.SchemaSnapshot, error)

	// Invalidate drops the cached snapshot so the next GetSchema rediscovers.
	Invalidate(tenantID string)
}

// SchemaRegistryConfig controls snapshot lifetimes and discovery bounds.
type SchemaRegistryConfig struct {
	TTL              time.Duration
	FallbackTTL      time.Duration
	DiscoveryTimeout time.Duration
	Workers          int
}

type schemaEntry struct {
	snapshot  *models.SchemaSnapshot
	expiresAt time.Time
}

type schemaRegistry struct {
	adapters datasource.AdapterFactory
	pool     *workpool.Pool
	config   SchemaRegistryConfig
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[string]schemaEntry
	group   singleflight.Group
	now     func() time.Time
}

var _ SchemaRegistry = (*schemaRegistry)(nil)

// NewSchemaRegistry creates a registry backed by the adapter factory.
func NewSchemaRegistry(adapters datasource.AdapterFactory, config SchemaRegistryConfig, logger *zap.Logger) SchemaRegistry {
	return newSchemaRegistry(adapters, config, logger)
}

func newSchemaRegistry(adapters datasource.AdapterFactory, config SchemaRegistryConfig, logger *zap.Logger) *schemaRegistry {
	if config.TTL <= 0 {
		config.TTL = 45 * time.Minute
	}
	if config.FallbackTTL <= 0 {
		config.FallbackTTL = time.Minute
	}
	if config.DiscoveryTimeout <= 0 {
		config.DiscoveryTimeout = 15 * time.Second
	}
	logger = logger.Named("schema-registry")
	return &schemaRegistry{
		adapters: adapters,
		pool:     workpool.New(workpool.Config{MaxConcurrent: config.Workers}, logger),
		config:   config,
		logger:   logger,
		entries:  make(map[string]schemaEntry),
		now:      time.Now,
	}
}

func (r *schemaRegistry) GetSchema(ctx context.Context, tenant *models.TenantProfile) *models.SchemaSnapshot {
	if snap := r.cached(tenant.ID); snap != nil {
		return snap
	}

	v, _, _ := r.group.Do(tenant.ID, func() (any, error) {
		// A concurrent flight may have just stored a fresh entry.
		if snap := r.cached(tenant.ID); snap != nil {
			return snap, nil
		}

		// The flight is shared, so one caller's cancellation must not
		// fail the others.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.DiscoveryTimeout)
		defer cancel()

		snap, err := r.Discover(dctx, tenant)
		ttl := r.config.TTL
		if err != nil {
			r.logger.Warn("Schema discovery failed; using fallback schema",
				zap.String("tenant_id", tenant.ID),
				zap.Error(fmt.Errorf("%w: %s", apperrors.ErrSchemaUnavailable, logging.SanitizeError(err))))
			metrics.IncrementSchemaFallback()
			snap = FallbackSchema(tenant.ID, r.now())
			ttl = r.config.FallbackTTL
		}

		r.mu.Lock()
		r.entries[tenant.ID] = schemaEntry{snapshot: snap, expiresAt: r.now().Add(ttl)}
		r.mu.Unlock()
		return snap, nil
	})
	return v.(*models.SchemaSnapshot)
}

func (r *schemaRegistry) cached(tenantID string) *models.SchemaSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[tenantID]
	if !ok || !r.now().Before(entry.expiresAt) {
		return nil
	}
	return entry.snapshot
}

func (r *schemaRegistry) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.entries, tenantID)
	r.mu.Unlock()
	r.group.Forget(tenantID)
}

type discoveredTable struct {
	table      models.Table
	primaryKey []string
}

func (r *schemaRegistry) Discover(ctx context.Context, tenant *models.TenantProfile) (*models.SchemaSnapshot, error) {
	discoverer, err := r.adapters.NewSchemaDiscoverer(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema discoverer: %w", err)
	}
	defer discoverer.Close()

	tables, err := discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tables: %w", err)
	}

	allowed := make(map[string]bool, len(tenant.BusinessTables))
	for _, t := range tenant.BusinessTables {
		allowed[strings.ToLower(t)] = true
	}

	seen := make(map[string]bool)
	var items []workpool.Item[discoveredTable]
	for _, t := range tables {
		name := strings.ToLower(t.TableName)
		if len(allowed) > 0 && !allowed[name] {
			continue
		}
		// The same table name in two schemas would be ambiguous in prompts.
		if seen[name] {
			continue
		}
		seen[name] = true

		items = append(items, workpool.Item[discoveredTable]{
			ID: t.SchemaName + "." + t.TableName,
			Execute: func(ctx context.Context) (discoveredTable, error) {
				cols, err := discoverer.DiscoverColumns(ctx, t.SchemaName, t.TableName)
				if err != nil {
					return discoveredTable{}, fmt.Errorf("failed to discover columns for %s.%s: %w", t.SchemaName, t.TableName, err)
				}
				dt := discoveredTable{table: models.Table{Name: t.TableName}}
				for _, c := range cols {
					dt.table.Columns = append(dt.table.Columns, models.Column{
						Name:     c.ColumnName,
						DataType: c.DataType,
						Nullable: c.IsNullable,
					})
					if c.IsPrimaryKey {
						dt.primaryKey = append(dt.primaryKey, c.ColumnName)
					}
				}
				return dt, nil
			},
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no business tables discovered (%d tables in catalog)", len(tables))
	}

	snap := &models.SchemaSnapshot{TenantID: tenant.ID, DiscoveredAt: r.now()}
	for _, res := range workpool.Process(ctx, r.pool, items) {
		if res.Err != nil {
			return nil, res.Err
		}
		if len(res.Value.table.Columns) == 0 {
			continue
		}
		t := res.Value.table
		t.PrimaryKey = res.Value.primaryKey
		snap.Tables = append(snap.Tables, t)
	}
	if len(snap.Tables) == 0 {
		return nil, fmt.Errorf("discovered tables have no readable columns")
	}

	fks, err := discoverer.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover foreign keys: %w", err)
	}
	for _, fk := range fks {
		if !snap.HasTable(fk.SourceTable) || !snap.HasTable(fk.TargetTable) {
			continue
		}
		snap.ForeignKeys = append(snap.ForeignKeys, models.ForeignKey{
			Table:     fk.SourceTable,
			Column:    fk.SourceColumn,
			RefTable:  fk.TargetTable,
			RefColumn: fk.TargetColumn,
		})
	}

	r.logger.Info("Schema discovered",
		zap.String("tenant_id", tenant.ID),
		zap.Int("tables", len(snap.Tables)),
		zap.Int("foreign_keys", len(snap.ForeignKeys)))
	return snap, nil
}

// FallbackSchema is the minimal HR schema substituted when discovery fails.
func FallbackSchema(tenantID string, now time.Time) *models.SchemaSnapshot {
	col := func(name, dataType string, nullable bool) models.Column {
		return models.Column{Name: name, DataType: dataType, Nullable: nullable}
	}
	return &models.SchemaSnapshot{
		TenantID:     tenantID,
		DiscoveredAt: now,
		Fallback:     true,
		Tables: []models.Table{
			{
				Name: "employees",
				Columns: []models.Column{
					col("id", "integer", false),
					col("name", "character varying", false),
					col("email", "character varying", true),
					col("department", "character varying", true),
					col("position", "character varying", true),
					col("salary", "numeric", true),
					col("hire_date", "date", true),
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "departments",
				Columns: []models.Column{
					col("id", "integer", false),
					col("name", "character varying", false),
					col("budget", "numeric", true),
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "projects",
				Columns: []models.Column{
					col("id", "integer", false),
					col("name", "character varying", false),
					col("description", "text", true),
					col("status", "character varying", true),
					col("budget", "numeric", true),
					col("start_date", "date", true),
					col("end_date", "date", true),
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "project_assignments",
				Columns: []models.Column{
					col("id", "integer", false),
					col("employee_id", "integer", false),
					col("project_id", "integer", false),
					col("role", "character varying", true),
				},
				PrimaryKey: []string{"id"},
			},
		},
		ForeignKeys: []models.ForeignKey{
			{Table: "project_assignments", Column: "employee_id", RefTable: "employees", RefColumn: "id"},
			{Table: "project_assignments", Column: "project_id", RefTable: "projects", RefColumn: "id"},
		},
	}
}
