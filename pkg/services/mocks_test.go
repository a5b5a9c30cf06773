package services

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// mockDiscoverer is a function-field SchemaDiscoverer.
type mockDiscoverer struct {
	tablesFunc  func(ctx context.Context) ([]datasource.TableMetadata, error)
	columnsFunc func(ctx context.Context, schema, table string) ([]datasource.ColumnMetadata, error)
	fksFunc     func(ctx context.Context) ([]datasource.ForeignKeyMetadata, error)
	closed      atomic.Int32
}

func (m *mockDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	return m.tablesFunc(ctx)
}

func (m *mockDiscoverer) DiscoverColumns(ctx context.Context, schema, table string) ([]datasource.ColumnMetadata, error) {
	return m.columnsFunc(ctx, schema, table)
}

func (m *mockDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	if m.fksFunc == nil {
		return nil, nil
	}
	return m.fksFunc(ctx)
}

func (m *mockDiscoverer) Close() error {
	m.closed.Add(1)
	return nil
}

// mockExecutor is a function-field QueryExecutor.
type mockExecutor struct {
	queryFunc func(ctx context.Context, sql string, limit int) (*models.ExecutionResult, error)
	queries   []string
}

func (m *mockExecutor) Query(ctx context.Context, sql string, limit int) (*models.ExecutionResult, error) {
	m.queries = append(m.queries, sql)
	return m.queryFunc(ctx, sql, limit)
}

func (m *mockExecutor) Ping(context.Context) error { return nil }
func (m *mockExecutor) Close() error              { return nil }

// mockAdapterFactory hands out the configured discoverer and executor.
type mockAdapterFactory struct {
	discoverer    datasource.SchemaDiscoverer
	discovererErr error
	executor      datasource.QueryExecutor
	executorErr   error
	discoverCalls atomic.Int32
}

func (f *mockAdapterFactory) NewSchemaDiscoverer(context.Context, *models.TenantProfile) (datasource.SchemaDiscoverer, error) {
	f.discoverCalls.Add(1)
	if f.discovererErr != nil {
		return nil, f.discovererErr
	}
	return f.discoverer, nil
}

func (f *mockAdapterFactory) NewQueryExecutor(context.Context, *models.TenantProfile) (datasource.QueryExecutor, error) {
	if f.executorErr != nil {
		return nil, f.executorErr
	}
	if f.executor == nil {
		return nil, errors.New("no executor configured")
	}
	return f.executor, nil
}

func (f *mockAdapterFactory) ListTypes() []datasource.AdapterInfo { return nil }

// mockSchemaRegistry returns a fixed snapshot.
type mockSchemaRegistry struct {
	snapshot *models.SchemaSnapshot
}

func (m *mockSchemaRegistry) GetSchema(context.Context, *models.TenantProfile) *models.SchemaSnapshot {
	return m.snapshot
}

func (m *mockSchemaRegistry) Discover(context.Context, *models.TenantProfile) (*models.SchemaSnapshot, error) {
	return m.snapshot, nil
}

func (m *mockSchemaRegistry) Invalidate(string) {}

// mockGeneration is a function-field GenerationService.
type mockGeneration struct {
	generateFunc  func(ctx context.Context, req *models.GenerationRequest) (string, bool, error)
	streamFunc    func(ctx context.Context, prompt string, events chan<- llm.StreamEvent) error
	generateCalls atomic.Int32
}

func (m *mockGeneration) Generate(ctx context.Context, req *models.GenerationRequest) (string, bool, error) {
	m.generateCalls.Add(1)
	return m.generateFunc(ctx, req)
}

func (m *mockGeneration) Stream(ctx context.Context, _ string, prompt, _ string, _ float64, events chan<- llm.StreamEvent) error {
	if m.streamFunc == nil {
		return errors.New("streaming not configured")
	}
	return m.streamFunc(ctx, prompt, events)
}

func hrSnapshot() *models.SchemaSnapshot {
	snap := FallbackSchema("acme", fixedNow)
	snap.Fallback = false
	return snap
}

func testProfile() *models.TenantProfile {
	return &models.TenantProfile{
		ID:             "acme",
		DisplayName:    "Acme",
		Language:       "en",
		Locale:         "en-US",
		BusinessDomain: models.DomainTechnology,
		Currency:       "USD",
		DomainTerms:    []string{"engineer"},
		Datasource:     models.DatasourceConfig{Type: models.DatasourceTypePostgres},
	}
}
