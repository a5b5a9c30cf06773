package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func hrDiscoverer() *mockDiscoverer {
	columns := map[string][]datasource.ColumnMetadata{
		"employees": {
			{ColumnName: "id", DataType: "integer", IsPrimaryKey: true, OrdinalPosition: 1},
			{ColumnName: "name", DataType: "text", OrdinalPosition: 2},
			{ColumnName: "department_id", DataType: "integer", IsNullable: true, OrdinalPosition: 3},
		},
		"departments": {
			{ColumnName: "id", DataType: "integer", IsPrimaryKey: true, OrdinalPosition: 1},
			{ColumnName: "name", DataType: "text", OrdinalPosition: 2},
		},
		"audit_log": {
			{ColumnName: "id", DataType: "bigint", IsPrimaryKey: true, OrdinalPosition: 1},
		},
	}
	return &mockDiscoverer{
		tablesFunc: func(context.Context) ([]datasource.TableMetadata, error) {
			return []datasource.TableMetadata{
				{SchemaName: "public", TableName: "employees"},
				{SchemaName: "public", TableName: "departments"},
				{SchemaName: "archive", TableName: "employees"},
				{SchemaName: "public", TableName: "audit_log"},
			}, nil
		},
		columnsFunc: func(_ context.Context, _, table string) ([]datasource.ColumnMetadata, error) {
			return columns[table], nil
		},
		fksFunc: func(context.Context) ([]datasource.ForeignKeyMetadata, error) {
			return []datasource.ForeignKeyMetadata{
				{SourceTable: "employees", SourceColumn: "department_id", TargetTable: "departments", TargetColumn: "id"},
				{SourceTable: "audit_log", SourceColumn: "id", TargetTable: "employees", TargetColumn: "id"},
			}, nil
		},
	}
}

func newTestSchemaRegistry(factory datasource.AdapterFactory) *schemaRegistry {
	reg := newSchemaRegistry(factory, SchemaRegistryConfig{
		TTL:         45 * time.Minute,
		FallbackTTL: time.Minute,
		Workers:     2,
	}, zap.NewNop())
	reg.now = func() time.Time { return fixedNow }
	return reg
}

func TestSchemaRegistry_DiscoverAppliesAllowList(t *testing.T) {
	disc := hrDiscoverer()
	reg := newTestSchemaRegistry(&mockAdapterFactory{discoverer: disc})

	tenant := testProfile()
	tenant.BusinessTables = []string{"employees", "departments"}

	snap, err := reg.Discover(context.Background(), tenant)
	require.NoError(t, err)

	assert.False(t, snap.Fallback)
	assert.ElementsMatch(t, []string{"employees", "departments"}, snap.TableNames())
	assert.False(t, snap.HasTable("audit_log"))

	emp, ok := snap.Table("employees")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "department_id"}, emp.ColumnNames())
	assert.Equal(t, []string{"id"}, emp.PrimaryKey)

	// Edges touching tables outside the snapshot are dropped.
	require.Len(t, snap.ForeignKeys, 1)
	assert.Equal(t, "department_id", snap.ForeignKeys[0].Column)
	assert.Equal(t, int32(1), disc.closed.Load())
}

func TestSchemaRegistry_DiscoverWithoutAllowListKeepsAllTables(t *testing.T) {
	reg := newTestSchemaRegistry(&mockAdapterFactory{discoverer: hrDiscoverer()})

	snap, err := reg.Discover(context.Background(), testProfile())
	require.NoError(t, err)

	assert.Len(t, snap.Tables, 3)
	assert.Len(t, snap.ForeignKeys, 2)
}

func TestSchemaRegistry_DiscoverNoMatchingTables(t *testing.T) {
	reg := newTestSchemaRegistry(&mockAdapterFactory{discoverer: hrDiscoverer()})

	tenant := testProfile()
	tenant.BusinessTables = []string{"orders"}

	_, err := reg.Discover(context.Background(), tenant)
	require.Error(t, err)
}

func TestSchemaRegistry_GetSchemaCachesUntilTTL(t *testing.T) {
	factory := &mockAdapterFactory{discoverer: hrDiscoverer()}
	reg := newTestSchemaRegistry(factory)
	tenant := testProfile()

	first := reg.GetSchema(context.Background(), tenant)
	second := reg.GetSchema(context.Background(), tenant)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), factory.discoverCalls.Load())

	reg.now = func() time.Time { return fixedNow.Add(46 * time.Minute) }
	third := reg.GetSchema(context.Background(), tenant)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), factory.discoverCalls.Load())
}

func TestSchemaRegistry_GetSchemaFallsBackOnFailure(t *testing.T) {
	factory := &mockAdapterFactory{discovererErr: errors.New("connection refused")}
	reg := newTestSchemaRegistry(factory)
	tenant := testProfile()

	snap := reg.GetSchema(context.Background(), tenant)
	require.NotNil(t, snap)
	assert.True(t, snap.Fallback)
	assert.Equal(t, "acme", snap.TenantID)
	assert.True(t, snap.HasTable("employees"))

	// The fallback is cached for the short TTL only.
	reg.GetSchema(context.Background(), tenant)
	assert.Equal(t, int32(1), factory.discoverCalls.Load())

	reg.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	reg.GetSchema(context.Background(), tenant)
	assert.Equal(t, int32(2), factory.discoverCalls.Load())
}

func TestSchemaRegistry_Invalidate(t *testing.T) {
	factory := &mockAdapterFactory{discoverer: hrDiscoverer()}
	reg := newTestSchemaRegistry(factory)
	tenant := testProfile()

	reg.GetSchema(context.Background(), tenant)
	reg.Invalidate(tenant.ID)
	reg.GetSchema(context.Background(), tenant)

	assert.Equal(t, int32(2), factory.discoverCalls.Load())
}

func TestSchemaRegistry_ConcurrentGetSchemaDiscoversOnce(t *testing.T) {
	release := make(chan struct{})
	disc := hrDiscoverer()
	tables := disc.tablesFunc
	disc.tablesFunc = func(ctx context.Context) ([]datasource.TableMetadata, error) {
		<-release
		return tables(ctx)
	}
	factory := &mockAdapterFactory{discoverer: disc}
	reg := newTestSchemaRegistry(factory)
	tenant := testProfile()

	const callers = 8
	results := make([]*models.SchemaSnapshot, callers)
	var started, done sync.WaitGroup
	for i := range callers {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			started.Done()
			results[i] = reg.GetSchema(context.Background(), tenant)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	for _, snap := range results {
		require.NotNil(t, snap)
		assert.False(t, snap.Fallback)
	}
	assert.Equal(t, int32(1), factory.discoverCalls.Load())
}

func TestSchemaRegistry_CallerCancellationDoesNotFailDiscovery(t *testing.T) {
	reg := newTestSchemaRegistry(&mockAdapterFactory{discoverer: hrDiscoverer()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := reg.GetSchema(ctx, testProfile())
	assert.False(t, snap.Fallback)
}

func TestFallbackSchema(t *testing.T) {
	snap := FallbackSchema("acme", fixedNow)

	assert.True(t, snap.Fallback)
	assert.Equal(t, []string{"employees", "departments", "projects", "project_assignments"}, snap.TableNames())
	assert.Len(t, snap.ForeignKeysBetween("project_assignments", "employees"), 1)
	assert.Len(t, snap.ForeignKeysBetween("projects", "project_assignments"), 1)
}
