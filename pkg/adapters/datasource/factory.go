package datasource

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// AdapterFactory creates tenant-scoped adapters from the registry.
type AdapterFactory interface {
	// NewSchemaDiscoverer creates a schema discoverer for the tenant's datasource.
	NewSchemaDiscoverer(ctx context.Context, tenant *models.TenantProfile) (SchemaDiscoverer, error)

	// NewQueryExecutor creates a query executor for the tenant's datasource.
	NewQueryExecutor(ctx context.Context, tenant *models.TenantProfile) (QueryExecutor, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	connMgr *ConnectionManager
}

// NewAdapterFactory returns a factory that uses the global registry.
func NewAdapterFactory(connMgr *ConnectionManager) AdapterFactory {
	return &registryFactory{connMgr: connMgr}
}

func (f *registryFactory) NewSchemaDiscoverer(ctx context.Context, tenant *models.TenantProfile) (SchemaDiscoverer, error) {
	factory := GetSchemaDiscovererFactory(tenant.Datasource.Type)
	if factory == nil {
		return nil, fmt.Errorf("schema discovery not supported for type: %s", tenant.Datasource.Type)
	}
	return factory(ctx, tenant.Datasource.Config, f.connMgr, tenant.ID)
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, tenant *models.TenantProfile) (QueryExecutor, error) {
	factory := GetQueryExecutorFactory(tenant.Datasource.Type)
	if factory == nil {
		return nil, fmt.Errorf("query execution not supported for type: %s", tenant.Datasource.Type)
	}
	return factory(ctx, tenant.Datasource.Config, f.connMgr, tenant.ID)
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements AdapterFactory at compile time.
var _ AdapterFactory = (*registryFactory)(nil)
