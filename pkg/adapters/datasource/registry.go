package datasource

import (
	"context"
	"sort"
	"sync"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "mssql"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
}

// SchemaDiscovererFactory builds a discoverer for one tenant.
type SchemaDiscovererFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, tenantID string) (SchemaDiscoverer, error)

// QueryExecutorFactory builds an executor for one tenant.
type QueryExecutorFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, tenantID string) (QueryExecutor, error)

// AdapterRegistration contains info and factories for one datasource type.
type AdapterRegistration struct {
	Info                    AdapterInfo
	SchemaDiscovererFactory SchemaDiscovererFactory
	QueryExecutorFactory    QueryExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetSchemaDiscovererFactory returns nil if dsType is not registered.
func GetSchemaDiscovererFactory(dsType string) SchemaDiscovererFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.SchemaDiscovererFactory
	}
	return nil
}

// GetQueryExecutorFactory returns nil if dsType is not registered.
func GetQueryExecutorFactory(dsType string) QueryExecutorFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.QueryExecutorFactory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
