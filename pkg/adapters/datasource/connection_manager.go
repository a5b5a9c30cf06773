package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
)

const (
	DefaultConnectionTTL   = 10 * time.Minute
	DefaultCleanupInterval = 1 * time.Minute
	DefaultPoolMaxConns    = 10
	DefaultPoolMinConns    = 1

	healthCheckTimeout = 5 * time.Second
)

// ConnectionManagerConfig holds configuration for the connection manager.
type ConnectionManagerConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	PoolMaxConns    int32
	PoolMinConns    int32
}

// ConnectorFunc opens a new pool for a tenant datasource.
type ConnectorFunc func(ctx context.Context) (PoolConnector, error)

// ConnectionManager keeps one pool per tenant datasource alive across
// requests and closes pools that have been idle longer than the TTL.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*managedConnection // key: "{tenantID}:{dsType}"
	config      ConnectionManagerConfig
	stopped     bool
	stopChan    chan struct{}
	logger      *zap.Logger
	now         func() time.Time
}

type managedConnection struct {
	connector PoolConnector
	tenantID  string
	lastUsed  time.Time
	mu        sync.Mutex
}

// NewConnectionManager creates a connection manager and starts its
// background cleanup goroutine, which runs until Close is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConnectionTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}

	m := &ConnectionManager{
		connections: make(map[string]*managedConnection),
		config:      cfg,
		stopChan:    make(chan struct{}),
		logger:      logger.Named("connection-manager"),
		now:         time.Now,
	}

	go m.cleanupExpiredConnections()
	return m
}

// Config returns the effective configuration.
func (m *ConnectionManager) Config() ConnectionManagerConfig {
	return m.config
}

// GetOrCreateConnection returns the tenant's pool for dsType, opening it with
// create when absent or when the existing pool fails its health check.
func (m *ConnectionManager) GetOrCreateConnection(ctx context.Context, tenantID, dsType string, create ConnectorFunc) (PoolConnector, error) {
	key := fmt.Sprintf("%s:%s", tenantID, dsType)

	m.mu.RLock()
	managed, exists := m.connections[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := retry.Do(healthCtx, retry.DefaultConfig(), func(ctx context.Context) error {
			return managed.connector.Ping(ctx)
		})
		cancel()

		if err == nil {
			managed.lastUsed = m.now()
			managed.mu.Unlock()
			return managed.connector, nil
		}

		m.logger.Warn("Connection unhealthy, recreating",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)))
		managed.mu.Unlock()
		m.removeConnection(key, managed)
	}

	return m.createConnection(ctx, key, tenantID, create)
}

// createConnection opens and stores a pool. Caller must NOT hold m.mu.
func (m *ConnectionManager) createConnection(ctx context.Context, key, tenantID string, create ConnectorFunc) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager is closed")
	}

	// Another goroutine may have created it while we waited for the lock.
	if managed, exists := m.connections[key]; exists {
		managed.mu.Lock()
		managed.lastUsed = m.now()
		managed.mu.Unlock()
		return managed.connector, nil
	}

	connector, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func(ctx context.Context) (PoolConnector, error) {
		return create(ctx)
	})
	if err != nil {
		m.logger.Error("Failed to open pool",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("open pool for tenant %s: %w", tenantID, err)
	}

	m.connections[key] = &managedConnection{
		connector: connector,
		tenantID:  tenantID,
		lastUsed:  m.now(),
	}

	m.logger.Info("Opened connection pool",
		zap.String("tenant_id", tenantID),
		zap.String("type", connector.GetType()),
		zap.Int("total", len(m.connections)))

	return connector, nil
}

// removeConnection closes and forgets the pool if it is still the one stored
// under key. Caller must NOT hold m.mu.
func (m *ConnectionManager) removeConnection(key string, expected *managedConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.connections[key]; exists && managed == expected {
		_ = managed.connector.Close()
		delete(m.connections, key)
		m.logger.Debug("Removed connection", zap.String("key", key))
	}
}

func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup closes pools idle for longer than the TTL.
// Lock ordering: manager lock, then connection lock.
func (m *ConnectionManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := m.now()
	expired := 0
	for key, managed := range m.connections {
		managed.mu.Lock()
		idle := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idle > m.config.TTL {
			_ = managed.connector.Close()
			delete(m.connections, key)
			expired++
		}
	}

	if expired > 0 {
		m.logger.Info("Cleaned up idle connections",
			zap.Int("count", expired),
			zap.Int("remaining", len(m.connections)))
	}
}

// Close closes all pools and stops the cleanup goroutine. Idempotent.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for _, managed := range m.connections {
		_ = managed.connector.Close()
	}
	m.connections = make(map[string]*managedConnection)
	m.logger.Info("Connection manager closed")
	return nil
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections    int            `json:"total_connections"`
	ConnectionsByTenant map[string]int `json:"connections_by_tenant"`
	TTLSeconds          int            `json:"ttl_seconds"`
	OldestIdleSeconds   int            `json:"oldest_idle_seconds"`
}

// GetStats returns statistics about the connection manager.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	stats := ConnectionStats{
		TotalConnections:    len(m.connections),
		ConnectionsByTenant: make(map[string]int),
		TTLSeconds:          int(m.config.TTL.Seconds()),
	}

	for _, managed := range m.connections {
		stats.ConnectionsByTenant[managed.tenantID]++

		managed.mu.Lock()
		idle := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idle > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idle
		}
	}

	return stats
}
