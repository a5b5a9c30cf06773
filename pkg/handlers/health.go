package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/config"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
)

// ServiceName is reported by /ping and the MCP health tool.
const ServiceName = "ekaya-ask"

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse reports liveness plus the state of the shared backends.
type HealthResponse struct {
	Status      string                       `json:"status"`
	Generation  string                       `json:"generation,omitempty"`
	Connections *datasource.ConnectionStats `json:"connections,omitempty"`
}

// ConnectionStatsProvider is satisfied by *datasource.ConnectionManager.
type ConnectionStatsProvider interface {
	GetStats() datasource.ConnectionStats
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	conns   ConnectionStatsProvider
	breaker *llm.CircuitBreaker
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. conns and breaker may be nil.
func NewHealthHandler(cfg *config.Config, conns ConnectionStatsProvider, breaker *llm.CircuitBreaker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, conns: conns, breaker: breaker, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Status is "degraded" while the generation breaker is open.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}

	if h.breaker != nil {
		state := h.breaker.State()
		response.Generation = state.String()
		if state == llm.CircuitOpen {
			response.Status = "degraded"
		}
	}

	if h.conns != nil {
		stats := h.conns.GetStats()
		response.Connections = &stats
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     ServiceName,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
