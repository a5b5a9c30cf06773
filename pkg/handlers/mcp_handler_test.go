package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/mcp"
	"github.com/ekaya-inc/ekaya-ask/pkg/mcp/tools"
)

func newTestMCPMux() *http.ServeMux {
	logger := zap.NewNop()
	mcpServer := mcp.NewServer("test", "test-version", logger)
	tools.RegisterHealthTool(mcpServer.MCP(), "test-version", nil)

	mux := http.NewServeMux()
	NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	return mux
}

func TestMCPHandler_ToolsList(t *testing.T) {
	mux := newTestMCPMux()

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "2.0", response["jsonrpc"])
	assert.Equal(t, float64(1), response["id"])
	assert.Contains(t, response, "result")
}

func TestMCPHandler_ToolsCall(t *testing.T) {
	mux := newTestMCPMux()

	body := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"health"},"id":7}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test-version")
}

func TestMCPHandler_RejectsGet(t *testing.T) {
	mux := newTestMCPMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
