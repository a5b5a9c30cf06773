package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
)

type healthResult struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Generation string `json:"generation,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and, when breaker is
// non-nil, the state of the generation circuit.
func RegisterHealthTool(s *server.MCPServer, version string, breaker *llm.CircuitBreaker) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version}
		if breaker != nil {
			state := breaker.State()
			res.Generation = state.String()
			if state == llm.CircuitOpen {
				res.Status = "degraded"
			}
		}

		result, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
