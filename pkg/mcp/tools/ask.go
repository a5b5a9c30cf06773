package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/services"
)

// AskToolDeps are the collaborators of the ask and list_tenants tools.
type AskToolDeps struct {
	Answers services.AnswerService
	Tenants services.TenantRegistry
	Logger  *zap.Logger
}

type tenantSummary struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	BusinessDomain string `json:"business_domain"`
	Locale         string `json:"locale"`
	Currency       string `json:"currency"`
	Datasource     string `json:"datasource"`
}

// RegisterAskTools adds the ask and list_tenants tools to the MCP server.
func RegisterAskTools(s *server.MCPServer, deps *AskToolDeps) {
	registerAskTool(s, deps)
	registerListTenantsTool(s, deps)
}

func registerAskTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		"ask",
		mcp.WithDescription(
			"Answers a natural-language question about a tenant's business data. "+
				"Returns the answer text together with the SQL that produced it, the row count and a confidence score. "+
				"Greetings and small talk are answered without querying the database.",
		),
		mcp.WithString(
			"tenant_id",
			mcp.Required(),
			mcp.Description("Tenant to query (see list_tenants)"),
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. \"How many employees are in each department?\""),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantID, err := req.RequireString("tenant_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		answer, err := deps.Answers.Process(ctx, question, tenantID)
		if err != nil {
			if result, ok := requestErrorResult(err); ok {
				return result, nil
			}
			deps.Logger.Error("ask tool failed", zap.String("tenant_id", tenantID), zap.Error(err))
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		jsonResult, err := json.Marshal(answer)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

func registerListTenantsTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		"list_tenants",
		mcp.WithDescription("Lists the tenants that can be queried with the ask tool"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profiles := deps.Tenants.List()
		tenants := make([]tenantSummary, 0, len(profiles))
		for _, p := range profiles {
			tenants = append(tenants, tenantSummary{
				ID:             p.ID,
				DisplayName:    p.DisplayName,
				BusinessDomain: p.BusinessDomain,
				Locale:         p.Locale,
				Currency:       p.Currency,
				Datasource:     p.Datasource.Type,
			})
		}

		jsonResult, err := json.Marshal(map[string]any{"tenants": tenants})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tenants: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
