package handlers

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/services"
)

type mockAnswerService struct {
	processFunc       func(ctx context.Context, question, tenantID string) (*models.Answer, error)
	processStreamFunc func(ctx context.Context, question, tenantID string, events chan<- llm.StreamEvent) (*models.Answer, error)
}

var _ services.AnswerService = (*mockAnswerService)(nil)

func (m *mockAnswerService) Process(ctx context.Context, question, tenantID string) (*models.Answer, error) {
	return m.processFunc(ctx, question, tenantID)
}

func (m *mockAnswerService) ProcessStream(ctx context.Context, question, tenantID string, events chan<- llm.StreamEvent) (*models.Answer, error) {
	return m.processStreamFunc(ctx, question, tenantID, events)
}

type mockTenantRegistry struct {
	tenants map[string]*models.TenantProfile
}

var _ services.TenantRegistry = (*mockTenantRegistry)(nil)

func (m *mockTenantRegistry) Get(tenantID string) (*models.TenantProfile, error) {
	if p, ok := m.tenants[tenantID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownTenant, tenantID)
}

func (m *mockTenantRegistry) List() []*models.TenantProfile {
	out := make([]*models.TenantProfile, 0, len(m.tenants))
	for _, p := range m.tenants {
		out = append(out, p)
	}
	return out
}

type mockSchemaRegistry struct {
	snapshot    *models.SchemaSnapshot
	invalidated []string
	getCalls    int
}

var _ services.SchemaRegistry = (*mockSchemaRegistry)(nil)

func (m *mockSchemaRegistry) GetSchema(ctx context.Context, tenant *models.TenantProfile) *models.SchemaSnapshot {
	m.getCalls++
	return m.snapshot
}

func (m *mockSchemaRegistry) Discover(ctx context.Context, tenant *models.TenantProfile) (*models.SchemaSnapshot, error) {
	return m.snapshot, nil
}

func (m *mockSchemaRegistry) Invalidate(tenantID string) {
	m.invalidated = append(m.invalidated, tenantID)
}

func testTenants() *mockTenantRegistry {
	return &mockTenantRegistry{tenants: map[string]*models.TenantProfile{
		"acme": {ID: "acme", DisplayName: "Acme", Locale: "en-US", Currency: "USD", BusinessDomain: "technology"},
	}}
}
