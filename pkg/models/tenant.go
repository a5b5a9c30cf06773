package models

// Datasource types supported by the adapter registry.
const (
	DatasourceTypePostgres = "postgres"
	DatasourceTypeMSSQL    = "mssql"
)

// Business domains with dedicated prompt framing. Any other value is
// treated as DomainGeneral.
const (
	DomainTechnology = "technology"
	DomainRetail     = "retail"
	DomainFinance    = "finance"
	DomainHealthcare = "healthcare"
	DomainGeneral    = "general"
)

// TenantProfile describes one isolated business customer.
// Profiles are loaded once at startup and never mutated afterwards.
type TenantProfile struct {
	ID             string `json:"id" yaml:"id"`
	DisplayName    string `json:"display_name" yaml:"display_name"`
	Language       string `json:"language" yaml:"language"`
	Locale         string `json:"locale" yaml:"locale"`
	BusinessDomain string `json:"business_domain" yaml:"business_domain"`
	Model          string `json:"model,omitempty" yaml:"model"`
	Currency       string `json:"currency" yaml:"currency"`

	// BusinessTables is the allow-list used during schema discovery.
	// Empty means every non-system table.
	BusinessTables []string `json:"business_tables,omitempty" yaml:"business_tables"`

	// DomainTerms are role or entity names specific to this tenant
	// ("engineer", "nurse", "sku") that signal a business question.
	DomainTerms []string `json:"domain_terms,omitempty" yaml:"domain_terms"`

	Datasource DatasourceConfig `json:"-" yaml:"datasource"`
}

// DatasourceConfig locates a tenant's database. Config keys are adapter
// specific (host, port, user, database, ...). Secrets are referenced by
// environment variable name via password_env rather than stored inline.
type DatasourceConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

// Dialect returns the SQL dialect name for the tenant's datasource.
func (p *TenantProfile) Dialect() string {
	if p.Datasource.Type == DatasourceTypeMSSQL {
		return DatasourceTypeMSSQL
	}
	return DatasourceTypePostgres
}

// Domain returns the business domain, defaulting to DomainGeneral.
func (p *TenantProfile) Domain() string {
	switch p.BusinessDomain {
	case DomainTechnology, DomainRetail, DomainFinance, DomainHealthcare:
		return p.BusinessDomain
	}
	return DomainGeneral
}
