package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

const (
	defaultLocale   = "en-US"
	defaultCurrency = "USD"
)

// TenantRegistry resolves tenant profiles. Profiles are immutable after load.
type TenantRegistry interface {
	// Get returns the profile or apperrors.ErrUnknownTenant.
	Get(tenantID string) (*models.TenantProfile, error)

	// List returns all profiles sorted by ID.
	List() []*models.TenantProfile
}

type tenantRegistry struct {
	tenants map[string]*models.TenantProfile
	ordered []*models.TenantProfile
}

var _ TenantRegistry = (*tenantRegistry)(nil)

type tenantsFile struct {
	Tenants []models.TenantProfile `yaml:"tenants"`
}

// LoadTenantRegistry reads tenant profiles from a YAML file.
func LoadTenantRegistry(path string, logger *zap.Logger) (TenantRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}

	var file tenantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file %s: %w", path, err)
	}

	reg, err := NewTenantRegistry(file.Tenants)
	if err != nil {
		return nil, err
	}

	logger.Named("tenants").Info("Loaded tenant profiles",
		zap.String("path", path),
		zap.Int("count", len(file.Tenants)))
	return reg, nil
}

// NewTenantRegistry validates profiles and fills defaults. Any invalid
// profile fails the whole load.
func NewTenantRegistry(profiles []models.TenantProfile) (TenantRegistry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no tenants configured", apperrors.ErrInvalidRequest)
	}

	reg := &tenantRegistry{tenants: make(map[string]*models.TenantProfile, len(profiles))}
	for i := range profiles {
		p := profiles[i]
		if err := normalizeProfile(&p); err != nil {
			return nil, fmt.Errorf("tenant %d (%q): %w", i, p.ID, err)
		}
		if _, dup := reg.tenants[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate tenant id %q", apperrors.ErrInvalidRequest, p.ID)
		}
		reg.tenants[p.ID] = &p
		reg.ordered = append(reg.ordered, &p)
	}

	sort.Slice(reg.ordered, func(i, j int) bool { return reg.ordered[i].ID < reg.ordered[j].ID })
	return reg, nil
}

func normalizeProfile(p *models.TenantProfile) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", apperrors.ErrInvalidRequest)
	}
	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}

	if p.Locale == "" {
		p.Locale = defaultLocale
	}
	tag, err := language.Parse(p.Locale)
	if err != nil {
		return fmt.Errorf("%w: invalid locale %q: %v", apperrors.ErrInvalidRequest, p.Locale, err)
	}
	p.Locale = tag.String()
	if p.Language == "" {
		base, _ := tag.Base()
		p.Language = base.String()
	}

	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	unit, err := currency.ParseISO(p.Currency)
	if err != nil {
		return fmt.Errorf("%w: invalid currency %q: %v", apperrors.ErrInvalidRequest, p.Currency, err)
	}
	p.Currency = unit.String()

	p.BusinessDomain = strings.ToLower(strings.TrimSpace(p.BusinessDomain))
	if p.BusinessDomain == "" {
		p.BusinessDomain = models.DomainGeneral
	}

	if p.Datasource.Type == "" {
		return fmt.Errorf("%w: datasource type is required", apperrors.ErrInvalidRequest)
	}
	if !datasource.IsRegistered(p.Datasource.Type) {
		return fmt.Errorf("%w: unsupported datasource type %q", apperrors.ErrInvalidRequest, p.Datasource.Type)
	}

	p.BusinessTables = lowerAll(p.BusinessTables)
	p.DomainTerms = lowerAll(p.DomainTerms)
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *tenantRegistry) Get(tenantID string) (*models.TenantProfile, error) {
	p, ok := r.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownTenant, tenantID)
	}
	return p, nil
}

func (r *tenantRegistry) List() []*models.TenantProfile {
	out := make([]*models.TenantProfile, len(r.ordered))
	copy(out, r.ordered)
	return out
}
