package prompts

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

func testSnapshot() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		TenantID: "acme",
		Tables: []models.Table{
			{Name: "employees", PrimaryKey: []string{"id"}, Columns: []models.Column{
				{Name: "id", DataType: "integer"},
				{Name: "name", DataType: "text"},
				{Name: "department", DataType: "text", Nullable: true},
				{Name: "salary", DataType: "numeric", Nullable: true},
			}},
			{Name: "projects", PrimaryKey: []string{"id"}, Columns: []models.Column{
				{Name: "id", DataType: "integer"},
				{Name: "name", DataType: "text"},
				{Name: "status", DataType: "text", Nullable: true},
			}},
			{Name: "project_assignments", Columns: []models.Column{
				{Name: "employee_id", DataType: "integer"},
				{Name: "project_id", DataType: "integer"},
			}},
		},
		ForeignKeys: []models.ForeignKey{
			{Table: "project_assignments", Column: "employee_id", RefTable: "employees", RefColumn: "id"},
			{Table: "project_assignments", Column: "project_id", RefTable: "projects", RefColumn: "id"},
		},
	}
}

func testTenant(dsType string) *models.TenantProfile {
	return &models.TenantProfile{
		ID:             "acme",
		DisplayName:    "Acme",
		BusinessDomain: models.DomainRetail,
		Model:          "gpt-4o-mini",
		Datasource:     models.DatasourceConfig{Type: dsType},
	}
}

func intent(st models.IntentSubType) models.IntentClassification {
	return models.IntentClassification{Category: models.IntentBusinessQuery, SubType: st, ShouldGenerateSQL: true}
}

var exampleBlock = regexp.MustCompile("(?s)```sql\n(.*?)\n```")

func TestCompose_Request(t *testing.T) {
	c := NewComposer(100, 0.1)

	req := c.Compose("How many employees per department?", testSnapshot(), testTenant(models.DatasourceTypePostgres), intent(models.SubTypeCounting))

	assert.Equal(t, "acme", req.TenantID)
	assert.Equal(t, "retail/counting", req.TemplateID)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, SQLSystemMessage, req.SystemMessage)

	assert.Contains(t, req.Prompt, "The company is a retailer.")
	assert.Contains(t, req.Prompt, "Dialect: PostgreSQL")
	assert.Contains(t, req.Prompt, "Table employees\n  - id (integer primary key not null)\n")
	assert.Contains(t, req.Prompt, "  - department (text)\n")
	assert.Contains(t, req.Prompt, "project_assignments.employee_id → employees.id")
	assert.Contains(t, req.Prompt, "Always end the query with LIMIT 100 (or fewer).")
	assert.Contains(t, req.Prompt, "ILIKE")
	assert.Contains(t, req.Prompt, "COALESCE(column, 'Unassigned')")
	assert.Contains(t, req.Prompt, "# Question\n\nHow many employees per department?\n")
}

func TestCompose_Deterministic(t *testing.T) {
	c := NewComposer(50, 0.2)
	tenant := testTenant(models.DatasourceTypePostgres)

	first := c.Compose("Who works on which project?", testSnapshot(), tenant, intent(models.SubTypeRelationship))
	second := c.Compose("Who works on which project?", testSnapshot(), tenant, intent(models.SubTypeRelationship))

	assert.Equal(t, first, second)
}

func TestCompose_ExamplesUseOnlySnapshotIdentifiers(t *testing.T) {
	snap := testSnapshot()
	subTypes := []models.IntentSubType{
		models.SubTypeCounting, models.SubTypeListing, models.SubTypeRelationship,
		models.SubTypeFinancial, models.SubTypeAnalysis, models.SubTypeGeneral,
	}

	for _, ds := range []string{models.DatasourceTypePostgres, models.DatasourceTypeMSSQL} {
		for _, st := range subTypes {
			t.Run(fmt.Sprintf("%s/%s", ds, st), func(t *testing.T) {
				req := NewComposer(100, 0).Compose("question", snap, testTenant(ds), intent(st))

				blocks := exampleBlock.FindAllStringSubmatch(req.Prompt, -1)
				require.NotEmpty(t, blocks)
				for _, b := range blocks {
					_, issues := sqlutil.ValidateReadOnly(b[1], snap)
					assert.Empty(t, issues, b[1])
				}
			})
		}
	}
}

func TestCompose_RelationshipExampleUsesJunction(t *testing.T) {
	req := NewComposer(100, 0).Compose("Who works on which project?", testSnapshot(),
		testTenant(models.DatasourceTypePostgres), intent(models.SubTypeRelationship))

	assert.Contains(t, req.Prompt, "LEFT JOIN project_assignments j ON j.employee_id = a.id")
	assert.Contains(t, req.Prompt, "COALESCE(b.name, 'Unassigned') AS project_name")
}

func TestCompose_SQLServer(t *testing.T) {
	req := NewComposer(25, 0).Compose("How many employees per department?", testSnapshot(),
		testTenant(models.DatasourceTypeMSSQL), intent(models.SubTypeCounting))

	assert.Contains(t, req.Prompt, "Dialect: Microsoft SQL Server (T-SQL)")
	assert.Contains(t, req.Prompt, "SELECT TOP 25")
	assert.Contains(t, req.Prompt, "LOWER(column) LIKE LOWER('%term%')")
	assert.NotContains(t, req.Prompt, "LIMIT 25")
}

func TestCompose_UnknownDomainUsesGeneralFraming(t *testing.T) {
	tenant := testTenant(models.DatasourceTypePostgres)
	tenant.BusinessDomain = "aerospace"

	req := NewComposer(100, 0).Compose("q", testSnapshot(), tenant, models.IntentClassification{})

	assert.Equal(t, "general/general", req.TemplateID)
	assert.Contains(t, req.Prompt, "The company is a general business.")
}

func TestComposeInterpretation(t *testing.T) {
	result := &models.ExecutionResult{Columns: []string{"department", "employee_count"}}
	for i := range 25 {
		result.Rows = append(result.Rows, map[string]any{"department": fmt.Sprintf("D%d", i), "employee_count": i})
	}
	result.RowCount = len(result.Rows)
	tenant := testTenant(models.DatasourceTypePostgres)
	tenant.Locale = "fr-FR"
	tenant.Currency = "EUR"

	prompt := ComposeInterpretation("How many per department?", "SELECT 1", result, "Total: 300", tenant)

	assert.Contains(t, prompt, "Result: 25 row(s). Columns: department, employee_count")
	assert.Contains(t, prompt, "department=D19; employee_count=19")
	assert.NotContains(t, prompt, "department=D20")
	assert.Contains(t, prompt, "... 5 more row(s)")
	assert.Contains(t, prompt, "Draft answer:\nTotal: 300")
	assert.Contains(t, prompt, "locale fr-FR, amounts in EUR")
}
