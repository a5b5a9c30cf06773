package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

func newTestExtractor() *SQLExtractor {
	return NewSQLExtractor(NewFallbackSynthesizer(100), zap.NewNop())
}

func issueCodes(issues []models.ValidationIssue) []string {
	codes := make([]string, len(issues))
	for i, is := range issues {
		codes[i] = is.Code
	}
	return codes
}

func TestSQLExtractor_FencedSQL(t *testing.T) {
	e := newTestExtractor()
	raw := "Here you go:\n```sql\nSELECT department, COUNT(*) AS employee_count\nFROM employees\nGROUP BY department\nLIMIT 100;\n```"

	got := e.Extract(raw, "How many employees are in each department?",
		intentOf(models.SubTypeCounting), hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategyFencedSQL, got.Strategy)
	assert.Equal(t, "SELECT department, COUNT(*) AS employee_count FROM employees GROUP BY department LIMIT 100", got.SQL)
	assert.GreaterOrEqual(t, got.Confidence, 0.85)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.Empty(t, got.Issues)
}

func TestSQLExtractor_FencedGeneric(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("```\nSELECT name FROM employees\n```", "list names",
		intentOf(models.SubTypeListing), hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategyFencedGeneric, got.Strategy)
	assert.Equal(t, "SELECT name FROM employees", got.SQL)
}

func TestSQLExtractor_MultiLine(t *testing.T) {
	e := newTestExtractor()
	raw := "Sure, this should work:\nSELECT name\nFROM employees\nWHERE department = 'IT'\n\nIt lists everyone in IT."

	got := e.Extract(raw, "Who works in IT?", intentOf(models.SubTypeListing), hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategyMultiLine, got.Strategy)
	assert.Equal(t, "SELECT name FROM employees WHERE department = 'IT'", got.SQL)
	assert.InDelta(t, 0.68, got.Confidence, 1e-9)
}

func TestSQLExtractor_InlineProse(t *testing.T) {
	e := newTestExtractor()
	raw := "To find them you can run SELECT name FROM employees WHERE position ILIKE '%frontend%'\nThat returns every frontend engineer."

	got := e.Extract(raw, "Who are the frontend developers?", intentOf(models.SubTypeListing), hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategySingleLine, got.Strategy)
	assert.Equal(t, "SELECT name FROM employees WHERE position ILIKE '%frontend%'", got.SQL)
	assert.GreaterOrEqual(t, got.Confidence, 0.6)
	assert.Empty(t, got.Issues)
}

func TestSQLExtractor_UnboundAliasFallsBackToSynthesis(t *testing.T) {
	e := newTestExtractor()
	raw := "```sql\nSELECT e.name FROM employees\n```"

	got := e.Extract(raw, "List employee names", intentOf(models.SubTypeListing), hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategySynthesis, got.Strategy)
	assert.Equal(t, "SELECT id, name, email, department, position, salary FROM employees LIMIT 100", got.SQL)
	assert.Contains(t, issueCodes(got.Issues), string(sqlutil.IssueUnboundQualifier))
	assert.GreaterOrEqual(t, got.Confidence, 0.5)
}

func TestSQLExtractor_RejectsUnsafeAndUnknown(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code sqlutil.IssueCode
	}{
		{"mutation", "```sql\nDELETE FROM employees\n```", sqlutil.IssueNotReadOnly},
		{"unknown table", "```sql\nSELECT * FROM salaries\n```", sqlutil.IssueUnknownTable},
		{"mutating keyword in cte", "```sql\nWITH x AS (DELETE FROM employees RETURNING id) SELECT id FROM x\n```", sqlutil.IssueMutatingKeyword},
	}

	e := newTestExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.raw, "How many employees are in each department?",
				intentOf(models.SubTypeCounting), hrSnapshot(), sqlutil.DialectPostgres)

			assert.Equal(t, models.StrategySynthesis, got.Strategy)
			assert.Contains(t, issueCodes(got.Issues), string(tt.code))
			assert.NotContains(t, got.SQL, "DELETE")
			assert.NotContains(t, got.SQL, "salaries")
		})
	}
}

func TestSQLExtractor_IgnoresThinkingBlocks(t *testing.T) {
	e := newTestExtractor()
	raw := "<think>maybe SELECT secret FROM vault would do</think>\n```sql\nSELECT name FROM employees\n```"

	got := e.Extract(raw, "list employees", intentOf(models.SubTypeListing), hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategyFencedSQL, got.Strategy)
	assert.Equal(t, "SELECT name FROM employees", got.SQL)
	assert.Empty(t, got.Issues)
}

func TestSQLExtractor_NoCandidatesSynthesizes(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("I'm not sure how to answer that.", "How many employees are in each department?",
		intentOf(models.SubTypeCounting), hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategySynthesis, got.Strategy)
	assert.Equal(t,
		"SELECT department, COUNT(*) AS employee_count FROM employees GROUP BY department ORDER BY employee_count DESC LIMIT 100",
		got.SQL)
	assert.Empty(t, got.Issues)
}

func TestSQLExtractor_RoundTripsValidQueries(t *testing.T) {
	e := newTestExtractor()
	queries := []string{
		"SELECT name FROM employees",
		"SELECT d.name, COUNT(*) AS n FROM departments d JOIN employees e ON e.department = d.name GROUP BY d.name",
		"SELECT p.name AS project, a.role FROM projects p LEFT JOIN project_assignments a ON a.project_id = p.id LIMIT 10",
		"WITH big AS (SELECT id FROM projects WHERE budget > 1000) SELECT COUNT(*) FROM big",
	}

	for _, q := range queries {
		want, issues := sqlutil.ValidateReadOnly(q, hrSnapshot())
		require.Empty(t, issues, q)

		got := e.Extract("```sql\n"+q+"\n```", "anything", intentOf(models.SubTypeGeneral), hrSnapshot(), sqlutil.DialectPostgres)
		assert.Equal(t, want, got.SQL, q)
		assert.Equal(t, models.StrategyFencedSQL, got.Strategy, q)
	}
}

func TestSQLExtractor_SynthesizeAlwaysValid(t *testing.T) {
	e := newTestExtractor()

	got := e.Synthesize("Which employees work on project Apollo?", intentOf(models.SubTypeRelationship),
		hrSnapshot(), sqlutil.DialectPostgres)

	assert.Equal(t, models.StrategySynthesis, got.Strategy)
	_, issues := sqlutil.ValidateReadOnly(got.SQL, hrSnapshot())
	assert.Empty(t, issues)
	assert.GreaterOrEqual(t, got.Confidence, 0.0)
	assert.LessOrEqual(t, got.Confidence, 1.0)
}

func TestScoreCandidate(t *testing.T) {
	terms := questionTerms("How many employees are in each department?")
	require.Equal(t, []string{"employees", "department"}, terms)

	plain := scoreCandidate("SELECT 1 FROM x", 0.6, terms)
	assert.InDelta(t, 0.6, plain, 1e-9)

	grouped := scoreCandidate("SELECT department, COUNT(*) FROM employees GROUP BY department LIMIT 5", 0.6, terms)
	assert.InDelta(t, 0.6+0.1+0.05+0.05+0.03, grouped, 1e-9)

	assert.Equal(t, 1.0, scoreCandidate("SELECT department FROM employees GROUP BY department LIMIT 5", 0.99, terms))
}
