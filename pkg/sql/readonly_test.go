package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableSet map[string]bool

func (s tableSet) HasTable(name string) bool {
	return s[strings.ToLower(name)]
}

var testTables = tableSet{"employees": true, "departments": true, "projects": true}

func issueCodes(issues []Issue) []IssueCode {
	codes := make([]IssueCode, len(issues))
	for i, issue := range issues {
		codes[i] = issue.Code
	}
	return codes
}

func TestValidateReadOnly_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"join with aliases", "SELECT e.name, d.name FROM employees e JOIN departments d ON d.id = e.department_id LIMIT 10"},
		{"explicit AS alias", "SELECT emp.name FROM employees AS emp"},
		{"keyword inside literal", "SELECT name FROM employees WHERE note = 'please delete me'"},
		{"cte", "WITH dept_counts AS (SELECT department, COUNT(*) AS n FROM employees GROUP BY department) SELECT dc.department, dc.n FROM dept_counts dc"},
		{"function FROM is not a source", "SELECT name FROM employees WHERE EXTRACT(YEAR FROM hire_date) = 2020"},
		{"schema qualified", "SELECT e.name FROM public.employees e"},
		{"derived table", "SELECT t.department FROM (SELECT department FROM employees) t"},
		{"comma join", "SELECT e.name, p.name FROM employees e, projects p WHERE e.id = p.owner_id"},
		{"sql server top", "SELECT TOP 10 name FROM employees ORDER BY name"},
		{"updated_at column is not UPDATE", "SELECT name, updated_at, created_by FROM employees"},
		{"left join with coalesce", "SELECT e.name, COALESCE(p.name, 'Unassigned') AS project FROM employees e LEFT JOIN projects p ON p.owner_id = e.id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, issues := ValidateReadOnly(tt.query, testTables)
			assert.Empty(t, issues)
			assert.NotEmpty(t, normalized)
		})
	}
}

func TestValidateReadOnly_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode IssueCode
	}{
		{"unbound alias", "SELECT e.name FROM employees WHERE e.salary > 100", IssueUnboundQualifier},
		{"delete", "DELETE FROM employees", IssueNotReadOnly},
		{"update", "UPDATE employees SET salary = 0", IssueMutatingKeyword},
		{"stacked statements", "SELECT name FROM employees; DROP TABLE employees", IssueMultipleStatements},
		{"unknown table", "SELECT name FROM ghosts", IssueUnknownTable},
		{"no source", "SELECT 1", IssueMissingSource},
		{"modifying cte", "WITH d AS (DELETE FROM employees RETURNING id) SELECT id FROM d", IssueNotReadOnly},
		{"select into", "SELECT name INTO backup FROM employees", IssueMutatingKeyword},
		{"empty", "", IssueEmpty},
		{"unknown joined table", "SELECT e.name FROM employees e JOIN salaries s ON s.employee_id = e.id", IssueUnknownTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, issues := ValidateReadOnly(tt.query, testTables)
			require.NotEmpty(t, issues)
			assert.Contains(t, issueCodes(issues), tt.wantCode)
		})
	}
}

func TestValidateReadOnly_NilSchemaSkipsTableCheck(t *testing.T) {
	_, issues := ValidateReadOnly("SELECT name FROM anything", nil)
	assert.Empty(t, issues)
}

func TestDetectStatementType(t *testing.T) {
	tests := []struct {
		query    string
		expected StatementType
	}{
		{"select 1", StatementSelect},
		{"  (SELECT 1)", StatementSelect},
		{"-- comment\nSELECT 1", StatementSelect},
		{"WITH x AS (SELECT 1) SELECT * FROM x", StatementSelect},
		{"WITH x AS (UPDATE t SET a = 1 RETURNING a) SELECT * FROM x", StatementUnknown},
		{"INSERT INTO t VALUES (1)", StatementInsert},
		{"EXEC sp_who", StatementCall},
		{"DROP TABLE t", StatementDDL},
		{"BEGIN", StatementUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DetectStatementType(tt.query), tt.query)
	}
}

func TestHasRowLimit(t *testing.T) {
	assert.True(t, HasRowLimit("SELECT a FROM t LIMIT 10"))
	assert.True(t, HasRowLimit("SELECT TOP 5 a FROM t"))
	assert.True(t, HasRowLimit("SELECT a FROM t ORDER BY a OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"))
	assert.False(t, HasRowLimit("SELECT a FROM t WHERE note = 'LIMIT 10'"))
}
