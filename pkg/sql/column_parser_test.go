package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectColumns(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{"simple columns", "SELECT id, name FROM employees", []string{"id", "name"}},
		{"aliases", "SELECT department, COUNT(*) AS employee_count FROM employees GROUP BY department", []string{"department", "employee_count"}},
		{"qualified", "SELECT e.name, d.name AS dept FROM employees e JOIN departments d ON d.id = e.dept_id", []string{"name", "dept"}},
		{"implicit alias", "SELECT SUM(salary) total FROM employees", []string{"total"}},
		{"function without alias", "SELECT MAX(salary) FROM employees", []string{"max"}},
		{"top and distinct", "SELECT DISTINCT TOP 5 department FROM employees", []string{"department"}},
		{"coalesce keeps alias", "SELECT COALESCE(p.name, 'Unassigned') AS project_name FROM projects p", []string{"project_name"}},
		{"subquery in list", "SELECT name, (SELECT COUNT(*) FROM projects) AS n FROM employees", []string{"name", "n"}},
		{"case expression", "SELECT CASE WHEN salary > 10 THEN 'high' ELSE 'low' END FROM employees", []string{"case_result"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := ParseSelectColumns(tt.sql)
			require.Len(t, cols, len(tt.expected))
			for i, name := range tt.expected {
				assert.Equal(t, name, cols[i].Name)
			}
		})
	}
}

func TestParseSelectColumns_Star(t *testing.T) {
	assert.Nil(t, ParseSelectColumns("SELECT * FROM employees"))
	assert.Nil(t, ParseSelectColumns("not a query"))
}

func TestParseGroupByColumns(t *testing.T) {
	assert.Equal(t, []string{"department"},
		ParseGroupByColumns("SELECT department, COUNT(*) FROM employees GROUP BY department ORDER BY 2 DESC LIMIT 10"))
	assert.Equal(t, []string{"department", "name"},
		ParseGroupByColumns("SELECT e.department, d.name, COUNT(*) FROM employees e JOIN departments d ON d.id = e.dept_id GROUP BY e.department, d.name"))
	assert.Nil(t, ParseGroupByColumns("SELECT name FROM employees"))
}
