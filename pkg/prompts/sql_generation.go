// Package prompts builds the text sent to the generation backend.
package prompts

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// SQLSystemMessage frames every query generation request.
const SQLSystemMessage = "You are a careful SQL analyst. You write a single read-only SQL query that answers the user's question using only the schema you are given. Reply with the query in a ```sql code block."

var domainFraming = map[string]string{
	models.DomainTechnology: "The company is a technology business. Questions usually concern engineers, teams, projects and delivery.",
	models.DomainRetail:     "The company is a retailer. Questions usually concern products, orders, stores, customers and sales figures.",
	models.DomainFinance:    "The company works in financial services. Questions usually concern accounts, transactions, balances and budgets. Treat amounts precisely.",
	models.DomainHealthcare: "The company is a healthcare provider. Questions usually concern staff, departments, patients and appointments.",
	models.DomainGeneral:    "The company is a general business. Questions usually concern employees, departments, projects and budgets.",
}

// Composer builds query generation requests.
type Composer struct {
	RowCap      int
	Temperature float64
}

// NewComposer creates a composer that asks for at most rowCap rows.
func NewComposer(rowCap int, temperature float64) *Composer {
	if rowCap < 1 {
		rowCap = 100
	}
	return &Composer{RowCap: rowCap, Temperature: temperature}
}

// Compose builds the generation request for a business question. It uses
// only identifiers present in snapshot, and identical inputs produce an
// identical request.
func (c *Composer) Compose(question string, snapshot *models.SchemaSnapshot, profile *models.TenantProfile, intent models.IntentClassification) models.GenerationRequest {
	rowCap := c.RowCap
	dialect := sqlutil.DialectFor(profile.Datasource.Type)
	domain := profile.Domain()
	subType := intent.SubType
	if subType == "" {
		subType = models.SubTypeGeneral
	}

	var p strings.Builder

	p.WriteString("# Context\n\n")
	p.WriteString(domainFraming[domain])
	fmt.Fprintf(&p, " You are answering questions for %s.\n\n", profile.DisplayName)

	p.WriteString("# Database schema\n\n")
	fmt.Fprintf(&p, "Dialect: %s\n\n", dialect.Name())
	writeSchema(&p, snapshot)

	if examples := workedExamples(subType, snapshot, dialect, rowCap); len(examples) > 0 {
		p.WriteString("# Examples\n\n")
		for _, ex := range examples {
			fmt.Fprintf(&p, "Question: %s\n```sql\n%s\n```\n\n", ex.question, ex.sql)
		}
	}

	p.WriteString("# Rules\n\n")
	rules := []string{
		"Write exactly one SELECT statement (a WITH clause is allowed). Never modify data.",
		"Use only the tables and columns listed above. Do not invent names.",
		"List columns explicitly. Never use SELECT *.",
		dialect.LimitRule(rowCap),
		dialect.MatchRule(),
		"When a relationship may be missing, use LEFT JOIN and show COALESCE(column, 'Unassigned') instead of NULL.",
		"Give aggregate columns descriptive aliases such as employee_count or total_budget.",
	}
	for i, r := range rules {
		fmt.Fprintf(&p, "%d. %s\n", i+1, r)
	}

	fmt.Fprintf(&p, "\n# Question\n\n%s\n", strings.TrimSpace(question))

	return models.GenerationRequest{
		TenantID:      profile.ID,
		Question:      question,
		Prompt:        p.String(),
		SystemMessage: SQLSystemMessage,
		Temperature:   c.Temperature,
		TemplateID:    domain + "/" + string(subType),
		Model:         profile.Model,
	}
}

func writeSchema(p *strings.Builder, snapshot *models.SchemaSnapshot) {
	for _, t := range snapshot.Tables {
		fmt.Fprintf(p, "Table %s\n", t.Name)
		for _, c := range t.Columns {
			flags := ""
			if slices.Contains(t.PrimaryKey, c.Name) {
				flags += " primary key"
			}
			if !c.Nullable {
				flags += " not null"
			}
			fmt.Fprintf(p, "  - %s (%s%s)\n", c.Name, c.DataType, flags)
		}
	}
	if len(snapshot.ForeignKeys) > 0 {
		p.WriteString("\nRelationships:\n")
		for _, fk := range snapshot.ForeignKeys {
			fmt.Fprintf(p, "  - %s.%s → %s.%s\n", fk.Table, fk.Column, fk.RefTable, fk.RefColumn)
		}
	}
	p.WriteString("\n")
}

type example struct {
	question string
	sql      string
}

// workedExamples returns up to two examples for the sub-type, built from
// snapshot identifiers. Shapes the snapshot cannot support are skipped.
func workedExamples(subType models.IntentSubType, snapshot *models.SchemaSnapshot, d sqlutil.Dialect, rowCap int) []example {
	var out []example
	switch subType {
	case models.SubTypeCounting, models.SubTypeAnalysis, models.SubTypeFinancial:
		if ex, ok := countingExample(snapshot, d, rowCap); ok {
			out = append(out, ex)
		}
	case models.SubTypeRelationship:
		if ex, ok := joinExample(snapshot, d, rowCap); ok {
			out = append(out, ex)
		}
	}
	if ex, ok := listingExample(snapshot, d, rowCap); ok && len(out) < 2 {
		out = append(out, ex)
	}
	return out
}

var groupingNames = []string{"department", "team", "category", "status", "region", "location", "role", "position", "type"}

func countingExample(snapshot *models.SchemaSnapshot, d sqlutil.Dialect, rowCap int) (example, bool) {
	for _, t := range snapshot.Tables {
		for _, name := range groupingNames {
			c, ok := t.Column(name)
			if !ok || c.IsNumeric() {
				continue
			}
			entity := inflection.Singular(strings.ToLower(t.Name))
			alias := aliasSafe(entity) + "_count"
			col := d.QuoteIdent(c.Name)
			sql := d.ApplyLimit(fmt.Sprintf("SELECT %s, COUNT(*) AS %s FROM %s GROUP BY %s ORDER BY %s DESC",
				col, alias, d.QuoteIdent(t.Name), col, alias), rowCap)
			return example{
				question: fmt.Sprintf("How many %s are there per %s?", strings.ToLower(t.Name), c.Name),
				sql:      sql,
			}, true
		}
	}
	return example{}, false
}

func listingExample(snapshot *models.SchemaSnapshot, d sqlutil.Dialect, rowCap int) (example, bool) {
	for _, t := range snapshot.Tables {
		var text *models.Column
		for i := range t.Columns {
			if t.Columns[i].IsText() && !strings.EqualFold(t.Columns[i].Name, "name") {
				text = &t.Columns[i]
				break
			}
		}
		label, ok := t.Column("name")
		if !ok || text == nil {
			continue
		}
		sql := d.ApplyLimit(fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s ORDER BY %s",
			d.QuoteIdent(label.Name), d.QuoteIdent(text.Name), d.QuoteIdent(t.Name),
			d.ContainsMatch(d.QuoteIdent(text.Name), "example"), d.QuoteIdent(label.Name)), rowCap)
		return example{
			question: fmt.Sprintf("List the %s whose %s mentions \"example\".", strings.ToLower(t.Name), text.Name),
			sql:      sql,
		}, true
	}
	return example{}, false
}

// joinExample uses the first junction table: one with two outgoing edges.
func joinExample(snapshot *models.SchemaSnapshot, d sqlutil.Dialect, rowCap int) (example, bool) {
	for _, j := range snapshot.Tables {
		edges := snapshot.ForeignKeysFrom(j.Name)
		if len(edges) < 2 {
			continue
		}
		left, right := edges[0], edges[1]
		lt, okL := snapshot.Table(left.RefTable)
		rt, okR := snapshot.Table(right.RefTable)
		if !okL || !okR {
			continue
		}
		ll, lok := lt.Column("name")
		rl, rok := rt.Column("name")
		if !lok || !rok {
			continue
		}
		q := d.QuoteIdent
		sql := d.ApplyLimit(fmt.Sprintf(
			"SELECT a.%s AS %s_name, COALESCE(b.%s, 'Unassigned') AS %s_name FROM %s a LEFT JOIN %s j ON j.%s = a.%s LEFT JOIN %s b ON j.%s = b.%s ORDER BY a.%s",
			q(ll.Name), aliasSafe(inflection.Singular(strings.ToLower(lt.Name))),
			q(rl.Name), aliasSafe(inflection.Singular(strings.ToLower(rt.Name))),
			q(lt.Name), q(j.Name), q(left.Column), q(left.RefColumn),
			q(rt.Name), q(right.Column), q(right.RefColumn), q(ll.Name)), rowCap)
		return example{
			question: fmt.Sprintf("Which %s are linked to which %s, including %s with none?",
				strings.ToLower(lt.Name), strings.ToLower(rt.Name), strings.ToLower(lt.Name)),
			sql: sql,
		}, true
	}
	return example{}, false
}

func aliasSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
