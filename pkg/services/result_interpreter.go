package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// NoDataAnswer is returned for queries that produced no rows.
const NoDataAnswer = "I couldn't find any matching data for that question."

const unassigned = "Unassigned"

// ResultInterpreter turns rows into an answer shaped by intent sub-type.
type ResultInterpreter struct {
	displayCap int
}

// NewResultInterpreter creates an interpreter that lists at most displayCap
// rows or groups before summarizing the rest as "+N more".
func NewResultInterpreter(displayCap int) *ResultInterpreter {
	if displayCap < 1 {
		displayCap = 10
	}
	return &ResultInterpreter{displayCap: displayCap}
}

// Interpret renders the result for the question. Numbers and currency
// amounts follow the profile's locale and currency.
func (r *ResultInterpreter) Interpret(question string, result *models.ExecutionResult, intent models.IntentClassification, profile *models.TenantProfile) string {
	if result == nil || len(result.Rows) == 0 {
		return NoDataAnswer
	}

	f := newFormatter(profile)
	switch intent.SubType {
	case models.SubTypeCounting, models.SubTypeFinancial, models.SubTypeAnalysis:
		if answer, ok := r.aggregate(result, f); ok {
			return answer
		}
	case models.SubTypeRelationship:
		if answer, ok := r.relationship(result); ok {
			return answer
		}
	}
	return r.table(result, f)
}

// aggregate renders one metric column with optional group labels, e.g.
// "Total: 6" followed by "- IT: 3" lines.
func (r *ResultInterpreter) aggregate(result *models.ExecutionResult, f *formatter) (string, bool) {
	metric := ""
	for _, col := range result.Columns {
		if _, ok := toFloat(result.Rows[0][col]); ok {
			metric = col
		}
	}
	if metric == "" {
		return "", false
	}
	var labels []string
	for _, col := range result.Columns {
		if col == metric {
			continue
		}
		if _, ok := toFloat(result.Rows[0][col]); !ok {
			labels = append(labels, col)
		}
	}

	if len(labels) == 0 {
		if len(result.Rows) > 1 {
			return "", false
		}
		v, _ := toFloat(result.Rows[0][metric])
		return fmt.Sprintf("%s: %s", humanize(metric), f.metric(metric, v)), true
	}

	var b strings.Builder
	sum := 0.0
	for _, row := range result.Rows {
		v, _ := toFloat(row[metric])
		sum += v
	}
	if isAdditive(metric) {
		fmt.Fprintf(&b, "Total: %s\n", f.metric(metric, sum))
	}
	fmt.Fprintf(&b, "%s by %s:\n", humanize(metric), strings.ReplaceAll(strings.Join(labels, ", "), "_", " "))

	for i, row := range result.Rows {
		if i == r.displayCap {
			fmt.Fprintf(&b, "+%d more", len(result.Rows)-r.displayCap)
			break
		}
		parts := make([]string, 0, len(labels))
		for _, l := range labels {
			parts = append(parts, f.value(l, row[l]))
		}
		v, _ := toFloat(row[metric])
		fmt.Fprintf(&b, "- %s: %s\n", strings.Join(parts, " / "), f.metric(metric, v))
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// relationship groups rows by the first column: "entity → item (role)".
// Entities whose item is missing are listed separately.
func (r *ResultInterpreter) relationship(result *models.ExecutionResult) (string, bool) {
	if len(result.Columns) < 2 {
		return "", false
	}
	entityCol, itemCol := result.Columns[0], result.Columns[1]
	roleCol := ""
	if len(result.Columns) > 2 {
		roleCol = result.Columns[2]
	}

	type group struct {
		entity string
		items  []string
	}
	var groups []*group
	index := make(map[string]*group)
	for _, row := range result.Rows {
		entity := display(row[entityCol])
		g, ok := index[entity]
		if !ok {
			g = &group{entity: entity}
			index[entity] = g
			groups = append(groups, g)
		}
		item := display(row[itemCol])
		if row[itemCol] == nil || item == unassigned {
			continue
		}
		if roleCol != "" && row[roleCol] != nil {
			item = fmt.Sprintf("%s (%s)", item, display(row[roleCol]))
		}
		g.items = append(g.items, item)
	}

	var b strings.Builder
	var without []string
	shown := 0
	for _, g := range groups {
		if len(g.items) == 0 {
			without = append(without, g.entity)
			continue
		}
		if shown == r.displayCap {
			continue
		}
		fmt.Fprintf(&b, "- %s → %s\n", g.entity, strings.Join(g.items, ", "))
		shown++
	}
	if withItems := len(groups) - len(without); withItems > shown {
		fmt.Fprintf(&b, "+%d more\n", withItems-shown)
	}
	if len(without) > 0 {
		noun := strings.ReplaceAll(strings.TrimSuffix(strings.ToLower(itemCol), "_name"), "_", " ")
		fmt.Fprintf(&b, "No %s: %s\n", noun, strings.Join(without, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), true
}

// table lists up to displayCap rows.
func (r *ResultInterpreter) table(result *models.ExecutionResult, f *formatter) string {
	var b strings.Builder
	noun := "results"
	if len(result.Rows) == 1 {
		noun = "result"
	}
	fmt.Fprintf(&b, "Found %s %s:\n", f.integer(int64(len(result.Rows))), noun)
	for i, row := range result.Rows {
		if i == r.displayCap {
			fmt.Fprintf(&b, "+%d more", len(result.Rows)-r.displayCap)
			break
		}
		parts := make([]string, 0, len(result.Columns))
		for _, col := range result.Columns {
			parts = append(parts, fmt.Sprintf("%s: %s", col, f.value(col, row[col])))
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(parts, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

type formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

func newFormatter(profile *models.TenantProfile) *formatter {
	tag := language.AmericanEnglish
	unit := currency.USD
	if profile != nil {
		if t, err := language.Parse(profile.Locale); err == nil {
			tag = t
		}
		if u, err := currency.ParseISO(profile.Currency); err == nil {
			unit = u
		}
	}
	return &formatter{printer: message.NewPrinter(tag), unit: unit}
}

func (f *formatter) integer(n int64) string {
	return f.printer.Sprint(number.Decimal(n))
}

func (f *formatter) money(v float64) string {
	return f.printer.Sprint(currency.Symbol(f.unit)) + f.printer.Sprint(number.Decimal(v, number.Scale(2)))
}

func (f *formatter) decimal(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return f.integer(int64(v))
	}
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// metric formats an aggregate, using currency for money-like columns.
func (f *formatter) metric(col string, v float64) string {
	if isMoneyName(col) {
		return f.money(v)
	}
	return f.decimal(v)
}

func (f *formatter) value(col string, v any) string {
	n, ok := toFloat(v)
	switch {
	case !ok, isIdentifierName(col):
		return display(v)
	case isMoneyName(col):
		return f.money(n)
	}
	return f.decimal(n)
}

func isMoneyName(col string) bool {
	name := strings.ToLower(col)
	for _, hint := range moneyColumnHints {
		if hint == "total" {
			continue
		}
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func isIdentifierName(col string) bool {
	name := strings.ToLower(col)
	return name == "id" || strings.HasSuffix(name, "_id") || strings.Contains(name, "year")
}

// isAdditive reports whether summing the metric across groups is meaningful.
func isAdditive(metric string) bool {
	name := strings.ToLower(metric)
	for _, p := range []string{"avg", "average", "mean", "min", "max", "median", "rate", "ratio", "percent"} {
		if strings.Contains(name, p) {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// humanize turns a column name into words: "employee_count" → "Employee count".
func humanize(name string) string {
	s := strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
