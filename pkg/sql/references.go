package sql

import (
	"regexp"
	"strings"
)

// QualifiedRef is a qualifier.column reference such as e.name.
type QualifiedRef struct {
	Qualifier string
	Column    string
}

// SourceTable is a relation named in a FROM or JOIN clause.
type SourceTable struct {
	Schema string // optional schema qualifier
	Name   string
	Alias  string
}

// References describes the identifiers a statement reads from and uses.
type References struct {
	Tables         []SourceTable
	CTEs           []string
	DerivedAliases []string
	Qualified      []QualifiedRef
}

const identPattern = `(?:"[^"]+"|\[[^\]]+\]|[A-Za-z_][\w$]*)`

var (
	cteNamePattern   = regexp.MustCompile(`(?i)(?:\bWITH\s+(?:RECURSIVE\s+)?|,\s*)(` + identPattern + `)\s*(?:\([^()]*\))?\s+AS\s*(?:NOT\s+)?(?:MATERIALIZED\s+)?\(`)
	fromPattern      = regexp.MustCompile(`(?i)\bFROM\b`)
	joinPattern      = regexp.MustCompile(`(?i)\bJOIN\s+(` + identPattern + `(?:\s*\.\s*` + identPattern + `)?)(?:\s+(?:AS\s+)?(` + identPattern + `))?`)
	derivedPattern   = regexp.MustCompile(`(?i)\)\s*(?:AS\s+)?([A-Za-z_]\w*)`)
	qualifiedPattern = regexp.MustCompile(`(` + identPattern + `)\s*\.\s*(` + identPattern + `|\*)`)
	clauseEndPattern = regexp.MustCompile(`(?i)\b(WHERE|GROUP|ORDER|HAVING|LIMIT|OFFSET|FETCH|UNION|INTERSECT|EXCEPT|JOIN|INNER|LEFT|RIGHT|FULL|CROSS|OUTER|NATURAL|ON|WINDOW|FOR)\b`)
	tableItemPattern = regexp.MustCompile(`(?i)^\s*(` + identPattern + `(?:\s*\.\s*` + identPattern + `)?)(?:\s+(?:AS\s+)?(` + identPattern + `))?\s*$`)
)

// reservedAliases are keywords that can directly follow a table name and
// must not be mistaken for an alias.
var reservedAliases = map[string]bool{
	"where": true, "group": true, "order": true, "having": true, "limit": true,
	"offset": true, "fetch": true, "union": true, "intersect": true, "except": true,
	"join": true, "inner": true, "left": true, "right": true, "full": true,
	"cross": true, "outer": true, "natural": true, "on": true, "using": true,
	"window": true, "for": true, "as": true, "and": true, "or": true, "not": true,
	"select": true, "from": true, "with": true, "then": true, "else": true,
	"end": true, "when": true, "case": true, "is": true, "null": true, "in": true,
	"like": true, "ilike": true, "between": true, "over": true, "by": true,
	"asc": true, "desc": true, "nulls": true, "distinct": true, "all": true,
}

// ParseReferences extracts source tables, CTE names, derived-table aliases
// and qualified column references. Literals and comments are ignored.
// FROM inside function arguments (EXTRACT(YEAR FROM d)) is not a source.
func ParseReferences(sqlQuery string) References {
	masked := mask(StripComments(sqlQuery), false)
	var refs References

	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(masked)), "WITH") {
		for _, m := range cteNamePattern.FindAllStringSubmatch(masked, -1) {
			refs.CTEs = append(refs.CTEs, unquoteIdent(m[1]))
		}
	}

	for _, loc := range fromPattern.FindAllStringIndex(masked, -1) {
		if !isSourceContext(masked, loc[0]) {
			continue
		}
		refs.Tables = append(refs.Tables, parseFromList(masked[loc[1]:])...)
	}

	for _, m := range joinPattern.FindAllStringSubmatch(masked, -1) {
		t := splitQualifiedName(m[1])
		if alias := m[2]; alias != "" && !reservedAliases[strings.ToLower(alias)] {
			t.Alias = unquoteIdent(alias)
		}
		refs.Tables = append(refs.Tables, t)
	}

	for _, m := range derivedPattern.FindAllStringSubmatch(masked, -1) {
		if !reservedAliases[strings.ToLower(m[1])] {
			refs.DerivedAliases = append(refs.DerivedAliases, m[1])
		}
	}

	for _, m := range qualifiedPattern.FindAllStringSubmatchIndex(masked, -1) {
		// skip numeric tails like 1.5 and the schema part of schema.table.column
		if m[2] > 0 && isIdentByte(masked[m[2]-1]) {
			continue
		}
		if m[2] > 0 && masked[m[2]-1] == '.' {
			continue
		}
		refs.Qualified = append(refs.Qualified, QualifiedRef{
			Qualifier: unquoteIdent(masked[m[2]:m[3]]),
			Column:    unquoteIdent(masked[m[4]:m[5]]),
		})
	}

	return refs
}

// Bindings returns every lower-cased name a qualifier may legally refer to:
// table names, aliases, schema names, CTE names and derived-table aliases.
func (r References) Bindings() map[string]bool {
	bound := make(map[string]bool)
	for _, t := range r.Tables {
		bound[strings.ToLower(t.Name)] = true
		if t.Alias != "" {
			bound[strings.ToLower(t.Alias)] = true
		}
		if t.Schema != "" {
			bound[strings.ToLower(t.Schema)] = true
		}
	}
	for _, c := range r.CTEs {
		bound[strings.ToLower(c)] = true
	}
	for _, d := range r.DerivedAliases {
		bound[strings.ToLower(d)] = true
	}
	return bound
}

// UnboundQualifiers returns qualifiers used in qualifier.column references
// that no source clause of the statement binds, in order of first use.
func (r References) UnboundQualifiers() []string {
	bound := r.Bindings()
	var unbound []string
	seen := make(map[string]bool)
	for _, q := range r.Qualified {
		key := strings.ToLower(q.Qualifier)
		if bound[key] || seen[key] {
			continue
		}
		seen[key] = true
		unbound = append(unbound, q.Qualifier)
	}
	return unbound
}

// BaseTables returns referenced tables that are not CTEs, deduplicated.
func (r References) BaseTables() []SourceTable {
	ctes := make(map[string]bool, len(r.CTEs))
	for _, c := range r.CTEs {
		ctes[strings.ToLower(c)] = true
	}
	var tables []SourceTable
	seen := make(map[string]bool)
	for _, t := range r.Tables {
		key := strings.ToLower(t.Schema + "." + t.Name)
		if ctes[strings.ToLower(t.Name)] || seen[key] {
			continue
		}
		seen[key] = true
		tables = append(tables, t)
	}
	return tables
}

// QualifiedColumns returns the column parts of qualified references.
func (r References) QualifiedColumns() []string {
	cols := make([]string, 0, len(r.Qualified))
	for _, q := range r.Qualified {
		if q.Column != "*" {
			cols = append(cols, q.Column)
		}
	}
	return cols
}

// isSourceContext reports whether the FROM at pos belongs to a SELECT rather
// than to a function call such as EXTRACT(... FROM ...) or TRIM(... FROM ...).
func isSourceContext(masked string, pos int) bool {
	depth := 0
	for i := pos - 1; i >= 0; i-- {
		switch masked[i] {
		case ')':
			depth++
		case '(':
			if depth > 0 {
				depth--
				continue
			}
			inner := strings.ToUpper(strings.TrimSpace(masked[i+1 : pos]))
			return strings.HasPrefix(inner, "SELECT") || strings.HasPrefix(inner, "WITH")
		}
	}
	return true
}

// parseFromList reads the comma-separated relations following a FROM keyword
// up to the next clause keyword or closing parenthesis.
func parseFromList(rest string) []SourceTable {
	end := len(rest)
	if loc := clauseEndPattern.FindStringIndex(rest); loc != nil {
		end = loc[0]
	}
	depth := 0
	for i := 0; i < end; i++ {
		if rest[i] == '(' {
			depth++
		} else if rest[i] == ')' {
			if depth == 0 {
				end = i
				break
			}
			depth--
		}
	}

	var tables []SourceTable
	for _, item := range splitTopLevel(rest[:end], ',') {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" || strings.HasPrefix(trimmed, "(") {
			continue // derived table, alias collected separately
		}
		m := tableItemPattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		t := splitQualifiedName(m[1])
		if alias := m[2]; alias != "" && !reservedAliases[strings.ToLower(alias)] {
			t.Alias = unquoteIdent(alias)
		}
		tables = append(tables, t)
	}
	return tables
}

func splitQualifiedName(name string) SourceTable {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		return SourceTable{
			Schema: unquoteIdent(strings.TrimSpace(parts[0])),
			Name:   unquoteIdent(strings.TrimSpace(parts[1])),
		}
	}
	return SourceTable{Name: unquoteIdent(strings.TrimSpace(name))}
}

// splitTopLevel splits s on sep, ignoring separators inside parentheses.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '[' && s[len(s)-1] == ']')) {
		return s[1 : len(s)-1]
	}
	return s
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
