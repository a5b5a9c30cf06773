package sql

import (
	"regexp"
	"strings"
)

// ParsedColumn represents a column extracted from a SELECT list.
type ParsedColumn struct {
	Name string // the output name: alias, or bare column name
	Expr string // the full expression, e.g. "SUM(amount)"
}

var (
	selectListEndPattern = regexp.MustCompile(`(?i)\b(FROM|WHERE|GROUP|ORDER|LIMIT|UNION|INTERSECT|EXCEPT)\b`)
	explicitAliasPattern = regexp.MustCompile(`(?i)\s+AS\s+("[^"]+"|\[[^\]]+\]|\w+)\s*$`)
	functionNamePattern  = regexp.MustCompile(`^(\w+)\s*\(`)
	groupByPattern       = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	groupByEndPattern    = regexp.MustCompile(`(?i)\b(HAVING|ORDER|LIMIT|OFFSET|FETCH|UNION|WINDOW)\b`)
	nonWordPattern       = regexp.MustCompile(`[^\w]`)
	topClausePattern     = regexp.MustCompile(`(?i)^(DISTINCT\s+)?(TOP\s*\(?\s*\d+\s*\)?\s+)?(DISTINCT\s+)?`)
)

// ParseSelectColumns extracts the output columns of the outermost SELECT list.
// It handles aliases, functions and qualified names. SELECT * yields nil.
func ParseSelectColumns(sqlQuery string) []ParsedColumn {
	masked := mask(sqlQuery, false)
	upper := strings.ToUpper(masked)

	start := strings.Index(upper, "SELECT")
	if start == -1 {
		return nil
	}
	start += len("SELECT")

	end := findTopLevel(masked[start:], selectListEndPattern)
	list := strings.TrimSpace(sqlQuery[start : start+end])
	if prefix := topClausePattern.FindString(list); prefix != "" {
		list = strings.TrimSpace(list[len(prefix):])
	}
	if strings.HasPrefix(list, "*") {
		return nil
	}

	var result []ParsedColumn
	for _, col := range splitTopLevel(list, ',') {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		result = append(result, parseColumnExpression(col))
	}
	return result
}

// ParseGroupByColumns returns the bare column names of the outermost GROUP BY.
func ParseGroupByColumns(sqlQuery string) []string {
	masked := mask(sqlQuery, false)
	loc := groupByPattern.FindStringIndex(masked)
	if loc == nil {
		return nil
	}
	rest := masked[loc[1]:]
	end := findTopLevel(rest, groupByEndPattern)

	var cols []string
	for _, item := range splitTopLevel(sqlQuery[loc[1]:loc[1]+end], ',') {
		name := extractColumnName(item)
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

// findTopLevel returns the offset of the first pattern match outside
// parentheses, or len(s).
func findTopLevel(s string, pattern *regexp.Regexp) int {
	for _, loc := range pattern.FindAllStringIndex(s, -1) {
		depth := 0
		for i := 0; i < loc[0]; i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		if depth == 0 {
			return loc[0]
		}
	}
	return len(s)
}

// parseColumnExpression derives the output name of one SELECT list item:
// "name" → name, "u.name" → name, "COUNT(*) AS total" → total,
// "COUNT(*) total" → total, "SUM(amount)" → sum.
func parseColumnExpression(expr string) ParsedColumn {
	if m := explicitAliasPattern.FindStringSubmatch(expr); m != nil {
		return ParsedColumn{Name: strings.ToLower(unquoteIdent(m[1])), Expr: expr}
	}

	if strings.Count(expr, "(") == strings.Count(expr, ")") {
		parts := strings.Fields(expr)
		if len(parts) > 1 {
			last := parts[len(parts)-1]
			if !strings.ContainsAny(last, "()'") && !reservedAliases[strings.ToLower(last)] {
				return ParsedColumn{Name: strings.ToLower(unquoteIdent(last)), Expr: expr}
			}
		}
	}

	return ParsedColumn{Name: extractColumnName(expr), Expr: expr}
}

// extractColumnName extracts a bare column name from an expression.
func extractColumnName(expr string) string {
	expr = strings.TrimSpace(expr)

	if m := functionNamePattern.FindStringSubmatch(expr); m != nil {
		return strings.ToLower(m[1])
	}
	if strings.HasPrefix(strings.ToLower(expr), "case") {
		return "case_result"
	}

	if dot := strings.LastIndex(expr, "."); dot != -1 {
		expr = expr[dot+1:]
	}
	return strings.ToLower(nonWordPattern.ReplaceAllString(unquoteIdent(expr), ""))
}
