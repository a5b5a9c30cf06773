package sql

import (
	"regexp"
	"strings"
)

// StatementType represents the type of SQL statement.
type StatementType string

const (
	StatementSelect  StatementType = "SELECT"
	StatementInsert  StatementType = "INSERT"
	StatementUpdate  StatementType = "UPDATE"
	StatementDelete  StatementType = "DELETE"
	StatementCall    StatementType = "CALL"
	StatementDDL     StatementType = "DDL"
	StatementUnknown StatementType = "UNKNOWN"
)

// modifyingCTEPattern matches CTEs that contain data-modifying operations.
// Example: WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE|MERGE)\b`)

// mutatingKeywordPattern matches statements and clauses that write, lock or
// escape the read-only boundary. SELECT ... INTO creates a table.
var mutatingKeywordPattern = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|MERGE|UPSERT|EXEC|EXECUTE|CALL|COPY|INTO|VACUUM|REINDEX|ATTACH|DETACH|LOCK|BACKUP|RESTORE|SHUTDOWN)\b`)

var sourceClausePattern = regexp.MustCompile(`(?i)\bFROM\b`)

// DetectStatementType classifies a statement by its leading keyword.
// WITH statements are SELECT unless one of their CTEs modifies data.
func DetectStatementType(sqlQuery string) StatementType {
	masked := mask(StripComments(sqlQuery), true)
	normalized := strings.ToUpper(strings.TrimLeft(masked, " \t\r\n("))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return StatementSelect
	case strings.HasPrefix(normalized, "WITH"):
		if modifyingCTEPattern.MatchString(masked) {
			return StatementUnknown
		}
		return StatementSelect
	case strings.HasPrefix(normalized, "INSERT"):
		return StatementInsert
	case strings.HasPrefix(normalized, "UPDATE"):
		return StatementUpdate
	case strings.HasPrefix(normalized, "DELETE"):
		return StatementDelete
	case strings.HasPrefix(normalized, "CALL"), strings.HasPrefix(normalized, "EXEC"):
		return StatementCall
	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"):
		return StatementDDL
	default:
		return StatementUnknown
	}
}

// MutatingKeywords returns the distinct mutating keywords found outside
// literals, quoted identifiers and comments, upper-cased, in order of appearance.
func MutatingKeywords(sqlQuery string) []string {
	masked := mask(sqlQuery, true)
	var found []string
	seen := make(map[string]bool)
	for _, m := range mutatingKeywordPattern.FindAllString(masked, -1) {
		kw := strings.ToUpper(m)
		if !seen[kw] {
			seen[kw] = true
			found = append(found, kw)
		}
	}
	return found
}

// HasSourceClause reports whether the statement reads from a relation.
func HasSourceClause(sqlQuery string) bool {
	return sourceClausePattern.MatchString(mask(sqlQuery, true))
}

var rowLimitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+\d+|\bTOP\s*\(?\s*\d+|\bFETCH\s+(FIRST|NEXT)\s+\d+`)

// HasRowLimit reports whether the statement bounds its result size
// (LIMIT n, TOP n or FETCH FIRST n).
func HasRowLimit(sqlQuery string) bool {
	return rowLimitPattern.MatchString(mask(sqlQuery, true))
}
