package sql

import (
	"errors"
	"fmt"
	"strings"
)

// IssueCode identifies why a query was rejected.
type IssueCode string

const (
	IssueEmpty              IssueCode = "empty"
	IssueMultipleStatements IssueCode = "multiple_statements"
	IssueNotReadOnly        IssueCode = "not_read_only"
	IssueMissingSource      IssueCode = "missing_source"
	IssueMutatingKeyword    IssueCode = "mutating_keyword"
	IssueUnboundQualifier   IssueCode = "unbound_qualifier"
	IssueUnknownTable       IssueCode = "unknown_table"
)

// Issue is a single validation failure.
type Issue struct {
	Code    IssueCode
	Message string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// TableLookup is the part of a schema the validator needs.
type TableLookup interface {
	HasTable(name string) bool
}

// ValidateReadOnly checks that query is a single read-only statement whose
// qualified references are all bound and whose tables all exist in schema.
// It returns the normalized statement and the issues found; the statement
// is acceptable only when no issues are returned. A nil schema skips the
// table existence check.
func ValidateReadOnly(query string, schema TableLookup) (string, []Issue) {
	result := ValidateAndNormalize(query)
	if result.Error != nil {
		code := IssueMultipleStatements
		if errors.Is(result.Error, ErrEmptyQuery) {
			code = IssueEmpty
		}
		return "", []Issue{{Code: code, Message: result.Error.Error()}}
	}
	normalized := Normalize(result.NormalizedSQL)

	var issues []Issue

	if DetectStatementType(normalized) != StatementSelect {
		issues = append(issues, Issue{
			Code:    IssueNotReadOnly,
			Message: "statement must begin with SELECT or WITH",
		})
	}

	if !HasSourceClause(normalized) {
		issues = append(issues, Issue{
			Code:    IssueMissingSource,
			Message: "statement has no FROM clause",
		})
	}

	if kws := MutatingKeywords(normalized); len(kws) > 0 {
		issues = append(issues, Issue{
			Code:    IssueMutatingKeyword,
			Message: "statement contains mutating keyword(s): " + strings.Join(kws, ", "),
		})
	}

	refs := ParseReferences(normalized)
	for _, q := range refs.UnboundQualifiers() {
		issues = append(issues, Issue{
			Code:    IssueUnboundQualifier,
			Message: fmt.Sprintf("qualifier %q is not bound by any FROM or JOIN clause", q),
		})
	}

	if schema != nil {
		for _, t := range refs.BaseTables() {
			if !schema.HasTable(t.Name) {
				issues = append(issues, Issue{
					Code:    IssueUnknownTable,
					Message: fmt.Sprintf("table %q does not exist in the schema", t.Name),
				})
			}
		}
	}

	return normalized, issues
}
