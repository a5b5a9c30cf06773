// Package sql provides SQL validation utilities for generated read-only queries.
package sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrEmptyQuery indicates there is nothing to validate.
	ErrEmptyQuery = errors.New("empty query")
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize strips comments and a trailing semicolon, then rejects
// any remaining semicolon outside string literals.
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	normalized := stripTrailingSemicolon(StripComments(sqlQuery))
	if normalized == "" {
		return ValidationResult{Error: ErrEmptyQuery}
	}

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// Normalize returns the query without comments, with whitespace outside
// string literals collapsed and no trailing semicolon. Two candidates that
// differ only in layout normalize to the same text.
func Normalize(sqlQuery string) string {
	stripped := stripTrailingSemicolon(StripComments(sqlQuery))
	masked := mask(stripped, false)

	var b strings.Builder
	b.Grow(len(stripped))
	inSpace := false
	for i := 0; i < len(stripped); i++ {
		c := stripped[i]
		isLiteral := masked[i] == literalByte
		if !isLiteral && (c == ' ' || c == '\t' || c == '\n' || c == '\r') {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteByte(c)
	}
	return b.String()
}

// StripComments removes -- line comments and /* */ block comments that are
// not inside string literals, and trims surrounding whitespace.
func StripComments(sqlQuery string) string {
	masked := mask(sqlQuery, false)

	var b strings.Builder
	b.Grow(len(sqlQuery))
	for i := 0; i < len(sqlQuery); i++ {
		if masked[i] == commentByte {
			// keep line structure so multi-line candidates stay multi-line
			if sqlQuery[i] == '\n' {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(sqlQuery[i])
	}
	return strings.TrimSpace(b.String())
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside string literals, quoted identifiers and comments.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	return strings.IndexByte(mask(sqlQuery, true), ';') >= 0
}

// stripTrailingSemicolon removes trailing semicolons and surrounding whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimSpace(sqlQuery)
	for strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSpace(strings.TrimSuffix(sqlQuery, ";"))
	}
	return sqlQuery
}

const (
	literalByte = 1
	commentByte = 0
)

// mask returns a copy of query of identical length in which comment bytes are
// replaced by commentByte and the interior of single-quoted literals by
// literalByte. With identifiers set, the interior of double-quoted and bracketed
// identifiers is blanked too. Keeping offsets stable lets callers run
// regexes on the masked text and slice the original.
func mask(query string, identifiers bool) string {
	out := []byte(query)
	n := len(out)

	for i := 0; i < n; {
		c := query[i]
		switch {
		case c == '-' && i+1 < n && query[i+1] == '-':
			for i < n && query[i] != '\n' {
				out[i] = commentByte
				i++
			}
		case c == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			stop := n
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			for ; i < stop; i++ {
				out[i] = commentByte
			}
		case c == '\'':
			i = blankQuoted(query, out, i, '\'')
		case identifiers && c == '"':
			i = blankQuoted(query, out, i, '"')
		case identifiers && c == '[':
			i = blankQuoted(query, out, i, ']')
		default:
			i++
		}
	}
	return string(out)
}

// blankQuoted blanks the interior of a quoted run starting at open and
// returns the index just past the closing quote. A doubled closing quote
// is an escape.
func blankQuoted(query string, out []byte, open int, closing byte) int {
	n := len(query)
	j := open + 1
	for j < n {
		if query[j] == closing {
			if closing != ']' && j+1 < n && query[j+1] == closing {
				out[j], out[j+1] = literalByte, literalByte
				j += 2
				continue
			}
			return j + 1
		}
		out[j] = literalByte
		j++
	}
	return n
}
