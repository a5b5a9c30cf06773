package services

import (
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// acceptThreshold is the confidence at which extraction stops early.
const acceptThreshold = 0.8

// extractionStrategy yields query candidates from generated text.
type extractionStrategy struct {
	name       models.ExtractionStrategy
	base       float64
	candidates func(text string) []string
}

var (
	sqlFencePattern     = regexp.MustCompile("(?is)```[ \\t]*(?:sql|postgresql|postgres|psql|pgsql|tsql|t-sql|mssql|mysql|sqlite)[ \\t]*\\r?\\n(.*?)```")
	genericFencePattern = regexp.MustCompile("(?s)```([^\\n`]*)\\r?\\n(.*?)```")
	singleLinePattern   = regexp.MustCompile("(?i)\\b((?:SELECT|WITH)\\b[^;\\n`]*?\\bFROM\\b[^;\\n`]*)")
	statementStart      = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
	continuationStart   = regexp.MustCompile(`(?i)^(SELECT|FROM|WHERE|AND|OR|NOT|JOIN|LEFT|RIGHT|INNER|OUTER|FULL|CROSS|ON|GROUP|ORDER|HAVING|LIMIT|OFFSET|FETCH|UNION|INTERSECT|EXCEPT|WITH|AS|CASE|WHEN|THEN|ELSE|END|TOP|DISTINCT|COALESCE|COUNT|SUM|AVG|MIN|MAX|LOWER|UPPER)\b|^[(),*]`)
	trailingContinuer   = regexp.MustCompile(`(?i)(,|\(|\bAND|\bOR|\bON|=|\bSELECT|\bFROM|\bWHERE|\bBY|\bJOIN)\s*$`)
)

var defaultStrategies = []extractionStrategy{
	{models.StrategyFencedSQL, 0.85, fencedSQLCandidates},
	{models.StrategyFencedGeneric, 0.75, fencedGenericCandidates},
	{models.StrategyMultiLine, 0.65, multiLineCandidates},
	{models.StrategySingleLine, 0.6, singleLineCandidates},
}

const synthesisBase = 0.5

func fencedSQLCandidates(text string) []string {
	var out []string
	for _, m := range sqlFencePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func fencedGenericCandidates(text string) []string {
	var out []string
	for _, m := range genericFencePattern.FindAllStringSubmatch(text, -1) {
		if strings.TrimSpace(m[1]) != "" {
			continue
		}
		out = append(out, m[2])
	}
	return out
}

// multiLineCandidates collects statements that start a line with SELECT or
// WITH and continue over at least one more line of SQL.
func multiLineCandidates(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		if !statementStart.MatchString(lines[i]) {
			continue
		}
		stmt := []string{lines[i]}
		j := i + 1
		for ; j < len(lines) && !strings.HasSuffix(strings.TrimSpace(stmt[len(stmt)-1]), ";"); j++ {
			line := lines[j]
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "```") {
				break
			}
			indented := line != strings.TrimLeft(line, " \t")
			if !indented && !continuationStart.MatchString(trimmed) &&
				!trailingContinuer.MatchString(strings.TrimSpace(stmt[len(stmt)-1])) {
				break
			}
			stmt = append(stmt, line)
		}
		if len(stmt) >= 2 {
			out = append(out, strings.Join(stmt, "\n"))
		}
		i = j - 1
	}
	return out
}

func singleLineCandidates(text string) []string {
	var out []string
	for _, m := range singleLinePattern.FindAllStringSubmatch(text, -1) {
		c := strings.TrimRight(strings.TrimSpace(m[1]), ".:`")
		out = append(out, c)
	}
	return out
}

// SQLExtractor turns untrusted generated text into a validated read-only
// query. Extraction is total: when no strategy yields an acceptable
// candidate, the fallback synthesizer provides one.
type SQLExtractor struct {
	strategies  []extractionStrategy
	synthesizer *FallbackSynthesizer
	logger      *zap.Logger
}

// NewSQLExtractor creates an extractor with the standard strategy order.
func NewSQLExtractor(synthesizer *FallbackSynthesizer, logger *zap.Logger) *SQLExtractor {
	return &SQLExtractor{
		strategies:  defaultStrategies,
		synthesizer: synthesizer,
		logger:      logger.Named("sql-extractor"),
	}
}

// Extract returns the best accepted candidate from raw. dialect controls
// the shape of synthesized queries.
func (e *SQLExtractor) Extract(raw, question string, intent models.IntentClassification, snapshot *models.SchemaSnapshot, dialect sqlutil.Dialect) models.ExtractionResult {
	text := llm.StripThinking(raw)
	terms := questionTerms(question)

	var best *models.ExtractionResult
	var issues []models.ValidationIssue
	seen := make(map[string]bool)

	for _, s := range e.strategies {
		for _, candidate := range s.candidates(text) {
			sql, rejected := validateCandidate(candidate, s.name, snapshot)
			if sql != "" {
				// Later strategies often rediscover the same statement.
				if seen[sql] {
					continue
				}
				seen[sql] = true
			}
			if sql == "" || len(rejected) > 0 {
				issues = append(issues, rejected...)
				continue
			}

			conf := scoreCandidate(sql, s.base, terms)
			if conf >= acceptThreshold {
				return models.ExtractionResult{SQL: sql, Strategy: s.name, Confidence: conf, Issues: issues}
			}
			if best == nil || conf > best.Confidence {
				best = &models.ExtractionResult{SQL: sql, Strategy: s.name, Confidence: conf}
			}
		}
	}

	if best != nil {
		best.Issues = issues
		return *best
	}

	reason := apperrors.ErrExtractionFailed
	if len(issues) > 0 {
		reason = apperrors.ErrValidationRejected
	}
	e.logger.Debug("No usable candidate in generated text; synthesizing",
		zap.Int("rejected", len(issues)),
		zap.Error(reason))
	result := e.synthesize(question, intent, snapshot, dialect, terms)
	result.Issues = append(issues, result.Issues...)
	return result
}

// Synthesize builds a result from the fallback synthesizer alone.
func (e *SQLExtractor) Synthesize(question string, intent models.IntentClassification, snapshot *models.SchemaSnapshot, dialect sqlutil.Dialect) models.ExtractionResult {
	return e.synthesize(question, intent, snapshot, dialect, questionTerms(question))
}

func (e *SQLExtractor) synthesize(question string, intent models.IntentClassification, snapshot *models.SchemaSnapshot, dialect sqlutil.Dialect, terms []string) models.ExtractionResult {
	keywords := ExtractKeywords(question)
	candidate := e.synthesizer.Synthesize(intent, keywords, snapshot, dialect)
	sql, rejected := validateCandidate(candidate, models.StrategySynthesis, snapshot)
	if sql == "" || len(rejected) > 0 {
		// Templates only use snapshot identifiers, so this means the
		// snapshot itself is unusual (e.g. reserved-word names).
		e.logger.Warn("Synthesized query failed validation; using generic template",
			zap.Any("issues", rejected))
		generic := e.synthesizer.generic(nil, snapshot, dialect)
		if norm, again := validateCandidate(generic, models.StrategySynthesis, snapshot); norm != "" && len(again) == 0 {
			sql = norm
		} else {
			sql = sqlutil.Normalize(generic)
		}
	}
	return models.ExtractionResult{
		SQL:        sql,
		Strategy:   models.StrategySynthesis,
		Confidence: scoreCandidate(sql, synthesisBase, terms),
		Issues:     rejected,
	}
}

func validateCandidate(candidate string, strategy models.ExtractionStrategy, snapshot *models.SchemaSnapshot) (string, []models.ValidationIssue) {
	var lookup sqlutil.TableLookup
	if snapshot != nil {
		lookup = snapshot
	}
	sql, found := sqlutil.ValidateReadOnly(candidate, lookup)
	issues := make([]models.ValidationIssue, 0, len(found))
	for _, i := range found {
		issues = append(issues, models.ValidationIssue{Strategy: strategy, Code: string(i.Code), Message: i.Message})
	}
	return sql, issues
}

// scoreCandidate combines the strategy base with relevance and structure
// bonuses, clamped to [0, 1].
func scoreCandidate(sql string, base float64, questionTerms []string) float64 {
	idents := referencedIdentifiers(sql)

	relevance := 0.0
	for _, term := range questionTerms {
		for _, id := range idents {
			if identifierMatches(id, term) {
				relevance += 0.05
				break
			}
		}
	}
	relevance = min(relevance, 0.15)

	for _, g := range sqlutil.ParseGroupByColumns(sql) {
		if slices.ContainsFunc(questionTerms, func(t string) bool { return identifierMatches(g, t) }) {
			relevance += 0.05
			break
		}
	}

	structure := 0.0
	if sqlutil.HasRowLimit(sql) {
		structure += 0.05
	}
	if n := len(sql); n >= 20 && n <= 2000 {
		structure += 0.03
	}

	return clamp(base+relevance+structure, 0, 1)
}

// referencedIdentifiers lists tables and columns a statement names.
func referencedIdentifiers(sql string) []string {
	refs := sqlutil.ParseReferences(sql)
	var ids []string
	for _, t := range refs.BaseTables() {
		ids = append(ids, t.Name)
	}
	ids = append(ids, refs.QualifiedColumns()...)
	for _, c := range sqlutil.ParseSelectColumns(sql) {
		ids = append(ids, c.Name)
		if id := bareIdentifier(c.Expr); id != "" {
			ids = append(ids, id)
		}
	}
	ids = append(ids, sqlutil.ParseGroupByColumns(sql)...)
	return ids
}

var bareIdentPattern = regexp.MustCompile(`^(?:\w+\.)?(\w+)$`)

func bareIdentifier(expr string) string {
	if m := bareIdentPattern.FindStringSubmatch(strings.TrimSpace(expr)); m != nil {
		return m[1]
	}
	return ""
}

// questionTerms are the distinct content words of a question.
func questionTerms(question string) []string {
	var terms []string
	for _, w := range strings.Fields(normalizeQuestion(question)) {
		w = strings.Trim(w, "'-")
		if len(w) < 3 || stopwords[w] || slices.Contains(terms, w) {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}
