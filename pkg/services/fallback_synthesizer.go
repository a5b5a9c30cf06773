package services

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

const maxGenericColumns = 6

// FallbackSynthesizer builds a safe query from templates when generated text
// cannot be used. Templates only reference identifiers from the snapshot.
type FallbackSynthesizer struct {
	rowCap int
}

// NewFallbackSynthesizer creates a synthesizer whose row-returning templates
// are capped at rowCap rows.
func NewFallbackSynthesizer(rowCap int) *FallbackSynthesizer {
	if rowCap < 1 {
		rowCap = 100
	}
	return &FallbackSynthesizer{rowCap: rowCap}
}

// Synthesize returns a read-only query for the intent. It always returns a
// statement when the snapshot has at least one table.
func (s *FallbackSynthesizer) Synthesize(intent models.IntentClassification, keywords []string, snapshot *models.SchemaSnapshot, dialect sqlutil.Dialect) string {
	if snapshot == nil || len(snapshot.Tables) == 0 {
		return ""
	}

	var query string
	switch intent.SubType {
	case models.SubTypeCounting:
		query = s.counting(keywords, snapshot, dialect)
	case models.SubTypeRelationship:
		query = s.relationship(keywords, snapshot, dialect)
	case models.SubTypeFinancial:
		query = s.financial(keywords, snapshot, dialect)
	case models.SubTypeAnalysis:
		if query = s.financial(keywords, snapshot, dialect); query == "" {
			query = s.counting(keywords, snapshot, dialect)
		}
	}
	if query == "" {
		query = s.search(keywords, snapshot, dialect)
	}
	if query == "" {
		query = s.generic(keywords, snapshot, dialect)
	}
	return query
}

func (s *FallbackSynthesizer) counting(keywords []string, snap *models.SchemaSnapshot, d sqlutil.Dialect) string {
	t := primaryTable(keywords, snap)
	unit := unitColumn(t, keywords)
	if unit == nil {
		return fmt.Sprintf("SELECT COUNT(*) AS total_count FROM %s", d.QuoteIdent(t.Name))
	}
	u := d.QuoteIdent(unit.Name)
	alias := entityName(t.Name) + "_count"
	return d.ApplyLimit(fmt.Sprintf("SELECT %s, COUNT(*) AS %s FROM %s GROUP BY %s ORDER BY %s DESC",
		u, alias, d.QuoteIdent(t.Name), u, alias), s.rowCap)
}

func (s *FallbackSynthesizer) financial(keywords []string, snap *models.SchemaSnapshot, d sqlutil.Dialect) string {
	t, money := moneyTable(keywords, snap)
	if t == nil {
		return ""
	}

	fn, prefix := "SUM", "total_"
	for _, kw := range keywords {
		if kw == "average" || kw == "avg" || kw == "mean" {
			fn, prefix = "AVG", "average_"
			break
		}
	}
	m := d.QuoteIdent(money.Name)
	alias := prefix + identifierPart(money.Name)

	unit := unitColumn(t, keywords)
	if unit == nil {
		return fmt.Sprintf("SELECT %s(%s) AS %s FROM %s", fn, m, alias, d.QuoteIdent(t.Name))
	}
	u := d.QuoteIdent(unit.Name)
	return d.ApplyLimit(fmt.Sprintf("SELECT %s, %s(%s) AS %s FROM %s GROUP BY %s ORDER BY %s DESC",
		u, fn, m, alias, d.QuoteIdent(t.Name), u, alias), s.rowCap)
}

// relationship joins people to work items through a direct foreign key or a
// junction table. Outer joins keep people without items.
func (s *FallbackSynthesizer) relationship(keywords []string, snap *models.SchemaSnapshot, d sqlutil.Dialect) string {
	people := findTable(snap, peopleTerms, keywords)
	items := findTable(snap, workItemTerms, keywords)
	if people == nil || items == nil || people == items {
		return ""
	}

	personLabel := labelColumn(people)
	itemLabel := labelColumn(items)
	personAlias := entityName(people.Name) + "_name"
	itemAlias := entityName(items.Name) + "_name"
	itemCol := "i." + d.QuoteIdent(itemLabel)

	var query string
	if fk, ok := directEdge(snap, people.Name, items.Name); ok {
		query = fmt.Sprintf("SELECT p.%s AS %s, COALESCE(%s, 'Unassigned') AS %s FROM %s p LEFT JOIN %s i ON p.%s = i.%s",
			d.QuoteIdent(personLabel), personAlias, itemCol, itemAlias,
			d.QuoteIdent(people.Name), d.QuoteIdent(items.Name),
			d.QuoteIdent(fk.Column), d.QuoteIdent(fk.RefColumn))
	} else if j, toPerson, toItem, ok := junction(snap, people.Name, items.Name); ok {
		roleSelect := ""
		if role, ok := j.Column("role"); ok {
			roleSelect = fmt.Sprintf(", j.%s AS role", d.QuoteIdent(role.Name))
		}
		query = fmt.Sprintf("SELECT p.%s AS %s, COALESCE(%s, 'Unassigned') AS %s%s FROM %s p LEFT JOIN %s j ON j.%s = p.%s LEFT JOIN %s i ON j.%s = i.%s",
			d.QuoteIdent(personLabel), personAlias, itemCol, itemAlias, roleSelect,
			d.QuoteIdent(people.Name),
			d.QuoteIdent(j.Name), d.QuoteIdent(toPerson.Column), d.QuoteIdent(toPerson.RefColumn),
			d.QuoteIdent(items.Name), d.QuoteIdent(toItem.Column), d.QuoteIdent(toItem.RefColumn))
	} else {
		return ""
	}

	if terms := searchTerms(keywords, snap); len(terms) > 0 {
		preds := make([]string, 0, len(terms)*2)
		for _, term := range terms {
			preds = append(preds, d.ContainsMatch(itemCol, term), d.ContainsMatch("p."+d.QuoteIdent(personLabel), term))
		}
		query += " WHERE " + strings.Join(preds, " OR ")
	}
	query += " ORDER BY " + personAlias
	return d.ApplyLimit(query, s.rowCap)
}

func (s *FallbackSynthesizer) search(keywords []string, snap *models.SchemaSnapshot, d sqlutil.Dialect) string {
	terms := searchTerms(keywords, snap)
	if len(terms) == 0 {
		return ""
	}
	t := primaryTable(keywords, snap)

	var textCols []string
	for _, c := range t.Columns {
		if c.IsText() {
			textCols = append(textCols, d.QuoteIdent(c.Name))
		}
	}
	if len(textCols) == 0 {
		return ""
	}

	var preds []string
	for _, term := range terms {
		for _, col := range textCols {
			preds = append(preds, d.ContainsMatch(col, term))
		}
	}
	return d.ApplyLimit(fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		selectList(t, d), d.QuoteIdent(t.Name), strings.Join(preds, " OR ")), s.rowCap)
}

func (s *FallbackSynthesizer) generic(keywords []string, snap *models.SchemaSnapshot, d sqlutil.Dialect) string {
	t := primaryTable(keywords, snap)
	return d.ApplyLimit(fmt.Sprintf("SELECT %s FROM %s", selectList(t, d), d.QuoteIdent(t.Name)), s.rowCap)
}

// primaryTable picks the table named by a keyword, else the people table,
// else the first table.
func primaryTable(keywords []string, snap *models.SchemaSnapshot) *models.Table {
	for _, kw := range keywords {
		for i := range snap.Tables {
			if identifierMatches(snap.Tables[i].Name, kw) {
				return &snap.Tables[i]
			}
		}
	}
	if t := findTable(snap, peopleTerms, keywords); t != nil {
		return t
	}
	return &snap.Tables[0]
}

// findTable returns a table named after one of terms, preferring one that a
// keyword also names.
func findTable(snap *models.SchemaSnapshot, terms, keywords []string) *models.Table {
	var first *models.Table
	for _, term := range terms {
		for i := range snap.Tables {
			t := &snap.Tables[i]
			if !identifierMatches(t.Name, term) {
				continue
			}
			if first == nil {
				first = t
			}
			for _, kw := range keywords {
				if identifierMatches(t.Name, kw) {
					return t
				}
			}
		}
	}
	return first
}

func moneyTable(keywords []string, snap *models.SchemaSnapshot) (*models.Table, *models.Column) {
	// A money column named in the question wins.
	for _, kw := range keywords {
		for i := range snap.Tables {
			t := &snap.Tables[i]
			for j := range t.Columns {
				c := &t.Columns[j]
				if c.IsNumeric() && identifierMatches(c.Name, kw) && isMoneyColumn(c) {
					return t, c
				}
			}
		}
	}
	ordered := []*models.Table{primaryTable(keywords, snap)}
	for i := range snap.Tables {
		ordered = append(ordered, &snap.Tables[i])
	}
	for _, t := range ordered {
		for j := range t.Columns {
			if c := &t.Columns[j]; c.IsNumeric() && isMoneyColumn(c) {
				return t, c
			}
		}
	}
	return nil, nil
}

func isMoneyColumn(c *models.Column) bool {
	name := strings.ToLower(c.Name)
	for _, hint := range moneyColumnHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(c.DataType), "money")
}

// unitColumn picks a grouping column: one named in the question first, then
// the conventional organizational unit names.
func unitColumn(t *models.Table, keywords []string) *models.Column {
	usable := func(c *models.Column) bool {
		name := strings.ToLower(c.Name)
		return !c.IsNumeric() && name != "id" && !strings.HasSuffix(name, "_id") && !slices.Contains(t.PrimaryKey, c.Name)
	}
	for _, kw := range keywords {
		for i := range t.Columns {
			if c := &t.Columns[i]; usable(c) && identifierMatches(c.Name, kw) {
				return c
			}
		}
	}
	for _, name := range unitColumnNames {
		if c, ok := t.Column(name); ok && usable(c) {
			return c
		}
	}
	return nil
}

func labelColumn(t *models.Table) string {
	for _, name := range []string{"name", "full_name", "title", "display_name"} {
		if c, ok := t.Column(name); ok {
			return c.Name
		}
	}
	for _, c := range t.Columns {
		if c.IsText() {
			return c.Name
		}
	}
	return t.Columns[0].Name
}

func directEdge(snap *models.SchemaSnapshot, from, to string) (models.ForeignKey, bool) {
	for _, fk := range snap.ForeignKeysFrom(from) {
		if strings.EqualFold(fk.RefTable, to) {
			return fk, true
		}
	}
	return models.ForeignKey{}, false
}

func junction(snap *models.SchemaSnapshot, people, items string) (*models.Table, models.ForeignKey, models.ForeignKey, bool) {
	for i := range snap.Tables {
		j := &snap.Tables[i]
		if strings.EqualFold(j.Name, people) || strings.EqualFold(j.Name, items) {
			continue
		}
		toPerson, okP := directEdge(snap, j.Name, people)
		toItem, okI := directEdge(snap, j.Name, items)
		if okP && okI {
			return j, toPerson, toItem, true
		}
	}
	return nil, models.ForeignKey{}, models.ForeignKey{}, false
}

// searchTerms keeps keywords that name data values rather than schema
// objects or entity vocabulary, sanitized for use in a LIKE pattern.
func searchTerms(keywords []string, snap *models.SchemaSnapshot) []string {
	var terms []string
	for _, kw := range keywords {
		if isSchemaWord(kw, snap) || isVocabularyWord(kw) || len(kw) < 3 {
			continue
		}
		if clean, ok := sqlutil.SanitizeSearchTerm(kw); ok {
			terms = append(terms, clean)
		}
	}
	return terms
}

func isSchemaWord(word string, snap *models.SchemaSnapshot) bool {
	for _, t := range snap.Tables {
		if identifierMatches(t.Name, word) {
			return true
		}
		for _, c := range t.Columns {
			if identifierMatches(c.Name, word) {
				return true
			}
		}
	}
	return false
}

func isVocabularyWord(word string) bool {
	w := singular(word)
	for _, set := range [][]string{peopleTerms, workItemTerms, orgUnitTerms, financialTerms, analysisPhrases} {
		if slices.Contains(set, w) || slices.Contains(set, word) {
			return true
		}
	}
	return false
}

func selectList(t *models.Table, d sqlutil.Dialect) string {
	n := min(len(t.Columns), maxGenericColumns)
	cols := make([]string, n)
	for i := 0; i < n; i++ {
		cols[i] = d.QuoteIdent(t.Columns[i].Name)
	}
	return strings.Join(cols, ", ")
}

var nonIdentChars = regexp.MustCompile(`[^a-z0-9_]+`)

func identifierPart(name string) string {
	s := strings.Trim(nonIdentChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "row" + s
	}
	return s
}

// entityName is the singular form of a table name usable inside an alias.
func entityName(table string) string {
	return identifierPart(singular(strings.ToLower(table)))
}
