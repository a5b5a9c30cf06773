package services

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
)

// Entity vocabularies, in singular form.
var (
	peopleTerms = []string{
		"employee", "staff", "person", "people", "worker", "engineer", "developer",
		"manager", "colleague", "member", "customer", "client", "patient", "user",
		"personnel", "analyst", "designer", "hire", "doctor", "nurse", "salesperson",
	}
	workItemTerms = []string{
		"project", "task", "assignment", "ticket", "order", "product", "item",
		"sale", "invoice", "deal", "appointment", "job", "contract",
	}
	orgUnitTerms = []string{
		"department", "team", "division", "unit", "office", "location", "region",
		"branch", "category", "status", "role", "position",
	}
	financialTerms = []string{
		"salary", "budget", "revenue", "cost", "price", "payment", "expense",
		"income", "profit", "spend", "spending", "wage", "money", "amount",
		"compensation", "payroll", "earning", "balance",
	}
)

// unitColumnNames are grouping columns tried in order by the synthesizer.
var unitColumnNames = []string{
	"department", "team", "division", "category", "status", "location",
	"region", "role", "position", "type",
}

// moneyColumnHints mark numeric columns holding currency amounts.
var moneyColumnHints = []string{
	"salary", "budget", "amount", "price", "revenue", "cost", "total",
	"balance", "pay", "wage", "income", "expense", "profit",
}

var stopwords = toSet(
	"a", "an", "the", "and", "or", "of", "in", "on", "at", "to", "for", "by",
	"with", "from", "is", "are", "was", "were", "be", "been", "do", "does",
	"did", "have", "has", "had", "i", "me", "my", "we", "our", "you", "your",
	"it", "its", "they", "them", "their", "this", "that", "these", "those",
	"what", "which", "who", "whom", "whose", "where", "when", "why", "how",
	"many", "much", "all", "any", "each", "every", "some", "no", "not",
	"there", "here", "please", "can", "could", "would", "should", "will",
	"show", "list", "give", "tell", "find", "get", "display", "about",
	"work", "works", "working", "per", "than", "more", "most", "less", "least",
	"number", "count", "total", "sum", "s",
	"hi", "hello", "hey", "thanks", "thank", "assigned", "assign", "belong",
	"belongs", "hired", "earn", "earns", "paid", "manage", "manages", "report",
	"reports", "sold", "spent", "spend", "compare", "involved", "participate",
	"associated", "name", "names", "know", "want", "see", "need", "currently",
	"now", "today", "also", "only", "just", "other", "into", "over", "under",
)

var nonWordChars = regexp.MustCompile(`[^\p{L}\p{N}'\s-]+`)

// normalizeQuestion lower-cases and strips punctuation, keeping apostrophes
// and hyphens inside words.
func normalizeQuestion(q string) string {
	q = strings.ToLower(q)
	q = strings.ReplaceAll(q, "’", "'")
	q = nonWordChars.ReplaceAllString(q, " ")
	return strings.Join(strings.Fields(q), " ")
}

// singularWords returns the words of a normalized question in singular form.
func singularWords(normalized string) []string {
	words := strings.Fields(normalized)
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = singular(strings.Trim(w, "'-"))
	}
	return out
}

func singular(word string) string {
	if word == "" {
		return word
	}
	return inflection.Singular(word)
}

// ExtractKeywords returns the content words of a question, in order and
// without duplicates.
func ExtractKeywords(question string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(normalizeQuestion(question)) {
		w = strings.Trim(w, "'-")
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// identifierMatches reports whether a schema identifier names the word,
// comparing singular forms and ignoring underscores.
func identifierMatches(identifier, word string) bool {
	id := strings.ToLower(identifier)
	w := singular(strings.ToLower(word))
	if id == w || singular(id) == w {
		return true
	}
	flat := strings.ReplaceAll(id, "_", "")
	return flat == w || singular(flat) == w
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
