package services

import (
	"math"
	"slices"
	"strings"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// IntentClassifierConfig holds the decision thresholds and optional weight
// overrides keyed by rule name (e.g. "entity.people").
type IntentClassifierConfig struct {
	HighThreshold     float64
	ModerateThreshold float64
	Weights           map[string]float64
}

// DefaultIntentClassifierConfig returns the starting thresholds.
func DefaultIntentClassifierConfig() IntentClassifierConfig {
	return IntentClassifierConfig{HighThreshold: 0.6, ModerateThreshold: 0.3}
}

// questionText is a question prepared once for all rules.
type questionText struct {
	normalized     string
	padded         string
	singularPadded string
	words          []string
	singulars      []string
}

func newQuestionText(question string) *questionText {
	n := normalizeQuestion(question)
	singulars := singularWords(n)
	return &questionText{
		normalized:     n,
		padded:         " " + n + " ",
		singularPadded: " " + strings.Join(singulars, " ") + " ",
		words:          strings.Fields(n),
		singulars:      singulars,
	}
}

// hasPhrase matches a whole-word phrase in either surface or singular form.
func (q *questionText) hasPhrase(phrase string) bool {
	p := " " + phrase + " "
	return strings.Contains(q.padded, p) || strings.Contains(q.singularPadded, p)
}

func (q *questionText) firstPhrase(phrases []string) (string, bool) {
	for _, p := range phrases {
		if q.hasPhrase(p) {
			return p, true
		}
	}
	return "", false
}

func (q *questionText) firstTerm(terms []string) (string, bool) {
	for i, w := range q.singulars {
		if slices.Contains(terms, w) || slices.Contains(terms, q.words[i]) {
			return q.words[i], true
		}
	}
	return "", false
}

// signalRule is one weighted cue.
type signalRule struct {
	name   string
	family string
	weight float64
	match  func(q *questionText, profile *models.TenantProfile) (string, bool)
}

func termRule(terms []string) func(*questionText, *models.TenantProfile) (string, bool) {
	return func(q *questionText, _ *models.TenantProfile) (string, bool) {
		return q.firstTerm(terms)
	}
}

func phraseRule(phrases []string) func(*questionText, *models.TenantProfile) (string, bool) {
	return func(q *questionText, _ *models.TenantProfile) (string, bool) {
		return q.firstPhrase(phrases)
	}
}

func matchDomainTerms(q *questionText, profile *models.TenantProfile) (string, bool) {
	if profile == nil {
		return "", false
	}
	for _, term := range profile.DomainTerms {
		if strings.Contains(term, " ") {
			if q.hasPhrase(term) {
				return term, true
			}
			continue
		}
		one := singular(term)
		for i, w := range q.singulars {
			if w == one || q.words[i] == term {
				return q.words[i], true
			}
		}
	}
	return "", false
}

func matchWhQuestion(q *questionText, _ *models.TenantProfile) (string, bool) {
	if len(q.words) == 0 {
		return "", false
	}
	switch q.words[0] {
	case "who", "what", "which", "where", "when", "whose", "what's", "who's":
		return q.words[0], true
	}
	return "", false
}

var (
	countingPhrases = []string{"how many", "number of", "count", "headcount", "total number"}
	listingPhrases  = []string{"list", "show", "display", "give me", "find", "all", "names of"}
	actionPhrases   = []string{
		"work on", "work in", "working on", "worked on", "assigned", "hired", "earn",
		"paid", "manage", "report to", "belong to", "sold", "spent", "spend",
		"average", "compare", "highest", "lowest", "top",
	}
	greetingPhrases = []string{"hi", "hello", "hey", "greetings", "howdy", "hiya", "good morning", "good afternoon", "good evening"}
	thanksPhrases   = []string{"thanks", "thank you", "thx", "cheers", "appreciate it", "much appreciated"}
	identityPhrases = []string{"who are you", "what are you", "your name", "are you a bot", "are you human"}
	helpPhrases     = []string{"help", "what can you do", "how does this work", "how do i use"}
)

// Sub-type cues. Ties resolve in subTypePriority order.
var (
	relationshipPhrases = []string{
		"work on", "working on", "worked on", "assigned", "assignment", "belong to",
		"associated with", "member of", "involved in", "participate", "who is on",
	}
	financialCuePhrases = []string{"how much", "sum of", "total cost", "total budget", "spend", "spent"}
	analysisPhrases     = []string{
		"average", "avg", "mean", "median", "compare", "comparison", "trend", "highest",
		"lowest", "top", "most", "least", "distribution", "breakdown", "ratio",
		"percentage", "percent", "growth", "maximum", "minimum", "rank",
	}
	listingCuePhrases = []string{"list", "show", "display", "give me", "find", "which", "what are", "who are", "names"}

	subTypePriority = []models.IntentSubType{
		models.SubTypeCounting,
		models.SubTypeRelationship,
		models.SubTypeFinancial,
		models.SubTypeAnalysis,
		models.SubTypeListing,
	}
)

// conversationalPatterns are bare conversational questions after normalization.
var conversationalPatterns = func() map[string]models.IntentSubType {
	m := make(map[string]models.IntentSubType)
	add := func(st models.IntentSubType, patterns ...string) {
		for _, p := range patterns {
			m[p] = st
		}
	}
	add(models.SubTypeGreeting,
		"hi", "hello", "hey", "hey there", "hi there", "hello there", "greetings",
		"howdy", "hiya", "yo", "good morning", "good afternoon", "good evening",
		"how are you", "hello how are you", "hi how are you")
	add(models.SubTypeThanks,
		"thanks", "thank you", "thanks a lot", "thank you very much", "thx",
		"cheers", "much appreciated", "thanks so much", "ok thanks", "great thanks")
	add(models.SubTypeIdentity,
		"who are you", "what are you", "what is your name", "what's your name",
		"whats your name", "are you a bot", "are you human", "who made you")
	add(models.SubTypeHelp,
		"help", "what can you do", "how can you help", "how can you help me",
		"what do you do", "how does this work", "how do i use this", "what can i ask")
	return m
}()

// IntentClassifier scores questions with an ordered list of weighted rules.
// It holds no per-request state and is safe for concurrent use.
type IntentClassifier struct {
	config IntentClassifierConfig
	rules  []signalRule
}

// NewIntentClassifier builds the rule list from config.
func NewIntentClassifier(config IntentClassifierConfig) *IntentClassifier {
	def := DefaultIntentClassifierConfig()
	if config.HighThreshold <= 0 || config.HighThreshold > 1 {
		config.HighThreshold = def.HighThreshold
	}
	if config.ModerateThreshold <= 0 || config.ModerateThreshold >= config.HighThreshold {
		config.ModerateThreshold = math.Min(def.ModerateThreshold, config.HighThreshold/2)
	}

	rules := []signalRule{
		{"entity.people", models.SignalFamilyEntity, 0.35, termRule(peopleTerms)},
		{"entity.work_item", models.SignalFamilyEntity, 0.35, termRule(workItemTerms)},
		{"entity.org_unit", models.SignalFamilyEntity, 0.3, termRule(orgUnitTerms)},
		{"entity.financial", models.SignalFamilyEntity, 0.35, termRule(financialTerms)},
		{"entity.domain_term", models.SignalFamilyEntity, 0.35, matchDomainTerms},
		{"structure.wh_question", models.SignalFamilyStructure, 0.15, matchWhQuestion},
		{"structure.counting", models.SignalFamilyStructure, 0.3, phraseRule(countingPhrases)},
		{"structure.listing", models.SignalFamilyStructure, 0.25, phraseRule(listingPhrases)},
		{"context.business_action", models.SignalFamilyContext, 0.2, phraseRule(actionPhrases)},
		{"context.greeting", models.SignalFamilyContext, -0.3, phraseRule(greetingPhrases)},
		{"context.thanks", models.SignalFamilyContext, -0.3, phraseRule(thanksPhrases)},
		{"context.identity", models.SignalFamilyContext, -0.3, phraseRule(identityPhrases)},
		{"context.help", models.SignalFamilyContext, -0.2, phraseRule(helpPhrases)},
	}
	for i := range rules {
		if w, ok := config.Weights[rules[i].name]; ok {
			rules[i].weight = w
		}
	}

	return &IntentClassifier{config: config, rules: rules}
}

// Classify scores a question for the given tenant. The result depends only
// on its inputs.
func (c *IntentClassifier) Classify(question string, profile *models.TenantProfile) models.IntentClassification {
	q := newQuestionText(question)

	var signals []models.Signal
	business := false
	for _, r := range c.rules {
		m, ok := r.match(q, profile)
		if !ok {
			continue
		}
		signals = append(signals, models.Signal{Name: r.name, Family: r.family, Weight: r.weight, Match: m})
		if r.family == models.SignalFamilyEntity {
			business = true
		}
	}

	if st, ok := conversationalPatterns[q.normalized]; ok && !business {
		return models.IntentClassification{
			Category:   models.IntentConversational,
			SubType:    st,
			Confidence: 0.95,
			Signals:    signals,
		}
	}

	// Conversational cues only count when no entity was mentioned, so a
	// greeting never outweighs a business question.
	score := 0.0
	for _, s := range signals {
		if s.Weight < 0 && business {
			continue
		}
		score += s.Weight
	}

	result := models.IntentClassification{Score: score, Signals: signals}
	high, moderate := c.config.HighThreshold, c.config.ModerateThreshold
	switch {
	case score >= high:
		result.Category = models.IntentBusinessQuery
		excess := 1.0
		if high < 1 {
			excess = math.Min(1, (score-high)/(1-high))
		}
		result.Confidence = 0.75 + 0.25*excess
	case score >= moderate:
		result.Category = models.IntentBusinessQuery
		result.Confidence = 0.5 + 0.2*(score-moderate)/(high-moderate)
	default:
		result.Category = models.IntentConversational
		result.Confidence = clamp(0.6+0.4*(moderate-score)/moderate, 0.6, 0.95)
	}

	if result.Category == models.IntentBusinessQuery {
		result.SubType = businessSubType(q, signals)
		result.ShouldGenerateSQL = true
	} else {
		result.SubType = conversationalSubType(signals)
	}
	return result
}

func businessSubType(q *questionText, signals []models.Signal) models.IntentSubType {
	fired := make(map[string]bool, len(signals))
	for _, s := range signals {
		fired[s.Name] = true
	}

	scores := map[models.IntentSubType]int{}
	if fired["structure.counting"] {
		scores[models.SubTypeCounting]++
	}
	scores[models.SubTypeRelationship] += countPhrases(q, relationshipPhrases)
	if fired["entity.people"] && fired["entity.work_item"] {
		scores[models.SubTypeRelationship]++
	}
	if fired["entity.financial"] {
		scores[models.SubTypeFinancial]++
	}
	scores[models.SubTypeFinancial] += countPhrases(q, financialCuePhrases)
	scores[models.SubTypeAnalysis] += countPhrases(q, analysisPhrases)
	scores[models.SubTypeListing] += countPhrases(q, listingCuePhrases)

	best, bestScore := models.SubTypeGeneral, 0
	for _, st := range subTypePriority {
		if scores[st] > bestScore {
			best, bestScore = st, scores[st]
		}
	}
	return best
}

func conversationalSubType(signals []models.Signal) models.IntentSubType {
	for _, s := range signals {
		switch s.Name {
		case "context.greeting":
			return models.SubTypeGreeting
		case "context.thanks":
			return models.SubTypeThanks
		case "context.identity":
			return models.SubTypeIdentity
		case "context.help":
			return models.SubTypeHelp
		}
	}
	return models.SubTypeGeneral
}

func countPhrases(q *questionText, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if q.hasPhrase(p) {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
