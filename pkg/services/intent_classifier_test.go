package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

func signalNames(c models.IntentClassification) []string {
	names := make([]string, len(c.Signals))
	for i, s := range c.Signals {
		names[i] = s.Name
	}
	return names
}

func TestIntentClassifier_CountingQuestion(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())

	got := c.Classify("How many employees are in each department?", testProfile())

	assert.Equal(t, models.IntentBusinessQuery, got.Category)
	assert.Equal(t, models.SubTypeCounting, got.SubType)
	assert.True(t, got.ShouldGenerateSQL)
	assert.InDelta(t, 0.95, got.Score, 1e-9)
	assert.GreaterOrEqual(t, got.Confidence, 0.75)
	assert.Subset(t, signalNames(got), []string{"entity.people", "entity.org_unit", "structure.counting"})
}

func TestIntentClassifier_Greeting(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())

	for _, q := range []string{"Hello", "hello!", "  Hi there ", "Good morning."} {
		got := c.Classify(q, testProfile())
		assert.Equal(t, models.IntentConversational, got.Category, q)
		assert.Equal(t, models.SubTypeGreeting, got.SubType, q)
		assert.False(t, got.ShouldGenerateSQL, q)
		assert.InDelta(t, 0.95, got.Confidence, 1e-9, q)
	}
}

func TestIntentClassifier_ConversationalSubTypes(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())

	tests := []struct {
		question string
		want     models.IntentSubType
	}{
		{"Thank you!", models.SubTypeThanks},
		{"thanks so much", models.SubTypeThanks},
		{"Who are you?", models.SubTypeIdentity},
		{"What can you do?", models.SubTypeHelp},
		{"hey, can you help me out with something", models.SubTypeGreeting},
		{"What's the weather like?", models.SubTypeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := c.Classify(tt.question, testProfile())
			assert.Equal(t, models.IntentConversational, got.Category)
			assert.Equal(t, tt.want, got.SubType)
			assert.False(t, got.ShouldGenerateSQL)
		})
	}
}

func TestIntentClassifier_GreetingWithBusinessQuestion(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())

	got := c.Classify("Hello, how many employees are there?", testProfile())

	assert.Equal(t, models.IntentBusinessQuery, got.Category)
	assert.Equal(t, models.SubTypeCounting, got.SubType)
	assert.Contains(t, signalNames(got), "context.greeting")
	assert.InDelta(t, 0.65, got.Score, 1e-9)
}

func TestIntentClassifier_BusinessSubTypes(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())

	tests := []struct {
		question string
		want     models.IntentSubType
	}{
		{"Which employees work on project Apollo?", models.SubTypeRelationship},
		{"What is the total budget of all departments?", models.SubTypeFinancial},
		{"Compare the highest and lowest paid teams", models.SubTypeAnalysis},
		{"List the projects and their status", models.SubTypeListing},
		{"Count the open tickets", models.SubTypeCounting},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := c.Classify(tt.question, testProfile())
			assert.Equal(t, models.IntentBusinessQuery, got.Category)
			assert.Equal(t, tt.want, got.SubType)
		})
	}
}

func TestIntentClassifier_DomainTerms(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())
	profile := testProfile()
	profile.DomainTerms = []string{"sku", "loyalty tier"}

	got := c.Classify("which skus sold out", profile)
	assert.Contains(t, signalNames(got), "entity.domain_term")
	assert.Equal(t, models.IntentBusinessQuery, got.Category)

	got = c.Classify("what loyalty tier has the best retention", profile)
	assert.Contains(t, signalNames(got), "entity.domain_term")
}

func TestIntentClassifier_ModerateBand(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())

	got := c.Classify("projects?", testProfile())

	assert.Equal(t, models.IntentBusinessQuery, got.Category)
	assert.Equal(t, models.SubTypeGeneral, got.SubType)
	assert.InDelta(t, 0.35, got.Score, 1e-9)
	assert.True(t, got.Confidence >= 0.5 && got.Confidence < 0.75, "confidence %f", got.Confidence)
}

func TestIntentClassifier_WeightOverrides(t *testing.T) {
	cfg := DefaultIntentClassifierConfig()
	cfg.Weights = map[string]float64{"entity.work_item": 0.1}
	c := NewIntentClassifier(cfg)

	got := c.Classify("projects?", testProfile())

	assert.Equal(t, models.IntentConversational, got.Category)
	assert.InDelta(t, 0.1, got.Score, 1e-9)
}

func TestIntentClassifier_InvalidThresholdsFallBackToDefaults(t *testing.T) {
	c := NewIntentClassifier(IntentClassifierConfig{HighThreshold: 3, ModerateThreshold: 5})

	assert.Equal(t, 0.6, c.config.HighThreshold)
	assert.Equal(t, 0.3, c.config.ModerateThreshold)
}

func TestIntentClassifier_DeterministicAndBounded(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentClassifierConfig())
	questions := []string{
		"", "?", "hello", "How many employees are in each department?",
		"what is the average salary per department and who earns the most",
		"thanks, who works on the payroll project", "asdf qwerty",
	}

	for _, q := range questions {
		first := c.Classify(q, testProfile())
		second := c.Classify(q, testProfile())
		assert.Equal(t, first, second, q)
		assert.GreaterOrEqual(t, first.Confidence, 0.0, q)
		assert.LessOrEqual(t, first.Confidence, 1.0, q)
		assert.Equal(t, first.Category == models.IntentBusinessQuery, first.ShouldGenerateSQL, q)
	}
}
