package models

// IntentCategory separates conversational replies from data questions.
type IntentCategory string

const (
	IntentConversational IntentCategory = "conversational"
	IntentBusinessQuery  IntentCategory = "business_query"
)

// IntentSubType refines the category. Business sub-types drive prompt
// examples, fallback templates and answer formatting.
type IntentSubType string

const (
	SubTypeCounting     IntentSubType = "counting"
	SubTypeListing      IntentSubType = "listing"
	SubTypeRelationship IntentSubType = "relationship"
	SubTypeFinancial    IntentSubType = "financial"
	SubTypeAnalysis     IntentSubType = "analysis"
	SubTypeGeneral      IntentSubType = "general"

	SubTypeGreeting IntentSubType = "greeting"
	SubTypeThanks   IntentSubType = "thanks"
	SubTypeIdentity IntentSubType = "identity"
	SubTypeHelp     IntentSubType = "help"
)

// Signal families used by the intent classifier.
const (
	SignalFamilyEntity    = "entity"
	SignalFamilyStructure = "structure"
	SignalFamilyContext   = "context"
)

// Signal is one classifier rule that fired for a question.
type Signal struct {
	Name   string  `json:"name"`
	Family string  `json:"family"`
	Weight float64 `json:"weight"`
	Match  string  `json:"match,omitempty"`
}

// IntentClassification is the classifier's verdict for a single question.
type IntentClassification struct {
	Category          IntentCategory `json:"category"`
	SubType           IntentSubType  `json:"sub_type"`
	Confidence        float64        `json:"confidence"`
	Score             float64        `json:"score"`
	Signals           []Signal       `json:"signals"`
	ShouldGenerateSQL bool           `json:"should_generate_sql"`
}

// IsBusiness reports whether the question needs data retrieval.
func (i IntentClassification) IsBusiness() bool {
	return i.Category == IntentBusinessQuery
}
