package models

import (
	"time"
)

// GenerationRequest is everything needed to ask the text-generation backend
// for a query. Identical inputs always compose an identical request.
type GenerationRequest struct {
	TenantID      string  `json:"tenant_id"`
	Question      string  `json:"question"`
	Prompt        string  `json:"prompt"`
	SystemMessage string  `json:"system_message"`
	Temperature   float64 `json:"temperature"`
	TemplateID    string  `json:"template_id"`
	Model         string  `json:"model"`
}

// ExtractionStrategy names how a query candidate was obtained.
type ExtractionStrategy string

const (
	StrategyFencedSQL     ExtractionStrategy = "fenced_sql"
	StrategyFencedGeneric ExtractionStrategy = "fenced_generic"
	StrategyMultiLine     ExtractionStrategy = "multiline"
	StrategySingleLine    ExtractionStrategy = "single_line"
	StrategySynthesis     ExtractionStrategy = "synthesis"
)

// ValidationIssue explains why a candidate was rejected.
type ValidationIssue struct {
	Strategy ExtractionStrategy `json:"strategy,omitempty"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
}

// ExtractionResult is the accepted query candidate. SQL is never empty.
type ExtractionResult struct {
	SQL        string             `json:"sql"`
	Strategy   ExtractionStrategy `json:"strategy"`
	Confidence float64            `json:"confidence"`
	Issues     []ValidationIssue  `json:"issues,omitempty"`
}

// ExecutionResult holds the rows of a read-only query.
type ExecutionResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Duration time.Duration    `json:"duration"`
}

// CachedResponse is a memoized generation result.
type CachedResponse struct {
	Key       string        `json:"key"`
	Value     string        `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at now.
func (c *CachedResponse) Expired(now time.Time) bool {
	return c.TTL > 0 && now.Sub(c.CreatedAt) >= c.TTL
}

// Stage is a state of the answer pipeline.
type Stage string

const (
	StageReceived               Stage = "RECEIVED"
	StageClassified             Stage = "CLASSIFIED"
	StageConversationalAnswered Stage = "CONVERSATIONAL_ANSWERED"
	StageSchemaResolved         Stage = "SCHEMA_RESOLVED"
	StagePrompted               Stage = "PROMPTED"
	StageGenerated              Stage = "GENERATED"
	StageExtracted              Stage = "EXTRACTED"
	StageValidated              Stage = "VALIDATED"
	StageExecuted               Stage = "EXECUTED"
	StageInterpreted            Stage = "INTERPRETED"
	StageAnswered               Stage = "ANSWERED"
)

// StageStatus is the explicit outcome of a pipeline stage.
type StageStatus string

const (
	StageOK       StageStatus = "ok"
	StageFallback StageStatus = "fallback"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageOutcome records one transition of the pipeline.
type StageOutcome struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Answer is the result of processing one question.
type Answer struct {
	RequestID  string                `json:"request_id"`
	Success    bool                  `json:"success"`
	Answer     string                `json:"answer"`
	SQLUsed    *string               `json:"sql_used"`
	RowCount   int                   `json:"row_count"`
	Confidence float64               `json:"confidence"`
	Elapsed    time.Duration         `json:"elapsed_ns"`
	Intent     *IntentClassification `json:"intent,omitempty"`
	Strategy   ExtractionStrategy    `json:"strategy,omitempty"`
	Degraded   bool                  `json:"degraded"`
	Trace      []StageOutcome        `json:"trace,omitempty"`
}
