package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/prompts"
	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// ApologyAnswer is shown when no query could be executed. Diagnostics are
// logged, never returned.
const ApologyAnswer = "Sorry, I couldn't retrieve that information right now. Please try again in a moment."

// AnswerService runs the question-to-answer pipeline.
type AnswerService interface {
	// Process answers a question for a tenant. Unknown tenants and empty
	// questions return an error; every other fault yields an Answer with
	// Success set accordingly.
	Process(ctx context.Context, question, tenantID string) (*models.Answer, error)

	// ProcessStream runs the same pipeline and streams the final phrasing
	// as text events followed by one done event carrying the Answer.
	// events is never closed.
	ProcessStream(ctx context.Context, question, tenantID string, events chan<- llm.StreamEvent) (*models.Answer, error)
}

// AnswerServiceConfig bounds query execution and answer phrasing.
type AnswerServiceConfig struct {
	RowCap            int
	ExecutionTimeout  time.Duration
	ExecutionRetries  int
	AnswerTemperature float64
}

// AnswerServiceDeps are the collaborators of the pipeline.
type AnswerServiceDeps struct {
	Tenants     TenantRegistry
	Schemas     SchemaRegistry
	Classifier  *IntentClassifier
	Composer    *prompts.Composer
	Generation  GenerationService
	Extractor   *SQLExtractor
	Interpreter *ResultInterpreter
	Adapters    datasource.AdapterFactory
}

type answerService struct {
	deps   AnswerServiceDeps
	config AnswerServiceConfig
	logger *zap.Logger
}

var _ AnswerService = (*answerService)(nil)

// NewAnswerService wires the pipeline.
func NewAnswerService(deps AnswerServiceDeps, config AnswerServiceConfig, logger *zap.Logger) AnswerService {
	if config.RowCap < 1 {
		config.RowCap = 100
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = 30 * time.Second
	}
	return &answerService{deps: deps, config: config, logger: logger.Named("answer")}
}

// stageTrace records stage outcomes and their durations.
type stageTrace struct {
	outcomes []models.StageOutcome
	last     time.Time
}

func newStageTrace() *stageTrace {
	return &stageTrace{last: time.Now()}
}

func (t *stageTrace) record(stage models.Stage, status models.StageStatus, detail string) {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.outcomes = append(t.outcomes, models.StageOutcome{Stage: stage, Status: status, Detail: detail, Duration: d})
	metrics.ObserveStage(string(stage), d)
}

// pipelineRun is the state of one request.
type pipelineRun struct {
	id       string
	question string
	tenant   *models.TenantProfile
	start    time.Time
	trace    *stageTrace
	logger   *zap.Logger

	intent   models.IntentClassification
	snapshot *models.SchemaSnapshot
	dialect  sqlutil.Dialect
	sql      string
	result   *models.ExecutionResult
	answer   *models.Answer
}

func (s *answerService) Process(ctx context.Context, question, tenantID string) (*models.Answer, error) {
	run, err := s.begin(question, tenantID)
	if err != nil {
		return nil, err
	}
	s.run(ctx, run)
	return s.finish(run), nil
}

func (s *answerService) ProcessStream(ctx context.Context, question, tenantID string, events chan<- llm.StreamEvent) (*models.Answer, error) {
	run, err := s.begin(question, tenantID)
	if err != nil {
		return nil, err
	}
	s.run(ctx, run)

	if run.answer.Success && run.result != nil && len(run.result.Rows) > 0 {
		phrased, err := s.streamPhrasing(ctx, run, events)
		if err != nil {
			return nil, err
		}
		if phrased != "" {
			run.answer.Answer = phrased
		}
	} else if !llm.SendEvent(ctx, events, llm.StreamEvent{Type: llm.StreamEventText, Content: run.answer.Answer}) {
		return nil, ctx.Err()
	}

	answer := s.finish(run)
	if !llm.SendEvent(ctx, events, llm.StreamEvent{Type: llm.StreamEventDone, Data: answer}) {
		return nil, ctx.Err()
	}
	return answer, nil
}

func (s *answerService) begin(question, tenantID string) (*pipelineRun, error) {
	tenant, err := s.deps.Tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", apperrors.ErrInvalidRequest)
	}

	id := uuid.NewString()
	run := &pipelineRun{
		id:       id,
		question: question,
		tenant:   tenant,
		start:    time.Now(),
		trace:    newStageTrace(),
		logger:   s.logger.With(zap.String("request_id", id), zap.String("tenant_id", tenant.ID)),
		dialect:  sqlutil.DialectFor(tenant.Datasource.Type),
		answer:   &models.Answer{RequestID: id},
	}
	run.trace.record(models.StageReceived, models.StageOK, "")
	return run, nil
}

// run drives the state machine. It always leaves run.answer populated.
func (s *answerService) run(ctx context.Context, run *pipelineRun) {
	run.intent = s.deps.Classifier.Classify(run.question, run.tenant)
	intent := run.intent
	run.answer.Intent = &intent
	run.trace.record(models.StageClassified, models.StageOK,
		fmt.Sprintf("%s/%s %.2f", intent.Category, intent.SubType, intent.Confidence))

	if !intent.ShouldGenerateSQL {
		run.answer.Success = true
		run.answer.Answer = ConversationalReply(intent, run.tenant)
		run.answer.Confidence = intent.Confidence
		run.trace.record(models.StageConversationalAnswered, models.StageOK, string(intent.SubType))
		return
	}

	run.snapshot = s.deps.Schemas.GetSchema(ctx, run.tenant)
	if run.snapshot.Fallback {
		run.answer.Degraded = true
		run.trace.record(models.StageSchemaResolved, models.StageFallback, "built-in schema")
	} else {
		run.trace.record(models.StageSchemaResolved, models.StageOK, fmt.Sprintf("%d tables", len(run.snapshot.Tables)))
	}

	req := s.deps.Composer.Compose(run.question, run.snapshot, run.tenant, intent)
	run.trace.record(models.StagePrompted, models.StageOK, req.TemplateID)

	raw, cached, err := s.deps.Generation.Generate(ctx, &req)
	switch {
	case err != nil:
		run.answer.Degraded = true
		run.logger.Warn("Generation unavailable; falling back to synthesis",
			zap.String("error", logging.SanitizeError(err)))
		run.trace.record(models.StageGenerated, models.StageFallback, "generation unavailable")
	case cached:
		run.trace.record(models.StageGenerated, models.StageOK, "cache hit")
	default:
		run.trace.record(models.StageGenerated, models.StageOK, "")
	}

	ext := s.deps.Extractor.Extract(raw, run.question, intent, run.snapshot, run.dialect)
	extStatus := models.StageOK
	if ext.Strategy == models.StrategySynthesis {
		extStatus = models.StageFallback
	}
	run.trace.record(models.StageExtracted, extStatus, string(ext.Strategy))
	run.trace.record(models.StageValidated, models.StageOK, fmt.Sprintf("%d rejected", len(ext.Issues)))
	metrics.ObserveExtraction(string(ext.Strategy))

	run.sql = ext.SQL
	run.answer.Strategy = ext.Strategy
	run.answer.Confidence = ext.Confidence

	result, err := s.execute(ctx, run.tenant, ext.SQL)
	if err != nil && ext.Strategy != models.StrategySynthesis {
		run.logger.Warn("Generated query failed; retrying with synthesized query",
			zap.String("sql", logging.SanitizeQuery(ext.SQL)),
			zap.String("error", logging.SanitizeError(err)))
		synth := s.deps.Extractor.Synthesize(run.question, intent, run.snapshot, run.dialect)
		run.sql = synth.SQL
		run.answer.Strategy = synth.Strategy
		run.answer.Confidence = synth.Confidence
		run.answer.Degraded = true
		result, err = s.execute(ctx, run.tenant, synth.SQL)
		if err == nil {
			run.trace.record(models.StageExecuted, models.StageFallback, fmt.Sprintf("%d rows", result.RowCount))
		}
	} else if err == nil {
		run.trace.record(models.StageExecuted, models.StageOK, fmt.Sprintf("%d rows", result.RowCount))
	}
	sql := run.sql
	run.answer.SQLUsed = &sql

	if err != nil {
		run.logger.Error("Query execution failed",
			zap.String("sql", logging.SanitizeQuery(run.sql)),
			zap.String("error", logging.SanitizeError(err)))
		run.trace.record(models.StageExecuted, models.StageFailed, executionKind(err))
		run.answer.Success = false
		run.answer.Degraded = true
		run.answer.Confidence = 0
		run.answer.Answer = ApologyAnswer
		return
	}

	run.result = result
	run.answer.RowCount = result.RowCount
	run.answer.Success = true
	run.answer.Answer = s.deps.Interpreter.Interpret(run.question, result, intent, run.tenant)
	run.trace.record(models.StageInterpreted, models.StageOK, "")
}

// execute runs a query with a per-attempt timeout, retrying connection and
// timeout failures.
func (s *answerService) execute(ctx context.Context, tenant *models.TenantProfile, sql string) (*models.ExecutionResult, error) {
	executor, err := s.deps.Adapters.NewQueryExecutor(ctx, tenant)
	if err != nil {
		return nil, datasource.NewExecutionError(err)
	}
	defer executor.Close()

	cfg := retry.DefaultConfig()
	cfg.MaxRetries = s.config.ExecutionRetries

	return retry.DoWithResult(ctx, cfg, func(ctx context.Context) (*models.ExecutionResult, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.config.ExecutionTimeout)
		defer cancel()
		return executor.Query(attemptCtx, sql, s.config.RowCap)
	})
}

func executionKind(err error) string {
	var execErr *datasource.ExecutionError
	if errors.As(err, &execErr) {
		return string(execErr.Kind)
	}
	return "execution"
}

// finish records ANSWERED and fills the timing fields.
func (s *answerService) finish(run *pipelineRun) *models.Answer {
	run.trace.record(models.StageAnswered, models.StageOK, "")
	run.answer.Elapsed = time.Since(run.start)
	run.answer.Trace = run.trace.outcomes

	outcome := metrics.OutcomeAnswered
	switch {
	case !run.answer.Success:
		outcome = metrics.OutcomeFailed
	case run.answer.Intent != nil && !run.answer.Intent.ShouldGenerateSQL:
		outcome = metrics.OutcomeConversational
	case run.answer.Degraded:
		outcome = metrics.OutcomeDegraded
	}
	metrics.ObserveRequest(outcome)

	run.logger.Info("Question answered",
		zap.String("outcome", outcome),
		zap.String("strategy", string(run.answer.Strategy)),
		zap.Int("rows", run.answer.RowCount),
		zap.Float64("confidence", run.answer.Confidence),
		zap.Duration("elapsed", run.answer.Elapsed))
	return run.answer
}

// streamPhrasing streams the natural-language answer to events and returns
// the full text. If the backend fails before sending anything, the
// deterministic answer is sent instead.
func (s *answerService) streamPhrasing(ctx context.Context, run *pipelineRun, events chan<- llm.StreamEvent) (string, error) {
	prompt := prompts.ComposeInterpretation(run.question, run.sql, run.result, run.answer.Answer, run.tenant)

	inner := make(chan llm.StreamEvent, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.deps.Generation.Stream(ctx, run.tenant.Model, prompt, prompts.InterpretationSystemMessage, s.config.AnswerTemperature, inner)
	}()

	var text strings.Builder
	forward := func(ev llm.StreamEvent) bool {
		if ev.Type != llm.StreamEventText || ev.Content == "" {
			return true
		}
		text.WriteString(ev.Content)
		return llm.SendEvent(ctx, events, ev)
	}

	var streamErr error
loop:
	for {
		select {
		case ev := <-inner:
			if !forward(ev) {
				return "", ctx.Err()
			}
			if ev.Type == llm.StreamEventDone || ev.Type == llm.StreamEventError {
				streamErr = <-errCh
				break loop
			}
		case streamErr = <-errCh:
			// Drain anything buffered before the generator returned.
			for {
				select {
				case ev := <-inner:
					if !forward(ev) {
						return "", ctx.Err()
					}
				default:
					break loop
				}
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if streamErr != nil {
		run.logger.Warn("Answer streaming failed",
			zap.Int("streamed_len", text.Len()),
			zap.String("error", logging.SanitizeError(streamErr)))
	}
	if text.Len() > 0 {
		return llm.StripThinking(text.String()), nil
	}

	if !llm.SendEvent(ctx, events, llm.StreamEvent{Type: llm.StreamEventText, Content: run.answer.Answer}) {
		return "", ctx.Err()
	}
	return "", nil
}
