package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/executor"
	"github.com/sqlpilot/sqlpilot/internal/knowledge"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/metrics"
	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/internal/schema"
)

const (
	defaultMaxRetries = 3
	retrievalK        = 3
)

// ExampleRetriever is the slice of the knowledge store the engine needs.
type ExampleRetriever interface {
	Retrieve(ctx context.Context, q models.RetrievalQuery) ([]models.RetrievedExample, error)
	Format(results []models.RetrievedExample) string
}

// SchemaProvider lists the sandbox tables.
type SchemaProvider interface {
	Tables(ctx context.Context) ([]models.Table, error)
}

// SQLExecutor runs a statement and reports the outcome as a result.
type SQLExecutor interface {
	Execute(ctx context.Context, sqlText string) models.ExecutionResult
}

// FeedbackSink records successful generations.
type FeedbackSink interface {
	CaptureSuccess(ctx context.Context, rec knowledge.SuccessRecord) bool
}

// Engine is the per-process workflow driver. One Run call services one
// request; stages execute sequentially with no internal fan-out.
type Engine struct {
	provider      llm.Provider
	store         ExampleRetriever
	schemas       SchemaProvider
	executor      SQLExecutor
	feedback      FeedbackSink
	maxRetries    int
	defaultIntent Intent
	logger        *zap.Logger
}

func NewEngine(provider llm.Provider, store ExampleRetriever, schemas SchemaProvider, exec SQLExecutor, feedback FeedbackSink, cfg *config.WorkflowConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := defaultMaxRetries
	defaultIntent := IntentChat
	if cfg != nil {
		if cfg.MaxRetries > 0 {
			maxRetries = cfg.MaxRetries
		}
		if cfg.DefaultIntent != "" {
			defaultIntent = Intent(cfg.DefaultIntent)
		}
	}
	return &Engine{
		provider:      provider,
		store:         store,
		schemas:       schemas,
		executor:      exec,
		feedback:      feedback,
		maxRetries:    maxRetries,
		defaultIntent: defaultIntent,
		logger:        logger,
	}
}

// Run drives one request to a terminal state. maxRetries overrides the
// configured default when positive. The returned state is always
// terminal; errors along the way land in state.Error rather than the
// error return, which is reserved for an empty query.
func (e *Engine) Run(ctx context.Context, userQuery string, maxRetries int) (*WorkflowState, error) {
	if userQuery == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if maxRetries <= 0 {
		maxRetries = e.maxRetries
	}

	st := NewState(userQuery, maxRetries)
	start := time.Now()
	for !st.Terminal() {
		switch st.CurrentState {
		case StateIntent:
			e.stepIntent(ctx, st)
		case StateChat:
			e.stepChat(ctx, st)
		case StateSchema:
			e.stepSchema(ctx, st)
		case StateGenerate:
			e.stepGenerate(ctx, st)
		case StateExecute:
			e.stepExecute(ctx, st)
		}
	}

	metrics.ObserveQuery(string(st.Intent), string(st.CurrentState), time.Since(start))
	e.logger.Info("workflow finished",
		zap.String("intent", string(st.Intent)),
		zap.String("state", string(st.CurrentState)),
		zap.Int("retries", st.RetryCount),
		zap.Duration("elapsed", time.Since(start)))
	return st, nil
}

func (e *Engine) stepIntent(ctx context.Context, st *WorkflowState) {
	st.Intent, st.IntentConfidence = classifyIntent(ctx, e.provider, st.UserQuery, e.defaultIntent, e.logger)
	e.logger.Debug("classified intent",
		zap.String("intent", string(st.Intent)),
		zap.Float64("confidence", st.IntentConfidence))

	if st.Intent == IntentChat {
		st.CurrentState = StateChat
	} else {
		st.CurrentState = StateSchema
	}
}

func (e *Engine) stepChat(ctx context.Context, st *WorkflowState) {
	content, err := e.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: chatSystemPrompt},
		{Role: llm.RoleUser, Content: st.UserQuery},
	})
	if err != nil {
		st.Error = fmt.Sprintf("chat failed: %v", err)
		st.CurrentState = StateFailed
		return
	}
	st.Response = content
	st.Messages = append(st.Messages, llm.Message{Role: llm.RoleAssistant, Content: content})
	st.CurrentState = StateDone
}

// stepSchema discovers tables and picks the relevant subset. A failure
// here is soft: generation proceeds without schema context.
func (e *Engine) stepSchema(ctx context.Context, st *WorkflowState) {
	tables, err := e.schemas.Tables(ctx)
	if err != nil {
		e.logger.Warn("schema discovery failed, continuing without schema", zap.Error(err))
		st.Error = fmt.Sprintf("schema unavailable: %v", err)
	} else {
		st.SchemaInfo = schema.FormatForPrompt(tables)
		st.RelevantTables = schema.SelectRelevantTables(ctx, e.provider, st.UserQuery, tables, e.logger)
	}
	st.CurrentState = StateGenerate
}

func (e *Engine) stepGenerate(ctx context.Context, st *WorkflowState) {
	if st.Intent == IntentSQLToText {
		e.generateExplanation(ctx, st)
		return
	}

	var system, user string
	if st.GeneratedSQL != "" && st.ExecutionError != "" {
		// Repair pass: the failed SQL and its error are the context,
		// no re-retrieval.
		system = repairSystemPrompt
		user = buildRepairPrompt(st.UserQuery, st.SchemaInfo, st.GeneratedSQL, st.ExecutionError)
		st.ExecutionError = ""
	} else {
		examplesBlock := ""
		results, err := e.store.Retrieve(ctx, models.RetrievalQuery{
			Text:           st.UserQuery,
			RelevantTables: st.RelevantTables,
			K:              retrievalK,
		})
		if err != nil {
			e.logger.Warn("retrieval failed, generating without examples", zap.Error(err))
		} else {
			metrics.ObserveRetrievalHits(len(results))
			examplesBlock = e.store.Format(results)
		}
		system = generateSystemPrompt
		user = buildGeneratePrompt(st.UserQuery, st.SchemaInfo, examplesBlock)
	}

	content, err := e.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		st.Error = fmt.Sprintf("generation failed: %v", err)
		st.CurrentState = StateFailed
		return
	}

	st.GeneratedSQL = llm.StripMarkdownSQL(content)
	if st.GeneratedSQL == "" {
		st.Error = "model returned empty SQL"
		st.CurrentState = StateFailed
		return
	}
	st.CurrentState = StateExecute
}

func (e *Engine) generateExplanation(ctx context.Context, st *WorkflowState) {
	content, err := e.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: explainSystemPrompt},
		{Role: llm.RoleUser, Content: buildExplainPrompt(st.UserQuery, st.SchemaInfo)},
	})
	if err != nil {
		st.Error = fmt.Sprintf("explanation failed: %v", err)
		st.CurrentState = StateFailed
		return
	}
	st.SQLExplanation = content
	st.CurrentState = StateExecute
}

func (e *Engine) stepExecute(ctx context.Context, st *WorkflowState) {
	// Explanations have nothing to run; echo the explanation and finish.
	if st.Intent == IntentSQLToText {
		st.Response = st.SQLExplanation
		st.CurrentState = StateDone
		return
	}

	result := e.executor.Execute(ctx, st.GeneratedSQL)
	st.ExecutionResult = &result

	if result.Success {
		st.Response = executor.RenderMarkdown(result)
		st.CurrentState = StateDone
		if e.feedback != nil {
			captured := e.feedback.CaptureSuccess(ctx, knowledge.SuccessRecord{
				UserQuery:    st.UserQuery,
				GeneratedSQL: st.GeneratedSQL,
				Tables:       st.RelevantTables,
				Success:      true,
			})
			if captured {
				metrics.IncrementFeedbackCaptured()
			}
		}
		return
	}

	if st.RetryCount < st.MaxRetries {
		st.RetryCount++
		st.ExecutionError = result.Error
		st.CurrentState = StateGenerate
		metrics.IncrementRetry()
		e.logger.Info("execution failed, repairing",
			zap.Int("attempt", st.RetryCount),
			zap.String("kind", string(result.ErrorKind)))
		return
	}

	st.Error = fmt.Sprintf("query failed after %d attempts: %s", st.RetryCount+1, result.Error)
	st.Response = st.Error
	st.CurrentState = StateFailed
}
