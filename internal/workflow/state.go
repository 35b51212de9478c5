// Package workflow drives one request through intent classification,
// schema discovery, retrieval-augmented SQL generation, execution, and
// bounded repair retries.
package workflow

import (
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/models"
)

// Intent is the classified purpose of a request.
type Intent string

const (
	IntentChat      Intent = "chat"
	IntentTextToSQL Intent = "text_to_sql"
	IntentSQLToText Intent = "sql_to_text"
	IntentDebug     Intent = "debug"
)

// State is one stage of the pipeline. Done and Failed are terminal.
type State string

const (
	StateIntent   State = "intent"
	StateChat     State = "chat"
	StateSchema   State = "schema"
	StateGenerate State = "generate"
	StateExecute  State = "execute"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// WorkflowState is the per-request scratchpad each stage mutates. It is
// created per request and discarded at a terminal state, never persisted.
type WorkflowState struct {
	Messages         []llm.Message
	Intent           Intent
	IntentConfidence float64
	UserQuery        string
	SchemaInfo       string
	RelevantTables   []string
	GeneratedSQL     string
	SQLExplanation   string
	ExecutionResult  *models.ExecutionResult
	ExecutionError   string
	RetryCount       int
	MaxRetries       int
	CurrentState     State
	Error            string
	Response         string
}

// NewState creates a fresh state positioned at intent classification.
func NewState(userQuery string, maxRetries int) *WorkflowState {
	return &WorkflowState{
		UserQuery:    userQuery,
		MaxRetries:   maxRetries,
		CurrentState: StateIntent,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userQuery},
		},
	}
}

// Terminal reports whether the state machine has finished.
func (s *WorkflowState) Terminal() bool {
	return s.CurrentState == StateDone || s.CurrentState == StateFailed
}
