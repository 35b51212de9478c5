// Package executor runs generated SQL against the sandbox database with
// a read-only guard, a cancellable timeout, and a row cap.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Executor wraps the sandbox *sql.DB. Only SELECT and WITH statements
// are accepted; everything else is rejected before touching the database.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
	logger  *zap.Logger
}

func New(db *sql.DB, cfg *config.SandboxConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.QueryTimeout.Std()
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 100
	}
	return &Executor{db: db, timeout: timeout, maxRows: maxRows, logger: logger}
}

// Execute runs the statement and returns a result rather than an error:
// failures are part of the result so the workflow can decide on repair.
func (e *Executor) Execute(ctx context.Context, sqlText string) models.ExecutionResult {
	if err := checkReadOnly(sqlText); err != nil {
		return models.ExecutionResult{
			ErrorKind: models.ExecErrorOther,
			Error:     err.Error(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return e.failure(ctx, sqlText, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return e.failure(ctx, sqlText, err)
	}

	result := models.ExecutionResult{Success: true, Columns: columns}
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return e.failure(ctx, sqlText, err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = renderValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return e.failure(ctx, sqlText, err)
	}

	result.RowCount = len(result.Rows)
	e.logger.Debug("executed sql",
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

func (e *Executor) failure(ctx context.Context, sqlText string, err error) models.ExecutionResult {
	kind := models.ExecErrorDatabase
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = models.ExecErrorTimeout
	}
	e.logger.Warn("execution failed",
		zap.String("kind", string(kind)),
		zap.Error(err))
	return models.ExecutionResult{
		ErrorKind: kind,
		Error:     err.Error(),
	}
}

// checkReadOnly rejects anything that is not a SELECT or WITH statement.
func checkReadOnly(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return fmt.Errorf("empty sql statement")
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	// A second statement after a semicolon could smuggle in a write.
	if rest := strings.TrimRight(trimmed, "; \t\n"); strings.Contains(rest, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	return nil
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
