package models

// ExecutionResult is the outcome of running SQL against the sandbox database.
type ExecutionResult struct {
	Success   bool          `json:"success"`
	Columns   []string      `json:"columns,omitempty"`
	Rows      [][]string    `json:"rows,omitempty"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated,omitempty"`
	ErrorKind ExecErrorKind `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ExecErrorKind categorizes execution failures.
type ExecErrorKind string

const (
	ExecErrorTimeout  ExecErrorKind = "timeout"
	ExecErrorDatabase ExecErrorKind = "database"
	ExecErrorOther    ExecErrorKind = "other"
)

// Column describes one column of a sandbox table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Key      string `json:"key,omitempty"`
	Default  string `json:"default,omitempty"`
}

// Table describes a sandbox table and its columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}
