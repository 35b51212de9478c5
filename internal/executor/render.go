package executor

import (
	"fmt"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/pkg/utils"
)

const maxCellWidth = 80

// RenderMarkdown formats a successful result as a markdown table. Long
// cells are truncated so one wide value cannot blow up the reply.
func RenderMarkdown(result models.ExecutionResult) string {
	if !result.Success {
		return fmt.Sprintf("Query failed (%s): %s", result.ErrorKind, result.Error)
	}
	if len(result.Columns) == 0 || len(result.Rows) == 0 {
		return "Query returned no rows."
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString(" |\n|")
	for range result.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = utils.Truncate(cell, maxCellWidth)
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}

	if result.Truncated {
		fmt.Fprintf(&b, "\n(showing first %d rows)", result.RowCount)
	}
	return b.String()
}
