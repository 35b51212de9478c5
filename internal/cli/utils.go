// Package cli provides CLI output utilities for sqlpilot.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/internal/server"
	"github.com/sqlpilot/sqlpilot/internal/workflow"
)

// OutputFormat is the format for query result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteQueryResponse writes a query response to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteQueryResponse(w io.Writer, resp *server.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		writeQueryResponseText(w, resp)
		return nil
	}
}

func writeQueryResponseText(w io.Writer, resp *server.QueryResponse) {
	if resp.GeneratedSQL != "" {
		fmt.Fprintf(w, "SQL: %s\n\n", resp.GeneratedSQL)
	}
	if resp.Explanation != "" {
		fmt.Fprintf(w, "%s\n\n", resp.Explanation)
	}
	if resp.Response != "" {
		fmt.Fprintln(w, resp.Response)
	}
	if resp.Error != "" && resp.State == string(workflow.StateFailed) {
		fmt.Fprintf(w, "Error: %s\n", resp.Error)
	}
	if resp.RetryCount > 0 {
		fmt.Fprintf(w, "\n(repaired after %d retries)\n", resp.RetryCount)
	}
}

// ExampleHit pairs a stored example with its keyword-search score.
type ExampleHit struct {
	Example models.Example `json:"example"`
	Score   float64        `json:"score"`
}

// WriteExampleHits writes keyword-search hits to w in the given format.
func WriteExampleHits(w io.Writer, hits []ExampleHit, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	default:
		writeExampleHitsText(w, hits)
		return nil
	}
}

func writeExampleHitsText(w io.Writer, hits []ExampleHit) {
	fmt.Fprintf(w, "\nFound %d examples\n\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Complexity: %s\n", i+1, h.Score, h.Example.Complexity)
		fmt.Fprintf(w, "ID: %s\n", h.Example.ID)
		fmt.Fprintf(w, "Question: %s\n", TruncateWords(h.Example.NaturalQuery, 30))
		if len(h.Example.Tables) > 0 {
			fmt.Fprintf(w, "Tables: %s\n", strings.Join(h.Example.Tables, ", "))
		}
		fmt.Fprintf(w, "\n%s\n", Truncate(h.Example.SQL, 200))
		fmt.Fprintln(w)
	}
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
