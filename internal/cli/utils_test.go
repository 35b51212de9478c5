package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/internal/server"
)

func TestWriteQueryResponseText(t *testing.T) {
	resp := &server.QueryResponse{
		Intent:       "text_to_sql",
		State:        "done",
		Response:     "| id |\n| 1 |",
		GeneratedSQL: "SELECT id FROM users",
		RetryCount:   1,
	}
	var buf bytes.Buffer
	if err := WriteQueryResponse(&buf, resp, OutputText); err != nil {
		t.Fatalf("WriteQueryResponse: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "SQL: SELECT id FROM users") {
		t.Errorf("missing SQL line in %q", out)
	}
	if !strings.Contains(out, "repaired after 1 retries") {
		t.Errorf("missing retry note in %q", out)
	}
}

func TestWriteQueryResponseTextFailure(t *testing.T) {
	resp := &server.QueryResponse{
		Intent: "text_to_sql",
		State:  "failed",
		Error:  "query failed after 4 attempts: syntax error",
	}
	var buf bytes.Buffer
	if err := WriteQueryResponse(&buf, resp, OutputText); err != nil {
		t.Fatalf("WriteQueryResponse: %v", err)
	}
	if !strings.Contains(buf.String(), "Error: query failed after 4 attempts") {
		t.Errorf("missing error line in %q", buf.String())
	}
}

func TestWriteQueryResponseJSON(t *testing.T) {
	resp := &server.QueryResponse{
		Intent:       "text_to_sql",
		State:        "done",
		GeneratedSQL: "SELECT 1",
	}
	var buf bytes.Buffer
	if err := WriteQueryResponse(&buf, resp, OutputJSON); err != nil {
		t.Fatalf("WriteQueryResponse: %v", err)
	}
	var decoded server.QueryResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.GeneratedSQL != "SELECT 1" {
		t.Errorf("GeneratedSQL = %q, want SELECT 1", decoded.GeneratedSQL)
	}
}

func TestWriteExampleHitsText(t *testing.T) {
	longSQL := "SELECT " + strings.Repeat("col, ", 50) + "id FROM wide_table"
	hits := []ExampleHit{
		{
			Example: models.Example{
				ID:           "ex-1",
				NaturalQuery: "show wide table",
				SQL:          longSQL,
				Tables:       []string{"wide_table"},
				Complexity:   models.ComplexitySimple,
			},
			Score: 1.5,
		},
	}
	var buf bytes.Buffer
	if err := WriteExampleHits(&buf, hits, OutputText); err != nil {
		t.Fatalf("WriteExampleHits: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 1 examples") {
		t.Errorf("missing header in %q", out)
	}
	if !strings.Contains(out, "Rank: 1 | Score: 1.5000") {
		t.Errorf("missing rank line in %q", out)
	}
	if !strings.Contains(out, "Tables: wide_table") {
		t.Errorf("missing tables line in %q", out)
	}
	if strings.Contains(out, longSQL) {
		t.Error("long SQL not truncated in text output")
	}
	if !strings.Contains(out, Truncate(longSQL, 200)) {
		t.Errorf("truncated SQL missing from %q", out)
	}
}

func TestWriteExampleHitsJSON(t *testing.T) {
	hits := []ExampleHit{
		{Example: models.Example{ID: "ex-1", NaturalQuery: "q", SQL: "SELECT 1"}, Score: 0.5},
	}
	var buf bytes.Buffer
	if err := WriteExampleHits(&buf, hits, OutputJSON); err != nil {
		t.Fatalf("WriteExampleHits: %v", err)
	}
	var decoded []ExampleHit
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Example.SQL != "SELECT 1" {
		t.Errorf("roundtrip mismatch: %+v", decoded)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 7, "this is..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	if got := TruncateWords("one two three four", 2); got != "one two..." {
		t.Errorf("TruncateWords = %q", got)
	}
	if got := TruncateWords("one two", 5); got != "one two" {
		t.Errorf("TruncateWords = %q", got)
	}
}
