// Package models defines core data structures for examples, retrieval, and execution.
package models

// Complexity classifies how involved a SQL statement is.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ComplexityRank returns the ordinal rank of a complexity level
// (simple=0, medium=1, complex=2). Unknown values rank as medium.
func ComplexityRank(c Complexity) int {
	switch c {
	case ComplexitySimple:
		return 0
	case ComplexityComplex:
		return 2
	default:
		return 1
	}
}

// Example is a stored (natural language, SQL) pair in the knowledge base.
// Once stored, an example is immutable; re-ingestion creates a new record
// unless deduplicated by SQL text.
type Example struct {
	ID           string     `json:"id"`
	NaturalQuery string     `json:"natural_query"`
	SQL          string     `json:"sql"`
	Tables       []string   `json:"tables"`
	Complexity   Complexity `json:"complexity"`
	Tags         []string   `json:"tags"`
}

// TouchesAny reports whether the example's table set intersects tables.
// An empty tables argument matches every example.
func (e *Example) TouchesAny(tables []string) bool {
	if len(tables) == 0 {
		return true
	}
	for _, want := range tables {
		for _, have := range e.Tables {
			if want == have {
				return true
			}
		}
	}
	return false
}
