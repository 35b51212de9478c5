package models

import "fmt"

// RetrievalQuery describes one example-store lookup.
type RetrievalQuery struct {
	Text           string     `json:"text"`
	RelevantTables []string   `json:"relevant_tables,omitempty"`
	K              int        `json:"k"`
	ComplexityHint Complexity `json:"complexity_hint,omitempty"`
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error if the text is empty; a non-positive K defaults to 5.
func (q *RetrievalQuery) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("query text cannot be empty")
	}
	if q.K <= 0 {
		q.K = 5
	}
	return nil
}

// RetrievedExample is one retrieval hit with its similarity score.
// Score is cosine similarity via inner product on unit vectors, in [-1, 1];
// when a complexity hint was applied it is the penalty-adjusted score.
type RetrievedExample struct {
	Example Example `json:"example"`
	Score   float64 `json:"score"`
}
