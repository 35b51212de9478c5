package knowledge

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

// LexicalIndex is an in-memory keyword index over stored examples, used
// by the admin search endpoint. It shadows the vector index and is
// rebuilt from metadata on load, so it is never persisted itself.
type LexicalIndex struct {
	index bleve.Index
}

// lexicalDoc is the flattened shape bleve indexes.
type lexicalDoc struct {
	NaturalQuery string   `json:"natural_query"`
	SQL          string   `json:"sql"`
	Tables       []string `json:"tables"`
	Tags         []string `json:"tags"`
}

// NewLexicalIndex creates an empty in-memory keyword index. The standard
// analyzer is used so query terms match exact words without stemming.
func NewLexicalIndex() (*LexicalIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("natural_query", textFieldMapping)
	docMapping.AddFieldMappingsAt("sql", textFieldMapping)
	docMapping.AddFieldMappingsAt("tables", textFieldMapping)
	docMapping.AddFieldMappingsAt("tags", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return &LexicalIndex{index: index}, nil
}

// Index adds an example under its id.
func (l *LexicalIndex) Index(ex models.Example) error {
	return l.index.Index(ex.ID, lexicalDoc{
		NaturalQuery: ex.NaturalQuery,
		SQL:          ex.SQL,
		Tables:       ex.Tables,
		Tags:         ex.Tags,
	})
}

// Search runs a match query and returns up to limit example ids with
// their keyword scores, best first.
func (l *LexicalIndex) Search(query string, limit int) ([]string, []float64, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := l.index.Search(req)
	if err != nil {
		return nil, nil, fmt.Errorf("lexical search: %w", err)
	}
	ids := make([]string, len(results.Hits))
	scores := make([]float64, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
		scores[i] = hit.Score
	}
	return ids, scores, nil
}

// Count returns the number of indexed examples.
func (l *LexicalIndex) Count() (uint64, error) {
	return l.index.DocCount()
}

// Close releases the index.
func (l *LexicalIndex) Close() error {
	return l.index.Close()
}
