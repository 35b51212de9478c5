// Package knowledge implements the example store: retrieval-augmented
// lookup over stored (question, SQL) pairs, ingestion with dedup, and the
// feedback path that records successful generations.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/embedding"
	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/internal/vector"
)

// Store composes the embedder and vector index into the retrieval API the
// generation stage uses. Searches may run concurrently; Add serializes
// writers because the index and its files assume a single writer.
type Store struct {
	embedder embedding.Embedder
	index    *vector.Index
	lexical  *LexicalIndex
	indexDir string
	penalty  float64
	logger   *zap.Logger

	addMu sync.Mutex
}

// NewStore wires a store from its parts. lexical may be nil to disable
// keyword search.
func NewStore(embedder embedding.Embedder, index *vector.Index, lexical *LexicalIndex, cfg *config.KnowledgeConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	penalty := cfg.ComplexityPenalty
	if penalty <= 0 {
		penalty = 0.1
	}
	if cfg.OverfetchFactor > 0 {
		index.SetOverfetch(cfg.OverfetchFactor)
	}
	return &Store{
		embedder: embedder,
		index:    index,
		lexical:  lexical,
		indexDir: cfg.IndexDir,
		penalty:  penalty,
		logger:   logger,
	}
}

// Retrieve returns the best-matching stored examples for the query. An
// empty store or a filter nothing passes yields an empty result, never an
// error; the caller proceeds without augmentation.
func (s *Store) Retrieve(ctx context.Context, q models.RetrievalQuery) ([]models.RetrievedExample, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var pred vector.Predicate
	if len(q.RelevantTables) > 0 {
		tables := q.RelevantTables
		pred = func(ex models.Example) bool { return ex.TouchesAny(tables) }
	}

	// With a complexity hint the pool is widened so re-ranking can
	// promote candidates from beyond the top k.
	fetch := q.K
	if q.ComplexityHint != "" {
		fetch = q.K * 3
	}

	hits, err := s.index.Search(vec, fetch, pred)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := make([]models.RetrievedExample, len(hits))
	for i, h := range hits {
		results[i] = models.RetrievedExample{Example: h.Example, Score: h.Score}
	}

	if q.ComplexityHint != "" {
		hintRank := models.ComplexityRank(q.ComplexityHint)
		for i := range results {
			docRank := models.ComplexityRank(results[i].Example.Complexity)
			delta := hintRank - docRank
			if delta < 0 {
				delta = -delta
			}
			results[i].Score -= s.penalty * float64(delta)
		}
		sortByScore(results)
	}

	if len(results) > q.K {
		results = results[:q.K]
	}
	return results, nil
}

// sortByScore orders results by descending score, stable so equal scores
// keep their semantic-similarity order.
func sortByScore(results []models.RetrievedExample) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// Add ingests examples, skipping any whose SQL text is already stored.
// Missing ids are assigned, missing complexity is estimated from the SQL.
// Returns the ids of the examples actually inserted.
func (s *Store) Add(ctx context.Context, examples []models.Example) ([]string, error) {
	s.addMu.Lock()
	defer s.addMu.Unlock()

	fresh := make([]models.Example, 0, len(examples))
	seenSQL := make(map[string]struct{}, len(examples))
	for _, ex := range examples {
		if ex.NaturalQuery == "" || ex.SQL == "" {
			return nil, fmt.Errorf("example requires both natural query and sql")
		}
		if _, dup := seenSQL[ex.SQL]; dup {
			continue
		}
		if s.index.HasSQL(ex.SQL) {
			s.logger.Debug("skipping duplicate example", zap.String("sql", ex.SQL))
			continue
		}
		seenSQL[ex.SQL] = struct{}{}
		if ex.ID == "" {
			ex.ID = uuid.NewString()
		}
		if ex.Complexity == "" {
			ex.Complexity = EstimateComplexity(ex.SQL)
		}
		fresh = append(fresh, ex)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	texts := make([]string, len(fresh))
	for i, ex := range fresh {
		texts[i] = ex.NaturalQuery
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed examples: %w", err)
	}

	ids, err := s.index.Add(vectors, fresh, nil)
	if err != nil {
		return nil, fmt.Errorf("index add: %w", err)
	}

	if s.lexical != nil {
		for i, ex := range fresh {
			ex.ID = ids[i]
			if err := s.lexical.Index(ex); err != nil {
				s.logger.Warn("lexical index failed", zap.String("id", ex.ID), zap.Error(err))
			}
		}
	}

	s.logger.Info("added examples",
		zap.Int("inserted", len(ids)),
		zap.Int("skipped", len(examples)-len(ids)))
	return ids, nil
}

// Format renders retrieval results as a prompt block. The output is
// deterministic for a given result order; no results means an empty
// string so the surrounding prompt stays well-formed.
func (s *Store) Format(results []models.RetrievedExample) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Example %d:\n", i+1)
		fmt.Fprintf(&b, "Question: %s\n", r.Example.NaturalQuery)
		if len(r.Example.Tables) > 0 {
			fmt.Fprintf(&b, "Tables: %s\n", strings.Join(r.Example.Tables, ", "))
		}
		fmt.Fprintf(&b, "SQL: %s\n", r.Example.SQL)
	}
	return b.String()
}

// SearchKeyword runs a lexical match over stored examples.
func (s *Store) SearchKeyword(query string, limit int) ([]models.Example, []float64, error) {
	if s.lexical == nil {
		return nil, nil, fmt.Errorf("keyword search not enabled")
	}
	ids, scores, err := s.lexical.Search(query, limit)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]models.Example)
	for _, ex := range s.index.Examples() {
		byID[ex.ID] = ex
	}
	out := make([]models.Example, 0, len(ids))
	outScores := make([]float64, 0, len(ids))
	for i, id := range ids {
		if ex, ok := byID[id]; ok {
			out = append(out, ex)
			outScores = append(outScores, scores[i])
		}
	}
	return out, outScores, nil
}

// Count returns the number of stored examples.
func (s *Store) Count() int {
	return s.index.Count()
}

// Backend reports the active vector backend.
func (s *Store) Backend() string {
	return s.index.Backend()
}

// Persist writes the index to the configured directory.
func (s *Store) Persist() error {
	if s.indexDir == "" {
		return nil
	}
	return s.index.Persist(s.indexDir)
}

// Load restores the index from the configured directory and rebuilds the
// lexical shadow. Missing files leave the store empty.
func (s *Store) Load() error {
	if s.indexDir == "" {
		return nil
	}
	if err := s.index.Load(s.indexDir); err != nil {
		return err
	}
	if s.lexical != nil {
		for _, ex := range s.index.Examples() {
			if err := s.lexical.Index(ex); err != nil {
				s.logger.Warn("lexical rebuild failed", zap.String("id", ex.ID), zap.Error(err))
			}
		}
	}
	return nil
}
