package vector

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

var (
	// ErrDimensionMismatch is returned when a vector's length does not
	// match the dimension the index was created with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateID is returned when an Add would insert an id that is
	// already present in the index.
	ErrDuplicateID = errors.New("duplicate example id")
)

const defaultOverfetch = 3

// Hit is a single search result with its inner-product score. Vectors are
// unit-normalized on the way in, so the score is cosine similarity.
type Hit struct {
	Example models.Example
	Score   float64
}

// Predicate filters candidates during search. A nil predicate admits all.
type Predicate func(models.Example) bool

// Index stores unit-norm vectors alongside their examples, in insertion
// order. Scoring is delegated to a backend chosen once at construction;
// ids, metadata and persistence stay here so every backend behaves the
// same way.
type Index struct {
	mu        sync.RWMutex
	dim       int
	overfetch int
	vectors   [][]float32
	examples  []models.Example
	idSet     map[string]int
	be        backend
	logger    *zap.Logger
}

// New creates an empty index for vectors of the given dimension. The
// accelerated backend is probed once here; if it is unavailable the index
// falls back to a flat scan with identical search semantics.
func New(dim int, logger *zap.Logger) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Index{
		dim:       dim,
		overfetch: defaultOverfetch,
		idSet:     make(map[string]int),
		logger:    logger,
	}

	be, err := newFAISSBackend(dim)
	if err != nil {
		logger.Info("accelerated backend unavailable, using flat scan",
			zap.String("reason", err.Error()))
		be = newFlatBackend(&idx.vectors)
	} else {
		logger.Info("using accelerated vector backend")
	}
	idx.be = be
	return idx, nil
}

// SetOverfetch adjusts the candidate pool multiplier used when a search
// predicate is supplied. Values below 1 are ignored.
func (idx *Index) SetOverfetch(n int) {
	if n < 1 {
		return
	}
	idx.mu.Lock()
	idx.overfetch = n
	idx.mu.Unlock()
}

// Add appends vectors with their examples. When ids is nil, each
// example's own ID is used. The whole batch is validated before anything
// is written, so a bad entry rejects the call without mutating the index.
func (idx *Index) Add(vectors [][]float32, examples []models.Example, ids []string) ([]string, error) {
	if len(vectors) != len(examples) {
		return nil, fmt.Errorf("got %d vectors for %d examples", len(vectors), len(examples))
	}
	if ids != nil && len(ids) != len(vectors) {
		return nil, fmt.Errorf("got %d ids for %d vectors", len(ids), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	assigned := make([]string, len(vectors))
	seen := make(map[string]struct{}, len(vectors))
	for i, v := range vectors {
		if len(v) != idx.dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d: %w",
				i, len(v), idx.dim, ErrDimensionMismatch)
		}
		id := examples[i].ID
		if ids != nil {
			id = ids[i]
		}
		if id == "" {
			id = fmt.Sprintf("ex_%d", len(idx.vectors)+i)
		}
		if _, ok := idx.idSet[id]; ok {
			return nil, fmt.Errorf("id %q: %w", id, ErrDuplicateID)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("id %q repeated in batch: %w", id, ErrDuplicateID)
		}
		seen[id] = struct{}{}
		assigned[i] = id
	}

	for i, v := range vectors {
		ex := examples[i]
		ex.ID = assigned[i]
		idx.idSet[ex.ID] = len(idx.vectors)
		idx.vectors = append(idx.vectors, v)
		idx.examples = append(idx.examples, ex)
	}
	if err := idx.be.add(vectors); err != nil {
		return nil, fmt.Errorf("backend add: %w", err)
	}
	return assigned, nil
}

// Search returns the top k hits for the query, best first. With a
// predicate, overfetch*k candidates are pulled in a single pass and
// filtered; fewer than k survivors is not an error.
func (idx *Index) Search(query []float32, k int, pred Predicate) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d: %w",
			len(query), idx.dim, ErrDimensionMismatch)
	}
	if len(idx.vectors) == 0 {
		return nil, nil
	}

	fetch := k
	if pred != nil {
		fetch = k * idx.overfetch
	}
	if fetch > len(idx.vectors) {
		fetch = len(idx.vectors)
	}

	positions, scores, err := idx.be.search(query, fetch)
	if err != nil {
		return nil, fmt.Errorf("backend search: %w", err)
	}

	hits := make([]Hit, 0, k)
	for i, pos := range positions {
		if pos < 0 || pos >= len(idx.examples) {
			continue
		}
		ex := idx.examples[pos]
		if pred != nil && !pred(ex) {
			continue
		}
		hits = append(hits, Hit{Example: ex, Score: float64(scores[i])})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Count returns the number of stored examples.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Dimensions returns the vector dimension the index was created with.
func (idx *Index) Dimensions() int {
	return idx.dim
}

// Backend reports which scoring backend is active.
func (idx *Index) Backend() string {
	return idx.be.name()
}

// Examples returns a copy of the stored examples in insertion order.
func (idx *Index) Examples() []models.Example {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]models.Example, len(idx.examples))
	copy(out, idx.examples)
	return out
}

// HasSQL reports whether any stored example carries exactly this SQL text.
func (idx *Index) HasSQL(sql string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for i := range idx.examples {
		if idx.examples[i].SQL == sql {
			return true
		}
	}
	return false
}

// Close releases backend resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.be.close()
}
