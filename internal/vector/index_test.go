package vector

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/pkg/utils"
)

func newTestIndex(t *testing.T, dim int) *Index {
	t.Helper()
	idx, err := New(dim, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func unit(vals ...float32) []float32 {
	utils.NormalizeL2(vals)
	return vals
}

func addOne(t *testing.T, idx *Index, id string, vec []float32, ex models.Example) {
	t.Helper()
	ex.ID = id
	if _, err := idx.Add([][]float32{vec}, []models.Example{ex}, nil); err != nil {
		t.Fatalf("Add(%s): %v", id, err)
	}
}

func TestAddAndSearch(t *testing.T) {
	idx := newTestIndex(t, 3)

	addOne(t, idx, "a", unit(1, 0, 0), models.Example{NaturalQuery: "count users", SQL: "SELECT COUNT(*) FROM users"})
	addOne(t, idx, "b", unit(0, 1, 0), models.Example{NaturalQuery: "list orders", SQL: "SELECT * FROM orders"})
	addOne(t, idx, "c", unit(1, 0.2, 0), models.Example{NaturalQuery: "count accounts", SQL: "SELECT COUNT(*) FROM accounts"})

	if got := idx.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}

	hits, err := idx.Search(unit(1, 0, 0), 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Example.ID != "a" {
		t.Errorf("top hit = %q, want a", hits[0].Example.ID)
	}
	if hits[1].Example.ID != "c" {
		t.Errorf("second hit = %q, want c", hits[1].Example.ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("scores not descending: %f < %f", hits[0].Score, hits[1].Score)
	}
}

func TestSearchEmpty(t *testing.T) {
	idx := newTestIndex(t, 3)
	hits, err := idx.Search(unit(1, 0, 0), 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits from empty index, want 0", len(hits))
	}
}

func TestSearchWithPredicate(t *testing.T) {
	idx := newTestIndex(t, 3)

	addOne(t, idx, "u1", unit(1, 0, 0), models.Example{Tables: []string{"users"}})
	addOne(t, idx, "o1", unit(0.9, 0.1, 0), models.Example{Tables: []string{"orders"}})
	addOne(t, idx, "u2", unit(0.8, 0.2, 0), models.Example{Tables: []string{"users"}})
	addOne(t, idx, "o2", unit(0.7, 0.3, 0), models.Example{Tables: []string{"orders"}})

	hits, err := idx.Search(unit(1, 0, 0), 2, func(ex models.Example) bool {
		return ex.TouchesAny([]string{"orders"})
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Example.ID != "o1" || hits[1].Example.ID != "o2" {
		t.Errorf("hits = %q, %q; want o1, o2", hits[0].Example.ID, hits[1].Example.ID)
	}
}

func TestSearchPredicateFewerThanK(t *testing.T) {
	idx := newTestIndex(t, 3)

	addOne(t, idx, "u1", unit(1, 0, 0), models.Example{Tables: []string{"users"}})
	addOne(t, idx, "o1", unit(0, 1, 0), models.Example{Tables: []string{"orders"}})

	hits, err := idx.Search(unit(1, 0, 0), 5, func(ex models.Example) bool {
		return ex.TouchesAny([]string{"orders"})
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
}

func TestAddDuplicateID(t *testing.T) {
	idx := newTestIndex(t, 3)

	addOne(t, idx, "dup", unit(1, 0, 0), models.Example{})
	_, err := idx.Add([][]float32{unit(0, 1, 0)}, []models.Example{{ID: "dup"}}, nil)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if idx.Count() != 1 {
		t.Errorf("Count() = %d after rejected add, want 1", idx.Count())
	}
}

func TestAddDuplicateIDWithinBatch(t *testing.T) {
	idx := newTestIndex(t, 3)

	_, err := idx.Add(
		[][]float32{unit(1, 0, 0), unit(0, 1, 0)},
		[]models.Example{{ID: "same"}, {ID: "same"}},
		nil,
	)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if idx.Count() != 0 {
		t.Errorf("Count() = %d after rejected batch, want 0", idx.Count())
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)

	_, err := idx.Add([][]float32{{1, 0}}, []models.Example{{ID: "x"}}, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestAddGeneratedIDs(t *testing.T) {
	idx := newTestIndex(t, 3)

	ids, err := idx.Add(
		[][]float32{unit(1, 0, 0), unit(0, 1, 0)},
		[]models.Example{{}, {}},
		nil,
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Errorf("generated ids = %v, want two distinct non-empty ids", ids)
	}
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)
	addOne(t, idx, "a", unit(1, 0, 0), models.Example{})

	_, err := idx.Search([]float32{1, 0}, 1, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestHasSQL(t *testing.T) {
	idx := newTestIndex(t, 3)
	addOne(t, idx, "a", unit(1, 0, 0), models.Example{SQL: "SELECT 1"})

	if !idx.HasSQL("SELECT 1") {
		t.Error("HasSQL(SELECT 1) = false, want true")
	}
	if idx.HasSQL("select 1") {
		t.Error("HasSQL is case sensitive; lowercase variant should not match")
	}
}
