package vector

import "sort"

// flatBackend scores by brute-force inner product over the index's own
// vector slice. It holds a pointer to the slice header so appends by the
// Index are visible without copying.
type flatBackend struct {
	vecs *[][]float32
}

func newFlatBackend(vecs *[][]float32) *flatBackend {
	return &flatBackend{vecs: vecs}
}

func (f *flatBackend) add(_ [][]float32) error { return nil }

func (f *flatBackend) search(query []float32, k int) ([]int, []float32, error) {
	vecs := *f.vecs
	if len(vecs) == 0 {
		return nil, nil, nil
	}

	type scored struct {
		pos   int
		score float32
	}
	all := make([]scored, len(vecs))
	for i, v := range vecs {
		var dot float32
		for j, q := range query {
			dot += q * v[j]
		}
		all[i] = scored{pos: i, score: dot}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].score != all[b].score {
			return all[a].score > all[b].score
		}
		return all[a].pos < all[b].pos
	})

	if k > len(all) {
		k = len(all)
	}
	positions := make([]int, k)
	scores := make([]float32, k)
	for i := 0; i < k; i++ {
		positions[i] = all[i].pos
		scores[i] = all[i].score
	}
	return positions, scores, nil
}

// reset is a no-op: the backend reads through the index's slice header,
// so replacing the slice already drops the old vectors.
func (f *flatBackend) reset() error { return nil }

func (f *flatBackend) name() string { return "flat" }

func (f *flatBackend) close() error { return nil }
