package vector

// backend scores queries against the stored vectors. Positions refer to
// insertion order; the Index maps them back to examples.
type backend interface {
	add(vectors [][]float32) error
	search(query []float32, k int) (positions []int, scores []float32, err error)
	// reset drops all stored vectors so a reload starts from position 0.
	reset() error
	name() string
	close() error
}
