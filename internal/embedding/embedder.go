// Package embedding provides text embedding backends for the example store.
// All backends return unit-normalized vectors so that inner product equals
// cosine similarity.
package embedding

import "context"

// Embedder produces vector embeddings for text.
// EmbedBatch is order-preserving: element i of the result equals Embed(texts[i])
// within numerical tolerance. Providers perform no internal retry; a failure
// is returned to the caller, which decides whether to degrade.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
