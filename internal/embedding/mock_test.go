package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "list all products")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "list all products")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d: %f vs %f", i, a[i], b[i])
		}
	}

	c, _ := e.Embed(ctx, "a completely different sentence")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockEmbedderUnitNorm(t *testing.T) {
	e := NewMockEmbedder(32)
	vec, err := e.Embed(context.Background(), "count orders by month")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 32 {
		t.Fatalf("len=%d", len(vec))
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("norm=%f, want 1.0", math.Sqrt(sum))
	}
}

func TestMockEmbedderBatchMatchesSingle(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma"}

	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("batch len=%d", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if math.Abs(float64(batch[i][j]-single[j])) > 1e-6 {
				t.Fatalf("batch[%d] differs from single embed", i)
			}
		}
	}
}
