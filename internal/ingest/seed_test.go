package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/embedding"
	"github.com/sqlpilot/sqlpilot/internal/knowledge"
	"github.com/sqlpilot/sqlpilot/internal/vector"
)

func newSeedStore(t *testing.T, indexDir string) *knowledge.Store {
	t.Helper()
	emb := embedding.NewMockEmbedder(8)
	idx, err := vector.New(8, zap.NewNop())
	if err != nil {
		t.Fatalf("vector.New: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	cfg := &config.KnowledgeConfig{IndexDir: indexDir}
	return knowledge.NewStore(emb, idx, nil, cfg, zap.NewNop())
}

func writeSeed(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	writeSeed(t, dir, "array.json", `[
		{"natural_query": "count users", "sql": "SELECT COUNT(*) FROM users", "tables": ["users"]}
	]`)
	examples, err := LoadFile(filepath.Join(dir, "array.json"))
	if err != nil {
		t.Fatalf("LoadFile array: %v", err)
	}
	if len(examples) != 1 || examples[0].NaturalQuery != "count users" {
		t.Errorf("examples = %+v", examples)
	}

	writeSeed(t, dir, "wrapped.json", `{"examples": [
		{"natural_query": "list orders", "sql": "SELECT * FROM orders"}
	]}`)
	examples, err = LoadFile(filepath.Join(dir, "wrapped.json"))
	if err != nil {
		t.Fatalf("LoadFile wrapped: %v", err)
	}
	if len(examples) != 1 || examples[0].SQL != "SELECT * FROM orders" {
		t.Errorf("examples = %+v", examples)
	}
}

func TestSeedFromDir(t *testing.T) {
	seedDir := t.TempDir()
	indexDir := t.TempDir()
	store := newSeedStore(t, indexDir)

	writeSeed(t, seedDir, "a.json", `[
		{"natural_query": "count users", "sql": "SELECT COUNT(*) FROM users"},
		{"natural_query": "list orders", "sql": "SELECT * FROM orders"}
	]`)
	writeSeed(t, seedDir, "b.json", `[
		{"natural_query": "count users again", "sql": "SELECT COUNT(*) FROM users"}
	]`)
	writeSeed(t, seedDir, "notes.txt", "not json, not picked up")
	writeSeed(t, seedDir, "broken.json", "{nope")

	inserted, err := SeedFromDir(context.Background(), store, seedDir, zap.NewNop())
	if err != nil {
		t.Fatalf("SeedFromDir: %v", err)
	}
	// The b.json entry duplicates a.json's SQL and is skipped.
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
	if store.Count() != 2 {
		t.Errorf("Count() = %d, want 2", store.Count())
	}

	// Seeding persisted the index.
	if _, err := os.Stat(filepath.Join(indexDir, "index.bin")); err != nil {
		t.Errorf("index not persisted: %v", err)
	}
}

func TestSeedFromDirMissing(t *testing.T) {
	store := newSeedStore(t, "")
	inserted, err := SeedFromDir(context.Background(), store, "/nonexistent/seeds", zap.NewNop())
	if err != nil {
		t.Fatalf("SeedFromDir: %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
}

func TestSeedFromDirIdempotent(t *testing.T) {
	seedDir := t.TempDir()
	store := newSeedStore(t, "")

	writeSeed(t, seedDir, "a.json", `[
		{"natural_query": "count users", "sql": "SELECT COUNT(*) FROM users"}
	]`)

	if _, err := SeedFromDir(context.Background(), store, seedDir, zap.NewNop()); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	inserted, err := SeedFromDir(context.Background(), store, seedDir, zap.NewNop())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second run inserted = %d, want 0", inserted)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
}
