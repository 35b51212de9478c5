package e2e

import (
	"path/filepath"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/ingest"
)

func TestWriteSeedFilesRoundtrip(t *testing.T) {
	dir := t.TempDir()
	corpus := BuildCorpus()

	n, err := WriteSeedFiles(dir, corpus.Examples, 4)
	if err != nil {
		t.Fatalf("write seed files: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected at least two seed files (both shapes), got %d", n)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, f := range files {
		examples, err := ingest.LoadFile(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		total += len(examples)
	}
	if total != len(corpus.Examples) {
		t.Errorf("roundtrip lost examples: wrote %d, loaded %d", len(corpus.Examples), total)
	}
}
