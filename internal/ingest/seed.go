// Package ingest loads seed example files into the knowledge store and
// watches the seed directory for changes.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/knowledge"
	"github.com/sqlpilot/sqlpilot/internal/models"
)

// seedFile is the on-disk shape: a JSON array of examples, or an object
// with an "examples" array.
type seedFile struct {
	Examples []models.Example `json:"examples"`
}

// LoadFile parses one seed file. Both a bare array and an object wrapper
// are accepted.
func LoadFile(path string) ([]models.Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var examples []models.Example
	if err := json.Unmarshal(data, &examples); err == nil {
		return examples, nil
	}
	var wrapped seedFile
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", filepath.Base(path), err)
	}
	return wrapped.Examples, nil
}

// SeedFromDir ingests every *.json file in dir, in name order so repeat
// runs are deterministic. Duplicate SQL is skipped by the store's dedup.
// Returns the number of examples inserted. A missing directory is not an
// error; there is simply nothing to seed.
func SeedFromDir(ctx context.Context, store *knowledge.Store, dir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read seed dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	inserted := 0
	for _, path := range files {
		examples, err := LoadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable seed file", zap.String("path", path), zap.Error(err))
			continue
		}
		ids, err := store.Add(ctx, examples)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", filepath.Base(path), err)
		}
		inserted += len(ids)
		logger.Debug("seeded file",
			zap.String("path", path),
			zap.Int("examples", len(examples)),
			zap.Int("inserted", len(ids)))
	}

	if inserted > 0 {
		if err := store.Persist(); err != nil {
			return inserted, fmt.Errorf("persist after seeding: %w", err)
		}
	}
	logger.Info("seeding finished", zap.Int("files", len(files)), zap.Int("inserted", inserted))
	return inserted, nil
}
