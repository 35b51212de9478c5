package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

// WriteSeedFiles splits examples into seed JSON files of perFile entries
// each, written under dir. Files alternate between the bare-array and
// wrapped-object shapes so both loader paths are exercised. Returns the
// number of files written.
func WriteSeedFiles(dir string, examples []models.Example, perFile int) (int, error) {
	if perFile <= 0 {
		perFile = 5
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	n := 0
	for start := 0; start < len(examples); start += perFile {
		end := start + perFile
		if end > len(examples) {
			end = len(examples)
		}
		batch := examples[start:end]

		var payload any = batch
		if n%2 == 1 {
			payload = map[string][]models.Example{"examples": batch}
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return n, err
		}
		path := filepath.Join(dir, fmt.Sprintf("seed-%03d.json", n))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
