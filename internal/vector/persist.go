package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

const (
	indexFile = "index.bin"
	metaFile  = "metadata.json"
)

// indexMetadata mirrors the on-disk sidecar: the dimension the index was
// built with plus the examples in insertion order.
type indexMetadata struct {
	Dimension int              `json:"dimension"`
	Examples  []models.Example `json:"examples"`
}

// Persist writes the vectors and metadata to dir. Both files are written
// to temp paths first and renamed, so a crash mid-write leaves the
// previous files intact.
func (idx *Index) Persist(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	binPath := filepath.Join(dir, indexFile)
	if err := writeVectorsAtomic(binPath, idx.dim, idx.vectors); err != nil {
		return err
	}

	meta := indexMetadata{Dimension: idx.dim, Examples: idx.examples}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	metaPath := filepath.Join(dir, metaFile)
	tmp := metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, metaPath); err != nil {
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func writeVectorsAtomic(path string, dim int, vectors [][]float32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	write := func() error {
		if err := binary.Write(f, binary.LittleEndian, uint32(dim)); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(vectors))); err != nil {
			return err
		}
		for _, vec := range vectors {
			if _, err := f.Write(float32sToBytes(vec)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the index contents with the state stored in dir. Missing
// files are not an error and leave the index empty. A stored dimension
// that differs from the active one is an error, because existing vectors
// cannot be searched with embeddings of another size.
func (idx *Index) Load(dir string) error {
	binPath := filepath.Join(dir, indexFile)
	metaPath := filepath.Join(dir, metaFile)

	if _, err := os.Stat(binPath); os.IsNotExist(err) {
		idx.logger.Info("no persisted index, starting empty", zap.String("dir", dir))
		return nil
	}
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		idx.logger.Info("no persisted metadata, starting empty", zap.String("dir", dir))
		return nil
	}

	vectors, dim, err := readVectors(binPath)
	if err != nil {
		return err
	}
	if dim != idx.dim {
		return fmt.Errorf("stored index has dimension %d, configured %d: %w",
			dim, idx.dim, ErrDimensionMismatch)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	var meta indexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Dimension != idx.dim {
		return fmt.Errorf("stored metadata has dimension %d, configured %d: %w",
			meta.Dimension, idx.dim, ErrDimensionMismatch)
	}
	if len(meta.Examples) != len(vectors) {
		return fmt.Errorf("metadata has %d examples for %d vectors", len(meta.Examples), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.vectors = vectors
	idx.examples = meta.Examples
	idx.idSet = make(map[string]int, len(meta.Examples))
	for i, ex := range meta.Examples {
		idx.idSet[ex.ID] = i
	}
	// Loading replaces, never merges: whatever the backend held before
	// must go, or its positions would no longer match the metadata.
	if err := idx.be.reset(); err != nil {
		return fmt.Errorf("backend reset: %w", err)
	}
	if err := idx.be.add(vectors); err != nil {
		return fmt.Errorf("backend rebuild: %w", err)
	}
	idx.logger.Info("loaded persisted index",
		zap.Int("examples", len(meta.Examples)),
		zap.String("backend", idx.be.name()))
	return nil
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, 0, fmt.Errorf("read dimension: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, 0, fmt.Errorf("read count: %w", err)
	}

	vectors := make([][]float32, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, 0, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors[i] = bytesToFloat32s(buf)
	}
	return vectors, int(dim), nil
}

func float32sToBytes(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
