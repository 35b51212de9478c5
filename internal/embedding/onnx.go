//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/sqlpilot/sqlpilot/pkg/utils"
)

// ONNXEmbedder runs a local sentence-embedding model through ONNX Runtime.
// Requires CGO and the onnxruntime shared library; when either is missing
// the caller falls back to another backend at construction time.
type ONNXEmbedder struct {
	session    *ort.DynamicAdvancedSession
	dimensions int
	maxTokens  int
	cache      *Cache
	mu         sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath. InitializeEnvironment is
// called if not already done.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}
	return &ONNXEmbedder{
		session:    session,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		cache:      NewCache(cacheSize),
	}, nil
}

// Embed returns the unit-normalized embedding for text, using the cache when possible.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask := tokenize(text, e.maxTokens)
	shape := ort.NewShape(1, int64(e.maxTokens))

	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, make([]int64, e.maxTokens))
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()
	outTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dimensions)))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer outTensor.Destroy()

	inputs := []ort.ArbitraryTensor{idsTensor, maskTensor, typeTensor}
	outputs := []ort.ArbitraryTensor{outTensor}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, outTensor.GetData()[:e.dimensions])
	utils.NormalizeL2(vec)
	e.cache.Set(text, vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text, preserving order.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		err := e.session.Destroy()
		e.session = nil
		return err
	}
	return nil
}

// tokenize produces BERT-style padded input IDs and attention mask using a
// hash vocabulary. Adequate for similarity ranking with a matching model head.
func tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	inputIDs[0] = 101 // [CLS]
	attentionMask[0] = 1
	pos := 1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		var h int64
		for _, r := range word {
			h = 31*h + int64(r)
		}
		if h < 0 {
			h = -h
		}
		inputIDs[pos] = h % 30000
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = 102 // [SEP]
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask
}
