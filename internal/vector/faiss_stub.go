//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import "errors"

// newFAISSBackend reports the accelerated backend as unavailable so
// construction falls back to the flat scan. Build with -tags=faiss and
// the FAISS C library installed to enable it.
func newFAISSBackend(_ int) (backend, error) {
	return nil, errors.New("faiss backend not compiled in (build with -tags=faiss)")
}
