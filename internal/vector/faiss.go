//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// faissBackend accelerates scoring with a FAISS IndexFlatIP. Positions
// returned by FAISS are insertion-order labels, which is exactly the
// contract the Index expects, so no remapping is needed.
type faissBackend struct {
	index *C.FaissIndexFlatIP
	dim   int
}

func newFAISSBackend(dim int) (backend, error) {
	var index *C.FaissIndexFlatIP
	ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dim))
	if ret != 0 {
		return nil, fmt.Errorf("create faiss index: %s", faissLastError())
	}
	return &faissBackend{index: index, dim: dim}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

func (f *faissBackend) add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	flat := make([]float32, len(vectors)*f.dim)
	for i, vec := range vectors {
		copy(flat[i*f.dim:(i+1)*f.dim], vec)
	}

	ret := C.faiss_Index_add(
		f.index,
		C.idx_t(len(vectors)),
		(*C.float)(unsafe.Pointer(&flat[0])),
	)
	if ret != 0 {
		return fmt.Errorf("faiss add: %s", faissLastError())
	}
	return nil
}

func (f *faissBackend) search(query []float32, k int) ([]int, []float32, error) {
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)

	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, nil, fmt.Errorf("faiss search: %s", faissLastError())
	}

	positions := make([]int, 0, k)
	scores := make([]float32, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue
		}
		positions = append(positions, int(labels[i]))
		scores = append(scores, distances[i])
	}
	return positions, scores, nil
}

func (f *faissBackend) reset() error {
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("faiss reset: %s", faissLastError())
	}
	return nil
}

func (f *faissBackend) name() string { return "faiss" }

func (f *faissBackend) close() error {
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
