// Package testutil builds the in-memory test doubles the package tests
// share: a PageFile and ValueHeap over iobackend.MemoryBackend, so tree
// logic can be exercised without touching the filesystem.
package testutil

import (
	"testing"

	"simplekv/pkg/iobackend"
	"simplekv/pkg/pagefile"
	"simplekv/pkg/valueheap"
)

// MemPageFile returns a fresh PageFile over an in-memory backend.
func MemPageFile(t *testing.T) *pagefile.PageFile {
	t.Helper()
	pf, err := pagefile.New(iobackend.NewMemoryBackend(), iobackend.NoopLock{})
	if err != nil {
		t.Fatalf("pagefile.New: %v", err)
	}
	return pf
}

// MemValueHeap returns a fresh ValueHeap over an in-memory backend.
func MemValueHeap(t *testing.T) *valueheap.ValueHeap {
	t.Helper()
	vh, err := valueheap.New(iobackend.NewMemoryBackend(), iobackend.NoopLock{})
	if err != nil {
		t.Fatalf("valueheap.New: %v", err)
	}
	return vh
}
