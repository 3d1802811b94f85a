package valueheap

import (
	"bytes"
	"testing"

	"simplekv/pkg/iobackend"
)

func newTestHeap(t *testing.T) *ValueHeap {
	t.Helper()
	vh, err := New(iobackend.NewMemoryBackend(), iobackend.NoopLock{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return vh
}

func TestAppendReadRoundTrip(t *testing.T) {
	vh := newTestHeap(t)

	off1, err := vh.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	off2, err := vh.Append([]byte("world!!"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off1 == off2 {
		t.Fatalf("expected distinct offsets, got %d and %d", off1, off2)
	}

	v1, err := vh.Read(off1)
	if err != nil {
		t.Fatalf("Read(off1): %v", err)
	}
	if !bytes.Equal(v1, []byte("hello")) {
		t.Errorf("Read(off1) = %q, want %q", v1, "hello")
	}

	v2, err := vh.Read(off2)
	if err != nil {
		t.Fatalf("Read(off2): %v", err)
	}
	if !bytes.Equal(v2, []byte("world!!")) {
		t.Errorf("Read(off2) = %q, want %q", v2, "world!!")
	}
}

func TestAppendEmptyValue(t *testing.T) {
	vh := newTestHeap(t)
	off, err := vh.Append([]byte{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	v, err := vh.Read(off)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(v) != 0 {
		t.Errorf("Read = %q, want empty", v)
	}
}

func TestEndAdvances(t *testing.T) {
	vh := newTestHeap(t)
	start := vh.End()
	if start != HeaderSize {
		t.Fatalf("End() = %d, want %d", start, HeaderSize)
	}
	if _, err := vh.Append([]byte("abc")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if vh.End() != start+lengthPrefixSize+3 {
		t.Errorf("End() = %d, want %d", vh.End(), start+lengthPrefixSize+3)
	}
}

func TestReadOutOfRange(t *testing.T) {
	vh := newTestHeap(t)
	if _, err := vh.Read(0); err == nil {
		t.Errorf("expected error reading offset 0")
	}
	if _, err := vh.Read(vh.End()); err == nil {
		t.Errorf("expected error reading at eov")
	}
}

func TestHeaderPersistsAcrossReopen(t *testing.T) {
	backend := iobackend.NewMemoryBackend()
	vh, err := New(backend, iobackend.NoopLock{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	off, err := vh.Append([]byte("persisted"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	reopened, err := New(backend, iobackend.NoopLock{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.End() != vh.End() {
		t.Errorf("reopened End() = %d, want %d", reopened.End(), vh.End())
	}
	v, err := reopened.Read(off)
	if err != nil {
		t.Fatalf("reopened Read: %v", err)
	}
	if !bytes.Equal(v, []byte("persisted")) {
		t.Errorf("reopened Read = %q, want %q", v, "persisted")
	}
}
