// Package valueheap implements the append-only value store backing the
// B-tree's leaves. Keys and tree structure live in pkg/pagefile; the actual
// value bytes live here, addressed by the byte offset they were appended at.
package valueheap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"simplekv/pkg/iobackend"
)

// HeaderSize is the size of the file-level header preceding the value
// records: a single 8-byte eov (end-of-values) offset.
const HeaderSize = 8

// lengthPrefixSize is the 4-byte length prefix written ahead of every value.
const lengthPrefixSize = 4

// ErrCorruption is returned when a read offset or length disagrees with the
// heap's own bookkeeping.
var ErrCorruption = errors.New("valueheap: corruption detected")

// ValueHeap is an append-only log of {length, bytes} records. Nothing is
// ever overwritten or reclaimed; a value's offset is valid for the lifetime
// of the file.
type ValueHeap struct {
	backend iobackend.Backend
	lock    iobackend.Locker
	eov     uint64
}

// Open opens or creates the value heap at path.
func Open(path string) (*ValueHeap, error) {
	fb, err := iobackend.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return New(fb, iobackend.NewFileLock(fb.Fd()))
}

// New builds a ValueHeap over an arbitrary backend/lock pair, letting tests
// substitute an in-memory backend.
func New(backend iobackend.Backend, lock iobackend.Locker) (*ValueHeap, error) {
	vh := &ValueHeap{backend: backend, lock: lock}
	size, err := backend.Size()
	if err != nil {
		return nil, fmt.Errorf("valueheap: stat: %w", err)
	}
	if size < HeaderSize {
		if err := backend.Truncate(HeaderSize); err != nil {
			return nil, fmt.Errorf("valueheap: initialize header: %w", err)
		}
		vh.eov = HeaderSize
		if err := vh.writeHeader(); err != nil {
			return nil, err
		}
		return vh, nil
	}
	if err := vh.readHeader(); err != nil {
		return nil, err
	}
	return vh, nil
}

func (vh *ValueHeap) readHeader() error {
	buf := make([]byte, HeaderSize)
	if _, err := vh.backend.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("valueheap: read header: %w", err)
	}
	vh.eov = binary.BigEndian.Uint64(buf)
	return nil
}

func (vh *ValueHeap) writeHeader() error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(buf, vh.eov)
	if _, err := vh.backend.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("valueheap: write header: %w", err)
	}
	return nil
}

// End returns the current end-of-values offset: the position the next
// Append will land at.
func (vh *ValueHeap) End() uint64 { return vh.eov }

// Append writes value as a new {length, bytes} record at the current end of
// the heap and returns the offset it was written at. The header recording
// the new end of heap is flushed immediately: each record is self-contained,
// so appends never need to be replayed from a half-written record.
func (vh *ValueHeap) Append(value []byte) (uint64, error) {
	if value == nil {
		return 0, fmt.Errorf("valueheap: nil value")
	}
	offset := vh.eov
	buf := make([]byte, lengthPrefixSize+len(value))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(value)))
	copy(buf[4:], value)
	if _, err := vh.backend.WriteAt(buf, int64(offset)); err != nil {
		return 0, fmt.Errorf("valueheap: append at %d: %w", offset, err)
	}
	vh.eov = offset + uint64(len(buf))
	if err := vh.writeHeader(); err != nil {
		return 0, err
	}
	return offset, nil
}

// Read returns the value stored at offset.
func (vh *ValueHeap) Read(offset uint64) ([]byte, error) {
	if offset < HeaderSize || offset >= vh.eov {
		return nil, fmt.Errorf("%w: offset %d out of range [%d,%d)", ErrCorruption, offset, HeaderSize, vh.eov)
	}
	lenBuf := make([]byte, lengthPrefixSize)
	if _, err := vh.backend.ReadAt(lenBuf, int64(offset)); err != nil {
		return nil, fmt.Errorf("valueheap: read length at %d: %w", offset, err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if offset+lengthPrefixSize+uint64(length) > vh.eov {
		return nil, fmt.Errorf("%w: value at %d declares length %d past eov %d", ErrCorruption, offset, length, vh.eov)
	}
	value := make([]byte, length)
	if _, err := vh.backend.ReadAt(value, int64(offset)+lengthPrefixSize); err != nil {
		return nil, fmt.Errorf("valueheap: read value at %d: %w", offset, err)
	}
	return value, nil
}

// Lock/Unlock/RLock/RUnlock delegate to the configured Locker.
func (vh *ValueHeap) Lock() error    { return vh.lock.Lock() }
func (vh *ValueHeap) Unlock() error  { return vh.lock.Unlock() }
func (vh *ValueHeap) RLock() error   { return vh.lock.RLock() }
func (vh *ValueHeap) RUnlock() error { return vh.lock.RUnlock() }

// Sync flushes the backend to stable storage.
func (vh *ValueHeap) Sync() error { return vh.backend.Sync() }

// Close releases the backend.
func (vh *ValueHeap) Close() error { return vh.backend.Close() }
