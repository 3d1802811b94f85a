// Package pagefile implements the disk-resident side of the B-tree: a fixed
// 16-byte file header, a page arena of fixed PageSize pages, and the
// Node/Entry wire codec. It does not know anything about
// tree algorithms; pkg/btree is the only consumer that understands what the
// pages mean.
package pagefile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"simplekv/pkg/iobackend"
)

const (
	// PageSize is the fixed size of every page, including its own header.
	PageSize = 4096
	// HeaderSize is the size of the file-level header preceding all pages.
	HeaderSize = 16
	// MaxChildren is M, the B-tree's branching factor.
	MaxChildren = 4
)

// ErrCorruption is returned when a decoded node or entry violates an
// invariant (bad m, overrunning key length, mismatched self_offset). It
// is never recovered from internally; the caller's recourse is the
// snapshot layer.
var ErrCorruption = errors.New("pagefile: corruption detected")

// Header is the PageFile's fixed 16-byte preamble.
type Header struct {
	RootPageNo uint32
	PageCount  uint32
	EntryCount uint32
	Height     uint32
}

// PageFile owns the header and the page arena built from it.
type PageFile struct {
	backend iobackend.Backend
	lock    iobackend.Locker
	hdr     Header
}

// Open opens or creates the page file at path.
func Open(path string) (*PageFile, error) {
	fb, err := iobackend.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return New(fb, iobackend.NewFileLock(fb.Fd()))
}

// New builds a PageFile over an arbitrary backend/lock pair, letting tests
// substitute an in-memory backend.
func New(backend iobackend.Backend, lock iobackend.Locker) (*PageFile, error) {
	pf := &PageFile{backend: backend, lock: lock}
	size, err := backend.Size()
	if err != nil {
		return nil, fmt.Errorf("pagefile: stat: %w", err)
	}
	if size < HeaderSize {
		if err := backend.Truncate(HeaderSize); err != nil {
			return nil, fmt.Errorf("pagefile: initialize header: %w", err)
		}
		if err := pf.writeHeader(); err != nil {
			return nil, err
		}
		return pf, nil
	}
	if err := pf.readHeader(); err != nil {
		return nil, err
	}
	return pf, nil
}

func (pf *PageFile) readHeader() error {
	buf := make([]byte, HeaderSize)
	if _, err := pf.backend.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("pagefile: read header: %w", err)
	}
	pf.hdr = Header{
		RootPageNo: binary.BigEndian.Uint32(buf[0:4]),
		PageCount:  binary.BigEndian.Uint32(buf[4:8]),
		EntryCount: binary.BigEndian.Uint32(buf[8:12]),
		Height:     binary.BigEndian.Uint32(buf[12:16]),
	}
	return nil
}

func (pf *PageFile) writeHeader() error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], pf.hdr.RootPageNo)
	binary.BigEndian.PutUint32(buf[4:8], pf.hdr.PageCount)
	binary.BigEndian.PutUint32(buf[8:12], pf.hdr.EntryCount)
	binary.BigEndian.PutUint32(buf[12:16], pf.hdr.Height)
	if _, err := pf.backend.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("pagefile: write header: %w", err)
	}
	return nil
}

// Root returns the current root page number (0 means the tree is empty).
func (pf *PageFile) Root() uint32 { return pf.hdr.RootPageNo }

// SetRoot stages a new root page number; it is not durable until FlushHeader.
func (pf *PageFile) SetRoot(pageNo uint32) { pf.hdr.RootPageNo = pageNo }

// PageCount returns the number of pages physically present.
func (pf *PageFile) PageCount() uint32 { return pf.hdr.PageCount }

// EntryCount returns the number of distinct keys in the tree.
func (pf *PageFile) EntryCount() uint32 { return pf.hdr.EntryCount }

// SetEntryCount stages a new entry count; not durable until FlushHeader.
func (pf *PageFile) SetEntryCount(n uint32) { pf.hdr.EntryCount = n }

// Height returns the tree's current height.
func (pf *PageFile) Height() uint32 { return pf.hdr.Height }

// SetHeight stages a new height; not durable until FlushHeader.
func (pf *PageFile) SetHeight(h uint32) { pf.hdr.Height = h }

// FlushHeader persists the staged header fields. A put writes the header
// once, last, after every affected node and entry has been written.
func (pf *PageFile) FlushHeader() error { return pf.writeHeader() }

func (pf *PageFile) pageOffset(pageNo uint32) int64 {
	return int64(HeaderSize) + int64(pageNo-1)*int64(PageSize)
}

// NewPage allocates and zero-initializes a fresh page, returning its page
// number. The page is physically present, and counted by PageCount,
// immediately, even before any node content is written to it.
func (pf *PageFile) NewPage() (uint32, error) {
	pageNo := pf.hdr.PageCount + 1
	zero := make([]byte, PageSize)
	if _, err := pf.backend.WriteAt(zero, pf.pageOffset(pageNo)); err != nil {
		return 0, fmt.Errorf("pagefile: allocate page %d: %w", pageNo, err)
	}
	pf.hdr.PageCount = pageNo
	return pageNo, nil
}

// ReadPage reads and decodes the node stored at pageNo.
func (pf *PageFile) ReadPage(pageNo uint32) (*Node, error) {
	if pageNo == 0 || pageNo > pf.hdr.PageCount {
		return nil, fmt.Errorf("%w: page %d out of range (count=%d)", ErrCorruption, pageNo, pf.hdr.PageCount)
	}
	buf := make([]byte, PageSize)
	off := pf.pageOffset(pageNo)
	if _, err := pf.backend.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("pagefile: read page %d: %w", pageNo, err)
	}
	return decodeNode(buf, uint64(off))
}

// WritePage encodes and writes n as a full page at its own page number. It
// assigns each entry's SelfOffset as a side effect, since that identity
// depends on where the page physically lives.
func (pf *PageFile) WritePage(n *Node) error {
	off := pf.pageOffset(n.PageNo)
	buf, err := encodeNode(n, uint64(off))
	if err != nil {
		return err
	}
	if _, err := pf.backend.WriteAt(buf, off); err != nil {
		return fmt.Errorf("pagefile: write page %d: %w", n.PageNo, err)
	}
	return nil
}

// ReadEntry reads a single entry standalone, given only its SelfOffset, the
// way a leaf-chain walk follows a Next pointer without knowing which page
// (or index within it) the target entry lives in.
func (pf *PageFile) ReadEntry(selfOffset uint64) (Entry, error) {
	if selfOffset == NilOffset {
		return Entry{}, fmt.Errorf("pagefile: attempted to read nil entry offset")
	}
	head := make([]byte, 4)
	if _, err := pf.backend.ReadAt(head, int64(selfOffset)); err != nil {
		return Entry{}, fmt.Errorf("pagefile: read entry size at %d: %w", selfOffset, err)
	}
	size := binary.BigEndian.Uint32(head)
	buf := make([]byte, 4+size)
	if _, err := pf.backend.ReadAt(buf, int64(selfOffset)); err != nil {
		return Entry{}, fmt.Errorf("pagefile: read entry at %d: %w", selfOffset, err)
	}
	return decodeEntry(buf, selfOffset)
}

// PatchEntryPointers rewrites only the Prev/Next fields of the external
// entry at selfOffset, in place, without touching the rest of the entry or
// its containing page.
func (pf *PageFile) PatchEntryPointers(selfOffset, prev, next uint64) error {
	e, err := pf.ReadEntry(selfOffset)
	if err != nil {
		return err
	}
	if !e.IsExternal {
		return fmt.Errorf("pagefile: cannot patch leaf-chain pointers of an internal entry at %d", selfOffset)
	}
	prevOff, _ := pointerFieldOffsets(selfOffset, len(e.Key))
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], prev)
	binary.BigEndian.PutUint64(buf[8:16], next)
	if _, err := pf.backend.WriteAt(buf, int64(prevOff)); err != nil {
		return fmt.Errorf("pagefile: patch entry pointers at %d: %w", selfOffset, err)
	}
	return nil
}

// Lock/Unlock/RLock/RUnlock delegate to the configured Locker, giving the
// single-writer/many-reader model a cross-process guard.
func (pf *PageFile) Lock() error    { return pf.lock.Lock() }
func (pf *PageFile) Unlock() error  { return pf.lock.Unlock() }
func (pf *PageFile) RLock() error   { return pf.lock.RLock() }
func (pf *PageFile) RUnlock() error { return pf.lock.RUnlock() }

// Sync flushes the backend to stable storage.
func (pf *PageFile) Sync() error { return pf.backend.Sync() }

// Close releases the backend.
func (pf *PageFile) Close() error { return pf.backend.Close() }
