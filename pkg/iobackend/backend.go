// Package iobackend provides the storage and locking primitives shared by
// the page file and value heap: a random-access byte backend (a real file or
// an in-memory buffer) and an advisory lock usable across processes.
package iobackend

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Backend is a random-access byte store. Both PageFile and ValueHeap are
// built on top of one of these rather than talking to *os.File directly, so
// tests can swap in MemoryBackend.
type Backend interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// FileBackend is a Backend over a real file.
type FileBackend struct {
	f *os.File
}

// OpenFile opens (creating if necessary) the file at path for random access.
func OpenFile(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("iobackend: open %s: %w", path, err)
	}
	return &FileBackend{f: f}, nil
}

func (b *FileBackend) ReadAt(p []byte, off int64) (int, error)  { return b.f.ReadAt(p, off) }
func (b *FileBackend) WriteAt(p []byte, off int64) (int, error) { return b.f.WriteAt(p, off) }

func (b *FileBackend) Size() (int64, error) {
	st, err := b.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (b *FileBackend) Truncate(size int64) error { return b.f.Truncate(size) }
func (b *FileBackend) Sync() error               { return b.f.Sync() }
func (b *FileBackend) Close() error              { return b.f.Close() }

// Fd exposes the underlying descriptor for flock.
func (b *FileBackend) Fd() uintptr { return b.f.Fd() }

// Name returns the path the backend was opened with.
func (b *FileBackend) Name() string { return b.f.Name() }

// Locker is a cross-process-aware read/write lock. It composes an in-process
// sync.RWMutex (guarding concurrent goroutines within this store) with an
// advisory flock guarding other processes: one writer owns the files at a
// time.
type Locker interface {
	Lock() error
	Unlock() error
	RLock() error
	RUnlock() error
}

// unixFlock implements Locker with golang.org/x/sys/unix.Flock.
type unixFlock struct {
	fd int
	mu sync.RWMutex
}

// NewFileLock returns a Locker backed by an advisory flock on fd.
func NewFileLock(fd uintptr) Locker {
	return &unixFlock{fd: int(fd)}
}

func (l *unixFlock) Lock() error {
	l.mu.Lock()
	if err := unix.Flock(l.fd, unix.LOCK_EX); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("iobackend: flock LOCK_EX: %w", err)
	}
	return nil
}

func (l *unixFlock) Unlock() error {
	err := unix.Flock(l.fd, unix.LOCK_UN)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("iobackend: flock LOCK_UN: %w", err)
	}
	return nil
}

func (l *unixFlock) RLock() error {
	l.mu.RLock()
	if err := unix.Flock(l.fd, unix.LOCK_SH); err != nil {
		l.mu.RUnlock()
		return fmt.Errorf("iobackend: flock LOCK_SH: %w", err)
	}
	return nil
}

func (l *unixFlock) RUnlock() error {
	err := unix.Flock(l.fd, unix.LOCK_UN)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("iobackend: flock LOCK_UN: %w", err)
	}
	return nil
}

// NoopLock is a Locker for backends with nothing to lock, such as
// MemoryBackend in tests.
type NoopLock struct{}

func (NoopLock) Lock() error    { return nil }
func (NoopLock) Unlock() error  { return nil }
func (NoopLock) RLock() error   { return nil }
func (NoopLock) RUnlock() error { return nil }

// MemoryBackend is an in-memory Backend, used by pkg/testutil to exercise
// PageFile and ValueHeap without touching the filesystem.
type MemoryBackend struct {
	mu  sync.Mutex
	buf []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) grow(n int) {
	if len(m.buf) < n {
		m.buf = append(m.buf, make([]byte, n-len(m.buf))...)
	}
}

func (m *MemoryBackend) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grow(int(off) + len(p))
	copy(p, m.buf[off:int(off)+len(p)])
	return len(p), nil
}

func (m *MemoryBackend) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grow(int(off) + len(p))
	copy(m.buf[off:int(off)+len(p)], p)
	return len(p), nil
}

func (m *MemoryBackend) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.buf)), nil
}

func (m *MemoryBackend) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grow(int(size))
	m.buf = m.buf[:size]
	return nil
}

func (m *MemoryBackend) Sync() error  { return nil }
func (m *MemoryBackend) Close() error { return nil }

// CopyFile copies the entire contents of src to a freshly created/truncated
// dst and syncs it.
func CopyFile(dstPath, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("iobackend: open src %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("iobackend: open dst %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		return fmt.Errorf("iobackend: copy %s -> %s: %w", srcPath, dstPath, err)
	}
	return dst.Sync()
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
