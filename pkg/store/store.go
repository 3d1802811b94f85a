// Package store is the façade the rest of a program consumes: a write
// buffer in front of an on-disk B-tree, plus snapshot-based begin/commit
// transactions. One Store owns one page file and one value heap.
package store

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"simplekv/pkg/btree"
	"simplekv/pkg/buffer"
	"simplekv/pkg/config"
	"simplekv/pkg/pagefile"
	"simplekv/pkg/snapshot"
	"simplekv/pkg/valueheap"
)

// ErrNullArgument is returned when a key or value is nil where one is
// required.
var ErrNullArgument = errors.New("store: key and value must be non-nil")

// ErrBufferFull is surfaced when a write needs to evict and every resident
// buffer entry is dirty. Store.Write flushes proactively, so this only
// happens if the buffer is driven directly.
var ErrBufferFull = buffer.ErrBufferFull

// Options configures a Store. Zero values fall back to the config
// package's defaults.
type Options struct {
	// Path is the page file's location; the value heap lives alongside it
	// at Path + "-entries".
	Path string
	// BufferCapacity is the write buffer's maximum entry count.
	BufferCapacity int
	// Logger receives operational events. Nil means no logging.
	Logger *zap.Logger
}

// Store composes the write buffer, the B-tree and the snapshot manager.
// All operations are synchronous; a single mutex serializes mutators, with
// the buffer itself additionally safe for concurrent readers.
type Store struct {
	mu sync.Mutex

	pagePath    string
	entriesPath string

	pf    *pagefile.PageFile
	vh    *valueheap.ValueHeap
	tree  *btree.BTree
	buf   *buffer.Buffer
	snaps *snapshot.Manager
	log   *zap.Logger
}

// Open opens or creates the store at path with default options. An empty
// path falls back to the default store path.
func Open(path string) (*Store, error) {
	return OpenWith(Options{Path: path})
}

// OpenWith opens or creates a store with explicit options.
func OpenWith(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = config.DefaultStorePath
	}
	if opts.BufferCapacity == 0 {
		opts.BufferCapacity = config.DefaultBufferMaxEntries
	}
	if opts.BufferCapacity < 1 {
		return nil, fmt.Errorf("store: buffer capacity must be positive, got %d", opts.BufferCapacity)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Store{
		pagePath:    opts.Path,
		entriesPath: opts.Path + "-entries",
		buf:         buffer.New(opts.BufferCapacity),
		log:         opts.Logger,
	}
	s.snaps = snapshot.New(s.pagePath, s.entriesPath, opts.Logger)
	if err := s.openHandles(); err != nil {
		return nil, err
	}
	s.log.Info("store opened",
		zap.String("page_file", s.pagePath),
		zap.String("value_heap", s.entriesPath),
		zap.Int("buffer_capacity", opts.BufferCapacity),
		zap.Uint32("entries", s.pf.EntryCount()))
	return s, nil
}

// openHandles opens both files and takes the exclusive advisory lock on
// each: this process is the store's single writer until closeHandles.
func (s *Store) openHandles() error {
	pf, err := pagefile.Open(s.pagePath)
	if err != nil {
		return err
	}
	vh, err := valueheap.Open(s.entriesPath)
	if err != nil {
		pf.Close()
		return err
	}
	if err := pf.Lock(); err != nil {
		pf.Close()
		vh.Close()
		return err
	}
	if err := vh.Lock(); err != nil {
		pf.Unlock()
		pf.Close()
		vh.Close()
		return err
	}
	s.pf, s.vh = pf, vh
	s.tree = btree.New(pf, vh)
	return nil
}

func (s *Store) closeHandles() error {
	if err := s.pf.Unlock(); err != nil {
		return err
	}
	if err := s.vh.Unlock(); err != nil {
		return err
	}
	if err := s.pf.Close(); err != nil {
		return err
	}
	return s.vh.Close()
}

// Write buffers key -> value as a dirty entry. When the number of dirty
// entries has reached the buffer's capacity, the buffer is flushed to the
// tree first, so a write never fails for lack of a clean entry to evict.
func (s *Store) Write(key, value []byte) error {
	if key == nil || value == nil {
		return ErrNullArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf.DirtyCount() >= s.buf.Capacity() {
		if err := s.flushLocked(); err != nil {
			return err
		}
	}
	return s.buf.Put(key, buffer.KVPair{Key: key, Value: value}, true)
}

// Read returns the value for key, or found=false if key is absent. A tree
// hit populates the buffer as a clean entry; if the buffer cannot accept it
// (every resident entry dirty), the value is returned uncached.
func (s *Store) Read(key []byte) (value []byte, found bool, err error) {
	if key == nil {
		return nil, false, ErrNullArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if pair, ok := s.buf.Get(key); ok {
		return pair.Value, true, nil
	}
	v, ok, err := s.tree.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := s.buf.Put(key, buffer.KVPair{Key: key, Value: v}, false); err != nil {
		if !errors.Is(err, buffer.ErrBufferFull) {
			return nil, false, err
		}
		s.log.Debug("read: buffer full of dirty entries, returning uncached", zap.ByteString("key", key))
	}
	return v, true, nil
}

// ReadRange returns every pair with k1 <= key <= k2 in increasing key
// order. The buffer is flushed first so the tree's leaf chain reflects all
// prior writes; the result does not track writes issued afterwards.
func (s *Store) ReadRange(k1, k2 []byte) ([]btree.KVPair, error) {
	if k1 == nil || k2 == nil {
		return nil, ErrNullArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return s.tree.GetRange(k1, k2)
}

// Flush drains every dirty buffer entry into the tree and syncs both files.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	pairs := s.buf.DrainDirty()
	if len(pairs) == 0 {
		return nil
	}
	for _, p := range pairs {
		if err := s.tree.Put(p.Key, p.Value); err != nil {
			return fmt.Errorf("store: flush %q: %w", p.Key, err)
		}
	}
	s.buf.ClearDirty()
	if err := s.pf.Sync(); err != nil {
		return err
	}
	if err := s.vh.Sync(); err != nil {
		return err
	}
	s.log.Debug("flushed buffer to tree", zap.Int("drained", len(pairs)))
	return nil
}

// BeginTx opens a transaction: the buffer is flushed so the on-disk pair
// captures every write issued so far, then the snapshot manager either
// checkpoints that state or, if a checkpoint was left behind by a crash,
// rolls back to it. After a rollback the buffer is discarded, since its
// contents describe state that no longer exists.
func (s *Store) BeginTx() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(); err != nil {
		return err
	}
	rollingBack := s.snaps.InTransaction()
	if err := s.snaps.BeginTx(s.closeHandles, s.openHandles); err != nil {
		return err
	}
	if rollingBack {
		s.buf = buffer.New(s.buf.Capacity())
	}
	return nil
}

// Commit makes every write since BeginTx durable: the buffer is flushed to
// the tree, both files are synced, and the checkpoint is deleted. Commit
// without an open transaction degrades to a flush.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.snaps.InTransaction() {
		s.log.Warn("commit without an open transaction, flushing only")
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	return s.snaps.Commit()
}

// Size returns the number of distinct keys visible through the store: the
// tree's entries plus any dirty buffer keys not yet inserted.
func (s *Store) Size() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.pf.EntryCount()
	for _, p := range s.buf.DrainDirty() {
		ok, err := s.tree.Contains(p.Key)
		if err != nil {
			return 0, err
		}
		if !ok {
			n++
		}
	}
	return n, nil
}

// FileSize returns the number of keys durably present in the tree.
func (s *Store) FileSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pf.EntryCount()
}

// BufferSize returns the number of dirty (unflushed) buffer entries.
func (s *Store) BufferSize() int {
	return s.buf.DirtyCount()
}

// NumBufferEntries returns the number of resident buffer entries, dirty or
// clean.
func (s *Store) NumBufferEntries() int {
	return s.buf.NumEntries()
}

// Height returns the tree's current height.
func (s *Store) Height() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pf.Height()
}

// Close releases the file handles. It deliberately does not flush: data
// not yet flushed or committed is meant to be lost on an unclean exit, and
// Close models exactly that boundary.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeHandles()
}
