// Package snapshot implements the whole-file-copy transaction mechanism:
// begin_tx either checkpoints the current PageFile/ValueHeap pair or, if a
// checkpoint already exists, rolls back to it (recovering from a crash
// between a prior begin_tx and commit); commit deletes the checkpoint.
package snapshot

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"simplekv/pkg/iobackend"
)

// Manager snapshots a PageFile/ValueHeap path pair. Snapshot paths are
// siblings of the originals (path-snapshot, path-entries-snapshot), not
// derived from the parent directory name.
type Manager struct {
	pagePath    string
	entriesPath string
	log         *zap.Logger

	// txID correlates the log lines of one in-flight transaction; it is
	// not persisted, only used for observability.
	txID string
}

// New builds a Manager for the PageFile at pagePath and its companion
// ValueHeap at entriesPath.
func New(pagePath, entriesPath string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{pagePath: pagePath, entriesPath: entriesPath, log: log}
}

func (m *Manager) pageSnapshotPath() string    { return m.pagePath + "-snapshot" }
func (m *Manager) entriesSnapshotPath() string { return m.entriesPath + "-snapshot" }

// InTransaction reports whether a snapshot checkpoint currently exists,
// meaning a transaction is open (or was left crashed-in-flight).
func (m *Manager) InTransaction() bool {
	return iobackend.Exists(m.pageSnapshotPath()) || iobackend.Exists(m.entriesSnapshotPath())
}

// BeginTx establishes (or recovers) a transaction checkpoint. The two
// callbacks give the caller (Store) a chance to release its file handles
// before the copy and reacquire them after; Manager itself does not hold
// PageFile/ValueHeap handles.
func (m *Manager) BeginTx(closeHandles func() error, reopenHandles func() error) error {
	m.txID = uuid.NewString()
	log := m.log.With(zap.String("tx_id", m.txID))

	pageSnap, entriesSnap := m.pageSnapshotPath(), m.entriesSnapshotPath()
	havePageSnap, haveEntriesSnap := iobackend.Exists(pageSnap), iobackend.Exists(entriesSnap)

	if closeHandles != nil {
		if err := closeHandles(); err != nil {
			return fmt.Errorf("snapshot: close handles before begin_tx: %w", err)
		}
	}

	switch {
	case havePageSnap && haveEntriesSnap:
		// A complete checkpoint already exists: recover from a crash
		// between a prior begin_tx and commit by rolling back to it. The
		// checkpoint stays in place as the (still unresolved) transaction
		// baseline.
		log.Warn("begin_tx: checkpoint already present, rolling back")
		if err := iobackend.CopyFile(m.pagePath, pageSnap); err != nil {
			return fmt.Errorf("snapshot: roll back page file: %w", err)
		}
		if err := iobackend.CopyFile(m.entriesPath, entriesSnap); err != nil {
			return fmt.Errorf("snapshot: roll back value heap: %w", err)
		}
	case havePageSnap != haveEntriesSnap:
		// Exactly one snapshot survived: debris from a crash inside
		// begin_tx's copy pair or commit's delete pair. A checkpoint is
		// only authoritative when both halves exist, so discard the stray
		// and checkpoint the current state instead.
		log.Warn("begin_tx: incomplete checkpoint found, discarding stray",
			zap.Bool("have_page_snapshot", havePageSnap),
			zap.Bool("have_entries_snapshot", haveEntriesSnap))
		if err := removeFile(pageSnap); err != nil {
			return fmt.Errorf("snapshot: remove stray page checkpoint: %w", err)
		}
		if err := removeFile(entriesSnap); err != nil {
			return fmt.Errorf("snapshot: remove stray entries checkpoint: %w", err)
		}
		fallthrough
	default:
		log.Info("begin_tx: no checkpoint present, creating one")
		if err := iobackend.CopyFile(pageSnap, m.pagePath); err != nil {
			return fmt.Errorf("snapshot: checkpoint page file: %w", err)
		}
		if err := iobackend.CopyFile(entriesSnap, m.entriesPath); err != nil {
			return fmt.Errorf("snapshot: checkpoint value heap: %w", err)
		}
	}

	if reopenHandles != nil {
		if err := reopenHandles(); err != nil {
			return fmt.Errorf("snapshot: reopen handles after begin_tx: %w", err)
		}
	}
	return nil
}

// Commit deletes both snapshot files, making the current state durable and
// closing out the transaction. Callers must have already flushed all dirty
// data to the tree before calling Commit.
func (m *Manager) Commit() error {
	log := m.log.With(zap.String("tx_id", m.txID))
	pageSnap, entriesSnap := m.pageSnapshotPath(), m.entriesSnapshotPath()

	if iobackend.Exists(pageSnap) {
		if err := removeFile(pageSnap); err != nil {
			return fmt.Errorf("snapshot: commit: remove page checkpoint: %w", err)
		}
	}
	if iobackend.Exists(entriesSnap) {
		if err := removeFile(entriesSnap); err != nil {
			return fmt.Errorf("snapshot: commit: remove entries checkpoint: %w", err)
		}
	}
	log.Info("commit: checkpoint removed, transaction durable")
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
