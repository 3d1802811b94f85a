package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string, capacity int) *Store {
	t.Helper()
	s, err := OpenWith(Options{Path: path, BufferCapacity: capacity})
	require.NoError(t, err)
	return s
}

func storePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "store")
}

func write(t *testing.T, s *Store, key, value string) {
	t.Helper()
	require.NoError(t, s.Write([]byte(key), []byte(value)))
}

func read(t *testing.T, s *Store, key string) (string, bool) {
	t.Helper()
	v, found, err := s.Read([]byte(key))
	require.NoError(t, err)
	return string(v), found
}

func requireRead(t *testing.T, s *Store, key, want string) {
	t.Helper()
	got, found := read(t, s, key)
	require.True(t, found, "key %q should be present", key)
	require.Equal(t, want, got, "value for key %q", key)
}

func requireAbsent(t *testing.T, s *Store, key string) {
	t.Helper()
	_, found := read(t, s, key)
	require.False(t, found, "key %q should be absent", key)
}

func TestWriteRead(t *testing.T) {
	s := openTestStore(t, storePath(t), 100)
	defer s.Close()

	write(t, s, "bdc", "111")
	write(t, s, "aaa", "112")
	write(t, s, "baa", "113")
	write(t, s, "aac", "114")
	write(t, s, "aaa", "115")
	write(t, s, "aba", "116")

	requireRead(t, s, "aaa", "115")
	requireRead(t, s, "baa", "113")
	require.Equal(t, 5, s.BufferSize())
	require.Equal(t, 5, s.NumBufferEntries())

	require.NoError(t, s.Flush())
	require.Equal(t, uint32(5), s.FileSize())
	require.Equal(t, 0, s.BufferSize())
}

func TestReadMissingKey(t *testing.T) {
	s := openTestStore(t, storePath(t), 100)
	defer s.Close()

	write(t, s, "aaa", "115")
	requireAbsent(t, s, "bba")
}

func TestReadRange(t *testing.T) {
	s := openTestStore(t, storePath(t), 100)
	defer s.Close()

	write(t, s, "bdc", "111")
	write(t, s, "aaa", "112")
	write(t, s, "baa", "113")
	write(t, s, "aac", "114")
	write(t, s, "aaa", "115")
	write(t, s, "aba", "116")

	got, err := s.ReadRange([]byte("aaa"), []byte("aba"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "aaa", string(got[0].Key))
	require.Equal(t, "115", string(got[0].Value))
	require.Equal(t, "aac", string(got[1].Key))
	require.Equal(t, "114", string(got[1].Value))
	require.Equal(t, "aba", string(got[2].Key))
	require.Equal(t, "116", string(got[2].Value))

	// bounds that are not themselves stored keys clamp to the full set:
	// five distinct records, since one of the six writes was an overwrite.
	all, err := s.ReadRange([]byte("aa"), []byte("bed"))
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		require.Less(t, string(all[i-1].Key), string(all[i].Key), "range must be strictly increasing")
	}
}

func TestReadRangeSeesUnflushedWrites(t *testing.T) {
	s := openTestStore(t, storePath(t), 100)
	defer s.Close()

	write(t, s, "a", "1")
	write(t, s, "b", "2")
	got, err := s.ReadRange([]byte("a"), []byte("z"))
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestEvictionNeverLosesWrites(t *testing.T) {
	const capacity = 8
	s := openTestStore(t, storePath(t), capacity)
	defer s.Close()

	for i := 0; i <= capacity; i++ {
		write(t, s, fmt.Sprintf("key-%02d", i), fmt.Sprintf("val-%02d", i))
	}

	require.LessOrEqual(t, s.NumBufferEntries(), capacity)
	size, err := s.Size()
	require.NoError(t, err)
	require.Equal(t, uint32(capacity+1), size)

	for i := 0; i <= capacity; i++ {
		requireRead(t, s, fmt.Sprintf("key-%02d", i), fmt.Sprintf("val-%02d", i))
	}
}

func TestCommitIsDurableAcrossReopen(t *testing.T) {
	path := storePath(t)
	s := openTestStore(t, path, 200)
	require.NoError(t, s.BeginTx())
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("key-%03d", i)
		write(t, s, k, k)
	}
	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, 200)
	defer s2.Close()
	size, err := s2.Size()
	require.NoError(t, err)
	require.Equal(t, uint32(100), size)
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("key-%03d", i)
		requireRead(t, s2, k, k)
	}
}

func TestCrashBeforeCommitRollsBack(t *testing.T) {
	path := storePath(t)
	s := openTestStore(t, path, 200)
	require.NoError(t, s.BeginTx())
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("key-%03d", i)
		write(t, s, k, k)
	}
	// crash: no commit, handles dropped with dirty data unflushed.
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, 200)
	defer s2.Close()
	require.NoError(t, s2.BeginTx())
	size, err := s2.Size()
	require.NoError(t, err)
	require.Equal(t, uint32(0), size)
	requireAbsent(t, s2, "key-000")
	requireAbsent(t, s2, "key-099")
}

func TestFlushInsideTransactionDoesNotCommit(t *testing.T) {
	path := storePath(t)
	s := openTestStore(t, path, 200)
	require.NoError(t, s.BeginTx())
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("key-%03d", i)
		write(t, s, k, k)
	}
	// the flush lands every pair in the tree, but the snapshot still exists:
	// the transaction is not committed.
	require.NoError(t, s.Flush())
	require.Equal(t, uint32(100), s.FileSize())
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, 200)
	defer s2.Close()
	require.NoError(t, s2.BeginTx())
	size, err := s2.Size()
	require.NoError(t, err)
	require.Equal(t, uint32(0), size)
	requireAbsent(t, s2, "key-042")
}

func TestCrashedOverwriteTransactionRestoresCommittedValues(t *testing.T) {
	path := storePath(t)
	s := openTestStore(t, path, 200)
	require.NoError(t, s.BeginTx())
	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("key-%03d", i)
		write(t, s, k, k)
	}
	require.NoError(t, s.Commit())

	require.NoError(t, s.BeginTx())
	for i := 0; i < 50; i++ {
		write(t, s, fmt.Sprintf("key-%03d", i), fmt.Sprintf("overwrite-%03d", i))
	}
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, 200)
	defer s2.Close()
	require.NoError(t, s2.BeginTx())
	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("key-%03d", i)
		requireRead(t, s2, k, k)
	}
}

func TestCommitWithoutBeginFlushes(t *testing.T) {
	path := storePath(t)
	s := openTestStore(t, path, 100)
	write(t, s, "aaa", "1")
	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, 100)
	defer s2.Close()
	requireRead(t, s2, "aaa", "1")
}

func TestRoundTripDurability(t *testing.T) {
	const n = 300
	path := storePath(t)
	s := openTestStore(t, path, 64)
	require.NoError(t, s.BeginTx())
	last := make(map[string]string)
	for i := 0; i < n; i++ {
		// every third write overwrites an earlier key.
		k := fmt.Sprintf("key-%03d", i)
		if i%3 == 2 {
			k = fmt.Sprintf("key-%03d", i-2)
		}
		v := fmt.Sprintf("val-%03d", i)
		write(t, s, k, v)
		last[k] = v
	}
	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, 64)
	defer s2.Close()
	size, err := s2.Size()
	require.NoError(t, err)
	require.Equal(t, uint32(len(last)), size)
	for k, v := range last {
		requireRead(t, s2, k, v)
	}
}

func TestWriteNilArguments(t *testing.T) {
	s := openTestStore(t, storePath(t), 100)
	defer s.Close()

	require.ErrorIs(t, s.Write(nil, []byte("v")), ErrNullArgument)
	require.ErrorIs(t, s.Write([]byte("k"), nil), ErrNullArgument)
	_, _, err := s.Read(nil)
	require.ErrorIs(t, err, ErrNullArgument)
}

func TestReadPopulatesBufferClean(t *testing.T) {
	path := storePath(t)
	s := openTestStore(t, path, 100)
	write(t, s, "aaa", "1")
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	s2 := openTestStore(t, path, 100)
	defer s2.Close()
	require.Equal(t, 0, s2.NumBufferEntries())
	requireRead(t, s2, "aaa", "1")
	require.Equal(t, 1, s2.NumBufferEntries())
	require.Equal(t, 0, s2.BufferSize(), "a read-populated entry is clean, not dirty")
}
