package btree

import (
	"simplekv/pkg/keycodec"
	"simplekv/pkg/pagefile"
)

// descendIndex finds the largest j such that entries[j].Key <= key, for an
// internal node's children c_0..c_{m-1} with separator keys k_0..k_{m-1}.
// entries is assumed non-empty and sorted ascending by key.
func descendIndex(entries []pagefile.Entry, key []byte) int {
	j := 0
	for i := 1; i < len(entries); i++ {
		if keycodec.Less(key, entries[i].Key) {
			break
		}
		j = i
	}
	return j
}

// findExact returns the index of the entry whose key equals key, scanning a
// leaf's (small, sorted) entries array.
func findExact(entries []pagefile.Entry, key []byte) (int, bool) {
	for i, e := range entries {
		if keycodec.Equal(e.Key, key) {
			return i, true
		}
		if keycodec.More(e.Key, key) {
			break
		}
	}
	return 0, false
}

// sortedInsertIndex returns the position at which key belongs in a sorted,
// duplicate-free entries slice.
func sortedInsertIndex(entries []pagefile.Entry, key []byte) int {
	for i, e := range entries {
		if keycodec.Less(key, e.Key) {
			return i
		}
	}
	return len(entries)
}

// insertEntry returns a new slice with e inserted at position idx.
func insertEntry(entries []pagefile.Entry, idx int, e pagefile.Entry) []pagefile.Entry {
	out := make([]pagefile.Entry, 0, len(entries)+1)
	out = append(out, entries[:idx]...)
	out = append(out, e)
	out = append(out, entries[idx:]...)
	return out
}

// splitPoint returns the number of entries the original (lower-half) node
// retains when splitting n entries: the upper ceil(n/2) move to the new
// sibling, the lower floor(n/2) stay.
func splitPoint(n int) int {
	return n / 2
}
