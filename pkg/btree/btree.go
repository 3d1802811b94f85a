// Package btree implements the on-disk B-tree: branching factor 4, built
// from a pagefile.PageFile (nodes) and a valueheap.ValueHeap (values), with
// a doubly-linked leaf chain supporting ordered range scans.
package btree

import (
	"fmt"

	"simplekv/pkg/keycodec"
	"simplekv/pkg/pagefile"
	"simplekv/pkg/valueheap"
)

// KVPair is one key-value record returned by a range scan.
type KVPair struct {
	Key   []byte
	Value []byte
}

// BTree composes a PageFile and a ValueHeap into an ordered store.
type BTree struct {
	pf *pagefile.PageFile
	vh *valueheap.ValueHeap
}

// New builds a BTree over an already-open page file and value heap.
func New(pf *pagefile.PageFile, vh *valueheap.ValueHeap) *BTree {
	return &BTree{pf: pf, vh: vh}
}

// findLeaf descends from the root to the leaf that would hold key. Returns
// nil if the tree is empty.
func (t *BTree) findLeaf(key []byte) (*pagefile.Node, error) {
	if t.pf.Root() == 0 {
		return nil, nil
	}
	pageNo := t.pf.Root()
	for {
		node, err := t.pf.ReadPage(pageNo)
		if err != nil {
			return nil, err
		}
		if node.Leaf() {
			return node, nil
		}
		j := descendIndex(node.Entries, key)
		pageNo = node.Entries[j].ChildPageNo
	}
}

// Get returns the value for key, or found=false if key is absent.
func (t *BTree) Get(key []byte) (value []byte, found bool, err error) {
	leaf, err := t.findLeaf(key)
	if err != nil || leaf == nil {
		return nil, false, err
	}
	idx, ok := findExact(leaf.Entries, key)
	if !ok {
		return nil, false, nil
	}
	val, err := t.vh.Read(leaf.Entries[idx].ValueOffset)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Contains reports whether key is present, without reading its value from
// the heap.
func (t *BTree) Contains(key []byte) (bool, error) {
	leaf, err := t.findLeaf(key)
	if err != nil || leaf == nil {
		return false, err
	}
	_, ok := findExact(leaf.Entries, key)
	return ok, nil
}

// GetRange returns every KVPair with k1 <= key <= k2, in increasing key
// order. k1 > k2 yields an empty (not erroring) result.
func (t *BTree) GetRange(k1, k2 []byte) ([]KVPair, error) {
	leaf, err := t.findLeaf(k1)
	if err != nil || leaf == nil {
		return nil, err
	}

	start := pagefile.NilOffset
	for _, e := range leaf.Entries {
		if keycodec.GEQ(e.Key, k1) {
			start = e.SelfOffset
			break
		}
	}
	if start == pagefile.NilOffset {
		if len(leaf.Entries) == 0 {
			return nil, nil
		}
		start = leaf.Entries[len(leaf.Entries)-1].Next
	}

	var results []KVPair
	for off := start; off != pagefile.NilOffset; {
		e, err := t.pf.ReadEntry(off)
		if err != nil {
			return nil, err
		}
		if keycodec.More(e.Key, k2) {
			break
		}
		val, err := t.vh.Read(e.ValueOffset)
		if err != nil {
			return nil, err
		}
		results = append(results, KVPair{Key: e.Key, Value: val})
		off = e.Next
	}
	return results, nil
}

// Put inserts or updates key with value. Updating an existing key replaces
// its value offset without changing entry_count.
func (t *BTree) Put(key, value []byte) error {
	if key == nil || value == nil {
		return fmt.Errorf("btree: key and value must be non-nil")
	}
	off, err := t.vh.Append(value)
	if err != nil {
		return err
	}

	if t.pf.Root() == 0 {
		pageNo, err := t.pf.NewPage()
		if err != nil {
			return err
		}
		leaf := &pagefile.Node{PageNo: pageNo, Entries: []pagefile.Entry{
			{IsExternal: true, Key: cloneKey(key), ValueOffset: off},
		}}
		if err := t.pf.WritePage(leaf); err != nil {
			return err
		}
		t.pf.SetRoot(pageNo)
		t.pf.SetHeight(1)
		t.pf.SetEntryCount(1)
		return t.pf.FlushHeader()
	}

	res, err := t.putRecursive(t.pf.Root(), key, off)
	if err != nil {
		return err
	}
	if res.inserted {
		t.pf.SetEntryCount(t.pf.EntryCount() + 1)
	}
	if res.sep != nil {
		if err := t.growRoot(res.sep); err != nil {
			return err
		}
	}
	return t.pf.FlushHeader()
}

// growRoot allocates a new root above the current one after a root-level
// split, with two internal entries routing to the old root and its new
// sibling.
func (t *BTree) growRoot(sep *pagefile.Entry) error {
	oldRootPageNo := t.pf.Root()
	oldRoot, err := t.pf.ReadPage(oldRootPageNo)
	if err != nil {
		return err
	}
	if len(oldRoot.Entries) == 0 {
		return fmt.Errorf("btree: split root has no entries")
	}
	newRootPageNo, err := t.pf.NewPage()
	if err != nil {
		return err
	}
	root := &pagefile.Node{PageNo: newRootPageNo, Entries: []pagefile.Entry{
		{IsExternal: false, Key: cloneKey(oldRoot.Entries[0].Key), ChildPageNo: oldRootPageNo},
		{IsExternal: false, Key: cloneKey(sep.Key), ChildPageNo: sep.ChildPageNo},
	}}
	if err := t.pf.WritePage(root); err != nil {
		return err
	}
	t.pf.SetRoot(newRootPageNo)
	t.pf.SetHeight(t.pf.Height() + 1)
	return nil
}

// Size returns the number of distinct keys in the tree.
func (t *BTree) Size() uint32 { return t.pf.EntryCount() }

// Height returns the tree's current height.
func (t *BTree) Height() uint32 { return t.pf.Height() }

func cloneKey(key []byte) []byte {
	k := make([]byte, len(key))
	copy(k, key)
	return k
}
