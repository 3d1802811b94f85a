package btree

import "simplekv/pkg/pagefile"

// putResult reports what happened at one level of the recursive descent.
type putResult struct {
	// sep is set when this level's node split; it is the separator entry
	// the parent must insert to route to the new sibling.
	sep *pagefile.Entry
	// minKeyChanged and newMinKey report that this subtree's minimum key
	// changed (the new key is now the smallest), so the parent's routing
	// entry for this subtree must be updated to match.
	minKeyChanged bool
	newMinKey     []byte
	// inserted reports whether a new entry_count should be counted (false
	// for an overwrite of an existing key).
	inserted bool
}

func (t *BTree) putRecursive(pageNo uint32, key []byte, valueOff uint64) (putResult, error) {
	node, err := t.pf.ReadPage(pageNo)
	if err != nil {
		return putResult{}, err
	}
	if node.Leaf() {
		return t.putLeaf(node, key, valueOff)
	}
	return t.putInternal(node, key, valueOff)
}

func (t *BTree) putLeaf(node *pagefile.Node, key []byte, valueOff uint64) (putResult, error) {
	if idx, found := findExact(node.Entries, key); found {
		node.Entries[idx].ValueOffset = valueOff
		if err := t.pf.WritePage(node); err != nil {
			return putResult{}, err
		}
		return putResult{}, nil
	}

	extPrev, extNext := pagefile.NilOffset, pagefile.NilOffset
	if n := len(node.Entries); n > 0 {
		extPrev = node.Entries[0].Prev
		extNext = node.Entries[n-1].Next
	}

	insertAt := sortedInsertIndex(node.Entries, key)
	node.Entries = insertEntry(node.Entries, insertAt, pagefile.Entry{
		IsExternal:  true,
		Key:         cloneKey(key),
		ValueOffset: valueOff,
	})

	res := putResult{inserted: true}
	if insertAt == 0 {
		res.minKeyChanged = true
		res.newMinKey = cloneKey(key)
	}

	if !node.Overflows() {
		if err := t.writeLeaf(node, extPrev, extNext); err != nil {
			return putResult{}, err
		}
		return res, nil
	}

	nl := splitPoint(len(node.Entries))
	leftEntries := node.Entries[:nl]
	rightEntries := node.Entries[nl:]

	rightPageNo, err := t.pf.NewPage()
	if err != nil {
		return putResult{}, err
	}
	left := &pagefile.Node{PageNo: node.PageNo, Entries: leftEntries}
	right := &pagefile.Node{PageNo: rightPageNo, Entries: rightEntries}
	if err := t.writeLeafSplit(left, right, extPrev, extNext); err != nil {
		return putResult{}, err
	}

	res.sep = &pagefile.Entry{
		IsExternal:  false,
		Key:         cloneKey(right.Entries[0].Key),
		ChildPageNo: rightPageNo,
	}
	return res, nil
}

func (t *BTree) putInternal(node *pagefile.Node, key []byte, valueOff uint64) (putResult, error) {
	j := descendIndex(node.Entries, key)
	childRes, err := t.putRecursive(node.Entries[j].ChildPageNo, key, valueOff)
	if err != nil {
		return putResult{}, err
	}

	res := putResult{inserted: childRes.inserted}
	if childRes.minKeyChanged {
		node.Entries[j].Key = childRes.newMinKey
		if j == 0 {
			res.minKeyChanged = true
			res.newMinKey = childRes.newMinKey
		}
	}

	if childRes.sep == nil {
		if err := t.pf.WritePage(node); err != nil {
			return putResult{}, err
		}
		return res, nil
	}

	node.Entries = insertEntry(node.Entries, j+1, *childRes.sep)

	if !node.Overflows() {
		if err := t.pf.WritePage(node); err != nil {
			return putResult{}, err
		}
		return res, nil
	}

	nl := splitPoint(len(node.Entries))
	leftEntries := node.Entries[:nl]
	rightEntries := node.Entries[nl:]

	rightPageNo, err := t.pf.NewPage()
	if err != nil {
		return putResult{}, err
	}
	left := &pagefile.Node{PageNo: node.PageNo, Entries: leftEntries}
	right := &pagefile.Node{PageNo: rightPageNo, Entries: rightEntries}
	if err := t.pf.WritePage(left); err != nil {
		return putResult{}, err
	}
	if err := t.pf.WritePage(right); err != nil {
		return putResult{}, err
	}

	res.sep = &pagefile.Entry{
		IsExternal:  false,
		Key:         cloneKey(right.Entries[0].Key),
		ChildPageNo: rightPageNo,
	}
	return res, nil
}
