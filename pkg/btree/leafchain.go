package btree

import "simplekv/pkg/pagefile"

// writeLeaf persists a single (unsplit) leaf node, relinking every entry's
// Prev/Next to its new neighbours. extPrev/extNext are the leaf-chain
// offsets the page's first/last entry must point outward to. Entries within
// the page are rebuilt wholesale rather than patched individually: since
// WritePage always re-serializes the whole page anyway, and any entry from
// the insertion point onward gets a new self_offset, recomputing every
// intra-page Prev/Next from the final, settled self_offsets is simpler than
// tracking which subset moved and produces the identical result.
func (t *BTree) writeLeaf(node *pagefile.Node, extPrev, extNext uint64) error {
	if err := t.pf.WritePage(node); err != nil {
		return err
	}
	m := len(node.Entries)
	for i := range node.Entries {
		if i == 0 {
			node.Entries[i].Prev = extPrev
		} else {
			node.Entries[i].Prev = node.Entries[i-1].SelfOffset
		}
		if i == m-1 {
			node.Entries[i].Next = extNext
		} else {
			node.Entries[i].Next = node.Entries[i+1].SelfOffset
		}
	}
	if err := t.pf.WritePage(node); err != nil {
		return err
	}
	return t.patchChainBoundary(extPrev, extNext, node.Entries[0].SelfOffset, node.Entries[m-1].SelfOffset)
}

// writeLeafSplit persists a leaf split into left (original page, lower
// half) and right (new page, upper half), stitching the chain across the
// split boundary and out to the pre-existing external neighbours.
func (t *BTree) writeLeafSplit(left, right *pagefile.Node, extPrev, extNext uint64) error {
	if err := t.pf.WritePage(left); err != nil {
		return err
	}
	if err := t.pf.WritePage(right); err != nil {
		return err
	}

	nl, nr := len(left.Entries), len(right.Entries)
	for i := range left.Entries {
		if i == 0 {
			left.Entries[i].Prev = extPrev
		} else {
			left.Entries[i].Prev = left.Entries[i-1].SelfOffset
		}
		if i == nl-1 {
			left.Entries[i].Next = right.Entries[0].SelfOffset
		} else {
			left.Entries[i].Next = left.Entries[i+1].SelfOffset
		}
	}
	for i := range right.Entries {
		if i == 0 {
			right.Entries[i].Prev = left.Entries[nl-1].SelfOffset
		} else {
			right.Entries[i].Prev = right.Entries[i-1].SelfOffset
		}
		if i == nr-1 {
			right.Entries[i].Next = extNext
		} else {
			right.Entries[i].Next = right.Entries[i+1].SelfOffset
		}
	}

	if err := t.pf.WritePage(left); err != nil {
		return err
	}
	if err := t.pf.WritePage(right); err != nil {
		return err
	}
	return t.patchChainBoundary(extPrev, extNext, left.Entries[0].SelfOffset, right.Entries[nr-1].SelfOffset)
}

// patchChainBoundary updates the pre-existing neighbours just outside a
// (possibly split) leaf so their Next/Prev point at the leaf's new first
// and last self_offsets.
func (t *BTree) patchChainBoundary(extPrev, extNext, newFirst, newLast uint64) error {
	if extPrev != pagefile.NilOffset {
		e, err := t.pf.ReadEntry(extPrev)
		if err != nil {
			return err
		}
		if err := t.pf.PatchEntryPointers(extPrev, e.Prev, newFirst); err != nil {
			return err
		}
	}
	if extNext != pagefile.NilOffset {
		e, err := t.pf.ReadEntry(extNext)
		if err != nil {
			return err
		}
		if err := t.pf.PatchEntryPointers(extNext, newLast, e.Next); err != nil {
			return err
		}
	}
	return nil
}
