package pagefile

import (
	"encoding/binary"
	"fmt"
)

// nodeHeaderSize is the page_no (4) + m (4) prefix at the start of every
// page.
const nodeHeaderSize = 4 + 4

// Node is a page-sized record: { page_no, m, entries[M] }. Leaves hold
// external entries; internal nodes hold internal entries whose key is the
// minimum key in the subtree the entry routes to. Entries is a slice rather
// than a fixed [MaxChildren]Entry array so that a node under construction
// (mid-insert, pre-split) can transiently hold one more entry than a page
// will ultimately accept.
type Node struct {
	PageNo  uint32
	Entries []Entry
}

// M is the node's current fanout.
func (n *Node) M() uint32 { return uint32(len(n.Entries)) }

// Leaf reports whether this node holds external (key -> value) entries.
func (n *Node) Leaf() bool {
	return len(n.Entries) == 0 || n.Entries[0].IsExternal
}

// serializedSize returns the byte count encodeNode would produce for n,
// without needing to know the page's absolute file offset (entry lengths do
// not depend on where the page lands).
func (n *Node) serializedSize() uint32 {
	size := uint32(nodeHeaderSize)
	for _, e := range n.Entries {
		size += entryPrefixSize + e.encodedLen()
	}
	return size
}

// Overflows reports whether n needs to be split before it can be written:
// either it is already at the fanout limit, or its serialized form would no
// longer fit in one page. Both triggers live here so every insertion site
// checks them the same way.
func (n *Node) Overflows() bool {
	return n.M() >= MaxChildren || n.serializedSize() > PageSize
}

// encodeNode serializes n into a zero-padded, PageSize-byte page located at
// absolute file offset pageOffset. It assigns (and returns, via n.Entries)
// each entry's SelfOffset, since that identity depends on where the page
// physically lives.
func encodeNode(n *Node, pageOffset uint64) ([]byte, error) {
	buf := make([]byte, PageSize)
	binary.BigEndian.PutUint32(buf[0:4], n.PageNo)
	binary.BigEndian.PutUint32(buf[4:8], n.M())

	pos := uint32(nodeHeaderSize)
	for i := range n.Entries {
		e := n.Entries[i]
		e.SelfOffset = pageOffset + uint64(pos) + entryPrefixSize
		eb := e.encode()

		if pos+entryPrefixSize+uint32(len(eb)) > PageSize {
			return nil, fmt.Errorf("pagefile: node for page %d exceeds page size", n.PageNo)
		}

		childPtr := uint32(0)
		if !e.IsExternal {
			childPtr = e.ChildPageNo
		}
		binary.BigEndian.PutUint32(buf[pos:pos+4], childPtr)
		binary.BigEndian.PutUint32(buf[pos+4:pos+8], uint32(len(eb)))
		copy(buf[pos+entryPrefixSize:], eb)

		pos += entryPrefixSize + uint32(len(eb))
		n.Entries[i] = e
	}
	return buf, nil
}

// decodeNode parses a PageSize-byte page located at absolute file offset
// pageOffset.
func decodeNode(buf []byte, pageOffset uint64) (*Node, error) {
	if len(buf) != PageSize {
		return nil, fmt.Errorf("%w: page is %d bytes, want %d", ErrCorruption, len(buf), PageSize)
	}
	pageNo := binary.BigEndian.Uint32(buf[0:4])
	m := binary.BigEndian.Uint32(buf[4:8])
	if m > MaxChildren {
		return nil, fmt.Errorf("%w: page %d declares m=%d > %d", ErrCorruption, pageNo, m, MaxChildren)
	}
	n := &Node{PageNo: pageNo, Entries: make([]Entry, m)}

	pos := uint32(nodeHeaderSize)
	for i := uint32(0); i < m; i++ {
		if pos+entryPrefixSize > PageSize {
			return nil, fmt.Errorf("%w: page %d entry %d prefix overruns page", ErrCorruption, n.PageNo, i)
		}
		childPtr := binary.BigEndian.Uint32(buf[pos : pos+4])
		entryLen := binary.BigEndian.Uint32(buf[pos+4 : pos+8])
		start := pos + entryPrefixSize
		if uint64(start)+uint64(entryLen) > PageSize {
			return nil, fmt.Errorf("%w: page %d entry %d overruns page", ErrCorruption, n.PageNo, i)
		}
		selfOffset := pageOffset + uint64(start)
		e, err := decodeEntry(buf[start:start+entryLen], selfOffset)
		if err != nil {
			return nil, err
		}
		if !e.IsExternal {
			e.ChildPageNo = childPtr
		}
		n.Entries[i] = e
		pos = start + entryLen
	}
	return n, nil
}
