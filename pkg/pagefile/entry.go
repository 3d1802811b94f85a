package pagefile

import (
	"encoding/binary"
	"fmt"
)

// NilOffset marks the absence of a leaf-chain neighbour or a child pointer.
// 0 is safe: the file header occupies bytes [0,HeaderSize) and the first
// entry in the first page starts at HeaderSize+nodeHeaderSize+entryPrefixSize,
// so no real entry ever lands at offset 0.
const NilOffset uint64 = 0

// entryPrefixSize is the per-child framing a node writes ahead of each
// entry's own bytes: a 4-byte child page number and a 4-byte entry length.
const entryPrefixSize = 4 + 4

// Entry is one element of a node's children array. Internal
// entries route a search to ChildPageNo; external (leaf) entries hold an
// actual key -> value mapping via ValueOffset into the value heap, plus the
// Prev/Next absolute file offsets threading the global leaf chain.
type Entry struct {
	IsExternal bool
	Key        []byte

	// Internal-entry fields.
	ChildPageNo uint32

	// External-entry fields.
	ValueOffset uint64
	Prev        uint64
	Next        uint64

	// SelfOffset is the absolute byte offset, within the page file, of this
	// entry's own size field. It is the entry's identity: Prev/Next point at
	// other entries' SelfOffset. It is assigned when the entry is written
	// (see encodeNode) and otherwise populated by whatever read it in.
	SelfOffset uint64
}

// encodedLen returns the number of bytes Entry.encode would produce, without
// requiring SelfOffset to be set yet. Used to compute whether a node still
// fits in one page.
func (e Entry) encodedLen() uint32 {
	n := uint32(4 + 8 + 1 + 4 + len(e.Key))
	if e.IsExternal {
		n += 8 + 8 + 8
	}
	return n
}

// encode serializes the entry starting at its own size field. SelfOffset
// must already be set to the absolute position that field will occupy.
func (e Entry) encode() []byte {
	total := e.encodedLen()
	buf := make([]byte, total)
	// size covers every byte from SelfOffset onward, i.e. everything but the
	// leading 4-byte size field itself.
	binary.BigEndian.PutUint32(buf[0:4], total-4)
	binary.BigEndian.PutUint64(buf[4:12], e.SelfOffset)
	if e.IsExternal {
		buf[12] = 1
	} else {
		buf[12] = 0
	}
	binary.BigEndian.PutUint32(buf[13:17], uint32(len(e.Key)))
	pos := 17
	copy(buf[pos:], e.Key)
	pos += len(e.Key)
	if e.IsExternal {
		binary.BigEndian.PutUint64(buf[pos:pos+8], e.ValueOffset)
		binary.BigEndian.PutUint64(buf[pos+8:pos+16], e.Prev)
		binary.BigEndian.PutUint64(buf[pos+16:pos+24], e.Next)
	}
	return buf
}

// decodeEntry parses an entry whose size field starts at buf[0]. selfOffset
// is the absolute file position of that size field.
func decodeEntry(buf []byte, selfOffset uint64) (Entry, error) {
	if len(buf) < 17 {
		return Entry{}, fmt.Errorf("%w: entry header truncated at offset %d", ErrCorruption, selfOffset)
	}
	size := binary.BigEndian.Uint32(buf[0:4])
	storedSelf := binary.BigEndian.Uint64(buf[4:12])
	if storedSelf != selfOffset {
		return Entry{}, fmt.Errorf("%w: entry at %d records self_offset %d", ErrCorruption, selfOffset, storedSelf)
	}
	isExternal := buf[12] == 1
	keyLen := binary.BigEndian.Uint32(buf[13:17])
	if int(keyLen) > len(buf)-17 {
		return Entry{}, fmt.Errorf("%w: key length %d overruns entry at offset %d", ErrCorruption, keyLen, selfOffset)
	}
	pos := 17
	key := make([]byte, keyLen)
	copy(key, buf[pos:pos+int(keyLen)])
	pos += int(keyLen)

	e := Entry{
		IsExternal: isExternal,
		Key:        key,
		SelfOffset: selfOffset,
	}
	if isExternal {
		if len(buf) < pos+24 {
			return Entry{}, fmt.Errorf("%w: external entry truncated at offset %d", ErrCorruption, selfOffset)
		}
		e.ValueOffset = binary.BigEndian.Uint64(buf[pos : pos+8])
		e.Prev = binary.BigEndian.Uint64(buf[pos+8 : pos+16])
		e.Next = binary.BigEndian.Uint64(buf[pos+16 : pos+24])
	}
	wantSize := e.encodedLen() - 4
	if size != wantSize {
		return Entry{}, fmt.Errorf("%w: entry at offset %d declares size %d, computed %d", ErrCorruption, selfOffset, size, wantSize)
	}
	return e, nil
}

// pointerFieldOffsets returns the absolute file offsets of the Prev and Next
// fields of an external entry whose own size field sits at selfOffset and
// whose key is keyLen bytes, letting a caller patch just those 16 bytes
// in place instead of rewriting the whole entry.
func pointerFieldOffsets(selfOffset uint64, keyLen int) (prevOff, nextOff uint64) {
	base := selfOffset + 4 + 8 + 1 + 4 + uint64(keyLen) + 8 // past size,self,isExternal,keyLen,key,valueOffset
	return base, base + 8
}
