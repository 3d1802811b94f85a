// Package keycodec is the single source of truth for key ordering. Every
// B-tree decision (which child to descend into, where to splice a new leaf
// entry, when a range scan has run past its upper bound) goes through these
// four primitives rather than comparing bytes ad hoc.
package keycodec

// compare returns -1, 0 or 1 as a is less than, equal to, or greater than b.
// Keys compare unit by unit up to the shorter length; if every compared unit
// is equal, the shorter key is less (equal-length, equal-unit keys are
// equal).
func compare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b []byte) bool { return compare(a, b) < 0 }

// More reports whether a sorts strictly after b.
func More(a, b []byte) bool { return compare(a, b) > 0 }

// Equal reports whether a and b are the same key.
func Equal(a, b []byte) bool { return compare(a, b) == 0 }

// GEQ reports whether a sorts at or after b (a >= b).
func GEQ(a, b []byte) bool { return compare(a, b) >= 0 }
