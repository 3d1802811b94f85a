package keycodec

import "testing"

func TestOrdering(t *testing.T) {
	cases := []struct {
		a, b                    string
		less, more, equal, geq bool
	}{
		{"aaa", "aaa", false, false, true, true},
		{"aaa", "aab", true, false, false, false},
		{"aab", "aaa", false, true, false, true},
		{"aa", "aaa", true, false, false, false},
		{"aaa", "aa", false, true, false, true},
		{"", "a", true, false, false, false},
	}
	for _, c := range cases {
		a, b := []byte(c.a), []byte(c.b)
		if got := Less(a, b); got != c.less {
			t.Errorf("Less(%q,%q) = %v, want %v", c.a, c.b, got, c.less)
		}
		if got := More(a, b); got != c.more {
			t.Errorf("More(%q,%q) = %v, want %v", c.a, c.b, got, c.more)
		}
		if got := Equal(a, b); got != c.equal {
			t.Errorf("Equal(%q,%q) = %v, want %v", c.a, c.b, got, c.equal)
		}
		if got := GEQ(a, b); got != c.geq {
			t.Errorf("GEQ(%q,%q) = %v, want %v", c.a, c.b, got, c.geq)
		}
	}
}

func TestTotalOrder(t *testing.T) {
	keys := []string{"", "a", "aa", "aab", "ab", "b", "ba"}
	for i := 0; i < len(keys); i++ {
		for j := 0; j < len(keys); j++ {
			a, b := []byte(keys[i]), []byte(keys[j])
			want := i < j
			if got := Less(a, b); got != want {
				t.Errorf("Less(%q,%q) = %v, want %v", keys[i], keys[j], got, want)
			}
		}
	}
}
