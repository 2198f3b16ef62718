package id

import "testing"

func TestNewProducesUniqueSortableIDs(t *testing.T) {
	const n = 1000
	seen := make(map[string]struct{}, n)
	prev := ""
	for i := 0; i < n; i++ {
		got := New()
		if len(got) != 26 {
			t.Fatalf("len(%q) = %d, want 26", got, len(got))
		}
		if _, dup := seen[got]; dup {
			t.Fatalf("duplicate id %q", got)
		}
		seen[got] = struct{}{}
		if got < prev {
			t.Fatalf("ids not monotonically increasing: %q < %q", got, prev)
		}
		prev = got
	}
}
