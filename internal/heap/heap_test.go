package heap

import (
	"bytes"
	"testing"
)

func TestInternerDedup(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  int // distinct strings expected
	}{
		{"empty", nil, 0},
		{"no dupes", []string{"a", "b", "c"}, 3},
		{"all dupes", []string{"react", "react", "react"}, 1},
		{"mixed", []string{"x", "y", "x", "z", "y"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInterner()
			ids := make(map[string]InternedString)
			for _, s := range tt.input {
				idx := in.Intern(s)
				if prev, ok := ids[s]; ok && prev != idx {
					t.Fatalf("Intern(%q) = %d, want stable %d", s, idx, prev)
				}
				ids[s] = idx
				if got := in.Lookup(idx); got != s {
					t.Fatalf("Lookup(%d) = %q, want %q", idx, got, s)
				}
			}
			if got := in.Len(); got != tt.want {
				t.Fatalf("Len() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSlabAllocFreeReuse(t *testing.T) {
	s := NewSlab[int]()

	a := s.Alloc()
	*s.Get(a) = 10
	b := s.Alloc()
	*s.Get(b) = 20

	if a == 0 || b == 0 {
		t.Fatalf("addresses must be non-zero, got %d, %d", a, b)
	}
	if a == b {
		t.Fatalf("distinct allocations must get distinct addresses")
	}

	s.Free(a)
	c := s.Alloc()
	if c != a {
		t.Fatalf("Alloc() after Free() = %d, want reused address %d", c, a)
	}
	if got := *s.Get(b); got != 20 {
		t.Fatalf("unrelated record b corrupted: got %d, want 20", got)
	}
}

func TestSlabGrowsAcrossChunks(t *testing.T) {
	s := NewSlab[int]()
	addrs := make([]uint32, chunkSize*2+5)
	for i := range addrs {
		addrs[i] = s.Alloc()
		*s.Get(addrs[i]) = i
	}
	for i, addr := range addrs {
		if got := *s.Get(addr); got != i {
			t.Fatalf("Get(%d) = %d, want %d", addr, got, i)
		}
	}
}

func TestVectorPushGet(t *testing.T) {
	v := NewVector[string]()
	v.Push("a")
	v.Push("b")
	i := v.Push("c")
	if i != 2 {
		t.Fatalf("Push index = %d, want 2", i)
	}
	if got := v.Slice(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("Slice() = %v", got)
	}
	v.Set(1, "bb")
	if got := v.Get(1); got != "bb" {
		t.Fatalf("Get(1) after Set = %q, want %q", got, "bb")
	}
}

func TestHeapSnapshotRestoreAddressStability(t *testing.T) {
	h := New()
	words := []string{"react", "react-dom", "./other", "lodash/merge", ""}
	ids := make([]InternedString, len(words))
	for i, w := range words {
		ids[i] = h.Strings.Intern(w)
	}

	var buf bytes.Buffer
	if err := h.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	restored, err := Restore(&buf)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	for i, w := range words {
		if got := restored.Strings.Lookup(ids[i]); got != w {
			t.Fatalf("Lookup(%d) after restore = %q, want %q", ids[i], got, w)
		}
	}

	// Interning a word that existed pre-snapshot must still resolve to the
	// address issued before the snapshot.
	if got := restored.Strings.Intern("react"); got != ids[0] {
		t.Fatalf("Intern(%q) after restore = %d, want pre-snapshot id %d", "react", got, ids[0])
	}

	// New strings interned post-restore must not collide with restored ones.
	newID := restored.Strings.Intern("brand-new")
	for _, id := range ids {
		if newID == id {
			t.Fatalf("new InternedString %d collides with restored id", newID)
		}
	}
}
