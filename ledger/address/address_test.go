package address

import "testing"

func TestFromIndexToIndexRoundTrip(t *testing.T) {
	const depth = 8
	for i := uint64(0); i < 1<<depth; i++ {
		a, err := FromIndex(i, depth)
		if err != nil {
			t.Fatalf("FromIndex(%d, %d): %v", i, depth, err)
		}
		if got := a.ToIndex(); got != i {
			t.Fatalf("ToIndex(FromIndex(%d)) = %d, want %d", i, got, i)
		}
		if a.Length() != depth {
			t.Fatalf("Length() = %d, want %d", a.Length(), depth)
		}
	}
}

func TestFromIndexOutOfRange(t *testing.T) {
	if _, err := FromIndex(16, 4); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestNextPrev(t *testing.T) {
	a, _ := FromIndex(5, 4)
	n, ok := a.Next()
	if !ok || n.ToIndex() != 6 {
		t.Fatalf("Next() = %v, ok=%v, want index 6", n, ok)
	}
	p, ok := n.Prev()
	if !ok || !p.Equal(a) {
		t.Fatalf("Prev() did not round-trip: got %v want %v", p, a)
	}

	last, _ := FromIndex(15, 4)
	if _, ok := last.Next(); ok {
		t.Fatalf("Next() at last leaf should fail")
	}
	first, _ := FromIndex(0, 4)
	if _, ok := first.Prev(); ok {
		t.Fatalf("Prev() at first leaf should fail")
	}
}

func TestParentSiblingChild(t *testing.T) {
	a, _ := FromIndex(5, 4) // 0101
	parent, ok := a.Parent()
	if !ok || parent.Length() != 3 {
		t.Fatalf("Parent() length = %d, want 3", parent.Length())
	}
	sib, ok := a.Sibling()
	if !ok {
		t.Fatalf("Sibling() failed")
	}
	if sib.Equal(a) {
		t.Fatalf("sibling must differ from a")
	}
	// Child(direction) of the parent, using a's own direction, must recover a.
	recovered := parent.Child(a.Direction())
	if !recovered.Equal(a) {
		t.Fatalf("parent.Child(a.Direction()) = %v, want %v", recovered, a)
	}
}

func TestIterChildren(t *testing.T) {
	a, _ := FromIndex(1, 2) // length-2 address, e.g. subtree over depth 4
	children := a.IterChildren(4)
	if len(children) != 4 {
		t.Fatalf("len(children) = %d, want 4", len(children))
	}
	seen := map[uint64]bool{}
	for _, c := range children {
		if c.Length() != 4 {
			t.Fatalf("child length = %d, want 4", c.Length())
		}
		seen[c.ToIndex()] = true
	}
	if len(seen) != 4 {
		t.Fatalf("children are not distinct: %v", seen)
	}
}

func TestIterChildrenAtOwnDepth(t *testing.T) {
	a, _ := FromIndex(3, 4)
	children := a.IterChildren(4)
	if len(children) != 1 || !children[0].Equal(a) {
		t.Fatalf("IterChildren at own depth should return [a], got %v", children)
	}
}

func TestRootHasNoParentOrSibling(t *testing.T) {
	if _, ok := Root.Parent(); ok {
		t.Fatalf("Root.Parent() should fail")
	}
	if _, ok := Root.Sibling(); ok {
		t.Fatalf("Root.Sibling() should fail")
	}
}
