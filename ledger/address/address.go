// Package address implements the bit-path addressing scheme used to locate
// nodes in the fixed-depth sparse Merkle account tree (spec §3, §4.A).
//
// An Address is an ordered sequence of left/right directions from the tree
// root. Its length equals the depth at which it points: an address of
// length equal to the tree depth names a leaf, any shorter address names an
// inner node. Bits are stored most-significant-first, i.e. path[0] is the
// direction taken at the root.
package address

import (
	"errors"
	"fmt"
)

// MaxDepth is the largest tree depth this package supports (spec §3: "a root
// ledger, created with a fixed depth d ∈ [1, 253]").
const MaxDepth = 253

// ErrOutOfRange is returned by FromIndex when the index does not fit in the
// requested depth.
var ErrOutOfRange = errors.New("address: index out of range for depth")

// ErrInvalidDepth is returned when depth is outside [0, MaxDepth].
var ErrInvalidDepth = errors.New("address: invalid depth")

// Direction is one step away from the root.
type Direction bool

const (
	Left  Direction = false
	Right Direction = true
)

func (d Direction) String() string {
	if d == Right {
		return "Right"
	}
	return "Left"
}

// Address is an immutable root-to-node bit path.
type Address struct {
	path []bool
}

// Root is the zero-length address naming the tree root itself.
var Root = Address{}

// FromIndex builds the length-depth address of leaf i, where
// i ∈ [0, 2^depth). Bits are assigned most-significant-first so that leaf
// order matches numeric order of i.
func FromIndex(i uint64, depth int) (Address, error) {
	if depth < 0 || depth > MaxDepth {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	if depth < 64 && i >= uint64(1)<<uint(depth) {
		return Address{}, fmt.Errorf("%w: index %d, depth %d", ErrOutOfRange, i, depth)
	}
	path := make([]bool, depth)
	for k := 0; k < depth; k++ {
		shift := uint(depth - 1 - k)
		path[k] = (i>>shift)&1 == 1
	}
	return Address{path: path}, nil
}

// ToIndex returns the leaf index this address names, interpreting its path
// as a big-endian binary number. ToIndex(FromIndex(i, d)) == i for every
// valid (i, d) (spec P1).
func (a Address) ToIndex() uint64 {
	var idx uint64
	for _, b := range a.path {
		idx <<= 1
		if b {
			idx |= 1
		}
	}
	return idx
}

// Length returns the address's depth (0 for the root).
func (a Address) Length() int {
	return len(a.path)
}

// IsLeafAt reports whether a names a leaf of a tree with the given depth.
func (a Address) IsLeafAt(depth int) bool {
	return len(a.path) == depth
}

// Bits returns the path directions from root to node, in order.
func (a Address) Bits() []Direction {
	out := make([]Direction, len(a.path))
	for i, b := range a.path {
		out[i] = Direction(b)
	}
	return out
}

// BitAt returns the direction taken at step k (0 = direction chosen at the
// root).
func (a Address) BitAt(k int) Direction {
	return Direction(a.path[k])
}

// Child returns the address reached by descending from a in direction d.
func (a Address) Child(d Direction) Address {
	path := make([]bool, len(a.path)+1)
	copy(path, a.path)
	path[len(a.path)] = bool(d)
	return Address{path: path}
}

// LeftChild is shorthand for Child(Left).
func (a Address) LeftChild() Address { return a.Child(Left) }

// RightChild is shorthand for Child(Right).
func (a Address) RightChild() Address { return a.Child(Right) }

// Parent returns the address one step closer to the root, or false if a is
// already the root.
func (a Address) Parent() (Address, bool) {
	if len(a.path) == 0 {
		return Address{}, false
	}
	path := make([]bool, len(a.path)-1)
	copy(path, a.path[:len(a.path)-1])
	return Address{path: path}, true
}

// Sibling returns the address obtained by flipping the final direction, or
// false if a is the root (which has no sibling).
func (a Address) Sibling() (Address, bool) {
	if len(a.path) == 0 {
		return Address{}, false
	}
	path := make([]bool, len(a.path))
	copy(path, a.path)
	path[len(path)-1] = !path[len(path)-1]
	return Address{path: path}, true
}

// Direction reports which child of its parent a is.
func (a Address) Direction() Direction {
	if len(a.path) == 0 {
		return Left
	}
	return Direction(a.path[len(a.path)-1])
}

// Next returns the address immediately following a in leaf order (treating
// a's path as a big-endian binary counter of the same length), or false if
// a is the last address of its length.
func (a Address) Next() (Address, bool) {
	if len(a.path) == 0 {
		return Address{}, false
	}
	idx := a.ToIndex()
	maxIdx := (uint64(1) << uint(len(a.path))) - 1
	if idx >= maxIdx {
		return Address{}, false
	}
	next, _ := FromIndex(idx+1, len(a.path))
	return next, true
}

// Prev returns the address immediately preceding a in leaf order, or false
// if a is the first address of its length.
func (a Address) Prev() (Address, bool) {
	if len(a.path) == 0 {
		return Address{}, false
	}
	idx := a.ToIndex()
	if idx == 0 {
		return Address{}, false
	}
	prev, _ := FromIndex(idx-1, len(a.path))
	return prev, true
}

// IterChildren enumerates, in leaf order, every address of length depth that
// descends from a (i.e. every leaf of the subtree rooted at a in a tree of
// the given total depth). If a already has length depth, the result is
// [a] itself.
func (a Address) IterChildren(depth int) []Address {
	remaining := depth - len(a.path)
	if remaining <= 0 {
		return []Address{a}
	}
	n := 1 << uint(remaining)
	out := make([]Address, n)
	for j := 0; j < n; j++ {
		path := make([]bool, depth)
		copy(path, a.path)
		for k := 0; k < remaining; k++ {
			shift := uint(remaining - 1 - k)
			path[len(a.path)+k] = (uint64(j)>>shift)&1 == 1
		}
		out[j] = Address{path: path}
	}
	return out
}

// Equal reports whether a and b name the same node.
func (a Address) Equal(b Address) bool {
	if len(a.path) != len(b.path) {
		return false
	}
	for i := range a.path {
		if a.path[i] != b.path[i] {
			return false
		}
	}
	return true
}

// String renders the path as a sequence of 'L'/'R' characters, e.g. "LRL".
func (a Address) String() string {
	buf := make([]byte, len(a.path))
	for i, b := range a.path {
		if b {
			buf[i] = 'R'
		} else {
			buf[i] = 'L'
		}
	}
	return string(buf)
}
