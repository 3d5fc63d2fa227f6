package merkle

import (
	"fmt"

	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
)

// EmptyHashes is the precomputed table of empty_hash_at_depth(k) values for
// k in [0, maxHeight] (spec §4.A). It is computed once and reused: building
// it is O(maxHeight) hash operations, not O(2^maxHeight).
type EmptyHashes struct {
	cache []fp.Elt
}

// NewEmptyHashes builds the table up to and including maxHeight.
func NewEmptyHashes(maxHeight int) *EmptyHashes {
	cache := make([]fp.Elt, maxHeight+1)
	cache[0] = HashLeaf(account.Empty)
	for k := 1; k <= maxHeight; k++ {
		cache[k] = HashNode(k, cache[k-1], cache[k-1])
	}
	return &EmptyHashes{cache: cache}
}

// At returns the hash of a fully empty subtree of the given height.
func (e *EmptyHashes) At(height int) fp.Elt {
	if height < 0 || height >= len(e.cache) {
		panic(fmt.Sprintf("merkle: empty-hash height %d out of range [0,%d]", height, len(e.cache)-1))
	}
	return e.cache[height]
}

// MaxHeight returns the largest height this table covers.
func (e *EmptyHashes) MaxHeight() int {
	return len(e.cache) - 1
}
