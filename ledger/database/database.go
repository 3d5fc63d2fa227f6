// Package database implements the root Merkle account database (spec §4.B):
// a fixed-depth sparse binary tree of accounts, indexed by account id and
// token id, with a lazily memoized Merkle root.
package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/internal/log"
	"github.com/mina-ledger/ledger-core/internal/uuidgen"
	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/address"
	"github.com/mina-ledger/ledger-core/ledger/capability"
	"github.com/mina-ledger/ledger-core/ledger/merkle"
)

var logger = log.Module("database")

// Directory is an opaque handle identifying a database's on-disk backing
// store in the original system. This module carries no persistence layer
// (spec §1 Non-goals), so Directory is bookkeeping only: a stable name a
// caller can log or compare, never a filesystem path.
type Directory struct {
	name string
}

// Name returns the directory's bookkeeping name.
func (d Directory) Name() string { return d.name }

// Database is a root Merkle account tree of fixed depth.
type Database struct {
	mu sync.Mutex

	depth int
	uuid  string
	empty *merkle.EmptyHashes

	leaves        map[string]account.Account
	idIndex       map[account.AccountID]address.Address
	tokenOwner    map[account.TokenID]account.AccountID
	tokensByOwner map[account.PublicKey]map[account.TokenID]struct{}

	lastIndex int64 // -1 when empty

	cache map[string]fp.Elt

	children map[string]func(addr address.Address)
}

// New creates an empty database of the given fixed depth (spec §4.B create).
func New(depth int) (*Database, error) {
	if depth <= 0 || depth > address.MaxDepth {
		return nil, fmt.Errorf("%w: %d", address.ErrInvalidDepth, depth)
	}
	d := &Database{
		depth:         depth,
		uuid:          uuidgen.New(),
		empty:         merkle.NewEmptyHashes(depth),
		leaves:        make(map[string]account.Account),
		idIndex:       make(map[account.AccountID]address.Address),
		tokenOwner:    make(map[account.TokenID]account.AccountID),
		tokensByOwner: make(map[account.PublicKey]map[account.TokenID]struct{}),
		lastIndex:     -1,
		cache:         make(map[string]fp.Elt),
		children:      make(map[string]func(addr address.Address)),
	}
	logger.Info("created ledger database", "uuid", d.uuid, "depth", depth)
	return d, nil
}

// Directory returns this database's bookkeeping directory handle.
func (d *Database) Directory() Directory {
	return Directory{name: "db-" + d.uuid}
}

func (d *Database) capacity() (uint64, bool) {
	if d.depth >= 64 {
		return 0, false // effectively unbounded
	}
	return uint64(1) << uint(d.depth), true
}

// Get implements capability.Ledger.
func (d *Database) Get(addr address.Address) (account.Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.leaves[addr.String()]
	return acc, ok
}

// Set implements capability.Ledger.
func (d *Database) Set(addr address.Address, acc account.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setLocked(addr, acc)
}

// SetBatch implements capability.Ledger.
func (d *Database) SetBatch(pairs []capability.AddrAccount) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range pairs {
		d.setLocked(p.Addr, p.Account)
	}
}

func (d *Database) setLocked(addr address.Address, acc account.Account) {
	key := addr.String()
	if old, ok := d.leaves[key]; ok {
		d.removeIndexesLocked(old)
	}
	d.leaves[key] = acc
	d.addIndexesLocked(addr, acc)
	if idx := addr.ToIndex(); int64(idx) > d.lastIndex {
		d.lastIndex = int64(idx)
	}
	d.invalidateLocked(addr)
	d.broadcastLocked(addr)
}

func (d *Database) addIndexesLocked(addr address.Address, acc account.Account) {
	id := acc.ID()
	d.idIndex[id] = addr
	if _, exists := d.tokenOwner[acc.TokenID]; !exists {
		d.tokenOwner[acc.TokenID] = id
	}
	set, ok := d.tokensByOwner[acc.PublicKey]
	if !ok {
		set = make(map[account.TokenID]struct{})
		d.tokensByOwner[acc.PublicKey] = set
	}
	set[acc.TokenID] = struct{}{}
}

// removeIndexesLocked drops old's index entries. If old owned a token (was
// its recorded owner), the token-owner mapping is dropped outright rather
// than reassigned to some other holder: see DESIGN.md's resolution of the
// spec's token-ownership open question.
func (d *Database) removeIndexesLocked(old account.Account) {
	id := old.ID()
	delete(d.idIndex, id)
	if owner, ok := d.tokenOwner[old.TokenID]; ok && owner == id {
		delete(d.tokenOwner, old.TokenID)
	}
	if set, ok := d.tokensByOwner[old.PublicKey]; ok {
		delete(set, old.TokenID)
		if len(set) == 0 {
			delete(d.tokensByOwner, old.PublicKey)
		}
	}
}

// RegisterChild implements capability.Ledger.
func (d *Database) RegisterChild(childUUID string, notify func(addr address.Address)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.children[childUUID] = notify
}

// UnregisterChild implements capability.Ledger.
func (d *Database) UnregisterChild(childUUID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.children, childUUID)
}

// broadcastLocked must be called with d.mu held; it snapshots the child
// notify callbacks and invokes them after releasing the lock, so a child's
// own locking (it may call back into d) cannot deadlock against d.mu.
func (d *Database) broadcastLocked(addr address.Address) {
	if len(d.children) == 0 {
		return
	}
	notifies := make([]func(address.Address), 0, len(d.children))
	for _, fn := range d.children {
		notifies = append(notifies, fn)
	}
	d.mu.Unlock()
	for _, fn := range notifies {
		fn(addr)
	}
	d.mu.Lock()
}

func (d *Database) invalidateLocked(addr address.Address) {
	cur := addr
	for {
		delete(d.cache, cur.String())
		p, ok := cur.Parent()
		if !ok {
			return
		}
		cur = p
	}
}

func (d *Database) hashAtLocked(addr address.Address) fp.Elt {
	key := addr.String()
	if h, ok := d.cache[key]; ok {
		return h
	}
	var h fp.Elt
	if addr.Length() == d.depth {
		if acc, ok := d.leaves[key]; ok {
			h = merkle.HashLeaf(acc)
		} else {
			h = d.empty.At(0)
		}
	} else {
		height := d.depth - addr.Length()
		left := d.hashAtLocked(addr.LeftChild())
		right := d.hashAtLocked(addr.RightChild())
		h = merkle.HashNode(height, left, right)
	}
	d.cache[key] = h
	return h
}

// GetOrCreateAccount implements capability.Ledger.
func (d *Database) GetOrCreateAccount(id account.AccountID, acc account.Account) (address.Address, capability.CreateStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if addr, ok := d.idIndex[id]; ok {
		return addr, capability.Existed, nil
	}
	next := d.lastIndex + 1
	if cap, bounded := d.capacity(); bounded && uint64(next) >= cap {
		logger.Warn("ledger out of leaves", "uuid", d.uuid, "depth", d.depth)
		return address.Address{}, 0, capability.ErrOutOfLeaves
	}
	addr, err := address.FromIndex(uint64(next), d.depth)
	if err != nil {
		return address.Address{}, 0, err
	}
	d.setLocked(addr, acc)
	return addr, capability.Added, nil
}

// LocationOfAccount implements capability.Ledger.
func (d *Database) LocationOfAccount(id account.AccountID) (address.Address, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	addr, ok := d.idIndex[id]
	return addr, ok
}

// IndexOfAccount implements capability.Ledger.
func (d *Database) IndexOfAccount(id account.AccountID) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	addr, ok := d.idIndex[id]
	if !ok {
		return 0, false
	}
	return addr.ToIndex(), true
}

// TokenOwner implements capability.Ledger.
func (d *Database) TokenOwner(token account.TokenID) (account.AccountID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.tokenOwner[token]
	return id, ok
}

// Tokens implements capability.Ledger.
func (d *Database) Tokens(pk account.PublicKey) map[account.TokenID]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[account.TokenID]struct{})
	for t := range d.tokensByOwner[pk] {
		out[t] = struct{}{}
	}
	return out
}

// Accounts implements capability.Ledger.
func (d *Database) Accounts() map[account.AccountID]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[account.AccountID]struct{}, len(d.idIndex))
	for id := range d.idIndex {
		out[id] = struct{}{}
	}
	return out
}

func (d *Database) sortedAddrsLocked() []address.Address {
	addrs := make([]address.Address, 0, len(d.leaves))
	for _, addr := range d.idIndex {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].ToIndex() < addrs[j].ToIndex() })
	return addrs
}

// ToList implements capability.Ledger.
func (d *Database) ToList() []account.Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	addrs := d.sortedAddrsLocked()
	out := make([]account.Account, len(addrs))
	for i, addr := range addrs {
		out[i] = d.leaves[addr.String()]
	}
	return out
}

// Iter implements capability.Ledger.
func (d *Database) Iter(fn func(account.Account)) {
	for _, acc := range d.ToList() {
		fn(acc)
	}
}

// FoldUntil implements capability.Ledger.
func (d *Database) FoldUntil(fn func(account.Account) bool) {
	for _, acc := range d.ToList() {
		if !fn(acc) {
			return
		}
	}
}

// FoldWithIgnoredAccounts implements capability.Ledger.
func (d *Database) FoldWithIgnoredAccounts(ignored map[account.AccountID]struct{}, fn func(account.Account)) {
	for _, acc := range d.ToList() {
		if _, skip := ignored[acc.ID()]; skip {
			continue
		}
		fn(acc)
	}
}

// MerkleRoot implements capability.Ledger.
func (d *Database) MerkleRoot() fp.Elt {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hashAtLocked(address.Root)
}

// GetInnerHashAtAddr implements capability.Ledger.
func (d *Database) GetInnerHashAtAddr(addr address.Address) (fp.Elt, error) {
	if addr.Length() > d.depth {
		return fp.Elt{}, fmt.Errorf("database: address length %d exceeds depth %d", addr.Length(), d.depth)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hashAtLocked(addr), nil
}

// MerklePath implements capability.Ledger.
func (d *Database) MerklePath(addr address.Address) ([]capability.PathElem, error) {
	if addr.Length() > d.depth {
		return nil, fmt.Errorf("database: address length %d exceeds depth %d", addr.Length(), d.depth)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var path []capability.PathElem
	cur := addr
	for cur.Length() > 0 {
		sib, _ := cur.Sibling()
		onRight := cur.Direction() == address.Left
		path = append(path, capability.PathElem{
			SiblingHash:    d.hashAtLocked(sib),
			SiblingOnRight: onRight,
		})
		p, _ := cur.Parent()
		cur = p
	}
	return path, nil
}

// GetAllAccountsRootedAt implements capability.Ledger.
func (d *Database) GetAllAccountsRootedAt(addr address.Address) []account.Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []account.Account
	for _, leaf := range addr.IterChildren(d.depth) {
		if acc, ok := d.leaves[leaf.String()]; ok {
			out = append(out, acc)
		}
	}
	return out
}

// SetAllAccountsRootedAt implements capability.Ledger.
func (d *Database) SetAllAccountsRootedAt(addr address.Address, accs []account.Account) error {
	leaves := addr.IterChildren(d.depth)
	if len(accs) != len(leaves) {
		return fmt.Errorf("database: expected %d accounts for subtree at %q, got %d", len(leaves), addr, len(accs))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, leaf := range leaves {
		d.setLocked(leaf, accs[i])
	}
	return nil
}

// RemoveAccounts implements capability.Ledger.
func (d *Database) RemoveAccounts(ids []account.AccountID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := false
	for _, id := range ids {
		addr, ok := d.idIndex[id]
		if !ok {
			continue
		}
		key := addr.String()
		old := d.leaves[key]
		delete(d.leaves, key)
		d.removeIndexesLocked(old)
		d.invalidateLocked(addr)
		d.broadcastLocked(addr)
		removed = true
	}
	if removed {
		d.recomputeLastIndexLocked()
	}
}

// recomputeLastIndexLocked restores the last_filled invariant after a
// removal (spec §4.B: "decrements naccounts; updates last_filled = max(
// remaining indices)"): last_filled must only ever decrease via
// RemoveAccounts, never linger at a now-vacant slot.
func (d *Database) recomputeLastIndexLocked() {
	best := int64(-1)
	for key := range d.leaves {
		if idx := int64(addressFromKey(key).ToIndex()); idx > best {
			best = idx
		}
	}
	d.lastIndex = best
}

// LastFilled implements capability.Ledger.
func (d *Database) LastFilled() (address.Address, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastIndex < 0 {
		return address.Address{}, false
	}
	addr, _ := address.FromIndex(uint64(d.lastIndex), d.depth)
	return addr, true
}

// NumAccounts implements capability.Ledger.
func (d *Database) NumAccounts() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastIndex < 0 {
		return 0
	}
	return uint64(d.lastIndex) + 1
}

// Depth implements capability.Ledger.
func (d *Database) Depth() int {
	return d.depth
}

// UUID implements capability.Ledger.
func (d *Database) UUID() string {
	return d.uuid
}

func addressFromKey(key string) address.Address {
	addr := address.Root
	for _, c := range key {
		if c == 'R' {
			addr = addr.RightChild()
		} else {
			addr = addr.LeftChild()
		}
	}
	return addr
}

var _ capability.Ledger = (*Database)(nil)
