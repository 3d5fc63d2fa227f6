// Package mask implements the layered, copy-on-write account tree overlay
// (spec §4.C): a diff atop a parent capability.Ledger (another mask, or the
// root database) that reads through to the parent for anything it has not
// locally overridden, and can later be committed back into that parent.
package mask

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

var logger = log.Module("mask")

// Mask is a copy-on-write overlay atop a parent capability.Ledger. A freshly
// constructed Mask is unattached: every ledger read and write panics until
// SetParent attaches it to a parent (RegisterChild, UnregisterChild, Depth
// and UUID do not check attachment), matching the source system's
// treatment of an unattached mask as a programming error rather than a
// recoverable condition.
type Mask struct {
	mu sync.Mutex

	uuid  string
	depth int
	empty *merkle.EmptyHashes

	parent   capability.Ledger
	attached bool

	leaves        map[string]account.Account
	tombstoned    map[string]bool
	idIndex       map[account.AccountID]address.Address
	removedIDs    map[account.AccountID]bool
	tokenOwner    map[account.TokenID]account.AccountID
	tokensByOwner map[account.PublicKey]map[account.TokenID]struct{}

	localLastIndex int64 // -1 if nothing written locally

	touched map[string]bool
	cache   map[string]fp.Elt

	children map[string]func(addr address.Address)
}

// New creates an unattached mask of the given depth. Call SetParent before
// using it.
func New(depth int) (*Mask, error) {
	if depth <= 0 || depth > address.MaxDepth {
		return nil, fmt.Errorf("%w: %d", address.ErrInvalidDepth, depth)
	}
	return &Mask{
		uuid:           uuidgen.New(),
		depth:          depth,
		empty:          merkle.NewEmptyHashes(depth),
		leaves:         make(map[string]account.Account),
		tombstoned:     make(map[string]bool),
		idIndex:        make(map[account.AccountID]address.Address),
		removedIDs:     make(map[account.AccountID]bool),
		tokenOwner:     make(map[account.TokenID]account.AccountID),
		tokensByOwner:  make(map[account.PublicKey]map[account.TokenID]struct{}),
		localLastIndex: -1,
		touched:        make(map[string]bool),
		cache:          make(map[string]fp.Elt),
		children:       make(map[string]func(addr address.Address)),
	}, nil
}

// SetParent attaches an unattached mask to a parent ledger of the same
// depth (spec §4.C set_parent). It panics if the mask is already attached or
// the depths disagree -- both are programmer errors, not runtime conditions
// a caller can usefully recover from.
func (m *Mask) SetParent(parent capability.Ledger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attached {
		panic("mask: SetParent called on an already-attached mask")
	}
	if parent.Depth() != m.depth {
		panic(fmt.Sprintf("mask: depth mismatch: mask has depth %d, parent has depth %d", m.depth, parent.Depth()))
	}
	m.parent = parent
	m.attached = true
	parent.RegisterChild(m.uuid, m.onParentWrite)
	logger.Info("mask attached", "uuid", m.uuid, "parent_uuid", parent.UUID())
}

// onParentWrite is the parent_set_notify callback: the parent wrote addr
// directly. Per original_source's parent_set_notify (mask_impl.rs), if this
// mask shadows addr with exactly the account the parent just wrote, the
// shadow is now redundant and is dropped so later parent writes to addr fall
// through again (spec §4.C/M3/P7); otherwise the mask's own value still
// differs and must be kept. Either way, any cached hash along addr's
// ancestor chain may now be stale and is dropped. Untouched subtrees are
// never cached (they always delegate live to the parent), so this is a
// no-op for the common case of a parent write outside this mask's local
// diff.
func (m *Mask) onParentWrite(addr address.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := addr.String()
	if shadow, ok := m.leaves[key]; ok {
		if parentAcc, ok := m.parent.Get(addr); ok && shadow.Equal(parentAcc) {
			m.removeIndexesLocked(shadow)
			delete(m.leaves, key)
			delete(m.touched, key)
		}
	}

	cur := addr
	for {
		delete(m.cache, cur.String())
		p, ok := cur.Parent()
		if !ok {
			break
		}
		cur = p
	}
}

func (m *Mask) requireAttached() {
	if !m.attached {
		panic("mask: operation requires an attached mask (call SetParent first)")
	}
}

// RegisterChild implements capability.Ledger, allowing another mask to stack
// on top of this one.
func (m *Mask) RegisterChild(childUUID string, notify func(addr address.Address)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children[childUUID] = notify
}

// UnregisterChild implements capability.Ledger.
func (m *Mask) UnregisterChild(childUUID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.children, childUUID)
}

func (m *Mask) broadcastLocked(addr address.Address) {
	if len(m.children) == 0 {
		return
	}
	notifies := make([]func(address.Address), 0, len(m.children))
	for _, fn := range m.children {
		notifies = append(notifies, fn)
	}
	m.mu.Unlock()
	for _, fn := range notifies {
		fn(addr)
	}
	m.mu.Lock()
}

func (m *Mask) markTouchedLocked(addr address.Address) {
	cur := addr
	for {
		key := cur.String()
		m.touched[key] = true
		delete(m.cache, key)
		p, ok := cur.Parent()
		if !ok {
			return
		}
		cur = p
	}
}

// Get implements capability.Ledger.
func (m *Mask) Get(addr address.Address) (account.Account, bool) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(addr)
}

func (m *Mask) getLocked(addr address.Address) (account.Account, bool) {
	key := addr.String()
	if m.tombstoned[key] {
		return account.Account{}, false
	}
	if acc, ok := m.leaves[key]; ok {
		return acc, true
	}
	return m.parent.Get(addr)
}

// Set implements capability.Ledger.
func (m *Mask) Set(addr address.Address, acc account.Account) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(addr, acc)
}

func (m *Mask) setLocked(addr address.Address, acc account.Account) {
	key := addr.String()
	if old, ok := m.getLocked(addr); ok && old.ID() != acc.ID() {
		m.removeIndexesLocked(old)
	}
	m.leaves[key] = acc
	delete(m.tombstoned, key)
	m.addIndexesLocked(addr, acc)
	if idx := int64(addr.ToIndex()); idx > m.localLastIndex {
		m.localLastIndex = idx
	}
	m.markTouchedLocked(addr)
	m.broadcastLocked(addr)
}

func (m *Mask) addIndexesLocked(addr address.Address, acc account.Account) {
	id := acc.ID()
	m.idIndex[id] = addr
	delete(m.removedIDs, id)
	if _, exists := m.tokenOwner[acc.TokenID]; !exists {
		if _, existsInParent := m.parent.TokenOwner(acc.TokenID); !existsInParent {
			m.tokenOwner[acc.TokenID] = id
		}
	}
	set, ok := m.tokensByOwner[acc.PublicKey]
	if !ok {
		set = make(map[account.TokenID]struct{})
		m.tokensByOwner[acc.PublicKey] = set
	}
	set[acc.TokenID] = struct{}{}
}

func (m *Mask) removeIndexesLocked(old account.Account) {
	id := old.ID()
	delete(m.idIndex, id)
	if owner, ok := m.tokenOwner[old.TokenID]; ok && owner == id {
		delete(m.tokenOwner, old.TokenID)
	}
	if set, ok := m.tokensByOwner[old.PublicKey]; ok {
		delete(set, old.TokenID)
		if len(set) == 0 {
			delete(m.tokensByOwner, old.PublicKey)
		}
	}
}

// SetBatch implements capability.Ledger.
func (m *Mask) SetBatch(pairs []capability.AddrAccount) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.setLocked(p.Addr, p.Account)
	}
}

func (m *Mask) capacity() (uint64, bool) {
	if m.depth >= 64 {
		return 0, false
	}
	return uint64(1) << uint(m.depth), true
}

func (m *Mask) nextIndexLocked() int64 {
	best := m.localLastIndex
	if pf, ok := m.parent.LastFilled(); ok {
		if idx := int64(pf.ToIndex()); idx > best {
			best = idx
		}
	}
	return best + 1
}

// GetOrCreateAccount implements capability.Ledger.
func (m *Mask) GetOrCreateAccount(id account.AccountID, acc account.Account) (address.Address, capability.CreateStatus, error) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr, ok := m.locationOfAccountLocked(id); ok {
		return addr, capability.Existed, nil
	}
	next := m.nextIndexLocked()
	if cap, bounded := m.capacity(); bounded && uint64(next) >= cap {
		return address.Address{}, 0, capability.ErrOutOfLeaves
	}
	addr, err := address.FromIndex(uint64(next), m.depth)
	if err != nil {
		return address.Address{}, 0, err
	}
	m.setLocked(addr, acc)
	return addr, capability.Added, nil
}

func (m *Mask) locationOfAccountLocked(id account.AccountID) (address.Address, bool) {
	if m.removedIDs[id] {
		return address.Address{}, false
	}
	if addr, ok := m.idIndex[id]; ok {
		return addr, true
	}
	return m.parent.LocationOfAccount(id)
}

// LocationOfAccount implements capability.Ledger.
func (m *Mask) LocationOfAccount(id account.AccountID) (address.Address, bool) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locationOfAccountLocked(id)
}

// IndexOfAccount implements capability.Ledger.
func (m *Mask) IndexOfAccount(id account.AccountID) (uint64, bool) {
	addr, ok := m.LocationOfAccount(id)
	if !ok {
		return 0, false
	}
	return addr.ToIndex(), true
}

// TokenOwner implements capability.Ledger.
func (m *Mask) TokenOwner(token account.TokenID) (account.AccountID, bool) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.tokenOwner[token]; ok {
		return id, true
	}
	return m.parent.TokenOwner(token)
}

// Tokens implements capability.Ledger.
func (m *Mask) Tokens(pk account.PublicKey) map[account.TokenID]struct{} {
	m.requireAttached()
	m.mu.Lock()
	out := m.parent.Tokens(pk)
	for t := range m.tokensByOwner[pk] {
		out[t] = struct{}{}
	}
	m.mu.Unlock()
	return out
}

// Accounts implements capability.Ledger.
func (m *Mask) Accounts() map[account.AccountID]struct{} {
	m.requireAttached()
	m.mu.Lock()
	out := m.parent.Accounts()
	for id := range m.removedIDs {
		delete(out, id)
	}
	for id := range m.idIndex {
		out[id] = struct{}{}
	}
	m.mu.Unlock()
	return out
}

// ToList implements capability.Ledger.
func (m *Mask) ToList() []account.Account {
	ids := m.Accounts()
	type entry struct {
		addr address.Address
		acc  account.Account
	}
	entries := make([]entry, 0, len(ids))
	for id := range ids {
		addr, ok := m.LocationOfAccount(id)
		if !ok {
			continue
		}
		acc, ok := m.Get(addr)
		if !ok {
			continue
		}
		entries = append(entries, entry{addr, acc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].addr.ToIndex() < entries[j].addr.ToIndex() })
	out := make([]account.Account, len(entries))
	for i, e := range entries {
		out[i] = e.acc
	}
	return out
}

// Iter implements capability.Ledger.
func (m *Mask) Iter(fn func(account.Account)) {
	for _, acc := range m.ToList() {
		fn(acc)
	}
}

// FoldUntil implements capability.Ledger.
func (m *Mask) FoldUntil(fn func(account.Account) bool) {
	for _, acc := range m.ToList() {
		if !fn(acc) {
			return
		}
	}
}

// FoldWithIgnoredAccounts implements capability.Ledger.
func (m *Mask) FoldWithIgnoredAccounts(ignored map[account.AccountID]struct{}, fn func(account.Account)) {
	for _, acc := range m.ToList() {
		if _, skip := ignored[acc.ID()]; skip {
			continue
		}
		fn(acc)
	}
}

func (m *Mask) hashAtLocked(addr address.Address) fp.Elt {
	key := addr.String()
	if !m.touched[key] {
		h, err := m.parent.GetInnerHashAtAddr(addr)
		if err != nil {
			panic(fmt.Sprintf("mask: parent hash lookup failed for %q: %v", addr, err))
		}
		return h
	}
	if h, ok := m.cache[key]; ok {
		return h
	}
	var h fp.Elt
	if addr.Length() == m.depth {
		if acc, ok := m.leaves[key]; ok {
			h = merkle.HashLeaf(acc)
		} else {
			h = m.empty.At(0)
		}
	} else {
		height := m.depth - addr.Length()
		left := m.hashAtLocked(addr.LeftChild())
		right := m.hashAtLocked(addr.RightChild())
		h = merkle.HashNode(height, left, right)
	}
	m.cache[key] = h
	return h
}

// MerkleRoot implements capability.Ledger.
func (m *Mask) MerkleRoot() fp.Elt {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashAtLocked(address.Root)
}

// GetInnerHashAtAddr implements capability.Ledger.
func (m *Mask) GetInnerHashAtAddr(addr address.Address) (fp.Elt, error) {
	m.requireAttached()
	if addr.Length() > m.depth {
		return fp.Elt{}, fmt.Errorf("mask: address length %d exceeds depth %d", addr.Length(), m.depth)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashAtLocked(addr), nil
}

// MerklePath implements capability.Ledger.
func (m *Mask) MerklePath(addr address.Address) ([]capability.PathElem, error) {
	m.requireAttached()
	if addr.Length() > m.depth {
		return nil, fmt.Errorf("mask: address length %d exceeds depth %d", addr.Length(), m.depth)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var path []capability.PathElem
	cur := addr
	for cur.Length() > 0 {
		sib, _ := cur.Sibling()
		onRight := cur.Direction() == address.Left
		path = append(path, capability.PathElem{
			SiblingHash:    m.hashAtLocked(sib),
			SiblingOnRight: onRight,
		})
		p, _ := cur.Parent()
		cur = p
	}
	return path, nil
}

// GetAllAccountsRootedAt implements capability.Ledger.
func (m *Mask) GetAllAccountsRootedAt(addr address.Address) []account.Account {
	m.requireAttached()
	var out []account.Account
	for _, leaf := range addr.IterChildren(m.depth) {
		if acc, ok := m.Get(leaf); ok {
			out = append(out, acc)
		}
	}
	return out
}

// SetAllAccountsRootedAt implements capability.Ledger.
func (m *Mask) SetAllAccountsRootedAt(addr address.Address, accs []account.Account) error {
	m.requireAttached()
	leaves := addr.IterChildren(m.depth)
	if len(accs) != len(leaves) {
		return fmt.Errorf("mask: expected %d accounts for subtree at %q, got %d", len(leaves), addr, len(accs))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, leaf := range leaves {
		m.setLocked(leaf, accs[i])
	}
	return nil
}

// RemoveAccounts implements capability.Ledger.
func (m *Mask) RemoveAccounts(ids []account.AccountID) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		addr, ok := m.locationOfAccountLocked(id)
		if !ok {
			continue
		}
		key := addr.String()
		if old, ok := m.leaves[key]; ok {
			m.removeIndexesLocked(old)
		}
		delete(m.leaves, key)
		m.tombstoned[key] = true
		m.removedIDs[id] = true
		delete(m.idIndex, id)
		m.markTouchedLocked(addr)
		m.broadcastLocked(addr)
	}
}

// LastFilled implements capability.Ledger.
func (m *Mask) LastFilled() (address.Address, bool) {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()
	best := m.localLastIndex
	if pf, ok := m.parent.LastFilled(); ok {
		if idx := int64(pf.ToIndex()); idx > best {
			best = idx
		}
	}
	if best < 0 {
		return address.Address{}, false
	}
	addr, _ := address.FromIndex(uint64(best), m.depth)
	return addr, true
}

// NumAccounts implements capability.Ledger.
func (m *Mask) NumAccounts() uint64 {
	addr, ok := m.LastFilled()
	if !ok {
		return 0
	}
	return addr.ToIndex() + 1
}

// Depth implements capability.Ledger.
func (m *Mask) Depth() int {
	return m.depth
}

// UUID implements capability.Ledger.
func (m *Mask) UUID() string {
	return m.uuid
}

// Commit merges every local write and removal into the parent, in address
// order, then resets this mask to an empty diff over the same parent (spec
// §4.C commit). The mask remains attached and usable afterward.
func (m *Mask) Commit() {
	m.requireAttached()
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		addr address.Address
		acc  account.Account
	}
	entries := make([]entry, 0, len(m.leaves))
	for key, acc := range m.leaves {
		addr := addressFromKey(key)
		entries = append(entries, entry{addr, acc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].addr.ToIndex() < entries[j].addr.ToIndex() })

	pairs := make([]capability.AddrAccount, len(entries))
	for i, e := range entries {
		pairs[i] = capability.AddrAccount{Addr: e.addr, Account: e.acc}
	}

	// The writes below would otherwise broadcast straight back into this
	// same mask's onParentWrite -- this mask is both the writer and one of
	// its own parent's registered children -- and onParentWrite's
	// m.mu.Lock() would deadlock against the lock already held by this
	// call. This mask's own diff is about to be wiped wholesale anyway, so
	// it has no use for its own notification: act as the spec's
	// ignore_child for exactly this commit by detaching before writing and
	// reattaching once the parent is caught up.
	m.parent.UnregisterChild(m.uuid)
	if len(pairs) > 0 {
		m.parent.SetBatch(pairs)
	}

	if len(m.removedIDs) > 0 {
		ids := make([]account.AccountID, 0, len(m.removedIDs))
		for id := range m.removedIDs {
			ids = append(ids, id)
		}
		m.parent.RemoveAccounts(ids)
	}
	m.parent.RegisterChild(m.uuid, m.onParentWrite)

	logger.Info("mask committed", "uuid", m.uuid, "writes", len(pairs), "removals", len(m.removedIDs))

	m.leaves = make(map[string]account.Account)
	m.tombstoned = make(map[string]bool)
	m.idIndex = make(map[account.AccountID]address.Address)
	m.removedIDs = make(map[account.AccountID]bool)
	m.tokenOwner = make(map[account.TokenID]account.AccountID)
	m.tokensByOwner = make(map[account.PublicKey]map[account.TokenID]struct{})
	m.localLastIndex = -1
	m.touched = make(map[string]bool)
	m.cache = make(map[string]fp.Elt)
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

var _ capability.Ledger = (*Mask)(nil)
