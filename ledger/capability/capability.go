// Package capability defines the Ledger Capability interface (spec §6):
// the uniform read/write surface implemented by both the root Merkle
// database (component B) and a mask overlay (component C), so the
// transaction applier and zkApp loop can operate over either without
// knowing which.
package capability

import (
	"errors"

	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/address"
)

// ErrOutOfLeaves is returned by GetOrCreateAccount when appending a new
// account would overflow the tree's leaf capacity (spec §4.B).
var ErrOutOfLeaves = errors.New("ledger: out of leaves")

// CreateStatus reports whether GetOrCreateAccount appended a new account or
// found an existing one.
type CreateStatus int

const (
	Added CreateStatus = iota
	Existed
)

func (s CreateStatus) String() string {
	if s == Added {
		return "Added"
	}
	return "Existed"
}

// PathElem is one step of a Merkle path: the sibling hash at that level,
// tagged with which side the sibling sits on (spec §4.B merkle_path,
// GLOSSARY "Merkle path").
type PathElem struct {
	SiblingHash fp.Elt
	// SiblingOnRight is true when the sibling is the right child (i.e. the
	// path's own node, at this level, is the left child), matching the
	// spec's Left(h)/Right(h) tagging.
	SiblingOnRight bool
}

// AddrAccount pairs an address with the account to write there, used by
// SetBatch and SetAllAccountsRootedAt.
type AddrAccount struct {
	Addr    address.Address
	Account account.Account
}

// Ledger is the capability interface implemented by both the root Merkle
// database and a mask overlay (spec §6).
type Ledger interface {
	// Get returns the account at addr, or ok=false if the leaf is empty.
	Get(addr address.Address) (acc account.Account, ok bool)

	// Set writes acc at addr, updating the id/token indexes and notifying
	// any attached child masks.
	Set(addr address.Address, acc account.Account)

	// SetBatch applies a sequence of (address, account) writes in order.
	SetBatch(pairs []AddrAccount)

	// GetOrCreateAccount appends id/acc after the current last-filled leaf
	// if id is unseen, or returns the existing address if id is already
	// present (spec §4.B, P3/P4).
	GetOrCreateAccount(id account.AccountID, acc account.Account) (address.Address, CreateStatus, error)

	// LocationOfAccount returns the address holding id, if any.
	LocationOfAccount(id account.AccountID) (address.Address, bool)

	// IndexOfAccount returns the leaf index holding id, if any.
	IndexOfAccount(id account.AccountID) (uint64, bool)

	// TokenOwner returns the account id that first introduced token, if any.
	TokenOwner(token account.TokenID) (account.AccountID, bool)

	// Tokens returns the set of token ids owned by accounts under pk.
	Tokens(pk account.PublicKey) map[account.TokenID]struct{}

	// Accounts returns the set of all account ids present in the ledger.
	Accounts() map[account.AccountID]struct{}

	// ToList returns every account, in leaf order.
	ToList() []account.Account

	// Iter calls fn for every account in leaf order.
	Iter(fn func(account.Account))

	// FoldUntil calls fn for every account in leaf order, stopping early if
	// fn returns false.
	FoldUntil(fn func(account.Account) bool)

	// FoldWithIgnoredAccounts calls fn for every account in leaf order
	// except those whose id is in ignored.
	FoldWithIgnoredAccounts(ignored map[account.AccountID]struct{}, fn func(account.Account))

	// MerkleRoot returns the current root hash.
	MerkleRoot() fp.Elt

	// MerklePath returns the sibling hashes from addr up to the root.
	MerklePath(addr address.Address) ([]PathElem, error)

	// GetInnerHashAtAddr returns the subtree hash rooted at addr.
	GetInnerHashAtAddr(addr address.Address) (fp.Elt, error)

	// GetAllAccountsRootedAt returns every leaf account under addr, in leaf
	// order (absent leaves are omitted).
	GetAllAccountsRootedAt(addr address.Address) []account.Account

	// SetAllAccountsRootedAt bulk-writes accs onto the leaves under addr, in
	// leaf order.
	SetAllAccountsRootedAt(addr address.Address, accs []account.Account) error

	// RemoveAccounts deletes every id in ids from the tree and its indexes.
	RemoveAccounts(ids []account.AccountID)

	// LastFilled returns the address of the highest-index occupied leaf, or
	// ok=false if the ledger is empty.
	LastFilled() (address.Address, bool)

	// NumAccounts returns last_filled.index+1, or 0 if empty.
	NumAccounts() uint64

	// Depth returns the tree's fixed depth.
	Depth() int

	// UUID returns this ledger's stable identifier.
	UUID() string

	// RegisterChild subscribes an attached child mask to this ledger's write
	// notifications (spec §4.C set_parent/parent_set_notify): whenever an
	// address is written directly to this ledger, notify is called with that
	// address so the child can drop any stale cached hash along its path.
	RegisterChild(childUUID string, notify func(addr address.Address))

	// UnregisterChild removes a previously registered child.
	UnregisterChild(childUUID string)
}
