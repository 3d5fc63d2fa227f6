package database

import (
	"testing"

	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/address"
	"github.com/mina-ledger/ledger-core/ledger/capability"
)

func mustNew(t *testing.T, depth int) *Database {
	t.Helper()
	db, err := New(depth)
	if err != nil {
		t.Fatalf("New(%d): %v", depth, err)
	}
	return db
}

func TestGetOrCreateAccountAppendsThenFinds(t *testing.T) {
	db := mustNew(t, 4)
	id := account.NewAccountID(account.PublicKey{1})
	acc := account.New(id, 100)

	addr1, status, err := db.GetOrCreateAccount(id, acc)
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	if status != capability.Added {
		t.Fatalf("status = %v, want Added", status)
	}
	if addr1.ToIndex() != 0 {
		t.Fatalf("first account should land at index 0, got %d", addr1.ToIndex())
	}

	addr2, status, err := db.GetOrCreateAccount(id, acc)
	if err != nil {
		t.Fatalf("GetOrCreateAccount (repeat): %v", err)
	}
	if status != capability.Existed {
		t.Fatalf("status = %v, want Existed", status)
	}
	if !addr1.Equal(addr2) {
		t.Fatalf("repeat call returned different address")
	}
}

func TestGetOrCreateAccountOutOfLeaves(t *testing.T) {
	db := mustNew(t, 1) // capacity 2
	for i := 0; i < 2; i++ {
		id := account.NewAccountID(account.PublicKey{byte(i)})
		if _, _, err := db.GetOrCreateAccount(id, account.New(id, 1)); err != nil {
			t.Fatalf("unexpected error filling leaf %d: %v", i, err)
		}
	}
	id := account.NewAccountID(account.PublicKey{9})
	if _, _, err := db.GetOrCreateAccount(id, account.New(id, 1)); err != capability.ErrOutOfLeaves {
		t.Fatalf("expected ErrOutOfLeaves, got %v", err)
	}
}

func TestMerkleRootChangesOnWriteAndCachesOtherwise(t *testing.T) {
	db := mustNew(t, 3)
	r0 := db.MerkleRoot()

	id := account.NewAccountID(account.PublicKey{2})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 50))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	r1 := db.MerkleRoot()
	if r0 == r1 {
		t.Fatalf("root should change after writing an account")
	}

	r2 := db.MerkleRoot()
	if r1 != r2 {
		t.Fatalf("root should be stable across repeated reads with no writes")
	}

	db.Set(addr, account.New(id, 51))
	r3 := db.MerkleRoot()
	if r2 == r3 {
		t.Fatalf("root should change again after a second write to the same leaf")
	}
}

func TestMerklePathLengthMatchesDepth(t *testing.T) {
	db := mustNew(t, 5)
	id := account.NewAccountID(account.PublicKey{3})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 10))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	path, err := db.MerklePath(addr)
	if err != nil {
		t.Fatalf("MerklePath: %v", err)
	}
	if len(path) != 5 {
		t.Fatalf("path length = %d, want depth 5", len(path))
	}
}

func TestLastFilledAndNumAccounts(t *testing.T) {
	db := mustNew(t, 4)
	if _, ok := db.LastFilled(); ok {
		t.Fatalf("empty database should report LastFilled ok=false")
	}
	if db.NumAccounts() != 0 {
		t.Fatalf("empty database NumAccounts = %d, want 0", db.NumAccounts())
	}
	for i := 0; i < 3; i++ {
		id := account.NewAccountID(account.PublicKey{byte(i + 10)})
		if _, _, err := db.GetOrCreateAccount(id, account.New(id, 1)); err != nil {
			t.Fatalf("GetOrCreateAccount: %v", err)
		}
	}
	last, ok := db.LastFilled()
	if !ok || last.ToIndex() != 2 {
		t.Fatalf("LastFilled = (%v, %v), want (index 2, true)", last, ok)
	}
	if db.NumAccounts() != 3 {
		t.Fatalf("NumAccounts = %d, want 3", db.NumAccounts())
	}
}

func TestRemoveAccountsClearsIndexesAndHash(t *testing.T) {
	db := mustNew(t, 4)
	id := account.NewAccountID(account.PublicKey{5})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 10))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	rootBefore := db.MerkleRoot()

	db.RemoveAccounts([]account.AccountID{id})
	if _, ok := db.LocationOfAccount(id); ok {
		t.Fatalf("account should be gone from the id index after removal")
	}
	if _, ok := db.Get(addr); ok {
		t.Fatalf("leaf should read empty after removal")
	}
	rootAfter := db.MerkleRoot()
	if rootBefore == rootAfter {
		t.Fatalf("root should change after removing an account")
	}
}

func TestRemoveAccountsRecomputesLastFilled(t *testing.T) {
	db := mustNew(t, 4)
	id := account.NewAccountID(account.PublicKey{9})
	if _, _, err := db.GetOrCreateAccount(id, account.New(id, 10)); err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}

	db.RemoveAccounts([]account.AccountID{id})
	if _, ok := db.LastFilled(); ok {
		t.Fatalf("LastFilled should report ok=false once the only account is removed")
	}
	if db.NumAccounts() != 0 {
		t.Fatalf("NumAccounts = %d, want 0 after removing the only account", db.NumAccounts())
	}
}

func TestRemoveAccountsLastFilledFallsBackToRemainingMax(t *testing.T) {
	db := mustNew(t, 4)
	ids := make([]account.AccountID, 3)
	for i := range ids {
		ids[i] = account.NewAccountID(account.PublicKey{byte(i + 20)})
		if _, _, err := db.GetOrCreateAccount(ids[i], account.New(ids[i], 1)); err != nil {
			t.Fatalf("GetOrCreateAccount %d: %v", i, err)
		}
	}

	// Remove the highest-index account; last_filled must drop to the next
	// highest remaining index, not linger at the vacated slot.
	db.RemoveAccounts([]account.AccountID{ids[2]})
	last, ok := db.LastFilled()
	if !ok || last.ToIndex() != 1 {
		t.Fatalf("LastFilled = (%v, %v), want (index 1, true)", last, ok)
	}
	if db.NumAccounts() != 2 {
		t.Fatalf("NumAccounts = %d, want 2", db.NumAccounts())
	}
}

func TestTokenOwnerAndTokensBookkeeping(t *testing.T) {
	db := mustNew(t, 4)
	owner := account.PublicKey{6}
	ownerID := account.NewAccountID(owner)
	custom := account.DeriveTokenID(ownerID)

	acc := account.New(ownerID, 1)
	acc.TokenID = custom
	if _, _, err := db.GetOrCreateAccount(acc.ID(), acc); err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}

	gotOwner, ok := db.TokenOwner(custom)
	if !ok || gotOwner != acc.ID() {
		t.Fatalf("TokenOwner(custom) = (%v, %v), want (%v, true)", gotOwner, ok, acc.ID())
	}
	toks := db.Tokens(owner)
	if _, ok := toks[custom]; !ok {
		t.Fatalf("Tokens(owner) missing custom token")
	}
}

func TestGetAllAndSetAllAccountsRootedAt(t *testing.T) {
	db := mustNew(t, 2) // 4 leaves
	for i := 0; i < 4; i++ {
		id := account.NewAccountID(account.PublicKey{byte(i + 20)})
		if _, _, err := db.GetOrCreateAccount(id, account.New(id, currency.Balance(i))); err != nil {
			t.Fatalf("GetOrCreateAccount: %v", err)
		}
	}
	all := db.GetAllAccountsRootedAt(address.Root)
	if len(all) != 4 {
		t.Fatalf("GetAllAccountsRootedAt(root) len = %d, want 4", len(all))
	}

	replacement := make([]account.Account, 4)
	for i := range replacement {
		id := account.NewAccountID(account.PublicKey{byte(i + 30)})
		replacement[i] = account.New(id, 999)
	}
	if err := db.SetAllAccountsRootedAt(address.Root, replacement); err != nil {
		t.Fatalf("SetAllAccountsRootedAt: %v", err)
	}
	all2 := db.GetAllAccountsRootedAt(address.Root)
	if len(all2) != 4 {
		t.Fatalf("after replace, len = %d, want 4", len(all2))
	}
	for _, acc := range all2 {
		if acc.Balance != 999 {
			t.Fatalf("replaced account balance = %d, want 999", acc.Balance)
		}
	}
}
