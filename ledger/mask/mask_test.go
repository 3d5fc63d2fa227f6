package mask

import (
	"testing"
	"time"

	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/address"
	"github.com/mina-ledger/ledger-core/ledger/capability"
	"github.com/mina-ledger/ledger-core/ledger/database"
)

func newAttached(t *testing.T, depth int) (*database.Database, *Mask) {
	t.Helper()
	db, err := database.New(depth)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	m, err := New(depth)
	if err != nil {
		t.Fatalf("mask.New: %v", err)
	}
	m.SetParent(db)
	return db, m
}

func TestUnattachedMaskPanics(t *testing.T) {
	m, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling Get on an unattached mask")
		}
	}()
	m.Get(address.Root)
}

func TestDoubleSetParentPanics(t *testing.T) {
	_, m := newAttached(t, 4)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on second SetParent")
		}
	}()
	db2, _ := database.New(4)
	m.SetParent(db2)
}

func TestReadFallThroughToParent(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{1})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 10))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	acc, ok := m.Get(addr)
	if !ok || acc.Balance != 10 {
		t.Fatalf("mask should read through to parent, got (%v, %v)", acc, ok)
	}
}

func TestMaskRootMatchesParentWhenEmpty(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{1})
	if _, _, err := db.GetOrCreateAccount(id, account.New(id, 10)); err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	if m.MerkleRoot() != db.MerkleRoot() {
		t.Fatalf("empty mask's root should equal its parent's root")
	}
}

func TestMaskWriteDoesNotAffectParent(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{2})
	addr, _, err := m.GetOrCreateAccount(id, account.New(id, 20))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	if _, ok := db.Get(addr); ok {
		t.Fatalf("parent should not see mask-local writes before commit")
	}
	acc, ok := m.Get(addr)
	if !ok || acc.Balance != 20 {
		t.Fatalf("mask should see its own local write")
	}
	if m.MerkleRoot() == db.MerkleRoot() {
		t.Fatalf("mask root should diverge from parent after a local write")
	}
}

func TestCommitMergesIntoParentAndResetsMask(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{3})
	addr, _, err := m.GetOrCreateAccount(id, account.New(id, 30))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	rootBeforeCommit := m.MerkleRoot()

	m.Commit()

	acc, ok := db.Get(addr)
	if !ok || acc.Balance != 30 {
		t.Fatalf("parent should see the committed account")
	}
	if db.MerkleRoot() != rootBeforeCommit {
		t.Fatalf("parent root after commit should equal mask root before commit")
	}
	if m.MerkleRoot() != db.MerkleRoot() {
		t.Fatalf("freshly committed mask should once again mirror its parent")
	}
}

func TestParentWriteAfterAttachIsVisibleThroughMask(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{4})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 40))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	root1 := m.MerkleRoot()

	db.Set(addr, account.New(id, 41))
	root2 := m.MerkleRoot()
	if root1 == root2 {
		t.Fatalf("mask root should change after a parent write to an untouched leaf")
	}
	if root2 != db.MerkleRoot() {
		t.Fatalf("mask and parent roots should match when the mask has no local writes of its own")
	}
}

func TestParentWriteNotificationDoesNotCorruptMaskWithLocalSibling(t *testing.T) {
	db, m := newAttached(t, 2) // 4 leaves
	idA := account.NewAccountID(account.PublicKey{5})
	idB := account.NewAccountID(account.PublicKey{6})

	addrA, _, err := db.GetOrCreateAccount(idA, account.New(idA, 1))
	if err != nil {
		t.Fatalf("GetOrCreateAccount A: %v", err)
	}
	addrB, _, err := m.GetOrCreateAccount(idB, account.New(idB, 2))
	if err != nil {
		t.Fatalf("GetOrCreateAccount B: %v", err)
	}
	_ = addrB

	db.Set(addrA, account.New(idA, 99))

	gotA, ok := m.Get(addrA)
	if !ok || gotA.Balance != 99 {
		t.Fatalf("mask should observe the fresh parent write for an untouched leaf, got %+v", gotA)
	}
	gotB, ok := m.Get(addrB)
	if !ok || gotB.Balance != 2 {
		t.Fatalf("mask's own local write must survive a sibling parent write, got %+v", gotB)
	}
}

func TestRemoveAccountsOnMaskTombstonesEvenWithParentValue(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{7})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 50))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	m.RemoveAccounts([]account.AccountID{id})

	if _, ok := m.Get(addr); ok {
		t.Fatalf("mask should report the account absent after local removal")
	}
	if _, ok := db.Get(addr); !ok {
		t.Fatalf("parent should still have the account before commit")
	}
	if _, ok := m.LocationOfAccount(id); ok {
		t.Fatalf("mask should not resolve a locally removed id's location")
	}
}

func TestStackedMasksCommitInOrder(t *testing.T) {
	db, bottom := newAttached(t, 4)
	top, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	top.SetParent(bottom)

	id := account.NewAccountID(account.PublicKey{8})
	addr, _, err := top.GetOrCreateAccount(id, account.New(id, 77))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}
	if _, ok := bottom.Get(addr); ok {
		t.Fatalf("bottom mask should not see top mask's writes before commit")
	}

	top.Commit()
	if acc, ok := bottom.Get(addr); !ok || acc.Balance != 77 {
		t.Fatalf("bottom mask should see top's writes after commit")
	}

	bottom.Commit()
	if acc, ok := db.Get(addr); !ok || acc.Balance != 77 {
		t.Fatalf("root database should see the fully-committed chain")
	}
}

func TestCommitOfStackedMaskDoesNotDeadlock(t *testing.T) {
	// A mask committing into a parent is also registered as one of that
	// parent's children; without ignoring its own notification during
	// commit, the parent's broadcast loops back into this same mask and
	// double-locks it. Run in a goroutine with a timeout so a regression
	// fails the test instead of hanging the suite forever.
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{9})
	addr, _, err := m.GetOrCreateAccount(id, account.New(id, 55))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.Commit()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Commit() deadlocked")
	}

	acc, ok := db.Get(addr)
	if !ok || acc.Balance != 55 {
		t.Fatalf("parent should see the committed account, got (%+v, %v)", acc, ok)
	}
}

func TestOnParentWritePrunesMatchingShadow(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{10})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 5))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}

	// Mask shadows addr with the exact value the parent is about to write.
	m.Set(addr, account.New(id, 7))
	db.Set(addr, account.New(id, 7))

	acc, ok := m.Get(addr)
	if !ok || acc.Balance != 7 {
		t.Fatalf("mask should still read 7 immediately after the matching parent write, got (%+v, %v)", acc, ok)
	}

	// The shadow should now have been dropped: a further parent write must
	// be visible through the mask again, which would not happen if the
	// mask were still shadowing the old value.
	db.Set(addr, account.New(id, 9))
	acc, ok = m.Get(addr)
	if !ok || acc.Balance != 9 {
		t.Fatalf("mask should fall through to the new parent write after its matching shadow was pruned, got (%+v, %v)", acc, ok)
	}
	if m.MerkleRoot() != db.MerkleRoot() {
		t.Fatalf("mask and parent roots should match once the mask holds no more local diff")
	}
}

func TestOnParentWriteKeepsDivergingShadow(t *testing.T) {
	db, m := newAttached(t, 4)
	id := account.NewAccountID(account.PublicKey{11})
	addr, _, err := db.GetOrCreateAccount(id, account.New(id, 1))
	if err != nil {
		t.Fatalf("GetOrCreateAccount: %v", err)
	}

	m.Set(addr, account.New(id, 100))
	db.Set(addr, account.New(id, 2))

	acc, ok := m.Get(addr)
	if !ok || acc.Balance != 100 {
		t.Fatalf("mask's own differing shadow must survive an unrelated parent write, got (%+v, %v)", acc, ok)
	}
}

var _ capability.Ledger = (*Mask)(nil)
