package merkle

import (
	"testing"

	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
)

func TestHashNodeDeterministic(t *testing.T) {
	a := fp.FromUint64(1)
	b := fp.FromUint64(2)
	h1 := HashNode(3, a, b)
	h2 := HashNode(3, a, b)
	if !fp.Equal(h1, h2) {
		t.Fatalf("HashNode is not deterministic")
	}
}

func TestHashNodeDomainSeparatedByHeight(t *testing.T) {
	a := fp.FromUint64(1)
	b := fp.FromUint64(2)
	if fp.Equal(HashNode(1, a, b), HashNode(2, a, b)) {
		t.Fatalf("HashNode should be domain-separated by height")
	}
}

func TestHashNodeOrderSensitive(t *testing.T) {
	a := fp.FromUint64(1)
	b := fp.FromUint64(2)
	if fp.Equal(HashNode(1, a, b), HashNode(1, b, a)) {
		t.Fatalf("HashNode(h,a,b) should differ from HashNode(h,b,a)")
	}
}

func TestHashLeafDeterministic(t *testing.T) {
	acc := account.New(account.NewAccountID(account.PublicKey{7}), 100)
	if !fp.Equal(HashLeaf(acc), HashLeaf(acc)) {
		t.Fatalf("HashLeaf is not deterministic")
	}
}

func TestHashLeafSensitiveToBalance(t *testing.T) {
	id := account.NewAccountID(account.PublicKey{7})
	a := account.New(id, 100)
	b := account.New(id, 101)
	if fp.Equal(HashLeaf(a), HashLeaf(b)) {
		t.Fatalf("accounts with different balances must hash differently")
	}
}

func TestEmptyHashesTableConsistentWithHashNode(t *testing.T) {
	e := NewEmptyHashes(10)
	for k := 1; k <= 10; k++ {
		want := HashNode(k, e.At(k-1), e.At(k-1))
		if !fp.Equal(e.At(k), want) {
			t.Fatalf("empty hash at height %d inconsistent with HashNode", k)
		}
	}
}

func TestEmptyHashAtZeroIsEmptyAccountLeaf(t *testing.T) {
	e := NewEmptyHashes(4)
	if !fp.Equal(e.At(0), HashLeaf(account.Empty)) {
		t.Fatalf("empty_hash_at_depth(0) must equal hash of the empty account")
	}
}
