package account

import (
	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/fp"
)

// Account is the ledger's primary record (spec §3).
type Account struct {
	PublicKey        PublicKey
	TokenID          TokenID
	Balance          currency.Balance
	Nonce            uint32
	ReceiptChainHash fp.Elt
	Delegate         *PublicKey // nil means "no delegate"
	Timing           Timing
	Permissions      Permissions
	VotingFor        fp.Elt
	ZkApp            *ZkApp // nil means "not a zkApp account"
}

// Empty is the canonical empty account occupying a vacant leaf. Its hash is
// empty_hash_at_depth(0) (spec §4.A).
var Empty = Account{}

// ID returns the account's identifier.
func (a Account) ID() AccountID {
	return AccountID{PublicKey: a.PublicKey, TokenID: a.TokenID}
}

// New constructs a freshly created account for id with the given initial
// balance, default timing (untimed) and default permissions.
func New(id AccountID, balance currency.Balance) Account {
	return Account{
		PublicKey:   id.PublicKey,
		TokenID:     id.TokenID,
		Balance:     balance,
		Permissions: DefaultPermissions(),
	}
}

// HasZkApp reports whether the account carries a zkApp extension.
func (a Account) HasZkApp() bool {
	return a.ZkApp != nil
}

// EnsureZkApp returns a copy of a with a zkApp extension attached, creating
// a default one if absent (spec §4.G step 13).
func (a Account) EnsureZkApp() Account {
	if a.ZkApp != nil {
		return a
	}
	z := DefaultZkApp()
	a.ZkApp = &z
	return a
}

// NormalizeZkApp detaches a's zkApp extension if it is present but equal to
// the default (spec §4.G step 13).
func (a Account) NormalizeZkApp() Account {
	if a.ZkApp != nil && a.ZkApp.IsDefault() {
		a.ZkApp = nil
	}
	return a
}

// Clone returns a deep copy of the account, since Delegate and ZkApp are
// pointers that must not alias between the original and the copy (mask and
// zkApp local-state cloning both rely on this).
func (a Account) Clone() Account {
	out := a
	if a.Delegate != nil {
		d := *a.Delegate
		out.Delegate = &d
	}
	if a.ZkApp != nil {
		z := *a.ZkApp
		out.ZkApp = &z
	}
	return out
}

// Equal reports whether a and b are the same account value, used by mask
// parent-notify pruning (spec M3) to decide whether a child's shadow has
// diverged from its parent's freshly written value.
func (a Account) Equal(b Account) bool {
	if a.PublicKey != b.PublicKey || !fp.Equal(a.TokenID, b.TokenID) {
		return false
	}
	if a.Balance != b.Balance || a.Nonce != b.Nonce {
		return false
	}
	if !fp.Equal(a.ReceiptChainHash, b.ReceiptChainHash) || !fp.Equal(a.VotingFor, b.VotingFor) {
		return false
	}
	if !delegateEqual(a.Delegate, b.Delegate) {
		return false
	}
	if a.Timing != b.Timing {
		return false
	}
	if a.Permissions != b.Permissions {
		return false
	}
	return zkAppEqual(a.ZkApp, b.ZkApp)
}

func delegateEqual(a, b *PublicKey) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}

func zkAppEqual(a, b *ZkApp) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	if a.LastSequenceSlot != b.LastSequenceSlot || a.ProvedState != b.ProvedState {
		return false
	}
	if a.ZkAppURI != b.ZkAppURI || a.TokenSymbol != b.TokenSymbol {
		return false
	}
	if string(a.VerificationKey) != string(b.VerificationKey) {
		return false
	}
	for i := range a.AppState {
		if !fp.Equal(a.AppState[i], b.AppState[i]) {
			return false
		}
	}
	for i := range a.SequenceState {
		if !fp.Equal(a.SequenceState[i], b.SequenceState[i]) {
			return false
		}
	}
	return true
}
