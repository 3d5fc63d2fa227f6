// Package account defines the ledger's data model (spec §3): accounts,
// account identifiers, token identifiers, permissions, timing, and the
// optional zkApp extension.
package account

import "github.com/mina-ledger/ledger-core/fp"

// PublicKeyLength is the width of the compressed public-key representation
// carried by an account. Signature and proof verification are treated as a
// black box supplied by the caller (spec §1), so this package only needs a
// comparable, fixed-size identity for a key, not its curve structure.
const PublicKeyLength = 32

// PublicKey is a compressed public key.
type PublicKey [PublicKeyLength]byte

// TokenID identifies a currency. It is a field element; DefaultTokenID is
// the distinguished constant naming the base MINA token.
type TokenID = fp.Elt

// DefaultTokenID is the distinguished default token id (field element 1,
// matching original_source's Token_id.default).
var DefaultTokenID = fp.One()

// IsDefault reports whether t is the default token.
func IsDefault(t TokenID) bool {
	return fp.Equal(t, DefaultTokenID)
}

// AccountID is the (public_key, token_id) pair that uniquely identifies an
// account within a ledger.
type AccountID struct {
	PublicKey PublicKey
	TokenID   TokenID
}

// NewAccountID builds an AccountID for the default token.
func NewAccountID(pk PublicKey) AccountID {
	return AccountID{PublicKey: pk, TokenID: DefaultTokenID}
}

// WithToken builds an AccountID for a specific token.
func WithToken(pk PublicKey, token TokenID) AccountID {
	return AccountID{PublicKey: pk, TokenID: token}
}

// DeriveTokenID derives the token id owned by an account, used when a zkApp
// account update makes a normal call: the callee's token namespace is
// scoped under the caller's account id (spec §4.G step 2). Delegate calls
// do not derive a new token id.
//
// This mirrors a custom token's owning-account derivation in the original
// Mina implementation: it hashes the owning account id's public key and
// token id together into a new field element, domain separated from leaf
// and node hashing so token ids can never collide with tree hashes.
func DeriveTokenID(owner AccountID) TokenID {
	h := fp.FromBytes(owner.PublicKey[:])
	mixed := fp.Add(fp.Mul(h, fp.FromUint64(0x546f6b656e)), owner.TokenID) // "Token" tag
	return mixed
}
