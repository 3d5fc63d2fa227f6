// Package fp defines the scalar field element used throughout the ledger
// core: account attributes (receipt-chain hash, voting-for, zkApp app-state
// and sequence-state slots), token ids and Merkle node hashes are all values
// of this field.
//
// The field is backed by gnark-crypto's BN254 scalar field implementation.
// Mina's own field (the Pallas/Vesta base field) is not available from any
// library in this codebase's dependency set, so this is a deliberate
// substitution: the arithmetic discipline (add, sub, mul, canonical byte
// encoding) is what the ledger core relies on, not a specific curve's
// modulus. See DESIGN.md for the rationale.
package fp

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Size is the canonical byte length of an encoded field element.
const Size = fr.Bytes

// Elt is a single field element.
type Elt struct {
	v fr.Element
}

// Zero returns the additive identity.
func Zero() Elt { return Elt{} }

// One returns the multiplicative identity.
func One() Elt {
	var e Elt
	e.v.SetOne()
	return e
}

// FromUint64 lifts a small integer into the field.
func FromUint64(x uint64) Elt {
	var e Elt
	e.v.SetUint64(x)
	return e
}

// FromBytes decodes a big-endian byte slice into a field element, reducing
// modulo the field order.
func FromBytes(b []byte) Elt {
	var e Elt
	e.v.SetBytes(b)
	return e
}

// FromBigInt lifts an arbitrary-precision integer into the field.
func FromBigInt(x *big.Int) Elt {
	var e Elt
	e.v.SetBigInt(x)
	return e
}

// Bytes returns the canonical big-endian encoding of e.
func (e Elt) Bytes() [Size]byte {
	return e.v.Bytes()
}

// Add returns a + b.
func Add(a, b Elt) Elt {
	var r Elt
	r.v.Add(&a.v, &b.v)
	return r
}

// Sub returns a - b.
func Sub(a, b Elt) Elt {
	var r Elt
	r.v.Sub(&a.v, &b.v)
	return r
}

// Mul returns a * b.
func Mul(a, b Elt) Elt {
	var r Elt
	r.v.Mul(&a.v, &b.v)
	return r
}

// Square returns a * a.
func Square(a Elt) Elt {
	var r Elt
	r.v.Square(&a.v)
	return r
}

// Equal reports whether a and b represent the same field element.
func Equal(a, b Elt) bool {
	return a.v.Equal(&b.v)
}

// IsZero reports whether e is the additive identity.
func (e Elt) IsZero() bool {
	return e.v.IsZero()
}

// String returns the decimal representation of e, for logging and test
// failure messages.
func (e Elt) String() string {
	return e.v.String()
}

// Hex returns the canonical big-endian hex encoding of e, with a leading
// "0x". This is the representation used for documented test-vector
// comparisons (see spec §8 scenario 1).
func (e Elt) Hex() string {
	b := e.Bytes()
	return fmt.Sprintf("0x%x", b[:])
}
