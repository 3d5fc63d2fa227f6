// Package currency implements the ledger's unsigned 64-bit magnitudes (Fee,
// Amount, Balance) and the signed-magnitude type used to accumulate fee
// excesses and zkApp balance changes (spec §4.D).
//
// Checked arithmetic widens through uint256.Int (mirroring the teacher's use
// of holiman/uint256 for wide balance arithmetic in its EVM state package)
// so that overflow of the 64-bit result is detected before truncating back
// down, rather than relying on wraparound comparison tricks.
package currency

import (
	"github.com/holiman/uint256"
)

// FlaggedAddU64 returns a+b and reports whether the unsigned 64-bit result
// overflowed.
func FlaggedAddU64(a, b uint64) (uint64, bool) {
	var x, y, z uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	if z.AddOverflow(&x, &y) {
		return 0, true
	}
	if !z.IsUint64() {
		return 0, true
	}
	return z.Uint64(), false
}

// FlaggedSubU64 returns a-b and reports whether the unsigned 64-bit result
// underflowed.
func FlaggedSubU64(a, b uint64) (uint64, bool) {
	var x, y, z uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	if z.SubOverflow(&x, &y) {
		return 0, true
	}
	return z.Uint64(), false
}

// Fee is a transaction fee, denominated like Amount and Balance.
type Fee uint64

// Amount is a transfer magnitude.
type Amount uint64

// Balance is an account's magnitude of currency held.
type Balance uint64

// CheckedAdd returns f+g, or (0, false) on overflow.
func (f Fee) CheckedAdd(g Fee) (Fee, bool) {
	v, overflow := FlaggedAddU64(uint64(f), uint64(g))
	if overflow {
		return 0, false
	}
	return Fee(v), true
}

// CheckedSub returns f-g, or (0, false) on underflow.
func (f Fee) CheckedSub(g Fee) (Fee, bool) {
	v, overflow := FlaggedSubU64(uint64(f), uint64(g))
	if overflow {
		return 0, false
	}
	return Fee(v), true
}

// ToAmount converts a fee to an amount. This conversion is lossless: both
// are plain 64-bit magnitudes (spec: "Amount::of_fee(fee) is lossless").
func (f Fee) ToAmount() Amount { return Amount(f) }

// CheckedAdd returns a+b, or (0, false) on overflow.
func (a Amount) CheckedAdd(b Amount) (Amount, bool) {
	v, overflow := FlaggedAddU64(uint64(a), uint64(b))
	if overflow {
		return 0, false
	}
	return Amount(v), true
}

// CheckedSub returns a-b, or (0, false) on underflow.
func (a Amount) CheckedSub(b Amount) (Amount, bool) {
	v, overflow := FlaggedSubU64(uint64(a), uint64(b))
	if overflow {
		return 0, false
	}
	return Amount(v), true
}

// CheckedAdd returns b+c, or (0, false) on overflow.
func (b Balance) CheckedAdd(c Balance) (Balance, bool) {
	v, overflow := FlaggedAddU64(uint64(b), uint64(c))
	if overflow {
		return 0, false
	}
	return Balance(v), true
}

// CheckedSub returns b-c, or (0, false) on underflow.
func (b Balance) CheckedSub(c Balance) (Balance, bool) {
	v, overflow := FlaggedSubU64(uint64(b), uint64(c))
	if overflow {
		return 0, false
	}
	return Balance(v), true
}

// AddAmount returns b+amt as a Balance, or (0, false) on overflow. This is
// the "Balance ± Amount convenience wrapper" from spec §4.D.
func (b Balance) AddAmount(amt Amount) (Balance, bool) {
	v, overflow := FlaggedAddU64(uint64(b), uint64(amt))
	if overflow {
		return 0, false
	}
	return Balance(v), true
}

// SubAmount returns b-amt as a Balance, or (0, false) on underflow.
func (b Balance) SubAmount(amt Amount) (Balance, bool) {
	v, overflow := FlaggedSubU64(uint64(b), uint64(amt))
	if overflow {
		return 0, false
	}
	return Balance(v), true
}
