// Package feeexcess implements the fee-excess algebra (spec §4.E): the
// unresolved fee excess left and right of a transaction or a sequence of
// transactions, represented in at most two fee tokens.
//
// Transactions are assumed grouped by fee token, with the fee-transfer that
// dispenses a group's fees included in the group, so that the fee excess for
// each token nets to zero across a complete group. Under that assumption the
// unsettled excess of any contiguous run of transactions can always be
// represented with at most two (token, signed-fee) components: one for the
// token of the run's first transaction, one for its last. Rebalance folds
// this representation to its canonical form; Combine threads the excesses of
// two consecutive runs together, ported line-for-line from fee_excess.ml's
// eliminate_fee_excess/combine (see original_source/ledger/src/scan_state/fee_excess.rs).
package feeexcess

import (
	"fmt"

	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/ledger/account"
)

// Single is one side of a fee excess: a signed fee denominated in a token.
type Single struct {
	Token  account.TokenID
	Amount currency.Signed[currency.Fee]
}

// T is a two-sided fee excess (fee_token_l/fee_excess_l, fee_token_r/fee_excess_r).
type T struct {
	Left  Single
	Right Single
}

// Zero is the canonical empty fee excess.
func Zero() T {
	z := Single{Token: account.DefaultTokenID}
	return T{Left: z, Right: z}
}

// Single1 builds a one-sided fee excess for a single transaction's fee,
// already in canonical form.
func Single1(token account.TokenID, amount currency.Signed[currency.Fee]) T {
	return Rebalance(T{
		Left:  Single{Token: token, Amount: amount},
		Right: Single{Token: account.DefaultTokenID},
	})
}

func addChecked(x, y currency.Signed[currency.Fee]) currency.Signed[currency.Fee] {
	sum, overflow := currency.AddSigned(x, y)
	if overflow {
		panic("feeexcess: overflow adding fees")
	}
	return sum
}

// Rebalance folds fe to canonical form (spec P9):
//   - if there is only one nonzero excess, it sits on the Left
//   - any zero excess carries the default token
//   - if both sides name the same token, their excesses are combined
func Rebalance(fe T) T {
	leftToken := fe.Left.Token
	if fe.Left.Amount.IsZero() {
		leftToken = fe.Right.Token
	}
	leftAmt, rightAmt := fe.Left.Amount, fe.Right.Amount
	rightToken := fe.Right.Token

	if leftToken == rightToken {
		leftAmt = addChecked(leftAmt, rightAmt)
		rightAmt = currency.Signed[currency.Fee]{}
	}

	if leftAmt.IsZero() {
		leftToken = account.DefaultTokenID
	}
	if rightAmt.IsZero() {
		rightToken = account.DefaultTokenID
	}
	return T{
		Left:  Single{Token: leftToken, Amount: leftAmt},
		Right: Single{Token: rightToken, Amount: rightAmt},
	}
}

// eliminate folds the middle excess m into whichever of l or r shares its
// token (or whichever of l, r is already zero), or confirms m is itself
// zero and can be dropped outright. It panics if m is nonzero and shares no
// token with either neighbor -- an unrecoverable inconsistency, matching the
// source's behavior.
func eliminate(l, m, r Single) (Single, Single) {
	switch {
	case l.Token == m.Token || l.Amount.IsZero():
		return Single{Token: m.Token, Amount: addChecked(l.Amount, m.Amount)}, r
	case r.Token == m.Token || r.Amount.IsZero():
		return l, Single{Token: m.Token, Amount: addChecked(r.Amount, m.Amount)}
	case m.Amount.IsZero():
		return l, r
	default:
		panic(fmt.Sprintf("feeexcess: excess for token %s was nonzero: %+v", m.Token.Hex(), m.Amount))
	}
}

// Combine threads the fee excesses of two consecutive transitions together:
// a happened before b. [a.Left; a.Right; b.Left; b.Right] is folded down to
// two slots by eliminating the two interior excesses in turn, then
// rebalanced to canonical form.
func Combine(a, b T) T {
	// [1l; 1r; 2l; 2r] -> [1l; 2l; 2r]
	l1, l2 := eliminate(a.Left, a.Right, b.Left)
	// [1l; 2l; 2r] -> [1l; 2r]
	finalL, finalR := eliminate(l1, l2, b.Right)
	return Rebalance(T{Left: finalL, Right: finalR})
}
