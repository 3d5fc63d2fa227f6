package account

import "github.com/mina-ledger/ledger-core/currency"

// Timing describes an account's vesting schedule (spec §3, §4.F).
type Timing struct {
	IsTimed bool

	// The fields below are meaningful only when IsTimed is true.
	InitialMinimumBalance currency.Balance
	CliffTime             uint32 // global slot
	CliffAmount           currency.Amount
	VestingPeriod         uint32 // must be > 0 for an active timed account
	VestingIncrement      currency.Amount
}

// Untimed is the zero-value, unrestricted timing schedule.
var Untimed = Timing{}

// MinBalanceAtSlot computes the minimum balance the account must retain at
// global slot s, per spec §4.F "validate_timing_with_min_balance" step 2:
//
//   - s < cliff_time              -> initial_minimum_balance
//   - vesting_period == 0         -> 0 (fully vested at cliff)
//   - otherwise                   -> max(0, initial_minimum_balance -
//     cliff_amount - vesting_decrement)
//
// where vesting_decrement = num_periods * vesting_increment, saturating, and
// num_periods = (s - cliff_time) / vesting_period.
func (t Timing) MinBalanceAtSlot(s uint32) currency.Balance {
	if !t.IsTimed {
		return 0
	}
	if s < t.CliffTime {
		return t.InitialMinimumBalance
	}
	if t.VestingPeriod == 0 {
		return 0
	}
	numPeriods := uint64(s-t.CliffTime) / uint64(t.VestingPeriod)
	decrement := saturatingMulAmount(numPeriods, t.VestingIncrement)

	floor, ok := t.InitialMinimumBalance.SubAmount(t.CliffAmount)
	if !ok {
		return 0
	}
	result, ok := floor.SubAmount(decrement)
	if !ok {
		return 0
	}
	return result
}

// saturatingMulAmount computes periods*increment, saturating at the maximum
// representable Amount instead of overflowing.
func saturatingMulAmount(periods uint64, increment currency.Amount) currency.Amount {
	if periods == 0 || increment == 0 {
		return 0
	}
	const maxAmount = ^currency.Amount(0)
	if uint64(maxAmount)/periods < uint64(increment) {
		return maxAmount
	}
	return currency.Amount(periods * uint64(increment))
}

// IsFullyVested reports whether the minimum balance at slot s has reached
// zero, meaning the account should transition to Untimed (spec §4.F step 4).
func (t Timing) IsFullyVested(s uint32) bool {
	return !t.IsTimed || t.MinBalanceAtSlot(s) == 0
}
