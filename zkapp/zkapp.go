// Package zkapp implements the zkApp execution loop (spec §4.G, component
// G): the step-by-step state machine that applies a zkApp command's forest
// of account updates, one update at a time, against a local mask cloned
// from the global ledger, committing the whole command atomically only if
// every step succeeds.
//
// Grounded on original_source/ledger/src/scan_state/zkapp_logic.rs: the
// commitment/full_commitment split (commitment over the call forest,
// full_commitment folding in the fee payer and memo), controller_check's
// "assert proof and signature never both verify" (reused directly via
// account.ControllerCheck, which carries the same panic), and the
// per-update field list apply_account_update walks. Where that source
// threads proof-system witnesses this module has no use for (SNARK
// circuit variables, the party-by-party zkapp_command::Call_forest
// encoding), the Go shape here keeps only the state-machine semantics:
// the forest walk, the precondition/permission/timing checks, and the
// local/global fee-excess settlement.
package zkapp

import (
	"fmt"

	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/failure"
	"github.com/mina-ledger/ledger-core/feeexcess"
	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/capability"
	"github.com/mina-ledger/ledger-core/ledger/mask"
	"github.com/mina-ledger/ledger-core/ledger/merkle"
	"github.com/mina-ledger/ledger-core/txapply"
)

// TransactionStatus is shared with the transaction applier: Applied is
// false whenever any per-update entry in Failures is non-empty.
type TransactionStatus = txapply.TransactionStatus

// CommandApplied is the result of ApplyZkAppCommand, shaped like
// txapply.TransactionApplied's per-kind results (spec §6): the ledger's
// root before the command touched it, plus a status carrying one failure
// list per account update processed (and, if the command's local fee
// excess failed to net to zero, one trailing entry for that).
type CommandApplied struct {
	PreviousHash fp.Elt
	Status       TransactionStatus
}

func incrementNonceChecked(n uint32) (uint32, error) {
	if n == ^uint32(0) {
		return 0, fmt.Errorf("zkapp: nonce overflow")
	}
	return n + 1, nil
}

func applyBalanceChange(balance currency.Balance, delta currency.Signed[currency.Amount]) (currency.Balance, bool) {
	if delta.Positive {
		return balance.AddAmount(delta.Magnitude)
	}
	return balance.SubAmount(delta.Magnitude)
}

func anySet(slots []account.SetOrKeep[fp.Elt]) bool {
	for _, s := range slots {
		if s.IsSet() {
			return true
		}
	}
	return false
}

// hashForest folds a command's top-level call forest into one field
// element for the "commitment" half of the replay-protection hash (spec
// §4.G step 1; zkapp_logic.rs's commitment). ConsReceiptChainHash is reused
// here purely as a generic "fold field elements into one domain-separated
// digest" primitive, not as a receipt-chain extension.
func hashForest(calls []AccountUpdate) fp.Elt {
	elems := make([]fp.Elt, 0, len(calls)*3)
	for _, u := range calls {
		elems = append(elems, fp.FromBytes(u.PublicKey[:]), u.Caller, fp.FromUint64(uint64(u.BalanceChange.Magnitude)))
	}
	return merkle.ConsReceiptChainHash(elems, fp.Zero())
}

func sequenceEventsHash(events []fp.Elt) fp.Elt {
	return merkle.ConsReceiptChainHash(events, fp.Zero())
}

func checkAccountPrecondition(p AccountPrecondition, acc account.Account) (failure.Failure, bool) {
	if p.Nonce != nil && *p.Nonce != acc.Nonce {
		return failure.AccountNonceIncorrect, true
	}
	if p.BalanceMin != nil && acc.Balance < *p.BalanceMin {
		return failure.InvalidAccountPrecondition, true
	}
	if p.BalanceMax != nil && acc.Balance > *p.BalanceMax {
		return failure.InvalidAccountPrecondition, true
	}
	if p.ReceiptChainHash != nil && !fp.Equal(*p.ReceiptChainHash, acc.ReceiptChainHash) {
		return failure.InvalidAccountPrecondition, true
	}
	if p.Delegate != nil && (acc.Delegate == nil || *acc.Delegate != *p.Delegate) {
		return failure.InvalidAccountPrecondition, true
	}
	for i, want := range p.AppState {
		if want == nil {
			continue
		}
		if acc.ZkApp == nil || !fp.Equal(*want, acc.ZkApp.AppState[i]) {
			return failure.InvalidAccountPrecondition, true
		}
	}
	return "", false
}

func checkProtocolPrecondition(p ProtocolStatePrecondition, view ProtocolStateView) (failure.Failure, bool) {
	if p.GlobalSlotMin != nil && view.GlobalSlotSinceGenesis < *p.GlobalSlotMin {
		return failure.InvalidProtocolStatePrecondition, true
	}
	if p.GlobalSlotMax != nil && view.GlobalSlotSinceGenesis > *p.GlobalSlotMax {
		return failure.InvalidProtocolStatePrecondition, true
	}
	return "", false
}

// StartCommand begins handling cmd (spec §4.G step 1): it rejects an
// expired command outright, clones a fresh mask atop the global ledger,
// resolves and debits the fee payer in that mask (exact-match nonce; the
// debit is committed or discarded together with the rest of the command),
// and builds the initial call-stack frame from cmd.Calls under the default
// token.
func StartCommand(cc ConstraintConstants, global *GlobalState, cmd Command) (*LocalState, error) {
	if err := txapply.ValidateTime(cmd.FeePayer.ValidUntil, global.ProtocolStateView.GlobalSlotSinceGenesis); err != nil {
		return nil, err
	}

	m, err := mask.New(global.Ledger.Depth())
	if err != nil {
		return nil, err
	}
	m.SetParent(global.Ledger)

	feePayerID := account.NewAccountID(cmd.FeePayer.PublicKey)
	addr, existed := m.LocationOfAccount(feePayerID)
	if !existed {
		return nil, fmt.Errorf("zkapp: fee payer account does not exist")
	}
	acc, _ := m.Get(addr)

	feeAmount := cmd.FeePayer.Fee.ToAmount()
	newBalance, ok := acc.Balance.SubAmount(feeAmount)
	if !ok {
		return nil, fmt.Errorf("zkapp: fee payer cannot cover the fee")
	}
	if err := txapply.ValidateNonces(cmd.FeePayer.Nonce, acc.Nonce); err != nil {
		return nil, err
	}
	nextNonce, err := incrementNonceChecked(acc.Nonce)
	if err != nil {
		return nil, err
	}
	acc.Balance = newBalance
	acc.Nonce = nextNonce
	m.Set(addr, acc)

	forestCommitment := hashForest(cmd.Calls)
	fullCommitment := merkle.ConsReceiptChainHash([]fp.Elt{forestCommitment, fp.FromBytes(cmd.Memo[:])}, fp.Zero())

	return &LocalState{
		Ledger:                    m,
		current:                   frame{forest: cmd.Calls, caller: account.DefaultTokenID, callerCaller: account.DefaultTokenID},
		stackFrameCommitment:      forestCommitment,
		fullTransactionCommitment: fullCommitment,
		LocalFeeExcess:            currency.PositiveOf(feeAmount),
		Success:                   true,
	}, nil
}

// popNextUpdate returns the next account update in forest pre-order,
// suspending the current frame on the call stack and descending into a
// child's sub-forest as needed, or ok=false once both the current frame and
// the call stack are exhausted (spec §4.G step 2).
func (ls *LocalState) popNextUpdate() (AccountUpdate, bool) {
	for {
		if len(ls.current.forest) > 0 {
			u := ls.current.forest[0]
			ls.current.forest = ls.current.forest[1:]
			return u, true
		}
		if len(ls.callStack) == 0 {
			return AccountUpdate{}, false
		}
		ls.current = ls.callStack[len(ls.callStack)-1]
		ls.callStack = ls.callStack[:len(ls.callStack)-1]
	}
}

// Step processes exactly one account update, or -- once the forest and call
// stack are both exhausted -- settles the command's local fee excess into
// the global excess and commits or discards the local mask. It returns
// done=true once the command has fully finished.
func Step(cc ConstraintConstants, global *GlobalState, ls *LocalState) (bool, error) {
	update, ok := ls.popNextUpdate()
	if !ok {
		return true, ls.finalize(global)
	}

	frameCaller, frameCallerCaller := ls.current.caller, ls.current.callerCaller

	var stepFailures []failure.Failure
	isNormal := update.Caller == frameCaller
	isDelegateCall := !isNormal && update.Caller == frameCallerCaller
	if !isNormal && !isDelegateCall {
		stepFailures = append(stepFailures, failure.TokenOwnerNotCaller)
	}

	// Step 2 (continued): descend into the update's own sub-calls, pushing
	// the remainder of the current frame first if it still has siblings
	// left to process. A normal call's children get a fresh token namespace
	// derived from this update's own account id; a delegate call's (or a
	// mismatched call's, since there is no more specific rule to apply)
	// children stay in the same namespace as their parent.
	if len(update.Calls) > 0 {
		if len(ls.current.forest) > 0 {
			ls.callStack = append(ls.callStack, ls.current)
		}
		newCaller, newCallerCaller := frameCaller, frameCallerCaller
		if isNormal {
			id := account.AccountID{PublicKey: update.PublicKey, TokenID: update.Caller}
			newCaller = account.DeriveTokenID(id)
			newCallerCaller = frameCaller
		}
		ls.current = frame{forest: update.Calls, caller: newCaller, callerCaller: newCallerCaller}
	}

	id := account.AccountID{PublicKey: update.PublicKey, TokenID: update.Caller}
	status, acc, addr, err := txapply.GetOrCreate(ls.Ledger, id)
	if err != nil {
		return false, err
	}
	accountIsNew := status == capability.Added

	if reason, bad := checkAccountPrecondition(update.AccountPrecondition, acc); bad {
		stepFailures = append(stepFailures, reason)
	}
	if reason, bad := checkProtocolPrecondition(update.ProtocolPrecondition, global.ProtocolStateView); bad {
		stepFailures = append(stepFailures, reason)
	}

	// Step 6: replay protection. The fee payer is handled outside this
	// forest entirely (StartCommand), so "is this update the fee payer"
	// is always false here and the source's third disjunct collapses to
	// just UseFullCommitment.
	nonceConstrained := update.AccountPrecondition.Nonce != nil
	replayOK := (update.IncrementNonce && nonceConstrained) || update.UseFullCommitment || !update.Authorization.SignatureVerifies
	if !replayOK {
		stepFailures = append(stepFailures, failure.ZkappCommandReplayCheckFailed)
	}

	// Step 7: balance change, account-creation-fee burn from the local
	// excess, and the permission check gating whether it actually lands.
	newBalance, balanceOK := applyBalanceChange(acc.Balance, update.BalanceChange)
	if !balanceOK {
		stepFailures = append(stepFailures, failure.Overflow)
		newBalance = acc.Balance
	} else if accountIsNew {
		burn := currency.NegativeOf(cc.AccountCreationFee.ToAmount())
		if updated, overflow := currency.AddSigned(ls.LocalFeeExcess, burn); !overflow {
			ls.LocalFeeExcess = updated
		} else {
			stepFailures = append(stepFailures, failure.AmountInsufficientToCreateAccount)
		}
	}
	if !update.BalanceChange.IsZero() {
		perm := acc.Permissions.Send
		if update.BalanceChange.Positive {
			perm = acc.Permissions.Receive
		}
		if account.ControllerCheck(perm, update.Authorization) {
			acc.Balance = newBalance
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedBalance)
		}
	}

	// Step 8: timing re-check at the already-applied balance, no further
	// debit (txn_amount = 0 in the source).
	if acc.Timing.IsTimed {
		minBalance := acc.Timing.MinBalanceAtSlot(global.ProtocolStateView.GlobalSlotSinceGenesis)
		if acc.Balance < minBalance {
			stepFailures = append(stepFailures, failure.SourceMinimumBalanceViolation)
		} else if minBalance == 0 {
			acc.Timing = account.Untimed
		}
	}

	// Step 9: the rest of the field list, each gated by its own permission
	// controller. EnsureZkApp attaches the extension up front if any
	// zkApp-only field is about to be touched.
	needsZkApp := anySet(update.AppState[:]) || update.VerificationKey.IsSet() || len(update.SequenceEvents) > 0 ||
		update.ZkAppURI.IsSet() || update.TokenSymbol.IsSet()
	if needsZkApp {
		acc = acc.EnsureZkApp()
	}

	if anySet(update.AppState[:]) {
		if account.ControllerCheck(acc.Permissions.EditState, update.Authorization) {
			oldProved := acc.ZkApp.ProvedState
			allKept, allSet := true, true
			for _, s := range update.AppState {
				if s.IsSet() {
					allKept = false
				} else {
					allSet = false
				}
			}
			for i := range update.AppState {
				acc.ZkApp.AppState[i] = update.AppState[i].Apply(acc.ZkApp.AppState[i])
			}
			acc.ZkApp.ProvedState = (oldProved && allKept) || (update.Authorization.ProofVerifies && allSet)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedAppState)
		}
	}

	if update.VerificationKey.IsSet() {
		if account.ControllerCheck(acc.Permissions.SetVerificationKey, update.Authorization) {
			vk := update.VerificationKey.Apply(acc.ZkApp.VerificationKey)
			acc.ZkApp.VerificationKey = vk
			acc.ZkApp.VerificationKeyHash = fp.FromBytes(vk)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedVerificationKey)
		}
	}

	if len(update.SequenceEvents) > 0 {
		if account.ControllerCheck(acc.Permissions.EditSequenceState, update.Authorization) {
			acc.ZkApp.RotateSequenceState(sequenceEventsHash(update.SequenceEvents), global.ProtocolStateView.GlobalSlotSinceGenesis)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedSequenceState)
		}
	}

	if update.ZkAppURI.IsSet() {
		if account.ControllerCheck(acc.Permissions.SetZkappURI, update.Authorization) {
			acc.ZkApp.ZkAppURI = update.ZkAppURI.Apply(acc.ZkApp.ZkAppURI)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedZkappURI)
		}
	}

	if update.TokenSymbol.IsSet() {
		if account.ControllerCheck(acc.Permissions.SetTokenSymbol, update.Authorization) {
			acc.ZkApp.TokenSymbol = update.TokenSymbol.Apply(acc.ZkApp.TokenSymbol)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedTokenSymbol)
		}
	}

	if update.Delegate.IsSet() {
		switch {
		case !account.IsDefault(update.Caller):
			stepFailures = append(stepFailures, failure.MismatchedTokenPermissions)
		case !account.ControllerCheck(acc.Permissions.SetDelegate, update.Authorization):
			stepFailures = append(stepFailures, failure.UpdateNotPermittedDelegate)
		default:
			acc.Delegate = update.Delegate.Apply(acc.Delegate)
		}
	}

	if update.Permissions.IsSet() {
		if account.ControllerCheck(acc.Permissions.SetPermissions, update.Authorization) {
			acc.Permissions = update.Permissions.Apply(acc.Permissions)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedPermissions)
		}
	}

	if update.VotingFor.IsSet() {
		if account.ControllerCheck(acc.Permissions.SetVotingFor, update.Authorization) {
			acc.VotingFor = update.VotingFor.Apply(acc.VotingFor)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedVotingFor)
		}
	}

	if update.Timing.IsSet() {
		if account.ControllerCheck(acc.Permissions.SetTiming, update.Authorization) {
			acc.Timing = update.Timing.Apply(acc.Timing)
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedTiming)
		}
	}

	// Step 11: nonce increment.
	if update.IncrementNonce {
		if account.ControllerCheck(acc.Permissions.IncrementNonce, update.Authorization) {
			if next, err := incrementNonceChecked(acc.Nonce); err == nil {
				acc.Nonce = next
			} else {
				stepFailures = append(stepFailures, failure.Overflow)
			}
		} else {
			stepFailures = append(stepFailures, failure.UpdateNotPermittedNonce)
		}
	}

	// Step 12: receipt-chain extension, only for a signed update.
	if update.Authorization.SignatureVerifies {
		acc.ReceiptChainHash = merkle.ConsReceiptChainHash(
			[]fp.Elt{ls.fullTransactionCommitment, fp.FromUint64(uint64(ls.Index))},
			acc.ReceiptChainHash,
		)
	}

	// Step 13: normalize the zkApp extension back off if this update left
	// it indistinguishable from the default.
	acc = acc.NormalizeZkApp()

	// Step 14: write back, regardless of this step's own failures -- only
	// the final commit/discard decision (step 16) is all-or-nothing.
	ls.Ledger.Set(addr, acc)
	ls.FailureStatusTbl = append(ls.FailureStatusTbl, stepFailures)
	if len(stepFailures) > 0 {
		ls.Success = false
	}

	// Step 15: fold this update's balance change into the running local
	// excess.
	if updated, overflow := currency.AddSigned(ls.LocalFeeExcess, update.BalanceChange.Negate()); !overflow {
		ls.LocalFeeExcess = updated
	} else {
		idx := len(ls.FailureStatusTbl) - 1
		ls.FailureStatusTbl[idx] = append(ls.FailureStatusTbl[idx], failure.LocalExcessOverflow)
		ls.Success = false
	}

	ls.Index++
	return false, nil
}

// finalize settles the command once its forest is exhausted: the local
// excess must have netted to zero, after which it folds into the global
// excess; the local mask commits into the global ledger only if every step
// (and the settlement itself) succeeded, otherwise it is simply discarded.
func (ls *LocalState) finalize(global *GlobalState) error {
	if !ls.LocalFeeExcess.IsZero() {
		ls.FailureStatusTbl = append(ls.FailureStatusTbl, []failure.Failure{failure.InvalidFeeExcess})
		ls.Success = false
	} else {
		localAsFee := currency.Signed[currency.Fee]{Magnitude: currency.Fee(ls.LocalFeeExcess.Magnitude), Positive: ls.LocalFeeExcess.Positive}
		global.FeeExcess = feeexcess.Combine(global.FeeExcess, feeexcess.Single1(account.DefaultTokenID, localAsFee))
	}

	if updated, overflow := currency.AddSigned(global.SupplyIncrease, ls.SupplyIncrease); !overflow {
		global.SupplyIncrease = updated
	}

	if ls.Success {
		ls.Ledger.Commit()
	}
	return nil
}

// ApplyZkAppCommand drives a command through StartCommand and repeated
// Step calls to completion (spec §4.G apply), returning the uniform result
// shape spec §6 expects of every transaction variant.
func ApplyZkAppCommand(cc ConstraintConstants, global *GlobalState, cmd Command) (CommandApplied, error) {
	previousHash := global.Ledger.MerkleRoot()

	ls, err := StartCommand(cc, global, cmd)
	if err != nil {
		return CommandApplied{}, err
	}
	for {
		done, err := Step(cc, global, ls)
		if err != nil {
			return CommandApplied{}, err
		}
		if done {
			break
		}
	}

	return CommandApplied{
		PreviousHash: previousHash,
		Status: TransactionStatus{
			Applied:  ls.Success,
			Failures: ls.FailureStatusTbl,
		},
	}, nil
}
