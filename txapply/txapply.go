// Package txapply implements the transaction application engine (spec §4.F,
// component F): the pure, one-transaction-at-a-time state transition that
// fee transfers, coinbases, and signed commands (payments and stake
// delegations) apply against a capability.Ledger.
//
// Grounded on original_source/ledger/src/scan_state/transaction_logic.rs's
// apply_fee_transfer/process_fee_transfer (ported closely: same one/two
// receiver aggregation, same-receiver fee-summing, and
// has_permission_to_receive gating) and pay_fee/pay_fee_impl (fee-payer
// resolution, nonce and timing validation, receipt-chain extension). That
// source leaves signed-command body application and coinbase application as
// `todo!()`; the payment, stake-delegation, and coinbase logic below is
// this module's own completion of that gap, built from the same helpers
// (validate_timing, sub_account_creation_fee, has_permission_to_receive)
// the source uses for the parts it does implement.
package txapply

import (
	"fmt"

	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/failure"
	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/address"
	"github.com/mina-ledger/ledger-core/ledger/capability"
	"github.com/mina-ledger/ledger-core/ledger/merkle"
)

// ValidateTime rejects a command whose valid_until has already passed (spec
// §4.F, transaction_logic.rs's apply_user_command_unchecked expiry check).
// Unlike the soft per-field failures below, an expired command is rejected
// outright: it never reaches the ledger at all, matching the source
// treating this as a hard Result::Err rather than a TransactionFailure.
func ValidateTime(validUntil, currentGlobalSlot uint32) error {
	if currentGlobalSlot <= validUntil {
		return nil
	}
	return fmt.Errorf("txapply: current global slot %d is past the command's valid_until %d", currentGlobalSlot, validUntil)
}

// ValidateNonces requires an exact match between the nonce a command expects
// and the account's actual nonce (transaction_logic.rs's validate_nonces).
func ValidateNonces(txnNonce, accountNonce uint32) error {
	if txnNonce != accountNonce {
		return fmt.Errorf("txapply: nonce mismatch: account is at %d, command expects %d", accountNonce, txnNonce)
	}
	return nil
}

// ValidateTimingWithMinBalance re-derives an account's timing after a
// txnAmount debit at globalSlot, along with the minimum balance that applied
// (transaction_logic.rs's validate_timing_with_min_balance_impl): an untimed
// account only needs the debit itself to not underflow; a timed account's
// post-debit balance must not fall below its current vesting floor, and the
// account becomes Untimed once that floor reaches zero.
func ValidateTimingWithMinBalance(acc account.Account, txnAmount currency.Amount, globalSlot uint32) (account.Timing, currency.Balance, error) {
	if !acc.Timing.IsTimed {
		if _, ok := acc.Balance.SubAmount(txnAmount); !ok {
			return account.Untimed, 0, fmt.Errorf("txapply: balance %d is insufficient for a debit of %d", acc.Balance, txnAmount)
		}
		return account.Untimed, 0, nil
	}

	proposedBalance, ok := acc.Balance.SubAmount(txnAmount)
	if !ok {
		return account.Timing{}, acc.Timing.InitialMinimumBalance, fmt.Errorf("txapply: balance %d is insufficient for a debit of %d", acc.Balance, txnAmount)
	}
	minBalance := acc.Timing.MinBalanceAtSlot(globalSlot)
	if proposedBalance < minBalance {
		return account.Timing{}, minBalance, fmt.Errorf("txapply: debit of %d would put balance below the minimum balance of %d", txnAmount, minBalance)
	}
	if minBalance == 0 {
		return account.Untimed, 0, nil
	}
	return acc.Timing, minBalance, nil
}

// ValidateTiming is ValidateTimingWithMinBalance without the minimum-balance
// value a caller has no use for.
func ValidateTiming(acc account.Account, txnAmount currency.Amount, globalSlot uint32) (account.Timing, error) {
	timing, _, err := ValidateTimingWithMinBalance(acc, txnAmount, globalSlot)
	return timing, err
}

// SubAmount is Balance.SubAmount with an error instead of an ok flag.
func SubAmount(balance currency.Balance, amount currency.Amount) (currency.Balance, error) {
	b, ok := balance.SubAmount(amount)
	if !ok {
		return 0, fmt.Errorf("txapply: insufficient funds: balance %d, debit %d", balance, amount)
	}
	return b, nil
}

// AddAmount is Balance.AddAmount with an error instead of an ok flag.
func AddAmount(balance currency.Balance, amount currency.Amount) (currency.Balance, error) {
	b, ok := balance.AddAmount(amount)
	if !ok {
		return 0, fmt.Errorf("txapply: overflow: balance %d, credit %d", balance, amount)
	}
	return b, nil
}

func incrementNonceChecked(n uint32) (uint32, error) {
	if n == ^uint32(0) {
		return 0, fmt.Errorf("txapply: nonce overflow")
	}
	return n + 1, nil
}

// SubAccountCreationFee burns the account creation fee out of amount when
// status reports that the write just created a new account, matching
// transaction_logic.rs's sub_account_creation_fee.
func SubAccountCreationFee(cc ConstraintConstants, status capability.CreateStatus, amount currency.Amount) (currency.Amount, error) {
	if status != capability.Added {
		return amount, nil
	}
	fee := cc.AccountCreationFee.ToAmount()
	out, ok := amount.CheckedSub(fee)
	if !ok {
		return 0, fmt.Errorf("txapply: amount %d is insufficient to cover the account creation fee %d", amount, fee)
	}
	return out, nil
}

// GetWithLocation resolves id to its address and current account value, the
// Go shape of transaction_logic.rs's get_with_location for the "must already
// exist" call sites (pay_fee, payment/delegation sources).
func GetWithLocation(ledger capability.Ledger, id account.AccountID) (address.Address, bool, account.Account) {
	addr, ok := ledger.LocationOfAccount(id)
	if !ok {
		return address.Address{}, false, account.Account{}
	}
	acc, ok := ledger.Get(addr)
	if !ok {
		panic("txapply: ledger has a location for an id but no account there")
	}
	return addr, true, acc
}

// GetOrCreate resolves id to its address and account, appending a freshly
// initialized account if id is unseen (transaction_logic.rs's
// get_or_create / Account::initialize).
func GetOrCreate(ledger capability.Ledger, id account.AccountID) (capability.CreateStatus, account.Account, address.Address, error) {
	addr, status, err := ledger.GetOrCreateAccount(id, account.New(id, 0))
	if err != nil {
		return 0, account.Account{}, address.Address{}, err
	}
	acc, ok := ledger.Get(addr)
	if !ok {
		panic("txapply: get_or_create: account not found in ledger immediately after creation")
	}
	return status, acc, addr, nil
}

// HasPermissionToReceive resolves id's current (or, if absent, freshly
// initialized) account and reports whether it may receive a protocol-issued
// credit: fee transfers and coinbases carry no signature or proof, so the
// check is against an empty VerificationKind (transaction_logic.rs's
// has_permission_to_receive).
func HasPermissionToReceive(ledger capability.Ledger, id account.AccountID) (account.Account, capability.CreateStatus, bool) {
	addr, ok := ledger.LocationOfAccount(id)
	if !ok {
		init := account.New(id, 0)
		return init, capability.Added, account.ControllerCheck(init.Permissions.Receive, account.VerificationKind{})
	}
	acc, ok := ledger.Get(addr)
	if !ok {
		panic("txapply: ledger has a location for an id but no account there")
	}
	return acc, capability.Existed, account.ControllerCheck(acc.Permissions.Receive, account.VerificationKind{})
}

// processFeeTransfer applies one or two fee credits, aggregating same-token
// fees for a shared receiver and keeping each receiver's soft failure (an
// unreceivable fee burns rather than blocking the transaction) independent
// of the other's, exactly as transaction_logic.rs's process_fee_transfer
// does for its One/Two cases.
func processFeeTransfer(cc ConstraintConstants, slot uint32, ledger capability.Ledger, ft FeeTransfer) ([]account.AccountID, [][]failure.Failure, currency.Amount, error) {
	if ft.Second == nil {
		acc, status, canReceive := HasPermissionToReceive(ledger, ft.First.Receiver)
		timing, err := ValidateTiming(acc, currency.Amount(0), slot)
		if err != nil {
			return nil, nil, 0, err
		}
		amt, err := SubAccountCreationFee(cc, status, ft.First.Fee.ToAmount())
		if err != nil {
			return nil, nil, 0, err
		}
		newBalance, err := AddAmount(acc.Balance, amt)
		if err != nil {
			return nil, nil, 0, err
		}
		if !canReceive {
			return nil, [][]failure.Failure{{failure.UpdateNotPermittedBalance}}, ft.First.Fee.ToAmount(), nil
		}
		_, newAcc, addr, err := GetOrCreate(ledger, ft.First.Receiver)
		if err != nil {
			return nil, nil, 0, err
		}
		newAcc.Balance = newBalance
		newAcc.Timing = timing
		ledger.Set(addr, newAcc)
		var newAccounts []account.AccountID
		if status == capability.Added {
			newAccounts = []account.AccountID{ft.First.Receiver}
		}
		return newAccounts, [][]failure.Failure{{}}, 0, nil
	}

	second := *ft.Second
	if ft.First.Receiver == second.Receiver {
		fee, ok := ft.First.Fee.CheckedAdd(second.Fee)
		if !ok {
			return nil, nil, 0, fmt.Errorf("txapply: overflow summing same-receiver fee transfer amounts")
		}
		acc, status, canReceive := HasPermissionToReceive(ledger, ft.First.Receiver)
		timing, err := ValidateTiming(acc, currency.Amount(0), slot)
		if err != nil {
			return nil, nil, 0, err
		}
		amt, err := SubAccountCreationFee(cc, status, fee.ToAmount())
		if err != nil {
			return nil, nil, 0, err
		}
		newBalance, err := AddAmount(acc.Balance, amt)
		if err != nil {
			return nil, nil, 0, err
		}
		if !canReceive {
			return nil, [][]failure.Failure{{failure.UpdateNotPermittedBalance}, {failure.UpdateNotPermittedBalance}}, fee.ToAmount(), nil
		}
		_, newAcc, addr, err := GetOrCreate(ledger, ft.First.Receiver)
		if err != nil {
			return nil, nil, 0, err
		}
		newAcc.Balance = newBalance
		newAcc.Timing = timing
		ledger.Set(addr, newAcc)
		var newAccounts []account.AccountID
		if status == capability.Added {
			newAccounts = []account.AccountID{ft.First.Receiver}
		}
		return newAccounts, [][]failure.Failure{{}, {}}, 0, nil
	}

	acc1, status1, canReceive1 := HasPermissionToReceive(ledger, ft.First.Receiver)
	amt1, err := SubAccountCreationFee(cc, status1, ft.First.Fee.ToAmount())
	if err != nil {
		return nil, nil, 0, err
	}
	balance1, err := AddAmount(acc1.Balance, amt1)
	if err != nil {
		return nil, nil, 0, err
	}

	acc2, status2, canReceive2 := HasPermissionToReceive(ledger, second.Receiver)
	timing2, err := ValidateTiming(acc2, currency.Amount(0), slot)
	if err != nil {
		return nil, nil, 0, err
	}
	amt2, err := SubAccountCreationFee(cc, status2, second.Fee.ToAmount())
	if err != nil {
		return nil, nil, 0, err
	}
	balance2, err := AddAmount(acc2.Balance, amt2)
	if err != nil {
		return nil, nil, 0, err
	}

	var newAccounts []account.AccountID
	var failures1, failures2 []failure.Failure
	var burned1, burned2 currency.Amount

	if canReceive1 {
		_, newAcc1, addr1, err := GetOrCreate(ledger, ft.First.Receiver)
		if err != nil {
			return nil, nil, 0, err
		}
		if status1 == capability.Added {
			newAccounts = append(newAccounts, ft.First.Receiver)
		}
		newAcc1.Balance = balance1
		// Deliberately not re-applying timing to acc1 here, matching the
		// source: only the combined-fee and single-receiver cases update
		// timing, since a distinct-receiver split never revisits acc1 again.
		ledger.Set(addr1, newAcc1)
	} else {
		failures1 = []failure.Failure{failure.UpdateNotPermittedBalance}
		burned1 = ft.First.Fee.ToAmount()
	}

	if canReceive2 {
		_, newAcc2, addr2, err := GetOrCreate(ledger, second.Receiver)
		if err != nil {
			return nil, nil, 0, err
		}
		if status2 == capability.Added {
			newAccounts = append(newAccounts, second.Receiver)
		}
		newAcc2.Balance = balance2
		newAcc2.Timing = timing2
		ledger.Set(addr2, newAcc2)
	} else {
		failures2 = []failure.Failure{failure.UpdateNotPermittedBalance}
		burned2 = second.Fee.ToAmount()
	}

	burned, ok := burned1.CheckedAdd(burned2)
	if !ok {
		return nil, nil, 0, fmt.Errorf("txapply: overflow summing burned fee-transfer tokens")
	}
	return newAccounts, [][]failure.Failure{failures1, failures2}, burned, nil
}

// ApplyFeeTransfer credits a FeeTransfer's one or two receivers.
func ApplyFeeTransfer(cc ConstraintConstants, slot uint32, ledger capability.Ledger, ft FeeTransfer) (FeeTransferApplied, error) {
	newAccounts, failures, burned, err := processFeeTransfer(cc, slot, ledger, ft)
	if err != nil {
		return FeeTransferApplied{}, err
	}
	return FeeTransferApplied{
		Status:       TransactionStatus{Applied: allEmpty(failures), Failures: failures},
		NewAccounts:  newAccounts,
		BurnedTokens: burned,
	}, nil
}

// ApplyCoinbase credits a block producer and, if present, routes a share of
// the reward to a second receiver, using the same has_permission_to_receive/
// sub_account_creation_fee gating as ApplyFeeTransfer (coinbases carry no
// witness either, so the same "accept protocol-issued credits with no proof
// or signature" rule applies).
func ApplyCoinbase(cc ConstraintConstants, slot uint32, ledger capability.Ledger, cb Coinbase) (CoinbaseApplied, error) {
	var newAccounts []account.AccountID
	var failures []failure.Failure

	acc, status, canReceive := HasPermissionToReceive(ledger, cb.Receiver)
	timing, err := ValidateTiming(acc, currency.Amount(0), slot)
	if err != nil {
		return CoinbaseApplied{}, err
	}
	amt, err := SubAccountCreationFee(cc, status, cb.Amount)
	if err != nil {
		return CoinbaseApplied{}, err
	}
	newBalance, err := AddAmount(acc.Balance, amt)
	if err != nil {
		return CoinbaseApplied{}, err
	}
	if canReceive {
		_, newAcc, addr, err := GetOrCreate(ledger, cb.Receiver)
		if err != nil {
			return CoinbaseApplied{}, err
		}
		if status == capability.Added {
			newAccounts = append(newAccounts, cb.Receiver)
		}
		newAcc.Balance = newBalance
		newAcc.Timing = timing
		ledger.Set(addr, newAcc)
	} else {
		failures = append(failures, failure.UpdateNotPermittedBalance)
	}

	if cb.FeeTransfer != nil {
		ft := *cb.FeeTransfer
		ftAcc, ftStatus, ftCanReceive := HasPermissionToReceive(ledger, ft.Receiver)
		ftAmt, err := SubAccountCreationFee(cc, ftStatus, ft.Fee.ToAmount())
		if err != nil {
			return CoinbaseApplied{}, err
		}
		ftBalance, err := AddAmount(ftAcc.Balance, ftAmt)
		if err != nil {
			return CoinbaseApplied{}, err
		}
		if ftCanReceive {
			_, newFtAcc, addr, err := GetOrCreate(ledger, ft.Receiver)
			if err != nil {
				return CoinbaseApplied{}, err
			}
			if ftStatus == capability.Added {
				newAccounts = append(newAccounts, ft.Receiver)
			}
			newFtAcc.Balance = ftBalance
			ledger.Set(addr, newFtAcc)
		} else {
			failures = append(failures, failure.UpdateNotPermittedBalance)
		}
	}

	return CoinbaseApplied{
		Status:      TransactionStatus{Applied: len(failures) == 0, Failures: [][]failure.Failure{failures}},
		NewAccounts: newAccounts,
	}, nil
}

// payFeeWithLedger resolves, validates, and updates a signed command's fee
// payer: the signer must be the fee payer, the fee token must be the
// default token, the fee payer account must already exist, its nonce must
// match, the fee debit must respect its timing schedule, and its nonce and
// receipt-chain hash both advance (transaction_logic.rs's pay_fee/
// pay_fee_impl). The returned account is not yet written back: the caller
// writes it once the command's body has also been resolved.
func payFeeWithLedger(ledger capability.Ledger, cmd SignedCommand, slot uint32) (address.Address, account.Account, error) {
	feePayerID := account.NewAccountID(cmd.Payload.Common.FeePayerPK)
	if cmd.Signer != cmd.Payload.Common.FeePayerPK {
		return address.Address{}, account.Account{}, fmt.Errorf("txapply: the fee payer must be the signer")
	}
	if !account.IsDefault(cmd.Payload.Common.FeeToken) {
		return address.Address{}, account.Account{}, fmt.Errorf("txapply: the fee must be paid in the default token")
	}

	addr, existed, acc := GetWithLocation(ledger, feePayerID)
	if !existed {
		return address.Address{}, account.Account{}, fmt.Errorf("txapply: fee payer account does not exist")
	}

	feeAmount := cmd.Payload.Common.Fee.ToAmount()
	newBalance, err := SubAmount(acc.Balance, feeAmount)
	if err != nil {
		return address.Address{}, account.Account{}, fmt.Errorf("txapply: fee payer cannot cover the fee: %w", err)
	}
	if err := ValidateNonces(cmd.Payload.Common.Nonce, acc.Nonce); err != nil {
		return address.Address{}, account.Account{}, err
	}
	timing, err := ValidateTiming(acc, feeAmount, slot)
	if err != nil {
		return address.Address{}, account.Account{}, err
	}
	nextNonce, err := incrementNonceChecked(acc.Nonce)
	if err != nil {
		return address.Address{}, account.Account{}, err
	}

	acc.Balance = newBalance
	acc.Nonce = nextNonce
	acc.Timing = timing
	acc.ReceiptChainHash = consSignedCommandPayload(cmd.Payload, acc.ReceiptChainHash)
	return addr, acc, nil
}

// applyPaymentBody moves p.Amount from its source to its receiver, reusing
// the fee payer's already-updated account and address directly when the
// source is the fee payer itself (the common case of an ordinary payment).
func applyPaymentBody(cc ConstraintConstants, ledger capability.Ledger, feeAddr address.Address, feePayerAcc account.Account, p PaymentPayload) ([]account.AccountID, []failure.Failure, []capability.AddrAccount, error) {
	sourceID := account.NewAccountID(p.SourcePK)
	receiverID := account.NewAccountID(p.ReceiverPK)

	var sourceAddr address.Address
	var sourceAcc account.Account
	if sourceID == feePayerAcc.ID() {
		sourceAddr, sourceAcc = feeAddr, feePayerAcc
	} else {
		var existed bool
		sourceAddr, existed, sourceAcc = GetWithLocation(ledger, sourceID)
		if !existed {
			return nil, []failure.Failure{failure.SourceNotPresent}, nil, nil
		}
	}

	if !account.ControllerCheck(sourceAcc.Permissions.Send, account.VerificationKind{SignatureVerifies: true}) {
		return nil, []failure.Failure{failure.UpdateNotPermittedBalance}, nil, nil
	}

	// Paying yourself nets to a zero balance change; short-circuit before
	// the receiver lookup, which would otherwise observe the source's
	// pre-debit balance and silently undo the debit on write-back.
	if sourceID == receiverID {
		if _, ok := sourceAcc.Balance.SubAmount(p.Amount); !ok {
			return nil, []failure.Failure{failure.SourceInsufficientBalance}, nil, nil
		}
		return nil, nil, []capability.AddrAccount{{Addr: sourceAddr, Account: sourceAcc}}, nil
	}

	newSourceBalance, ok := sourceAcc.Balance.SubAmount(p.Amount)
	if !ok {
		return nil, []failure.Failure{failure.SourceInsufficientBalance}, nil, nil
	}

	receiverAddr, status, err := ledger.GetOrCreateAccount(receiverID, account.New(receiverID, 0))
	if err != nil {
		return nil, nil, nil, err
	}
	receiverAcc, found := ledger.Get(receiverAddr)
	if !found {
		panic("txapply: get_or_create: account not found in ledger immediately after creation")
	}

	creditAmount, caErr := SubAccountCreationFee(cc, status, p.Amount)
	if caErr != nil {
		return nil, []failure.Failure{failure.AmountInsufficientToCreateAccount}, nil, nil
	}
	if !account.ControllerCheck(receiverAcc.Permissions.Receive, account.VerificationKind{SignatureVerifies: true}) {
		return nil, []failure.Failure{failure.UpdateNotPermittedBalance}, nil, nil
	}
	newReceiverBalance, err := AddAmount(receiverAcc.Balance, creditAmount)
	if err != nil {
		return nil, []failure.Failure{failure.Overflow}, nil, nil
	}

	sourceAcc.Balance = newSourceBalance
	receiverAcc.Balance = newReceiverBalance

	var newAccounts []account.AccountID
	if status == capability.Added {
		newAccounts = []account.AccountID{receiverID}
	}
	return newAccounts, nil, []capability.AddrAccount{
		{Addr: sourceAddr, Account: sourceAcc},
		{Addr: receiverAddr, Account: receiverAcc},
	}, nil
}

// applyDelegationBody points d.Delegator's delegate at d.NewDelegate.
func applyDelegationBody(ledger capability.Ledger, feeAddr address.Address, feePayerAcc account.Account, d StakeDelegationPayload) ([]account.AccountID, []failure.Failure, []capability.AddrAccount, error) {
	delegatorID := account.NewAccountID(d.Delegator)

	var addr address.Address
	var acc account.Account
	if delegatorID == feePayerAcc.ID() {
		addr, acc = feeAddr, feePayerAcc
	} else {
		var existed bool
		addr, existed, acc = GetWithLocation(ledger, delegatorID)
		if !existed {
			return nil, []failure.Failure{failure.SourceNotPresent}, nil, nil
		}
	}

	if !account.ControllerCheck(acc.Permissions.SetDelegate, account.VerificationKind{SignatureVerifies: true}) {
		return nil, []failure.Failure{failure.UpdateNotPermittedDelegate}, nil, nil
	}

	newDelegate := d.NewDelegate
	acc.Delegate = &newDelegate
	return nil, nil, []capability.AddrAccount{{Addr: addr, Account: acc}}, nil
}

// ApplySignedCommand applies a payment or stake-delegation command: the fee
// payer's debit, nonce bump, and receipt-chain extension always commit; the
// command's body commits only if it produced no failures (a failed body
// still costs its sender the fee, matching Mina's "fee is always collected"
// rule).
func ApplySignedCommand(cc ConstraintConstants, view ProtocolStateView, ledger capability.Ledger, cmd SignedCommand) (SignedCommandApplied, error) {
	if err := ValidateTime(cmd.Payload.Common.ValidUntil, view.GlobalSlotSinceGenesis); err != nil {
		return SignedCommandApplied{}, err
	}

	feeAddr, feePayerAcc, err := payFeeWithLedger(ledger, cmd, view.GlobalSlotSinceGenesis)
	if err != nil {
		return SignedCommandApplied{}, err
	}

	var newAccounts []account.AccountID
	var failures []failure.Failure
	var writes []capability.AddrAccount

	switch {
	case cmd.Payload.Body.Payment != nil:
		newAccounts, failures, writes, err = applyPaymentBody(cc, ledger, feeAddr, feePayerAcc, *cmd.Payload.Body.Payment)
	case cmd.Payload.Body.Delegation != nil:
		newAccounts, failures, writes, err = applyDelegationBody(ledger, feeAddr, feePayerAcc, *cmd.Payload.Body.Delegation)
	default:
		err = fmt.Errorf("txapply: signed command payload has neither a payment nor a delegation body")
	}
	if err != nil {
		return SignedCommandApplied{}, err
	}

	ledger.Set(feeAddr, feePayerAcc)
	applied := len(failures) == 0
	if applied {
		for _, w := range writes {
			ledger.Set(w.Addr, w.Account)
		}
	} else {
		newAccounts = nil
	}

	return SignedCommandApplied{
		Status:      TransactionStatus{Applied: applied, Failures: [][]failure.Failure{failures}},
		NewAccounts: newAccounts,
	}, nil
}

// ApplyTransaction dispatches txn to whichever of ApplyFeeTransfer,
// ApplyCoinbase, or ApplySignedCommand matches its one populated field
// (spec §4.F apply_transaction).
func ApplyTransaction(cc ConstraintConstants, view ProtocolStateView, ledger capability.Ledger, txn Transaction) (TransactionApplied, error) {
	set := 0
	if txn.FeeTransfer != nil {
		set++
	}
	if txn.Coinbase != nil {
		set++
	}
	if txn.SignedCommand != nil {
		set++
	}
	if set != 1 {
		return TransactionApplied{}, fmt.Errorf("txapply: a transaction must set exactly one of FeeTransfer, Coinbase, SignedCommand, got %d", set)
	}

	previousHash := ledger.MerkleRoot()

	switch {
	case txn.FeeTransfer != nil:
		applied, err := ApplyFeeTransfer(cc, view.GlobalSlotSinceGenesis, ledger, *txn.FeeTransfer)
		if err != nil {
			return TransactionApplied{}, err
		}
		return TransactionApplied{PreviousHash: previousHash, FeeTransfer: &applied}, nil
	case txn.Coinbase != nil:
		applied, err := ApplyCoinbase(cc, view.GlobalSlotSinceGenesis, ledger, *txn.Coinbase)
		if err != nil {
			return TransactionApplied{}, err
		}
		return TransactionApplied{PreviousHash: previousHash, Coinbase: &applied}, nil
	default:
		applied, err := ApplySignedCommand(cc, view, ledger, *txn.SignedCommand)
		if err != nil {
			return TransactionApplied{}, err
		}
		return TransactionApplied{PreviousHash: previousHash, SignedCommand: &applied}, nil
	}
}

// buildPayloadElements packs a signed command payload's fields into the
// ordered sequence ConsReceiptChainHash hashes, following transaction_union_
// payload.to_input_legacy's field order (common envelope, then a body tag
// and the body's own fields).
func buildPayloadElements(p SignedCommandPayload) []fp.Elt {
	elems := []fp.Elt{
		fp.FromUint64(uint64(p.Common.Fee)),
		p.Common.FeeToken,
		fp.FromBytes(p.Common.FeePayerPK[:]),
		fp.FromUint64(uint64(p.Common.Nonce)),
		fp.FromUint64(uint64(p.Common.ValidUntil)),
		fp.FromBytes(p.Common.Memo[:]),
	}
	switch {
	case p.Body.Payment != nil:
		elems = append(elems,
			fp.FromUint64(0), // Tag: Payment
			fp.FromBytes(p.Body.Payment.SourcePK[:]),
			fp.FromBytes(p.Body.Payment.ReceiverPK[:]),
			account.DefaultTokenID,
			fp.FromUint64(uint64(p.Body.Payment.Amount)),
			fp.Zero(),
		)
	case p.Body.Delegation != nil:
		elems = append(elems,
			fp.FromUint64(1), // Tag: StakeDelegation
			fp.FromBytes(p.Body.Delegation.Delegator[:]),
			fp.FromBytes(p.Body.Delegation.NewDelegate[:]),
			account.DefaultTokenID,
			fp.Zero(),
			fp.Zero(),
		)
	}
	return elems
}

func consSignedCommandPayload(p SignedCommandPayload, prior fp.Elt) fp.Elt {
	return merkle.ConsReceiptChainHash(buildPayloadElements(p), prior)
}

func allEmpty(failures [][]failure.Failure) bool {
	for _, f := range failures {
		if len(f) > 0 {
			return false
		}
	}
	return true
}
