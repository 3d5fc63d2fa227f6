package txapply

import (
	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/failure"
	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
)

// ConstraintConstants holds the protocol constants the applier needs (spec
// §4.F): today just the fee an account-creating write burns from the amount
// it credits (original_source's constraint_constants.account_creation_fee).
type ConstraintConstants struct {
	AccountCreationFee currency.Fee
}

// ProtocolStateView is the slice of chain state the applier consults for
// expiry and timing checks (original_source's protocol_state_view, reduced
// to the one field transaction application actually reads).
type ProtocolStateView struct {
	GlobalSlotSinceGenesis uint32
}

// TransactionStatus is the outcome recorded against an applied transaction:
// Applied is false whenever any Failures entry is non-empty.
type TransactionStatus struct {
	Applied  bool
	Failures [][]failure.Failure
}

// FeeTransferSingle credits one receiver with a fee.
type FeeTransferSingle struct {
	Receiver account.AccountID
	Fee      currency.Fee
}

// FeeTransfer carries one or two fee credits bundled by the staged ledger
// (spec §4.F apply_fee_transfer); Second is nil for a single-receiver
// transfer.
type FeeTransfer struct {
	First  FeeTransferSingle
	Second *FeeTransferSingle
}

// FeeTransferApplied is the result of applying a FeeTransfer.
type FeeTransferApplied struct {
	Status       TransactionStatus
	NewAccounts  []account.AccountID
	BurnedTokens currency.Amount
}

// CoinbaseFeeTransfer is the optional secondary credit bundled into a
// coinbase (the "fee transfer via coinbase" case).
type CoinbaseFeeTransfer struct {
	Receiver account.AccountID
	Fee      currency.Fee
}

// Coinbase credits a block producer with newly minted currency, optionally
// routing a slice of it to a second receiver via FeeTransfer.
type Coinbase struct {
	Receiver    account.AccountID
	Amount      currency.Amount
	FeeTransfer *CoinbaseFeeTransfer
}

// CoinbaseApplied is the result of applying a Coinbase.
type CoinbaseApplied struct {
	Status      TransactionStatus
	NewAccounts []account.AccountID
}

// PaymentPayload moves Amount of the default token from SourcePK to
// ReceiverPK.
type PaymentPayload struct {
	SourcePK   account.PublicKey
	ReceiverPK account.PublicKey
	Amount     currency.Amount
}

// StakeDelegationPayload points Delegator's delegate at NewDelegate.
type StakeDelegationPayload struct {
	Delegator   account.PublicKey
	NewDelegate account.PublicKey
}

// SignedCommandPayloadCommon is the fee-payer envelope shared by every
// signed command (transaction_union_payload's Common).
type SignedCommandPayloadCommon struct {
	Fee         currency.Fee
	FeeToken    account.TokenID
	FeePayerPK  account.PublicKey
	Nonce       uint32
	ValidUntil  uint32
	Memo        [34]byte
}

// SignedCommandPayloadBody is exactly one of the two bodies this module
// supports; the rest of transaction_union_payload's Tag space
// (CreateAccount, MintTokens, FeeTransfer, Coinbase) names transactions this
// applier constructs directly rather than receiving as a signed command.
type SignedCommandPayloadBody struct {
	Payment    *PaymentPayload
	Delegation *StakeDelegationPayload
}

// SignedCommandPayload is the part of a signed command that is actually
// signed over.
type SignedCommandPayload struct {
	Common SignedCommandPayloadCommon
	Body   SignedCommandPayloadBody
}

// SignedCommand is a user-submitted payment or stake-delegation command.
// Signature verification happens before the command reaches this package
// (spec §1: "signature and proof verification are a black box supplied by
// the caller"); Signer records the already-verified signer identity.
type SignedCommand struct {
	Payload SignedCommandPayload
	Signer  account.PublicKey
}

// SignedCommandApplied is the result of applying a SignedCommand.
type SignedCommandApplied struct {
	Status      TransactionStatus
	NewAccounts []account.AccountID
}

// Transaction is the applier's sum type over the three kinds of transaction
// it accepts. Exactly one field must be set; ApplyTransaction rejects a
// value with zero or more than one set.
type Transaction struct {
	FeeTransfer   *FeeTransfer
	Coinbase      *Coinbase
	SignedCommand *SignedCommand
}

// TransactionApplied is the uniform result of ApplyTransaction, carrying
// whichever of the three per-kind results actually ran. PreviousHash is the
// ledger's Merkle root captured before the transaction touched it, so a
// caller replaying a block can verify it was applied against the state it
// claims to extend.
type TransactionApplied struct {
	PreviousHash  fp.Elt
	FeeTransfer   *FeeTransferApplied
	Coinbase      *CoinbaseApplied
	SignedCommand *SignedCommandApplied
}
