package zkapp

import (
	"github.com/mina-ledger/ledger-core/currency"
	"github.com/mina-ledger/ledger-core/failure"
	"github.com/mina-ledger/ledger-core/feeexcess"
	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
	"github.com/mina-ledger/ledger-core/ledger/capability"
	"github.com/mina-ledger/ledger-core/ledger/mask"
	"github.com/mina-ledger/ledger-core/txapply"
)

// ConstraintConstants and ProtocolStateView are shared with the transaction
// applier (spec §6): a zkApp command reads the same constraint constants and
// consults the same slice of protocol state.
type ConstraintConstants = txapply.ConstraintConstants
type ProtocolStateView = txapply.ProtocolStateView

// AccountPrecondition constrains which account states an update is allowed
// to run against (spec §4.G step 4). A nil field means "ignore"; a non-nil
// field requires an exact match against the loaded account.
type AccountPrecondition struct {
	Nonce            *uint32
	BalanceMin       *currency.Balance
	BalanceMax       *currency.Balance
	ReceiptChainHash *fp.Elt
	Delegate         *account.PublicKey
	AppState         [account.AppStateSlots]*fp.Elt
}

// ProtocolStatePrecondition constrains the chain state an update may run
// against (spec §4.G step 4), reduced to the one field the applier's
// ProtocolStateView actually carries.
type ProtocolStatePrecondition struct {
	GlobalSlotMin *uint32
	GlobalSlotMax *uint32
}

// AccountUpdate is one node of a zkApp command's call forest (spec §4.G,
// GLOSSARY "account update"). Caller names the token namespace this
// update's own account lives in; a normal call's children execute under
// account.DeriveTokenID of this update's own account id, a delegate call's
// children execute under the same namespace as the frame that produced this
// update (spec §4.G step 2).
type AccountUpdate struct {
	PublicKey account.PublicKey
	Caller    account.TokenID

	Authorization      account.VerificationKind
	UseFullCommitment  bool
	IncrementNonce     bool

	AccountPrecondition  AccountPrecondition
	ProtocolPrecondition ProtocolStatePrecondition

	BalanceChange currency.Signed[currency.Amount]

	AppState            [account.AppStateSlots]account.SetOrKeep[fp.Elt]
	VerificationKey     account.SetOrKeep[[]byte]
	SequenceEvents      []fp.Elt
	ZkAppURI            account.SetOrKeep[string]
	TokenSymbol         account.SetOrKeep[string]
	Delegate            account.SetOrKeep[*account.PublicKey]
	Permissions         account.SetOrKeep[account.Permissions]
	VotingFor           account.SetOrKeep[fp.Elt]
	Timing              account.SetOrKeep[account.Timing]

	Calls []AccountUpdate
}

// FeePayer is the command's fee-paying account update: unlike the updates in
// Calls it always runs under the default token, is always first, and is
// never optional (spec §4.G step 1 "start handling").
type FeePayer struct {
	PublicKey  account.PublicKey
	Fee        currency.Fee
	Nonce      uint32
	ValidUntil uint32
}

// Command is a complete zkApp command: a fee payer plus a forest of account
// updates (spec §4.G, GLOSSARY "zkApp command").
type Command struct {
	FeePayer FeePayer
	Calls    []AccountUpdate
	Memo     [34]byte
}

// frame is one suspended or current level of the call forest: the sibling
// updates still to process at this level, and the token namespaces a popped
// update's own Caller is checked against to decide whether it is a normal or
// delegate call (spec §4.G step 2).
type frame struct {
	forest       []AccountUpdate
	caller       account.TokenID
	callerCaller account.TokenID
}

// LocalState is the zkApp loop's working state for one command in flight: a
// mask cloned from the global ledger, the suspended call-stack, and the
// running accounting fields settled at the end of the command (spec §4.G
// step 1, GLOSSARY "local state").
type LocalState struct {
	Ledger *mask.Mask

	current   frame
	callStack []frame

	stackFrameCommitment      fp.Elt
	fullTransactionCommitment fp.Elt

	LocalFeeExcess currency.Signed[currency.Amount]
	SupplyIncrease currency.Signed[currency.Amount]

	Index            int
	Success          bool
	FailureStatusTbl [][]failure.Failure
}

// GlobalState is the state threaded across an entire sequence of zkApp
// commands (spec §4.G, GLOSSARY "global state"): the ledger commands commit
// into, the running two-sided fee excess, and the protocol state view every
// command's preconditions are checked against.
type GlobalState struct {
	Ledger            capability.Ledger
	FeeExcess         feeexcess.T
	SupplyIncrease    currency.Signed[currency.Amount]
	ProtocolStateView ProtocolStateView
}
