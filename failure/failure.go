// Package failure defines the closed set of reasons a transaction or an
// account update within it can fail to apply (spec §7), shared by the
// transaction applier and the zkApp execution loop.
package failure

// Failure is a single named reason an application step failed. It is a
// closed string enum rather than an int so that failure status recorded
// on an applied transaction remains self-describing.
type Failure string

const (
	Predicate                          Failure = "predicate"
	SourceNotPresent                   Failure = "source_not_present"
	ReceiverNotPresent                 Failure = "receiver_not_present"
	SourceInsufficientBalance          Failure = "source_insufficient_balance"
	AmountInsufficientToCreateAccount  Failure = "amount_insufficient_to_create_account"
	Overflow                           Failure = "overflow"
	GlobalExcessOverflow               Failure = "global_excess_overflow"
	LocalExcessOverflow                Failure = "local_excess_overflow"
	SignedCommandOnZkappAccount        Failure = "signed_command_on_zkapp_account"
	ZkappAccountNotPresent             Failure = "zkapp_account_not_present"
	UpdateNotPermittedBalance          Failure = "update_not_permitted_balance"
	UpdateNotPermittedTiming           Failure = "update_not_permitted_timing_existing_account"
	UpdateNotPermittedDelegate         Failure = "update_not_permitted_delegate"
	UpdateNotPermittedAppState         Failure = "update_not_permitted_app_state"
	UpdateNotPermittedVerificationKey  Failure = "update_not_permitted_verification_key"
	UpdateNotPermittedSequenceState    Failure = "update_not_permitted_sequence_state"
	UpdateNotPermittedZkappURI         Failure = "update_not_permitted_zkapp_uri"
	UpdateNotPermittedTokenSymbol      Failure = "update_not_permitted_token_symbol"
	UpdateNotPermittedPermissions      Failure = "update_not_permitted_permissions"
	UpdateNotPermittedNonce            Failure = "update_not_permitted_nonce"
	UpdateNotPermittedVotingFor        Failure = "update_not_permitted_voting_for"
	FeePayerNonceMustIncrease          Failure = "fee_payer_nonce_must_increase"
	FeePayerMustBeSigned               Failure = "fee_payer_must_be_signed"
	AccountNonceIncorrect              Failure = "account_nonce_precondition_unsatisfied"
	ZkappCommandReplayCheckFailed      Failure = "zkapp_command_replay_check_failed"
	SourceMinimumBalanceViolation      Failure = "source_minimum_balance_violation"
	InvalidFeeExcess                   Failure = "invalid_fee_excess"
	CancelledByNextAccountUpdate       Failure = "cancelled"
	ExceededDepthForEventsOrSequence   Failure = "sequence_state_depth_exceeded"
	TokenOwnerNotCaller                Failure = "token_owner_not_caller"
	MismatchedTokenPermissions         Failure = "mismatched_token_permissions"
	InvalidAccountPrecondition         Failure = "account_precondition_unsatisfied"
	InvalidProtocolStatePrecondition   Failure = "protocol_state_precondition_unsatisfied"
	IncorrectNonce                    Failure = "incorrect_nonce"
	InvalidSignature                  Failure = "invalid_signature"
	UnexpectedVerificationKeyHash      Failure = "unexpected_verification_key_hash"
	ValidWhilePrecondition             Failure = "valid_while_precondition_unsatisfied"
)
