package account

// AuthRequired is the authorization lattice used by every editable account
// attribute (spec §4.G step 5). The ordering None < Either < Proof,Signature
// < Impossible matters for controller_check: Proof and Signature are
// incomparable siblings, both stronger than Either and weaker than
// Impossible.
type AuthRequired int

const (
	// AuthNone allows the update unconditionally.
	AuthNone AuthRequired = iota
	// AuthEither allows the update with a verified proof or signature.
	AuthEither
	// AuthProof requires a verified proof.
	AuthProof
	// AuthSignature requires a verified signature.
	AuthSignature
	// AuthImpossible never allows the update.
	AuthImpossible
)

func (a AuthRequired) String() string {
	switch a {
	case AuthNone:
		return "None"
	case AuthEither:
		return "Either"
	case AuthProof:
		return "Proof"
	case AuthSignature:
		return "Signature"
	case AuthImpossible:
		return "Impossible"
	default:
		return "Unknown"
	}
}

// Permissions holds one AuthRequired per editable account attribute (spec
// §3, §4.G step 9).
type Permissions struct {
	EditState           AuthRequired // app_state
	Send                AuthRequired // balance decrease
	Receive             AuthRequired // balance increase
	SetDelegate         AuthRequired
	SetPermissions      AuthRequired
	SetVerificationKey  AuthRequired
	SetZkappURI         AuthRequired
	EditSequenceState   AuthRequired
	SetTokenSymbol      AuthRequired
	IncrementNonce      AuthRequired
	SetVotingFor        AuthRequired
	SetTiming           AuthRequired
}

// DefaultPermissions returns the permission set of a freshly created,
// ordinary (non-zkApp) user account: every edit, including sending funds,
// requires a signature; receiving funds requires no authorization.
func DefaultPermissions() Permissions {
	return Permissions{
		EditState:          AuthSignature,
		Send:               AuthSignature,
		Receive:            AuthNone,
		SetDelegate:        AuthSignature,
		SetPermissions:     AuthSignature,
		SetVerificationKey: AuthSignature,
		SetZkappURI:        AuthSignature,
		EditSequenceState:  AuthSignature,
		SetTokenSymbol:     AuthSignature,
		IncrementNonce:     AuthSignature,
		SetVotingFor:       AuthSignature,
		SetTiming:          AuthSignature,
	}
}

// VerificationKind describes which form of authorization, if any, a caller
// presented for an account update (spec §4.G step 5).
type VerificationKind struct {
	ProofVerifies     bool
	SignatureVerifies bool
}

// strongestVerified returns the strongest AuthRequired tag satisfied by v,
// per spec's ordering "Proof > Signature > NoneGiven". It is an error for
// both to verify simultaneously (spec §4.F fatal errors); callers must check
// that invariant before calling this.
func strongestVerified(v VerificationKind) AuthRequired {
	switch {
	case v.ProofVerifies:
		return AuthProof
	case v.SignatureVerifies:
		return AuthSignature
	default:
		return AuthNone
	}
}

// ControllerCheck reports whether the verification kind v satisfies the
// permission requirement perm (spec §4.G step 5). It panics if both a proof
// and a signature verify, since that is a fatal invariant violation (spec
// §4.F): a well-formed account update presents at most one verified
// authorization.
func ControllerCheck(perm AuthRequired, v VerificationKind) bool {
	if v.ProofVerifies && v.SignatureVerifies {
		panic("account: proof and signature both verified for the same account update")
	}
	switch perm {
	case AuthNone:
		return true
	case AuthImpossible:
		return false
	case AuthEither:
		return v.ProofVerifies || v.SignatureVerifies
	case AuthProof:
		return v.ProofVerifies
	case AuthSignature:
		return v.SignatureVerifies
	default:
		return false
	}
}

// StrongestVerified exposes the strongest satisfied authorization tag for a
// verification kind, for callers (the replay check, app-state "proved"
// computation) that need the tag itself rather than a single permission
// check.
func StrongestVerified(v VerificationKind) AuthRequired {
	return strongestVerified(v)
}
