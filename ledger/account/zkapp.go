package account

import "github.com/mina-ledger/ledger-core/fp"

// AppStateSlots is the number of field elements of zkApp application state.
const AppStateSlots = 8

// SequenceStateSlots is the depth of the zkApp sequence-state (action)
// history.
const SequenceStateSlots = 5

// ZkApp is the optional zkApp extension of an account (spec §3).
type ZkApp struct {
	AppState            [AppStateSlots]fp.Elt
	VerificationKey      []byte // opaque proof-system blob (spec §1: proof
	                            // verification is a caller-supplied black box)
	VerificationKeyHash fp.Elt
	SequenceState       [SequenceStateSlots]fp.Elt
	LastSequenceSlot    uint32
	ProvedState         bool
	ZkAppURI            string
	TokenSymbol         string
}

// DefaultZkApp returns the all-zero zkApp extension attached when an
// account first requires one (spec §4.G step 13).
func DefaultZkApp() ZkApp {
	return ZkApp{}
}

// IsDefault reports whether z is indistinguishable from a freshly attached
// default extension, used by the zkApp loop's normalization step to decide
// whether to detach the extension again (spec §4.G step 13).
func (z ZkApp) IsDefault() bool {
	d := DefaultZkApp()
	if z.LastSequenceSlot != d.LastSequenceSlot || z.ProvedState != d.ProvedState {
		return false
	}
	if z.ZkAppURI != d.ZkAppURI || z.TokenSymbol != d.TokenSymbol {
		return false
	}
	if len(z.VerificationKey) != 0 {
		return false
	}
	for i := range z.AppState {
		if !fp.Equal(z.AppState[i], d.AppState[i]) {
			return false
		}
	}
	for i := range z.SequenceState {
		if !fp.Equal(z.SequenceState[i], d.SequenceState[i]) {
			return false
		}
	}
	return true
}

// RotateSequenceState pushes a new sequence-events digest onto the 5-slot
// history (spec §4.G step 10). If currentSlot equals LastSequenceSlot the
// rotation is elided: only the head slot is updated in place, matching the
// source's "multiple updates within one slot coalesce" behavior.
func (z *ZkApp) RotateSequenceState(eventsHash fp.Elt, currentSlot uint32) {
	if currentSlot == z.LastSequenceSlot {
		z.SequenceState[0] = eventsHash
		return
	}
	for i := len(z.SequenceState) - 1; i > 0; i-- {
		z.SequenceState[i] = z.SequenceState[i-1]
	}
	z.SequenceState[0] = eventsHash
	z.LastSequenceSlot = currentSlot
}
