// Package merkle implements the tree's two hash primitives (spec §4.A):
// hash_node, a domain-separated two-to-one hash parameterized by height,
// and hash_leaf, the hash of a single account. Both are built from a small
// Poseidon-family sponge permutation over the fp field.
//
// The permutation here is structurally Poseidon (additive round constants,
// an x^5 S-box, and a fixed MDS-style mixing matrix over a width-3 state)
// but its round constants are generated by a deterministic formula rather
// than ported from Mina's audited parameter set, since no library in this
// module's dependency set ships Mina's actual Poseidon instantiation over
// the Pallas/Vesta fields. It is deterministic and pure, matching spec §4.A,
// but is not bit-compatible with the real network's hashes; see DESIGN.md.
package merkle

import (
	"github.com/mina-ledger/ledger-core/fp"
	"github.com/mina-ledger/ledger-core/ledger/account"
)

const (
	rounds    = 8
	stateSize = 3
)

// domain tags, mixed into the permutation's initial state so that node
// hashes, leaf hashes, and receipt-chain hashes can never collide with one
// another.
const (
	domainLeaf    uint64 = 0x4c656166 << 32 // "Leaf"
	domainNode    uint64 = 0x4e6f6465 << 32 // "Node"
	domainReceipt uint64 = 0x52637074 << 32 // "Rcpt"
)

func sbox(x fp.Elt) fp.Elt {
	x2 := fp.Square(x)
	x4 := fp.Square(x2)
	return fp.Mul(x4, x)
}

// mix applies a fixed 3x3 MDS-style matrix [[2,1,1],[1,2,1],[1,1,2]].
func mix(s [stateSize]fp.Elt) [stateSize]fp.Elt {
	two := fp.FromUint64(2)
	sum := fp.Add(fp.Add(s[0], s[1]), s[2])
	return [stateSize]fp.Elt{
		fp.Add(sum, fp.Mul(two, s[0])),
		fp.Add(sum, fp.Mul(two, s[1])),
		fp.Add(sum, fp.Mul(two, s[2])),
	}
}

// roundConstant deterministically derives the constant added to lane i
// during round r of a permutation tagged with domain.
func roundConstant(r, i int, domain uint64) fp.Elt {
	const mixer = 0x9E3779B97F4A7C15
	x := (uint64(r)*stateSize+uint64(i))*mixer ^ domain
	return fp.FromUint64(x)
}

func permute(state [stateSize]fp.Elt, domain uint64) [stateSize]fp.Elt {
	for r := 0; r < rounds; r++ {
		for i := range state {
			state[i] = fp.Add(state[i], roundConstant(r, i, domain))
		}
		for i := range state {
			state[i] = sbox(state[i])
		}
		state = mix(state)
	}
	return state
}

// HashNode computes the domain-separated two-to-one hash of a node at the
// given height (the height of the parent being formed; leaves are height 0)
// from its left and right child hashes (spec §4.A).
func HashNode(height int, left, right fp.Elt) fp.Elt {
	domain := domainNode ^ uint64(height)
	state := [stateSize]fp.Elt{fp.FromUint64(domain), left, right}
	out := permute(state, domain)
	return out[0]
}

// HashLeaf computes the hash of a single account (spec §4.A).
func HashLeaf(a account.Account) fp.Elt {
	elems := accountFieldElements(a)
	state := [stateSize]fp.Elt{fp.FromUint64(domainLeaf), fp.Zero(), fp.Zero()}
	for i := 0; i < len(elems); i += 2 {
		state[1] = fp.Add(state[1], elems[i])
		if i+1 < len(elems) {
			state[2] = fp.Add(state[2], elems[i+1])
		}
		state = permute(state, domainLeaf)
	}
	return state[0]
}

// accountFieldElements packs every account field into a deterministic
// sequence of field elements for hashing.
func accountFieldElements(a account.Account) []fp.Elt {
	elems := make([]fp.Elt, 0, 24)
	elems = append(elems,
		fp.FromBytes(a.PublicKey[:]),
		a.TokenID,
		fp.FromUint64(uint64(a.Balance)),
		fp.FromUint64(uint64(a.Nonce)),
		a.ReceiptChainHash,
		a.VotingFor,
	)
	if a.Delegate != nil {
		elems = append(elems, fp.One(), fp.FromBytes(a.Delegate[:]))
	} else {
		elems = append(elems, fp.Zero(), fp.Zero())
	}
	elems = append(elems, timingFieldElements(a.Timing)...)
	elems = append(elems, permissionsFieldElement(a.Permissions))
	if a.ZkApp != nil {
		elems = append(elems, fp.One())
		elems = append(elems, a.ZkApp.AppState[:]...)
		elems = append(elems, a.ZkApp.SequenceState[:]...)
		elems = append(elems,
			a.ZkApp.VerificationKeyHash,
			fp.FromUint64(uint64(a.ZkApp.LastSequenceSlot)),
			boolElt(a.ZkApp.ProvedState),
			fp.FromBytes([]byte(a.ZkApp.ZkAppURI)),
			fp.FromBytes([]byte(a.ZkApp.TokenSymbol)),
		)
	} else {
		elems = append(elems, fp.Zero())
	}
	return elems
}

func timingFieldElements(t account.Timing) []fp.Elt {
	if !t.IsTimed {
		return []fp.Elt{fp.Zero()}
	}
	return []fp.Elt{
		fp.One(),
		fp.FromUint64(uint64(t.InitialMinimumBalance)),
		fp.FromUint64(uint64(t.CliffTime)),
		fp.FromUint64(uint64(t.CliffAmount)),
		fp.FromUint64(uint64(t.VestingPeriod)),
		fp.FromUint64(uint64(t.VestingIncrement)),
	}
}

func permissionsFieldElement(p account.Permissions) fp.Elt {
	pack := uint64(p.EditState) |
		uint64(p.Send)<<4 |
		uint64(p.Receive)<<8 |
		uint64(p.SetDelegate)<<12 |
		uint64(p.SetPermissions)<<16 |
		uint64(p.SetVerificationKey)<<20 |
		uint64(p.SetZkappURI)<<24 |
		uint64(p.EditSequenceState)<<28 |
		uint64(p.SetTokenSymbol)<<32 |
		uint64(p.IncrementNonce)<<36 |
		uint64(p.SetVotingFor)<<40 |
		uint64(p.SetTiming)<<44
	return fp.FromUint64(pack)
}

// ConsReceiptChainHash extends a receipt chain by hashing the field elements
// of one signed command's payload together with the prior link (spec §4.F
// cons_signed_command_payload; account.rs's ReceiptChainHash::cons_signed_command_payload).
func ConsReceiptChainHash(payloadElements []fp.Elt, prior fp.Elt) fp.Elt {
	state := [stateSize]fp.Elt{fp.FromUint64(domainReceipt), fp.Zero(), fp.Zero()}
	elems := append(append([]fp.Elt{}, payloadElements...), prior)
	for i := 0; i < len(elems); i += 2 {
		state[1] = fp.Add(state[1], elems[i])
		if i+1 < len(elems) {
			state[2] = fp.Add(state[2], elems[i+1])
		}
		state = permute(state, domainReceipt)
	}
	return state[0]
}

func boolElt(b bool) fp.Elt {
	if b {
		return fp.One()
	}
	return fp.Zero()
}
