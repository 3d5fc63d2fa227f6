// Package uuidgen generates the stable per-ledger identifiers returned by
// Ledger.UUID (spec §4.B/§4.C get_uuid). No uuid-generation library appears
// anywhere in this module's retrieved dependency pack, so this is a
// deliberate, narrow exception to "always reach for a pack library": a
// RFC-4122-shaped v4 id needs nothing beyond a CSPRNG and a format string,
// and pulling in a dependency for that would be disproportionate. See
// DESIGN.md.
package uuidgen

import (
	"crypto/rand"
	"fmt"
)

// New returns a random v4-shaped UUID string.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("uuidgen: crypto/rand failed: %v", err))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Derived deterministically produces a child identifier from a parent UUID
// and a discriminator by joining them with "/". Masks do not use it: each
// mask takes a fresh id from New.
func Derived(parent string, discriminator string) string {
	return parent + "/" + discriminator
}
