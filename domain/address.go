package domain

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// AddressLen is the size in bytes of every account identifier.
const AddressLen = 32

// Address identifies an account on the value store: a party identity, the
// engine's program identity, or a derived custody sub-account. All three
// share one address space.
type Address [AddressLen]byte

// ZeroAddress is the unset identity. A custody record whose counterparty is
// zero has no bound counterparty yet.
var ZeroAddress Address

// ParseAddress decodes a 64-character hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(b) != AddressLen {
		return a, fmt.Errorf("parse address: got %d bytes, want %d", len(b), AddressLen)
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromSeed builds an address by copying the given bytes into the
// identifier, zero-padded. Intended for tests and demos where identities are
// human-readable labels rather than real keys.
func AddressFromSeed(label string) Address {
	var a Address
	copy(a[:], label)
	return a
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the unset identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Equal compares two addresses in constant time. Derived custody addresses
// are not secret, but every state-mutating operation compares a caller-supplied
// address against a re-derivation, and the comparison is kept constant-time
// so it never becomes a timing side channel if the inputs ever are.
func (a Address) Equal(b Address) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
