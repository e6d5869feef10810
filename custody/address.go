package custody

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/liquidityos/custody-engine-go/domain"
)

// addressPrefix versions the derivation so a future layout change cannot
// collide with existing addresses.
const addressPrefix = "custody:v1"

// AddressDeriver computes deterministic custody sub-account addresses from
// (program identity, owner identity, caller-chosen seed, optional extra
// parties) plus a disambiguation nonce ("bump"). It is a pure function over
// its inputs: the same inputs yield the same address forever.
type AddressDeriver struct {
	program domain.Address
}

// NewAddressDeriver builds a deriver namespaced by the program identity.
func NewAddressDeriver(program domain.Address) *AddressDeriver {
	return &AddressDeriver{program: program}
}

// Derive finds the highest bump whose derived address does not alias the
// program identity or any participating party, and returns (address, bump).
// A custody address that collided with a party account would let value escape
// the custody account's books, so such candidates are skipped.
func (d *AddressDeriver) Derive(owner domain.Address, seed uint64, parties ...domain.Address) (domain.Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr := d.deriveWithBump(owner, seed, uint8(bump), parties)
		if d.usable(addr, owner, parties) {
			return addr, uint8(bump), nil
		}
	}
	return domain.Address{}, 0, domain.ErrAddressDerivation
}

// Verify re-derives the address from the presented inputs and the stored bump
// and compares it against the candidate in constant time. Every state-mutating
// operation must call this before trusting a record's contents; a
// caller-supplied address alone is never trusted.
func (d *AddressDeriver) Verify(candidate, owner domain.Address, seed uint64, bump uint8, parties ...domain.Address) bool {
	derived := d.deriveWithBump(owner, seed, bump, parties)
	return candidate.Equal(derived)
}

func (d *AddressDeriver) usable(addr, owner domain.Address, parties []domain.Address) bool {
	if addr == d.program || addr == owner || addr.IsZero() {
		return false
	}
	for _, p := range parties {
		if addr == p {
			return false
		}
	}
	return true
}

func (d *AddressDeriver) deriveWithBump(owner domain.Address, seed uint64, bump uint8, parties []domain.Address) domain.Address {
	var seedLE [8]byte
	binary.LittleEndian.PutUint64(seedLE[:], seed)

	h := sha256.New()
	h.Write([]byte(addressPrefix))
	h.Write(d.program[:])
	h.Write(owner[:])
	for _, p := range parties {
		h.Write(p[:])
	}
	h.Write(seedLE[:])
	h.Write([]byte{bump})

	var addr domain.Address
	copy(addr[:], h.Sum(nil))
	return addr
}
