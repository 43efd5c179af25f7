// Package commitment implements the domain-specific commitment hashes the
// sync pipeline must reproduce byte-exactly: the height-64 Patricia trie,
// the Pedersen hash chain, the Poseidon array hash, and the composite
// per-block / per-transaction / per-state-diff formulas built from them
// (spec §4.3).
//
// Field arithmetic is implemented directly on math/big rather than a pack
// library: the retrieved examples' elliptic-curve crypto (gnark-crypto,
// go-iden3-crypto) target the BN254/BLS12-381/BabyJubjub scalar fields,
// none of which is the Stark field p = 2^251 + 17*2^192 + 1 used here, and
// none can be reparameterized without effectively forking the library.
// See DESIGN.md for the full justification.
package commitment

import (
	"math/big"

	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// Prime is the Stark field modulus p = 2^251 + 17*2^192 + 1.
var Prime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 251)
	t := new(big.Int).Lsh(big.NewInt(17), 192)
	p.Add(p, t)
	p.Add(p, big.NewInt(1))
	return p
}()

// FieldElement is a Stark field element kept in canonical (reduced) form.
type FieldElement struct {
	v *big.Int
}

// Zero is the field's additive identity.
func Zero() FieldElement { return FieldElement{v: new(big.Int)} }

// FromFelt lifts a starknet.Felt (big-endian 32 bytes) into the field,
// reducing modulo Prime if the input happens not to be canonical.
func FromFelt(f starknet.Felt) FieldElement {
	v := new(big.Int).SetBytes(f[:])
	v.Mod(v, Prime)
	return FieldElement{v: v}
}

// FromUint64 lifts a small integer into the field.
func FromUint64(n uint64) FieldElement {
	return FieldElement{v: new(big.Int).SetUint64(n)}
}

// ToFelt lowers a field element back to a 32-byte big-endian array.
func (e FieldElement) ToFelt() starknet.Felt {
	var out starknet.Felt
	b := e.v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// Add returns a field addition a + b mod p.
func Add(a, b FieldElement) FieldElement {
	r := new(big.Int).Add(a.v, b.v)
	r.Mod(r, Prime)
	return FieldElement{v: r}
}

// Mul returns a field multiplication a * b mod p.
func Mul(a, b FieldElement) FieldElement {
	r := new(big.Int).Mul(a.v, b.v)
	r.Mod(r, Prime)
	return FieldElement{v: r}
}

// Equal reports whether a and b are the same field element.
func (e FieldElement) Equal(o FieldElement) bool { return e.v.Cmp(o.v) == 0 }

// Bit returns the value of bit i (0 = least significant) of the element's
// canonical big-endian representation.
func (e FieldElement) Bit(i uint) uint {
	return e.v.Bit(int(i))
}

// Uint64 returns the low 64 bits of the element.
func (e FieldElement) Uint64() uint64 {
	return e.v.Uint64()
}
