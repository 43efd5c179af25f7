package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// PutUint64 / Uint64 are the fixed-size big-endian codecs for BlockNumber
// and other u64 keys. Fixed-size big-endian is required so lexicographic
// key order matches numeric order (spec §4.1, round-trip law in §8).
func PutUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func Uint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("wire: expected 8-byte big-endian uint64, got %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func PutUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func Uint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("wire: expected 4-byte big-endian uint32, got %d bytes", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// EncodeFelt packs a 32-byte big-endian field element into a compact form:
// one "chooser" byte holding the count of leading zero bytes (0-32),
// followed by the remaining significant bytes. A zero value therefore
// encodes as a single chooser byte (32, 0 trailing bytes).
//
// This is a value encoding, not a key encoding: it need not preserve
// lexicographic order (only fixed-size big-endian keys such as
// BlockNumber carry that requirement).
//
// The leading-zero count is computed via holiman/uint256 (the teacher's
// own 256-bit word type, here zero-extended from 252 to 256 bits) rather
// than a hand-rolled byte scan: Bytes() already returns the minimal
// big-endian representation, so the "chooser" is just 32 minus its
// length.
func EncodeFelt(f [32]byte) []byte {
	v := new(uint256.Int).SetBytes32(f[:])
	min := v.Bytes()
	lead := 32 - len(min)
	out := make([]byte, 1+len(min))
	out[0] = byte(lead)
	copy(out[1:], min)
	return out
}

// DecodeFelt reverses EncodeFelt.
func DecodeFelt(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) == 0 {
		return out, fmt.Errorf("wire: empty felt encoding")
	}
	lead := int(b[0])
	if lead > 32 {
		return out, fmt.Errorf("wire: felt chooser %d out of range", lead)
	}
	rest := b[1:]
	if len(rest) != 32-lead {
		return out, fmt.Errorf("wire: felt encoding length mismatch: chooser=%d len=%d", lead, len(rest))
	}
	copy(out[lead:], rest)
	return out, nil
}

// EncodeFeltSlice/DecodeFeltSlice encode a length-prefixed sequence of
// field elements, each via EncodeFelt/DecodeFelt. Used for signatures,
// calldata, and other variable-length Felt lists embedded in a record.
func EncodeFeltSlice(fs [][32]byte) []byte {
	out := PutUint32(uint32(len(fs)))
	for _, f := range fs {
		enc := EncodeFelt(f)
		out = append(out, PutUint32(uint32(len(enc)))...)
		out = append(out, enc...)
	}
	return out
}

func DecodeFeltSlice(b []byte) ([][32]byte, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("wire: felt slice header truncated")
	}
	n, err := Uint32(b[:4])
	if err != nil {
		return nil, err
	}
	b = b[4:]
	out := make([][32]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("wire: felt slice entry %d header truncated", i)
		}
		entryLen, err := Uint32(b[:4])
		if err != nil {
			return nil, err
		}
		b = b[4:]
		if uint32(len(b)) < entryLen {
			return nil, fmt.Errorf("wire: felt slice entry %d truncated", i)
		}
		f, err := DecodeFelt(b[:entryLen])
		if err != nil {
			return nil, err
		}
		out = append(out, f)
		b = b[entryLen:]
	}
	return out, nil
}
