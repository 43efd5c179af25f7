// Package wire implements the byte-exact value serialization the storage
// engine persists: a one-byte version header (dictionary-compressed or
// plain) in front of every KV value and every blob-file payload, plus the
// compact field-element codec used inside those payloads.
//
// The version byte's high nibble selects "uncompressed" (0) or a
// dictionary version (1-15); the low nibble is a payload-kind tag the
// caller defines (e.g. one tag per Go type persisted through this codec).
// This mirrors the teacher's own versioned-value convention in
// erigon-lib/kv (DBSchemaVersion) generalized from a single global schema
// version to a per-value header, because this store persists few large
// blob kinds behind a shared dictionary rather than one schema for an
// entire table family.
package wire

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressionThreshold: payloads at or below this size are stored plain
// (version byte 0) even if a dictionary is loaded; compressing tiny
// payloads only adds header overhead (spec §4.1).
const CompressionThreshold = 128

const maxDictVersion = 0x0f

// Dictionaries is the process-wide, immutable set of pretrained zstd
// dictionaries, loaded once at startup (spec §9 "Global state"). Version 0
// is reserved for "no dictionary" (plain storage) and is never present in
// this map.
type Dictionaries struct {
	mu       sync.RWMutex
	encoders map[byte]*zstd.Encoder
	decoders map[byte]*zstd.Decoder
	latest   byte
}

// NewDictionaries builds an immutable dictionary set from version->bytes
// pairs. Each dictionary is compiled into a reusable encoder/decoder pair.
func NewDictionaries(byVersion map[byte][]byte) (*Dictionaries, error) {
	d := &Dictionaries{
		encoders: make(map[byte]*zstd.Encoder, len(byVersion)),
		decoders: make(map[byte]*zstd.Decoder, len(byVersion)),
	}
	for version, dict := range byVersion {
		if version == 0 || version > maxDictVersion {
			return nil, fmt.Errorf("wire: dictionary version %d out of range 1..%d", version, maxDictVersion)
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderDict(dict))
		if err != nil {
			return nil, fmt.Errorf("wire: building encoder for dict version %d: %w", version, err)
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderDicts(dict))
		if err != nil {
			return nil, fmt.Errorf("wire: building decoder for dict version %d: %w", version, err)
		}
		d.encoders[version] = enc
		d.decoders[version] = dec
		if version > d.latest {
			d.latest = version
		}
	}
	return d, nil
}

// Empty returns a Dictionaries with no loaded dictionaries: every value is
// stored and read back plain. Useful for tests and for chains that have
// not shipped a trained dictionary yet.
func Empty() *Dictionaries {
	return &Dictionaries{encoders: map[byte]*zstd.Encoder{}, decoders: map[byte]*zstd.Decoder{}}
}

// Encode wraps raw with the version header, compressing with the latest
// loaded dictionary when raw exceeds CompressionThreshold.
func (d *Dictionaries) Encode(kind byte, raw []byte) ([]byte, error) {
	if kind > 0x0f {
		return nil, fmt.Errorf("wire: payload kind %d out of range", kind)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.latest == 0 || len(raw) <= CompressionThreshold {
		out := make([]byte, 1+len(raw))
		out[0] = kind // high nibble 0 == uncompressed
		copy(out[1:], raw)
		return out, nil
	}
	enc := d.encoders[d.latest]
	compressed := enc.EncodeAll(raw, nil)
	out := make([]byte, 1+len(compressed))
	out[0] = (d.latest << 4) | kind
	copy(out[1:], compressed)
	return out, nil
}

// Decode reverses Encode, selecting the decompressor by the version byte.
func (d *Dictionaries) Decode(data []byte) (kind byte, raw []byte, err error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("wire: empty value")
	}
	header := data[0]
	kind = header & 0x0f
	version := header >> 4
	payload := data[1:]
	if version == 0 {
		out := make([]byte, len(payload))
		copy(out, payload)
		return kind, out, nil
	}
	d.mu.RLock()
	dec, ok := d.decoders[version]
	d.mu.RUnlock()
	if !ok {
		return 0, nil, fmt.Errorf("wire: unknown dictionary version %d", version)
	}
	raw, err = dec.DecodeAll(payload, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("wire: decompress: %w", err)
	}
	return kind, raw, nil
}

// RoundTrip is a test helper asserting Decode(Encode(x)) reproduces x's
// kind and bytes exactly, satisfying the round-trip law in spec §8.
func RoundTrip(d *Dictionaries, kind byte, raw []byte) error {
	enc, err := d.Encode(kind, raw)
	if err != nil {
		return err
	}
	gotKind, gotRaw, err := d.Decode(enc)
	if err != nil {
		return err
	}
	if gotKind != kind || !bytes.Equal(gotRaw, raw) {
		return fmt.Errorf("wire: round trip mismatch")
	}
	return nil
}
