package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// EventFilter selects events emitted by a single contract within a block
// range, paged by chunk size with an opaque continuation token (spec
// §5's "lazy, restartable" event reader).
type EventFilter struct {
	FromAddress starknet.Address
	FromBlock   starknet.BlockNumber
	ToBlock     starknet.BlockNumber
	ChunkSize   int
	Continue    string // empty on the first page
}

// EventPage is one page of Events' results.
type EventPage struct {
	Events   []starknet.Event
	Continue string // empty once exhausted
}

// continuation token: blockBE(8) + txIdxBE(4) + eventIdxBE(4), hex-encoded
// so it is safe to embed in JSON/URLs.
func encodeContinuation(block starknet.BlockNumber, txIdx, evIdx uint32) string {
	b := append(wire.PutUint64(uint64(block)), wire.PutUint32(txIdx)...)
	b = append(b, wire.PutUint32(evIdx)...)
	return hex.EncodeToString(b)
}

func decodeContinuation(s string) (block starknet.BlockNumber, txIdx, evIdx uint32, err error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return 0, 0, 0, fmt.Errorf("storage: malformed continuation token")
	}
	n, _ := wire.Uint64(b[:8])
	t, _ := wire.Uint32(b[8:12])
	e, _ := wire.Uint32(b[12:16])
	return starknet.BlockNumber(n), t, e, nil
}

// Events returns up to filter.ChunkSize events matching filter, starting
// after filter.Continue if set. It walks the EventIndex DUPSORT table
// (address+block -> txIdx+eventIdx) and resolves each match against the
// block's body, so it never materializes the whole range up front.
func (r *Reader) Events(filter EventFilter) (EventPage, error) {
	startBlock := filter.FromBlock
	var skipUntil *struct {
		block starknet.BlockNumber
		tx    uint32
		ev    uint32
	}
	if filter.Continue != "" {
		b, t, e, err := decodeContinuation(filter.Continue)
		if err != nil {
			return EventPage{}, err
		}
		startBlock = b
		skipUntil = &struct {
			block starknet.BlockNumber
			tx    uint32
			ev    uint32
		}{b, t, e}
	}

	chunkSize := filter.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	var out []starknet.Event
	var bodyCache starknet.BlockNumber
	var body *starknet.BlockBody

	for block := startBlock; block <= filter.ToBlock; block++ {
		dup, err := r.tx.CursorDupSort(kv.EventIndex)
		if err != nil {
			return EventPage{}, err
		}
		idxKey := append(append([]byte{}, filter.FromAddress[:]...), wire.PutUint64(uint64(block))...)
		v, err := dup.SeekExact(idxKey)
		if err != nil {
			dup.Close()
			return EventPage{}, err
		}
		if v == nil {
			dup.Close()
			continue
		}

		for v != nil {
			txIdx, _ := wire.Uint32(v[0:4])
			evIdx, _ := wire.Uint32(v[4:8])

			if skipUntil != nil && block == skipUntil.block {
				if txIdx < skipUntil.tx || (txIdx == skipUntil.tx && evIdx <= skipUntil.ev) {
					_, v, err = dup.NextDup()
					if err != nil {
						dup.Close()
						return EventPage{}, err
					}
					continue
				}
			}

			if bodyCache != block || body == nil {
				body, err = r.Body(block)
				if err != nil {
					dup.Close()
					return EventPage{}, err
				}
				bodyCache = block
			}
			if body != nil && int(txIdx) < len(body.Outputs) && int(evIdx) < len(body.Outputs[txIdx].Events) {
				out = append(out, body.Outputs[txIdx].Events[evIdx])
				if len(out) == chunkSize {
					dup.Close()
					return EventPage{Events: out, Continue: encodeContinuation(block, txIdx, evIdx)}, nil
				}
			}

			_, v, err = dup.NextDup()
			if err != nil {
				dup.Close()
				return EventPage{}, err
			}
		}
		dup.Close()
	}

	return EventPage{Events: out}, nil
}
