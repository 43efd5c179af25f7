package storage

import (
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// RevertHeader moves the chain's current tip header into the ommer
// archive and rolls the Header marker back by one. Only the current tip
// may be reverted (spec §7 "revert out of range" is a caller bug).
func (w *Writer) RevertHeader(block starknet.BlockNumber, epoch uint64) error {
	marker, err := getMarker(w.tx, starknet.MarkerHeader)
	if err != nil {
		return err
	}
	if marker == 0 || block != marker.Prev() {
		return fmt.Errorf("%w: header marker at %d, cannot revert %d", kv.ErrBlockNumberOutOfRange, marker, block)
	}

	key := wire.PutUint64(uint64(block))
	raw, err := w.tx.Get(kv.Headers, key)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: no header at %d to revert", kv.ErrDBInconsistency, block)
	}
	_, innerRaw, err := w.store.dicts.Decode(raw)
	if err != nil {
		return err
	}
	h, err := decodeHeader(innerRaw)
	if err != nil {
		return err
	}

	if err := w.tx.Put(kv.OmmerHeaders, h.BlockHash[:], raw); err != nil {
		return err
	}
	if err := w.archiveOrder(epoch, h.BlockHash); err != nil {
		return err
	}
	if err := w.tx.Delete(kv.Headers, key); err != nil {
		return err
	}
	if err := w.tx.Delete(kv.HeaderNumberByHash, h.BlockHash[:]); err != nil {
		return err
	}
	return setMarker(w.tx, starknet.MarkerHeader, block)
}

func (w *Writer) archiveOrder(epoch uint64, hash starknet.BlockHash) error {
	dup, err := w.tx.RwCursorDupSort(kv.OmmerOrder)
	if err != nil {
		return err
	}
	defer dup.Close()
	return dup.PutNoDupData(wire.PutUint64(epoch), hash[:])
}

// RevertBody moves the tip's body into the ommer archive, removing its
// transaction/event indices from the live tables.
func (w *Writer) RevertBody(block starknet.BlockNumber) error {
	marker, err := getMarker(w.tx, starknet.MarkerBody)
	if err != nil {
		return err
	}
	if marker == 0 || block != marker.Prev() {
		return fmt.Errorf("%w: body marker at %d, cannot revert %d", kv.ErrBlockNumberOutOfRange, marker, block)
	}

	blockKey := wire.PutUint64(uint64(block))
	countRaw, err := w.tx.Get(kv.BlockBodyTxCount, blockKey)
	if err != nil {
		return err
	}
	if countRaw == nil {
		return setMarker(w.tx, starknet.MarkerBody, block)
	}
	_, rawCount, err := w.store.dicts.Decode(countRaw)
	if err != nil {
		return err
	}
	count, err := wire.Uint32(rawCount)
	if err != nil {
		return err
	}

	var txs []starknet.Transaction
	var outs []starknet.TransactionOutput
	for i := uint32(0); i < count; i++ {
		txKey := append(append([]byte{}, blockKey...), wire.PutUint32(i)...)
		txRaw, err := w.tx.Get(kv.Transactions, txKey)
		if err != nil {
			return err
		}
		_, rawTx, err := w.store.dicts.Decode(txRaw)
		if err != nil {
			return err
		}
		tx, err := decodeTransaction(rawTx)
		if err != nil {
			return err
		}
		outRaw, err := w.tx.Get(kv.TransactionOutputs, txKey)
		if err != nil {
			return err
		}
		_, rawOut, err := w.store.dicts.Decode(outRaw)
		if err != nil {
			return err
		}
		out, err := decodeOutput(rawOut)
		if err != nil {
			return err
		}
		txs = append(txs, tx)
		outs = append(outs, out)

		if err := w.tx.Delete(kv.Transactions, txKey); err != nil {
			return err
		}
		if err := w.tx.Delete(kv.TransactionOutputs, txKey); err != nil {
			return err
		}
		if err := w.tx.Delete(kv.TxHashToLocation, tx.Hash[:]); err != nil {
			return err
		}
		for evIdx, ev := range out.Events {
			dup, err := w.tx.RwCursorDupSort(kv.EventIndex)
			if err != nil {
				return err
			}
			idxKey := append(append([]byte{}, ev.FromAddress[:]...), blockKey...)
			idxVal := append(wire.PutUint32(i), wire.PutUint32(uint32(evIdx))...)
			err = dup.DeleteExact(idxKey, idxVal)
			dup.Close()
			if err != nil {
				return err
			}
		}
	}

	enc, err := w.store.dicts.Encode(kindBody, encodeBody(txs, outs))
	if err != nil {
		return err
	}
	if err := w.tx.Put(kv.OmmerBodies, blockKey, enc); err != nil {
		return err
	}
	if err := w.tx.Delete(kv.BlockBodyTxCount, blockKey); err != nil {
		return err
	}
	return setMarker(w.tx, starknet.MarkerBody, block)
}

func encodeBody(txs []starknet.Transaction, outs []starknet.TransactionOutput) []byte {
	var b []byte
	b = append(b, wire.PutUint32(uint32(len(txs)))...)
	for i, tx := range txs {
		enc := encodeTransaction(tx)
		b = append(b, wire.PutUint32(uint32(len(enc)))...)
		b = append(b, enc...)
		outEnc := encodeOutput(outs[i])
		b = append(b, wire.PutUint32(uint32(len(outEnc)))...)
		b = append(b, outEnc...)
	}
	return b
}

// RevertStateDiff moves the tip's state diff into the ommer archive. The
// per-contract history tables are left as-is: a reverted block's history
// rows become unreachable once the marker rolls back (no query can ever
// request a StateNumber at or after the reverted block again until it is
// re-applied), matching the original's append-only history design.
func (w *Writer) RevertStateDiff(block starknet.BlockNumber) error {
	marker, err := getMarker(w.tx, starknet.MarkerState)
	if err != nil {
		return err
	}
	if marker == 0 || block != marker.Prev() {
		return fmt.Errorf("%w: state marker at %d, cannot revert %d", kv.ErrBlockNumberOutOfRange, marker, block)
	}

	key := wire.PutUint64(uint64(block))
	locRaw, err := w.tx.Get(kv.ThinStateDiffLocation, key)
	if err != nil {
		return err
	}
	if locRaw != nil {
		loc, err := decodeLocation(locRaw)
		if err != nil {
			return err
		}
		raw, err := w.store.blobs[kv.BlobThinStateDiff].Read(locationToBlob(loc))
		if err != nil {
			return err
		}
		if err := w.tx.Put(kv.OmmerStateDiffs, key, raw); err != nil {
			return err
		}
		if err := w.tx.Delete(kv.ThinStateDiffLocation, key); err != nil {
			return err
		}
	}
	return setMarker(w.tx, starknet.MarkerState, block)
}

// PruneOmmers removes archived ommer records older than keepDepth epochs
// back from the most recent archived epoch (SPEC_FULL.md "SUPPLEMENTED
// FEATURES" ommer retention policy, modeled on the original's bounded
// revert-history retention).
func (w *Writer) PruneOmmers(keepDepth uint64) error {
	cursor, err := w.tx.CursorDupSort(kv.OmmerOrder)
	if err != nil {
		return err
	}
	defer cursor.Close()

	k, _, err := cursor.Last()
	if err != nil || k == nil {
		return err
	}
	latestEpoch, err := wire.Uint64(k)
	if err != nil {
		return err
	}
	if latestEpoch < keepDepth {
		return nil
	}
	cutoff := latestEpoch - keepDepth

	rw, err := w.tx.RwCursorDupSort(kv.OmmerOrder)
	if err != nil {
		return err
	}
	defer rw.Close()
	k, v, err := rw.First()
	for k != nil && err == nil {
		epoch, derr := wire.Uint64(k)
		if derr != nil {
			return derr
		}
		if epoch >= cutoff {
			break
		}
		var hash starknet.BlockHash
		copy(hash[:], v)
		if err := w.tx.Delete(kv.OmmerHeaders, hash[:]); err != nil {
			return err
		}
		if err := w.tx.Delete(kv.OmmerBodies, hash[:]); err != nil {
			return err
		}
		if err := w.tx.Delete(kv.OmmerStateDiffs, hash[:]); err != nil {
			return err
		}
		if err := rw.DeleteCurrentDup(); err != nil {
			return err
		}
		k, v, err = rw.Next()
	}
	return err
}
