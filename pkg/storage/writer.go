package storage

import (
	"context"
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// Writer is the single in-flight read-write transaction. AppendHeader,
// AppendBody and AppendStateDiff check their marker preconditions before
// touching any table, so a call rejected by that check leaves the
// transaction unchanged; the class appends check no marker. Callers must
// not reuse a Writer after an error without rolling back.
type Writer struct {
	store     *Store
	tx        kv.RwTx
	blobStart map[kv.BlobFileKind]uint64
	committed bool
}

// NewWriter begins the store's one read-write transaction, snapshotting
// each blob file's write head so a Rollback can truncate away any
// uncommitted appends.
func (s *Store) NewWriter(ctx context.Context) (*Writer, error) {
	tx, err := s.db.BeginRw(ctx)
	if err != nil {
		return nil, err
	}
	blobStart := make(map[kv.BlobFileKind]uint64, len(s.blobs))
	for k, f := range s.blobs {
		blobStart[k] = f.NextOffset()
	}
	return &Writer{store: s, tx: tx, blobStart: blobStart}, nil
}

// Commit flushes every blob file, then publishes every append made on
// this Writer.
func (w *Writer) Commit() error {
	for _, f := range w.store.blobs {
		if err := f.Sync(); err != nil {
			return err
		}
	}
	if err := w.tx.Commit(); err != nil {
		return err
	}
	w.committed = true
	return nil
}

// Rollback discards every append made on this Writer, including
// truncating each blob file's write head back to the offset it held
// before this Writer began: otherwise an aborted append-heavy
// transaction would leave nextOffset advanced past the committed
// boundary, wasting the gap until the next process restart reopens the
// file from FileOffsets. After a successful Commit it does nothing.
func (w *Writer) Rollback() {
	if w.committed {
		return
	}
	w.tx.Rollback()
	for k, off := range w.blobStart {
		w.store.blobs[k].Truncate(off)
	}
}

func (w *Writer) put(table string, key []byte, kind byte, raw []byte) error {
	enc, err := w.store.dicts.Encode(kind, raw)
	if err != nil {
		return err
	}
	return w.tx.Put(table, key, enc)
}

// AppendHeader appends the next header in sequence, requiring
// header.BlockNumber to equal the Header marker's current value.
func (w *Writer) AppendHeader(h starknet.BlockHeader) error {
	if err := requireMarker(w.tx, starknet.MarkerHeader, h.BlockNumber); err != nil {
		return err
	}
	key := wire.PutUint64(uint64(h.BlockNumber))
	if exists, err := w.tx.Has(kv.HeaderNumberByHash, h.BlockHash[:]); err != nil {
		return err
	} else if exists {
		return kv.ErrBlockHashAlreadyExists
	}
	if err := w.put(kv.Headers, key, kindHeader, encodeHeader(h)); err != nil {
		return err
	}
	if err := w.tx.Put(kv.HeaderNumberByHash, h.BlockHash[:], key); err != nil {
		return err
	}
	return setMarker(w.tx, starknet.MarkerHeader, h.BlockNumber.Next())
}

// AppendBody appends the block's transactions, outputs, and their
// derived indices (tx hash lookup, per-contract event index). Requires
// the Header marker to already cover this block.
func (w *Writer) AppendBody(block starknet.BlockNumber, body starknet.BlockBody) error {
	if err := requireMarker(w.tx, starknet.MarkerBody, block); err != nil {
		return err
	}
	if err := requirePrerequisite(w.tx, starknet.MarkerHeader, block); err != nil {
		return err
	}
	if len(body.Transactions) != len(body.Outputs) {
		return fmt.Errorf("storage: body for block %d has %d transactions but %d outputs", block, len(body.Transactions), len(body.Outputs))
	}

	blockKey := wire.PutUint64(uint64(block))
	if err := w.put(kv.BlockBodyTxCount, blockKey, kindTxCount, wire.PutUint32(uint32(len(body.Transactions)))); err != nil {
		return err
	}

	for i, tx := range body.Transactions {
		txKey := append(append([]byte{}, blockKey...), wire.PutUint32(uint32(i))...)
		if exists, err := w.tx.Has(kv.TxHashToLocation, tx.Hash[:]); err != nil {
			return err
		} else if exists {
			return kv.ErrTransactionHashAlreadyExists
		}
		if err := w.put(kv.Transactions, txKey, kindBody, encodeTransaction(tx)); err != nil {
			return err
		}
		if err := w.put(kv.TransactionOutputs, txKey, kindBody, encodeOutput(body.Outputs[i])); err != nil {
			return err
		}
		if err := w.tx.Put(kv.TxHashToLocation, tx.Hash[:], txKey); err != nil {
			return err
		}

		for eventIdx, ev := range body.Outputs[i].Events {
			dup, err := w.tx.RwCursorDupSort(kv.EventIndex)
			if err != nil {
				return err
			}
			idxKey := append(append([]byte{}, ev.FromAddress[:]...), blockKey...)
			idxVal := append(wire.PutUint32(uint32(i)), wire.PutUint32(uint32(eventIdx))...)
			err = dup.PutNoDupData(idxKey, idxVal)
			dup.Close()
			if err != nil {
				return err
			}
		}
	}

	return setMarker(w.tx, starknet.MarkerBody, block.Next())
}

// AppendStateDiff writes the block's thin state diff to the blob file and
// advances every per-contract history table it touches.
func (w *Writer) AppendStateDiff(block starknet.BlockNumber, diff starknet.ThinStateDiff) error {
	if err := requireMarker(w.tx, starknet.MarkerState, block); err != nil {
		return err
	}
	if err := requirePrerequisite(w.tx, starknet.MarkerBody, block); err != nil {
		return err
	}

	loc, err := w.appendBlob(kv.BlobThinStateDiff, encodeThinStateDiff(diff))
	if err != nil {
		return err
	}
	if err := w.tx.Put(kv.ThinStateDiffLocation, wire.PutUint64(uint64(block)), encodeLocation(loc)); err != nil {
		return err
	}

	for _, d := range diff.DeployedContracts {
		if err := w.recordClassHistory(d.Address, block, d.ClassHash); err != nil {
			return err
		}
	}
	for _, r := range diff.ReplacedClasses {
		if err := w.recordClassHistory(r.Address, block, r.ClassHash); err != nil {
			return err
		}
	}
	for _, n := range diff.Nonces {
		if err := w.recordNonceHistory(n.Address, block, n.Nonce); err != nil {
			return err
		}
	}
	for _, sd := range diff.StorageDiffs {
		for _, e := range sd.Entries {
			if err := w.recordStorageHistory(sd.Address, e.Key, block, e.Value); err != nil {
				return err
			}
		}
	}

	return setMarker(w.tx, starknet.MarkerState, block.Next())
}

func (w *Writer) recordClassHistory(addr starknet.Address, block starknet.BlockNumber, class starknet.ClassHash) error {
	dup, err := w.tx.RwCursorDupSort(kv.ContractClassHistory)
	if err != nil {
		return err
	}
	defer dup.Close()
	val := append(wire.PutUint64(uint64(block)), class[:]...)
	return dup.PutNoDupData(addr[:], val)
}

func (w *Writer) recordNonceHistory(addr starknet.Address, block starknet.BlockNumber, nonce starknet.Nonce) error {
	dup, err := w.tx.RwCursorDupSort(kv.ContractNonceHistory)
	if err != nil {
		return err
	}
	defer dup.Close()
	val := append(wire.PutUint64(uint64(block)), nonce[:]...)
	return dup.PutNoDupData(addr[:], val)
}

func (w *Writer) recordStorageHistory(addr starknet.Address, key starknet.StorageKey, block starknet.BlockNumber, value starknet.Felt) error {
	dup, err := w.tx.RwCursorDupSort(kv.ContractStorageHistory)
	if err != nil {
		return err
	}
	defer dup.Close()
	tableKey := append(append([]byte{}, addr[:]...), key[:]...)
	val := append(wire.PutUint64(uint64(block)), value[:]...)
	return dup.PutNoDupData(tableKey, val)
}

// AppendSierraClass writes a Sierra class declared at block, and records
// its declaration block so the event/sync layer can tell a declare
// transaction's class apart from an earlier re-declaration.
func (w *Writer) AppendSierraClass(class starknet.ContractClass) error {
	if exists, err := w.tx.Has(kv.ContractClassLocation, class.ClassHash[:]); err != nil {
		return err
	} else if exists {
		return kv.ErrClassAlreadyExists
	}
	loc, err := w.appendBlob(kv.BlobContractClass, encodeSierraClass(class))
	if err != nil {
		return err
	}
	if err := w.tx.Put(kv.ContractClassLocation, class.ClassHash[:], encodeLocation(loc)); err != nil {
		return err
	}
	if err := w.tx.Put(kv.ClassDeclarationBlock, class.ClassHash[:], wire.PutUint64(uint64(class.DeclaredAt))); err != nil {
		return err
	}
	return setMarker(w.tx, starknet.MarkerClass, (class.DeclaredAt).Next())
}

// AppendDeprecatedClass writes a Cairo 0 class.
func (w *Writer) AppendDeprecatedClass(class starknet.DeprecatedContractClass) error {
	if exists, err := w.tx.Has(kv.DeprecatedContractClassLocation, class.ClassHash[:]); err != nil {
		return err
	} else if exists {
		return kv.ErrClassAlreadyExists
	}
	loc, err := w.appendBlob(kv.BlobDeprecatedContractClass, encodeDeprecatedClass(class))
	if err != nil {
		return err
	}
	if err := w.tx.Put(kv.DeprecatedContractClassLocation, class.ClassHash[:], encodeLocation(loc)); err != nil {
		return err
	}
	dup, err := w.tx.RwCursorDupSort(kv.DeprecatedClassHashes)
	if err != nil {
		return err
	}
	defer dup.Close()
	if err := dup.PutNoDupData(wire.PutUint64(uint64(class.DeclaredAt)), class.ClassHash[:]); err != nil {
		return err
	}
	return nil
}

// AppendCompiledClass writes a class's CASM compilation output.
func (w *Writer) AppendCompiledClass(compiled starknet.CompiledClass) error {
	if exists, err := w.tx.Has(kv.CompiledClassLocation, compiled.ClassHash[:]); err != nil {
		return err
	} else if exists {
		return kv.ErrClassAlreadyExists
	}
	loc, err := w.appendBlob(kv.BlobCompiledClass, encodeCompiledClass(compiled))
	if err != nil {
		return err
	}
	if err := w.tx.Put(kv.CompiledClassLocation, compiled.ClassHash[:], encodeLocation(loc)); err != nil {
		return err
	}
	return setMarker(w.tx, starknet.MarkerCompiledClass, compiled.CompiledAt.Next())
}

func (w *Writer) appendBlob(kind kv.BlobFileKind, payload []byte) (blobLocation, error) {
	f := w.store.blobs[kind]
	loc, err := f.Append(payload)
	if err != nil {
		return blobLocation{}, err
	}
	return blobLocation{Offset: loc.Offset, Len: loc.Len}, w.tx.Put(kv.FileOffsets, []byte{byte(kind)}, wire.PutUint64(f.NextOffset()))
}
