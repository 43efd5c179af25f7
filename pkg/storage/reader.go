package storage

import (
	"context"
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// Reader is a read-only snapshot, safe for concurrent use from multiple
// goroutines as long as each call gets its own Reader (each wraps one
// kv.Tx, which is not itself goroutine-safe).
type Reader struct {
	store *Store
	tx    kv.Tx
}

// NewReader opens a read-only snapshot.
func (s *Store) NewReader(ctx context.Context) (*Reader, error) {
	tx, err := s.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	return &Reader{store: s, tx: tx}, nil
}

// Close releases the underlying snapshot.
func (r *Reader) Close() { r.tx.Rollback() }

// Marker returns the next expected block number for kind.
func (r *Reader) Marker(kind starknet.MarkerKind) (starknet.BlockNumber, error) {
	return getMarker(r.tx, kind)
}

func (r *Reader) get(table string, key []byte) ([]byte, error) {
	v, err := r.tx.Get(table, key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	_, raw, err := r.store.dicts.Decode(v)
	return raw, err
}

// Header returns the header at block, or nil if it is not present.
func (r *Reader) Header(block starknet.BlockNumber) (*starknet.BlockHeader, error) {
	raw, err := r.get(kv.Headers, wire.PutUint64(uint64(block)))
	if err != nil || raw == nil {
		return nil, err
	}
	h, err := decodeHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: header %d: %v", kv.ErrInnerDeserialization, block, err)
	}
	return &h, nil
}

// HeaderByHash resolves a block hash to its header.
func (r *Reader) HeaderByHash(hash starknet.BlockHash) (*starknet.BlockHeader, error) {
	numBytes, err := r.tx.Get(kv.HeaderNumberByHash, hash[:])
	if err != nil || numBytes == nil {
		return nil, err
	}
	n, err := wire.Uint64(numBytes)
	if err != nil {
		return nil, err
	}
	return r.Header(starknet.BlockNumber(n))
}

// Body returns the block's transactions and outputs in index order.
func (r *Reader) Body(block starknet.BlockNumber) (*starknet.BlockBody, error) {
	blockKey := wire.PutUint64(uint64(block))
	countRaw, err := r.get(kv.BlockBodyTxCount, blockKey)
	if err != nil || countRaw == nil {
		return nil, err
	}
	count, err := wire.Uint32(countRaw)
	if err != nil {
		return nil, err
	}

	body := &starknet.BlockBody{
		Transactions: make([]starknet.Transaction, count),
		Outputs:      make([]starknet.TransactionOutput, count),
	}
	for i := uint32(0); i < count; i++ {
		txKey := append(append([]byte{}, blockKey...), wire.PutUint32(i)...)
		txRaw, err := r.get(kv.Transactions, txKey)
		if err != nil {
			return nil, err
		}
		tx, err := decodeTransaction(txRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: tx %d/%d: %v", kv.ErrInnerDeserialization, block, i, err)
		}
		body.Transactions[i] = tx

		outRaw, err := r.get(kv.TransactionOutputs, txKey)
		if err != nil {
			return nil, err
		}
		out, err := decodeOutput(outRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: tx output %d/%d: %v", kv.ErrInnerDeserialization, block, i, err)
		}
		body.Outputs[i] = out
	}
	return body, nil
}

// TransactionByHash resolves a transaction hash to its body, by block and
// index.
func (r *Reader) TransactionByHash(hash starknet.TransactionHash) (*starknet.Transaction, error) {
	loc, err := r.tx.Get(kv.TxHashToLocation, hash[:])
	if err != nil || loc == nil {
		return nil, err
	}
	raw, err := r.get(kv.Transactions, loc)
	if err != nil || raw == nil {
		return nil, err
	}
	tx, err := decodeTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: tx %x: %v", kv.ErrInnerDeserialization, hash, err)
	}
	return &tx, nil
}

func (r *Reader) readBlob(kind kv.BlobFileKind, locTable string, key []byte) ([]byte, bool, error) {
	locRaw, err := r.tx.Get(locTable, key)
	if err != nil {
		return nil, false, err
	}
	if locRaw == nil {
		return nil, false, nil
	}
	loc, err := decodeLocation(locRaw)
	if err != nil {
		return nil, false, err
	}
	f := r.store.blobs[kind]
	raw, err := f.Read(locationToBlob(loc))
	return raw, true, err
}

// StateDiff returns the thin state diff applied at block.
func (r *Reader) StateDiff(block starknet.BlockNumber) (*starknet.ThinStateDiff, error) {
	raw, ok, err := r.readBlob(kv.BlobThinStateDiff, kv.ThinStateDiffLocation, wire.PutUint64(uint64(block)))
	if err != nil || !ok {
		return nil, err
	}
	d, err := decodeThinStateDiff(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: state diff %d: %v", kv.ErrInnerDeserialization, block, err)
	}
	return &d, nil
}

// SierraClass returns the Sierra class declared under hash.
func (r *Reader) SierraClass(hash starknet.ClassHash) (*starknet.ContractClass, error) {
	raw, ok, err := r.readBlob(kv.BlobContractClass, kv.ContractClassLocation, hash[:])
	if err != nil || !ok {
		return nil, err
	}
	c, err := decodeSierraClass(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: class %x: %v", kv.ErrInnerDeserialization, hash, err)
	}
	return &c, nil
}

// DeprecatedClass returns the Cairo 0 class declared under hash.
func (r *Reader) DeprecatedClass(hash starknet.ClassHash) (*starknet.DeprecatedContractClass, error) {
	raw, ok, err := r.readBlob(kv.BlobDeprecatedContractClass, kv.DeprecatedContractClassLocation, hash[:])
	if err != nil || !ok {
		return nil, err
	}
	c, err := decodeDeprecatedClass(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: deprecated class %x: %v", kv.ErrInnerDeserialization, hash, err)
	}
	return &c, nil
}

// CompiledClass returns the CASM compilation of hash.
func (r *Reader) CompiledClass(hash starknet.ClassHash) (*starknet.CompiledClass, error) {
	raw, ok, err := r.readBlob(kv.BlobCompiledClass, kv.CompiledClassLocation, hash[:])
	if err != nil || !ok {
		return nil, err
	}
	c, err := decodeCompiledClass(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: compiled class %x: %v", kv.ErrInnerDeserialization, hash, err)
	}
	return &c, nil
}
