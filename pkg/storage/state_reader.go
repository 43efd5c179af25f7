package storage

import (
	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// stateUpperBound returns the smallest block number that the query must
// NOT see: the latest visible write is the last history entry whose block
// is strictly below this value.
func stateUpperBound(sn starknet.StateNumber) starknet.BlockNumber {
	if sn.AfterBlock {
		return sn.Block.Next()
	}
	return sn.Block
}

// latestBefore walks a DUPSORT history table (key -> blockBE ++ payload,
// sorted ascending) to the last entry whose block is strictly below
// upperBound. Returns nil if no such entry exists.
func latestBefore(tx kv.Tx, table string, key []byte, upperBound starknet.BlockNumber) ([]byte, error) {
	dup, err := tx.CursorDupSort(table)
	if err != nil {
		return nil, err
	}
	defer dup.Close()

	v, err := dup.SeekBothRange(key, wire.PutUint64(uint64(upperBound)))
	if err != nil {
		return nil, err
	}
	if v != nil {
		// positioned on the first entry with block >= upperBound; the
		// previous row, if it shares key, is the latest visible write.
		k, pv, err := dup.Prev()
		if err != nil || k == nil || !sameKey(k, key) {
			return nil, err
		}
		return pv, nil
	}
	// no entry >= upperBound for this key: the cursor sits just past the
	// key's last dup (or the key doesn't exist at all).
	k, pv, err := dup.Prev()
	if err != nil || k == nil || !sameKey(k, key) {
		return nil, err
	}
	return pv, nil
}

func sameKey(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ClassHashAt returns the class a contract address points to as observed
// at sn, or nil if the address has never been deployed by sn.
func (r *Reader) ClassHashAt(addr starknet.Address, sn starknet.StateNumber) (*starknet.ClassHash, error) {
	v, err := latestBefore(r.tx, kv.ContractClassHistory, addr[:], stateUpperBound(sn))
	if err != nil || v == nil {
		return nil, err
	}
	var out starknet.ClassHash
	copy(out[:], v[8:])
	return &out, nil
}

// NonceAt returns a contract's nonce as observed at sn, or nil if the
// contract has never written a nonce by sn.
func (r *Reader) NonceAt(addr starknet.Address, sn starknet.StateNumber) (*starknet.Nonce, error) {
	v, err := latestBefore(r.tx, kv.ContractNonceHistory, addr[:], stateUpperBound(sn))
	if err != nil || v == nil {
		return nil, err
	}
	var out starknet.Nonce
	copy(out[:], v[8:])
	return &out, nil
}

// StorageAt returns a contract storage slot's value as observed at sn, or
// nil if the slot has never been written by sn.
func (r *Reader) StorageAt(addr starknet.Address, key starknet.StorageKey, sn starknet.StateNumber) (*starknet.Felt, error) {
	tableKey := append(append([]byte{}, addr[:]...), key[:]...)
	v, err := latestBefore(r.tx, kv.ContractStorageHistory, tableKey, stateUpperBound(sn))
	if err != nil || v == nil {
		return nil, err
	}
	var out starknet.Felt
	copy(out[:], v[8:])
	return &out, nil
}
