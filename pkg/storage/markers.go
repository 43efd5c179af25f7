package storage

import (
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/wire"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// getMarker returns the next expected block number for kind, or 0 if the
// marker has never been advanced.
func getMarker(tx kv.Tx, kind starknet.MarkerKind) (starknet.BlockNumber, error) {
	v, err := tx.Get(kv.Markers, []byte{byte(kind)})
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	n, err := wire.Uint64(v)
	if err != nil {
		return 0, err
	}
	return starknet.BlockNumber(n), nil
}

func setMarker(tx kv.RwTx, kind starknet.MarkerKind, next starknet.BlockNumber) error {
	return tx.Put(kv.Markers, []byte{byte(kind)}, wire.PutUint64(uint64(next)))
}

// requireMarker enforces that an append_* call targets exactly the
// marker's current position (spec §7 "marker mismatch is a caller bug").
func requireMarker(tx kv.Tx, kind starknet.MarkerKind, block starknet.BlockNumber) error {
	cur, err := getMarker(tx, kind)
	if err != nil {
		return err
	}
	if cur != block {
		return fmt.Errorf("%w: %s marker at %d, got append for %d", kv.ErrMarkerMismatch, kind, cur, block)
	}
	return nil
}

// requirePrerequisite enforces the cross-marker ordering invariant
// Header >= Body >= State >= Class >= CompiledClass (spec §4.5): kind's
// marker may not advance past prereq's.
func requirePrerequisite(tx kv.Tx, prereq starknet.MarkerKind, block starknet.BlockNumber) error {
	cur, err := getMarker(tx, prereq)
	if err != nil {
		return err
	}
	if block >= cur {
		return fmt.Errorf("%w: %s prerequisite marker at %d, need > %d", kv.ErrMarkerMismatch, prereq, cur, block)
	}
	return nil
}
