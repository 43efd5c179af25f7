package sync

import (
	"context"
	"fmt"

	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

// maxRevertDepth bounds how far back detectRevert walks before giving up
// (spec "up to a safety bound") rather than silently reverting an
// unbounded prefix of the chain.
const maxRevertDepth = 100

// detectRevert walks backward from the stored tip comparing the locally
// stored block hash at each height against what the central source now
// reports for that same height, returning the first block number where
// they agree again (the revert target) and how many blocks disagreed. A
// depth of 0 means storage and source already agree at the tip.
func (l *Loop) detectRevert(ctx context.Context) (target starknet.BlockNumber, depth uint64, err error) {
	r, err := l.store.NewReader(ctx)
	if err != nil {
		return 0, 0, err
	}
	marker, err := r.Marker(starknet.MarkerHeader)
	r.Close()
	if err != nil {
		return 0, 0, err
	}
	if marker == 0 {
		return 0, 0, nil
	}
	tip := marker.Prev()

	for d := uint64(0); d <= maxRevertDepth; d++ {
		if uint64(tip) < d {
			return 0, d, nil
		}
		n := tip - starknet.BlockNumber(d)

		rd, err := l.store.NewReader(ctx)
		if err != nil {
			return 0, 0, err
		}
		stored, err := rd.Header(n)
		rd.Close()
		if err != nil {
			return 0, 0, err
		}

		remote, err := l.client.GetBlock(ctx, &n)
		if err != nil {
			return 0, 0, err
		}

		if stored.BlockHash == remote.ToHeader().BlockHash {
			return n, d, nil
		}
	}
	return 0, 0, fmt.Errorf("sync: revert depth exceeds safety bound of %d blocks", maxRevertDepth)
}

// revertTo rolls storage back so the header marker points at target+1,
// cascading each reverted block in the dependency order the storage
// layer requires: state diff, then body (with its event indices), then
// header. All blocks from the current tip down to target+1 are archived
// under one ommer epoch, so PruneOmmers can drop them together later.
func (l *Loop) revertTo(ctx context.Context, target starknet.BlockNumber) error {
	r, err := l.store.NewReader(ctx)
	if err != nil {
		return err
	}
	marker, err := r.Marker(starknet.MarkerHeader)
	r.Close()
	if err != nil {
		return err
	}
	if marker == 0 {
		return nil
	}
	tip := marker.Prev()
	if tip <= target {
		return nil
	}
	epoch := uint64(tip)

	w, err := l.store.NewWriter(ctx)
	if err != nil {
		return err
	}
	defer w.Rollback()

	for n := tip; n > target; n-- {
		if err := w.RevertStateDiff(n); err != nil {
			return fmt.Errorf("sync: reverting state diff %d: %w", n, err)
		}
		if err := w.RevertBody(n); err != nil {
			return fmt.Errorf("sync: reverting body %d: %w", n, err)
		}
		if err := w.RevertHeader(n, epoch); err != nil {
			return fmt.Errorf("sync: reverting header %d: %w", n, err)
		}
	}
	return w.Commit()
}
