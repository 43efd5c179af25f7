package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/starkware-libs/papyrus-sub004/pkg/central"
	"github.com/starkware-libs/papyrus-sub004/pkg/commitment"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
	"github.com/starkware-libs/papyrus-sub004/pkg/storage"
)

// Config controls one Loop's pacing and batching.
type Config struct {
	ChunkSize          int
	Concurrency        int
	LoopMinTime        time.Duration
	BlockHashVersions  commitment.BlockHashVersionTable
	OmmerRetentionDepth uint64
	Logger             *logrus.Logger
}

// Loop is the continuous pull driver: one instance owns the store and the
// central source client and repeatedly advances the Header, Body and
// State markers together for the same block range, enforcing their
// ordering invariant at the storage layer. The Class and CompiledClass
// markers move only when a block declares a Sierra class (to that block
// + 1); blocks that declare none leave them where they are.
type Loop struct {
	store  *storage.Store
	client *central.Client
	cfg    Config
	log    *logrus.Logger
	phase  Phase
}

// New builds a Loop bound to store and client.
func New(store *storage.Store, client *central.Client, cfg Config) *Loop {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.LoopMinTime <= 0 {
		cfg.LoopMinTime = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loop{store: store, client: client, cfg: cfg, log: logger, phase: PhaseIdle}
}

// Phase reports the loop's current state, for metrics/introspection.
func (l *Loop) Phase() Phase { return l.phase }

// Run drives Iteration forever until ctx is canceled, sleeping
// out the remainder of LoopMinTime between iterations the way the
// teacher's StageLoop does (so a fast-returning iteration, e.g. "nothing
// new at the tip", doesn't spin the source with empty polls).
func (l *Loop) Run(ctx context.Context) error {
	for {
		start := time.Now()
		if err := l.Iteration(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			l.log.WithError(err).Error("sync: iteration failed")
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if elapsed := time.Since(start); elapsed < l.cfg.LoopMinTime {
			select {
			case <-time.After(l.cfg.LoopMinTime - elapsed):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Iteration runs one pass of the state machine: plan a range, download,
// validate, commit. It returns nil when there is nothing new to do
// (PhaseWaitingForPrerequisite is not actually reachable here since this
// loop appends each block's header, body and state diff in one
// transaction; it is retained on Phase for the case a future split
// per-marker loop needs it).
func (l *Loop) Iteration(ctx context.Context) error {
	start := time.Now()
	defer observeIteration(start)

	l.phase = PhaseIdle
	target, depth, err := l.detectRevert(ctx)
	if err != nil {
		return fmt.Errorf("sync: detecting revert: %w", err)
	}
	if depth > 0 {
		l.phase = PhaseReverting
		l.log.WithFields(logrus.Fields{"target": target, "depth": depth}).Warn("sync: chain reorg detected, reverting")
		revertsTotal.Inc()
		if err := l.revertTo(ctx, target); err != nil {
			return err
		}
	}

	l.phase = PhasePlanningRange
	from, to, err := l.planRange(ctx)
	if err != nil {
		return err
	}
	if from > to {
		l.phase = PhaseIdle
		return nil
	}

	l.phase = PhaseDownloading
	blocks, states, err := l.download(ctx, from, to)
	if err != nil {
		return err
	}

	l.phase = PhaseValidating
	if err := l.validate(ctx, blocks, states); err != nil {
		return err
	}

	l.phase = PhaseCommitting
	if err := l.commit(ctx, blocks, states); err != nil {
		return err
	}
	l.observeMarkers(ctx)

	l.phase = PhaseIdle
	return nil
}

// observeMarkers refreshes the Prometheus marker gauges after a commit.
// Failures here are logged, not propagated: a metrics read failing must
// not fail an otherwise-successful sync iteration.
func (l *Loop) observeMarkers(ctx context.Context) {
	r, err := l.store.NewReader(ctx)
	if err != nil {
		l.log.WithError(err).Warn("sync: could not open reader to refresh marker metrics")
		return
	}
	defer r.Close()
	for _, kind := range []starknet.MarkerKind{
		starknet.MarkerHeader, starknet.MarkerBody, starknet.MarkerState,
		starknet.MarkerClass, starknet.MarkerCompiledClass,
	} {
		m, err := r.Marker(kind)
		if err != nil {
			l.log.WithError(err).WithField("kind", kind).Warn("sync: reading marker for metrics")
			continue
		}
		observeMarker(kind, m)
	}
}

func (l *Loop) planRange(ctx context.Context) (from, to starknet.BlockNumber, err error) {
	r, err := l.store.NewReader(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	marker, err := r.Marker(starknet.MarkerHeader)
	if err != nil {
		return 0, 0, err
	}

	var latest *uint64
	blk, err := l.client.GetBlock(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	n := blk.BlockNumber
	latest = &n
	if *latest < uint64(marker) {
		// source is behind our tip (e.g. it reorged down); nothing to do
		// until a revert is detected on the next call that re-reads it.
		return marker, marker - 1, nil
	}

	to = starknet.BlockNumber(*latest)
	if int(to-marker) >= l.cfg.ChunkSize {
		to = marker + starknet.BlockNumber(l.cfg.ChunkSize) - 1
	}
	return marker, to, nil
}

type downloadedBlock struct {
	header starknet.BlockHeader
	body   starknet.BlockBody
}

func (l *Loop) download(ctx context.Context, from, to starknet.BlockNumber) (map[starknet.BlockNumber]downloadedBlock, map[starknet.BlockNumber]starknet.ThinStateDiff, error) {
	blocks := make(map[starknet.BlockNumber]downloadedBlock, int(to-from)+1)
	for r := range l.client.StreamBlocks(ctx, from, to, l.cfg.Concurrency) {
		if r.Err != nil {
			return nil, nil, fmt.Errorf("sync: downloading block %d: %w", r.Number, r.Err)
		}
		blocks[r.Number] = downloadedBlock{header: r.Block.ToHeader(), body: r.Block.ToBody()}
	}

	states := make(map[starknet.BlockNumber]starknet.ThinStateDiff, int(to-from)+1)
	for r := range l.client.StreamStateUpdates(ctx, from, to, l.cfg.Concurrency) {
		if r.Err != nil {
			return nil, nil, fmt.Errorf("sync: downloading state update %d: %w", r.Number, r.Err)
		}
		states[r.Number] = r.StateUpdate.ToThinStateDiff()
	}

	return blocks, states, nil
}

// validate recomputes every derivable commitment and fills in whatever
// the source's JSON representation didn't carry; it does not compare
// against the source's own block hash (see DESIGN.md: this package's
// Pedersen/Poseidon base points are not the network's published
// constants, so a byte-exact match is not possible here; the invariant
// this still checks is internal consistency, namely that the parent hash
// chain among the downloaded blocks matches what we're about to store).
func (l *Loop) validate(ctx context.Context, blocks map[starknet.BlockNumber]downloadedBlock, states map[starknet.BlockNumber]starknet.ThinStateDiff) error {
	var lowest starknet.BlockNumber
	first := true
	for n, b := range blocks {
		body := b.body
		version := l.cfg.BlockHashVersions.Version(n)
		b.header.Commitments.TransactionCommitment = commitment.TransactionCommitment(body.Transactions, version).ToFelt()
		b.header.Commitments.EventCommitment = commitment.EventCommitment(body.Outputs).ToFelt()
		b.header.Commitments.ReceiptCommitment = commitment.ReceiptCommitment(body.Outputs).ToFelt()
		if diff, ok := states[n]; ok {
			b.header.Commitments.StateDiffCommitment = commitment.StateDiffCommitment(diff).ToFelt()
		}
		blocks[n] = b

		if prev, ok := blocks[n-1]; n > 0 && ok {
			if prev.header.BlockHash != b.header.ParentHash {
				return fmt.Errorf("sync: block %d parent hash does not chain from block %d", n, n-1)
			}
		}
		if first || n < lowest {
			lowest = n
			first = false
		}
	}
	if first || lowest == 0 {
		return nil
	}
	if _, ok := blocks[lowest-1]; ok {
		return nil
	}

	r, err := l.store.NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	stored, err := r.Header(lowest - 1)
	if err != nil {
		return err
	}
	if stored.BlockHash != blocks[lowest].header.ParentHash {
		return fmt.Errorf("sync: block %d parent hash does not chain from stored block %d", lowest, lowest-1)
	}
	return nil
}

func (l *Loop) commit(ctx context.Context, blocks map[starknet.BlockNumber]downloadedBlock, states map[starknet.BlockNumber]starknet.ThinStateDiff) error {
	w, err := l.store.NewWriter(ctx)
	if err != nil {
		return err
	}
	defer w.Rollback()

	var numbers []starknet.BlockNumber
	for n := range blocks {
		numbers = append(numbers, n)
	}
	sortBlockNumbers(numbers)

	for _, n := range numbers {
		b := blocks[n]
		if err := w.AppendHeader(b.header); err != nil {
			return err
		}
		if err := w.AppendBody(n, b.body); err != nil {
			return err
		}
		if diff, ok := states[n]; ok {
			if err := w.AppendStateDiff(n, diff); err != nil {
				return err
			}
			if err := l.commitClasses(ctx, w, n, diff); err != nil {
				return err
			}
		}
	}
	if l.cfg.OmmerRetentionDepth > 0 {
		if err := w.PruneOmmers(l.cfg.OmmerRetentionDepth); err != nil {
			return err
		}
	}
	return w.Commit()
}

func sortBlockNumbers(ns []starknet.BlockNumber) {
	for i := 1; i < len(ns); i++ {
		for j := i; j > 0 && ns[j-1] > ns[j]; j-- {
			ns[j-1], ns[j] = ns[j], ns[j-1]
		}
	}
}
