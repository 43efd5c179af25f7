package commitment

import "github.com/starkware-libs/papyrus-sub004/pkg/starknet"

// BlockHashVersion selects which historical block-hash composite formula
// applies. Networks replayed from genesis must dispatch per block number
// rather than always using the latest version (SPEC_FULL.md "SUPPLEMENTED
// FEATURES").
type BlockHashVersion uint8

const (
	BlockHashV0 BlockHashVersion = iota
	BlockHashV1
	BlockHashV2
	BlockHashV3
)

// BlockHashVersionTable selects the formula version active at a block
// number. Real deployments fork at specific heights per network; here
// three caller-supplied activation heights (one each for V1, V2 and V3)
// stand in for the
// network-specific table the original keeps (crates/starknet_api
// block_hash.rs), since no per-network genesis manifest was retrieved.
type BlockHashVersionTable struct {
	V1ActivatesAt starknet.BlockNumber
	V2ActivatesAt starknet.BlockNumber
	V3ActivatesAt starknet.BlockNumber
}

// Version returns the formula version active at n.
func (t BlockHashVersionTable) Version(n starknet.BlockNumber) BlockHashVersion {
	switch {
	case n >= t.V3ActivatesAt:
		return BlockHashV3
	case n >= t.V2ActivatesAt:
		return BlockHashV2
	case n >= t.V1ActivatesAt:
		return BlockHashV1
	default:
		return BlockHashV0
	}
}

func feltsToField(fs []starknet.Felt) []FieldElement {
	out := make([]FieldElement, len(fs))
	for i, f := range fs {
		out[i] = FromFelt(f)
	}
	return out
}

// transactionSignature returns the signature felts a transaction's leaf
// chains in, per papyrus_common/src/block_hash.rs's get_transaction_leaf:
// versions before V3 only ever signed INVOKE transactions, so every other
// kind contributes an empty signature; V3 onward signs every kind (DEPLOY
// and L1_HANDLER still contribute an empty signature since they carry
// none in this domain model).
func transactionSignature(tx starknet.Transaction, version BlockHashVersion) []starknet.Felt {
	if version >= BlockHashV3 {
		return tx.Signature
	}
	if tx.Type == starknet.TxInvoke {
		return tx.Signature
	}
	return nil
}

// TransactionLeaf computes a single transaction's leaf value for the
// transaction commitment trie: Pedersen(transaction_hash, chain(signature))
// (spec §4.3, crates/papyrus_common/src/block_hash.rs's get_transaction_leaf).
func TransactionLeaf(tx starknet.Transaction, version BlockHashVersion) FieldElement {
	sig := feltsToField(transactionSignature(tx, version))
	return Pedersen(FromFelt(starknet.Felt(tx.Hash)), Chain(sig...))
}

// TransactionCommitment computes the root of the height-64 Patricia trie
// over per-transaction leaves, ordered by their index in the block body.
func TransactionCommitment(txs []starknet.Transaction, version BlockHashVersion) FieldElement {
	leaves := make([]FieldElement, len(txs))
	for i, tx := range txs {
		leaves[i] = TransactionLeaf(tx, version)
	}
	return Root(leaves)
}

// EventLeaf computes a single event's leaf: a Pedersen chain over the
// emitting address, the chained keys, and the chained data (spec §4.3).
func EventLeaf(ev starknet.Event) FieldElement {
	keysChain := Chain(feltsToField(ev.Keys)...)
	dataChain := Chain(feltsToField(ev.Data)...)
	return Chain(FromFelt(starknet.Felt(ev.FromAddress)), keysChain, dataChain)
}

// EventCommitment computes the root of the height-64 Patricia trie over
// every event emitted in the block, in transaction order and then
// emission order within a transaction.
func EventCommitment(outputs []starknet.TransactionOutput) FieldElement {
	var leaves []FieldElement
	for _, out := range outputs {
		for _, ev := range out.Events {
			leaves = append(leaves, EventLeaf(ev))
		}
	}
	return Root(leaves)
}

// stateDiffDAMode is the only data-availability mode this state-diff
// commitment version supports (crates/papyrus_common/src/
// state_diff_commitment.rs's StateDiffVersion::V0 ::supported_da_modes,
// DataAvailabilityMode::L1).
const stateDiffDAMode = 0

// StateDiffCommitment computes the state-diff commitment: a Poseidon
// array hash over [version, deployed_and_replaced, declared,
// deprecated_declared, num_da_modes, (da_mode, storage_and_nonces)...]
// (spec §4.3, crates/papyrus_common/src/state_diff_commitment.rs's
// calculate_state_diff_commitment). Deployed contracts and replaced
// classes are squashed into one counted, hashed sequence: the spec's
// note that "squashing assumes disjoint address sets" only makes sense
// once they're folded together rather than hashed separately.
func StateDiffCommitment(diff starknet.ThinStateDiff) FieldElement {
	deployedAndReplaced := make([]FieldElement, 0, 1+(len(diff.DeployedContracts)+len(diff.ReplacedClasses))*2)
	deployedAndReplaced = append(deployedAndReplaced, FromUint64(uint64(len(diff.DeployedContracts)+len(diff.ReplacedClasses))))
	for _, d := range diff.DeployedContracts {
		deployedAndReplaced = append(deployedAndReplaced, FromFelt(starknet.Felt(d.Address)), FromFelt(starknet.Felt(d.ClassHash)))
	}
	for _, r := range diff.ReplacedClasses {
		deployedAndReplaced = append(deployedAndReplaced, FromFelt(starknet.Felt(r.Address)), FromFelt(starknet.Felt(r.ClassHash)))
	}

	declared := make([]FieldElement, 0, 1+len(diff.DeclaredClasses)*2)
	declared = append(declared, FromUint64(uint64(len(diff.DeclaredClasses))))
	for _, d := range diff.DeclaredClasses {
		declared = append(declared, FromFelt(starknet.Felt(d.ClassHash)), FromFelt(starknet.Felt(d.CompiledClassHash)))
	}

	deprecated := make([]FieldElement, 0, 1+len(diff.DeprecatedDeclaredClasses))
	deprecated = append(deprecated, FromUint64(uint64(len(diff.DeprecatedDeclaredClasses))))
	for _, h := range diff.DeprecatedDeclaredClasses {
		deprecated = append(deprecated, FromFelt(starknet.Felt(h)))
	}

	storage := make([]FieldElement, 0, 1+len(diff.StorageDiffs)*2)
	storage = append(storage, FromUint64(uint64(len(diff.StorageDiffs))))
	for _, d := range diff.StorageDiffs {
		storage = append(storage, FromFelt(starknet.Felt(d.Address)), FromUint64(uint64(len(d.Entries))))
		for _, e := range d.Entries {
			storage = append(storage, FromFelt(starknet.Felt(e.Key)), FromFelt(e.Value))
		}
	}
	nonces := make([]FieldElement, 0, 1+len(diff.Nonces)*2)
	nonces = append(nonces, FromUint64(uint64(len(diff.Nonces))))
	for _, n := range diff.Nonces {
		nonces = append(nonces, FromFelt(starknet.Felt(n.Address)), FromFelt(starknet.Felt(n.Nonce)))
	}
	storageAndNonces := append(storage, nonces...)

	return PoseidonArray(
		Zero(), // state diff version
		PoseidonArray(deployedAndReplaced...),
		PoseidonArray(declared...),
		PoseidonArray(deprecated...),
		FromUint64(1), // num_da_modes
		FromUint64(stateDiffDAMode),
		PoseidonArray(storageAndNonces...),
	)
}

// ReceiptLeaf computes a transaction output's leaf for the receipt
// commitment trie: a Pedersen chain over the actual fee, a reverted flag
// (1 when the execution status is reverted, else 0), the L2-to-L1 message
// count, and the event count.
func ReceiptLeaf(out starknet.TransactionOutput) FieldElement {
	revertFlag := FromUint64(0)
	if out.Status == starknet.ExecutionReverted {
		revertFlag = FromUint64(1)
	}
	return Chain(
		FromFelt(out.ActualFee),
		revertFlag,
		FromUint64(uint64(len(out.MessagesL2ToL1))),
		FromUint64(uint64(len(out.Events))),
	)
}

// ReceiptCommitment computes the root of the height-64 Patricia trie over
// per-transaction receipt leaves, in block body order.
func ReceiptCommitment(outputs []starknet.TransactionOutput) FieldElement {
	leaves := make([]FieldElement, len(outputs))
	for i, out := range outputs {
		leaves[i] = ReceiptLeaf(out)
	}
	return Root(leaves)
}

// BlockHash computes the block's own hash from its header, the body it
// was mined with (for the transaction/event counts the header alone
// doesn't carry) and chainID, dispatching on version per spec §4.3
// (crates/papyrus_common/src/block_hash.rs's
// calculate_block_hash_by_version). The chain is, in order: block
// number, state root, sequencer address, timestamp (V0 chains zero
// instead), transaction count, transaction commitment, event count,
// event commitment, two reserved zero elements, the chain id (V0 only),
// and the parent hash.
//
// The sequencer-address term always uses the header's own field rather
// than the original's fixed historic address for V2 on specific
// networks (get_chain_sequencer_address): no per-network genesis
// manifest giving those addresses was retrieved, so this node always
// reproduces the address the source reported for that block instead.
// chainID is similarly a bare integer rather than the original's
// ASCII short-string encoding, since no multi-network chain-id registry
// was retrieved either.
func BlockHash(h starknet.BlockHeader, body starknet.BlockBody, version BlockHashVersion, chainID uint64) starknet.Felt {
	var numEvents int
	for _, out := range body.Outputs {
		numEvents += len(out.Events)
	}

	c := NewChainBuilder().
		ChainNext(FromUint64(uint64(h.BlockNumber))).
		ChainNext(FromFelt(h.StateRoot)).
		ChainNext(FromFelt(starknet.Felt(h.SequencerAddress))).
		ChainIf(version >= BlockHashV1, FromUint64(h.Timestamp)).
		ChainIf(version < BlockHashV1, Zero()).
		ChainNext(FromUint64(uint64(len(body.Transactions)))).
		ChainNext(FromFelt(h.Commitments.TransactionCommitment)).
		ChainNext(FromUint64(uint64(numEvents))).
		ChainNext(FromFelt(h.Commitments.EventCommitment)).
		ChainNext(Zero()).
		ChainNext(Zero()).
		ChainIf(version == BlockHashV0, FromUint64(chainID)).
		ChainNext(FromFelt(starknet.Felt(h.ParentHash)))
	return c.Finish().ToFelt()
}
