package commitment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

func TestRootBoundaryBehaviors(t *testing.T) {
	assert.True(t, Root(nil).Equal(Zero()), "empty leaf set must hash to the zero element")

	v := FromUint64(42)
	assert.True(t, Root([]FieldElement{v}).Equal(v), "a single leaf must be its own root")
}

func TestRootIsOrderSensitive(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)
	c := FromUint64(3)

	r1 := Root([]FieldElement{a, b, c})
	r2 := Root([]FieldElement{a, c, b})
	assert.False(t, r1.Equal(r2), "swapping two leaves must change the root")
}

func TestRootIsDeterministic(t *testing.T) {
	leaves := []FieldElement{FromUint64(10), FromUint64(20), FromUint64(30), FromUint64(40)}
	r1 := Root(leaves)
	r2 := Root(leaves)
	assert.True(t, r1.Equal(r2))
}

func TestIncrementalBuilderMatchesBatchRoot(t *testing.T) {
	leaves := []FieldElement{FromUint64(5), FromUint64(6), FromUint64(7)}

	b := NewIncrementalBuilder()
	for _, v := range leaves {
		b.Append(v)
	}
	require.Equal(t, len(leaves), b.Len())
	assert.True(t, b.Root().Equal(Root(leaves)))
}

func TestPedersenIsNotCommutative(t *testing.T) {
	a := FromUint64(3)
	b := FromUint64(9)
	assert.False(t, Pedersen(a, b).Equal(Pedersen(b, a)))
}

func TestPedersenIsDeterministic(t *testing.T) {
	a := FromUint64(123456)
	b := FromUint64(654321)
	assert.True(t, Pedersen(a, b).Equal(Pedersen(a, b)))
}

func TestChainDistinguishesTrailingZeros(t *testing.T) {
	short := Chain(FromUint64(1), FromUint64(2))
	long := Chain(FromUint64(1), FromUint64(2), FromUint64(0))
	assert.False(t, short.Equal(long), "length augmentation must distinguish a trailing zero from a shorter sequence")
}

func TestChainBuilderMatchesChain(t *testing.T) {
	vs := []FieldElement{FromUint64(7), FromUint64(8), FromUint64(9)}
	want := Chain(vs...)

	got := NewChainBuilder().ChainIter(vs).Finish()
	assert.True(t, got.Equal(want))
}

func TestChainBuilderChainIfSkipsWhenFalse(t *testing.T) {
	base := NewChainBuilder().ChainNext(FromUint64(1)).Finish()
	withSkip := NewChainBuilder().ChainNext(FromUint64(1)).ChainIf(false, FromUint64(99)).Finish()
	assert.True(t, base.Equal(withSkip))
}

func TestPoseidonArrayIsOrderSensitive(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)
	r1 := PoseidonArray(a, b)
	r2 := PoseidonArray(b, a)
	assert.False(t, r1.Equal(r2))
}

func TestPoseidonArrayEmptyIsDeterministic(t *testing.T) {
	assert.True(t, PoseidonArray().Equal(PoseidonArray()))
}

func TestFieldFromFeltRoundTrip(t *testing.T) {
	var f [32]byte
	f[31] = 0x2a
	el := FromFelt(f)
	assert.Equal(t, uint64(0x2a), el.Uint64())
	assert.Equal(t, f, [32]byte(el.ToFelt()))
}

func TestTransactionLeafIgnoresSignatureForNonInvokeBeforeV3(t *testing.T) {
	withSig := starknet.Transaction{Type: starknet.TxDeployAccount, Signature: []starknet.Felt{{1}}}
	withoutSig := starknet.Transaction{Type: starknet.TxDeployAccount}
	assert.True(t, TransactionLeaf(withSig, BlockHashV2).Equal(TransactionLeaf(withoutSig, BlockHashV2)))
}

func TestTransactionLeafUsesSignatureForInvokeBeforeV3(t *testing.T) {
	withSig := starknet.Transaction{Type: starknet.TxInvoke, Signature: []starknet.Felt{{1}}}
	withoutSig := starknet.Transaction{Type: starknet.TxInvoke}
	assert.False(t, TransactionLeaf(withSig, BlockHashV2).Equal(TransactionLeaf(withoutSig, BlockHashV2)))
}

func TestTransactionLeafUsesSignatureForEveryKindAtV3(t *testing.T) {
	withSig := starknet.Transaction{Type: starknet.TxDeployAccount, Signature: []starknet.Felt{{1}}}
	withoutSig := starknet.Transaction{Type: starknet.TxDeployAccount}
	assert.False(t, TransactionLeaf(withSig, BlockHashV3).Equal(TransactionLeaf(withoutSig, BlockHashV3)))
}

func TestStateDiffCommitmentSquashesDeployedAndReplaced(t *testing.T) {
	deployed := starknet.ThinStateDiff{
		DeployedContracts: []starknet.DeployedContract{{Address: starknet.Address{1}, ClassHash: starknet.ClassHash{2}}},
	}
	replaced := starknet.ThinStateDiff{
		ReplacedClasses: []starknet.ReplacedClass{{Address: starknet.Address{1}, ClassHash: starknet.ClassHash{2}}},
	}
	assert.True(t, StateDiffCommitment(deployed).Equal(StateDiffCommitment(replaced)),
		"a squashed sequence must hash the same whether the entry arrived as deployed or replaced")
}

func TestStateDiffCommitmentIsSensitiveToStorageValues(t *testing.T) {
	base := starknet.ThinStateDiff{
		StorageDiffs: []starknet.ContractStorageDiff{{
			Address: starknet.Address{1},
			Entries: []starknet.StorageEntry{{Key: starknet.StorageKey{2}, Value: starknet.Felt{3}}},
		}},
	}
	changed := base
	changed.StorageDiffs = []starknet.ContractStorageDiff{{
		Address: starknet.Address{1},
		Entries: []starknet.StorageEntry{{Key: starknet.StorageKey{2}, Value: starknet.Felt{4}}},
	}}
	assert.False(t, StateDiffCommitment(base).Equal(StateDiffCommitment(changed)))
}

func TestBlockHashChainsChainIDOnlyAtV0(t *testing.T) {
	h := starknet.BlockHeader{BlockNumber: 1}
	v0 := BlockHash(h, starknet.BlockBody{}, BlockHashV0, 99)
	v1 := BlockHash(h, starknet.BlockBody{}, BlockHashV1, 99)
	v0Other := BlockHash(h, starknet.BlockBody{}, BlockHashV0, 100)
	assert.NotEqual(t, v0, v1)
	assert.NotEqual(t, v0, v0Other, "chain id must affect the V0 hash")

	v1Other := BlockHash(h, starknet.BlockBody{}, BlockHashV1, 100)
	assert.Equal(t, v1, v1Other, "chain id must not affect hashes from V1 onward")
}

func TestBlockHashIsSensitiveToTransactionCount(t *testing.T) {
	h := starknet.BlockHeader{BlockNumber: 1}
	empty := BlockHash(h, starknet.BlockBody{}, BlockHashV2, 1)
	withTx := BlockHash(h, starknet.BlockBody{Transactions: []starknet.Transaction{{}}, Outputs: []starknet.TransactionOutput{{}}}, BlockHashV2, 1)
	assert.NotEqual(t, empty, withTx)
}

func TestBlockHashVersionTableSelectsByActivation(t *testing.T) {
	table := BlockHashVersionTable{V1ActivatesAt: 10, V2ActivatesAt: 20, V3ActivatesAt: 30}
	assert.Equal(t, BlockHashV0, table.Version(0))
	assert.Equal(t, BlockHashV0, table.Version(9))
	assert.Equal(t, BlockHashV1, table.Version(10))
	assert.Equal(t, BlockHashV1, table.Version(19))
	assert.Equal(t, BlockHashV2, table.Version(20))
	assert.Equal(t, BlockHashV3, table.Version(30))
	assert.Equal(t, BlockHashV3, table.Version(1000))
}
