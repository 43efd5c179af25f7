package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/memkv"
	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := memkv.Open(kv.EnvOptions{ChainID: 1, Tables: kv.Schema})
	s, err := Open(db, Options{BlobDir: t.TempDir(), BlobGrowthStep: 4096, BlobMaxSize: 1 << 30})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleHeader(n starknet.BlockNumber) starknet.BlockHeader {
	h := starknet.BlockHeader{BlockNumber: n, Timestamp: 1000 + uint64(n)}
	h.BlockHash[31] = byte(n + 1)
	if n > 0 {
		h.ParentHash[31] = byte(n)
	}
	return h
}

func TestAppendHeaderEnforcesMarker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.NewWriter(ctx)
	require.NoError(t, err)

	err = w.AppendHeader(sampleHeader(1))
	assert.ErrorIs(t, err, kv.ErrMarkerMismatch, "appending at block 1 before block 0 must fail")

	require.NoError(t, w.AppendHeader(sampleHeader(0)))
	require.NoError(t, w.Commit())

	r, err := s.NewReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	marker, err := r.Marker(starknet.MarkerHeader)
	require.NoError(t, err)
	assert.Equal(t, starknet.BlockNumber(1), marker)

	got, err := r.Header(0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleHeader(0).BlockHash, got.BlockHash)
}

func TestAppendBodyRequiresHeaderFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.NewWriter(ctx)
	require.NoError(t, err)

	body := starknet.BlockBody{
		Transactions: []starknet.Transaction{{Type: starknet.TxInvoke}},
		Outputs:      []starknet.TransactionOutput{{}},
	}
	err = w.AppendBody(0, body)
	assert.ErrorIs(t, err, kv.ErrMarkerMismatch)
}

func TestFullBlockRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.NewWriter(ctx)
	require.NoError(t, err)

	h := sampleHeader(0)
	require.NoError(t, w.AppendHeader(h))

	var txHash starknet.TransactionHash
	txHash[31] = 7
	var fromAddr starknet.Address
	fromAddr[31] = 9
	body := starknet.BlockBody{
		Transactions: []starknet.Transaction{{Hash: txHash, Type: starknet.TxInvoke, Version: 1}},
		Outputs: []starknet.TransactionOutput{{
			Events: []starknet.Event{{FromAddress: fromAddr, Keys: []starknet.Felt{{1}}, Data: []starknet.Felt{{2}}}},
		}},
	}
	require.NoError(t, w.AppendBody(0, body))

	diff := starknet.ThinStateDiff{
		DeployedContracts: []starknet.DeployedContract{{Address: fromAddr, ClassHash: starknet.ClassHash{3}}},
		Nonces:            []starknet.ContractNonce{{Address: fromAddr, Nonce: starknet.Nonce{4}}},
		StorageDiffs: []starknet.ContractStorageDiff{{
			Address: fromAddr,
			Entries: []starknet.StorageEntry{{Key: starknet.StorageKey{5}, Value: starknet.Felt{6}}},
		}},
	}
	require.NoError(t, w.AppendStateDiff(0, diff))
	require.NoError(t, w.Commit())

	r, err := s.NewReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	gotBody, err := r.Body(0)
	require.NoError(t, err)
	require.Len(t, gotBody.Transactions, 1)
	assert.Equal(t, txHash, gotBody.Transactions[0].Hash)
	assert.Equal(t, fromAddr, gotBody.Outputs[0].Events[0].FromAddress)

	byHash, err := r.TransactionByHash(txHash)
	require.NoError(t, err)
	require.NotNil(t, byHash)
	assert.Equal(t, starknet.TxInvoke, byHash.Type)

	gotDiff, err := r.StateDiff(0)
	require.NoError(t, err)
	require.Len(t, gotDiff.DeployedContracts, 1)
	assert.Equal(t, starknet.ClassHash{3}, gotDiff.DeployedContracts[0].ClassHash)

	classHash, err := r.ClassHashAt(fromAddr, starknet.StateNumberRightAfter(0))
	require.NoError(t, err)
	require.NotNil(t, classHash)
	assert.Equal(t, starknet.ClassHash{3}, *classHash)

	beforeClassHash, err := r.ClassHashAt(fromAddr, starknet.StateNumberRightBefore(0))
	require.NoError(t, err)
	assert.Nil(t, beforeClassHash, "nothing is deployed yet right before block 0")

	storageVal, err := r.StorageAt(fromAddr, starknet.StorageKey{5}, starknet.StateNumberRightAfter(0))
	require.NoError(t, err)
	require.NotNil(t, storageVal)
	assert.Equal(t, starknet.Felt{6}, *storageVal)

	page, err := r.Events(EventFilter{FromAddress: fromAddr, FromBlock: 0, ToBlock: 0, ChunkSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, starknet.Felt{1}, page.Events[0].Keys[0])
}

func TestRevertHeaderOnlyAcceptsTip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.NewWriter(ctx)
	require.NoError(t, err)
	require.NoError(t, w.AppendHeader(sampleHeader(0)))
	require.NoError(t, w.AppendHeader(sampleHeader(1)))
	require.NoError(t, w.Commit())

	w2, err := s.NewWriter(ctx)
	require.NoError(t, err)
	err = w2.RevertHeader(0, 1)
	assert.ErrorIs(t, err, kv.ErrBlockNumberOutOfRange, "block 0 is not the tip while marker is at 2")

	require.NoError(t, w2.RevertHeader(1, 1))
	require.NoError(t, w2.Commit())

	r, err := s.NewReader(ctx)
	require.NoError(t, err)
	defer r.Close()
	marker, err := r.Marker(starknet.MarkerHeader)
	require.NoError(t, err)
	assert.Equal(t, starknet.BlockNumber(1), marker)

	got, err := r.Header(1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRollbackTruncatesBlobFileWriteHead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := s.blobs[kv.BlobThinStateDiff].NextOffset()

	w, err := s.NewWriter(ctx)
	require.NoError(t, err)
	require.NoError(t, w.AppendHeader(sampleHeader(0)))
	require.NoError(t, w.AppendBody(0, starknet.BlockBody{}))
	diff := starknet.ThinStateDiff{
		DeployedContracts: []starknet.DeployedContract{{Address: starknet.Address{1}, ClassHash: starknet.ClassHash{2}}},
	}
	require.NoError(t, w.AppendStateDiff(0, diff))
	assert.Greater(t, s.blobs[kv.BlobThinStateDiff].NextOffset(), before)

	w.Rollback()
	assert.Equal(t, before, s.blobs[kv.BlobThinStateDiff].NextOffset(),
		"rollback must truncate the blob file write head back to its pre-transaction offset")

	w2, err := s.NewWriter(ctx)
	require.NoError(t, err)
	require.NoError(t, w2.AppendHeader(sampleHeader(0)))
	require.NoError(t, w2.AppendBody(0, starknet.BlockBody{}))
	require.NoError(t, w2.AppendStateDiff(0, diff))
	require.NoError(t, w2.Commit())
}

func TestClassAndCompiledClassRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.NewWriter(ctx)
	require.NoError(t, err)

	class := starknet.ContractClass{
		ClassHash:     starknet.ClassHash{9},
		DeclaredAt:    0,
		SierraProgram: []starknet.Felt{{1}, {2}},
		EntryPoints: map[starknet.EntryPointType][]starknet.EntryPoint{
			starknet.EntryPointExternal: {{Selector: starknet.Felt{3}, Offset: 10}},
		},
		ContractClassVersion: "0.1.0",
	}
	require.NoError(t, w.AppendSierraClass(class))

	casm := starknet.CompiledClass{
		ClassHash:  starknet.ClassHash{9},
		CompiledAt: 0,
		Bytecode:   []starknet.Felt{{4}},
		EntryPoints: map[starknet.EntryPointType][]starknet.CompiledEntryPoint{
			starknet.EntryPointExternal: {{Selector: starknet.Felt{3}, Offset: 10, Builtins: []string{"range_check"}}},
		},
	}
	require.NoError(t, w.AppendCompiledClass(casm))
	require.NoError(t, w.Commit())

	r, err := s.NewReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	gotClass, err := r.SierraClass(starknet.ClassHash{9})
	require.NoError(t, err)
	require.NotNil(t, gotClass)
	assert.Equal(t, "0.1.0", gotClass.ContractClassVersion)
	assert.Equal(t, []starknet.Felt{{1}, {2}}, gotClass.SierraProgram)

	gotCasm, err := r.CompiledClass(starknet.ClassHash{9})
	require.NoError(t, err)
	require.NotNil(t, gotCasm)
	assert.Equal(t, []string{"range_check"}, gotCasm.EntryPoints[starknet.EntryPointExternal][0].Builtins)
}
