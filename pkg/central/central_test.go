package central

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-sub004/pkg/starknet"
)

func TestGetBlockDecodesAndConvertsToDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/feeder_gateway/get_block", r.URL.Path)
		json.NewEncoder(w).Encode(GatewayBlock{
			BlockNumber:     5,
			BlockHash:       "0x1a",
			ParentBlockHash: "0x1",
			Timestamp:       123,
		})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	n := starknet.BlockNumber(5)
	blk, err := c.GetBlock(context.Background(), &n)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), blk.BlockNumber)

	h := blk.ToHeader()
	assert.Equal(t, starknet.BlockNumber(5), h.BlockNumber)
	assert.Equal(t, byte(0x1a), h.BlockHash[31])
}

func TestGetBlockPropagatesStarknetError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(StarknetError{Code: ErrBlockNotFound, Message: "no such block"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.GetBlock(context.Background(), nil)
	require.Error(t, err)
	var se *StarknetError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrBlockNotFound, se.Code)
}

func TestStreamBlocksDeliversInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := r.URL.Query().Get("blockNumber")
		var num uint64
		json.Unmarshal([]byte(n), &num)
		json.NewEncoder(w).Encode(GatewayBlock{BlockNumber: num})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ch := c.StreamBlocks(context.Background(), 0, 9, 4)
	var got []uint64
	for r := range ch {
		require.NoError(t, r.Err)
		got = append(got, r.Block.BlockNumber)
	}
	require.Len(t, got, 10)
	for i, v := range got {
		assert.Equal(t, uint64(i), v)
	}
}

func TestGetClassByHashCachesResult(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(GatewayClass{})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	hash := starknet.ClassHash{1}
	_, err = c.GetClassByHash(context.Background(), hash)
	require.NoError(t, err)
	_, err = c.GetClassByHash(context.Background(), hash)
	require.NoError(t, err)

	assert.Equal(t, 1, requests)
}

func TestHexToFeltHandlesOddLengthAndPrefix(t *testing.T) {
	f := hexToFelt("0x1a")
	assert.Equal(t, byte(0x1a), f[31])

	f2 := hexToFelt("0xa")
	assert.Equal(t, byte(0x0a), f2[31])

	f3 := hexToFelt("")
	assert.Equal(t, starknet.Felt{}, f3)
}
