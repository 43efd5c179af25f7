package memkv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/papyrus-sub004/pkg/kv"
	"github.com/starkware-libs/papyrus-sub004/pkg/kv/memkv"
)

func testSchema() kv.TableCfg {
	return kv.TableCfg{
		"simple": {Flags: kv.Default},
		"dup":    {Flags: kv.DupSort},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	env := memkv.Open(kv.EnvOptions{ChainID: 1, Tables: testSchema()})
	ctx := context.Background()

	require.NoError(t, env.Update(ctx, func(tx kv.RwTx) error {
		return tx.Put("simple", []byte("a"), []byte("1"))
	}))

	require.NoError(t, env.View(ctx, func(tx kv.Tx) error {
		v, err := tx.Get("simple", []byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), v)
		return nil
	}))
}

func TestReaderIsolatedFromInFlightWriter(t *testing.T) {
	env := memkv.Open(kv.EnvOptions{ChainID: 1, Tables: testSchema()})
	ctx := context.Background()

	rw, err := env.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, rw.Put("simple", []byte("a"), []byte("1")))

	// A reader opened before commit must not observe the uncommitted write.
	ro, err := env.BeginRo(ctx)
	require.NoError(t, err)
	v, err := ro.Get("simple", []byte("a"))
	require.NoError(t, err)
	require.Nil(t, v)
	ro.Rollback()

	require.NoError(t, rw.Commit())

	ro2, err := env.BeginRo(ctx)
	require.NoError(t, err)
	v2, err := ro2.Get("simple", []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v2)
	ro2.Rollback()
}

func TestDupSortOrderingAndCursor(t *testing.T) {
	env := memkv.Open(kv.EnvOptions{ChainID: 1, Tables: testSchema()})
	ctx := context.Background()

	require.NoError(t, env.Update(ctx, func(tx kv.RwTx) error {
		for _, v := range []string{"c", "a", "b"} {
			if err := tx.Put("dup", []byte("k"), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, env.View(ctx, func(tx kv.Tx) error {
		c, err := tx.CursorDupSort("dup")
		require.NoError(t, err)
		defer c.Close()

		_, _, err = c.First()
		require.NoError(t, err)

		v, err := c.FirstDup()
		require.NoError(t, err)
		require.Equal(t, []byte("a"), v)

		_, v, err = c.NextDup()
		require.NoError(t, err)
		require.Equal(t, []byte("b"), v)

		n, err := c.CountDuplicates()
		require.NoError(t, err)
		require.Equal(t, uint64(3), n)
		return nil
	}))
}
