package syncstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xfullStack/Cryptoless/internal/syncstore"
)

func TestStore(t *testing.T) {
	t.Run("UpsertAndList", testUpsertAndList())
	t.Run("Watermark", testWatermark())
	t.Run("Persistence", testPersistence())
	t.Run("Close", testClose())
}

func testUpsertAndList() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		store, err := syncstore.NewStore("", nil)
		require.NoError(t, err)
		defer store.Close()

		err = store.Upsert(ctx, []syncstore.Record{
			{Collection: syncstore.Networks, ID: "eth", UpdatedTime: 10, Payload: []byte(`{"id":"eth"}`)},
			{Collection: syncstore.Networks, ID: "btc", UpdatedTime: 20, Payload: []byte(`{"id":"btc"}`)},
			{Collection: syncstore.Coins, ID: "eth", UpdatedTime: 30, Payload: []byte(`{"id":"eth"}`)},
		})
		require.NoError(t, err)

		networks, err := store.List(ctx, syncstore.Networks)
		require.NoError(t, err)
		require.Len(t, networks, 2)
		require.Equal(t, "btc", networks[0].ID)
		require.Equal(t, "eth", networks[1].ID)

		err = store.Upsert(ctx, []syncstore.Record{
			{Collection: syncstore.Networks, ID: "eth", UpdatedTime: 40, Payload: []byte(`{"id":"eth","name":"Ethereum"}`)},
		})
		require.NoError(t, err)

		record, err := store.Get(ctx, syncstore.Networks, "eth")
		require.NoError(t, err)
		require.Equal(t, uint64(40), record.UpdatedTime)
		require.JSONEq(t, `{"id":"eth","name":"Ethereum"}`, string(record.Payload))

		networks, err = store.List(ctx, syncstore.Networks)
		require.NoError(t, err)
		require.Len(t, networks, 2)

		_, err = store.Get(ctx, syncstore.Holders, "eth")
		require.ErrorIs(t, err, syncstore.ErrRecordNotFound)

		holders, err := store.List(ctx, syncstore.Holders)
		require.NoError(t, err)
		require.Empty(t, holders)
	}
}

func testWatermark() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		store, err := syncstore.NewStore("", nil)
		require.NoError(t, err)
		defer store.Close()

		wm, err := store.Watermark(ctx, syncstore.Coins)
		require.NoError(t, err)
		require.Zero(t, wm)

		require.NoError(t, store.SetWatermark(ctx, syncstore.Coins, 1655287200))
		require.NoError(t, store.SetWatermark(ctx, syncstore.Holders, 1))

		wm, err = store.Watermark(ctx, syncstore.Coins)
		require.NoError(t, err)
		require.Equal(t, uint64(1655287200), wm)
	}
}

func testPersistence() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		store, err := syncstore.NewStore(dir, nil)
		require.NoError(t, err)
		require.NoError(t, store.SetWatermark(ctx, syncstore.Stakings, 5))
		require.NoError(t, store.Close())

		store, err = syncstore.NewStore(dir, nil)
		require.NoError(t, err)
		defer store.Close()

		wm, err := store.Watermark(ctx, syncstore.Stakings)
		require.NoError(t, err)
		require.Equal(t, uint64(5), wm)
	}
}

func testClose() func(*testing.T) {
	return func(t *testing.T) {
		dir := t.TempDir()

		store, err := syncstore.NewStore(dir, nil)
		require.NoError(t, err)
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		// The db lock is released, the directory can be opened again.
		store, err = syncstore.NewStore(dir, nil)
		require.NoError(t, err)
		require.NoError(t, store.Close())
	}
}

func TestParseCollection(t *testing.T) {
	c, err := syncstore.ParseCollection("holders")
	require.NoError(t, err)
	require.Equal(t, syncstore.Holders, c)

	_, err = syncstore.ParseCollection("markets")
	require.Error(t, err)
}
