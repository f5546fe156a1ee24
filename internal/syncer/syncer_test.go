package syncer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xfullStack/Cryptoless/internal/syncer"
	"github.com/0xfullStack/Cryptoless/internal/syncstore"
	"github.com/0xfullStack/Cryptoless/pkg/cryptoless"
)

type fakeFetcher struct {
	mu     sync.Mutex
	since  map[string][]interface{}
	failOn string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{since: map[string][]interface{}{}}
}

func (f *fakeFetcher) record(name string, since interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since[name] = append(f.since[name], since)
	if f.failOn == name {
		return errors.New("service unavailable")
	}
	return nil
}

func (f *fakeFetcher) FetchNetworks(_ context.Context, since uint64) ([]cryptoless.Network, error) {
	if err := f.record("networks", since); err != nil {
		return nil, err
	}
	if since > 0 {
		return nil, nil
	}
	return []cryptoless.Network{
		{ID: "eth", Code: "eth", UpdatedTime: "2022-06-15T10:00:00.000Z"},
		{ID: "btc", Code: "btc", UpdatedTime: "2022-06-15T09:00:00.000Z"},
	}, nil
}

func (f *fakeFetcher) FetchCoins(_ context.Context, since uint64) ([]cryptoless.Coin, error) {
	return nil, f.record("coins", since)
}

func (f *fakeFetcher) FetchHolders(_ context.Context, since uint64) ([]cryptoless.Holder, error) {
	if err := f.record("holders", since); err != nil {
		return nil, err
	}
	return []cryptoless.Holder{{ID: "h1", Symbol: "eth"}}, nil
}

func (f *fakeFetcher) FetchStakings(_ context.Context, since uint64) ([]cryptoless.Staking, error) {
	return nil, f.record("stakings", since)
}

func (f *fakeFetcher) FetchDelegators(_ context.Context, since string) ([]cryptoless.Delegator, error) {
	if err := f.record("delegators", since); err != nil {
		return nil, err
	}
	return []cryptoless.Delegator{
		{ID: "d1", UpdatedTime: "2022-06-15T10:00:00.000Z"},
	}, nil
}

func (f *fakeFetcher) FetchInstructions(_ context.Context, since uint64) ([]cryptoless.Instruction, error) {
	return nil, f.record("instructions", since)
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	store, err := syncstore.NewStore("", nil)
	require.NoError(t, err)
	defer store.Close()

	fetcher := newFakeFetcher()
	s := syncer.New(fetcher, store)

	results, err := s.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, results, len(syncstore.Collections))
	for i, c := range syncstore.Collections {
		require.Equal(t, c, results[i].Collection)
	}
	require.Equal(t, syncer.Result{
		Collection: syncstore.Networks, Updated: 2, Watermark: 1655287200,
	}, results[0])
	// Holders without updatedTime do not move the watermark.
	require.Equal(t, syncer.Result{
		Collection: syncstore.Holders, Updated: 1, Watermark: 0,
	}, results[2])

	networks, err := store.List(ctx, syncstore.Networks)
	require.NoError(t, err)
	require.Len(t, networks, 2)
	var network cryptoless.Network
	require.NoError(t, json.Unmarshal(networks[1].Payload, &network))
	require.Equal(t, "eth", network.Code)

	results, err = s.Sync(ctx, syncstore.Networks, syncstore.Delegators)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 0, results[0].Updated)
	require.Equal(t, uint64(1655287200), results[0].Watermark)

	require.Equal(t, []interface{}{uint64(0), uint64(1655287200)}, fetcher.since["networks"])
	require.Equal(t, []interface{}{"", "2022-06-15T10:00:00.000Z"}, fetcher.since["delegators"])
}

func TestSyncFailure(t *testing.T) {
	ctx := context.Background()
	store, err := syncstore.NewStore("", nil)
	require.NoError(t, err)
	defer store.Close()

	fetcher := newFakeFetcher()
	fetcher.failOn = "coins"

	_, err = syncer.New(fetcher, store).Sync(ctx, syncstore.Coins)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sync coins")

	wm, err := store.Watermark(ctx, syncstore.Coins)
	require.NoError(t, err)
	require.Zero(t, wm)
}
