// Package syncer incrementally copies the collections of the cryptoless API
// into a syncstore.Store.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/0xfullStack/Cryptoless/internal/syncstore"
	"github.com/0xfullStack/Cryptoless/pkg/cryptoless"
)

// Fetcher is the subset of the cryptoless client used for syncing.
type Fetcher interface {
	FetchNetworks(ctx context.Context, latestUpdatedAt uint64) ([]cryptoless.Network, error)
	FetchCoins(ctx context.Context, latestUpdatedAt uint64) ([]cryptoless.Coin, error)
	FetchHolders(ctx context.Context, latestUpdatedAt uint64) ([]cryptoless.Holder, error)
	FetchStakings(ctx context.Context, latestUpdatedAt uint64) ([]cryptoless.Staking, error)
	FetchDelegators(ctx context.Context, latestUpdatedAt string) ([]cryptoless.Delegator, error)
	FetchInstructions(ctx context.Context, latestUpdatedAt uint64) ([]cryptoless.Instruction, error)
}

// Result is the outcome of syncing one collection.
type Result struct {
	Collection syncstore.Collection
	Updated    int
	Watermark  uint64
}

type Syncer struct {
	fetcher Fetcher
	store   syncstore.Store
}

func New(fetcher Fetcher, store syncstore.Store) *Syncer {
	return &Syncer{fetcher, store}
}

// Sync fetches the items of each collection updated since its watermark,
// stores them and moves the watermark forward to the latest updatedTime
// seen. Collections are synced concurrently, the first error cancels the
// others. All collections are synced if none is given.
func (s *Syncer) Sync(
	ctx context.Context, collections ...syncstore.Collection,
) ([]Result, error) {
	if len(collections) <= 0 {
		collections = syncstore.Collections
	}

	var mu sync.Mutex
	results := make([]Result, 0, len(collections))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range collections {
		c := c
		g.Go(func() error {
			res, err := s.syncCollection(gctx, c)
			if err != nil {
				return fmt.Errorf("sync %s: %w", c, err)
			}
			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Keep the order of the requested collections.
	sorted := make([]Result, 0, len(results))
	for _, c := range collections {
		for _, r := range results {
			if r.Collection == c {
				sorted = append(sorted, r)
			}
		}
	}
	return sorted, nil
}

func (s *Syncer) syncCollection(
	ctx context.Context, collection syncstore.Collection,
) (*Result, error) {
	wm, err := s.store.Watermark(ctx, collection)
	if err != nil {
		return nil, err
	}

	records, err := s.fetch(ctx, collection, wm)
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return nil, err
	}

	latest := wm
	for _, r := range records {
		if r.UpdatedTime > latest {
			latest = r.UpdatedTime
		}
	}
	if latest != wm {
		if err := s.store.SetWatermark(ctx, collection, latest); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"collection": collection,
		"updated":    len(records),
		"watermark":  latest,
	}).Debug("collection synced")

	return &Result{collection, len(records), latest}, nil
}

func (s *Syncer) fetch(
	ctx context.Context, collection syncstore.Collection, wm uint64,
) ([]syncstore.Record, error) {
	switch collection {
	case syncstore.Networks:
		items, err := s.fetcher.FetchNetworks(ctx, wm)
		if err != nil {
			return nil, err
		}
		return toRecords(collection, len(items), func(i int) (string, string, interface{}) {
			return items[i].ID, items[i].UpdatedTime, items[i]
		})
	case syncstore.Coins:
		items, err := s.fetcher.FetchCoins(ctx, wm)
		if err != nil {
			return nil, err
		}
		return toRecords(collection, len(items), func(i int) (string, string, interface{}) {
			return items[i].ID, items[i].UpdatedTime, items[i]
		})
	case syncstore.Holders:
		items, err := s.fetcher.FetchHolders(ctx, wm)
		if err != nil {
			return nil, err
		}
		return toRecords(collection, len(items), func(i int) (string, string, interface{}) {
			return items[i].ID, items[i].UpdatedTime, items[i]
		})
	case syncstore.Stakings:
		items, err := s.fetcher.FetchStakings(ctx, wm)
		if err != nil {
			return nil, err
		}
		return toRecords(collection, len(items), func(i int) (string, string, interface{}) {
			return items[i].ID, items[i].UpdatedTime, items[i]
		})
	case syncstore.Delegators:
		items, err := s.fetcher.FetchDelegators(ctx, isoTime(wm))
		if err != nil {
			return nil, err
		}
		return toRecords(collection, len(items), func(i int) (string, string, interface{}) {
			return items[i].ID, items[i].UpdatedTime, items[i]
		})
	case syncstore.Instructions:
		items, err := s.fetcher.FetchInstructions(ctx, wm)
		if err != nil {
			return nil, err
		}
		return toRecords(collection, len(items), func(i int) (string, string, interface{}) {
			return items[i].ID, items[i].UpdatedTime, items[i]
		})
	default:
		return nil, fmt.Errorf("unknown collection %s", collection)
	}
}

func toRecords(
	collection syncstore.Collection, n int,
	item func(i int) (id, updatedTime string, v interface{}),
) ([]syncstore.Record, error) {
	records := make([]syncstore.Record, 0, n)
	for i := 0; i < n; i++ {
		id, updatedTime, v := item(i)
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		records = append(records, syncstore.Record{
			Collection:  collection,
			ID:          id,
			UpdatedTime: cryptoless.Timestamp(updatedTime),
			Payload:     payload,
		})
	}
	return records, nil
}

// isoTime formats a watermark the way FetchDelegators expects it. Zero
// formats as the empty string.
func isoTime(ts uint64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
