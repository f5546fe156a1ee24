// Package syncstore is the local cache of the collections synced from the
// cryptoless API, along with the updatedTime watermark of each of them.
package syncstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

// Collection is the name of a synced collection.
type Collection string

const (
	Networks     Collection = "networks"
	Coins        Collection = "coins"
	Holders      Collection = "holders"
	Stakings     Collection = "stakings"
	Delegators   Collection = "delegators"
	Instructions Collection = "instructions"
)

// Collections lists every known collection.
var Collections = []Collection{
	Networks, Coins, Holders, Stakings, Delegators, Instructions,
}

// ParseCollection returns the Collection named s.
func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %s", s)
}

// Record is a synced item, Payload is its JSON representation.
type Record struct {
	Collection  Collection `badgerhold:"index"`
	ID          string
	UpdatedTime uint64
	Payload     []byte
}

func (r Record) key() string {
	return recordKey(r.Collection, r.ID)
}

type watermark struct {
	Collection Collection
	UpdatedAt  uint64
}

// Store persists Records and watermarks.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Get(ctx context.Context, collection Collection, id string) (*Record, error)
	List(ctx context.Context, collection Collection) ([]Record, error)
	Watermark(ctx context.Context, collection Collection) (uint64, error)
	SetWatermark(ctx context.Context, collection Collection, updatedAt uint64) error
	Close() error
}

var (
	// ErrRecordNotFound is returned by Get for unknown records.
	ErrRecordNotFound = errors.New("record not found")
)

type store struct {
	db   *badgerhold.Store
	done chan struct{}
}

// NewStore opens the store in baseDbDir, in memory if empty.
func NewStore(baseDbDir string, logger badger.Logger) (Store, error) {
	var dir string
	if len(baseDbDir) > 0 {
		dir = filepath.Join(baseDbDir, "sync")
	}

	done := make(chan struct{})
	db, err := createDb(dir, logger, done)
	if err != nil {
		return nil, fmt.Errorf("opening sync db: %w", err)
	}
	return &store{db, done}, nil
}

func (s *store) Upsert(_ context.Context, records []Record) error {
	for _, r := range records {
		r := r
		if err := s.db.Upsert(r.key(), &r); err != nil {
			return fmt.Errorf("upsert %s: %w", r.key(), err)
		}
	}
	return nil
}

func (s *store) Get(_ context.Context, collection Collection, id string) (*Record, error) {
	var r Record
	if err := s.db.Get(recordKey(collection, id), &r); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *store) List(_ context.Context, collection Collection) ([]Record, error) {
	var records []Record
	query := badgerhold.Where("Collection").Eq(collection).Index("Collection").SortBy("ID")
	if err := s.db.Find(&records, query); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store) Watermark(_ context.Context, collection Collection) (uint64, error) {
	var w watermark
	if err := s.db.Get(watermarkKey(collection), &w); err != nil {
		if err == badgerhold.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return w.UpdatedAt, nil
}

func (s *store) SetWatermark(
	_ context.Context, collection Collection, updatedAt uint64,
) error {
	return s.db.Upsert(watermarkKey(collection), &watermark{collection, updatedAt})
}

func (s *store) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	return s.db.Close()
}

func recordKey(collection Collection, id string) string {
	return fmt.Sprintf("record/%s/%s", collection, id)
}

func watermarkKey(collection Collection) string {
	return fmt.Sprintf("watermark/%s", collection)
}

// createDb opens the db. On disk, the value log is garbage collected
// periodically until done is closed.
func createDb(
	dbDir string, logger badger.Logger, done <-chan struct{},
) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := db.Badger().RunValueLogGC(0.5); err != nil &&
						err != badger.ErrNoRewrite {
						log.Error(err)
					}
				}
			}
		}()
	}

	return db, nil
}
