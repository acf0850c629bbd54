// Package kv implements the Application State Store (spec.md section 4.1)
// as a bolt-backed, typed key/value store, the way the teacher's
// beacon-chain/db/kv package backs Prysm's Database interface with
// BoltDB.
package kv

import (
	"os"
	"path"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombolt "github.com/prysmaticlabs/prombbolt"
	bolt "go.etcd.io/bbolt"
)

const (
	databaseFileName = "state.db"
	boltAllocSize    = 8 * 1024 * 1024
	nodeCacheSize    = 1 << 21 // ~2MB of hot node-table reads
)

// Store is the bolt-backed ASS backend. It is safe to call Querier
// concurrently from many goroutines; only one goroutine may hold the
// result of Updater's Run closure at a time, which bbolt itself enforces
// by serializing Update calls.
type Store struct {
	db           *bolt.DB
	databasePath string
	nodeCache    *ristretto.Cache
}

// Open creates (or reopens) a bolt-backed store at dir, creating the
// table buckets declared in tables.go if they do not already exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "could not create state directory")
	}

	datafile := path.Join(dir, databaseFileName)
	db, err := bolt.Open(datafile, 0o600, &bolt.Options{Timeout: time.Second, InitialMmapSize: 10e6})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain state database lock, another process may be running")
		}
		return nil, errors.Wrap(err, "could not open state database")
	}
	db.AllocSize = boltAllocSize

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     nodeCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create node read cache")
	}

	s := &Store{db: db, databasePath: dir, nodeCache: cache}

	if err := db.Update(func(tx *bolt.Tx) error {
		return createBuckets(tx, allBuckets...)
	}); err != nil {
		return nil, err
	}

	if err := prometheus.Register(prombolt.New("state_db", db)); err != nil {
		// Re-registration is expected in tests that open multiple stores
		// in one process; only a genuine collector conflict is fatal.
		if !errors.As(err, new(prometheus.AlreadyRegisteredError)) {
			return nil, err
		}
	}

	return s, nil
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, b := range buckets {
		if _, err := tx.CreateBucketIfNotExists(b); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying bolt database. Fatal per spec.md section
// 4.1: a failed close on durable storage must not be silently ignored.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath returns the directory this store writes to.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// Querier returns a cheap, clonable read-only handle. Every View call
// observes a consistent bolt snapshot for its duration (spec.md section
// 4.1's "Query handles ... observe a consistent snapshot").
func (s *Store) Querier() QueryHandle {
	return QueryHandle{db: s.db, cache: s.nodeCache}
}

// Updater returns the single write-capable handle for this store. Callers
// must respect the single-writer discipline of spec.md section 5: only
// one goroutine should drive Run at a time (bbolt itself will simply
// block a second concurrent Update call until the first completes, so
// this is an invariant to respect for throughput, not a correctness
// requirement bbolt fails to enforce).
func (s *Store) Updater() UpdateHandle {
	return UpdateHandle{db: s.db, cache: s.nodeCache}
}
