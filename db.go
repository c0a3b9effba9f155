package screedb

// db.go implements the narrow RocksDB-style façade: Open, Put, Get,
// Delete, MultiGet, Merge, Close, and NotSupported stubs for everything
// else. The façade owns the single sync.RWMutex that is this system's
// actual concurrency boundary; the tree core underneath it is
// documented as single-threaded.

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/screedb/screedb-go/internal/fptree"
	"github.com/screedb/screedb-go/internal/logging"
	"github.com/screedb/screedb-go/internal/pmpool"
)

// DB is an open handle to a screedb database.
type DB struct {
	mu     sync.RWMutex
	pool   *pmpool.Pool
	tree   *fptree.Tree
	cache  *readCache
	logger Logger
	closed bool
	// fatal is set by the logger's FatalHandler once a read observes
	// corruption, and is checked by Put/Delete so a handle that has
	// witnessed corruption stops accepting new writes instead of silently
	// building more state on top of a pool it can no longer trust.
	fatal atomic.Pointer[error]
}

// Open opens (or creates, per opts.CreateIfMissing) the database at
// path and recovers it to a consistent state.
func Open(path string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := logging.OrDefault(opts.Logger)

	_, statErr := os.Stat(path)
	exists := statErr == nil

	if opts.ErrorIfExists && exists {
		return nil, fmt.Errorf("screedb: %s already exists: %w", path, ErrIOError)
	}
	if !exists && !opts.CreateIfMissing {
		return nil, fmt.Errorf("screedb: %s does not exist and CreateIfMissing is false: %w", path, ErrIOError)
	}

	minSize := opts.MinPoolSize
	if minSize <= 0 {
		minSize = DefaultOptions().MinPoolSize
	}

	pool, err := pmpool.OpenOrCreate(path, minSize, logger)
	if err != nil {
		return nil, fmt.Errorf("screedb: open %s: %w: %w", path, ErrIOError, err)
	}

	tree, err := fptree.RecoverTree(pool, logger)
	if err != nil {
		_ = pool.Close()
		if errors.Is(err, fptree.ErrCorruption) {
			return nil, fmt.Errorf("screedb: recover %s: %w: %w", path, ErrCorruption, err)
		}
		return nil, fmt.Errorf("screedb: recover %s: %w", path, err)
	}

	cache, err := newReadCache(opts.ReadCacheSize, opts.ReadCacheTTL)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("screedb: init read cache: %w", err)
	}

	db := &DB{pool: pool, tree: tree, cache: cache, logger: logger}
	if dl, ok := logger.(*logging.DefaultLogger); ok {
		dl.SetFatalHandler(func(msg string) {
			err := fmt.Errorf("screedb: %w: %s", logging.ErrFatal, msg)
			db.fatal.Store(&err)
		})
	}

	logger.Infof("%sopened %s", logging.NSFacade, path)
	return db, nil
}

// Put inserts or overwrites key with value.
func (db *DB) Put(opts *WriteOptions, key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDBClosed
	}
	if err := db.fatal.Load(); err != nil {
		return *err
	}
	if err := db.tree.Put(key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	db.cache.invalidate(key)
	return nil
}

// Get retrieves key's value, or ErrNotFound.
func (db *DB) Get(opts *ReadOptions, key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrDBClosed
	}

	if opts == nil || opts.VerifyChecksums {
		if err := db.pool.VerifyHeader(); err != nil {
			db.logger.Fatalf("%sheader checksum no longer matches: %v", logging.NSFacade, err)
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
	}

	if opts == nil || opts.FillCache {
		if v, ok := db.cache.get(key); ok {
			return v, nil
		}
	}

	v, err := db.tree.Get(key)
	if err != nil {
		return nil, ErrNotFound
	}
	if opts == nil || opts.FillCache {
		db.cache.set(key, v)
	}
	return v, nil
}

// Delete removes key. A missing key is not an error (idempotent).
func (db *DB) Delete(opts *WriteOptions, key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDBClosed
	}
	if err := db.fatal.Load(); err != nil {
		return *err
	}
	if err := db.tree.Delete(key); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	db.cache.invalidate(key)
	return nil
}

// MultiGet performs a sequential Get per key, preserving order and
// duplicates. The returned errs[i] is ErrNotFound for a missing key and
// nil otherwise; values[i] is nil wherever errs[i] is non-nil.
func (db *DB) MultiGet(opts *ReadOptions, keys [][]byte) (values [][]byte, errs []error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	values = make([][]byte, len(keys))
	errs = make([]error, len(keys))
	if db.closed {
		for i := range keys {
			errs[i] = ErrDBClosed
		}
		return values, errs
	}

	if opts == nil || opts.VerifyChecksums {
		if err := db.pool.VerifyHeader(); err != nil {
			db.logger.Fatalf("%sheader checksum no longer matches: %v", logging.NSFacade, err)
			for i := range keys {
				errs[i] = fmt.Errorf("%w: %v", ErrCorruption, err)
			}
			return values, errs
		}
	}

	for i, key := range keys {
		if v, ok := db.cache.get(key); ok {
			values[i] = v
			continue
		}
		v, err := db.tree.Get(key)
		if err != nil {
			errs[i] = ErrNotFound
			continue
		}
		values[i] = v
		db.cache.set(key, v)
	}
	return values, errs
}

// Merge is an alias for Put (last-write-wins), per the façade contract.
func (db *DB) Merge(opts *WriteOptions, key, value []byte) error {
	return db.Put(opts, key, value)
}

// Close flushes the closed counter, shuts down the read cache, and
// releases the underlying pool's process guard.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	if err := fptree.Shutdown(db.pool); err != nil {
		db.logger.Errorf("%sshutdown: %v", logging.NSFacade, err)
	}
	db.cache.close()

	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("screedb: close: %w", err)
	}
	return nil
}
