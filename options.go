package screedb

// options.go implements database configuration options.

import (
	"time"

	"github.com/screedb/screedb-go/internal/logging"
)

// Logger is an alias for the logging.Logger interface.
// This allows users to pass their own logger implementation.
type Logger = logging.Logger

// Options contains all configuration options for opening a database.
type Options struct {
	// CreateIfMissing causes Open to create the backing pool file if it
	// does not exist.
	CreateIfMissing bool

	// ErrorIfExists causes Open to return an error if the pool file
	// already exists.
	ErrorIfExists bool

	// MinPoolSize is the minimum size, in bytes, of the backing pool file
	// when it is created. The file is rounded up to a page multiple.
	// Default: 64MB
	MinPoolSize int64

	// ReadCacheSize is the maximum cost, in bytes, of the bounded volatile
	// cache placed in front of Get. 0 disables the cache entirely.
	// Default: 16MB
	ReadCacheSize int64

	// ReadCacheTTL is the time-to-live for entries in the read cache.
	// 0 means entries do not expire on their own and are only invalidated
	// by Put/Delete of the same key.
	ReadCacheTTL time.Duration

	// Logger is the logger for database operations.
	// If nil, a default logger writing to stderr is used.
	Logger Logger
}

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return &Options{
		CreateIfMissing: false,
		ErrorIfExists:   false,
		MinPoolSize:     64 * 1024 * 1024, // 64MB
		ReadCacheSize:   16 * 1024 * 1024, // 16MB
		ReadCacheTTL:    0,
		Logger:          nil, // Will use logging.OrDefault
	}
}

// ReadOptions contains options for read operations.
type ReadOptions struct {
	// VerifyChecksums re-verifies the pool header's checksum before
	// servicing the read, returning ErrCorruption if it no longer
	// matches. The fixed-layout leaf and root bytes carry no checksum of
	// their own; see internal/checksum.
	VerifyChecksums bool

	// FillCache indicates whether a successful Get should populate the
	// read cache. Ignored if the read cache is disabled.
	FillCache bool
}

// DefaultReadOptions returns ReadOptions with default values.
func DefaultReadOptions() *ReadOptions {
	return &ReadOptions{
		VerifyChecksums: true,
		FillCache:       true,
	}
}

// WriteOptions contains options for write operations.
type WriteOptions struct {
	// Sync causes the write's touched persistent ranges to be flushed
	// (msync-equivalent) before Put/Delete returns. The flush is always
	// synchronous in this implementation; the field exists for symmetry
	// with the façade style of the rest of the ambient stack and callers
	// may leave it at its zero value.
	Sync bool
}

// DefaultWriteOptions returns WriteOptions with default values.
func DefaultWriteOptions() *WriteOptions {
	return &WriteOptions{
		Sync: true,
	}
}
