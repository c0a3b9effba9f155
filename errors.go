package screedb

// errors.go defines the status codes the façade returns. OK is the zero
// value (nil error); every other status is a sentinel error, following
// the teacher's own db.ErrNotFound-style convention but trimmed to the
// narrow taxonomy this façade actually needs.

import "errors"

var (
	// ErrNotFound is returned by Get and reported per-key by MultiGet
	// when a key has no entry in the database.
	ErrNotFound = errors.New("screedb: key not found")

	// ErrNotSupported is returned by every operation outside the narrow
	// façade surface (Put, Get, Delete, MultiGet, Merge, Open, Close).
	ErrNotSupported = errors.New("screedb: operation not supported")

	// ErrIOError wraps a failure from the underlying persistent pool
	// (allocation failure, mmap/flush failure, file I/O).
	ErrIOError = errors.New("screedb: I/O error")

	// ErrCorruption is returned when recovery finds the on-media state
	// inconsistent beyond what the recovery engine can resolve.
	ErrCorruption = errors.New("screedb: corruption detected")

	// ErrDBClosed is returned by any operation on a handle after Close.
	ErrDBClosed = errors.New("screedb: database is closed")
)
