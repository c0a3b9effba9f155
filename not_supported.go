package screedb

// not_supported.go stubs the rest of the teacher's DB surface. The
// façade's contract names exactly six supported operations — Put, Get,
// Delete, MultiGet, Merge, Open/Close — everything else returns
// ErrNotSupported rather than disappearing from the type, so callers
// porting code against the wider interface get a clear error instead of
// a missing-method compile failure.

// WriteBatch is an opaque placeholder for the batched-write type Write
// would otherwise accept; batching is out of scope for this façade.
type WriteBatch struct{}

// Write is not supported: there is no batch/WAL layer in this design.
func (db *DB) Write(opts *WriteOptions, batch *WriteBatch) error {
	return ErrNotSupported
}

// SingleDelete is not supported.
func (db *DB) SingleDelete(opts *WriteOptions, key []byte) error {
	return ErrNotSupported
}

// DeleteRange is not supported: slots are unordered within a leaf and
// there is no persisted key ordering to range over cheaply.
func (db *DB) DeleteRange(opts *WriteOptions, startKey, endKey []byte) error {
	return ErrNotSupported
}

// Iterator is an opaque placeholder for NewIterator's return type.
type Iterator struct{}

// NewIterator is not supported: there is no ordered scan over an
// unordered-within-leaf layout.
func (db *DB) NewIterator(opts *ReadOptions) (*Iterator, error) {
	return nil, ErrNotSupported
}

// Snapshot is an opaque placeholder for GetSnapshot's return type.
type Snapshot struct{}

// GetSnapshot is not supported: there is no MVCC layer.
func (db *DB) GetSnapshot() (*Snapshot, error) {
	return nil, ErrNotSupported
}

// ReleaseSnapshot is not supported.
func (db *DB) ReleaseSnapshot(s *Snapshot) error {
	return ErrNotSupported
}

// Flush is not supported: there is no memtable to flush, writes are
// already durable on return from Put/Delete.
func (db *DB) Flush() error {
	return ErrNotSupported
}

// CompactRange is not supported: there is no compaction in this design.
func (db *DB) CompactRange(start, end []byte) error {
	return ErrNotSupported
}

// GetProperty is not supported: there are no tracked database
// properties (compaction stats, memtable size) to report.
func (db *DB) GetProperty(name string) (string, bool) {
	return "", false
}
