/*
Package screedb provides a pure-Go, durable embedded key/value store
backed by a memory-mapped persistent pool, indexed by a hybrid
fingerprinting B+-tree.

Durable data — keys, values, and the leaf linked list that threads them
together — lives in a fixed on-media layout inside the pool file. A
volatile search tree of inner nodes is rebuilt in memory every time the
pool is opened; it exists purely to dispatch lookups to the right leaf in
O(log n) and is never itself persisted. Each leaf additionally carries a
one-byte Pearson-hash fingerprint per slot, letting most negative lookups
and many positive ones resolve without touching the (much larger) key
array.

# Usage

	db, err := screedb.Open("/path/to/pool", screedb.DefaultOptions())
	if err != nil {
		...
	}
	defer db.Close()

	err = db.Put(nil, []byte("key"), []byte("value"))
	val, err := db.Get(nil, []byte("key"))

# API surface

Open, Put, Get, Delete, MultiGet, and Merge (an alias for Put) are
supported. Everything else — range scans, iteration, batches, snapshots,
compaction — is an explicit non-goal and returns ErrNotSupported.

# Concurrency

A DB instance is safe for concurrent use by multiple goroutines; the
façade serializes calls with a single sync.RWMutex. The underlying tree
core is documented as single-threaded, so this mutex is the concurrency
boundary, not a performance optimization.

# Crash recovery

Open always walks the persistent leaf list and rebuilds the volatile
tree from scratch, resolving any in-flight split or delete recorded in
the root's micro-log slot before the pool is handed back to the caller.
A process that crashes mid-operation leaves the pool in a state the next
Open can always recover from; see internal/fptree for the recovery
algorithm.
*/
package screedb
