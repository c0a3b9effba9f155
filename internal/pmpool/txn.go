package pmpool

// txn.go implements the pool's transactional commit primitive: software
// undo logging plus a set of touched ranges flushed together on commit.

type undoEntry struct {
	offset   uint64
	original []byte
}

type touchRange struct {
	offset uint64
	length uint64
}

// Txn collects undo entries and touched ranges for one pool transaction.
type Txn struct {
	pool    *Pool
	undos   []undoEntry
	touches []touchRange
}

// Undo records that the length(original)-byte range starting at offset
// held original before this transaction touched it, so it can be
// restored if the transaction aborts.
func (t *Txn) Undo(offset uint64, original []byte) {
	t.undos = append(t.undos, undoEntry{offset: offset, original: append([]byte(nil), original...)})
}

// Touch marks a byte range as modified by this transaction; it will be
// flushed once, after every write in the transaction has been applied,
// when the transaction commits.
func (t *Txn) Touch(offset, length uint64) {
	t.touches = append(t.touches, touchRange{offset: offset, length: length})
}

// Write captures the pre-image of data[offset:offset+len(value)] for
// undo, applies value, and registers the range to be flushed on commit.
// It is a convenience wrapper around Undo+copy+Touch for the common case
// of a single in-place write.
func (t *Txn) Write(offset uint64, value []byte) {
	pre := make([]byte, len(value))
	copy(pre, t.pool.data[offset:offset+uint64(len(value))])
	t.Undo(offset, pre)
	copy(t.pool.data[offset:], value)
	t.Touch(offset, uint64(len(value)))
}

// Flush immediately msyncs every range touched so far in this
// transaction and clears them, so a caller can establish a durable
// checkpoint partway through a multi-step operation instead of waiting
// for the whole transaction to commit. Writes made after Flush returns
// are still covered by the transaction's own undo log and are flushed
// again (harmlessly — Pool.Flush msyncs the whole mapping regardless of
// range) when Transact commits.
func (t *Txn) Flush() {
	for _, r := range t.touches {
		t.pool.Flush(uint32(r.offset), uint32(r.length))
	}
	t.touches = t.touches[:0]
}

// Transact runs fn with a fresh Txn. If fn returns an error, every undo
// entry is replayed in reverse order and the error is returned; no range
// is flushed, so the abort is invisible on disk even if some bytes were
// written and then reverted in memory. If fn succeeds, every touched
// range is flushed before Transact returns nil.
// Transact does not take the pool's internal lock: the core contract
// documented in spec §5 is single-threaded, and the façade serializes
// every public call with its own sync.RWMutex. pool.mu exists only to
// guard Close against a concurrent operation, not to make Transact,
// Alloc, or Free individually reentrant-safe.
func (p *Pool) Transact(fn func(*Txn) error) error {
	txn := &Txn{pool: p}
	if err := fn(txn); err != nil {
		for i := len(txn.undos) - 1; i >= 0; i-- {
			u := txn.undos[i]
			copy(p.data[u.offset:], u.original)
		}
		return err
	}
	for _, r := range txn.touches {
		p.Flush(uint32(r.offset), uint32(r.length))
	}
	return nil
}
