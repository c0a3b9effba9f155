package pmpool

import "github.com/screedb/screedb-go/internal/encoding"

// root.go implements the persistent root record: two monotone counters
// (opened, closed), a head pointer to the leaf list, and — as an
// addition to the fixed spec layout — the fixed-size split/delete
// micro-log slot used to make leaf restructuring crash-recoverable.
//
// Layout (relative to the record's base offset):
//
//	opened   uint64   @0
//	closed   uint64   @8
//	head     uint64   @16  (PPtr, 0 = empty tree)
//	microlog record   @24  (see MicroLog)
const (
	rootOpenedOff   = 0
	rootClosedOff   = 8
	rootHeadOff     = 16
	rootMicrologOff = 24

	// RootRecordSize is the total fixed size of the root record.
	RootRecordSize = rootMicrologOff + microLogSize
)

// MicroLogKind identifies which structural operation a micro-log guards.
type MicroLogKind uint8

const (
	// MicroLogNone means no structural operation is outstanding.
	MicroLogNone MicroLogKind = 0
	// MicroLogSplit guards a LeafSplit.
	MicroLogSplit MicroLogKind = 1
	// MicroLogDelete guards a Delete that clears a slot.
	MicroLogDelete MicroLogKind = 2
)

// splitKeyBufSize bounds the split key this log can carry exactly.
// Recovery's stage-1 replay (fptree/recovery.go) compares every
// surviving slot's key against this logged value, so a key longer than
// this is truncated and the replay's boundary decision for keys sharing
// that truncated prefix is only as precise as the prefix itself — wider
// than the inline SSO threshold (SSO_CHARS=15) to cover the common case,
// but still a fixed bound rather than the unbounded out-of-line key
// storage leaves themselves support.
const splitKeyBufSize = 64

// MicroLog is the fixed-size persistent record describing an
// in-progress leaf split or delete, so recovery can resolve a crash that
// interrupted it. Layout (92 bytes total, relative to its own base):
//
//	kind         uint8    @0
//	stage        uint8    @1
//	prevLeaf     uint64   @2
//	curLeaf      uint64   @10
//	newLeaf      uint64   @18
//	splitKeyLen  uint8    @26
//	splitKey     [64]byte @27
//	slot         uint8    @91
type MicroLog struct {
	Kind        MicroLogKind
	Stage       uint8
	PrevLeaf    PPtr
	CurLeaf     PPtr
	NewLeaf     PPtr
	SplitKeyLen uint8
	SplitKey    [splitKeyBufSize]byte
	Slot        uint8
}

const microLogSize = 1 + 1 + 8 + 8 + 8 + 1 + splitKeyBufSize + 1 // 92

// RootView is a typed accessor over the fixed root record at a known
// offset within the pool's mapped file.
type RootView struct {
	pool   *Pool
	offset uint64
}

// Opened returns the root's opened counter.
func (r *RootView) Opened() uint64 {
	return encoding.DecodeFixed64(r.pool.data[r.offset+rootOpenedOff:])
}

// Closed returns the root's closed counter.
func (r *RootView) Closed() uint64 {
	return encoding.DecodeFixed64(r.pool.data[r.offset+rootClosedOff:])
}

// Head returns the pointer to the first leaf, or 0 for an empty tree.
func (r *RootView) Head() PPtr {
	return PPtr(encoding.DecodeFixed64(r.pool.data[r.offset+rootHeadOff:]))
}

// SetOpened writes a new opened counter within txn.
func (r *RootView) SetOpened(txn *Txn, v uint64) {
	buf := make([]byte, 8)
	encoding.EncodeFixed64(buf, v)
	txn.Write(r.offset+rootOpenedOff, buf)
}

// SetClosed writes a new closed counter within txn.
func (r *RootView) SetClosed(txn *Txn, v uint64) {
	buf := make([]byte, 8)
	encoding.EncodeFixed64(buf, v)
	txn.Write(r.offset+rootClosedOff, buf)
}

// SetHead writes a new head pointer within txn.
func (r *RootView) SetHead(txn *Txn, v PPtr) {
	buf := make([]byte, 8)
	encoding.EncodeFixed64(buf, uint64(v))
	txn.Write(r.offset+rootHeadOff, buf)
}

// Microlog decodes the root's micro-log slot.
func (r *RootView) Microlog() MicroLog {
	base := r.offset + rootMicrologOff
	d := r.pool.data
	var m MicroLog
	m.Kind = MicroLogKind(d[base])
	m.Stage = d[base+1]
	m.PrevLeaf = PPtr(encoding.DecodeFixed64(d[base+2:]))
	m.CurLeaf = PPtr(encoding.DecodeFixed64(d[base+10:]))
	m.NewLeaf = PPtr(encoding.DecodeFixed64(d[base+18:]))
	m.SplitKeyLen = d[base+26]
	copy(m.SplitKey[:], d[base+27:base+27+splitKeyBufSize])
	m.Slot = d[base+27+splitKeyBufSize]
	return m
}

// SetMicrolog overwrites the root's micro-log slot within txn. A fresh
// log overwrites whatever (already-resolved) log preceded it, matching
// the "one outstanding structural operation at a time" rule implied by
// the single-threaded core.
func (r *RootView) SetMicrolog(txn *Txn, m MicroLog) {
	buf := make([]byte, microLogSize)
	buf[0] = byte(m.Kind)
	buf[1] = m.Stage
	encoding.EncodeFixed64(buf[2:], uint64(m.PrevLeaf))
	encoding.EncodeFixed64(buf[10:], uint64(m.CurLeaf))
	encoding.EncodeFixed64(buf[18:], uint64(m.NewLeaf))
	buf[26] = m.SplitKeyLen
	copy(buf[27:27+splitKeyBufSize], m.SplitKey[:])
	buf[27+splitKeyBufSize] = m.Slot
	txn.Write(r.offset+rootMicrologOff, buf)
}
