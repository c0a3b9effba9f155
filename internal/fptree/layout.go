package fptree

// layout.go carries the compile-time tunables and derived byte offsets
// that make up the fixed on-media contract: these sizes must not drift
// across versions.

const (
	// NodeKeys is the fixed fanout of a persistent leaf.
	NodeKeys = 48
	// NodeKeysMidpoint is the split point among NodeKeys+1 sorted keys.
	NodeKeysMidpoint = 24

	// InnerKeys is the number of separator keys a volatile inner node
	// holds before it must split.
	InnerKeys = 4
	// InnerKeysMidpoint is where an overfull inner node splits.
	InnerKeysMidpoint = 2
	// InnerKeysUpper is carried from the on-media layout contract but
	// unused for sizing: the volatile Node's Keys/Children arrays are
	// sized directly off InnerKeys to hold the true transient overflow
	// of a split insertion (see node.go).
	InnerKeysUpper = 3

	// SSOChars is the maximum key/value length stored inline in a
	// string cell.
	SSOChars = 15
	// SSOSize is the inline buffer size (SSOChars data bytes plus a
	// null terminator).
	SSOSize = 16
)

const (
	// StringCellSize is the fixed on-media size of one key or value
	// cell: SSOSize bytes of inline storage plus a 16-byte persistent
	// pointer field.
	StringCellSize = SSOSize + 16

	// stringCellPtrOff is the pointer field's offset within a cell.
	stringCellPtrOff = SSOSize

	// LeafFingerprintsSize is the size of a leaf's fingerprint array.
	LeafFingerprintsSize = NodeKeys

	// leafNextPtrSize is the size of a leaf's forward pointer field.
	// Named as a 16-byte persistent pointer in the contract; only the
	// low 8 bytes are used by the mmap-backed adapter, the high 8 are
	// reserved and kept zero.
	leafNextPtrSize = 16

	// LeafKeyCellsOff is the offset of the key-cell array within a leaf.
	LeafKeyCellsOff = LeafFingerprintsSize + leafNextPtrSize
	// LeafValueCellsOff is the offset of the value-cell array.
	LeafValueCellsOff = LeafKeyCellsOff + NodeKeys*StringCellSize

	// LeafBlockSize is the total fixed size of one persistent leaf:
	// fingerprints[48] || next(16) || keycells[48*32] || valuecells[48*32]
	// = 3,136 bytes.
	LeafBlockSize = LeafValueCellsOff + NodeKeys*StringCellSize
)

// leafNextOff is the offset of the next-leaf pointer within a leaf block.
const leafNextOff = LeafFingerprintsSize

// leafFingerprintOff returns the offset of slot i's fingerprint byte.
func leafFingerprintOff(slot int) uint64 { return uint64(slot) }

// leafKeyCellOff returns the offset of slot i's key cell.
func leafKeyCellOff(slot int) uint64 {
	return uint64(LeafKeyCellsOff + slot*StringCellSize)
}

// leafValueCellOff returns the offset of slot i's value cell.
func leafValueCellOff(slot int) uint64 {
	return uint64(LeafValueCellsOff + slot*StringCellSize)
}
