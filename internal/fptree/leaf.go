package fptree

// leaf.go implements read/write access to a persistent leaf block: the
// fingerprint array, the forward pointer, and the per-slot key/value
// cells. A PersistentLeaf is a thin, stateless view over a fixed offset
// in the pool's mapped bytes — it owns no memory of its own.

import (
	"github.com/screedb/screedb-go/internal/encoding"
	"github.com/screedb/screedb-go/internal/pmpool"
)

// PersistentLeaf is a view over one leaf block at a known offset.
type PersistentLeaf struct {
	Pool   *pmpool.Pool
	Offset uint64
}

// Fingerprint returns the fingerprint byte stored at slot.
func (l PersistentLeaf) Fingerprint(slot int) byte {
	return l.Pool.Data()[l.Offset+leafFingerprintOff(slot)]
}

// Next returns the pointer to the successor leaf, or 0 if this is the
// last leaf in the list.
func (l PersistentLeaf) Next() pmpool.PPtr {
	off := l.Offset + leafNextOff
	return pmpool.PPtr(encoding.DecodeFixed64(l.Pool.Data()[off:]))
}

// SetNext writes a new forward pointer within txn.
func (l PersistentLeaf) SetNext(txn *pmpool.Txn, next pmpool.PPtr) {
	buf := make([]byte, leafNextPtrSize)
	encoding.EncodeFixed64(buf, uint64(next))
	txn.Write(l.Offset+leafNextOff, buf)
}

// Key returns a copy of the key stored at slot.
func (l PersistentLeaf) Key(slot int) []byte {
	return ReadCell(l.Pool, l.Offset+leafKeyCellOff(slot))
}

// Value returns a copy of the value stored at slot.
func (l PersistentLeaf) Value(slot int) []byte {
	return ReadCell(l.Pool, l.Offset+leafValueCellOff(slot))
}

// KeyEquals reports whether slot's key cell holds exactly key, without
// allocating a copy of the stored bytes.
func (l PersistentLeaf) KeyEquals(slot int, key []byte) bool {
	return CellEquals(l.Pool, l.Offset+leafKeyCellOff(slot), key)
}

// SetFingerprint writes fp to slot's fingerprint byte within txn.
func (l PersistentLeaf) SetFingerprint(txn *pmpool.Txn, slot int, fp byte) {
	txn.Write(l.Offset+leafFingerprintOff(slot), []byte{fp})
}

// SetSlot writes (fingerprint, key, value) into slot within txn,
// following the durability ordering in spec §5: the key/value cells are
// written (and registered for flush) before the new fingerprint, so a
// crash never exposes a non-zero fingerprint whose cells aren't yet
// durable.
func (l PersistentLeaf) SetSlot(txn *pmpool.Txn, slot int, fp byte, key, value []byte) error {
	if err := WriteCell(l.Pool, txn, l.Offset+leafKeyCellOff(slot), key); err != nil {
		return err
	}
	if err := WriteCell(l.Pool, txn, l.Offset+leafValueCellOff(slot), value); err != nil {
		return err
	}
	l.SetFingerprint(txn, slot, fp)
	return nil
}

// ClearSlot zeroes slot's fingerprint within txn, logically deleting the
// entry without reclaiming its key/value cell storage.
func (l PersistentLeaf) ClearSlot(txn *pmpool.Txn, slot int) {
	l.SetFingerprint(txn, slot, 0)
}

// MoveSlot copies slot's (fingerprint, key, value) from l to dst at the
// same slot index within txn, then clears the slot in l. Used by
// LeafSplit to move every slot whose key compares strictly greater than
// the split key into the new leaf.
func (l PersistentLeaf) MoveSlot(txn *pmpool.Txn, dst PersistentLeaf, slot int) error {
	fp := l.Fingerprint(slot)
	key := l.Key(slot)
	value := l.Value(slot)
	if err := dst.SetSlot(txn, slot, fp, key, value); err != nil {
		return err
	}
	l.ClearSlot(txn, slot)
	return nil
}

// AllocLeaf allocates a fresh, zeroed persistent leaf block.
func AllocLeaf(pool *pmpool.Pool) (PersistentLeaf, error) {
	ptr, err := pool.Alloc(LeafBlockSize)
	if err != nil {
		return PersistentLeaf{}, err
	}
	data := pool.Data()
	off := uint64(ptr)
	clear(data[off : off+LeafBlockSize])
	return PersistentLeaf{Pool: pool, Offset: off}, nil
}

// LeafAt returns a view over the leaf block at ptr.
func LeafAt(pool *pmpool.Pool, ptr pmpool.PPtr) PersistentLeaf {
	return PersistentLeaf{Pool: pool, Offset: uint64(ptr)}
}
