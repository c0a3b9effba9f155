package fptree

// string_cell.go implements the short-string-optimized persistent
// string cell: up to SSOChars bytes inline in the cell's own 16-byte
// buffer, otherwise a persistent pointer to a separately allocated
// out-of-line block. The cell's own length field doubles as the
// inline/out-of-line discriminant, so the physical layout needs no
// separate tag byte.
//
// Layout (StringCellSize = 32 bytes, relative to the cell's base offset):
//
//	inline   [16]byte  @0   (used when length <= SSOChars)
//	ptr      uint64     @16  (out-of-line block offset, 0 when inline)
//	length   uint64     @24  (content length in both cases)
//
// The contract names this a "16-byte persistent pointer field"; since
// our pool uses 8-byte offsets rather than PMDK's 16-byte fat pointers,
// the upper 8 bytes of that field carry the length instead of staying
// reserved.

import (
	"bytes"

	"github.com/screedb/screedb-go/internal/encoding"
	"github.com/screedb/screedb-go/internal/pmpool"
)

const (
	cellPtrFieldOff    = SSOSize
	cellLengthFieldOff = SSOSize + 8
)

// ReadCell returns the bytes stored in the cell at base.
func ReadCell(pool *pmpool.Pool, base uint64) []byte {
	data := pool.Data()
	length := encoding.DecodeFixed64(data[base+cellLengthFieldOff:])
	if length == 0 {
		return []byte{}
	}
	if length <= SSOChars {
		return append([]byte(nil), data[base:base+length]...)
	}
	ptr := pmpool.PPtr(encoding.DecodeFixed64(data[base+cellPtrFieldOff:]))
	return append([]byte(nil), data[ptr:uint64(ptr)+length]...)
}

// WriteCell stores value into the cell at base within txn, freeing any
// previous out-of-line block the cell held and allocating a fresh one if
// value exceeds SSOChars. Empty values are accepted and round-trip as a
// zero-length cell.
func WriteCell(pool *pmpool.Pool, txn *pmpool.Txn, base uint64, value []byte) error {
	data := pool.Data()
	oldPtr := pmpool.PPtr(encoding.DecodeFixed64(data[base+cellPtrFieldOff:]))

	buf := make([]byte, StringCellSize)
	length := uint64(len(value))
	encoding.EncodeFixed64(buf[cellLengthFieldOff:], length)

	if length <= SSOChars {
		copy(buf[:length], value)
		// ptr field stays zero: inline.
	} else {
		ptr, err := pool.Alloc(uint32(length))
		if err != nil {
			return err
		}
		txn.Write(uint64(ptr), value)
		encoding.EncodeFixed64(buf[cellPtrFieldOff:], uint64(ptr))
	}

	txn.Write(base, buf)

	if oldPtr != 0 {
		pool.Free(oldPtr)
	}
	return nil
}

// CellEquals reports whether the cell at base holds exactly key.
func CellEquals(pool *pmpool.Pool, base uint64, key []byte) bool {
	data := pool.Data()
	length := encoding.DecodeFixed64(data[base+cellLengthFieldOff:])
	if length != uint64(len(key)) {
		return false
	}
	if length == 0 {
		return true
	}
	if length <= SSOChars {
		return bytes.Equal(data[base:base+length], key)
	}
	ptr := encoding.DecodeFixed64(data[base+cellPtrFieldOff:])
	return bytes.Equal(data[ptr:ptr+length], key)
}
