package pmpool

// alloc.go implements the first-fit byte allocator over the pool's flat
// arena. Every block — free or allocated — starts with an 8-byte header:
// the high bit marks it free, the remaining 63 bits hold the data
// region's size. A free block additionally stores the next free block's
// offset in the first 8 bytes of its data region, forming a singly
// linked free list whose head lives in the pool header.
//
// Coalescing only merges a freed block with its immediate physical
// successor when that successor is also free (an O(1) check via address
// arithmetic); merging with a predecessor would require either a block
// footer or a full scan and is not implemented — see DESIGN.md.

import (
	"fmt"

	"github.com/screedb/screedb-go/internal/encoding"
)

const (
	blockHeaderSize = 8
	minBlockData    = 8
	freeBit         = uint64(1) << 63
	sizeMask        = freeBit - 1
)

func readBlockMeta(data []byte, headerOffset uint64) (size uint64, free bool) {
	meta := encoding.DecodeFixed64(data[headerOffset : headerOffset+8])
	return meta & sizeMask, meta&freeBit != 0
}

func writeBlockMeta(data []byte, headerOffset uint64, size uint64, free bool) {
	meta := size & sizeMask
	if free {
		meta |= freeBit
	}
	encoding.EncodeFixed64(data[headerOffset:headerOffset+8], meta)
}

// Alloc reserves a block of at least n bytes and returns a pointer to its
// data region (the byte offset immediately following the block header).
// It first searches the free list for a first-fit block, splitting off
// any large-enough remainder; failing that, it bump-allocates from the
// arena's unused tail. It returns IOError-class errors on exhaustion.
func (p *Pool) Alloc(n uint32) (PPtr, error) {
	dataSize := uint64(n)
	if dataSize < minBlockData {
		dataSize = minBlockData
	}

	if ptr, ok := p.allocFromFreeList(dataSize); ok {
		return ptr, nil
	}
	return p.allocFromBump(dataSize)
}

func (p *Pool) allocFromFreeList(dataSize uint64) (PPtr, bool) {
	var prevHeader uint64 // 0 means "head of list"
	cur := PPtr(p.header.freeListHead)

	for cur != 0 {
		headerOffset := uint64(cur) - blockHeaderSize
		size, free := readBlockMeta(p.data, headerOffset)
		if !free {
			// Should never happen; free list only holds free blocks.
			break
		}
		next := encoding.DecodeFixed64(p.data[cur : cur+8])

		if size >= dataSize {
			p.unlinkFree(prevHeader, uint64(cur), next)

			if size >= dataSize+blockHeaderSize+minBlockData {
				remainderHeader := headerOffset + blockHeaderSize + dataSize
				remainderSize := size - dataSize - blockHeaderSize
				writeBlockMeta(p.data, remainderHeader, remainderSize, true)
				remainderPtr := remainderHeader + blockHeaderSize
				encoding.EncodeFixed64(p.data[remainderPtr:remainderPtr+8], p.header.freeListHead)
				p.header.freeListHead = remainderPtr
				writeBlockMeta(p.data, headerOffset, dataSize, false)
			} else {
				writeBlockMeta(p.data, headerOffset, size, false)
			}
			p.flushHeader()
			p.flushRange(headerOffset, blockHeaderSize)
			return cur, true
		}

		prevHeader = headerOffset
		cur = PPtr(next)
	}
	return 0, false
}

func (p *Pool) unlinkFree(prevHeader, curData, next uint64) {
	if prevHeader == 0 {
		p.header.freeListHead = next
		return
	}
	// prevHeader is a free block's header offset; its data region's first
	// 8 bytes hold its "next free" pointer.
	prevData := prevHeader + blockHeaderSize
	encoding.EncodeFixed64(p.data[prevData:prevData+8], next)
	_ = curData
}

func (p *Pool) allocFromBump(dataSize uint64) (PPtr, error) {
	headerOffset := p.header.bumpOffset
	need := blockHeaderSize + dataSize
	if headerOffset+need > uint64(len(p.data)) {
		return 0, fmt.Errorf("%w (need %d bytes, %d remaining)",
			ErrArenaExhausted, need, uint64(len(p.data))-headerOffset)
	}
	writeBlockMeta(p.data, headerOffset, dataSize, false)
	p.header.bumpOffset = headerOffset + need
	p.flushHeader()
	p.flushRange(headerOffset, blockHeaderSize)
	return PPtr(headerOffset + blockHeaderSize), nil
}

// Free releases a previously allocated block, coalescing it with its
// immediate physical successor if that successor is also free.
func (p *Pool) Free(ptr PPtr) {
	if ptr == 0 {
		return
	}

	headerOffset := uint64(ptr) - blockHeaderSize
	size, _ := readBlockMeta(p.data, headerOffset)

	nextHeaderOffset := headerOffset + blockHeaderSize + size
	if nextHeaderOffset < p.header.bumpOffset {
		nextSize, nextFree := readBlockMeta(p.data, nextHeaderOffset)
		if nextFree {
			p.removeFromFreeList(nextHeaderOffset + blockHeaderSize)
			size += blockHeaderSize + nextSize
		}
	}

	writeBlockMeta(p.data, headerOffset, size, true)
	encoding.EncodeFixed64(p.data[ptr:ptr+8], p.header.freeListHead)
	p.header.freeListHead = uint64(ptr)
	p.flushHeader()
	p.flushRange(headerOffset, blockHeaderSize+8)
}

// removeFromFreeList scans the free list for the block whose data
// pointer is target and unlinks it. O(n) in the number of free blocks.
func (p *Pool) removeFromFreeList(target uint64) {
	var prevHeader uint64
	cur := p.header.freeListHead
	for cur != 0 {
		next := encoding.DecodeFixed64(p.data[cur : cur+8])
		if cur == target {
			p.unlinkFree(prevHeader, cur, next)
			return
		}
		prevHeader = uint64(cur) - blockHeaderSize
		cur = next
	}
}
