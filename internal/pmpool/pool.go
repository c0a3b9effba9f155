// Package pmpool implements the Persistent-Pool Adapter: an mmap-backed
// stand-in for a libpmemobj-style persistent object pool. It provides
// open-or-create by path, a typed root object, a transactional commit
// primitive built on software undo logging, a durable-flush primitive
// built on msync, and a first-fit byte allocator.
//
// Reference (substitution boundary): spec §1 — "the host has no
// libpmemobj/NVML binding available in Go"; every invariant, layout and
// algorithm above this package is unaffected by the substitution.
package pmpool

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/screedb/screedb-go/internal/checksum"
	"github.com/screedb/screedb-go/internal/encoding"
	"github.com/screedb/screedb-go/internal/logging"
)

// PPtr is a persistent pointer: a byte offset into the pool's mapped
// file. Zero is the null pointer — it falls inside the header, which is
// never a valid block address.
type PPtr uint64

const (
	magic       = uint32(0x53435246) // "SCRF"
	formatVer   = uint32(1)
	pageSize    = 4096
	headerSize  = 64
	arenaStart  = 256 // header + root + slack, rounded for readability
	headerMagicOff    = 0
	headerVersionOff  = 4
	headerArenaOff    = 8
	headerRootOff     = 16
	headerFreeListOff = 24
	headerBumpOff     = 32
	headerChecksumOff = 40
	headerChecksumLen = 40
)

// RootOffset is the fixed file offset of the persistent root record.
const RootOffset = headerSize

// poolHeader is the adapter-owned bookkeeping block at file offset 0. It
// sits outside the fixed root/leaf contract described in spec §6, so it
// is free to carry its own checksum.
type poolHeader struct {
	arenaSize    uint64
	rootOffset   uint64
	freeListHead uint64
	bumpOffset   uint64
}

// Pool is an open persistent-memory pool backed by a memory-mapped file.
type Pool struct {
	path   string
	file   *os.File
	guard  *processGuard
	mm     mmap.MMap
	data   []byte
	header poolHeader
	mu     sync.Mutex
	logger logging.Logger
}

// ErrArenaExhausted is returned when the allocator cannot satisfy a
// request from either the free list or the unused arena tail.
var ErrArenaExhausted = errors.New("pmpool: arena exhausted")

// OpenOrCreate opens the pool file at path, creating it (sized to at
// least minSize, rounded up to a page multiple) if it does not exist,
// and maps it read/write. It holds the process guard lock for the
// lifetime of the returned Pool.
func OpenOrCreate(path string, minSize int64, logger logging.Logger) (*Pool, error) {
	logger = logging.OrDefault(logger)

	guard, err := acquireProcessGuard(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = guard.release()
		return nil, fmt.Errorf("pmpool: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		_ = guard.release()
		return nil, fmt.Errorf("pmpool: stat %s: %w", path, err)
	}

	created := info.Size() == 0
	size := info.Size()
	if created {
		size = roundUpPage(minSize)
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			_ = guard.release()
			return nil, fmt.Errorf("pmpool: truncate %s: %w", path, err)
		}
	}

	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		_ = guard.release()
		return nil, fmt.Errorf("pmpool: mmap %s: %w", path, err)
	}

	p := &Pool{
		path:   path,
		file:   f,
		guard:  guard,
		mm:     mm,
		data:   mm,
		logger: logger,
	}

	if created {
		p.initHeader(uint64(size))
		logger.Infof("%screated pool %s (%d bytes)", logging.NSPool, path, size)
	} else {
		if err := p.loadHeader(); err != nil {
			_ = p.Close()
			return nil, err
		}
		logger.Infof("%sopened pool %s (%d bytes)", logging.NSPool, path, size)
	}

	return p, nil
}

func roundUpPage(n int64) int64 {
	if n <= 0 {
		n = pageSize
	}
	return ((n + pageSize - 1) / pageSize) * pageSize
}

func (p *Pool) initHeader(arenaSize uint64) {
	p.header = poolHeader{
		arenaSize:    arenaSize,
		rootOffset:   RootOffset,
		freeListHead: 0,
		bumpOffset:   arenaStart,
	}
	encoding.EncodeFixed32(p.data[headerMagicOff:], magic)
	encoding.EncodeFixed32(p.data[headerVersionOff:], formatVer)
	p.writeHeaderFields()
	p.flushHeader()
	p.Flush(0, uint32(len(p.data)))
}

func (p *Pool) writeHeaderFields() {
	encoding.EncodeFixed64(p.data[headerArenaOff:], p.header.arenaSize)
	encoding.EncodeFixed64(p.data[headerRootOff:], p.header.rootOffset)
	encoding.EncodeFixed64(p.data[headerFreeListOff:], p.header.freeListHead)
	encoding.EncodeFixed64(p.data[headerBumpOff:], p.header.bumpOffset)
	sum := checksum.ComputeBlockChecksum(p.data[:headerChecksumLen])
	encoding.EncodeFixed32(p.data[headerChecksumOff:], sum)
}

func (p *Pool) flushHeader() {
	p.writeHeaderFields()
}

func (p *Pool) loadHeader() error {
	if err := p.verifyHeaderChecksum(); err != nil {
		return err
	}
	p.header = poolHeader{
		arenaSize:    encoding.DecodeFixed64(p.data[headerArenaOff:]),
		rootOffset:   encoding.DecodeFixed64(p.data[headerRootOff:]),
		freeListHead: encoding.DecodeFixed64(p.data[headerFreeListOff:]),
		bumpOffset:   encoding.DecodeFixed64(p.data[headerBumpOff:]),
	}
	return nil
}

func (p *Pool) verifyHeaderChecksum() error {
	gotMagic := encoding.DecodeFixed32(p.data[headerMagicOff:])
	if gotMagic != magic {
		return fmt.Errorf("pmpool: %s: bad magic %#x (corrupt or not a pool file)", p.path, gotMagic)
	}
	sum := checksum.ComputeBlockChecksum(p.data[:headerChecksumLen])
	want := encoding.DecodeFixed32(p.data[headerChecksumOff:])
	if sum != want {
		return fmt.Errorf("pmpool: %s: header checksum mismatch (got %#x, want %#x)", p.path, sum, want)
	}
	return nil
}

// VerifyHeader re-checks the pool header's magic and checksum against the
// mapping's current bytes. loadHeader already runs this once at Open;
// VerifyHeader lets a caller re-run the same check later, opportunistically,
// against whatever the mapping holds at that later point in time.
func (p *Pool) VerifyHeader() error {
	return p.verifyHeaderChecksum()
}

// Root returns a typed view over the fixed root offset.
func (p *Pool) Root() *RootView {
	return &RootView{pool: p, offset: p.header.rootOffset}
}

// Flush msyncs the pool's backing mapping. edsrzf/mmap-go only exposes a
// whole-mapping Flush, so a partial range request is honored
// conservatively by flushing everything; offset/length are kept in the
// signature to match the pool contract and to document intent at call
// sites.
func (p *Pool) Flush(offset, length uint32) {
	_ = offset
	_ = length
	if err := p.mm.Flush(); err != nil {
		p.logger.Errorf("%smsync failed: %v", logging.NSPool, err)
	}
}

func (p *Pool) flushRange(offset, length uint64) {
	p.Flush(uint32(offset), uint32(length))
}

// Close flushes, unmaps, releases the process guard lock, and closes the
// backing file.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.mm != nil {
		if err := p.mm.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := p.mm.Unmap(); err != nil {
			errs = append(errs, err)
		}
		p.mm = nil
		p.data = nil
	}
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			errs = append(errs, err)
		}
		p.file = nil
	}
	if err := p.guard.release(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("pmpool: close %s: %v", p.path, errs)
	}
	return nil
}

// Data exposes the raw mapped bytes for components (fptree) that need
// direct offset access alongside the allocator and transaction API.
func (p *Pool) Data() []byte { return p.data }

// Lock serializes callers that need to read-modify-write pool state
// outside of Transact (e.g. a multi-step recovery pass).
func (p *Pool) Lock()   { p.mu.Lock() }
func (p *Pool) Unlock() { p.mu.Unlock() }
