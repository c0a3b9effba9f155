package pmpool

// lock.go implements the process guard: an exclusive advisory lock on a
// sidecar file, enforcing "open-or-create is not safe across processes"
// for the lifetime of an open pool.

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// processGuard holds an exclusive advisory lock on <path>.lock for as
// long as the pool that acquired it stays open.
type processGuard struct {
	file *os.File
}

// acquireProcessGuard takes a non-blocking exclusive flock on the sidecar
// lock file for path. It returns an error if another process (or another
// in-process OpenOrCreate of the same path) already holds it.
func acquireProcessGuard(path string) (*processGuard, error) {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pmpool: open lock file %s: %w", lockPath, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pmpool: pool %s already open in another process or handle: %w", path, err)
	}
	return &processGuard{file: f}, nil
}

// release drops the advisory lock and closes the sidecar file.
func (g *processGuard) release() error {
	if g == nil || g.file == nil {
		return nil
	}
	_ = unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	err := g.file.Close()
	g.file = nil
	return err
}
