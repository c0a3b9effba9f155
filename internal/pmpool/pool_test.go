package pmpool

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/screedb/screedb-go/internal/logging"
)

var errAbort = errors.New("pmpool: test-induced abort")

func TestOpenOrCreateThenReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pool")

	pool, err := OpenOrCreate(path, 1<<20, logging.Discard)
	require.NoError(t, err)

	var ptr PPtr
	require.NoError(t, pool.Transact(func(txn *Txn) error {
		root := pool.Root()
		root.SetHead(txn, PPtr(123))
		var allocErr error
		ptr, allocErr = pool.Alloc(32)
		return allocErr
	}))
	require.NoError(t, pool.Close())

	reopened, err := OpenOrCreate(path, 1<<20, logging.Discard)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, PPtr(123), reopened.Root().Head())
	require.NotZero(t, ptr)
}

func TestTransactRollsBackOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pool")
	pool, err := OpenOrCreate(path, 1<<20, logging.Discard)
	require.NoError(t, err)
	defer pool.Close()

	root := pool.Root()
	require.NoError(t, pool.Transact(func(txn *Txn) error {
		root.SetHead(txn, PPtr(42))
		return nil
	}))
	require.Equal(t, PPtr(42), root.Head())

	err = pool.Transact(func(txn *Txn) error {
		root.SetHead(txn, PPtr(999))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	require.Equal(t, PPtr(42), root.Head(), "aborted transaction must leave no trace")
}

func TestAllocFreeReuseViaFreeList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pool")
	pool, err := OpenOrCreate(path, 1<<20, logging.Discard)
	require.NoError(t, err)
	defer pool.Close()

	a, err := pool.Alloc(64)
	require.NoError(t, err)
	pool.Free(a)

	b, err := pool.Alloc(64)
	require.NoError(t, err)
	require.Equal(t, a, b, "freed block of the right size should be reused by the next same-size Alloc")
}

func TestProcessGuardRejectsSecondOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pool")
	pool, err := OpenOrCreate(path, 1<<20, logging.Discard)
	require.NoError(t, err)
	defer pool.Close()

	_, err = OpenOrCreate(path, 1<<20, logging.Discard)
	require.Error(t, err, "a second concurrent open of the same pool path must fail")
}

