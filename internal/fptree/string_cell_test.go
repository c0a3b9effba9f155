package fptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/screedb/screedb-go/internal/encoding"
	"github.com/screedb/screedb-go/internal/logging"
	"github.com/screedb/screedb-go/internal/pmpool"
)

func openTestPool(t *testing.T) *pmpool.Pool {
	t.Helper()
	dir := t.TempDir()
	pool, err := pmpool.OpenOrCreate(dir+"/test.pool", 4<<20, logging.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pool.Close()) })
	return pool
}

func TestStringCellSSOBoundary(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"one_below_sso", SSOChars - 1},
		{"at_sso", SSOChars},
		{"one_above_sso", SSOChars + 1},
		{"well_above_sso", SSOChars + 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := openTestPool(t)
			base, err := pool.Alloc(StringCellSize)
			require.NoError(t, err)

			value := make([]byte, tt.n)
			for i := range value {
				value[i] = byte('a' + i%26)
			}

			err = pool.Transact(func(txn *pmpool.Txn) error {
				return WriteCell(pool, txn, uint64(base), value)
			})
			require.NoError(t, err)

			got := ReadCell(pool, uint64(base))
			require.Equal(t, value, got)
			require.True(t, CellEquals(pool, uint64(base), value))
			require.False(t, CellEquals(pool, uint64(base), append(append([]byte{}, value...), 'x')))
		})
	}
}

func TestStringCellOverwriteFreesOldOutOfLineBlock(t *testing.T) {
	pool := openTestPool(t)
	base, err := pool.Alloc(StringCellSize)
	require.NoError(t, err)

	long := []byte("this value is long enough to spill out of line")
	require.NoError(t, pool.Transact(func(txn *pmpool.Txn) error {
		return WriteCell(pool, txn, uint64(base), long)
	}))
	require.Equal(t, long, ReadCell(pool, uint64(base)))
	oldPtr := pmpool.PPtr(encoding.DecodeFixed64(pool.Data()[uint64(base)+cellPtrFieldOff:]))
	require.NotZero(t, oldPtr)

	shorter := []byte("short")
	require.NoError(t, pool.Transact(func(txn *pmpool.Txn) error {
		return WriteCell(pool, txn, uint64(base), shorter)
	}))
	require.Equal(t, shorter, ReadCell(pool, uint64(base)))

	// The freed block heads the free list, so a same-size Alloc reuses it.
	reused, err := pool.Alloc(uint32(len(long)))
	require.NoError(t, err)
	require.Equal(t, oldPtr, reused)
}

func TestStringCellEmptyValueRoundTrips(t *testing.T) {
	pool := openTestPool(t)
	base, err := pool.Alloc(StringCellSize)
	require.NoError(t, err)

	require.NoError(t, pool.Transact(func(txn *pmpool.Txn) error {
		return WriteCell(pool, txn, uint64(base), nil)
	}))
	require.Empty(t, ReadCell(pool, uint64(base)))
	require.True(t, CellEquals(pool, uint64(base), nil))
}
