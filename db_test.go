package screedb

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/screedb/screedb-go/internal/logging"
)

func testOptions() *Options {
	opts := DefaultOptions()
	opts.CreateIfMissing = true
	return opts
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestScenarioUpdateInPlace(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(nil, []byte("key1"), []byte("value1")))
	v, err := db.Get(nil, []byte("key1"))
	require.NoError(t, err)
	require.Equal(t, "value1", string(v))

	require.NoError(t, db.Put(nil, []byte("key1"), []byte("value_replaced")))
	v, err = db.Get(nil, []byte("key1"))
	require.NoError(t, err)
	require.Equal(t, "value_replaced", string(v))
}

func TestScenarioDeleteAndReinsert(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(nil, []byte("tmpkey"), []byte("tmpvalue1")))
	require.NoError(t, db.Delete(nil, []byte("tmpkey")))
	_, err := db.Get(nil, []byte("tmpkey"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put(nil, []byte("tmpkey1"), []byte("tmpvalue1")))
	v, err := db.Get(nil, []byte("tmpkey1"))
	require.NoError(t, err)
	require.Equal(t, "tmpvalue1", string(v))
}

func TestScenarioMultiGetOrderAndDuplicates(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(nil, []byte("tmpkey"), []byte("v1")))
	require.NoError(t, db.Put(nil, []byte("tmpkey2"), []byte("v2")))

	keys := [][]byte{[]byte("tmpkey"), []byte("tmpkey2"), []byte("tmpkey3"), []byte("tmpkey")}
	values, errs := db.MultiGet(nil, keys)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.ErrorIs(t, errs[2], ErrNotFound)
	require.NoError(t, errs[3])

	require.Equal(t, "v1", string(values[0]))
	require.Equal(t, "v2", string(values[1]))
	require.Nil(t, values[2])
	require.Equal(t, "v1", string(values[3]))
}

func TestScenarioLeafSplitAscending(t *testing.T) {
	db := openTestDB(t)

	for i := 1; i <= 8*48; i++ {
		s := strconv.Itoa(i)
		require.NoError(t, db.Put(nil, []byte(s), []byte(s)))
		v, err := db.Get(nil, []byte(s))
		require.NoError(t, err)
		require.Equal(t, s, string(v))
	}
	for i := 1; i <= 8*48; i++ {
		s := strconv.Itoa(i)
		v, err := db.Get(nil, []byte(s))
		require.NoError(t, err)
		require.Equal(t, s, string(v))
	}
}

func TestScenarioRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path, testOptions())
	require.NoError(t, err)

	require.NoError(t, db.Put(nil, []byte("key1"), []byte("value1")))
	require.NoError(t, db.Put(nil, []byte("key2"), []byte("value2")))
	require.NoError(t, db.Put(nil, []byte("key3"), []byte("value3")))
	require.NoError(t, db.Delete(nil, []byte("key2")))
	require.NoError(t, db.Put(nil, []byte("key3"), []byte("VALUE3")))
	require.NoError(t, db.Close())

	reopened, err := Open(path, testOptions())
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(nil, []byte("key1"))
	require.NoError(t, err)
	require.Equal(t, "value1", string(v))

	_, err = reopened.Get(nil, []byte("key2"))
	require.ErrorIs(t, err, ErrNotFound)

	v, err = reopened.Get(nil, []byte("key3"))
	require.NoError(t, err)
	require.Equal(t, "VALUE3", string(v))
}

func TestMergeIsAliasForPut(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Merge(nil, []byte("k"), []byte("v1")))
	v, err := db.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))

	require.NoError(t, db.Merge(nil, []byte("k"), []byte("v2")))
	v, err = db.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(v))
}

func TestUnsupportedOperationsReturnErrNotSupported(t *testing.T) {
	db := openTestDB(t)

	require.ErrorIs(t, db.Write(nil, &WriteBatch{}), ErrNotSupported)
	require.ErrorIs(t, db.SingleDelete(nil, []byte("k")), ErrNotSupported)
	require.ErrorIs(t, db.DeleteRange(nil, nil, nil), ErrNotSupported)
	require.ErrorIs(t, db.Flush(), ErrNotSupported)
	require.ErrorIs(t, db.CompactRange(nil, nil), ErrNotSupported)

	_, err := db.NewIterator(nil)
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = db.GetSnapshot()
	require.ErrorIs(t, err, ErrNotSupported)

	require.ErrorIs(t, db.ReleaseSnapshot(nil), ErrNotSupported)

	_, ok := db.GetProperty("rocksdb.stats")
	require.False(t, ok)
}

func TestOperationsAfterCloseReturnErrDBClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, testOptions())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = db.Put(nil, []byte("k"), []byte("v"))
	require.ErrorIs(t, err, ErrDBClosed)

	_, err = db.Get(nil, []byte("k"))
	require.ErrorIs(t, err, ErrDBClosed)
}

func TestOpenWithoutCreateIfMissingFailsOnAbsentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := Open(path, DefaultOptions())
	require.Error(t, err)
}

func TestOpenWithErrorIfExistsFailsOnPresentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "present.db")
	db, err := Open(path, testOptions())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	opts := testOptions()
	opts.ErrorIfExists = true
	_, err = Open(path, opts)
	require.Error(t, err)
}

// Corrupting the pool header on disk while the handle is open must be
// caught by VerifyChecksums on the next Get, and — because the default
// logger's Fatalf handler marks the handle fatal — every write after
// that must be rejected too, rather than quietly building more state on
// top of a pool that has already been found corrupt.
func TestCorruptHeaderFailsReadsAndRejectsSubsequentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, testOptions())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put(nil, []byte("k"), []byte("v")))

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xff, 0xff, 0xff, 0xff}, 8)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = db.Get(nil, []byte("k"))
	require.ErrorIs(t, err, ErrCorruption)

	err = db.Put(nil, []byte("k2"), []byte("v2"))
	require.Error(t, err)
	require.True(t, errors.Is(err, logging.ErrFatal), "write after a fatal read must surface the same fatal condition")

	err = db.Delete(nil, []byte("k"))
	require.Error(t, err)
	require.True(t, errors.Is(err, logging.ErrFatal))
}

func TestReadCacheCoherenceWithOverwrite(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put(nil, []byte("k"), []byte("v1")))
	v, err := db.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))

	require.NoError(t, db.Put(nil, []byte("k"), []byte("v2")))
	v, err = db.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(v), "cache must not serve a value staler than the most recent Put")

	require.NoError(t, db.Delete(nil, []byte("k")))
	_, err = db.Get(nil, []byte("k"))
	require.ErrorIs(t, err, ErrNotFound, "cache must not resurrect a deleted key")
}
