package fptree

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/screedb/screedb-go/internal/logging"
	"github.com/screedb/screedb-go/internal/pmpool"
)

func openTestTree(t *testing.T) (*Tree, *pmpool.Pool) {
	t.Helper()
	pool := openTestPool(t)
	tree, err := RecoverTree(pool, logging.Discard)
	require.NoError(t, err)
	return tree, pool
}

// P1: round-trip and overwrite.
func TestPutGetRoundTripAndOverwrite(t *testing.T) {
	tree, _ := openTestTree(t)

	require.NoError(t, tree.Put([]byte("k"), []byte("v1")))
	v, err := tree.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, tree.Put([]byte("k"), []byte("v2")))
	v, err = tree.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}

// P2: idempotent delete.
func TestDeleteIdempotent(t *testing.T) {
	tree, _ := openTestTree(t)

	require.NoError(t, tree.Put([]byte("k"), []byte("v")))
	require.NoError(t, tree.Delete([]byte("k")))
	require.NoError(t, tree.Delete([]byte("k")))

	_, err := tree.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

// P3: empty tree behavior.
func TestEmptyTree(t *testing.T) {
	tree, _ := openTestTree(t)

	_, err := tree.Get([]byte("anything"))
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tree.Delete([]byte("anything")))
}

// P4: order-independence of a fixed Put set's final mapping.
func TestPutOrderIndependence(t *testing.T) {
	keys := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	values := []string{"v0", "v1", "v2", "v3", "v4"}

	orderA := []int{0, 1, 2, 3, 4}
	orderB := []int{4, 2, 0, 3, 1}

	run := func(order []int) map[string]string {
		tree, _ := openTestTree(t)
		for _, i := range order {
			require.NoError(t, tree.Put([]byte(keys[i]), []byte(values[i])))
		}
		got := map[string]string{}
		for _, k := range keys {
			v, err := tree.Get([]byte(k))
			require.NoError(t, err)
			got[k] = string(v)
		}
		return got
	}

	require.Equal(t, run(orderA), run(orderB))
}

// P6: fingerprint invariant holds after every operation.
func TestFingerprintInvariant(t *testing.T) {
	tree, _ := openTestTree(t)

	assertInvariant := func() {
		assertFingerprintInvariant(t, tree.Top())
	}
	assertInvariant()

	for i := 0; i < 200; i++ {
		k := []byte(strconv.Itoa(i))
		require.NoError(t, tree.Put(k, k))
		assertInvariant()
	}
	require.NoError(t, tree.Delete([]byte("5")))
	assertInvariant()
}

func assertFingerprintInvariant(t *testing.T, n *Node) {
	t.Helper()
	if n == nil {
		return
	}
	if n.Kind == KindLeaf {
		for i := 0; i < NodeKeys; i++ {
			fp := n.Leaf.Fingerprint(i)
			if fp == 0 {
				continue
			}
			key := n.Leaf.Key(i)
			require.Equal(t, PearsonHash(key), fp, "slot %d fingerprint mismatch", i)
		}
		return
	}
	for i := 0; i <= n.KeyCount; i++ {
		assertFingerprintInvariant(t, n.Children[i])
	}
}

// P7: SSO boundary lengths round-trip through Put/Get.
func TestSSOBoundaryLengths(t *testing.T) {
	tree, _ := openTestTree(t)
	for _, n := range []int{14, 15, 16, 17} {
		key := make([]byte, n)
		value := make([]byte, n)
		for i := range key {
			key[i] = byte('a' + i)
			value[i] = byte('z' - i)
		}
		require.NoError(t, tree.Put(key, value))
		got, err := tree.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, got)
	}
}

// P8: separator ordering in every Inner Node after every Put.
func TestSeparatorOrdering(t *testing.T) {
	tree, _ := openTestTree(t)
	for i := 0; i < 4*NodeKeys; i++ {
		k := []byte(strconv.Itoa(i))
		require.NoError(t, tree.Put(k, k))
		assertSeparatorsOrdered(t, tree.Top())
	}
}

func assertSeparatorsOrdered(t *testing.T, n *Node) {
	t.Helper()
	if n == nil || n.Kind != KindInner {
		return
	}
	for i := 1; i < n.KeyCount; i++ {
		require.Less(t, DefaultComparator.Compare(n.Keys[i-1], n.Keys[i]), 0)
	}
	for i := 0; i <= n.KeyCount; i++ {
		assertSeparatorsOrdered(t, n.Children[i])
	}
}

// Scenario 1: update in place.
func TestScenarioUpdateInPlace(t *testing.T) {
	tree, _ := openTestTree(t)

	require.NoError(t, tree.Put([]byte("key1"), []byte("value1")))
	v, err := tree.Get([]byte("key1"))
	require.NoError(t, err)
	require.Equal(t, "value1", string(v))

	require.NoError(t, tree.Put([]byte("key1"), []byte("value_replaced")))
	v, err = tree.Get([]byte("key1"))
	require.NoError(t, err)
	require.Equal(t, "value_replaced", string(v))
}

// Scenario 2: delete + reinsert.
func TestScenarioDeleteAndReinsert(t *testing.T) {
	tree, _ := openTestTree(t)

	require.NoError(t, tree.Put([]byte("tmpkey"), []byte("tmpvalue1")))
	require.NoError(t, tree.Delete([]byte("tmpkey")))
	_, err := tree.Get([]byte("tmpkey"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tree.Put([]byte("tmpkey1"), []byte("tmpvalue1")))
	v, err := tree.Get([]byte("tmpkey1"))
	require.NoError(t, err)
	require.Equal(t, "tmpvalue1", string(v))
}

// Scenario 3: MultiGet preserves order and duplicates.
func TestScenarioMultiGetOrderAndDuplicates(t *testing.T) {
	tree, _ := openTestTree(t)

	require.NoError(t, tree.Put([]byte("tmpkey"), []byte("v1")))
	require.NoError(t, tree.Put([]byte("tmpkey2"), []byte("v2")))

	keys := [][]byte{[]byte("tmpkey"), []byte("tmpkey2"), []byte("tmpkey3"), []byte("tmpkey")}
	values, found := tree.MultiGet(keys)

	require.Equal(t, []bool{true, true, false, true}, found)
	require.Equal(t, "v1", string(values[0]))
	require.Equal(t, "v2", string(values[1]))
	require.Nil(t, values[2])
	require.Equal(t, "v1", string(values[3]))
}

// Scenario 4: ascending leaf splits across several leaves.
func TestScenarioLeafSplitAscending(t *testing.T) {
	tree, _ := openTestTree(t)

	n := 8 * NodeKeys
	for i := 1; i <= n; i++ {
		s := strconv.Itoa(i)
		require.NoError(t, tree.Put([]byte(s), []byte(s)))
		v, err := tree.Get([]byte(s))
		require.NoError(t, err)
		require.Equal(t, s, string(v))
	}
	for i := 1; i <= n; i++ {
		s := strconv.Itoa(i)
		v, err := tree.Get([]byte(s))
		require.NoError(t, err)
		require.Equal(t, s, string(v))
	}
}

// Scenario 5 (scaled down for test runtime): inner-node growth across
// many splits, re-scanned after the loop.
func TestScenarioInnerNodeGrowth(t *testing.T) {
	tree, _ := openTestTree(t)

	const n = 5000
	for i := 1; i <= n; i++ {
		s := strconv.Itoa(i)
		require.NoError(t, tree.Put([]byte(s), []byte(s+"!")))
		v, err := tree.Get([]byte(s))
		require.NoError(t, err)
		require.Equal(t, s+"!", string(v))
	}
	for i := 1; i <= n; i++ {
		s := strconv.Itoa(i)
		v, err := tree.Get([]byte(s))
		require.NoError(t, err)
		require.Equal(t, s+"!", string(v))
	}
}
