package fptree

// tree.go implements the tree core: Search, Get, Put, FillSlotForKey,
// LeafSplit, UpdateParentsAfterSplit, Delete and MultiGet, wired against
// a pmpool.Pool and the volatile index built out of Node.

import (
	"errors"
	"sort"

	"github.com/screedb/screedb-go/internal/pmpool"
)

// ErrNotFound is returned by Get and reported per-key by MultiGet when a
// key has no entry in the tree.
var ErrNotFound = errors.New("fptree: key not found")

// Tree is the fingerprinting B+-tree core: a persistent pool plus the
// volatile index rebuilt over it.
type Tree struct {
	pool *pmpool.Pool
	top  *Node // nil iff the tree is empty
	cmp  Comparator
}

// NewTree wraps an already-opened, already-recovered pool. Recovery
// (rebuilding top from the persistent leaf list) is performed by
// RecoverTree in recovery.go; NewTree itself does no I/O.
func NewTree(pool *pmpool.Pool, top *Node) *Tree {
	return &Tree{pool: pool, top: top, cmp: DefaultComparator}
}

// Top returns the current volatile root, or nil for an empty tree.
func (t *Tree) Top() *Node { return t.top }

// Search descends the volatile index from the top, following at each
// inner level the child whose separator is the smallest one
// greater-or-equal to key, per §4.5.1's "≤ routing" tie-break. It
// returns the Leaf Node that would hold key, or nil for an empty tree.
func (t *Tree) Search(key []byte) *Node {
	n := t.top
	if n == nil {
		return nil
	}
	for n.Kind == KindInner {
		i := 0
		for i < n.KeyCount && t.cmp.Compare(key, n.Keys[i]) > 0 {
			i++
		}
		n = n.Children[i]
	}
	return n
}

// Get looks up key and returns its value, or ErrNotFound.
func (t *Tree) Get(key []byte) ([]byte, error) {
	leaf := t.Search(key)
	if leaf == nil {
		return nil, ErrNotFound
	}
	h := PearsonHash(key)
	for i := 0; i < NodeKeys; i++ {
		if leaf.Mirror[i] != h {
			continue
		}
		if leaf.Leaf.KeyEquals(i, key) {
			return leaf.Leaf.Value(i), nil
		}
	}
	return nil, ErrNotFound
}

// MultiGet performs a sequential Get per key, preserving input order and
// duplicates, per §4.5.7. found[i] reports whether keys[i] was present.
func (t *Tree) MultiGet(keys [][]byte) (values [][]byte, found []bool) {
	values = make([][]byte, len(keys))
	found = make([]bool, len(keys))
	for i, k := range keys {
		v, err := t.Get(k)
		if err == nil {
			values[i] = v
			found[i] = true
		}
	}
	return values, found
}

// Put inserts or overwrites key with value.
func (t *Tree) Put(key, value []byte) error {
	h := PearsonHash(key)

	if t.top == nil {
		return t.putFirstLeaf(h, key, value)
	}

	leaf := t.Search(key)
	slot, ok := t.fillSlotForKey(leaf, h, key, value)
	if ok {
		_ = slot
		return nil
	}
	return t.leafSplit(leaf, h, key, value)
}

// putFirstLeaf handles Put against an empty tree: §4.5.3 step 1.
func (t *Tree) putFirstLeaf(h byte, key, value []byte) error {
	var leaf PersistentLeaf
	err := t.pool.Transact(func(txn *pmpool.Txn) error {
		var allocErr error
		leaf, allocErr = AllocLeaf(t.pool)
		if allocErr != nil {
			return allocErr
		}
		t.pool.Root().SetHead(txn, pmpool.PPtr(leaf.Offset))
		return leaf.SetSlot(txn, 0, h, key, value)
	})
	if err != nil {
		return err
	}
	node := NewLeafNode(leaf)
	t.top = node
	return nil
}

// fillSlotForKey implements §4.5.3 step 2: scan the mirror in reverse,
// tracking the last empty slot and the first key-matching slot; prefer
// the match. Returns ok=false if the leaf is full with no update target.
func (t *Tree) fillSlotForKey(leaf *Node, h byte, key, value []byte) (slot int, ok bool) {
	matchSlot, emptySlot := leaf.findSlot(h, key)
	target := matchSlot
	if target == -1 {
		target = emptySlot
	}
	if target == -1 {
		return 0, false
	}
	err := t.pool.Transact(func(txn *pmpool.Txn) error {
		return leaf.Leaf.SetSlot(txn, target, h, key, value)
	})
	if err != nil {
		return 0, false
	}
	leaf.refreshSlot(target)
	return target, true
}

// leafSplit implements §4.5.4: split leafnode, distribute slots by the
// byte-sorted midpoint key, insert the new entry into whichever half it
// belongs to, then propagate the split upward through the volatile
// index outside the transaction.
func (t *Tree) leafSplit(leafNode *Node, h byte, key, value []byte) error {
	type entry struct {
		slot int
		key  []byte
	}
	entries := make([]entry, 0, NodeKeys+1)
	for i := 0; i < NodeKeys; i++ {
		if leafNode.Mirror[i] != 0 {
			entries = append(entries, entry{slot: i, key: leafNode.Leaf.Key(i)})
		}
	}
	allKeys := make([][]byte, 0, len(entries)+1)
	for _, e := range entries {
		allKeys = append(allKeys, e.key)
	}
	allKeys = append(allKeys, key)
	sort.Slice(allKeys, func(i, j int) bool { return t.cmp.Compare(allKeys[i], allKeys[j]) < 0 })
	splitKey := allKeys[NodeKeysMidpoint]

	logKey := splitKey
	if len(logKey) > splitKeyLogBufSize {
		logKey = logKey[:splitKeyLogBufSize]
	}
	var splitKeyBuf [splitKeyLogBufSize]byte
	copy(splitKeyBuf[:], logKey)

	var newLeaf PersistentLeaf
	err := t.pool.Transact(func(txn *pmpool.Txn) error {
		root := t.pool.Root()
		// Stage 0: log the intended split before anything persistent
		// changes. A crash here leaves no new leaf allocated at all.
		root.SetMicrolog(txn, pmpool.MicroLog{
			Kind:        pmpool.MicroLogSplit,
			Stage:       0,
			CurLeaf:     pmpool.PPtr(leafNode.Leaf.Offset),
			SplitKeyLen: uint8(len(logKey)),
			SplitKey:    splitKeyBuf,
		})
		// Stage 0 must be durable before the new leaf is allocated and
		// linked: otherwise a crash between this write and the stage 1
		// write below could leave the mapping's dirty pages flushed by
		// the OS in some order recovery has no record of.
		txn.Flush()

		var allocErr error
		newLeaf, allocErr = AllocLeaf(t.pool)
		if allocErr != nil {
			return allocErr
		}

		newLeaf.SetNext(txn, root.Head())
		root.SetHead(txn, pmpool.PPtr(newLeaf.Offset))

		// Stage 1: the new leaf is now linked at head but may still hold
		// a stale copy of keys also present in the source leaf. §8
		// documents this window as benign for Get: the newer leaf sits
		// closer to head, so lookups see it first.
		root.SetMicrolog(txn, pmpool.MicroLog{
			Kind:        pmpool.MicroLogSplit,
			Stage:       1,
			PrevLeaf:    pmpool.PPtr(leafNode.Leaf.Offset),
			CurLeaf:     pmpool.PPtr(leafNode.Leaf.Offset),
			NewLeaf:     pmpool.PPtr(newLeaf.Offset),
			SplitKeyLen: uint8(len(logKey)),
			SplitKey:    splitKeyBuf,
		})
		// The stage 1 log, with newLeaf already linked at head, must be
		// durable before the first slot migrates: recovery's stage 1
		// replay (recovery.go) walks curLeaf by CurLeaf/NewLeaf/SplitKey
		// from this log, and can only do that correctly if the log
		// itself survived whatever crash interrupted the migration below.
		txn.Flush()

		for _, e := range entries {
			k := leafNode.Leaf.Key(e.slot)
			if t.cmp.Compare(k, splitKey) > 0 {
				if err := leafNode.Leaf.MoveSlot(txn, newLeaf, e.slot); err != nil {
					return err
				}
			}
		}

		destLeaf := leafNode.Leaf
		if t.cmp.Compare(key, splitKey) > 0 {
			destLeaf = newLeaf
		}
		emptySlot := firstEmptySlot(destLeaf)
		if emptySlot == -1 {
			return errors.New("fptree: no empty slot available immediately after split")
		}
		if err := destLeaf.SetSlot(txn, emptySlot, h, key, value); err != nil {
			return err
		}

		// Stage 2: every persistent step of the split has completed.
		root.SetMicrolog(txn, pmpool.MicroLog{Kind: pmpool.MicroLogSplit, Stage: 2})
		return nil
	})
	if err != nil {
		return err
	}

	if err := t.pool.Transact(func(txn *pmpool.Txn) error {
		t.pool.Root().SetMicrolog(txn, pmpool.MicroLog{})
		return nil
	}); err != nil {
		return err
	}

	for i := 0; i < NodeKeys; i++ {
		leafNode.refreshSlot(i)
	}
	newLeafNode := NewLeafNode(newLeaf)

	t.updateParentsAfterSplit(leafNode, newLeafNode, splitKey)
	return nil
}

// splitKeyLogBufSize is the micro-log's fixed split-key buffer size
// (mirrors pmpool.splitKeyBufSize; kept as its own constant here since
// the two packages don't share unexported identifiers). Keys longer
// than this are truncated in the log; recovery's stage-1 replay
// (recovery.go) compares against the truncated value, so a key longer
// than this bound that shares the truncated prefix with the true split
// key is resolved on the coarser, truncated comparison instead of its
// full length.
const splitKeyLogBufSize = 64

// firstEmptySlot scans a freshly-written leaf for its first empty slot,
// used right after a split to place the triggering insert.
func firstEmptySlot(leaf PersistentLeaf) int {
	for i := 0; i < NodeKeys; i++ {
		if leaf.Fingerprint(i) == 0 {
			return i
		}
	}
	return -1
}

// updateParentsAfterSplit implements §4.5.5.
func (t *Tree) updateParentsAfterSplit(node, newNode *Node, splitKey []byte) {
	if node.Parent == nil {
		top := &Node{Kind: KindInner, KeyCount: 1}
		top.Keys[0] = splitKey
		top.Children[0] = node
		top.Children[1] = newNode
		node.Parent = top
		newNode.Parent = top
		t.top = top
		return
	}

	parent := node.Parent
	t.insertIntoInner(parent, splitKey, node, newNode)
}

// insertIntoInner inserts splitKey into parent in sorted position with
// newChild as the right sibling of node, splitting parent if it
// overflows INNER_KEYS.
func (t *Tree) insertIntoInner(parent *Node, splitKey []byte, node, newChild *Node) {
	pos := 0
	for pos < parent.KeyCount && parent.Children[pos] != node {
		pos++
	}

	for i := parent.KeyCount; i > pos; i-- {
		parent.Keys[i] = parent.Keys[i-1]
	}
	for i := parent.KeyCount + 1; i > pos+1; i-- {
		parent.Children[i] = parent.Children[i-1]
	}
	parent.Keys[pos] = splitKey
	parent.Children[pos+1] = newChild
	newChild.Parent = parent
	parent.KeyCount++

	if parent.KeyCount <= InnerKeys {
		return
	}

	mid := InnerKeysMidpoint
	fresh := &Node{Kind: KindInner}
	fresh.KeyCount = parent.KeyCount - mid - 1
	promoted := parent.Keys[mid]

	for i := 0; i < fresh.KeyCount; i++ {
		fresh.Keys[i] = parent.Keys[mid+1+i]
	}
	childCount := parent.KeyCount + 1
	freshChildCount := childCount - mid - 1
	for i := 0; i < freshChildCount; i++ {
		fresh.Children[i] = parent.Children[mid+1+i]
		fresh.Children[i].Parent = fresh
	}
	parent.KeyCount = mid

	if parent.Parent == nil {
		top := &Node{Kind: KindInner, KeyCount: 1}
		top.Keys[0] = promoted
		top.Children[0] = parent
		top.Children[1] = fresh
		parent.Parent = top
		fresh.Parent = top
		t.top = top
		return
	}
	t.insertIntoInner(parent.Parent, promoted, parent, fresh)
}

// Delete implements §4.5.6: idempotent, never reclaims leaves.
func (t *Tree) Delete(key []byte) error {
	leaf := t.Search(key)
	if leaf == nil {
		return nil
	}
	h := PearsonHash(key)
	for i := NodeKeys - 1; i >= 0; i-- {
		if leaf.Mirror[i] != h {
			continue
		}
		if !leaf.Leaf.KeyEquals(i, key) {
			continue
		}
		err := t.pool.Transact(func(txn *pmpool.Txn) error {
			root := t.pool.Root()
			root.SetMicrolog(txn, pmpool.MicroLog{
				Kind:    pmpool.MicroLogDelete,
				CurLeaf: pmpool.PPtr(leaf.Leaf.Offset),
				Slot:    uint8(i),
			})
			leaf.Leaf.ClearSlot(txn, i)
			root.SetMicrolog(txn, pmpool.MicroLog{})
			return nil
		})
		if err != nil {
			return err
		}
		leaf.refreshSlot(i)
		return nil
	}
	return nil
}
