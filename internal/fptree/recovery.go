package fptree

// recovery.go implements the recovery engine run once during Open,
// between pool attach and the first request: resolve any outstanding
// split/delete micro-log, walk the persistent leaf list rebuilding the
// volatile Leaf Nodes, then bulk-load a balanced Inner Node tree with
// each leaf's largest key as the separator to its right neighbour.

import (
	"errors"
	"fmt"

	"github.com/screedb/screedb-go/internal/logging"
	"github.com/screedb/screedb-go/internal/pmpool"
)

// ErrCorruption is returned when recovery detects a leaf-list cycle or
// other structural inconsistency it cannot resolve.
var ErrCorruption = errors.New("fptree: corruption detected during recovery")

// RecoverTree runs the recovery engine over an already-opened pool and
// returns a ready-to-use Tree. It is the sole entry point callers (the
// façade's Open) should use; it performs its own transactions for the
// opened/closed counters per §4.6.
func RecoverTree(pool *pmpool.Pool, logger logging.Logger) (*Tree, error) {
	logger = logging.OrDefault(logger)
	root := pool.Root()

	if opened, closed := root.Opened(), root.Closed(); opened < closed {
		return nil, fmt.Errorf("%w: opened counter %d is behind closed counter %d", ErrCorruption, opened, closed)
	}

	if err := resolveMicrolog(pool, logger); err != nil {
		return nil, err
	}

	leaves, err := walkLeafList(pool)
	if err != nil {
		return nil, err
	}

	top := buildInnerTree(leaves)

	if err := pool.Transact(func(txn *pmpool.Txn) error {
		root.SetOpened(txn, root.Opened()+1)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fptree: incrementing opened counter: %w", err)
	}

	logger.Infof("%srecovered tree with %d leaves", logging.NSRecovery, len(leaves))
	return NewTree(pool, top), nil
}

// Shutdown increments the closed counter inside a transaction, per
// §4.6's "On close, Shutdown increments closed inside a transaction."
func Shutdown(pool *pmpool.Pool) error {
	root := pool.Root()
	return pool.Transact(func(txn *pmpool.Txn) error {
		root.SetClosed(txn, root.Closed()+1)
		return nil
	})
}

// maxLeafBound returns a cycle-detection ceiling derived from the pool's
// total capacity: no legitimate leaf list can hold more entries than the
// arena could possibly allocate as leaf blocks, so exceeding this count
// while walking the list proves a cycle.
func maxLeafBound(pool *pmpool.Pool) int {
	capacity := len(pool.Data()) / LeafBlockSize
	return capacity + 1
}

// walkLeafList follows root.head to the end of the persistent leaf
// chain, building one Leaf Node per leaf and copying its fingerprint
// array into the mirror (§4.6 step 2, invariant I5). Every occupied slot
// is opportunistically cross-checked: its stored fingerprint must equal
// PearsonHash of the key actually stored there, per I1. This is
// detection-only — a mismatch can only mean the on-media bytes were
// corrupted by something other than this package's own write paths (all
// of which always write a slot's key before its fingerprint), so
// recovery reports it rather than attempting a repair.
func walkLeafList(pool *pmpool.Pool) ([]*Node, error) {
	bound := maxLeafBound(pool)
	var leaves []*Node
	ptr := pool.Root().Head()
	for ptr != 0 {
		if len(leaves) > bound {
			return nil, fmt.Errorf("%w: leaf list exceeds %d entries, likely a cycle", ErrCorruption, bound)
		}
		leaf := LeafAt(pool, ptr)
		node := NewLeafNode(leaf)
		if err := verifyLeafFingerprints(node); err != nil {
			return nil, err
		}
		leaves = append(leaves, node)
		ptr = leaf.Next()
	}
	return leaves, nil
}

// verifyLeafFingerprints checks every occupied slot's stored fingerprint
// against PearsonHash of its stored key, returning ErrCorruption on the
// first mismatch found.
func verifyLeafFingerprints(node *Node) error {
	for i := 0; i < NodeKeys; i++ {
		fp := node.Mirror[i]
		if fp == 0 {
			continue
		}
		if want := PearsonHash(node.Leaf.Key(i)); fp != want {
			return fmt.Errorf("%w: leaf at offset %d slot %d has fingerprint %d, want %d for its stored key",
				ErrCorruption, node.Leaf.Offset, i, fp, want)
		}
	}
	return nil
}

// buildInnerTree re-derives the volatile inner-node index by sort-merging
// one separator key per leaf (§4.6 step 3's "ideal behavior": a full
// balanced inner tree rather than degrading to a linear scan from the
// first leaf). Leaves are taken in persistent-list order; since Put only
// ever prepends newly split leaves to the head of the list and routes
// each key to at most one leaf, the list need not already be key-sorted
// — buildInnerTree sorts leaves by their own smallest key before laying
// out separators, and uses each leaf's largest key as the separator
// between it and the next leaf.
func buildInnerTree(leaves []*Node) *Node {
	if len(leaves) == 0 {
		return nil
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	sorted := make([]leafKey, len(leaves))
	for i, l := range leaves {
		sorted[i] = leafKey{node: l, smallest: l.smallestKey(DefaultComparator)}
	}
	insertionSortLeaves(sorted)

	// The separator between two neighbouring leaves is the largest key of
	// the left one: Search routes a key equal to a separator to the left
	// child, so every key of the left leaf compares <= it and every key
	// of the right leaf compares > it.
	level := make([]*Node, len(sorted))
	seps := make([][]byte, len(sorted)-1)
	for i, lk := range sorted {
		level[i] = lk.node
		if i == len(sorted)-1 {
			continue
		}
		var largest []byte
		for s := 0; s < NodeKeys; s++ {
			if lk.node.Mirror[s] == 0 {
				continue
			}
			if k := lk.node.Leaf.Key(s); largest == nil || DefaultComparator.Compare(k, largest) > 0 {
				largest = k
			}
		}
		seps[i] = largest
	}

	for len(level) > 1 {
		level, seps = buildInnerLevel(level, seps)
	}
	return level[0]
}

// leafKey pairs a leaf node with its smallest key, for sorting leaves
// by key order when building the inner tree.
type leafKey struct {
	node     *Node
	smallest []byte
}

// insertionSortLeaves sorts leaves by smallest key. The per-level leaf
// count is small enough in practice (bounded by the dataset size divided
// by NodeKeys) that insertion sort's simplicity outweighs its
// asymptotics here, mirroring the allocator's own preference for simple
// algorithms over asymptotically optimal ones.
func insertionSortLeaves(s []leafKey) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && DefaultComparator.Compare(s[j].smallest, s[j-1].smallest) < 0; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// buildInnerLevel groups children and separators into one level of
// INNER_KEYS+1-wide Inner Nodes, returning the next level up along with
// the separators between its nodes (for each pair of neighbouring
// nodes, the separator that stood between the last child of the left
// one and the first child of the right one).
//
// A trailing group smaller than INNER_KEYS_MIDPOINT+1 children would
// leave a non-root inner node below the I3 minimum. If the last two
// groups together still fit in one INNER_KEYS+1-wide node, they are
// folded into one; otherwise their children are rebalanced between the
// two groups so neither falls below the minimum (undersized groups only
// ever arise as the trailing remainder of a fixed-width walk, so the
// second-to-last group always starts at fanout size, leaving just
// enough headroom in both to redistribute evenly).
func buildInnerLevel(children []*Node, seps [][]byte) (nextLevel []*Node, nextSeps [][]byte) {
	const fanout = InnerKeys + 1
	const minGroup = InnerKeysMidpoint + 1

	var bounds []int
	for i := 0; i < len(children); i += fanout {
		end := i + fanout
		if end > len(children) {
			end = len(children)
		}
		bounds = append(bounds, end)
	}
	if n := len(bounds); n >= 2 {
		secondLastStart := 0
		if n >= 3 {
			secondLastStart = bounds[n-3]
		}
		lastGroupSize := bounds[n-1] - bounds[n-2]
		combinedSize := bounds[n-1] - secondLastStart
		if lastGroupSize < minGroup {
			if combinedSize <= fanout {
				bounds = bounds[:n-1]
				bounds[len(bounds)-1] = len(children)
			} else {
				firstSize := (combinedSize + 1) / 2
				if firstSize > fanout {
					firstSize = fanout
				}
				if combinedSize-firstSize < minGroup {
					firstSize = combinedSize - minGroup
				}
				bounds[n-2] = secondLastStart + firstSize
			}
		}
	}

	start := 0
	for idx, end := range bounds {
		group := children[start:end]
		groupSeps := seps[start:min(end-1, len(seps))]

		n := &Node{Kind: KindInner, KeyCount: len(group) - 1}
		for j, c := range group {
			n.Children[j] = c
			c.Parent = n
		}
		for j, s := range groupSeps {
			n.Keys[j] = s
		}
		nextLevel = append(nextLevel, n)

		if idx < len(bounds)-1 {
			nextSeps = append(nextSeps, seps[end-1])
		}
		start = end
	}
	return nextLevel, nextSeps
}

// resolveMicrolog implements §4.6 step 1 against the state machine
// LeafSplit/Delete advance through (see tree.go). Stage 0 (logged before
// the new leaf is even allocated) and stage 2 (logged after every
// persistent step of the split has completed) both describe a crash
// window that is already self-consistent on disk, so those are retired
// by discarding the log. Stage 1 — logged once the new leaf is linked at
// head but before migration of the "high" half has finished — is the
// one window that can leave a key stranded in curLeaf where a completed
// split would have moved it to newLeaf; §4.6 requires re-running the
// move for every slot whose key compares strictly greater than the
// logged split key, which is idempotent against whatever migration
// already happened before the crash (an already-moved slot reads as
// cleared in curLeaf and is skipped). Delete's log has only one stage
// and nothing to replay: ClearSlot only ever zeroes a fingerprint, and a
// zero fingerprint is already the fully-deleted state regardless of when
// the crash interrupted it.
func resolveMicrolog(pool *pmpool.Pool, logger logging.Logger) error {
	root := pool.Root()
	m := root.Microlog()

	switch m.Kind {
	case pmpool.MicroLogNone:
		return nil
	case pmpool.MicroLogDelete:
		logger.Debugf("%sdiscarding resolved delete micro-log", logging.NSRecovery)
	case pmpool.MicroLogSplit:
		if m.Stage == 1 {
			logger.Warnf("%sreplaying interrupted split migration (curLeaf=%d newLeaf=%d)",
				logging.NSRecovery, m.CurLeaf, m.NewLeaf)
			if err := replaySplitStage1(pool, m); err != nil {
				return err
			}
		} else {
			logger.Debugf("%sdiscarding split micro-log at stage %d", logging.NSRecovery, m.Stage)
		}
	default:
		return fmt.Errorf("%w: unknown micro-log kind %d", ErrCorruption, m.Kind)
	}
	return clearMicrolog(pool, root)
}

// replaySplitStage1 finishes a split interrupted after the new leaf was
// linked but before migration completed, driven entirely by the logged
// CurLeaf/NewLeaf/SplitKey rather than by either leaf's current
// contents: it re-runs the exact per-slot move LeafSplit performs (same
// slot index in both leaves, which is always free in newLeaf for a slot
// not yet migrated), so a slot already moved before the crash is a
// no-op and a slot not yet moved is migrated now.
func replaySplitStage1(pool *pmpool.Pool, m pmpool.MicroLog) error {
	splitKey := append([]byte(nil), m.SplitKey[:m.SplitKeyLen]...)
	curLeaf := LeafAt(pool, m.CurLeaf)
	newLeaf := LeafAt(pool, m.NewLeaf)

	return pool.Transact(func(txn *pmpool.Txn) error {
		for i := 0; i < NodeKeys; i++ {
			if curLeaf.Fingerprint(i) == 0 {
				continue
			}
			if DefaultComparator.Compare(curLeaf.Key(i), splitKey) <= 0 {
				continue
			}
			if err := curLeaf.MoveSlot(txn, newLeaf, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearMicrolog(pool *pmpool.Pool, root *pmpool.RootView) error {
	return pool.Transact(func(txn *pmpool.Txn) error {
		root.SetMicrolog(txn, pmpool.MicroLog{})
		return nil
	})
}
