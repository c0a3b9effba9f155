package fptree

// node.go implements the volatile index: Inner Nodes and Leaf Nodes,
// rebuilt from the persistent leaf list on every open and discarded at
// close. Rather than the source's is_leaf flag plus unchecked downcast,
// each node is a tagged variant carrying either inner or leaf fields,
// told apart by its Kind.

import "bytes"

// NodeKind tags which variant a Node holds.
type NodeKind int

const (
	// KindInner identifies an Inner Node.
	KindInner NodeKind = iota
	// KindLeaf identifies a Leaf Node.
	KindLeaf
)

// Node is a volatile tree node: either an Inner Node with separators and
// children, or a Leaf Node mirroring one persistent leaf's fingerprints.
// Nodes are ordinary heap objects reachable from the Tree's top; the
// garbage collector reclaims them, parent back-reference cycles
// included, once the Tree is dropped, so there is no per-node teardown
// logic.
type Node struct {
	Kind   NodeKind
	Parent *Node

	// Inner Node fields (Kind == KindInner). Keys/Children are sized one
	// slot beyond the INNER_KEYS steady-state maximum to hold the
	// transient overflow key/child inserted before a split rebalances.
	KeyCount int
	Keys     [InnerKeys + 1][]byte
	Children [InnerKeys + 2]*Node

	// Leaf Node fields (Kind == KindLeaf).
	Leaf   PersistentLeaf
	Mirror [NodeKeys]byte
}

// NewLeafNode builds a Leaf Node over leaf, copying its fingerprint array
// into the volatile mirror per invariant I5.
func NewLeafNode(leaf PersistentLeaf) *Node {
	n := &Node{Kind: KindLeaf, Leaf: leaf}
	for i := 0; i < NodeKeys; i++ {
		n.Mirror[i] = leaf.Fingerprint(i)
	}
	return n
}

// refreshSlot re-reads one fingerprint from the persistent leaf into the
// mirror, keeping I5 after a slot write or clear.
func (n *Node) refreshSlot(slot int) {
	n.Mirror[slot] = n.Leaf.Fingerprint(slot)
}

// findSlot scans the mirror in reverse index order, per §4.5.3/§4.5.6,
// returning the last empty slot seen and the first key-matching slot,
// either of which may be -1.
func (n *Node) findSlot(h byte, key []byte) (matchSlot, emptySlot int) {
	matchSlot, emptySlot = -1, -1
	for i := NodeKeys - 1; i >= 0; i-- {
		fp := n.Mirror[i]
		if fp == 0 {
			emptySlot = i
			continue
		}
		if fp == h && matchSlot == -1 && n.Leaf.KeyEquals(i, key) {
			matchSlot = i
		}
	}
	return matchSlot, emptySlot
}

// smallestKey returns the lexicographically smallest key currently held
// in this Leaf Node, used by recovery to put leaves in key order before
// it lays out inner-node separators. Returns nil if the leaf is empty.
func (n *Node) smallestKey(cmp Comparator) []byte {
	var smallest []byte
	for i := 0; i < NodeKeys; i++ {
		if n.Mirror[i] == 0 {
			continue
		}
		k := n.Leaf.Key(i)
		if smallest == nil || cmp.Compare(k, smallest) < 0 {
			smallest = k
		}
	}
	return smallest
}

// Comparator is the byte-wise key ordering used throughout the tree
// core; fptree does not expose a pluggable comparator, matching the
// façade's fixed BytewiseComparator.
type Comparator interface {
	Compare(a, b []byte) int
}

type bytewise struct{}

func (bytewise) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// DefaultComparator is the single byte-wise ordering used by the tree
// core.
var DefaultComparator Comparator = bytewise{}
