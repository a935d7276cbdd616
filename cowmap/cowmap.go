// Package cowmap implements a persistent ordered map: an immutable
// binary search tree whose Insert returns a new logical map sharing
// all unchanged subtrees with the old one. Nodes are balanced as a
// treap with priorities derived deterministically from keys, so the
// expected depth is O(log n) without a random source. Unreferenced
// nodes are reclaimed by the garbage collector once no live map root
// reaches them.
package cowmap

import "golang.org/x/exp/constraints"

type node[K constraints.Integer, V any] struct {
	key         K
	val         V
	prio        uint64
	left, right *node[K, V]
}

// Map is an immutable key-ordered map. The zero value is the empty
// map. All methods are value receivers; mutating operations return a
// new Map and leave the receiver observationally unchanged.
type Map[K constraints.Integer, V any] struct {
	root *node[K, V]
	size int
}

// Len returns the number of entries.
func (m Map[K, V]) Len() int {
	return m.size
}

// Empty reports whether the map has no entries.
func (m Map[K, V]) Empty() bool {
	return m.root == nil
}

// Get returns the value stored under key.
func (m Map[K, V]) Get(key K) (V, bool) {
	n := m.root
	for n != nil {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			return n.val, true
		}
	}
	var zero V
	return zero, false
}

// Count returns 1 if key is present and 0 otherwise.
func (m Map[K, V]) Count(key K) int {
	if _, ok := m.Get(key); ok {
		return 1
	}
	return 0
}

// Insert returns a new map with key bound to val. Only the nodes on
// the path to key are freshly allocated; sibling subtrees are shared
// with the receiver.
func (m Map[K, V]) Insert(key K, val V) Map[K, V] {
	root, added := insert(m.root, key, val)
	size := m.size
	if added {
		size++
	}
	return Map[K, V]{root: root, size: size}
}

// ForEach visits all entries in ascending key order.
func (m Map[K, V]) ForEach(visit func(K, V)) {
	var walk func(*node[K, V])
	walk = func(n *node[K, V]) {
		if n == nil {
			return
		}
		walk(n.left)
		visit(n.key, n.val)
		walk(n.right)
	}
	walk(m.root)
}

func insert[K constraints.Integer, V any](n *node[K, V], key K, val V) (*node[K, V], bool) {
	if n == nil {
		return &node[K, V]{key: key, val: val, prio: priority(key)}, true
	}
	switch {
	case key < n.key:
		left, added := insert(n.left, key, val)
		out := &node[K, V]{key: n.key, val: n.val, prio: n.prio, left: left, right: n.right}
		if left.prio > out.prio {
			out = rotateRight(out)
		}
		return out, added
	case key > n.key:
		right, added := insert(n.right, key, val)
		out := &node[K, V]{key: n.key, val: n.val, prio: n.prio, left: n.left, right: right}
		if right.prio > out.prio {
			out = rotateLeft(out)
		}
		return out, added
	default:
		return &node[K, V]{key: n.key, val: val, prio: n.prio, left: n.left, right: n.right}, false
	}
}

// rotateRight lifts the left child; the rotated nodes are already
// fresh copies, so no shared node is mutated.
func rotateRight[K constraints.Integer, V any](n *node[K, V]) *node[K, V] {
	l := n.left
	return &node[K, V]{
		key: l.key, val: l.val, prio: l.prio,
		left:  l.left,
		right: &node[K, V]{key: n.key, val: n.val, prio: n.prio, left: l.right, right: n.right},
	}
}

func rotateLeft[K constraints.Integer, V any](n *node[K, V]) *node[K, V] {
	r := n.right
	return &node[K, V]{
		key: r.key, val: r.val, prio: r.prio,
		left:  &node[K, V]{key: n.key, val: n.val, prio: n.prio, left: n.left, right: r.left},
		right: r.right,
	}
}

// priority is the splitmix64 finalizer of the key, so equal keys get
// equal treap priorities and the tree shape is a deterministic
// function of the key set.
func priority[K constraints.Integer](key K) uint64 {
	h := uint64(key) ^ 0x9e3779b97f4a7c15
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}
