// Package trie implements the radix-256 byte trie used as the engine's
// in-memory memtable index (spec §4.1). Every node holds a fixed 256-slot
// array of child pointers (one per possible next key byte) plus one value
// slot; both kinds of slot are atomic pointers supporting acquire/release
// loads, compare-and-swap, and unconditional swap, so a single writer and
// any number of concurrent readers can share the structure without coarse
// locking. Superseded values are reclaimed through an epoch scheme rather
// than freed immediately, so a reader that loaded a pointer before a
// concurrent remove/put never observes a dangling value mid-traversal.
package trie

import (
	"sync/atomic"

	"github.com/bobboyms/kvengine/internal/kverrors"
)

// valueBox wraps a value so the value slot can be an atomic pointer (nil
// means absent) without aliasing the caller's byte slice.
type valueBox struct {
	data []byte
}

// node is one position in the trie, addressed by the path of key bytes
// from the root.
type node struct {
	children [256]atomic.Pointer[node]
	value    atomic.Pointer[valueBox]
}

// Trie is a concurrent radix-256 byte trie mapping non-empty keys to
// arbitrary (possibly empty) values.
type Trie struct {
	root    *node
	reclaim *reclaimer
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{
		root:    &node{},
		reclaim: newReclaimer(),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// descend walks the path for key from the root, installing fresh empty
// nodes for any missing child slot via CAS (adopting the winner's node on
// a lost race), and returns the terminal node.
func (t *Trie) descend(key []byte) *node {
	cur := t.root
	for _, b := range key {
		slot := &cur.children[b]
		child := slot.Load()
		if child == nil {
			fresh := &node{}
			if slot.CompareAndSwap(nil, fresh) {
				child = fresh
			} else {
				child = slot.Load()
			}
		}
		cur = child
	}
	return cur
}

// walk follows key from the root without creating missing nodes, returning
// nil if any slot along the path is absent.
func (t *Trie) walk(key []byte) *node {
	cur := t.root
	for _, b := range key {
		cur = cur.children[b].Load()
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Get returns (value, true, nil) if key is present, (nil, false, nil) if
// absent, or (nil, false, kverrors.ErrInvalidKey) for an empty key.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, kverrors.ErrInvalidKey
	}

	g := t.reclaim.Pin()
	defer g.Unpin()

	n := t.walk(key)
	if n == nil {
		return nil, false, nil
	}
	vb := n.value.Load()
	if vb == nil {
		return nil, false, nil
	}
	return cloneBytes(vb.data), true, nil
}

// Insert stores value at key only if the terminal node is currently
// empty. It returns *kverrors.AlreadyWrittenError (carrying a copy of the
// resident value) if key already holds a value, or kverrors.ErrInvalidKey
// for an empty key.
func (t *Trie) Insert(key, value []byte) error {
	if len(key) == 0 {
		return kverrors.ErrInvalidKey
	}

	g := t.reclaim.Pin()
	defer g.Unpin()

	n := t.descend(key)
	box := &valueBox{data: cloneBytes(value)}
	if n.value.CompareAndSwap(nil, box) {
		return nil
	}
	old := n.value.Load()
	var oldCopy []byte
	if old != nil {
		oldCopy = cloneBytes(old.data)
	}
	return &kverrors.AlreadyWrittenError{Old: oldCopy}
}

// Put unconditionally replaces whatever value is resident at key (nil if
// none) and returns the previous value. The descent is identical to
// Insert; only the terminal operation differs. If the terminal CAS loses a
// race to a concurrent writer it returns *kverrors.CasFailedError carrying
// the value it observed instead of retrying.
func (t *Trie) Put(key, value []byte) (prev []byte, hadPrev bool, err error) {
	if len(key) == 0 {
		return nil, false, kverrors.ErrInvalidKey
	}

	g := t.reclaim.Pin()
	defer g.Unpin()

	n := t.descend(key)
	box := &valueBox{data: cloneBytes(value)}
	old := n.value.Load()
	if !n.value.CompareAndSwap(old, box) {
		observed := n.value.Load()
		var observedCopy []byte
		if observed != nil {
			observedCopy = cloneBytes(observed.data)
		}
		return nil, false, &kverrors.CasFailedError{Observed: observedCopy}
	}

	if old == nil {
		return nil, false, nil
	}
	t.reclaim.Retire(g.epoch, old)
	return cloneBytes(old.data), true, nil
}

// Remove clears the value at key, if any, and returns the value that was
// resident. The cleared value is retired for epoch-based reclamation
// rather than freed on the spot.
func (t *Trie) Remove(key []byte) (prev []byte, hadPrev bool, err error) {
	if len(key) == 0 {
		return nil, false, kverrors.ErrInvalidKey
	}

	g := t.reclaim.Pin()
	defer g.Unpin()

	n := t.walk(key)
	if n == nil {
		return nil, false, nil
	}
	old := n.value.Swap(nil)
	if old == nil {
		return nil, false, nil
	}
	t.reclaim.Retire(g.epoch, old)
	return cloneBytes(old.data), true, nil
}

// Entry is one (key, value) pair produced by IterAll.
type Entry struct {
	Key   []byte
	Value []byte
}

// IterAll returns every (key, value) pair in the trie in strictly
// ascending bytewise key order, via a depth-first traversal that visits
// children in ascending byte order.
func (t *Trie) IterAll() []Entry {
	g := t.reclaim.Pin()
	defer g.Unpin()

	var out []Entry
	var walkNode func(n *node, prefix []byte)
	walkNode = func(n *node, prefix []byte) {
		if vb := n.value.Load(); vb != nil {
			out = append(out, Entry{Key: cloneBytes(prefix), Value: cloneBytes(vb.data)})
		}
		for b := 0; b < 256; b++ {
			child := n.children[b].Load()
			if child == nil {
				continue
			}
			next := make([]byte, len(prefix)+1)
			copy(next, prefix)
			next[len(prefix)] = byte(b)
			walkNode(child, next)
		}
	}
	walkNode(t.root, nil)
	return out
}
