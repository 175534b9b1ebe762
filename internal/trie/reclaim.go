package trie

import "sync"

// reclaimer implements the epoch-based memory reclamation scheme described
// in spec §4.1: a reader pins the current epoch for the duration of a
// traversal, and a retired value is only dropped once no pin active at
// retirement time remains outstanding. Go's garbage collector does the
// actual freeing once the last reference to a retired valueBox is dropped
// from the garbage map; this type only decides *when* that drop is safe.
type reclaimer struct {
	mu      sync.Mutex
	epoch   uint64
	pins    map[uint64]int
	garbage map[uint64][]*valueBox
}

func newReclaimer() *reclaimer {
	return &reclaimer{
		pins:    make(map[uint64]int),
		garbage: make(map[uint64][]*valueBox),
	}
}

// guard represents one pinned epoch held by an in-flight reader or writer.
type guard struct {
	r     *reclaimer
	epoch uint64
}

// Pin announces that the caller is about to traverse the trie and must not
// observe any node or value freed after this call returns.
func (r *reclaimer) Pin() *guard {
	r.mu.Lock()
	e := r.epoch
	r.pins[e]++
	r.mu.Unlock()
	return &guard{r: r, epoch: e}
}

// Unpin ends the traversal begun by the matching Pin.
func (g *guard) Unpin() {
	r := g.r
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pins[g.epoch]--
	if r.pins[g.epoch] <= 0 {
		delete(r.pins, g.epoch)
		r.reclaimLocked()
	}
}

// Retire marks vb as superseded; it becomes eligible for reclamation once
// no pin from epoch or earlier remains active. Every retirement advances
// the global epoch so that future pins do not observe it.
func (r *reclaimer) Retire(epoch uint64, vb *valueBox) {
	if vb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.garbage[epoch] = append(r.garbage[epoch], vb)
	r.epoch++
	r.reclaimLocked()
}

// reclaimLocked drops garbage belonging to any epoch older than the oldest
// epoch currently pinned. Caller must hold r.mu.
func (r *reclaimer) reclaimLocked() {
	if len(r.pins) == 0 {
		for e := range r.garbage {
			delete(r.garbage, e)
		}
		return
	}

	minPinned := r.epoch
	for e := range r.pins {
		if e < minPinned {
			minPinned = e
		}
	}
	for e := range r.garbage {
		if e < minPinned {
			delete(r.garbage, e)
		}
	}
}
