// Package shard implements the thin boundary-contract router of spec
// §6: it partitions the first-key-byte space [0, 256) into N ranges,
// each routed to one *engine.Engine rooted at dir/shard<i>. It owns no
// storage logic of its own — every operation is a direct delegation to
// exactly one engine instance.
//
// Grounded on the teacher repo's cmd/server dispatch style (route-then-
// delegate, no business logic at the routing layer) adapted from an
// HTTP handler table to a byte-range table.
package shard

import (
	"fmt"
	"path/filepath"

	"github.com/bobboyms/kvengine/internal/engine"
	"github.com/bobboyms/kvengine/internal/kverrors"
)

// Router owns N engines, one per contiguous range of the first key
// byte. Ranges are assigned by dividing [0, 256) into N roughly equal
// spans of 256/N bytes; the first 256%N spans are one byte wider.
type Router struct {
	dir     string
	engines []*engine.Engine
	bounds  []byte // bounds[i] is the last byte covered by engines[i]
}

// Open creates or recovers N engines under dir/shard0 .. dir/shard<N-1>.
func Open(dir string, n int, memtableMaxBytes uint64) (*Router, error) {
	if n <= 0 {
		return nil, fmt.Errorf("shard: n must be positive, got %d", n)
	}
	if n > 256 {
		return nil, fmt.Errorf("shard: n must not exceed 256, got %d", n)
	}

	r := &Router{dir: dir}
	span := 256 / n
	remainder := 256 % n

	start := 0
	for i := 0; i < n; i++ {
		width := span
		if i < remainder {
			width++
		}
		end := start + width

		shardDir := filepath.Join(dir, fmt.Sprintf("shard%d", i))
		opts := engine.DefaultOptions(shardDir)
		opts.MemtableMaxBytes = memtableMaxBytes

		e, err := engine.Open(opts)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("shard: open shard %d: %w", i, err)
		}

		r.engines = append(r.engines, e)
		r.bounds = append(r.bounds, byte(minInt(end, 256)-1))
		start = end
	}

	return r, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// engineFor returns the engine owning key's first byte. Empty keys are
// rejected here, before any engine is consulted (spec §6: "Empty keys
// are rejected at the router").
func (r *Router) engineFor(key []byte) (*engine.Engine, error) {
	if len(key) == 0 {
		return nil, kverrors.ErrInvalidKey
	}
	b := key[0]
	for i, bound := range r.bounds {
		if b <= bound {
			return r.engines[i], nil
		}
	}
	// unreachable: the last bound is always 255
	return nil, fmt.Errorf("shard: no shard covers byte %#x", b)
}

// Get routes to the single engine owning key.
func (r *Router) Get(key []byte) ([]byte, bool, error) {
	e, err := r.engineFor(key)
	if err != nil {
		return nil, false, err
	}
	return e.Get(key)
}

// Put routes to the single engine owning key.
func (r *Router) Put(key, value []byte) ([]byte, bool, error) {
	e, err := r.engineFor(key)
	if err != nil {
		return nil, false, err
	}
	return e.Put(key, value)
}

// Delete routes to the single engine owning key.
func (r *Router) Delete(key []byte) ([]byte, bool, error) {
	e, err := r.engineFor(key)
	if err != nil {
		return nil, false, err
	}
	return e.Delete(key)
}

// NumShards returns the number of engines this router owns.
func (r *Router) NumShards() int {
	return len(r.engines)
}

// Close closes every owned engine, collecting the first error but
// attempting to close all of them regardless.
func (r *Router) Close() error {
	var first error
	for _, e := range r.engines {
		if e == nil {
			continue
		}
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
