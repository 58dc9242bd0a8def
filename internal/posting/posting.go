// Package posting implements the per-attribute index structures described by
// the engine's data model: an equality posting list (eq_map) and a sorted
// range index (range_map) for numeric values, both scoped to one attribute
// name.
package posting

import (
	"cmp"
	"iter"
	"slices"
	"sync"

	"lattice/internal/atom"
)

// handleSet is an unordered set of handles. It is never exposed outside this
// package by reference; callers receive it only through iterators.
type handleSet map[atom.Handle]struct{}

// rangeBucket holds every handle whose numeric value casts to the same
// float64 key; ties share a bucket per spec.md §3.
type rangeBucket struct {
	key float64
	set handleSet
}

// AttributeIndex holds the eq_map/range_map pair for a single attribute
// name. A single sync.RWMutex guards both structures: the correctness
// requirement is atomicity of each (remove, insert) pair, not atomicity per
// distinct value, so a per-attribute lock is sufficient and avoids the
// allocation cost of copy-on-write snapshots on every mutation.
type AttributeIndex struct {
	mu     sync.RWMutex
	eq     map[atom.Atom]handleSet
	ranges []rangeBucket // sorted ascending by key
}

// NewAttributeIndex returns an empty per-attribute index.
func NewAttributeIndex() *AttributeIndex {
	return &AttributeIndex{eq: make(map[atom.Atom]handleSet)}
}

// eqKey canonicalizes v into the key used by eq: numeric atoms (int64 or
// float64) collapse onto their float64 representation so that, per spec.md
// §4.A, Int(30) and Float(30) address the same posting list. Atom's own
// struct equality does not give us this for free (its kind tag keeps the
// two variants as distinct map keys), so eq is never indexed by a raw Atom
// directly — every access goes through eqKey.
func eqKey(v atom.Atom) atom.Atom {
	if f, ok := v.AsFloat64(); ok {
		return atom.Float(f)
	}
	return v
}

// Insert adds h to the posting list for v, and to the range index if v is
// numeric.
func (ai *AttributeIndex) Insert(v atom.Atom, h atom.Handle) {
	ai.mu.Lock()
	defer ai.mu.Unlock()

	key := eqKey(v)
	set, ok := ai.eq[key]
	if !ok {
		set = make(handleSet, 1)
		ai.eq[key] = set
	}
	set[h] = struct{}{}

	if f, ok := v.AsFloat64(); ok {
		ai.insertRange(f, h)
	}
}

// Remove drops h from the posting list for v, and from the range index if v
// is numeric. Empty posting lists and range buckets are pruned.
func (ai *AttributeIndex) Remove(v atom.Atom, h atom.Handle) {
	ai.mu.Lock()
	defer ai.mu.Unlock()

	key := eqKey(v)
	if set, ok := ai.eq[key]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(ai.eq, key)
		}
	}

	if f, ok := v.AsFloat64(); ok {
		ai.removeRange(f, h)
	}
}

// Eq streams the handles currently holding value v. The iterator holds the
// attribute's read lock for its full duration, so callers should drain it
// promptly rather than interleave long-running work with iteration.
func (ai *AttributeIndex) Eq(v atom.Atom) iter.Seq[atom.Handle] {
	return func(yield func(atom.Handle) bool) {
		ai.mu.RLock()
		defer ai.mu.RUnlock()
		set, ok := ai.eq[eqKey(v)]
		if !ok {
			return
		}
		for h := range set {
			if !yield(h) {
				return
			}
		}
	}
}

// Count returns the size of the posting list for v without materializing it.
func (ai *AttributeIndex) Count(v atom.Atom) int {
	ai.mu.RLock()
	defer ai.mu.RUnlock()
	return len(ai.eq[eqKey(v)])
}

// Range streams handles whose numeric value falls within [lo, hi] (bounds
// inclusive/exclusive per loIncl/hiIncl). Ordering across the iterator is
// unspecified beyond ascending key order, which this implementation happens
// to provide.
func (ai *AttributeIndex) Range(lo, hi float64, loIncl, hiIncl bool) iter.Seq[atom.Handle] {
	return func(yield func(atom.Handle) bool) {
		ai.mu.RLock()
		defer ai.mu.RUnlock()

		start, _ := slices.BinarySearchFunc(ai.ranges, lo, func(b rangeBucket, target float64) int {
			return cmp.Compare(b.key, target)
		})
		// BinarySearchFunc finds the leftmost bucket with key >= lo; an
		// equal-but-exclusive lower bound is skipped by the per-bucket check
		// below.
		for _, b := range ai.ranges[start:] {
			if b.key > hi || (b.key == hi && !hiIncl) {
				return
			}
			if b.key < lo || (b.key == lo && !loIncl) {
				continue
			}
			for h := range b.set {
				if !yield(h) {
					return
				}
			}
		}
	}
}

func (ai *AttributeIndex) insertRange(key float64, h atom.Handle) {
	i, found := slices.BinarySearchFunc(ai.ranges, key, func(b rangeBucket, target float64) int {
		return cmp.Compare(b.key, target)
	})
	if found {
		ai.ranges[i].set[h] = struct{}{}
		return
	}
	bucket := rangeBucket{key: key, set: handleSet{h: struct{}{}}}
	ai.ranges = slices.Insert(ai.ranges, i, bucket)
}

func (ai *AttributeIndex) removeRange(key float64, h atom.Handle) {
	i, found := slices.BinarySearchFunc(ai.ranges, key, func(b rangeBucket, target float64) int {
		return cmp.Compare(b.key, target)
	})
	if !found {
		return
	}
	delete(ai.ranges[i].set, h)
	if len(ai.ranges[i].set) == 0 {
		ai.ranges = slices.Delete(ai.ranges, i, i+1)
	}
}
