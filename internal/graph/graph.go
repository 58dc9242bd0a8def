// Package graph implements the EdgeTable that backs dotted-path resolution:
// forward edges (parent, attr) -> child and the reverse multimap used to
// invert traversal for multi-segment paths (spec.md §4.E).
package graph

import (
	"iter"
	"sync"

	"lattice/internal/atom"
)

type edgeKey struct {
	parent atom.Handle
	attr   string
}

// EdgeTable is a directed graph whose vertices are handles and whose edges
// are (parent, attr) -> child, per spec.md §3's EdgeTable.
type EdgeTable struct {
	mu sync.RWMutex

	// forward[parent][attr] = child
	forward map[atom.Handle]map[string]atom.Handle

	// reverse[child] = set of (parent, attr) pairs
	reverse map[atom.Handle]map[edgeKey]struct{}
}

// New returns an empty edge table.
func New() *EdgeTable {
	return &EdgeTable{
		forward: make(map[atom.Handle]map[string]atom.Handle),
		reverse: make(map[atom.Handle]map[edgeKey]struct{}),
	}
}

// Set installs the forward edge (parent, attr) -> child, replacing any
// existing edge for (parent, attr) and updating the reverse multimap to
// match (invariant I2).
func (e *EdgeTable) Set(parent atom.Handle, attr string, child atom.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(parent, attr)

	if e.forward[parent] == nil {
		e.forward[parent] = make(map[string]atom.Handle)
	}
	e.forward[parent][attr] = child

	key := edgeKey{parent: parent, attr: attr}
	if e.reverse[child] == nil {
		e.reverse[child] = make(map[edgeKey]struct{})
	}
	e.reverse[child][key] = struct{}{}
}

// Remove deletes the forward edge (parent, attr) and its mirrored reverse
// entry, if present.
func (e *EdgeTable) Remove(parent atom.Handle, attr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(parent, attr)
}

func (e *EdgeTable) removeLocked(parent atom.Handle, attr string) {
	attrs, ok := e.forward[parent]
	if !ok {
		return
	}
	child, ok := attrs[attr]
	if !ok {
		return
	}
	delete(attrs, attr)
	if len(attrs) == 0 {
		delete(e.forward, parent)
	}

	key := edgeKey{parent: parent, attr: attr}
	if revs, ok := e.reverse[child]; ok {
		delete(revs, key)
		if len(revs) == 0 {
			delete(e.reverse, child)
		}
	}
}

// RemoveHandle severs every edge that mentions h: h's own forward edges (h
// no longer has live attributes to resolve through), and every reverse edge
// pointing at h (so traversal treats the referrer's now-dangling ref as
// unresolved, per spec.md §4.D's on_destroy behavior). The referrer's own
// attribute snapshot is untouched — that value is owned by the record
// registry, not the graph.
func (e *EdgeTable) RemoveHandle(h atom.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if attrs, ok := e.forward[h]; ok {
		for attr, child := range attrs {
			key := edgeKey{parent: h, attr: attr}
			if revs, ok := e.reverse[child]; ok {
				delete(revs, key)
				if len(revs) == 0 {
					delete(e.reverse, child)
				}
			}
		}
		delete(e.forward, h)
	}

	if revs, ok := e.reverse[h]; ok {
		for key := range revs {
			if attrs, ok := e.forward[key.parent]; ok {
				delete(attrs, key.attr)
				if len(attrs) == 0 {
					delete(e.forward, key.parent)
				}
			}
		}
		delete(e.reverse, h)
	}
}

// Child returns the handle parent's attr currently resolves to.
func (e *EdgeTable) Child(parent atom.Handle, attr string) (atom.Handle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	child, ok := e.forward[parent][attr]
	return child, ok
}

// ReverseEdges streams every (parent, attr) pair whose forward edge points
// at child.
func (e *EdgeTable) ReverseEdges(child atom.Handle) iter.Seq2[atom.Handle, string] {
	return func(yield func(atom.Handle, string) bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		for key := range e.reverse[child] {
			if !yield(key.parent, key.attr) {
				return
			}
		}
	}
}
