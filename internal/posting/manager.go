package posting

import (
	"iter"
	"sync"

	"lattice/internal/atom"
)

// Manager owns one AttributeIndex per attribute name, created lazily on
// first use. The attribute-name map itself is guarded separately from each
// AttributeIndex's own lock, so that creating a brand-new attribute does not
// block readers/writers of existing ones.
type Manager struct {
	mu    sync.RWMutex
	attrs map[string]*AttributeIndex
}

// NewManager returns an empty attribute manager.
func NewManager() *Manager {
	return &Manager{attrs: make(map[string]*AttributeIndex)}
}

func (m *Manager) indexFor(name string, create bool) *AttributeIndex {
	m.mu.RLock()
	ai, ok := m.attrs[name]
	m.mu.RUnlock()
	if ok || !create {
		return ai
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ai, ok := m.attrs[name]; ok {
		return ai
	}
	ai = NewAttributeIndex()
	m.attrs[name] = ai
	return ai
}

// Insert adds h to attribute name's posting list for v.
func (m *Manager) Insert(name string, v atom.Atom, h atom.Handle) {
	m.indexFor(name, true).Insert(v, h)
}

// Remove drops h from attribute name's posting list for v.
func (m *Manager) Remove(name string, v atom.Atom, h atom.Handle) {
	if ai := m.indexFor(name, false); ai != nil {
		ai.Remove(v, h)
	}
}

// Eq streams handles carrying value v for attribute name. Querying an
// attribute name no record has ever carried yields nothing, not an error.
func (m *Manager) Eq(name string, v atom.Atom) iter.Seq[atom.Handle] {
	ai := m.indexFor(name, false)
	if ai == nil {
		return func(func(atom.Handle) bool) {}
	}
	return ai.Eq(v)
}

// Count returns the posting-list size for (name, v), used as a cheap
// cardinality estimate by the query evaluator's `and` ordering.
func (m *Manager) Count(name string, v atom.Atom) int {
	ai := m.indexFor(name, false)
	if ai == nil {
		return 0
	}
	return ai.Count(v)
}

// Range streams handles whose attribute name's numeric value falls between
// lo and hi, each bound inclusive or exclusive per loIncl/hiIncl.
func (m *Manager) Range(name string, lo, hi float64, loIncl, hiIncl bool) iter.Seq[atom.Handle] {
	ai := m.indexFor(name, false)
	if ai == nil {
		return func(func(atom.Handle) bool) {}
	}
	return ai.Range(lo, hi, loIncl, hiIncl)
}
