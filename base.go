package lattice

import (
	"iter"
	"sync"

	"lattice/internal/atom"
	"lattice/internal/record"
)

// Base is an embeddable record type implementing spec.md §9's design option
// (b): a base record type exposing an explicit Set(name, value) method over
// a sealed attribute bag, which notifies the engine on every write. Callers
// who cannot embed Base may implement Record directly and invoke the
// installed callback themselves.
type Base struct {
	mu    sync.RWMutex
	attrs map[string]atom.Atom
	cb    record.Callback
}

// Set writes name=v on the record's attribute bag. Before registration (no
// callback installed yet) this just seeds the initial attribute set read by
// Attributes() at Index.Add time. After registration, it also notifies the
// engine so every index the record participates in stays consistent.
func (b *Base) Set(name string, v atom.Atom) {
	b.mu.Lock()
	if b.attrs == nil {
		b.attrs = make(map[string]atom.Atom)
	}
	b.attrs[name] = v
	cb := b.cb
	b.mu.Unlock()

	if cb != nil {
		cb(name, v)
	}
}

// Get returns the current value of name and whether it is set.
func (b *Base) Get(name string) (atom.Atom, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.attrs[name]
	return v, ok
}

// Attributes implements record.Record.
func (b *Base) Attributes() iter.Seq2[string, atom.Atom] {
	return func(yield func(string, atom.Atom) bool) {
		b.mu.RLock()
		snap := make(map[string]atom.Atom, len(b.attrs))
		for k, v := range b.attrs {
			snap[k] = v
		}
		b.mu.RUnlock()

		for k, v := range snap {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Install implements record.Record.
func (b *Base) Install(cb record.Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = cb
}
