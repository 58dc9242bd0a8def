// Package record implements the engine's record registry: handle
// assignment, canonical attribute snapshots, and the Record interface the
// engine consumes from caller-supplied indexables.
package record

import (
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"lattice/internal/atom"
	"lattice/internal/logging"
)

// Callback is the mutation notification a Record invokes on every
// post-registration attribute write.
type Callback func(attr string, newVal atom.Atom)

// Record is the thin interface the engine consumes from caller-supplied
// indexables (spec.md §6). Equality after registration is identity-based:
// the engine tracks records by handle, keyed internally by the Record
// value's own identity (callers are expected to register pointers).
type Record interface {
	// Attributes yields the record's current (name, value) pairs at
	// registration time. Names beginning with "_" are excluded from
	// indexing by the registry, not by the implementation.
	Attributes() iter.Seq2[string, atom.Atom]

	// Install supplies the engine's mutation callback. Implementations
	// must invoke cb on every attribute write after this call returns.
	Install(cb Callback)
}

// Registry assigns handles, owns the canonical handle->snapshot map, and
// is the authority consulted by the mutation dispatcher and by on_destroy.
type Registry struct {
	logger *slog.Logger

	next atomic.Int64

	mu         sync.RWMutex
	snapshots  map[atom.Handle]map[string]atom.Atom
	records    map[atom.Handle]Record
	identities map[Record]atom.Handle
	locks      map[atom.Handle]*sync.Mutex
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logging.Default(logger),
		snapshots:  make(map[atom.Handle]map[string]atom.Atom),
		records:    make(map[atom.Handle]Record),
		identities: make(map[Record]atom.Handle),
		locks:      make(map[atom.Handle]*sync.Mutex),
	}
}

// Add registers rec, assigning it a new handle unless it is already
// registered (checked by identity, not value equality — re-add is a no-op
// per spec.md §7). It returns the handle and whether this call newly
// registered it.
func (r *Registry) Add(rec Record) (atom.Handle, bool) {
	r.mu.Lock()
	if h, ok := r.identities[rec]; ok {
		r.mu.Unlock()
		return h, false
	}

	h := atom.Handle(r.next.Add(1))
	snap := make(map[string]atom.Atom)
	for name, v := range rec.Attributes() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		snap[name] = v
	}
	r.snapshots[h] = snap
	r.records[h] = rec
	r.identities[rec] = h
	r.locks[h] = &sync.Mutex{}
	r.mu.Unlock()

	r.logger.Debug("record registered", "handle", h, "attrs", len(snap))
	return h, true
}

// HandleMutex returns the per-handle striped mutex used to serialize
// dispatcher operations on a single record (spec.md §4.D's ordering
// contract). Returns nil if h is not registered.
func (r *Registry) HandleMutex(h atom.Handle) *sync.Mutex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locks[h]
}

// Snapshot returns a copy of h's current attribute snapshot.
func (r *Registry) Snapshot(h atom.Handle) (map[string]atom.Atom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[h]
	if !ok {
		return nil, false
	}
	out := make(map[string]atom.Atom, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out, true
}

// SetAttr updates h's snapshot for attr to v and returns the prior value (if
// any). Callers must hold h's handle mutex (via HandleMutex) for the
// duration of the surrounding dispatcher operation.
func (r *Registry) SetAttr(h atom.Handle, attr string, v atom.Atom) (old atom.Atom, hadOld bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[h]
	if !ok {
		return atom.Atom{}, false
	}
	old, hadOld = snap[attr]
	snap[attr] = v
	return old, hadOld
}

// DeleteAttr removes attr from h's snapshot and returns the prior value.
func (r *Registry) DeleteAttr(h atom.Handle, attr string) (old atom.Atom, hadOld bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[h]
	if !ok {
		return atom.Atom{}, false
	}
	old, hadOld = snap[attr]
	delete(snap, attr)
	return old, hadOld
}

// Destroy removes h from the registry entirely, returning its final
// snapshot so the caller (the dispatcher) can evict every posting-list and
// graph entry it implies.
func (r *Registry) Destroy(h atom.Handle) (final map[string]atom.Atom, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[h]
	if !ok {
		return nil, false
	}
	rec := r.records[h]
	delete(r.snapshots, h)
	delete(r.records, h)
	delete(r.locks, h)
	if rec != nil {
		delete(r.identities, rec)
	}

	r.logger.Debug("record destroyed", "handle", h)
	return snap, true
}

// RecordFor returns the Record registered under h.
func (r *Registry) RecordFor(h atom.Handle) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[h]
	return rec, ok
}

// Handles returns every currently-registered handle in ascending order.
func (r *Registry) Handles() []atom.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]atom.Handle, 0, len(r.snapshots))
	for h := range r.snapshots {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// HandleSet returns the currently-registered handles as a set, suitable for
// use as a query evaluator's universe.
func (r *Registry) HandleSet() map[atom.Handle]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[atom.Handle]struct{}, len(r.snapshots))
	for h := range r.snapshots {
		out[h] = struct{}{}
	}
	return out
}
