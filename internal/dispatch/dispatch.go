// Package dispatch implements the mutation dispatcher (spec.md §4.D): the
// on_set/on_delete/on_destroy primitives that reflect a record's attribute
// writes into the per-attribute posting indexes and the edge table.
package dispatch

import (
	"log/slog"
	"strings"

	"lattice/internal/atom"
	"lattice/internal/graph"
	"lattice/internal/logging"
	"lattice/internal/posting"
	"lattice/internal/record"
)

// Dispatcher wires a record.Registry's mutation events into a
// posting.Manager and a graph.EdgeTable.
type Dispatcher struct {
	logger *slog.Logger
	reg    *record.Registry
	attrs  *posting.Manager
	edges  *graph.EdgeTable
}

// New returns a Dispatcher over the given registry, attribute manager, and
// edge table.
func New(reg *record.Registry, attrs *posting.Manager, edges *graph.EdgeTable, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logging.Default(logger), reg: reg, attrs: attrs, edges: edges}
}

// IndexNew fans a freshly-registered handle's snapshot out to the posting
// indexes and edge table, and installs the handle's mutation callback onto
// the record. It must be called once, immediately after record.Registry.Add
// returns a newly-assigned handle.
func (d *Dispatcher) IndexNew(h atom.Handle, rec record.Record) {
	snap, ok := d.reg.Snapshot(h)
	if !ok {
		return
	}
	for attr, v := range snap {
		d.index(h, attr, v)
	}
	rec.Install(func(attr string, newVal atom.Atom) {
		d.OnSet(h, attr, newVal)
	})
}

// OnSet implements spec.md §4.D's on_set(h, a, new): it reads the prior
// value from the snapshot, removes the stale posting/edge entries, inserts
// the new ones, and updates the snapshot. Setting an attribute to its
// current value is a no-op (invariant #4).
func (d *Dispatcher) OnSet(h atom.Handle, attr string, newVal atom.Atom) {
	mu := d.reg.HandleMutex(h)
	if mu == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()

	old, hadOld := d.reg.SetAttr(h, attr, newVal)
	if hadOld && old.Equal(newVal) {
		return
	}
	if hadOld {
		d.unindex(h, attr, old)
	}
	d.index(h, attr, newVal)
}

// OnDelete implements spec.md §4.D's on_delete(h, a): equivalent to on_set
// with new = missing (no insert).
func (d *Dispatcher) OnDelete(h atom.Handle, attr string) {
	mu := d.reg.HandleMutex(h)
	if mu == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()

	old, hadOld := d.reg.DeleteAttr(h, attr)
	if hadOld {
		d.unindex(h, attr, old)
	}
}

// OnDestroy implements spec.md §4.D's on_destroy(h): removes h from the
// registry, then evicts every attribute of its final snapshot from the
// posting indexes and severs every edge that mentions h.
func (d *Dispatcher) OnDestroy(h atom.Handle) {
	mu := d.reg.HandleMutex(h)
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}

	final, ok := d.reg.Destroy(h)
	if !ok {
		return
	}
	for attr, v := range final {
		d.unindex(h, attr, v)
	}
	d.edges.RemoveHandle(h)
	d.logger.Debug("record evicted", "handle", h, "attrs", len(final))
}

func (d *Dispatcher) index(h atom.Handle, attr string, v atom.Atom) {
	if strings.HasPrefix(attr, "_") {
		return
	}
	d.attrs.Insert(attr, v, h)
	if ref, ok := v.AsRef(); ok {
		d.edges.Set(h, attr, ref)
	}
}

func (d *Dispatcher) unindex(h atom.Handle, attr string, v atom.Atom) {
	if strings.HasPrefix(attr, "_") {
		return
	}
	d.attrs.Remove(attr, v, h)
	if _, ok := v.AsRef(); ok {
		d.edges.Remove(h, attr)
	}
}
