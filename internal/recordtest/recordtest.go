// Package recordtest provides shared fixtures for tests that need
// indexable records without pulling in a real domain type: a minimal
// Record implementation plus a petname-backed generator for producing
// batches of randomly-attributed records, so a test need not hand-roll a
// Record and its callback installation. Only this package's own tests use
// it; internal/dispatch and internal/record tests keep their own
// fakeRecord doubles.
package recordtest

import (
	"fmt"
	"iter"
	"sync"
	"testing"

	petname "github.com/dustinkirkland/golang-petname"

	"lattice/internal/atom"
	"lattice/internal/record"
)

// Record is a minimal record.Record implementation backed by a plain map.
// Unlike the root package's Base, it exposes Set without going through any
// embedding, which keeps fixture construction terse in table-driven tests.
type Record struct {
	mu    sync.RWMutex
	attrs map[string]atom.Atom
	cb    record.Callback
}

// New returns a Record seeded with attrs. A nil or empty attrs is fine; use
// Set to add attributes before or after registration.
func New(attrs map[string]atom.Atom) *Record {
	r := &Record{attrs: make(map[string]atom.Atom, len(attrs))}
	for k, v := range attrs {
		r.attrs[k] = v
	}
	return r
}

// Set writes name=v and, once installed, notifies the engine.
func (r *Record) Set(name string, v atom.Atom) {
	r.mu.Lock()
	r.attrs[name] = v
	cb := r.cb
	r.mu.Unlock()

	if cb != nil {
		cb(name, v)
	}
}

// Attributes implements record.Record.
func (r *Record) Attributes() iter.Seq2[string, atom.Atom] {
	return func(yield func(string, atom.Atom) bool) {
		r.mu.RLock()
		snap := make(map[string]atom.Atom, len(r.attrs))
		for k, v := range r.attrs {
			snap[k] = v
		}
		r.mu.RUnlock()

		for k, v := range snap {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Install implements record.Record.
func (r *Record) Install(cb record.Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cb = cb
}

// Batch bundles a generated slice of fixture records with the random names
// assigned to them, so property tests can both register the batch and make
// assertions against the names they generated.
type Batch struct {
	Records []*Record
	Names   []string
}

// GenerateBatch returns n randomly-named fixture records, each carrying a
// "name" string attribute and a "seq" int attribute (0-based, stable across
// a single call), seeded off petname words so repeated calls within a test
// run produce visibly distinct, human-readable fixture names instead of
// opaque counters.
func GenerateBatch(t *testing.T, n int) Batch {
	t.Helper()
	b := Batch{
		Records: make([]*Record, n),
		Names:   make([]string, n),
	}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s-%d", petname.Generate(2, "-"), i)
		b.Names[i] = name
		b.Records[i] = New(map[string]atom.Atom{
			"name": atom.Str(name),
			"seq":  atom.Int(int64(i)),
		})
	}
	return b
}
