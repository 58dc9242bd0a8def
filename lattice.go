// Package lattice implements an in-memory object indexer and graph
// datastore: callers register heterogeneous records exposing a dynamic set
// of named attributes, and the index answers predicate queries over those
// attributes — including chained attribute paths that traverse references —
// while keeping its answers consistent as attribute values mutate.
package lattice

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"lattice/internal/atom"
	"lattice/internal/dispatch"
	"lattice/internal/graph"
	"lattice/internal/logging"
	"lattice/internal/posting"
	"lattice/internal/query"
	"lattice/internal/record"
	"lattice/internal/view"
)

// Record is the interface an indexable must satisfy to be registered with
// an Index. Implementations that cannot embed Base must call the installed
// Callback themselves on every post-registration attribute write.
type Record = record.Record

// Index is a set of handles plus the per-attribute posting indexes and edge
// table that index them. An Index presents a single-writer/many-readers
// discipline: reads may proceed in parallel, writes are serialized against
// all other operations on the same Index.
type Index struct {
	id     uuid.UUID
	logger *slog.Logger

	reg   *record.Registry
	attrs *posting.Manager
	edges *graph.EdgeTable
	disp  *dispatch.Dispatcher
	eval  *query.Evaluator
}

// Option configures an Index at construction time.
type Option func(*Index)

// WithLogger scopes ix's logging to the given logger, following the
// dependency-injected, never-global logging discipline: no component in
// this module calls slog.SetDefault.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) { ix.logger = logging.Default(logger) }
}

// WithComponentLevels scopes ix's logging through a
// logging.ComponentFilterHandler wrapping base's handler, so callers can
// dial verbosity independently per subsystem component ("index", "record",
// "dispatch", "query") — e.g. enable Debug for "dispatch" while leaving
// everything else at Warn — without constructing a separate logger per
// subsystem themselves. overrides may be nil.
func WithComponentLevels(base *slog.Logger, defaultLevel slog.Level, overrides map[string]slog.Level) Option {
	return func(ix *Index) {
		filter := logging.NewComponentFilterHandler(logging.Default(base).Handler(), defaultLevel)
		for component, level := range overrides {
			filter.SetLevel(component, level)
		}
		ix.logger = slog.New(filter)
	}
}

// NewIndex returns an empty Index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{id: uuid.New()}
	for _, opt := range opts {
		opt(ix)
	}
	base := logging.Default(ix.logger).With("index_id", ix.id)
	ix.logger = base.With("component", "index")

	ix.reg = record.NewRegistry(base.With("component", "record"))
	ix.attrs = posting.NewManager()
	ix.edges = graph.New()
	ix.disp = dispatch.New(ix.reg, ix.attrs, ix.edges, base.With("component", "dispatch"))
	ix.eval = query.NewEvaluator(ix.attrs, ix.edges, base.With("component", "query"))

	ix.logger.Info("index created")
	return ix
}

// Add registers r into the index, assigning it a handle on first add.
// Re-adding an already-registered record (by identity) is a no-op.
func (ix *Index) Add(r Record) {
	h, isNew := ix.reg.Add(r)
	if !isNew {
		return
	}
	ix.disp.IndexNew(h, r)
}

// AddMany registers every record in rs, preserving arrival order.
func (ix *Index) AddMany(rs []Record) {
	for _, r := range rs {
		ix.Add(r)
	}
}

// Collect returns every currently-registered record, in handle-ascending
// order.
func (ix *Index) Collect() []Record {
	handles := ix.reg.Handles()
	out := make([]Record, 0, len(handles))
	for _, h := range handles {
		if r, ok := ix.reg.RecordFor(h); ok {
			out = append(out, r)
		}
	}
	return out
}

// Eval implements view.Base: it resolves e against universe, the caller's
// current scope.
func (ix *Index) Eval(ctx context.Context, e query.Expr, universe map[atom.Handle]struct{}) (map[atom.Handle]struct{}, error) {
	return ix.eval.Eval(ctx, e, universe)
}

// Reduced returns a FilteredView allowing only records whose attributes
// equal attrs — equality-only sugar over ReducedQuery(and(eq…)).
func (ix *Index) Reduced(ctx context.Context, attrs map[string]atom.Atom) (*FilteredView, error) {
	return ix.ReducedQuery(ctx, view.EqAll(attrs))
}

// ReducedQuery returns a FilteredView allowing only records matching e.
func (ix *Index) ReducedQuery(ctx context.Context, e query.Expr) (*FilteredView, error) {
	universe := ix.reg.HandleSet()
	allow, err := ix.eval.Eval(ctx, e, universe)
	if err != nil {
		return nil, err
	}
	return &FilteredView{ix: ix, inner: view.New(ix, allow)}, nil
}

// GetByAttribute is equivalent to Reduced(attrs).Collect() without holding a
// view.
func (ix *Index) GetByAttribute(ctx context.Context, attrs map[string]atom.Atom) ([]Record, error) {
	v, err := ix.Reduced(ctx, attrs)
	if err != nil {
		return nil, err
	}
	return v.Collect(), nil
}

// Reduce removes every currently-registered record that does not match
// attrs, in place. This is costlier than building a view and should be
// preferred only when the non-matching records should truly stop existing
// in the index.
func (ix *Index) Reduce(ctx context.Context, attrs map[string]atom.Atom) error {
	return ix.ReduceQuery(ctx, view.EqAll(attrs))
}

// ReduceQuery removes every currently-registered record not matching e, in
// place, evicting it from every posting list and the edge table (not just
// the handle set), per the supplemental eviction property in SPEC_FULL.md.
func (ix *Index) ReduceQuery(ctx context.Context, e query.Expr) error {
	universe := ix.reg.HandleSet()
	keep, err := ix.eval.Eval(ctx, e, universe)
	if err != nil {
		return err
	}
	for h := range universe {
		if _, ok := keep[h]; ok {
			continue
		}
		ix.disp.OnDestroy(h)
	}
	return nil
}

// UnionWith creates a new Index containing the union of records from ix and
// other, re-registering each in arrival order (ix's records first). It does
// not mutate either input: the merged index registers snapshot clones of
// ix's and other's records rather than the live Record values, so the
// callback each live Record installs on Add keeps pointing at its original
// index instead of being overwritten by the merge (see cloneRecords).
func (ix *Index) UnionWith(other *Index) *Index {
	merged := NewIndex(WithLogger(ix.logger))
	merged.AddMany(cloneRecords(ix.Collect()))
	merged.AddMany(cloneRecords(other.Collect()))
	return merged
}

// cloneRecord returns a fresh *Base carrying a copy of r's current
// attributes. Record.Install overwrites a record's single callback slot
// (see Base.Install), so registering a live Record into a second Index
// would silently redirect its mutation notifications away from the first;
// cloning breaks that coupling at the cost of the clone no longer sharing
// identity (or concrete Go type) with r.
func cloneRecord(r Record) Record {
	cp := &Base{}
	for name, v := range r.Attributes() {
		cp.Set(name, v)
	}
	return cp
}

// cloneRecords clones every record in rs, preserving order.
func cloneRecords(rs []Record) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = cloneRecord(r)
	}
	return out
}

// FilteredView is a lazy, immutable intersection of an allow-set with a
// base Index. Destroying a view never affects the base Index.
type FilteredView struct {
	ix    *Index
	inner *view.FilteredView
}

// Reduced returns a further-restricted view allowing only records whose
// attributes equal attrs.
func (v *FilteredView) Reduced(ctx context.Context, attrs map[string]atom.Atom) (*FilteredView, error) {
	inner, err := v.inner.Reduced(ctx, attrs)
	if err != nil {
		return nil, err
	}
	return &FilteredView{ix: v.ix, inner: inner}, nil
}

// ReducedQuery returns a further-restricted view allowing only records
// matching e.
func (v *FilteredView) ReducedQuery(ctx context.Context, e query.Expr) (*FilteredView, error) {
	inner, err := v.inner.ReducedQuery(ctx, e)
	if err != nil {
		return nil, err
	}
	return &FilteredView{ix: v.ix, inner: inner}, nil
}

// Collect returns the view's matching records in handle-ascending order.
func (v *FilteredView) Collect() []Record {
	allow := v.inner.Allow()
	handles := make([]atom.Handle, 0, len(allow))
	for h := range allow {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	out := make([]Record, 0, len(handles))
	for _, h := range handles {
		if r, ok := v.ix.reg.RecordFor(h); ok {
			out = append(out, r)
		}
	}
	return out
}

// Rebase materializes a fresh, independent Index containing snapshot clones
// of the view's matching records (see cloneRecords). The base Index is
// untouched, including the mutation callback installed on each of its live
// records.
func (v *FilteredView) Rebase() *Index {
	fresh := NewIndex(WithLogger(v.ix.logger))
	fresh.AddMany(cloneRecords(v.Collect()))
	return fresh
}
