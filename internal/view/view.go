// Package view implements FilteredView (spec.md §3/§4.G): a lazy
// intersection of an allow-set with a base index, composable without
// touching the base index's structures beyond read access.
package view

import (
	"context"

	"lattice/internal/atom"
	"lattice/internal/query"
)

// Base is the minimal surface a FilteredView needs from whatever owns the
// posting indexes, edge table, and record registry — satisfied by the root
// lattice.Index, kept as an interface here so this package has no import
// dependency on the root package.
type Base interface {
	Eval(ctx context.Context, e query.Expr, universe map[atom.Handle]struct{}) (map[atom.Handle]struct{}, error)
}

// FilteredView is an immutable pair (base, allow-set). Queries against it
// intersect candidate sets with the allow-set before materialization.
type FilteredView struct {
	base  Base
	allow map[atom.Handle]struct{}
}

// New returns a view over base restricted to allow.
func New(base Base, allow map[atom.Handle]struct{}) *FilteredView {
	return &FilteredView{base: base, allow: allow}
}

// Allow returns the view's allow-set (a defensive copy).
func (v *FilteredView) Allow() map[atom.Handle]struct{} {
	out := make(map[atom.Handle]struct{}, len(v.allow))
	for h := range v.allow {
		out[h] = struct{}{}
	}
	return out
}

// Base returns the view's base index.
func (v *FilteredView) Base() Base { return v.base }

// ReducedQuery evaluates e with this view's allow-set as scope and returns a
// new view over the result, composed without touching the base index's
// structures beyond read access.
func (v *FilteredView) ReducedQuery(ctx context.Context, e query.Expr) (*FilteredView, error) {
	result, err := v.base.Eval(ctx, e, v.allow)
	if err != nil {
		return nil, err
	}
	return New(v.base, result), nil
}

// Reduced is equality-only sugar over ReducedQuery(and(eq...)).
func (v *FilteredView) Reduced(ctx context.Context, attrs map[string]atom.Atom) (*FilteredView, error) {
	return v.ReducedQuery(ctx, EqAll(attrs))
}

// EqAll builds and(eq(name, value)...) over attrs, the equality-only sugar
// shared by Index.Reduced and FilteredView.Reduced.
func EqAll(attrs map[string]atom.Atom) query.Expr {
	children := make([]query.Expr, 0, len(attrs))
	for name, v := range attrs {
		children = append(children, query.Eq(name, v))
	}
	return query.And(children...)
}
