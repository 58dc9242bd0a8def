package query

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"lattice/internal/atom"
	"lattice/internal/graph"
	"lattice/internal/logging"
	"lattice/internal/posting"
)

// orParallelThreshold is the minimum child count at which or()'s branches
// are fanned out over an errgroup rather than evaluated sequentially,
// mirroring the teacher's internal/index.BuildHelper.Build threshold for
// spinning up goroutines only when there's enough independent work to
// justify it.
const orParallelThreshold = 4

type handleSet = map[atom.Handle]struct{}

// Evaluator resolves Expr trees against a posting.Manager and graph.EdgeTable.
type Evaluator struct {
	logger *slog.Logger
	attrs  *posting.Manager
	edges  *graph.EdgeTable
}

// NewEvaluator returns an evaluator over the given attribute manager and
// edge table.
func NewEvaluator(attrs *posting.Manager, edges *graph.EdgeTable, logger *slog.Logger) *Evaluator {
	return &Evaluator{logger: logging.Default(logger), attrs: attrs, edges: edges}
}

// Eval evaluates e against universe, the scope's current handle set (the
// base Index's full handle set, or a FilteredView's allow-set). It first
// validates e, returning a *QueryBuildError synchronously if the tree
// contains a malformed or wrong-arity node, distinct from any evaluation
// result. A rejected build is a boundary event, not a hot-path one, so it is
// logged; successful evaluation never is (see package logging's "no logging
// inside query evaluation" rule).
func (ev *Evaluator) Eval(ctx context.Context, e Expr, universe handleSet) (handleSet, error) {
	if err := Validate(e); err != nil {
		ev.logger.Debug("query rejected", "expr", e, "err", err)
		return nil, err
	}
	return ev.eval(ctx, e, universe)
}

func (ev *Evaluator) eval(ctx context.Context, e Expr, universe handleSet) (handleSet, error) {
	switch v := e.(type) {
	case *andExpr:
		return ev.evalAnd(ctx, v.children, universe)
	case *orExpr:
		return ev.evalOr(ctx, v.children, universe)
	case *notExpr:
		inner, err := ev.eval(ctx, v.child, universe)
		if err != nil {
			return nil, err
		}
		return difference(universe, inner), nil
	case *eqExpr:
		return ev.resolveIntersect(v.path, universe, func(attr string) handleSet {
			return ev.collect(ev.attrs.Eq(attr, v.v))
		}), nil
	case *neExpr:
		eqSet := ev.resolveIntersect(v.path, universe, func(attr string) handleSet {
			return ev.collect(ev.attrs.Eq(attr, v.v))
		})
		return difference(universe, eqSet), nil
	case *inExpr:
		return ev.resolveIntersect(v.path, universe, func(attr string) handleSet {
			out := make(handleSet)
			for _, val := range v.values {
				for h := range ev.attrs.Eq(attr, val) {
					out[h] = struct{}{}
				}
			}
			return out
		}), nil
	case *cmpExpr:
		lo, hi, loIncl, hiIncl := rangeBounds(v.op, v.v)
		return ev.resolveIntersect(v.path, universe, func(attr string) handleSet {
			return ev.collect(ev.attrs.Range(attr, lo, hi, loIncl, hiIncl))
		}), nil
	case *betweenExpr:
		return ev.resolveIntersect(v.path, universe, func(attr string) handleSet {
			return ev.collect(ev.attrs.Range(attr, v.lo, v.hi, true, true))
		}), nil
	case *invalidExpr:
		return nil, v.err
	default:
		return handleSet{}, nil
	}
}

func rangeBounds(op CompareOp, v float64) (lo, hi float64, loIncl, hiIncl bool) {
	switch op {
	case OpGt:
		return v, math.Inf(1), false, true
	case OpGe:
		return v, math.Inf(1), true, true
	case OpLt:
		return math.Inf(-1), v, true, false
	case OpLe:
		return math.Inf(-1), v, true, true
	default:
		return math.Inf(-1), math.Inf(1), true, true
	}
}

func (ev *Evaluator) evalAnd(ctx context.Context, children []Expr, universe handleSet) (handleSet, error) {
	if len(children) == 0 {
		// Identity element: "true" matches the whole current scope.
		return cloneSet(universe), nil
	}

	ordered := make([]Expr, len(children))
	copy(ordered, children)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ev.estimate(ordered[i]) < ev.estimate(ordered[j])
	})

	var result handleSet
	for _, c := range ordered {
		r, err := ev.eval(ctx, c, universe)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = r
		} else {
			result = intersect(result, r)
		}
		if len(result) == 0 {
			return handleSet{}, nil
		}
	}
	return result, nil
}

func (ev *Evaluator) evalOr(ctx context.Context, children []Expr, universe handleSet) (handleSet, error) {
	if len(children) == 0 {
		// Identity element: "false" matches nothing.
		return handleSet{}, nil
	}

	results := make([]handleSet, len(children))

	if len(children) >= orParallelThreshold {
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range children {
			i, c := i, c
			g.Go(func() error {
				r, err := ev.eval(gctx, c, universe)
				if err != nil {
					return err
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, c := range children {
			r, err := ev.eval(ctx, c, universe)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
	}

	union := make(handleSet)
	for _, r := range results {
		for h := range r {
			union[h] = struct{}{}
		}
	}
	return union, nil
}

// resolveIntersect resolves a (possibly dotted) path down to a leafEval call
// against the final segment's attribute name, then intersects the result
// with universe — the "final intersection" spec.md §4.F requires of a
// FilteredView's allow-set (and a harmless no-op against a base Index's
// already-consistent posting lists).
func (ev *Evaluator) resolveIntersect(path string, universe handleSet, leafEval func(attr string) handleSet) handleSet {
	raw := ev.resolvePath(strings.Split(path, "."), leafEval)
	return intersect(raw, universe)
}

// resolvePath implements spec.md §4.E: for a single segment, it applies
// leafEval directly; for k>1 segments, it resolves the tail (a2...ak) first
// to get the child set T, then walks reverse edges tagged with the first
// segment's attribute name to find parents pointing at members of T.
func (ev *Evaluator) resolvePath(segs []string, leafEval func(attr string) handleSet) handleSet {
	if len(segs) == 1 {
		return leafEval(segs[0])
	}

	tail := ev.resolvePath(segs[1:], leafEval)
	a1 := segs[0]
	out := make(handleSet)
	for c := range tail {
		for parent, attr := range ev.edges.ReverseEdges(c) {
			if attr == a1 {
				out[parent] = struct{}{}
			}
		}
	}
	return out
}

// estimate returns a cheap cardinality estimate used to order and()'s
// children ascending (cheapest first), the same role the teacher's DNF
// branch ordering plays for scanner construction.
func (ev *Evaluator) estimate(e Expr) int {
	const unknown = 1 << 30
	switch v := e.(type) {
	case *eqExpr:
		if strings.Contains(v.path, ".") {
			return unknown
		}
		return ev.attrs.Count(v.path, v.v)
	case *inExpr:
		if strings.Contains(v.path, ".") {
			return unknown
		}
		n := 0
		for _, val := range v.values {
			n += ev.attrs.Count(v.path, val)
		}
		return n
	case *andExpr:
		best := unknown
		for _, c := range v.children {
			if e := ev.estimate(c); e < best {
				best = e
			}
		}
		return best
	case *orExpr:
		sum := 0
		for _, c := range v.children {
			sum += ev.estimate(c)
		}
		return sum
	default:
		return unknown
	}
}

func (ev *Evaluator) collect(seq func(func(atom.Handle) bool)) handleSet {
	out := make(handleSet)
	seq(func(h atom.Handle) bool {
		out[h] = struct{}{}
		return true
	})
	return out
}

func intersect(a, b handleSet) handleSet {
	if a == nil || b == nil {
		return handleSet{}
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	out := make(handleSet, len(small))
	for h := range small {
		if _, ok := large[h]; ok {
			out[h] = struct{}{}
		}
	}
	return out
}

func difference(universe, remove handleSet) handleSet {
	out := make(handleSet, len(universe))
	for h := range universe {
		if _, ok := remove[h]; !ok {
			out[h] = struct{}{}
		}
	}
	return out
}

func cloneSet(s handleSet) handleSet {
	out := make(handleSet, len(s))
	for h := range s {
		out[h] = struct{}{}
	}
	return out
}
