package lattice

import (
	"lattice/internal/atom"
	"lattice/internal/query"
)

// Q is the query-builder namespace. Queries are built programmatically —
// there is no string grammar, lexer, or parser layer, since spec.md defines
// no query-string surface for this engine (see DESIGN.md Open Questions).
var Q = struct {
	And     func(...query.Expr) query.Expr
	Or      func(...query.Expr) query.Expr
	Not     func(query.Expr) query.Expr
	Eq      func(path string, v atom.Atom) query.Expr
	Ne      func(path string, v atom.Atom) query.Expr
	In      func(path string, vs ...atom.Atom) query.Expr
	Gt      func(path string, v float64) query.Expr
	Ge      func(path string, v float64) query.Expr
	Lt      func(path string, v float64) query.Expr
	Le      func(path string, v float64) query.Expr
	Between func(path string, lo, hi float64) query.Expr
}{
	And:     query.And,
	Or:      query.Or,
	Not:     query.Not,
	Eq:      query.Eq,
	Ne:      query.Ne,
	In:      query.In,
	Gt:      query.Gt,
	Ge:      query.Ge,
	Lt:      query.Lt,
	Le:      query.Le,
	Between: query.Between,
}

// Atom re-exports the atom constructors so callers building attribute
// values and query predicates don't need to import the internal package
// directly.
type Atom = atom.Atom

// Handle is the engine-assigned identity of a registered record.
type Handle = atom.Handle

func Int(n int64) Atom     { return atom.Int(n) }
func Float(f float64) Atom { return atom.Float(f) }
func Str(s string) Atom    { return atom.Str(s) }
func Bool(b bool) Atom     { return atom.Bool(b) }
func Null() Atom           { return atom.Null() }
func Ref(h Handle) Atom    { return atom.Ref(h) }
