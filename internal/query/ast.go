// Package query implements the query algebra (spec.md §4.F): leaf
// predicates (eq/ne/in/gt/ge/lt/le/between), composite expressions
// (and/or/not), and the evaluator that resolves dotted attribute paths
// across the edge table and produces candidate handle sets from the
// posting indexes.
package query

import (
	"fmt"
	"strings"

	"lattice/internal/atom"
)

// Expr is any node of the query algebra. The interface is sealed via the
// unexported expr() marker method, mirroring the teacher's querylang.Expr
// shape: only this package can produce Expr values.
type Expr interface {
	expr()
	String() string
}

// CompareOp identifies a range comparison operator.
type CompareOp uint8

const (
	OpGt CompareOp = iota
	OpGe
	OpLt
	OpLe
)

func (op CompareOp) String() string {
	switch op {
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	default:
		return "?"
	}
}

type andExpr struct{ children []Expr }
type orExpr struct{ children []Expr }
type notExpr struct{ child Expr }

type eqExpr struct {
	path string
	v    atom.Atom
}

type neExpr struct {
	path string
	v    atom.Atom
}

type inExpr struct {
	path   string
	values []atom.Atom
}

type cmpExpr struct {
	path string
	op   CompareOp
	v    float64
}

type betweenExpr struct {
	path   string
	lo, hi float64
}

// invalidExpr carries a build-time QueryBuildError discovered at
// construction time (malformed path, wrong arity). It is surfaced the first
// time the tree is validated, which every evaluation entry point does
// before touching the index.
type invalidExpr struct{ err *QueryBuildError }

func (*andExpr) expr()     {}
func (*orExpr) expr()      {}
func (*notExpr) expr()     {}
func (*eqExpr) expr()      {}
func (*neExpr) expr()      {}
func (*inExpr) expr()      {}
func (*cmpExpr) expr()     {}
func (*betweenExpr) expr() {}
func (*invalidExpr) expr() {}

func (e *andExpr) String() string { return "and(" + joinExprs(e.children) + ")" }
func (e *orExpr) String() string  { return "or(" + joinExprs(e.children) + ")" }
func (e *notExpr) String() string { return fmt.Sprintf("not(%s)", e.child) }

func (e *eqExpr) String() string { return fmt.Sprintf("eq(%s, %s)", e.path, e.v) }
func (e *neExpr) String() string { return fmt.Sprintf("ne(%s, %s)", e.path, e.v) }

func (e *inExpr) String() string {
	parts := make([]string, len(e.values))
	for i, v := range e.values {
		parts[i] = v.String()
	}
	return fmt.Sprintf("in(%s, [%s])", e.path, strings.Join(parts, ", "))
}

func (e *cmpExpr) String() string {
	return fmt.Sprintf("%s(%s, %g)", e.op, e.path, e.v)
}

func (e *betweenExpr) String() string {
	return fmt.Sprintf("between(%s, %g, %g)", e.path, e.lo, e.hi)
}

func (e *invalidExpr) String() string { return fmt.Sprintf("invalid(%s)", e.err) }

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// And returns the conjunction of children. And() with no children is the
// identity element "true" (matches the full scope) per invariant #6.
func And(children ...Expr) Expr { return &andExpr{children: children} }

// Or returns the disjunction of children. Or() with no children is the
// identity element "false" (matches nothing) per invariant #6.
func Or(children ...Expr) Expr { return &orExpr{children: children} }

// Not negates child relative to the current scope.
func Not(child Expr) Expr { return &notExpr{child: child} }

// Eq matches records whose value at path equals v.
func Eq(path string, v atom.Atom) Expr {
	if err := validatePath(path); err != nil {
		return &invalidExpr{err}
	}
	return &eqExpr{path: path, v: v}
}

// Ne matches records whose value at path does not equal v.
func Ne(path string, v atom.Atom) Expr {
	if err := validatePath(path); err != nil {
		return &invalidExpr{err}
	}
	return &neExpr{path: path, v: v}
}

// In matches records whose value at path equals any of values. Calling In
// with zero values is a build-time wrong-arity error.
func In(path string, values ...atom.Atom) Expr {
	if err := validatePath(path); err != nil {
		return &invalidExpr{err}
	}
	if len(values) == 0 {
		return &invalidExpr{newArityErr(path, "in() requires at least one value")}
	}
	return &inExpr{path: path, values: values}
}

// Gt matches records whose numeric value at path is strictly greater than v.
func Gt(path string, v float64) Expr { return cmp(path, OpGt, v) }

// Ge matches records whose numeric value at path is greater than or equal to v.
func Ge(path string, v float64) Expr { return cmp(path, OpGe, v) }

// Lt matches records whose numeric value at path is strictly less than v.
func Lt(path string, v float64) Expr { return cmp(path, OpLt, v) }

// Le matches records whose numeric value at path is less than or equal to v.
func Le(path string, v float64) Expr { return cmp(path, OpLe, v) }

func cmp(path string, op CompareOp, v float64) Expr {
	if err := validatePath(path); err != nil {
		return &invalidExpr{err}
	}
	return &cmpExpr{path: path, op: op, v: v}
}

// Between matches records whose numeric value at path falls within [lo, hi]
// inclusive on both ends.
func Between(path string, lo, hi float64) Expr {
	if err := validatePath(path); err != nil {
		return &invalidExpr{err}
	}
	return &betweenExpr{path: path, lo: lo, hi: hi}
}

func validatePath(path string) error {
	if path == "" {
		return newMalformedErr(path, "path must not be empty")
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return newMalformedErr(path, "path contains an empty attribute-name segment")
		}
	}
	return nil
}

// Validate walks e looking for a build-time error recorded at construction.
// It returns the first one found, or nil if e is entirely well-formed.
func Validate(e Expr) error {
	switch v := e.(type) {
	case *invalidExpr:
		return v.err
	case *andExpr:
		return validateChildren(v.children)
	case *orExpr:
		return validateChildren(v.children)
	case *notExpr:
		return Validate(v.child)
	default:
		return nil
	}
}

func validateChildren(children []Expr) error {
	for _, c := range children {
		if err := Validate(c); err != nil {
			return err
		}
	}
	return nil
}
