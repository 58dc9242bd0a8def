// Package atom implements the canonical tagged value type held by record
// attributes: int64, float64, string, bool, null, or a reference to another
// record's handle.
//
// Atom is a small tagged struct rather than an any/interface{} union so that
// equality checks in hot paths (posting-list lookups) never allocate or
// reflect.
package atom

import (
	"fmt"
	"math"
)

// Handle is the engine-assigned 64-bit identity of a registered record.
// It is a named type, not a bare int64, so it can never be silently mixed
// with a record's own numeric attribute values.
type Handle int64

// Kind identifies which variant an Atom holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Atom is a tagged value: exactly one of the Kind-tagged fields is
// meaningful for a given Atom, selected by Kind.
type Atom struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	ref  Handle
}

// Null returns the null atom.
func Null() Atom { return Atom{kind: KindNull} }

// Int returns an int64 atom.
func Int(n int64) Atom { return Atom{kind: KindInt, i: n} }

// Float returns a float64 atom.
func Float(f float64) Atom { return Atom{kind: KindFloat, f: f} }

// Str returns a string atom.
func Str(s string) Atom { return Atom{kind: KindString, s: s} }

// Bool returns a bool atom.
func Bool(b bool) Atom { return Atom{kind: KindBool, b: b} }

// Ref returns a reference atom pointing at h.
func Ref(h Handle) Atom { return Atom{kind: KindRef, ref: h} }

// Kind reports which variant the atom holds.
func (a Atom) Kind() Kind { return a.kind }

// IsNull reports whether a holds the null variant.
func (a Atom) IsNull() bool { return a.kind == KindNull }

// AsInt returns the int64 payload and whether a holds KindInt.
func (a Atom) AsInt() (int64, bool) { return a.i, a.kind == KindInt }

// AsString returns the string payload and whether a holds KindString.
func (a Atom) AsString() (string, bool) { return a.s, a.kind == KindString }

// AsBool returns the bool payload and whether a holds KindBool.
func (a Atom) AsBool() (bool, bool) { return a.b, a.kind == KindBool }

// AsRef returns the handle payload and whether a holds KindRef.
func (a Atom) AsRef() (Handle, bool) { return a.ref, a.kind == KindRef }

// AsFloat64 returns the atom's value cast to float64 and true if the atom is
// numeric (int64 or float64); otherwise it returns (0, false). This is the
// key used by range_map.
func (a Atom) AsFloat64() (float64, bool) {
	switch a.kind {
	case KindInt:
		return float64(a.i), true
	case KindFloat:
		return a.f, true
	default:
		return 0, false
	}
}

// Equal reports whether a and b are equal per spec.md §4.A: same variant and
// payload, with the exception that int64(n) == float64(x) iff x is exactly
// integral and equals n.
func (a Atom) Equal(b Atom) bool {
	if a.kind == b.kind {
		switch a.kind {
		case KindNull:
			return true
		case KindInt:
			return a.i == b.i
		case KindFloat:
			return a.f == b.f
		case KindString:
			return a.s == b.s
		case KindBool:
			return a.b == b.b
		case KindRef:
			return a.ref == b.ref
		}
	}
	af, aok := a.AsFloat64()
	bf, bok := b.AsFloat64()
	if aok && bok {
		return af == bf
	}
	return false
}

// Compare orders two numeric atoms. The second return value is false if
// either atom is non-numeric; non-numeric atoms have no defined ordering.
func (a Atom) Compare(b Atom) (int, bool) {
	af, aok := a.AsFloat64()
	bf, bok := b.AsFloat64()
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// String implements fmt.Stringer for debug logging.
func (a Atom) String() string {
	switch a.kind {
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("%d", a.i)
	case KindFloat:
		if math.IsInf(a.f, 1) {
			return "+Inf"
		}
		if math.IsInf(a.f, -1) {
			return "-Inf"
		}
		return fmt.Sprintf("%g", a.f)
	case KindString:
		return fmt.Sprintf("%q", a.s)
	case KindBool:
		return fmt.Sprintf("%t", a.b)
	case KindRef:
		return fmt.Sprintf("ref(%d)", a.ref)
	default:
		return "<invalid atom>"
	}
}
