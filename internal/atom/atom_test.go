package atom

import "testing"

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Atom
		want bool
	}{
		{"int eq int", Int(3), Int(3), true},
		{"int neq int", Int(3), Int(4), false},
		{"string eq string", Str("x"), Str("x"), true},
		{"string neq string", Str("x"), Str("y"), false},
		{"bool eq bool", Bool(true), Bool(true), true},
		{"null eq null", Null(), Null(), true},
		{"null neq int", Null(), Int(0), false},
		{"int eq float integral", Int(3), Float(3.0), true},
		{"float eq int integral", Float(3.0), Int(3), true},
		{"int neq float fractional", Int(3), Float(3.5), false},
		{"ref eq ref same handle", Ref(1), Ref(1), true},
		{"ref neq ref different handle", Ref(1), Ref(2), false},
		{"ref neq int", Ref(1), Int(1), false},
		{"string neq bool", Str("true"), Bool(true), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal(%v, %v) (reversed) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Atom
		want   int
		wantOK bool
	}{
		{"int lt int", Int(1), Int(2), -1, true},
		{"int gt float", Int(5), Float(2.5), 1, true},
		{"equal mixed", Int(3), Float(3.0), 0, true},
		{"string not ordered", Str("a"), Str("b"), 0, false},
		{"ref not ordered", Ref(1), Ref(2), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.Compare(tt.b)
			if ok != tt.wantOK {
				t.Fatalf("Compare ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Compare = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAsFloat64(t *testing.T) {
	if f, ok := Int(7).AsFloat64(); !ok || f != 7.0 {
		t.Errorf("Int(7).AsFloat64() = (%v, %v), want (7, true)", f, ok)
	}
	if f, ok := Float(2.5).AsFloat64(); !ok || f != 2.5 {
		t.Errorf("Float(2.5).AsFloat64() = (%v, %v), want (2.5, true)", f, ok)
	}
	if _, ok := Str("x").AsFloat64(); ok {
		t.Error("Str(\"x\").AsFloat64() ok = true, want false")
	}
	if _, ok := Null().AsFloat64(); ok {
		t.Error("Null().AsFloat64() ok = true, want false")
	}
}

func TestString(t *testing.T) {
	if Int(3).String() != "3" {
		t.Errorf("Int(3).String() = %q", Int(3).String())
	}
	if Str("hi").String() != `"hi"` {
		t.Errorf("Str(\"hi\").String() = %q", Str("hi").String())
	}
	if Ref(5).String() != "ref(5)" {
		t.Errorf("Ref(5).String() = %q", Ref(5).String())
	}
}
