package recordtest

import (
	"testing"

	"lattice/internal/atom"
)

func TestRecord_InstallThenSetInvokesCallback(t *testing.T) {
	r := New(map[string]atom.Atom{"name": atom.Str("a")})

	var gotAttr string
	var gotVal atom.Atom
	r.Install(func(attr string, v atom.Atom) {
		gotAttr, gotVal = attr, v
	})

	r.Set("name", atom.Str("b"))

	if gotAttr != "name" {
		t.Fatalf("callback attr = %q, want %q", gotAttr, "name")
	}
	if s, _ := gotVal.AsString(); s != "b" {
		t.Fatalf("callback value = %v, want b", gotVal)
	}
}

func TestGenerateBatch_ProducesDistinctNames(t *testing.T) {
	b := GenerateBatch(t, 10)
	if len(b.Records) != 10 || len(b.Names) != 10 {
		t.Fatalf("got %d records / %d names, want 10/10", len(b.Records), len(b.Names))
	}

	seen := make(map[string]bool, 10)
	for _, name := range b.Names {
		if seen[name] {
			t.Fatalf("duplicate name %q in batch", name)
		}
		seen[name] = true
	}

	for i, r := range b.Records {
		found := false
		for attr, v := range r.Attributes() {
			if attr == "seq" {
				n, _ := v.AsInt()
				if n != int64(i) {
					t.Errorf("record %d seq attribute = %d, want %d", i, n, i)
				}
				found = true
			}
		}
		if !found {
			t.Errorf("record %d missing seq attribute", i)
		}
	}
}
