package lattice

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// Person and Store are minimal example records built on lattice.Base,
// spec.md §9's recommended design option (b).
type Person struct{ Base }

func NewPerson(name string, age int64, wage int64) *Person {
	p := &Person{}
	p.Set("name", Str(name))
	p.Set("age", Int(age))
	p.Set("wage", Int(wage))
	return p
}

type Store struct{ Base }

func NewStore(name, address string) *Store {
	s := &Store{}
	s.Set("name", Str(name))
	s.Set("address", Str(address))
	return s
}

func collectNames(t *testing.T, rs []Record) []string {
	t.Helper()
	out := make([]string, len(rs))
	for i, r := range rs {
		b := r.(interface{ Get(string) (Atom, bool) })
		v, ok := b.Get("name")
		if !ok {
			t.Fatalf("record %d has no name attribute", i)
		}
		s, _ := v.AsString()
		out[i] = s
	}
	return out
}

func TestS1_EqualityThenMutation(t *testing.T) {
	ix := NewIndex()
	p1 := NewPerson("A", 30, 70000)
	p2 := NewPerson("B", 25, 50000)
	ix.Add(p1)
	ix.Add(p2)

	got, err := ix.GetByAttribute(context.Background(), map[string]Atom{"age": Int(30)})
	if err != nil {
		t.Fatal(err)
	}
	if names := collectNames(t, got); len(names) != 1 || names[0] != "A" {
		t.Fatalf("eq(age,30) = %v, want [A]", names)
	}

	p2.Set("age", Int(30))

	got, err = ix.GetByAttribute(context.Background(), map[string]Atom{"age": Int(30)})
	if err != nil {
		t.Fatal(err)
	}
	if names := collectNames(t, got); len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("eq(age,30) after mutation = %v, want [A B] (handle order)", names)
	}
}

func TestS2_Range(t *testing.T) {
	ix := NewIndex()
	ix.Add(NewPerson("A", 30, 70000))
	ix.Add(NewPerson("B", 25, 50000))

	v, err := ix.ReducedQuery(context.Background(), Q.Gt("wage", 60000))
	if err != nil {
		t.Fatal(err)
	}
	if names := collectNames(t, v.Collect()); len(names) != 1 || names[0] != "A" {
		t.Fatalf("gt(wage,60000) = %v, want [A]", names)
	}

	v, err = ix.ReducedQuery(context.Background(), Q.Lt("wage", 55000))
	if err != nil {
		t.Fatal(err)
	}
	if names := collectNames(t, v.Collect()); len(names) != 1 || names[0] != "B" {
		t.Fatalf("lt(wage,55000) = %v, want [B]", names)
	}
}

func TestS3_NestedPath(t *testing.T) {
	ix := NewIndex()
	store := NewStore("Big", "123")
	ix.Add(store)

	p1 := NewPerson("A", 30, 70000)
	p1.Set("employer", Ref(handleOf(t, ix, store)))
	ix.Add(p1)

	p2 := NewPerson("B", 25, 50000)
	p2.Set("employer", Ref(handleOf(t, ix, store)))
	ix.Add(p2)

	v, err := ix.ReducedQuery(context.Background(), Q.Eq("employer.name", Str("Big")))
	if err != nil {
		t.Fatal(err)
	}
	names := collectNames(t, v.Collect())
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("eq(employer.name, Big) = %v, want [A B]", names)
	}
}

func TestS4_Composite(t *testing.T) {
	ix := NewIndex()
	store := NewStore("Big", "123")
	ix.Add(store)
	sh := handleOf(t, ix, store)

	p1 := NewPerson("A", 30, 70000)
	p1.Set("employer", Ref(sh))
	ix.Add(p1)

	p2 := NewPerson("B", 25, 50000)
	p2.Set("employer", Ref(sh))
	ix.Add(p2)

	v, err := ix.ReducedQuery(context.Background(), Q.And(
		Q.Eq("employer.name", Str("Big")),
		Q.Ge("wage", 60000),
	))
	if err != nil {
		t.Fatal(err)
	}
	if names := collectNames(t, v.Collect()); len(names) != 1 || names[0] != "A" {
		t.Fatalf("and(...) = %v, want [A]", names)
	}
}

func TestS5_ViewComposition(t *testing.T) {
	ix := NewIndex()
	ix.Add(NewPerson("A", 30, 70000))
	ix.Add(NewPerson("B", 25, 50000))

	v, err := ix.ReducedQuery(context.Background(), Q.Gt("wage", 40000))
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Collect()) != 2 {
		t.Fatalf("gt(wage,40000) = %v, want both records", collectNames(t, v.Collect()))
	}

	v2, err := v.ReducedQuery(context.Background(), Q.Eq("age", Int(25)))
	if err != nil {
		t.Fatal(err)
	}
	if names := collectNames(t, v2.Collect()); len(names) != 1 || names[0] != "B" {
		t.Fatalf("nested view = %v, want [B]", names)
	}
}

func TestS6_RebaseAndUnion(t *testing.T) {
	ixAB := NewIndex()
	p1 := NewPerson("A", 30, 70000)
	p2 := NewPerson("B", 25, 50000)
	ixAB.Add(p1)
	ixAB.Add(p2)

	vAlice, err := ixAB.ReducedQuery(context.Background(), Q.Eq("name", Str("A")))
	if err != nil {
		t.Fatal(err)
	}
	alice := vAlice.Rebase()
	if names := collectNames(t, alice.Collect()); len(names) != 1 || names[0] != "A" {
		t.Fatalf("rebase = %v, want [A]", names)
	}

	bob := NewIndex()
	bob.Add(NewPerson("B", 25, 50000))

	merged := alice.UnionWith(bob)
	names := collectNames(t, merged.Collect())
	if len(names) != 2 {
		t.Fatalf("union = %v, want 2 records", names)
	}
}

func TestInvariant_MutationNoOp(t *testing.T) {
	ix := NewIndex()
	p := NewPerson("A", 30, 70000)
	ix.Add(p)

	before, err := ix.GetByAttribute(context.Background(), map[string]Atom{"age": Int(30)})
	if err != nil {
		t.Fatal(err)
	}
	p.Set("age", Int(30))
	after, err := ix.GetByAttribute(context.Background(), map[string]Atom{"age": Int(30)})
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Errorf("no-op mutation changed eq(age,30) result: %d vs %d", len(before), len(after))
	}
}

func TestInvariant_DoubleNot(t *testing.T) {
	ix := NewIndex()
	ix.Add(NewPerson("A", 30, 70000))
	ix.Add(NewPerson("B", 25, 50000))

	q := Q.Eq("age", Int(30))
	direct, err := ix.ReducedQuery(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	doubled, err := ix.ReducedQuery(context.Background(), Q.Not(Q.Not(q)))
	if err != nil {
		t.Fatal(err)
	}
	if len(direct.Collect()) != len(doubled.Collect()) {
		t.Errorf("not(not(Q)) != Q: %d vs %d", len(doubled.Collect()), len(direct.Collect()))
	}
}

func TestInvariant_ReduceEvictsFromPostingAndGraph(t *testing.T) {
	ix := NewIndex()
	store := NewStore("Big", "123")
	ix.Add(store)
	sh := handleOf(t, ix, store)

	p1 := NewPerson("A", 30, 70000)
	p1.Set("employer", Ref(sh))
	ix.Add(p1)
	p2 := NewPerson("B", 25, 50000)
	ix.Add(p2)

	if err := ix.Reduce(context.Background(), map[string]Atom{"name": Str("A")}); err != nil {
		t.Fatal(err)
	}

	remaining := collectNames(t, ix.Collect())
	if len(remaining) != 1 || remaining[0] != "A" {
		t.Fatalf("Reduce should keep only matching records, got %v", remaining)
	}

	// B and the store, which didn't match, must be fully evicted: a fresh
	// query for B's attribute must not find it, neither record may be left
	// in a posting list, and A's employer ref must no longer resolve through
	// an edge into the evicted store.
	v, err := ix.ReducedQuery(context.Background(), Q.Eq("name", Str("B")))
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Collect()) != 0 {
		t.Error("expected evicted record B to be fully gone from posting lists")
	}
	if n := ix.attrs.Count("name", Str("B")); n != 0 {
		t.Errorf("posting list for name=B still holds %d handles after Reduce", n)
	}
	if n := ix.attrs.Count("name", Str("Big")); n != 0 {
		t.Errorf("posting list for name=Big still holds %d handles after Reduce", n)
	}
	if _, ok := ix.edges.Child(handleOf(t, ix, p1), "employer"); ok {
		t.Error("expected A's edge into the evicted store to be severed")
	}
}

func TestRecordIdentity_ReAddIsNoOp(t *testing.T) {
	ix := NewIndex()
	p := NewPerson("A", 30, 70000)
	ix.Add(p)
	ix.Add(p)

	if len(ix.Collect()) != 1 {
		t.Errorf("re-add created a duplicate: %d records", len(ix.Collect()))
	}
}

func TestUnionWith_DoesNotStealSourceRecordCallbacks(t *testing.T) {
	ix := NewIndex()
	p := NewPerson("A", 30, 70000)
	ix.Add(p)

	other := NewIndex()
	other.Add(NewPerson("B", 25, 50000))

	merged := ix.UnionWith(other)
	if len(merged.Collect()) != 2 {
		t.Fatalf("union = %d records, want 2", len(merged.Collect()))
	}

	// Mutating the original record must still be visible through its
	// original index: UnionWith must not have redirected p's installed
	// callback toward merged's dispatcher.
	p.Set("age", Int(99))

	got, err := ix.GetByAttribute(context.Background(), map[string]Atom{"age": Int(99)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != Record(p) {
		t.Errorf("source index did not observe mutation after UnionWith: got %v", got)
	}

	// merged must not have observed it either, since it holds its own
	// snapshot clone, not p itself.
	mergedGot, err := merged.GetByAttribute(context.Background(), map[string]Atom{"age": Int(99)})
	if err != nil {
		t.Fatal(err)
	}
	if len(mergedGot) != 0 {
		t.Errorf("merged index unexpectedly observed a mutation on the source's live record: %v", mergedGot)
	}
}

func TestRebase_DoesNotStealSourceRecordCallbacks(t *testing.T) {
	ix := NewIndex()
	p := NewPerson("A", 30, 70000)
	ix.Add(p)
	ix.Add(NewPerson("B", 25, 50000))

	v, err := ix.ReducedQuery(context.Background(), Q.Eq("name", Str("A")))
	if err != nil {
		t.Fatal(err)
	}
	rebased := v.Rebase()
	if len(rebased.Collect()) != 1 {
		t.Fatalf("rebase = %d records, want 1", len(rebased.Collect()))
	}

	p.Set("age", Int(99))

	got, err := ix.GetByAttribute(context.Background(), map[string]Atom{"age": Int(99)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != Record(p) {
		t.Errorf("source index did not observe mutation after Rebase: got %v", got)
	}

	rebasedGot, err := rebased.GetByAttribute(context.Background(), map[string]Atom{"age": Int(99)})
	if err != nil {
		t.Fatal(err)
	}
	if len(rebasedGot) != 0 {
		t.Errorf("rebased index unexpectedly observed a mutation on the source's live record: %v", rebasedGot)
	}
}

func TestWithComponentLevels_FiltersPerSubsystem(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ix := NewIndex(WithComponentLevels(base, slog.LevelInfo, map[string]slog.Level{
		"dispatch": slog.LevelDebug,
	}))
	p := NewPerson("A", 30, 70000)
	ix.Add(p)

	// dispatch is at Debug: destroying a record should surface its Debug
	// eviction log line.
	if err := ix.Reduce(context.Background(), map[string]Atom{"name": Str("nobody")}); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	if !strings.Contains(output, "record evicted") {
		t.Errorf("expected dispatch's Debug eviction log to pass through, got: %s", output)
	}
	// record stayed at the default Info level, so its Debug registration
	// log line must have been filtered out.
	if strings.Contains(output, "record registered") {
		t.Errorf("expected record's Debug log to be filtered at the default level, got: %s", output)
	}
}

func handleOf(t *testing.T, ix *Index, r Record) Handle {
	t.Helper()
	for _, h := range ix.reg.Handles() {
		if rec, ok := ix.reg.RecordFor(h); ok && rec == r {
			return h
		}
	}
	t.Fatalf("record not found in index")
	return 0
}
