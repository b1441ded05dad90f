package vm

import (
	"errors"
	"testing"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	loader := NewLoader("test", nil)
	foo := loader.MustDefine("Foo", nil)

	if got := reg.Lookup(foo, "bar"); got != nil {
		t.Errorf("Expected no candidates, got %v", got)
	}

	gen := reg.Table(foo).Generation()
	c1 := reg.RegisterFunc(foo, "bar", nil, Generic, constant(1))
	c2 := reg.RegisterFunc(foo, "bar", []*Class{ObjectClass}, Generic, constant(2))

	got := reg.Lookup(foo, "bar")
	if len(got) != 2 || got[0] != c1 || got[1] != c2 {
		t.Fatalf("Expected both candidates in registration order, got %v", got)
	}
	if c1.Seq() >= c2.Seq() {
		t.Errorf("Expected increasing sequence numbers, got %d and %d", c1.Seq(), c2.Seq())
	}
	if c1.Receiver != foo {
		t.Errorf("Expected receiver to default to Foo, got %v", c1.Receiver)
	}
	if g := reg.Table(foo).Generation(); g != gen+2 {
		t.Errorf("Expected generation %d, got %d", gen+2, g)
	}
}

func TestRegistryRegisterCopiesCandidate(t *testing.T) {
	reg := NewRegistry()
	params := []*Class{IntegerClass}
	orig := NewCandidate("x", nil, params, Generic, constant(nil))
	got := reg.Register(ObjectClass, "x", orig)

	if got == orig {
		t.Error("Expected the registry to keep its own copy")
	}
	orig.Params[0] = StringClass
	if got.Params[0] != IntegerClass {
		t.Error("Expected registered candidate to be unaffected by caller mutation")
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFunc(ObjectClass, "gone", nil, Generic, constant(nil))
	reg.RegisterFunc(ObjectClass, "gone", []*Class{ObjectClass}, Generic, constant(nil))

	if n := reg.Remove(ObjectClass, "gone"); n != 2 {
		t.Errorf("Expected 2 removed, got %d", n)
	}
	if n := reg.Remove(ObjectClass, "gone"); n != 0 {
		t.Errorf("Expected nothing left to remove, got %d", n)
	}
	if got := reg.Lookup(ObjectClass, "gone"); len(got) != 0 {
		t.Errorf("Expected no candidates, got %v", got)
	}
}

func TestRegistryLoaderPartitioning(t *testing.T) {
	reg := NewRegistry()
	foo1 := NewLoader("one", nil).MustDefine("Foo", nil)
	foo2 := NewLoader("two", nil).MustDefine("Foo", nil)

	if reg.Table(foo1) == reg.Table(foo2) {
		t.Fatal("Expected independent tables for same-named classes")
	}
	reg.RegisterFunc(foo1, "m", nil, Generic, constant(1))
	if got := reg.Lookup(foo2, "m"); len(got) != 0 {
		t.Errorf("Expected registration to stay in its loader, got %v", got)
	}

	g2 := reg.Table(foo2).Generation()
	reg.Invalidate(foo1)
	if reg.Table(foo2).Generation() != g2 {
		t.Error("Expected invalidation to stay in its loader")
	}
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	reg := NewRegistry()
	snap := reg.Snapshot()

	reg.RegisterFunc(ObjectClass, "later", nil, Generic, constant(nil))
	reg.Table(NewLoader("test", nil).MustDefine("Fresh", nil))

	for _, ts := range snap {
		if ts.Class.Name == "Fresh" {
			t.Error("Expected snapshot not to contain a table created afterwards")
		}
		if _, ok := ts.Methods["later"]; ok {
			t.Errorf("Expected snapshot of %s not to contain a later registration", ts.Class)
		}
	}
	if len(reg.Snapshot()) != len(snap)+1 {
		t.Errorf("Expected a new snapshot to see the new table")
	}
}

func TestRegistryEachStops(t *testing.T) {
	reg := NewRegistry()
	n := 0
	reg.Each(func(TableSnapshot) bool {
		n++
		return n < 2
	})
	if n != 2 {
		t.Errorf("Expected iteration to stop after 2 tables, got %d", n)
	}
}

func TestRegistryChangeListeners(t *testing.T) {
	reg := NewRegistry()
	var events []ChangeEvent
	remove := reg.AddChangeListener(func(ev ChangeEvent) {
		events = append(events, ev)
	})

	reg.RegisterFunc(ObjectClass, "a", nil, Generic, constant(nil))
	reg.Invalidate(ObjectClass)
	reg.Reset()

	want := []ChangeKind{ChangeRegister, ChangeInvalidate, ChangeReset}
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %v", len(want), events)
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Errorf("event %d: expected %v, got %v", i, k, events[i].Kind)
		}
	}
	if events[0].Class != ObjectClass || events[0].Name != "a" {
		t.Errorf("Unexpected register event %+v", events[0])
	}

	remove()
	reg.Invalidate(ObjectClass)
	if len(events) != len(want) {
		t.Error("Expected removed listener not to be called")
	}
}

func TestRegistryResetRestoresBuiltins(t *testing.T) {
	reg := NewRegistry()
	rt := NewRuntimeWithRegistry(reg, nil)
	cs := rt.NewSiteTable("test", "plus").Site(0)

	reg.RegisterFunc(IntegerClass, "plus", []*Class{IntegerClass}, Specialized, constant("custom"))
	if got, _ := cs.Call(int32(1), int32(2)); got != "custom" {
		t.Fatalf("Expected custom plus, got %v", got)
	}
	if !reg.Modifications().Modified(OpAdd, KindInt) {
		t.Error("Expected Integer plus to be marked modified")
	}

	reg.Reset()
	if got, _ := cs.Call(int32(1), int32(2)); got != int32(3) {
		t.Errorf("Expected builtin plus after reset, got %v", got)
	}
	if reg.Modifications().Any() {
		t.Error("Expected reset to clear modification flags")
	}
	if got := reg.Lookup(NumberClass, "plus"); len(got) != 1 || !got[0].Builtin() {
		t.Errorf("Expected the builtin Number.plus, got %v", got)
	}
}

func TestRegistryUnloadLoader(t *testing.T) {
	reg := NewRegistry()
	rt := NewRuntimeWithRegistry(reg, nil)
	loader := NewLoader("plugin", nil)
	foo := loader.MustDefine("Foo", nil)
	reg.RegisterFunc(foo, "hello", nil, Generic, constant("hi"))
	cs := rt.NewSiteTable("test", "hello").Site(0)

	if got, _ := cs.Call(MustNewObject(foo)); got != "hi" {
		t.Fatalf("Expected hi, got %v", got)
	}
	if n := reg.UnloadLoader(loader); n != 1 {
		t.Errorf("Expected 1 table dropped, got %d", n)
	}
	if _, err := cs.Call(MustNewObject(foo)); !errors.Is(err, ErrNoApplicableOperation) {
		t.Errorf("Expected unloaded method to be gone, got %v", err)
	}
}

func TestModificationTracking(t *testing.T) {
	reg := NewRegistry()
	mods := reg.Modifications()
	if mods.Any() {
		t.Fatal("Expected builtins not to count as modifications")
	}

	reg.RegisterFunc(LongClass, "minus", []*Class{LongClass}, Specialized, constant(nil))
	if !mods.Modified(OpSub, KindLong) {
		t.Error("Expected Long minus to be modified")
	}
	if mods.Modified(OpSub, KindInt) || mods.Modified(OpAdd, KindLong) {
		t.Error("Expected other pairs to stay unmodified")
	}

	reg.RegisterFunc(NumberClass, "mod", []*Class{NumberClass}, Generic, constant(nil))
	for _, k := range numericKinds() {
		if !mods.Modified(OpMod, k) {
			t.Errorf("Expected mod on %s to be modified", k)
		}
	}

	reg.RegisterFunc(StringClass, "plus", []*Class{StringClass}, Generic, constant(nil))
	if mods.Modified(OpAdd, KindInt) {
		t.Error("Expected String plus not to touch numbers")
	}
}

func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("Expected a single default registry")
	}
	if got := DefaultRegistry().Lookup(NumberClass, "plus"); len(got) == 0 {
		t.Error("Expected default registry to hold builtins")
	}
}
