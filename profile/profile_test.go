package profile

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/pica/vm"
)

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	rt := vm.NewRuntimeWithRegistry(vm.NewRegistry(), nil)
	sites := rt.NewSiteTable("sample", "plus", "minus", "toString")
	sites.Site(0).Call(int32(1), int32(2))
	sites.Site(0).Call(int32(3), int32(4))
	sites.Site(1).Call(int64(1), int64(2))
	sites.Site(1).Call(float64(1), float64(2))
	return Capture(rt, "sample.trace")
}

func TestCapture(t *testing.T) {
	s := sampleSnapshot(t)

	if s.Version != Version || s.Source != "sample.trace" {
		t.Errorf("Unexpected header %d %q", s.Version, s.Source)
	}
	if s.Summary.CallSites != 3 || s.Summary.Monomorphic != 1 || s.Summary.Polymorphic != 1 || s.Summary.Empty != 1 {
		t.Errorf("Unexpected summary %+v", s.Summary)
	}
	if s.Summary.Hits != 1 || s.Summary.Misses != 3 || s.Summary.Consultations != 3 {
		t.Errorf("Unexpected counters %+v", s.Summary)
	}
	if len(s.Sites) != 3 || s.Sites[1].Name != "minus" || s.Sites[1].Guards != 2 {
		t.Errorf("Unexpected sites %+v", s.Sites)
	}
	if got := s.SitesIn(vm.CacheMonomorphic); len(got) != 1 || got[0].Name != "plus" {
		t.Errorf("Expected the plus site to be monomorphic, got %+v", got)
	}
	if s.HitRate() != 25 {
		t.Errorf("Expected 25%% hit rate, got %v", s.HitRate())
	}

	var number *TableProfile
	for i := range s.Tables {
		if s.Tables[i].Class == "Number" {
			number = &s.Tables[i]
		}
	}
	if number == nil {
		t.Fatal("Expected a Number table")
	}
	if number.Loader != "boot" || len(number.Methods) != len(vm.Ops()) {
		t.Errorf("Unexpected Number table %+v", number)
	}
}

func TestSnapshot_CBORRoundTrip(t *testing.T) {
	s := sampleSnapshot(t)

	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Source != s.Source || got.CreatedAt != s.CreatedAt {
		t.Error("Header mismatch")
	}
	if got.Summary != s.Summary {
		t.Errorf("Summary: got %+v, want %+v", got.Summary, s.Summary)
	}
	if len(got.Sites) != len(s.Sites) || got.Sites[0] != s.Sites[0] {
		t.Error("Sites mismatch")
	}
	if len(got.Tables) != len(s.Tables) {
		t.Error("Tables mismatch")
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	s := sampleSnapshot(t)
	a, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Expected identical encodings")
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("Expected error for invalid CBOR")
	}

	data, err := Marshal(&Snapshot{Version: Version + 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data); err == nil {
		t.Error("Expected error for unknown version")
	}
}

func TestWriteReadFile(t *testing.T) {
	s := sampleSnapshot(t)
	path := filepath.Join(t.TempDir(), "out.cbor")

	if err := WriteFile(path, s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Summary != s.Summary {
		t.Errorf("Summary: got %+v, want %+v", got.Summary, s.Summary)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.cbor")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "db", "profiles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	s := sampleSnapshot(t)
	id1, err := store.Save(ctx, s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Source = "second.trace"
	id2, err := store.Save(ctx, s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("Expected increasing ids, got %d then %d", id1, id2)
	}

	got, err := store.Load(ctx, id1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Source != "sample.trace" || got.Summary != s.Summary {
		t.Errorf("Unexpected snapshot %+v", got.Summary)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != id2 || entries[0].Source != "second.trace" {
		t.Errorf("Unexpected history %+v", entries)
	}
	if entries[0].Size == 0 {
		t.Error("Expected a non-zero payload size")
	}

	entries, err = store.List(ctx, 1)
	if err != nil || len(entries) != 1 {
		t.Errorf("Expected one entry with limit 1, got %d (%v)", len(entries), err)
	}

	if err := store.Delete(ctx, id1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, id1); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if err := store.Delete(ctx, id1); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}
}
