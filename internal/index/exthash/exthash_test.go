package exthash

import (
	"path/filepath"
	"testing"

	"ridgedb/internal/catalog"
)

func openTestIndex(t *testing.T, capacity int) *Index {
	t.Helper()
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "dir.json"), filepath.Join(dir, "data.bin"), capacity)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return idx
}

func TestInsertThenSearchFindsRecord(t *testing.T) {
	idx := openTestIndex(t, 4)
	r := catalog.Record{RestaurantID: 42, Name: "Cafe"}
	if err := idx.Insert(r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok, err := idx.Search(42)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !ok || got.RestaurantID != 42 {
		t.Fatalf("Search returned ok=%v got=%+v", ok, got)
	}
}

func TestInsertBeyondCapacitySplits(t *testing.T) {
	idx := openTestIndex(t, 2)
	for i := uint32(0); i < 50; i++ {
		if err := idx.Insert(catalog.Record{RestaurantID: i}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if idx.meta.GlobalDepth <= 1 {
		t.Fatalf("expected directory to have doubled, global depth = %d", idx.meta.GlobalDepth)
	}
	for i := uint32(0); i < 50; i++ {
		got, ok, err := idx.Search(i)
		if err != nil || !ok {
			t.Fatalf("Search(%d): ok=%v err=%v", i, ok, err)
		}
		if got.RestaurantID != i {
			t.Fatalf("Search(%d) returned wrong record %+v", i, got)
		}
	}
}

func TestRemoveDeletesRecord(t *testing.T) {
	idx := openTestIndex(t, 4)
	idx.Insert(catalog.Record{RestaurantID: 7})
	removed, err := idx.Remove(7)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatalf("expected Remove to report found")
	}
	_, ok, err := idx.Search(7)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ok {
		t.Fatalf("record still present after Remove")
	}
}

func TestRemoveMissingReportsNotFound(t *testing.T) {
	idx := openTestIndex(t, 4)
	removed, err := idx.Remove(999)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed {
		t.Fatalf("expected Remove to report not-found")
	}
}

func TestInsertOverwritesExisting(t *testing.T) {
	idx := openTestIndex(t, 4)
	idx.Insert(catalog.Record{RestaurantID: 1, Name: "First"})
	idx.Insert(catalog.Record{RestaurantID: 1, Name: "Second"})
	got, ok, err := idx.Search(1)
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	if got.Name != "Second" {
		t.Fatalf("expected overwritten record, got %+v", got)
	}
}

func TestReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	dirPath := filepath.Join(dir, "dir.json")
	dataPath := filepath.Join(dir, "data.bin")

	idx, err := Open(dirPath, dataPath, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	idx.Insert(catalog.Record{RestaurantID: 5, Name: "Persisted"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dirPath, dataPath, 4)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := reopened.Search(5)
	if err != nil || !ok {
		t.Fatalf("Search after reopen: ok=%v err=%v", ok, err)
	}
	if got.Name != "Persisted" {
		t.Fatalf("expected persisted record, got %+v", got)
	}
}

func TestRebuildReinsertsAllRecords(t *testing.T) {
	dir := t.TempDir()
	dirPath := filepath.Join(dir, "dir.json")
	dataPath := filepath.Join(dir, "data.bin")

	recs := []catalog.Record{{RestaurantID: 1}, {RestaurantID: 2}, {RestaurantID: 3}}
	idx, err := Rebuild(dirPath, dataPath, 2, recs)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	for _, r := range recs {
		_, ok, err := idx.Search(r.RestaurantID)
		if err != nil || !ok {
			t.Fatalf("Search(%d) after rebuild: ok=%v err=%v", r.RestaurantID, ok, err)
		}
	}
}
