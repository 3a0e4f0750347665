package rtree

import (
	"path/filepath"
	"testing"

	"ridgedb/internal/catalog"
)

func sampleRecords() []catalog.Record {
	return []catalog.Record{
		{RestaurantID: 1, Name: "Le Petit Souffle", City: "Makati City", Longitude: 121.0270, Latitude: 14.5647},
		{RestaurantID: 2, Name: "Far Cafe", City: "Makati City", Longitude: 121.0280, Latitude: 14.5660},
		{RestaurantID: 3, Name: "Distant Diner", City: "Quezon City", Longitude: 121.5000, Latitude: 15.0000},
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	dir := t.TempDir()
	idx, err := Build(filepath.Join(dir, "meta.json"), sampleRecords())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestRangeSearchFindsNearbyExcludesFar(t *testing.T) {
	idx := buildTestIndex(t)
	got, err := idx.RangeSearchKM(121.0275, 14.56, 3)
	if err != nil {
		t.Fatalf("RangeSearchKM: %v", err)
	}
	ids := map[uint32]bool{}
	for _, r := range got {
		ids[r.Record.RestaurantID] = true
	}
	if !ids[1] || !ids[2] {
		t.Fatalf("expected nearby restaurants 1 and 2 in range, got %v", ids)
	}
	if ids[3] {
		t.Fatalf("distant restaurant 3 should not be within 3km")
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Distance > got[i].Distance {
			t.Fatalf("results not sorted ascending by distance")
		}
	}
}

func TestAddPointDedupsOnRestaurantID(t *testing.T) {
	idx := buildTestIndex(t)
	if idx.Stats().PointCount != 3 {
		t.Fatalf("expected 3 points, got %d", idx.Stats().PointCount)
	}
	moved := catalog.Record{RestaurantID: 1, Name: "Le Petit Souffle", City: "Makati City", Longitude: 121.03, Latitude: 14.57}
	if _, err := idx.AddPoint(moved.Longitude, moved.Latitude, moved.RawFields()); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	if idx.Stats().PointCount != 3 {
		t.Fatalf("expected dedup to keep point count at 3, got %d", idx.Stats().PointCount)
	}
}

func TestRemovePointByID(t *testing.T) {
	idx := buildTestIndex(t)
	removed, err := idx.RemovePointByID(2)
	if err != nil {
		t.Fatalf("RemovePointByID: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to report found")
	}
	if idx.Stats().PointCount != 2 {
		t.Fatalf("expected 2 points after removal, got %d", idx.Stats().PointCount)
	}
}

func TestReopenReplaysSidecar(t *testing.T) {
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "meta.json")
	idx, err := Build(metaPath, sampleRecords())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(metaPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if reopened.Stats().PointCount != 3 {
		t.Fatalf("expected 3 points after reopen, got %d", reopened.Stats().PointCount)
	}
	got, err := reopened.RangeSearchKM(121.0275, 14.56, 3)
	if err != nil {
		t.Fatalf("RangeSearchKM: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 nearby points after reopen, got %d", len(got))
	}
}

func TestKNNReturnsClosestFirst(t *testing.T) {
	idx := buildTestIndex(t)
	got, err := idx.KNN(121.0270, 14.5647, 2)
	if err != nil {
		t.Fatalf("KNN: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[0].Record.RestaurantID != 1 {
		t.Fatalf("expected restaurant 1 to be the closest neighbor to itself, got %d", got[0].Record.RestaurantID)
	}
}
