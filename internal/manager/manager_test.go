package manager

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ridgedb/internal/catalog"
	"ridgedb/internal/dberrors"
	"ridgedb/internal/logging"
)

func sampleRecords() []catalog.Record {
	return []catalog.Record{
		{
			RestaurantID: 6317637, Name: "Le Petit Souffle", City: "Makati City",
			CountryCode: 162, Cuisines: "French, Japanese", AvgCostForTwo: 1100,
			Currency: "Botswana Pula(P)", PriceRange: 3, AggregateRating: 4.8,
			RatingText: "Excellent", Votes: 314, Longitude: 121.027535, Latitude: 14.565443,
		},
		{
			RestaurantID: 6304287, Name: "Izakaya Kikufuji", City: "Makati City",
			CountryCode: 162, Cuisines: "Japanese", AvgCostForTwo: 1200,
			Currency: "Botswana Pula(P)", PriceRange: 3, AggregateRating: 4.5,
			RatingText: "Excellent", Votes: 591, Longitude: 121.014101, Latitude: 14.553708,
		},
		{
			RestaurantID: 6300002, Name: "Heat - Edsa Shangri-La", City: "Mandaluyong City",
			CountryCode: 162, Cuisines: "Seafood, Asian", AvgCostForTwo: 4000,
			Currency: "Botswana Pula(P)", PriceRange: 4, AggregateRating: 4.4,
			RatingText: "Very Good", Votes: 270, Longitude: 121.056831, Latitude: 14.581404,
		},
		{
			RestaurantID: 7402935, Name: "Cafe Andino", City: "Lima",
			CountryCode: 89, Cuisines: "Peruvian", AvgCostForTwo: 120,
			Currency: "PEN", PriceRange: 2, AggregateRating: 3.9,
			RatingText: "Good", Votes: 98, Longitude: -77.03, Latitude: -12.12,
		},
		{
			RestaurantID: 7400001, Name: "Pizzeria Roma", City: "Lima",
			CountryCode: 89, Cuisines: "Pizza, Italian", AvgCostForTwo: 90,
			Currency: "PEN", PriceRange: 1, AggregateRating: 3.2,
			RatingText: "Average", Votes: 45, Longitude: -77.05, Latitude: -12.10,
		},
	}
}

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(Config{BaseDir: t.TempDir(), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func builtTestManager(t *testing.T) (*Manager, []catalog.Record) {
	t.Helper()
	m := openTestManager(t)
	recs := sampleRecords()
	if err := m.Build(recs, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m, recs
}

func TestBuildThenEveryRecordReachableByEveryPath(t *testing.T) {
	m, recs := builtTestManager(t)
	for _, r := range recs {
		got, ok, err := m.SearchByID(r.RestaurantID)
		if err != nil || !ok {
			t.Fatalf("SearchByID(%d): ok=%v err=%v", r.RestaurantID, ok, err)
		}
		if got.Name != r.Name {
			t.Fatalf("SearchByID(%d) returned %q, want %q", r.RestaurantID, got.Name, r.Name)
		}

		byName, err := m.SearchByName(r.Name, r.City)
		if err != nil {
			t.Fatalf("SearchByName(%q, %q): %v", r.Name, r.City, err)
		}
		if len(byName) == 0 {
			t.Fatalf("SearchByName(%q, %q) returned nothing", r.Name, r.City)
		}

		near, err := m.SearchNear(r.Longitude, r.Latitude, 0.01)
		if err != nil {
			t.Fatalf("SearchNear: %v", err)
		}
		found := false
		for _, pt := range near {
			if pt.Record.RestaurantID == r.RestaurantID {
				found = true
			}
		}
		if !found {
			t.Fatalf("SearchNear around record %d did not contain it", r.RestaurantID)
		}
	}
}

func TestSearchRangeIDAscendingAndBounded(t *testing.T) {
	m, _ := builtTestManager(t)
	got, err := m.SearchRangeID(6300000, 6320000)
	if err != nil {
		t.Fatalf("SearchRangeID: %v", err)
	}
	want := []uint32{6300002, 6304287, 6317637}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.RestaurantID != want[i] {
			t.Fatalf("position %d: got id %d, want %d", i, r.RestaurantID, want[i])
		}
	}
}

func TestDuplicateInsertRejectedWithoutMutation(t *testing.T) {
	m, _ := builtTestManager(t)

	dup := sampleRecords()[0]
	dup.Name = "Impostor"
	err := m.InsertRecord(dup)
	if !errors.Is(err, dberrors.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	// post-state equals pre-state on every search
	got, ok, err := m.SearchByID(dup.RestaurantID)
	if err != nil || !ok {
		t.Fatalf("SearchByID after rejected insert: ok=%v err=%v", ok, err)
	}
	if got.Name != "Le Petit Souffle" {
		t.Fatalf("rejected insert mutated the record: %q", got.Name)
	}
	rows, err := m.SearchByName("Impostor", "Makati City")
	if err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rejected insert leaked into ISAM")
	}
}

func TestInsertDeleteInsertRoundTrip(t *testing.T) {
	m, _ := builtTestManager(t)
	r := catalog.Record{
		RestaurantID: 9999991, Name: "Ephemeral Diner", City: "Lima",
		AvgCostForTwo: 55, Currency: "PEN", PriceRange: 1, AggregateRating: 3.5,
		RatingText: "Good", Votes: 7, Longitude: -77.01, Latitude: -12.05,
	}

	if err := m.InsertRecord(r); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	id := r.RestaurantID
	if n, err := m.Delete("", "", &id); err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	if _, ok, _ := m.SearchByID(id); ok {
		t.Fatalf("record still reachable after delete")
	}
	if err := m.InsertRecord(r); err != nil {
		t.Fatalf("re-insert after delete: %v", err)
	}
	got, ok, err := m.SearchByID(id)
	if err != nil || !ok {
		t.Fatalf("SearchByID after re-insert: ok=%v err=%v", ok, err)
	}
	if got.Name != r.Name {
		t.Fatalf("re-inserted record differs: %q", got.Name)
	}
}

func TestDeleteByNameCityResolvesThroughISAM(t *testing.T) {
	m, _ := builtTestManager(t)
	n, err := m.Delete("Cafe Andino", "Lima", nil)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 delete, got %d", n)
	}
	if _, ok, _ := m.SearchByID(7402935); ok {
		t.Fatalf("record survived delete in id-keyed engines")
	}
	rows, err := m.SearchByName("Cafe Andino", "Lima")
	if err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("record survived delete in ISAM")
	}
}

func TestCloseReopenPreservesResults(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{BaseDir: dir, Logger: logging.Discard()}
	m, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	recs := sampleRecords()
	if err := m.Build(recs, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()
	for _, r := range recs {
		if _, ok, err := m2.SearchByID(r.RestaurantID); err != nil || !ok {
			t.Fatalf("record %d missing after reopen: ok=%v err=%v", r.RestaurantID, ok, err)
		}
		rows, err := m2.SearchByName(r.Name, r.City)
		if err != nil || len(rows) == 0 {
			t.Fatalf("name lookup for %d failed after reopen: %v", r.RestaurantID, err)
		}
	}
}

func TestSearchComparisonAndBetween(t *testing.T) {
	m, _ := builtTestManager(t)

	hot, err := m.SearchComparison("rating", ">", 4.0)
	if err != nil {
		t.Fatalf("SearchComparison: %v", err)
	}
	if len(hot) != 3 {
		t.Fatalf("rating > 4.0: got %d records, want 3", len(hot))
	}

	mid, err := m.SearchBetween("votes", 90, 600)
	if err != nil {
		t.Fatalf("SearchBetween: %v", err)
	}
	for _, r := range mid {
		if r.Votes < 90 || r.Votes > 600 {
			t.Fatalf("votes %d outside inclusive bounds", r.Votes)
		}
	}
	if len(mid) != 4 {
		t.Fatalf("votes BETWEEN 90 AND 600: got %d records, want 4", len(mid))
	}
}

func TestSearchTextLike(t *testing.T) {
	m, _ := builtTestManager(t)
	rows, err := m.SearchText("cuisines", "%pizza%", "LIKE")
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(rows) != 1 || rows[0].RestaurantID != 7400001 {
		t.Fatalf("LIKE %%pizza%% matched %d rows", len(rows))
	}
	// normalisation applies to both sides
	rows, err = m.SearchText("name", "LE PETIT SOUFFLE", "=")
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("case-insensitive exact match failed")
	}
}

func TestSearchNearSortedWithinRadius(t *testing.T) {
	m, _ := builtTestManager(t)
	pts, err := m.SearchNear(121.0275, 14.56, 3)
	if err != nil {
		t.Fatalf("SearchNear: %v", err)
	}
	if len(pts) == 0 {
		t.Fatalf("expected nearby restaurants")
	}
	for i, pt := range pts {
		if pt.Distance > 3 {
			t.Fatalf("result %d beyond radius: %f km", i, pt.Distance)
		}
		if i > 0 && pts[i-1].Distance > pt.Distance {
			t.Fatalf("results not sorted by distance")
		}
	}
	for _, pt := range pts {
		if pt.Record.City == "Lima" {
			t.Fatalf("Lima is not within 3 km of Makati")
		}
	}
}

func TestRebuildAfterChurnKeepsRecordSet(t *testing.T) {
	m, recs := builtTestManager(t)
	extra := catalog.Record{RestaurantID: 8800123, Name: "Churn Cafe", City: "Lima", Longitude: -77.02, Latitude: -12.11}
	if err := m.InsertRecord(extra); err != nil {
		t.Fatalf("insert: %v", err)
	}
	id := recs[4].RestaurantID
	if _, err := m.Delete("", "", &id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := m.Rebuild(nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	all, err := m.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(all) != len(recs) { // -1 deleted, +1 inserted
		t.Fatalf("record count after rebuild: got %d, want %d", len(all), len(recs))
	}
	if _, ok, _ := m.SearchByID(extra.RestaurantID); !ok {
		t.Fatalf("inserted record lost by rebuild")
	}
	if _, ok, _ := m.SearchByID(id); ok {
		t.Fatalf("deleted record resurrected by rebuild")
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")
	csv := `Restaurant ID,Restaurant Name,Country Code,City,Address,Cuisines,Average Cost for two,Currency,Has Table booking,Has Online delivery,Is delivering now,Price range,Aggregate rating,Rating text,Votes,Longitude,Latitude
6317637,Le Petit Souffle,162,Makati City,"Third Floor, Century City Mall","French, Japanese",1100,Botswana Pula(P),Yes,No,No,3,4.8,Excellent,314,121.027535,14.565443
6304287,Izakaya Kikufuji,162,Makati City,"Little Tokyo",Japanese,1200,Botswana Pula(P),Yes,No,No,3,4.5,Excellent,591,121.014101,14.553708
`
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	recs, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	r := recs[0]
	if r.RestaurantID != 6317637 || r.Name != "Le Petit Souffle" || !r.HasTableBooking || r.AggregateRating != 4.8 {
		t.Fatalf("first record mis-parsed: %+v", r)
	}

	// malformed row is a SchemaError
	bad := filepath.Join(dir, "bad.csv")
	os.WriteFile(bad, []byte("Restaurant ID,Votes\nnot_a_number,5\n"), 0o644)
	if _, err := LoadCSV(bad); !errors.Is(err, dberrors.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}
