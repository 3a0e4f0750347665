package planner

import (
	"strings"
	"testing"

	"ridgedb/internal/catalog"
	"ridgedb/internal/logging"
	"ridgedb/internal/manager"
	"ridgedb/internal/sql"
)

func testRecords() []catalog.Record {
	return []catalog.Record{
		{
			RestaurantID: 6317637, Name: "Le Petit Souffle", City: "Makati City",
			Cuisines: "French, Japanese", AvgCostForTwo: 1100, Currency: "Botswana Pula(P)",
			PriceRange: 3, AggregateRating: 4.8, RatingText: "Excellent", Votes: 314,
			Longitude: 121.027535, Latitude: 14.565443,
		},
		{
			RestaurantID: 6304287, Name: "Izakaya Kikufuji", City: "Makati City",
			Cuisines: "Japanese", AvgCostForTwo: 1200, Currency: "Botswana Pula(P)",
			PriceRange: 3, AggregateRating: 3.8, RatingText: "Good", Votes: 591,
			Longitude: 121.014101, Latitude: 14.553708,
		},
		{
			RestaurantID: 7402935, Name: "Cafe Andino", City: "Lima",
			Cuisines: "Peruvian", AvgCostForTwo: 120, Currency: "PEN",
			PriceRange: 2, AggregateRating: 4.2, RatingText: "Very Good", Votes: 98,
			Longitude: -77.03, Latitude: -12.12,
		},
	}
}

func testPlanner(t *testing.T) *Planner {
	t.Helper()
	m, err := manager.Open(manager.Config{BaseDir: t.TempDir(), Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("manager.Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	if err := m.Build(testRecords(), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return New(m, logging.Discard())
}

func mustParseSelect(t *testing.T, q string) *sql.SelectStmt {
	t.Helper()
	stmt, err := sql.Parse(q)
	if err != nil {
		t.Fatalf("Parse(%q): %v", q, err)
	}
	sel, ok := stmt.(*sql.SelectStmt)
	if !ok {
		t.Fatalf("expected SELECT, got %T", stmt)
	}
	return sel
}

func rowIDs(rows []map[string]any) []uint32 {
	var out []uint32
	for _, row := range rows {
		if id, ok := rowID(row); ok {
			out = append(out, id)
		}
	}
	return out
}

func TestPointQueryByID(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE restaurant_id = 6317637`))
	if res.Status != "ok" {
		t.Fatalf("status=%s message=%s", res.Status, res.Message)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rows))
	}
	if res.Rows[0]["name"] != "Le Petit Souffle" || res.Rows[0]["city"] != "Makati City" {
		t.Fatalf("wrong row: %v", res.Rows[0])
	}
}

func TestRangeOnIDAscending(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE restaurant_id BETWEEN 6300000 AND 6320000`))
	if res.Status != "ok" {
		t.Fatalf("status=%s message=%s", res.Status, res.Message)
	}
	ids := rowIDs(res.Rows)
	if len(ids) != 2 {
		t.Fatalf("got ids %v, want two in-range ids", ids)
	}
	if ids[0] != 6304287 || ids[1] != 6317637 {
		t.Fatalf("ids not ascending in range: %v", ids)
	}
	if res.Index != "BTREE" {
		t.Fatalf("index used = %q, want BTREE", res.Index)
	}
}

func TestForcedIndexMismatchIsErrorEnvelope(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r USING HASH WHERE city = 'Makati City'`))
	if res.Status != "error" {
		t.Fatalf("expected error envelope, got status=%s", res.Status)
	}
	if len(res.Rows) != 0 {
		t.Fatalf("error envelope must carry no rows")
	}
	if !strings.Contains(res.Message, "HASH") {
		t.Fatalf("message should name the rejected index: %q", res.Message)
	}
}

func TestForcedIndexMatchRuns(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r USING HASH WHERE restaurant_id = 7402935`))
	if res.Status != "ok" {
		t.Fatalf("status=%s message=%s", res.Status, res.Message)
	}
	if len(res.Rows) != 1 || res.Index != "HASH" {
		t.Fatalf("rows=%d index=%s", len(res.Rows), res.Index)
	}
}

func TestSpatialRangeSortedByDistance(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE coords IN (POINT [121.0275, 14.56], RADIUS 3)`))
	if res.Status != "ok" {
		t.Fatalf("status=%s message=%s", res.Status, res.Message)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected the two Makati rows, got %d", len(res.Rows))
	}
	prev := -1.0
	for _, row := range res.Rows {
		d, ok := row["distance_km"].(float64)
		if !ok {
			t.Fatalf("row missing distance_km")
		}
		if d > 3 {
			t.Fatalf("row beyond radius: %f", d)
		}
		if d < prev {
			t.Fatalf("rows not ascending by distance")
		}
		prev = d
	}
}

func TestCompoundANDIntersectsByID(t *testing.T) {
	p := testPlanner(t)
	left := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE city = 'Makati City'`))
	right := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE rating > 4.0`))
	both := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE city = 'Makati City' AND rating > 4.0`))
	if both.Status != "ok" {
		t.Fatalf("status=%s message=%s", both.Status, both.Message)
	}

	inLeft := map[uint32]bool{}
	for _, id := range rowIDs(left.Rows) {
		inLeft[id] = true
	}
	inRight := map[uint32]bool{}
	for _, id := range rowIDs(right.Rows) {
		inRight[id] = true
	}
	seen := map[uint32]bool{}
	for _, id := range rowIDs(both.Rows) {
		if !inLeft[id] || !inRight[id] {
			t.Fatalf("id %d in AND result but not in both sides", id)
		}
		if seen[id] {
			t.Fatalf("id %d appears twice", id)
		}
		seen[id] = true
	}
	if len(both.Rows) != 1 || rowIDs(both.Rows)[0] != 6317637 {
		t.Fatalf("AND result = %v, want just 6317637", rowIDs(both.Rows))
	}
}

func TestCompoundORUnionsByID(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE city = 'Lima' OR votes > 500`))
	if res.Status != "ok" {
		t.Fatalf("status=%s message=%s", res.Status, res.Message)
	}
	ids := rowIDs(res.Rows)
	if len(ids) != 2 {
		t.Fatalf("got %v, want Lima row and high-votes row", ids)
	}
}

func TestProjectionSubsetAndUnknownColumnsDropped(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT name, nonexistent, votes FROM r WHERE restaurant_id = 7402935`))
	if res.Status != "ok" {
		t.Fatalf("status=%s message=%s", res.Status, res.Message)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "name" || res.Columns[1] != "votes" {
		t.Fatalf("columns = %v", res.Columns)
	}
	row := res.Rows[0]
	if len(row) != 2 || row["name"] != "Cafe Andino" {
		t.Fatalf("projected row = %v", row)
	}
}

func TestFullScanWithoutWhere(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r`))
	if res.Status != "ok" || len(res.Rows) != 3 {
		t.Fatalf("full scan: status=%s rows=%d", res.Status, len(res.Rows))
	}
}

func TestLikeRoutesToISAM(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE cuisines LIKE '%japanese%'`))
	if res.Status != "ok" {
		t.Fatalf("status=%s message=%s", res.Status, res.Message)
	}
	if len(res.Rows) != 2 || res.Index != "ISAM" {
		t.Fatalf("rows=%d index=%s", len(res.Rows), res.Index)
	}
}

func TestExplainDoesNotExecute(t *testing.T) {
	p := testPlanner(t)
	stmt, err := sql.Parse(`EXPLAIN SELECT * FROM r WHERE votes > 100`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := p.Explain(stmt.(*sql.ExplainStmt))
	if ex.IndexUsed != "AVL" {
		t.Fatalf("index_used = %q, want AVL", ex.IndexUsed)
	}
	if ex.Rows != 0 || ex.EstimatedCost != 0 || ex.ExecutionTimeMS != 0 {
		t.Fatalf("plain EXPLAIN must leave rows/cost/timing zero: %+v", ex)
	}
	if !strings.Contains(ex.Filter, "votes > 100") {
		t.Fatalf("filter = %q", ex.Filter)
	}
}

func TestExplainAnalyzeFillsRowsAndCost(t *testing.T) {
	p := testPlanner(t)
	stmt, err := sql.Parse(`EXPLAIN ANALYZE SELECT * FROM r WHERE votes > 100`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex := p.Explain(stmt.(*sql.ExplainStmt))
	if ex.Rows != 2 {
		t.Fatalf("rows = %d, want 2", ex.Rows)
	}
	if ex.EstimatedCost <= 0 {
		t.Fatalf("cost should be positive under ANALYZE, got %f", ex.EstimatedCost)
	}
}

func TestUnsupportedPredicateIsPlanErrorEnvelope(t *testing.T) {
	p := testPlanner(t)
	res := p.Select(mustParseSelect(t, `SELECT * FROM r WHERE has_table_booking = true`))
	if res.Status != "error" {
		t.Fatalf("expected error envelope for unroutable predicate, got %s", res.Status)
	}
}
