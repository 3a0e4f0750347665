package sql

import (
	"testing"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE restaurants FROM FILE "data/zomato.csv" USING ISAM, HASH;`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ct, ok := stmt.(*CreateTableStmt)
	if !ok {
		t.Fatalf("expected *CreateTableStmt, got %T", stmt)
	}
	if ct.TableName != "restaurants" {
		t.Errorf("table name = %q", ct.TableName)
	}
	if ct.FilePath != "data/zomato.csv" {
		t.Errorf("file path = %q", ct.FilePath)
	}
	if len(ct.Using) != 2 || ct.Using[0] != IndexISAM || ct.Using[1] != IndexHash {
		t.Errorf("using = %v", ct.Using)
	}
}

func TestParseCreateTableUsingAll(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE r FROM FILE "r.csv" USING ALL`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ct := stmt.(*CreateTableStmt)
	if ct.Using != nil {
		t.Errorf("USING ALL should yield nil list, got %v", ct.Using)
	}
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse(`INSERT INTO r VALUES (9999991, 'Cafe, Andino', 'Lima', 89, 'Av. Larco 123', 'Peruvian', 120, 'PEN', true, false, false, 2, 4.5, 'Excellent', 312, -77.03, -12.12);`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ins := stmt.(*InsertStmt)
	if ins.TableName != "r" {
		t.Errorf("table name = %q", ins.TableName)
	}
	if len(ins.Values) != 17 {
		t.Fatalf("expected 17 values, got %d", len(ins.Values))
	}
	// the comma inside the quoted name must not split the literal
	if s, _ := ins.Values[1].Text(); s != "Cafe, Andino" {
		t.Errorf("name literal = %q", s)
	}
	if b := ins.Values[8]; b.Type != TypeBool || !b.B {
		t.Errorf("has_table_booking literal = %+v", b)
	}
}

func TestParseSelectWithHintAndWhere(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM r USING HASH WHERE restaurant_id = 6317637`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*SelectStmt)
	if sel.Using == nil || *sel.Using != IndexHash {
		t.Fatalf("expected HASH hint, got %v", sel.Using)
	}
	cmp, ok := sel.Where.(*Comparison)
	if !ok {
		t.Fatalf("expected *Comparison, got %T", sel.Where)
	}
	if cmp.Attr != "restaurant_id" || cmp.Op != "=" || cmp.Value.I64 != 6317637 {
		t.Errorf("comparison = %+v", cmp)
	}
}

func TestParseSelectProjection(t *testing.T) {
	stmt, err := Parse(`SELECT Name, City FROM r WHERE votes >= 100`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*SelectStmt)
	if len(sel.Columns) != 2 || sel.Columns[0] != "name" || sel.Columns[1] != "city" {
		t.Errorf("columns = %v", sel.Columns)
	}
}

func TestParsePredicatePrecedence(t *testing.T) {
	// AND binds tighter than OR: a OR b AND c == a OR (b AND c)
	pred, err := ParsePredicate(`city = 'Lima' OR rating > 4.0 AND votes > 100`)
	if err != nil {
		t.Fatalf("ParsePredicate: %v", err)
	}
	or, ok := pred.(*Or)
	if !ok {
		t.Fatalf("expected top-level *Or, got %T", pred)
	}
	if _, ok := or.Left.(*Comparison); !ok {
		t.Errorf("left of OR should be a comparison, got %T", or.Left)
	}
	if _, ok := or.Right.(*And); !ok {
		t.Errorf("right of OR should be an AND, got %T", or.Right)
	}
}

func TestParsePredicateParens(t *testing.T) {
	pred, err := ParsePredicate(`(city = 'Lima' OR city = 'Cusco') AND rating > 4.0`)
	if err != nil {
		t.Fatalf("ParsePredicate: %v", err)
	}
	and, ok := pred.(*And)
	if !ok {
		t.Fatalf("expected top-level *And, got %T", pred)
	}
	if _, ok := and.Left.(*Or); !ok {
		t.Errorf("left of AND should be the parenthesised OR, got %T", and.Left)
	}
}

func TestParsePredicateBetween(t *testing.T) {
	pred, err := ParsePredicate(`restaurant_id BETWEEN 6300000 AND 6320000`)
	if err != nil {
		t.Fatalf("ParsePredicate: %v", err)
	}
	bt, ok := pred.(*Between)
	if !ok {
		t.Fatalf("expected *Between, got %T", pred)
	}
	if bt.Lo.I64 != 6300000 || bt.Hi.I64 != 6320000 {
		t.Errorf("bounds = %+v", bt)
	}
}

func TestParsePredicateBetweenInsideAnd(t *testing.T) {
	// The BETWEEN's own AND must not be eaten by the conjunction loop.
	pred, err := ParsePredicate(`votes BETWEEN 10 AND 20 AND city = 'Lima'`)
	if err != nil {
		t.Fatalf("ParsePredicate: %v", err)
	}
	and, ok := pred.(*And)
	if !ok {
		t.Fatalf("expected *And, got %T", pred)
	}
	if _, ok := and.Left.(*Between); !ok {
		t.Errorf("left should be *Between, got %T", and.Left)
	}
}

func TestParsePredicateSpatial(t *testing.T) {
	pred, err := ParsePredicate(`coords IN (POINT [121.0275, 14.56], RADIUS 3)`)
	if err != nil {
		t.Fatalf("ParsePredicate: %v", err)
	}
	sp, ok := pred.(*SpatialWithin)
	if !ok {
		t.Fatalf("expected *SpatialWithin, got %T", pred)
	}
	if sp.X != 121.0275 || sp.Y != 14.56 || sp.RadiusKM != 3 {
		t.Errorf("spatial = %+v", sp)
	}
}

func TestParsePredicateLike(t *testing.T) {
	pred, err := ParsePredicate(`cuisines LIKE '%pizza%'`)
	if err != nil {
		t.Fatalf("ParsePredicate: %v", err)
	}
	lk, ok := pred.(*Like)
	if !ok {
		t.Fatalf("expected *Like, got %T", pred)
	}
	if lk.Attr != "cuisines" || lk.Pattern != "%pizza%" {
		t.Errorf("like = %+v", lk)
	}
}

func TestParseDeleteRequiresWhere(t *testing.T) {
	if _, err := Parse(`DELETE FROM r`); err == nil {
		t.Fatal("expected error for DELETE without WHERE")
	}
	stmt, err := Parse(`DELETE FROM r WHERE name = 'Cafe Andino' AND city = 'Lima'`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := stmt.(*DeleteStmt); !ok {
		t.Fatalf("expected *DeleteStmt, got %T", stmt)
	}
}

func TestParseExplain(t *testing.T) {
	stmt, err := Parse(`EXPLAIN ANALYZE SELECT * FROM r WHERE votes > 100`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ex, ok := stmt.(*ExplainStmt)
	if !ok {
		t.Fatalf("expected *ExplainStmt, got %T", stmt)
	}
	if !ex.Analyze {
		t.Error("expected Analyze to be set")
	}
	if ex.Select == nil || ex.Select.TableName != "r" {
		t.Errorf("inner select = %+v", ex.Select)
	}

	stmt, err = Parse(`EXPLAIN SELECT * FROM r`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if stmt.(*ExplainStmt).Analyze {
		t.Error("plain EXPLAIN must not set Analyze")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, q := range []string{
		"",
		"DROP TABLE r",
		"SELECT FROM r",
		"SELECT * FROM",
		`CREATE TABLE r FROM FILE missing_quotes.csv`,
		`SELECT * FROM r WHERE`,
		`SELECT * FROM r WHERE name ~ 'x'`,
	} {
		if _, err := Parse(q); err == nil {
			t.Errorf("expected parse error for %q", q)
		}
	}
}
