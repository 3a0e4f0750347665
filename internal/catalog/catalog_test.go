package catalog

import "testing"

func TestNormalizeStripsCaseAccentsAndMarks(t *testing.T) {
	got := Normalize("Café LE PETIT Soufflé")
	want := "cafe le petit souffle"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestIsamKeyOrderingIsBytewise(t *testing.T) {
	a := MakeIsamKey("alpha", "city", 1)
	b := MakeIsamKey("beta", "city", 1)
	if !a.Less(b) {
		t.Fatalf("expected %q < %q", a, b)
	}
	if a.Compare(b) >= 0 {
		t.Fatalf("Compare should be negative for a < b")
	}
}

func TestIsamKeyPrefixOrdering(t *testing.T) {
	short := MakeIsamKey("ab", "city", 1)
	long := MakeIsamKey("abc", "city", 1)
	if !short.Less(long) {
		t.Fatalf("NUL-padded shorter name should sort before longer name with same prefix")
	}
}

func TestIsamKeySentinelSortsHigh(t *testing.T) {
	withID := MakeIsamKey("same", "city", 42)
	sentinel := MakeIsamKey("same", "city", SentinelID)
	if !withID.Less(sentinel) {
		t.Fatalf("sentinel key should sort after any real id sharing (name, city)")
	}
}

func TestIsamKeyRoundTripBytes(t *testing.T) {
	k := MakeIsamKey("Le Petit Soufflé", "Makati City", 6317637)
	back, err := IsamKeyFromBytes(k.Bytes())
	if err != nil {
		t.Fatalf("IsamKeyFromBytes: %v", err)
	}
	if back != k {
		t.Fatalf("round trip mismatch")
	}
}

func TestNormalizeFieldName(t *testing.T) {
	if got := NormalizeFieldName("Average Cost for two"); got != "avg_cost_for_two" {
		t.Fatalf("NormalizeFieldName mapping failed, got %q", got)
	}
	if got := NormalizeFieldName("restaurant_id"); got != "restaurant_id" {
		t.Fatalf("NormalizeFieldName passthrough failed, got %q", got)
	}
}
