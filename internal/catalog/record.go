// Package catalog defines the restaurant Record row type shared by every
// index engine, the text-normalisation rule they all must agree on, and the
// field-name mapping used when ingesting raw CSV/INSERT dictionaries.
package catalog

import "fmt"

// Record is one restaurant row. Records are
// created during build/insert and never mutated in place — updates are
// delete+insert, enforced by the manager, not by this type.
type Record struct {
	RestaurantID      uint32
	Name              string // ≤64 bytes after Normalize truncation in IsamKey
	City              string // ≤48 bytes after Normalize truncation in IsamKey
	CountryCode       uint16
	Address           string
	Cuisines          string
	AvgCostForTwo     int32
	Currency          string
	HasTableBooking   bool
	HasOnlineDelivery bool
	IsDeliveringNow   bool
	PriceRange        int32
	AggregateRating   float64
	RatingText        string
	Votes             int32
	Longitude         float64
	Latitude          float64
}

// fieldMapping translates the external CSV/INSERT vocabulary (as shipped by
// the original dataset) into the internal attribute names above.
var fieldMapping = map[string]string{
	"Restaurant ID":        "restaurant_id",
	"Restaurant Name":      "name",
	"Country Code":         "country_code",
	"City":                 "city",
	"Address":              "address",
	"Cuisines":             "cuisines",
	"Average Cost for two": "avg_cost_for_two",
	"Currency":             "currency",
	"Has Table booking":    "has_table_booking",
	"Has Online delivery":  "has_online_delivery",
	"Is delivering now":    "is_delivering_now",
	"Price range":          "price_range",
	"Aggregate rating":     "aggregate_rating",
	"Rating text":          "rating_text",
	"Votes":                "votes",
	"Longitude":            "longitude",
	"Latitude":             "latitude",
}

// NormalizeFieldName maps an external column name to ridgedb's internal
// attribute name. A name that isn't in the known mapping is returned
// unchanged (so already-internal names like "restaurant_id" pass through).
func NormalizeFieldName(external string) string {
	if internal, ok := fieldMapping[external]; ok {
		return internal
	}
	return external
}

// RawFields returns a dict-like view of the record keyed by internal
// attribute name, used by places that need uniform map access (insert
// fan-out, EXPLAIN row shaping).
func (r Record) RawFields() map[string]any {
	return map[string]any{
		"restaurant_id":        r.RestaurantID,
		"name":                 r.Name,
		"city":                 r.City,
		"country_code":         r.CountryCode,
		"address":              r.Address,
		"cuisines":             r.Cuisines,
		"avg_cost_for_two":     r.AvgCostForTwo,
		"currency":             r.Currency,
		"has_table_booking":    r.HasTableBooking,
		"has_online_delivery":  r.HasOnlineDelivery,
		"is_delivering_now":    r.IsDeliveringNow,
		"price_range":          r.PriceRange,
		"aggregate_rating":     r.AggregateRating,
		"rating_text":          r.RatingText,
		"votes":                r.Votes,
		"longitude":            r.Longitude,
		"latitude":             r.Latitude,
	}
}

func (r Record) String() string {
	return fmt.Sprintf("Record{id=%d name=%q city=%q}", r.RestaurantID, r.Name, r.City)
}

func asUint32(v any) uint32 {
	switch n := v.(type) {
	case uint32:
		return n
	case int32:
		return uint32(n)
	case int:
		return uint32(n)
	case float64:
		return uint32(n)
	default:
		return 0
	}
}

func asInt32(v any) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case uint32:
		return int32(n)
	case int:
		return int32(n)
	case float64:
		return int32(n)
	default:
		return 0
	}
}

func asUint16(v any) uint16 {
	switch n := v.(type) {
	case uint16:
		return n
	case int:
		return uint16(n)
	case float64:
		return uint16(n)
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// RecordFromRawFields rebuilds a Record from the map shape RawFields
// produces. It tolerates values that round-tripped through JSON (so
// numbers may arrive as float64 rather than their original Go type) —
// needed by the R-Tree engine, whose sidecar metadata persists payloads as
// JSON.
func RecordFromRawFields(m map[string]any) Record {
	return Record{
		RestaurantID:      asUint32(m["restaurant_id"]),
		Name:              asString(m["name"]),
		City:              asString(m["city"]),
		CountryCode:       asUint16(m["country_code"]),
		Address:           asString(m["address"]),
		Cuisines:          asString(m["cuisines"]),
		AvgCostForTwo:     asInt32(m["avg_cost_for_two"]),
		Currency:          asString(m["currency"]),
		HasTableBooking:   asBool(m["has_table_booking"]),
		HasOnlineDelivery: asBool(m["has_online_delivery"]),
		IsDeliveringNow:   asBool(m["is_delivering_now"]),
		PriceRange:        asInt32(m["price_range"]),
		AggregateRating:   asFloat64(m["aggregate_rating"]),
		RatingText:        asString(m["rating_text"]),
		Votes:             asInt32(m["votes"]),
		Longitude:         asFloat64(m["longitude"]),
		Latitude:          asFloat64(m["latitude"]),
	}
}
