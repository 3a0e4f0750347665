package manager

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ridgedb/internal/catalog"
	"ridgedb/internal/dberrors"
)

// LoadCSV reads the source dataset: the first row is a header whose column
// names are mapped to internal attribute names through the catalog's field
// mapping; each subsequent row becomes one Record. A malformed row is a
// SchemaError naming the line.
func LoadCSV(path string) ([]catalog.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manager: open csv %s: %w", path, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1 // validated per row against the header below

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("manager: read csv header: %w: %v", dberrors.ErrSchema, err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = catalog.NormalizeFieldName(strings.TrimSpace(h))
	}

	var records []catalog.Record
	line := 1
	for {
		row, err := rd.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("manager: csv line %d: %w: %v", line, dberrors.ErrSchema, err)
		}
		if len(row) != len(cols) {
			return nil, fmt.Errorf("manager: csv line %d has %d fields, header has %d: %w",
				line, len(row), len(cols), dberrors.ErrSchema)
		}
		fields := make(map[string]any, len(cols))
		for i, raw := range row {
			v, err := csvFieldValue(cols[i], raw)
			if err != nil {
				return nil, fmt.Errorf("manager: csv line %d column %q: %w", line, cols[i], err)
			}
			fields[cols[i]] = v
		}
		records = append(records, catalog.RecordFromRawFields(fields))
	}
	return records, nil
}

// csvFieldValue converts one raw CSV cell into the typed value the record
// field expects. Unknown columns pass through as strings and are dropped by
// RecordFromRawFields.
func csvFieldValue(attr, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch attr {
	case "restaurant_id":
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", raw, dberrors.ErrSchema)
		}
		return uint32(n), nil
	case "country_code":
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad country code %q: %w", raw, dberrors.ErrSchema)
		}
		return uint16(n), nil
	case "avg_cost_for_two", "price_range", "votes":
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", raw, dberrors.ErrSchema)
		}
		return int32(n), nil
	case "aggregate_rating", "longitude", "latitude":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", raw, dberrors.ErrSchema)
		}
		return f, nil
	case "has_table_booking", "has_online_delivery", "is_delivering_now":
		return parseCSVBool(raw), nil
	default:
		return raw, nil
	}
}

// parseCSVBool accepts the dataset's Yes/No vocabulary plus the usual
// true/false/1/0 spellings. Anything else reads as false.
func parseCSVBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}
