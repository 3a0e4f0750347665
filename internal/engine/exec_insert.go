package engine

import (
	"errors"
	"fmt"

	"ridgedb/internal/dberrors"
	"ridgedb/internal/planner"
	"ridgedb/internal/sql"
)

// insertFields lists the record attributes in the positional order INSERT
// VALUES must supply them.
var insertFields = []string{
	"restaurant_id", "name", "city", "country_code", "address", "cuisines",
	"avg_cost_for_two", "currency", "has_table_booking", "has_online_delivery",
	"is_delivering_now", "price_range", "aggregate_rating", "rating_text",
	"votes", "longitude", "latitude",
}

func (e *DBEngine) executeInsert(s *sql.InsertStmt) (*planner.Result, error) {
	t, err := e.table(s.TableName)
	if err != nil {
		return nil, err
	}

	fields, err := valuesToFields(s.Values)
	if err != nil {
		return statusError(err), nil
	}

	if err := t.mgr.InsertFull(fields); err != nil {
		if errors.Is(err, dberrors.ErrDuplicateID) || errors.Is(err, dberrors.ErrSchema) {
			return statusError(err), nil
		}
		return nil, err
	}
	return statusOK(fmt.Sprintf("inserted 1 record into %s", s.TableName)), nil
}

// valuesToFields maps positional VALUES literals onto attribute names,
// validating count and type against the record schema.
func valuesToFields(values []sql.Value) (map[string]any, error) {
	if len(values) != len(insertFields) {
		return nil, fmt.Errorf("engine: INSERT needs %d values, got %d: %w",
			len(insertFields), len(values), dberrors.ErrSchema)
	}
	fields := make(map[string]any, len(values))
	for i, v := range values {
		attr := insertFields[i]
		typed, err := literalForAttr(attr, v)
		if err != nil {
			return nil, err
		}
		fields[attr] = typed
	}
	return fields, nil
}

func literalForAttr(attr string, v sql.Value) (any, error) {
	mismatch := func(want string) error {
		return fmt.Errorf("engine: %s expects %s: %w", attr, want, dberrors.ErrSchema)
	}
	switch attr {
	case "restaurant_id":
		n, ok := v.Int()
		if !ok || n < 0 {
			return nil, mismatch("a non-negative integer")
		}
		return uint32(n), nil
	case "country_code":
		n, ok := v.Int()
		if !ok || n < 0 {
			return nil, mismatch("a non-negative integer")
		}
		return uint16(n), nil
	case "avg_cost_for_two", "price_range", "votes":
		n, ok := v.Int()
		if !ok {
			return nil, mismatch("an integer")
		}
		return int(n), nil
	case "aggregate_rating", "longitude", "latitude":
		f, ok := v.Float()
		if !ok {
			return nil, mismatch("a number")
		}
		return f, nil
	case "has_table_booking", "has_online_delivery", "is_delivering_now":
		if v.Type != sql.TypeBool {
			return nil, mismatch("true or false")
		}
		return v.B, nil
	default: // text attributes
		s, ok := v.Text()
		if !ok {
			return nil, mismatch("a string")
		}
		return s, nil
	}
}
