package sql

import (
	"fmt"
	"strings"
)

// parseInsert parses an INSERT INTO ... VALUES (...) statement.
// Example supported syntax:
//
//	INSERT INTO restaurants VALUES (9999991, 'Cafe Andino', 'Lima', ...);
//
// Values must appear in record field order; the engine validates count and
// types against the schema.
func parseInsert(query string) (Statement, error) {
	// At this point:
	// - query is trimmed
	// - trailing ';' removed

	upper := strings.ToUpper(query)

	idxInto := strings.Index(upper, "INTO")
	if idxInto == -1 {
		return nil, fmt.Errorf("INSERT: missing INTO")
	}

	afterInto := strings.TrimSpace(query[idxInto+len("INTO"):])

	idxValues := indexOfKeyword(afterInto, "VALUES")
	if idxValues == -1 {
		return nil, fmt.Errorf("INSERT: missing VALUES")
	}

	tableName := strings.TrimSpace(afterInto[:idxValues])
	if tableName == "" {
		return nil, fmt.Errorf("INSERT: missing table name")
	}

	rest := strings.TrimSpace(afterInto[idxValues+len("VALUES"):])
	if !strings.HasPrefix(rest, "(") {
		return nil, fmt.Errorf("INSERT: expected '(' after VALUES")
	}
	closeIdx := strings.LastIndex(rest, ")")
	if closeIdx == -1 {
		return nil, fmt.Errorf("INSERT: missing closing ')'")
	}

	valuesPart := strings.TrimSpace(rest[1:closeIdx])
	if valuesPart == "" {
		return nil, fmt.Errorf("INSERT: empty VALUES list")
	}

	rawVals, err := splitValuesList(valuesPart)
	if err != nil {
		return nil, err
	}

	vals := make([]Value, 0, len(rawVals))
	for _, rv := range rawVals {
		v, err := parseLiteral(rv)
		if err != nil {
			return nil, fmt.Errorf("INSERT: invalid literal %q: %w", rv, err)
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("INSERT: no valid values")
	}

	return &InsertStmt{
		TableName: tableName,
		Values:    vals,
	}, nil
}

// splitValuesList splits a VALUES body on commas while respecting quoted
// strings, so 'Cafe, Bar & Grill' stays one literal.
func splitValuesList(s string) ([]string, error) {
	var out []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			cur.WriteByte(c)
		case ',':
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("INSERT: unterminated string literal")
	}
	if last := strings.TrimSpace(cur.String()); last != "" {
		out = append(out, last)
	}
	return out, nil
}
