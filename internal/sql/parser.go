package sql

import (
	"fmt"
	"strings"
)

// Parse parses a single SQL statement string into an AST Statement.
//
// Supported statements:
//
//	CREATE TABLE name FROM FILE "path" [USING idx{, idx}]
//	INSERT INTO name VALUES (literal, ...)
//	DELETE FROM name WHERE pred
//	SELECT cols FROM name [USING idx] [WHERE pred]
//	EXPLAIN [ANALYZE] select
func Parse(query string) (Statement, error) {
	// Trim leading & trailing whitespace
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty query")
	}

	// Remove trailing semicolon if present
	if strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(q[:len(q)-1])
	}

	tokens := strings.Fields(strings.ToUpper(q))
	if len(tokens) < 2 {
		return nil, fmt.Errorf("invalid SQL statement")
	}

	switch tokens[0] {
	case "CREATE":
		if tokens[1] == "TABLE" {
			return parseCreateTable(q)
		}
	case "INSERT":
		if tokens[1] == "INTO" {
			return parseInsert(q)
		}
	case "DELETE":
		if tokens[1] == "FROM" {
			return parseDelete(q)
		}
	case "SELECT":
		return parseSelect(q)
	case "EXPLAIN":
		return parseExplain(q)
	}

	return nil, fmt.Errorf("unsupported statement %q", tokens[0])
}

// parseExplain parses EXPLAIN [ANALYZE] <select>.
func parseExplain(q string) (Statement, error) {
	rest := strings.TrimSpace(q[len("EXPLAIN"):])
	analyze := false
	if upperRest := strings.ToUpper(rest); strings.HasPrefix(upperRest, "ANALYZE") {
		analyze = true
		rest = strings.TrimSpace(rest[len("ANALYZE"):])
	}
	if rest == "" {
		return nil, fmt.Errorf("EXPLAIN: missing SELECT statement")
	}
	inner, err := parseSelect(rest)
	if err != nil {
		return nil, err
	}
	sel, ok := inner.(*SelectStmt)
	if !ok {
		return nil, fmt.Errorf("EXPLAIN: only SELECT statements can be explained")
	}
	return &ExplainStmt{Analyze: analyze, Select: sel}, nil
}
