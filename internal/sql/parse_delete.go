package sql

import (
	"fmt"
	"strings"
)

// parseDelete parses:
//
//	DELETE FROM restaurants WHERE pred;
//
// A WHERE clause is required — an unfiltered DELETE would wipe the table,
// and rebuild-from-empty is what CREATE TABLE is for.
func parseDelete(query string) (Statement, error) {
	q := strings.TrimSpace(query)
	rest := strings.TrimSpace(q[len("DELETE"):])

	upperRest := strings.ToUpper(rest)
	if !strings.HasPrefix(upperRest, "FROM") {
		return nil, fmt.Errorf("DELETE: expected FROM after DELETE")
	}
	afterFrom := strings.TrimSpace(rest[len("FROM"):])
	if afterFrom == "" {
		return nil, fmt.Errorf("DELETE: missing table name")
	}

	idxWhere := indexOfKeyword(afterFrom, "WHERE")
	if idxWhere == -1 {
		return nil, fmt.Errorf("DELETE: WHERE clause required")
	}

	tableName := strings.TrimSpace(afterFrom[:idxWhere])
	if tableName == "" || len(strings.Fields(tableName)) != 1 {
		return nil, fmt.Errorf("DELETE: invalid table name %q", tableName)
	}

	wherePart := strings.TrimSpace(afterFrom[idxWhere+len("WHERE"):])
	if wherePart == "" {
		return nil, fmt.Errorf("DELETE: empty WHERE clause")
	}
	pred, err := ParsePredicate(wherePart)
	if err != nil {
		return nil, err
	}

	return &DeleteStmt{
		TableName: tableName,
		Where:     pred,
	}, nil
}
