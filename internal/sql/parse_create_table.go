package sql

import (
	"fmt"
	"strings"
)

// parseCreateTable parses:
//
//	CREATE TABLE restaurants FROM FILE "data/zomato.csv"
//	CREATE TABLE restaurants FROM FILE "data/zomato.csv" USING ISAM, HASH
//	CREATE TABLE restaurants FROM FILE "data/zomato.csv" USING ALL
func parseCreateTable(query string) (Statement, error) {
	// At this point:
	// - query has been trimmed
	// - trailing ';' removed
	// - we already know it starts with CREATE TABLE

	rest := strings.TrimSpace(query[len("CREATE"):])
	rest = strings.TrimSpace(rest[len("TABLE"):])
	if rest == "" {
		return nil, fmt.Errorf("CREATE TABLE: missing table name")
	}

	idxFrom := indexOfKeyword(rest, "FROM")
	if idxFrom == -1 {
		return nil, fmt.Errorf("CREATE TABLE: missing FROM FILE clause")
	}

	tableName := strings.TrimSpace(rest[:idxFrom])
	if tableName == "" || len(strings.Fields(tableName)) != 1 {
		return nil, fmt.Errorf("CREATE TABLE: invalid table name %q", tableName)
	}

	afterFrom := strings.TrimSpace(rest[idxFrom+len("FROM"):])
	upperAfter := strings.ToUpper(afterFrom)
	if !strings.HasPrefix(upperAfter, "FILE") {
		return nil, fmt.Errorf("CREATE TABLE: expected FILE after FROM")
	}
	afterFile := strings.TrimSpace(afterFrom[len("FILE"):])
	if afterFile == "" {
		return nil, fmt.Errorf("CREATE TABLE: missing file path")
	}

	// The path is a quoted string; everything after it is an optional
	// USING clause.
	quote := afterFile[0]
	if quote != '"' && quote != '\'' {
		return nil, fmt.Errorf("CREATE TABLE: file path must be quoted")
	}
	end := strings.IndexByte(afterFile[1:], quote)
	if end == -1 {
		return nil, fmt.Errorf("CREATE TABLE: unterminated file path")
	}
	filePath := afterFile[1 : 1+end]
	if filePath == "" {
		return nil, fmt.Errorf("CREATE TABLE: empty file path")
	}

	tail := strings.TrimSpace(afterFile[end+2:])
	var using []IndexKind
	if tail != "" {
		upperTail := strings.ToUpper(tail)
		if !strings.HasPrefix(upperTail, "USING") {
			return nil, fmt.Errorf("CREATE TABLE: unexpected trailing input %q", tail)
		}
		list := strings.TrimSpace(tail[len("USING"):])
		if list == "" {
			return nil, fmt.Errorf("CREATE TABLE: empty USING list")
		}
		kinds, err := parseUsingList(list)
		if err != nil {
			return nil, fmt.Errorf("CREATE TABLE: %w", err)
		}
		using = kinds
	}

	return &CreateTableStmt{
		TableName: tableName,
		FilePath:  filePath,
		Using:     using,
	}, nil
}
