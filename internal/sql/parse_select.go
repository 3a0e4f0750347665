package sql

import (
	"fmt"
	"strings"
)

// parseSelect parses:
//
//	SELECT * FROM restaurants;
//	SELECT name, city FROM restaurants WHERE rating > 4.0;
//	SELECT * FROM restaurants USING HASH WHERE restaurant_id = 6317637;
//	SELECT * FROM restaurants WHERE coords IN (POINT [121.02, 14.56], RADIUS 3);
func parseSelect(query string) (Statement, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("SELECT: empty query")
	}
	// strip trailing ';'
	if strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(q[:len(q)-1])
	}

	if !strings.HasPrefix(strings.ToUpper(q), "SELECT") {
		return nil, fmt.Errorf("SELECT: expected SELECT")
	}

	idxFrom := indexOfKeyword(q, "FROM")
	if idxFrom == -1 {
		return nil, fmt.Errorf("SELECT: FROM not found")
	}

	// Part between SELECT and FROM => projection list.
	selectPart := strings.TrimSpace(q[len("SELECT"):idxFrom])
	if selectPart == "" {
		return nil, fmt.Errorf("SELECT: missing projection list")
	}

	var cols []string
	if selectPart != "*" {
		for _, c := range splitCommaSeparated(selectPart) {
			cols = append(cols, strings.ToLower(c))
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("SELECT: no valid column names")
		}
	}

	// Everything after FROM: "table [USING idx] [WHERE pred]"
	rest := strings.TrimSpace(q[idxFrom+len("FROM"):])
	if rest == "" {
		return nil, fmt.Errorf("SELECT: missing table name")
	}

	tableFields := strings.Fields(rest)
	tableName := tableFields[0]
	tail := strings.TrimSpace(rest[len(tableName):])

	var using *IndexKind
	if tail != "" {
		upperTail := strings.ToUpper(tail)
		if strings.HasPrefix(upperTail, "USING") {
			afterUsing := strings.TrimSpace(tail[len("USING"):])
			if afterUsing == "" {
				return nil, fmt.Errorf("SELECT: missing index name after USING")
			}
			idxName := strings.Fields(afterUsing)[0]
			k, err := ParseIndexKind(idxName)
			if err != nil {
				return nil, fmt.Errorf("SELECT: %w", err)
			}
			if k != IndexAll {
				// USING ALL is the planner default, same as no hint.
				using = &k
			}
			tail = strings.TrimSpace(afterUsing[len(idxName):])
		}
	}

	var where Predicate
	if tail != "" {
		upperTail := strings.ToUpper(tail)
		if !strings.HasPrefix(upperTail, "WHERE") {
			return nil, fmt.Errorf("SELECT: unexpected trailing input %q", tail)
		}
		wherePart := strings.TrimSpace(tail[len("WHERE"):])
		if wherePart == "" {
			return nil, fmt.Errorf("SELECT: empty WHERE clause")
		}
		pred, err := ParsePredicate(wherePart)
		if err != nil {
			return nil, err
		}
		where = pred
	}

	return &SelectStmt{
		TableName: tableName,
		Columns:   cols,
		Using:     using,
		Where:     where,
	}, nil
}
