package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ridgedb/internal/dberrors"
	"ridgedb/internal/manager"
	"ridgedb/internal/planner"
	"ridgedb/internal/sql"
)

// Execute takes a parsed Statement and executes it.
//
// Every statement returns a result envelope: SELECT fills Columns/Rows,
// EXPLAIN fills a one-row plan report, and the write statements report what
// they did in Message. Errors of the planner/schema taxonomy come back as
// Status "error" envelopes; only infrastructure failures surface as Go
// errors.
func (e *DBEngine) Execute(stmt sql.Statement) (*planner.Result, error) {
	if !e.started {
		return nil, fmt.Errorf("engine not started")
	}

	switch s := stmt.(type) {
	case *sql.CreateTableStmt:
		return e.executeCreate(s)

	case *sql.InsertStmt:
		return e.executeInsert(s)

	case *sql.DeleteStmt:
		return e.executeDelete(s)

	case *sql.SelectStmt:
		t, err := e.table(s.TableName)
		if err != nil {
			return nil, err
		}
		return t.pl.Select(s), nil

	case *sql.ExplainStmt:
		t, err := e.table(s.Select.TableName)
		if err != nil {
			return nil, err
		}
		return explainResult(t.pl.Explain(s)), nil

	default:
		return nil, fmt.Errorf("unsupported statement type %T", stmt)
	}
}

func (e *DBEngine) executeCreate(s *sql.CreateTableStmt) (*planner.Result, error) {
	if _, exists := e.tables[s.TableName]; !exists {
		dir := filepath.Join(e.dataDir, s.TableName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("engine: create table dir: %w", err)
		}
		if err := e.openTable(s.TableName); err != nil {
			return nil, err
		}
	}

	t := e.tables[s.TableName]
	selected := manager.KindsFromSQL(s.Using)
	n, err := t.mgr.BuildFromCSV(s.FilePath, selected)
	if err != nil {
		if errors.Is(err, dberrors.ErrSchema) {
			return statusError(err), nil
		}
		return nil, err
	}

	return statusOK(fmt.Sprintf("table %s built: %d records into %d engines", s.TableName, n, len(selected))), nil
}

func (e *DBEngine) executeDelete(s *sql.DeleteStmt) (*planner.Result, error) {
	t, err := e.table(s.TableName)
	if err != nil {
		return nil, err
	}

	// Resolve the predicate to rows first (reads are cheap), then fan out
	// each id's delete across all engines.
	rows, err := t.pl.EvaluatePredicate(s.Where)
	if err != nil {
		if planner.IsPlanError(err) {
			return statusError(err), nil
		}
		return nil, err
	}

	deleted := 0
	for _, row := range rows {
		id, ok := rowRestaurantID(row)
		if !ok {
			continue
		}
		n, err := t.mgr.Delete("", "", &id)
		if err != nil {
			return nil, err
		}
		deleted += n
	}
	return statusOK(fmt.Sprintf("deleted %d records", deleted)), nil
}

func rowRestaurantID(row map[string]any) (uint32, bool) {
	switch v := row["restaurant_id"].(type) {
	case uint32:
		return v, true
	case float64:
		return uint32(v), true
	case int:
		return uint32(v), true
	default:
		return 0, false
	}
}

func statusOK(message string) *planner.Result {
	return &planner.Result{Status: "ok", Message: message}
}

func statusError(err error) *planner.Result {
	return &planner.Result{Status: "error", Message: err.Error()}
}

// explainResult shapes the EXPLAIN envelope into a one-row result set.
func explainResult(ex *planner.ExplainResult) *planner.Result {
	return &planner.Result{
		Status:  "ok",
		Index:   ex.IndexUsed,
		Columns: []string{"plan", "filter", "index_used", "estimated_cost", "rows", "execution_time_ms"},
		Rows: []map[string]any{{
			"plan":              ex.Plan,
			"filter":            ex.Filter,
			"index_used":        ex.IndexUsed,
			"estimated_cost":    ex.EstimatedCost,
			"rows":              ex.Rows,
			"execution_time_ms": ex.ExecutionTimeMS,
		}},
	}
}
