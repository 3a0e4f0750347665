// Package planner takes an AST predicate tree, picks an index per leaf
// predicate (or obeys an explicit USING hint), executes, and combines
// partial results from multiple indexes under AND/OR.
package planner

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"ridgedb/internal/catalog"
	"ridgedb/internal/dberrors"
	"ridgedb/internal/manager"
	"ridgedb/internal/sql"
)

// recordColumns is the canonical column order for SELECT * output.
var recordColumns = []string{
	"restaurant_id", "name", "city", "country_code", "address", "cuisines",
	"avg_cost_for_two", "currency", "has_table_booking", "has_online_delivery",
	"is_delivering_now", "price_range", "aggregate_rating", "rating_text",
	"votes", "longitude", "latitude",
}

// Result is the envelope every query returns: a row set (possibly empty)
// plus status. Status "error" carries a message and an empty row set.
type Result struct {
	Status  string
	Index   string
	Message string
	Columns []string
	Rows    []map[string]any
}

func errorResult(index, message string) *Result {
	return &Result{Status: "error", Index: index, Message: message}
}

// Planner dispatches predicates to the index manager's primitives.
type Planner struct {
	m   *manager.Manager
	log logr.Logger
}

func New(m *manager.Manager, log logr.Logger) *Planner {
	return &Planner{m: m, log: log}
}

// Select plans and executes a SELECT statement, returning the result
// envelope. Terminal errors become an error envelope; the planner never
// panics.
func (p *Planner) Select(stmt *sql.SelectStmt) *Result {
	var hint *manager.EngineKind
	if stmt.Using != nil {
		k, ok := manager.KindFromSQL(*stmt.Using)
		if !ok {
			return errorResult("", fmt.Sprintf("unknown index hint %v", *stmt.Using))
		}
		hint = &k
	}

	rows, index, err := p.evaluate(stmt.Where, hint)
	if err != nil {
		return errorResult(index, err.Error())
	}

	res := &Result{Status: "ok", Index: index, Rows: rows}
	res.Columns = projectColumns(rows, stmt.Columns)
	if len(stmt.Columns) != 0 {
		res.Rows = projectRows(rows, stmt.Columns)
	}
	return res
}

// EvaluatePredicate runs a predicate without projection, for callers (the
// engine's DELETE path) that only need the matching rows.
func (p *Planner) EvaluatePredicate(pred sql.Predicate) ([]map[string]any, error) {
	rows, _, err := p.evaluate(pred, nil)
	return rows, err
}

// evaluate walks the predicate tree. A nil predicate is a full scan.
func (p *Planner) evaluate(pred sql.Predicate, hint *manager.EngineKind) ([]map[string]any, string, error) {
	if pred == nil {
		records, err := p.m.ScanAll()
		if err != nil {
			return nil, "AVL", err
		}
		return recordRows(records), "AVL", nil
	}

	switch node := pred.(type) {
	case *sql.And:
		left, li, err := p.evaluate(node.Left, hint)
		if err != nil {
			return nil, li, err
		}
		right, ri, err := p.evaluate(node.Right, hint)
		if err != nil {
			return nil, ri, err
		}
		return intersectByID(left, right), li + " AND " + ri, nil

	case *sql.Or:
		left, li, err := p.evaluate(node.Left, hint)
		if err != nil {
			return nil, li, err
		}
		right, ri, err := p.evaluate(node.Right, hint)
		if err != nil {
			return nil, ri, err
		}
		return unionByID(left, right), li + " OR " + ri, nil

	default:
		return p.evaluateLeaf(pred, hint)
	}
}

// evaluateLeaf dispatches one leaf predicate, either through the forced
// index or through the default routing table.
func (p *Planner) evaluateLeaf(pred sql.Predicate, hint *manager.EngineKind) ([]map[string]any, string, error) {
	if hint != nil {
		res := p.m.ForceSearch(*hint, pred)
		if res.Status != "ok" {
			return nil, res.Index, fmt.Errorf("%s: %w", res.Message, dberrors.ErrPlan)
		}
		if res.Points != nil {
			return pointRows(res), res.Index, nil
		}
		return recordRows(res.Results), res.Index, nil
	}

	switch leaf := pred.(type) {
	case *sql.Comparison:
		return p.planComparison(leaf)
	case *sql.Between:
		return p.planBetween(leaf)
	case *sql.Like:
		records, err := p.m.SearchText(leaf.Attr, leaf.Pattern, "LIKE")
		return recordRows(records), "ISAM", err
	case *sql.SpatialWithin:
		points, err := p.m.SearchNear(leaf.X, leaf.Y, leaf.RadiusKM)
		if err != nil {
			return nil, "RTREE", err
		}
		return pointRows(&manager.ForceResult{Points: points}), "RTREE", nil
	default:
		return nil, "", fmt.Errorf("unsupported predicate %T: %w", pred, dberrors.ErrPlan)
	}
}

// Default leaf routing:
//
//	name=/city=            → ISAM
//	numeric non-id attr    → AVL
//	id comparison          → Avl→BPlus→ExtHash cascade / BPlus range
//	other textual equality → ISAM sequential scan
func (p *Planner) planComparison(leaf *sql.Comparison) ([]map[string]any, string, error) {
	attr := leaf.Attr

	if attr == "restaurant_id" || attr == "id" {
		v, ok := leaf.Value.Float()
		if !ok {
			return nil, "", fmt.Errorf("restaurant_id comparison needs a numeric literal: %w", dberrors.ErrSchema)
		}
		records, err := p.m.SearchComparison("restaurant_id", leaf.Op, v)
		index := "BTREE"
		if leaf.Op == "=" {
			index = "AVL/BTREE/HASH"
		}
		return recordRows(records), index, err
	}

	if isNumericAttr(attr) {
		v, ok := leaf.Value.Float()
		if !ok {
			return nil, "", fmt.Errorf("%s comparison needs a numeric literal: %w", attr, dberrors.ErrSchema)
		}
		records, err := p.m.SearchComparison(attr, leaf.Op, v)
		return recordRows(records), "AVL", err
	}

	if isTextAttr(attr) {
		if leaf.Op != "=" {
			return nil, "", fmt.Errorf("text attribute %q supports = and LIKE, got %q: %w", attr, leaf.Op, dberrors.ErrPlan)
		}
		text, ok := leaf.Value.Text()
		if !ok {
			return nil, "", fmt.Errorf("%s comparison needs a string literal: %w", attr, dberrors.ErrSchema)
		}
		records, err := p.m.SearchText(attr, text, "=")
		return recordRows(records), "ISAM", err
	}

	return nil, "", fmt.Errorf("no index can answer predicate on %q: %w", attr, dberrors.ErrPlan)
}

func (p *Planner) planBetween(leaf *sql.Between) ([]map[string]any, string, error) {
	lo, okLo := leaf.Lo.Float()
	hi, okHi := leaf.Hi.Float()
	if !okLo || !okHi {
		return nil, "", fmt.Errorf("BETWEEN bounds must be numeric: %w", dberrors.ErrSchema)
	}
	if leaf.Attr == "restaurant_id" || leaf.Attr == "id" {
		records, err := p.m.SearchRangeID(uint32(lo), uint32(hi))
		return recordRows(records), "BTREE", err
	}
	if isNumericAttr(leaf.Attr) {
		records, err := p.m.SearchBetween(leaf.Attr, lo, hi)
		return recordRows(records), "AVL", err
	}
	return nil, "", fmt.Errorf("no index can answer BETWEEN on %q: %w", leaf.Attr, dberrors.ErrPlan)
}

func isNumericAttr(attr string) bool {
	switch attr {
	case "rating", "aggregate_rating", "votes", "avg_cost_for_two",
		"average_cost_for_two", "price_range":
		return true
	}
	return false
}

func isTextAttr(attr string) bool {
	switch attr {
	case "name", "city", "address", "cuisines", "currency", "rating_text":
		return true
	}
	return false
}

// recordRows converts records to the dict row shape results travel in.
func recordRows(records []catalog.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.RawFields())
	}
	return rows
}

// pointRows converts distance-annotated spatial results, keeping the
// ascending-by-distance order and adding a distance_km column.
func pointRows(res *manager.ForceResult) []map[string]any {
	rows := make([]map[string]any, 0, len(res.Points))
	for _, pt := range res.Points {
		row := pt.Record.RawFields()
		row["distance_km"] = pt.Distance
		rows = append(rows, row)
	}
	return rows
}

// rowID extracts the restaurant_id from a result row, tolerating the
// numeric types a row may carry depending on which engine produced it.
func rowID(row map[string]any) (uint32, bool) {
	switch v := row["restaurant_id"].(type) {
	case uint32:
		return v, true
	case int:
		return uint32(v), true
	case int64:
		return uint32(v), true
	case float64:
		return uint32(v), true
	default:
		return 0, false
	}
}

// intersectByID keeps left-side rows whose id also appears on the right,
// deduplicated on id.
func intersectByID(left, right []map[string]any) []map[string]any {
	rightIDs := make(map[uint32]struct{}, len(right))
	for _, row := range right {
		if id, ok := rowID(row); ok {
			rightIDs[id] = struct{}{}
		}
	}
	var out []map[string]any
	seen := make(map[uint32]struct{})
	for _, row := range left {
		id, ok := rowID(row)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if _, hit := rightIDs[id]; hit {
			seen[id] = struct{}{}
			out = append(out, row)
		}
	}
	return out
}

// unionByID merges both sides, deduplicated on id, left side first.
func unionByID(left, right []map[string]any) []map[string]any {
	var out []map[string]any
	seen := make(map[uint32]struct{})
	for _, row := range append(append([]map[string]any{}, left...), right...) {
		id, ok := rowID(row)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, row)
	}
	return out
}

// projectColumns picks the output header: the explicit column list when
// given (unknown columns omitted silently), else the canonical order plus
// distance_km when the rows carry it.
func projectColumns(rows []map[string]any, requested []string) []string {
	if len(requested) == 0 {
		cols := append([]string{}, recordColumns...)
		if len(rows) > 0 {
			if _, ok := rows[0]["distance_km"]; ok {
				cols = append(cols, "distance_km")
			}
		}
		return cols
	}
	known := make(map[string]struct{}, len(recordColumns)+1)
	for _, c := range recordColumns {
		known[c] = struct{}{}
	}
	known["distance_km"] = struct{}{}
	var cols []string
	for _, c := range requested {
		if _, ok := known[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// projectRows reduces each row to the requested column subset.
func projectRows(rows []map[string]any, requested []string) []map[string]any {
	cols := projectColumns(rows, requested)
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		proj := make(map[string]any, len(cols))
		for _, c := range cols {
			if v, ok := row[c]; ok {
				proj[c] = v
			}
		}
		out = append(out, proj)
	}
	return out
}

// IsPlanError reports whether an error is the planner-taxonomy kind that
// should become an error envelope rather than propagate.
func IsPlanError(err error) bool {
	return errors.Is(err, dberrors.ErrPlan) || errors.Is(err, dberrors.ErrSchema)
}
