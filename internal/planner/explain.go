package planner

import (
	"fmt"
	"strings"
	"time"

	"ridgedb/internal/sql"
)

// ExplainResult is the EXPLAIN envelope: {plan, filter, index_used,
// estimated_cost, rows, execution_time_ms}. Without ANALYZE the cost, row
// count and timing stay zero.
type ExplainResult struct {
	Plan            string
	Filter          string
	IndexUsed       string
	EstimatedCost   float64
	Rows            int
	ExecutionTimeMS float64
}

// Analytic cost model: per-index startup plus a per-tuple CPU and I/O
// charge. The numbers are relative weights, not milliseconds.
var startupCost = map[string]float64{
	"ISAM":           2.0,
	"HASH":           1.0,
	"AVL":            4.0, // full heap traversal
	"BTREE":          1.5,
	"RTREE":          2.5,
	"AVL/BTREE/HASH": 1.2, // id fallback chain, usually first probe hits
}

// selectivity estimates the fraction of the table a leaf on each index
// passes through, for plan display.
var selectivity = map[string]float64{
	"ISAM":           0.05,
	"HASH":           0.001,
	"AVL":            0.30,
	"BTREE":          0.01,
	"RTREE":          0.02,
	"AVL/BTREE/HASH": 0.001,
}

const (
	cpuPerTuple = 0.01
	ioPerTuple  = 0.05
)

// Explain describes the plan for a SELECT; under ANALYZE it also runs the
// query and fills rows, timing and the linear cost approximation. EXPLAIN
// never executes write paths.
func (p *Planner) Explain(stmt *sql.ExplainStmt) *ExplainResult {
	sel := stmt.Select

	var hintName string
	if sel.Using != nil {
		hintName = sel.Using.String()
	}

	res := &ExplainResult{
		Plan:      planDescription(sel.Where, hintName),
		Filter:    predicateString(sel.Where),
		IndexUsed: plannedIndex(sel.Where, hintName),
	}

	if !stmt.Analyze {
		return res
	}

	start := time.Now()
	run := p.Select(sel)
	elapsed := time.Since(start)

	if run.Status != "ok" {
		res.Plan = "error: " + run.Message
		return res
	}
	res.IndexUsed = run.Index
	res.Rows = len(run.Rows)
	res.ExecutionTimeMS = float64(elapsed.Microseconds()) / 1000.0

	startup := 0.0
	for _, index := range strings.FieldsFunc(run.Index, func(r rune) bool { return r == ' ' }) {
		if s, ok := startupCost[index]; ok {
			startup += s
		}
	}
	res.EstimatedCost = startup + float64(res.Rows)*(cpuPerTuple+ioPerTuple)
	return res
}

// plannedIndex predicts the index (or composite) a predicate will use,
// without executing anything.
func plannedIndex(pred sql.Predicate, hint string) string {
	if pred == nil {
		return "AVL"
	}
	if hint != "" {
		return hint
	}
	switch node := pred.(type) {
	case *sql.And:
		return plannedIndex(node.Left, "") + " AND " + plannedIndex(node.Right, "")
	case *sql.Or:
		return plannedIndex(node.Left, "") + " OR " + plannedIndex(node.Right, "")
	case *sql.Comparison:
		if node.Attr == "restaurant_id" || node.Attr == "id" {
			if node.Op == "=" {
				return "AVL/BTREE/HASH"
			}
			return "BTREE"
		}
		if isNumericAttr(node.Attr) {
			return "AVL"
		}
		return "ISAM"
	case *sql.Between:
		if node.Attr == "restaurant_id" || node.Attr == "id" {
			return "BTREE"
		}
		return "AVL"
	case *sql.Like:
		return "ISAM"
	case *sql.SpatialWithin:
		return "RTREE"
	default:
		return "UNKNOWN"
	}
}

// planDescription renders the plan tree one line per leaf.
func planDescription(pred sql.Predicate, hint string) string {
	if pred == nil {
		return "FullScan(AVL)"
	}
	switch node := pred.(type) {
	case *sql.And:
		return fmt.Sprintf("Intersect(%s, %s)", planDescription(node.Left, hint), planDescription(node.Right, hint))
	case *sql.Or:
		return fmt.Sprintf("Union(%s, %s)", planDescription(node.Left, hint), planDescription(node.Right, hint))
	default:
		index := plannedIndex(pred, hint)
		s := selectivity[index]
		if s == 0 {
			s = 1.0
		}
		return fmt.Sprintf("IndexScan(%s, %s, selectivity=%.3f)", index, predicateString(pred), s)
	}
}

// predicateString renders a predicate back to WHERE-clause syntax.
func predicateString(pred sql.Predicate) string {
	switch node := pred.(type) {
	case nil:
		return ""
	case *sql.And:
		return fmt.Sprintf("(%s AND %s)", predicateString(node.Left), predicateString(node.Right))
	case *sql.Or:
		return fmt.Sprintf("(%s OR %s)", predicateString(node.Left), predicateString(node.Right))
	case *sql.Comparison:
		return fmt.Sprintf("%s %s %s", node.Attr, node.Op, literalString(node.Value))
	case *sql.Between:
		return fmt.Sprintf("%s BETWEEN %s AND %s", node.Attr, literalString(node.Lo), literalString(node.Hi))
	case *sql.Like:
		return fmt.Sprintf("%s LIKE '%s'", node.Attr, node.Pattern)
	case *sql.SpatialWithin:
		return fmt.Sprintf("%s IN (POINT [%g, %g], RADIUS %g)", node.Attr, node.X, node.Y, node.RadiusKM)
	default:
		return fmt.Sprintf("%T", pred)
	}
}

func literalString(v sql.Value) string {
	switch v.Type {
	case sql.TypeInt:
		return fmt.Sprintf("%d", v.I64)
	case sql.TypeFloat:
		return fmt.Sprintf("%g", v.F64)
	case sql.TypeString:
		return "'" + v.S + "'"
	case sql.TypeBool:
		return fmt.Sprintf("%t", v.B)
	default:
		return "?"
	}
}
