package manager

import (
	"fmt"

	"ridgedb/internal/catalog"
	"ridgedb/internal/index/rtree"
	"ridgedb/internal/sql"
)

// ForceResult is the envelope a forced search returns. Status is "ok" or
// "error"; on error Message says why the forced index was rejected and the
// result set is empty.
type ForceResult struct {
	Status  string
	Index   string
	Message string
	Results []catalog.Record

	// Points carries distance-annotated results for RTREE searches; for
	// every other index it is nil and Results holds the rows.
	Points []rtree.PointResult
}

func forceOK(kind EngineKind, results []catalog.Record) *ForceResult {
	return &ForceResult{Status: "ok", Index: kind.String(), Results: results}
}

func forceErr(kind EngineKind, format string, args ...any) *ForceResult {
	return &ForceResult{Status: "error", Index: kind.String(), Message: fmt.Sprintf(format, args...)}
}

// Admissible attributes per forced index. A forced search on any other
// (index, attribute) pair is an error envelope, not a panic.
func isamForceAttr(attr string) bool {
	return attr == "name" || attr == "city"
}

func avlForceAttr(attr string) bool {
	switch attr {
	case "rating", "aggregate_rating", "votes", "avg_cost_for_two", "average_cost_for_two":
		return true
	}
	return false
}

func idForceAttr(attr string) bool {
	return attr == "restaurant_id" || attr == "id"
}

func spatialForceAttr(attr string) bool {
	return attr == "coords" || attr == "longitude" || attr == "latitude"
}

// ForceSearch validates the forced index against a leaf predicate and runs
// the corresponding primitive. Compound predicates are decomposed by the
// planner before they get here; receiving one is an error envelope.
func (m *Manager) ForceSearch(kind EngineKind, pred sql.Predicate) *ForceResult {
	switch p := pred.(type) {
	case *sql.Comparison:
		return m.forceComparison(kind, p)
	case *sql.Between:
		return m.forceBetween(kind, p)
	case *sql.Like:
		return m.forceLike(kind, p)
	case *sql.SpatialWithin:
		return m.forceSpatial(kind, p)
	case *sql.And, *sql.Or:
		return forceErr(kind, "compound predicates cannot be forced onto a single index; force each side separately")
	default:
		return forceErr(kind, "unsupported predicate %T for forced search", pred)
	}
}

func (m *Manager) forceComparison(kind EngineKind, p *sql.Comparison) *ForceResult {
	switch kind {
	case KindISAM:
		if !isamForceAttr(p.Attr) {
			return forceErr(kind, "ISAM is not admissible for attribute %q (expected name or city)", p.Attr)
		}
		if p.Op != "=" {
			return forceErr(kind, "ISAM supports only equality on %s, got %q", p.Attr, p.Op)
		}
		text, ok := p.Value.Text()
		if !ok {
			return forceErr(kind, "%s comparison needs a string literal", p.Attr)
		}
		results, err := m.SearchText(p.Attr, text, "=")
		if err != nil {
			return forceErr(kind, "isam search failed: %v", err)
		}
		return forceOK(kind, results)

	case KindAVL:
		if !avlForceAttr(p.Attr) {
			return forceErr(kind, "AVL is not admissible for attribute %q (expected rating, votes or average_cost_for_two)", p.Attr)
		}
		v, ok := p.Value.Float()
		if !ok {
			return forceErr(kind, "%s comparison needs a numeric literal", p.Attr)
		}
		results, err := m.avl.SearchComparison(p.Attr, p.Op, v)
		if err != nil {
			return forceErr(kind, "avl search failed: %v", err)
		}
		return forceOK(kind, results)

	case KindHash:
		if !idForceAttr(p.Attr) {
			return forceErr(kind, "HASH is not admissible for attribute %q (expected restaurant_id)", p.Attr)
		}
		if p.Op != "=" {
			return forceErr(kind, "HASH supports equality only, got %q", p.Op)
		}
		id, ok := p.Value.Int()
		if !ok {
			return forceErr(kind, "restaurant_id comparison needs an integer literal")
		}
		r, found, err := m.hash.Search(uint32(id))
		if err != nil {
			return forceErr(kind, "hash search failed: %v", err)
		}
		if !found {
			return forceOK(kind, nil)
		}
		return forceOK(kind, []catalog.Record{r})

	case KindBPlus:
		if !idForceAttr(p.Attr) {
			return forceErr(kind, "BTREE is not admissible for attribute %q (expected restaurant_id)", p.Attr)
		}
		v, ok := p.Value.Float()
		if !ok {
			return forceErr(kind, "restaurant_id comparison needs a numeric literal")
		}
		results, err := m.idComparison(p.Op, v)
		if err != nil {
			return forceErr(kind, "btree search failed: %v", err)
		}
		return forceOK(kind, results)

	case KindRTree:
		return forceErr(kind, "RTREE needs a spatial predicate: attr IN (POINT [x, y], RADIUS r)")

	default:
		return forceErr(kind, "unknown index")
	}
}

func (m *Manager) forceBetween(kind EngineKind, p *sql.Between) *ForceResult {
	lo, okLo := p.Lo.Float()
	hi, okHi := p.Hi.Float()
	if !okLo || !okHi {
		return forceErr(kind, "BETWEEN bounds must be numeric")
	}
	switch kind {
	case KindAVL:
		if !avlForceAttr(p.Attr) {
			return forceErr(kind, "AVL is not admissible for attribute %q (expected rating, votes or average_cost_for_two)", p.Attr)
		}
		results, err := m.avl.SearchBetween(p.Attr, lo, hi)
		if err != nil {
			return forceErr(kind, "avl search failed: %v", err)
		}
		return forceOK(kind, results)
	case KindBPlus:
		if !idForceAttr(p.Attr) {
			return forceErr(kind, "BTREE is not admissible for attribute %q (expected restaurant_id)", p.Attr)
		}
		results, err := m.bplus.RangeScan(uint32(lo), uint32(hi))
		if err != nil {
			return forceErr(kind, "btree range scan failed: %v", err)
		}
		return forceOK(kind, results)
	default:
		return forceErr(kind, "%s does not answer BETWEEN predicates", kind)
	}
}

func (m *Manager) forceLike(kind EngineKind, p *sql.Like) *ForceResult {
	if kind != KindISAM {
		return forceErr(kind, "LIKE is only admissible on ISAM text attributes")
	}
	if !isamForceAttr(p.Attr) {
		return forceErr(kind, "ISAM is not admissible for attribute %q (expected name or city)", p.Attr)
	}
	results, err := m.SearchText(p.Attr, p.Pattern, "LIKE")
	if err != nil {
		return forceErr(kind, "isam search failed: %v", err)
	}
	return forceOK(kind, results)
}

func (m *Manager) forceSpatial(kind EngineKind, p *sql.SpatialWithin) *ForceResult {
	if kind != KindRTree {
		return forceErr(kind, "%s is not admissible for spatial predicates (use RTREE)", kind)
	}
	if !spatialForceAttr(p.Attr) {
		return forceErr(kind, "RTREE is not admissible for attribute %q (expected coords, longitude or latitude)", p.Attr)
	}
	points, err := m.SearchNear(p.X, p.Y, p.RadiusKM)
	if err != nil {
		return forceErr(kind, "rtree search failed: %v", err)
	}
	res := &ForceResult{Status: "ok", Index: kind.String(), Points: points}
	for _, pt := range points {
		res.Results = append(res.Results, pt.Record)
	}
	return res
}
