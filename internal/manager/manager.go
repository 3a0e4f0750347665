package manager

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"

	"ridgedb/internal/catalog"
	"ridgedb/internal/dberrors"
	"ridgedb/internal/index/avl"
	"ridgedb/internal/index/bplus"
	"ridgedb/internal/index/exthash"
	"ridgedb/internal/index/isam"
	"ridgedb/internal/index/rtree"
)

// Manager routes operations to the five index engines consistently: bulk
// build, fan-out insert/delete with global uniqueness on restaurant_id, and
// the per-primitive search entry points the planner dispatches to.
type Manager struct {
	cfg Config
	log logr.Logger

	isam  *isam.Index
	hash  *exthash.Index
	avl   *avl.Index
	bplus *bplus.Index
	rtree *rtree.Index

	journal *journal
}

// Open opens every engine under cfg.BaseDir, creating empty ones for files
// that don't exist yet (a missing file is an empty index, not an error).
func Open(cfg Config) (*Manager, error) {
	cfg.applyDefaults()
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("manager: base directory not configured")
	}
	if info, err := os.Stat(cfg.BaseDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("manager: base directory %s must exist and be a directory", cfg.BaseDir)
	}

	m := &Manager{cfg: cfg, log: cfg.Logger}

	var err error
	if m.journal, err = openJournal(cfg.journalPath()); err != nil {
		return nil, err
	}

	if fileExists(cfg.isamMetaPath()) {
		m.isam, err = isam.Open(cfg.isamDataPath(), cfg.isamNodePath(), cfg.isamMetaPath())
	} else {
		m.isam, err = isam.Build(cfg.isamDataPath(), cfg.isamNodePath(), cfg.isamMetaPath(), nil)
	}
	if err != nil {
		m.Close()
		return nil, err
	}

	if m.hash, err = exthash.Open(cfg.hashDirPath(), cfg.hashDataPath(), cfg.HashBucketCapacity); err != nil {
		m.Close()
		return nil, err
	}

	if fileExists(cfg.avlMetaPath()) {
		m.avl, err = avl.Open(cfg.avlNodePath(), cfg.avlHeapPath(), cfg.avlMetaPath())
	} else {
		m.avl, err = avl.Build(cfg.avlNodePath(), cfg.avlHeapPath(), cfg.avlMetaPath(), nil)
	}
	if err != nil {
		m.Close()
		return nil, err
	}

	if fileExists(cfg.bplusMetaPath()) {
		m.bplus, err = bplus.Open(cfg.bplusNodePath(), cfg.bplusMetaPath())
	} else {
		m.bplus, err = bplus.Build(cfg.bplusNodePath(), cfg.bplusMetaPath(), cfg.BPlusOrder, nil)
	}
	if err != nil {
		m.Close()
		return nil, err
	}

	if m.rtree, err = rtree.Open(cfg.rtreeMetaPath()); err != nil {
		m.Close()
		return nil, err
	}

	if m.journal.NeedsRepair() {
		m.log.Info("journal records an incomplete fan-out; engines may disagree until Rebuild")
	}

	return m, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NeedsRepair reports whether a previous process died mid-fan-out, leaving
// the engines possibly inconsistent. Rebuild clears it.
func (m *Manager) NeedsRepair() bool {
	return m.journal != nil && m.journal.NeedsRepair()
}

// Close closes every engine. The R-Tree handle must be closed before its
// files can be deleted on some operating systems, so Close is safe to call
// ahead of a rebuild and idempotent per engine.
func (m *Manager) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if m.isam != nil {
		keep(m.isam.Close())
	}
	if m.hash != nil {
		keep(m.hash.Close())
	}
	if m.avl != nil {
		keep(m.avl.Close())
	}
	if m.bplus != nil {
		keep(m.bplus.Close())
	}
	if m.rtree != nil {
		keep(m.rtree.Close())
	}
	if m.journal != nil {
		keep(m.journal.Close())
	}
	return first
}

// Build resets the selected engines and ingests records in the order
// provided. Engines not selected are reset to empty, so a table is never a
// mix of two datasets.
func (m *Manager) Build(records []catalog.Record, selected []EngineKind) error {
	if len(selected) == 0 {
		selected = AllKinds
	}
	pick := func(k EngineKind) []catalog.Record {
		if containsKind(selected, k) {
			return records
		}
		return nil
	}

	if err := m.isam.Rebuild(pick(KindISAM)); err != nil {
		return fmt.Errorf("manager: build isam: %w", err)
	}

	rebuilt, err := exthash.Rebuild(m.cfg.hashDirPath(), m.cfg.hashDataPath(), m.cfg.HashBucketCapacity, pick(KindHash))
	if err != nil {
		return fmt.Errorf("manager: build hash: %w", err)
	}
	m.hash = rebuilt

	if err := m.rtree.Rebuild(pick(KindRTree)); err != nil {
		return fmt.Errorf("manager: build rtree: %w", err)
	}
	if err := m.avl.Rebuild(pick(KindAVL)); err != nil {
		return fmt.Errorf("manager: build avl: %w", err)
	}
	if err := m.bplus.Rebuild(pick(KindBPlus)); err != nil {
		return fmt.Errorf("manager: build bplus: %w", err)
	}

	if err := m.journal.Reset(); err != nil {
		return err
	}
	m.log.Info("build complete", "records", len(records), "engines", len(selected))
	return nil
}

// BuildFromCSV ingests the CSV at path into the selected engines and
// returns the number of records loaded.
func (m *Manager) BuildFromCSV(path string, selected []EngineKind) (int, error) {
	records, err := LoadCSV(path)
	if err != nil {
		return 0, err
	}
	if err := m.Build(records, selected); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Rebuild re-ingests the current record set (gathered from the AVL's
// in-order traversal) into the selected engines, compacting ISAM overflow
// chains and B+Tree under-occupancy. This is the recovery path after long
// insert/delete streams or a crash mid-fan-out.
func (m *Manager) Rebuild(selected []EngineKind) error {
	records, err := m.ScanAll()
	if err != nil {
		return err
	}
	return m.Build(records, selected)
}

// ScanAll returns every record, in ascending id order, via the AVL heap.
func (m *Manager) ScanAll() ([]catalog.Record, error) {
	return m.avl.ScanAll()
}

// idExists probes the uniqueness fallback chain BPlus → ExtHash → Avl.
func (m *Manager) idExists(id uint32) (bool, error) {
	if _, ok, err := m.bplus.Search(id); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	if _, ok, err := m.hash.Search(id); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	if _, ok, err := m.avl.Search(id); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return false, nil
}

// InsertFull normalises raw external field names, builds a Record, enforces
// global uniqueness on restaurant_id, and inserts into every engine in the
// fixed fan-out order. The first engine error aborts the fan-out; partial
// state is repaired by Rebuild, not rolled back.
func (m *Manager) InsertFull(raw map[string]any) error {
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[catalog.NormalizeFieldName(k)] = v
	}
	if _, ok := fields["restaurant_id"]; !ok {
		return fmt.Errorf("manager: insert without restaurant_id: %w", dberrors.ErrSchema)
	}
	r := catalog.RecordFromRawFields(fields)
	if r.RestaurantID == 0 {
		return fmt.Errorf("manager: restaurant_id must be a positive integer: %w", dberrors.ErrSchema)
	}
	return m.InsertRecord(r)
}

// InsertRecord is InsertFull for an already-typed record.
func (m *Manager) InsertRecord(r catalog.Record) error {
	exists, err := m.idExists(r.RestaurantID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("manager: restaurant_id %d already exists: %w", r.RestaurantID, dberrors.ErrDuplicateID)
	}

	if err := m.journal.beginInsert(r.RestaurantID); err != nil {
		return err
	}

	// Fan-out order: ISAM → ExtHash → RTree → Avl → BPlus.
	if err := m.insertISAM(r); err != nil {
		return fmt.Errorf("manager: insert isam: %w", err)
	}
	if err := m.hash.Insert(r); err != nil {
		return fmt.Errorf("manager: insert hash: %w", err)
	}
	if _, err := m.rtree.AddPoint(r.Longitude, r.Latitude, r.RawFields()); err != nil {
		return fmt.Errorf("manager: insert rtree: %w", err)
	}
	if err := m.avl.Insert(r); err != nil {
		return fmt.Errorf("manager: insert avl: %w", err)
	}
	if err := m.bplus.Insert(r); err != nil {
		return fmt.Errorf("manager: insert bplus: %w", err)
	}

	return m.journal.doneInsert(r.RestaurantID)
}

// insertISAM handles the empty-index case: a static index with no base
// pages has nowhere to chain an overflow record, so the first insert is a
// one-record build.
func (m *Manager) insertISAM(r catalog.Record) error {
	if m.isam.Stats().BasePages == 0 {
		return m.isam.Rebuild([]catalog.Record{r})
	}
	return m.isam.Insert(r)
}

// Delete removes records by (name, city) or exact id. When id is nil the
// id set is resolved through the ISAM (name, city) scan first. Each id then
// fans out to all five engines; per-engine failures are logged and the
// fan-out continues (a single engine's failure must not strand the others).
// Returns the number of ids processed.
func (m *Manager) Delete(name, city string, id *uint32) (int, error) {
	var ids []uint32
	if id != nil {
		ids = []uint32{*id}
	} else {
		matches, err := m.SearchByName(name, city)
		if err != nil {
			return 0, err
		}
		for _, r := range matches {
			ids = append(ids, r.RestaurantID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	for _, rid := range ids {
		rec, ok, err := m.SearchByID(rid)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if err := m.journal.beginDelete(rid); err != nil {
			return 0, err
		}
		m.deleteOne(rec)
		if err := m.journal.doneDelete(rid); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (m *Manager) deleteOne(rec catalog.Record) {
	logErr := func(engine string, err error) {
		if err != nil {
			m.log.Error(err, "delete fan-out failed", "engine", engine, "id", rec.RestaurantID)
		}
	}
	if err := m.isam.Delete(rec.Name, rec.City, uint64(rec.RestaurantID)); err != nil {
		logErr("isam", err)
	}
	_, err := m.hash.Remove(rec.RestaurantID)
	logErr("hash", err)
	_, err = m.rtree.RemovePointByID(rec.RestaurantID)
	logErr("rtree", err)
	_, err = m.avl.Delete(rec.RestaurantID)
	logErr("avl", err)
	_, err = m.bplus.Delete(rec.RestaurantID)
	logErr("bplus", err)
}

// SearchByID resolves an id through the Avl → BPlus → ExtHash fallback
// chain; the first hit wins.
func (m *Manager) SearchByID(id uint32) (catalog.Record, bool, error) {
	if r, ok, err := m.avl.Search(id); err != nil {
		return catalog.Record{}, false, err
	} else if ok {
		return r, true, nil
	}
	if r, ok, err := m.bplus.Search(id); err != nil {
		return catalog.Record{}, false, err
	} else if ok {
		return r, true, nil
	}
	return m.hash.Search(id)
}

// SearchRangeID answers id BETWEEN lo AND hi via the B+Tree's leaf chain,
// ascending.
func (m *Manager) SearchRangeID(lo, hi uint32) ([]catalog.Record, error) {
	return m.bplus.RangeScan(lo, hi)
}

// SearchByName answers name (+ optional city) lookups through the ISAM:
// descent plus tolerant fallback when city is known, full normalised-name
// scan otherwise.
func (m *Manager) SearchByName(name, city string) ([]catalog.Record, error) {
	if city != "" {
		return m.isam.SearchAllByNameCity(name, city)
	}
	return m.SearchText("name", name, "=")
}

// SearchComparison answers numeric comparisons. restaurant_id routes to the
// id-keyed structures (equality through the fallback chain, inequalities
// through the B+Tree leaf chain); every other numeric attribute goes to the
// AVL's scannable heap.
func (m *Manager) SearchComparison(attr, op string, v float64) ([]catalog.Record, error) {
	if attr == "restaurant_id" || attr == "id" {
		return m.idComparison(op, v)
	}
	return m.avl.SearchComparison(attr, op, v)
}

func (m *Manager) idComparison(op string, v float64) ([]catalog.Record, error) {
	id := uint32(v)
	switch op {
	case "=":
		r, ok, err := m.SearchByID(id)
		if err != nil || !ok {
			return nil, err
		}
		return []catalog.Record{r}, nil
	case ">":
		if id == ^uint32(0) {
			return nil, nil
		}
		return m.bplus.RangeScan(id+1, ^uint32(0))
	case ">=":
		return m.bplus.RangeScan(id, ^uint32(0))
	case "<":
		if id == 0 {
			return nil, nil
		}
		return m.bplus.RangeScan(0, id-1)
	case "<=":
		return m.bplus.RangeScan(0, id)
	default:
		return nil, fmt.Errorf("manager: unsupported id comparison %q: %w", op, dberrors.ErrPlan)
	}
}

// SearchBetween answers attr BETWEEN lo AND hi, both ends inclusive.
func (m *Manager) SearchBetween(attr string, lo, hi float64) ([]catalog.Record, error) {
	if attr == "restaurant_id" || attr == "id" {
		return m.bplus.RangeScan(uint32(lo), uint32(hi))
	}
	return m.avl.SearchBetween(attr, lo, hi)
}

// SearchNear answers the haversine range query through the R-Tree, sorted
// ascending by distance.
func (m *Manager) SearchNear(lon, lat, radiusKM float64) ([]rtree.PointResult, error) {
	return m.rtree.RangeSearchKM(lon, lat, radiusKM)
}

// KNN returns the k nearest restaurants to (lon, lat).
func (m *Manager) KNN(lon, lat float64, k int) ([]rtree.PointResult, error) {
	return m.rtree.KNN(lon, lat, k)
}

// textAttrValue extracts a textual attribute for SearchText.
func textAttrValue(r catalog.Record, attr string) (string, bool) {
	switch attr {
	case "name":
		return r.Name, true
	case "city":
		return r.City, true
	case "address":
		return r.Address, true
	case "cuisines":
		return r.Cuisines, true
	case "currency":
		return r.Currency, true
	case "rating_text":
		return r.RatingText, true
	default:
		return "", false
	}
}

// SearchText answers textual predicates with an ISAM-backed scan: op "="
// compares normalised text exactly, op "LIKE" treats % as a wildcard. Both
// sides of the comparison go through the same normalisation as the write
// path.
func (m *Manager) SearchText(attr, value, op string) ([]catalog.Record, error) {
	if _, ok := textAttrValue(catalog.Record{}, attr); !ok {
		return nil, fmt.Errorf("manager: %q is not a text attribute: %w", attr, dberrors.ErrSchema)
	}

	var match func(string) bool
	switch op {
	case "=":
		want := catalog.Normalize(value)
		match = func(s string) bool { return catalog.Normalize(s) == want }
	case "LIKE":
		pattern := catalog.Normalize(value)
		match = func(s string) bool { return likeMatch(pattern, catalog.Normalize(s)) }
	default:
		return nil, fmt.Errorf("manager: unsupported text operator %q: %w", op, dberrors.ErrPlan)
	}

	all, err := m.isamScanAll()
	if err != nil {
		return nil, err
	}
	var out []catalog.Record
	for _, r := range all {
		s, _ := textAttrValue(r, attr)
		if match(s) {
			out = append(out, r)
		}
	}
	return out, nil
}

// isamScanAll walks every data page of the ISAM file in key order.
func (m *Manager) isamScanAll() ([]catalog.Record, error) {
	var lo, hi catalog.IsamKey
	for i := range hi {
		hi[i] = 0xFF
	}
	return m.isam.RangeScan(lo, hi)
}

// likeMatch implements % wildcards: the pattern is split on %, and the
// pieces must appear in order, anchored at each end unless the pattern
// starts/ends with %.
func likeMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "%")
	// single part, no wildcard: exact match
	if len(parts) == 1 {
		return s == parts[0]
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	if !strings.HasSuffix(s, last) {
		return false
	}
	s = s[:len(s)-len(last)]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i == -1 {
			return false
		}
		s = s[i+len(part):]
	}
	return true
}
