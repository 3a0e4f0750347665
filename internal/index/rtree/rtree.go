// Package rtree implements the 2-D point R-Tree over restaurant
// coordinates: bounding-box plus haversine range queries and k-nearest
// lookups, on top of github.com/dhconnelly/rtreego. rtreego keeps the tree
// in memory with no on-disk format of its own, so the sidecar JSON file
// mapping surrogate id to {coords, payload} is the sole persistent store;
// Open replays it to repopulate the tree.
package rtree

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"ridgedb/internal/catalog"
)

// pointEpsilon is the half-width of the degenerate bounding box rtreego
// requires for a point entry (it rejects zero-length sides).
const pointEpsilon = 1e-9

// earthRadiusKM is the sphere radius used for haversine distances.
const earthRadiusKM = 6371.0088

type pointEntry struct {
	surrogateID uint32
	lon, lat    float64
	payload     map[string]any
	rect        rtreego.Rect
}

func (e *pointEntry) Bounds() rtreego.Rect { return e.rect }

func newPointEntry(id uint32, lon, lat float64, payload map[string]any) (*pointEntry, error) {
	rect, err := rtreego.NewRect(rtreego.Point{lon, lat}, []float64{pointEpsilon, pointEpsilon})
	if err != nil {
		return nil, fmt.Errorf("rtree: build bounding rect: %w", err)
	}
	return &pointEntry{surrogateID: id, lon: lon, lat: lat, payload: payload, rect: rect}, nil
}

// Index is an open R-Tree index plus its sidecar metadata.
type Index struct {
	metaPath string
	tree     *rtreego.Rtree
	entries  map[uint32]*pointEntry
	nextID   uint32
	closed   bool
}

// Open reopens a previously built index, replaying its sidecar metadata
// into a fresh in-memory tree.
func Open(metaPath string) (*Index, error) {
	idx := &Index{metaPath: metaPath, tree: rtreego.NewTree(2, 25, 50), entries: map[uint32]*pointEntry{}}
	records, err := readSidecar(metaPath)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		e, err := newPointEntry(rec.SurrogateID, rec.Lon, rec.Lat, rec.Payload)
		if err != nil {
			return nil, err
		}
		idx.tree.Insert(e)
		idx.entries[rec.SurrogateID] = e
		if rec.SurrogateID >= idx.nextID {
			idx.nextID = rec.SurrogateID + 1
		}
	}
	return idx, nil
}

// Build performs a fresh build over records, ingesting each one's
// (longitude, latitude) and raw field map as the payload.
func Build(metaPath string, records []catalog.Record) (*Index, error) {
	idx := &Index{metaPath: metaPath, tree: rtreego.NewTree(2, 25, 50), entries: map[uint32]*pointEntry{}}
	for _, r := range records {
		if _, err := idx.AddPoint(r.Longitude, r.Latitude, r.RawFields()); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Rebuild discards the current tree and reinserts every record from
// scratch.
func (idx *Index) Rebuild(records []catalog.Record) error {
	idx.Close()
	rebuilt, err := Build(idx.metaPath, records)
	if err != nil {
		return err
	}
	// AddPoint persists per point, so an empty rebuild would otherwise
	// leave the previous sidecar on disk.
	if err := rebuilt.persist(); err != nil {
		return err
	}
	*idx = *rebuilt
	return nil
}

// restaurantIDOf extracts the restaurant_id identity carried in a
// payload, tolerating the JSON float64 round-trip.
func restaurantIDOf(payload map[string]any) (uint32, bool) {
	v, ok := payload["restaurant_id"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint32:
		return n, true
	case float64:
		return uint32(n), true
	case int:
		return uint32(n), true
	default:
		return 0, false
	}
}

// AddPoint inserts a point. If payload carries a Restaurant_ID matching an
// existing entry, that entry is deleted first.
func (idx *Index) AddPoint(lon, lat float64, payload map[string]any) (uint32, error) {
	if rid, ok := restaurantIDOf(payload); ok {
		for sid, e := range idx.entries {
			if existingRid, ok := restaurantIDOf(e.payload); ok && existingRid == rid {
				idx.tree.Delete(e)
				delete(idx.entries, sid)
			}
		}
	}

	id := idx.nextID
	idx.nextID++
	e, err := newPointEntry(id, lon, lat, payload)
	if err != nil {
		return 0, err
	}
	idx.tree.Insert(e)
	idx.entries[id] = e
	return id, idx.persist()
}

// RemovePointByID deletes every entry whose payload carries restaurantID.
func (idx *Index) RemovePointByID(restaurantID uint32) (bool, error) {
	var removed bool
	for sid, e := range idx.entries {
		if rid, ok := restaurantIDOf(e.payload); ok && rid == restaurantID {
			idx.tree.Delete(e)
			delete(idx.entries, sid)
			removed = true
		}
	}
	if !removed {
		return false, nil
	}
	return true, idx.persist()
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// haversineKM is the great-circle distance between two (lon, lat) points
// in degrees, in kilometres.
func haversineKM(lon1, lat1, lon2, lat2 float64) float64 {
	rlon1, rlat1 := toRadians(lon1), toRadians(lat1)
	rlon2, rlat2 := toRadians(lon2), toRadians(lat2)
	dlon := rlon2 - rlon1
	dlat := rlat2 - rlat1
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

// PointResult pairs a record with its distance from a query point.
type PointResult struct {
	Record   catalog.Record
	Distance float64
}

// RangeSearchKM computes a lat/lon bounding box around (lon, lat) using a
// degrees-per-km approximation, intersects the tree, then filters and
// sorts by true haversine distance.
func (idx *Index) RangeSearchKM(lon, lat, radiusKM float64) ([]PointResult, error) {
	dlat := radiusKM / 111.0
	dlon := radiusKM / (111.0 * math.Max(math.Cos(toRadians(lat)), 1e-9))

	bbox, err := rtreego.NewRect(
		rtreego.Point{lon - dlon, lat - dlat},
		[]float64{2 * dlon, 2 * dlat},
	)
	if err != nil {
		return nil, fmt.Errorf("rtree: build query rect: %w", err)
	}

	var out []PointResult
	for _, obj := range idx.tree.SearchIntersect(bbox) {
		e := obj.(*pointEntry)
		d := haversineKM(lon, lat, e.lon, e.lat)
		if d <= radiusKM {
			out = append(out, PointResult{Record: catalog.RecordFromRawFields(e.payload), Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// KNN returns the k nearest points to (lon, lat) by Euclidean distance in
// raw coordinates.
func (idx *Index) KNN(lon, lat float64, k int) ([]PointResult, error) {
	if k <= 0 || len(idx.entries) == 0 {
		return nil, nil
	}
	if k > len(idx.entries) {
		k = len(idx.entries)
	}
	neighbors := idx.tree.NearestNeighbors(k, rtreego.Point{lon, lat})
	out := make([]PointResult, 0, len(neighbors))
	for _, obj := range neighbors {
		if obj == nil {
			continue
		}
		e := obj.(*pointEntry)
		dx, dy := e.lon-lon, e.lat-lat
		out = append(out, PointResult{Record: catalog.RecordFromRawFields(e.payload), Distance: math.Hypot(dx, dy)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Close flushes the sidecar metadata. Idempotent and safe to call before
// any file deletion.
func (idx *Index) Close() error {
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.persist()
}

// Stats reports counts useful for EXPLAIN ANALYZE and diagnostics.
type Stats struct {
	PointCount int
}

func (idx *Index) Stats() Stats {
	return Stats{PointCount: len(idx.entries)}
}
