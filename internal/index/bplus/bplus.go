package bplus

import (
	"fmt"
	"sort"

	"ridgedb/internal/catalog"
	"ridgedb/internal/storage/pagedfile"
)

// DefaultOrder is the fallback maximum key count per node. Real systems
// pick the order to fill a page; the small default keeps split paths easy
// to exercise.
const DefaultOrder = 4

// Index is an open persistent B+Tree keyed by restaurant id.
type Index struct {
	nodePath, metaPath string
	nodes              *pagedfile.File
	m                  meta
}

func (idx *Index) order() int { return int(idx.m.order) }

// Open reopens a previously built index.
func Open(nodePath, metaPath string) (*Index, error) {
	m, err := readMeta(metaPath)
	if err != nil {
		return nil, err
	}
	nodes, err := pagedfile.Open(nodePath, nodePageSize(int(m.order)))
	if err != nil {
		return nil, err
	}
	return &Index{nodePath: nodePath, metaPath: metaPath, nodes: nodes, m: m}, nil
}

// Build performs a fresh build of order `order`, inserting records one at a
// time so the ordinary split path establishes the tree shape.
func Build(nodePath, metaPath string, order int, records []catalog.Record) (*Index, error) {
	if order < 3 {
		order = DefaultOrder
	}
	nodes, err := pagedfile.Open(nodePath, nodePageSize(order))
	if err != nil {
		return nil, err
	}
	if err := nodes.Truncate(); err != nil {
		nodes.Close()
		return nil, err
	}
	idx := &Index{nodePath: nodePath, metaPath: metaPath, nodes: nodes, m: meta{root: NoPage, order: int32(order)}}
	for _, r := range records {
		if err := idx.Insert(r); err != nil {
			return nil, err
		}
	}
	if err := writeMeta(metaPath, idx.m); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebuild discards the current tree and reinserts every record from
// scratch, preserving the configured order.
func (idx *Index) Rebuild(records []catalog.Record) error {
	order := idx.order()
	idx.Close()
	rebuilt, err := Build(idx.nodePath, idx.metaPath, order, records)
	if err != nil {
		return err
	}
	*idx = *rebuilt
	return nil
}

// Close releases the underlying file handle.
func (idx *Index) Close() error {
	return idx.nodes.Close()
}

func (idx *Index) readNode(off int64) (*node, error) {
	buf, err := idx.nodes.ReadPage(off)
	if err != nil {
		return nil, err
	}
	return decodeNode(buf, idx.order())
}

func (idx *Index) writeNode(off int64, n *node) error {
	return idx.nodes.WritePage(off, n.encode())
}

func (idx *Index) appendNode(n *node) (int64, error) {
	return idx.nodes.AppendPage(n.encode())
}

// findLeaf descends from the root to the leaf that would hold key,
// returning its offset and the path of ancestor internal-node offsets
// (root first), used to propagate splits back up on insert.
func (idx *Index) findLeaf(key uint32) (int64, []int64, error) {
	if idx.m.root == NoPage {
		return NoPage, nil, nil
	}
	var path []int64
	off := idx.m.root
	for {
		n, err := idx.readNode(off)
		if err != nil {
			return NoPage, nil, err
		}
		if n.isLeaf {
			return off, path, nil
		}
		path = append(path, off)
		off = n.childFor(key)
	}
}

// Search returns the record for key if present.
func (idx *Index) Search(key uint32) (catalog.Record, bool, error) {
	leafOff, _, err := idx.findLeaf(key)
	if err != nil || leafOff == NoPage {
		return catalog.Record{}, false, err
	}
	leaf, err := idx.readNode(leafOff)
	if err != nil {
		return catalog.Record{}, false, err
	}
	for i, k := range leaf.keys {
		if k == key {
			rec, err := catalog.DecodeRecord(leaf.values[i])
			return rec, true, err
		}
	}
	return catalog.Record{}, false, nil
}

// RangeScan returns every record with key in [lo, hi], descending to the
// first leaf that could hold lo then walking the leaf chain
// "range").
func (idx *Index) RangeScan(lo, hi uint32) ([]catalog.Record, error) {
	if idx.m.root == NoPage {
		return nil, nil
	}
	leafOff, _, err := idx.findLeaf(lo)
	if err != nil {
		return nil, err
	}
	var out []catalog.Record
	for leafOff != NoPage {
		leaf, err := idx.readNode(leafOff)
		if err != nil {
			return nil, err
		}
		for i, k := range leaf.keys {
			if k < lo {
				continue
			}
			if k > hi {
				return out, nil
			}
			rec, err := catalog.DecodeRecord(leaf.values[i])
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		leafOff = leaf.nextLeaf
	}
	return out, nil
}

// Insert adds or updates the entry for r.RestaurantID, splitting leaves
// and internal nodes on overflow and growing the tree upward on a root
// split.
func (idx *Index) Insert(r catalog.Record) error {
	key := r.RestaurantID
	value := catalog.EncodeRecord(r)

	if idx.m.root == NoPage {
		leaf := newLeaf(idx.order())
		leaf.keys = []uint32{key}
		leaf.values = [][]byte{value}
		leaf.keyCount = 1
		off, err := idx.appendNode(leaf)
		if err != nil {
			return err
		}
		idx.m.root = off
		idx.m.height = 1
		idx.m.leafCount = 1
		return writeMeta(idx.metaPath, idx.m)
	}

	leafOff, path, err := idx.findLeaf(key)
	if err != nil {
		return err
	}
	leaf, err := idx.readNode(leafOff)
	if err != nil {
		return err
	}

	pos := sort.Search(len(leaf.keys), func(i int) bool { return leaf.keys[i] >= key })
	if pos < len(leaf.keys) && leaf.keys[pos] == key {
		leaf.values[pos] = value
		return idx.writeNode(leafOff, leaf)
	}

	if !leaf.full() {
		leaf.keys = insertUint32At(leaf.keys, pos, key)
		leaf.values = insertBytesAt(leaf.values, pos, value)
		leaf.keyCount++
		return idx.writeNode(leafOff, leaf)
	}

	// Leaf overflow: split in half, new leaf takes the right half, and the
	// right leaf's first key is promoted to the parent.
	keys := insertUint32At(append([]uint32(nil), leaf.keys...), pos, key)
	values := insertBytesAt(append([][]byte(nil), leaf.values...), pos, value)

	split := len(keys) / 2
	leftKeys, rightKeys := keys[:split], keys[split:]
	leftValues, rightValues := values[:split], values[split:]

	left := newLeaf(idx.order())
	left.keys, left.values, left.keyCount = leftKeys, leftValues, int32(len(leftKeys))
	left.nextLeaf = leaf.nextLeaf // placeholder, fixed below once right is allocated

	right := newLeaf(idx.order())
	right.keys, right.values, right.keyCount = rightKeys, rightValues, int32(len(rightKeys))
	right.nextLeaf = leaf.nextLeaf

	rightOff, err := idx.appendNode(right)
	if err != nil {
		return err
	}
	left.nextLeaf = rightOff
	if err := idx.writeNode(leafOff, left); err != nil {
		return err
	}
	idx.m.leafCount++

	return idx.insertIntoParent(leafOff, rightOff, rightKeys[0], path)
}

// insertIntoParent propagates a split upward: leftOff/rightOff are the two
// halves of a just-split child, sepKey is the key to separate them.
// An empty path means leftOff was the root, so a new root is created and
// the tree grows upward by one.
func (idx *Index) insertIntoParent(leftOff, rightOff int64, sepKey uint32, path []int64) error {
	if len(path) == 0 {
		root := newInternal(idx.order())
		root.p0 = leftOff
		root.keys = []uint32{sepKey}
		root.children = []int64{rightOff}
		root.keyCount = 1
		off, err := idx.appendNode(root)
		if err != nil {
			return err
		}
		idx.m.root = off
		idx.m.height++
		return writeMeta(idx.metaPath, idx.m)
	}

	parentOff := path[len(path)-1]
	parent, err := idx.readNode(parentOff)
	if err != nil {
		return err
	}

	allCh := parent.allChildren()
	pos := -1
	for i, c := range allCh {
		if c == leftOff {
			pos = i
			break
		}
	}
	if pos == -1 {
		return fmt.Errorf("bplus: parent %d does not reference child %d", parentOff, leftOff)
	}

	newKeys := insertUint32At(append([]uint32(nil), parent.keys...), pos, sepKey)
	newCh := insertInt64At(allCh, pos+1, rightOff)

	if len(newKeys) <= idx.order() {
		parent.p0 = newCh[0]
		parent.children = newCh[1:]
		parent.keys = newKeys
		parent.keyCount = int32(len(newKeys))
		return idx.writeNode(parentOff, parent)
	}

	mid := len(newKeys) / 2
	promote := newKeys[mid]

	left := newInternal(idx.order())
	left.p0 = newCh[0]
	left.keys = newKeys[:mid]
	left.children = newCh[1 : mid+1]
	left.keyCount = int32(len(left.keys))
	if err := idx.writeNode(parentOff, left); err != nil {
		return err
	}

	right := newInternal(idx.order())
	right.p0 = newCh[mid+1]
	right.keys = newKeys[mid+1:]
	right.children = newCh[mid+2:]
	right.keyCount = int32(len(right.keys))
	rightParentOff, err := idx.appendNode(right)
	if err != nil {
		return err
	}

	return idx.insertIntoParent(parentOff, rightParentOff, promote, path[:len(path)-1])
}

// Delete removes the entry for key, if present. No rebalance is performed;
// under-occupancy is tolerated and the next rebuild compacts it.
func (idx *Index) Delete(key uint32) (bool, error) {
	if idx.m.root == NoPage {
		return false, nil
	}
	leafOff, _, err := idx.findLeaf(key)
	if err != nil {
		return false, err
	}
	leaf, err := idx.readNode(leafOff)
	if err != nil {
		return false, err
	}
	pos := -1
	for i, k := range leaf.keys {
		if k == key {
			pos = i
			break
		}
	}
	if pos == -1 {
		return false, nil
	}
	leaf.keys = append(leaf.keys[:pos], leaf.keys[pos+1:]...)
	leaf.values = append(leaf.values[:pos], leaf.values[pos+1:]...)
	leaf.keyCount--
	return true, idx.writeNode(leafOff, leaf)
}

func insertUint32At(s []uint32, pos int, v uint32) []uint32 {
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

func insertBytesAt(s [][]byte, pos int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

func insertInt64At(s []int64, pos int, v int64) []int64 {
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

// Stats reports counts useful for EXPLAIN ANALYZE and diagnostics.
type Stats struct {
	Order     int32
	Height    int32
	LeafCount int64
}

func (idx *Index) Stats() Stats {
	return Stats{Order: idx.m.order, Height: idx.m.height, LeafCount: idx.m.leafCount}
}
