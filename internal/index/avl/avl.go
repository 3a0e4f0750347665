package avl

import (
	"fmt"

	"ridgedb/internal/catalog"
	"ridgedb/internal/dberrors"
	"ridgedb/internal/storage/pagedfile"
)

// Index is an open disk-resident AVL tree keyed by restaurant id, doubling
// as the scannable payload store for non-id numeric predicates: a heap
// with a tree on top.
type Index struct {
	nodePath, dataPath, metaPath string
	nodes, payload               *pagedfile.File
	m                            meta
}

// Open reopens a previously built index.
func Open(nodePath, dataPath, metaPath string) (*Index, error) {
	m, err := readMeta(metaPath)
	if err != nil {
		return nil, err
	}
	nodes, err := pagedfile.Open(nodePath, nodeRecordSize)
	if err != nil {
		return nil, err
	}
	payload, err := pagedfile.Open(dataPath, catalog.RecordSize)
	if err != nil {
		nodes.Close()
		return nil, err
	}
	return &Index{nodePath: nodePath, dataPath: dataPath, metaPath: metaPath, nodes: nodes, payload: payload, m: m}, nil
}

// Build performs a fresh build by inserting records one at a time, letting
// the ordinary insert/rotate path establish balance.
func Build(nodePath, dataPath, metaPath string, records []catalog.Record) (*Index, error) {
	nodes, err := pagedfile.Open(nodePath, nodeRecordSize)
	if err != nil {
		return nil, err
	}
	if err := nodes.Truncate(); err != nil {
		nodes.Close()
		return nil, err
	}
	payload, err := pagedfile.Open(dataPath, catalog.RecordSize)
	if err != nil {
		nodes.Close()
		return nil, err
	}
	if err := payload.Truncate(); err != nil {
		nodes.Close()
		payload.Close()
		return nil, err
	}

	idx := &Index{nodePath: nodePath, dataPath: dataPath, metaPath: metaPath, nodes: nodes, payload: payload, m: meta{root: NoNode}}
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

// Rebuild discards the current tree and heap and reinserts every record
// from scratch.
func (idx *Index) Rebuild(records []catalog.Record) error {
	idx.Close()
	rebuilt, err := Build(idx.nodePath, idx.dataPath, idx.metaPath, records)
	if err != nil {
		return err
	}
	*idx = *rebuilt
	return nil
}

// Close releases the underlying file handles.
func (idx *Index) Close() error {
	err1 := idx.nodes.Close()
	err2 := idx.payload.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (idx *Index) readNode(pos int64) (*node, error) {
	buf, err := idx.nodes.ReadPage(pos)
	if err != nil {
		return nil, err
	}
	return decodeNode(buf)
}

func (idx *Index) writeNode(pos int64, n *node) error {
	return idx.nodes.WritePage(pos, n.encode())
}

func (idx *Index) appendNode(n *node) (int64, error) {
	return idx.nodes.AppendPage(n.encode())
}

func (idx *Index) readPayload(off int64) (catalog.Record, error) {
	buf, err := idx.payload.ReadPage(off)
	if err != nil {
		return catalog.Record{}, err
	}
	return catalog.DecodeRecord(buf)
}

func (idx *Index) appendPayload(r catalog.Record) (int64, error) {
	return idx.payload.AppendPage(catalog.EncodeRecord(r))
}

func (idx *Index) height(pos int64) (int32, error) {
	if pos == NoNode {
		return 0, nil
	}
	n, err := idx.readNode(pos)
	if err != nil {
		return 0, err
	}
	return n.height, nil
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// recomputeHeight rereads pos, recomputes its height from its children's
// heights, and writes it back.
func (idx *Index) recomputeHeight(pos int64) error {
	n, err := idx.readNode(pos)
	if err != nil {
		return err
	}
	lh, err := idx.height(n.left)
	if err != nil {
		return err
	}
	rh, err := idx.height(n.right)
	if err != nil {
		return err
	}
	n.height = 1 + max32(lh, rh)
	return idx.writeNode(pos, n)
}

// rotateRight performs the classic single right rotation, returning the new
// subtree root position.
func (idx *Index) rotateRight(pos int64) (int64, error) {
	n, err := idx.readNode(pos)
	if err != nil {
		return NoNode, err
	}
	leftPos := n.left
	left, err := idx.readNode(leftPos)
	if err != nil {
		return NoNode, err
	}
	n.left = left.right
	left.right = pos
	if err := idx.writeNode(pos, n); err != nil {
		return NoNode, err
	}
	if err := idx.recomputeHeight(pos); err != nil {
		return NoNode, err
	}
	if err := idx.writeNode(leftPos, left); err != nil {
		return NoNode, err
	}
	if err := idx.recomputeHeight(leftPos); err != nil {
		return NoNode, err
	}
	return leftPos, nil
}

// rotateLeft is rotateRight's mirror image.
func (idx *Index) rotateLeft(pos int64) (int64, error) {
	n, err := idx.readNode(pos)
	if err != nil {
		return NoNode, err
	}
	rightPos := n.right
	right, err := idx.readNode(rightPos)
	if err != nil {
		return NoNode, err
	}
	n.right = right.left
	right.left = pos
	if err := idx.writeNode(pos, n); err != nil {
		return NoNode, err
	}
	if err := idx.recomputeHeight(pos); err != nil {
		return NoNode, err
	}
	if err := idx.writeNode(rightPos, right); err != nil {
		return NoNode, err
	}
	if err := idx.recomputeHeight(rightPos); err != nil {
		return NoNode, err
	}
	return rightPos, nil
}

// rebalance recomputes pos's height and, if its balance factor has fallen
// outside [-1,1], applies the matching LL/LR/RR/RL rotation so every
// node keeps |h(left)-h(right)| <= 1.
func (idx *Index) rebalance(pos int64) (int64, error) {
	n, err := idx.readNode(pos)
	if err != nil {
		return NoNode, err
	}
	lh, err := idx.height(n.left)
	if err != nil {
		return NoNode, err
	}
	rh, err := idx.height(n.right)
	if err != nil {
		return NoNode, err
	}
	n.height = 1 + max32(lh, rh)
	if err := idx.writeNode(pos, n); err != nil {
		return NoNode, err
	}
	balance := lh - rh

	switch {
	case balance > 1:
		left, err := idx.readNode(n.left)
		if err != nil {
			return NoNode, err
		}
		llh, err := idx.height(left.left)
		if err != nil {
			return NoNode, err
		}
		lrh, err := idx.height(left.right)
		if err != nil {
			return NoNode, err
		}
		if llh < lrh {
			newLeft, err := idx.rotateLeft(n.left)
			if err != nil {
				return NoNode, err
			}
			n.left = newLeft
			if err := idx.writeNode(pos, n); err != nil {
				return NoNode, err
			}
		}
		return idx.rotateRight(pos)
	case balance < -1:
		right, err := idx.readNode(n.right)
		if err != nil {
			return NoNode, err
		}
		rrh, err := idx.height(right.right)
		if err != nil {
			return NoNode, err
		}
		rlh, err := idx.height(right.left)
		if err != nil {
			return NoNode, err
		}
		if rrh < rlh {
			newRight, err := idx.rotateRight(n.right)
			if err != nil {
				return NoNode, err
			}
			n.right = newRight
			if err := idx.writeNode(pos, n); err != nil {
				return NoNode, err
			}
		}
		return idx.rotateLeft(pos)
	default:
		return pos, nil
	}
}

// insertAt inserts (id, dataOff) into the subtree rooted at pos by
// recursive BST insert, rebalancing on the way back up. A duplicate id
// overwrites the existing node's payload pointer in place. (ISAM differs: it
// stores an equal key as a second entry.)
func (idx *Index) insertAt(pos int64, id uint32, dataOff int64) (int64, bool, error) {
	if pos == NoNode {
		n := &node{id: id, left: NoNode, right: NoNode, height: 1, dataOff: dataOff}
		newPos, err := idx.appendNode(n)
		return newPos, true, err
	}
	n, err := idx.readNode(pos)
	if err != nil {
		return NoNode, false, err
	}
	switch {
	case id < n.id:
		newLeft, created, err := idx.insertAt(n.left, id, dataOff)
		if err != nil {
			return NoNode, false, err
		}
		n.left = newLeft
		if err := idx.writeNode(pos, n); err != nil {
			return NoNode, false, err
		}
		newPos, err := idx.rebalance(pos)
		return newPos, created, err
	case id > n.id:
		newRight, created, err := idx.insertAt(n.right, id, dataOff)
		if err != nil {
			return NoNode, false, err
		}
		n.right = newRight
		if err := idx.writeNode(pos, n); err != nil {
			return NoNode, false, err
		}
		newPos, err := idx.rebalance(pos)
		return newPos, created, err
	default:
		n.dataOff = dataOff
		return pos, false, idx.writeNode(pos, n)
	}
}

// Insert adds r, keyed by its restaurant id.
func (idx *Index) Insert(r catalog.Record) error {
	dataOff, err := idx.appendPayload(r)
	if err != nil {
		return err
	}
	newRoot, created, err := idx.insertAt(idx.m.root, r.RestaurantID, dataOff)
	if err != nil {
		return err
	}
	idx.m.root = newRoot
	if created {
		idx.m.count++
	}
	return writeMeta(idx.metaPath, idx.m)
}

func (idx *Index) minNode(pos int64) (int64, error) {
	for {
		n, err := idx.readNode(pos)
		if err != nil {
			return NoNode, err
		}
		if n.left == NoNode {
			return pos, nil
		}
		pos = n.left
	}
}

// deleteAt removes id from the subtree rooted at pos, substituting the
// in-order successor when the node has two children, and rebalances on the
// way back.
func (idx *Index) deleteAt(pos int64, id uint32) (int64, bool, error) {
	if pos == NoNode {
		return NoNode, false, nil
	}
	n, err := idx.readNode(pos)
	if err != nil {
		return NoNode, false, err
	}
	switch {
	case id < n.id:
		newLeft, deleted, err := idx.deleteAt(n.left, id)
		if err != nil || !deleted {
			return pos, deleted, err
		}
		n.left = newLeft
		if err := idx.writeNode(pos, n); err != nil {
			return NoNode, false, err
		}
		newPos, err := idx.rebalance(pos)
		return newPos, true, err
	case id > n.id:
		newRight, deleted, err := idx.deleteAt(n.right, id)
		if err != nil || !deleted {
			return pos, deleted, err
		}
		n.right = newRight
		if err := idx.writeNode(pos, n); err != nil {
			return NoNode, false, err
		}
		newPos, err := idx.rebalance(pos)
		return newPos, true, err
	default:
		if n.left == NoNode || n.right == NoNode {
			child := n.left
			if child == NoNode {
				child = n.right
			}
			return child, true, nil
		}
		succPos, err := idx.minNode(n.right)
		if err != nil {
			return NoNode, false, err
		}
		succ, err := idx.readNode(succPos)
		if err != nil {
			return NoNode, false, err
		}
		n.id = succ.id
		n.dataOff = succ.dataOff
		newRight, _, err := idx.deleteAt(n.right, succ.id)
		if err != nil {
			return NoNode, false, err
		}
		n.right = newRight
		if err := idx.writeNode(pos, n); err != nil {
			return NoNode, false, err
		}
		newPos, err := idx.rebalance(pos)
		return newPos, true, err
	}
}

// Delete removes the node keyed by id, if present.
func (idx *Index) Delete(id uint32) (bool, error) {
	newRoot, deleted, err := idx.deleteAt(idx.m.root, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}
	idx.m.root = newRoot
	idx.m.count--
	return true, writeMeta(idx.metaPath, idx.m)
}

// Search looks up a record by restaurant id.
func (idx *Index) Search(id uint32) (catalog.Record, bool, error) {
	pos := idx.m.root
	for pos != NoNode {
		n, err := idx.readNode(pos)
		if err != nil {
			return catalog.Record{}, false, err
		}
		switch {
		case id == n.id:
			rec, err := idx.readPayload(n.dataOff)
			return rec, true, err
		case id < n.id:
			pos = n.left
		default:
			pos = n.right
		}
	}
	return catalog.Record{}, false, nil
}

func (idx *Index) inorder(pos int64, visit func(catalog.Record) error) error {
	if pos == NoNode {
		return nil
	}
	n, err := idx.readNode(pos)
	if err != nil {
		return err
	}
	if err := idx.inorder(n.left, visit); err != nil {
		return err
	}
	rec, err := idx.readPayload(n.dataOff)
	if err != nil {
		return err
	}
	if err := visit(rec); err != nil {
		return err
	}
	return idx.inorder(n.right, visit)
}

// ScanAll returns every record in ascending id order via in-order
// traversal. Used by the manager's rebuild path.
func (idx *Index) ScanAll() ([]catalog.Record, error) {
	var out []catalog.Record
	err := idx.inorder(idx.m.root, func(r catalog.Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// attrValue extracts the numeric value of a supported secondary attribute
// from a record.
func attrValue(r catalog.Record, attr string) (float64, bool) {
	switch attr {
	case "aggregate_rating", "rating":
		return r.AggregateRating, true
	case "votes":
		return float64(r.Votes), true
	case "avg_cost_for_two", "average_cost_for_two":
		return float64(r.AvgCostForTwo), true
	case "price_range":
		return float64(r.PriceRange), true
	default:
		return 0, false
	}
}

func compare(op string, v, target float64) (bool, error) {
	switch op {
	case "=":
		return v == target, nil
	case ">":
		return v > target, nil
	case "<":
		return v < target, nil
	case ">=":
		return v >= target, nil
	case "<=":
		return v <= target, nil
	default:
		return false, fmt.Errorf("avl: unsupported comparison operator %q: %w", op, dberrors.ErrSchema)
	}
}

// SearchComparison filters every record by attr op v via full in-order
// traversal: the tree is keyed on id, so
// non-id numeric predicates are answered by scanning the heap it anchors.
func (idx *Index) SearchComparison(attr, op string, v float64) ([]catalog.Record, error) {
	all, err := idx.ScanAll()
	if err != nil {
		return nil, err
	}
	var out []catalog.Record
	for _, r := range all {
		val, ok := attrValue(r, attr)
		if !ok {
			return nil, fmt.Errorf("avl: unknown attribute %q: %w", attr, dberrors.ErrSchema)
		}
		match, err := compare(op, val, v)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, r)
		}
	}
	return out, nil
}

// SearchBetween filters every record by attr in [lo, hi] inclusive.
func (idx *Index) SearchBetween(attr string, lo, hi float64) ([]catalog.Record, error) {
	all, err := idx.ScanAll()
	if err != nil {
		return nil, err
	}
	var out []catalog.Record
	for _, r := range all {
		val, ok := attrValue(r, attr)
		if !ok {
			return nil, fmt.Errorf("avl: unknown attribute %q: %w", attr, dberrors.ErrSchema)
		}
		if val >= lo && val <= hi {
			out = append(out, r)
		}
	}
	return out, nil
}

// Stats reports counts useful for EXPLAIN ANALYZE and diagnostics.
type Stats struct {
	Count  int64
	Height int32
}

func (idx *Index) Stats() (Stats, error) {
	h, err := idx.height(idx.m.root)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Count: idx.m.count, Height: h}, nil
}
