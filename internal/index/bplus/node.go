// Package bplus implements a persistent B+Tree keyed by restaurant id:
// fixed order M, linked leaves for ascending range scans, insert-time
// splits that promote a separator key, and delete without rebalance
// (under-occupied leaves are compacted at the next rebuild). Node pages are
// sized for the configured order so a tiny order isn't buried in mostly
// zero-padded bytes.
package bplus

import (
	"encoding/binary"
	"fmt"

	"ridgedb/internal/catalog"
)

// NoPage marks the absence of a child, sibling, or root pointer.
const NoPage int64 = -1

// nodeHeaderSize is isLeaf(1) + keyCount(4) + nextLeaf(8) + p0(8).
const nodeHeaderSize = 1 + 4 + 8 + 8

// nodePageSize returns the fixed page size for a tree of the given order:
// room for `order` keys plus, in the same slot region, either `order`
// fixed-width catalog records (leaf values) or `order+1` child offsets
// (internal pointers) — whichever is larger, so leaf and internal nodes
// share one page size: each page is one serialised node.
func nodePageSize(order int) int {
	keysRegion := order * 4
	slotRegion := order * catalog.RecordSize
	if ptrRegion := (order + 1) * 8; ptrRegion > slotRegion {
		slotRegion = ptrRegion
	}
	return nodeHeaderSize + keysRegion + slotRegion
}

// node is the decoded in-memory form of one B+Tree page. Leaves use
// nextLeaf + values; internal nodes use p0 + children. keys is always
// len==keyCount (capacity order).
type node struct {
	order    int
	isLeaf   bool
	keyCount int32
	nextLeaf int64
	p0       int64
	keys     []uint32
	children []int64  // internal only, len == keyCount
	values   [][]byte // leaf only, len == keyCount, each catalog.RecordSize bytes
}

func newLeaf(order int) *node {
	return &node{order: order, isLeaf: true, nextLeaf: NoPage, p0: NoPage}
}

func newInternal(order int) *node {
	return &node{order: order, isLeaf: false, nextLeaf: NoPage, p0: NoPage}
}

func (n *node) full() bool {
	return int(n.keyCount) >= n.order
}

func (n *node) encode() []byte {
	buf := make([]byte, nodePageSize(n.order))
	if n.isLeaf {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(n.keyCount))
	binary.LittleEndian.PutUint64(buf[5:13], uint64(n.nextLeaf))
	binary.LittleEndian.PutUint64(buf[13:21], uint64(n.p0))

	off := nodeHeaderSize
	for i := 0; i < int(n.keyCount); i++ {
		binary.LittleEndian.PutUint32(buf[off+i*4:], n.keys[i])
	}
	off += n.order * 4

	if n.isLeaf {
		for i := 0; i < int(n.keyCount); i++ {
			copy(buf[off+i*catalog.RecordSize:off+(i+1)*catalog.RecordSize], n.values[i])
		}
	} else {
		for i := 0; i < int(n.keyCount); i++ {
			binary.LittleEndian.PutUint64(buf[off+i*8:], uint64(n.children[i]))
		}
	}
	return buf
}

func decodeNode(buf []byte, order int) (*node, error) {
	if len(buf) != nodePageSize(order) {
		return nil, fmt.Errorf("bplus: node buffer is %d bytes, want %d", len(buf), nodePageSize(order))
	}
	n := &node{order: order}
	n.isLeaf = buf[0] != 0
	n.keyCount = int32(binary.LittleEndian.Uint32(buf[1:5]))
	n.nextLeaf = int64(binary.LittleEndian.Uint64(buf[5:13]))
	n.p0 = int64(binary.LittleEndian.Uint64(buf[13:21]))
	if n.keyCount < 0 || int(n.keyCount) > order {
		return nil, fmt.Errorf("bplus: node key count %d out of range [0,%d]", n.keyCount, order)
	}

	off := nodeHeaderSize
	n.keys = make([]uint32, n.keyCount)
	for i := 0; i < int(n.keyCount); i++ {
		n.keys[i] = binary.LittleEndian.Uint32(buf[off+i*4:])
	}
	off += order * 4

	if n.isLeaf {
		n.values = make([][]byte, n.keyCount)
		for i := 0; i < int(n.keyCount); i++ {
			v := make([]byte, catalog.RecordSize)
			copy(v, buf[off+i*catalog.RecordSize:off+(i+1)*catalog.RecordSize])
			n.values[i] = v
		}
	} else {
		n.children = make([]int64, n.keyCount)
		for i := 0; i < int(n.keyCount); i++ {
			n.children[i] = int64(binary.LittleEndian.Uint64(buf[off+i*8:]))
		}
	}
	return n, nil
}

// childFor returns the child offset to descend into for key, per the
// right-open invariant keys[i-1] <= k in children[i] < keys[i].
func (n *node) childFor(key uint32) int64 {
	i := 0
	for i < int(n.keyCount) && key >= n.keys[i] {
		i++
	}
	if i == 0 {
		return n.p0
	}
	return n.children[i-1]
}

// allChildren returns the full children list, p0 first, for split math.
func (n *node) allChildren() []int64 {
	out := make([]int64, 0, n.keyCount+1)
	out = append(out, n.p0)
	out = append(out, n.children...)
	return out
}
