package isam

import (
	"encoding/binary"
	"fmt"
	"ridgedb/internal/catalog"
)

// Fanout bounds an index node's children: each node holds up to F-1 keys and F
// children (p0 plus one child pointer per key). The link to the next node on
// the same level is the separate next_sibling field.
const Fanout = 64

const maxKeys = Fanout - 1

// nodeHeaderSize is is_leaf(1) + key_count(4) + p0(8) + next_sibling(8).
const nodeHeaderSize = 1 + 4 + 8 + 8

// NodePageSize is the fixed page size of the index-node file.
const NodePageSize = nodeHeaderSize + maxKeys*catalog.IsamKeySize + maxKeys*8

// indexNode is one page of the multi-level index above the data file.
// Descent rule: if target < keys[0], follow p0; otherwise follow ptrs[i]
// where i is the largest index with keys[i] <= target. isLeaf marks whether
// ptrs/p0 address data pages (bottom index level) or further index nodes.
type indexNode struct {
	isLeaf      bool
	keyCount    int32
	p0          int64
	nextSibling int64
	keys        [maxKeys]catalog.IsamKey
	ptrs        [maxKeys]int64
}

func newIndexNode(isLeaf bool) *indexNode {
	return &indexNode{isLeaf: isLeaf, p0: NoPage, nextSibling: NoPage}
}

func (n *indexNode) encode() []byte {
	buf := make([]byte, NodePageSize)
	if n.isLeaf {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(n.keyCount))
	binary.LittleEndian.PutUint64(buf[5:13], uint64(n.p0))
	binary.LittleEndian.PutUint64(buf[13:21], uint64(n.nextSibling))

	off := nodeHeaderSize
	for i := 0; i < maxKeys; i++ {
		copy(buf[off:off+catalog.IsamKeySize], n.keys[i].Bytes())
		off += catalog.IsamKeySize
	}
	for i := 0; i < maxKeys; i++ {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(n.ptrs[i]))
		off += 8
	}
	return buf
}

func decodeIndexNode(buf []byte) (*indexNode, error) {
	if len(buf) != NodePageSize {
		return nil, fmt.Errorf("isam: index node buffer is %d bytes, want %d", len(buf), NodePageSize)
	}
	n := &indexNode{}
	n.isLeaf = buf[0] != 0
	n.keyCount = int32(binary.LittleEndian.Uint32(buf[1:5]))
	n.p0 = int64(binary.LittleEndian.Uint64(buf[5:13]))
	n.nextSibling = int64(binary.LittleEndian.Uint64(buf[13:21]))
	if n.keyCount < 0 || int(n.keyCount) > maxKeys {
		return nil, fmt.Errorf("isam: index node key count %d out of range [0,%d]", n.keyCount, maxKeys)
	}

	off := nodeHeaderSize
	for i := 0; i < maxKeys; i++ {
		k, err := catalog.IsamKeyFromBytes(buf[off : off+catalog.IsamKeySize])
		if err != nil {
			return nil, err
		}
		n.keys[i] = k
		off += catalog.IsamKeySize
	}
	for i := 0; i < maxKeys; i++ {
		n.ptrs[i] = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
	}
	return n, nil
}

// childFor returns the child pointer to follow when descending toward key.
// This never overshoots: the returned child's subtree is the unique one
// that can contain key; the descent never overshoots a present record.
func (n *indexNode) childFor(key catalog.IsamKey) int64 {
	if n.keyCount == 0 || key.Less(n.keys[0]) {
		return n.p0
	}
	child := n.ptrs[0]
	for i := 0; i < int(n.keyCount); i++ {
		if n.keys[i].Less(key) || n.keys[i] == key {
			child = n.ptrs[i]
		} else {
			break
		}
	}
	return child
}

// full reports whether the node has no room for another (key, ptr) pair.
func (n *indexNode) full() bool {
	return int(n.keyCount) >= maxKeys
}
