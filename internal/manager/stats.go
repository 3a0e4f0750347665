package manager

import (
	"ridgedb/internal/index/avl"
	"ridgedb/internal/index/bplus"
	"ridgedb/internal/index/exthash"
	"ridgedb/internal/index/isam"
	"ridgedb/internal/index/rtree"
)

// Stats is a read-only report of per-engine sizes and counters, feeding the
// REPL's .stats command.
type Stats struct {
	Records int64 // authoritative count, from the AVL

	ISAM  isam.Stats
	Hash  exthash.Stats
	AVL   avl.Stats
	BPlus bplus.Stats
	RTree rtree.Stats
}

// Stats gathers the per-engine reports.
func (m *Manager) Stats() (Stats, error) {
	avlStats, err := m.avl.Stats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Records: avlStats.Count,
		ISAM:    m.isam.Stats(),
		Hash:    m.hash.Stats(),
		AVL:     avlStats,
		BPlus:   m.bplus.Stats(),
		RTree:   m.rtree.Stats(),
	}, nil
}
