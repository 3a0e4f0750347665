package bplus

import (
	"encoding/binary"
	"fmt"
	"os"
)

const metaMagic = "RBPL1"
const metaSize = 5 + 8 + 4 + 4 + 8 // magic + root + order + height + leafCount

// meta is the sidecar recording the root position ("Root
// position persisted in a sidecar metadata file"), plus the order the node
// file was built with (so Open can recompute the fixed node page size) and
// bookkeeping for Stats.
type meta struct {
	root      int64
	order     int32
	height    int32
	leafCount int64
}

func readMeta(path string) (meta, error) {
	var m meta
	buf, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("bplus: read meta: %w", err)
	}
	if len(buf) != metaSize || string(buf[0:5]) != metaMagic {
		return m, fmt.Errorf("bplus: corrupt meta file %s", path)
	}
	m.root = int64(binary.LittleEndian.Uint64(buf[5:13]))
	m.order = int32(binary.LittleEndian.Uint32(buf[13:17]))
	m.height = int32(binary.LittleEndian.Uint32(buf[17:21]))
	m.leafCount = int64(binary.LittleEndian.Uint64(buf[21:29]))
	return m, nil
}

func writeMeta(path string, m meta) error {
	buf := make([]byte, metaSize)
	copy(buf[0:5], metaMagic)
	binary.LittleEndian.PutUint64(buf[5:13], uint64(m.root))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(m.order))
	binary.LittleEndian.PutUint32(buf[17:21], uint32(m.height))
	binary.LittleEndian.PutUint64(buf[21:29], uint64(m.leafCount))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("bplus: write meta: %w", err)
	}
	return nil
}
