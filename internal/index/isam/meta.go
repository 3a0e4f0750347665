package isam

import (
	"encoding/binary"
	"fmt"
	"os"
)

const metaMagic = "RISAM1"
const metaSize = 6 /*magic*/ + 8 + 1 + 8 + 4

// meta is the small fixed-record sidecar describing the shape of the index
// tree built over the data file: which node page is the root, whether that
// root is itself a leaf (bottom) index node, how many base pages the data
// file holds, and the tree height.
type meta struct {
	rootPage      int64
	rootIsLeaf    bool
	basePageCount int64
	height        int32
}

func readMeta(path string) (meta, error) {
	var m meta
	buf, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("isam: read meta: %w", err)
	}
	if len(buf) != metaSize || string(buf[0:6]) != metaMagic {
		return m, fmt.Errorf("isam: corrupt meta file %s", path)
	}
	m.rootPage = int64(binary.LittleEndian.Uint64(buf[6:14]))
	m.rootIsLeaf = buf[14] != 0
	m.basePageCount = int64(binary.LittleEndian.Uint64(buf[15:23]))
	m.height = int32(binary.LittleEndian.Uint32(buf[23:27]))
	return m, nil
}

func writeMeta(path string, m meta) error {
	buf := make([]byte, metaSize)
	copy(buf[0:6], metaMagic)
	binary.LittleEndian.PutUint64(buf[6:14], uint64(m.rootPage))
	if m.rootIsLeaf {
		buf[14] = 1
	}
	binary.LittleEndian.PutUint64(buf[15:23], uint64(m.basePageCount))
	binary.LittleEndian.PutUint32(buf[23:27], uint32(m.height))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("isam: write meta: %w", err)
	}
	return nil
}
