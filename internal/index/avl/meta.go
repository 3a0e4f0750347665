package avl

import (
	"encoding/binary"
	"fmt"
	"os"
)

const metaMagic = "RAVL1"
const metaSize = 5 + 8 + 8 // magic + root + count

type meta struct {
	root  int64
	count int64
}

func readMeta(path string) (meta, error) {
	var m meta
	buf, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("avl: read meta: %w", err)
	}
	if len(buf) != metaSize || string(buf[0:5]) != metaMagic {
		return m, fmt.Errorf("avl: corrupt meta file %s", path)
	}
	m.root = int64(binary.LittleEndian.Uint64(buf[5:13]))
	m.count = int64(binary.LittleEndian.Uint64(buf[13:21]))
	return m, nil
}

func writeMeta(path string, m meta) error {
	buf := make([]byte, metaSize)
	copy(buf[0:5], metaMagic)
	binary.LittleEndian.PutUint64(buf[5:13], uint64(m.root))
	binary.LittleEndian.PutUint64(buf[13:21], uint64(m.count))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("avl: write meta: %w", err)
	}
	return nil
}
