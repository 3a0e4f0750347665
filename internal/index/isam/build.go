package isam

import (
	"sort"

	"ridgedb/internal/catalog"
	"ridgedb/internal/storage/pagedfile"
)

// Build performs a full sorted rebuild of the ISAM index over records: sort
// by key, pack into base data pages, then build the multi-level index
// bottom-up over the base pages' first keys.
func Build(dataPath, nodePath, metaPath string, records []catalog.Record) (*Index, error) {
	data, err := pagedfile.Open(dataPath, DataPageSize)
	if err != nil {
		return nil, err
	}
	if err := data.Truncate(); err != nil {
		data.Close()
		return nil, err
	}

	nodes, err := pagedfile.Open(nodePath, NodePageSize)
	if err != nil {
		data.Close()
		return nil, err
	}
	if err := nodes.Truncate(); err != nil {
		data.Close()
		nodes.Close()
		return nil, err
	}

	sorted := make([]catalog.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return catalog.KeyOf(sorted[i]).Less(catalog.KeyOf(sorted[j]))
	})

	type levelEntry struct {
		key  catalog.IsamKey
		page int64
	}

	var baseEntries []levelEntry
	for i := 0; i < len(sorted); i += BlockFactor {
		end := i + BlockFactor
		if end > len(sorted) {
			end = len(sorted)
		}
		page := newDataPage()
		for _, r := range sorted[i:end] {
			page.append(catalog.EncodeRecord(r))
		}
		off, err := data.AppendPage(page.encode())
		if err != nil {
			data.Close()
			nodes.Close()
			return nil, err
		}
		baseEntries = append(baseEntries, levelEntry{key: catalog.KeyOf(sorted[i]), page: off})
	}

	idx := &Index{dataPath: dataPath, nodePath: nodePath, metaPath: metaPath, data: data, nodes: nodes}

	if len(baseEntries) == 0 {
		idx.m = meta{rootPage: NoPage, rootIsLeaf: true, basePageCount: 0, height: 0}
		if err := writeMeta(metaPath, idx.m); err != nil {
			return nil, err
		}
		return idx, nil
	}

	// Build the bottom ("leaf") index level over base pages, then repeat
	// over each level's first keys until one root node remains.
	level := baseEntries
	height := int32(1)
	isLeafLevel := true
	for {
		var nextLevel []levelEntry
		var prevNodeOff int64 = NoPage
		for i := 0; i < len(level); i += maxKeys {
			end := i + maxKeys
			if end > len(level) {
				end = len(level)
			}
			n := newIndexNode(isLeafLevel)
			n.p0 = level[i].page
			for j := i; j < end; j++ {
				if j == i {
					continue
				}
				n.keys[n.keyCount] = level[j].key
				n.ptrs[n.keyCount] = level[j].page
				n.keyCount++
			}
			off, err := nodes.AppendPage(n.encode())
			if err != nil {
				return nil, err
			}
			if prevNodeOff != NoPage {
				prev, err := readIndexNode(nodes, prevNodeOff)
				if err != nil {
					return nil, err
				}
				prev.nextSibling = off
				if err := nodes.WritePage(prevNodeOff, prev.encode()); err != nil {
					return nil, err
				}
			}
			prevNodeOff = off
			nextLevel = append(nextLevel, levelEntry{key: level[i].key, page: off})
		}
		if len(nextLevel) == 1 {
			idx.m = meta{rootPage: nextLevel[0].page, rootIsLeaf: isLeafLevel, basePageCount: int64(len(baseEntries)), height: height}
			break
		}
		level = nextLevel
		isLeafLevel = false
		height++
	}

	if err := writeMeta(metaPath, idx.m); err != nil {
		return nil, err
	}
	return idx, nil
}

func readIndexNode(nodes *pagedfile.File, page int64) (*indexNode, error) {
	buf, err := nodes.ReadPage(page)
	if err != nil {
		return nil, err
	}
	return decodeIndexNode(buf)
}
