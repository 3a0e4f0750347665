// Package isam implements the static multi-level ISAM index:
// base data pages in sorted key order plus per-base overflow chains, with a
// bottom-up multi-level index of (first-key, child) entries built over the
// base pages so a lookup takes O(log_F(basePageCount)) descents plus a short
// chain walk.
package isam

import (
	"fmt"

	"ridgedb/internal/catalog"
	"ridgedb/internal/dberrors"
	"ridgedb/internal/storage/pagedfile"
)

// keyPrefixLen is the (name, city) portion of an IsamKey, excluding the
// trailing zero-padded id field — used to match "same restaurant, id
// unknown" lookups and range scans.
const keyPrefixLen = catalog.IsamKeySize - 10

// Index is an open ISAM index over a data file and its index-node file.
type Index struct {
	dataPath, nodePath, metaPath string
	data, nodes                 *pagedfile.File
	m                           meta
}

// Open reopens a previously built index.
func Open(dataPath, nodePath, metaPath string) (*Index, error) {
	m, err := readMeta(metaPath)
	if err != nil {
		return nil, err
	}
	data, err := pagedfile.Open(dataPath, DataPageSize)
	if err != nil {
		return nil, err
	}
	nodes, err := pagedfile.Open(nodePath, NodePageSize)
	if err != nil {
		data.Close()
		return nil, err
	}
	return &Index{dataPath: dataPath, nodePath: nodePath, metaPath: metaPath, data: data, nodes: nodes, m: m}, nil
}

// Close releases the underlying file handles.
func (idx *Index) Close() error {
	err1 := idx.data.Close()
	err2 := idx.nodes.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Rebuild discards the current tree and rebuilds from scratch over
// records, compacting overflow chains away.
func (idx *Index) Rebuild(records []catalog.Record) error {
	idx.Close()
	rebuilt, err := Build(idx.dataPath, idx.nodePath, idx.metaPath, records)
	if err != nil {
		return err
	}
	*idx = *rebuilt
	return nil
}

func (idx *Index) findBasePage(key catalog.IsamKey) (int64, error) {
	if idx.m.rootPage == NoPage {
		return NoPage, nil
	}
	page := idx.m.rootPage
	for {
		node, err := readIndexNode(idx.nodes, page)
		if err != nil {
			return NoPage, err
		}
		child := node.childFor(key)
		if node.isLeaf {
			return child, nil
		}
		if child == NoPage {
			return NoPage, nil
		}
		page = child
	}
}

// chainRecords walks the base page and its overflow chain, calling visit
// for each (page offset, record index, record). visit returning false stops
// the walk early.
func (idx *Index) chainRecords(basePage int64, visit func(page int64, i int, rec catalog.Record) (bool, error)) error {
	page := basePage
	for page != NoPage {
		buf, err := idx.data.ReadPage(page)
		if err != nil {
			return err
		}
		dp, err := decodeDataPage(buf)
		if err != nil {
			return err
		}
		for i := 0; i < int(dp.count); i++ {
			rec, err := catalog.DecodeRecord(dp.records[i])
			if err != nil {
				return err
			}
			cont, err := visit(page, i, rec)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		page = dp.nextPage
	}
	return nil
}

// Search returns the exact (name, city, id) record if present.
func (idx *Index) Search(name, city string, id uint64) (catalog.Record, bool, error) {
	key := catalog.MakeIsamKey(name, city, id)
	basePage, err := idx.findBasePage(key)
	if err != nil {
		return catalog.Record{}, false, err
	}
	var found catalog.Record
	var ok bool
	err = idx.chainRecords(basePage, func(_ int64, _ int, rec catalog.Record) (bool, error) {
		if catalog.KeyOf(rec) == key {
			found, ok = rec, true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return catalog.Record{}, false, err
	}
	return found, ok, nil
}

// SearchAllByNameCity returns every record matching (name, city) regardless
// of id. It first walks the base-page range the index descent selects; if
// that finds nothing, it falls back to a flat sweep of every page matching
// on the normalised (name, city) prefix alone, so a record written before
// key normalisation was tightened — and therefore sitting in a page the
// descent never reaches — stays findable.
func (idx *Index) SearchAllByNameCity(name, city string) ([]catalog.Record, error) {
	lo := catalog.MakeIsamKey(name, city, 0)
	hi := catalog.MakeIsamKey(name, city, catalog.SentinelID)
	matches, err := idx.RangeScan(lo, hi)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}
	return idx.scanByPrefix(lo.Bytes()[:keyPrefixLen])
}

// SearchByNameCity finds the first record matching (name, city) regardless
// of id, including the tolerant full-scan fallback.
func (idx *Index) SearchByNameCity(name, city string) (catalog.Record, bool, error) {
	matches, err := idx.SearchAllByNameCity(name, city)
	if err != nil || len(matches) == 0 {
		return catalog.Record{}, false, err
	}
	return matches[0], true, nil
}

// scanByPrefix sweeps every page of the data file — base, overflow, and
// orphaned alike — collecting records whose normalised (name, city) key
// prefix matches.
func (idx *Index) scanByPrefix(prefix []byte) ([]catalog.Record, error) {
	var out []catalog.Record
	n := idx.data.PageCount()
	for page := int64(0); page < n; page++ {
		buf, err := idx.data.ReadPage(page)
		if err != nil {
			return nil, err
		}
		dp, err := decodeDataPage(buf)
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(dp.count); i++ {
			rec, err := catalog.DecodeRecord(dp.records[i])
			if err != nil {
				return nil, err
			}
			rk := catalog.KeyOf(rec).Bytes()
			if string(rk[:keyPrefixLen]) == string(prefix) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// RangeScan returns every record whose key falls in [lo, hi]: descend to
// the base page that would hold lo, then walk base pages in file order
// (base pages occupy the first basePageCount slots of the data file, so
// the forward walk never lands on an overflow page), scanning each base's
// overflow chain along the way, and stop once a base's first key passes hi.
func (idx *Index) RangeScan(lo, hi catalog.IsamKey) ([]catalog.Record, error) {
	start, err := idx.findBasePage(lo)
	if err != nil {
		return nil, err
	}
	if start == NoPage {
		return nil, nil
	}
	var out []catalog.Record
	for page := start; page < idx.m.basePageCount; page++ {
		var firstKey catalog.IsamKey
		haveFirst := false
		err := idx.chainRecords(page, func(p int64, i int, rec catalog.Record) (bool, error) {
			k := catalog.KeyOf(rec)
			if p == page && i == 0 {
				firstKey, haveFirst = k, true
			}
			if (!k.Less(lo)) && (k.Less(hi) || k == hi) {
				out = append(out, rec)
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		// The chain just scanned may still hold in-range keys below the
		// base's first key, so the bound check comes after the scan.
		if haveFirst && hi.Less(firstKey) {
			break
		}
	}
	return out, nil
}

// Insert adds r to the index, appending to its base page in sorted order or
// to an overflow page when the base page is full. An existing entry with an
// equal key is not replaced: the new record is stored beside it as a second
// entry.
func (idx *Index) Insert(r catalog.Record) error {
	key := catalog.KeyOf(r)
	basePage, err := idx.findBasePage(key)
	if err != nil {
		return err
	}
	if basePage == NoPage {
		return fmt.Errorf("isam: insert into empty index: %w", dberrors.ErrIO)
	}

	rec := catalog.EncodeRecord(r)

	buf, err := idx.data.ReadPage(basePage)
	if err != nil {
		return err
	}
	base, err := decodeDataPage(buf)
	if err != nil {
		return err
	}
	if !base.full() {
		insertSorted(base, rec)
		if err := idx.data.WritePage(basePage, base.encode()); err != nil {
			return err
		}
		if base.records[0] != nil {
			if newKey, err := catalog.DecodeRecord(base.records[0]); err == nil {
				return idx.updateLeafEntry(basePage, catalog.KeyOf(newKey))
			}
		}
		return nil
	}

	// Base page full: walk the overflow chain for room, else append a new
	// overflow page.
	page := basePage
	for {
		buf, err := idx.data.ReadPage(page)
		if err != nil {
			return err
		}
		dp, err := decodeDataPage(buf)
		if err != nil {
			return err
		}
		if dp.nextPage == NoPage {
			if !dp.full() {
				insertSorted(dp, rec)
				return idx.data.WritePage(page, dp.encode())
			}
			overflow := newDataPage()
			overflow.append(rec)
			off, err := idx.data.AppendPage(overflow.encode())
			if err != nil {
				return err
			}
			dp.nextPage = off
			return idx.data.WritePage(page, dp.encode())
		}
		if !dp.full() {
			insertSorted(dp, rec)
			return idx.data.WritePage(page, dp.encode())
		}
		page = dp.nextPage
	}
}

func insertSorted(dp *dataPage, rec []byte) {
	key, err := catalog.DecodeRecord(rec)
	var k catalog.IsamKey
	if err == nil {
		k = catalog.KeyOf(key)
	}
	pos := int(dp.count)
	for i := 0; i < int(dp.count); i++ {
		existing, err := catalog.DecodeRecord(dp.records[i])
		if err == nil && k.Less(catalog.KeyOf(existing)) {
			pos = i
			break
		}
	}
	for i := int(dp.count); i > pos; i-- {
		dp.records[i] = dp.records[i-1]
	}
	dp.records[pos] = rec
	dp.count++
}

// updateLeafEntry rewrites the bottom index level's entry for basePage to
// newKey, when an insert changes the page's first key.
func (idx *Index) updateLeafEntry(basePage int64, newKey catalog.IsamKey) error {
	page := idx.m.rootPage
	for page != NoPage {
		node, err := readIndexNode(idx.nodes, page)
		if err != nil {
			return err
		}
		if node.isLeaf {
			for i := 0; i < int(node.keyCount); i++ {
				if node.ptrs[i] == basePage {
					node.keys[i] = newKey
					return idx.nodes.WritePage(page, node.encode())
				}
			}
			// basePage is reached via p0 (no stored key to rewrite).
			return nil
		}
		next := node.childFor(newKey)
		if next == NoPage {
			return nil
		}
		page = next
	}
	return nil
}

// Delete removes the exact (name, city, id) record, compacting its page and
// unlinking any overflow page left empty.
func (idx *Index) Delete(name, city string, id uint64) error {
	key := catalog.MakeIsamKey(name, city, id)
	basePage, err := idx.findBasePage(key)
	if err != nil {
		return err
	}
	if basePage == NoPage {
		return dberrors.ErrNotFound
	}

	prevPage := int64(NoPage)
	page := basePage
	for page != NoPage {
		buf, err := idx.data.ReadPage(page)
		if err != nil {
			return err
		}
		dp, err := decodeDataPage(buf)
		if err != nil {
			return err
		}
		for i := 0; i < int(dp.count); i++ {
			rec, err := catalog.DecodeRecord(dp.records[i])
			if err != nil {
				return err
			}
			if catalog.KeyOf(rec) != key {
				continue
			}
			dp.removeAt(i)
			if page == basePage {
				if dp.count == 0 && dp.nextPage != NoPage {
					if err := idx.promoteFromChain(basePage, dp); err != nil {
						return err
					}
				} else if err := idx.data.WritePage(page, dp.encode()); err != nil {
					return err
				}
				if dp.count > 0 {
					if first, err := catalog.DecodeRecord(dp.records[0]); err == nil {
						return idx.updateLeafEntry(basePage, catalog.KeyOf(first))
					}
				}
				return nil
			}
			// Overflow page: unlink it from the chain if now empty.
			if dp.count == 0 {
				return idx.unlinkOverflow(prevPage, page, dp.nextPage)
			}
			return idx.data.WritePage(page, dp.encode())
		}
		prevPage = page
		page = dp.nextPage
	}
	return dberrors.ErrNotFound
}

// promoteFromChain refills an emptied base page with the first record of
// its overflow successor, unlinking the successor if that empties it. The
// base must stay non-empty while a chain exists, or its leaf entry would
// go stale.
func (idx *Index) promoteFromChain(basePage int64, base *dataPage) error {
	succOff := base.nextPage
	buf, err := idx.data.ReadPage(succOff)
	if err != nil {
		return err
	}
	succ, err := decodeDataPage(buf)
	if err != nil {
		return err
	}
	if succ.count > 0 {
		base.append(succ.records[0])
		succ.removeAt(0)
	}
	if succ.count == 0 {
		base.nextPage = succ.nextPage
	} else if err := idx.data.WritePage(succOff, succ.encode()); err != nil {
		return err
	}
	return idx.data.WritePage(basePage, base.encode())
}

func (idx *Index) unlinkOverflow(prevPage, emptyPage, nextPage int64) error {
	buf, err := idx.data.ReadPage(prevPage)
	if err != nil {
		return err
	}
	prev, err := decodeDataPage(buf)
	if err != nil {
		return err
	}
	prev.nextPage = nextPage
	return idx.data.WritePage(prevPage, prev.encode())
}

// Stats reports counts useful for EXPLAIN ANALYZE and diagnostics.
type Stats struct {
	BasePages     int64
	TotalPages    int64
	Height        int32
}

func (idx *Index) Stats() Stats {
	return Stats{
		BasePages:  idx.m.basePageCount,
		TotalPages: idx.data.PageCount(),
		Height:     idx.m.height,
	}
}
