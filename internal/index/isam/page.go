package isam

import (
	"encoding/binary"
	"fmt"

	"ridgedb/internal/catalog"
)

// BlockFactor is the number of records packed per base/overflow data page.
const BlockFactor = 8

// DataPageSize is the page size used for the data file. The page header
// (count + next overflow page) plus BlockFactor records leaves the tail
// zero-padded.
const DataPageSize = 4096

// dataPageHeaderSize is count(int32) + nextPage(int64).
const dataPageHeaderSize = 4 + 8

// NoPage marks the absence of an overflow chain link.
const NoPage int64 = -1

// dataPage is the decoded in-memory form of one base or overflow page.
type dataPage struct {
	count    int32
	nextPage int64
	records  [BlockFactor][]byte // each RecordSize bytes, only [0:count) valid
}

func newDataPage() *dataPage {
	return &dataPage{nextPage: NoPage}
}

func (p *dataPage) encode() []byte {
	buf := make([]byte, DataPageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.count))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(p.nextPage))
	off := dataPageHeaderSize
	for i := 0; i < int(p.count); i++ {
		copy(buf[off:off+catalog.RecordSize], p.records[i])
		off += catalog.RecordSize
	}
	return buf
}

func decodeDataPage(buf []byte) (*dataPage, error) {
	if len(buf) != DataPageSize {
		return nil, fmt.Errorf("isam: data page buffer is %d bytes, want %d", len(buf), DataPageSize)
	}
	p := &dataPage{}
	p.count = int32(binary.LittleEndian.Uint32(buf[0:4]))
	p.nextPage = int64(binary.LittleEndian.Uint64(buf[4:12]))
	if p.count < 0 || p.count > BlockFactor {
		return nil, fmt.Errorf("isam: data page count %d out of range [0,%d]", p.count, BlockFactor)
	}
	off := dataPageHeaderSize
	for i := 0; i < int(p.count); i++ {
		rec := make([]byte, catalog.RecordSize)
		copy(rec, buf[off:off+catalog.RecordSize])
		p.records[i] = rec
		off += catalog.RecordSize
	}
	return p, nil
}

// full reports whether the page holds BlockFactor records already.
func (p *dataPage) full() bool {
	return int(p.count) >= BlockFactor
}

// append adds rec (RecordSize bytes) to the page. Caller must check full()
// first.
func (p *dataPage) append(rec []byte) {
	p.records[p.count] = rec
	p.count++
}

// removeAt deletes the record at index i, compacting the remaining records
// down.
func (p *dataPage) removeAt(i int) {
	for j := i; j < int(p.count)-1; j++ {
		p.records[j] = p.records[j+1]
	}
	p.records[p.count-1] = nil
	p.count--
}
