// Package pagedfile implements the block-addressable file abstraction
// shared by the ISAM, AVL and B+Tree index engines: fixed-size page read/write,
// append, and size-in-pages, behind a magic-numbered header so a stray file
// of the wrong page size is caught at open rather than at first decode.
package pagedfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const headerMagic = "RPF1" // RidgeDB Paged File v1

// headerSize is magic(4) + pageSize(4) + pageCount(8).
const headerSize = 4 + 4 + 8

// File is a block-addressable paged file. Open keeps one OS handle open
// for every later read, write and append until Close.
type File struct {
	f        *os.File
	path     string
	pageSize int
	pageCnt  int64
}

// Open opens (creating if necessary) a paged file at path with the given
// page size. Reopening an existing file validates the stored page size
// matches.
func Open(path string, pageSize int) (*File, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("pagedfile: page size must be positive, got %d", pageSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagedfile: open %s: %w", path, err)
	}

	pf := &File{f: f, path: path, pageSize: pageSize}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pagedfile: stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		if err := pf.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return pf, nil
	}

	if err := pf.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return pf, nil
}

func (pf *File) writeHeader() error {
	buf := make([]byte, headerSize)
	copy(buf[0:4], headerMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(pf.pageSize))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(pf.pageCnt))
	if _, err := pf.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("pagedfile: write header: %w", err)
	}
	return nil
}

func (pf *File) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(io.NewSectionReader(pf.f, 0, headerSize), buf); err != nil {
		return fmt.Errorf("pagedfile: read header: %w", err)
	}
	if string(buf[0:4]) != headerMagic {
		return fmt.Errorf("pagedfile: bad magic in %s", pf.path)
	}
	storedPageSize := int(binary.LittleEndian.Uint32(buf[4:8]))
	if storedPageSize != pf.pageSize {
		return fmt.Errorf("pagedfile: page size mismatch in %s: file has %d, requested %d",
			pf.path, storedPageSize, pf.pageSize)
	}
	pf.pageCnt = int64(binary.LittleEndian.Uint64(buf[8:16]))
	return nil
}

// PageCount returns the number of pages appended so far.
func (pf *File) PageCount() int64 {
	return pf.pageCnt
}

func (pf *File) offset(page int64) int64 {
	return int64(headerSize) + page*int64(pf.pageSize)
}

// ReadPage reads the full page at the given page offset. Unwritten tail
// beyond EOF is undefined.
func (pf *File) ReadPage(page int64) ([]byte, error) {
	if page < 0 || page >= pf.pageCnt {
		return nil, fmt.Errorf("pagedfile: read page %d out of range [0,%d)", page, pf.pageCnt)
	}
	buf := make([]byte, pf.pageSize)
	if _, err := pf.f.ReadAt(buf, pf.offset(page)); err != nil {
		return nil, fmt.Errorf("pagedfile: read page %d: %w", page, err)
	}
	return buf, nil
}

// WritePage writes buf (must be exactly pageSize bytes) at the given page
// offset. Writes to the same page appear atomically to subsequent reads
// within this process because both go
// through the same *os.File via pwrite/pread style offsets.
func (pf *File) WritePage(page int64, buf []byte) error {
	if len(buf) != pf.pageSize {
		return fmt.Errorf("pagedfile: write page: buffer is %d bytes, want %d", len(buf), pf.pageSize)
	}
	if page < 0 || page >= pf.pageCnt {
		return fmt.Errorf("pagedfile: write page %d out of range [0,%d)", page, pf.pageCnt)
	}
	if _, err := pf.f.WriteAt(buf, pf.offset(page)); err != nil {
		return fmt.Errorf("pagedfile: write page %d: %w", page, err)
	}
	return nil
}

// AppendPage writes buf as a brand-new page at the end of the file and
// returns its page offset.
func (pf *File) AppendPage(buf []byte) (int64, error) {
	if len(buf) != pf.pageSize {
		return 0, fmt.Errorf("pagedfile: append page: buffer is %d bytes, want %d", len(buf), pf.pageSize)
	}
	page := pf.pageCnt
	if _, err := pf.f.WriteAt(buf, pf.offset(page)); err != nil {
		return 0, fmt.Errorf("pagedfile: append page: %w", err)
	}
	pf.pageCnt++
	if err := pf.writeHeader(); err != nil {
		return 0, err
	}
	return page, nil
}

// Truncate resets the file to zero pages, keeping the header. Used by
// rebuilds that need to discard all content before reingesting.
func (pf *File) Truncate() error {
	pf.pageCnt = 0
	if err := pf.f.Truncate(int64(headerSize)); err != nil {
		return fmt.Errorf("pagedfile: truncate: %w", err)
	}
	return pf.writeHeader()
}

// Sync flushes to stable storage.
func (pf *File) Sync() error {
	return pf.f.Sync()
}

// Close closes the underlying OS handle.
func (pf *File) Close() error {
	if pf.f == nil {
		return nil
	}
	err := pf.f.Close()
	pf.f = nil
	return err
}

// PageSize returns the configured page size.
func (pf *File) PageSize() int {
	return pf.pageSize
}
