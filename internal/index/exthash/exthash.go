package exthash

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"ridgedb/internal/catalog"
	"ridgedb/internal/dberrors"
)

// hashKey is the directory hash: a deterministic
// digest of the restaurant id used to pick a directory slot.
func hashKey(id uint32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], id)
	return xxhash.Sum64(buf[:])
}

func dirIndex(h uint64, depth int) int64 {
	return int64(h & ((uint64(1) << uint(depth)) - 1))
}

func (idx *Index) readBucket(bucketID int64) (*Bucket, error) {
	offset, ok := idx.meta.BucketOffsets[strconv.FormatInt(bucketID, 10)]
	if !ok {
		return nil, fmt.Errorf("exthash: bucket id %d not found: %w", bucketID, dberrors.ErrIO)
	}

	f, err := os.Open(idx.dataPath)
	if err != nil {
		return nil, fmt.Errorf("exthash: open data file: %w", err)
	}
	defer f.Close()

	header := make([]byte, recHeaderSize)
	if _, err := f.ReadAt(header, offset); err != nil {
		return nil, fmt.Errorf("exthash: read bucket header: %w", err)
	}
	size := binary.LittleEndian.Uint32(header[8:12])
	payload := make([]byte, size)
	if _, err := f.ReadAt(payload, offset+recHeaderSize); err != nil {
		return nil, fmt.Errorf("exthash: read bucket payload: %w", err)
	}
	idx.meta.Reads++

	var b Bucket
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("exthash: decode bucket: %w", err)
	}
	if b.Items == nil {
		b.Items = map[uint32]catalog.Record{}
	}
	return &b, nil
}

func (idx *Index) writeBucket(bucketID int64, b *Bucket) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("exthash: encode bucket: %w", err)
	}

	f, err := os.OpenFile(idx.dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("exthash: open data file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("exthash: stat data file: %w", err)
	}
	offset := info.Size()

	header := make([]byte, recHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(bucketID))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))

	if _, err := f.WriteAt(header, offset); err != nil {
		return fmt.Errorf("exthash: write bucket header: %w", err)
	}
	if _, err := f.WriteAt(payload, offset+recHeaderSize); err != nil {
		return fmt.Errorf("exthash: write bucket payload: %w", err)
	}
	idx.meta.Writes++

	idx.meta.BucketOffsets[strconv.FormatInt(bucketID, 10)] = offset
	return idx.saveDir()
}

func (idx *Index) allIndexesOfBucket(bucketID int64) []int {
	var out []int
	for i, b := range idx.meta.Directory {
		if b == bucketID {
			out = append(out, i)
		}
	}
	return out
}

func (idx *Index) doubleDirectory() {
	idx.meta.Directory = append(idx.meta.Directory, idx.meta.Directory...)
	idx.meta.GlobalDepth++
}

// splitBucket splits the overflowing bucket at directory slot idx into two
// new buckets of depth+1, redistributing its items by the bit that the new
// depth adds, doubling the directory first if the bucket is already at
// global depth.
func (idx *Index) splitBucket(slot int) error {
	oldID := idx.meta.Directory[slot]
	old, err := idx.readBucket(oldID)
	if err != nil {
		return err
	}

	if old.LocalDepth == idx.meta.GlobalDepth {
		idx.doubleDirectory()
	}

	newDepth := old.LocalDepth + 1
	b0ID := idx.allocBucketID()
	b1ID := idx.allocBucketID()
	b0 := &Bucket{LocalDepth: newDepth, Items: map[uint32]catalog.Record{}}
	b1 := &Bucket{LocalDepth: newDepth, Items: map[uint32]catalog.Record{}}

	for _, i := range idx.allIndexesOfBucket(oldID) {
		bit := (i >> uint(newDepth-1)) & 1
		if bit == 1 {
			idx.meta.Directory[i] = b1ID
		} else {
			idx.meta.Directory[i] = b0ID
		}
	}

	for id, rec := range old.Items {
		h := hashKey(id)
		bit := (dirIndex(h, newDepth) >> uint(newDepth-1)) & 1
		if bit == 1 {
			b1.Items[id] = rec
		} else {
			b0.Items[id] = rec
		}
	}

	if err := idx.writeBucket(b0ID, b0); err != nil {
		return err
	}
	if err := idx.writeBucket(b1ID, b1); err != nil {
		return err
	}
	return idx.saveDir()
}

// Search looks up a record by restaurant id.
func (idx *Index) Search(id uint32) (catalog.Record, bool, error) {
	h := hashKey(id)
	slot := dirIndex(h, idx.meta.GlobalDepth)
	bucket, err := idx.readBucket(idx.meta.Directory[slot])
	if err != nil {
		return catalog.Record{}, false, err
	}
	rec, ok := bucket.Items[id]
	return rec, ok, nil
}

// Insert adds or overwrites the record keyed by its restaurant id, splitting
// buckets as needed.
func (idx *Index) Insert(r catalog.Record) error {
	id := r.RestaurantID
	h := hashKey(id)

	for {
		slot := dirIndex(h, idx.meta.GlobalDepth)
		bucketID := idx.meta.Directory[slot]
		bucket, err := idx.readBucket(bucketID)
		if err != nil {
			return err
		}

		if _, exists := bucket.Items[id]; exists {
			bucket.Items[id] = r
			return idx.writeBucket(bucketID, bucket)
		}

		if !bucket.isFull(idx.meta.BucketCapacity) {
			bucket.Items[id] = r
			return idx.writeBucket(bucketID, bucket)
		}

		if err := idx.splitBucket(int(slot)); err != nil {
			return err
		}
	}
}

// Remove deletes the record keyed by id, if present. No merge is performed
// on underflow.
func (idx *Index) Remove(id uint32) (bool, error) {
	h := hashKey(id)
	slot := dirIndex(h, idx.meta.GlobalDepth)
	bucketID := idx.meta.Directory[slot]
	bucket, err := idx.readBucket(bucketID)
	if err != nil {
		return false, err
	}
	if _, exists := bucket.Items[id]; !exists {
		return false, nil
	}
	delete(bucket.Items, id)
	if err := idx.writeBucket(bucketID, bucket); err != nil {
		return false, err
	}
	return true, nil
}

// Rebuild discards the current directory and bucket log and reinserts every
// record from scratch.
func Rebuild(dirPath, dataPath string, capacity int, records []catalog.Record) (*Index, error) {
	os.Remove(dirPath)
	os.Remove(dataPath)
	idx, err := Open(dirPath, dataPath, capacity)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := idx.Insert(r); err != nil {
			return nil, err
		}
	}
	return idx, nil
}
