// Package exthash implements a persistent extendible hash index keyed by
// restaurant id: a directory of 2^globalDepth slots pointing at buckets of
// bounded capacity, doubling the directory and splitting a bucket on
// overflow. The directory persists as a small JSON record, the buckets as
// an append-only binary log where the latest record for a bucket id wins.
package exthash

import (
	"encoding/json"
	"fmt"
	"os"

	"ridgedb/internal/catalog"
)

// Bucket is one hash bucket: a fixed local depth and up to capacity items
// keyed by restaurant id.
type Bucket struct {
	LocalDepth int                     `json:"ld"`
	Items      map[uint32]catalog.Record `json:"items"`
}

func (b *Bucket) isFull(capacity int) bool {
	return len(b.Items) >= capacity
}

// dirMeta is the JSON-serialised directory metadata, persisted alongside
// the append-only bucket log.
type dirMeta struct {
	GlobalDepth    int              `json:"global_depth"`
	BucketCapacity int              `json:"bucket_capacity"`
	NextBucketID   int64            `json:"next_bucket_id"`
	Directory      []int64          `json:"directory"`
	BucketOffsets  map[string]int64 `json:"bucket_offsets"`
	Reads          int64            `json:"reads"`
	Writes         int64            `json:"writes"`
}

// Index is an open extendible hash index.
type Index struct {
	dirPath  string
	dataPath string
	meta     dirMeta
}

// recHeaderSize is bucketID(uint64) + payload length(uint32).
const recHeaderSize = 8 + 4

// Open loads an existing index at (dirPath, dataPath), or creates a fresh
// one with a single root bucket of the given capacity if neither file
// exists yet.
func Open(dirPath, dataPath string, capacity int) (*Index, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("exthash: bucket capacity must be positive, got %d", capacity)
	}

	idx := &Index{dirPath: dirPath, dataPath: dataPath}

	if fileExists(dirPath) && fileExists(dataPath) {
		if err := idx.loadDir(); err != nil {
			return nil, err
		}
		return idx, nil
	}

	if _, err := os.OpenFile(dataPath, os.O_CREATE|os.O_RDWR, 0o644); err != nil {
		return nil, fmt.Errorf("exthash: create data file: %w", err)
	}

	idx.meta = dirMeta{
		GlobalDepth:    1,
		BucketCapacity: capacity,
		NextBucketID:   1,
		BucketOffsets:  map[string]int64{},
	}
	rootID := idx.allocBucketID()
	idx.meta.Directory = []int64{rootID, rootID}
	if err := idx.writeBucket(rootID, &Bucket{LocalDepth: 1, Items: map[uint32]catalog.Record{}}); err != nil {
		return nil, err
	}
	return idx, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (idx *Index) loadDir() error {
	buf, err := os.ReadFile(idx.dirPath)
	if err != nil {
		return fmt.Errorf("exthash: read directory: %w", err)
	}
	if err := json.Unmarshal(buf, &idx.meta); err != nil {
		return fmt.Errorf("exthash: decode directory: %w", err)
	}
	idx.meta.Reads++
	return nil
}

func (idx *Index) saveDir() error {
	buf, err := json.MarshalIndent(idx.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("exthash: encode directory: %w", err)
	}
	if err := os.WriteFile(idx.dirPath, buf, 0o644); err != nil {
		return fmt.Errorf("exthash: write directory: %w", err)
	}
	idx.meta.Writes++
	return nil
}

func (idx *Index) allocBucketID() int64 {
	id := idx.meta.NextBucketID
	idx.meta.NextBucketID++
	return id
}

// Close flushes directory metadata. Bucket writes are already durable
// (append-only), so Close only needs to persist the directory once more.
func (idx *Index) Close() error {
	return idx.saveDir()
}

// Stats exposes the read/write counters the planner's EXPLAIN ANALYZE cost
// model reports.
type Stats struct {
	GlobalDepth    int
	DirectorySize  int
	BucketCapacity int
	Reads, Writes  int64
}

func (idx *Index) Stats() Stats {
	return Stats{
		GlobalDepth:    idx.meta.GlobalDepth,
		DirectorySize:  len(idx.meta.Directory),
		BucketCapacity: idx.meta.BucketCapacity,
		Reads:          idx.meta.Reads,
		Writes:         idx.meta.Writes,
	}
}
