package manager

import (
	"path/filepath"

	"github.com/go-logr/logr"
)

// Config carries the base directory and per-engine tuning knobs. The zero
// value of each knob selects the engine default.
type Config struct {
	// BaseDir is the directory holding every index file. It must exist
	// and be writable.
	BaseDir string

	// HashBucketCapacity bounds items per extendible-hashing bucket.
	HashBucketCapacity int

	// BPlusOrder is the B+Tree's maximum key count per node.
	BPlusOrder int

	// Logger receives per-engine fan-out failures and build progress.
	Logger logr.Logger
}

const (
	defaultHashBucketCapacity = 4
	defaultBPlusOrder         = 4
)

func (c *Config) applyDefaults() {
	if c.HashBucketCapacity <= 0 {
		c.HashBucketCapacity = defaultHashBucketCapacity
	}
	if c.BPlusOrder <= 0 {
		c.BPlusOrder = defaultBPlusOrder
	}
}

// Conventional file paths under BaseDir, one set per engine.
func (c Config) isamDataPath() string  { return filepath.Join(c.BaseDir, "isam.data") }
func (c Config) isamNodePath() string  { return filepath.Join(c.BaseDir, "isam.nodes") }
func (c Config) isamMetaPath() string  { return filepath.Join(c.BaseDir, "isam.meta") }
func (c Config) hashDirPath() string   { return filepath.Join(c.BaseDir, "hash.dir") }
func (c Config) hashDataPath() string  { return filepath.Join(c.BaseDir, "hash.buckets") }
func (c Config) avlNodePath() string   { return filepath.Join(c.BaseDir, "avl.nodes") }
func (c Config) avlHeapPath() string   { return filepath.Join(c.BaseDir, "avl.heap") }
func (c Config) avlMetaPath() string   { return filepath.Join(c.BaseDir, "avl.meta") }
func (c Config) bplusNodePath() string { return filepath.Join(c.BaseDir, "bplus.nodes") }
func (c Config) bplusMetaPath() string { return filepath.Join(c.BaseDir, "bplus.meta") }
func (c Config) rtreeMetaPath() string { return filepath.Join(c.BaseDir, "rtree.meta") }
func (c Config) journalPath() string   { return filepath.Join(c.BaseDir, "fanout.journal") }
