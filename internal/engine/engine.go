// Package engine executes parsed statements against named tables, each
// table backed by its own index manager and planner under a per-table
// subdirectory of the data directory.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-logr/logr"

	"ridgedb/internal/manager"
	"ridgedb/internal/planner"
)

// DBEngine coordinates table lifecycle and statement execution.
type DBEngine struct {
	started bool
	dataDir string
	log     logr.Logger

	cfg    manager.Config // template; BaseDir is filled per table
	tables map[string]*table
}

type table struct {
	mgr *manager.Manager
	pl  *planner.Planner
}

// New creates an engine rooted at dataDir. The manager config acts as a
// template: its tuning knobs apply to every table, its BaseDir is ignored.
func New(dataDir string, cfg manager.Config, log logr.Logger) *DBEngine {
	return &DBEngine{
		dataDir: dataDir,
		cfg:     cfg,
		log:     log,
		tables:  map[string]*table{},
	}
}

// Start creates the data directory if needed and reopens every table found
// under it (a table is a subdirectory holding a fan-out journal).
func (e *DBEngine) Start() error {
	if e.started {
		return fmt.Errorf("engine already started")
	}
	if err := os.MkdirAll(e.dataDir, 0o755); err != nil {
		return fmt.Errorf("engine: create data dir: %w", err)
	}

	entries, err := os.ReadDir(e.dataDir)
	if err != nil {
		return fmt.Errorf("engine: read data dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, err := os.Stat(filepath.Join(e.dataDir, name, "fanout.journal")); err != nil {
			continue
		}
		if err := e.openTable(name); err != nil {
			return fmt.Errorf("engine: reopen table %s: %w", name, err)
		}
		if e.tables[name].mgr.NeedsRepair() {
			e.log.Info("table has an incomplete fan-out on disk; run a rebuild", "table", name)
		}
	}

	e.started = true
	return nil
}

func (e *DBEngine) openTable(name string) error {
	cfg := e.cfg
	cfg.BaseDir = filepath.Join(e.dataDir, name)
	cfg.Logger = e.log.WithValues("table", name)
	mgr, err := manager.Open(cfg)
	if err != nil {
		return err
	}
	e.tables[name] = &table{mgr: mgr, pl: planner.New(mgr, cfg.Logger)}
	return nil
}

// Close closes every table's engines.
func (e *DBEngine) Close() error {
	var first error
	for _, t := range e.tables {
		if err := t.mgr.Close(); err != nil && first == nil {
			first = err
		}
	}
	e.tables = map[string]*table{}
	e.started = false
	return first
}

func (e *DBEngine) table(name string) (*table, error) {
	t, ok := e.tables[name]
	if !ok {
		return nil, fmt.Errorf("engine: unknown table %q", name)
	}
	return t, nil
}

// ListTables returns the known table names, sorted.
func (e *DBEngine) ListTables() []string {
	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableStats exposes the per-engine stats report for a table.
func (e *DBEngine) TableStats(name string) (manager.Stats, error) {
	t, err := e.table(name)
	if err != nil {
		return manager.Stats{}, err
	}
	return t.mgr.Stats()
}

// RebuildTable re-ingests a table's current record set into all engines,
// compacting overflow and clearing any incomplete-fan-out flag.
func (e *DBEngine) RebuildTable(name string) error {
	t, err := e.table(name)
	if err != nil {
		return err
	}
	return t.mgr.Rebuild(nil)
}
