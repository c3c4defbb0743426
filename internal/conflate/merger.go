// Package conflate merges an address import batch into the existing map
// data held by a spatial database.
package conflate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/config"
	"github.com/wegman-software/addrmerge/internal/geom"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/spatial"
)

// IndexAddress is the name of the address-key secondary index
const IndexAddress = "address"

// ErrEmptyImport is returned when asked to compare the map against an
// empty import batch, which would flag every mapped address
var ErrEmptyImport = errors.New("import batch is empty")

// AddressIndex indexes entries carrying a housenumber by address key
var AddressIndex = spatial.Index{
	Name: IndexAddress,
	Key: func(e *spatial.Entry) (any, bool) {
		if !e.HasAddress() {
			return nil, false
		}
		return e.AddressKey(), true
	},
}

// Stats counts rule outcomes of a run
type Stats struct {
	Updated     int64 // existing entries changed from the import
	Unchanged   int64 // matched entries already up to date
	Created     int64 // new address points
	Duplicates  int64 // records matching more than one entry
	Skipped     int64 // records judged already mapped without change
	StreetFixes int64 // records whose street spelling was taken from the map
	Merged      int64 // points folded into buildings
	NotExisting int64 // mapped addresses absent from the import
}

type counters struct {
	updated, unchanged, created, duplicates, skipped, streetFixes, merged, notExisting atomic.Int64
}

// Merger runs the conflation phases over one import batch
type Merger struct {
	db       *spatial.DB
	records  []*address.Address
	cfg      config.MergeConfig
	workers  int
	boundary *geom.Shape
	extent   *config.BBox

	nextID atomic.Int64
	stats  counters

	mu      sync.Mutex
	created []*spatial.Entry
}

// NewMerger creates a merger of records into db
func NewMerger(db *spatial.DB, records []*address.Address, cfg *config.Config) *Merger {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Merger{
		db:      db,
		records: records,
		cfg:     cfg.Merge,
		workers: workers,
	}
}

// SetBoundary limits the not-existing scan and the building merge to the
// administrative area
func (m *Merger) SetBoundary(shape geom.Shape) {
	m.boundary = &shape
}

// SetExtent tells the merger the import batch was cut to bbox. Mapped
// addresses outside it are never reported as missing from the import.
func (m *Merger) SetExtent(bbox *config.BBox) {
	m.extent = bbox
}

// DB returns the database the merger writes to
func (m *Merger) DB() *spatial.DB { return m.db }

// Created returns the points created so far
func (m *Merger) Created() []*spatial.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*spatial.Entry(nil), m.created...)
}

// Stats returns a snapshot of the outcome counters
func (m *Merger) Stats() Stats {
	return Stats{
		Updated:     m.stats.updated.Load(),
		Unchanged:   m.stats.unchanged.Load(),
		Created:     m.stats.created.Load(),
		Duplicates:  m.stats.duplicates.Load(),
		Skipped:     m.stats.skipped.Load(),
		StreetFixes: m.stats.streetFixes.Load(),
		Merged:      m.stats.merged.Load(),
		NotExisting: m.stats.notExisting.Load(),
	}
}

// Merge runs every phase: street fixups, the rule chain for each record,
// the building merge and the not-existing scan. The index is rebuilt
// between phases.
func (m *Merger) Merge(ctx context.Context) error {
	if len(m.records) == 0 {
		return ErrEmptyImport
	}
	log := logger.Get()

	start := time.Now()
	m.FixStreets()
	m.db.RebuildIndex()
	log.Info("Pre-merge fixups done", zap.Int64("street_fixes", m.stats.streetFixes.Load()))

	if err := m.MergeAll(ctx); err != nil {
		return err
	}
	m.db.RebuildIndex()

	m.MergeBuildings()
	m.db.RebuildIndex()

	if _, err := m.MarkNotExisting(); err != nil {
		return err
	}
	m.db.RebuildIndex()

	s := m.Stats()
	log.Info("Merge complete",
		zap.Int("records", len(m.records)),
		zap.Int64("updated", s.Updated),
		zap.Int64("unchanged", s.Unchanged),
		zap.Int64("created", s.Created),
		zap.Int64("duplicates", s.Duplicates),
		zap.Int64("skipped", s.Skipped),
		zap.Int64("merged_into_buildings", s.Merged),
		zap.Int64("not_existing", s.NotExisting),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// MergeAll runs the rule chain for every record on a bounded worker pool
func (m *Merger) MergeAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, rec := range m.records {
		rec := rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.MergeOne(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("merge interrupted: %w", err)
	}
	return nil
}
