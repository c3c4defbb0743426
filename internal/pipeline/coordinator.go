// Package pipeline orchestrates a conflation run: loading the inputs,
// normalizing the import, merging it into the map and writing the
// resulting changeset.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/changeset"
	"github.com/wegman-software/addrmerge/internal/config"
	"github.com/wegman-software/addrmerge/internal/conflate"
	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/geom"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/metrics"
	"github.com/wegman-software/addrmerge/internal/normalize"
	"github.com/wegman-software/addrmerge/internal/reader"
	"github.com/wegman-software/addrmerge/internal/spatial"
)

// Inputs holds everything a run reads before conflation starts
type Inputs struct {
	Entities []*entity.Entity
	Records  []*address.Address
	Boundary *geom.Shape
}

// Result summarizes a finished run
type Result struct {
	Document *changeset.Document
	Merge    conflate.Stats
	Elapsed  time.Duration
}

// Coordinator runs the phases of a conflation
type Coordinator struct {
	cfg        *config.Config
	normalizer normalize.Normalizer
	closer     func()
}

// NewCoordinator creates a coordinator and its normalizer
func NewCoordinator(cfg *config.Config) (*Coordinator, error) {
	c := &Coordinator{cfg: cfg, normalizer: normalize.Identity{}}

	switch {
	case cfg.NoMapping:
	case cfg.LuaScript != "":
		n := normalize.NewLuaNormalizer()
		if err := n.LoadFile(cfg.LuaScript); err != nil {
			n.Close()
			return nil, fmt.Errorf("failed to load Lua normalizer: %w", err)
		}
		c.normalizer = n
		c.closer = n.Close
	case cfg.MappingFile != "":
		t, err := normalize.LoadTable(cfg.MappingFile)
		if err != nil {
			return nil, err
		}
		c.normalizer = t
	}
	return c, nil
}

// Close releases the normalizer
func (c *Coordinator) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Load reads the snapshot, the import batch and the boundary concurrently
func (c *Coordinator) Load(ctx context.Context) (*Inputs, error) {
	in := &Inputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entities, err := reader.ReadSnapshot(gctx, c.cfg.SnapshotFile)
		if err != nil {
			return err
		}
		in.Entities = entities
		return nil
	})

	g.Go(func() error {
		records, err := reader.ReadImport(c.cfg.ImportFile, c.cfg.BBox)
		if err != nil {
			return err
		}
		in.Records = records
		return nil
	})

	if c.cfg.BoundaryFile != "" {
		g.Go(func() error {
			shape, err := reader.ReadBoundary(gctx, c.cfg.BoundaryFile)
			if err != nil {
				return fmt.Errorf("failed to read boundary: %w", err)
			}
			in.Boundary = &shape
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// Run executes a full conflation and writes the output file
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	log := logger.Get()
	start := time.Now()

	in, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.Conflate(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := WriteDocument(res.Document, c.cfg.OutputFile, c.cfg.Format); err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)

	log.Info("Run complete",
		zap.String("output", c.cfg.OutputFile),
		zap.Int("entities", res.Document.Len()),
		zap.Duration("duration", res.Elapsed.Round(time.Millisecond)))
	return res, nil
}

// Conflate normalizes the import, builds the database, merges and builds
// the changeset document
func (c *Coordinator) Conflate(ctx context.Context, in *Inputs) (*Result, error) {
	log := logger.Get()

	if len(in.Records) == 0 {
		return nil, conflate.ErrEmptyImport
	}

	changed := normalize.Apply(c.normalizer, in.Records)
	log.Info("Import normalized", zap.Int("records", len(in.Records)), zap.Int("changed", changed))

	db, err := spatial.Build(ctx, in.Entities, c.cfg.Filter.Candidates().Match, conflate.AddressIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to build spatial database: %w", err)
	}

	merger := conflate.NewMerger(db, in.Records, c.cfg)
	if in.Boundary != nil {
		merger.SetBoundary(*in.Boundary)
	}
	if c.cfg.BBox != nil && c.cfg.BBox.IsSet {
		merger.SetExtent(c.cfg.BBox)
	}

	if c.cfg.MetricsInterval > 0 {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		collector := metrics.NewCollector(c.cfg.MetricsInterval, log)
		collector.Track("updated", func() int64 { return merger.Stats().Updated })
		collector.Track("created", func() int64 { return merger.Stats().Created })
		collector.Track("entities", func() int64 { return int64(db.Len()) })
		go collector.Start(metricsCtx)
	}

	if err := merger.Merge(ctx); err != nil {
		return nil, err
	}

	doc, err := c.document(db)
	if err != nil {
		return nil, err
	}
	return &Result{Document: doc, Merge: merger.Stats()}, nil
}

// MergeBuildings runs only the building merge over the snapshot: address
// points already on the map are folded into their buildings
func (c *Coordinator) MergeBuildings(ctx context.Context) (*Result, error) {
	start := time.Now()

	entities, err := reader.ReadSnapshot(ctx, c.cfg.SnapshotFile)
	if err != nil {
		return nil, err
	}
	db, err := spatial.Build(ctx, entities, c.cfg.Filter.Candidates().Match, conflate.AddressIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to build spatial database: %w", err)
	}

	merger := conflate.NewMerger(db, nil, c.cfg)
	if c.cfg.BoundaryFile != "" {
		shape, err := reader.ReadBoundary(ctx, c.cfg.BoundaryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read boundary: %w", err)
		}
		merger.SetBoundary(shape)
	}
	merged := merger.MergeBuildings()
	db.RebuildIndex()
	logger.Get().Info("Building merge complete", zap.Int("merged", merged))

	doc, err := c.document(db)
	if err != nil {
		return nil, err
	}
	if err := WriteDocument(doc, c.cfg.OutputFile, c.cfg.Format); err != nil {
		return nil, err
	}
	return &Result{Document: doc, Merge: merger.Stats(), Elapsed: time.Since(start)}, nil
}

func (c *Coordinator) document(db *spatial.DB) (*changeset.Document, error) {
	mode := changeset.ModeIncremental
	if c.cfg.FullMode {
		mode = changeset.ModeFull
	}
	doc, err := changeset.Build(db, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build changeset: %w", err)
	}
	doc.AppendNote(logger.Captured())
	return doc, nil
}
