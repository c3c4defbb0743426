// Package reader loads the inputs of a conflation run: the map snapshot,
// the address import and the optional boundary.
package reader

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/logger"
)

// Stats counts the elements read from a snapshot
type Stats struct {
	Nodes     int
	Ways      int
	Relations int
}

// ReadSnapshot reads an OSM XML (.osm, .osm.gz) or PBF (.pbf) file into
// entities, in file order
func ReadSnapshot(ctx context.Context, path string) ([]*entity.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var scanner osm.Scanner
	switch {
	case strings.HasSuffix(path, ".pbf"):
		scanner = osmpbf.New(ctx, f, runtime.NumCPU())
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		scanner = osmxml.New(ctx, gz)
	default:
		scanner = osmxml.New(ctx, f)
	}

	start := time.Now()
	entities, stats, err := Scan(scanner)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	logger.Get().Info("Snapshot loaded",
		zap.String("file", path),
		zap.Int("nodes", stats.Nodes),
		zap.Int("ways", stats.Ways),
		zap.Int("relations", stats.Relations),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return entities, nil
}

// ReadOSM reads OSM XML from r
func ReadOSM(ctx context.Context, r io.Reader) ([]*entity.Entity, error) {
	entities, _, err := Scan(osmxml.New(ctx, r))
	return entities, err
}

// Scan drains scanner and converts every node, way and relation. The
// scanner is closed on return.
func Scan(scanner osm.Scanner) ([]*entity.Entity, Stats, error) {
	defer scanner.Close()

	var stats Stats
	var entities []*entity.Entity
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			entities = append(entities, FromNode(o))
			stats.Nodes++
		case *osm.Way:
			entities = append(entities, FromWay(o))
			stats.Ways++
		case *osm.Relation:
			e, err := FromRelation(o)
			if err != nil {
				return nil, stats, err
			}
			entities = append(entities, e)
			stats.Relations++
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, stats, err
	}
	return entities, stats, nil
}

func tags(t osm.Tags) *entity.Tags {
	out := entity.NewTags()
	for _, tag := range t {
		out.Set(tag.Key, tag.Value)
	}
	return out
}

func bound(b *osm.Bounds) *orb.Bound {
	if b == nil {
		return nil
	}
	return &orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// FromNode converts an OSM node to a point entity
func FromNode(n *osm.Node) *entity.Entity {
	e := entity.NewPoint(int64(n.ID), n.Lon, n.Lat, tags(n.Tags))
	e.Meta = entity.Meta{
		Version:   n.Version,
		Changeset: int64(n.ChangesetID),
		Timestamp: n.Timestamp,
		User:      n.User,
		UID:       int(n.UserID),
	}
	return e
}

// FromWay converts an OSM way to a line entity
func FromWay(w *osm.Way) *entity.Entity {
	refs := make([]int64, len(w.Nodes))
	for i, wn := range w.Nodes {
		refs[i] = int64(wn.ID)
	}
	e := entity.NewLine(int64(w.ID), refs, tags(w.Tags))
	e.Bounds = bound(w.Bounds)
	e.Meta = entity.Meta{
		Version:   w.Version,
		Changeset: int64(w.ChangesetID),
		Timestamp: w.Timestamp,
		User:      w.User,
		UID:       int(w.UserID),
	}
	return e
}

// FromRelation converts an OSM relation to an area entity
func FromRelation(r *osm.Relation) (*entity.Entity, error) {
	members := make([]entity.Member, len(r.Members))
	for i, m := range r.Members {
		kind, err := entity.ParseKind(string(m.Type))
		if err != nil {
			return nil, fmt.Errorf("relation %d member %d: %w", r.ID, i, err)
		}
		members[i] = entity.Member{Kind: kind, Ref: m.Ref, Role: m.Role}
	}
	e := entity.NewArea(int64(r.ID), members, tags(r.Tags))
	e.Bounds = bound(r.Bounds)
	e.Meta = entity.Meta{
		Version:   r.Version,
		Changeset: int64(r.ChangesetID),
		Timestamp: r.Timestamp,
		User:      r.User,
		UID:       int(r.UserID),
	}
	return e, nil
}
