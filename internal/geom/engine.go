package geom

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/logger"
)

// Resolver looks up entities referenced by lines and areas
type Resolver func(key entity.Key) (*entity.Entity, bool)

type cached struct {
	shape Shape
	err   error
}

// Engine reconstructs shapes from the entity graph and memoizes them per
// entity key. The graph is append-only during a run, so cached shapes are
// never invalidated.
type Engine struct {
	resolve Resolver

	mu    sync.Mutex
	cache map[entity.Key]cached
}

// NewEngine creates a geometry engine resolving references through resolve
func NewEngine(resolve Resolver) *Engine {
	return &Engine{
		resolve: resolve,
		cache:   make(map[entity.Key]cached),
	}
}

// Shape returns the (cached) shape of e
func (g *Engine) Shape(e *entity.Entity) (Shape, error) {
	if e.Kind == entity.KindPoint {
		return Shape{Geometry: e.Point()}, nil
	}
	key := e.Key()

	g.mu.Lock()
	c, ok := g.cache[key]
	g.mu.Unlock()
	if ok {
		return c.shape, c.err
	}

	// Computed outside the lock: area shapes recurse into member lookups
	shape, err := g.build(e)

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.cache[key]; ok {
		return c.shape, c.err
	}
	g.cache[key] = cached{shape: shape, err: err}
	return shape, err
}

// Cached returns the number of memoized shapes
func (g *Engine) Cached() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

func (g *Engine) build(e *entity.Entity) (Shape, error) {
	switch e.Kind {
	case entity.KindLine:
		return g.buildLine(e)
	case entity.KindArea:
		return g.buildArea(e)
	}
	return Shape{}, fmt.Errorf("unsupported entity kind %v", e.Kind)
}

// buildLine turns a way into a polygon. Ways with fewer than three distinct
// nodes collapse to their centroid instead of failing the run. A way with
// unresolvable nodes is broken: its footprint would be wrong.
func (g *Engine) buildLine(e *entity.Entity) (Shape, error) {
	ring := make(orb.Ring, 0, len(e.Refs)+1)
	distinct := make(map[orb.Point]bool, len(e.Refs))
	missing := 0
	for _, ref := range e.Refs {
		n, ok := g.resolve(entity.Key{Kind: entity.KindPoint, ID: ref})
		if !ok {
			missing++
			continue
		}
		p := n.Point()
		ring = append(ring, p)
		distinct[p] = true
	}

	if len(ring) == 0 {
		return Shape{}, &BrokenGeometryError{Key: e.Key(), Reason: "no resolvable nodes"}
	}
	if missing > 0 {
		return Shape{}, &BrokenGeometryError{
			Key:    e.Key(),
			Reason: fmt.Sprintf("%d of %d nodes missing", missing, len(e.Refs)),
		}
	}

	if len(distinct) < 3 {
		var sum orb.Point
		for _, p := range ring {
			sum[0] += p[0]
			sum[1] += p[1]
		}
		c := orb.Point{sum[0] / float64(len(ring)), sum[1] / float64(len(ring))}
		logger.Get().Warn("Way has fewer than 3 distinct nodes, using centroid",
			zap.Int64("way", e.ID),
			zap.Int("nodes", len(distinct)))
		return Shape{Geometry: c, Degenerate: true}, nil
	}

	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return Shape{Geometry: orb.Polygon{ring}}, nil
}

// buildArea assembles outer and inner rings from member ways. Each outer
// ring becomes a polygon with the inner rings it contains as holes. An area
// with only inner rings falls back to the union of its inner rings.
func (g *Engine) buildArea(e *entity.Entity) (Shape, error) {
	var outerWays, innerWays [][]int64
	for _, m := range e.Members {
		if m.Kind != entity.KindLine {
			logger.Get().Debug("Relation member is not a way, ignoring",
				zap.Int64("relation", e.ID), zap.String("member", m.Key().String()))
			continue
		}
		way, ok := g.resolve(m.Key())
		if !ok {
			logger.Get().Debug("Relation member way missing from snapshot",
				zap.Int64("relation", e.ID), zap.Int64("way", m.Ref))
			continue
		}
		if m.IsInner() {
			innerWays = append(innerWays, way.Refs)
		} else {
			outerWays = append(outerWays, way.Refs)
		}
	}

	outer, err := g.resolveRings(e.Key(), outerWays)
	if err != nil {
		return Shape{}, err
	}
	inner, err := g.resolveRings(e.Key(), innerWays)
	if err != nil {
		return Shape{}, err
	}

	if len(outer) == 0 {
		if len(inner) == 0 {
			return Shape{}, &BrokenGeometryError{Key: e.Key(), Reason: "no rings"}
		}
		logger.Get().Warn("Relation has only inner rings, using their union", zap.Int64("relation", e.ID))
		outer, inner = inner, nil
	}

	polygons := make(orb.MultiPolygon, 0, len(outer))
	usedInner := make([]bool, len(inner))
	for _, o := range outer {
		poly := orb.Polygon{o}
		for i, in := range inner {
			if !usedInner[i] && ringContainedBy(in, o) {
				poly = append(poly, in)
				usedInner[i] = true
			}
		}
		polygons = append(polygons, poly)
	}

	if len(polygons) == 1 {
		return Shape{Geometry: polygons[0]}, nil
	}
	return Shape{Geometry: polygons}, nil
}

// resolveRings closes the ways into rings and resolves node coordinates
func (g *Engine) resolveRings(owner entity.Key, ways [][]int64) ([]orb.Ring, error) {
	if len(ways) == 0 {
		return nil, nil
	}
	closed, err := CloseRings(owner, ways)
	if err != nil {
		return nil, err
	}

	rings := make([]orb.Ring, 0, len(closed))
	for _, refs := range closed {
		ring := make(orb.Ring, 0, len(refs))
		for _, ref := range refs {
			n, ok := g.resolve(entity.Key{Kind: entity.KindPoint, ID: ref})
			if !ok {
				return nil, &BrokenGeometryError{Key: owner, Reason: fmt.Sprintf("node %d missing", ref)}
			}
			ring = append(ring, n.Point())
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

// ringContainedBy tests the first vertex of inner against outer
func ringContainedBy(inner, outer orb.Ring) bool {
	if len(inner) == 0 {
		return false
	}
	return planar.RingContains(outer, inner[0])
}
