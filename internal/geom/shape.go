package geom

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"github.com/wegman-software/addrmerge/internal/entity"
)

// DegreesPerMeter is the length of one meter of great circle in arc degrees.
// Buffers are applied in planar degree space.
const DegreesPerMeter = 0.0000089831528

// Shape is the reconstructed geometry of an entity: an orb.Point,
// orb.Polygon or orb.MultiPolygon. Once computed it is never changed.
type Shape struct {
	Geometry orb.Geometry

	// Degenerate is set when a way had too few nodes to form a polygon and
	// was collapsed to its centroid
	Degenerate bool
}

// IsPolygonal reports whether the shape can contain points
func (s Shape) IsPolygonal() bool {
	switch s.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

// Contains reports whether p lies inside the shape
func (s Shape) Contains(p orb.Point) bool {
	switch g := s.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// BufferedContains reports whether p lies inside the shape expanded outward
// by meters
func (s Shape) BufferedContains(p orb.Point, meters float64) bool {
	if s.Contains(p) {
		return true
	}
	if meters <= 0 || !s.IsPolygonal() {
		return false
	}
	buf := meters * DegreesPerMeter
	b := s.Geometry.Bound().Pad(buf)
	if !b.Contains(p) {
		return false
	}
	return planar.DistanceFrom(s.Geometry, p) <= buf
}

// Centroid returns the area centroid of polygonal shapes and the point
// itself otherwise
func (s Shape) Centroid() orb.Point {
	switch g := s.Geometry.(type) {
	case orb.Point:
		return g
	case orb.Polygon, orb.MultiPolygon:
		c, area := planar.CentroidArea(g)
		if area == 0 {
			return g.Bound().Center()
		}
		return c
	case nil:
		return orb.Point{}
	}
	return s.Geometry.Bound().Center()
}

// Bound returns the bounding box of the shape
func (s Shape) Bound() orb.Bound {
	if s.Geometry == nil {
		return orb.Bound{}
	}
	return s.Geometry.Bound()
}

// Distance returns the great-circle distance between two lon/lat points in
// meters
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// BrokenGeometryError is returned when the shape of an entity cannot be
// reconstructed. It only affects that one entity.
type BrokenGeometryError struct {
	Key    entity.Key
	Reason string
}

func (e *BrokenGeometryError) Error() string {
	return fmt.Sprintf("broken geometry of %s: %s", e.Key, e.Reason)
}
