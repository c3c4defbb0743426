package geom

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/addrmerge/internal/entity"
)

// graph is a minimal in-memory resolver
type graph map[entity.Key]*entity.Entity

func (g graph) add(e *entity.Entity) *entity.Entity {
	g[e.Key()] = e
	return e
}

func (g graph) resolve(k entity.Key) (*entity.Entity, bool) {
	e, ok := g[k]
	return e, ok
}

// square adds four corner nodes starting at id and returns their ids
func (g graph) square(id int64, minLon, minLat, size float64) []int64 {
	corners := []orb.Point{
		{minLon, minLat},
		{minLon + size, minLat},
		{minLon + size, minLat + size},
		{minLon, minLat + size},
	}
	ids := make([]int64, len(corners))
	for i, c := range corners {
		ids[i] = id + int64(i)
		g.add(entity.NewPoint(ids[i], c[0], c[1], nil))
	}
	return ids
}

func closed(ids []int64) []int64 {
	return append(append([]int64(nil), ids...), ids[0])
}

func TestEngineShapePoint(t *testing.T) {
	g := graph{}
	n := g.add(entity.NewPoint(1, 19.9, 50.1, nil))
	shape, err := NewEngine(g.resolve).Shape(n)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if p, ok := shape.Geometry.(orb.Point); !ok || p != (orb.Point{19.9, 50.1}) {
		t.Errorf("Shape() = %v, want point 19.9 50.1", shape.Geometry)
	}
}

func TestEngineShapeLine(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	way := g.add(entity.NewLine(10, closed(ids), nil))

	shape, err := NewEngine(g.resolve).Shape(way)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if !shape.IsPolygonal() {
		t.Fatalf("Shape() = %T, want polygon", shape.Geometry)
	}
	if !shape.Contains(orb.Point{19.0005, 50.0005}) {
		t.Error("polygon should contain its center")
	}
	if shape.Contains(orb.Point{19.002, 50.0005}) {
		t.Error("polygon should not contain outside point")
	}
}

func TestEngineShapeOpenLineIsClosed(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	way := g.add(entity.NewLine(10, ids, nil))

	shape, err := NewEngine(g.resolve).Shape(way)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	poly := shape.Geometry.(orb.Polygon)
	if !poly[0].Closed() {
		t.Error("outer ring should be closed")
	}
}

func TestEngineShapeDegenerateLine(t *testing.T) {
	g := graph{}
	g.add(entity.NewPoint(1, 19.0, 50.0, nil))
	g.add(entity.NewPoint(2, 19.002, 50.0, nil))
	way := g.add(entity.NewLine(10, []int64{1, 2, 1}, nil))

	shape, err := NewEngine(g.resolve).Shape(way)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if !shape.Degenerate {
		t.Error("Degenerate = false, want true")
	}
	if _, ok := shape.Geometry.(orb.Point); !ok {
		t.Errorf("Shape() = %T, want orb.Point", shape.Geometry)
	}
}

func TestEngineShapeLineWithoutNodes(t *testing.T) {
	g := graph{}
	way := g.add(entity.NewLine(10, []int64{1, 2, 3}, nil))

	_, err := NewEngine(g.resolve).Shape(way)
	var broken *BrokenGeometryError
	if !errors.As(err, &broken) {
		t.Fatalf("Shape() error = %v, want BrokenGeometryError", err)
	}
}

func TestEngineShapeLineWithMissingNodes(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	// node 99 is not in the snapshot
	way := g.add(entity.NewLine(10, []int64{ids[0], ids[1], 99, ids[2], ids[3], ids[0]}, nil))

	_, err := NewEngine(g.resolve).Shape(way)
	var broken *BrokenGeometryError
	if !errors.As(err, &broken) {
		t.Fatalf("Shape() error = %v, want BrokenGeometryError", err)
	}
	if want := "1 of 6 nodes missing"; broken.Reason != want {
		t.Errorf("Reason = %q, want %q", broken.Reason, want)
	}
}

func TestEngineShapeAreaIgnoresNestedRelation(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	g.add(entity.NewLine(100, closed(ids), nil))
	rel := g.add(entity.NewArea(1000, []entity.Member{
		{Kind: entity.KindLine, Ref: 100, Role: "outer"},
		{Kind: entity.KindArea, Ref: 2000, Role: "outer"},
	}, nil))

	shape, err := NewEngine(g.resolve).Shape(rel)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if !shape.Contains(orb.Point{19.0005, 50.0005}) {
		t.Error("shape should be built from the way member")
	}
}

func TestEngineShapeAreaWithHole(t *testing.T) {
	g := graph{}
	outer := g.square(1, 19.0, 50.0, 0.01)
	inner := g.square(11, 19.004, 50.004, 0.002)

	// outer ring split into two ways
	g.add(entity.NewLine(100, []int64{outer[0], outer[1], outer[2]}, nil))
	g.add(entity.NewLine(101, []int64{outer[0], outer[3], outer[2]}, nil))
	g.add(entity.NewLine(102, closed(inner), nil))

	rel := g.add(entity.NewArea(1000, []entity.Member{
		{Kind: entity.KindLine, Ref: 100, Role: "outer"},
		{Kind: entity.KindLine, Ref: 101, Role: ""},
		{Kind: entity.KindLine, Ref: 102, Role: "inner"},
		{Kind: entity.KindPoint, Ref: 1, Role: "label"},
	}, nil))

	shape, err := NewEngine(g.resolve).Shape(rel)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	poly, ok := shape.Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("Shape() = %T, want orb.Polygon", shape.Geometry)
	}
	if len(poly) != 2 {
		t.Fatalf("polygon has %d rings, want 2", len(poly))
	}

	tests := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"inside outer", orb.Point{19.001, 50.001}, true},
		{"inside hole", orb.Point{19.005, 50.005}, false},
		{"outside", orb.Point{19.02, 50.005}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shape.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestEngineShapeAreaMultipleOuters(t *testing.T) {
	g := graph{}
	a := g.square(1, 19.0, 50.0, 0.001)
	b := g.square(11, 19.01, 50.0, 0.001)
	g.add(entity.NewLine(100, closed(a), nil))
	g.add(entity.NewLine(101, closed(b), nil))
	rel := g.add(entity.NewArea(1000, []entity.Member{
		{Kind: entity.KindLine, Ref: 100, Role: "outer"},
		{Kind: entity.KindLine, Ref: 101, Role: "outer"},
	}, nil))

	shape, err := NewEngine(g.resolve).Shape(rel)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	mp, ok := shape.Geometry.(orb.MultiPolygon)
	if !ok || len(mp) != 2 {
		t.Fatalf("Shape() = %v, want multipolygon of 2", shape.Geometry)
	}
}

func TestEngineShapeInnerOnlyFallback(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	g.add(entity.NewLine(100, closed(ids), nil))
	rel := g.add(entity.NewArea(1000, []entity.Member{
		{Kind: entity.KindLine, Ref: 100, Role: "inner"},
	}, nil))

	shape, err := NewEngine(g.resolve).Shape(rel)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if !shape.Contains(orb.Point{19.0005, 50.0005}) {
		t.Error("fallback shape should cover the inner ring")
	}
}

func TestEngineShapeBrokenArea(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	g.add(entity.NewLine(100, ids[:3], nil))
	rel := g.add(entity.NewArea(1000, []entity.Member{
		{Kind: entity.KindLine, Ref: 100, Role: "outer"},
	}, nil))

	eng := NewEngine(g.resolve)
	_, err := eng.Shape(rel)
	var broken *BrokenGeometryError
	if !errors.As(err, &broken) {
		t.Fatalf("Shape() error = %v, want BrokenGeometryError", err)
	}
	if broken.Key != rel.Key() {
		t.Errorf("Key = %v, want %v", broken.Key, rel.Key())
	}

	// failure is memoized
	_, err2 := eng.Shape(rel)
	if err2 != err {
		t.Errorf("second Shape() error = %v, want cached %v", err2, err)
	}
}

func TestEngineMemoizes(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	way := g.add(entity.NewLine(10, closed(ids), nil))

	calls := 0
	eng := NewEngine(func(k entity.Key) (*entity.Entity, bool) {
		calls++
		return g.resolve(k)
	})
	if _, err := eng.Shape(way); err != nil {
		t.Fatal(err)
	}
	first := calls
	if _, err := eng.Shape(way); err != nil {
		t.Fatal(err)
	}
	if calls != first {
		t.Errorf("resolver called %d more times on cached shape", calls-first)
	}
	if eng.Cached() != 1 {
		t.Errorf("Cached() = %d, want 1", eng.Cached())
	}
}

func TestBufferedContains(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.001)
	way := g.add(entity.NewLine(10, closed(ids), nil))
	shape, err := NewEngine(g.resolve).Shape(way)
	if err != nil {
		t.Fatal(err)
	}

	// 3 m east of the eastern edge
	p := orb.Point{19.001 + 3*DegreesPerMeter, 50.0005}

	tests := []struct {
		meters float64
		want   bool
	}{
		{0, false},
		{2, false},
		{5, true},
		{10, true},
	}
	for _, tt := range tests {
		if got := shape.BufferedContains(p, tt.meters); got != tt.want {
			t.Errorf("BufferedContains(p, %v) = %v, want %v", tt.meters, got, tt.want)
		}
	}
}

func TestCentroid(t *testing.T) {
	g := graph{}
	ids := g.square(1, 19.0, 50.0, 0.002)
	way := g.add(entity.NewLine(10, closed(ids), nil))
	shape, err := NewEngine(g.resolve).Shape(way)
	if err != nil {
		t.Fatal(err)
	}
	c := shape.Centroid()
	if Distance(c, orb.Point{19.001, 50.001}) > 0.01 {
		t.Errorf("Centroid() = %v, want 19.001 50.001", c)
	}
}
