package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/geom"
)

// ErrNoBoundary is returned when a boundary file holds no polygonal shape
var ErrNoBoundary = errors.New("no polygonal boundary found")

// ReadBoundary reads the area limiting the not-existing scan. GeoJSON
// files (.geojson, .json) may hold a geometry, a feature or a feature
// collection; the first polygonal geometry is used. Any other file is read
// as OSM XML and its first relation, or failing that its first closed way,
// is reconstructed.
func ReadBoundary(ctx context.Context, path string) (geom.Shape, error) {
	if strings.HasSuffix(path, ".geojson") || strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return geom.Shape{}, fmt.Errorf("failed to read boundary: %w", err)
		}
		return ParseGeoJSONBoundary(data)
	}

	entities, err := ReadSnapshot(ctx, path)
	if err != nil {
		return geom.Shape{}, err
	}
	return BoundaryFromEntities(entities)
}

// ParseGeoJSONBoundary extracts the first polygon or multipolygon
func ParseGeoJSONBoundary(data []byte) (geom.Shape, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return geom.Shape{}, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	var geometries []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return geom.Shape{}, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return geom.Shape{}, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		geometries = append(geometries, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return geom.Shape{}, fmt.Errorf("invalid GeoJSON: %w", err)
		}
		geometries = append(geometries, g.Geometry())
	}

	for _, g := range geometries {
		switch g.(type) {
		case orb.Polygon, orb.MultiPolygon:
			return geom.Shape{Geometry: g}, nil
		}
	}
	return geom.Shape{}, ErrNoBoundary
}

// BoundaryFromEntities reconstructs the first relation, or the first
// closed way when there is none
func BoundaryFromEntities(entities []*entity.Entity) (geom.Shape, error) {
	graph := make(map[entity.Key]*entity.Entity, len(entities))
	var candidates []*entity.Entity
	var ways []*entity.Entity
	for _, e := range entities {
		graph[e.Key()] = e
		switch {
		case e.Kind == entity.KindArea:
			candidates = append(candidates, e)
		case e.Kind == entity.KindLine && len(e.Refs) > 3 && e.Refs[0] == e.Refs[len(e.Refs)-1]:
			ways = append(ways, e)
		}
	}
	candidates = append(candidates, ways...)

	engine := geom.NewEngine(func(k entity.Key) (*entity.Entity, bool) {
		e, ok := graph[k]
		return e, ok
	})
	for _, e := range candidates {
		shape, err := engine.Shape(e)
		if err != nil {
			return geom.Shape{}, fmt.Errorf("boundary %s: %w", e.Key(), err)
		}
		if shape.IsPolygonal() {
			return shape, nil
		}
	}
	return geom.Shape{}, ErrNoBoundary
}
