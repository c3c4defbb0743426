package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/config"
	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/geom"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/reader"
	"github.com/wegman-software/addrmerge/internal/spatial"
)

// Shapes reconstructs the candidate ways and relations of the snapshot
func Shapes(ctx context.Context, cfg *config.Config) (*geojson.FeatureCollection, error) {
	entities, err := reader.ReadSnapshot(ctx, cfg.SnapshotFile)
	if err != nil {
		return nil, err
	}
	db, err := spatial.Build(ctx, entities, cfg.Filter.Candidates().Match)
	if err != nil {
		return nil, fmt.Errorf("failed to build spatial database: %w", err)
	}
	return ShapeCollection(db, cfg.Filter.Candidates().Match), nil
}

// ShapeCollection converts the shapes of every non-point entry accepted by
// filter into GeoJSON features. Broken geometries are logged and skipped.
func ShapeCollection(db *spatial.DB, filter spatial.Filter) *geojson.FeatureCollection {
	log := logger.Get()
	fc := geojson.NewFeatureCollection()

	for _, en := range db.Entries() {
		if en.Kind() == entity.KindPoint || (filter != nil && !filter(en.Entity())) {
			continue
		}
		shape, err := en.Shape()
		if err != nil {
			var bg *geom.BrokenGeometryError
			if errors.As(err, &bg) {
				log.Warn("Skipping broken geometry", zap.String("entity", bg.Key.String()), zap.String("reason", bg.Reason))
			}
			continue
		}

		f := geojson.NewFeature(shape.Geometry)
		f.ID = en.Key().String()
		f.Properties["osm_type"] = en.Kind().String()
		f.Properties["osm_id"] = en.ID()
		if shape.Degenerate {
			f.Properties["degenerate"] = true
		}
		en.Entity().Tags.Each(func(k, v string) {
			f.Properties[k] = v
		})
		fc.Append(f)
	}
	return fc
}
