package conflate

import (
	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/spatial"
)

// tags never copied from an address point onto a building
var buildingKeepTags = map[string]bool{
	entity.TagSource: true,
	"created_by":     true,
}

// mergeGroup is the set of address points that fell into one building
type mergeGroup struct {
	building *spatial.Entry
	points   []*spatial.Entry
}

// MergeBuildings folds freestanding address points into the building that
// contains them, trying each buffer in increasing order. Later buffers only
// see points that earlier ones left unmerged. Returns the number of points
// merged.
func (m *Merger) MergeBuildings() int {
	total := 0
	for _, buf := range m.cfg.BuildingBuffers {
		total += m.mergeBuildingsBuffer(buf)
	}
	return total
}

func (m *Merger) mergeBuildingsBuffer(buf float64) int {
	log := logger.Get()
	groups := m.prepareMergeList(buf)
	log.Info("Merging addresses with buildings", zap.Float64("buffer_m", buf), zap.Int("buildings", len(groups)))

	merged := 0
	for _, g := range groups {
		g.building.Mark(spatial.Visible)

		if len(g.points) > 1 && !mutuallySimilar(g.points) {
			log.Info("Dissimilar addresses inside one building, leaving for review",
				zap.String("building", g.building.String()), zap.Int("points", len(g.points)))
			for _, p := range g.points {
				p.Mark(spatial.Visible)
			}
			continue
		}

		if g.building.HasAddress() && !address.Similar(g.building.Address(), g.points[0].Address()) {
			log.Info("Building already has a different address, skipping",
				zap.String("building", g.building.String()),
				zap.Stringer("building_address", g.building.Address()),
				zap.Stringer("address", g.points[0].Address()))
			for _, p := range g.points {
				p.Mark(spatial.Visible)
			}
			continue
		}

		for _, p := range g.points {
			mergePoint(g.building, p)
			merged++
		}
	}
	m.stats.merged.Add(int64(merged))
	return merged
}

// prepareMergeList groups every live address-only point by the building
// whose buffered shape contains it. Groups keep first-seen order.
func (m *Merger) prepareMergeList(buf float64) []*mergeGroup {
	var groups []*mergeGroup
	byBuilding := make(map[entity.Key]*mergeGroup)

	for _, p := range m.db.Entries() {
		if p.Kind() != entity.KindPoint || p.State() == spatial.Delete || !p.OnlyAddress() {
			continue
		}
		if m.boundary != nil && !m.boundary.Contains(p.Center()) {
			continue
		}

		b := m.findBuilding(p, buf)
		if b == nil {
			continue
		}
		g, ok := byBuilding[b.Key()]
		if !ok {
			g = &mergeGroup{building: b}
			byBuilding[b.Key()] = g
			groups = append(groups, g)
		}
		g.points = append(g.points, p)
	}
	return groups
}

// findBuilding returns the closest building whose shape, grown by buf
// meters, contains p. Relations are preferred over ways.
func (m *Merger) findBuilding(p *spatial.Entry, buf float64) *spatial.Entry {
	near := m.db.Nearest(p.Center(), m.cfg.NearestCandidates)
	for _, kind := range []entity.Kind{entity.KindArea, entity.KindLine} {
		var within []*spatial.Entry
		for _, c := range near {
			if c.Kind() != kind || c.State() == spatial.Delete || !c.Polygonal() {
				continue
			}
			shape, _ := c.Shape()
			if shape.BufferedContains(p.Center(), buf) {
				within = append(within, c)
			}
		}
		if len(within) > 0 {
			best := within[0]
			for _, c := range within[1:] {
				if c.Distance(p.Center()) < best.Distance(p.Center()) {
					best = c
				}
			}
			return best
		}
	}
	return nil
}

// mutuallySimilar reports whether every pair of points is similar
func mutuallySimilar(points []*spatial.Entry) bool {
	addrs := make([]*address.Address, len(points))
	for i, p := range points {
		addrs[i] = p.Address()
	}
	for i := range addrs {
		for j := i + 1; j < len(addrs); j++ {
			if !address.Similar(addrs[i], addrs[j]) {
				return false
			}
		}
	}
	return true
}

// mergePoint copies the address tags of p onto building and deletes p
func mergePoint(building, p *spatial.Entry) {
	tags := p.Tags()
	building.Update(func(e *entity.Entity) bool {
		changed := false
		tags.Each(func(k, v string) {
			switch {
			case buildingKeepTags[k]:
			case k == entity.TagFixme:
				changed = e.AppendFixme(v) || changed
			default:
				changed = e.Tags.Set(k, v) || changed
			}
		})
		return changed
	})
	building.Mark(spatial.Modify)
	p.Mark(spatial.Delete)

	logger.Get().Debug("Merged address into building",
		zap.String("point", p.String()), zap.String("building", building.String()))
}
