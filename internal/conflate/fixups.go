package conflate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/spatial"
)

// FixStreets takes the street spelling of the map for records that have a
// similar address mapped nearby under a different street name. Runs
// sequentially before the rule chain, as it rewrites records.
func (m *Merger) FixStreets() {
	for _, rec := range m.records {
		m.fixSimilarStreet(rec)
	}
}

func (m *Merger) fixSimilarStreet(rec *address.Address) {
	for _, c := range m.db.Nearest(rec.Location, m.cfg.NearestCandidates) {
		existing := c.Address()
		if !address.Similar(existing, rec) {
			continue
		}

		if existing.Street == "" || rec.Street == "" || existing.Street == rec.Street {
			return
		}
		dist := c.Distance(rec.Location)
		near := false
		if c.Kind() == entity.KindPoint {
			near = dist < m.cfg.FixupPointMeters
		} else {
			near = c.Contains(rec.Location) || dist < m.cfg.FixupAreaMeters
		}
		if !near {
			return
		}

		logger.Get().Warn("Changing street name in import to the one mapped",
			zap.String("import", rec.Street), zap.String("osm", existing.Street),
			zap.String("entity", c.String()), zap.Float64("distance_m", dist))
		rec.AddFixme("Street name in import source: " + rec.Street)
		rec.Street = existing.Street
		m.stats.streetFixes.Add(1)
		return
	}
}

// MarkNotExisting flags address points inside the boundary whose address
// is not part of the import batch. With an extent set, only points inside
// it are considered. Returns the number of points flagged.
func (m *Merger) MarkNotExisting() (int, error) {
	if len(m.records) == 0 {
		return 0, ErrEmptyImport
	}
	log := logger.Get()
	if m.boundary == nil {
		log.Info("No boundary given, skipping not-existing scan")
		return 0, nil
	}

	imported := make(map[address.Key]bool, len(m.records))
	for _, rec := range m.records {
		imported[rec.Key()] = true
	}

	var missing []address.Key
	for _, k := range m.db.Keys(IndexAddress) {
		key := k.(address.Key)
		if !imported[key] {
			missing = append(missing, key)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })

	marked := 0
	for _, key := range missing {
		for _, en := range m.db.Lookup(IndexAddress, key) {
			if !en.OnlyAddress() || !m.boundary.Contains(en.Center()) || !m.inExtent(en) {
				continue
			}
			log.Debug("Address not in import", zap.String("entity", en.String()), zap.Stringer("key", key))
			en.AppendFixme("Check address existence")
			en.Mark(spatial.Visible)
			marked++
		}
	}
	m.stats.notExisting.Add(int64(marked))
	log.Info("Marked not existing addresses", zap.Int("count", marked), zap.Int("keys", len(missing)))
	return marked, nil
}

func (m *Merger) inExtent(en *spatial.Entry) bool {
	if m.extent == nil {
		return true
	}
	c := en.Center()
	return m.extent.Contains(c.Lat(), c.Lon())
}
