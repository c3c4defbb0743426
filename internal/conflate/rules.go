package conflate

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/spatial"
)

// Rule identifies which rule of the chain handled a record
type Rule uint8

const (
	RuleExisting Rule = iota + 1 // exact address key
	RuleWithin                   // containing building
	RuleNearest                  // same housenumber close by
	RuleCreate                   // new point
)

func (r Rule) String() string {
	switch r {
	case RuleExisting:
		return "existing"
	case RuleWithin:
		return "within"
	case RuleNearest:
		return "nearest"
	case RuleCreate:
		return "create"
	}
	return fmt.Sprintf("rule(%d)", uint8(r))
}

// candidate is an entry with its distance to the import location
type candidate struct {
	entry    *spatial.Entry
	distance float64
}

func byDistance(rec *address.Address, entries []*spatial.Entry) []candidate {
	out := make([]candidate, len(entries))
	for i, e := range entries {
		out[i] = candidate{entry: e, distance: e.Distance(rec.Location)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].distance < out[j].distance })
	return out
}

// MergeOne runs the rule chain for one record. The first rule that
// handles the record stops the chain.
func (m *Merger) MergeOne(rec *address.Address) Rule {
	logger.Get().Debug("Processing address", zap.Stringer("address", rec))

	switch {
	case m.mergeByExisting(rec):
		return RuleExisting
	case m.mergeByWithin(rec):
		return RuleWithin
	case m.mergeByNearest(rec):
		return RuleNearest
	}
	m.createPoint(rec)
	return RuleCreate
}

// mergeByExisting matches by exact address key
func (m *Merger) mergeByExisting(rec *address.Address) bool {
	found := m.db.Lookup(IndexAddress, rec.Key())
	if len(found) == 0 {
		return false
	}
	log := logger.Get()
	matches := byDistance(rec, found)

	if len(matches) > 1 {
		m.stats.duplicates.Add(1)
		parts := make([]string, len(matches))
		for i, c := range matches {
			parts[i] = fmt.Sprintf("%s (%.0fm)", c.entry, c.distance)
		}
		ids := strings.Join(parts, ", ")
		log.Warn("More than one address for import record",
			zap.Stringer("address", rec), zap.String("matches", ids))
		for _, c := range matches {
			c.entry.AppendFixme("Duplicate address: " + ids)
			c.entry.Mark(spatial.Visible)
		}
	}

	nearest, farthest := matches[0], matches[len(matches)-1]
	if farthest.distance > m.cfg.FarMatchMeters {
		containing := false
		for _, c := range matches {
			inside := c.entry.Kind() != entity.KindPoint && c.entry.Contains(rec.Location)
			containing = containing || inside
			if c.distance > m.cfg.FarMatchMeters && !inside {
				log.Warn("Address is far from imported point",
					zap.String("entity", c.entry.String()),
					zap.Stringer("address", rec),
					zap.Float64("distance_m", c.distance))
				c.entry.AppendFixme(fmt.Sprintf("Node is %.0f meters away from imported point", c.distance))
				c.entry.Mark(spatial.Visible)
			}
		}
		if nearest.distance > m.cfg.RelocatedMeters && !containing {
			log.Debug("Closest address is too far, creating new point",
				zap.Stringer("address", rec), zap.Float64("distance_m", nearest.distance))
			m.createPoint(rec)
			return true
		}
	}

	m.update(nearest.entry, rec)
	return true
}

// mergeByWithin matches against the building containing the import point
func (m *Merger) mergeByWithin(rec *address.Address) bool {
	var within []*spatial.Entry
	for _, c := range m.db.Nearest(rec.Location, m.cfg.NearestCandidates) {
		if c.Kind() != entity.KindPoint && c.Contains(rec.Location) {
			within = append(within, c)
		}
	}
	if len(within) == 0 {
		return false
	}
	log := logger.Get()
	c := byDistance(rec, within)[0].entry

	if !c.HasAddress() {
		log.Debug("Building contains no address, creating point", zap.String("building", c.String()))
		m.createPoint(rec)
		return true
	}

	existing := c.Address()
	if address.Similar(existing, rec) && existing.Street == rec.Street {
		m.update(c, rec)
		return true
	}
	if address.Similar(existing, rec) {
		log.Info("Different street names",
			zap.String("import", rec.Street), zap.String("osm", existing.Street),
			zap.Stringer("address", rec), zap.String("entity", c.String()))
	}
	log.Debug("Adding point within building with different address",
		zap.Stringer("address", rec), zap.String("building", c.String()))
	rec.AddFixme(fmt.Sprintf("Address inside %s which has a different address: %s", c, existing))
	m.createPoint(rec)
	return true
}

// mergeByNearest matches a nearby entry with the same housenumber
func (m *Merger) mergeByNearest(rec *address.Address) bool {
	var same []*spatial.Entry
	for _, c := range m.db.Nearest(rec.Location, m.cfg.NearestCandidates) {
		if c.Tag(entity.TagHouseNumber) == rec.HouseNumber &&
			c.Distance(rec.Location) < m.cfg.SamePlaceMeters {
			same = append(same, c)
		}
	}
	if len(same) == 0 {
		return false
	}

	for _, c := range same {
		if address.Similar(c.Address(), rec) {
			m.update(c, rec)
			return true
		}
	}

	for _, c := range same {
		if a := c.Address(); a.HouseNumber != "" && a.City != "" {
			names := make([]string, len(same))
			for i, s := range same {
				names[i] = s.Address().String()
			}
			logger.Get().Info("Found probably same address, skipping",
				zap.Stringer("address", rec),
				zap.Float64("lon", rec.Location.Lon()), zap.Float64("lat", rec.Location.Lat()),
				zap.String("osm", strings.Join(names, ", ")))
			m.stats.skipped.Add(1)
			return true
		}
	}
	return false
}

// createPoint adds a new address point for rec
func (m *Merger) createPoint(rec *address.Address) *spatial.Entry {
	id := m.nextID.Add(-1)
	e := entity.NewPoint(id, rec.Location.Lon(), rec.Location.Lat(), rec.Tags())
	en := m.db.Insert(e)
	en.Mark(spatial.Modify)

	m.mu.Lock()
	m.created = append(m.created, en)
	m.mu.Unlock()
	m.stats.created.Add(1)

	logger.Get().Debug("Created address point", zap.Int64("id", id), zap.Stringer("address", rec))
	return en
}

func (m *Merger) update(en *spatial.Entry, rec *address.Address) {
	if UpdateFrom(en, rec) {
		m.stats.updated.Add(1)
		logger.Get().Debug("Updated address", zap.String("entity", en.String()), zap.Stringer("address", rec))
	} else {
		m.stats.unchanged.Add(1)
	}
}

// UpdateFrom copies the address of rec onto the entry. Returns true when a
// visible address field changed, in which case the entry is promoted to
// Modify. Registry codes and provenance are copied without counting as a
// change.
func UpdateFrom(en *spatial.Entry, rec *address.Address) bool {
	return en.Update(func(e *entity.Entity) bool {
		t := e.Tags
		changed := false
		set := func(key, value string) {
			if t.Set(key, value) {
				changed = true
			}
		}
		del := func(key string) {
			if t.Delete(key) {
				changed = true
			}
		}

		if rec.Street != "" {
			set(entity.TagCity, rec.City)
			set(entity.TagStreet, rec.Street)
			del(entity.TagPlace)
		} else {
			set(entity.TagPlace, rec.City)
			del(entity.TagStreet)
			del(entity.TagCity)
		}
		set(entity.TagHouseNumber, rec.HouseNumber)
		if rec.Postcode != "" {
			set(entity.TagPostcode, rec.Postcode)
		}
		if f := rec.Fixme(); f != "" && e.AppendFixme(f) {
			changed = true
		}

		provenance := []struct{ key, value string }{
			{entity.TagSymUl, rec.SymUl},
			{entity.TagSimc, rec.Simc},
			{entity.TagSourceAddr, rec.Source},
			{entity.TagRefAddr, rec.ExtID},
		}
		for _, p := range provenance {
			if p.value != "" {
				t.Set(p.key, p.value)
			}
		}
		return changed
	})
}
