package entity

import "strings"

// Well-known address tags
const (
	TagHouseNumber = "addr:housenumber"
	TagStreet      = "addr:street"
	TagPlace       = "addr:place"
	TagCity        = "addr:city"
	TagPostcode    = "addr:postcode"
	TagSymUl       = "teryt:sym_ul"
	TagSimc        = "teryt:simc"
	TagSourceAddr  = "source:addr"
	TagSource      = "source"
	TagFixme       = "fixme"
	TagRefAddr     = "ref:addr"
	TagBuilding    = "building"
)

// addressOnlyTags are the tags an address point may carry and still be
// considered a bare address (foldable into a building)
var addressOnlyTags = map[string]bool{
	TagHouseNumber:       true,
	TagStreet:            true,
	TagPlace:             true,
	TagCity:              true,
	TagPostcode:          true,
	"addr:country":       true,
	TagSymUl:             true,
	TagRefAddr:           true,
	TagSimc:              true,
	TagSource:            true,
	TagSourceAddr:        true,
	TagFixme:             true,
	"addr:street:source": true,
}

func (e *Entity) HouseNumber() string { return e.Tags.Get(TagHouseNumber) }
func (e *Entity) Street() string      { return e.Tags.Get(TagStreet) }
func (e *Entity) Place() string       { return e.Tags.Get(TagPlace) }
func (e *Entity) Postcode() string    { return e.Tags.Get(TagPostcode) }
func (e *Entity) SymUl() string       { return e.Tags.Get(TagSymUl) }
func (e *Entity) Simc() string        { return e.Tags.Get(TagSimc) }
func (e *Entity) Fixme() string       { return e.Tags.Get(TagFixme) }

// City returns addr:city for street addresses and addr:place otherwise
func (e *Entity) City() string {
	if e.Street() != "" {
		return e.Tags.Get(TagCity)
	}
	return e.Tags.Get(TagPlace)
}

// HasAddress reports whether the entity carries a housenumber
func (e *Entity) HasAddress() bool {
	return e.HouseNumber() != ""
}

// OnlyAddress reports whether e is a point that carries a housenumber and
// nothing but address tags
func (e *Entity) OnlyAddress() bool {
	if e.Kind != KindPoint || !e.HasAddress() {
		return false
	}
	only := true
	e.Tags.Each(func(k, _ string) {
		if !addressOnlyTags[k] {
			only = false
		}
	})
	return only
}

// AppendFixme adds note to the fixme tag unless it is already there.
// Returns true if the tag changed.
func (e *Entity) AppendFixme(note string) bool {
	note = strings.TrimSpace(note)
	if note == "" {
		return false
	}
	cur := e.Fixme()
	if cur == "" {
		return e.Tags.Set(TagFixme, note)
	}
	if strings.Contains(cur, note) {
		return false
	}
	return e.Tags.Set(TagFixme, cur+"; "+note)
}
