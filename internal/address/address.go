package address

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/paulmach/orb"

	"github.com/wegman-software/addrmerge/internal/entity"
)

// ErrMissingField is returned by Validate for records lacking a mandatory field
var ErrMissingField = errors.New("missing mandatory address field")

// Address is one geocoded address record. For addresses without a street,
// City holds the place name (addr:place).
type Address struct {
	HouseNumber string
	Postcode    string
	Street      string
	City        string
	SymUl       string // street registry code
	Simc        string // city registry code
	Source      string
	ExtID       string
	Location    orb.Point // lon, lat

	notes []string
}

// FromEntity reads the address tags of a mapped entity
func FromEntity(e *entity.Entity, center orb.Point) *Address {
	a := &Address{
		HouseNumber: e.HouseNumber(),
		Postcode:    e.Postcode(),
		Street:      e.Street(),
		City:        e.City(),
		SymUl:       e.SymUl(),
		Simc:        e.Simc(),
		Source:      e.Tags.Get(entity.TagSourceAddr),
		ExtID:       e.Tags.Get(entity.TagRefAddr),
		Location:    center,
	}
	if f := e.Fixme(); f != "" {
		a.notes = append(a.notes, f)
	}
	return a
}

// AddFixme appends a diagnostic note. Notes are never removed.
func (a *Address) AddFixme(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	for _, n := range a.notes {
		if n == note {
			return
		}
	}
	a.notes = append(a.notes, note)
}

// Notes returns the accumulated notes in order
func (a *Address) Notes() []string {
	return append([]string(nil), a.notes...)
}

// Fixme returns all notes joined into a single fixme value
func (a *Address) Fixme() string {
	return strings.Join(a.notes, "; ")
}

// Key returns the exact-match index key of the record
func (a *Address) Key() Key {
	return MakeKey(a.City, a.Street, a.HouseNumber)
}

// Validate checks the fields conflation cannot work without
func (a *Address) Validate() error {
	switch {
	case strings.TrimSpace(a.HouseNumber) == "":
		return fmt.Errorf("%w: housenumber", ErrMissingField)
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("%w: city", ErrMissingField)
	case a.Location == (orb.Point{}):
		return fmt.Errorf("%w: location", ErrMissingField)
	}
	return nil
}

// Tags renders the record as OSM tags for a new point
func (a *Address) Tags() *entity.Tags {
	tags := entity.NewTags(entity.TagHouseNumber, a.HouseNumber)
	if a.Street != "" {
		tags.Set(entity.TagStreet, a.Street)
		tags.Set(entity.TagCity, a.City)
	} else {
		tags.Set(entity.TagPlace, a.City)
	}
	optional := []struct{ key, value string }{
		{entity.TagPostcode, a.Postcode},
		{entity.TagSymUl, a.SymUl},
		{entity.TagSimc, a.Simc},
		{entity.TagSourceAddr, a.Source},
		{entity.TagRefAddr, a.ExtID},
		{entity.TagFixme, a.Fixme()},
	}
	for _, o := range optional {
		if o.value != "" {
			tags.Set(o.key, o.value)
		}
	}
	return tags
}

func (a *Address) String() string {
	if a.Street != "" {
		return fmt.Sprintf("%s %s, %s", a.Street, a.HouseNumber, a.City)
	}
	return fmt.Sprintf("%s %s", a.City, a.HouseNumber)
}

// Key is the normalized (city, street-or-place, housenumber) tuple used for
// exact lookups. Equal keys make records candidates for deduplication, not
// proof of identity.
type Key struct {
	City        string
	Street      string
	HouseNumber string
}

// MakeKey builds a key; an empty street falls back to the city (place
// addresses)
func MakeKey(city, street, housenumber string) Key {
	if street == "" {
		street = city
	}
	return Key{
		City:        strings.ToUpper(strings.TrimSpace(city)),
		Street:      strings.ToUpper(strings.TrimSpace(street)),
		HouseNumber: stripSpaces(housenumber),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %s, %s)", k.City, k.Street, k.HouseNumber)
}

// Similar reports whether a and b describe the same address. Street text is
// not compared: the import spelling often differs from the map.
func Similar(a, b *Address) bool {
	if a.ExtID != "" && a.ExtID == b.ExtID {
		return true
	}
	if normalizeHouseNumber(a.HouseNumber) != normalizeHouseNumber(b.HouseNumber) {
		return false
	}
	if a.Simc != "" && b.Simc != "" {
		if a.Simc != b.Simc {
			return false
		}
	} else if a.City != b.City {
		return false
	}
	if a.SymUl != "" && b.SymUl != "" && a.SymUl != b.SymUl {
		return false
	}
	return true
}

func normalizeHouseNumber(s string) string {
	return strings.ToUpper(stripSpaces(s))
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
