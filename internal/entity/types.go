package entity

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Kind identifies which OSM primitive an entity was read from
type Kind uint8

const (
	KindPoint Kind = iota // node
	KindLine              // way
	KindArea              // relation
)

// String returns the OSM element name of the kind
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "node"
	case KindLine:
		return "way"
	case KindArea:
		return "relation"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind accepts both long ("node") and short ("n") element names
func ParseKind(s string) (Kind, error) {
	switch s {
	case "node", "n":
		return KindPoint, nil
	case "way", "w":
		return KindLine, nil
	case "relation", "r":
		return KindArea, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q", s)
	}
}

// Key is the true identity of an entity. Ids are only unique within a kind.
type Key struct {
	Kind Kind
	ID   int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// Member is one (kind, ref, role) triple of an area entity
type Member struct {
	Kind Kind
	Ref  int64
	Role string // "outer", "inner" or empty (treated as outer)
}

// Key returns the key of the referenced entity
func (m Member) Key() Key {
	return Key{Kind: m.Kind, ID: m.Ref}
}

// IsInner reports whether the member bounds a hole
func (m Member) IsInner() bool {
	return m.Role == "inner"
}

// Meta holds upstream versioning attributes, carried through to the output
// so existing objects can be uploaded again
type Meta struct {
	Version   int
	Changeset int64
	Timestamp time.Time
	User      string
	UID       int
}

// Entity is a tagged, identified geographic object. Exactly one of the
// geometry fields is meaningful, depending on Kind:
//   - KindPoint: Lon, Lat
//   - KindLine:  Refs (ordered point ids)
//   - KindArea:  Members
//
// Entity is not safe for concurrent mutation; the spatial database
// serializes writes per entry.
type Entity struct {
	Kind Kind
	ID   int64 // negative ids are created locally and never persisted upstream
	Tags *Tags

	Lon, Lat float64
	Refs     []int64
	Members  []Member

	// Bounds is optional precomputed bounding-box metadata (overpass "out bb")
	Bounds *orb.Bound

	Meta Meta
}

// NewPoint creates a point entity
func NewPoint(id int64, lon, lat float64, tags *Tags) *Entity {
	return &Entity{Kind: KindPoint, ID: id, Lon: lon, Lat: lat, Tags: orEmpty(tags)}
}

// NewLine creates a line entity from ordered point references
func NewLine(id int64, refs []int64, tags *Tags) *Entity {
	return &Entity{Kind: KindLine, ID: id, Refs: refs, Tags: orEmpty(tags)}
}

// NewArea creates an area entity from its members
func NewArea(id int64, members []Member, tags *Tags) *Entity {
	return &Entity{Kind: KindArea, ID: id, Members: members, Tags: orEmpty(tags)}
}

func orEmpty(t *Tags) *Tags {
	if t == nil {
		return NewTags()
	}
	return t
}

// Key returns the kind+id identity of the entity
func (e *Entity) Key() Key {
	return Key{Kind: e.Kind, ID: e.ID}
}

// IsNew reports whether the entity was created during this run
func (e *Entity) IsNew() bool {
	return e.ID < 0
}

// Point returns the coordinates of a point entity
func (e *Entity) Point() orb.Point {
	return orb.Point{e.Lon, e.Lat}
}

// References returns the keys of every entity this one refers to directly
func (e *Entity) References() []Key {
	switch e.Kind {
	case KindLine:
		refs := make([]Key, len(e.Refs))
		for i, id := range e.Refs {
			refs[i] = Key{Kind: KindPoint, ID: id}
		}
		return refs
	case KindArea:
		refs := make([]Key, len(e.Members))
		for i, m := range e.Members {
			refs[i] = m.Key()
		}
		return refs
	}
	return nil
}

func (e *Entity) String() string {
	return e.Key().String()
}
