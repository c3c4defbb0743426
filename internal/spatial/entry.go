package spatial

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/geom"
)

// Entry wraps one entity in the database together with its state and
// cached shape. Tags and state are guarded by the entry's own mutex so that
// workers may update different entries concurrently.
type Entry struct {
	entity *entity.Entity

	shape    geom.Shape
	shapeErr error
	center   orb.Point

	mu    sync.Mutex
	state State
}

func newEntry(e *entity.Entity, shape geom.Shape, err error) *Entry {
	en := &Entry{entity: e, shape: shape, shapeErr: err}
	if err == nil {
		en.center = shape.Centroid()
	}
	return en
}

// Key returns the identity of the wrapped entity
func (e *Entry) Key() entity.Key { return e.entity.Key() }

// Kind returns the kind of the wrapped entity
func (e *Entry) Kind() entity.Kind { return e.entity.Kind }

// ID returns the id of the wrapped entity
func (e *Entry) ID() int64 { return e.entity.ID }

// Entity returns the wrapped entity. Callers must not mutate it while
// workers may still be updating the entry.
func (e *Entry) Entity() *entity.Entity { return e.entity }

// Shape returns the reconstructed shape, or the geometry error
func (e *Entry) Shape() (geom.Shape, error) { return e.shape, e.shapeErr }

// Polygonal reports whether the entry has a usable polygon shape
func (e *Entry) Polygonal() bool {
	return e.shapeErr == nil && e.shape.IsPolygonal()
}

// Contains reports whether the entry's shape contains p
func (e *Entry) Contains(p orb.Point) bool {
	return e.shapeErr == nil && e.shape.Contains(p)
}

// Center returns the centroid used for nearest-neighbour queries
func (e *Entry) Center() orb.Point { return e.center }

// Point implements orb.Pointer for the quadtree
func (e *Entry) Point() orb.Point { return e.center }

// Distance returns the geodesic distance in meters from p to the centroid
func (e *Entry) Distance(p orb.Point) float64 {
	return geom.Distance(e.center, p)
}

// State returns the current state
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Mark requests a state transition and returns the resulting state
func (e *Entry) Mark(s State) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.state.Apply(s)
	return e.state
}

// Tag returns a single tag value
func (e *Entry) Tag(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entity.Tags.Get(key)
}

// Tags returns a copy of the tags
func (e *Entry) Tags() *entity.Tags {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entity.Tags.Clone()
}

// HasAddress reports whether the entity carries a housenumber
func (e *Entry) HasAddress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entity.HasAddress()
}

// OnlyAddress reports whether the entity is a point with only address tags
func (e *Entry) OnlyAddress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entity.OnlyAddress()
}

// Address returns a snapshot of the entry's address
func (e *Entry) Address() *address.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return address.FromEntity(e.entity, e.center)
}

// AddressKey returns the exact-match key of the entry's address
func (e *Entry) AddressKey() address.Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.entity
	return address.MakeKey(t.City(), t.Street(), t.HouseNumber())
}

// AppendFixme adds a note to the fixme tag without touching the state.
// Returns true if the tag changed.
func (e *Entry) AppendFixme(note string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entity.AppendFixme(note)
}

// Update runs fn on the entity under the entry lock. When fn reports
// a change the entry is promoted to Modify.
func (e *Entry) Update(fn func(ent *entity.Entity) bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !fn(e.entity) {
		return false
	}
	e.state = e.state.Apply(Modify)
	return true
}

func (e *Entry) String() string {
	return e.entity.Key().String()
}
