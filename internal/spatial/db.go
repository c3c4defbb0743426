package spatial

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/addrmerge/internal/entity"
	"github.com/wegman-software/addrmerge/internal/geom"
	"github.com/wegman-software/addrmerge/internal/logger"
)

// World is the bound of the nearest-neighbour index, in lon/lat degrees
var World = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// Filter decides whether an entity is offered as a conflation candidate.
// Entities that do not pass are still stored so references resolve.
type Filter func(e *entity.Entity) bool

// KeyFunc extracts the secondary index key of an entry. Returning false
// leaves the entry out of the index.
type KeyFunc func(e *Entry) (any, bool)

// Index declares a named secondary index
type Index struct {
	Name string
	Key  KeyFunc
}

// DB is an in-memory spatial database over entity centroids with named
// secondary indexes.
//
// Nearest and Lookup may run concurrently with each other and with Insert.
// Tag and state changes are not reflected in the indexes until RebuildIndex
// is called, which must not overlap any other call.
type DB struct {
	engine    *geom.Engine
	candidate Filter
	indexes   []Index

	// entity graph used for shape reconstruction
	gmu   sync.RWMutex
	graph map[entity.Key]*entity.Entity

	mu      sync.RWMutex
	entries []*Entry
	byKey   map[entity.Key]*Entry
	tree    *quadtree.Quadtree
	lookup  map[string]map[any][]*Entry
}

// Build loads entities, reconstructs their shapes and builds the indexes.
// A nil filter accepts every entity.
func Build(ctx context.Context, entities []*entity.Entity, candidate Filter, indexes ...Index) (*DB, error) {
	db := &DB{
		candidate: candidate,
		indexes:   indexes,
		graph:     make(map[entity.Key]*entity.Entity, len(entities)),
		byKey:     make(map[entity.Key]*Entry, len(entities)),
	}
	db.engine = geom.NewEngine(db.resolve)

	for _, e := range entities {
		db.graph[e.Key()] = e
	}

	db.entries = make([]*Entry, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, e := range entities {
		i, e := i, e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shape, err := db.engine.Shape(e)
			db.entries[i] = newEntry(e, shape, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	broken := 0
	for _, en := range db.entries {
		db.byKey[en.Key()] = en
		if en.shapeErr != nil {
			broken++
			var bg *geom.BrokenGeometryError
			if errors.As(en.shapeErr, &bg) {
				logger.Get().Warn("Broken geometry", zap.String("entity", bg.Key.String()), zap.String("reason", bg.Reason))
			}
		}
	}

	db.RebuildIndex()

	logger.Get().Info("Spatial database built",
		zap.Int("entities", len(db.entries)),
		zap.Int("shapes_cached", db.engine.Cached()),
		zap.Int("broken", broken))

	return db, nil
}

func (db *DB) resolve(k entity.Key) (*entity.Entity, bool) {
	db.gmu.RLock()
	defer db.gmu.RUnlock()
	e, ok := db.graph[k]
	return e, ok
}

// Engine returns the geometry engine backing the database
func (db *DB) Engine() *geom.Engine { return db.engine }

// Resolve returns the entity stored under k
func (db *DB) Resolve(k entity.Key) (*entity.Entity, bool) {
	return db.resolve(k)
}

// Get returns the entry stored under k
func (db *DB) Get(k entity.Key) (*Entry, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	en, ok := db.byKey[k]
	return en, ok
}

// Entries returns all entries in insertion order
func (db *DB) Entries() []*Entry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*Entry(nil), db.entries...)
}

// Len returns the number of stored entries
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.entries)
}

// Nearest returns up to k indexed entries ordered by planar proximity of
// their centroids to p. Callers needing geodesic order re-sort.
func (db *DB) Nearest(p orb.Point, k int) []*Entry {
	db.mu.RLock()
	defer db.mu.RUnlock()

	found := db.tree.KNearest(nil, p, k)
	out := make([]*Entry, 0, len(found))
	for _, f := range found {
		out = append(out, f.(*Entry))
	}
	return out
}

// Lookup returns the entries stored under key in the named index
func (db *DB) Lookup(name string, key any) []*Entry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*Entry(nil), db.lookup[name][key]...)
}

// Keys returns every key of the named index
func (db *DB) Keys(name string) []any {
	db.mu.RLock()
	defer db.mu.RUnlock()
	idx := db.lookup[name]
	keys := make([]any, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	return keys
}

// Insert registers a newly created entity and makes it visible to Nearest
// and Lookup immediately
func (db *DB) Insert(e *entity.Entity) *Entry {
	shape, err := db.engine.Shape(e)
	en := newEntry(e, shape, err)

	db.gmu.Lock()
	db.graph[e.Key()] = e
	db.gmu.Unlock()

	db.mu.Lock()
	defer db.mu.Unlock()
	db.entries = append(db.entries, en)
	db.byKey[e.Key()] = en
	db.index(en)
	return en
}

// RebuildIndex rebuilds the quadtree and every secondary index from the
// current tags and states. Deleted entries are left out.
func (db *DB) RebuildIndex() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.tree = quadtree.New(World)
	db.lookup = make(map[string]map[any][]*Entry, len(db.indexes))
	for _, idx := range db.indexes {
		db.lookup[idx.Name] = make(map[any][]*Entry)
	}
	for _, en := range db.entries {
		db.index(en)
	}
}

// index adds en to the quadtree and secondary indexes; db.mu must be held
func (db *DB) index(en *Entry) {
	if en.shapeErr != nil || en.State() == Delete {
		return
	}
	if db.candidate != nil && !db.candidate(en.entity) {
		return
	}
	if err := db.tree.Add(en); err != nil {
		logger.Get().Debug("Entity outside index bounds", zap.String("entity", en.String()))
		return
	}
	for _, idx := range db.indexes {
		if k, ok := idx.Key(en); ok {
			db.lookup[idx.Name][k] = append(db.lookup[idx.Name][k], en)
		}
	}
}
