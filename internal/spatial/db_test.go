package spatial

import (
	"context"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/addrmerge/internal/address"
	"github.com/wegman-software/addrmerge/internal/entity"
)

const byAddress = "address"

var addressIndex = Index{
	Name: byAddress,
	Key: func(e *Entry) (any, bool) {
		if !e.HasAddress() {
			return nil, false
		}
		return e.AddressKey(), true
	},
}

func addrPoint(id int64, lon, lat float64, street, hn string) *entity.Entity {
	return entity.NewPoint(id, lon, lat, entity.NewTags(
		entity.TagCity, "Lubań",
		entity.TagStreet, street,
		entity.TagHouseNumber, hn,
	))
}

func buildDB(t *testing.T, entities ...*entity.Entity) *DB {
	t.Helper()
	db, err := Build(context.Background(), entities, nil, addressIndex)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return db
}

func TestNearest(t *testing.T) {
	db := buildDB(t,
		addrPoint(1, 15.300, 51.100, "Kościuszki", "1"),
		addrPoint(2, 15.310, 51.100, "Kościuszki", "2"),
		addrPoint(3, 15.301, 51.100, "Kościuszki", "3"),
	)

	got := db.Nearest(orb.Point{15.3, 51.1}, 2)
	if len(got) != 2 {
		t.Fatalf("Nearest() returned %d entries, want 2", len(got))
	}
	if got[0].ID() != 1 || got[1].ID() != 3 {
		t.Errorf("Nearest() = [%v %v], want [node:1 node:3]", got[0], got[1])
	}
}

func TestLookup(t *testing.T) {
	db := buildDB(t,
		addrPoint(1, 15.300, 51.100, "Kościuszki", "5"),
		addrPoint(2, 15.305, 51.100, "Kościuszki", "5"),
		addrPoint(3, 15.301, 51.100, "Kościuszki", "6"),
		entity.NewPoint(4, 15.3, 51.1, entity.NewTags("amenity", "bench")),
	)

	got := db.Lookup(byAddress, address.MakeKey("Lubań", "Kościuszki", "5"))
	if len(got) != 2 {
		t.Fatalf("Lookup() returned %d entries, want 2", len(got))
	}
	if got[0].ID() != 1 || got[1].ID() != 2 {
		t.Errorf("Lookup() not in insertion order: %v, %v", got[0], got[1])
	}

	if got := db.Lookup(byAddress, address.MakeKey("Lubań", "Kościuszki", "99")); len(got) != 0 {
		t.Errorf("Lookup() of missing key returned %d entries", len(got))
	}
	if got := db.Lookup("missing", address.Key{}); len(got) != 0 {
		t.Errorf("Lookup() on unknown index returned %d entries", len(got))
	}
	if n := len(db.Keys(byAddress)); n != 2 {
		t.Errorf("Keys() returned %d keys, want 2", n)
	}
}

func TestInsertIsImmediatelyVisible(t *testing.T) {
	db := buildDB(t, addrPoint(1, 15.300, 51.100, "Kościuszki", "1"))

	en := db.Insert(addrPoint(-1, 15.3001, 51.1001, "Kościuszki", "2"))
	if en.ID() != -1 {
		t.Fatalf("Insert() id = %d, want -1", en.ID())
	}

	near := db.Nearest(orb.Point{15.3001, 51.1001}, 1)
	if len(near) != 1 || near[0] != en {
		t.Errorf("Nearest() = %v, want inserted entry", near)
	}
	if got := db.Lookup(byAddress, address.MakeKey("Lubań", "Kościuszki", "2")); len(got) != 1 {
		t.Errorf("Lookup() of inserted key returned %d entries, want 1", len(got))
	}
	if _, ok := db.Get(entity.Key{Kind: entity.KindPoint, ID: -1}); !ok {
		t.Error("Get() did not find inserted entry")
	}
}

func TestRebuildIndexObservesChanges(t *testing.T) {
	db := buildDB(t,
		addrPoint(1, 15.300, 51.100, "Kościuszki", "1"),
		addrPoint(2, 15.301, 51.100, "Kościuszki", "2"),
	)
	one, _ := db.Get(entity.Key{Kind: entity.KindPoint, ID: 1})
	two, _ := db.Get(entity.Key{Kind: entity.KindPoint, ID: 2})

	one.Update(func(e *entity.Entity) bool {
		return e.Tags.Set(entity.TagStreet, "Wrocławska")
	})
	two.Mark(Delete)

	oldKey := address.MakeKey("Lubań", "Kościuszki", "1")
	newKey := address.MakeKey("Lubań", "Wrocławska", "1")

	// stale until rebuilt
	if got := db.Lookup(byAddress, oldKey); len(got) != 1 {
		t.Errorf("before rebuild Lookup(old) = %d entries, want 1", len(got))
	}

	db.RebuildIndex()

	if got := db.Lookup(byAddress, oldKey); len(got) != 0 {
		t.Errorf("after rebuild Lookup(old) = %d entries, want 0", len(got))
	}
	if got := db.Lookup(byAddress, newKey); len(got) != 1 {
		t.Errorf("after rebuild Lookup(new) = %d entries, want 1", len(got))
	}
	for _, en := range db.Nearest(orb.Point{15.301, 51.1}, 5) {
		if en == two {
			t.Error("deleted entry still returned by Nearest()")
		}
	}
	if one.State() != Modify {
		t.Errorf("updated entry state = %v, want modify", one.State())
	}
}

func TestBuildKeepsNonCandidates(t *testing.T) {
	onlyAddresses := func(e *entity.Entity) bool { return e.HasAddress() }
	bench := entity.NewPoint(4, 15.3, 51.1, entity.NewTags("amenity", "bench"))

	db, err := Build(context.Background(), []*entity.Entity{bench}, onlyAddresses)
	if err != nil {
		t.Fatal(err)
	}
	if got := db.Nearest(orb.Point{15.3, 51.1}, 1); len(got) != 0 {
		t.Errorf("Nearest() returned non-candidate %v", got)
	}
	if _, ok := db.Resolve(bench.Key()); !ok {
		t.Error("non-candidate entity not resolvable")
	}
}

func TestBuildSkipsBrokenShapes(t *testing.T) {
	nodes := []*entity.Entity{
		entity.NewPoint(1, 15.300, 51.100, nil),
		entity.NewPoint(2, 15.301, 51.100, nil),
		entity.NewPoint(3, 15.301, 51.101, nil),
	}
	open := entity.NewLine(10, []int64{1, 2, 3}, nil)
	rel := entity.NewArea(20, []entity.Member{{Kind: entity.KindLine, Ref: 10, Role: "outer"}},
		entity.NewTags(entity.TagBuilding, "yes"))

	db := buildDB(t, append(nodes, open, rel)...)
	en, ok := db.Get(rel.Key())
	if !ok {
		t.Fatal("relation missing")
	}
	if _, err := en.Shape(); err == nil {
		t.Error("Shape() of open relation should fail")
	}
	if en.Polygonal() {
		t.Error("broken relation reported as polygonal")
	}
	for _, n := range db.Nearest(orb.Point{15.3, 51.1}, 10) {
		if n == en {
			t.Error("broken relation indexed")
		}
	}
}
