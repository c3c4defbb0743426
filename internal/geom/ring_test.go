package geom

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wegman-software/addrmerge/internal/entity"
)

var owner = entity.Key{Kind: entity.KindArea, ID: 1}

func TestCloseRings(t *testing.T) {
	tests := []struct {
		name  string
		ways  [][]int64
		rings int
	}{
		{"single closed way", [][]int64{{1, 2, 3, 1}}, 1},
		{"two halves, same direction", [][]int64{{1, 2, 3}, {3, 4, 1}}, 1},
		{"two halves, second reversed", [][]int64{{1, 2, 3}, {1, 4, 3}}, 1},
		{"two halves, first reversed", [][]int64{{3, 2, 1}, {3, 4, 1}}, 1},
		{"three pieces, shuffled", [][]int64{{5, 6, 1}, {1, 2, 3}, {3, 4, 5}}, 1},
		{"three pieces, mixed orientation", [][]int64{{1, 2, 3}, {5, 4, 3}, {1, 6, 5}}, 1},
		{"two separate rings", [][]int64{{1, 2, 3, 1}, {10, 11}, {11, 12, 10}}, 2},
		{"short fragments ignored", [][]int64{{7}, {1, 2, 3, 1}}, 1},
		{"no ways", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rings, err := CloseRings(owner, tt.ways)
			if err != nil {
				t.Fatalf("CloseRings() error = %v", err)
			}
			if len(rings) != tt.rings {
				t.Fatalf("CloseRings() returned %d rings, want %d", len(rings), tt.rings)
			}
			for i, r := range rings {
				if r[0] != r[len(r)-1] {
					t.Errorf("ring %d = %v, not closed", i, r)
				}
			}
		})
	}
}

func TestCloseRingsKeepsAllNodes(t *testing.T) {
	rings, err := CloseRings(owner, [][]int64{{1, 2, 3}, {5, 4, 3}, {1, 6, 5}})
	if err != nil {
		t.Fatalf("CloseRings() error = %v", err)
	}
	seen := map[int64]bool{}
	for _, id := range rings[0] {
		seen[id] = true
	}
	for id := int64(1); id <= 6; id++ {
		if !seen[id] {
			t.Errorf("node %d missing from ring %v", id, rings[0])
		}
	}
	if len(rings[0]) != 7 {
		t.Errorf("ring length = %d, want 7", len(rings[0]))
	}
}

func TestCloseRingsDoesNotModifyInput(t *testing.T) {
	ways := [][]int64{{3, 2, 1}, {3, 4, 1}}
	want := [][]int64{{3, 2, 1}, {3, 4, 1}}
	if _, err := CloseRings(owner, ways); err != nil {
		t.Fatalf("CloseRings() error = %v", err)
	}
	if !reflect.DeepEqual(ways, want) {
		t.Errorf("input = %v, want %v", ways, want)
	}
}

func TestCloseRingsDangling(t *testing.T) {
	_, err := CloseRings(owner, [][]int64{{1, 2, 3}, {3, 4, 5}})
	if err == nil {
		t.Fatal("CloseRings() expected error for open ring")
	}
	var broken *BrokenGeometryError
	if !errors.As(err, &broken) {
		t.Fatalf("error = %T, want *BrokenGeometryError", err)
	}
	if broken.Key != owner {
		t.Errorf("Key = %v, want %v", broken.Key, owner)
	}
}
