package geom

import (
	"fmt"

	"github.com/wegman-software/addrmerge/internal/entity"
)

// ringIndex keeps the candidate ways of one partition, looked up by their
// first and last node id
type ringIndex struct {
	ways    [][]int64
	used    []bool
	left    int
	byFirst map[int64][]int
	byLast  map[int64][]int
}

func newRingIndex(ways [][]int64) *ringIndex {
	idx := &ringIndex{
		ways:    ways,
		used:    make([]bool, len(ways)),
		byFirst: make(map[int64][]int),
		byLast:  make(map[int64][]int),
	}
	for i, refs := range ways {
		if len(refs) < 2 {
			idx.used[i] = true
			continue
		}
		idx.left++
		idx.byFirst[refs[0]] = append(idx.byFirst[refs[0]], i)
		idx.byLast[refs[len(refs)-1]] = append(idx.byLast[refs[len(refs)-1]], i)
	}
	return idx
}

// take marks and returns the first unused way among candidates
func (idx *ringIndex) take(candidates []int) ([]int64, bool) {
	for _, i := range candidates {
		if !idx.used[i] {
			idx.used[i] = true
			idx.left--
			return idx.ways[i], true
		}
	}
	return nil, false
}

// next returns any remaining way, in input order
func (idx *ringIndex) next() []int64 {
	for i := range idx.ways {
		if !idx.used[i] {
			idx.used[i] = true
			idx.left--
			return idx.ways[i]
		}
	}
	return nil
}

// CloseRings chains unordered, arbitrarily oriented node id sequences into
// closed rings. Each returned ring starts and ends with the same node id.
// A fragment that cannot be chained yields a BrokenGeometryError for owner.
func CloseRings(owner entity.Key, ways [][]int64) ([][]int64, error) {
	idx := newRingIndex(ways)

	var rings [][]int64
	var acc []int64

	for idx.left > 0 || len(acc) > 0 {
		if len(acc) == 0 {
			acc = append(acc, idx.next()...)
		} else {
			first, last := acc[0], acc[len(acc)-1]
			if refs, ok := idx.take(idx.byFirst[last]); ok {
				acc = append(acc, refs[1:]...)
			} else if refs, ok := idx.take(idx.byLast[last]); ok {
				acc = appendReversed(acc, refs)
			} else if refs, ok := idx.take(idx.byFirst[first]); ok {
				reverse(acc)
				acc = append(acc, refs[1:]...)
			} else if refs, ok := idx.take(idx.byLast[first]); ok {
				reverse(acc)
				acc = appendReversed(acc, refs)
			} else {
				return nil, &BrokenGeometryError{
					Key:    owner,
					Reason: fmt.Sprintf("ring not closed, dangling ends at nodes %d and %d", first, last),
				}
			}
		}

		if len(acc) > 1 && acc[0] == acc[len(acc)-1] {
			rings = append(rings, acc)
			acc = nil
		}
	}

	return rings, nil
}

// appendReversed appends refs in reverse order, skipping the node shared
// with the end of acc
func appendReversed(acc, refs []int64) []int64 {
	for i := len(refs) - 2; i >= 0; i-- {
		acc = append(acc, refs[i])
	}
	return acc
}

func reverse(refs []int64) {
	for i, j := 0, len(refs)-1; i < j; i, j = i+1, j-1 {
		refs[i], refs[j] = refs[j], refs[i]
	}
}
