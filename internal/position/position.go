// Package position implements the container position index: every positioned
// item (a list in a board, a card in a list) carries a zero-based integer
// position that is unique within its parent. Creates and moves keep positions
// dense; deletes may leave gaps until the container is compacted.
//
// The slice functions here are the reference move algorithm. Move targets are
// indexes into a container's ordering, never raw positions, so the server's
// set-based renumbering in store.go agrees with them even across gaps, and the
// client uses them directly for optimistic prediction.
package position

import "sort"

// Clamp limits target to [0, size]. A target past the end appends.
func Clamp(target, size int) int {
	if target < 0 {
		return 0
	}
	if target > size {
		return size
	}
	return target
}

// Within moves s[from] so that it ends at index to, where to is measured
// against the sequence with the item already removed. It returns a new slice
// and leaves s untouched. An out-of-range from returns a copy of s.
func Within[T any](s []T, from, to int) []T {
	out := append([]T(nil), s...)
	if from < 0 || from >= len(s) {
		return out
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	to = Clamp(to, len(out))
	return insert(out, to, item)
}

// Across removes src[from] and inserts it into dst at to. Both inputs are left
// untouched. An out-of-range from returns copies of both.
func Across[T any](src []T, from int, dst []T, to int) ([]T, []T) {
	newSrc := append([]T(nil), src...)
	newDst := append([]T(nil), dst...)
	if from < 0 || from >= len(src) {
		return newSrc, newDst
	}
	item := newSrc[from]
	newSrc = append(newSrc[:from], newSrc[from+1:]...)
	to = Clamp(to, len(newDst))
	return newSrc, insert(newDst, to, item)
}

func insert[T any](s []T, at int, item T) []T {
	var zero T
	s = append(s, zero)
	copy(s[at+1:], s[at:])
	s[at] = item
	return s
}

// Dense reports whether positions, read in order, are exactly 0..n-1.
func Dense(positions []int) bool {
	for i, p := range positions {
		if p != i {
			return false
		}
	}
	return true
}

// Range selects positions in [From, To). A negative To is open-ended.
type Range struct {
	From int
	To   int
}

// From returns the open-ended range of positions >= from.
func From(from int) Range {
	return Range{From: from, To: -1}
}

// Contains reports whether p falls inside r.
func (r Range) Contains(p int) bool {
	return p >= r.From && (r.To < 0 || p < r.To)
}

// Empty reports whether r selects nothing.
func (r Range) Empty() bool {
	return r.To >= 0 && r.To <= r.From
}

// Resolve maps index, counted in a container's ordering with the moving item
// removed, onto stored positions that may have gaps. others holds the
// positions of the remaining members in ascending order. For a move inside
// the container, from is the item's current position. It returns the
// position the item takes and whether the order changes.
func Resolve(others []int, index int, sameContainer bool, from int) (int, bool) {
	index = Clamp(index, len(others))
	if !sameContainer {
		switch {
		case index < len(others):
			return others[index], true
		case len(others) == 0:
			return 0, true
		}
		return others[len(others)-1] + 1, true
	}

	at := sort.SearchInts(others, from)
	switch {
	case index > at:
		return others[index-1], true
	case index < at:
		return others[index], true
	}
	return from, false
}

// Shift describes one renumbering step: add Delta to every position in Range.
type Shift struct {
	Range Range
	Delta int
}

// Plan returns the renumbering steps for moving an item from position from to
// position to. For a move between containers the first step applies to the
// source and the second to the target; for a move inside one container there
// is a single step covering exactly the positions between from and to.
// A nil plan means there is nothing to shift.
func Plan(sameContainer bool, from, to int) []Shift {
	if !sameContainer {
		return []Shift{
			{Range: From(from + 1), Delta: -1},
			{Range: From(to), Delta: +1},
		}
	}
	switch {
	case to > from:
		return []Shift{{Range: Range{From: from + 1, To: to + 1}, Delta: -1}}
	case to < from:
		return []Shift{{Range: Range{From: to, To: from}, Delta: +1}}
	}
	return nil
}
