// Package rangemap provides a map from disjoint half-open address ranges
// [start, end) to arbitrary values, with point-containment lookup. It is used
// to associate metadata such as kernel code ranges with address intervals.
package rangemap

import (
	"fmt"
	"sort"
)

type span[T any] struct {
	start uint64
	end   uint64 // exclusive
	value T
}

// RangeMap maps disjoint half-open ranges to values of type T. Ranges are
// kept ordered by start address so lookups are logarithmic. The zero value is
// ready to use. Not safe for concurrent use.
type RangeMap[T any] struct {
	spans []span[T]
}

// New returns an empty RangeMap.
func New[T any]() *RangeMap[T] {
	return &RangeMap[T]{}
}

// Add inserts the range [start, start+size) associated with value. Ranges
// must be disjoint: end is exclusive, so a new range may begin exactly where
// a previous one ends. Inserting an overlapping range indicates a broken
// invariant in the caller's address-space model and panics.
func (m *RangeMap[T]) Add(start, size uint64, value T) {
	end := start + size

	// The insertion point is before the first range starting at or after
	// end. Any range before that point must end at or before start.
	i := sort.Search(len(m.spans), func(i int) bool { return m.spans[i].start >= end })
	if i > 0 {
		prev := m.spans[i-1]
		if prev.end > start {
			panic(fmt.Sprintf("rangemap: range [0x%X,0x%X) overlaps existing [0x%X,0x%X)",
				start, end, prev.start, prev.end))
		}
	}

	m.spans = append(m.spans, span[T]{})
	copy(m.spans[i+1:], m.spans[i:])
	m.spans[i] = span[T]{start: start, end: end, value: value}
}

// Remove deletes the range containing addr. No-op if no range contains it.
func (m *RangeMap[T]) Remove(addr uint64) {
	i, ok := m.find(addr)
	if !ok {
		return
	}
	m.spans = append(m.spans[:i], m.spans[i+1:]...)
}

// Get returns the value of the range containing addr. The second return is
// false when no range contains addr.
func (m *RangeMap[T]) Get(addr uint64) (T, bool) {
	i, ok := m.find(addr)
	if !ok {
		var zero T
		return zero, false
	}
	return m.spans[i].value, true
}

// Len returns the number of ranges held.
func (m *RangeMap[T]) Len() int {
	return len(m.spans)
}

// find locates the index of the range containing addr.
func (m *RangeMap[T]) find(addr uint64) (int, bool) {
	// First range starting after addr; the candidate is its predecessor.
	i := sort.Search(len(m.spans), func(i int) bool { return m.spans[i].start > addr })
	if i == 0 {
		return 0, false
	}
	i--
	// Ranges are disjoint, so only the end bound needs checking.
	if addr >= m.spans[i].end {
		return 0, false
	}
	return i, true
}
