package coords

import "fmt"

// CompareType selects which coordinate space a comparator orders by.
type CompareType int

const (
	// CompareLogical orders by the logical launch position.
	CompareLogical CompareType = iota
	// ComparePhysical orders by the hardware location.
	ComparePhysical
)

func (t CompareType) String() string {
	switch t {
	case CompareLogical:
		return "logical"
	case ComparePhysical:
		return "physical"
	default:
		return "unknown"
	}
}

// Compare is a strict weak order over fully defined coordinates. A fresh
// comparator orders sequentially from zero. After ResetOrigin it orders by
// distance from the origin, nearest first. There is no way back to sequential
// order; callers wanting that construct a new comparator.
type Compare struct {
	sequential bool
	origin     Coords
	typ        CompareType
}

// NewCompare returns a comparator in sequential order for the given space.
func NewCompare(typ CompareType) *Compare {
	return &Compare{sequential: true, typ: typ}
}

// NewCompareAt returns a comparator ordering by distance from origin.
func NewCompareAt(typ CompareType, origin Coords) *Compare {
	return &Compare{origin: origin, typ: typ}
}

// ResetOrigin switches the comparator to nearest-to-origin order.
func (c *Compare) ResetOrigin(origin Coords) {
	c.sequential = false
	c.origin = origin
}

// Less reports whether lhs orders before rhs. In origin mode both operands
// must be fully defined in the compared space; violating that is a caller bug
// and panics.
func (c *Compare) Less(lhs, rhs Coords) bool {
	if c.sequential {
		switch c.typ {
		case CompareLogical:
			return lhs.Logical.Less(rhs.Logical)
		default:
			return lhs.Physical.Less(rhs.Physical)
		}
	}

	switch c.typ {
	case CompareLogical:
		return c.logicalOriginLess(lhs.Logical, rhs.Logical)
	default:
		return c.physicalOriginLess(lhs.Physical, rhs.Physical)
	}
}

func (c *Compare) logicalOriginLess(lhs, rhs Logical) bool {
	if !lhs.FullyDefined() || !rhs.FullyDefined() {
		panic(fmt.Sprintf("coords: origin compare on partially defined logical coordinates %s / %s", lhs, rhs))
	}
	origin := c.origin.Logical

	if less, decided := idDistanceLess(origin.KernelID, lhs.KernelID, rhs.KernelID); decided {
		return less
	}
	if less, decided := idDistanceLess(origin.GridID, lhs.GridID, rhs.GridID); decided {
		return less
	}
	if less, decided := dimDistanceLess(origin.BlockIdx, lhs.BlockIdx, rhs.BlockIdx); decided {
		return less
	}
	if less, decided := dimDistanceLess(origin.ThreadIdx, lhs.ThreadIdx, rhs.ThreadIdx); decided {
		return less
	}

	// Every field tied in distance, or the origin is wildcard throughout.
	// Fall back to the natural order over raw values so duplicates stay
	// distinguishable.
	return lhs.Less(rhs)
}

func (c *Compare) physicalOriginLess(lhs, rhs Physical) bool {
	if !lhs.FullyDefined() || !rhs.FullyDefined() {
		panic(fmt.Sprintf("coords: origin compare on partially defined physical coordinates %s / %s", lhs, rhs))
	}
	origin := c.origin.Physical

	if less, decided := indexDistanceLess(origin.Dev, lhs.Dev, rhs.Dev); decided {
		return less
	}
	if less, decided := indexDistanceLess(origin.SM, lhs.SM, rhs.SM); decided {
		return less
	}
	if less, decided := indexDistanceLess(origin.Warp, lhs.Warp, rhs.Warp); decided {
		return less
	}
	if less, decided := indexDistanceLess(origin.Lane, lhs.Lane, rhs.Lane); decided {
		return less
	}

	return lhs.Less(rhs)
}

func distance(origin, v uint64) uint64 {
	if v > origin {
		return v - origin
	}
	return origin - v
}

// indexDistanceLess compares the distances of lhs and rhs from an origin
// field. A wildcard origin field is always a tie and defers to the next
// field.
func indexDistanceLess(origin, lhs, rhs uint32) (less, decided bool) {
	if origin == WildcardIdx {
		return false, false
	}
	dl := distance(uint64(origin), uint64(lhs))
	dr := distance(uint64(origin), uint64(rhs))
	if dl == dr {
		return false, false
	}
	return dl < dr, true
}

func idDistanceLess(origin, lhs, rhs uint64) (less, decided bool) {
	if origin == WildcardID {
		return false, false
	}
	dl := distance(origin, lhs)
	dr := distance(origin, rhs)
	if dl == dr {
		return false, false
	}
	return dl < dr, true
}

// dimDistanceLess resolves a triple component-wise, x then y then z.
func dimDistanceLess(origin, lhs, rhs Dim3) (less, decided bool) {
	if less, decided = indexDistanceLess(origin.X, lhs.X, rhs.X); decided {
		return less, true
	}
	if less, decided = indexDistanceLess(origin.Y, lhs.Y, rhs.Y); decided {
		return less, true
	}
	return indexDistanceLess(origin.Z, lhs.Z, rhs.Z)
}
