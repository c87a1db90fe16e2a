// Package coords defines the execution coordinate types used throughout the
// debugger core. A coordinate pairs a physical location on the accelerator
// (device, SM, warp, lane) with the logical launch position the hardware is
// executing (kernel, grid, cluster, block, thread). Individual fields may be
// concrete values or one of the reserved sentinels below.
package coords

import "fmt"

// Sentinel values for 32-bit index fields.
const (
	// WildcardIdx matches any concrete value when used in a filter.
	WildcardIdx uint32 = 0xFFFFFFFF

	// InvalidIdx marks a field with no meaningful value, for example the
	// logical identity of a warp with no kernel resident.
	InvalidIdx uint32 = 0xFFFFFFFE

	// IgnoreIdx marks a cluster index component on a kernel launched
	// without clusters.
	IgnoreIdx uint32 = 0xFFFFFFFD
)

// Sentinel values for 64-bit id fields (kernel id, grid id).
const (
	WildcardID uint64 = 0xFFFFFFFFFFFFFFFF
	InvalidID  uint64 = 0xFFFFFFFFFFFFFFFE
)

// Dim3 is a 3-D index triple (thread index, block index, cluster index).
type Dim3 struct {
	X, Y, Z uint32
}

// Sentinel triples.
var (
	WildcardDim = Dim3{WildcardIdx, WildcardIdx, WildcardIdx}
	InvalidDim  = Dim3{InvalidIdx, InvalidIdx, InvalidIdx}
	IgnoreDim   = Dim3{IgnoreIdx, IgnoreIdx, IgnoreIdx}
)

// Physical identifies a hardware execution unit.
type Physical struct {
	Dev  uint32
	SM   uint32
	Warp uint32
	Lane uint32
}

// Logical identifies a position in the launch hierarchy.
type Logical struct {
	KernelID   uint64
	GridID     uint64
	ClusterIdx Dim3
	BlockIdx   Dim3
	ThreadIdx  Dim3
}

// Coords is an immutable execution coordinate. Coordinates are plain values;
// they carry no reference to device state and are stale as soon as that state
// is refreshed.
type Coords struct {
	Physical Physical
	Logical  Logical
}

// Wild returns the all-wildcard coordinate, the identity filter that matches
// every execution unit.
func Wild() Coords {
	return Coords{
		Physical: Physical{WildcardIdx, WildcardIdx, WildcardIdx, WildcardIdx},
		Logical: Logical{
			KernelID:   WildcardID,
			GridID:     WildcardID,
			ClusterIdx: WildcardDim,
			BlockIdx:   WildcardDim,
			ThreadIdx:  WildcardDim,
		},
	}
}

// IndexEquals reports whether a concrete index value matches a filter field.
// A wildcard filter field matches everything.
func IndexEquals(filter, v uint32) bool {
	return filter == WildcardIdx || filter == v
}

// IDEquals reports whether a concrete id value matches a filter field.
func IDEquals(filter, v uint64) bool {
	return filter == WildcardID || filter == v
}

// DimEquals reports whether a concrete triple matches a filter triple,
// component by component. Wildcard components match everything.
func DimEquals(filter, v Dim3) bool {
	return IndexEquals(filter.X, v.X) && IndexEquals(filter.Y, v.Y) && IndexEquals(filter.Z, v.Z)
}

func indexDefined(v uint32) bool {
	return v != WildcardIdx && v != InvalidIdx
}

func idDefined(v uint64) bool {
	return v != WildcardID && v != InvalidID
}

func dimDefined(d Dim3) bool {
	return indexDefined(d.X) && indexDefined(d.Y) && indexDefined(d.Z)
}

// FullyDefined reports whether every physical field holds a concrete value.
func (p Physical) FullyDefined() bool {
	return indexDefined(p.Dev) && indexDefined(p.SM) && indexDefined(p.Warp) && indexDefined(p.Lane)
}

// FullyDefined reports whether every logical field holds a concrete value.
// A cluster index of IgnoreDim counts as defined: the kernel simply has no
// clusters.
func (l Logical) FullyDefined() bool {
	if !idDefined(l.KernelID) || !idDefined(l.GridID) {
		return false
	}
	if l.ClusterIdx != IgnoreDim && !dimDefined(l.ClusterIdx) {
		return false
	}
	return dimDefined(l.BlockIdx) && dimDefined(l.ThreadIdx)
}

// Less is the natural lexicographic order over physical fields:
// device, SM, warp, lane.
func (p Physical) Less(o Physical) bool {
	if p.Dev != o.Dev {
		return p.Dev < o.Dev
	}
	if p.SM != o.SM {
		return p.SM < o.SM
	}
	if p.Warp != o.Warp {
		return p.Warp < o.Warp
	}
	return p.Lane < o.Lane
}

func dimLess(a, b Dim3) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// Less is the natural lexicographic order over logical fields:
// kernel id, grid id, cluster index, block index, thread index.
func (l Logical) Less(o Logical) bool {
	if l.KernelID != o.KernelID {
		return l.KernelID < o.KernelID
	}
	if l.GridID != o.GridID {
		return l.GridID < o.GridID
	}
	if l.ClusterIdx != o.ClusterIdx {
		return dimLess(l.ClusterIdx, o.ClusterIdx)
	}
	if l.BlockIdx != o.BlockIdx {
		return dimLess(l.BlockIdx, o.BlockIdx)
	}
	return dimLess(l.ThreadIdx, o.ThreadIdx)
}

func indexString(v uint32) string {
	switch v {
	case WildcardIdx:
		return "*"
	case InvalidIdx:
		return "-"
	case IgnoreIdx:
		return "~"
	default:
		return fmt.Sprintf("%d", v)
	}
}

func idString(v uint64) string {
	switch v {
	case WildcardID:
		return "*"
	case InvalidID:
		return "-"
	default:
		return fmt.Sprintf("%d", v)
	}
}

// String formats a triple as (x,y,z) with sentinel components as symbols.
func (d Dim3) String() string {
	return fmt.Sprintf("(%s,%s,%s)", indexString(d.X), indexString(d.Y), indexString(d.Z))
}

func (p Physical) String() string {
	return fmt.Sprintf("dev %s sm %s warp %s lane %s",
		indexString(p.Dev), indexString(p.SM), indexString(p.Warp), indexString(p.Lane))
}

func (l Logical) String() string {
	return fmt.Sprintf("kernel %s grid %s cluster %s block %s thread %s",
		idString(l.KernelID), idString(l.GridID), l.ClusterIdx, l.BlockIdx, l.ThreadIdx)
}

func (c Coords) String() string {
	return c.Physical.String() + " " + c.Logical.String()
}
