package coordset

import (
	"fmt"
	"sort"

	"gpudbg/coords"
	"gpudbg/state"
)

// Set is an ordered unique collection of coordinates at one granularity.
// All traversal happens in New; the resulting set owns an immutable snapshot
// of its matches and never touches the provider again.
type Set struct {
	typ     Type
	mask    Mask
	cmp     *coords.Compare
	members []coords.Coords
}

// New enumerates all execution coordinates matching filter under mask and
// returns them as a set deduplicated at granularity typ, ordered by order
// (sequentially, or nearest to origin when origin is non-nil).
//
// A provider fault during identity or breakpoint resolution aborts the build
// and is returned as an error; "nothing matched" is an empty set, not an
// error.
func New(p state.Provider, typ Type, mask Mask, order coords.CompareType,
	filter coords.Coords, origin *coords.Coords) (*Set, error) {

	s := &Set{typ: typ, mask: mask}
	if origin != nil {
		s.cmp = coords.NewCompareAt(order, *origin)
	} else {
		s.cmp = coords.NewCompare(order)
	}

	valid := mask.Has(SelectValid)
	atBreakpoint := mask.Has(SelectBkpt)
	atException := mask.Has(SelectExcpt)
	atAnyException := mask.Has(SelectSMAtExcpt)
	single := mask.Has(SelectSngl)
	atTrap := mask.Has(SelectTrap)
	atClock := mask.Has(SelectCurrentClock)
	active := mask.Has(SelectActive)

	// Dedup state for the coarse logical granularities, local to this
	// construction.
	foundKernels := make(map[uint64]struct{})
	foundBlocks := make(map[uint64]map[coords.Dim3]struct{})

	refClock := p.Clock()

	for dev := uint32(0); dev < p.NumDevices(); dev++ {
		if !coords.IndexEquals(filter.Physical.Dev, dev) {
			continue
		}

		for sm := uint32(0); sm < p.NumSMs(dev); sm++ {
			if !coords.IndexEquals(filter.Physical.SM, sm) {
				continue
			}

			// Is this sm at an exception?
			if (atException || atAnyException) && !p.SMHasException(dev, sm) {
				continue
			}

			// Is this sm valid?
			if valid && !p.SMValid(dev, sm) {
				continue
			}

			// Save current sm epoch
			smCnt := len(s.members)

			for wp := uint32(0); wp < p.NumWarps(dev); wp++ {
				if !coords.IndexEquals(filter.Physical.Warp, wp) {
					continue
				}

				validWarp := p.SMValid(dev, sm) && p.WarpValid(dev, sm, wp)

				// Logical granularities need a live kernel binding, so an
				// invalid warp is skipped there even without SelectValid.
				if !validWarp && (valid || typ.logical()) {
					continue
				}

				// Skip out-of-date warps
				if atClock {
					if ts, ok := p.WarpTimestamp(dev, sm, wp); ok && ts < refClock {
						continue
					}
				}

				// If looking for traps, skip non-broken warps
				if atTrap && !p.WarpBroken(dev, sm, wp) {
					continue
				}

				kernelID, gridID, clusterIdx, blockIdx, err := warpIdentity(p, dev, sm, wp, validWarp)
				if err != nil {
					return nil, err
				}

				if !coords.IDEquals(filter.Logical.KernelID, kernelID) ||
					!coords.IDEquals(filter.Logical.GridID, gridID) ||
					!coords.DimEquals(filter.Logical.BlockIdx, blockIdx) {
					continue
				}

				if typ == Kernels {
					// One representative per kernel.
					if _, seen := foundKernels[kernelID]; seen {
						continue
					}
					foundKernels[kernelID] = struct{}{}
				} else if typ == Blocks {
					// One representative per (kernel, block).
					blocks, ok := foundBlocks[kernelID]
					if !ok {
						blocks = make(map[coords.Dim3]struct{})
						foundBlocks[kernelID] = blocks
					}
					if _, seen := blocks[blockIdx]; seen {
						continue
					}
					blocks[blockIdx] = struct{}{}
				}

				// Save current warp epoch
				wpCnt := len(s.members)

				for ln := uint32(0); ln < p.NumLanes(dev); ln++ {
					if !coords.IndexEquals(filter.Physical.Lane, ln) {
						continue
					}

					if valid && !p.LaneValid(dev, sm, wp, ln) {
						continue
					}

					if active && !p.LaneActive(dev, sm, wp, ln) {
						continue
					}

					// If looking for current clock, ignore out of date lanes
					if atClock {
						if ts, ok := p.LaneTimestamp(dev, sm, wp, ln); ok && ts < refClock {
							continue
						}
					}

					if atBreakpoint {
						ok, err := laneAtBreakpoint(p, dev, sm, wp, ln)
						if err != nil {
							return nil, err
						}
						if !ok {
							continue
						}
					}

					if atException {
						ok, err := laneAtException(p, dev, sm, wp, ln)
						if err != nil {
							return nil, err
						}
						if !ok {
							continue
						}
					}

					// Trap lanes must be live and active; the warp itself
					// was already checked for the halt.
					if atTrap && (!laneResolvable(p, dev, sm, wp, ln) || !p.LaneActive(dev, sm, wp, ln)) {
						continue
					}

					threadIdx := coords.InvalidDim
					if laneResolvable(p, dev, sm, wp, ln) {
						threadIdx, err = p.LaneThreadIdx(dev, sm, wp, ln)
						if err != nil {
							return nil, fmt.Errorf("coordset: thread idx of dev %d sm %d warp %d lane %d: %w",
								dev, sm, wp, ln, err)
						}
					}

					if !coords.DimEquals(filter.Logical.ThreadIdx, threadIdx) {
						continue
					}

					// A match. Wildcard out everything finer than the set's
					// granularity before storing.
					s.insert(coords.Coords{
						Physical: coords.Physical{
							Dev:  dev,
							SM:   keepIdx(typ.storeSM(), sm),
							Warp: keepIdx(typ.storeWarp(), wp),
							Lane: keepIdx(typ.storeLane(), ln),
						},
						Logical: coords.Logical{
							KernelID:   keepID(typ.storeKernel(), kernelID),
							GridID:     keepID(typ.storeKernel(), gridID),
							ClusterIdx: keepDim(typ.storeBlock(), clusterIdx),
							BlockIdx:   keepDim(typ.storeBlock(), blockIdx),
							ThreadIdx:  keepDim(typ.storeThread(), threadIdx),
						},
					})

					if single {
						break
					}

					// Coarser granularities keep one entry per warp. This
					// also holds for the logical kinds: the whole warp
					// belongs to one kernel and block.
					if typ == Devices || typ == SMs || typ == Warps ||
						typ == Kernels || typ == Blocks {
						break
					}
				}

				if single && len(s.members) > 0 {
					break
				}

				// Above warp granularity one entry per sm suffices.
				if (typ == Devices || typ == SMs) && len(s.members) > wpCnt {
					break
				}
			}

			if single && len(s.members) > 0 {
				break
			}

			// Above sm granularity one entry per device suffices.
			if typ == Devices && len(s.members) > smCnt {
				break
			}
		}

		if single && len(s.members) > 0 {
			break
		}
	}

	return s, nil
}

// warpIdentity resolves the logical identity of a warp. Invalid warps report
// the invalid sentinels.
func warpIdentity(p state.Provider, dev, sm, wp uint32, validWarp bool) (kernelID, gridID uint64, clusterIdx, blockIdx coords.Dim3, err error) {
	kernelID = coords.InvalidID
	gridID = coords.InvalidID
	clusterIdx = coords.InvalidDim
	blockIdx = coords.InvalidDim
	if !validWarp {
		return
	}

	if kernelID, err = p.WarpKernelID(dev, sm, wp); err == nil {
		if gridID, err = p.WarpGridID(dev, sm, wp); err == nil {
			if clusterIdx, err = p.WarpClusterIdx(dev, sm, wp); err == nil {
				blockIdx, err = p.WarpBlockIdx(dev, sm, wp)
			}
		}
	}
	if err != nil {
		err = fmt.Errorf("coordset: identity of dev %d sm %d warp %d: %w", dev, sm, wp, err)
	}
	return
}

// laneResolvable reports whether the lane's logical state can be read: the
// whole chain of owning units must be valid.
func laneResolvable(p state.Provider, dev, sm, wp, ln uint32) bool {
	return p.SMValid(dev, sm) && p.WarpValid(dev, sm, wp) && p.LaneValid(dev, sm, wp, ln)
}

// laneAtBreakpoint reports whether a live, active lane sits on a breakpoint.
func laneAtBreakpoint(p state.Provider, dev, sm, wp, ln uint32) (bool, error) {
	if !laneResolvable(p, dev, sm, wp, ln) || !p.LaneActive(dev, sm, wp, ln) {
		return false, nil
	}
	pc, err := p.LanePC(dev, sm, wp, ln)
	if err != nil {
		return false, fmt.Errorf("coordset: pc of dev %d sm %d warp %d lane %d: %w", dev, sm, wp, ln, err)
	}
	here, err := p.BreakpointHere(pc)
	if err != nil {
		return false, fmt.Errorf("coordset: breakpoint lookup at 0x%X: %w", pc, err)
	}
	return here, nil
}

// laneAtException reports whether a live, active lane raised an exception.
func laneAtException(p state.Provider, dev, sm, wp, ln uint32) (bool, error) {
	if !laneResolvable(p, dev, sm, wp, ln) || !p.LaneActive(dev, sm, wp, ln) {
		return false, nil
	}
	exc, err := p.LaneException(dev, sm, wp, ln)
	if err != nil {
		return false, fmt.Errorf("coordset: exception of dev %d sm %d warp %d lane %d: %w", dev, sm, wp, ln, err)
	}
	return exc != state.ExceptionNone, nil
}

func keepIdx(store bool, v uint32) uint32 {
	if !store {
		return coords.WildcardIdx
	}
	return v
}

// keepID wildcards unstored fields and identities that never resolved, so an
// emitted coordinate carries no invalid sentinels.
func keepID(store bool, v uint64) uint64 {
	if !store || v == coords.InvalidID {
		return coords.WildcardID
	}
	return v
}

func keepDim(store bool, v coords.Dim3) coords.Dim3 {
	if !store || v == coords.InvalidDim {
		return coords.WildcardDim
	}
	return v
}

// insert adds c at its position in the comparator's order, dropping it if an
// equivalent member already exists.
func (s *Set) insert(c coords.Coords) {
	i := sort.Search(len(s.members), func(i int) bool {
		return !s.cmp.Less(s.members[i], c)
	})
	if i < len(s.members) && !s.cmp.Less(c, s.members[i]) {
		// Equivalent under the active order.
		return
	}
	s.members = append(s.members, coords.Coords{})
	copy(s.members[i+1:], s.members[i:])
	s.members[i] = c
}

// Size returns the number of members.
func (s *Set) Size() int {
	return len(s.members)
}

// Type returns the set's granularity.
func (s *Set) Type() Type {
	return s.typ
}

// Mask returns the selection mask the set was built with.
func (s *Set) Mask() Mask {
	return s.mask
}

// Coords returns the members in the comparator's order. The returned slice
// is a copy.
func (s *Set) Coords() []coords.Coords {
	out := make([]coords.Coords, len(s.members))
	copy(out, s.members)
	return out
}

// First returns the first member in order, if any.
func (s *Set) First() (coords.Coords, bool) {
	if len(s.members) == 0 {
		return coords.Coords{}, false
	}
	return s.members[0], true
}
