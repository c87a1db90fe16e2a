// Package coordset builds deduplicated, ordered sets of execution
// coordinates from a device state snapshot. A set is constructed in one pass:
// it traverses the topology reported by the state provider, narrows
// candidates by a filter coordinate, applies the selection mask and stores
// one representative per unit of the chosen granularity.
package coordset

import "strings"

// Type is the granularity a set enumerates and deduplicates at. The first
// four are physical granularities, the rest logical.
type Type int

const (
	Devices Type = iota
	SMs
	Warps
	Lanes
	Kernels
	Blocks
	Threads
)

func (t Type) String() string {
	switch t {
	case Devices:
		return "devices"
	case SMs:
		return "sms"
	case Warps:
		return "warps"
	case Lanes:
		return "lanes"
	case Kernels:
		return "kernels"
	case Blocks:
		return "blocks"
	case Threads:
		return "threads"
	default:
		return "unknown"
	}
}

// logical reports whether the granularity enumerates the launch hierarchy.
// Logical granularities only ever visit warps with a live kernel binding.
func (t Type) logical() bool {
	switch t {
	case Kernels, Blocks, Threads:
		return true
	default:
		return false
	}
}

// The store flags decide which fields survive into an emitted coordinate;
// everything else is wildcarded so finer-grained matches collapse to one
// entry per unit of the set's granularity.

func (t Type) storeSM() bool {
	switch t {
	case Devices, Kernels:
		return false
	default:
		return true
	}
}

func (t Type) storeWarp() bool {
	switch t {
	case Warps, Lanes, Threads:
		return true
	default:
		return false
	}
}

func (t Type) storeLane() bool {
	switch t {
	case Lanes, Threads:
		return true
	default:
		return false
	}
}

func (t Type) storeKernel() bool {
	return t != Devices
}

func (t Type) storeBlock() bool {
	switch t {
	case Warps, Lanes, Blocks, Threads:
		return true
	default:
		return false
	}
}

func (t Type) storeThread() bool {
	switch t {
	case Devices, SMs, Kernels:
		return false
	default:
		return true
	}
}

// Mask selects which runtime predicates gate inclusion. Bits combine by OR.
type Mask uint32

const (
	// SelectAll applies no predicate filtering.
	SelectAll Mask = 0
	// SelectValid keeps only units holding live state.
	SelectValid Mask = 1 << 0
	// SelectBkpt keeps only lanes whose pc has a breakpoint set.
	SelectBkpt Mask = 1 << 1
	// SelectExcpt keeps only lanes reporting an exception.
	SelectExcpt Mask = 1 << 2
	// SelectSMAtExcpt keeps only SMs reporting an exception.
	SelectSMAtExcpt Mask = 1 << 3
	// SelectSngl stops the traversal after the first match.
	SelectSngl Mask = 1 << 4
	// SelectTrap keeps only lanes of warps halted on a trap.
	SelectTrap Mask = 1 << 5
	// SelectCurrentClock skips units whose state predates the reference
	// clock.
	SelectCurrentClock Mask = 1 << 6
	// SelectActive keeps only active lanes.
	SelectActive Mask = 1 << 7
)

// Has reports whether every bit of m2 is set in m.
func (m Mask) Has(m2 Mask) bool {
	return m&m2 == m2
}

func (m Mask) String() string {
	if m == SelectAll {
		return "all"
	}
	var parts []string
	for _, e := range []struct {
		bit  Mask
		name string
	}{
		{SelectValid, "valid"},
		{SelectBkpt, "bkpt"},
		{SelectExcpt, "excpt"},
		{SelectSMAtExcpt, "sm_excpt"},
		{SelectSngl, "sngl"},
		{SelectTrap, "trap"},
		{SelectCurrentClock, "clock"},
		{SelectActive, "active"},
	} {
		if m.Has(e.bit) {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}
