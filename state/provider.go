// Package state defines the device state provider consumed by the coordinate
// enumeration engine, together with an in-memory snapshot implementation that
// can be populated programmatically or loaded from a snapshot directory.
package state

import "gpudbg/coords"

// Clock is a device state timestamp. Per-warp and per-lane timestamps are
// compared against the global reference clock to filter out stale units.
type Clock uint64

// ExceptionCode identifies a device exception reported by a lane.
type ExceptionCode uint32

const (
	ExceptionNone ExceptionCode = iota
	ExceptionIllegalInstruction
	ExceptionMisalignedAddress
	ExceptionInvalidAddressSpace
	ExceptionInvalidPC
	ExceptionStackOverflow
	ExceptionAssert
)

func (e ExceptionCode) String() string {
	switch e {
	case ExceptionNone:
		return "none"
	case ExceptionIllegalInstruction:
		return "illegal_instruction"
	case ExceptionMisalignedAddress:
		return "misaligned_address"
	case ExceptionInvalidAddressSpace:
		return "invalid_address_space"
	case ExceptionInvalidPC:
		return "invalid_pc"
	case ExceptionStackOverflow:
		return "stack_overflow"
	case ExceptionAssert:
		return "assert"
	default:
		return "unknown"
	}
}

// Provider answers topology and per-unit predicate queries about a fixed
// device state snapshot. All methods read that snapshot; refreshing it while
// an enumeration is in flight is the caller's responsibility to serialize.
//
// Predicate and topology reads are plain values. Identity resolution,
// program counters and breakpoint lookups can fail (for example on an
// inconsistent snapshot) and report that as an error, which the enumeration
// engine surfaces as a build failure rather than a silent skip.
type Provider interface {
	// Topology. Warp and lane counts are uniform per device: NumWarps is
	// warps per SM, NumLanes is lanes per warp.
	NumDevices() uint32
	NumSMs(dev uint32) uint32
	NumWarps(dev uint32) uint32
	NumLanes(dev uint32) uint32

	// Clock returns the global reference clock for staleness checks.
	Clock() Clock

	SMValid(dev, sm uint32) bool
	SMHasException(dev, sm uint32) bool

	WarpValid(dev, sm, wp uint32) bool
	// WarpBroken reports whether the warp is halted on a trap.
	WarpBroken(dev, sm, wp uint32) bool
	// WarpTimestamp returns the warp's last-update clock. The second
	// return is false when the warp carries no timestamp.
	WarpTimestamp(dev, sm, wp uint32) (Clock, bool)

	// Identity resolution. Only meaningful when the owning unit is valid;
	// for invalid units the invalid sentinels are returned.
	WarpKernelID(dev, sm, wp uint32) (uint64, error)
	WarpGridID(dev, sm, wp uint32) (uint64, error)
	// WarpClusterIdx returns the warp's cluster index, or IgnoreDim when
	// the bound kernel was launched without clusters.
	WarpClusterIdx(dev, sm, wp uint32) (coords.Dim3, error)
	WarpBlockIdx(dev, sm, wp uint32) (coords.Dim3, error)

	LaneValid(dev, sm, wp, ln uint32) bool
	LaneActive(dev, sm, wp, ln uint32) bool
	LaneTimestamp(dev, sm, wp, ln uint32) (Clock, bool)
	LaneException(dev, sm, wp, ln uint32) (ExceptionCode, error)
	LanePC(dev, sm, wp, ln uint32) (uint64, error)
	LaneThreadIdx(dev, sm, wp, ln uint32) (coords.Dim3, error)

	// BreakpointHere reports whether a breakpoint is set at pc.
	BreakpointHere(pc uint64) (bool, error)
}
