package state

import (
	"fmt"

	"gpudbg/coords"
	"gpudbg/kernel"
)

type laneState struct {
	valid     bool
	active    bool
	pc        uint64
	exception ExceptionCode
	threadIdx coords.Dim3
	timestamp Clock
	hasStamp  bool
}

type warpState struct {
	valid      bool
	broken     bool
	kernelID   uint64
	gridID     uint64
	blockIdx   coords.Dim3
	clusterIdx coords.Dim3
	timestamp  Clock
	hasStamp   bool
	lanes      []laneState
}

type smState struct {
	valid     bool
	exception bool
	warps     []warpState
}

type deviceState struct {
	numSMs   uint32
	numWarps uint32
	numLanes uint32
	sms      []smState
}

// Snapshot is an in-memory device state snapshot implementing Provider.
// Everything starts out invalid; tests and the snapshot loader mark units
// valid and bind identities as needed. Not safe for concurrent mutation.
type Snapshot struct {
	devices     []deviceState
	clock       Clock
	breakpoints map[uint64]struct{}
	kernels     *kernel.Registry
}

// NewSnapshot returns an empty snapshot with the given reference clock.
func NewSnapshot(clock Clock) *Snapshot {
	return &Snapshot{
		clock:       clock,
		breakpoints: make(map[uint64]struct{}),
		kernels:     kernel.NewRegistry(),
	}
}

// AddDevice appends a device with the given topology and returns its index.
// All SMs, warps and lanes start invalid.
func (s *Snapshot) AddDevice(numSMs, numWarps, numLanes uint32) uint32 {
	dev := deviceState{
		numSMs:   numSMs,
		numWarps: numWarps,
		numLanes: numLanes,
		sms:      make([]smState, numSMs),
	}
	for i := range dev.sms {
		warps := make([]warpState, numWarps)
		for j := range warps {
			warps[j] = warpState{
				kernelID:   coords.InvalidID,
				gridID:     coords.InvalidID,
				blockIdx:   coords.InvalidDim,
				clusterIdx: coords.InvalidDim,
				lanes:      make([]laneState, numLanes),
			}
			for k := range warps[j].lanes {
				warps[j].lanes[k].threadIdx = coords.InvalidDim
			}
		}
		dev.sms[i].warps = warps
	}
	s.devices = append(s.devices, dev)
	return uint32(len(s.devices) - 1)
}

// Kernels returns the snapshot's kernel registry.
func (s *Snapshot) Kernels() *kernel.Registry {
	return s.kernels
}

// SetClock updates the global reference clock.
func (s *Snapshot) SetClock(c Clock) {
	s.clock = c
}

// AddBreakpoint marks a code address as having a breakpoint.
func (s *Snapshot) AddBreakpoint(pc uint64) {
	s.breakpoints[pc] = struct{}{}
}

// SetSM marks an SM's validity and exception state.
func (s *Snapshot) SetSM(dev, sm uint32, valid, exception bool) {
	st := &s.devices[dev].sms[sm]
	st.valid = valid
	st.exception = exception
}

// WarpInfo carries the mutable per-warp state for SetWarp.
type WarpInfo struct {
	Valid      bool
	Broken     bool
	KernelID   uint64
	GridID     uint64
	BlockIdx   coords.Dim3
	ClusterIdx coords.Dim3
	Timestamp  Clock
	HasStamp   bool
}

// SetWarp binds a warp's validity, trap state and logical identity.
func (s *Snapshot) SetWarp(dev, sm, wp uint32, info WarpInfo) {
	w := &s.devices[dev].sms[sm].warps[wp]
	w.valid = info.Valid
	w.broken = info.Broken
	w.kernelID = info.KernelID
	w.gridID = info.GridID
	w.blockIdx = info.BlockIdx
	w.clusterIdx = info.ClusterIdx
	w.timestamp = info.Timestamp
	w.hasStamp = info.HasStamp
}

// LaneInfo carries the mutable per-lane state for SetLane.
type LaneInfo struct {
	Valid     bool
	Active    bool
	PC        uint64
	Exception ExceptionCode
	ThreadIdx coords.Dim3
	Timestamp Clock
	HasStamp  bool
}

// SetLane sets a lane's validity, activity, pc, exception and thread index.
func (s *Snapshot) SetLane(dev, sm, wp, ln uint32, info LaneInfo) {
	l := &s.devices[dev].sms[sm].warps[wp].lanes[ln]
	l.valid = info.Valid
	l.active = info.Active
	l.pc = info.PC
	l.exception = info.Exception
	l.threadIdx = info.ThreadIdx
	l.timestamp = info.Timestamp
	l.hasStamp = info.HasStamp
}

// Provider implementation

// NumDevices returns the device count.
func (s *Snapshot) NumDevices() uint32 {
	return uint32(len(s.devices))
}

// NumSMs returns the SM count of a device.
func (s *Snapshot) NumSMs(dev uint32) uint32 {
	return s.devices[dev].numSMs
}

// NumWarps returns the warps per SM of a device.
func (s *Snapshot) NumWarps(dev uint32) uint32 {
	return s.devices[dev].numWarps
}

// NumLanes returns the lanes per warp of a device.
func (s *Snapshot) NumLanes(dev uint32) uint32 {
	return s.devices[dev].numLanes
}

// Clock returns the global reference clock.
func (s *Snapshot) Clock() Clock {
	return s.clock
}

// SMValid reports whether an SM holds live state.
func (s *Snapshot) SMValid(dev, sm uint32) bool {
	return s.devices[dev].sms[sm].valid
}

// SMHasException reports whether any lane on the SM raised an exception.
func (s *Snapshot) SMHasException(dev, sm uint32) bool {
	return s.devices[dev].sms[sm].exception
}

func (s *Snapshot) warp(dev, sm, wp uint32) *warpState {
	return &s.devices[dev].sms[sm].warps[wp]
}

func (s *Snapshot) lane(dev, sm, wp, ln uint32) *laneState {
	return &s.devices[dev].sms[sm].warps[wp].lanes[ln]
}

// WarpValid reports whether a warp holds live state.
func (s *Snapshot) WarpValid(dev, sm, wp uint32) bool {
	return s.warp(dev, sm, wp).valid
}

// WarpBroken reports whether a warp is halted on a trap.
func (s *Snapshot) WarpBroken(dev, sm, wp uint32) bool {
	return s.warp(dev, sm, wp).broken
}

// WarpTimestamp returns the warp's last-update clock, if it carries one.
func (s *Snapshot) WarpTimestamp(dev, sm, wp uint32) (Clock, bool) {
	w := s.warp(dev, sm, wp)
	return w.timestamp, w.hasStamp
}

// WarpKernelID returns the id of the kernel resident on the warp.
func (s *Snapshot) WarpKernelID(dev, sm, wp uint32) (uint64, error) {
	w := s.warp(dev, sm, wp)
	if !w.valid {
		return coords.InvalidID, nil
	}
	return w.kernelID, nil
}

// WarpGridID returns the per-device grid id of the warp's kernel.
func (s *Snapshot) WarpGridID(dev, sm, wp uint32) (uint64, error) {
	w := s.warp(dev, sm, wp)
	if !w.valid {
		return coords.InvalidID, nil
	}
	return w.gridID, nil
}

// WarpClusterIdx returns the warp's cluster index. Kernels launched without
// clusters report IgnoreDim. A valid warp bound to an unregistered kernel is
// an inconsistent snapshot and reports an error.
func (s *Snapshot) WarpClusterIdx(dev, sm, wp uint32) (coords.Dim3, error) {
	w := s.warp(dev, sm, wp)
	if !w.valid {
		return coords.InvalidDim, nil
	}
	if w.kernelID == coords.InvalidID {
		return coords.InvalidDim, nil
	}
	k, ok := s.kernels.ByID(w.kernelID)
	if !ok {
		return coords.InvalidDim, fmt.Errorf("state: warp dev %d sm %d warp %d bound to unknown kernel %d",
			dev, sm, wp, w.kernelID)
	}
	if !k.HasClusters() {
		return coords.IgnoreDim, nil
	}
	return w.clusterIdx, nil
}

// WarpBlockIdx returns the block index the warp is executing.
func (s *Snapshot) WarpBlockIdx(dev, sm, wp uint32) (coords.Dim3, error) {
	w := s.warp(dev, sm, wp)
	if !w.valid {
		return coords.InvalidDim, nil
	}
	return w.blockIdx, nil
}

// LaneValid reports whether a lane holds live state.
func (s *Snapshot) LaneValid(dev, sm, wp, ln uint32) bool {
	return s.lane(dev, sm, wp, ln).valid
}

// LaneActive reports whether a lane is active (not divergent or exited).
func (s *Snapshot) LaneActive(dev, sm, wp, ln uint32) bool {
	return s.lane(dev, sm, wp, ln).active
}

// LaneTimestamp returns the lane's last-update clock, if it carries one.
func (s *Snapshot) LaneTimestamp(dev, sm, wp, ln uint32) (Clock, bool) {
	l := s.lane(dev, sm, wp, ln)
	return l.timestamp, l.hasStamp
}

// LaneException returns the exception the lane reported, if any.
func (s *Snapshot) LaneException(dev, sm, wp, ln uint32) (ExceptionCode, error) {
	return s.lane(dev, sm, wp, ln).exception, nil
}

// LanePC returns the lane's program counter.
func (s *Snapshot) LanePC(dev, sm, wp, ln uint32) (uint64, error) {
	return s.lane(dev, sm, wp, ln).pc, nil
}

// LaneThreadIdx returns the thread index the lane is executing.
func (s *Snapshot) LaneThreadIdx(dev, sm, wp, ln uint32) (coords.Dim3, error) {
	l := s.lane(dev, sm, wp, ln)
	if !l.valid {
		return coords.InvalidDim, nil
	}
	return l.threadIdx, nil
}

// BreakpointHere reports whether a breakpoint is set at pc.
func (s *Snapshot) BreakpointHere(pc uint64) (bool, error) {
	_, ok := s.breakpoints[pc]
	return ok, nil
}
