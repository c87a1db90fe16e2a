package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gpudbg/common"
	"gpudbg/coords"
	"gpudbg/kernel"
)

// snapshotVersion is the only gpustate.ini version this loader accepts.
const snapshotVersion = "1.0"

// LoadSnapshot reads a device state snapshot from a directory. The directory
// holds a gpustate.ini naming the devices plus one ini file per device.
//
// gpustate.ini sections: [snapshot] version/description, [device_list]
// (key=per-device ini file name), [clocks] clock, [breakpoints] (one address
// per key). Device ini sections: [device] topology, [kernel_N] launch
// records, [sm_N], [warp_N_M] and [lane_N_M_K] unit state.
func LoadSnapshot(dir string, log common.Logger) (*Snapshot, error) {
	if log == nil {
		log = common.NewNoOpLogger()
	}

	root, err := loadINIFile(filepath.Join(dir, "gpustate.ini"))
	if err != nil {
		return nil, err
	}

	info, ok := root.section("snapshot")
	if !ok {
		return nil, fmt.Errorf("gpustate.ini: missing [snapshot] section")
	}
	if v := info["version"]; v != snapshotVersion {
		return nil, fmt.Errorf("gpustate.ini: unsupported version %q", v)
	}

	devList, ok := root.section("device_list")
	if !ok || len(devList) == 0 {
		return nil, fmt.Errorf("gpustate.ini: no devices in [device_list]")
	}

	snap := NewSnapshot(0)
	if clocks, ok := root.section("clocks"); ok {
		if raw, ok := clocks["clock"]; ok {
			c, err := parseUint64(raw)
			if err != nil {
				return nil, fmt.Errorf("gpustate.ini: clock: %w", err)
			}
			snap.SetClock(Clock(c))
		}
	}
	if bkpts, ok := root.section("breakpoints"); ok {
		for key, raw := range bkpts {
			pc, err := parseUint64(raw)
			if err != nil {
				return nil, fmt.Errorf("gpustate.ini: breakpoint %s: %w", key, err)
			}
			snap.AddBreakpoint(pc)
		}
	}

	// Device keys sort by name so device indexes are stable across loads.
	names := make([]string, 0, len(devList))
	for name := range devList {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		file := devList[name]
		log.Logf(common.SeverityInfo, "loading device %s from %s", name, file)
		if err := loadDevice(snap, filepath.Join(dir, file)); err != nil {
			return nil, fmt.Errorf("device %s: %w", name, err)
		}
	}

	log.Logf(common.SeverityInfo, "snapshot loaded: %d devices, %d kernels",
		snap.NumDevices(), snap.Kernels().Len())
	return snap, nil
}

func loadINIFile(path string) (*iniFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	ini, err := parseINI(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return ini, nil
}

func loadDevice(snap *Snapshot, path string) (err error) {
	// Out-of-range unit indexes in the ini surface as panics from the
	// snapshot setters; report them as load errors instead.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: malformed snapshot: %v", filepath.Base(path), r)
		}
	}()

	ini, err := loadINIFile(path)
	if err != nil {
		return err
	}

	devSec, ok := ini.section("device")
	if !ok {
		return fmt.Errorf("%s: missing [device] section", filepath.Base(path))
	}
	numSMs, err := sectionUint32(devSec, "num_sms")
	if err != nil {
		return err
	}
	numWarps, err := sectionUint32(devSec, "num_warps")
	if err != nil {
		return err
	}
	numLanes, err := sectionUint32(devSec, "num_lanes")
	if err != nil {
		return err
	}
	dev := snap.AddDevice(numSMs, numWarps, numLanes)

	for name, sec := range ini.sections {
		switch {
		case strings.HasPrefix(name, "kernel_"):
			if err := loadKernel(snap.Kernels(), dev, name, sec); err != nil {
				return err
			}
		case strings.HasPrefix(name, "sm_"):
			sm, err := unitIndexes(name, 1)
			if err != nil {
				return err
			}
			snap.SetSM(dev, sm[0], boolKey(sec, "valid"), boolKey(sec, "exception"))
		case strings.HasPrefix(name, "warp_"):
			idx, err := unitIndexes(name, 2)
			if err != nil {
				return err
			}
			info, err := warpInfoFromSection(sec)
			if err != nil {
				return fmt.Errorf("[%s]: %w", name, err)
			}
			snap.SetWarp(dev, idx[0], idx[1], info)
		case strings.HasPrefix(name, "lane_"):
			idx, err := unitIndexes(name, 3)
			if err != nil {
				return err
			}
			info, err := laneInfoFromSection(sec)
			if err != nil {
				return fmt.Errorf("[%s]: %w", name, err)
			}
			snap.SetLane(dev, idx[0], idx[1], idx[2], info)
		}
	}
	return nil
}

func loadKernel(reg *kernel.Registry, dev uint32, name string, sec map[string]string) error {
	id, err := sectionUint64(sec, "id")
	if err != nil {
		return fmt.Errorf("[%s]: %w", name, err)
	}
	gridID, err := sectionUint64(sec, "grid_id")
	if err != nil {
		return fmt.Errorf("[%s]: %w", name, err)
	}
	k := &kernel.Kernel{
		ID:       id,
		DevID:    dev,
		GridID:   gridID,
		Name:     sec["name"],
		Launched: boolKey(sec, "launched"),
	}
	if raw, ok := sec["virt_code_base"]; ok {
		if k.VirtCodeBase, err = parseUint64(raw); err != nil {
			return fmt.Errorf("[%s]: virt_code_base: %w", name, err)
		}
	}
	if raw, ok := sec["code_size"]; ok {
		if k.CodeSize, err = parseUint64(raw); err != nil {
			return fmt.Errorf("[%s]: code_size: %w", name, err)
		}
	}
	if _, ok := sec["grid_dim"]; ok {
		if k.GridDim, err = dimKey(sec, "grid_dim"); err != nil {
			return fmt.Errorf("[%s]: %w", name, err)
		}
	}
	if _, ok := sec["block_dim"]; ok {
		if k.BlockDim, err = dimKey(sec, "block_dim"); err != nil {
			return fmt.Errorf("[%s]: %w", name, err)
		}
	}
	if _, ok := sec["cluster_dim"]; ok {
		if k.ClusterDim, err = dimKey(sec, "cluster_dim"); err != nil {
			return fmt.Errorf("[%s]: %w", name, err)
		}
	}
	if sec["type"] == "system" {
		k.Type = kernel.TypeSystem
	}
	if sec["origin"] == "gpu" {
		k.Origin = kernel.OriginGPU
	}
	if raw, ok := sec["parent_grid_id"]; ok {
		if k.ParentGridID, err = parseUint64(raw); err != nil {
			return fmt.Errorf("[%s]: parent_grid_id: %w", name, err)
		}
	}
	if err := reg.Add(k); err != nil {
		return fmt.Errorf("[%s]: %w", name, err)
	}
	return nil
}

func warpInfoFromSection(sec map[string]string) (WarpInfo, error) {
	info := WarpInfo{
		Valid:      boolKey(sec, "valid"),
		Broken:     boolKey(sec, "broken"),
		KernelID:   coords.InvalidID,
		GridID:     coords.InvalidID,
		BlockIdx:   coords.InvalidDim,
		ClusterIdx: coords.InvalidDim,
	}
	var err error
	if raw, ok := sec["kernel_id"]; ok {
		if info.KernelID, err = parseUint64(raw); err != nil {
			return info, fmt.Errorf("kernel_id: %w", err)
		}
	}
	if raw, ok := sec["grid_id"]; ok {
		if info.GridID, err = parseUint64(raw); err != nil {
			return info, fmt.Errorf("grid_id: %w", err)
		}
	}
	if _, ok := sec["block_idx"]; ok {
		if info.BlockIdx, err = dimKey(sec, "block_idx"); err != nil {
			return info, err
		}
	}
	if _, ok := sec["cluster_idx"]; ok {
		if info.ClusterIdx, err = dimKey(sec, "cluster_idx"); err != nil {
			return info, err
		}
	}
	if raw, ok := sec["timestamp"]; ok {
		ts, err := parseUint64(raw)
		if err != nil {
			return info, fmt.Errorf("timestamp: %w", err)
		}
		info.Timestamp = Clock(ts)
		info.HasStamp = true
	}
	return info, nil
}

func laneInfoFromSection(sec map[string]string) (LaneInfo, error) {
	info := LaneInfo{
		Valid:     boolKey(sec, "valid"),
		Active:    boolKey(sec, "active"),
		ThreadIdx: coords.InvalidDim,
	}
	var err error
	if raw, ok := sec["pc"]; ok {
		if info.PC, err = parseUint64(raw); err != nil {
			return info, fmt.Errorf("pc: %w", err)
		}
	}
	if raw, ok := sec["exception"]; ok {
		code, err := parseException(raw)
		if err != nil {
			return info, err
		}
		info.Exception = code
	}
	if _, ok := sec["thread_idx"]; ok {
		if info.ThreadIdx, err = dimKey(sec, "thread_idx"); err != nil {
			return info, err
		}
	}
	if raw, ok := sec["timestamp"]; ok {
		ts, err := parseUint64(raw)
		if err != nil {
			return info, fmt.Errorf("timestamp: %w", err)
		}
		info.Timestamp = Clock(ts)
		info.HasStamp = true
	}
	return info, nil
}

var exceptionNames = map[string]ExceptionCode{
	"none":                  ExceptionNone,
	"illegal_instruction":   ExceptionIllegalInstruction,
	"misaligned_address":    ExceptionMisalignedAddress,
	"invalid_address_space": ExceptionInvalidAddressSpace,
	"invalid_pc":            ExceptionInvalidPC,
	"stack_overflow":        ExceptionStackOverflow,
	"assert":                ExceptionAssert,
}

func parseException(raw string) (ExceptionCode, error) {
	code, ok := exceptionNames[strings.ToLower(raw)]
	if !ok {
		return ExceptionNone, fmt.Errorf("unknown exception %q", raw)
	}
	return code, nil
}

// unitIndexes splits a section name like warp_0_2 into its unit indexes.
func unitIndexes(name string, want int) ([]uint32, error) {
	parts := strings.Split(name, "_")
	if len(parts) != want+1 {
		return nil, fmt.Errorf("malformed section name [%s]", name)
	}
	out := make([]uint32, 0, want)
	for _, p := range parts[1:] {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed section name [%s]: %w", name, err)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

func sectionUint32(sec map[string]string, key string) (uint32, error) {
	raw, ok := sec[key]
	if !ok {
		return 0, fmt.Errorf("missing key %s", key)
	}
	v, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(v), nil
}

func sectionUint64(sec map[string]string, key string) (uint64, error) {
	raw, ok := sec[key]
	if !ok {
		return 0, fmt.Errorf("missing key %s", key)
	}
	return parseUint64(raw)
}

// parseUint64 accepts decimal or 0x-prefixed hexadecimal.
func parseUint64(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 0, 64)
}

func boolKey(sec map[string]string, key string) bool {
	switch strings.ToLower(sec[key]) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// dimKey parses an "x,y,z" triple.
func dimKey(sec map[string]string, key string) (coords.Dim3, error) {
	raw, ok := sec[key]
	if !ok {
		return coords.Dim3{}, fmt.Errorf("missing key %s", key)
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return coords.Dim3{}, fmt.Errorf("%s: want x,y,z, got %q", key, raw)
	}
	var vals [3]uint32
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 0, 32)
		if err != nil {
			return coords.Dim3{}, fmt.Errorf("%s: %w", key, err)
		}
		vals[i] = uint32(v)
	}
	return coords.Dim3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
