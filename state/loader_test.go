package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gpudbg/common"
	"gpudbg/coords"
	"gpudbg/kernel"
)

func writeSnapshotFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const rootINI = `
; GPU state snapshot
[snapshot]
version = 1.0
description = unit test capture

[device_list]
dev0 = device0.ini

[clocks]
clock = 500

[breakpoints]
bp0 = 0x1010
bp1 = 0x2040
`

const deviceINI = `
[device]
num_sms = 2
num_warps = 4
num_lanes = 32

[kernel_0]
id = 1
grid_id = 100
name = vecAdd
virt_code_base = 0x10000
code_size = 0x400
grid_dim = 8,1,1
block_dim = 128,1,1
launched = true

[kernel_1]
id = 2
grid_id = 101
name = reduce
type = system
origin = gpu
parent_grid_id = 100
cluster_dim = 2,1,1

[sm_0]
valid = 1
exception = 0

[sm_1]
valid = 1
exception = 1

[warp_0_0]
valid = 1
kernel_id = 1
grid_id = 100
block_idx = 3,0,0
timestamp = 500

[warp_1_2]
valid = 1
broken = 1
kernel_id = 2
grid_id = 101
block_idx = 0,1,0
cluster_idx = 1,0,0

[lane_0_0_5]
valid = 1
active = 1
pc = 0x1010
thread_idx = 5,0,0

[lane_1_2_0]
valid = 1
active = 0
exception = misaligned_address
thread_idx = 0,0,0
timestamp = 499
`

func TestLoadSnapshot(t *testing.T) {
	dir := writeSnapshotFiles(t, map[string]string{
		"gpustate.ini": rootINI,
		"device0.ini":  deviceINI,
	})

	snap, err := LoadSnapshot(dir, common.NewNoOpLogger())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if snap.Clock() != 500 {
		t.Errorf("Clock() = %d, want 500", snap.Clock())
	}
	if snap.NumDevices() != 1 || snap.NumSMs(0) != 2 || snap.NumWarps(0) != 4 || snap.NumLanes(0) != 32 {
		t.Fatalf("topology mismatch: %d/%d/%d/%d",
			snap.NumDevices(), snap.NumSMs(0), snap.NumWarps(0), snap.NumLanes(0))
	}

	for _, pc := range []uint64{0x1010, 0x2040} {
		if here, _ := snap.BreakpointHere(pc); !here {
			t.Errorf("breakpoint at 0x%X not loaded", pc)
		}
	}

	// Kernels.
	if snap.Kernels().Len() != 2 {
		t.Fatalf("Kernels().Len() = %d, want 2", snap.Kernels().Len())
	}
	k, ok := snap.Kernels().ByID(1)
	if !ok {
		t.Fatal("kernel 1 missing")
	}
	if k.Name != "vecAdd" || !k.Launched || k.GridDim != (coords.Dim3{X: 8, Y: 1, Z: 1}) {
		t.Errorf("kernel 1 fields wrong: %+v", k)
	}
	if got, ok := snap.Kernels().ByPC(0x10200); !ok || got.ID != 1 {
		t.Errorf("ByPC(0x10200) = (%v, %v), want kernel 1", got, ok)
	}
	k2, ok := snap.Kernels().ByID(2)
	if !ok {
		t.Fatal("kernel 2 missing")
	}
	if k2.Type != kernel.TypeSystem || k2.Origin != kernel.OriginGPU || k2.ParentGridID != 100 || !k2.HasClusters() {
		t.Errorf("kernel 2 fields wrong: %+v", k2)
	}

	// SM state.
	if !snap.SMValid(0, 0) || snap.SMHasException(0, 0) {
		t.Error("sm 0 state wrong")
	}
	if !snap.SMValid(0, 1) || !snap.SMHasException(0, 1) {
		t.Error("sm 1 state wrong")
	}

	// Warp state.
	if !snap.WarpValid(0, 0, 0) || snap.WarpBroken(0, 0, 0) {
		t.Error("warp 0_0 state wrong")
	}
	if id, _ := snap.WarpKernelID(0, 0, 0); id != 1 {
		t.Errorf("warp 0_0 kernel id = %d, want 1", id)
	}
	if blk, _ := snap.WarpBlockIdx(0, 0, 0); blk != (coords.Dim3{X: 3, Y: 0, Z: 0}) {
		t.Errorf("warp 0_0 block idx = %v", blk)
	}
	if ts, ok := snap.WarpTimestamp(0, 0, 0); !ok || ts != 500 {
		t.Errorf("warp 0_0 timestamp = (%d, %v), want 500", ts, ok)
	}
	if !snap.WarpBroken(0, 1, 2) {
		t.Error("warp 1_2 should be broken")
	}
	if cl, err := snap.WarpClusterIdx(0, 1, 2); err != nil || cl != (coords.Dim3{X: 1, Y: 0, Z: 0}) {
		t.Errorf("warp 1_2 cluster idx = (%v, %v)", cl, err)
	}
	// A warp the ini never mentions stays invalid.
	if snap.WarpValid(0, 0, 3) {
		t.Error("unmentioned warp should stay invalid")
	}

	// Lane state.
	if !snap.LaneValid(0, 0, 0, 5) || !snap.LaneActive(0, 0, 0, 5) {
		t.Error("lane 0_0_5 state wrong")
	}
	if pc, _ := snap.LanePC(0, 0, 0, 5); pc != 0x1010 {
		t.Errorf("lane 0_0_5 pc = 0x%X", pc)
	}
	if exc, _ := snap.LaneException(0, 1, 2, 0); exc != ExceptionMisalignedAddress {
		t.Errorf("lane 1_2_0 exception = %s", exc)
	}
	if ts, ok := snap.LaneTimestamp(0, 1, 2, 0); !ok || ts != 499 {
		t.Errorf("lane 1_2_0 timestamp = (%d, %v), want 499", ts, ok)
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	cases := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing root ini",
			files:   map[string]string{},
			wantErr: "gpustate.ini",
		},
		{
			name: "unsupported version",
			files: map[string]string{
				"gpustate.ini": "[snapshot]\nversion = 2.0\n[device_list]\ndev0 = d.ini\n",
			},
			wantErr: "unsupported version",
		},
		{
			name: "no devices",
			files: map[string]string{
				"gpustate.ini": "[snapshot]\nversion = 1.0\n",
			},
			wantErr: "no devices",
		},
		{
			name: "missing device section",
			files: map[string]string{
				"gpustate.ini": "[snapshot]\nversion = 1.0\n[device_list]\ndev0 = d.ini\n",
				"d.ini":        "[sm_0]\nvalid = 1\n",
			},
			wantErr: "missing [device] section",
		},
		{
			name: "out of range warp index",
			files: map[string]string{
				"gpustate.ini": "[snapshot]\nversion = 1.0\n[device_list]\ndev0 = d.ini\n",
				"d.ini":        "[device]\nnum_sms = 1\nnum_warps = 2\nnum_lanes = 4\n[warp_0_7]\nvalid = 1\n",
			},
			wantErr: "malformed snapshot",
		},
		{
			name: "unknown exception name",
			files: map[string]string{
				"gpustate.ini": "[snapshot]\nversion = 1.0\n[device_list]\ndev0 = d.ini\n",
				"d.ini":        "[device]\nnum_sms = 1\nnum_warps = 1\nnum_lanes = 4\n[lane_0_0_0]\nexception = bogus\n",
			},
			wantErr: "unknown exception",
		},
		{
			name: "duplicate kernel id",
			files: map[string]string{
				"gpustate.ini": "[snapshot]\nversion = 1.0\n[device_list]\ndev0 = d.ini\n",
				"d.ini": "[device]\nnum_sms = 1\nnum_warps = 1\nnum_lanes = 4\n" +
					"[kernel_0]\nid = 1\ngrid_id = 100\n[kernel_1]\nid = 1\ngrid_id = 101\n",
			},
			wantErr: "kernel",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := writeSnapshotFiles(t, c.files)
			_, err := LoadSnapshot(dir, nil)
			if err == nil {
				t.Fatal("LoadSnapshot succeeded, want error")
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("error %q does not mention %q", err, c.wantErr)
			}
		})
	}
}

func TestParseINI(t *testing.T) {
	ini, err := parseINI(strings.NewReader(`
; leading comment
# another comment style
[Section One]
Key = value with spaces
name = reduce#2;stage_b
other=1

[empty]

[second]
hex = 0x10
`))
	if err != nil {
		t.Fatal(err)
	}

	sec, ok := ini.section("section one")
	if !ok {
		t.Fatal("section lookup should be case-insensitive")
	}
	if sec["key"] != "value with spaces" || sec["other"] != "1" {
		t.Errorf("section contents wrong: %v", sec)
	}
	// Comment characters inside a value are part of the value.
	if sec["name"] != "reduce#2;stage_b" {
		t.Errorf("name = %q, want the comment characters kept", sec["name"])
	}
	if _, ok := ini.section("empty"); !ok {
		t.Error("empty sections should still exist")
	}
	if _, ok := ini.section("missing"); ok {
		t.Error("missing section reported present")
	}
}
