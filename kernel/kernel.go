// Package kernel tracks the kernels launched on the accelerator: their
// launch dimensions, origin, parent/child relationships and the code ranges
// they occupy in the device address space.
package kernel

import (
	"fmt"

	"gpudbg/coords"
)

// Type distinguishes system kernels from application kernels.
type Type int

const (
	TypeApplication Type = iota
	TypeSystem
)

func (t Type) String() string {
	switch t {
	case TypeApplication:
		return "application"
	case TypeSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Origin records who launched the kernel.
type Origin int

const (
	OriginCPU Origin = iota
	OriginGPU
)

func (o Origin) String() string {
	switch o {
	case OriginCPU:
		return "cpu"
	case OriginGPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// Kernel describes one kernel launch. ID is unique per debug session, GridID
// unique per device. ParentGridID is nonzero for device-side launches.
type Kernel struct {
	ID           uint64
	DevID        uint32
	GridID       uint64
	Name         string
	VirtCodeBase uint64
	CodeSize     uint64
	GridDim      coords.Dim3
	BlockDim     coords.Dim3
	ClusterDim   coords.Dim3
	Type         Type
	Origin       Origin
	ParentGridID uint64
	Launched     bool
}

// Dimensions returns the launch configuration in <<<grid,block>>> form.
func (k *Kernel) Dimensions() string {
	return fmt.Sprintf("<<<(%d,%d,%d),(%d,%d,%d)>>>",
		k.GridDim.X, k.GridDim.Y, k.GridDim.Z,
		k.BlockDim.X, k.BlockDim.Y, k.BlockDim.Z)
}

// HasClusters reports whether the kernel was launched with clusters. An
// all-zero cluster dimension means no clusters and the per-warp cluster
// index is meaningless.
func (k *Kernel) HasClusters() bool {
	return k.ClusterDim.X != 0 && k.ClusterDim.Y != 0 && k.ClusterDim.Z != 0
}

func (k *Kernel) String() string {
	return fmt.Sprintf("kernel %d %q dev %d grid %d %s", k.ID, k.Name, k.DevID, k.GridID, k.Dimensions())
}
