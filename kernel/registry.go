package kernel

import (
	"fmt"
	"sort"

	"gpudbg/rangemap"
)

type devGrid struct {
	dev  uint32
	grid uint64
}

// Registry is the session-wide kernel table. It indexes kernels by id and by
// (device, grid id) and keeps a disjoint map from device code ranges to the
// kernel occupying them. Not safe for concurrent use.
type Registry struct {
	byID   map[uint64]*Kernel
	byGrid map[devGrid]*Kernel
	code   *rangemap.RangeMap[*Kernel]
	depth  map[uint64]uint32
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[uint64]*Kernel),
		byGrid: make(map[devGrid]*Kernel),
		code:   rangemap.New[*Kernel](),
		depth:  make(map[uint64]uint32),
	}
}

// Add registers a kernel. Duplicate kernel ids and duplicate (device, grid)
// pairs are rejected. Kernels with a known code size also claim their code
// range; overlapping code ranges indicate a broken address-space model and
// panic in rangemap.
func (r *Registry) Add(k *Kernel) error {
	if _, exists := r.byID[k.ID]; exists {
		return fmt.Errorf("kernel %d already registered", k.ID)
	}
	key := devGrid{dev: k.DevID, grid: k.GridID}
	if _, exists := r.byGrid[key]; exists {
		return fmt.Errorf("grid %d already registered on device %d", k.GridID, k.DevID)
	}
	r.byID[k.ID] = k
	r.byGrid[key] = k
	if k.CodeSize > 0 {
		r.code.Add(k.VirtCodeBase, k.CodeSize, k)
	}
	return nil
}

// Remove drops a kernel and releases its code range. No-op if unknown.
func (r *Registry) Remove(id uint64) {
	k, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byGrid, devGrid{dev: k.DevID, grid: k.GridID})
	delete(r.depth, id)
	if k.CodeSize > 0 {
		r.code.Remove(k.VirtCodeBase)
	}
}

// ByID looks a kernel up by its session-unique id.
func (r *Registry) ByID(id uint64) (*Kernel, bool) {
	k, ok := r.byID[id]
	return k, ok
}

// ByGridID looks a kernel up by device and per-device grid id.
func (r *Registry) ByGridID(dev uint32, grid uint64) (*Kernel, bool) {
	k, ok := r.byGrid[devGrid{dev: dev, grid: grid}]
	return k, ok
}

// ByPC returns the kernel whose code range contains pc.
func (r *Registry) ByPC(pc uint64) (*Kernel, bool) {
	return r.code.Get(pc)
}

// Kernels returns all registered kernels ordered by id.
func (r *Registry) Kernels() []*Kernel {
	out := make([]*Kernel, 0, len(r.byID))
	for _, k := range r.byID {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered kernels.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Depth returns the nest level of a kernel: 0 for host-launched kernels,
// parent depth + 1 for device-side launches. Computed lazily and memoized;
// the parent chain is constant for the kernel's lifetime.
func (r *Registry) Depth(k *Kernel) (uint32, error) {
	if d, ok := r.depth[k.ID]; ok {
		return d, nil
	}
	if k.ParentGridID == 0 {
		r.depth[k.ID] = 0
		return 0, nil
	}
	parent, ok := r.ByGridID(k.DevID, k.ParentGridID)
	if !ok {
		return 0, fmt.Errorf("kernel %d: parent grid %d not registered on device %d",
			k.ID, k.ParentGridID, k.DevID)
	}
	pd, err := r.Depth(parent)
	if err != nil {
		return 0, err
	}
	r.depth[k.ID] = pd + 1
	return pd + 1, nil
}

// Children returns the kernels launched directly by k, ordered by id.
func (r *Registry) Children(k *Kernel) []*Kernel {
	var out []*Kernel
	for _, child := range r.Kernels() {
		if child.DevID == k.DevID && child.ParentGridID == k.GridID {
			out = append(out, child)
		}
	}
	return out
}
