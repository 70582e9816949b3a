package playspace

import (
	"fmt"
	"slices"

	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

// InvalidationPolicy decides when the virtual device cache is rebuilt.
type InvalidationPolicy interface {
	// NeedsRebuild is called once per frame with the size of the cached set
	// and the count currently reported by the injection service.
	NeedsRebuild(cachedSize, reportedCount int) bool
}

// CountPolicy rebuilds only when the reported count differs from the cached
// set size. A same-count swap of which devices are virtual goes unnoticed.
type CountPolicy struct{}

func (CountPolicy) NeedsRebuild(cachedSize, reportedCount int) bool {
	return cachedSize != reportedCount
}

// AlwaysRebuild re-enumerates every frame. It catches membership swaps at
// the price of a full table scan per frame.
type AlwaysRebuild struct{}

func (AlwaysRebuild) NeedsRebuild(int, int) bool { return true }

// VirtualClassifier answers whether a device is synthetic.
type VirtualClassifier interface {
	IsVirtual(index vr.DeviceIndex) bool
}

// VirtualRegistry caches which device indices belong to virtual devices.
type VirtualRegistry struct {
	injector vr.Injector
	policy   InvalidationPolicy
	indices  []vr.DeviceIndex
	rebuilds int
}

// NewVirtualRegistry returns an empty registry. A nil policy selects
// CountPolicy.
func NewVirtualRegistry(injector vr.Injector, policy InvalidationPolicy) *VirtualRegistry {
	if policy == nil {
		policy = CountPolicy{}
	}
	return &VirtualRegistry{injector: injector, policy: policy}
}

// Refresh rebuilds the cache when the policy asks for it.
func (r *VirtualRegistry) Refresh() error {
	count, err := r.injector.VirtualDeviceCount()
	if err != nil {
		return fmt.Errorf("virtual device count: %w", err)
	}
	if !r.policy.NeedsRebuild(len(r.indices), count) {
		return nil
	}
	return r.rebuild(count)
}

func (r *VirtualRegistry) rebuild(count int) error {
	indices := make([]vr.DeviceIndex, 0, count)
	for slot := uint32(0); slot < vr.MaxTrackedDeviceCount; slot++ {
		info, ok, err := r.injector.VirtualDeviceInfo(slot)
		if err != nil {
			return fmt.Errorf("virtual device info for slot %d: %w", slot, err)
		}
		if !ok {
			continue
		}
		indices = append(indices, info.OpenVRDeviceID)
	}
	if !slices.Equal(indices, r.indices) {
		monitoring.Logf("virtual devices: %v (service reports %d)", indices, count)
	}
	r.indices = indices
	r.rebuilds++
	return nil
}

// IsVirtual reports whether index is in the cached virtual set.
func (r *VirtualRegistry) IsVirtual(index vr.DeviceIndex) bool {
	return slices.Contains(r.indices, index)
}

// Indices returns a copy of the cached virtual set.
func (r *VirtualRegistry) Indices() []vr.DeviceIndex {
	return slices.Clone(r.indices)
}

// Rebuilds counts how many times the cache has been rebuilt.
func (r *VirtualRegistry) Rebuilds() int {
	return r.rebuilds
}
