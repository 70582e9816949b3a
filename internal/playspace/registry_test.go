package playspace

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/playspace-mover/internal/vr"
)

func TestCountPolicyMissesSwap(t *testing.T) {
	s, _ := newRig(t)
	r := NewVirtualRegistry(s, nil)

	if err := r.Refresh(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]vr.DeviceIndex{idxVirtual}, r.Indices()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}

	// Same count, different device: the cached set stays stale.
	s.SetVirtualDevices(idxTracker)
	if err := r.Refresh(); err != nil {
		t.Fatal(err)
	}
	if !r.IsVirtual(idxVirtual) || r.IsVirtual(idxTracker) {
		t.Errorf("count policy should keep the stale set, got %v", r.Indices())
	}
	if r.Rebuilds() != 1 {
		t.Errorf("rebuilds = %d, want 1", r.Rebuilds())
	}

	// A count change forces a rebuild.
	s.SetVirtualDevices(idxTracker, idxVirtual)
	if err := r.Refresh(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]vr.DeviceIndex{idxTracker, idxVirtual}, r.Indices()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestCountPolicyEmpty(t *testing.T) {
	s, _ := newRig(t)
	s.SetVirtualDevices()
	r := NewVirtualRegistry(s, CountPolicy{})
	for i := 0; i < 3; i++ {
		if err := r.Refresh(); err != nil {
			t.Fatal(err)
		}
	}
	if r.Rebuilds() != 0 || len(r.Indices()) != 0 {
		t.Errorf("rebuilds = %d indices = %v, want none", r.Rebuilds(), r.Indices())
	}
}

func TestAlwaysRebuildCatchesSwap(t *testing.T) {
	s, _ := newRig(t)
	r := NewVirtualRegistry(s, AlwaysRebuild{})
	if err := r.Refresh(); err != nil {
		t.Fatal(err)
	}
	s.SetVirtualDevices(idxTracker)
	if err := r.Refresh(); err != nil {
		t.Fatal(err)
	}
	if r.IsVirtual(idxVirtual) || !r.IsVirtual(idxTracker) {
		t.Errorf("indices = %v, want [%d]", r.Indices(), idxTracker)
	}
	if r.Rebuilds() != 2 {
		t.Errorf("rebuilds = %d, want 2", r.Rebuilds())
	}
}

func TestRegistryIndicesIsCopy(t *testing.T) {
	s, _ := newRig(t)
	r := NewVirtualRegistry(s, nil)
	if err := r.Refresh(); err != nil {
		t.Fatal(err)
	}
	got := r.Indices()
	got[0] = 63
	if !r.IsVirtual(idxVirtual) {
		t.Error("mutating Indices() result changed the registry")
	}
}

type failingInjector struct {
	vr.Injector
	countErr error
	infoErr  error
}

func (f failingInjector) VirtualDeviceCount() (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return 1, nil
}

func (f failingInjector) VirtualDeviceInfo(uint32) (vr.VirtualDeviceInfo, bool, error) {
	return vr.VirtualDeviceInfo{}, false, f.infoErr
}

func TestRegistryErrors(t *testing.T) {
	boom := errors.New("service gone")

	r := NewVirtualRegistry(failingInjector{countErr: boom}, nil)
	if err := r.Refresh(); !errors.Is(err, boom) {
		t.Errorf("count error = %v, want %v", err, boom)
	}

	r = NewVirtualRegistry(failingInjector{infoErr: boom}, nil)
	if err := r.Refresh(); !errors.Is(err, boom) {
		t.Errorf("info error = %v, want %v", err, boom)
	}
}
