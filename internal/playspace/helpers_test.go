package playspace

import (
	"log"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/sim"
	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

// Rig device indices.
const (
	idxLeft    vr.DeviceIndex = 1
	idxRight   vr.DeviceIndex = 2
	idxTracker vr.DeviceIndex = 3
	idxVirtual vr.DeviceIndex = 4
)

const testMask uint64 = 2

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newRig returns a simulator with a headset, two controllers, a physical
// tracker and a virtual tracker, the trackers both at (1,0,0).
func newRig(t *testing.T) (*sim.Sim, *timeutil.MockClock) {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	clock := timeutil.NewMockClock(testEpoch)
	s := sim.New(clock)
	s.AddDevice(sim.Device{Index: vr.HMDIndex, Class: sim.ClassHMD, Position: mgl64.Vec3{0, 1.7, 0}, Connected: true, PoseValid: true})
	s.AddDevice(sim.Device{Index: idxLeft, Class: sim.ClassController, Role: vr.RoleLeftHand, Position: mgl64.Vec3{-0.3, 1, 0}, Connected: true, PoseValid: true})
	s.AddDevice(sim.Device{Index: idxRight, Class: sim.ClassController, Role: vr.RoleRightHand, Position: mgl64.Vec3{0.3, 1, 0}, Connected: true, PoseValid: true})
	s.AddDevice(sim.Device{Index: idxTracker, Class: sim.ClassTracker, Position: mgl64.Vec3{1, 0, 0}, Connected: true, PoseValid: true})
	s.AddDevice(sim.Device{Index: idxVirtual, Class: sim.ClassTracker, Virtual: true, Position: mgl64.Vec3{1, 0, 0}, Connected: true, PoseValid: true})
	return s, clock
}

func testOptions(clock timeutil.Clock) Options {
	return Options{
		Masks:              ButtonMasks{Left: testMask, Right: testMask},
		MaxFrameDelta:      0.1,
		VirtualDeviceScale: 0.5,
		MaxFrameSleep:      11 * time.Millisecond,
		IdlePollInterval:   time.Millisecond,
		Clock:              clock,
	}
}

// step advances the simulator one frame and runs the mover on it.
func step(t *testing.T, s *sim.Sim, m *Mover) FrameReport {
	t.Helper()
	frame := s.AdvanceFrame()
	report, err := m.Step(frame)
	if err != nil {
		t.Fatalf("Step(%d): %v", frame, err)
	}
	return report
}

// approx compares with an absolute tolerance. mgl64's ApproxEqualThreshold
// falls back to eps squared when one side is exactly zero, which rejects the
// rounding left by rotations.
func approx(a, b mgl64.Vec3) bool {
	return a.Sub(b).Len() < 1e-9
}
