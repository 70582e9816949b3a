package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

func newTestSim(t *testing.T) (*Sim, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(clock)
	s.AddDevice(Device{Index: 0, Class: ClassHMD, Connected: true, PoseValid: true})
	s.AddDevice(Device{Index: 1, Class: ClassController, Role: vr.RoleLeftHand, Connected: true, PoseValid: true})
	s.AddDevice(Device{Index: 3, Class: ClassTracker, Virtual: true, Serial: "V0", Position: mgl64.Vec3{1, 0, 0}, Connected: true, PoseValid: true})
	return s, clock
}

func TestReportedPositionAppliesOffsets(t *testing.T) {
	s, _ := newTestSim(t)
	s.SetPosition(1, mgl64.Vec3{1, 0, 0})

	// Offsets only apply once enabled.
	require.NoError(t, s.SetWorldFromDriverTranslationOffset(1, mgl64.Vec3{-0.05, 0, 0}))
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, s.ReportedPosition(1))

	require.NoError(t, s.EnableDeviceOffsets(1, true))
	assert.True(t, s.ReportedPosition(1).ApproxEqual(mgl64.Vec3{0.95, 0, 0}))

	// Virtual devices apply offsets at double strength.
	require.NoError(t, s.EnableDeviceOffsets(3, true))
	require.NoError(t, s.SetWorldFromDriverTranslationOffset(3, mgl64.Vec3{-0.025, 0, 0}))
	assert.True(t, s.ReportedPosition(3).ApproxEqual(mgl64.Vec3{0.95, 0, 0}))
	assert.Equal(t, 2, s.OffsetWrites())
}

func TestDeviceToAbsoluteTrackingPose(t *testing.T) {
	s, _ := newTestSim(t)
	s.SetPoseValid(1, false)
	poses := make([]vr.TrackedDevicePose, vr.MaxTrackedDeviceCount)
	s.DeviceToAbsoluteTrackingPose(vr.UniverseStanding, 0.02, poses)

	assert.True(t, poses[0].PoseIsValid)
	assert.False(t, poses[1].PoseIsValid)
	assert.True(t, poses[1].DeviceIsConnected)
	assert.False(t, poses[2].DeviceIsConnected)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, poses[3].DeviceToAbsoluteTracking.Translation())
	assert.Equal(t, 0.02, s.LastPrediction())
}

func TestControllerRoleAndState(t *testing.T) {
	s, _ := newTestSim(t)
	assert.Equal(t, vr.DeviceIndex(1), s.TrackedDeviceIndexForControllerRole(vr.RoleLeftHand))
	assert.Equal(t, vr.InvalidDeviceIndex, s.TrackedDeviceIndexForControllerRole(vr.RoleRightHand))

	s.SetButtons(1, 2)
	state, ok := s.ControllerState(1)
	require.True(t, ok)
	assert.Equal(t, uint64(2), state.ButtonPressed)

	_, ok = s.ControllerState(0)
	assert.False(t, ok, "headset has no controller state")

	s.SetConnected(1, false)
	assert.Equal(t, vr.InvalidDeviceIndex, s.TrackedDeviceIndexForControllerRole(vr.RoleLeftHand))
	assert.False(t, s.IsTrackedDeviceConnected(1))
}

func TestFloatTrackedDeviceProperty(t *testing.T) {
	s, _ := newTestSim(t)
	freq, err := s.FloatTrackedDeviceProperty(vr.HMDIndex, vr.PropDisplayFrequency)
	require.NoError(t, err)
	assert.Equal(t, 90.0, freq)

	s.SetDisplayFrequency(0)
	_, err = s.FloatTrackedDeviceProperty(vr.HMDIndex, vr.PropDisplayFrequency)
	assert.ErrorIs(t, err, vr.ErrUnknownProperty)

	_, err = s.FloatTrackedDeviceProperty(1, vr.PropDisplayFrequency)
	assert.ErrorIs(t, err, vr.ErrUnknownProperty)
}

func TestVirtualDeviceSlots(t *testing.T) {
	s, _ := newTestSim(t)
	n, err := s.VirtualDeviceCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	info, ok, err := s.VirtualDeviceInfo(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vr.VirtualDeviceInfo{VirtualDeviceID: 0, OpenVRDeviceID: 3, DeviceSerial: "V0"}, info)

	_, ok, err = s.VirtualDeviceInfo(1)
	require.NoError(t, err)
	assert.False(t, ok)

	s.SetVirtualDevices(1)
	info, ok, _ = s.VirtualDeviceInfo(0)
	require.True(t, ok)
	assert.Equal(t, vr.DeviceIndex(1), info.OpenVRDeviceID)
}

func TestBackendNotReady(t *testing.T) {
	s, _ := newTestSim(t)
	s.SetNotReady(2, 1)

	for i := 0; i < 2; i++ {
		_, err := s.InitRuntime()
		assert.ErrorIs(t, err, vr.ErrNotReady)
	}
	rt, err := s.InitRuntime()
	require.NoError(t, err)
	assert.NotNil(t, rt)

	_, err = s.ConnectInjector()
	assert.ErrorIs(t, err, vr.ErrNotReady)
	_, err = s.ConnectInjector()
	assert.NoError(t, err)
}

func TestFailOffsets(t *testing.T) {
	s, _ := newTestSim(t)
	boom := errors.New("pipe closed")
	s.FailOffsets(boom)
	assert.ErrorIs(t, s.SetWorldFromDriverTranslationOffset(1, mgl64.Vec3{}), boom)
	s.FailOffsets(nil)
	assert.NoError(t, s.SetWorldFromDriverTranslationOffset(1, mgl64.Vec3{}))
	assert.Error(t, s.EnableDeviceOffsets(vr.MaxTrackedDeviceCount, true))
}

func TestFrameTiming(t *testing.T) {
	s, clock := newTestSim(t)

	timing, ok := s.FrameTiming()
	require.True(t, ok)
	assert.Equal(t, uint32(0), timing.FrameIndex)

	assert.Equal(t, uint32(1), s.AdvanceFrame())
	clock.Advance(4 * time.Millisecond)
	since, counter, ok := s.TimeSinceLastVsync()
	require.True(t, ok)
	assert.Equal(t, uint64(1), counter)
	assert.InDelta(t, 0.004, since, 1e-9)

	s.SetCompositor(false)
	_, ok = s.FrameTiming()
	assert.False(t, ok)
}

func TestAutoFramesFollowClock(t *testing.T) {
	s, clock := newTestSim(t)
	s.SetAutoFrames(true)

	clock.Advance(105 * time.Millisecond) // 9.45 frames at 90Hz
	timing, ok := s.FrameTiming()
	require.True(t, ok)
	assert.Equal(t, uint32(9), timing.FrameIndex)
}
