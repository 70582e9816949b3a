// Package vr describes the tracking runtime and the device offset injection
// service that the playspace mover talks to. Implementations live outside the
// core: internal/sim provides an in-process one for development and tests.
package vr

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxTrackedDeviceCount is the fixed size of the runtime's device table.
const MaxTrackedDeviceCount = 64

// DeviceIndex addresses a slot in the tracked device table.
type DeviceIndex uint32

const (
	// HMDIndex is always the headset.
	HMDIndex DeviceIndex = 0
	// InvalidDeviceIndex is returned when a controller role is not assigned.
	InvalidDeviceIndex DeviceIndex = 0xFFFFFFFF
)

// Valid reports whether i addresses a slot in the device table.
func (i DeviceIndex) Valid() bool {
	return i < MaxTrackedDeviceCount
}

var (
	// ErrNotReady is returned while a collaborator is starting up. Callers
	// retry; the frame pipeline never sees it.
	ErrNotReady = errors.New("vr: service not ready")
	// ErrDisconnected is returned when a collaborator goes away mid-session.
	ErrDisconnected = errors.New("vr: service disconnected")
	// ErrUnknownProperty is returned for properties a device does not report.
	ErrUnknownProperty = errors.New("vr: unknown tracked device property")
)

// TrackingUniverse selects the origin poses are reported against.
type TrackingUniverse int

const (
	UniverseSeated TrackingUniverse = iota
	UniverseStanding
	UniverseRawAndUncalibrated
)

// ControllerRole identifies which hand a controller is assigned to.
type ControllerRole int

const (
	RoleInvalid ControllerRole = iota
	RoleLeftHand
	RoleRightHand
)

func (r ControllerRole) String() string {
	switch r {
	case RoleLeftHand:
		return "left"
	case RoleRightHand:
		return "right"
	default:
		return "invalid"
	}
}

// Property names a float device property.
type Property int

const (
	PropDisplayFrequency Property = iota + 1
	PropSecondsFromVsyncToPhotons
)

// CalibrationState is the chaperone calibration status.
type CalibrationState int

const (
	CalibrationOK CalibrationState = iota + 1
	CalibrationWarning
	CalibrationError
)

// TrackedDevicePose is one entry of the pose table.
type TrackedDevicePose struct {
	DeviceToAbsoluteTracking Matrix34
	PoseIsValid              bool
	DeviceIsConnected        bool
}

// ControllerState carries the button bitmasks of a controller.
type ControllerState struct {
	PacketNum     uint32
	ButtonPressed uint64
	ButtonTouched uint64
}

// FrameTiming is the subset of compositor frame timing the loop consumes.
type FrameTiming struct {
	FrameIndex          uint32
	CompositorIdleCPUMs float64
}

// VirtualDeviceInfo describes a device synthesized by the injection service.
type VirtualDeviceInfo struct {
	VirtualDeviceID uint32
	OpenVRDeviceID  DeviceIndex
	DeviceSerial    string
}

func (v VirtualDeviceInfo) String() string {
	return fmt.Sprintf("virtual#%d->%d(%s)", v.VirtualDeviceID, v.OpenVRDeviceID, v.DeviceSerial)
}

// System is the per-device query surface of the tracking runtime.
type System interface {
	IsTrackedDeviceConnected(index DeviceIndex) bool
	// DeviceToAbsoluteTrackingPose fills poses (indexed by device) with poses
	// predicted predictedSecondsFromNow into the future.
	DeviceToAbsoluteTrackingPose(universe TrackingUniverse, predictedSecondsFromNow float64, poses []TrackedDevicePose)
	TrackedDeviceIndexForControllerRole(role ControllerRole) DeviceIndex
	ControllerState(index DeviceIndex) (ControllerState, bool)
	FloatTrackedDeviceProperty(index DeviceIndex, prop Property) (float64, error)
	TimeSinceLastVsync() (seconds float64, frameCounter uint64, ok bool)
}

// ChaperoneSetup exposes the chaperone working copy.
type ChaperoneSetup interface {
	RevertWorkingCopy()
	WorkingStandingZeroPoseToRawTrackingPose() (Matrix34, bool)
}

// Chaperone reports calibration state.
type Chaperone interface {
	CalibrationState() CalibrationState
}

// Compositor reports frame timing. ok is false when no compositor is running.
type Compositor interface {
	FrameTiming() (timing FrameTiming, ok bool)
}

// Runtime is everything the mover needs from the tracking runtime.
type Runtime interface {
	System
	ChaperoneSetup
	Chaperone
	Compositor
}

// Injector is the device offset injection service.
type Injector interface {
	VirtualDeviceCount() (int, error)
	// VirtualDeviceInfo looks up the virtual device in slot. ok is false when
	// the slot holds no virtual device, which is the common case.
	VirtualDeviceInfo(slot uint32) (info VirtualDeviceInfo, ok bool, err error)
	EnableDeviceOffsets(index DeviceIndex, enable bool) error
	SetWorldFromDriverTranslationOffset(index DeviceIndex, offset mgl64.Vec3) error
}

// Backend brings up the collaborators. Both calls return ErrNotReady while
// the corresponding service is still starting.
type Backend interface {
	InitRuntime() (Runtime, error)
	ConnectInjector() (Injector, error)
}
