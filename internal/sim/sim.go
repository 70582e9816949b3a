// Package sim is an in-process tracking runtime and offset injection service.
// It backs the --sim mode of the command and the end-to-end tests: reported
// poses include the driver offsets the mover sends, so a full round trip
// through the pipeline can be checked.
package sim

import (
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

// DefaultVirtualOffsetGain is how strongly the simulated injection service
// applies offsets to virtual devices, matching the behavior observed on the
// real service.
const DefaultVirtualOffsetGain = 2.0

// DeviceClass is the kind of a simulated device.
type DeviceClass string

const (
	ClassHMD        DeviceClass = "hmd"
	ClassController DeviceClass = "controller"
	ClassTracker    DeviceClass = "tracker"
)

// Device is a simulated tracked device. Position is the physical position in
// raw tracking space, before any driver offset.
type Device struct {
	Index     vr.DeviceIndex
	Class     DeviceClass
	Role      vr.ControllerRole
	Virtual   bool
	Serial    string
	Position  mgl64.Vec3
	Connected bool
	PoseValid bool
	Buttons   uint64
}

// Sim implements vr.Runtime, vr.Injector and vr.Backend.
type Sim struct {
	mu    sync.Mutex
	clock timeutil.Clock

	devices map[vr.DeviceIndex]*Device
	virtual []vr.DeviceIndex

	offsets        [vr.MaxTrackedDeviceCount]mgl64.Vec3
	offsetsEnabled [vr.MaxTrackedDeviceCount]bool
	offsetWrites   int
	offsetErr      error

	chaperone           vr.Matrix34
	chaperoneConfigured bool
	calibration         vr.CalibrationState
	reverts             int

	displayFrequency float64
	vsyncToPhotons   float64
	idleCPUMs        float64
	compositor       bool
	autoFrames       bool
	frame            uint32
	frameStart       time.Time
	started          time.Time
	lastPrediction   float64

	runtimeNotReady  int
	injectorNotReady int

	virtualGain float64
	scenario    *Scenario
}

// New returns an empty simulator with a calibrated identity chaperone, a
// 90Hz display and a running compositor.
func New(clock timeutil.Clock) *Sim {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	now := clock.Now()
	return &Sim{
		clock:               clock,
		devices:             make(map[vr.DeviceIndex]*Device),
		chaperone:           vr.Identity34(),
		chaperoneConfigured: true,
		calibration:         vr.CalibrationOK,
		displayFrequency:    90,
		vsyncToPhotons:      0.011,
		idleCPUMs:           9,
		compositor:          true,
		frameStart:          now,
		started:             now,
		virtualGain:         DefaultVirtualOffsetGain,
	}
}

// AddDevice registers d. Virtual devices take the next free virtual slot.
func (s *Sim) AddDevice(d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev := d
	s.devices[d.Index] = &dev
	if d.Virtual {
		s.virtual = append(s.virtual, d.Index)
	}
}

func (s *Sim) device(index vr.DeviceIndex) *Device {
	return s.devices[index]
}

// SetVirtualDevices replaces the virtual slot table and the Virtual flag of
// every device.
func (s *Sim) SetVirtualDevices(indices ...vr.DeviceIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.virtual = append([]vr.DeviceIndex(nil), indices...)
	for idx, d := range s.devices {
		d.Virtual = false
		for _, v := range indices {
			if v == idx {
				d.Virtual = true
			}
		}
	}
}

// SetButtons sets the pressed-button mask of a controller.
func (s *Sim) SetButtons(index vr.DeviceIndex, mask uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(index); d != nil {
		d.Buttons = mask
	}
}

// Move displaces a device physically.
func (s *Sim) Move(index vr.DeviceIndex, delta mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(index); d != nil {
		d.Position = d.Position.Add(delta)
	}
}

// SetPosition places a device physically.
func (s *Sim) SetPosition(index vr.DeviceIndex, pos mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(index); d != nil {
		d.Position = pos
	}
}

// SetPoseValid toggles whether a device reports a valid pose.
func (s *Sim) SetPoseValid(index vr.DeviceIndex, valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(index); d != nil {
		d.PoseValid = valid
	}
}

// SetConnected toggles whether a device is connected.
func (s *Sim) SetConnected(index vr.DeviceIndex, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(index); d != nil {
		d.Connected = connected
	}
}

// SetChaperone sets the working standing-zero transform; ok false simulates
// an unconfigured chaperone.
func (s *Sim) SetChaperone(m vr.Matrix34, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chaperone, s.chaperoneConfigured = m, ok
}

// SetCalibration sets the chaperone calibration state.
func (s *Sim) SetCalibration(state vr.CalibrationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibration = state
}

// SetDisplayFrequency sets the headset refresh rate; 0 makes the property
// unavailable.
func (s *Sim) SetDisplayFrequency(hz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayFrequency = hz
}

// SetCompositorIdle sets the idle CPU time reported in frame timing.
func (s *Sim) SetCompositorIdle(ms float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleCPUMs = ms
}

// SetCompositor toggles whether frame timing is available.
func (s *Sim) SetCompositor(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compositor = running
}

// SetAutoFrames makes frame indices follow the clock at the display rate.
func (s *Sim) SetAutoFrames(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoFrames = on
	s.started = s.clock.Now()
}

// SetNotReady makes the next InitRuntime and ConnectInjector calls fail with
// vr.ErrNotReady the given number of times.
func (s *Sim) SetNotReady(runtimeAttempts, injectorAttempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtimeNotReady, s.injectorNotReady = runtimeAttempts, injectorAttempts
}

// SetVirtualOffsetGain sets how strongly offsets apply to virtual devices.
func (s *Sim) SetVirtualOffsetGain(gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.virtualGain = gain
}

// FailOffsets makes SetWorldFromDriverTranslationOffset return err; nil
// clears it.
func (s *Sim) FailOffsets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsetErr = err
}

// AdvanceFrame moves to the next frame and plays the scenario step for it.
func (s *Sim) AdvanceFrame() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	return s.frame
}

func (s *Sim) advanceLocked() {
	s.frame++
	s.frameStart = s.clock.Now()
	if s.scenario == nil {
		return
	}
	seg, ok := s.scenario.segmentAt(s.frame)
	if !ok {
		return
	}
	for role, motion := range map[vr.ControllerRole]HandMotion{
		vr.RoleLeftHand:  seg.Left,
		vr.RoleRightHand: seg.Right,
	} {
		d := s.byRoleLocked(role)
		if d == nil {
			continue
		}
		d.Buttons = motion.Buttons
		d.Position = d.Position.Add(mgl64.Vec3(motion.Velocity))
	}
}

func (s *Sim) byRoleLocked(role vr.ControllerRole) *Device {
	indices := make([]int, 0, len(s.devices))
	for idx := range s.devices {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)
	for _, idx := range indices {
		d := s.devices[vr.DeviceIndex(idx)]
		if d.Role == role && d.Connected {
			return d
		}
	}
	return nil
}

// Offset returns the last translation offset sent for a device.
func (s *Sim) Offset(index vr.DeviceIndex) mgl64.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets[index]
}

// OffsetsEnabled reports whether offsets were enabled for a device.
func (s *Sim) OffsetsEnabled(index vr.DeviceIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsetsEnabled[index]
}

// OffsetWrites counts SetWorldFromDriverTranslationOffset calls.
func (s *Sim) OffsetWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsetWrites
}

// Reverts counts RevertWorkingCopy calls.
func (s *Sim) Reverts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reverts
}

// LastPrediction returns the prediction interval of the last pose request.
func (s *Sim) LastPrediction() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPrediction
}

// PhysicalPosition returns where a device physically is.
func (s *Sim) PhysicalPosition(index vr.DeviceIndex) mgl64.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(index); d != nil {
		return d.Position
	}
	return mgl64.Vec3{}
}

// ReportedPosition returns the position the runtime reports for a device:
// the physical position plus the driver offset, at double strength for
// virtual devices.
func (s *Sim) ReportedPosition(index vr.DeviceIndex) mgl64.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportedLocked(index)
}

func (s *Sim) reportedLocked(index vr.DeviceIndex) mgl64.Vec3 {
	d := s.device(index)
	if d == nil {
		return mgl64.Vec3{}
	}
	if !s.offsetsEnabled[index] {
		return d.Position
	}
	gain := 1.0
	if d.Virtual {
		gain = s.virtualGain
	}
	return d.Position.Add(s.offsets[index].Mul(gain))
}
