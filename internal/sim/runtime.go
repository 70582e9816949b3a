package sim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/vr"
)

var (
	_ vr.Runtime  = (*Sim)(nil)
	_ vr.Injector = (*Sim)(nil)
	_ vr.Backend  = (*Sim)(nil)
)

// InitRuntime returns s once the configured not-ready attempts are used up.
func (s *Sim) InitRuntime() (vr.Runtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runtimeNotReady > 0 {
		s.runtimeNotReady--
		return nil, fmt.Errorf("init runtime: %w", vr.ErrNotReady)
	}
	return s, nil
}

// ConnectInjector returns s once the configured not-ready attempts are used
// up.
func (s *Sim) ConnectInjector() (vr.Injector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injectorNotReady > 0 {
		s.injectorNotReady--
		return nil, fmt.Errorf("connect injector: %w", vr.ErrNotReady)
	}
	return s, nil
}

func (s *Sim) IsTrackedDeviceConnected(index vr.DeviceIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.device(index)
	return d != nil && d.Connected
}

func (s *Sim) DeviceToAbsoluteTrackingPose(_ vr.TrackingUniverse, predictedSecondsFromNow float64, poses []vr.TrackedDevicePose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPrediction = predictedSecondsFromNow
	for i := range poses {
		idx := vr.DeviceIndex(i)
		d := s.device(idx)
		if d == nil {
			poses[i] = vr.TrackedDevicePose{}
			continue
		}
		pos := s.reportedLocked(idx)
		poses[i] = vr.TrackedDevicePose{
			DeviceToAbsoluteTracking: vr.Matrix34FromMat4(mgl64.Translate3D(pos[0], pos[1], pos[2])),
			PoseIsValid:              d.PoseValid,
			DeviceIsConnected:        d.Connected,
		}
	}
}

func (s *Sim) TrackedDeviceIndexForControllerRole(role vr.ControllerRole) vr.DeviceIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.byRoleLocked(role); d != nil {
		return d.Index
	}
	return vr.InvalidDeviceIndex
}

func (s *Sim) ControllerState(index vr.DeviceIndex) (vr.ControllerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.device(index)
	if d == nil || d.Class != ClassController {
		return vr.ControllerState{}, false
	}
	return vr.ControllerState{PacketNum: s.frame, ButtonPressed: d.Buttons}, true
}

func (s *Sim) FloatTrackedDeviceProperty(index vr.DeviceIndex, prop vr.Property) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.device(index)
	if d == nil || d.Class != ClassHMD {
		return 0, fmt.Errorf("device %d property %d: %w", index, prop, vr.ErrUnknownProperty)
	}
	switch prop {
	case vr.PropDisplayFrequency:
		if s.displayFrequency <= 0 {
			return 0, fmt.Errorf("display frequency: %w", vr.ErrUnknownProperty)
		}
		return s.displayFrequency, nil
	case vr.PropSecondsFromVsyncToPhotons:
		return s.vsyncToPhotons, nil
	}
	return 0, fmt.Errorf("property %d: %w", prop, vr.ErrUnknownProperty)
}

func (s *Sim) TimeSinceLastVsync() (float64, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.frameStart).Seconds(), uint64(s.frame), true
}

func (s *Sim) RevertWorkingCopy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverts++
}

func (s *Sim) WorkingStandingZeroPoseToRawTrackingPose() (vr.Matrix34, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chaperone, s.chaperoneConfigured
}

func (s *Sim) CalibrationState() vr.CalibrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibration
}

// FrameTiming reports the current frame. With auto frames on, the frame index
// first catches up with the clock at the display rate.
func (s *Sim) FrameTiming() (vr.FrameTiming, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.compositor {
		return vr.FrameTiming{}, false
	}
	if s.autoFrames && s.displayFrequency > 0 {
		target := uint32(s.clock.Since(s.started).Seconds() * s.displayFrequency)
		for s.frame < target {
			s.advanceLocked()
		}
	}
	return vr.FrameTiming{FrameIndex: s.frame, CompositorIdleCPUMs: s.idleCPUMs}, true
}

func (s *Sim) VirtualDeviceCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.virtual), nil
}

func (s *Sim) VirtualDeviceInfo(slot uint32) (vr.VirtualDeviceInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(slot) >= len(s.virtual) {
		return vr.VirtualDeviceInfo{}, false, nil
	}
	idx := s.virtual[slot]
	info := vr.VirtualDeviceInfo{VirtualDeviceID: slot, OpenVRDeviceID: idx}
	if d := s.device(idx); d != nil {
		info.DeviceSerial = d.Serial
	}
	return info, true, nil
}

func (s *Sim) EnableDeviceOffsets(index vr.DeviceIndex, enable bool) error {
	if !index.Valid() {
		return fmt.Errorf("enable offsets on %d: invalid device index", index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsetsEnabled[index] = enable
	return nil
}

func (s *Sim) SetWorldFromDriverTranslationOffset(index vr.DeviceIndex, offset mgl64.Vec3) error {
	if !index.Valid() {
		return fmt.Errorf("set offset on %d: invalid device index", index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offsetErr != nil {
		return s.offsetErr
	}
	s.offsets[index] = offset
	s.offsetWrites++
	return nil
}
