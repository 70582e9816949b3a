package playspace

import (
	"github.com/banshee-data/playspace-mover/internal/vr"
)

// PoseTracker refreshes the device table from predicted poses.
type PoseTracker struct {
	system vr.System
	poses  []vr.TrackedDevicePose
}

// NewPoseTracker returns a tracker reading from system.
func NewPoseTracker(system vr.System) *PoseTracker {
	return &PoseTracker{
		system: system,
		poses:  make([]vr.TrackedDevicePose, vr.MaxTrackedDeviceCount),
	}
}

// PredictedSecondsFromNow is how far ahead poses are requested: the rest of
// the current frame plus the vsync to photon latency of the headset.
func (t *PoseTracker) PredictedSecondsFromNow() float64 {
	sinceVsync, _, _ := t.system.TimeSinceLastVsync()

	var frameDuration float64
	if freq, err := t.system.FloatTrackedDeviceProperty(vr.HMDIndex, vr.PropDisplayFrequency); err == nil && freq > 0 {
		frameDuration = 1 / freq
	}
	vsyncToPhotons, err := t.system.FloatTrackedDeviceProperty(vr.HMDIndex, vr.PropSecondsFromVsyncToPhotons)
	if err != nil {
		vsyncToPhotons = 0
	}
	return frameDuration - sinceVsync + vsyncToPhotons
}

// Update fetches predicted poses and shifts fresh positions into table. It
// returns the number of devices refreshed. Connected devices without a valid
// pose keep their previous sample.
func (t *PoseTracker) Update(table *DeviceTable) int {
	t.system.DeviceToAbsoluteTrackingPose(vr.UniverseStanding, t.PredictedSecondsFromNow(), t.poses)

	refreshed := 0
	for i := range t.poses {
		index := vr.DeviceIndex(i)
		if !t.system.IsTrackedDeviceConnected(index) {
			continue
		}
		pose := t.poses[i]
		if !pose.PoseIsValid || !pose.DeviceIsConnected {
			continue
		}
		table.Observe(index, pose.DeviceToAbsoluteTracking.Translation())
		refreshed++
	}
	return refreshed
}
