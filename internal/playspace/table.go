package playspace

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/vr"
)

// DeviceSample is the cached absolute position of one tracked device and its
// value on the previous refresh.
type DeviceSample struct {
	Position     mgl64.Vec3
	LastPosition mgl64.Vec3
}

// Delta is the motion between the last two refreshes.
func (s DeviceSample) Delta() mgl64.Vec3 {
	return s.Position.Sub(s.LastPosition)
}

// DeviceTable is a fixed-capacity arena of samples indexed by device index.
// It is owned by the frame loop and passed explicitly to each component.
// Entries are never invalidated: a device that stops reporting keeps its
// last sample.
type DeviceTable struct {
	samples [vr.MaxTrackedDeviceCount]DeviceSample
}

// Sample returns the sample for index, or the zero sample when index is out
// of range.
func (t *DeviceTable) Sample(index vr.DeviceIndex) DeviceSample {
	if !index.Valid() {
		return DeviceSample{}
	}
	return t.samples[index]
}

// Observe shifts the current position into LastPosition and stores pos.
func (t *DeviceTable) Observe(index vr.DeviceIndex, pos mgl64.Vec3) {
	if !index.Valid() {
		return
	}
	s := &t.samples[index]
	s.LastPosition = s.Position
	s.Position = pos
}

// SetPosition overwrites the current position without touching
// LastPosition.
func (t *DeviceTable) SetPosition(index vr.DeviceIndex, pos mgl64.Vec3) {
	if !index.Valid() {
		return
	}
	t.samples[index].Position = pos
}
