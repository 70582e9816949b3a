package playspace

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/vr"
)

// DeviceOffsetApplier pushes the cumulative offset to every connected device.
type DeviceOffsetApplier struct {
	system       vr.System
	injector     vr.Injector
	classifier   VirtualClassifier
	virtualScale float64
}

// ApplyResult summarizes one Apply call.
type ApplyResult struct {
	Devices        int
	VirtualDevices int
}

// NewDeviceOffsetApplier returns an applier. virtualScale multiplies the
// correction sent for devices the classifier marks as virtual.
func NewDeviceOffsetApplier(system vr.System, injector vr.Injector, classifier VirtualClassifier, virtualScale float64) *DeviceOffsetApplier {
	return &DeviceOffsetApplier{
		system:       system,
		injector:     injector,
		classifier:   classifier,
		virtualScale: virtualScale,
	}
}

// Correction computes the translation to send for a device cached at pos and
// the device's new cached position. The prior offset is undone to recover
// the position in the fixed world frame, then the cumulative offset is
// applied.
func Correction(pos mgl64.Vec3, priorInverse, cumulative mgl64.Mat4) (correction, newPos mgl64.Vec3) {
	oldPos := priorInverse.Mul4x1(pos.Vec4(1)).Vec3()
	newPos = cumulative.Mul4x1(oldPos.Vec4(1)).Vec3()
	return newPos.Sub(oldPos), newPos
}

// Apply enables offsets on and sends a translation to every connected
// device, updating each cached position so the next frame composes from it.
func (a *DeviceOffsetApplier) Apply(table *DeviceTable, prior, cumulative mgl64.Mat4) (ApplyResult, error) {
	var res ApplyResult
	priorInverse := prior.Inv()
	for i := 0; i < vr.MaxTrackedDeviceCount; i++ {
		index := vr.DeviceIndex(i)
		if !a.system.IsTrackedDeviceConnected(index) {
			continue
		}
		if err := a.injector.EnableDeviceOffsets(index, true); err != nil {
			return res, fmt.Errorf("enable offsets on device %d: %w", index, err)
		}

		correction, newPos := Correction(table.Sample(index).Position, priorInverse, cumulative)
		table.SetPosition(index, newPos)
		if a.classifier.IsVirtual(index) {
			correction = correction.Mul(a.virtualScale)
			res.VirtualDevices++
		}
		if err := a.injector.SetWorldFromDriverTranslationOffset(index, correction); err != nil {
			return res, fmt.Errorf("set offset on device %d: %w", index, err)
		}
		res.Devices++
	}
	return res, nil
}
