package playspace

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/vr"
)

// Hand selects a controller.
type Hand int

const (
	HandLeft Hand = iota
	HandRight
)

var hands = [...]Hand{HandLeft, HandRight}

func (h Hand) role() vr.ControllerRole {
	if h == HandRight {
		return vr.RoleRightHand
	}
	return vr.RoleLeftHand
}

func (h Hand) String() string {
	return h.role().String()
}

// ButtonMasks holds the grab bitmask of each hand.
type ButtonMasks struct {
	Left  uint64
	Right uint64
}

func (m ButtonMasks) forHand(h Hand) uint64 {
	if h == HandRight {
		return m.Right
	}
	return m.Left
}

// OffsetEngine turns grab motion into the cumulative playspace offset.
type OffsetEngine struct {
	system   vr.System
	masks    ButtonMasks
	maxDelta float64

	cumulative mgl64.Mat4
	prior      mgl64.Mat4
	grabbing   [len(hands)]bool
}

// NewOffsetEngine returns an engine with identity offsets. maxDelta bounds
// each axis of a single frame's motion.
func NewOffsetEngine(system vr.System, masks ButtonMasks, maxDelta float64) *OffsetEngine {
	return &OffsetEngine{
		system:     system,
		masks:      masks,
		maxDelta:   maxDelta,
		cumulative: mgl64.Ident4(),
		prior:      mgl64.Ident4(),
	}
}

// GrabDelta returns the averaged, unclamped tracking-space motion of the
// hands currently holding their grab buttons, and how many hands grabbed.
func (e *OffsetEngine) GrabDelta(table *DeviceTable) (mgl64.Vec3, int) {
	var sum mgl64.Vec3
	count := 0
	for _, h := range hands {
		e.grabbing[h] = false
		index := e.system.TrackedDeviceIndexForControllerRole(h.role())
		if !index.Valid() {
			continue
		}
		state, ok := e.system.ControllerState(index)
		if !ok || state.ButtonPressed&e.masks.forHand(h) == 0 {
			continue
		}
		e.grabbing[h] = true
		sum = sum.Add(table.Sample(index).Delta())
		count++
	}
	if count > 0 {
		sum = sum.Mul(1 / float64(count))
	}
	return sum, count
}

// Update advances the cumulative offset by one frame and returns the
// playspace-space delta that was applied.
func (e *OffsetEngine) Update(table *DeviceTable, chaperone vr.Matrix34) mgl64.Vec3 {
	delta, _ := e.GrabDelta(table)
	delta = clampVec3(delta, e.maxDelta)

	// Tracking space to standing space, so the grab stays world-locked when
	// the play area itself is rotated.
	delta = chaperone.MulRowVec3(delta)

	e.prior = e.cumulative
	e.cumulative = e.cumulative.Mul4(mgl64.Translate3D(-delta.X(), -delta.Y(), -delta.Z()))
	return delta
}

// Cumulative returns the total offset since start.
func (e *OffsetEngine) Cumulative() mgl64.Mat4 { return e.cumulative }

// Prior returns the offset as it was before the last Update.
func (e *OffsetEngine) Prior() mgl64.Mat4 { return e.prior }

// Translation returns the translation part of the cumulative offset.
func (e *OffsetEngine) Translation() mgl64.Vec3 { return e.cumulative.Col(3).Vec3() }

// Grabbing reports whether h held its grab buttons during the last Update.
func (e *OffsetEngine) Grabbing(h Hand) bool { return e.grabbing[h] }

// clampVec3 bounds each axis to [-limit, limit]. A NaN axis becomes zero so
// one corrupt sample cannot poison the cumulative offset.
func clampVec3(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	for i := range v {
		if math.IsNaN(v[i]) {
			v[i] = 0
			continue
		}
		v[i] = mgl64.Clamp(v[i], -limit, limit)
	}
	return v
}
