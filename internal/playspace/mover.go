// Package playspace implements the per-frame playspace offset pipeline:
// device poses and the chaperone frame are refreshed, grab motion is folded
// into a cumulative offset, and that offset is redistributed to every
// tracked device through the injection service.
package playspace

import (
	"context"
	"time"

	"github.com/banshee-data/playspace-mover/internal/config"
	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

// Options configures a Mover.
type Options struct {
	Masks              ButtonMasks
	MaxFrameDelta      float64
	VirtualDeviceScale float64
	MaxFrameSleep      time.Duration
	IdlePollInterval   time.Duration
	Policy             InvalidationPolicy
	Clock              timeutil.Clock
	Observers          []FrameObserver
}

// OptionsFromConfig builds Options from cfg, using the real clock.
func OptionsFromConfig(cfg *config.Config) Options {
	var policy InvalidationPolicy = CountPolicy{}
	if cfg.GetRegistryPolicy() == config.RegistryPolicyAlways {
		policy = AlwaysRebuild{}
	}
	return Options{
		Masks: ButtonMasks{
			Left:  cfg.GetLeftButtonMask(),
			Right: cfg.GetRightButtonMask(),
		},
		MaxFrameDelta:      cfg.GetMaxFrameDelta(),
		VirtualDeviceScale: cfg.GetVirtualDeviceScale(),
		MaxFrameSleep:      cfg.GetMaxFrameSleep(),
		IdlePollInterval:   cfg.GetIdlePollInterval(),
		Policy:             policy,
		Clock:              timeutil.RealClock{},
	}
}

// Mover owns the frame state and sequences the components. It is not safe
// for concurrent use; observers receive copies.
type Mover struct {
	runtime vr.Runtime
	opts    Options
	clock   timeutil.Clock

	table     DeviceTable
	tracker   *PoseTracker
	chaperone *ChaperoneProvider
	registry  *VirtualRegistry
	engine    *OffsetEngine
	applier   *DeviceOffsetApplier

	lastFrame uint32
	haveFrame bool
	frames    uint64
}

// New wires the components around runtime and injector.
func New(runtime vr.Runtime, injector vr.Injector, opts Options) *Mover {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	registry := NewVirtualRegistry(injector, opts.Policy)
	return &Mover{
		runtime:   runtime,
		opts:      opts,
		clock:     opts.Clock,
		tracker:   NewPoseTracker(runtime),
		chaperone: NewChaperoneProvider(runtime),
		registry:  registry,
		engine:    NewOffsetEngine(runtime, opts.Masks, opts.MaxFrameDelta),
		applier:   NewDeviceOffsetApplier(runtime, injector, registry, opts.VirtualDeviceScale),
	}
}

// NewFromSession wires a Mover around the collaborators of a finished
// startup, seeded with the chaperone frame read during startup.
func NewFromSession(s Session, opts Options) *Mover {
	m := New(s.Runtime, s.Injector, opts)
	m.chaperone.Seed(s.Chaperone)
	return m
}

// AddObserver registers o for every subsequent frame.
func (m *Mover) AddObserver(o FrameObserver) {
	m.opts.Observers = append(m.opts.Observers, o)
}

// Step processes one frame. The order is fixed: the virtual registry, the
// chaperone frame and the device poses are refreshed before the offset
// engine reads them, and offsets are applied last.
func (m *Mover) Step(frame uint32) (FrameReport, error) {
	if err := m.registry.Refresh(); err != nil {
		return FrameReport{}, err
	}
	chaperone := m.chaperone.Refresh()
	refreshed := m.tracker.Update(&m.table)
	delta := m.engine.Update(&m.table, chaperone)

	res, err := m.applier.Apply(&m.table, m.engine.Prior(), m.engine.Cumulative())
	if err != nil {
		return FrameReport{}, err
	}
	m.frames++

	report := FrameReport{
		Frame:          frame,
		Time:           m.clock.Now(),
		LeftGrabbing:   m.engine.Grabbing(HandLeft),
		RightGrabbing:  m.engine.Grabbing(HandRight),
		Delta:          delta,
		Offset:         m.engine.Translation(),
		Devices:        res.Devices,
		VirtualDevices: res.VirtualDevices,
		PosesRefreshed: refreshed,
	}
	if report.Grabbing() {
		monitoring.Debugf("frame %d: delta %v offset %v", frame, report.Delta, report.Offset)
	}
	for _, o := range m.opts.Observers {
		o.ObserveFrame(report)
	}
	return report, nil
}

// Run processes a frame every time the compositor reports a new frame index
// and then sleeps until shortly before the next one. It returns the context
// error on cancellation or the first collaborator error.
func (m *Mover) Run(ctx context.Context) error {
	monitoring.Logf("playspace mover running (masks left=%d right=%d)", m.opts.Masks.Left, m.opts.Masks.Right)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		timing, ok := m.runtime.FrameTiming()
		if !ok || (m.haveFrame && timing.FrameIndex == m.lastFrame) {
			m.clock.Sleep(m.opts.IdlePollInterval)
			continue
		}
		m.lastFrame, m.haveFrame = timing.FrameIndex, true

		if _, err := m.Step(timing.FrameIndex); err != nil {
			return err
		}
		m.clock.Sleep(m.FrameSleep(timing))
	}
}

// FrameSleep is how long to wait after a frame: one display period less a
// millisecond, or the compositor's idle CPU time less a millisecond when
// the display frequency is unknown, clamped to [0, MaxFrameSleep].
func (m *Mover) FrameSleep(timing vr.FrameTiming) time.Duration {
	var ms int
	if freq, err := m.runtime.FloatTrackedDeviceProperty(vr.HMDIndex, vr.PropDisplayFrequency); err == nil && freq > 0 {
		ms = int(1000/freq - 1)
	} else {
		ms = int(timing.CompositorIdleCPUMs - 1)
	}
	d := time.Duration(ms) * time.Millisecond
	if d < 0 {
		return 0
	}
	if d > m.opts.MaxFrameSleep {
		return m.opts.MaxFrameSleep
	}
	return d
}

// Chaperone returns the standing frame used by the last Step, or the seeded
// startup frame before the first one.
func (m *Mover) Chaperone() vr.Matrix34 { return m.chaperone.Frame() }

// Frames returns the number of frames processed.
func (m *Mover) Frames() uint64 { return m.frames }

// Sample returns the cached sample of a device.
func (m *Mover) Sample(index vr.DeviceIndex) DeviceSample { return m.table.Sample(index) }

// Engine exposes the offset engine for inspection.
func (m *Mover) Engine() *OffsetEngine { return m.engine }

// Registry exposes the virtual device registry for inspection.
func (m *Mover) Registry() *VirtualRegistry { return m.registry }
