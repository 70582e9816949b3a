package sim

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

//go:embed scenarios/default.yaml
var defaultScenario []byte

// Scenario describes a simulated rig and a scripted session.
type Scenario struct {
	Name             string        `yaml:"name"`
	DisplayFrequency float64       `yaml:"display_frequency"`
	VsyncToPhotons   float64       `yaml:"vsync_to_photons"`
	IdleCPUMs        float64       `yaml:"idle_cpu_ms"`
	Chaperone        ChaperoneSpec `yaml:"chaperone"`
	Devices          []DeviceSpec  `yaml:"devices"`
	Timeline         []Segment     `yaml:"timeline"`
	Loop             bool          `yaml:"loop"`
}

// ChaperoneSpec places the standing zero pose in raw tracking space.
type ChaperoneSpec struct {
	Translation  [3]float64 `yaml:"translation"`
	YawDegrees   float64    `yaml:"yaw_degrees"`
	Unconfigured bool       `yaml:"unconfigured"`
}

// DeviceSpec is one device of the rig.
type DeviceSpec struct {
	Index    uint32     `yaml:"index"`
	Class    string     `yaml:"class"`
	Role     string     `yaml:"role"`
	Virtual  bool       `yaml:"virtual"`
	Serial   string     `yaml:"serial"`
	Position [3]float64 `yaml:"position"`
}

// Segment holds the hand input for a run of frames.
type Segment struct {
	Frames int        `yaml:"frames"`
	Left   HandMotion `yaml:"left"`
	Right  HandMotion `yaml:"right"`
}

// HandMotion is the pressed-button mask and the per-frame physical
// displacement of one controller.
type HandMotion struct {
	Buttons  uint64     `yaml:"buttons"`
	Velocity [3]float64 `yaml:"velocity"`
}

// DefaultScenario returns the built-in scenario.
func DefaultScenario() *Scenario {
	sc, err := ParseScenario(defaultScenario)
	if err != nil {
		panic(fmt.Sprintf("built-in scenario: %v", err))
	}
	return sc
}

// LoadScenario reads a YAML scenario from path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that the scenario can be built.
func (sc *Scenario) Validate() error {
	if sc.DisplayFrequency < 0 {
		return fmt.Errorf("display_frequency must be non-negative, got %v", sc.DisplayFrequency)
	}
	seen := make(map[uint32]bool)
	for i, d := range sc.Devices {
		if d.Index >= vr.MaxTrackedDeviceCount {
			return fmt.Errorf("device %d: index %d out of range", i, d.Index)
		}
		if seen[d.Index] {
			return fmt.Errorf("device %d: duplicate index %d", i, d.Index)
		}
		seen[d.Index] = true
		if _, err := parseClass(d.Class); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
		if _, err := parseRole(d.Role); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
	}
	for i, seg := range sc.Timeline {
		if seg.Frames <= 0 {
			return fmt.Errorf("timeline segment %d: frames must be positive", i)
		}
	}
	return nil
}

func parseClass(s string) (DeviceClass, error) {
	switch DeviceClass(s) {
	case ClassHMD, ClassController, ClassTracker:
		return DeviceClass(s), nil
	}
	return "", fmt.Errorf("unknown class %q (supported: hmd, controller, tracker)", s)
}

func parseRole(s string) (vr.ControllerRole, error) {
	switch s {
	case "":
		return vr.RoleInvalid, nil
	case "left":
		return vr.RoleLeftHand, nil
	case "right":
		return vr.RoleRightHand, nil
	}
	return vr.RoleInvalid, fmt.Errorf("unknown role %q (supported: left, right)", s)
}

// TotalFrames is the length of one pass over the timeline.
func (sc *Scenario) TotalFrames() int {
	n := 0
	for _, seg := range sc.Timeline {
		n += seg.Frames
	}
	return n
}

// segmentAt returns the segment that drives frame (frames count from 1).
func (sc *Scenario) segmentAt(frame uint32) (Segment, bool) {
	total := sc.TotalFrames()
	if total == 0 || frame == 0 {
		return Segment{}, false
	}
	n := int(frame - 1)
	if n >= total {
		if !sc.Loop {
			return Segment{}, false
		}
		n %= total
	}
	for _, seg := range sc.Timeline {
		if n < seg.Frames {
			return seg, true
		}
		n -= seg.Frames
	}
	return Segment{}, false
}

// ChaperoneMatrix returns the standing zero pose as a transform.
func (c ChaperoneSpec) ChaperoneMatrix() vr.Matrix34 {
	t := mgl64.Translate3D(c.Translation[0], c.Translation[1], c.Translation[2])
	r := mgl64.HomogRotate3DY(mgl64.DegToRad(c.YawDegrees))
	return vr.Matrix34FromMat4(t.Mul4(r))
}

// Build returns a simulator set up for the scenario, with frames driven by
// clock.
func (sc *Scenario) Build(clock timeutil.Clock) (*Sim, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	s := New(clock)
	if sc.DisplayFrequency > 0 {
		s.SetDisplayFrequency(sc.DisplayFrequency)
	}
	if sc.VsyncToPhotons > 0 {
		s.vsyncToPhotons = sc.VsyncToPhotons
	}
	if sc.IdleCPUMs > 0 {
		s.SetCompositorIdle(sc.IdleCPUMs)
	}
	s.SetChaperone(sc.Chaperone.ChaperoneMatrix(), !sc.Chaperone.Unconfigured)
	for _, d := range sc.Devices {
		class, _ := parseClass(d.Class)
		role, _ := parseRole(d.Role)
		s.AddDevice(Device{
			Index:     vr.DeviceIndex(d.Index),
			Class:     class,
			Role:      role,
			Virtual:   d.Virtual,
			Serial:    d.Serial,
			Position:  mgl64.Vec3(d.Position),
			Connected: true,
			PoseValid: true,
		})
	}
	s.mu.Lock()
	s.scenario = sc
	s.mu.Unlock()
	return s, nil
}
