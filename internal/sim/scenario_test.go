package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

func TestDefaultScenario(t *testing.T) {
	sc := DefaultScenario()
	if sc.Name != "default" {
		t.Errorf("Name = %q, want default", sc.Name)
	}
	if len(sc.Devices) != 4 {
		t.Fatalf("len(Devices) = %d, want 4", len(sc.Devices))
	}
	if got := sc.TotalFrames(); got != 470 {
		t.Errorf("TotalFrames() = %d, want 470", got)
	}

	s, err := sc.Build(timeutil.NewMockClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n, _ := s.VirtualDeviceCount(); n != 1 {
		t.Errorf("VirtualDeviceCount() = %d, want 1", n)
	}
	if got := s.TrackedDeviceIndexForControllerRole(vr.RoleRightHand); got != 2 {
		t.Errorf("right hand index = %d, want 2", got)
	}
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "devices: [\n"},
		{"negative frequency", "display_frequency: -1\n"},
		{"index out of range", "devices:\n  - index: 64\n    class: tracker\n"},
		{"duplicate index", "devices:\n  - index: 1\n    class: tracker\n  - index: 1\n    class: tracker\n"},
		{"unknown class", "devices:\n  - index: 1\n    class: lighthouse\n"},
		{"unknown role", "devices:\n  - index: 1\n    class: controller\n    role: middle\n"},
		{"empty segment", "timeline:\n  - frames: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScenario([]byte(tt.yaml)); err == nil {
				t.Errorf("ParseScenario(%q) succeeded, want error", tt.yaml)
			}
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.yaml")
	data := []byte(`
name: rotated
chaperone:
  translation: [1, 0, 2]
  yaw_degrees: 90
devices:
  - index: 0
    class: hmd
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	m := sc.Chaperone.ChaperoneMatrix()
	if got := m.Translation(); !got.ApproxEqual(mgl64.Vec3{1, 0, 2}) {
		t.Errorf("chaperone translation = %v", got)
	}
	// +X in raw space is -Z in the rotated standing frame.
	if got := m.MulRowVec3(mgl64.Vec3{0, 0, -1}); got.Sub(mgl64.Vec3{1, 0, 0}).Len() > 1e-9 {
		t.Errorf("MulRowVec3 = %v, want +X", got)
	}

	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadScenario on missing file succeeded")
	}
}

func TestTimelinePlayback(t *testing.T) {
	sc, err := ParseScenario([]byte(`
devices:
  - index: 1
    class: controller
    role: left
timeline:
  - frames: 2
  - frames: 3
    left:
      buttons: 2
      velocity: [0.01, 0, 0]
loop: false
`))
	if err != nil {
		t.Fatal(err)
	}
	s, err := sc.Build(timeutil.NewMockClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		s.AdvanceFrame()
	}
	if st, _ := s.ControllerState(1); st.ButtonPressed != 0 {
		t.Errorf("buttons after rest = %d, want 0", st.ButtonPressed)
	}
	for i := 0; i < 3; i++ {
		s.AdvanceFrame()
	}
	if st, _ := s.ControllerState(1); st.ButtonPressed != 2 {
		t.Errorf("buttons during grab = %d, want 2", st.ButtonPressed)
	}
	if got := s.PhysicalPosition(1); !got.ApproxEqual(mgl64.Vec3{0.03, 0, 0}) {
		t.Errorf("position = %v, want (0.03,0,0)", got)
	}

	// Without loop the timeline stops driving the hand.
	s.AdvanceFrame()
	if got := s.PhysicalPosition(1); !got.ApproxEqual(mgl64.Vec3{0.03, 0, 0}) {
		t.Errorf("position after end = %v, want unchanged", got)
	}
}

func TestSegmentAtLoops(t *testing.T) {
	sc := &Scenario{
		Timeline: []Segment{{Frames: 1}, {Frames: 2, Left: HandMotion{Buttons: 2}}},
		Loop:     true,
	}
	want := []uint64{0, 2, 2, 0, 2}
	for i, w := range want {
		seg, ok := sc.segmentAt(uint32(i + 1))
		if !ok {
			t.Fatalf("segmentAt(%d) not found", i+1)
		}
		if seg.Left.Buttons != w {
			t.Errorf("segmentAt(%d).Left.Buttons = %d, want %d", i+1, seg.Left.Buttons, w)
		}
	}
	if _, ok := sc.segmentAt(0); ok {
		t.Error("segmentAt(0) found a segment")
	}
}
