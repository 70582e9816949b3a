package testutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/banshee-data/playspace-mover/internal/monitoring"
)

type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper() {}
func (r *recordingTB) Errorf(string, ...interface{}) { r.failed = true }
func (r *recordingTB) Fatalf(string, ...interface{}) { r.failed = true }

func TestAssertStatusCode(t *testing.T) {
	rec := &recordingTB{TB: t}
	AssertStatusCode(rec, 200, 200)
	if rec.failed {
		t.Error("matching codes failed")
	}
	AssertStatusCode(rec, 404, 200)
	if !rec.failed {
		t.Error("mismatched codes passed")
	}
}

func TestAssertNoError(t *testing.T) {
	rec := &recordingTB{TB: t}
	AssertNoError(rec, nil)
	if rec.failed {
		t.Error("nil error failed")
	}
	AssertNoError(rec, errors.New("boom"))
	if !rec.failed {
		t.Error("non-nil error passed")
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Frames int `json:"frames"`
	}
	DecodeJSON(t, strings.NewReader(`{"frames": 7}`), &v)
	if v.Frames != 7 {
		t.Errorf("Frames = %d, want 7", v.Frames)
	}
}

func TestCaptureLogs(t *testing.T) {
	c := CaptureLogs(t)
	monitoring.Logf("virtual devices: %v", []int{4})
	if !c.Contains("virtual devices: [4]") {
		t.Errorf("lines = %v", c.Lines())
	}
	if len(c.Lines()) != 1 {
		t.Errorf("captured %d lines, want 1", len(c.Lines()))
	}
}
