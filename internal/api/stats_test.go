package api

import (
	"math"
	"testing"
	"time"

	"github.com/banshee-data/playspace-mover/internal/playspace"
)

func TestComputeFrameStatsUniform(t *testing.T) {
	var history []playspace.FrameReport
	for i := 1; i <= 10; i++ {
		history = append(history, report(uint32(i), i <= 3))
	}
	st := ComputeFrameStats(history)

	if st.Frames != 10 || st.Intervals != 9 || st.GrabFrames != 3 || st.SkippedFrames != 0 {
		t.Errorf("counts = %+v", st)
	}
	for name, v := range map[string]float64{
		"mean": st.MeanMs, "min": st.MinMs, "p50": st.P50Ms, "p95": st.P95Ms, "p99": st.P99Ms, "max": st.MaxMs,
	} {
		if math.Abs(v-11) > 1e-9 {
			t.Errorf("%s = %v, want 11", name, v)
		}
	}
	if st.StdDevMs > 1e-9 {
		t.Errorf("stddev = %v, want 0", st.StdDevMs)
	}
}

func TestComputeFrameStatsGap(t *testing.T) {
	history := []playspace.FrameReport{
		{Frame: 1, Time: testEpoch},
		{Frame: 2, Time: testEpoch.Add(10 * time.Millisecond)},
		{Frame: 6, Time: testEpoch.Add(60 * time.Millisecond)},
	}
	st := ComputeFrameStats(history)
	if st.SkippedFrames != 3 {
		t.Errorf("skipped = %d, want 3", st.SkippedFrames)
	}
	if st.MinMs != 10 || st.MaxMs != 50 || st.MeanMs != 30 {
		t.Errorf("min/max/mean = %v/%v/%v, want 10/50/30", st.MinMs, st.MaxMs, st.MeanMs)
	}
	if st.P99Ms != 50 {
		t.Errorf("p99 = %v, want 50", st.P99Ms)
	}
}

func TestComputeFrameStatsSmall(t *testing.T) {
	if st := ComputeFrameStats(nil); st != (FrameStats{}) {
		t.Errorf("empty stats = %+v", st)
	}
	st := ComputeFrameStats([]playspace.FrameReport{report(1, false), report(2, false)})
	if st.Intervals != 1 || st.MeanMs != 11 || st.StdDevMs != 0 {
		t.Errorf("single interval stats = %+v", st)
	}
}
