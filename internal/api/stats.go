package api

import (
	"net/http"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/playspace-mover/internal/httputil"
	"github.com/banshee-data/playspace-mover/internal/playspace"
)

// FrameStats describes the spacing of processed frames, in milliseconds.
// Gaps show up as a high max and p99 long before they show in the mean.
type FrameStats struct {
	Frames     int     `json:"frames"`
	Intervals  int     `json:"intervals"`
	MeanMs     float64 `json:"mean_ms"`
	StdDevMs   float64 `json:"stddev_ms"`
	MinMs      float64 `json:"min_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MaxMs      float64 `json:"max_ms"`
	GrabFrames int     `json:"grab_frames"`
	// SkippedFrames counts compositor frames that were never processed.
	SkippedFrames uint64 `json:"skipped_frames"`
}

// ComputeFrameStats summarizes history, which must be in frame order.
func ComputeFrameStats(history []playspace.FrameReport) FrameStats {
	st := FrameStats{Frames: len(history)}
	intervals := make([]float64, 0, len(history))
	for i, rep := range history {
		if rep.Grabbing() {
			st.GrabFrames++
		}
		if i == 0 {
			continue
		}
		prev := history[i-1]
		intervals = append(intervals, float64(rep.Time.Sub(prev.Time).Nanoseconds())/1e6)
		if rep.Frame > prev.Frame+1 {
			st.SkippedFrames += uint64(rep.Frame - prev.Frame - 1)
		}
	}
	st.Intervals = len(intervals)
	if len(intervals) == 0 {
		return st
	}

	sort.Float64s(intervals)
	if len(intervals) > 1 {
		st.MeanMs, st.StdDevMs = stat.MeanStdDev(intervals, nil)
	} else {
		st.MeanMs = intervals[0]
	}
	st.MinMs = floats.Min(intervals)
	st.MaxMs = floats.Max(intervals)
	st.P50Ms = stat.Quantile(0.5, stat.Empirical, intervals, nil)
	st.P95Ms = stat.Quantile(0.95, stat.Empirical, intervals, nil)
	st.P99Ms = stat.Quantile(0.99, stat.Empirical, intervals, nil)
	return st
}

func (s *Server) handleFrameStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, ComputeFrameStats(s.chartHistory(r)))
}
