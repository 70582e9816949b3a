package api

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"tailscale.com/tsweb"

	"github.com/banshee-data/playspace-mover/internal/httputil"
	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/playspace"
)

// DefaultChartPoints is how many recent frames the charts show unless the
// points query parameter asks otherwise.
const DefaultChartPoints = 900

var axisNames = [3]string{"x", "y", "z"}

var axisColors = [3]color.RGBA{
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
}

// AttachAdminRoutes registers the chart and statistics pages on the tsweb
// debug page of mux.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("offset-chart", "Cumulative playspace offset (HTML chart)", s.handleOffsetChart)
	debug.HandleFunc("offset.png", "Cumulative playspace offset (PNG plot)", s.handleOffsetPlot)
	debug.HandleFunc("frame-stats", "Frame interval statistics", s.handleFrameStats)
}

func (s *Server) chartHistory(r *http.Request) []playspace.FrameReport {
	return s.History(httputil.QueryInt(r, "points", DefaultChartPoints, 10, MaxHistoryLimit))
}

// handleOffsetChart renders the offset translation per axis as a go-echarts
// line chart, with grab frames marked in a fourth series.
func (s *Server) handleOffsetChart(w http.ResponseWriter, r *http.Request) {
	history := s.chartHistory(r)
	if len(history) == 0 {
		httputil.NotFound(w, "no frames recorded yet")
		return
	}

	frames := make([]string, len(history))
	var series [3][]opts.LineData
	grabs := make([]opts.LineData, len(history))
	for i, rep := range history {
		frames[i] = strconv.FormatUint(uint64(rep.Frame), 10)
		for axis := range series {
			series[axis] = append(series[axis], opts.LineData{Value: rep.Offset[axis]})
		}
		grab := 0
		if rep.Grabbing() {
			grab = 1
		}
		grabs[i] = opts.LineData{Value: grab}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Playspace offset", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Playspace offset", Subtitle: fmt.Sprintf("frames %s to %s", frames[0], frames[len(frames)-1])}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "offset (m)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(frames)
	for axis, data := range series {
		line.AddSeries(axisNames[axis], data)
	}
	line.AddSeries("grabbing", grabs, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleOffsetPlot renders the same data as a static gonum/plot PNG.
func (s *Server) handleOffsetPlot(w http.ResponseWriter, r *http.Request) {
	history := s.chartHistory(r)
	if len(history) == 0 {
		httputil.NotFound(w, "no frames recorded yet")
		return
	}
	wt, err := offsetPlot(history)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		monitoring.Logf("failed to write offset plot: %v", err)
	}
}

func offsetPlot(history []playspace.FrameReport) (io.WriterTo, error) {
	p := plot.New()
	p.Title.Text = "Playspace offset"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "offset (m)"
	p.Add(plotter.NewGrid())

	for axis, name := range axisNames {
		pts := make(plotter.XYs, len(history))
		for i, rep := range history {
			pts[i] = plotter.XY{X: float64(rep.Frame), Y: rep.Offset[axis]}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", name, err)
		}
		l.Color = axisColors[axis]
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(name, l)
	}
	return p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
}
