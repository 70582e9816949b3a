// Package api serves the mover's live state over HTTP: a JSON status and
// frame history under /api/, and charts and frame statistics on the debug
// page.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/playspace-mover/internal/httputil"
	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/playspace"
	"github.com/banshee-data/playspace-mover/internal/timeutil"
)

// MaxHistoryLimit bounds the limit query parameter of /api/history.
const MaxHistoryLimit = 100000

// Server records frame reports in a ring buffer and serves them. It is a
// playspace.FrameObserver; ObserveFrame only copies the report under a lock.
type Server struct {
	// Version is reported by /api/status. Set it before serving.
	Version string

	clock   timeutil.Clock
	started time.Time

	mu         sync.RWMutex
	history    []playspace.FrameReport
	next       int
	full       bool
	frames     uint64
	grabFrames uint64
	last       playspace.FrameReport
	haveLast   bool
}

var _ playspace.FrameObserver = (*Server)(nil)

// NewServer returns a server keeping the last historySize frames.
func NewServer(clock timeutil.Clock, historySize int) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if historySize < 1 {
		historySize = 1
	}
	return &Server{
		clock:   clock,
		started: clock.Now(),
		history: make([]playspace.FrameReport, historySize),
	}
}

// ObserveFrame records r.
func (s *Server) ObserveFrame(r playspace.FrameReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[s.next] = r
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
	s.frames++
	if r.Grabbing() {
		s.grabFrames++
	}
	s.last, s.haveLast = r, true
}

// History returns up to limit of the most recent reports, oldest first. A
// limit of zero or less returns everything retained.
func (s *Server) History(limit int) []playspace.FrameReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.history)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]playspace.FrameReport, 0, limit)
	start := s.next - limit
	for i := 0; i < limit; i++ {
		idx := (start + i + len(s.history)) % len(s.history)
		out = append(out, s.history[idx])
	}
	return out
}

// Status is the body of /api/status.
type Status struct {
	Version        string     `json:"version"`
	Uptime         string     `json:"uptime"`
	Frames         uint64     `json:"frames"`
	GrabFrames     uint64     `json:"grab_frames"`
	LastFrame      uint32     `json:"last_frame"`
	LastFrameTime  time.Time  `json:"last_frame_time"`
	LeftGrabbing   bool       `json:"left_grabbing"`
	RightGrabbing  bool       `json:"right_grabbing"`
	Offset         mgl64.Vec3 `json:"offset"`
	Devices        int        `json:"devices"`
	VirtualDevices int        `json:"virtual_devices"`
}

// Status summarizes what has been observed so far.
func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Version:    s.Version,
		Uptime:     s.clock.Since(s.started).Round(time.Second).String(),
		Frames:     s.frames,
		GrabFrames: s.grabFrames,
	}
	if s.haveLast {
		st.LastFrame = s.last.Frame
		st.LastFrameTime = s.last.Time
		st.LeftGrabbing = s.last.LeftGrabbing
		st.RightGrabbing = s.last.RightGrabbing
		st.Offset = s.last.Offset
		st.Devices = s.last.Devices
		st.VirtualDevices = s.last.VirtualDevices
	}
	return st
}

// ServeMux returns a mux with the /api/ routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/history", s.listHistory)
	return mux
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.Status())
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := httputil.QueryInt(r, "limit", 0, 0, MaxHistoryLimit)
	httputil.WriteJSONOK(w, s.History(limit))
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("[%s] %s %s %vms",
			strconv.Itoa(lrw.statusCode), r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
