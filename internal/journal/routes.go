package journal

import (
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/playspace-mover/internal/httputil"
)

// DefaultSessionsLimit is how many sessions /api/sessions returns by default.
const DefaultSessionsLimit = 50

// SessionView is the JSON form of a session.
type SessionView struct {
	Session
	Hands       string     `json:"hands"`
	Translation [3]float64 `json:"translation"`
	DurationMs  float64    `json:"duration_ms"`
}

func viewOf(s Session) SessionView {
	return SessionView{
		Session:     s,
		Hands:       s.Hands(),
		Translation: s.Translation(),
		DurationMs:  float64(s.EndedAt.Sub(s.StartedAt).Nanoseconds()) / 1e6,
	}
}

// HandleSessions serves recent sessions as JSON.
func (j *Journal) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := httputil.QueryInt(r, "limit", DefaultSessionsLimit, 1, 1000)
	sessions, err := j.RecentSessions(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = viewOf(s)
	}
	httputil.WriteJSONOK(w, views)
}

// AttachRoutes registers /api/sessions on mux.
func (j *Journal) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", j.HandleSessions)
}

// AttachAdminRoutes mounts a tailsql console over the journal on the debug
// page of mux.
func (j *Journal) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+j.path, j.db, &tailsql.DBOptions{
		Label: "Grab journal",
	})
	debug.Handle("tailsql/", "SQL console over the grab journal", tsql.NewMux())
	debug.HandleFunc("sessions", "Recent grab sessions (JSON)", j.HandleSessions)
	return nil
}
