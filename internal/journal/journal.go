// Package journal records grab sessions to SQLite for later inspection. A
// session starts on the first frame on which any hand grabs and ends on the
// first frame on which both hands are idle again. A session still open at
// Close ends on its last grabbing frame. Nothing in the mover reads the
// journal back.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/playspace"
)

// DefaultQueueSize is how many finished sessions may wait for the writer.
const DefaultQueueSize = 64

// Session is one continuous grab.
type Session struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     time.Time  `json:"ended_at"`
	StartFrame  uint32     `json:"start_frame"`
	EndFrame    uint32     `json:"end_frame"`
	Frames      int        `json:"frames"`
	LeftFrames  int        `json:"left_frames"`
	RightFrames int        `json:"right_frames"`
	StartOffset mgl64.Vec3 `json:"start_offset"`
	EndOffset   mgl64.Vec3 `json:"end_offset"`
}

// Translation is how far the session moved the playspace.
func (s Session) Translation() mgl64.Vec3 {
	return s.EndOffset.Sub(s.StartOffset)
}

// Hands names the hands that grabbed during the session.
func (s Session) Hands() string {
	switch {
	case s.LeftFrames > 0 && s.RightFrames > 0:
		return "both"
	case s.LeftFrames > 0:
		return "left"
	case s.RightFrames > 0:
		return "right"
	}
	return "none"
}

type writeRequest struct {
	session *Session
	done    chan struct{}
}

// Journal is a playspace.FrameObserver that turns frame reports into
// sessions and writes them from a background goroutine, so the frame loop
// never waits on disk.
type Journal struct {
	db   *sql.DB
	path string

	// Owned by the frame loop goroutine.
	current    *Session
	lastOffset mgl64.Vec3

	writes  chan writeRequest
	wg      sync.WaitGroup
	dropped atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ playspace.FrameObserver = (*Journal)(nil)

// Open opens or creates the journal at path and applies migrations.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One connection keeps an in-memory database shared between the writer
	// and readers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure journal: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:     db,
		path:   path,
		writes: make(chan writeRequest, DefaultQueueSize),
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// DB exposes the underlying database.
func (j *Journal) DB() *sql.DB { return j.db }

// ObserveFrame advances the session state machine by one frame.
func (j *Journal) ObserveFrame(r playspace.FrameReport) {
	if r.Grabbing() {
		if j.current == nil {
			j.current = &Session{
				ID:          uuid.NewString(),
				StartedAt:   r.Time,
				StartFrame:  r.Frame,
				StartOffset: j.lastOffset,
			}
		}
		s := j.current
		s.EndedAt = r.Time
		s.EndFrame = r.Frame
		s.EndOffset = r.Offset
		s.Frames++
		if r.LeftGrabbing {
			s.LeftFrames++
		}
		if r.RightGrabbing {
			s.RightFrames++
		}
	} else if j.current != nil {
		s := j.current
		s.EndedAt = r.Time
		s.EndFrame = r.Frame
		s.EndOffset = r.Offset
		j.enqueue(writeRequest{session: s})
		j.current = nil
	}
	j.lastOffset = r.Offset
}

func (j *Journal) enqueue(req writeRequest) {
	if j.closed.Load() {
		return
	}
	select {
	case j.writes <- req:
	default:
		n := j.dropped.Add(1)
		monitoring.Logf("journal queue full, dropped session %s (%d dropped)", req.session.ID, n)
	}
}

// Dropped counts sessions lost to a full queue.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

func (j *Journal) writer() {
	defer j.wg.Done()
	for req := range j.writes {
		if req.session != nil {
			if err := j.insert(req.session); err != nil {
				monitoring.Logf("failed to record grab session %s: %v", req.session.ID, err)
			}
		}
		if req.done != nil {
			close(req.done)
		}
	}
}

func (j *Journal) insert(s *Session) error {
	_, err := j.db.Exec(
		`INSERT INTO grab_sessions (
			session_id, started_ns, ended_ns, start_frame, end_frame, frames,
			left_frames, right_frames, start_x, start_y, start_z, end_x, end_y, end_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), s.EndedAt.UnixNano(), s.StartFrame, s.EndFrame, s.Frames,
		s.LeftFrames, s.RightFrames,
		s.StartOffset[0], s.StartOffset[1], s.StartOffset[2],
		s.EndOffset[0], s.EndOffset[1], s.EndOffset[2],
	)
	return err
}

// Flush waits until every session queued so far is written.
func (j *Journal) Flush(ctx context.Context) error {
	if j.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case j.writes <- writeRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecentSessions returns up to limit sessions, newest first.
func (j *Journal) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, started_ns, ended_ns, start_frame, end_frame, frames,
			left_frames, right_frames, start_x, start_y, start_z, end_x, end_y, end_z
		FROM grab_sessions
		ORDER BY started_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		var startedNs, endedNs int64
		if err := rows.Scan(
			&s.ID, &startedNs, &endedNs, &s.StartFrame, &s.EndFrame, &s.Frames,
			&s.LeftFrames, &s.RightFrames,
			&s.StartOffset[0], &s.StartOffset[1], &s.StartOffset[2],
			&s.EndOffset[0], &s.EndOffset[1], &s.EndOffset[2],
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, startedNs).UTC()
		s.EndedAt = time.Unix(0, endedNs).UTC()
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Close records a session still in progress, drains the writer and closes
// the database.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		if j.current != nil {
			j.enqueue(writeRequest{session: j.current})
			j.current = nil
		}
		j.closed.Store(true)
		close(j.writes)
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}
