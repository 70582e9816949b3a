package playspace

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/playspace-mover/internal/monitoring"
	"github.com/banshee-data/playspace-mover/internal/timeutil"
	"github.com/banshee-data/playspace-mover/internal/vr"
)

// Session holds collaborators that passed startup.
type Session struct {
	Runtime   vr.Runtime
	Injector  vr.Injector
	Chaperone vr.Matrix34
}

// WaitFor calls try until it succeeds, waiting interval between attempts.
// Every error is treated as transient; only ctx ends the wait early.
func WaitFor(ctx context.Context, clock timeutil.Clock, interval time.Duration, what string, try func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := try()
		if err == nil {
			if attempt > 0 {
				monitoring.Logf("%s ready after %d attempts", what, attempt+1)
			}
			return nil
		}
		if lastErr == nil || err.Error() != lastErr.Error() {
			monitoring.Logf("waiting for %s: %v", what, err)
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		case <-clock.After(interval):
		}
	}
}

// Startup connects to the tracking runtime, then the injection service, then
// waits for the chaperone to report a good calibration.
func Startup(ctx context.Context, clock timeutil.Clock, backend vr.Backend, interval time.Duration) (Session, error) {
	var s Session

	err := WaitFor(ctx, clock, interval, "tracking runtime", func() error {
		rt, err := backend.InitRuntime()
		s.Runtime = rt
		return err
	})
	if err != nil {
		return Session{}, err
	}

	err = WaitFor(ctx, clock, interval, "injection service", func() error {
		inj, err := backend.ConnectInjector()
		s.Injector = inj
		return err
	})
	if err != nil {
		return Session{}, err
	}

	// A stuck wait here usually means the chaperone bounds need to be set up
	// again in the runtime.
	s.Runtime.RevertWorkingCopy()
	err = WaitFor(ctx, clock, interval, "chaperone calibration", func() error {
		if state := s.Runtime.CalibrationState(); state != vr.CalibrationOK {
			s.Runtime.RevertWorkingCopy()
			return fmt.Errorf("calibration state %d: %w", state, vr.ErrNotReady)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	frame, ok := s.Runtime.WorkingStandingZeroPoseToRawTrackingPose()
	if !ok {
		frame = vr.Identity34()
	}
	s.Chaperone = frame
	monitoring.Logf("tracking runtime, injection service and chaperone ready")
	return s, nil
}
