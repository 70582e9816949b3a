package timeutil

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_After(t *testing.T) {
	clock := RealClock{}
	select {
	case <-clock.After(5 * time.Millisecond):
	case <-time.After(time.Second):
		t.Error("After did not fire")
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Sleep(10 * time.Millisecond)
	clock.Sleep(0)
	clock.Sleep(5 * time.Millisecond)

	if got := clock.Since(start); got != 15*time.Millisecond {
		t.Errorf("Since(start) = %v, want 15ms", got)
	}
	want := []time.Duration{10 * time.Millisecond, 0, 5 * time.Millisecond}
	if diff := cmp.Diff(want, clock.Sleeps()); diff != "" {
		t.Errorf("Sleeps() mismatch (-want +got):\n%s", diff)
	}
}

func TestMockClock_AfterFiresImmediately(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	select {
	case got := <-clock.After(time.Second):
		if !got.Equal(start.Add(time.Second)) {
			t.Errorf("After delivered %v, want %v", got, start.Add(time.Second))
		}
	default:
		t.Fatal("After channel was empty")
	}
	if n := len(clock.Afters()); n != 1 {
		t.Errorf("Afters() len = %d, want 1", n)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	clock := NewMockClock(time.Time{})
	target := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(target)
	clock.Advance(time.Minute)
	if got := clock.Now(); !got.Equal(target.Add(time.Minute)) {
		t.Errorf("Now() = %v, want %v", got, target.Add(time.Minute))
	}
}

func TestRealClockImplementsClock(t *testing.T) {
	var _ Clock = RealClock{}
	var _ Clock = (*MockClock)(nil)
}
