package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"dailycast/internal/logging"
	"dailycast/internal/scheduler"
)

func TestNextAfterSameDay(t *testing.T) {
	loc := time.FixedZone("TST", 3*3600)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, loc)

	next := scheduler.NextAfter(now, 17, 0)
	want := time.Date(2026, 8, 29, 17, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextAfterRollsToTomorrow(t *testing.T) {
	loc := time.FixedZone("TST", 3*3600)
	now := time.Date(2026, 8, 29, 17, 0, 0, 0, loc)

	// Exactly at the trigger time counts as passed.
	next := scheduler.NextAfter(now, 17, 0)
	want := time.Date(2026, 8, 30, 17, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}

	next = scheduler.NextAfter(now.Add(time.Minute), 17, 0)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNewRejectsMalformedClock(t *testing.T) {
	for _, clock := range []string{"", "25:00", "9:00", "17:60", "five"} {
		_, err := scheduler.New(clock, time.UTC, logging.NewNop(), func(context.Context) {})
		if !errors.Is(err, scheduler.ErrInvalidTime) {
			t.Fatalf("expected ErrInvalidTime for %q, got %v", clock, err)
		}
	}
}

func TestFireOnceRunsHandler(t *testing.T) {
	sched, err := scheduler.New("12:00", time.UTC, logging.NewNop(), func(context.Context) {})
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	if err := sched.FireOnce(0, func(context.Context) {}); !errors.Is(err, scheduler.ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted before Start, got %v", err)
	}

	sched.Start(context.Background())
	defer sched.Stop()

	fired := make(chan struct{})
	if err := sched.FireOnce(time.Millisecond, func(context.Context) { close(fired) }); err != nil {
		t.Fatalf("FireOnce: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot trigger never fired")
	}
}

func TestStopCancelsPendingOneShot(t *testing.T) {
	sched, err := scheduler.New("12:00", time.UTC, logging.NewNop(), func(context.Context) {})
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	sched.Start(context.Background())

	var fired atomic.Int32
	if err := sched.FireOnce(time.Hour, func(context.Context) { fired.Add(1) }); err != nil {
		t.Fatalf("FireOnce: %v", err)
	}
	sched.Stop()
	if fired.Load() != 0 {
		t.Fatal("cancelled one-shot trigger must not fire")
	}
}

func TestRescheduleReplacesPendingTrigger(t *testing.T) {
	// Clocks are derived from now so the triggers stay hours away no
	// matter when the test runs.
	clockAt := func(offset time.Duration) string {
		at := time.Now().UTC().Add(offset)
		return fmt.Sprintf("%02d:%02d", at.Hour(), at.Minute())
	}

	var fired atomic.Int32
	sched, err := scheduler.New(clockAt(4*time.Hour), time.UTC, logging.NewNop(), func(context.Context) {
		fired.Add(1)
	})
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	waitForArm(t, sched)

	if err := sched.Reschedule(clockAt(6 * time.Hour)); err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	target := clockAt(8 * time.Hour)
	if err := sched.Reschedule(target); err != nil {
		t.Fatalf("second Reschedule failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var got string
	for time.Now().Before(deadline) {
		next := sched.NextFire()
		got = fmt.Sprintf("%02d:%02d", next.Hour(), next.Minute())
		if got == target {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got != target {
		t.Fatalf("expected trigger moved to %s, got %s", target, got)
	}
	// Neither the old nor the new trigger is due yet; rescheduling must
	// not have fired anything.
	if fired.Load() != 0 {
		t.Fatalf("expected no firings, got %d", fired.Load())
	}

	if err := sched.Reschedule("99:99"); err == nil {
		t.Fatal("expected error for invalid clock")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sched, err := scheduler.New("12:00", time.UTC, logging.NewNop(), func(context.Context) {})
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	sched.Start(context.Background())
	sched.Stop()
	sched.Stop()
}

func waitForArm(t *testing.T, sched *scheduler.Scheduler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !sched.NextFire().IsZero() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scheduler never armed")
}
