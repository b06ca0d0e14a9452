package scheduler

import (
	"context"
	"testing"
	"time"

	"dailycast/internal/logging"
)

// A run in flight must not hold the timer goroutine hostage: the next
// trigger re-arms and Reschedule takes effect while the run is still
// going, and Stop waits for the run to finish.
func TestDispatchRunsFireOffTimerGoroutine(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	sched, err := New("12:00", time.UTC, logging.NewNop(), func(context.Context) {
		close(started)
		<-block
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sched.Start(context.Background())

	sched.dispatch(sched.ctx)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatched run never started")
	}

	if err := sched.Reschedule("13:00"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sched.NextFire().Hour() != 13 {
		if time.Now().After(deadline) {
			t.Fatalf("trigger never re-armed at 13:00 during a run, next fire %v", sched.NextFire())
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned after the run finished")
	}
}
