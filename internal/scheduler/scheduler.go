// Package scheduler fires the daily publish trigger at a configured
// wall-clock time in a fixed timezone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dailycast/internal/config"
	"dailycast/internal/logging"
)

var (
	// ErrNotStarted is returned for operations that need a running scheduler.
	ErrNotStarted = errors.New("scheduler is not started")
	// ErrInvalidTime is returned for malformed HH:MM trigger times.
	ErrInvalidTime = errors.New("invalid trigger time")
)

// Scheduler owns a single timer goroutine. Reschedule replaces the
// pending trigger instead of adding another, so changing the publish
// time can never stack duplicate firings.
type Scheduler struct {
	location *time.Location
	logger   *slog.Logger
	fire     func(ctx context.Context)

	mu      sync.Mutex
	hour    int
	minute  int
	next    time.Time
	reload  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	firings sync.WaitGroup
	started bool
}

// New builds a scheduler that calls fire at each daily trigger.
func New(clock string, location *time.Location, logger *slog.Logger, fire func(ctx context.Context)) (*Scheduler, error) {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		location: location,
		logger:   logger,
		fire:     fire,
		hour:     hour,
		minute:   minute,
		reload:   make(chan struct{}, 1),
	}, nil
}

// Start launches the timer loop. It returns immediately; Stop (or
// cancelling ctx) shuts the loop down.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.ctx = loopCtx
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	go s.loop(loopCtx)
}

// Stop halts the timer loop and waits for it, and for any in-flight
// firings, to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.started = false
	s.mu.Unlock()

	cancel()
	<-done
	s.firings.Wait()
}

// FireOnce schedules a one-shot trigger after delay. The handler runs on
// its own goroutine with the scheduler's context; stopping the
// scheduler cancels pending and in-flight one-shot triggers.
func (s *Scheduler) FireOnce(delay time.Duration, handler func(ctx context.Context)) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	ctx := s.ctx
	s.firings.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.firings.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			handler(ctx)
		}
	}()
	return nil
}

// Reschedule moves the daily trigger to a new HH:MM wall-clock time.
// The pending timer is replaced, never duplicated.
func (s *Scheduler) Reschedule(clock string) error {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	s.mu.Lock()
	s.hour = hour
	s.minute = minute
	s.mu.Unlock()

	select {
	case s.reload <- struct{}{}:
	default:
	}
	s.logger.Info("daily trigger rescheduled", logging.String("time", clock))
	return nil
}

// NextFire reports when the next daily trigger will go off.
func (s *Scheduler) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		s.mu.Lock()
		next := NextAfter(time.Now().In(s.location), s.hour, s.minute)
		s.next = next
		s.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		s.logger.Info("daily trigger armed", logging.String("next_fire", next.Format(time.RFC3339)))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.reload:
			// New publish time: drop the pending timer and re-arm.
			timer.Stop()
		case <-timer.C:
			s.dispatch(ctx)
		}
	}
}

// dispatch runs the daily fire on its own goroutine. The timer loop
// stays free to re-arm the next trigger and to honor Reschedule while
// a run is still going; Stop waits for the run through firings.
func (s *Scheduler) dispatch(ctx context.Context) {
	s.firings.Add(1)
	go func() {
		defer s.firings.Done()
		s.fire(ctx)
	}()
}

// NextAfter computes the next daily occurrence of hour:minute strictly
// after now, in now's location.
func NextAfter(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
