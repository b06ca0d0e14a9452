package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/notifications"
	"dailycast/internal/queue"
	"dailycast/internal/youtube"
)

// Fetcher acquires source video material.
type Fetcher interface {
	Probe(ctx context.Context, sourceURL string) ([]int, error)
	Fetch(ctx context.Context, itemID int64, sourceURL string, height int, progress func(line string)) (string, error)
	Cleanup(itemID int64) error
}

// Publisher pushes a finished file to the destination platform.
type Publisher interface {
	Upload(ctx context.Context, req youtube.UploadRequest) (string, error)
	SetThumbnail(ctx context.Context, videoID, imagePath string) error
}

// Runner executes publish runs against the queue.
type Runner struct {
	store     *queue.Store
	fetcher   Fetcher
	publisher Publisher
	notifier  notifications.Service
	cfg       *config.Config
	logger    *slog.Logger
	location  *time.Location
	pending   *pendingRequests
}

// New builds a runner. The publish timezone must be loadable; config
// validation guarantees that for configs that passed Load.
func New(cfg *config.Config, store *queue.Store, fetcher Fetcher, publisher Publisher, notifier notifications.Service, logger *slog.Logger) (*Runner, error) {
	location, err := time.LoadLocation(cfg.Publish.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load publish timezone: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:     store,
		fetcher:   fetcher,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		location:  location,
		pending:   newPendingRequests(),
	}, nil
}

// Today returns the current calendar day in the publish timezone.
func (r *Runner) Today() string {
	return time.Now().In(r.location).Format("2006-01-02")
}

// Location returns the publish timezone.
func (r *Runner) Location() *time.Location {
	return r.location
}

// RunDaily performs the scheduled once-per-day run. Calling it again on
// the same day is a no-op, which makes duplicate trigger firings and
// restarts safe.
func (r *Runner) RunDaily(ctx context.Context) error {
	now := time.Now().In(r.location)
	today := now.Format("2006-01-02")

	// The trigger report goes out before the gate, so the operator
	// hears from every firing, gated or not.
	r.notify(func() error { return r.notifier.NotifyDailyTrigger(ctx, now.Format("15:04")) })

	last, err := r.store.LastPublishDay(ctx)
	if err != nil {
		return fmt.Errorf("read last publish day: %w", err)
	}
	if last == today {
		r.logger.Info("daily run already happened", logging.String("day", today))
		r.notify(func() error { return r.notifier.NotifyAlreadyRan(ctx, today) })
		return nil
	}
	return r.run(ctx, 0, true)
}

// RunOnce performs a manual run outside the daily cadence: it neither
// checks nor sets the day gate. A positive itemID targets that item
// instead of the queue head.
func (r *Runner) RunOnce(ctx context.Context, itemID int64) error {
	return r.run(ctx, itemID, false)
}

func (r *Runner) run(ctx context.Context, itemID int64, countsAsToday bool) error {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Workflow.RunTimeoutMinutes)*time.Minute)
	defer cancel()

	var (
		item *queue.Item
		err  error
	)
	if itemID > 0 {
		item, err = r.store.Claim(runCtx, itemID)
	} else {
		item, err = r.store.ClaimNext(runCtx)
	}
	if err != nil {
		return err
	}
	if item == nil {
		day := r.Today()
		if countsAsToday {
			r.consumeDay(ctx, day)
		}
		r.logger.Info("queue is empty, nothing to publish", logging.String("day", day))
		r.notify(func() error { return r.notifier.NotifyQueueEmpty(ctx, day) })
		return nil
	}

	return r.processItem(runCtx, item, countsAsToday)
}

// SubmitChoice records the operator's quality pick for a parked item.
// The choice is applied on the next run that claims the item.
func (r *Runner) SubmitChoice(itemID int64, height int) error {
	if err := r.pending.answer(itemID, height); err != nil {
		return err
	}
	r.logger.Info("quality choice recorded",
		logging.Int64(logging.FieldItemID, itemID),
		logging.Int("height", height),
	)
	return nil
}

// PendingChoices lists the quality questions still awaiting an answer.
func (r *Runner) PendingChoices() []PendingRequest {
	return r.pending.snapshot()
}

// consumeDay marks the daily gate. Failures are logged but never abort
// the surrounding run outcome.
func (r *Runner) consumeDay(ctx context.Context, day string) {
	if _, err := r.store.MarkDayPublished(context.WithoutCancel(ctx), day); err != nil {
		r.logger.Error("failed to mark day published", logging.String("day", day), logging.Error(err))
	}
}

// notify runs a notification call and logs failures; notifications are
// best effort and never fail a run.
func (r *Runner) notify(fn func() error) {
	if err := fn(); err != nil {
		r.logger.Warn("notification failed", logging.Error(err))
	}
}
