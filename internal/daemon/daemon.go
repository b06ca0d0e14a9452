package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/notifications"
	"dailycast/internal/queue"
	"dailycast/internal/runner"
	"dailycast/internal/scheduler"
	"dailycast/internal/services"
	"dailycast/internal/youtube"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	runner    *runner.Runner
	scheduler *scheduler.Scheduler
	notifier  notifications.Service
	probe     *youtube.Client

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	api     *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool            `json:"running"`
	QueueDBPath    string          `json:"queue_db_path"`
	LockFilePath   string          `json:"lock_file_path"`
	NextFire       time.Time       `json:"next_fire"`
	LastPublishDay string          `json:"last_publish_day"`
	QueuedItems    int             `json:"queued_items"`
	PendingChoices map[int64][]int `json:"pending_choices,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, r *runner.Runner, sched *scheduler.Scheduler, notifier notifications.Service, probe *youtube.Client, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || r == nil || sched == nil {
		return nil, errors.New("daemon requires config, store, runner, and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		runner:    r,
		scheduler: sched,
		notifier:  notifier,
		probe:     probe,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(d)
	return d, nil
}

// Start acquires the daemon lock and launches the scheduler, the stale
// claim sweep, and the local HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dailycast daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.scheduler.Start(runCtx)

	d.wg.Add(1)
	go d.reclaimLoop(runCtx)

	if err := d.api.Start(runCtx); err != nil {
		cancel()
		d.scheduler.Stop()
		d.wg.Wait()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("dailycast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.Addr()),
	)
	return nil
}

// Stop halts background work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.api.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dailycast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API address, useful when the configured
// port is 0.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// reclaimLoop recovers items stuck in claimed or ready, once at startup
// and then on an interval. A crash mid-run leaves such rows behind;
// returning them to queued keeps the queue from leaking items.
func (d *Daemon) reclaimLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Workflow.ReclaimIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.reclaimStale(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.reclaimStale(ctx)
		}
	}
}

func (d *Daemon) reclaimStale(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(d.cfg.Workflow.ClaimTimeoutMinutes) * time.Minute)
	count, err := d.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		d.logger.Error("stale claim sweep failed", logging.Error(err))
		return
	}
	if count > 0 {
		d.logger.Warn("recovered stale claims", logging.Int64("count", count))
	}
}

// Enqueue validates a link, probes its metadata, and appends it to the
// queue.
func (d *Daemon) Enqueue(ctx context.Context, link string) (*queue.Item, error) {
	videoID, err := youtube.ExtractVideoID(link)
	if err != nil {
		return nil, err
	}

	info, err := d.probe.Lookup(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(info.Title)) < 3 {
		return nil, fmt.Errorf("%w: video title %q is too short", services.ErrValidation, info.Title)
	}
	if info.DurationSeconds <= d.cfg.Publish.MinDurationSeconds {
		return nil, fmt.Errorf("%w: video runs %ds, need more than %ds",
			services.ErrValidation, info.DurationSeconds, d.cfg.Publish.MinDurationSeconds)
	}

	item, err := d.store.Add(ctx, queue.NewItem{
		SourceURL:       strings.TrimSpace(link),
		VideoID:         info.ID,
		Title:           info.Title,
		Description:     info.Description,
		DurationSeconds: info.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("link queued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("video_id", info.ID),
		logging.String("title", info.Title),
	)
	return item, nil
}

// SetPublishTime stores a new daily wall-clock time and rearms the
// pending trigger.
func (d *Daemon) SetPublishTime(ctx context.Context, clock string) error {
	if err := config.ValidateClock(clock); err != nil {
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	if err := d.store.SetPublishTime(ctx, clock); err != nil {
		return err
	}
	return d.scheduler.Reschedule(clock)
}

// RunNow schedules a manual run as a one-shot trigger. A zero itemID
// processes the queue head.
func (d *Daemon) RunNow(itemID int64) {
	err := d.scheduler.FireOnce(0, func(ctx context.Context) {
		if err := d.runner.RunOnce(ctx, itemID); err != nil {
			d.logger.Error("manual run failed", logging.Error(err))
		}
	})
	if err != nil {
		d.logger.Warn("manual run not scheduled", logging.Error(err))
	}
}

// SubmitQuality records an operator quality choice for a parked item.
func (d *Daemon) SubmitQuality(itemID int64, height int) error {
	return d.runner.SubmitChoice(itemID, height)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	lastDay, err := d.store.LastPublishDay(ctx)
	if err != nil {
		return Status{}, err
	}
	queued, err := d.store.ListQueuedIDs(ctx, 0)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		Running:        d.running.Load(),
		QueueDBPath:    d.store.Path(),
		LockFilePath:   d.lockPath,
		NextFire:       d.scheduler.NextFire(),
		LastPublishDay: lastDay,
		QueuedItems:    len(queued),
	}
	if pending := d.runner.PendingChoices(); len(pending) > 0 {
		status.PendingChoices = make(map[int64][]int, len(pending))
		for _, req := range pending {
			status.PendingChoices[req.ItemID] = req.Offered
		}
	}
	return status, nil
}
