package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dailycast/internal/fetch"
	"dailycast/internal/logging"
	"dailycast/internal/queue"
	"dailycast/internal/services"
	"dailycast/internal/youtube"
)

// progressLogInterval rate-limits download progress logging.
const progressLogInterval = 5 * time.Second

// processItem runs the pipeline for one claimed item. On every failure
// path the claim is released and staging space is removed; the panic
// handler guarantees that even for unexpected errors.
func (r *Runner) processItem(ctx context.Context, item *queue.Item, countsAsToday bool) (err error) {
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	log := logging.WithContext(ctx, r.logger)

	defer func() {
		if cleanupErr := r.fetcher.Cleanup(item.ID); cleanupErr != nil {
			log.Warn("failed to remove staging space", logging.Error(cleanupErr))
		}
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
			log.Error("pipeline panicked", logging.Any("panic", rec))
			r.releaseItem(ctx, log, item.ID)
			r.notify(func() error {
				return r.notifier.NotifyError(context.WithoutCancel(ctx), err, fmt.Sprintf("item %d", item.ID))
			})
		}
	}()

	if item.SourceURL == "" {
		// Nothing to retry automatically; a human has to fix the row.
		failure := fmt.Errorf("%w: item %d has no source url", services.ErrValidation, item.ID)
		log.Error("claimed item has no source url")
		r.releaseItem(ctx, log, item.ID)
		r.notify(func() error { return r.notifier.NotifyError(ctx, failure, fmt.Sprintf("item %d", item.ID)) })
		if countsAsToday {
			r.consumeDay(ctx, r.Today())
		}
		return nil
	}

	log.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("title", item.Title),
		logging.String("source_url", item.SourceURL),
	)
	r.notify(func() error { return r.notifier.NotifyRunStarted(ctx, item.Title) })

	height := 0
	if req, ok := r.pending.take(item.ID); ok && req.Chosen > 0 {
		height = req.Chosen
		log.Info("using operator quality choice", logging.Int("height", height))
	}

	if height == 0 {
		available, probeErr := r.fetcher.Probe(ctx, item.SourceURL)
		if probeErr != nil {
			return r.failItem(ctx, log, item, "probe", probeErr)
		}
		var tierErr error
		height, tierErr = fetch.ResolveTier(available, r.cfg.Publish.QualityTiers)
		if services.IsEscalation(tierErr) {
			return r.escalate(ctx, log, item, available, countsAsToday)
		}
		if tierErr != nil {
			return r.failItem(ctx, log, item, "resolve quality", tierErr)
		}
	}

	filePath, fetchErr := r.fetchWithProgress(ctx, log, item, height)
	if fetchErr != nil {
		return r.failItem(ctx, log, item, "fetch", fetchErr)
	}

	if readyErr := r.store.MarkReady(ctx, item.ID); readyErr != nil {
		return r.failItem(ctx, log, item, "mark ready", readyErr)
	}

	remoteID, publishErr := r.publish(ctx, log, item, filePath)
	if publishErr != nil {
		return r.failItem(ctx, log, item, "publish", publishErr)
	}

	if finalizeErr := r.store.FinalizeSuccess(context.WithoutCancel(ctx), item.ID, remoteID); finalizeErr != nil {
		// The upload went out but the commit did not; leave the row for
		// the reclaim sweep rather than uploading twice.
		log.Error("failed to finalize published item", logging.Error(finalizeErr))
		return finalizeErr
	}
	if countsAsToday {
		r.consumeDay(ctx, r.Today())
	}

	log.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("remote_id", remoteID),
	)
	r.notify(func() error { return r.notifier.NotifyPublished(ctx, item.Title, remoteID) })
	return nil
}

// escalate parks an item awaiting a human quality choice. Per the daily
// cadence, an escalation still consumes the day: the queue holds daily
// content and a parked item should not cause a second automatic attempt
// the same day.
func (r *Runner) escalate(ctx context.Context, log *slog.Logger, item *queue.Item, available []int, countsAsToday bool) error {
	r.pending.create(item.ID, item.Title, available)
	log.Info("quality escalation, awaiting operator choice",
		logging.String(logging.FieldEventType, "quality_escalation"),
		logging.Any("available", available),
	)
	r.notify(func() error {
		return r.notifier.NotifyQualityChoiceNeeded(ctx, item.ID, item.Title, available)
	})
	r.releaseItem(ctx, log, item.ID)
	if countsAsToday {
		r.consumeDay(ctx, r.Today())
	}
	return nil
}

func (r *Runner) fetchWithProgress(ctx context.Context, log *slog.Logger, item *queue.Item, height int) (string, error) {
	// Progress flows through a channel to a single consumer, keeping
	// the fetch callback free of logging and rate-limit concerns.
	progressCh := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var last time.Time
		for line := range progressCh {
			if time.Since(last) < progressLogInterval {
				continue
			}
			last = time.Now()
			log.Info("download progress", logging.String("detail", line))
		}
	}()

	push := func(line string) {
		select {
		case progressCh <- line:
		default:
		}
	}

	log.Info("fetching source video", logging.Int("height", height))
	filePath, err := r.fetcher.Fetch(ctx, item.ID, item.SourceURL, height, push)
	close(progressCh)
	<-done
	return filePath, err
}

func (r *Runner) publish(ctx context.Context, log *slog.Logger, item *queue.Item, filePath string) (string, error) {
	privacy := r.cfg.Publish.Privacy
	if stored, ok, err := r.store.GetSetting(ctx, queue.SettingPrivacy); err == nil && ok && stored != "" {
		privacy = stored
	}

	log.Info("uploading video", logging.String("file", filePath), logging.String("privacy", privacy))
	remoteID, err := r.publisher.Upload(ctx, youtube.UploadRequest{
		FilePath:    filePath,
		Title:       item.Title,
		Description: item.Description,
		Privacy:     privacy,
	})
	if err != nil {
		return "", err
	}

	if item.ThumbMode == queue.ThumbCustom && item.ThumbRef != "" {
		if thumbErr := r.publisher.SetThumbnail(ctx, remoteID, item.ThumbRef); thumbErr != nil {
			// The video is already up; a missing thumbnail is not worth
			// rolling back the publish.
			log.Warn("failed to set custom thumbnail", logging.Error(thumbErr))
		}
	}
	return remoteID, nil
}

// failItem handles every recoverable failure the same way: release the
// claim so a later run retries, tell the operator, surface the error.
func (r *Runner) failItem(ctx context.Context, log *slog.Logger, item *queue.Item, stage string, cause error) error {
	wrapped := services.Wrap(services.ErrTransient, stage, "process item", "publish run failed", cause)
	log.Error("run failed",
		logging.String(logging.FieldEventType, "run_failed"),
		logging.String(logging.FieldStage, stage),
		logging.Error(cause),
	)
	r.releaseItem(ctx, log, item.ID)
	r.notify(func() error {
		return r.notifier.NotifyError(context.WithoutCancel(ctx), cause, fmt.Sprintf("item %d (%s)", item.ID, stage))
	})
	return wrapped
}

func (r *Runner) releaseItem(ctx context.Context, log *slog.Logger, itemID int64) {
	if err := r.store.Release(context.WithoutCancel(ctx), itemID); err != nil {
		log.Error("failed to release claim", logging.Error(err))
	}
}
