package main

import (
	"context"
	"fmt"
	"log/slog"

	"dailycast/internal/config"
	"dailycast/internal/daemon"
	"dailycast/internal/fetch"
	"dailycast/internal/logging"
	"dailycast/internal/notifications"
	"dailycast/internal/queue"
	"dailycast/internal/runner"
	"dailycast/internal/scheduler"
	"dailycast/internal/youtube"
)

// buildDaemon wires the store, pipeline, and scheduler together.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	fetcher := fetch.NewFetcher(cfg)
	uploader := youtube.NewUploader(cfg)

	run, err := runner.New(cfg, store, fetcher, uploader, notifier, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	// The stored publish time wins over the config file; the daemon may
	// have changed it through the API since the config was written.
	publishTime, err := store.PublishTime(context.Background())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("read publish time: %w", err)
	}

	sched, err := scheduler.New(publishTime, run.Location(), logger, func(ctx context.Context) {
		if err := run.RunDaily(ctx); err != nil {
			logger.Error("daily run failed", logging.Error(err))
		}
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	d, err := daemon.New(cfg, store, run, sched, notifier, youtube.NewClient(cfg), logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}
