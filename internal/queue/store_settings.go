package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dailycast/internal/config"
)

// Settings keys shared by the scheduler, runner, and CLI.
const (
	SettingPublishTime    = "publish_time"
	SettingPrivacy        = "privacy_default"
	SettingLastPublishDay = "last_publish_day"
)

func (s *Store) seedSettings(ctx context.Context, cfg *config.Config) error {
	defaults := map[string]string{
		SettingPublishTime: cfg.Publish.Time,
		SettingPrivacy:     cfg.Publish.Privacy,
	}
	for key, value := range defaults {
		if err := s.execWithoutResultRetry(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value,
		); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return nil
}

// GetSetting reads a settings value. The second return reports whether
// the key exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a settings value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// PublishTime returns the configured daily wall-clock time (HH:MM).
func (s *Store) PublishTime(ctx context.Context) (string, error) {
	value, ok, err := s.GetSetting(ctx, SettingPublishTime)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("publish time is not set")
	}
	return value, nil
}

// SetPublishTime stores a new daily wall-clock time. The value must
// already be validated.
func (s *Store) SetPublishTime(ctx context.Context, value string) error {
	if err := config.ValidateClock(value); err != nil {
		return err
	}
	return s.SetSetting(ctx, SettingPublishTime, value)
}

// LastPublishDay returns the last day (YYYY-MM-DD in the publish
// timezone) a run consumed, or empty when no run has happened yet.
func (s *Store) LastPublishDay(ctx context.Context) (string, error) {
	value, _, err := s.GetSetting(ctx, SettingLastPublishDay)
	return value, err
}

// MarkDayPublished claims today's run. It returns false when the day was
// already consumed. The upsert's conditional update makes the gate
// atomic: exactly one caller per day observes true.
func (s *Store) MarkDayPublished(ctx context.Context, day string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value
         WHERE settings.value <> excluded.value`,
		SettingLastPublishDay, day,
	)
	if err != nil {
		return false, fmt.Errorf("mark day published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
