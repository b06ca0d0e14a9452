package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validatePublish() error {
	if err := ValidateClock(c.Publish.Time); err != nil {
		return fmt.Errorf("publish.time: %w", err)
	}
	if _, err := time.LoadLocation(c.Publish.Timezone); err != nil {
		return fmt.Errorf("publish.timezone %q: %w", c.Publish.Timezone, err)
	}
	switch c.Publish.Privacy {
	case "public", "unlisted", "private":
	default:
		return fmt.Errorf("publish.privacy must be public, unlisted, or private, got %q", c.Publish.Privacy)
	}
	if len(c.Publish.QualityTiers) == 0 {
		return errors.New("publish.quality_tiers must include at least one tier")
	}
	for i, tier := range c.Publish.QualityTiers {
		if tier <= 0 {
			return fmt.Errorf("publish.quality_tiers[%d] must be positive", i)
		}
		if i > 0 && tier >= c.Publish.QualityTiers[i-1] {
			return errors.New("publish.quality_tiers must be strictly descending")
		}
	}
	if c.Publish.MinDurationSeconds < 0 {
		return errors.New("publish.min_duration_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.run_timeout_minutes":      c.Workflow.RunTimeoutMinutes,
		"workflow.claim_timeout_minutes":    c.Workflow.ClaimTimeoutMinutes,
		"workflow.reclaim_interval_minutes": c.Workflow.ReclaimIntervalMinutes,
		"youtube.request_timeout":           c.YouTube.RequestTimeout,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// ValidateClock checks an HH:MM wall-clock value (24h).
func ValidateClock(value string) error {
	_, _, err := ParseClock(value)
	return err
}

// ParseClock parses an HH:MM wall-clock value into hour and minute.
func ParseClock(value string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour out of range in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute out of range in %q", value)
	}
	return hour, minute, nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
