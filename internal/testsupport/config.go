package testsupport

import (
	"path/filepath"
	"testing"

	"dailycast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.YouTube.APIKey = "test"
	cfg.YouTube.TokenPath = filepath.Join(base, "token.json")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithPublishTime overrides the daily wall-clock time on the test config.
func WithPublishTime(value string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Publish.Time = value
	}
}

// WithQualityTiers overrides the automatic quality ladder on the test config.
func WithQualityTiers(tiers ...int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Publish.QualityTiers = tiers
	}
}
