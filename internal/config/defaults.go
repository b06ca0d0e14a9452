package config

// Default returns the built-in configuration used before any file or
// environment overrides are applied.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    "~/.local/share/dailycast",
			LogDir:     "~/.local/share/dailycast/logs",
			StagingDir: "~/.cache/dailycast/staging",
			APIBind:    "127.0.0.1:7945",
		},
		YouTube: YouTube{
			TokenPath:      "~/.config/dailycast/token.json",
			RequestTimeout: 30,
		},
		Publish: Publish{
			Time:               "17:00",
			Timezone:           "Asia/Tehran",
			Privacy:            "public",
			QualityTiers:       []int{2160, 1080},
			MinDurationSeconds: 180,
		},
		Workflow: Workflow{
			RunTimeoutMinutes:      180,
			ClaimTimeoutMinutes:    240,
			ReclaimIntervalMinutes: 120,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
