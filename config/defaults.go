package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "lumen",
			Version:     "dev",
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Fetch: FetchConfig{
			UserAgent:     "lumen/1.0",
			Timeout:       30 * time.Second,
			PollInterval:  500 * time.Millisecond,
			RatePerSecond: 0,
			Burst:         0,
			MaxCacheBody:  8 << 20,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Path:          "./data/cache",
			SyncWrites:    false,
			TTL:           24 * time.Hour,
			MaxEntryBytes: 64 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
			Path:    "/metrics",
		},
		Debug: DebugConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
		},
	}
}
