// Package config provides configuration management for Lumen.
package config

import "time"

// Config is the global configuration for Lumen.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Fetch is the network reactor configuration.
	Fetch FetchConfig `mapstructure:"fetch"`

	// Cache is the media cache configuration.
	Cache CacheConfig `mapstructure:"cache"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Debug is the debug HTTP server configuration.
	Debug DebugConfig `mapstructure:"debug"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the log output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the log destination (stdout, stderr, or a file path).
	Output string `mapstructure:"output"`
}

// FetchConfig holds network reactor settings.
type FetchConfig struct {
	// UserAgent is sent with every outbound request.
	UserAgent string `mapstructure:"user_agent"`

	// Timeout bounds a single transfer end to end.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	// SpoolDir is where response bodies are spooled. Empty means the OS
	// temp dir.
	SpoolDir string `mapstructure:"spool_dir"`

	// PollInterval is how often the reactor re-scans its intake queue.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=0"`

	// RatePerSecond bounds outbound request rate. Zero means unlimited.
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"min=0"`

	// Burst is the rate limiter burst size.
	Burst int `mapstructure:"burst" validate:"min=0"`

	// MaxCacheBody caps the body size mirrored into the media cache.
	MaxCacheBody int64 `mapstructure:"max_cache_body" validate:"min=0"`
}

// CacheConfig holds media cache settings.
type CacheConfig struct {
	// Enabled turns the read-through cache on.
	Enabled bool `mapstructure:"enabled"`

	// Path is the on-disk cache directory.
	Path string `mapstructure:"path"`

	// SyncWrites forces synchronous writes.
	SyncWrites bool `mapstructure:"sync_writes"`

	// TTL bounds how long a cached body stays valid.
	TTL time.Duration `mapstructure:"ttl" validate:"min=0"`

	// MaxEntryBytes caps the size of a single cached body.
	MaxEntryBytes int64 `mapstructure:"max_entry_bytes" validate:"min=0"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled turns metrics collection on.
	Enabled bool `mapstructure:"enabled"`

	// Port is the standalone metrics port, used when the debug server is
	// disabled.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Path is the scrape endpoint path.
	Path string `mapstructure:"path"`
}

// DebugConfig holds debug HTTP server settings.
type DebugConfig struct {
	// Enabled turns the debug server on.
	Enabled bool `mapstructure:"enabled"`

	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the debug server port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}
