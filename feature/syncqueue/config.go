package syncqueue

import "time"

// Config holds the dispatcher tuning knobs.
type Config struct {
	// Enabled toggles the background dispatcher. Manual drains through the
	// API work either way.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// BatchSize bounds how many items one drain picks up.
	BatchSize int `mapstructure:"batch_size" default:"10"`
	// MaxRetries is the attempt ceiling before an item fails terminally.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// RetryDelaySeconds is the base backoff delay; attempt n waits
	// base * 2^(n-1).
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" default:"60"`
	// SyncIntervalSeconds is the period between automatic drains.
	SyncIntervalSeconds int `mapstructure:"sync_interval_seconds" default:"300"`
	// BatchPauseMillis is the pause between consecutive items on the same
	// platform, easing rate limits.
	BatchPauseMillis int `mapstructure:"batch_pause_millis" default:"200"`
	// CleanupRetentionDays is the default age threshold for Cleanup.
	CleanupRetentionDays int `mapstructure:"cleanup_retention_days" default:"90"`
}

func (c Config) retryDelay() time.Duration {
	if c.RetryDelaySeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c Config) syncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

func (c Config) batchPause() time.Duration {
	return time.Duration(c.BatchPauseMillis) * time.Millisecond
}
