// Package history keeps the bounded summary history and the content-hash
// summary cache, and persists both to a durable key-value store.
package history

import "time"

const (
	// DefaultMaxHistoryItems is the durable history cap.
	DefaultMaxHistoryItems = 50

	// DefaultMaxCacheSize is the number of cached summaries kept.
	DefaultMaxCacheSize = 100

	// UIHistoryLimit is the number of items shown to a panel.
	UIHistoryLimit = 20

	// DefaultCleanupMaxAge is the age after which items are dropped.
	DefaultCleanupMaxAge = 30 * 24 * time.Hour

	// DefaultCleanupInterval is the period of the background cleanup.
	DefaultCleanupInterval = time.Hour
)

// Config holds the limits of the history manager.
type Config struct {
	// MaxHistoryItems bounds the number of stored items.
	MaxHistoryItems int

	// MaxCacheSize bounds the number of cached summaries.
	MaxCacheSize int

	// CleanupMaxAge is the age passed to Cleanup by RunCleanupLoop.
	CleanupMaxAge time.Duration

	// CleanupInterval is how often RunCleanupLoop runs.
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxHistoryItems: DefaultMaxHistoryItems,
		MaxCacheSize:    DefaultMaxCacheSize,
		CleanupMaxAge:   DefaultCleanupMaxAge,
		CleanupInterval: DefaultCleanupInterval,
	}
}
