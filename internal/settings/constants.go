package settings

import "time"

// Runtime setting keys stored in the settings table.
const (
	// KeyBatchIntervalMinutes controls how often the scheduled batch runs.
	KeyBatchIntervalMinutes = "batch.interval_minutes"
	// KeyBatchConcurrency bounds the per-org evaluation worker pool. The bound
	// protects the backing store's connection limit, not correctness.
	KeyBatchConcurrency = "batch.concurrency"
)

// Defaults applied when a key is unset or malformed.
const (
	// DefaultBatchInterval is the scheduled batch cadence (daily).
	DefaultBatchInterval = 24 * time.Hour
	// DefaultBatchConcurrency is the evaluation worker pool size.
	DefaultBatchConcurrency = 4
	// MaxBatchConcurrency caps admin-configured worker pools.
	MaxBatchConcurrency = 32
)
