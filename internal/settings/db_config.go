package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// dbConfigSnapshot holds the in-memory DB config values.
type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// globalDBConfig stores the latest dbConfigSnapshot atomically.
var globalDBConfig atomic.Value // stores dbConfigSnapshot

// init seeds the global DB config snapshot.
func init() {
	globalDBConfig.Store(dbConfigSnapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v == nil {
			next[key] = nil
			continue
		}
		copied := make([]byte, len(v))
		copy(copied, v)
		next[key] = copied
	}

	globalDBConfig.Store(dbConfigSnapshot{
		updatedAt: updatedAt.UTC(),
		values:    next,
	})
}

// DBConfigUpdatedAt returns the last update timestamp for DB config.
func DBConfigUpdatedAt() time.Time {
	return loadDBConfig().updatedAt
}

// DBConfigValue returns a copy of the raw config value for a key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	cfg := loadDBConfig()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := cfg.values[key]
	if !ok {
		return nil, false
	}
	if val == nil {
		return nil, true
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// BatchInterval returns the scheduled batch cadence, falling back to the
// default when unset or malformed.
func BatchInterval() time.Duration {
	raw, ok := DBConfigValue(KeyBatchIntervalMinutes)
	if !ok || raw == nil {
		return DefaultBatchInterval
	}
	var minutes int
	if errDecode := json.Unmarshal(raw, &minutes); errDecode != nil || minutes <= 0 {
		return DefaultBatchInterval
	}
	return time.Duration(minutes) * time.Minute
}

// BatchConcurrency returns the evaluation worker pool bound, clamped to
// [1, MaxBatchConcurrency].
func BatchConcurrency() int {
	raw, ok := DBConfigValue(KeyBatchConcurrency)
	if !ok || raw == nil {
		return DefaultBatchConcurrency
	}
	var workers int
	if errDecode := json.Unmarshal(raw, &workers); errDecode != nil || workers <= 0 {
		return DefaultBatchConcurrency
	}
	if workers > MaxBatchConcurrency {
		return MaxBatchConcurrency
	}
	return workers
}

// loadDBConfig returns the current snapshot with safe defaults.
func loadDBConfig() dbConfigSnapshot {
	v := globalDBConfig.Load()
	cfg, ok := v.(dbConfigSnapshot)
	if !ok {
		return dbConfigSnapshot{values: map[string]json.RawMessage{}}
	}
	if cfg.values == nil {
		return dbConfigSnapshot{updatedAt: cfg.updatedAt, values: map[string]json.RawMessage{}}
	}
	return cfg
}
