// Package filecache keeps derived JSON artifacts on disk and decides on
// every read whether they are still valid, using only modification times.
//
// An artifact is valid when it exists, is at least as new as every one of
// its dependencies and is younger than the TTL. Nothing is held in memory
// between calls, so validity survives restarts and concurrent writers.
package filecache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"pagetally/internal/metrics"
	"pagetally/internal/timeframe"
)

// Coordinator applies the validity policy.
type Coordinator struct {
	ttl    time.Duration
	clock  timeframe.TimeProvider
	logger *slog.Logger
}

// New returns a Coordinator. A ttl of zero disables the age bound.
func New(ttl time.Duration, clock timeframe.TimeProvider, logger *slog.Logger) *Coordinator {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Coordinator{ttl: ttl, clock: clock, logger: logger}
}

// GetOrBuild returns the artifact at path when it is valid, and otherwise
// calls build, stores its result at path and returns it. The boolean
// reports a cache hit. Failing to store the result is logged and ignored.
func GetOrBuild[T any](c *Coordinator, path string, deps []string, build func() (T, error)) (T, bool, error) {
	depTime := DependencyTime(deps)

	if c.valid(path, depTime) {
		var cached T
		data, err := os.ReadFile(path)
		if err == nil {
			err = json.Unmarshal(data, &cached)
		}
		if err == nil {
			metrics.CacheHits.WithLabelValues(kindOf(path)).Inc()
			return cached, true, nil
		}
		c.logger.Warn("Discarding unreadable cache artifact",
			slog.String("path", path),
			slog.Any("error", err))
	}

	metrics.CacheMisses.WithLabelValues(kindOf(path)).Inc()
	value, err := build()
	if err != nil {
		var zero T
		return zero, false, err
	}

	if err := WriteJSONAtomic(path, value); err != nil {
		c.logger.Warn("Failed to write cache artifact",
			slog.String("path", path),
			slog.Any("error", err))
		return value, false, nil
	}

	// A dependency that changed while building would otherwise be hidden
	// behind a newer artifact until the TTL expires.
	if DependencyTime(deps).After(depTime) {
		_ = os.Remove(path)
	}
	return value, false, nil
}

func (c *Coordinator) valid(path string, depTime time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	modTime := info.ModTime()
	if modTime.Before(depTime) {
		return false
	}
	if c.ttl > 0 && c.clock.Now(time.UTC).Sub(modTime) > c.ttl {
		return false
	}
	return true
}

// DependencyTime returns the newest modification time among the given
// paths and, for directories, their direct entries. Missing paths are
// skipped; the zero time means nothing exists.
func DependencyTime(paths []string) time.Time {
	var newest time.Time
	bump := func(t time.Time) {
		if t.After(newest) {
			newest = t
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		bump(info.ModTime())
		if !info.IsDir() {
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entryInfo, err := entry.Info(); err == nil {
				bump(entryInfo.ModTime())
			}
		}
	}
	return newest
}

// WriteJSONAtomic encodes v and replaces path with it in one rename, so
// readers never observe a partial document.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temporary sibling and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// kindOf labels metrics by the artifact's parent layer, e.g. "stats".
func kindOf(path string) string {
	dir := filepath.Dir(path)
	for dir != "." && dir != string(filepath.Separator) {
		switch filepath.Base(dir) {
		case "stats", "sessions":
			return filepath.Base(dir)
		}
		dir = filepath.Dir(dir)
	}
	return "other"
}
