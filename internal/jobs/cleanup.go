package jobs

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagetally/internal/timeframe"
)

// abandonedTempAge is how old a temporary file must be before it is
// assumed to belong to a crashed write.
const abandonedTempAge = time.Hour

// CleanupJob removes derived artifacts that can no longer be served: stats
// documents and session bundles older than the cache TTL, and temporary
// files left behind by interrupted writes, session directories included.
// Session files themselves are never touched.
type CleanupJob struct {
	dataDir string
	ttl     time.Duration
	clock   timeframe.TimeProvider
	logger  *slog.Logger
}

func NewCleanupJob(dataDir string, ttl time.Duration, clock timeframe.TimeProvider, logger *slog.Logger) *CleanupJob {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &CleanupJob{dataDir: dataDir, ttl: ttl, clock: clock, logger: logger}
}

// Run walks every origin's stats, cache and sessions directories.
func (j *CleanupJob) Run() error {
	origins, err := os.ReadDir(j.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	now := j.clock.Now(time.UTC)
	removed := 0
	for _, origin := range origins {
		if !origin.IsDir() {
			continue
		}
		for _, sub := range []string{"stats", "cache"} {
			removed += j.prune(filepath.Join(j.dataDir, origin.Name(), sub), now, false)
		}
		removed += j.prune(filepath.Join(j.dataDir, origin.Name(), "sessions"), now, true)
	}

	if removed > 0 {
		j.logger.Info("Removed stale cache artifacts", slog.Int("count", removed))
	}
	return nil
}

// prune removes stale artifacts and abandoned temporary files under root.
// With tempOnly, regular files are kept whatever their age.
func (j *CleanupJob) prune(root string, now time.Time, tempOnly bool) int {
	removed := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		age := now.Sub(info.ModTime())
		stale := !tempOnly && j.ttl > 0 && age > j.ttl
		abandoned := strings.Contains(d.Name(), ".tmp-") && age > abandonedTempAge
		if !stale && !abandoned {
			return nil
		}
		if err := os.Remove(path); err != nil {
			j.logger.Warn("Failed to remove cache artifact", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		removed++
		return nil
	})
	return removed
}
