package jobs

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// Reloadable is a geolocation database backed by a file.
type Reloadable interface {
	Path() string
	Reload()
}

// GeoReloadJob reopens the GeoLite database after it is replaced on disk,
// for instance by geoipupdate, and drops answers computed from the old one.
type GeoReloadJob struct {
	db      Reloadable
	purge   func()
	logger  *slog.Logger
	modTime time.Time
}

// NewGeoReloadJob remembers the database's current modification time so
// the first run only reloads when the file changed since startup.
func NewGeoReloadJob(db Reloadable, purge func(), logger *slog.Logger) *GeoReloadJob {
	j := &GeoReloadJob{db: db, purge: purge, logger: logger}
	if info, err := os.Stat(db.Path()); err == nil {
		j.modTime = info.ModTime()
	}
	return j
}

func (j *GeoReloadJob) Run() error {
	info, err := os.Stat(j.db.Path())
	if errors.Is(err, fs.ErrNotExist) {
		j.logger.Debug("GeoLite database not present, skipping reload", slog.String("path", j.db.Path()))
		return nil
	}
	if err != nil {
		return err
	}
	if info.ModTime().Equal(j.modTime) {
		return nil
	}

	j.logger.Info("GeoLite database changed, reloading",
		slog.String("path", j.db.Path()),
		slog.Time("modified", info.ModTime()))
	j.db.Reload()
	if j.purge != nil {
		j.purge()
	}
	j.modTime = info.ModTime()
	return nil
}
