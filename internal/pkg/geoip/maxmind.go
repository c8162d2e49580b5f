package geoip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindLocator reads a local GeoLite2-City database. The file is optional:
// without it GeoIP features are disabled and lookups return an empty
// location. Read failures of a loaded database yield ErrUnavailable.
type MaxMindLocator struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *geoip2.Reader
}

// NewMaxMindLocator opens the database at path if it exists.
func NewMaxMindLocator(path string, logger *slog.Logger) *MaxMindLocator {
	l := &MaxMindLocator{path: path, logger: logger}
	l.db = l.open()
	return l
}

func (l *MaxMindLocator) open() *geoip2.Reader {
	if l.path == "" {
		l.logger.Debug("GeoIP database path not configured - GeoIP features disabled")
		return nil
	}

	fileInfo, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		l.logger.Info("GeoLite2 database not found - GeoIP features disabled",
			slog.String("path", l.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		l.logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", l.path),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(l.path)
	if err != nil {
		l.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", l.path),
			slog.Any("error", err))
		return nil
	}

	l.logger.Info("GeoLite2 database initialized successfully",
		slog.String("path", l.path),
		slog.Int64("size_bytes", fileInfo.Size()),
		slog.Time("mod_time", fileInfo.ModTime()))
	return db
}

// Reload reopens the database from disk, typically after an update.
func (l *MaxMindLocator) Reload() {
	db := l.open()

	l.mu.Lock()
	old := l.db
	l.db = db
	l.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// Path returns the database file location.
func (l *MaxMindLocator) Path() string { return l.path }

func (l *MaxMindLocator) Name() string { return "maxmind" }

// Lookup resolves ip against the City database.
func (l *MaxMindLocator) Lookup(_ context.Context, ip string) (Location, error) {
	if !isPublic(ip) {
		return Location{}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return Location{}, nil
	}

	record, err := l.db.City(net.ParseIP(ip))
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	loc := Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc, nil
}

// Close releases the database.
func (l *MaxMindLocator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
