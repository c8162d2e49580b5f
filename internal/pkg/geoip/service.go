package geoip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"pagetally/internal/metrics"
)

// Service caches a Locator's answers per IP.
type Service struct {
	locator Locator
	cache   *ristretto.Cache[string, Location]
	ttl     time.Duration
	logger  *slog.Logger
}

// NewService wraps locator with a TTL cache holding up to maxEntries IPs.
func NewService(locator Locator, ttl time.Duration, maxEntries int64, logger *slog.Logger) (*Service, error) {
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, Location]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating geo cache: %w", err)
	}
	return &Service{locator: locator, cache: cache, ttl: ttl, logger: logger}, nil
}

// Locate returns the cached location for ip or asks the locator. Errors
// wrap ErrUnavailable and are never cached.
func (s *Service) Locate(ctx context.Context, ip string) (Location, error) {
	if loc, ok := s.cache.Get(ip); ok {
		metrics.GeoLookups.WithLabelValues(s.locator.Name(), "hit").Inc()
		return loc, nil
	}

	loc, err := s.locator.Lookup(ctx, ip)
	if err != nil {
		metrics.GeoLookups.WithLabelValues(s.locator.Name(), "error").Inc()
		s.logger.Warn("Geo lookup failed",
			slog.String("provider", s.locator.Name()),
			slog.String("ip", ip),
			slog.Any("error", err))
		return Location{}, err
	}

	metrics.GeoLookups.WithLabelValues(s.locator.Name(), "miss").Inc()
	s.cache.SetWithTTL(ip, loc, 1, s.ttl)
	s.cache.Wait()
	return loc, nil
}

// Purge drops every cached answer.
func (s *Service) Purge() {
	s.cache.Clear()
}

// Close stops the cache's background goroutines.
func (s *Service) Close() {
	s.cache.Close()
}
