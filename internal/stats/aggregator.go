// Package stats turns an origin's sessions over a calendar interval into
// frequency tables and totals.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"pagetally/internal/calendar"
	"pagetally/internal/filecache"
	"pagetally/internal/metrics"
	"pagetally/internal/pkg/geoip"
	"pagetally/internal/pkg/user_agent"
	"pagetally/internal/sessions"
	"pagetally/internal/settings"
	"pagetally/internal/timeframe"
)

// DocumentVersion is written into every stats document.
const DocumentVersion = 1

var (
	// ErrNoData means no session exists in the interval at all.
	ErrNoData = sessions.ErrNoData
	// ErrNoMatchingSessions means sessions exist but none passed the
	// exclusions and the filter.
	ErrNoMatchingSessions = errors.New("noMatchingSessions")
	// ErrIPGeoUnavailable aborts a computation whose sessions could not
	// all be located.
	ErrIPGeoUnavailable = errors.New("ipGeoUnavailable")
)

// Excluded counts sessions dropped before filtering, by reason.
type Excluded struct {
	Dev  int `json:"dev"`
	Bot  int `json:"bot"`
	Spam int `json:"spam"`
}

// Stats is the result for one (origin, interval, filter).
type Stats struct {
	Version          int               `json:"version"`
	Origin           string            `json:"origin"`
	Range            calendar.Interval `json:"range"`
	Filter           string            `json:"filter,omitempty"`
	GeneratedAt      time.Time         `json:"generatedAt"`
	ViewTotal        int               `json:"viewTotal"`
	SessionTotal     int               `json:"sessionTotal"`
	AvgSessionLength float64           `json:"avgSessionLength"`
	Excluded         Excluded          `json:"excluded"`
	Tables           map[string]*Table `json:"tables"`
}

// Geolocator resolves session IPs.
type Geolocator interface {
	Locate(ctx context.Context, ip string) (geoip.Location, error)
}

// ExclusionSource returns the current exclusion lists.
type ExclusionSource func(ctx context.Context) (settings.Exclusions, error)

// Aggregator computes stats documents, caching the stable ones on disk.
type Aggregator struct {
	store      *sessions.Store
	cache      *filecache.Coordinator
	geo        Geolocator
	exclusions ExclusionSource
	clock      timeframe.TimeProvider
	logger     *slog.Logger
}

// NewAggregator wires an Aggregator. A nil exclusions source reads the
// settings cache.
func NewAggregator(store *sessions.Store, cache *filecache.Coordinator, geo Geolocator,
	exclusions ExclusionSource, clock timeframe.TimeProvider, logger *slog.Logger) *Aggregator {
	if exclusions == nil {
		exclusions = settings.GetExclusions
	}
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Aggregator{
		store:      store,
		cache:      cache,
		geo:        geo,
		exclusions: exclusions,
		clock:      clock,
		logger:     logger,
	}
}

// ArtifactPath is where the unfiltered stats of interval are cached.
func (a *Aggregator) ArtifactPath(origin string, interval calendar.Interval) string {
	return filepath.Join(a.store.OriginDir(origin), "stats", interval.Unit().String(), interval.String()+".json")
}

// Cacheable reports whether a result may be persisted: it is unfiltered,
// coarser than a day and entirely in the past.
func (a *Aggregator) Cacheable(interval calendar.Interval, filter Filter) bool {
	return len(filter) == 0 &&
		interval.Unit() != calendar.Day &&
		interval.IsBefore(timeframe.Today(a.clock))
}

// Compute returns the stats of origin's sessions over interval that pass
// filter.
func (a *Aggregator) Compute(ctx context.Context, origin string, interval calendar.Interval, filter Filter) (*Stats, error) {
	start := time.Now()

	var result *Stats
	var err error
	if a.cache != nil && a.Cacheable(interval, filter) {
		result, _, err = filecache.GetOrBuild(a.cache, a.ArtifactPath(origin, interval),
			a.store.Dependencies(origin, interval), func() (*Stats, error) {
				return a.build(ctx, origin, interval, filter)
			})
	} else {
		result, err = a.build(ctx, origin, interval, filter)
	}

	metrics.RecordStats(interval.Unit().String(), outcome(err), time.Since(start))
	if err != nil {
		if !errors.Is(err, ErrNoData) && !errors.Is(err, ErrNoMatchingSessions) {
			a.logger.Error("Failed to compute stats",
				slog.String("origin", origin),
				slog.String("range", interval.String()),
				slog.Any("error", err))
		}
		return nil, err
	}
	return result, nil
}

func (a *Aggregator) build(ctx context.Context, origin string, interval calendar.Interval, filter Filter) (*Stats, error) {
	all, _, err := a.store.Load(ctx, origin, interval)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	if len(all) == 0 {
		return nil, ErrNoData
	}

	rules, err := a.exclusions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading exclusions: %w", err)
	}

	result := &Stats{
		Version:     DocumentVersion,
		Origin:      origin,
		Range:       interval,
		Filter:      filter.String(),
		GeneratedAt: a.clock.Now(time.UTC),
		Tables:      make(map[string]*Table, len(Dimensions)),
	}
	for _, d := range Dimensions {
		result.Tables[d] = NewTable()
	}

	for _, s := range all {
		if rules.IsDevIP(s.IP) {
			result.Excluded.Dev++
			metrics.SessionsExcluded.WithLabelValues("dev").Inc()
			continue
		}
		if user_agent.IsBot(s.UA) {
			result.Excluded.Bot++
			metrics.SessionsExcluded.WithLabelValues("bot").Inc()
			continue
		}

		loc, err := a.locate(ctx, s.IP)
		if err != nil {
			return nil, err
		}
		if rules.IsSpamIP(s.IP) || rules.IsSpamCountry(loc.CountryCode) {
			result.Excluded.Spam++
			metrics.SessionsExcluded.WithLabelValues("spam").Inc()
			continue
		}

		attrs := describe(s, loc)
		if !filter.Matches(attrs) {
			continue
		}
		for _, d := range Dimensions {
			for _, key := range attrs[d] {
				result.Tables[d].Add(key, 1)
			}
		}
		result.ViewTotal += len(attrs[PageViews])
		result.SessionTotal++
	}

	if result.SessionTotal == 0 {
		return nil, ErrNoMatchingSessions
	}
	result.AvgSessionLength = float64(result.ViewTotal) / float64(result.SessionTotal)
	return result, nil
}

func (a *Aggregator) locate(ctx context.Context, ip string) (geoip.Location, error) {
	if a.geo == nil {
		return geoip.Location{}, nil
	}
	loc, err := a.geo.Locate(ctx, ip)
	if err != nil {
		return geoip.Location{}, fmt.Errorf("%w: %w", ErrIPGeoUnavailable, err)
	}
	return loc, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoData):
		return "noData"
	case errors.Is(err, ErrNoMatchingSessions):
		return "noMatchingSessions"
	case errors.Is(err, ErrIPGeoUnavailable):
		return "ipGeoUnavailable"
	default:
		return "error"
	}
}
