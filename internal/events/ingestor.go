package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pagetally/internal/calendar"
	"pagetally/internal/metrics"
	"pagetally/internal/sessions"
	"pagetally/internal/timeframe"
)

// maxClockSkew is how far ahead of arrival an event time may be.
const maxClockSkew = 24 * time.Hour

// OriginRegistry tells whether beacons for an origin should be accepted.
type OriginRegistry interface {
	IsRegistered(ctx context.Context, origin string) (bool, error)
}

// Ingestor turns beacons into session documents.
type Ingestor struct {
	store    *sessions.Store
	index    *sessions.Index
	registry OriginRegistry
	clock    timeframe.TimeProvider
	salt     string
	logger   *slog.Logger
}

// NewIngestor wires an ingestor. A nil registry accepts every origin.
func NewIngestor(store *sessions.Store, index *sessions.Index, registry OriginRegistry,
	clock timeframe.TimeProvider, salt string, logger *slog.Logger) *Ingestor {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Ingestor{
		store:    store,
		index:    index,
		registry: registry,
		clock:    clock,
		salt:     salt,
		logger:   logger,
	}
}

// Receive validates raw and appends its events to the visitor's open
// session, or starts a new session when none can be continued.
func (ing *Ingestor) Receive(ctx context.Context, raw []byte, ip, ua string) error {
	beacon, err := ParseBeacon(raw)
	if err != nil {
		metrics.BeaconsReceived.WithLabelValues("rejected").Inc()
		return err
	}

	if ing.registry != nil {
		ok, err := ing.registry.IsRegistered(ctx, beacon.Origin)
		if err != nil {
			metrics.BeaconsReceived.WithLabelValues("error").Inc()
			return fmt.Errorf("checking origin %s: %w", beacon.Origin, err)
		}
		if !ok {
			metrics.BeaconsReceived.WithLabelValues("rejected").Inc()
			return beaconError(UnknownOrigin, "%s", beacon.Origin)
		}
	}

	now := ing.clock.Now(time.UTC)
	for i, e := range beacon.Events {
		if time.UnixMilli(e.Time).After(now.Add(maxClockSkew)) {
			metrics.BeaconsReceived.WithLabelValues("rejected").Inc()
			return beaconError(InvalidBeaconField, "event %d: time %d is in the future", i, e.Time)
		}
	}

	key := sessions.Key(ing.salt, ip, ua)

	err = ing.index.With(beacon.Origin, func(t *sessions.OriginTable) error {
		session, path := ing.reopen(t, key, beacon, now)
		if session == nil {
			session, path = ing.open(beacon, key, ip, ua, now)
			metrics.SessionsOpened.Inc()
		} else {
			metrics.SessionsContinued.Inc()
		}

		appendEvents(session, beacon)
		if err := ing.store.Write(path, session); err != nil {
			return err
		}

		open := sessions.OpenSession{
			Path:         path,
			LastActivity: now,
			LastEvent:    time.UnixMilli(session.LastActivity).UTC(),
			LastURL:      session.ExitPage(),
		}
		if session.Context != nil {
			tz := session.Context.TimezoneOffset
			open.TimezoneOffset = &tz
		}
		t.Put(key, open)
		return nil
	})
	if err != nil {
		metrics.BeaconsReceived.WithLabelValues("error").Inc()
		ing.logger.Error("Failed to store beacon",
			slog.String("origin", beacon.Origin),
			slog.Any("error", err))
		return err
	}

	metrics.BeaconsReceived.WithLabelValues("stored").Inc()
	return nil
}

// reopen loads the visitor's open session when the beacon continues it.
func (ing *Ingestor) reopen(t *sessions.OriginTable, key string, beacon *Beacon, now time.Time) (*sessions.Session, string) {
	open, ok := t.Get(key)
	if !ok || !continues(open, beacon, now, ing.index.Timeout()) {
		return nil, ""
	}
	session, err := ing.store.Read(open.Path)
	if err != nil {
		ing.logger.Warn("Open session file unreadable, starting a new session",
			slog.String("path", open.Path),
			slog.Any("error", err))
		t.Delete(key)
		return nil, ""
	}
	return session, open.Path
}

// open starts a session. Its day is the UTC day of the first event, while
// its file goes under the arrival day so past directories stay append-only.
func (ing *Ingestor) open(beacon *Beacon, key, ip, ua string, now time.Time) (*sessions.Session, string) {
	first := beacon.Events[0].Time
	session := &sessions.Session{
		Version:      sessions.DocumentVersion,
		Origin:       beacon.Origin,
		Key:          key,
		IP:           ip,
		UA:           ua,
		Day:          calendar.FromTime(time.UnixMilli(first).UTC(), calendar.Day),
		Start:        first,
		LastActivity: first,
	}
	path := ing.store.NewPath(beacon.Origin, calendar.FromTime(now, calendar.Day), key)
	return session, path
}

// Sweep evicts expired entries from the open-session index.
func (ing *Ingestor) Sweep() int {
	removed := ing.index.Sweep(ing.clock.Now(time.UTC))
	metrics.OpenSessions.Set(float64(ing.index.Len()))
	return removed
}

// continues applies the windowing heuristic: the session is still open both
// at arrival and at the beacon's first event time, the timezone did not
// change, and the first new page view was either reached from the previous
// page or has no referrer at all.
func continues(open sessions.OpenSession, beacon *Beacon, now time.Time, timeout time.Duration) bool {
	if open.Expired(now, timeout) || open.ExpiredAt(time.UnixMilli(beacon.Events[0].Time).UTC(), timeout) {
		return false
	}
	if ctx := beacon.FirstContext(); ctx != nil && open.TimezoneOffset != nil && ctx.TimezoneOffset != *open.TimezoneOffset {
		return false
	}
	if view, ok := beacon.FirstPageView(); ok && view.Referrer != "" && view.Referrer != open.LastURL {
		return false
	}
	return true
}

// appendEvents adds the beacon's events, moving any context onto the
// session the first time one arrives.
func appendEvents(session *sessions.Session, beacon *Beacon) {
	for _, e := range beacon.Events {
		if e.Context != nil && session.Context == nil {
			session.Context = e.Context.toSession()
		}
		session.Events = append(session.Events, sessions.Event{
			Type:     e.Type,
			Time:     e.Time,
			URL:      e.URL,
			Referrer: e.Referrer,
			Title:    e.Title,
		})
		if e.Time > session.LastActivity {
			session.LastActivity = e.Time
		}
	}
}
