package testsupport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pagetally/internal/annotations"
	"pagetally/internal/calendar"
	"pagetally/internal/pkg/geoip"
	"pagetally/internal/sessions"
	"pagetally/internal/settings"
	"pagetally/internal/websites"
)

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// MockTimeProvider is a settable clock.
type MockTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockTimeProvider(now time.Time) *MockTimeProvider {
	return &MockTimeProvider{now: now}
}

func (m *MockTimeProvider) Now(loc *time.Location) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now.In(loc)
}

// Set moves the clock to t.
func (m *MockTimeProvider) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// SetupTestDB opens a private in-memory registry database with every
// model migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	sanitizedName := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&websites.Website{}, &annotations.Annotation{}, &settings.Setting{}); err != nil {
		t.Fatalf("testsupport: failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateTestWebsite registers domain as an origin.
func CreateTestWebsite(t *testing.T, db *gorm.DB, domain string) websites.Website {
	t.Helper()
	website, err := websites.CreateWebsite(db, domain)
	if err != nil {
		t.Fatalf("testsupport: failed to create website %s: %v", domain, err)
	}
	return website
}

// FakeLocator answers geolocation lookups from a map. When Err is set
// every lookup fails with it.
type FakeLocator struct {
	mu        sync.Mutex
	Locations map[string]geoip.Location
	Err       error
	calls     int
}

func (f *FakeLocator) Name() string { return "fake" }

func (f *FakeLocator) Lookup(_ context.Context, ip string) (geoip.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return geoip.Location{}, f.Err
	}
	return f.Locations[ip], nil
}

// Calls returns how many lookups reached the locator.
func (f *FakeLocator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// TestUserAgent is a desktop Firefox on Linux.
const TestUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"

// NewSession builds a session with one page view per URL, a minute apart,
// each referred by the previous one. languages populates the context.
func NewSession(origin, ip string, start time.Time, languages []string, urls ...string) *sessions.Session {
	s := &sessions.Session{
		Version:      sessions.DocumentVersion,
		Origin:       origin,
		Key:          sessions.Key("test", ip, TestUserAgent),
		IP:           ip,
		UA:           TestUserAgent,
		Day:          calendar.FromTime(start.UTC(), calendar.Day),
		Start:        start.UnixMilli(),
		LastActivity: start.UnixMilli(),
		Context: &sessions.Context{
			TimezoneOffset: 300,
			Languages:      languages,
			InnerWidth:     1280,
		},
	}
	referrer := ""
	for i, url := range urls {
		at := start.Add(time.Duration(i) * time.Minute).UnixMilli()
		s.Events = append(s.Events, sessions.Event{
			Type:     sessions.EventPageView,
			Time:     at,
			URL:      url,
			Referrer: referrer,
		})
		s.LastActivity = at
		referrer = url
	}
	return s
}

// WriteSession stores s under the day it started and returns its path.
func WriteSession(t *testing.T, store *sessions.Store, s *sessions.Session) string {
	t.Helper()
	path := store.NewPath(s.Origin, s.Day, s.Key)
	if err := store.Write(path, s); err != nil {
		t.Fatalf("testsupport: failed to write session: %v", err)
	}
	return path
}
