package sessions_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/calendar"
	"pagetally/internal/filecache"
	"pagetally/internal/sessions"
	"pagetally/internal/testsupport"
)

func newStore(t *testing.T, now time.Time) *sessions.Store {
	t.Helper()
	clock := testsupport.NewMockTimeProvider(now)
	cache := filecache.New(24*time.Hour, clock, testsupport.GetLogger())
	return sessions.NewStore(t.TempDir(), cache, clock, testsupport.GetLogger())
}

func sampleSession(key string, day calendar.Value) *sessions.Session {
	start := day.FirstDay().Add(10 * time.Hour).UnixMilli()
	return &sessions.Session{
		Version:      sessions.DocumentVersion,
		Origin:       "example.org",
		Key:          key,
		IP:           "203.0.113.5",
		UA:           "Mozilla/5.0",
		Day:          day,
		Start:        start,
		LastActivity: start,
		Context:      &sessions.Context{TimezoneOffset: 240, Languages: []string{"fr-CA"}, InnerWidth: 1280},
		Events: []sessions.Event{
			{Type: sessions.EventPageView, Time: start, URL: "https://example.org/"},
		},
	}
}

func TestNewPathNumbersRepeatVisits(t *testing.T) {
	store := newStore(t, time.Now())
	day := calendar.MustParse("2024-03-01")

	first := store.NewPath("example.org", day, "abc")
	assert.Equal(t, filepath.Join(store.Root(), "example.org", "sessions", "2024", "03", "01", "abc.json"), first)
	require.NoError(t, store.Write(first, sampleSession("abc", day)))

	second := store.NewPath("example.org", day, "abc")
	assert.Equal(t, "abc-2.json", filepath.Base(second))
	require.NoError(t, store.Write(second, sampleSession("abc", day)))

	assert.Equal(t, "abc-3.json", filepath.Base(store.NewPath("example.org", day, "abc")))
}

func TestWriteAndRead(t *testing.T) {
	store := newStore(t, time.Now())
	day := calendar.MustParse("2024-03-01")
	path := store.NewPath("example.org", day, "abc")
	want := sampleSession("abc", day)

	require.NoError(t, store.Write(path, want))
	got, err := store.Read(path)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, "2024-03-01", got.Day.String())
}

func TestReadDaySkipsTemporaryAndCorruptFiles(t *testing.T) {
	store := newStore(t, time.Now())
	day := calendar.MustParse("2024-03-01")
	require.NoError(t, store.Write(store.NewPath("example.org", day, "good"), sampleSession("good", day)))

	dir := store.DayDir("example.org", day)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".x.json.tmp-1"), []byte("{}"), 0o644))

	got, err := store.ReadDay("example.org", day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Key)

	missing, err := store.ReadDay("example.org", calendar.MustParse("2024-03-02"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLoadDayBundlesPastDays(t *testing.T) {
	store := newStore(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	day := calendar.MustParse("2024-03-01")
	require.NoError(t, store.Write(store.NewPath("example.org", day, "a"), sampleSession("a", day)))

	got, err := store.LoadDay("example.org", day)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	bundle := filepath.Join(store.Root(), "example.org", "cache", "sessions", "2024-03-01.json")
	assert.FileExists(t, bundle)

	// A late arrival in the same day directory invalidates the bundle.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(bundle, past, past))
	require.NoError(t, store.Write(store.NewPath("example.org", day, "b"), sampleSession("b", day)))

	got, err = store.LoadDay("example.org", day)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLoadDayReadsTodayDirectly(t *testing.T) {
	store := newStore(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	day := calendar.MustParse("2024-03-01")
	require.NoError(t, store.Write(store.NewPath("example.org", day, "a"), sampleSession("a", day)))

	got, err := store.LoadDay("example.org", day)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoDirExists(t, filepath.Join(store.Root(), "example.org", "cache"))
}

func TestLoadCountsDaysWithData(t *testing.T) {
	store := newStore(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	for _, d := range []string{"2024-03-01", "2024-03-05", "2024-03-05"} {
		day := calendar.MustParse(d)
		require.NoError(t, store.Write(store.NewPath("example.org", day, "k"), sampleSession("k", day)))
	}

	all, days, err := store.Load(t.Context(), "example.org", calendar.MustParseInterval("2024-03"))
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 2, days)
}

func TestAvailable(t *testing.T) {
	store := newStore(t, time.Now())
	_, err := store.Available("example.org")
	assert.ErrorIs(t, err, sessions.ErrNoData)

	for _, d := range []string{"2023-12-30", "2024-03-05", "2024-01-15"} {
		day := calendar.MustParse(d)
		require.NoError(t, store.Write(store.NewPath("example.org", day, "k"), sampleSession("k", day)))
	}

	available, err := store.Available("example.org")
	require.NoError(t, err)
	assert.Equal(t, "2023-12-30:2024-03-05", available.String())

	origins, err := store.Origins()
	require.NoError(t, err)
	assert.Equal(t, []string{"example.org"}, origins)
}

func TestDependenciesCoverEveryLevel(t *testing.T) {
	store := newStore(t, time.Now())
	deps := store.Dependencies("example.org", calendar.MustParseInterval("2024-01-31:2024-02-01"))

	sessionsDir := filepath.Join(store.Root(), "example.org", "sessions")
	assert.Equal(t, []string{
		sessionsDir,
		filepath.Join(sessionsDir, "2024"),
		filepath.Join(sessionsDir, "2024", "01"),
		filepath.Join(sessionsDir, "2024", "02"),
		filepath.Join(sessionsDir, "2024", "01", "31"),
		filepath.Join(sessionsDir, "2024", "02", "01"),
	}, deps)
}
