package seeder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/calendar"
	"pagetally/internal/events"
	"pagetally/internal/seeder"
	"pagetally/internal/sessions"
	"pagetally/internal/testsupport"
)

func TestSeedOriginFillsEveryDay(t *testing.T) {
	store := sessions.NewStore(t.TempDir(), nil, nil, testsupport.GetLogger())
	s := seeder.NewSeeder(store, testsupport.GetLogger(), 5)

	interval, err := calendar.ParseInterval("2024-03-01:2024-03-03")
	require.NoError(t, err)

	stored, err := s.SeedOrigin(t.Context(), "example.org", interval)
	require.NoError(t, err)
	assert.Positive(t, stored)

	available, err := store.Available("example.org")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01:2024-03-03", available.String())

	all, days, err := store.Load(t.Context(), "example.org", interval)
	require.NoError(t, err)
	assert.Equal(t, 3, days)

	views := 0
	for _, session := range all {
		views += len(session.PageViews())
		assert.Equal(t, session.Day.String(), calendar.FromTime(time.UnixMilli(session.Start).UTC(), calendar.Day).String())
	}
	assert.Equal(t, stored, views)
}

func TestGeneratedBeaconsParse(t *testing.T) {
	gen := seeder.NewGenerator("example.org", 42)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for range 20 {
		visit := gen.Visit()
		beacons, err := gen.Beacons(visit, start, time.Minute)
		require.NoError(t, err)
		require.Len(t, beacons, len(visit.Pages))

		for i, raw := range beacons {
			beacon, err := events.ParseBeacon(raw)
			require.NoError(t, err, string(raw))
			assert.Equal(t, "example.org", beacon.Origin)
			if i == 0 {
				assert.NotNil(t, beacon.FirstContext())
				continue
			}
			view, ok := beacon.FirstPageView()
			require.True(t, ok)
			assert.Equal(t, "https://example.org"+visit.Pages[i-1], view.Referrer)
		}
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := seeder.NewGenerator("example.org", 7)
	b := seeder.NewGenerator("example.org", 7)
	for range 10 {
		assert.Equal(t, a.Visit(), b.Visit())
	}
}
