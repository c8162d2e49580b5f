package jobs_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/jobs"
	"pagetally/internal/testsupport"
)

type fakeDB struct {
	path    string
	reloads int
}

func (f *fakeDB) Path() string { return f.path }
func (f *fakeDB) Reload()      { f.reloads++ }

func TestGeoReloadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")
	db := &fakeDB{path: path}
	purges := 0

	job := jobs.NewGeoReloadJob(db, func() { purges++ }, testsupport.GetLogger())
	require.NoError(t, job.Run())
	assert.Zero(t, db.reloads, "missing database is skipped")

	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	require.NoError(t, job.Run())
	assert.Equal(t, 1, db.reloads)
	assert.Equal(t, 1, purges)

	require.NoError(t, job.Run())
	assert.Equal(t, 1, db.reloads, "unchanged database is not reloaded")

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	require.NoError(t, job.Run())
	assert.Equal(t, 2, db.reloads)
}

type countingSweeper struct{ calls atomic.Int32 }

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

func TestSchedulerRunsJobs(t *testing.T) {
	sweeper := &countingSweeper{}
	s := jobs.NewScheduler(testsupport.GetLogger())
	s.Add("sweep", 10*time.Millisecond, jobs.NewSweepJob(sweeper, testsupport.GetLogger()))

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestCleanupJob(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	clock := testsupport.NewMockTimeProvider(now)

	write := func(rel string, age time.Duration) string {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		at := now.Add(-age)
		require.NoError(t, os.Chtimes(path, at, at))
		return path
	}
	stale := write("example.org/stats/month/2024-01.json", 48*time.Hour)
	fresh := write("example.org/stats/month/2024-02.json", time.Hour)
	bundle := write("example.org/cache/sessions/2024-01-01.json", 72*time.Hour)
	temp := write("example.org/stats/month/.2024-03.json.tmp-abc", 2*time.Hour)
	session := write("example.org/sessions/2024/01/01/key.json", 90*24*time.Hour)
	sessionTemp := write("example.org/sessions/2024/01/01/.key.json.tmp-abc", 2*time.Hour)
	recentTemp := write("example.org/sessions/2024/01/02/.key.json.tmp-def", time.Minute)

	job := jobs.NewCleanupJob(dir, 24*time.Hour, clock, testsupport.GetLogger())
	require.NoError(t, job.Run())

	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, bundle)
	assert.NoFileExists(t, temp)
	assert.NoFileExists(t, sessionTemp)
	assert.FileExists(t, fresh)
	assert.FileExists(t, session)
	assert.FileExists(t, recentTemp, "a write may still be in progress")
}
