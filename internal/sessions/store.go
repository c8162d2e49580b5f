package sessions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"pagetally/internal/calendar"
	"pagetally/internal/filecache"
	"pagetally/internal/pkg/async"
	"pagetally/internal/timeframe"
)

// ErrNoData means no session file exists for the requested origin or range.
var ErrNoData = errors.New("noData")

// Store reads and writes session documents under a data root.
type Store struct {
	root   string
	cache  *filecache.Coordinator
	clock  timeframe.TimeProvider
	pool   *async.Pool
	logger *slog.Logger
}

// loadWorkers bounds how many day directories are read at once.
const loadWorkers = 8

// NewStore returns a Store rooted at root. Per-day bundles of past days are
// kept through cache.
func NewStore(root string, cache *filecache.Coordinator, clock timeframe.TimeProvider, logger *slog.Logger) *Store {
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Store{root: root, cache: cache, clock: clock, pool: async.NewPool(loadWorkers), logger: logger}
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// OriginDir is the top-level directory of an origin.
func (s *Store) OriginDir(origin string) string {
	return filepath.Join(s.root, origin)
}

// SessionsDir holds every session file of an origin.
func (s *Store) SessionsDir(origin string) string {
	return filepath.Join(s.root, origin, "sessions")
}

// DayDir is the directory of sessions that arrived on day.
func (s *Store) DayDir(origin string, day calendar.Value) string {
	return filepath.Join(s.SessionsDir(origin),
		fmt.Sprintf("%04d", day.Year()), fmt.Sprintf("%02d", day.Month()), fmt.Sprintf("%02d", day.Day()))
}

// Dependencies lists the directories whose modification times reveal new
// sessions anywhere in interval: every day, month and year directory plus
// the origin's sessions root, so directories created later are noticed.
func (s *Store) Dependencies(origin string, interval calendar.Interval) []string {
	deps := []string{s.SessionsDir(origin)}
	for year := range interval.Each(calendar.Year) {
		deps = append(deps, filepath.Join(s.SessionsDir(origin), fmt.Sprintf("%04d", year.Year())))
	}
	for month := range interval.Each(calendar.Month) {
		deps = append(deps, filepath.Join(s.SessionsDir(origin),
			fmt.Sprintf("%04d", month.Year()), fmt.Sprintf("%02d", month.Month())))
	}
	for day := range interval.Days() {
		deps = append(deps, s.DayDir(origin, day))
	}
	return deps
}

// NewPath picks the file for a new session: <key>.json, or <key>-2.json,
// <key>-3.json and so on when the visitor already had sessions that day.
func (s *Store) NewPath(origin string, arrival calendar.Value, key string) string {
	dir := s.DayDir(origin, arrival)
	path := filepath.Join(dir, key+".json")
	for n := 2; fileExists(path); n++ {
		path = filepath.Join(dir, key+"-"+strconv.Itoa(n)+".json")
	}
	return path
}

// Write atomically replaces the document at path.
func (s *Store) Write(path string, session *Session) error {
	if err := filecache.WriteJSONAtomic(path, session); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Read loads one session document.
func (s *Store) Read(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &session, nil
}

// ReadDay reads every session file of a day directly from disk. A missing
// directory yields no sessions and no error; unreadable files are logged
// and skipped.
func (s *Store) ReadDay(origin string, day calendar.Value) ([]*Session, error) {
	dir := s.DayDir(origin, day)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	sessions := make([]*Session, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		session, err := s.Read(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("Skipping unreadable session file",
				slog.String("path", filepath.Join(dir, name)),
				slog.Any("error", err))
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// LoadDay returns the sessions of a day. Days before today are served from
// a bundle under <origin>/cache/sessions, rebuilt whenever the day
// directory changes.
func (s *Store) LoadDay(origin string, day calendar.Value) ([]*Session, error) {
	dir := s.DayDir(origin, day)
	if !fileExists(dir) {
		return nil, nil
	}
	if s.cache == nil || !day.IsBefore(calendar.FromTime(s.clock.Now(time.UTC), calendar.Day)) {
		return s.ReadDay(origin, day)
	}

	bundle := filepath.Join(s.OriginDir(origin), "cache", "sessions", day.String()+".json")
	sessions, _, err := filecache.GetOrBuild(s.cache, bundle, []string{dir}, func() ([]*Session, error) {
		return s.ReadDay(origin, day)
	})
	return sessions, err
}

// Load returns every session that arrived during interval and the number
// of days that had a session directory. Days are read concurrently and
// returned in order.
func (s *Store) Load(ctx context.Context, origin string, interval calendar.Interval) ([]*Session, int, error) {
	var tasks []async.Task[[]*Session]
	for day := range interval.Days() {
		tasks = append(tasks, async.Task[[]*Session]{
			Name:    day.String(),
			Execute: func() ([]*Session, error) { return s.LoadDay(origin, day) },
		})
	}
	results := async.Execute(ctx, s.pool, tasks)

	var all []*Session
	daysWithData := 0
	for _, task := range tasks {
		result, ok := results[task.Name]
		if !ok {
			return nil, 0, ctx.Err()
		}
		if result.Err != nil {
			return nil, 0, result.Err
		}
		if len(result.Data) > 0 {
			daysWithData++
		}
		all = append(all, result.Data...)
	}
	return all, daysWithData, nil
}

// Available returns the interval from the first to the last day holding
// sessions for origin, or ErrNoData.
func (s *Store) Available(origin string) (calendar.Interval, error) {
	var days []calendar.Value
	years, _ := os.ReadDir(s.SessionsDir(origin))
	for _, y := range years {
		months, _ := os.ReadDir(filepath.Join(s.SessionsDir(origin), y.Name()))
		for _, m := range months {
			dayEntries, _ := os.ReadDir(filepath.Join(s.SessionsDir(origin), y.Name(), m.Name()))
			for _, d := range dayEntries {
				day, err := calendar.Parse(y.Name() + "-" + m.Name() + "-" + d.Name())
				if err != nil || !d.IsDir() {
					continue
				}
				days = append(days, day)
			}
		}
	}
	if len(days) == 0 {
		return calendar.Interval{}, ErrNoData
	}
	slices.SortFunc(days, func(a, b calendar.Value) int {
		return a.FirstDay().Compare(b.FirstDay())
	})
	return calendar.NewInterval(days[0], days[len(days)-1])
}

// Origins lists the origins that have a data directory.
func (s *Store) Origins() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var origins []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			origins = append(origins, entry.Name())
		}
	}
	return origins, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
