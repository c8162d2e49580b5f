// Package seeder generates synthetic visits. The Seeder replays them
// through the ingestor to fill past days with realistic session files; the
// load generator in cmd/tools/perftest posts the same beacons over HTTP.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"pagetally/internal/calendar"
	"pagetally/internal/events"
	"pagetally/internal/sessions"
)

var journeyTemplates = [][]string{
	{"/", "/about", "/contact"},
	{"/", "/features", "/pricing", "/signup"},
	{"/", "/blog", "/blog/article-1", "/signup"},
	{"/pricing", "/features", "/signup"},
	{"/", "/products", "/products/widget-a", "/products/gadget-b", "/pricing"},
	{"/", "/docs", "/docs/getting-started", "/docs/api-reference"},
	{"/", "/blog", "/blog/article-1", "/blog/article-2"},
	{"/", "/signup"},
	{"/blog/article-1", "/about", "/pricing", "/signup"},
	{"/fr/", "/fr/tarifs"},
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (iPad; CPU OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"curl/7.81.0",
}

var referrers = []string{
	"", // direct
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://www.facebook.com/",
	"https://t.co/abc123",
	"https://www.linkedin.com/",
	"https://github.com/",
	"https://some-other-website.com/blog/post",
	"android-app://com.google.android.gm",
}

var languageSets = [][]string{
	{"en-US", "en"},
	{"fr-CA", "fr", "en"},
	{"en-CA", "fr-CA"},
	{"fr-FR"},
	{"de-DE", "en"},
	{"es-ES"},
}

var widths = []int{360, 390, 768, 1024, 1280, 1440, 1920}

// Visit is one synthetic visitor and the pages they went through.
type Visit struct {
	IP             string
	UA             string
	Languages      []string
	TimezoneOffset int
	InnerWidth     int
	ReducedMotion  bool
	Referrer       string
	Pages          []string
}

// Generator produces visits for one origin. It is safe for concurrent use.
type Generator struct {
	origin string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a deterministic generator for seed.
func NewGenerator(origin string, seed uint64) *Generator {
	return &Generator{origin: origin, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Visit draws a random visitor from a pool of a few thousand addresses so
// that some visitors come back.
func (g *Generator) Visit() Visit {
	g.mu.Lock()
	defer g.mu.Unlock()

	pick := func(n int) int { return g.rng.IntN(n) }
	return Visit{
		IP:             fmt.Sprintf("198.51.%d.%d", pick(16), 1+pick(250)),
		UA:             userAgents[pick(len(userAgents))],
		Languages:      languageSets[pick(len(languageSets))],
		TimezoneOffset: []int{240, 300, 360, 420, -60, 0}[pick(6)],
		InnerWidth:     widths[pick(len(widths))],
		ReducedMotion:  pick(10) == 0,
		Referrer:       referrers[pick(len(referrers))],
		Pages:          journeyTemplates[pick(len(journeyTemplates))],
	}
}

func (g *Generator) intN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

// Beacons renders the visit as one beacon per page view, starting at start
// and spaced by gap. The first carries the browser context and the
// external referrer; later ones are referred by the previous page.
func (g *Generator) Beacons(v Visit, start time.Time, gap time.Duration) ([][]byte, error) {
	beacons := make([][]byte, 0, len(v.Pages))
	referrer := v.Referrer
	for i, page := range v.Pages {
		url := "https://" + g.origin + page
		event := []any{sessions.EventPageView, start.Add(time.Duration(i) * gap).UnixMilli(), url, referrer, page}
		if i == 0 {
			event = append(event, map[string]any{
				"timezoneOffset": v.TimezoneOffset,
				"languages":      v.Languages,
				"innerWidth":     v.InnerWidth,
				"reducedMotion":  v.ReducedMotion,
			})
		}
		data, err := json.Marshal(map[string]any{
			"v":      events.BeaconVersion,
			"origin": g.origin,
			"events": []any{event},
		})
		if err != nil {
			return nil, err
		}
		beacons = append(beacons, data)
		referrer = url
	}
	return beacons, nil
}

// Seeder writes generated sessions for past days.
type Seeder struct {
	store          *sessions.Store
	logger         *slog.Logger
	SessionsPerDay int
	Seed           uint64
}

// NewSeeder creates a new seeder instance
func NewSeeder(store *sessions.Store, logger *slog.Logger, sessionsPerDay int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, logger: logger, SessionsPerDay: sessionsPerDay, Seed: 1}
}

// SeedOrigin replays SessionsPerDay visits on every day of interval and
// returns how many beacons were stored. Visits start at random times of
// the day, early enough to end before midnight.
func (s *Seeder) SeedOrigin(ctx context.Context, origin string, interval calendar.Interval) (int, error) {
	start := time.Now()
	s.logger.Info("Seeding origin...",
		slog.String("origin", origin),
		slog.String("range", interval.String()),
		slog.Int("sessionsPerDay", s.SessionsPerDay))

	gen := NewGenerator(origin, s.Seed)
	clock := &replayClock{}
	ingestor := events.NewIngestor(s.store, sessions.NewIndex(time.Hour), nil, clock, "seed", s.logger)

	stored := 0
	for day := range interval.Days() {
		starts := make([]time.Time, s.SessionsPerDay)
		for i := range starts {
			starts[i] = day.FirstDay().Add(time.Duration(gen.intN(22*3600)) * time.Second)
		}
		slices.SortFunc(starts, time.Time.Compare)

		for _, visitStart := range starts {
			if err := ctx.Err(); err != nil {
				return stored, err
			}
			visit := gen.Visit()
			beacons, err := gen.Beacons(visit, visitStart, 45*time.Second)
			if err != nil {
				return stored, err
			}
			for i, beacon := range beacons {
				clock.set(visitStart.Add(time.Duration(i) * 45 * time.Second))
				if err := ingestor.Receive(ctx, beacon, visit.IP, visit.UA); err != nil {
					return stored, fmt.Errorf("replaying %s: %w", day, err)
				}
				stored++
			}
		}
	}

	s.logger.Info("Origin seeding completed",
		slog.String("origin", origin),
		slog.Int("beacons", stored),
		slog.Duration("elapsed", time.Since(start)))
	return stored, nil
}

// replayClock reports the instant being replayed.
type replayClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *replayClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *replayClock) Now(loc *time.Location) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.In(loc)
}
