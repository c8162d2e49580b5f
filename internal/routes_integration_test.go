package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "pagetally/api/v1"
	"pagetally/internal/config"
	"pagetally/internal/events"
	"pagetally/internal/sessions"
	"pagetally/internal/stats"
	"pagetally/internal/testsupport"
	"pagetally/internal/timeframe"
)

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()
	logger := testsupport.GetLogger()
	cfg := &config.Config{
		Environment:      config.Test,
		DataDirectory:    t.TempDir(),
		BeaconsPerMinute: 70,
	}
	store := sessions.NewStore(cfg.DataDirectory, nil, nil, logger)
	h := &v1.Handler{
		Ingestor:   events.NewIngestor(store, sessions.NewIndex(time.Hour), nil, nil, "salt", logger),
		Aggregator: stats.NewAggregator(store, nil, nil, nil, nil, logger),
		Store:      store,
		DB:         testsupport.SetupTestDB(t),
		Ranges:     timeframe.NewParser(),
		AdminKey:   "secret",
		Logger:     logger,
	}

	app := fiber.New()
	MountRoutes(app, cfg, h)
	return app
}

func TestBeaconRouteRateLimited(t *testing.T) {
	app := newTestServer(t)

	var beaconRoute *fiber.Route
	routes := app.GetRoutes(true)
	for idx := range routes {
		if routes[idx].Method == fiber.MethodPost && routes[idx].Path == "/x/api/v1/beacon" {
			beaconRoute = &routes[idx]
			break
		}
	}
	require.NotNil(t, beaconRoute, "expected beacon route to be registered")

	// The limiter is wrapped so it only applies in production; the wrapper
	// is what shows up in tests.
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range beaconRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "BeaconRateLimiter.func") {
			hasRateLimiter = true
			break
		}
	}
	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for beacon route, handlers: %v", handlerNames)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/_health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["db_status"])
}

func TestBeaconPreflightAllowsAnyOrigin(t *testing.T) {
	app := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/x/api/v1/beacon", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatsRoutesRequireToken(t *testing.T) {
	app := newTestServer(t)

	for _, path := range []string{"/api/v1/origins", "/api/v1/stats?origin=example.org&range=2024", "/api/v1/available?origin=example.org"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
