package geoip_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/pkg/geoip"
	"pagetally/internal/testsupport"
)

type countingLocator struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (c *countingLocator) Name() string { return "counting" }

func (c *countingLocator) Lookup(_ context.Context, ip string) (geoip.Location, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return geoip.Location{}, fmt.Errorf("%w: down", geoip.ErrUnavailable)
	}
	return geoip.Location{Country: "Canada", CountryCode: "CA", City: "Montreal " + ip}, nil
}

func TestServiceCachesSuccesses(t *testing.T) {
	locator := &countingLocator{}
	svc, err := geoip.NewService(locator, time.Hour, 100, testsupport.GetLogger())
	require.NoError(t, err)
	defer svc.Close()

	first, err := svc.Locate(t.Context(), "203.0.113.9")
	require.NoError(t, err)
	second, err := svc.Locate(t.Context(), "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), locator.calls.Load())
}

func TestServiceNeverCachesFailures(t *testing.T) {
	locator := &countingLocator{}
	locator.fail.Store(true)
	svc, err := geoip.NewService(locator, time.Hour, 100, testsupport.GetLogger())
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Locate(t.Context(), "203.0.113.9")
	assert.ErrorIs(t, err, geoip.ErrUnavailable)

	locator.fail.Store(false)
	loc, err := svc.Locate(t.Context(), "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "CA", loc.CountryCode)
	assert.Equal(t, int32(2), locator.calls.Load())
}

func TestHTTPLocator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/198.51.100.7"):
			fmt.Fprint(w, `{"status":"success","country":"France","countryCode":"FR","regionName":"Île-de-France","city":"Paris"}`)
		case strings.HasSuffix(r.URL.Path, "/198.51.100.8"):
			fmt.Fprint(w, `{"status":"fail","message":"reserved range"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	locator := geoip.NewHTTPLocator(server.URL, 600, testsupport.GetLogger())

	loc, err := locator.Lookup(t.Context(), "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, geoip.Location{Country: "France", CountryCode: "FR", Region: "Île-de-France", City: "Paris"}, loc)

	loc, err = locator.Lookup(t.Context(), "198.51.100.8")
	require.NoError(t, err)
	assert.Equal(t, geoip.Location{}, loc)

	_, err = locator.Lookup(t.Context(), "198.51.100.9")
	assert.ErrorIs(t, err, geoip.ErrUnavailable)
}

func TestHTTPLocatorOpensCircuit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	locator := geoip.NewHTTPLocator(server.URL, 600, testsupport.GetLogger())
	for range 8 {
		_, err := locator.Lookup(t.Context(), "198.51.100.7")
		assert.True(t, errors.Is(err, geoip.ErrUnavailable))
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestPrivateAddressesNeedNoLookup(t *testing.T) {
	locator := geoip.NewHTTPLocator("http://127.0.0.1:1", 600, testsupport.GetLogger())
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "not-an-ip"} {
		loc, err := locator.Lookup(t.Context(), ip)
		require.NoError(t, err, ip)
		assert.Equal(t, geoip.Location{}, loc)
	}
}

func TestMaxMindLocatorWithoutDatabase(t *testing.T) {
	locator := geoip.NewMaxMindLocator(filepath.Join(t.TempDir(), "missing.mmdb"), testsupport.GetLogger())
	defer locator.Close()

	loc, err := locator.Lookup(t.Context(), "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, geoip.Location{}, loc)

	loc, err = locator.Lookup(t.Context(), "192.168.1.1")
	require.NoError(t, err)
	assert.Equal(t, geoip.Location{}, loc)
}

func TestCountryCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ca", "CA"},
		{"FR", "FR"},
		{"DEU", "DE"},
		{"Canada", "CA"},
		{"france", "FR"},
		{"Atlantis", "ATLANTIS"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, geoip.CountryCode(tt.in))
		})
	}
	assert.Equal(t, "Canada", geoip.CountryName("CA"))
}
