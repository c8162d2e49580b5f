// Package geoip resolves client IP addresses to a country, region and city.
//
// Lookups go through a Locator: a local MaxMind database, the ip-api.com
// HTTP service, or nothing at all. Service caches successful answers per IP
// for a configurable TTL and never caches failures.
package geoip

import (
	"context"
	"errors"
	"net"
)

// ErrUnavailable is returned when the geolocation backend cannot answer.
// Callers decide whether to abort or degrade.
var ErrUnavailable = errors.New("geolocation unavailable")

// Location is the result of a lookup. Fields are empty when unknown.
type Location struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// Locator looks up a single IP address.
type Locator interface {
	Lookup(ctx context.Context, ip string) (Location, error)
	Name() string
}

// NoopLocator answers every lookup with an empty location.
type NoopLocator struct{}

func (NoopLocator) Lookup(context.Context, string) (Location, error) { return Location{}, nil }
func (NoopLocator) Name() string { return "none" }

// isPublic reports whether ip can be located at all. Private, loopback and
// unparseable addresses resolve to an empty location without a lookup.
func isPublic(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsMulticast())
}
