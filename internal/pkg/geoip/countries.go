package geoip

import (
	"strings"

	"github.com/pariz/gountries"
)

var countryQuery = gountries.New()

// CountryCode normalizes a country given as an ISO alpha-2 or alpha-3 code
// or as its English common name into an upper-case alpha-2 code. Unknown
// input is returned upper-cased so it can still be compared.
func CountryCode(country string) string {
	country = strings.TrimSpace(country)
	if country == "" {
		return ""
	}
	if c, err := countryQuery.FindCountryByAlpha(country); err == nil {
		return c.Alpha2
	}
	if c, err := countryQuery.FindCountryByName(country); err == nil {
		return c.Alpha2
	}
	return strings.ToUpper(country)
}

// CountryName returns the English common name for an alpha-2 code, or the
// code itself when it is unknown.
func CountryName(code string) string {
	if c, err := countryQuery.FindCountryByAlpha(code); err == nil {
		return c.Name.Common
	}
	return code
}
