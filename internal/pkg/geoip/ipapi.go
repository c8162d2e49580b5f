package geoip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// HTTPLocator queries an ip-api.com compatible JSON endpoint. Requests are
// rate limited client-side and guarded by a circuit breaker so an outage
// fails fast instead of stalling every stats request.
type HTTPLocator struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[Location]
	logger  *slog.Logger
}

type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
}

// NewHTTPLocator builds a locator for baseURL allowing perMinute requests.
func NewHTTPLocator(baseURL string, perMinute int, logger *slog.Logger) *HTTPLocator {
	if perMinute <= 0 {
		perMinute = 45
	}
	l := &HTTPLocator{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:  logger,
	}
	l.breaker = gobreaker.NewCircuitBreaker[Location](gobreaker.Settings{
		Name:        "geoip-http",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return l
}

func (l *HTTPLocator) Name() string { return "ipapi" }

// Lookup resolves ip through the remote service.
func (l *HTTPLocator) Lookup(ctx context.Context, ip string) (Location, error) {
	if !isPublic(ip) {
		return Location{}, nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return Location{}, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	loc, err := l.breaker.Execute(func() (Location, error) {
		return l.query(ctx, ip)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return loc, err
}

func (l *HTTPLocator) query(ctx context.Context, ip string) (Location, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status,message,country,countryCode,regionName,city",
		l.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Location{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	if result.Status != "success" {
		// Reserved and private ranges are answers, not outages.
		if strings.Contains(result.Message, "range") {
			return Location{}, nil
		}
		l.logger.Debug("Geo lookup rejected",
			slog.String("ip", ip),
			slog.String("message", result.Message))
		return Location{}, fmt.Errorf("%w: %s", ErrUnavailable, result.Message)
	}

	return Location{
		Country:     result.Country,
		CountryCode: result.CountryCode,
		Region:      result.RegionName,
		City:        result.City,
	}, nil
}
