// Package v1 serves the collector's HTTP API: beacon ingestion and the
// read-only stats queries.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pagetally/internal/annotations"
	"pagetally/internal/calendar"
	"pagetally/internal/events"
	"pagetally/internal/sessions"
	"pagetally/internal/stats"
	"pagetally/internal/timeframe"
	"pagetally/internal/websites"
)

const viewerKey = "viewer"

// Handler holds what the API handlers need.
type Handler struct {
	Ingestor   *events.Ingestor
	Aggregator *stats.Aggregator
	Store      *sessions.Store
	DB         *gorm.DB
	Ranges     *timeframe.Parser
	AdminKey   string
	Logger     *slog.Logger
}

// BeaconHandler accepts a beacon sent with navigator.sendBeacon. It always
// answers 202 since the browser discards the response anyway.
func (h *Handler) BeaconHandler(c *fiber.Ctx) error {
	userAgent := c.Get(fiber.HeaderUserAgent)
	if forwardedUA := c.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgent = forwardedUA
	}

	err := h.Ingestor.Receive(c.UserContext(), c.Body(), getClientIP(c), userAgent)
	if err != nil {
		var beaconErr *events.BeaconError
		if errors.As(err, &beaconErr) {
			h.Logger.Debug("Rejected beacon",
				slog.String("code", string(beaconErr.Code)),
				slog.String("detail", beaconErr.Detail))
		}
	}
	return c.SendStatus(http.StatusAccepted)
}

// RequireViewer resolves the bearer token into the set of visible origins.
func (h *Handler) RequireViewer(c *fiber.Ctx) error {
	token, _ := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	viewer, err := websites.ResolveViewer(h.DB, strings.TrimSpace(token), h.AdminKey)
	if err != nil {
		if !errors.Is(err, websites.ErrNoOrigins) {
			h.Logger.Error("Failed to resolve viewer", slog.Any("error", err))
		}
		return sendError(c, err)
	}
	c.Locals(viewerKey, viewer)
	return c.Next()
}

// OriginsHandler lists the registered origins the caller may view.
func (h *Handler) OriginsHandler(c *fiber.Ctx) error {
	origins, err := websites.ListOrigins(h.DB)
	if err != nil {
		h.Logger.Error("Failed to list origins", slog.Any("error", err))
		return sendError(c, err)
	}
	visible := viewerFrom(c).Visible(origins)
	if len(visible) == 0 {
		return sendError(c, websites.ErrNoOrigins)
	}
	return c.JSON(fiber.Map{"origins": visible})
}

// AvailableHandler reports the interval spanning all data of an origin.
func (h *Handler) AvailableHandler(c *fiber.Ctx) error {
	origin, err := h.origin(c)
	if err != nil {
		return sendError(c, err)
	}
	interval, err := h.Store.Available(origin)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"origin": origin, "range": interval})
}

// StatsHandler computes the stats of ?origin= over ?range=, narrowed by
// the optional ?filter=.
func (h *Handler) StatsHandler(c *fiber.Ctx) error {
	origin, err := h.origin(c)
	if err != nil {
		return sendError(c, err)
	}
	interval, err := h.interval(c)
	if err != nil {
		return sendError(c, err)
	}
	filter, err := stats.ParseFilter(c.Query("filter"))
	if err != nil {
		return sendError(c, err)
	}

	result, err := h.Aggregator.Compute(c.UserContext(), origin, interval, filter)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(result)
}

// AnnotationsHandler lists the annotations overlapping ?range=.
func (h *Handler) AnnotationsHandler(c *fiber.Ctx) error {
	origin, err := h.origin(c)
	if err != nil {
		return sendError(c, err)
	}
	interval, err := h.interval(c)
	if err != nil {
		return sendError(c, err)
	}
	found, err := annotations.ForInterval(h.DB, origin, interval)
	if err != nil {
		h.Logger.Error("Failed to load annotations", slog.String("origin", origin), slog.Any("error", err))
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"origin": origin, "range": interval, "annotations": found})
}

// origin reads ?origin= and checks that it is registered and visible to
// the caller.
func (h *Handler) origin(c *fiber.Ctx) (string, error) {
	origin := websites.NormalizeDomain(c.Query("origin"))
	if origin == "" {
		return "", errMissingOrigin
	}
	if !viewerFrom(c).CanView(origin) {
		return "", errUnknownOrigin
	}
	if _, err := websites.GetWebsiteByDomain(h.DB, origin); err != nil {
		var notFound *websites.WebsiteNotFoundError
		if errors.As(err, &notFound) {
			return "", errUnknownOrigin
		}
		h.Logger.Error("Failed to look up origin", slog.String("origin", origin), slog.Any("error", err))
		return "", err
	}
	return origin, nil
}

func (h *Handler) interval(c *fiber.Ctx) (calendar.Interval, error) {
	param := c.Query("range")
	if param == "" {
		return calendar.Interval{}, errMissingRange
	}
	return h.Ranges.Parse(param)
}

func viewerFrom(c *fiber.Ctx) websites.Viewer {
	viewer, _ := c.Locals(viewerKey).(websites.Viewer)
	return viewer
}
