package v1

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"pagetally/internal/calendar"
	"pagetally/internal/events"
	"pagetally/internal/stats"
	"pagetally/internal/websites"
)

// Error codes that do not come from another package.
const (
	codeMissingRange  = "missingRange"
	codeMissingOrigin = "missingOrigin"
	codeUnknownOrigin = "unknownOrigin"
	codeInternal      = "internalError"
)

var (
	errMissingRange  = errors.New(codeMissingRange)
	errMissingOrigin = errors.New(codeMissingOrigin)
	errUnknownOrigin = errors.New(codeUnknownOrigin)
)

// ErrorCode maps an error to the code reported to API callers.
func ErrorCode(err error) string {
	var calErr *calendar.Error
	var beaconErr *events.BeaconError
	switch {
	case errors.As(err, &calErr):
		return string(calErr.Code)
	case errors.As(err, &beaconErr):
		return string(beaconErr.Code)
	case errors.Is(err, stats.ErrNoData):
		return "noData"
	case errors.Is(err, stats.ErrNoMatchingSessions):
		return "noMatchingSessions"
	case errors.Is(err, stats.ErrIPGeoUnavailable):
		return "ipGeoUnavailable"
	case errors.Is(err, stats.ErrInvalidFilter):
		return "invalidFilter"
	case errors.Is(err, websites.ErrNoOrigins):
		return "noOrigins"
	case errors.Is(err, errMissingRange):
		return codeMissingRange
	case errors.Is(err, errMissingOrigin):
		return codeMissingOrigin
	case errors.Is(err, errUnknownOrigin):
		return codeUnknownOrigin
	default:
		return codeInternal
	}
}

// statusFor picks the HTTP status of an error code. Calendar and filter
// codes are input validation failures.
func statusFor(code string) int {
	switch code {
	case "noOrigins":
		return http.StatusForbidden
	case codeUnknownOrigin, "noData", "noMatchingSessions":
		return http.StatusNotFound
	case "ipGeoUnavailable":
		return http.StatusServiceUnavailable
	case codeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// sendError writes {"error": code} with the matching status.
func sendError(c *fiber.Ctx, err error) error {
	return sendCode(c, ErrorCode(err))
}

func sendCode(c *fiber.Ctx, code string) error {
	return c.Status(statusFor(code)).JSON(fiber.Map{"error": code})
}
