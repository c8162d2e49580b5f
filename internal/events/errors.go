package events

import "fmt"

// BeaconErrorCode identifies why a beacon was rejected.
type BeaconErrorCode string

const (
	MalformedBeacon      BeaconErrorCode = "malformedBeacon"
	UnknownBeaconVersion BeaconErrorCode = "unknownBeaconVersion"
	InvalidBeaconLength  BeaconErrorCode = "invalidBeaconLength"
	InvalidBeaconField   BeaconErrorCode = "invalidBeaconField"
	UnknownOrigin        BeaconErrorCode = "unknownOrigin"
)

// BeaconError is a validation failure. Beacons failing validation are
// dropped, never retried.
type BeaconError struct {
	Code   BeaconErrorCode
	Detail string
}

func (e *BeaconError) Error() string {
	if e.Detail == "" {
		return "beacon: " + string(e.Code)
	}
	return fmt.Sprintf("beacon: %s: %s", e.Code, e.Detail)
}

// Is matches any *BeaconError with the same code.
func (e *BeaconError) Is(target error) bool {
	t, ok := target.(*BeaconError)
	return ok && t.Code == e.Code
}

var (
	ErrMalformedBeacon      = &BeaconError{Code: MalformedBeacon}
	ErrUnknownBeaconVersion = &BeaconError{Code: UnknownBeaconVersion}
	ErrInvalidBeaconLength  = &BeaconError{Code: InvalidBeaconLength}
	ErrInvalidBeaconField   = &BeaconError{Code: InvalidBeaconField}
	ErrUnknownOrigin        = &BeaconError{Code: UnknownOrigin}
)

func beaconError(code BeaconErrorCode, format string, args ...any) *BeaconError {
	return &BeaconError{Code: code, Detail: fmt.Sprintf(format, args...)}
}
