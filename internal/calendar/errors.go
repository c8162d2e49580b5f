package calendar

import "fmt"

// ErrorCode identifies a calendar validation failure. The codes are part of
// the API's wire contract.
type ErrorCode string

const (
	MalformedDate   ErrorCode = "malformedDate"
	IllegalMonth    ErrorCode = "illegalMonth"
	IllegalDay      ErrorCode = "illegalDay"
	IllegalWeek     ErrorCode = "illegalWeek"
	OutOfRangeYear  ErrorCode = "outOfRangeYear"
	AsymmetricUnits ErrorCode = "asymmetricUnits"
	EndBeforeStart  ErrorCode = "endBeforeStart"
	UnknownUnit     ErrorCode = "unknownUnit"
)

// Error is returned by every constructor and parser in this package.
// Value holds the offending input.
type Error struct {
	Code  ErrorCode
	Value string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return "calendar: " + string(e.Code)
	}
	return fmt.Sprintf("calendar: %s: %q", e.Code, e.Value)
}

// Is matches any *Error with the same code, so the sentinels below work
// with errors.Is regardless of the offending value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMalformedDate   = &Error{Code: MalformedDate}
	ErrIllegalMonth    = &Error{Code: IllegalMonth}
	ErrIllegalDay      = &Error{Code: IllegalDay}
	ErrIllegalWeek     = &Error{Code: IllegalWeek}
	ErrOutOfRangeYear  = &Error{Code: OutOfRangeYear}
	ErrAsymmetricUnits = &Error{Code: AsymmetricUnits}
	ErrEndBeforeStart  = &Error{Code: EndBeforeStart}
	ErrUnknownUnit     = &Error{Code: UnknownUnit}
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Value: fmt.Sprintf(format, args...)}
}
