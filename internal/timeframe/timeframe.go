// Package timeframe resolves the range parameter of API requests into a
// calendar interval, accepting relative shortcuts as well as canonical
// forms. It also owns the clock abstraction shared by time-dependent code.
package timeframe

import (
	"strings"
	"time"

	"pagetally/internal/calendar"
)

// TimeProvider abstracts the clock so windowing and caching can be tested
// at fixed instants.
type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// Today returns the UTC day containing now.
func Today(tp TimeProvider) calendar.Value {
	return calendar.FromTime(tp.Now(time.UTC), calendar.Day)
}

type shortcut struct {
	unit   calendar.Unit
	offset int
	span   int
}

var shortcuts = map[string]shortcut{
	"today":         {calendar.Day, 0, 1},
	"yesterday":     {calendar.Day, -1, 1},
	"last-7-days":   {calendar.Day, -6, 7},
	"last-30-days":  {calendar.Day, -29, 30},
	"this-week":     {calendar.Week, 0, 1},
	"last-week":     {calendar.Week, -1, 1},
	"this-month":    {calendar.Month, 0, 1},
	"last-month":    {calendar.Month, -1, 1},
	"last-3-months": {calendar.Month, -2, 3},
	"this-year":     {calendar.Year, 0, 1},
	"last-year":     {calendar.Year, -1, 1},
}

// Parser turns range parameters into intervals relative to its clock.
type Parser struct {
	timeProvider TimeProvider
}

func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	return &Parser{timeProvider: provider}
}

// Parse accepts a shortcut such as "last-month" or any canonical interval.
func (p *Parser) Parse(param string) (calendar.Interval, error) {
	param = strings.TrimSpace(param)
	s, ok := shortcuts[strings.ToLower(param)]
	if !ok {
		return calendar.ParseInterval(param)
	}

	current := Today(p.timeProvider).ConvertTo(s.unit)
	start, err := current.AdvancedBy(s.offset)
	if err != nil {
		return calendar.Interval{}, err
	}
	end, err := start.AdvancedBy(s.span - 1)
	if err != nil {
		return calendar.Interval{}, err
	}
	return calendar.NewInterval(start, end)
}

// Shortcuts lists the accepted relative range names.
func Shortcuts() []string {
	names := make([]string, 0, len(shortcuts))
	for name := range shortcuts {
		names = append(names, name)
	}
	return names
}
