package calendar

import (
	"iter"
	"strings"
	"time"
)

// Interval is a closed range between two values of the same unit.
type Interval struct {
	start Value
	end   Value
}

// NewInterval validates that both bounds share a unit and are ordered.
func NewInterval(start, end Value) (Interval, error) {
	if start.unit != end.unit {
		return Interval{}, &Error{Code: AsymmetricUnits, Value: start.String() + ":" + end.String()}
	}
	if end.FirstDay().Before(start.FirstDay()) {
		return Interval{}, &Error{Code: EndBeforeStart, Value: start.String() + ":" + end.String()}
	}
	return Interval{start: start, end: end}, nil
}

// Singular returns the interval covering exactly v.
func Singular(v Value) Interval {
	return Interval{start: v, end: v}
}

// ParseInterval reads "start:end" or a single canonical value.
func ParseInterval(s string) (Interval, error) {
	first, second, found := strings.Cut(s, ":")
	start, err := Parse(first)
	if err != nil {
		return Interval{}, err
	}
	if !found {
		return Singular(start), nil
	}
	end, err := Parse(second)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(start, end)
}

// MustParseInterval is ParseInterval for literals known to be valid.
func MustParseInterval(s string) Interval {
	i, err := ParseInterval(s)
	if err != nil {
		panic(err)
	}
	return i
}

func (i Interval) Start() Value { return i.start }
func (i Interval) End() Value   { return i.end }
func (i Interval) Unit() Unit   { return i.start.unit }

func (i Interval) IsSingular() bool {
	return i.start == i.end
}

// String returns "start:end", or the start alone for a singular interval.
func (i Interval) String() string {
	if i.IsSingular() {
		return i.start.String()
	}
	return i.start.String() + ":" + i.end.String()
}

func (i Interval) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Interval) UnmarshalText(text []byte) error {
	parsed, err := ParseInterval(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Len is the number of units covered, counting both bounds.
func (i Interval) Len() int {
	s, e := i.start, i.end
	switch i.Unit() {
	case Year:
		return e.year - s.year + 1
	case Month:
		return (e.year-s.year)*12 + e.month - s.month + 1
	case Week:
		return daysBetween(s.FirstDay(), e.FirstDay())/7 + 1
	default:
		return daysBetween(s.FirstDay(), e.FirstDay()) + 1
	}
}

// AdvancedBy shifts both bounds by n whole interval lengths, so stepping
// through consecutive windows keeps their width fixed.
func (i Interval) AdvancedBy(n int) (Interval, error) {
	step := n * i.Len()
	start, err := i.start.AdvancedBy(step)
	if err != nil {
		return Interval{}, err
	}
	end, err := i.end.AdvancedBy(step)
	if err != nil {
		return Interval{}, err
	}
	return Interval{start: start, end: end}, nil
}

// ConvertTo changes the precision of both bounds, narrowing the start
// towards its beginning and the end towards its end.
func (i Interval) ConvertTo(unit Unit) Interval {
	return Interval{start: i.start.ConvertTo(unit), end: i.end.ConvertToEnd(unit)}
}

// Each yields the values of the given unit spanning the interval.
func (i Interval) Each(unit Unit) iter.Seq[Value] {
	return each(i.start.ConvertTo(unit), i.end.ConvertToEnd(unit))
}

// Days yields every day covered by the interval.
func (i Interval) Days() iter.Seq[Value] {
	return i.Each(Day)
}

// MonthRange yields the months covered by the interval.
func (i Interval) MonthRange() iter.Seq[Value] {
	return i.Each(Month)
}

func (i Interval) bounds() (time.Time, time.Time) {
	return i.start.FirstDay(), i.end.LastDay()
}

func (i Interval) Equals(other Range) bool   { return Equal(i, other) }
func (i Interval) IsBefore(other Range) bool { return Before(i, other) }
func (i Interval) IsAfter(other Range) bool  { return After(i, other) }
func (i Interval) Contains(other Range) bool { return Contains(i, other) }
func (i Interval) Overlaps(other Range) bool { return Overlaps(i, other) }

func daysBetween(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / 86400)
}
