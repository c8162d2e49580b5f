// Package calendar names time ranges at year, month, ISO week or day
// precision and converts between them.
//
// Values are immutable: every operation returns a new Value. Weeks follow
// ISO-8601, so a week belongs to the year that owns its Thursday.
package calendar

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"time"
)

const (
	minYear = 1
	maxYear = 9999
)

var canonicalPattern = regexp.MustCompile(`^(\d{4})(?:-(?:W(\d{2})|(\d{2})(?:-(\d{2}))?))?$`)

// Value is a point in time at one of four precisions. Only the fields
// implied by the unit are meaningful; the others are zero.
type Value struct {
	unit  Unit
	year  int
	month int
	week  int
	day   int
}

// NewYear builds a year value.
func NewYear(year int) (Value, error) {
	if err := checkYear(year); err != nil {
		return Value{}, err
	}
	return Value{unit: Year, year: year}, nil
}

// NewMonth builds a month value; month is 1-based.
func NewMonth(year, month int) (Value, error) {
	if err := checkYear(year); err != nil {
		return Value{}, err
	}
	if month < 1 || month > 12 {
		return Value{}, newError(IllegalMonth, "%04d-%02d", year, month)
	}
	return Value{unit: Month, year: year, month: month}, nil
}

// NewWeek builds an ISO week value.
func NewWeek(year, week int) (Value, error) {
	if err := checkYear(year); err != nil {
		return Value{}, err
	}
	if week < 1 || week > WeeksInYear(year) {
		return Value{}, newError(IllegalWeek, "%04d-W%02d", year, week)
	}
	return Value{unit: Week, year: year, week: week}, nil
}

// NewDay builds a day value.
func NewDay(year, month, day int) (Value, error) {
	if err := checkYear(year); err != nil {
		return Value{}, err
	}
	if month < 1 || month > 12 {
		return Value{}, newError(IllegalMonth, "%04d-%02d-%02d", year, month, day)
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return Value{}, newError(IllegalDay, "%04d-%02d-%02d", year, month, day)
	}
	return Value{unit: Day, year: year, month: month, day: day}, nil
}

// FromTime returns the value of the given unit containing t's calendar date
// in t's own location.
func FromTime(t time.Time, unit Unit) Value {
	return fromDate(t).ConvertTo(unit)
}

// Parse reads a canonical form: YYYY, YYYY-MM, YYYY-Www or YYYY-MM-DD.
func Parse(s string) (Value, error) {
	m := canonicalPattern.FindStringSubmatch(s)
	if m == nil {
		return Value{}, &Error{Code: MalformedDate, Value: s}
	}
	year, _ := strconv.Atoi(m[1])
	switch {
	case m[2] != "":
		week, _ := strconv.Atoi(m[2])
		return NewWeek(year, week)
	case m[4] != "":
		month, _ := strconv.Atoi(m[3])
		day, _ := strconv.Atoi(m[4])
		return NewDay(year, month, day)
	case m[3] != "":
		month, _ := strconv.Atoi(m[3])
		return NewMonth(year, month)
	default:
		return NewYear(year)
	}
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Value {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Value) Unit() Unit { return v.unit }
func (v Value) Year() int  { return v.year }
func (v Value) Month() int { return v.month }
func (v Value) Week() int  { return v.week }
func (v Value) Day() int   { return v.day }

// IsZero reports whether v was never constructed.
func (v Value) IsZero() bool { return v.year == 0 }

// String returns the canonical form.
func (v Value) String() string {
	switch v.unit {
	case Year:
		return fmt.Sprintf("%04d", v.year)
	case Month:
		return fmt.Sprintf("%04d-%02d", v.year, v.month)
	case Week:
		return fmt.Sprintf("%04d-W%02d", v.year, v.week)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", v.year, v.month, v.day)
	}
}

func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Weekday returns the ISO weekday of a day value, Monday being 0.
func (v Value) Weekday() int {
	return isoWeekday(v.FirstDay())
}

// FirstDay returns midnight UTC of the first day covered by v.
func (v Value) FirstDay() time.Time {
	switch v.unit {
	case Year:
		return date(v.year, 1, 1)
	case Month:
		return date(v.year, v.month, 1)
	case Week:
		return isoWeekStart(v.year).AddDate(0, 0, 7*(v.week-1))
	default:
		return date(v.year, v.month, v.day)
	}
}

// LastDay returns midnight UTC of the last day covered by v.
func (v Value) LastDay() time.Time {
	switch v.unit {
	case Year:
		return date(v.year, 12, 31)
	case Month:
		return date(v.year, v.month, DaysInMonth(v.year, v.month))
	case Week:
		return v.FirstDay().AddDate(0, 0, 6)
	default:
		return v.FirstDay()
	}
}

// ConvertTo changes precision. Broadening returns the enclosing value;
// narrowing picks the first value inside v. A week broadens to the month
// and year owning its Thursday, and narrowing to weeks only considers
// weeks whose Thursday falls inside v.
func (v Value) ConvertTo(unit Unit) Value {
	return v.convert(unit, false)
}

// ConvertToEnd is ConvertTo, except that narrowing picks the last value
// inside v. It is used for the end bound of an interval.
func (v Value) ConvertToEnd(unit Unit) Value {
	return v.convert(unit, true)
}

func (v Value) convert(unit Unit, preferEnd bool) Value {
	if unit == v.unit {
		return v
	}
	var anchor time.Time
	switch {
	case v.unit == Week:
		// The Thursday decides ownership; days take the Monday or the Sunday.
		anchor = v.FirstDay().AddDate(0, 0, 3)
		if unit == Day {
			anchor = v.FirstDay()
			if preferEnd {
				anchor = v.LastDay()
			}
		}
	case unit == Week && v.unit.FinerThan(unit):
		anchor = v.FirstDay()
	case unit == Week:
		anchor = firstThursday(v.FirstDay())
		if preferEnd {
			anchor = lastThursday(v.LastDay())
		}
	case preferEnd:
		anchor = v.LastDay()
	default:
		anchor = v.FirstDay()
	}
	return fromDate(anchor).broaden(unit)
}

// broaden converts a day value to any coarser unit.
func (v Value) broaden(unit Unit) Value {
	switch unit {
	case Year:
		return Value{unit: Year, year: v.year}
	case Month:
		return Value{unit: Month, year: v.year, month: v.month}
	case Week:
		year, week := isoWeek(v.FirstDay())
		return Value{unit: Week, year: year, week: week}
	default:
		return v
	}
}

// AdvancedBy moves v by n units of its own precision; n may be negative.
func (v Value) AdvancedBy(n int) (Value, error) {
	var next Value
	switch v.unit {
	case Year:
		next = Value{unit: Year, year: v.year + n}
	case Month:
		total := v.year*12 + (v.month - 1) + n
		next = Value{unit: Month, year: floorDiv(total, 12), month: total - floorDiv(total, 12)*12 + 1}
	case Week:
		next = fromDate(v.FirstDay().AddDate(0, 0, 7*n)).broaden(Week)
	default:
		next = fromDate(v.FirstDay().AddDate(0, 0, n))
	}
	if err := checkYear(next.year); err != nil {
		return Value{}, err
	}
	return next, nil
}

// Each yields the values of the given unit that make up v, in order.
// The sequence can be ranged over any number of times.
func (v Value) Each(unit Unit) iter.Seq[Value] {
	return each(v.ConvertTo(unit), v.ConvertToEnd(unit))
}

func (v Value) bounds() (time.Time, time.Time) {
	return v.FirstDay(), v.LastDay()
}

func (v Value) Equals(other Range) bool   { return Equal(v, other) }
func (v Value) IsBefore(other Range) bool { return Before(v, other) }
func (v Value) IsAfter(other Range) bool  { return After(v, other) }
func (v Value) Contains(other Range) bool { return Contains(v, other) }
func (v Value) Overlaps(other Range) bool { return Overlaps(v, other) }

func each(first, last Value) iter.Seq[Value] {
	return func(yield func(Value) bool) {
		end := last.String()
		for cur := first; ; {
			if !yield(cur) || cur.String() == end {
				return
			}
			next, err := cur.AdvancedBy(1)
			if err != nil {
				return
			}
			cur = next
		}
	}
}

func checkYear(year int) error {
	if year < minYear || year > maxYear {
		return newError(OutOfRangeYear, "%d", year)
	}
	return nil
}

func fromDate(t time.Time) Value {
	return Value{unit: Day, year: t.Year(), month: int(t.Month()), day: t.Day()}
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
