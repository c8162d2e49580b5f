package calendar

import "time"

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%400 == 0 || (year%4 == 0 && year%100 != 0)
}

// DaysInMonth returns the number of days of a 1-based month.
func DaysInMonth(year, month int) int {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// WeeksInYear returns 53 for long ISO years, those where January 1 or
// December 31 is a Thursday, and 52 otherwise.
func WeeksInYear(year int) int {
	if date(year, 1, 1).Weekday() == time.Thursday || date(year, 12, 31).Weekday() == time.Thursday {
		return 53
	}
	return 52
}

// isoWeekday numbers days from Monday (0) to Sunday (6).
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// nearestThursday is the Thursday of the ISO week containing t.
func nearestThursday(t time.Time) time.Time {
	return t.AddDate(0, 0, 3-isoWeekday(t))
}

// isoWeek locates t's week through its Thursday: the year owning the
// Thursday owns the week.
func isoWeek(t time.Time) (year, week int) {
	thursday := nearestThursday(t)
	return thursday.Year(), (thursday.YearDay()-1)/7 + 1
}

// isoWeekStart is the Monday of week 1, the week holding January 4.
func isoWeekStart(year int) time.Time {
	jan4 := date(year, 1, 4)
	return jan4.AddDate(0, 0, -isoWeekday(jan4))
}

// firstThursday is the first Thursday on or after t.
func firstThursday(t time.Time) time.Time {
	return t.AddDate(0, 0, (3-isoWeekday(t)+7)%7)
}

// lastThursday is the last Thursday on or before t.
func lastThursday(t time.Time) time.Time {
	return t.AddDate(0, 0, -((isoWeekday(t)-3+7)%7))
}
