package calendar

import "time"

// Range is implemented by Value and Interval only. Comparisons work on the
// days each one covers, so a month and the interval of its days compare
// as overlapping spans.
type Range interface {
	String() string
	bounds() (first, last time.Time)
}

var (
	_ Range = Value{}
	_ Range = Interval{}
)

// Equal compares canonical forms. A singular interval equals its value.
func Equal(a, b Range) bool {
	return a.String() == b.String()
}

// Before reports whether all of a ends before any of b starts.
func Before(a, b Range) bool {
	_, aLast := a.bounds()
	bFirst, _ := b.bounds()
	return aLast.Before(bFirst)
}

// After reports whether all of a starts after all of b ends.
func After(a, b Range) bool {
	return Before(b, a)
}

// Contains reports whether every day of b is a day of a.
func Contains(a, b Range) bool {
	aFirst, aLast := a.bounds()
	bFirst, bLast := b.bounds()
	return !bFirst.Before(aFirst) && !bLast.After(aLast)
}

// Overlaps reports whether a and b share at least one day.
func Overlaps(a, b Range) bool {
	return !Before(a, b) && !Before(b, a)
}
