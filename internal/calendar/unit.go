package calendar

// Unit is the precision of a calendar value. Units are ordered from the
// finest (Day) to the coarsest (Year).
type Unit int

const (
	Day Unit = iota
	Week
	Month
	Year
)

var unitNames = [...]string{Day: "day", Week: "week", Month: "month", Year: "year"}

func (u Unit) String() string {
	if u < Day || u > Year {
		return "unknown"
	}
	return unitNames[u]
}

// ParseUnit accepts the lower-case unit names used in paths and queries.
func ParseUnit(s string) (Unit, error) {
	for u, name := range unitNames {
		if name == s {
			return Unit(u), nil
		}
	}
	return Day, &Error{Code: UnknownUnit, Value: s}
}

// FinerThan reports whether u is more specific than other.
func (u Unit) FinerThan(other Unit) bool {
	return u < other
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
